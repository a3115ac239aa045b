package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"legalchat/internal/app"
	"legalchat/internal/model"
	"legalchat/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type StreamMessageRequest struct {
	ConversationID string              `json:"conversation_id" binding:"required"`
	Content        string              `json:"content" binding:"required"`
	SystemPrompt   string              `json:"system_prompt"`
	Jurisdiction   string              `json:"jurisdiction"`
	SourcesEnabled bool                `json:"sources_enabled"`
	Attachments    []AttachmentRequest `json:"attachments"`
}

type AttachmentRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type TitleRequest struct {
	Task    string `json:"task" binding:"required,eq=title"`
	Message string `json:"message" binding:"required"`
}

// deltaChunk is the shape of each streamed token frame.
type deltaChunk struct {
	Choices []deltaChoice `json:"choices"`
}

type deltaChoice struct {
	Delta deltaContent `json:"delta"`
}

type deltaContent struct {
	Content string `json:"content"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// StreamMessage runs one chat turn and relays the assistant tokens to the
// client as server-sent events. Each token goes out as a data frame carrying
// a choices/delta JSON object; the stream ends with the [DONE] sentinel, or
// with a FatalError event when the upstream model fails terminally.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	var req StreamMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, "stream not supported")
		return
	}

	attachments := make([]model.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, model.Attachment{
			Name:     a.Name,
			MimeType: a.MimeType,
			Data:     a.Data,
		})
	}

	_, err := h.chatService.StreamMessage(c.Request.Context(), app.StreamInput{
		ConversationID: req.ConversationID,
		Content:        req.Content,
		Attachments:    attachments,
		SystemPrompt:   req.SystemPrompt,
		Jurisdiction:   req.Jurisdiction,
		SourcesEnabled: req.SourcesEnabled,
	}, func(token string) error {
		frame, marshalErr := json.Marshal(deltaChunk{
			Choices: []deltaChoice{{Delta: deltaContent{Content: token}}},
		})
		if marshalErr != nil {
			return marshalErr
		}
		if _, writeErr := c.Writer.Write([]byte("data: " + string(frame) + "\n\n")); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if c.Request.Context().Err() != nil {
			// Client went away mid-stream; nothing left to tell it.
			return
		}
		switch {
		case errors.Is(err, app.ErrMessageEmpty), errors.Is(err, app.ErrLLMConfig):
			h.writeFatal(c, flusher, err.Error())
		case errors.Is(err, app.ErrConversationNotFound):
			h.writeFatal(c, flusher, "conversation not found")
		default:
			h.writeFatal(c, flusher, sanitizeSSE(err.Error()))
		}
		return
	}

	if _, writeErr := c.Writer.Write([]byte("data: [DONE]\n\n")); writeErr == nil {
		flusher.Flush()
	}
}

// GenerateTitle serves the non-streaming title task.
func (h *ChatHandler) GenerateTitle(c *gin.Context) {
	var req TitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	title, err := h.chatService.GenerateTitle(c.Request.Context(), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMessageEmpty):
			response.Error(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrLLMConfig):
			response.Error(c, http.StatusBadRequest, err.Error())
		default:
			response.Error(c, http.StatusBadGateway, "title generation failed")
		}
		return
	}

	response.OK(c, gin.H{"title": title})
}

func (h *ChatHandler) writeFatal(c *gin.Context, flusher http.Flusher, message string) {
	if _, err := c.Writer.Write([]byte("event: FatalError\ndata: " + sanitizeSSE(message) + "\n\n")); err == nil {
		flusher.Flush()
	}
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
