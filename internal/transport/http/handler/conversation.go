package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"legalchat/internal/app"
	"legalchat/internal/transport/http/response"
)

type ConversationHandler struct {
	chatService *app.ChatService
}

type RenameConversationRequest struct {
	Title string `json:"title" binding:"required,max=128"`
}

type SaveDraftRequest struct {
	Draft string `json:"draft"`
}

func NewConversationHandler(chatService *app.ChatService) *ConversationHandler {
	return &ConversationHandler{chatService: chatService}
}

func (h *ConversationHandler) Create(c *gin.Context) {
	conv, err := h.chatService.CreateConversation()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "create conversation failed")
		return
	}
	response.OK(c, conv)
}

func (h *ConversationHandler) List(c *gin.Context) {
	response.OK(c, h.chatService.ListConversations())
}

func (h *ConversationHandler) Messages(c *gin.Context) {
	conversationID := c.Param("id")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	messages, err := h.chatService.GetHistory(c.Request.Context(), conversationID, limit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrConversationNotFound):
			response.Error(c, http.StatusNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, "get history failed")
		}
		return
	}
	response.OK(c, messages)
}

func (h *ConversationHandler) Rename(c *gin.Context) {
	conversationID := c.Param("id")

	var req RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := h.chatService.RenameConversation(conversationID, req.Title); err != nil {
		switch {
		case errors.Is(err, app.ErrConversationNotFound):
			response.Error(c, http.StatusNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, "rename conversation failed")
		}
		return
	}
	response.OK(c, gin.H{"id": conversationID, "title": req.Title})
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	conversationID := c.Param("id")

	if err := h.chatService.DeleteConversation(conversationID); err != nil {
		switch {
		case errors.Is(err, app.ErrConversationNotFound):
			response.Error(c, http.StatusNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, "delete conversation failed")
		}
		return
	}
	response.OK(c, gin.H{"deleted_conversation_id": conversationID})
}

// Restore re-inserts a conversation deleted within the undo window.
func (h *ConversationHandler) Restore(c *gin.Context) {
	conversationID := c.Param("id")

	if err := h.chatService.RestoreConversation(conversationID); err != nil {
		switch {
		case errors.Is(err, app.ErrNoUndo):
			response.Error(c, http.StatusGone, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, "restore conversation failed")
		}
		return
	}
	response.OK(c, gin.H{"restored_conversation_id": conversationID})
}

func (h *ConversationHandler) ClearAll(c *gin.Context) {
	if err := h.chatService.ClearAll(); err != nil {
		response.Error(c, http.StatusInternalServerError, "clear conversations failed")
		return
	}
	response.OK(c, gin.H{"cleared": true})
}

func (h *ConversationHandler) SaveDraft(c *gin.Context) {
	conversationID := c.Param("id")

	var req SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	h.chatService.SaveDraft(c.Request.Context(), conversationID, req.Draft)
	response.OK(c, gin.H{"saved": true})
}

func (h *ConversationHandler) GetDraft(c *gin.Context) {
	conversationID := c.Param("id")
	response.OK(c, gin.H{"draft": h.chatService.GetDraft(c.Request.Context(), conversationID)})
}
