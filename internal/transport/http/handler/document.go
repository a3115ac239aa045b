package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"legalchat/internal/app"
	"legalchat/internal/model"
	"legalchat/internal/transport/http/middleware"
	"legalchat/internal/transport/http/response"
)

type DocumentHandler struct {
	documentService *app.DocumentService
}

// UploadDocumentRequest uses the documented camelCase keys; the documents
// surface is consumed by external clients, unlike the internal snake_case
// payloads elsewhere.
type UploadDocumentRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	MimeType string `json:"mimeType" binding:"required"`
	Content  []byte `json:"content" binding:"required"`
}

func NewDocumentHandler(documentService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload accepts a base64-encoded document, validates it, and runs it through
// the extraction pipeline. Validation failures use the two-field envelope so
// clients can branch on the code without parsing the Spanish message.
func (h *DocumentHandler) Upload(c *gin.Context) {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid token payload")
		return
	}

	var req UploadDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, http.StatusBadRequest, response.CodeInvalidPayload, "invalid request payload")
		return
	}

	doc, err := h.documentService.Upload(c.Request.Context(), app.UploadInput{
		OwnerID:  ownerID,
		Name:     req.Name,
		MimeType: req.MimeType,
		Content:  req.Content,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMimeNotAllowed):
			response.ValidationError(c, http.StatusBadRequest, response.CodeMimeNotAllowed, err.Error())
		case errors.Is(err, app.ErrDocumentTooLarge):
			response.ValidationError(c, http.StatusBadRequest, response.CodeTooLarge, err.Error())
		case errors.Is(err, app.ErrDocumentEmpty):
			response.ValidationError(c, http.StatusBadRequest, response.CodeEmptyDocument, err.Error())
		case errors.Is(err, app.ErrSignatureMismatch):
			response.ValidationError(c, http.StatusBadRequest, response.CodeSignatureMismatch, err.Error())
		case errors.Is(err, app.ErrProcessingFailed) && doc != nil:
			// The document row persists in error state; the body carries it
			// so the client can show the stored message, but the status code
			// reports the failure.
			c.JSON(http.StatusInternalServerError, documentView(doc))
		default:
			response.ValidationError(c, http.StatusInternalServerError, response.CodeInternal, "upload failed")
		}
		return
	}

	response.OK(c, documentView(doc))
}

func (h *DocumentHandler) Get(c *gin.Context) {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid token payload")
		return
	}

	doc, err := h.documentService.Get(ownerID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, "fetch document failed")
		}
		return
	}

	view := documentView(doc)
	if doc.ExtractedText != nil {
		view["extractedText"] = *doc.ExtractedText
	}
	response.OK(c, view)
}

func (h *DocumentHandler) List(c *gin.Context) {
	ownerID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid token payload")
		return
	}

	docs, err := h.documentService.List(ownerID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "list documents failed")
		return
	}

	views := make([]gin.H, 0, len(docs))
	for i := range docs {
		views = append(views, documentView(&docs[i]))
	}
	response.OK(c, views)
}

func documentView(doc *model.ProcessedDocument) gin.H {
	length := 0
	if doc.ExtractedText != nil {
		length = len(*doc.ExtractedText)
	}
	view := gin.H{
		"id":                  doc.ID,
		"name":                doc.Name,
		"mimeType":            doc.MimeType,
		"size":                doc.Size,
		"status":              doc.Status,
		"extractedTextLength": length,
	}
	if doc.ErrorMessage != nil {
		view["errorMessage"] = *doc.ErrorMessage
	}
	return view
}
