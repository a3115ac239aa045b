package response

import "github.com/gin-gonic/gin"

// Error codes used in validation envelopes.
const (
	CodeInvalidPayload    = "invalid_payload"
	CodeMimeNotAllowed    = "mime_not_allowed"
	CodeTooLarge          = "too_large"
	CodeSignatureMismatch = "signature_mismatch"
	CodeEmptyDocument     = "empty_document"
	CodeNotFound          = "not_found"
	CodeUnauthorized      = "unauthorized"
	CodeConflict          = "conflict"
	CodeInternal          = "internal_error"
)

// OK writes the payload directly; success responses carry no envelope.
func OK(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}

// Error writes the plain error envelope used by the chat transport.
func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, gin.H{"error": message})
}

// ValidationError writes the two-field envelope used by the document upload
// endpoint: a stable machine code plus a human-readable message.
func ValidationError(c *gin.Context, httpStatus int, code, message string) {
	c.JSON(httpStatus, gin.H{"error": code, "message": message})
}
