package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"legalchat/internal/app"
	"legalchat/internal/model"
	"legalchat/internal/transport/http/middleware"
)

type stubDocumentRepo struct {
	docs map[string]*model.ProcessedDocument
}

func newStubDocumentRepo() *stubDocumentRepo {
	return &stubDocumentRepo{docs: make(map[string]*model.ProcessedDocument)}
}

func (r *stubDocumentRepo) Create(doc *model.ProcessedDocument) error {
	stored := *doc
	r.docs[doc.ID] = &stored
	return nil
}

func (r *stubDocumentRepo) GetByIDAndOwner(id string, ownerID uint) (*model.ProcessedDocument, error) {
	doc, ok := r.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func (r *stubDocumentRepo) ListByOwner(ownerID uint) ([]model.ProcessedDocument, error) {
	var out []model.ProcessedDocument
	for _, doc := range r.docs {
		if doc.OwnerID == ownerID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (r *stubDocumentRepo) MarkProcessing(id, storageLocator string) error {
	r.docs[id].Status = model.DocumentStatusProcessing
	r.docs[id].StorageLocator = storageLocator
	return nil
}

func (r *stubDocumentRepo) MarkReady(id, extractedText string) error {
	r.docs[id].Status = model.DocumentStatusReady
	r.docs[id].ExtractedText = &extractedText
	return nil
}

func (r *stubDocumentRepo) MarkError(id, errorMessage string) error {
	r.docs[id].Status = model.DocumentStatusError
	r.docs[id].ErrorMessage = &errorMessage
	return nil
}

type stubBlobStore struct{}

func (stubBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return nil
}
func (stubBlobStore) Get(ctx context.Context, key string) ([]byte, error) { return nil, nil }
func (stubBlobStore) Remove(ctx context.Context, key string) error        { return nil }

type stubExtractor struct {
	text string
	err  error
}

func (e *stubExtractor) Extract(ctx context.Context, mimeType string, data []byte) (string, error) {
	return e.text, e.err
}

func newDocumentRouter(extractor *stubExtractor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := app.NewDocumentService(newStubDocumentRepo(), stubBlobStore{}, extractor, nil)
	h := NewDocumentHandler(svc)

	router := gin.New()
	identity := func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, uint(7))
		c.Next()
	}
	router.POST("/documents", identity, h.Upload)
	router.POST("/anon/documents", h.Upload)
	return router
}

func uploadBody(t *testing.T, name, mimeType string, content []byte) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"name":     name,
		"mimeType": mimeType,
		"content":  content,
	})
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func pdfBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, "%PDF-1.7")
	return data
}

func doUpload(router *gin.Engine, path string, body *bytes.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUploadRespondsWithDocumentedKeys(t *testing.T) {
	router := newDocumentRouter(&stubExtractor{text: "contrato de arrendamiento"})

	rec := doUpload(router, "/documents", uploadBody(t, "contrato.pdf", "application/pdf", pdfBytes(256)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["id"])
	require.Equal(t, "ready", resp["status"])
	require.Equal(t, "contrato.pdf", resp["name"])
	require.Equal(t, float64(256), resp["size"])
	require.Equal(t, "application/pdf", resp["mimeType"])
	require.Equal(t, float64(len("contrato de arrendamiento")), resp["extractedTextLength"])
	require.NotContains(t, resp, "mime_type")
	require.NotContains(t, resp, "extracted_text_length")
}

func TestUploadProcessingFailureReturns500(t *testing.T) {
	router := newDocumentRouter(&stubExtractor{err: errors.New("ocr engine unavailable")})

	rec := doUpload(router, "/documents", uploadBody(t, "escaneo.pdf", "application/pdf", pdfBytes(256)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "error", resp["status"])
	require.NotEmpty(t, resp["id"], "the persisted error row is still reported")
	require.NotEmpty(t, resp["errorMessage"])
	require.Equal(t, float64(0), resp["extractedTextLength"])
}

func TestUploadRejectsMissingMimeTypeKey(t *testing.T) {
	router := newDocumentRouter(&stubExtractor{text: "x"})

	raw, err := json.Marshal(map[string]interface{}{
		"name":      "contrato.pdf",
		"mime_type": "application/pdf",
		"content":   pdfBytes(64),
	})
	require.NoError(t, err)

	rec := doUpload(router, "/documents", bytes.NewReader(raw))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "invalid_payload", resp["error"])
}

func TestUploadWithoutIdentityReturns401(t *testing.T) {
	router := newDocumentRouter(&stubExtractor{text: "x"})

	rec := doUpload(router, "/anon/documents", uploadBody(t, "contrato.pdf", "application/pdf", pdfBytes(64)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
