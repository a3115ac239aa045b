package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"legalchat/internal/extract"
	"legalchat/internal/model"
	"legalchat/internal/storage"
)

// MaxDocumentSize is the decoded upload ceiling.
const MaxDocumentSize = 25 << 20 // 25 MiB

var (
	ErrMimeNotAllowed    = errors.New("mime type is not allowed")
	ErrDocumentTooLarge  = errors.New("document exceeds the size limit")
	ErrDocumentEmpty     = errors.New("document is empty")
	ErrSignatureMismatch = extract.ErrSignatureMismatch
	ErrDocumentNotFound  = errors.New("document not found")
	ErrProcessingFailed  = errors.New("document processing failed")
)

// DocumentRepo persists document rows and their forward-only status machine.
type DocumentRepo interface {
	Create(doc *model.ProcessedDocument) error
	GetByIDAndOwner(id string, ownerID uint) (*model.ProcessedDocument, error)
	ListByOwner(ownerID uint) ([]model.ProcessedDocument, error)
	MarkProcessing(id, storageLocator string) error
	MarkReady(id, extractedText string) error
	MarkError(id, errorMessage string) error
}

// Extractor produces plain text for validated document bytes.
type Extractor interface {
	Extract(ctx context.Context, mimeType string, data []byte) (string, error)
}

// DocumentService is the upload gateway: it validates, stores, and invokes
// the extraction pipeline, persisting each status transition.
type DocumentService struct {
	repo      DocumentRepo
	blobs     storage.BlobStore
	extractor Extractor
	maxSize   int64
	logger    *zap.Logger
}

func NewDocumentService(repo DocumentRepo, blobs storage.BlobStore, extractor Extractor, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:      repo,
		blobs:     blobs,
		extractor: extractor,
		maxSize:   MaxDocumentSize,
		logger:    logger,
	}
}

type UploadInput struct {
	OwnerID  uint
	Name     string
	MimeType string
	Content  []byte
}

// Upload validates the payload, then runs the document through
// uploading → processing → (ready | error). Validation failures are rejected
// before any document row or blob exists. A failed document is terminal; a
// retry is a new upload with a fresh id.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*model.ProcessedDocument, error) {
	if !extract.Allowed(input.MimeType) {
		return nil, fmt.Errorf("%w: %s", ErrMimeNotAllowed, input.MimeType)
	}
	if len(input.Content) == 0 {
		return nil, ErrDocumentEmpty
	}
	if int64(len(input.Content)) > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrDocumentTooLarge, len(input.Content))
	}
	if err := extract.CheckSignature(input.MimeType, input.Content); err != nil {
		return nil, err
	}

	name := input.Name
	if name == "" {
		name = "documento"
	}

	doc := &model.ProcessedDocument{
		ID:       uuid.NewString(),
		OwnerID:  input.OwnerID,
		Name:     name,
		MimeType: input.MimeType,
		Size:     int64(len(input.Content)),
		Status:   model.DocumentStatusUploading,
	}
	if err := s.repo.Create(doc); err != nil {
		return nil, err
	}

	locator := storage.DocumentKey(input.OwnerID, doc.ID)
	if err := s.blobs.Put(ctx, locator, input.Content, input.MimeType); err != nil {
		// Storage failure before processing: error directly from uploading.
		s.failDocument(doc, "no se pudo almacenar el documento")
		s.logger.Error("store document blob failed", zap.String("document_id", doc.ID), zap.Error(err))
		return doc, ErrProcessingFailed
	}

	if err := s.repo.MarkProcessing(doc.ID, locator); err != nil {
		s.failDocument(doc, "error interno al procesar el documento")
		return doc, err
	}
	doc.Status = model.DocumentStatusProcessing
	doc.StorageLocator = locator

	text, err := s.extractor.Extract(ctx, input.MimeType, input.Content)
	if err != nil {
		s.failDocument(doc, extractionErrorMessage(input.MimeType))
		s.logger.Error("document extraction failed",
			zap.String("document_id", doc.ID),
			zap.String("mime_type", input.MimeType),
			zap.Error(err))
		return doc, ErrProcessingFailed
	}

	// Empty text is a valid result (e.g. a blank scanned page).
	if err := s.repo.MarkReady(doc.ID, text); err != nil {
		s.failDocument(doc, "error interno al guardar el texto extraído")
		return doc, err
	}
	doc.Status = model.DocumentStatusReady
	doc.ExtractedText = &text

	s.logger.Info("document processed",
		zap.String("document_id", doc.ID),
		zap.String("mime_type", input.MimeType),
		zap.Int("text_len", len(text)))
	return doc, nil
}

func (s *DocumentService) Get(ownerID uint, documentID string) (*model.ProcessedDocument, error) {
	doc, err := s.repo.GetByIDAndOwner(documentID, ownerID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) List(ownerID uint) ([]model.ProcessedDocument, error) {
	return s.repo.ListByOwner(ownerID)
}

func (s *DocumentService) failDocument(doc *model.ProcessedDocument, message string) {
	if err := s.repo.MarkError(doc.ID, message); err != nil {
		s.logger.Error("mark document error failed", zap.String("document_id", doc.ID), zap.Error(err))
		return
	}
	doc.Status = model.DocumentStatusError
	doc.ErrorMessage = &message
}

func extractionErrorMessage(mimeType string) string {
	switch mimeType {
	case extract.MimePDF:
		return "no se pudo extraer el texto del PDF"
	case extract.MimeDOCX:
		return "no se pudo extraer el texto del documento"
	default:
		return "no se pudo reconocer el texto de la imagen"
	}
}
