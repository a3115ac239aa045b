package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"legalchat/internal/model"
)

type fakeDocumentRepo struct {
	docs     map[string]*model.ProcessedDocument
	statuses map[string][]string
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{
		docs:     make(map[string]*model.ProcessedDocument),
		statuses: make(map[string][]string),
	}
}

func (r *fakeDocumentRepo) Create(doc *model.ProcessedDocument) error {
	stored := *doc
	r.docs[doc.ID] = &stored
	r.statuses[doc.ID] = append(r.statuses[doc.ID], doc.Status)
	return nil
}

func (r *fakeDocumentRepo) GetByIDAndOwner(id string, ownerID uint) (*model.ProcessedDocument, error) {
	doc, ok := r.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeDocumentRepo) ListByOwner(ownerID uint) ([]model.ProcessedDocument, error) {
	var out []model.ProcessedDocument
	for _, doc := range r.docs {
		if doc.OwnerID == ownerID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (r *fakeDocumentRepo) MarkProcessing(id, storageLocator string) error {
	doc := r.docs[id]
	if doc.Status != model.DocumentStatusUploading {
		return errors.New("invalid status transition")
	}
	doc.Status = model.DocumentStatusProcessing
	doc.StorageLocator = storageLocator
	r.statuses[id] = append(r.statuses[id], doc.Status)
	return nil
}

func (r *fakeDocumentRepo) MarkReady(id, extractedText string) error {
	doc := r.docs[id]
	if doc.Status != model.DocumentStatusProcessing {
		return errors.New("invalid status transition")
	}
	doc.Status = model.DocumentStatusReady
	doc.ExtractedText = &extractedText
	r.statuses[id] = append(r.statuses[id], doc.Status)
	return nil
}

func (r *fakeDocumentRepo) MarkError(id, errorMessage string) error {
	doc := r.docs[id]
	if doc.Status != model.DocumentStatusUploading && doc.Status != model.DocumentStatusProcessing {
		return errors.New("invalid status transition")
	}
	doc.Status = model.DocumentStatusError
	doc.ErrorMessage = &errorMessage
	r.statuses[id] = append(r.statuses[id], doc.Status)
	return nil
}

type fakeBlobStore struct {
	puts   map[string][]byte
	putErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{puts: make(map[string][]byte)}
}

func (s *fakeBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.puts[key] = data
	return nil
}

func (s *fakeBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.puts[key], nil
}

func (s *fakeBlobStore) Remove(ctx context.Context, key string) error {
	delete(s.puts, key)
	return nil
}

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (e *fakeExtractor) Extract(ctx context.Context, mimeType string, data []byte) (string, error) {
	e.calls++
	if e.err != nil {
		return "", e.err
	}
	return e.text, nil
}

func pdfPayload(size int) []byte {
	data := make([]byte, size)
	copy(data, "%PDF-1.7")
	return data
}

func TestUploadHappyPath(t *testing.T) {
	repo := newFakeDocumentRepo()
	blobs := newFakeBlobStore()
	extractor := &fakeExtractor{text: "contrato de arrendamiento"}
	svc := NewDocumentService(repo, blobs, extractor, nil)

	doc, err := svc.Upload(context.Background(), UploadInput{
		OwnerID:  7,
		Name:     "contrato.pdf",
		MimeType: "application/pdf",
		Content:  pdfPayload(512),
	})
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusReady, doc.Status)
	require.NotNil(t, doc.ExtractedText)
	require.Equal(t, "contrato de arrendamiento", *doc.ExtractedText)
	require.Nil(t, doc.ErrorMessage)

	// Forward-only status history.
	require.Equal(t, []string{
		model.DocumentStatusUploading,
		model.DocumentStatusProcessing,
		model.DocumentStatusReady,
	}, repo.statuses[doc.ID])
	require.Len(t, blobs.puts, 1)
}

func TestUploadRejectsUnsupportedMime(t *testing.T) {
	repo := newFakeDocumentRepo()
	blobs := newFakeBlobStore()
	svc := NewDocumentService(repo, blobs, &fakeExtractor{}, nil)

	_, err := svc.Upload(context.Background(), UploadInput{
		OwnerID:  1,
		Name:     "nota.txt",
		MimeType: "text/plain",
		Content:  []byte("hola"),
	})
	require.ErrorIs(t, err, ErrMimeNotAllowed)
	require.Empty(t, repo.docs, "no row before validation passes")
	require.Empty(t, blobs.puts)
}

func TestUploadRejectsSignatureMismatchBeforeAnyState(t *testing.T) {
	repo := newFakeDocumentRepo()
	blobs := newFakeBlobStore()
	extractor := &fakeExtractor{}
	svc := NewDocumentService(repo, blobs, extractor, nil)

	// Ten bytes of plain text declared as PDF.
	_, err := svc.Upload(context.Background(), UploadInput{
		OwnerID:  1,
		Name:     "falso.pdf",
		MimeType: "application/pdf",
		Content:  []byte("hola mundo"),
	})
	require.ErrorIs(t, err, ErrSignatureMismatch)
	require.Empty(t, repo.docs)
	require.Empty(t, blobs.puts)
	require.Zero(t, extractor.calls)
}

func TestUploadRejectsEmptyDocument(t *testing.T) {
	svc := NewDocumentService(newFakeDocumentRepo(), newFakeBlobStore(), &fakeExtractor{}, nil)

	_, err := svc.Upload(context.Background(), UploadInput{
		OwnerID:  1,
		Name:     "vacio.pdf",
		MimeType: "application/pdf",
		Content:  nil,
	})
	require.ErrorIs(t, err, ErrDocumentEmpty)
}

func TestUploadRejectsOversizedDocument(t *testing.T) {
	repo := newFakeDocumentRepo()
	svc := NewDocumentService(repo, newFakeBlobStore(), &fakeExtractor{}, nil)

	_, err := svc.Upload(context.Background(), UploadInput{
		OwnerID:  1,
		Name:     "enorme.pdf",
		MimeType: "application/pdf",
		Content:  pdfPayload(MaxDocumentSize + 1),
	})
	require.ErrorIs(t, err, ErrDocumentTooLarge)
	require.Empty(t, repo.docs)
}

func TestUploadExtractionFailureIsTerminalError(t *testing.T) {
	repo := newFakeDocumentRepo()
	blobs := newFakeBlobStore()
	extractor := &fakeExtractor{err: errors.New("pdf corrupto")}
	svc := NewDocumentService(repo, blobs, extractor, nil)

	doc, err := svc.Upload(context.Background(), UploadInput{
		OwnerID:  3,
		Name:     "roto.pdf",
		MimeType: "application/pdf",
		Content:  pdfPayload(128),
	})
	require.ErrorIs(t, err, ErrProcessingFailed)
	require.Equal(t, model.DocumentStatusError, doc.Status)
	require.NotNil(t, doc.ErrorMessage)
	require.Nil(t, doc.ExtractedText)

	require.Equal(t, []string{
		model.DocumentStatusUploading,
		model.DocumentStatusProcessing,
		model.DocumentStatusError,
	}, repo.statuses[doc.ID])
}

func TestUploadStorageFailureErrorsFromUploading(t *testing.T) {
	repo := newFakeDocumentRepo()
	blobs := newFakeBlobStore()
	blobs.putErr = errors.New("minio down")
	extractor := &fakeExtractor{}
	svc := NewDocumentService(repo, blobs, extractor, nil)

	doc, err := svc.Upload(context.Background(), UploadInput{
		OwnerID:  3,
		Name:     "doc.pdf",
		MimeType: "application/pdf",
		Content:  pdfPayload(128),
	})
	require.ErrorIs(t, err, ErrProcessingFailed)
	require.Equal(t, model.DocumentStatusError, doc.Status)
	require.Zero(t, extractor.calls)

	require.Equal(t, []string{
		model.DocumentStatusUploading,
		model.DocumentStatusError,
	}, repo.statuses[doc.ID])
}

func TestUploadEmptyExtractedTextIsReady(t *testing.T) {
	repo := newFakeDocumentRepo()
	svc := NewDocumentService(repo, newFakeBlobStore(), &fakeExtractor{text: ""}, nil)

	doc, err := svc.Upload(context.Background(), UploadInput{
		OwnerID:  1,
		Name:     "en-blanco.pdf",
		MimeType: "application/pdf",
		Content:  pdfPayload(128),
	})
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusReady, doc.Status)
	require.NotNil(t, doc.ExtractedText)
	require.Empty(t, *doc.ExtractedText)
}

func TestGetScopedToOwner(t *testing.T) {
	repo := newFakeDocumentRepo()
	svc := NewDocumentService(repo, newFakeBlobStore(), &fakeExtractor{text: "x"}, nil)

	doc, err := svc.Upload(context.Background(), UploadInput{
		OwnerID:  1,
		Name:     "privado.pdf",
		MimeType: "application/pdf",
		Content:  pdfPayload(128),
	})
	require.NoError(t, err)

	found, err := svc.Get(1, doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.ID, found.ID)

	_, err = svc.Get(2, doc.ID)
	require.ErrorIs(t, err, ErrDocumentNotFound)
}
