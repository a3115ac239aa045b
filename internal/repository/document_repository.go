package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"legalchat/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.ProcessedDocument) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByIDAndOwner(id string, ownerID uint) (*model.ProcessedDocument, error) {
	var doc model.ProcessedDocument
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByOwner(ownerID uint) ([]model.ProcessedDocument, error) {
	var docs []model.ProcessedDocument
	if err := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

// advanceStatus moves a document forward through the status machine. The
// guard on the current status makes backward transitions impossible at the
// storage layer, not just by convention.
func (r *DocumentRepository) advanceStatus(id, from string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	res := r.db.Model(&model.ProcessedDocument{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update document status failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("document %s not in status %s", id, from)
	}
	return nil
}

func (r *DocumentRepository) MarkProcessing(id, storageLocator string) error {
	return r.advanceStatus(id, model.DocumentStatusUploading, map[string]interface{}{
		"status":          model.DocumentStatusProcessing,
		"storage_locator": storageLocator,
	})
}

// MarkReady persists the extracted text and the terminal status together.
// Empty text is valid.
func (r *DocumentRepository) MarkReady(id, extractedText string) error {
	return r.advanceStatus(id, model.DocumentStatusProcessing, map[string]interface{}{
		"status":         model.DocumentStatusReady,
		"extracted_text": extractedText,
	})
}

// MarkError records a terminal failure from either non-terminal status: a
// storage failure errors out of uploading, an extraction failure out of
// processing.
func (r *DocumentRepository) MarkError(id, errorMessage string) error {
	res := r.db.Model(&model.ProcessedDocument{}).
		Where("id = ? AND status IN ?", id, []string{model.DocumentStatusUploading, model.DocumentStatusProcessing}).
		Updates(map[string]interface{}{
			"status":        model.DocumentStatusError,
			"error_message": errorMessage,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("mark document error failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("document %s already terminal", id)
	}
	return nil
}
