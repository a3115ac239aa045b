package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"legalchat/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(conv *model.Conversation) error {
	if err := r.db.Create(conv).Error; err != nil {
		return fmt.Errorf("create conversation failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) List() ([]model.Conversation, error) {
	var convs []model.Conversation
	if err := r.db.Order("updated_at DESC").Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	return convs, nil
}

func (r *ConversationRepository) GetByID(id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.Where("id = ?", id).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation failed: %w", err)
	}
	return &conv, nil
}

func (r *ConversationRepository) Save(conv *model.Conversation) error {
	if err := r.db.Save(conv).Error; err != nil {
		return fmt.Errorf("save conversation failed: %w", err)
	}
	return nil
}

// UpdateTitleIfGeneration writes a title only when the stored title
// generation still matches expected; a stale write updates zero rows and
// reports false.
func (r *ConversationRepository) UpdateTitleIfGeneration(id, title string, expected int) (bool, error) {
	res := r.db.Model(&model.Conversation{}).
		Where("id = ? AND title_generation = ?", id, expected).
		Updates(map[string]interface{}{
			"title":            title,
			"title_generation": expected + 1,
		})
	if res.Error != nil {
		return false, fmt.Errorf("update conversation title failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *ConversationRepository) Delete(id string) error {
	if err := r.db.Where("id = ?", id).Delete(&model.Conversation{}).Error; err != nil {
		return fmt.Errorf("delete conversation failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) DeleteAll() error {
	if err := r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Conversation{}).Error; err != nil {
		return fmt.Errorf("delete all conversations failed: %w", err)
	}
	return nil
}
