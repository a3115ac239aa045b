package repository

import (
	"fmt"

	"gorm.io/gorm"

	"legalchat/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) CreateBatch(messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}
	if err := r.db.Create(&messages).Error; err != nil {
		return fmt.Errorf("create messages failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListByConversationID(conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	var messages []model.Message
	if err := r.db.Where("conversation_id = ?", conversationID).
		Preload("Attachments").
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) DeleteByConversationID(conversationID string) error {
	var ids []string
	if err := r.db.Model(&model.Message{}).Where("conversation_id = ?", conversationID).
		Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("list message ids failed: %w", err)
	}
	if len(ids) > 0 {
		if err := r.db.Where("message_id IN ?", ids).Delete(&model.Attachment{}).Error; err != nil {
			return fmt.Errorf("delete attachments failed: %w", err)
		}
	}
	if err := r.db.Where("conversation_id = ?", conversationID).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("delete messages failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) DeleteAll() error {
	if err := r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Attachment{}).Error; err != nil {
		return fmt.Errorf("delete all attachments failed: %w", err)
	}
	if err := r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("delete all messages failed: %w", err)
	}
	return nil
}
