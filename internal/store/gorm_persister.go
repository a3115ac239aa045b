package store

import (
	"legalchat/internal/model"
	"legalchat/internal/repository"
)

// GormPersister backs the store with the gorm repository layer.
type GormPersister struct {
	convRepo *repository.ConversationRepository
	msgRepo  *repository.MessageRepository
}

func NewGormPersister(convRepo *repository.ConversationRepository, msgRepo *repository.MessageRepository) *GormPersister {
	return &GormPersister{convRepo: convRepo, msgRepo: msgRepo}
}

func (p *GormPersister) Load() ([]model.Conversation, map[string][]model.Message, error) {
	convs, err := p.convRepo.List()
	if err != nil {
		return nil, nil, err
	}
	messages := make(map[string][]model.Message, len(convs))
	for _, c := range convs {
		msgs, err := p.msgRepo.ListByConversationID(c.ID, 0)
		if err != nil {
			return nil, nil, err
		}
		messages[c.ID] = msgs
	}
	return convs, messages, nil
}

func (p *GormPersister) CreateConversation(conv *model.Conversation) error {
	return p.convRepo.Create(conv)
}

func (p *GormPersister) SaveConversation(conv *model.Conversation) error {
	return p.convRepo.Save(conv)
}

func (p *GormPersister) AppendMessage(conv *model.Conversation, msg *model.Message) error {
	if err := p.msgRepo.Create(msg); err != nil {
		return err
	}
	return p.convRepo.Save(conv)
}

func (p *GormPersister) UpdateTitleIfGeneration(id, title string, expected int) (bool, error) {
	return p.convRepo.UpdateTitleIfGeneration(id, title, expected)
}

func (p *GormPersister) DeleteConversation(id string) error {
	if err := p.msgRepo.DeleteByConversationID(id); err != nil {
		return err
	}
	return p.convRepo.Delete(id)
}

func (p *GormPersister) RestoreConversation(conv *model.Conversation, messages []model.Message) error {
	if err := p.convRepo.Create(conv); err != nil {
		return err
	}
	return p.msgRepo.CreateBatch(messages)
}

func (p *GormPersister) Clear() error {
	if err := p.msgRepo.DeleteAll(); err != nil {
		return err
	}
	return p.convRepo.DeleteAll()
}
