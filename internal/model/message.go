package model

import "time"

type Message struct {
	ID             string       `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string       `gorm:"size:36;not null;index" json:"conversation_id"`
	Role           string       `gorm:"size:16;not null" json:"role"`
	Content        string       `gorm:"type:text;not null" json:"content"`
	Attachments    []Attachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Attachment is owned by the message it belongs to; it has no independent
// lifecycle.
type Attachment struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	MessageID string `gorm:"size:36;not null;index" json:"-"`
	Name      string `gorm:"size:256;not null" json:"name"`
	MimeType  string `gorm:"size:128;not null" json:"mime_type"`
	Data      []byte `gorm:"type:mediumblob" json:"data,omitempty"`
}
