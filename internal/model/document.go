package model

import "time"

// Document processing statuses. Transitions are forward-only:
// uploading → processing → (ready | error).
const (
	DocumentStatusUploading  = "uploading"
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusError      = "error"
)

type ProcessedDocument struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	OwnerID        uint   `gorm:"not null;index" json:"owner_id"`
	Name           string `gorm:"size:256;not null" json:"name"`
	MimeType       string `gorm:"size:128;not null" json:"mime_type"`
	Size           int64  `gorm:"not null" json:"size"`
	StorageLocator string `gorm:"size:512" json:"-"`
	Status         string `gorm:"size:16;not null;index" json:"status"`
	// Exactly one of ExtractedText or ErrorMessage is populated in a
	// terminal state: text on ready (possibly empty), message on error.
	ExtractedText *string   `gorm:"type:longtext" json:"extracted_text,omitempty"`
	ErrorMessage  *string   `gorm:"size:1024" json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
