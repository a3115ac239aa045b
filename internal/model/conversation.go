package model

import "time"

type Conversation struct {
	ID    string `gorm:"primaryKey;size:36" json:"id"`
	Title string `gorm:"size:256;not null" json:"title"`
	// TitleGeneration increases with every title write; asynchronous title
	// upgrades carry the generation they observed and stale writes are dropped.
	TitleGeneration int       `gorm:"not null;default:0" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
