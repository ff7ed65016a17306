package model

import "time"

// SaveEvent records one successful write of a short link.
type SaveEvent struct {
	ID                string    `json:"id" gorm:"primaryKey;size:36"`
	Filename          string    `json:"filename" gorm:"size:255;index;not null"`
	Bucket            string    `json:"bucket" gorm:"size:255;not null"`
	Source            string    `json:"source" gorm:"size:16;not null"`
	Overwrite         bool      `json:"overwrite" gorm:"not null;default:false"`
	PasswordProtected bool      `json:"password_protected" gorm:"not null;default:false"`
	UserAgent         string    `json:"user_agent" gorm:"type:text"`
	Timestamp         time.Time `json:"timestamp" gorm:"index;not null"`
}

const (
	SaveStreamName     = "LINK_SAVES"
	SaveStreamSubject  = "links.saved"
	SaveConsumerName   = "save-journal"
	SaveStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
