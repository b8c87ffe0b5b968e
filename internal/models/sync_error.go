package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncError keeps a free-text record of a failed sync attempt for manual inspection.
type SyncError struct {
	ID           string     `json:"id" gorm:"type:uuid;primaryKey"`
	ConnectionID string     `json:"connection_id" gorm:"type:uuid;index;not null"`
	Operation    string     `json:"operation" gorm:"not null"`
	Reference    string     `json:"reference"`
	Message      string     `json:"message" gorm:"type:text;not null"`
	Resolved     bool       `json:"resolved" gorm:"default:false"`
	ResolvedAt   *time.Time `json:"resolved_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (e *SyncError) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
