package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProkipConfig is the per-user bearer token and location for the Prokip API.
type ProkipConfig struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID     string    `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	Token      string    `json:"token,omitempty" gorm:"type:text;not null"`
	LocationID int       `json:"location_id" gorm:"not null"`
	BaseURL    string    `json:"base_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (ProkipConfig) TableName() string {
	return "prokip_configs"
}

func (p *ProkipConfig) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
