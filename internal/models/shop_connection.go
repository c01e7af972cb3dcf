package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShopConnection holds the Admin API credentials for one installed shop.
type ShopConnection struct {
	ID           string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	Shop         string     `json:"shop" gorm:"uniqueIndex;not null"`
	AccessToken  string     `json:"-" gorm:"not null"`
	Scope        string     `json:"scope"`
	LastImportAt *time.Time `json:"lastImportAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (c *ShopConnection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
