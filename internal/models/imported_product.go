package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImportedProduct is the local snapshot of a product that was pushed to the
// shop's catalog. Re-imports look records up by SKU, then by title.
type ImportedProduct struct {
	ID                string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Shop              string    `json:"shop" gorm:"index:idx_imported_shop_sku;index:idx_imported_shop_title;not null"`
	SessionID         string    `json:"sessionId" gorm:"type:varchar(36);index"`
	ExternalID        string    `json:"externalId" gorm:"not null"`
	Title             string    `json:"title" gorm:"index:idx_imported_shop_title;not null"`
	DescriptionHTML   string    `json:"descriptionHtml" gorm:"type:text"`
	Vendor            string    `json:"vendor"`
	ProductType       string    `json:"productType"`
	Tags              TagList   `json:"tags"`
	Price             string    `json:"price" gorm:"type:varchar(32)"`
	CompareAtPrice    *string   `json:"compareAtPrice,omitempty" gorm:"type:varchar(32)"`
	SKU               string    `json:"sku" gorm:"index:idx_imported_shop_sku"`
	Barcode           *string   `json:"barcode,omitempty"`
	InventoryQuantity int       `json:"inventoryQuantity"`
	Status            string    `json:"status" gorm:"type:varchar(10)"`
	MarkupApplied     bool      `json:"markupApplied"`
	MarkupType        string    `json:"markupType,omitempty"`
	MarkupValue       string    `json:"markupValue,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (p *ImportedProduct) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
