package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ImportSession struct {
	ID               string        `json:"id" gorm:"type:varchar(36);primaryKey"`
	Shop             string        `json:"shop" gorm:"index;not null"`
	Status           SessionStatus `json:"status" gorm:"type:varchar(20);not null;default:running"`
	DataSource       string        `json:"dataSource" gorm:"type:varchar(10)"`
	TotalProducts    int           `json:"totalProducts" gorm:"not null;default:0"`
	ImportedProducts int           `json:"importedProducts" gorm:"not null;default:0"`
	FailedProducts   int           `json:"failedProducts" gorm:"not null;default:0"`
	LastError        *string       `json:"lastError,omitempty"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

type SessionStatus string

const (
	SessionStatusRunning    SessionStatus = "running"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusCompleted  SessionStatus = "completed"
)

// Done reports whether the session has been finalized.
func (s *ImportSession) Done() bool {
	return s.Status == SessionStatusCompleted
}

func (s *ImportSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
