package entity

import (
	"time"

	"github.com/google/uuid"
)

type ResearchDocument struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Company        string
	Title          string
	Content        string
	SourceType     string // "upload" | "web" | "manual"
	URL            string
	EmbeddingValue []float32
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
