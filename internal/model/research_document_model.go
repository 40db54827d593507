package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type ResearchDocument struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Company        string          `gorm:"type:varchar(255);not null;index"`
	Title          string          `gorm:"type:text"`
	Content        string          `gorm:"type:text"`
	SourceType     string          `gorm:"type:varchar(32);default:'upload'"`
	URL            string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(768)"` // text-embedding-004 / nomic-embed-text dimension
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt  `gorm:"index"`
}

func (ResearchDocument) TableName() string {
	return "research_documents"
}
