package model

import (
	"time"

	"github.com/google/uuid"
)

type ResearchReport struct {
	Id      uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Company string    `gorm:"type:varchar(255);not null;uniqueIndex"`

	// Last session that touched this report.
	SessionID string `gorm:"type:varchar(64);index"`

	// JSON-serialized maps; the mapper owns the encoding.
	Sections      string `gorm:"type:jsonb"`
	SectionErrors string `gorm:"type:jsonb"`
	SelectedTasks string `gorm:"type:jsonb"`

	SourcesUsed  int       `gorm:"default:0"`
	DegradedNote string    `gorm:"type:text"`
	GeneratedAt  time.Time `gorm:""`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (ResearchReport) TableName() string {
	return "research_reports"
}
