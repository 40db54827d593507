package entity

import (
	"time"

	"github.com/google/uuid"
)

type ResearchReport struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Company       string
	SessionID     string
	Sections      map[string]string
	SectionErrors map[string]string
	SelectedTasks []string
	SourcesUsed   int
	DegradedNote  string
	GeneratedAt   time.Time
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}
