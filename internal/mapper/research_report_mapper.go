package mapper

import (
	"encoding/json"
	"time"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/model"
)

type ResearchReportMapper struct{}

func NewResearchReportMapper() *ResearchReportMapper {
	return &ResearchReportMapper{}
}

func (m *ResearchReportMapper) ToEntity(e *model.ResearchReport) *entity.ResearchReport {
	if e == nil {
		return nil
	}

	var updatedAt *time.Time
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		updatedAt = &t
	}

	out := &entity.ResearchReport{
		Id:           e.Id,
		Company:      e.Company,
		SessionID:    e.SessionID,
		SourcesUsed:  e.SourcesUsed,
		DegradedNote: e.DegradedNote,
		GeneratedAt:  e.GeneratedAt,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    updatedAt,
	}

	// Corrupt JSON columns degrade to empty maps rather than failing a read.
	if e.Sections != "" {
		_ = json.Unmarshal([]byte(e.Sections), &out.Sections)
	}
	if e.SectionErrors != "" {
		_ = json.Unmarshal([]byte(e.SectionErrors), &out.SectionErrors)
	}
	if e.SelectedTasks != "" {
		_ = json.Unmarshal([]byte(e.SelectedTasks), &out.SelectedTasks)
	}
	return out
}

func (m *ResearchReportMapper) ToModel(e *entity.ResearchReport) *model.ResearchReport {
	if e == nil {
		return nil
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.ResearchReport{
		Id:            e.Id,
		Company:       e.Company,
		SessionID:     e.SessionID,
		Sections:      marshalOrEmpty(e.Sections),
		SectionErrors: marshalOrEmpty(e.SectionErrors),
		SelectedTasks: marshalOrEmpty(e.SelectedTasks),
		SourcesUsed:   e.SourcesUsed,
		DegradedNote:  e.DegradedNote,
		GeneratedAt:   e.GeneratedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}

func marshalOrEmpty(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
