package mapper

import (
	"time"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type ResearchDocumentMapper struct{}

func NewResearchDocumentMapper() *ResearchDocumentMapper {
	return &ResearchDocumentMapper{}
}

func (m *ResearchDocumentMapper) ToEntity(e *model.ResearchDocument) *entity.ResearchDocument {
	if e == nil {
		return nil
	}

	var deletedAt *time.Time
	if e.DeletedAt.Valid {
		t := e.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		updatedAt = &t
	}

	return &entity.ResearchDocument{
		Id:             e.Id,
		Company:        e.Company,
		Title:          e.Title,
		Content:        e.Content,
		SourceType:     e.SourceType,
		URL:            e.URL,
		EmbeddingValue: e.EmbeddingValue.Slice(),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      e.DeletedAt.Valid,
	}
}

func (m *ResearchDocumentMapper) ToModel(e *entity.ResearchDocument) *model.ResearchDocument {
	if e == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if e.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *e.DeletedAt, Valid: true}
	} else if e.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.ResearchDocument{
		Id:             e.Id,
		Company:        e.Company,
		Title:          e.Title,
		Content:        e.Content,
		SourceType:     e.SourceType,
		URL:            e.URL,
		EmbeddingValue: pgvector.NewVector(e.EmbeddingValue),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

func (m *ResearchDocumentMapper) ToEntities(docs []*model.ResearchDocument) []*entity.ResearchDocument {
	entities := make([]*entity.ResearchDocument, len(docs))
	for i, d := range docs {
		entities[i] = m.ToEntity(d)
	}
	return entities
}

func (m *ResearchDocumentMapper) ToModels(docs []*entity.ResearchDocument) []*model.ResearchDocument {
	models := make([]*model.ResearchDocument, len(docs))
	for i, d := range docs {
		models[i] = m.ToModel(d)
	}
	return models
}
