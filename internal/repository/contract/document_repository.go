package contract

import (
	"context"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/repository/specification"
)

// ScoredDocument wraps a ResearchDocument with its similarity score
type ScoredDocument struct {
	Document   *entity.ResearchDocument
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.ResearchDocument) error
	// CreateBulk inserts all rows in one statement so a batch carries its
	// company tag atomically: either every chunk is attributed or none is.
	CreateBulk(ctx context.Context, docs []*entity.ResearchDocument) error
	DeleteByCompany(ctx context.Context, company string) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ResearchDocument, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	CountByCompany(ctx context.Context, company string) (int64, error)
	ListCompanies(ctx context.Context) ([]string, error)
	// SearchSimilarWithScore returns documents with their similarity scores,
	// filtered by company and threshold.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, company string, threshold float64) ([]*ScoredDocument, error)
}
