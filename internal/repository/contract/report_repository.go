package contract

import (
	"context"

	"ai-research-be/internal/entity"
)

type ReportRepository interface {
	// Upsert writes the report keyed by company, replacing any previous row.
	Upsert(ctx context.Context, report *entity.ResearchReport) error
	FindByCompany(ctx context.Context, company string) (*entity.ResearchReport, error)
	FindBySession(ctx context.Context, sessionID string) ([]*entity.ResearchReport, error)
	DeleteByCompany(ctx context.Context, company string) error
}
