package implementation

import (
	"context"
	"errors"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/mapper"
	"ai-research-be/internal/model"
	"ai-research-be/internal/repository/contract"
	"ai-research-be/internal/repository/scope"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReportRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ResearchReportMapper
}

func NewReportRepository(db *gorm.DB) contract.ReportRepository {
	return &ReportRepositoryImpl{
		db:     db,
		mapper: mapper.NewResearchReportMapper(),
	}
}

func (r *ReportRepositoryImpl) Upsert(ctx context.Context, report *entity.ResearchReport) error {
	m := r.mapper.ToModel(report)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "company"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"session_id", "sections", "section_errors", "selected_tasks",
				"sources_used", "degraded_note", "generated_at", "updated_at",
			}),
		}).
		Create(m).Error
	if err != nil {
		return err
	}
	*report = *r.mapper.ToEntity(m)
	return nil
}

func (r *ReportRepositoryImpl) FindByCompany(ctx context.Context, company string) (*entity.ResearchReport, error) {
	var m model.ResearchReport
	err := r.db.WithContext(ctx).Where("company = ?", company).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ReportRepositoryImpl) FindBySession(ctx context.Context, sessionID string) ([]*entity.ResearchReport, error) {
	var models []*model.ResearchReport
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Scopes(scope.OrderByCreatedDesc).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entities := make([]*entity.ResearchReport, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *ReportRepositoryImpl) DeleteByCompany(ctx context.Context, company string) error {
	return r.db.WithContext(ctx).Where("company = ?", company).Delete(&model.ResearchReport{}).Error
}
