package implementation

import (
	"context"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/mapper"
	"ai-research-be/internal/model"
	"ai-research-be/internal/repository/contract"
	"ai-research-be/internal/repository/scope"
	"ai-research-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ResearchDocumentMapper
}

func NewDocumentRepository(db *gorm.DB) contract.DocumentRepository {
	return &DocumentRepositoryImpl{
		db:     db,
		mapper: mapper.NewResearchDocumentMapper(),
	}
}

func (r *DocumentRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, doc *entity.ResearchDocument) error {
	m := r.mapper.ToModel(doc)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*doc = *r.mapper.ToEntity(m)
	return nil
}

func (r *DocumentRepositoryImpl) CreateBulk(ctx context.Context, docs []*entity.ResearchDocument) error {
	if len(docs) == 0 {
		return nil
	}
	models := r.mapper.ToModels(docs)
	// Single INSERT keeps the batch and its company attribution atomic.
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*docs[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *DocumentRepositoryImpl) DeleteByCompany(ctx context.Context, company string) error {
	return r.db.WithContext(ctx).Where("company = ?", company).Delete(&model.ResearchDocument{}).Error
}

func (r *DocumentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ResearchDocument, error) {
	var models []*model.ResearchDocument
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *DocumentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.ResearchDocument{}).Count(&count).Error
	return count, err
}

func (r *DocumentRepositoryImpl) CountByCompany(ctx context.Context, company string) (int64, error) {
	return r.Count(ctx, specification.ByCompany{Name: company})
}

func (r *DocumentRepositoryImpl) ListCompanies(ctx context.Context) ([]string, error) {
	var companies []string
	err := r.db.WithContext(ctx).
		Model(&model.ResearchDocument{}).
		Distinct("company").
		Order("company ASC").
		Pluck("company", &companies).Error
	return companies, err
}

// documentWithSimilarity is the scan target for the vector search query.
type documentWithSimilarity struct {
	model.ResearchDocument
	Similarity float64
}

func (r *DocumentRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, company string, threshold float64) ([]*contract.ScoredDocument, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []documentWithSimilarity

	// pgvector cosine distance: similarity = 1 - (embedding_value <=> query).
	// Requires normalized vectors on both sides.
	err := r.db.WithContext(ctx).
		Model(&model.ResearchDocument{}).
		Select("*, 1 - (embedding_value <=> ?) AS similarity", pgvector.NewVector(embedding)).
		Where("company = ?", company).
		Scopes(scope.ExcludeSoftDelete).
		Order(gorm.Expr("embedding_value <=> ?", pgvector.NewVector(embedding))).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	results := make([]*contract.ScoredDocument, 0, len(rows))
	for i := range rows {
		if rows[i].Similarity < threshold {
			continue
		}
		results = append(results, &contract.ScoredDocument{
			Document:   r.mapper.ToEntity(&rows[i].ResearchDocument),
			Similarity: rows[i].Similarity,
		})
	}
	return results, nil
}
