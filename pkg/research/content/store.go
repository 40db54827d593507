package content

import (
	"context"
	"fmt"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository/unitofwork"
	"ai-research-be/pkg/embedding"
	"ai-research-be/pkg/store"

	"github.com/google/uuid"
)

// Store is the company-scoped document store: vector search in, tagged
// document batches out. It glues the embedding provider to the pgvector
// repository so callers only ever see store.Document values.
type Store struct {
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	logger            logger.ILogger
}

func NewStore(uowFactory unitofwork.RepositoryFactory, embeddingProvider embedding.EmbeddingProvider, log logger.ILogger) *Store {
	return &Store{
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		logger:            log,
	}
}

// Search embeds the query and returns the nearest documents tagged with the
// company, best match first.
func (s *Store) Search(ctx context.Context, company, query string, limit int) ([]store.Document, error) {
	embeddingRes, err := s.embeddingProvider.Generate(query, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.DocumentRepository().SearchSimilarWithScore(
		ctx,
		embeddingRes.Embedding.Values,
		limit,
		company,
		0.0,
	)
	if err != nil {
		s.logger.Error("ContentStore", "Vector search failed", map[string]interface{}{
			"company": company, "error": err.Error(),
		})
		return nil, err
	}

	docs := make([]store.Document, 0, len(scored))
	for _, res := range scored {
		docs = append(docs, store.Document{
			ID:         res.Document.Id.String(),
			Company:    res.Document.Company,
			Title:      res.Document.Title,
			Content:    res.Document.Content,
			Score:      float32(res.Similarity),
			SourceType: res.Document.SourceType,
			URL:        res.Document.URL,
		})
	}
	return docs, nil
}

// UpsertBulk embeds and stores a batch of documents under one company tag.
// Documents whose embedding fails are skipped; the batch itself is written in
// a single insert so attribution is all-or-nothing. Returns how many rows
// were written.
func (s *Store) UpsertBulk(ctx context.Context, company string, docs []store.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	entities := make([]*entity.ResearchDocument, 0, len(docs))
	for _, d := range docs {
		embeddingRes, err := s.embeddingProvider.Generate(d.Content, "RETRIEVAL_DOCUMENT")
		if err != nil {
			s.logger.Warn("ContentStore", "Skipping document, embedding failed", map[string]interface{}{
				"title": d.Title, "error": err.Error(),
			})
			continue
		}

		sourceType := d.SourceType
		if sourceType == "" {
			sourceType = "manual"
		}
		entities = append(entities, &entity.ResearchDocument{
			Id:             uuid.New(),
			Company:        company,
			Title:          d.Title,
			Content:        d.Content,
			SourceType:     sourceType,
			URL:            d.URL,
			EmbeddingValue: embeddingRes.Embedding.Values,
		})
	}

	if len(entities) == 0 {
		return 0, fmt.Errorf("no documents could be embedded")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DocumentRepository().CreateBulk(ctx, entities); err != nil {
		return 0, fmt.Errorf("bulk insert failed: %w", err)
	}

	s.logger.Info("ContentStore", "Documents stored", map[string]interface{}{
		"company": company, "written": len(entities), "skipped": len(docs) - len(entities),
	})
	return len(entities), nil
}

func (s *Store) CountByCompany(ctx context.Context, company string) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.DocumentRepository().CountByCompany(ctx, company)
}

func (s *Store) ListCompanies(ctx context.Context) ([]string, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.DocumentRepository().ListCompanies(ctx)
}

// DeleteCompany removes a company's documents and its stored report in one
// transaction.
func (s *Store) DeleteCompany(ctx context.Context, company string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	if err := uow.DocumentRepository().DeleteByCompany(ctx, company); err != nil {
		uow.Rollback()
		return err
	}
	if err := uow.ReportRepository().DeleteByCompany(ctx, company); err != nil {
		uow.Rollback()
		return err
	}
	return uow.Commit()
}
