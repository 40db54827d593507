package quality

import (
	"context"
	"fmt"
	"strings"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/pkg/llm"
	"ai-research-be/pkg/store"
)

// ContentStore is the slice of the document store the gate needs.
type ContentStore interface {
	Search(ctx context.Context, company, query string, limit int) ([]store.Document, error)
	UpsertBulk(ctx context.Context, company string, docs []store.Document) (int, error)
}

// Enricher pulls fresh external documents for a company.
type Enricher interface {
	Fetch(ctx context.Context, company string, queries []string) ([]store.Document, error)
}

// Thresholds are the sufficiency knobs. Product-tuned defaults live in config.
type Thresholds struct {
	MinUniqueDocs   int
	MinQualityScore float64
	SampleSize      int
	ProbeLimit      int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinUniqueDocs:   10,
		MinQualityScore: 0.6,
		SampleSize:      5,
		ProbeLimit:      10,
	}
}

// Assessment is the outcome of one sufficiency check. Assessments are never
// cached: the same store content always yields the same decision, and stale
// positives are worse than the extra probe cost.
type Assessment struct {
	Company         string  `json:"company"`
	DocCount        int     `json:"doc_count"`
	UniqueDocCount  int     `json:"unique_doc_count"`
	SampledCount    int     `json:"sampled_count"`
	PositiveSamples int     `json:"positive_samples"`
	QualityScore    float64 `json:"quality_score"`
	Sufficient      bool    `json:"sufficient"`
}

// Gate decides whether stored content for a company is good enough to
// dispatch analysis tasks on.
type Gate struct {
	contentStore ContentStore
	judge        llm.LLMProvider
	enricher     Enricher
	thresholds   Thresholds
	logger       logger.ILogger
}

func NewGate(cs ContentStore, judge llm.LLMProvider, enricher Enricher, t Thresholds, log logger.ILogger) *Gate {
	if t.MinUniqueDocs <= 0 {
		t = DefaultThresholds()
	}
	return &Gate{
		contentStore: cs,
		judge:        judge,
		enricher:     enricher,
		thresholds:   t,
		logger:       log,
	}
}

// probeQueries are the three topical angles used to pull a representative
// slice of what the store knows about a company.
func probeQueries(company string) []string {
	return []string{
		company + " company overview",
		company + " products services",
		company + " business model",
	}
}

// Assess probes the store and scores a sample of the results.
func (g *Gate) Assess(ctx context.Context, company string) (*Assessment, error) {
	var hits []store.Document
	for _, q := range probeQueries(company) {
		docs, err := g.contentStore.Search(ctx, company, q, g.thresholds.ProbeLimit)
		if err != nil {
			return nil, fmt.Errorf("quality probe %q: %w", q, err)
		}
		hits = append(hits, docs...)
	}

	unique := store.Dedupe(hits)

	a := &Assessment{
		Company:        company,
		DocCount:       len(hits),
		UniqueDocCount: len(unique),
	}

	sample := unique
	if len(sample) > g.thresholds.SampleSize {
		sample = sample[:g.thresholds.SampleSize]
	}
	a.SampledCount = len(sample)

	for _, doc := range sample {
		if g.judgeRelevance(ctx, company, doc) {
			a.PositiveSamples++
		}
	}
	if a.SampledCount > 0 {
		a.QualityScore = float64(a.PositiveSamples) / float64(a.SampledCount)
	}

	a.Sufficient = a.UniqueDocCount >= g.thresholds.MinUniqueDocs &&
		a.QualityScore >= g.thresholds.MinQualityScore

	g.logger.Info("QualityGate", "Assessment complete", map[string]interface{}{
		"company":     company,
		"unique_docs": a.UniqueDocCount,
		"score":       a.QualityScore,
		"sufficient":  a.Sufficient,
	})
	return a, nil
}

// judgeRelevance asks the model for a binary relevance call. A judge failure
// counts as relevant: a flaky judge must not starve the pipeline of data it
// already has.
func (g *Gate) judgeRelevance(ctx context.Context, company string, doc store.Document) bool {
	content := doc.Content
	if len(content) > 1500 {
		content = content[:1500]
	}
	prompt := fmt.Sprintf(
		"Does the following document contain meaningful business information about %s?\n"+
			"Answer with exactly one word: TRUE or FALSE.\n\n%s",
		company, content,
	)

	answer, err := g.judge.Classify(ctx, prompt)
	if err != nil {
		g.logger.Warn("QualityGate", "Relevance judge failed, counting sample as relevant", map[string]interface{}{
			"company": company, "error": err.Error(),
		})
		return true
	}
	return !strings.Contains(strings.ToUpper(answer), "FALSE")
}

// EnsureSufficient assesses the company and, when the data falls short, runs
// the enrichment pipeline exactly once and re-assesses exactly once. There is
// no enrichment loop: a company that stays insufficient after one round is
// reported as such and the caller decides whether to proceed degraded.
//
// The returned bool reports whether enrichment ran.
func (g *Gate) EnsureSufficient(ctx context.Context, company string, extraQueries []string) (*Assessment, bool, error) {
	first, err := g.Assess(ctx, company)
	if err != nil {
		return nil, false, err
	}
	if first.Sufficient || g.enricher == nil {
		return first, false, nil
	}

	docs, err := g.enricher.Fetch(ctx, company, extraQueries)
	if err != nil {
		// Non-fatal: the round proceeds on whatever the store already holds.
		g.logger.Warn("QualityGate", "Enrichment failed, keeping first assessment", map[string]interface{}{
			"company": company, "error": err.Error(),
		})
		return first, false, nil
	}

	if len(docs) > 0 {
		if _, err := g.contentStore.UpsertBulk(ctx, company, docs); err != nil {
			g.logger.Warn("QualityGate", "Enrichment upsert failed", map[string]interface{}{
				"company": company, "error": err.Error(),
			})
			return first, true, nil
		}
	}

	second, err := g.Assess(ctx, company)
	if err != nil {
		return first, true, err
	}
	return second, true, nil
}
