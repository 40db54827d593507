package quality

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/pkg/llm"
	"ai-research-be/pkg/store"
)

type fakeContentStore struct {
	docs        []store.Document
	searchCalls int
	upserted    []store.Document
}

func (f *fakeContentStore) Search(_ context.Context, _, _ string, limit int) ([]store.Document, error) {
	f.searchCalls++
	if len(f.docs) > limit {
		return f.docs[:limit], nil
	}
	return f.docs, nil
}

func (f *fakeContentStore) UpsertBulk(_ context.Context, company string, docs []store.Document) (int, error) {
	for _, d := range docs {
		d.Company = company
		f.upserted = append(f.upserted, d)
		f.docs = append(f.docs, d)
	}
	return len(docs), nil
}

type fakeJudge struct {
	answer string
	err    error
	calls  int
}

func (f *fakeJudge) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return f.answer, f.err
}
func (f *fakeJudge) Generate(context.Context, string, ...llm.Option) (string, error) {
	return f.answer, f.err
}
func (f *fakeJudge) Classify(context.Context, string) (string, error) {
	f.calls++
	return f.answer, f.err
}

type fakeEnricher struct {
	docs  []store.Document
	err   error
	calls int
}

func (f *fakeEnricher) Fetch(context.Context, string, []string) ([]store.Document, error) {
	f.calls++
	return f.docs, f.err
}

func nDocs(n int) []store.Document {
	docs := make([]store.Document, n)
	for i := range docs {
		docs[i] = store.Document{
			ID:      fmt.Sprintf("d%d", i),
			Content: fmt.Sprintf("document %d about the company and its business", i),
		}
	}
	return docs
}

func TestAssessSufficientCompany(t *testing.T) {
	// 12 unique docs, judge approves everything: quality 1.0 >= 0.6.
	cs := &fakeContentStore{docs: nDocs(12)}
	judge := &fakeJudge{answer: "TRUE"}

	g := NewGate(cs, judge, nil, DefaultThresholds(), logger.NopLogger{})
	a, err := g.Assess(context.Background(), "Acme")
	if err != nil {
		t.Fatal(err)
	}

	if !a.Sufficient {
		t.Errorf("12 unique docs at full quality must be sufficient: %+v", a)
	}
	// Each probe returns the same first ProbeLimit docs; dedupe collapses them.
	if a.UniqueDocCount != 10 {
		t.Errorf("unique = %d, want 10", a.UniqueDocCount)
	}
	if a.SampledCount != 5 {
		t.Errorf("sampled = %d, want 5", a.SampledCount)
	}
	if judge.calls != 5 {
		t.Errorf("judge calls = %d, want one per sampled doc", judge.calls)
	}
}

func TestAssessLowQualityInsufficient(t *testing.T) {
	// Plenty of docs but the judge rejects them all.
	cs := &fakeContentStore{docs: nDocs(12)}
	judge := &fakeJudge{answer: "FALSE"}

	g := NewGate(cs, judge, nil, DefaultThresholds(), logger.NopLogger{})
	a, err := g.Assess(context.Background(), "Acme")
	if err != nil {
		t.Fatal(err)
	}

	if a.Sufficient {
		t.Error("quality 0.0 must not pass the gate")
	}
	if a.QualityScore != 0 {
		t.Errorf("score = %f, want 0", a.QualityScore)
	}
}

func TestAssessJudgeErrorCountsAsRelevant(t *testing.T) {
	cs := &fakeContentStore{docs: nDocs(12)}
	judge := &fakeJudge{err: errors.New("judge down")}

	g := NewGate(cs, judge, nil, DefaultThresholds(), logger.NopLogger{})
	a, err := g.Assess(context.Background(), "Acme")
	if err != nil {
		t.Fatal(err)
	}

	if !a.Sufficient || a.QualityScore != 1.0 {
		t.Errorf("judge failures count as relevant, got %+v", a)
	}
}

func TestEnsureSufficientSkipsEnrichmentWhenAlreadyGood(t *testing.T) {
	cs := &fakeContentStore{docs: nDocs(12)}
	enricher := &fakeEnricher{docs: nDocs(3)}

	g := NewGate(cs, &fakeJudge{answer: "TRUE"}, enricher, DefaultThresholds(), logger.NopLogger{})
	a, ran, err := g.EnsureSufficient(context.Background(), "Acme", nil)
	if err != nil {
		t.Fatal(err)
	}

	if ran {
		t.Error("sufficient data must never trigger enrichment")
	}
	if enricher.calls != 0 {
		t.Errorf("enricher called %d times", enricher.calls)
	}
	if !a.Sufficient {
		t.Error("assessment flipped unexpectedly")
	}
}

func TestEnsureSufficientEnrichesOnceThenReassessesOnce(t *testing.T) {
	// 3 docs in the store; enrichment adds 20 more.
	cs := &fakeContentStore{docs: nDocs(3)}
	extra := make([]store.Document, 20)
	for i := range extra {
		extra[i] = store.Document{
			ID:      fmt.Sprintf("web%d", i),
			Content: fmt.Sprintf("freshly scraped page %d with business details", i),
		}
	}
	enricher := &fakeEnricher{docs: extra}

	g := NewGate(cs, &fakeJudge{answer: "TRUE"}, enricher, DefaultThresholds(), logger.NopLogger{})
	a, ran, err := g.EnsureSufficient(context.Background(), "Acme", nil)
	if err != nil {
		t.Fatal(err)
	}

	if !ran {
		t.Fatal("enrichment should have run")
	}
	if enricher.calls != 1 {
		t.Errorf("enrichment must run exactly once, ran %d times", enricher.calls)
	}
	if len(cs.upserted) != 20 {
		t.Errorf("upserted %d docs, want 20", len(cs.upserted))
	}
	// Two assessments of three probes each.
	if cs.searchCalls != 6 {
		t.Errorf("search calls = %d, want 6 (assess twice)", cs.searchCalls)
	}
	if !a.Sufficient {
		t.Errorf("post-enrichment assessment should pass: %+v", a)
	}
}

func TestEnsureSufficientEnrichmentFailureIsNonFatal(t *testing.T) {
	cs := &fakeContentStore{docs: nDocs(3)}
	enricher := &fakeEnricher{err: errors.New("network down")}

	g := NewGate(cs, &fakeJudge{answer: "TRUE"}, enricher, DefaultThresholds(), logger.NopLogger{})
	a, ran, err := g.EnsureSufficient(context.Background(), "Acme", nil)
	if err != nil {
		t.Fatal("enrichment failure must not surface as an error")
	}

	if ran {
		t.Error("failed fetch does not count as an enrichment round")
	}
	if a.Sufficient {
		t.Error("assessment must stay insufficient")
	}
	// Only the first assessment probed the store.
	if cs.searchCalls != 3 {
		t.Errorf("search calls = %d, want 3", cs.searchCalls)
	}
}
