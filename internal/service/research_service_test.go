package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"ai-research-be/internal/dto"
	"ai-research-be/internal/entity"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository/contract"
	"ai-research-be/internal/repository/memory"
	"ai-research-be/internal/repository/unitofwork"
	"ai-research-be/pkg/llm"
	"ai-research-be/pkg/progress"
	"ai-research-be/pkg/research"
	"ai-research-be/pkg/research/dispatch"
	"ai-research-be/pkg/research/intent"
	"ai-research-be/pkg/research/quality"
	"ai-research-be/pkg/research/task"
	"ai-research-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeClassifier struct {
	intent *intent.Intent
}

func (f *fakeClassifier) Classify(_ context.Context, _ string, _ intent.SessionSnapshot) *intent.Intent {
	cp := *f.intent
	return &cp
}

type fakeGate struct {
	assessments map[string]*quality.Assessment
	errs        map[string]error
	calls       []string
}

func (f *fakeGate) EnsureSufficient(_ context.Context, company string, _ []string) (*quality.Assessment, bool, error) {
	f.calls = append(f.calls, company)
	if err := f.errs[company]; err != nil {
		return nil, false, err
	}
	if a, ok := f.assessments[company]; ok {
		return a, false, nil
	}
	return &quality.Assessment{Company: company, UniqueDocCount: 12, QualityScore: 0.8, Sufficient: true}, false, nil
}

type fakeDispatcher struct {
	failing     map[task.Name]error
	ran         []task.Name
	lastContext task.Context
}

func (f *fakeDispatcher) Run(_ context.Context, names []task.Name, tc task.Context, onDone func(task.Name, dispatch.Result)) map[task.Name]dispatch.Result {
	f.lastContext = tc
	out := make(map[task.Name]dispatch.Result, len(names))
	for _, name := range names {
		f.ran = append(f.ran, name)
		res := dispatch.Result{Task: name, Attempts: 1}
		if err := f.failing[name]; err != nil {
			res.Err = err
		} else {
			res.Output = "analysis for " + string(name)
		}
		out[name] = res
		if onDone != nil {
			onDone(name, res)
		}
	}
	return out
}

type fakeContentStore struct {
	docs      []store.Document
	byCompany map[string][]store.Document
	searchErr error
	upserted  int
	deleted   []string
	companies []string
}

func (f *fakeContentStore) Search(_ context.Context, company, _ string, _ int) ([]store.Document, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if docs, ok := f.byCompany[company]; ok {
		return docs, nil
	}
	return f.docs, nil
}

func (f *fakeContentStore) UpsertBulk(_ context.Context, _ string, docs []store.Document) (int, error) {
	f.upserted += len(docs)
	return len(docs), nil
}

func (f *fakeContentStore) ListCompanies(_ context.Context) ([]string, error) {
	return f.companies, nil
}

func (f *fakeContentStore) DeleteCompany(_ context.Context, company string) error {
	f.deleted = append(f.deleted, company)
	return nil
}

type fakeChatLLM struct {
	reply string
	err   error
	calls int
}

func (f *fakeChatLLM) Chat(_ context.Context, _ []llm.Message, _ ...llm.Option) (string, error) {
	f.calls++
	return f.reply, f.err
}

func (f *fakeChatLLM) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	return "generated: " + prompt[:20], nil
}

func (f *fakeChatLLM) Classify(_ context.Context, _ string) (string, error) {
	return "TRUE", nil
}

type fakeReportRepo struct {
	byCompany map[string]*entity.ResearchReport
	upserts   int
}

func (f *fakeReportRepo) Upsert(_ context.Context, r *entity.ResearchReport) error {
	f.upserts++
	f.byCompany[r.Company] = r
	return nil
}

func (f *fakeReportRepo) FindByCompany(_ context.Context, company string) (*entity.ResearchReport, error) {
	return f.byCompany[company], nil
}

func (f *fakeReportRepo) FindBySession(_ context.Context, _ string) ([]*entity.ResearchReport, error) {
	return nil, nil
}

func (f *fakeReportRepo) DeleteByCompany(_ context.Context, company string) error {
	delete(f.byCompany, company)
	return nil
}

type fakeUow struct{ reports *fakeReportRepo }

func (f *fakeUow) Begin(context.Context) error                      { return nil }
func (f *fakeUow) Commit() error                                    { return nil }
func (f *fakeUow) Rollback() error                                  { return nil }
func (f *fakeUow) DocumentRepository() contract.DocumentRepository  { return nil }
func (f *fakeUow) ReportRepository() contract.ReportRepository      { return f.reports }

type fakeUowFactory struct{ uow *fakeUow }

func (f *fakeUowFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return f.uow }

type recordingSink struct {
	mu       sync.Mutex
	steps    []string
	percents []int
}

func (r *recordingSink) Emit(_, step, _ string, percent int, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
	r.percents = append(r.percents, percent)
}

// concurrentDispatcher completes every task on its own goroutine, the way the
// worker pool does in production.
type concurrentDispatcher struct{}

func (concurrentDispatcher) Run(_ context.Context, names []task.Name, _ task.Context, onDone func(task.Name, dispatch.Result)) map[task.Name]dispatch.Result {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[task.Name]dispatch.Result, len(names))
	)
	for _, name := range names {
		wg.Add(1)
		go func(name task.Name) {
			defer wg.Done()
			res := dispatch.Result{Task: name, Output: "analysis for " + string(name), Attempts: 1}
			mu.Lock()
			out[name] = res
			mu.Unlock()
			if onDone != nil {
				onDone(name, res)
			}
		}(name)
	}
	wg.Wait()
	return out
}

// --- harness ---

type harness struct {
	svc        IResearchService
	sessions   *memory.SessionRepository
	classifier *fakeClassifier
	gate       *fakeGate
	dispatcher *fakeDispatcher
	content    *fakeContentStore
	chat       *fakeChatLLM
	reports    *fakeReportRepo
	sink       *recordingSink
}

func newHarness() *harness {
	h := &harness{
		sessions:   memory.NewSessionRepository(),
		classifier: &fakeClassifier{intent: &intent.Intent{Kind: intent.Casual, EdgeCaseType: intent.EdgeNone}},
		gate:       &fakeGate{assessments: map[string]*quality.Assessment{}, errs: map[string]error{}},
		dispatcher: &fakeDispatcher{failing: map[task.Name]error{}},
		content:    &fakeContentStore{docs: sampleDocs(3)},
		chat:       &fakeChatLLM{reply: "Hello! Name a company and I'll research it."},
		reports:    &fakeReportRepo{byCompany: map[string]*entity.ResearchReport{}},
		sink:       &recordingSink{},
	}
	h.svc = NewResearchService(
		h.sessions, h.content, h.classifier, h.gate, h.dispatcher,
		h.chat, &fakeUowFactory{uow: &fakeUow{reports: h.reports}},
		h.sink, logger.NopLogger{},
	)
	return h
}

func sampleDocs(n int) []store.Document {
	docs := make([]store.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, store.Document{
			ID:      uuid.NewString(),
			Content: fmt.Sprintf("document %d body with enough distinct content to survive dedupe", i),
		})
	}
	return docs
}

// --- tests ---

func TestHandleTurn_ResearchRequestFullRound(t *testing.T) {
	h := newHarness()
	h.classifier.intent = &intent.Intent{
		Kind:          intent.ResearchRequest,
		Confidence:    0.95,
		TargetCompany: "Microsoft",
		EdgeCaseType:  intent.EdgeNone,
	}

	resp, err := h.svc.HandleTurn(context.Background(), "s1", "research Microsoft")
	require.NoError(t, err)

	assert.Equal(t, store.StatusComplete, resp.Status)
	assert.Equal(t, string(intent.ResearchRequest), resp.Kind)
	require.NotNil(t, resp.Report)
	assert.Equal(t, "Microsoft", resp.Report.CompanyName)
	assert.Len(t, resp.Report.Sections, 7)
	assert.Empty(t, resp.Warning)
	assert.False(t, resp.DegradedConfidence)

	// Report reached both the session and the database.
	session, found := h.sessions.Get("s1")
	require.True(t, found)
	assert.Equal(t, store.StatusComplete, session.Status)
	assert.NotNil(t, session.LastReport)
	assert.Equal(t, 1, h.reports.upserts)

	// Progress ran from the first milestone to 100.
	require.NotEmpty(t, h.sink.steps)
	assert.Equal(t, progress.StepPromptProcessing, h.sink.steps[0])
	assert.Equal(t, progress.StepComplete, h.sink.steps[len(h.sink.steps)-1])
	assert.Equal(t, progress.PercentComplete, h.sink.percents[len(h.sink.percents)-1])
}

func TestHandleTurn_CasualTurnChats(t *testing.T) {
	h := newHarness()

	resp, err := h.svc.HandleTurn(context.Background(), "s1", "hey there")
	require.NoError(t, err)

	assert.Equal(t, h.chat.reply, resp.Reply)
	assert.Nil(t, resp.Report)
	assert.Equal(t, 1, h.chat.calls)
	assert.Empty(t, h.gate.calls)

	session, _ := h.sessions.Get("s1")
	require.Len(t, session.History, 2)
	assert.Equal(t, "assistant", session.History[1].Role)
}

func TestHandleTurn_EdgeCasePersonalInfo(t *testing.T) {
	h := newHarness()
	h.classifier.intent = &intent.Intent{
		Kind:         intent.ResearchRequest,
		EdgeCaseType: intent.EdgePersonalInfo,
	}

	resp, err := h.svc.HandleTurn(context.Background(), "s1", "research my neighbor John")
	require.NoError(t, err)

	assert.Contains(t, resp.Reply, "not private individuals")
	assert.Empty(t, h.gate.calls, "edge cases never reach the gate")
	assert.Empty(t, h.dispatcher.ran)
}

func TestHandleTurn_ResearchWithoutCompanyAsksBack(t *testing.T) {
	h := newHarness()
	h.classifier.intent = &intent.Intent{
		Kind:                intent.ResearchRequest,
		NeedsClarification:  true,
		ClarificationReason: "research request without a company name",
		EdgeCaseType:        intent.EdgeNone,
	}

	resp, err := h.svc.HandleTurn(context.Background(), "s1", "research them")
	require.NoError(t, err)

	assert.True(t, resp.NeedsClarification)
	assert.NotEmpty(t, resp.Reply)
	assert.Empty(t, h.dispatcher.ran)
}

func TestHandleTurn_FollowUpDispatchesAdditionalDataOnly(t *testing.T) {
	h := newHarness()
	h.classifier.intent = &intent.Intent{
		Kind:          intent.FollowUp,
		TargetCompany: "Microsoft",
		EdgeCaseType:  intent.EdgeNone,
	}

	_, err := h.svc.HandleTurn(context.Background(), "s1", "what about their hiring?")
	require.NoError(t, err)

	assert.Equal(t, []task.Name{task.AdditionalData}, h.dispatcher.ran)
}

func TestHandleTurn_DegradedRoundCarriesNote(t *testing.T) {
	h := newHarness()
	h.classifier.intent = &intent.Intent{
		Kind:          intent.ResearchRequest,
		TargetCompany: "Acme",
		EdgeCaseType:  intent.EdgeNone,
	}
	h.gate.assessments["Acme"] = &quality.Assessment{
		Company: "Acme", UniqueDocCount: 4, QualityScore: 0.4, Sufficient: false,
	}

	resp, err := h.svc.HandleTurn(context.Background(), "s1", "research Acme")
	require.NoError(t, err)

	assert.True(t, resp.DegradedConfidence)
	assert.NotEmpty(t, resp.Report.DegradedNote)
	assert.Equal(t, store.StatusComplete, resp.Status, "degraded rounds still complete")
}

func TestHandleTurn_NoDocumentsAborts(t *testing.T) {
	h := newHarness()
	h.classifier.intent = &intent.Intent{
		Kind:          intent.ResearchRequest,
		TargetCompany: "Ghost Corp",
		EdgeCaseType:  intent.EdgeNone,
	}
	h.gate.assessments["Ghost Corp"] = &quality.Assessment{Company: "Ghost Corp"}

	_, err := h.svc.HandleTurn(context.Background(), "s1", "research Ghost Corp")
	require.Error(t, err)
	assert.ErrorIs(t, err, research.ErrInsufficientData)

	session, _ := h.sessions.Get("s1")
	assert.Equal(t, store.StatusError, session.Status)
	assert.NotEmpty(t, session.LastError)
}

func TestHandleTurn_AssociatedGateFailureDoesNotBlock(t *testing.T) {
	h := newHarness()
	h.classifier.intent = &intent.Intent{
		Kind:                intent.ResearchRequest,
		TargetCompany:       "Microsoft",
		AssociatedCompanies: []string{"Google"},
		EdgeCaseType:        intent.EdgeNone,
	}
	h.gate.errs["Google"] = errors.New("probe timed out")

	resp, err := h.svc.HandleTurn(context.Background(), "s1", "research Microsoft vs Google")
	require.NoError(t, err)

	assert.Equal(t, store.StatusComplete, resp.Status)
	assert.Contains(t, h.gate.calls, "Google", "associated gate was attempted")
}

func TestHandleTurn_AssociatedCompanyDocsReachTaskContext(t *testing.T) {
	h := newHarness()
	h.classifier.intent = &intent.Intent{
		Kind:                intent.ResearchRequest,
		TargetCompany:       "Microsoft",
		AssociatedCompanies: []string{"Google"},
		EdgeCaseType:        intent.EdgeNone,
	}
	h.content.byCompany = map[string][]store.Document{
		"Google": {{ID: uuid.NewString(), Content: "google cloud revenue grew, a body distinct from the samples"}},
	}

	_, err := h.svc.HandleTurn(context.Background(), "s1", "research Microsoft vs Google")
	require.NoError(t, err)

	found := false
	for _, d := range h.dispatcher.lastContext.Documents {
		if strings.Contains(d.Content, "google cloud revenue") {
			found = true
		}
	}
	assert.True(t, found, "associated company documents must reach the dispatch context")
}

func TestHandleTurn_StaleCompanionsAreNotRegated(t *testing.T) {
	h := newHarness()
	h.classifier.intent = &intent.Intent{
		Kind:                intent.ResearchRequest,
		TargetCompany:       "Microsoft",
		AssociatedCompanies: []string{"Google"},
		EdgeCaseType:        intent.EdgeNone,
	}
	_, err := h.svc.HandleTurn(context.Background(), "s1", "research Microsoft vs Google")
	require.NoError(t, err)

	h.classifier.intent = &intent.Intent{
		Kind:          intent.FollowUp,
		TargetCompany: "Microsoft",
		EdgeCaseType:  intent.EdgeNone,
	}
	_, err = h.svc.HandleTurn(context.Background(), "s1", "what about their margins?")
	require.NoError(t, err)

	googleGates := 0
	for _, c := range h.gate.calls {
		if c == "Google" {
			googleGates++
		}
	}
	assert.Equal(t, 1, googleGates, "a companion is gated on the turn it arrives, not on every turn after")
}

func TestHandleTurn_PartialFailureWarnsButCompletes(t *testing.T) {
	h := newHarness()
	h.classifier.intent = &intent.Intent{
		Kind:          intent.ResearchRequest,
		TargetCompany: "Microsoft",
		EdgeCaseType:  intent.EdgeNone,
	}
	h.dispatcher.failing[task.Pricing] = errors.New("model overloaded")

	resp, err := h.svc.HandleTurn(context.Background(), "s1", "research Microsoft")
	require.NoError(t, err)

	assert.Equal(t, store.StatusComplete, resp.Status)
	assert.Contains(t, resp.Warning, "1 of 7")
	assert.Contains(t, resp.Report.SectionErrors, string(task.Pricing))
}

func TestHandleTurn_AllTasksFailedCompletesWithWarning(t *testing.T) {
	h := newHarness()
	h.classifier.intent = &intent.Intent{
		Kind:          intent.ResearchRequest,
		TargetCompany: "Microsoft",
		EdgeCaseType:  intent.EdgeNone,
	}
	for _, name := range task.ForFullRound(false) {
		h.dispatcher.failing[name] = errors.New("model down")
	}

	resp, err := h.svc.HandleTurn(context.Background(), "s1", "research Microsoft")
	require.NoError(t, err)

	assert.Equal(t, store.StatusComplete, resp.Status)
	assert.Contains(t, resp.Warning, "7 of 7")
	assert.Empty(t, resp.Report.Sections)
	assert.Len(t, resp.Report.SectionErrors, 7)

	session, _ := h.sessions.Get("s1")
	assert.Equal(t, store.StatusComplete, session.Status, "task failures never land the session in Error")
}

func TestHandleTurn_ConcurrentCompletionsCountEachTaskOnce(t *testing.T) {
	h := newHarness()
	h.svc = NewResearchService(
		h.sessions, h.content, h.classifier, h.gate, concurrentDispatcher{},
		h.chat, &fakeUowFactory{uow: &fakeUow{reports: h.reports}},
		h.sink, logger.NopLogger{},
	)
	h.classifier.intent = &intent.Intent{
		Kind:          intent.ResearchRequest,
		TargetCompany: "Microsoft",
		EdgeCaseType:  intent.EdgeNone,
	}

	resp, err := h.svc.HandleTurn(context.Background(), "s1", "research Microsoft")
	require.NoError(t, err)
	assert.Empty(t, resp.Warning)

	total := len(task.ForFullRound(false))
	var got []int
	for i, step := range h.sink.steps {
		if step == progress.StepAgentComplete {
			got = append(got, h.sink.percents[i])
		}
	}
	sort.Ints(got)

	want := make([]int, 0, total)
	for i := 1; i <= total; i++ {
		want = append(want, progress.AgentPercent(i, total))
	}
	assert.Equal(t, want, got, "each completion must bump the counter exactly once")
}

func TestHandleTurn_CompanySwitchClearsSessionReport(t *testing.T) {
	h := newHarness()
	h.classifier.intent = &intent.Intent{
		Kind:          intent.ResearchRequest,
		TargetCompany: "Microsoft",
		EdgeCaseType:  intent.EdgeNone,
	}
	_, err := h.svc.HandleTurn(context.Background(), "s1", "research Microsoft")
	require.NoError(t, err)

	h.classifier.intent.TargetCompany = "Google"
	resp, err := h.svc.HandleTurn(context.Background(), "s1", "now research Google")
	require.NoError(t, err)

	assert.Equal(t, "Google", resp.Report.CompanyName)
	for _, text := range resp.Report.Sections {
		assert.NotContains(t, text, "Microsoft")
	}
}

func TestRegenerate_UntouchedSectionsStayIdentical(t *testing.T) {
	h := newHarness()
	h.reports.byCompany["Microsoft"] = &entity.ResearchReport{
		Id:      uuid.New(),
		Company: "Microsoft",
		Sections: map[string]string{
			string(task.Overview): "original overview text",
			string(task.Pricing):  "original pricing text",
		},
		SelectedTasks: []string{string(task.Overview), string(task.Pricing)},
	}

	resp, err := h.svc.Regenerate(context.Background(), &dto.RegenerateRequest{
		SessionID: "s1",
		Company:   "Microsoft",
		Tasks:     []string{"pricing"},
	})
	require.NoError(t, err)

	assert.Equal(t, "original overview text", resp.Report.Sections[string(task.Overview)])
	assert.NotEqual(t, "original pricing text", resp.Report.Sections[string(task.Pricing)])
	assert.Equal(t, []task.Name{task.Pricing}, h.dispatcher.ran)
}

func TestRegenerate_UnknownTaskRejected(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Regenerate(context.Background(), &dto.RegenerateRequest{
		SessionID: "s1",
		Company:   "Microsoft",
		Tasks:     []string{"horoscope"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task")
}

func TestRegenerate_WithoutStoredReportRejected(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Regenerate(context.Background(), &dto.RegenerateRequest{
		SessionID: "s1",
		Company:   "Nobody Inc",
		Tasks:     []string{"overview"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stored report")
}

func TestResetSession_ClearsEverythingButID(t *testing.T) {
	h := newHarness()
	h.classifier.intent = &intent.Intent{
		Kind:          intent.ResearchRequest,
		TargetCompany: "Microsoft",
		EdgeCaseType:  intent.EdgeNone,
	}
	_, err := h.svc.HandleTurn(context.Background(), "s1", "research Microsoft")
	require.NoError(t, err)

	h.svc.ResetSession("s1")

	session, found := h.sessions.Get("s1")
	require.True(t, found)
	assert.Equal(t, "s1", session.ID)
	assert.Equal(t, store.StatusIdle, session.Status)
	assert.Empty(t, session.CurrentCompany)
	assert.Nil(t, session.LastReport)
	assert.Empty(t, session.History)
}

func TestUploadDocuments_DedupesBeforeStoring(t *testing.T) {
	h := newHarness()

	stored, err := h.svc.UploadDocuments(context.Background(), &dto.UploadDocumentsRequest{
		Company: "Microsoft",
		Documents: []dto.UploadDocumentDTO{
			{Title: "a", Content: "identical body repeated twice for the dedupe check, padded out"},
			{Title: "b", Content: "identical body repeated twice for the dedupe check, padded out"},
			{Title: "c", Content: "a different body entirely"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stored)
}

func TestDeleteCompanyData(t *testing.T) {
	h := newHarness()

	err := h.svc.DeleteCompanyData(context.Background(), "Microsoft")
	require.NoError(t, err)
	assert.Equal(t, []string{"Microsoft"}, h.content.deleted)
}

func TestGetSession_NotFound(t *testing.T) {
	h := newHarness()

	_, err := h.svc.GetSession("missing")
	require.Error(t, err)
}
