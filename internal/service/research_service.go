package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ai-research-be/internal/dto"
	"ai-research-be/internal/entity"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository/memory"
	"ai-research-be/internal/repository/unitofwork"
	"ai-research-be/pkg/enrichment"
	"ai-research-be/pkg/llm"
	"ai-research-be/pkg/progress"
	"ai-research-be/pkg/research"
	"ai-research-be/pkg/research/dispatch"
	"ai-research-be/pkg/research/intent"
	"ai-research-be/pkg/research/quality"
	researchreport "ai-research-be/pkg/research/report"
	"ai-research-be/pkg/research/state"
	"ai-research-be/pkg/research/task"
	"ai-research-be/pkg/store"

	"github.com/google/uuid"
)

// ContentStore is the slice of the vector store the orchestrator touches
// directly. content.Store implements it.
type ContentStore interface {
	Search(ctx context.Context, company, query string, limit int) ([]store.Document, error)
	UpsertBulk(ctx context.Context, company string, docs []store.Document) (int, error)
	ListCompanies(ctx context.Context) ([]string, error)
	DeleteCompany(ctx context.Context, company string) error
}

// IntentClassifier reads one user turn. intent.Classifier implements it.
type IntentClassifier interface {
	Classify(ctx context.Context, text string, snap intent.SessionSnapshot) *intent.Intent
}

// QualityGate decides data sufficiency per company. quality.Gate implements it.
type QualityGate interface {
	EnsureSufficient(ctx context.Context, company string, extraQueries []string) (*quality.Assessment, bool, error)
}

// TaskDispatcher fans analysis tasks out to the worker pool.
// dispatch.Dispatcher implements it.
type TaskDispatcher interface {
	Run(ctx context.Context, names []task.Name, tc task.Context, onDone func(task.Name, dispatch.Result)) map[task.Name]dispatch.Result
}

type IResearchService interface {
	HandleTurn(ctx context.Context, sessionID, message string) (*dto.TurnResponse, error)
	Regenerate(ctx context.Context, req *dto.RegenerateRequest) (*dto.TurnResponse, error)
	ResetSession(sessionID string)
	GetSession(sessionID string) (*dto.SessionResponse, error)
	ListCompanies(ctx context.Context) ([]string, error)
	GetReport(ctx context.Context, company string) (*store.Report, error)
	UploadDocuments(ctx context.Context, req *dto.UploadDocumentsRequest) (int, error)
	DeleteCompanyData(ctx context.Context, company string) error
}

type researchService struct {
	sessions     *memory.SessionRepository
	contentStore ContentStore
	classifier   IntentClassifier
	gate         QualityGate
	dispatcher   TaskDispatcher
	llmProvider  llm.LLMProvider
	uowFactory   unitofwork.RepositoryFactory
	progress     progress.Sink
	logger       logger.ILogger
}

func NewResearchService(
	sessions *memory.SessionRepository,
	contentStore ContentStore,
	classifier IntentClassifier,
	gate QualityGate,
	dispatcher TaskDispatcher,
	llmProvider llm.LLMProvider,
	uowFactory unitofwork.RepositoryFactory,
	progressSink progress.Sink,
	log logger.ILogger,
) IResearchService {
	return &researchService{
		sessions:     sessions,
		contentStore: contentStore,
		classifier:   classifier,
		gate:         gate,
		dispatcher:   dispatcher,
		llmProvider:  llmProvider,
		uowFactory:   uowFactory,
		progress:     progressSink,
		logger:       log,
	}
}

// Canned answers for turns the orchestrator refuses to research.
var edgeCaseReplies = map[string]string{
	intent.EdgePersonalInfo: "I research companies, not private individuals. Give me a company name and I'll dig in.",
	intent.EdgeConfidential: "I can only work with publicly available information. I can't help with insider or confidential data.",
	intent.EdgeOffTopic:     "That's outside what I can help with. I can research companies for you - just name one.",
}

// HandleTurn is the single entry point for a user message: classification,
// session update, gathering, dispatch and merge all happen here, sequentially.
// Only this method mutates the session between rounds.
func (s *researchService) HandleTurn(ctx context.Context, sessionID, message string) (*dto.TurnResponse, error) {
	session := s.sessions.GetOrCreate(sessionID)
	session.History = append(session.History, store.ChatMessage{Role: "user", Content: message, At: time.Now()})

	s.progress.Emit(sessionID, progress.StepPromptProcessing, "Reading your message", progress.PercentPromptProcessing, nil)

	it := s.classifier.Classify(ctx, message, intent.SessionSnapshot{
		CurrentCompany: session.CurrentCompany,
		HasReport:      session.LastReport != nil,
		Status:         session.Status,
	})

	s.progress.Emit(sessionID, progress.StepPromptProcessed, "Message understood", progress.PercentPromptProcessed, map[string]interface{}{
		"kind": string(it.Kind), "company": it.TargetCompany,
	})

	if reply, ok := edgeCaseReplies[it.EdgeCaseType]; ok {
		return s.finishConversational(session, it, reply), nil
	}

	switch it.Kind {
	case intent.ResearchRequest, intent.FollowUp:
		if it.NeedsClarification || it.TargetCompany == "" {
			reason := it.ClarificationReason
			if reason == "" {
				reason = "missing company name"
			}
			reply := "Which company should I research? " +
				"You can also add a specific focus, like pricing or leadership."
			resp := s.finishConversational(session, it, reply)
			resp.NeedsClarification = true
			s.logger.Info("ResearchService", "Turn needs clarification", map[string]interface{}{
				"session_id": sessionID, "reason": reason,
			})
			return resp, nil
		}
		return s.runResearchRound(ctx, session, it)

	default:
		reply, err := s.casualReply(ctx, session)
		if err != nil {
			return nil, err
		}
		resp := s.finishConversational(session, it, reply)
		resp.NeedsClarification = it.NeedsClarification
		return resp, nil
	}
}

// runResearchRound drives one gathering+dispatch cycle for the intent's
// target company.
func (s *researchService) runResearchRound(ctx context.Context, session *store.Session, it *intent.Intent) (*dto.TurnResponse, error) {
	// research_request and explicit follow-up companies overwrite the
	// current company; everything else accumulates.
	if it.TargetCompany != session.CurrentCompany {
		session.CurrentCompany = it.TargetCompany
		session.LastReport = nil
	}
	session.AddCompanies(it.AssociatedCompanies)
	session.References = appendUnique(session.References, it.References)

	company := session.CurrentCompany

	var selected []task.Name
	if it.Kind == intent.FollowUp {
		selected = []task.Name{task.AdditionalData}
	} else {
		selected = task.ForFullRound(it.RequestedFocus != "")
	}

	focus := it.RequestedFocus
	if focus == "" && it.Kind == intent.FollowUp {
		focus = lastUserMessage(session)
	}

	// --- Gathering phase ---
	if err := state.Apply(session, store.StatusGathering); err != nil {
		return nil, err
	}
	s.sessions.Save(session)
	s.progress.Emit(session.ID, progress.StepDataGathering, "Checking what we know about "+company, progress.PercentDataGathering, nil)

	assessment, enriched, err := s.gate.EnsureSufficient(ctx, company, enrichment.DefaultTopics(company))
	if err != nil {
		return nil, s.failSession(session, fmt.Errorf("%w: quality gate for %s: %v", research.ErrExternalServiceUnavailable, company, err))
	}

	// Only this turn's associated companies get gated; companions from
	// earlier turns were already gated when they arrived. One failing never
	// blocks the others or the main round.
	for _, assoc := range it.AssociatedCompanies {
		if _, _, err := s.gate.EnsureSufficient(ctx, assoc, enrichment.DefaultTopics(assoc)); err != nil {
			s.logger.Warn("ResearchService", "Associated company gate failed", map[string]interface{}{
				"company": assoc, "error": err.Error(),
			})
		}
	}

	if assessment.UniqueDocCount == 0 {
		return nil, s.failSession(session, fmt.Errorf("%w: no usable documents for %s", research.ErrInsufficientData, company))
	}

	docs, err := s.gatherDocuments(ctx, company, focus)
	if err != nil {
		return nil, s.failSession(session, fmt.Errorf("%w: document retrieval for %s: %v", research.ErrExternalServiceUnavailable, company, err))
	}
	docs = store.Dedupe(append(docs, s.gatherAssociatedDocuments(ctx, session.AssociatedCompanies)...))

	s.progress.Emit(session.ID, progress.StepDataGathered, fmt.Sprintf("Working with %d documents", len(docs)), progress.PercentDataGathered, map[string]interface{}{
		"documents": len(docs), "enriched": enriched, "sufficient": assessment.Sufficient,
	})

	// --- Dispatch phase ---
	prev := s.loadReport(ctx, session, company)

	if err := state.Apply(session, store.StatusDispatching); err != nil {
		return nil, s.failSession(session, err)
	}
	s.sessions.Save(session)
	s.progress.Emit(session.ID, progress.StepAgentsStarting, fmt.Sprintf("Running %d analysis tasks", len(selected)), progress.PercentAgentsStarting, nil)

	merged, failedCount, err := s.dispatchAndMerge(ctx, session, company, selected, task.Context{
		Company:             company,
		AssociatedCompanies: append([]string(nil), session.AssociatedCompanies...),
		References:          append([]string(nil), session.References...),
		Focus:               focus,
		Documents:           docs,
		PriorSections:       priorSections(prev),
	}, prev)
	if err != nil {
		return nil, err
	}

	merged.SourcesUsed = len(docs)
	if !assessment.Sufficient {
		merged.DegradedNote = fmt.Sprintf(
			"Generated from limited data (%d unique documents, quality %.2f). Treat conclusions with reduced confidence.",
			assessment.UniqueDocCount, assessment.QualityScore,
		)
	}

	return s.finishRound(ctx, session, it, merged, selected, failedCount)
}

// Regenerate re-runs only the named tasks against the stored report. Sections
// that were not selected come back byte-identical.
func (s *researchService) Regenerate(ctx context.Context, req *dto.RegenerateRequest) (*dto.TurnResponse, error) {
	selected := make([]task.Name, 0, len(req.Tasks))
	for _, raw := range req.Tasks {
		name, err := task.Parse(raw)
		if err != nil {
			return nil, err
		}
		selected = append(selected, name)
	}

	session := s.sessions.GetOrCreate(req.SessionID)
	company := req.Company
	if company == "" {
		company = session.CurrentCompany
	}
	if company == "" {
		return nil, fmt.Errorf("no company in the request or the session")
	}

	prev := s.loadReport(ctx, session, company)
	if prev == nil {
		return nil, fmt.Errorf("no stored report for %s to regenerate", company)
	}

	focus := req.ExtraContext
	docs, err := s.gatherDocuments(ctx, company, focus)
	if err != nil {
		return nil, fmt.Errorf("%w: document retrieval for %s: %v", research.ErrExternalServiceUnavailable, company, err)
	}
	docs = store.Dedupe(append(docs, s.gatherAssociatedDocuments(ctx, session.AssociatedCompanies)...))

	if err := state.Apply(session, store.StatusDispatching); err != nil {
		return nil, err
	}
	s.sessions.Save(session)
	s.progress.Emit(session.ID, progress.StepAgentsStarting, fmt.Sprintf("Regenerating %d sections", len(selected)), progress.PercentAgentsStarting, nil)

	merged, failedCount, err := s.dispatchAndMerge(ctx, session, company, selected, task.Context{
		Company:             company,
		AssociatedCompanies: append([]string(nil), session.AssociatedCompanies...),
		References:          append([]string(nil), session.References...),
		Focus:               focus,
		Documents:           docs,
		PriorSections:       priorSections(prev),
	}, prev)
	if err != nil {
		return nil, err
	}
	merged.SourcesUsed = len(docs)
	merged.DegradedNote = prev.DegradedNote

	it := &intent.Intent{Kind: intent.FollowUp, TargetCompany: company}
	return s.finishRound(ctx, session, it, merged, selected, failedCount)
}

// dispatchAndMerge runs the worker pool and overlays the results. It returns
// an error only when the whole round is void (cancelled context).
func (s *researchService) dispatchAndMerge(
	ctx context.Context,
	session *store.Session,
	company string,
	selected []task.Name,
	tc task.Context,
	prev *store.Report,
) (*store.Report, int, error) {
	total := len(selected)
	// onDone runs on worker goroutines, so the completion counter must be
	// atomic.
	var done atomic.Int64
	results := s.dispatcher.Run(ctx, selected, tc, func(name task.Name, res dispatch.Result) {
		n := int(done.Add(1))
		def, _ := task.Get(name)
		msg := def.Title + " complete"
		if res.Err != nil {
			msg = def.Title + " failed"
		}
		s.progress.Emit(session.ID, progress.StepAgentComplete, msg, progress.AgentPercent(n, total), map[string]interface{}{
			"task": string(name), "failed": res.Err != nil,
		})
	})

	if ctx.Err() != nil {
		return nil, 0, s.failSession(session, fmt.Errorf("research round cancelled: %w", ctx.Err()))
	}

	failedCount := 0
	for _, res := range results {
		if res.Err != nil {
			failedCount++
		}
	}

	merged := researchreport.Merge(prev, company, results, selected)
	return merged, failedCount, nil
}

// finishRound persists the merged report, completes the session and shapes
// the response. Task failures, even all of them, surface as a warning with
// the per-section errors kept in the report; Error is reserved for rounds
// where an upstream dependency was unreachable.
func (s *researchService) finishRound(
	ctx context.Context,
	session *store.Session,
	it *intent.Intent,
	merged *store.Report,
	selected []task.Name,
	failedCount int,
) (*dto.TurnResponse, error) {
	s.progress.Emit(session.ID, progress.StepFinalizing, "Assembling the report", progress.PercentFinalizing, nil)

	s.persistReport(ctx, session.ID, merged)

	if err := state.Apply(session, store.StatusComplete); err != nil {
		return nil, s.failSession(session, err)
	}
	session.LastReport = merged
	session.LastError = ""
	summary := fmt.Sprintf("Research on %s is ready: %d sections generated.", merged.CompanyName, len(merged.Sections))
	session.History = append(session.History, store.ChatMessage{Role: "assistant", Content: summary, At: time.Now()})
	s.sessions.Save(session)

	s.progress.Emit(session.ID, progress.StepComplete, "Research complete", progress.PercentComplete, map[string]interface{}{
		"company": merged.CompanyName, "failed_tasks": failedCount,
	})

	resp := &dto.TurnResponse{
		SessionID:          session.ID,
		Status:             session.Status,
		Kind:               string(it.Kind),
		Report:             merged,
		DegradedConfidence: merged.DegradedNote != "",
	}
	if failedCount > 0 {
		resp.Warning = fmt.Sprintf("%d of %d sections could not be generated this round", failedCount, len(selected))
	}
	return resp, nil
}

func (s *researchService) ResetSession(sessionID string) {
	session := s.sessions.GetOrCreate(sessionID)
	state.Reset(session)
	s.sessions.Save(session)
	s.logger.Info("ResearchService", "Session reset", map[string]interface{}{"session_id": sessionID})
}

func (s *researchService) GetSession(sessionID string) (*dto.SessionResponse, error) {
	session, found := s.sessions.Get(sessionID)
	if !found {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}

	resp := &dto.SessionResponse{
		SessionID:           session.ID,
		Status:              session.Status,
		CurrentCompany:      session.CurrentCompany,
		AssociatedCompanies: session.AssociatedCompanies,
		HasReport:           session.LastReport != nil,
		LastError:           session.LastError,
	}
	for _, msg := range session.History {
		resp.History = append(resp.History, dto.HistoryItem{Role: msg.Role, Content: msg.Content})
	}
	return resp, nil
}

func (s *researchService) ListCompanies(ctx context.Context) ([]string, error) {
	companies, err := s.contentStore.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing companies: %v", research.ErrExternalServiceUnavailable, err)
	}
	return companies, nil
}

func (s *researchService) GetReport(ctx context.Context, company string) (*store.Report, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	ent, err := uow.ReportRepository().FindByCompany(ctx, company)
	if err != nil {
		return nil, fmt.Errorf("%w: loading report: %v", research.ErrExternalServiceUnavailable, err)
	}
	if ent == nil {
		return nil, nil
	}
	return reportFromEntity(ent), nil
}

func (s *researchService) UploadDocuments(ctx context.Context, req *dto.UploadDocumentsRequest) (int, error) {
	docs := make([]store.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, store.Document{
			Title:      d.Title,
			Content:    d.Content,
			URL:        d.URL,
			SourceType: "upload",
		})
	}
	stored, err := s.contentStore.UpsertBulk(ctx, req.Company, store.Dedupe(docs))
	if err != nil {
		return 0, fmt.Errorf("%w: storing documents: %v", research.ErrExternalServiceUnavailable, err)
	}
	return stored, nil
}

func (s *researchService) DeleteCompanyData(ctx context.Context, company string) error {
	if err := s.contentStore.DeleteCompany(ctx, company); err != nil {
		return fmt.Errorf("%w: deleting company data: %v", research.ErrExternalServiceUnavailable, err)
	}
	s.logger.Info("ResearchService", "Company data deleted", map[string]interface{}{"company": company})
	return nil
}

// --- helpers ---

const casualHistoryWindow = 10

func (s *researchService) casualReply(ctx context.Context, session *store.Session) (string, error) {
	history := []llm.Message{{
		Role: "system",
		Content: "You are a friendly B2B company research assistant. Keep answers short. " +
			"If the user seems to want research, ask which company to look into.",
	}}
	msgs := session.History
	if len(msgs) > casualHistoryWindow {
		msgs = msgs[len(msgs)-casualHistoryWindow:]
	}
	for _, m := range msgs {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}

	reply, err := s.llmProvider.Chat(ctx, history)
	if err != nil {
		return "", fmt.Errorf("%w: chat model: %v", research.ErrExternalServiceUnavailable, err)
	}
	return reply, nil
}

func (s *researchService) finishConversational(session *store.Session, it *intent.Intent, reply string) *dto.TurnResponse {
	session.History = append(session.History, store.ChatMessage{Role: "assistant", Content: reply, At: time.Now()})
	s.sessions.Save(session)
	return &dto.TurnResponse{
		SessionID: session.ID,
		Status:    session.Status,
		Kind:      string(it.Kind),
		Reply:     reply,
	}
}

// failSession moves the session to Error and records why. The original error
// is returned for the transport layer to map.
func (s *researchService) failSession(session *store.Session, err error) error {
	session.Status = store.StatusError
	session.LastError = err.Error()
	s.sessions.Save(session)
	s.progress.Emit(session.ID, progress.StepError, err.Error(), 0, nil)
	s.logger.Error("ResearchService", "Round failed", map[string]interface{}{
		"session_id": session.ID, "error": err.Error(),
	})
	return err
}

const maxContextDocuments = 20

// gatherDocuments pulls the retrieval context for the task prompts: topical
// probes plus the user's focus, deduped, capped.
func (s *researchService) gatherDocuments(ctx context.Context, company, focus string) ([]store.Document, error) {
	queries := []string{
		company + " company overview",
		company + " products services",
		company + " business model",
	}
	if focus != "" {
		queries = append(queries, company+" "+focus)
	}

	var hits []store.Document
	for _, q := range queries {
		docs, err := s.contentStore.Search(ctx, company, q, maxContextDocuments)
		if err != nil {
			return nil, err
		}
		hits = append(hits, docs...)
	}

	unique := store.Dedupe(hits)
	if len(unique) > maxContextDocuments {
		unique = unique[:maxContextDocuments]
	}
	return unique, nil
}

const maxAssociatedDocuments = 5

// gatherAssociatedDocuments adds a small slice of context per associated
// company so the task prompts can draw comparisons. A failing lookup is
// logged and skipped; companions never sink a round.
func (s *researchService) gatherAssociatedDocuments(ctx context.Context, companies []string) []store.Document {
	var hits []store.Document
	for _, assoc := range companies {
		docs, err := s.contentStore.Search(ctx, assoc, assoc+" company overview", maxAssociatedDocuments)
		if err != nil {
			s.logger.Warn("ResearchService", "Associated company lookup failed", map[string]interface{}{
				"company": assoc, "error": err.Error(),
			})
			continue
		}
		if len(docs) > maxAssociatedDocuments {
			docs = docs[:maxAssociatedDocuments]
		}
		hits = append(hits, docs...)
	}
	return hits
}

// loadReport prefers the in-session report and falls back to the database,
// always scoped to the given company.
func (s *researchService) loadReport(ctx context.Context, session *store.Session, company string) *store.Report {
	if session.LastReport != nil && session.LastReport.CompanyName == company {
		return session.LastReport
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	ent, err := uow.ReportRepository().FindByCompany(ctx, company)
	if err != nil {
		s.logger.Warn("ResearchService", "Report lookup failed", map[string]interface{}{
			"company": company, "error": err.Error(),
		})
		return nil
	}
	if ent == nil {
		return nil
	}
	return reportFromEntity(ent)
}

// persistReport is best effort: the session still holds the report when the
// database write fails.
func (s *researchService) persistReport(ctx context.Context, sessionID string, r *store.Report) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	ent := &entity.ResearchReport{
		Id:            uuid.New(),
		Company:       r.CompanyName,
		SessionID:     sessionID,
		Sections:      r.Sections,
		SectionErrors: r.SectionErrors,
		SelectedTasks: r.SelectedTasks,
		SourcesUsed:   r.SourcesUsed,
		DegradedNote:  r.DegradedNote,
		GeneratedAt:   r.GeneratedAt,
	}
	if err := uow.ReportRepository().Upsert(ctx, ent); err != nil {
		s.logger.Warn("ResearchService", "Report persistence failed", map[string]interface{}{
			"company": r.CompanyName, "error": err.Error(),
		})
	}
}

func reportFromEntity(ent *entity.ResearchReport) *store.Report {
	return &store.Report{
		CompanyName:   ent.Company,
		Sections:      ent.Sections,
		SectionErrors: ent.SectionErrors,
		SelectedTasks: ent.SelectedTasks,
		SourcesUsed:   ent.SourcesUsed,
		DegradedNote:  ent.DegradedNote,
		GeneratedAt:   ent.GeneratedAt,
	}
}

func priorSections(r *store.Report) map[string]string {
	if r == nil || len(r.Sections) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Sections))
	for k, v := range r.Sections {
		out[k] = v
	}
	return out
}

func lastUserMessage(session *store.Session) string {
	for i := len(session.History) - 1; i >= 0; i-- {
		if session.History[i].Role == "user" {
			return session.History[i].Content
		}
	}
	return ""
}

func appendUnique(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e] = true
	}
	for _, e := range extra {
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		existing = append(existing, e)
	}
	return existing
}
