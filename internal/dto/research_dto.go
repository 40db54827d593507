package dto

import "ai-research-be/pkg/store"

type TurnRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Message   string `json:"message" validate:"required,min=1,max=4000"`
}

// TurnResponse is the orchestrator's answer to one turn. Exactly one of
// Reply / Report carries the payload depending on how the turn was classified.
type TurnResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Kind      string `json:"kind"`

	// Conversational answer (casual turns, clarifications, edge cases).
	Reply string `json:"reply,omitempty"`

	// Research output.
	Report *store.Report `json:"report,omitempty"`

	NeedsClarification bool   `json:"needs_clarification,omitempty"`
	DegradedConfidence bool   `json:"degraded_confidence,omitempty"`
	Warning            string `json:"warning,omitempty"`
}

type RegenerateRequest struct {
	SessionID    string   `json:"session_id" validate:"required"`
	Company      string   `json:"company"`
	Tasks        []string `json:"tasks" validate:"required,min=1,dive,required"`
	ExtraContext string   `json:"extra_context" validate:"max=4000"`
}

type ResetSessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type SessionResponse struct {
	SessionID           string        `json:"session_id"`
	Status              string        `json:"status"`
	CurrentCompany      string        `json:"current_company,omitempty"`
	AssociatedCompanies []string      `json:"associated_companies,omitempty"`
	HasReport           bool          `json:"has_report"`
	LastError           string        `json:"last_error,omitempty"`
	History             []HistoryItem `json:"history,omitempty"`
}

type HistoryItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompanyListResponse struct {
	Companies []string `json:"companies"`
}

type UploadDocumentsRequest struct {
	Company   string              `json:"company" validate:"required,min=1,max=255"`
	Documents []UploadDocumentDTO `json:"documents" validate:"required,min=1,dive"`
}

type UploadDocumentDTO struct {
	Title   string `json:"title" validate:"max=512"`
	Content string `json:"content" validate:"required,min=1"`
	URL     string `json:"url" validate:"omitempty,url"`
}

type UploadDocumentsResponse struct {
	Company string `json:"company"`
	Stored  int    `json:"stored"`
}
