package store

import "time"

// Session represents the active research session state in memory
type Session struct {
	ID     string `json:"id"`
	Status string `json:"status"`

	// The company the orchestrator is currently researching. Overwritten only
	// by an explicit research request or a follow-up naming a new company.
	CurrentCompany string `json:"current_company"`

	// Companies mentioned alongside the current one. Ordered set union across
	// turns, first mention wins the position.
	AssociatedCompanies []string `json:"associated_companies"`

	// Reference snippets the user pasted in (quotes, URLs, excerpts).
	References []string `json:"references"`

	// The last merged report, kept so follow-ups can overlay onto it.
	LastReport *Report `json:"last_report,omitempty"`

	// Chat history for casual turns and prompt context.
	History []ChatMessage `json:"history"`

	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is one turn of conversation kept on the session.
type ChatMessage struct {
	Role    string    `json:"role"` // "user" | "assistant"
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

const (
	StatusIdle        = "IDLE"
	StatusGathering   = "GATHERING"
	StatusDispatching = "DISPATCHING"
	StatusComplete    = "COMPLETE"
	StatusError       = "ERROR"
)

// AddCompanies merges names into the associated set preserving first-mention
// order. Duplicates and the current company itself are skipped.
func (s *Session) AddCompanies(names []string) {
	seen := make(map[string]bool, len(s.AssociatedCompanies)+1)
	seen[s.CurrentCompany] = true
	for _, c := range s.AssociatedCompanies {
		seen[c] = true
	}
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		s.AssociatedCompanies = append(s.AssociatedCompanies, n)
	}
}
