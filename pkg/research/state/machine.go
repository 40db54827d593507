package state

import (
	"fmt"

	"ai-research-be/pkg/store"
)

// Transition is a directed edge in the session lifecycle graph.
type Transition struct {
	From string
	To   string
}

// allowedTransitions is the closed set of legal session moves. Anything not
// listed here is rejected. Error is reachable from every state and is handled
// in CanTransition directly.
var allowedTransitions = map[Transition]bool{
	{store.StatusIdle, store.StatusGathering}: true,

	{store.StatusGathering, store.StatusDispatching}: true,

	{store.StatusDispatching, store.StatusComplete}: true,

	// A new round on a finished session.
	{store.StatusComplete, store.StatusGathering}: true,

	// Follow-up on a company whose data is already sufficient skips the
	// gathering phase entirely.
	{store.StatusComplete, store.StatusDispatching}: true,
	{store.StatusIdle, store.StatusDispatching}:     true,

	// Retry after a failed round.
	{store.StatusError, store.StatusGathering}:   true,
	{store.StatusError, store.StatusDispatching}: true,
}

// CanTransition reports whether moving from one session status to another is
// legal. Error is a sink reachable from any state, and reset to Idle is always
// allowed.
func CanTransition(from, to string) bool {
	if to == store.StatusError || to == store.StatusIdle {
		return true
	}
	return allowedTransitions[Transition{From: from, To: to}]
}

// ValidateTransition returns a descriptive error for an illegal move.
func ValidateTransition(from, to string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal session transition: %s -> %s", from, to)
	}
	return nil
}

// Apply moves the session to the target status after validating the edge.
// On failure the session is left untouched.
func Apply(session *store.Session, to string) error {
	if err := ValidateTransition(session.Status, to); err != nil {
		return err
	}
	session.Status = to
	return nil
}

// Reset returns the session to Idle and clears all research state. Legal from
// any status.
func Reset(session *store.Session) {
	session.Status = store.StatusIdle
	session.CurrentCompany = ""
	session.AssociatedCompanies = nil
	session.References = nil
	session.LastReport = nil
	session.History = nil
	session.LastError = ""
}
