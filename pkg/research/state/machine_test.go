package state

import (
	"testing"

	"ai-research-be/pkg/store"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"idle to gathering", store.StatusIdle, store.StatusGathering, true},
		{"gathering to dispatching", store.StatusGathering, store.StatusDispatching, true},
		{"dispatching to complete", store.StatusDispatching, store.StatusComplete, true},
		{"complete to gathering restarts", store.StatusComplete, store.StatusGathering, true},
		{"complete skips gathering when data is sufficient", store.StatusComplete, store.StatusDispatching, true},
		{"idle skips gathering when data is sufficient", store.StatusIdle, store.StatusDispatching, true},
		{"error retry via gathering", store.StatusError, store.StatusGathering, true},
		{"error retry via dispatching", store.StatusError, store.StatusDispatching, true},
		{"error reachable from idle", store.StatusIdle, store.StatusError, true},
		{"error reachable from gathering", store.StatusGathering, store.StatusError, true},
		{"error reachable from dispatching", store.StatusDispatching, store.StatusError, true},
		{"reset always allowed", store.StatusDispatching, store.StatusIdle, true},
		{"idle cannot jump to complete", store.StatusIdle, store.StatusComplete, false},
		{"gathering cannot jump to complete", store.StatusGathering, store.StatusComplete, false},
		{"error cannot jump to complete", store.StatusError, store.StatusComplete, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestApplyRejectsIllegalMoveWithoutMutation(t *testing.T) {
	s := &store.Session{ID: "s1", Status: store.StatusIdle}

	if err := Apply(s, store.StatusComplete); err == nil {
		t.Fatal("expected error for idle -> complete")
	}
	if s.Status != store.StatusIdle {
		t.Errorf("session mutated on rejected transition: %s", s.Status)
	}

	if err := Apply(s, store.StatusGathering); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != store.StatusGathering {
		t.Errorf("status = %s, want %s", s.Status, store.StatusGathering)
	}
}

func TestResetClearsSession(t *testing.T) {
	s := &store.Session{
		ID:                  "s1",
		Status:              store.StatusError,
		CurrentCompany:      "Acme",
		AssociatedCompanies: []string{"Globex"},
		References:          []string{"quote"},
		LastReport:          &store.Report{CompanyName: "Acme"},
		LastError:           "boom",
	}

	Reset(s)

	if s.Status != store.StatusIdle {
		t.Errorf("status = %s, want IDLE", s.Status)
	}
	if s.CurrentCompany != "" || s.AssociatedCompanies != nil || s.References != nil || s.LastReport != nil || s.LastError != "" {
		t.Error("reset left research state behind")
	}
	if s.ID != "s1" {
		t.Error("reset must keep the session identity")
	}
}
