package intent

import (
	"context"
	"errors"
	"testing"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/pkg/llm"
)

type scriptedLLM struct {
	response string
	err      error
}

func (s *scriptedLLM) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return s.response, s.err
}
func (s *scriptedLLM) Generate(context.Context, string, ...llm.Option) (string, error) {
	return s.response, s.err
}
func (s *scriptedLLM) Classify(context.Context, string) (string, error) {
	return s.response, s.err
}

func classifierWith(response string, err error) *Classifier {
	return NewClassifier(&scriptedLLM{response: response, err: err}, logger.NopLogger{})
}

func TestClassifyResearchRequestWithAssociates(t *testing.T) {
	c := classifierWith(`Here is the analysis:
{"kind": "research_request", "confidence": 0.95, "company_name": "Microsoft",
 "associated_companies": ["Google"], "additional_data_requested": "",
 "references_given": [], "user_type": "standard",
 "needs_clarification": false, "edge_case_type": "none"}`, nil)

	got := c.Classify(context.Background(), "Research Microsoft, they work with Google", SessionSnapshot{})

	if got.Kind != ResearchRequest {
		t.Errorf("kind = %s", got.Kind)
	}
	if got.TargetCompany != "Microsoft" {
		t.Errorf("target = %q", got.TargetCompany)
	}
	if len(got.AssociatedCompanies) != 1 || got.AssociatedCompanies[0] != "Google" {
		t.Errorf("associated = %v", got.AssociatedCompanies)
	}
	if got.NeedsClarification {
		t.Error("clear request must not ask for clarification")
	}
}

func TestClassifyCompanyAndFocusStaysResearchRequest(t *testing.T) {
	c := classifierWith(`{"kind": "research_request", "confidence": 0.9,
 "company_name": "Acme", "associated_companies": [],
 "additional_data_requested": "pricing model", "references_given": [],
 "user_type": "efficient", "needs_clarification": false, "edge_case_type": "none"}`, nil)

	got := c.Classify(context.Background(), "Research Acme, focus on their pricing", SessionSnapshot{})

	if got.Kind != ResearchRequest {
		t.Errorf("kind = %s, want research_request", got.Kind)
	}
	if got.TargetCompany != "Acme" || got.RequestedFocus != "pricing model" {
		t.Errorf("target = %q, focus = %q", got.TargetCompany, got.RequestedFocus)
	}
}

func TestClassifyFollowUpInheritsSessionCompany(t *testing.T) {
	c := classifierWith(`{"kind": "follow_up", "confidence": 0.85, "company_name": "",
 "associated_companies": [], "additional_data_requested": "leadership team",
 "references_given": [], "user_type": "standard",
 "needs_clarification": false, "edge_case_type": "none"}`, nil)

	got := c.Classify(context.Background(), "what about their leadership?", SessionSnapshot{CurrentCompany: "Acme"})

	if got.Kind != FollowUp {
		t.Errorf("kind = %s", got.Kind)
	}
	if got.TargetCompany != "Acme" {
		t.Errorf("follow-up should inherit session company, got %q", got.TargetCompany)
	}
}

func TestClassifyFollowUpWithoutSessionDowngrades(t *testing.T) {
	c := classifierWith(`{"kind": "follow_up", "confidence": 0.8, "company_name": "",
 "associated_companies": [], "additional_data_requested": "",
 "references_given": [], "user_type": "confused",
 "needs_clarification": false, "edge_case_type": "none"}`, nil)

	got := c.Classify(context.Background(), "tell me more", SessionSnapshot{})

	if got.Kind != Casual {
		t.Errorf("kind = %s, want casual downgrade", got.Kind)
	}
	if !got.NeedsClarification {
		t.Error("downgraded follow-up must request clarification")
	}
}

func TestClassifyUnparseableOutputIsNeverAnError(t *testing.T) {
	c := classifierWith("I'm sorry, I can't produce JSON today.", nil)

	got := c.Classify(context.Background(), "research Acme", SessionSnapshot{})

	if got.Kind != Casual || got.Confidence != 0 {
		t.Errorf("unparseable output must degrade to casual/0, got %s/%f", got.Kind, got.Confidence)
	}
	if !got.NeedsClarification {
		t.Error("degraded intent must ask for clarification")
	}
}

func TestClassifyKeywordFallbackWhenModelDown(t *testing.T) {
	c := classifierWith("", errors.New("provider unreachable"))

	tests := []struct {
		name string
		text string
		snap SessionSnapshot
		want Kind
		conf float64
	}{
		{"research keyword", "please research this vendor", SessionSnapshot{}, ResearchRequest, 0.7},
		{"follow-up keyword with session", "what about their pricing", SessionSnapshot{CurrentCompany: "Acme"}, FollowUp, 0.6},
		{"plain chat", "good morning!", SessionSnapshot{}, Casual, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(context.Background(), tt.text, tt.snap)
			if got.Kind != tt.want {
				t.Errorf("kind = %s, want %s", got.Kind, tt.want)
			}
			if got.Confidence != tt.conf {
				t.Errorf("confidence = %f, want %f", got.Confidence, tt.conf)
			}
		})
	}
}

func TestClassifyDedupesAssociatedCompanies(t *testing.T) {
	c := classifierWith(`{"kind": "research_request", "confidence": 0.9, "company_name": "Acme",
 "associated_companies": ["Globex", "Acme", "Globex", "Initech"],
 "additional_data_requested": "", "references_given": [], "user_type": "standard",
 "needs_clarification": false, "edge_case_type": "none"}`, nil)

	got := c.Classify(context.Background(), "research Acme with Globex and Initech", SessionSnapshot{})

	want := []string{"Globex", "Initech"}
	if len(got.AssociatedCompanies) != len(want) {
		t.Fatalf("associated = %v, want %v", got.AssociatedCompanies, want)
	}
	for i := range want {
		if got.AssociatedCompanies[i] != want[i] {
			t.Errorf("associated[%d] = %s, want %s", i, got.AssociatedCompanies[i], want[i])
		}
	}
}

func TestClassifyEdgeCasePassesThrough(t *testing.T) {
	c := classifierWith(`{"kind": "casual", "confidence": 0.9, "company_name": "",
 "associated_companies": [], "additional_data_requested": "",
 "references_given": [], "user_type": "edge_case",
 "needs_clarification": false, "edge_case_type": "personal_info"}`, nil)

	got := c.Classify(context.Background(), "find out where John Smith lives", SessionSnapshot{})

	if got.EdgeCaseType != EdgePersonalInfo {
		t.Errorf("edge case = %s", got.EdgeCaseType)
	}
}
