package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/pkg/llm"
)

// Kind is the coarse category a turn falls into.
type Kind string

const (
	Casual          Kind = "casual"
	ResearchRequest Kind = "research_request"
	FollowUp        Kind = "follow_up"
)

// Edge case categories the prompt extractor recognizes.
const (
	EdgeNone         = "none"
	EdgePersonalInfo = "personal_info"
	EdgeConfidential = "confidential_data"
	EdgeOffTopic     = "off_topic"
)

// Intent is the structured reading of one user turn.
type Intent struct {
	Kind                Kind     `json:"kind"`
	Confidence          float64  `json:"confidence"`
	TargetCompany       string   `json:"target_company,omitempty"`
	AssociatedCompanies []string `json:"associated_companies,omitempty"`
	RequestedFocus      string   `json:"requested_focus,omitempty"`
	References          []string `json:"references,omitempty"`
	UserType            string   `json:"user_type,omitempty"`
	EdgeCaseType        string   `json:"edge_case_type,omitempty"`
	NeedsClarification  bool     `json:"needs_clarification"`
	ClarificationReason string   `json:"clarification_reason,omitempty"`
}

// SessionSnapshot is the read-only slice of session state classification may
// consult. The classifier never mutates the session.
type SessionSnapshot struct {
	CurrentCompany string
	HasReport      bool
	Status         string
}

type Classifier struct {
	provider llm.LLMProvider
	logger   logger.ILogger
}

func NewClassifier(provider llm.LLMProvider, log logger.ILogger) *Classifier {
	return &Classifier{provider: provider, logger: log}
}

// extraction mirrors the JSON contract in the classification prompt.
type extraction struct {
	Kind                string   `json:"kind"`
	Confidence          float64  `json:"confidence"`
	CompanyName         string   `json:"company_name"`
	AssociatedCompanies []string `json:"associated_companies"`
	AdditionalData      string   `json:"additional_data_requested"`
	ReferencesGiven     []string `json:"references_given"`
	UserType            string   `json:"user_type"`
	NeedsClarification  bool     `json:"needs_clarification"`
	EdgeCaseType        string   `json:"edge_case_type"`
}

// Classify reads one turn. It never returns an error: an unusable model
// answer degrades to keyword matching, and an unusable turn degrades to a
// casual intent asking for clarification.
func (c *Classifier) Classify(ctx context.Context, text string, snap SessionSnapshot) *Intent {
	raw, err := c.provider.Classify(ctx, buildPrompt(text, snap))
	if err != nil {
		c.logger.Warn("IntentClassifier", "Model classification failed, using keyword fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return c.normalize(fallbackClassify(text, snap), snap)
	}

	ex, ok := parseExtraction(raw)
	if !ok {
		c.logger.Warn("IntentClassifier", "Unparseable model output, treating turn as casual", map[string]interface{}{
			"raw": truncate(raw, 300),
		})
		return &Intent{
			Kind:                Casual,
			Confidence:          0,
			EdgeCaseType:        EdgeNone,
			NeedsClarification:  true,
			ClarificationReason: "could not understand the request",
		}
	}

	return c.normalize(fromExtraction(ex), snap)
}

// normalize applies the session-dependent rules that hold regardless of how
// the raw intent was produced.
func (c *Classifier) normalize(in *Intent, snap SessionSnapshot) *Intent {
	in.AssociatedCompanies = dedupeOrdered(in.AssociatedCompanies, in.TargetCompany)
	if in.EdgeCaseType == "" {
		in.EdgeCaseType = EdgeNone
	}

	switch in.Kind {
	case FollowUp:
		// A follow-up naming no company inherits the session company. With
		// no session company either there is nothing to follow up on.
		if in.TargetCompany == "" {
			if snap.CurrentCompany != "" {
				in.TargetCompany = snap.CurrentCompany
			} else {
				in.Kind = Casual
				in.NeedsClarification = true
				in.ClarificationReason = "follow-up without an active research session"
			}
		}
	case ResearchRequest:
		if in.TargetCompany == "" {
			in.NeedsClarification = true
			if in.ClarificationReason == "" {
				in.ClarificationReason = "research request without a company name"
			}
		}
	}
	return in
}

func fromExtraction(ex extraction) *Intent {
	kind := Kind(strings.ToLower(strings.TrimSpace(ex.Kind)))
	switch kind {
	case Casual, ResearchRequest, FollowUp:
	default:
		kind = Casual
	}

	conf := ex.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	return &Intent{
		Kind:                kind,
		Confidence:          conf,
		TargetCompany:       strings.TrimSpace(ex.CompanyName),
		AssociatedCompanies: ex.AssociatedCompanies,
		RequestedFocus:      strings.TrimSpace(ex.AdditionalData),
		References:          ex.ReferencesGiven,
		UserType:            ex.UserType,
		EdgeCaseType:        ex.EdgeCaseType,
		NeedsClarification:  ex.NeedsClarification,
	}
}

// parseExtraction finds the first balanced JSON object in the model output.
// Models routinely wrap JSON in prose or code fences.
func parseExtraction(raw string) (extraction, bool) {
	var ex extraction
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ex, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				if err := json.Unmarshal([]byte(raw[start:i+1]), &ex); err != nil {
					return ex, false
				}
				return ex, true
			}
		}
	}
	return ex, false
}

var researchKeywords = []string{"research", "analyze", "analyse", "look up", "tell me about", "find out about", "investigate"}
var followUpKeywords = []string{"more about", "what about", "also", "add ", "expand", "update the report"}

// fallbackClassify is the keyword path used when the model is unreachable.
// Confidence is deliberately low; the orchestrator treats these as best-effort.
func fallbackClassify(text string, snap SessionSnapshot) *Intent {
	lower := strings.ToLower(text)

	for _, kw := range researchKeywords {
		if strings.Contains(lower, kw) {
			return &Intent{Kind: ResearchRequest, Confidence: 0.7, EdgeCaseType: EdgeNone}
		}
	}
	if snap.CurrentCompany != "" {
		for _, kw := range followUpKeywords {
			if strings.Contains(lower, kw) {
				return &Intent{Kind: FollowUp, Confidence: 0.6, EdgeCaseType: EdgeNone}
			}
		}
	}
	return &Intent{Kind: Casual, Confidence: 0.7, EdgeCaseType: EdgeNone}
}

func buildPrompt(text string, snap SessionSnapshot) string {
	var b strings.Builder
	b.WriteString("You classify messages sent to a company research assistant.\n\n")
	if snap.CurrentCompany != "" {
		fmt.Fprintf(&b, "Active research session about: %s (report available: %v)\n\n", snap.CurrentCompany, snap.HasReport)
	} else {
		b.WriteString("No active research session.\n\n")
	}
	fmt.Fprintf(&b, "User message:\n%s\n\n", text)
	b.WriteString(`Respond with ONLY a JSON object:
{
  "kind": "casual" | "research_request" | "follow_up",
  "confidence": 0.0-1.0,
  "company_name": "primary company to research, or empty",
  "associated_companies": ["other companies mentioned, in order of mention"],
  "additional_data_requested": "specific data the user asked for, or empty",
  "references_given": ["quotes, URLs or documents the user supplied"],
  "user_type": "confused" | "efficient" | "chatty" | "edge_case" | "standard",
  "needs_clarification": true | false,
  "edge_case_type": "personal_info" | "confidential_data" | "off_topic" | "none"
}

Rules:
- "research_request": the user wants a company researched or analyzed.
- "follow_up": the user wants more on the session company or an update to the existing report.
- A message naming a company AND a specific focus is still "research_request" with both fields set.
- Questions about private individuals are edge_case_type "personal_info".
- Requests for insider or non-public data are "confidential_data".`)
	return b.String()
}

func dedupeOrdered(names []string, exclude string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := map[string]bool{exclude: true, "": true}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
