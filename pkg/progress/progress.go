package progress

import "time"

// Event is one progress update emitted during a research round. Consumers
// (WebSocket clients, NATS subscribers) treat it as informational only.
type Event struct {
	SessionID string                 `json:"session_id"`
	Step      string                 `json:"step"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Percent   int                    `json:"progress"`
	At        time.Time              `json:"at"`
}

// Well-known steps of a round, in order of appearance.
const (
	StepPromptProcessing = "prompt_processing"
	StepPromptProcessed  = "prompt_processed"
	StepDataGathering    = "data_gathering"
	StepDataGathered     = "data_gathered"
	StepAgentsStarting   = "agents_starting"
	StepAgentComplete    = "agent_complete"
	StepFinalizing       = "finalizing"
	StepComplete         = "complete"
	StepError            = "error"
)

// Milestone percentages for the fixed steps. Task completions interpolate
// between AgentsStarting and Finalizing.
const (
	PercentPromptProcessing = 5
	PercentPromptProcessed  = 10
	PercentDataGathering    = 15
	PercentDataGathered     = 40
	PercentAgentsStarting   = 45
	PercentFinalizing       = 95
	PercentComplete         = 100
)

// AgentPercent maps the n-th finished task of total onto the dispatch band.
func AgentPercent(done, total int) int {
	if total <= 0 {
		return PercentAgentsStarting
	}
	band := PercentFinalizing - PercentAgentsStarting
	return PercentAgentsStarting + done*band/total
}

// Sink receives progress updates. Emit is fire-and-forget: implementations
// must never block the orchestrator and must swallow their own failures.
type Sink interface {
	Emit(sessionID, step, message string, percent int, details map[string]interface{})
}

// NopSink is used when no progress transport is configured.
type NopSink struct{}

func (NopSink) Emit(string, string, string, int, map[string]interface{}) {}
