// Package research holds the error taxonomy shared by the orchestration
// packages underneath it.
package research

import "errors"

var (
	// ErrClassificationAmbiguous: the turn could not be read confidently
	// enough to act on. The orchestrator answers with a clarification
	// question instead of starting a round.
	ErrClassificationAmbiguous = errors.New("classification ambiguous")

	// ErrInsufficientData: the quality gate stayed below threshold even
	// after its single enrichment round.
	ErrInsufficientData = errors.New("insufficient data after enrichment")

	// ErrTaskExecution: one or more analysis tasks failed. Partial results
	// are still merged; this error annotates the round, it does not void it.
	ErrTaskExecution = errors.New("task execution failure")

	// ErrExternalServiceUnavailable: a dependency the round cannot proceed
	// without (content store, language model) is wholly unreachable.
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
)
