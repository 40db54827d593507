package progress

import (
	"context"
	"encoding/json"
	"time"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/pkg/events"
	pkgnats "ai-research-be/pkg/nats"
)

// Forwarder republishes in-process progress events to NATS JetStream so
// other services (and other instances) can observe running rounds. Subjects
// take the form events.research.progress.<session>.
type Forwarder struct {
	bus       *Bus
	publisher *pkgnats.Publisher
	logger    logger.ILogger
}

func NewForwarder(bus *Bus, publisher *pkgnats.Publisher, log logger.ILogger) *Forwarder {
	return &Forwarder{bus: bus, publisher: publisher, logger: log}
}

// Run consumes the progress topic until ctx is cancelled. Forwarding is best
// effort: a NATS outage drops events but never blocks local consumers.
func (f *Forwarder) Run(ctx context.Context) error {
	messages, err := f.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	for msg := range messages {
		var event Event
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			f.logger.Warn("ProgressForwarder", "Malformed event payload", map[string]interface{}{"error": err.Error()})
			msg.Ack()
			continue
		}

		publishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := f.publisher.Publish(publishCtx, events.BaseEvent{
			Type: "research.progress." + event.SessionID,
			Data: map[string]interface{}{
				"session_id": event.SessionID,
				"step":       event.Step,
				"message":    event.Message,
				"details":    event.Details,
				"progress":   event.Percent,
				"at":         event.At,
			},
			OccurredAt: event.At,
		})
		cancel()
		if err != nil {
			f.logger.Warn("ProgressForwarder", "Failed to forward event", map[string]interface{}{
				"session_id": event.SessionID, "error": err.Error(),
			})
		}
		msg.Ack()
	}
	return nil
}
