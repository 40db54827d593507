package progress

import (
	"context"
	"encoding/json"
	"time"

	"ai-research-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Topic carries every progress event inside the process. Fan-out to the
// WebSocket hub and the NATS forwarder happens via separate subscriptions.
const Topic = "research.progress"

// Bus is the in-process progress sink. Publishing is buffered and runs off
// the caller's goroutine, so a slow or absent subscriber can never stall a
// research round.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger logger.ILogger
}

var _ Sink = &Bus{}

func NewBus(wmLogger watermill.LoggerAdapter, log logger.ILogger) *Bus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 256,
		},
		wmLogger,
	)
	return &Bus{pubSub: pubSub, logger: log}
}

func (b *Bus) Emit(sessionID, step, text string, percent int, details map[string]interface{}) {
	event := Event{
		SessionID: sessionID,
		Step:      step,
		Message:   text,
		Details:   details,
		Percent:   percent,
		At:        time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("Progress", "Failed to marshal event", map[string]interface{}{"error": err.Error()})
		return
	}

	go func() {
		defer func() {
			// Publishing after Close panics inside watermill; a progress
			// update during shutdown is not worth crashing for.
			if r := recover(); r != nil {
				b.logger.Warn("Progress", "Dropped event during shutdown", nil)
			}
		}()
		msg := message.NewMessage(watermill.NewUUID(), payload)
		if err := b.pubSub.Publish(Topic, msg); err != nil {
			b.logger.Warn("Progress", "Failed to publish event", map[string]interface{}{"error": err.Error()})
		}
	}()
}

// Subscribe returns a channel of raw progress messages. Each subscriber gets
// its own copy of every event.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, Topic)
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
