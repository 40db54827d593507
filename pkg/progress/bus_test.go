package progress

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ai-research-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
)

func TestBusDeliversEvents(t *testing.T) {
	bus := NewBus(watermill.NopLogger{}, logger.NopLogger{})
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}

	bus.Emit("sess-1", StepDataGathering, "Gathering data", PercentDataGathering, map[string]interface{}{"company": "Acme"})

	select {
	case msg := <-messages:
		var event Event
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			t.Fatal(err)
		}
		msg.Ack()
		if event.SessionID != "sess-1" || event.Step != StepDataGathering || event.Percent != PercentDataGathering {
			t.Errorf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestEmitWithoutSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(watermill.NopLogger{}, logger.NopLogger{})
	defer bus.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			bus.Emit("sess-1", StepAgentComplete, "done", AgentPercent(i, 500), nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked the caller")
	}
}

func TestAgentPercentStaysInBand(t *testing.T) {
	tests := []struct {
		done, total, want int
	}{
		{0, 8, 45},
		{4, 8, 70},
		{8, 8, 95},
		{1, 1, 95},
		{0, 0, 45},
	}
	for _, tt := range tests {
		if got := AgentPercent(tt.done, tt.total); got != tt.want {
			t.Errorf("AgentPercent(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}
