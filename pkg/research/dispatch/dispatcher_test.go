package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/pkg/llm"
	"ai-research-be/pkg/research/task"
)

// fakeProvider scripts per-task behavior keyed by a marker in the prompt.
type fakeProvider struct {
	mu       sync.Mutex
	calls    map[string]int
	failFor  map[string]error // substring of prompt -> error
	failOnce map[string]error // substring -> error on first call only
	delay    time.Duration
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls:    make(map[string]int),
		failFor:  make(map[string]error),
		failOnce: make(map[string]error),
	}
}

func (f *fakeProvider) Chat(ctx context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	return f.Generate(ctx, history[len(history)-1].Content)
}

func (f *fakeProvider) Classify(ctx context.Context, prompt string) (string, error) {
	return f.Generate(ctx, prompt)
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, _ ...llm.Option) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for marker, err := range f.failFor {
		if strings.Contains(prompt, marker) {
			return "", err
		}
	}
	for marker, err := range f.failOnce {
		if strings.Contains(prompt, marker) {
			f.calls[marker]++
			if f.calls[marker] == 1 {
				return "", err
			}
		}
	}
	return "section text", nil
}

func testContext(focus string) task.Context {
	return task.Context{Company: "Acme", Focus: focus}
}

func TestRunAllTasksSucceed(t *testing.T) {
	d := NewDispatcher(newFakeProvider(), 8, time.Minute, logger.NopLogger{})

	names := task.ForFullRound(false)
	results := d.Run(context.Background(), names, testContext(""), nil)

	if len(results) != len(names) {
		t.Fatalf("got %d results, want %d", len(results), len(names))
	}
	for _, n := range names {
		res, ok := results[n]
		if !ok {
			t.Fatalf("missing result for %s", n)
		}
		if res.Err != nil {
			t.Errorf("task %s failed: %v", n, res.Err)
		}
		if res.Output == "" {
			t.Errorf("task %s produced no output", n)
		}
	}
}

func TestRunFailureIsolation(t *testing.T) {
	// The pricing prompt is the only one containing this phrase.
	fake := newFakeProvider()
	fake.failFor["pricing and commercial model"] = errors.New("model exploded")

	d := NewDispatcher(fake, 8, time.Minute, logger.NopLogger{})
	names := task.ForFullRound(false)
	results := d.Run(context.Background(), names, testContext(""), nil)

	failed := 0
	for _, n := range names {
		res := results[n]
		if res.Err != nil {
			failed++
			if n != task.Pricing {
				t.Errorf("unexpected failure for %s: %v", n, res.Err)
			}
		}
	}
	if failed != 1 {
		t.Errorf("exactly one task should fail, got %d", failed)
	}
}

func TestRunRetriesTransientOnce(t *testing.T) {
	fake := newFakeProvider()
	fake.failOnce["pricing and commercial model"] = llm.Transient(errors.New("429"))

	d := NewDispatcher(fake, 2, time.Minute, logger.NopLogger{})
	results := d.Run(context.Background(), []task.Name{task.Pricing}, testContext(""), nil)

	res := results[task.Pricing]
	if res.Err != nil {
		t.Fatalf("transient failure should recover on retry: %v", res.Err)
	}
	if res.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.Attempts)
	}
}

func TestRunDoesNotRetryFatal(t *testing.T) {
	fake := newFakeProvider()
	fake.failFor["pricing and commercial model"] = errors.New("bad request")

	d := NewDispatcher(fake, 2, time.Minute, logger.NopLogger{})
	results := d.Run(context.Background(), []task.Name{task.Pricing}, testContext(""), nil)

	res := results[task.Pricing]
	if res.Err == nil {
		t.Fatal("expected failure")
	}
	if res.Attempts != 1 {
		t.Errorf("fatal errors must not be retried, attempts = %d", res.Attempts)
	}
}

func TestRunPerTaskTimeout(t *testing.T) {
	fake := newFakeProvider()
	fake.delay = 200 * time.Millisecond

	d := NewDispatcher(fake, 2, 20*time.Millisecond, logger.NopLogger{})
	results := d.Run(context.Background(), []task.Name{task.Overview}, testContext(""), nil)

	if results[task.Overview].Err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestRunSettlesEveryTaskOnCancel(t *testing.T) {
	fake := newFakeProvider()
	fake.delay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	d := NewDispatcher(fake, 2, time.Minute, logger.NopLogger{})
	names := task.ForFullRound(false)
	results := d.Run(ctx, names, testContext(""), nil)

	if len(results) != len(names) {
		t.Fatalf("cancelled round must still settle all tasks: %d of %d", len(results), len(names))
	}
}

func TestRunInvokesCompletionHook(t *testing.T) {
	d := NewDispatcher(newFakeProvider(), 4, time.Minute, logger.NopLogger{})

	var mu sync.Mutex
	done := make(map[task.Name]bool)
	d.Run(context.Background(), []task.Name{task.Overview, task.Goals}, testContext(""), func(n task.Name, _ Result) {
		mu.Lock()
		done[n] = true
		mu.Unlock()
	})

	if !done[task.Overview] || !done[task.Goals] {
		t.Errorf("completion hook missed tasks: %v", done)
	}
}
