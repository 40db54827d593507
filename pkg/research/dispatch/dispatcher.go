package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/pkg/llm"
	"ai-research-be/pkg/research/task"

	"github.com/panjf2000/ants/v2"
)

// Result is the outcome of one task in a round. Exactly one of Output / Err
// carries the result; Err is set for timeouts, provider failures and panics.
type Result struct {
	Task     task.Name
	Output   string
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// Dispatcher fans a round of analysis tasks over a bounded worker pool. One
// failing task never stops its siblings; the round always runs to completion
// and the caller decides what to do with partial results.
type Dispatcher struct {
	provider    llm.LLMProvider
	maxWorkers  int
	taskTimeout time.Duration
	logger      logger.ILogger
}

func NewDispatcher(provider llm.LLMProvider, maxWorkers int, taskTimeout time.Duration, log logger.ILogger) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	if taskTimeout <= 0 {
		taskTimeout = 2 * time.Minute
	}
	return &Dispatcher{
		provider:    provider,
		maxWorkers:  maxWorkers,
		taskTimeout: taskTimeout,
		logger:      log,
	}
}

// Run executes the named tasks against a shared immutable context snapshot.
// Tasks are submitted in input order and complete in any order; results are
// aggregated in one place under a mutex. onDone, when non-nil, is invoked
// once per settled task (from worker goroutines) for progress reporting.
//
// Cancelling ctx aborts the in-flight LLM calls but Run still waits for every
// task to settle before returning.
func (d *Dispatcher) Run(ctx context.Context, names []task.Name, tc task.Context, onDone func(task.Name, Result)) map[task.Name]Result {
	results := make(map[task.Name]Result, len(names))
	if len(names) == 0 {
		return results
	}

	poolSize := d.maxWorkers
	if len(names) < poolSize {
		poolSize = len(names)
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		// Pool construction only fails on invalid size; degrade to a
		// synchronous round rather than dropping the request.
		for _, name := range names {
			res := d.runOne(ctx, name, tc)
			results[name] = res
			if onDone != nil {
				onDone(name, res)
			}
		}
		return results
	}
	defer pool.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	settle := func(name task.Name, res Result) {
		mu.Lock()
		results[name] = res
		mu.Unlock()
		if onDone != nil {
			onDone(name, res)
		}
	}

	for _, name := range names {
		name := name
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			settle(name, d.runOne(ctx, name, tc))
		})
		if submitErr != nil {
			wg.Done()
			settle(name, Result{Task: name, Err: fmt.Errorf("submit task %s: %w", name, submitErr)})
		}
	}

	wg.Wait()
	return results
}

// runOne executes a single task with its own timeout, recovering panics and
// retrying once on a transient provider failure.
func (d *Dispatcher) runOne(ctx context.Context, name task.Name, tc task.Context) (res Result) {
	start := time.Now()
	res = Result{Task: name}

	defer func() {
		res.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("task %s panicked: %v", name, r)
			d.logger.Error("Dispatcher", "Task panicked", map[string]interface{}{
				"task": string(name), "panic": fmt.Sprintf("%v", r),
			})
		}
	}()

	def, ok := task.Get(name)
	if !ok {
		res.Err = fmt.Errorf("unknown task: %s", name)
		return res
	}

	prompt := def.BuildPrompt(tc)

	taskCtx, cancel := context.WithTimeout(ctx, d.taskTimeout)
	defer cancel()

	for attempt := 1; attempt <= 2; attempt++ {
		res.Attempts = attempt
		output, err := d.provider.Generate(taskCtx, prompt)
		if err == nil {
			res.Output = output
			res.Err = nil
			return res
		}
		res.Err = fmt.Errorf("task %s failed: %w", name, err)

		if !llm.IsTransient(err) || taskCtx.Err() != nil {
			break
		}
		d.logger.Warn("Dispatcher", "Transient task failure, retrying once", map[string]interface{}{
			"task": string(name), "error": err.Error(),
		})
	}
	return res
}
