package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNoFiles      = errors.New("batch has no input files")
	ErrUnknownBatch = errors.New("unknown batch handle")
)

// Scheduler fans batches out over bounded worker pools. Each batch gets its
// own pool sized from its configuration snapshot; batches are independent.
type Scheduler struct {
	newExecutor ExecutorFactory
	sink        ProgressSink
	log         zerolog.Logger

	mu   sync.Mutex
	runs map[string]*BatchRun
}

func NewScheduler(factory ExecutorFactory, sink ProgressSink, log zerolog.Logger) *Scheduler {
	if sink == nil {
		sink = NopSink{}
	}
	return &Scheduler{
		newExecutor: factory,
		sink:        sink,
		log:         log,
		runs:        make(map[string]*BatchRun),
	}
}

// Submit validates the request, snapshots it into tasks and starts the
// worker pool. It returns immediately with the live run.
func (s *Scheduler) Submit(ctx context.Context, req BatchRequest) (*BatchRun, error) {
	if len(req.Files) == 0 {
		return nil, ErrNoFiles
	}
	if err := req.Config.Validate(); err != nil {
		return nil, fmt.Errorf("batch config: %w", err)
	}

	handle := uuid.NewString()
	tasks := make([]Task, len(req.Files))
	for i, f := range req.Files {
		rel := f.RelPath
		if rel == "" {
			rel = filepath.Base(f.Path)
		}
		tasks[i] = Task{
			ID:      uuid.NewString(),
			Path:    f.Path,
			RelPath: rel,
			Config:  req.Config,
		}
	}

	run := newBatchRun(handle, tasks)
	s.mu.Lock()
	s.runs[handle] = run
	s.mu.Unlock()

	exec := s.newExecutor(req.Config)
	queue := make(chan Task, len(tasks))
	for _, t := range tasks {
		queue <- t
	}
	close(queue)

	workers := req.Config.EffectiveWorkers()
	if workers > len(tasks) {
		workers = len(tasks)
	}
	s.log.Info().
		Str("batch", handle).
		Int("files", len(tasks)).
		Int("workers", workers).
		Msg("batch submitted")

	run.setRunning()
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, run, exec, queue)
	}
	go func() {
		wg.Wait()
		state, counts := run.finalize()
		s.log.Info().
			Str("batch", handle).
			Stringer("state", state).
			Int("succeeded", counts.Succeeded).
			Int("skipped", counts.Skipped).
			Int("failed", counts.Failed).
			Msg("batch terminal")
		s.sink.OnBatchTerminal(handle, state, counts)
	}()
	return run, nil
}

// worker drains the queue. The cancel flag is checked after each dequeue and
// before any work starts, so a claimed-but-unstarted task is abandoned while
// a task already executing always runs to completion and reports an outcome.
func (s *Scheduler) worker(ctx context.Context, wg *sync.WaitGroup, run *BatchRun, exec Executor, queue <-chan Task) {
	defer wg.Done()
	for task := range queue {
		if run.cancelled.Load() {
			return
		}
		outcome := s.execute(ctx, exec, task)
		run.record(OutcomeRecord{Path: task.Path, Outcome: outcome})
		s.sink.OnTaskOutcome(run.handle, task.Path, outcome)
	}
}

// execute shields the pool from executor panics: a panicking task becomes a
// Failed outcome instead of taking the worker down.
func (s *Scheduler) execute(ctx context.Context, exec Executor, task Task) (outcome TaskOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Str("path", task.Path).
				Interface("panic", r).
				Msg("task panicked")
			outcome = Failed(ErrUnknown, fmt.Sprintf("internal error: %v", r))
		}
	}()
	return exec.Execute(ctx, task)
}

// Cancel flags the batch for cooperative cancellation.
func (s *Scheduler) Cancel(handle string) error {
	run, err := s.lookup(handle)
	if err != nil {
		return err
	}
	run.Cancel()
	s.log.Info().Str("batch", handle).Msg("cancellation requested")
	return nil
}

// Run returns the live run for a handle.
func (s *Scheduler) Run(handle string) (*BatchRun, error) {
	return s.lookup(handle)
}

func (s *Scheduler) lookup(handle string) (*BatchRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBatch, handle)
	}
	return run, nil
}
