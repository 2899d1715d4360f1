// Package engine owns the batch scheduler: the bounded worker pool, the task
// queue, cooperative cancellation, and outcome aggregation.
package engine

import (
	"context"

	"squish/internal/config"
)

// FileSpec is one input file in a batch request. RelPath is the path
// relative to the submission root, used to mirror directory structure under
// the output root; it defaults to the bare filename when empty.
type FileSpec struct {
	Path    string
	RelPath string
}

// BatchRequest is one submission: a file list plus a configuration snapshot.
type BatchRequest struct {
	Files  []FileSpec
	Config config.Config
}

// Task is one unit of work: a single input file bound to its batch
// configuration. Tasks are created at submission time and immutable after.
// Duplicate input paths within a batch are independent tasks with distinct
// IDs.
type Task struct {
	ID      string
	Path    string
	RelPath string
	Config  config.Config
}

// OutcomeStatus tags the TaskOutcome variant.
type OutcomeStatus int

const (
	StatusSucceeded OutcomeStatus = iota
	StatusSkipped
	StatusFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// ErrorKind classifies task failures.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrUnreadable
	ErrToolInvocationFailed
	ErrCompressionFailed
	ErrWriteFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnreadable:
		return "unreadable"
	case ErrToolInvocationFailed:
		return "tool invocation failed"
	case ErrCompressionFailed:
		return "compression failed"
	case ErrWriteFailed:
		return "write failed"
	default:
		return "unknown"
	}
}

// TaskOutcome is the structured result of one task. Exactly one outcome is
// produced per claimed task, regardless of cancellation.
type TaskOutcome struct {
	Status OutcomeStatus

	// Succeeded
	OriginalSize int64
	NewSize      int64
	OutputPath   string
	Strategy     string

	// Skipped
	Reason string

	// Failed
	Kind    ErrorKind
	Message string
}

func Succeeded(originalSize, newSize int64, outputPath, strategy string) TaskOutcome {
	return TaskOutcome{
		Status:       StatusSucceeded,
		OriginalSize: originalSize,
		NewSize:      newSize,
		OutputPath:   outputPath,
		Strategy:     strategy,
	}
}

func Skipped(reason string) TaskOutcome {
	return TaskOutcome{Status: StatusSkipped, Reason: reason}
}

func Failed(kind ErrorKind, message string) TaskOutcome {
	return TaskOutcome{Status: StatusFailed, Kind: kind, Message: message}
}

// BytesSaved is the size reduction for a successful outcome, zero otherwise.
func (o TaskOutcome) BytesSaved() int64 {
	if o.Status != StatusSucceeded {
		return 0
	}
	return o.OriginalSize - o.NewSize
}

// OutcomeRecord pairs an outcome with the input path it belongs to, in
// completion order.
type OutcomeRecord struct {
	Path    string
	Outcome TaskOutcome
}

// Counts aggregates outcomes per status for one batch.
type Counts struct {
	Succeeded int
	Skipped   int
	Failed    int
}

func (c Counts) Total() int {
	return c.Succeeded + c.Skipped + c.Failed
}

// BatchState is the batch lifecycle: Pending -> Running -> Completed or
// Cancelled.
type BatchState int

const (
	StatePending BatchState = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s BatchState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "cancelled"
	}
}

// ProgressSink receives per-task and terminal batch events. Implemented by
// the CLI/TUI collaborator; the engine never assumes anything about the
// consumer's threading beyond the per-worker ordering guarantee.
type ProgressSink interface {
	OnTaskOutcome(handle string, path string, outcome TaskOutcome)
	OnBatchTerminal(handle string, state BatchState, counts Counts)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) OnTaskOutcome(string, string, TaskOutcome)  {}
func (NopSink) OnBatchTerminal(string, BatchState, Counts) {}

// Executor runs the per-file pipeline for one task. Implemented by
// pipeline.Pipeline; tests substitute fakes.
type Executor interface {
	Execute(ctx context.Context, task Task) TaskOutcome
}

// ExecutorFactory builds the executor for one batch from its configuration
// snapshot.
type ExecutorFactory func(cfg config.Config) Executor
