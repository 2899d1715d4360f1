package engine

import (
	"sync"
	"sync/atomic"
)

// BatchRun is the live state of one submitted batch. All accessors are safe
// for concurrent use.
type BatchRun struct {
	handle string
	tasks  []Task

	cancelled atomic.Bool

	mu      sync.Mutex
	state   BatchState
	records []OutcomeRecord
	drained int
	counts  Counts

	outcomes chan OutcomeRecord
	done     chan struct{}
}

func newBatchRun(handle string, tasks []Task) *BatchRun {
	return &BatchRun{
		handle: handle,
		tasks:  tasks,
		state:  StatePending,
		// One slot per task: workers never block on delivery.
		outcomes: make(chan OutcomeRecord, len(tasks)),
		done:     make(chan struct{}),
	}
}

func (b *BatchRun) Handle() string { return b.handle }

func (b *BatchRun) TaskCount() int { return len(b.tasks) }

func (b *BatchRun) State() BatchState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *BatchRun) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Outcomes streams records in completion order. The channel is closed once
// the batch reaches a terminal state.
func (b *BatchRun) Outcomes() <-chan OutcomeRecord {
	return b.outcomes
}

// Poll drains the records that arrived since the previous Poll call.
func (b *BatchRun) Poll() []OutcomeRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	fresh := b.records[b.drained:]
	if len(fresh) == 0 {
		return nil
	}
	out := make([]OutcomeRecord, len(fresh))
	copy(out, fresh)
	b.drained = len(b.records)
	return out
}

// Done is closed when the batch reaches a terminal state.
func (b *BatchRun) Done() <-chan struct{} { return b.done }

// Cancel requests cooperative cancellation. Workers finish the task they
// have already claimed; queued tasks are abandoned. Idempotent.
func (b *BatchRun) Cancel() {
	b.cancelled.Store(true)
}

func (b *BatchRun) setRunning() {
	b.mu.Lock()
	b.state = StateRunning
	b.mu.Unlock()
}

func (b *BatchRun) record(rec OutcomeRecord) {
	b.mu.Lock()
	b.records = append(b.records, rec)
	switch rec.Outcome.Status {
	case StatusSucceeded:
		b.counts.Succeeded++
	case StatusSkipped:
		b.counts.Skipped++
	default:
		b.counts.Failed++
	}
	b.mu.Unlock()
	b.outcomes <- rec
}

// finalize fixes the terminal state and closes the streams. A batch ends
// Cancelled only when cancellation was requested and some tasks were never
// claimed; a cancel that lands after the last task still completes the batch.
func (b *BatchRun) finalize() (BatchState, Counts) {
	b.mu.Lock()
	processed := len(b.records)
	if b.cancelled.Load() && processed < len(b.tasks) {
		b.state = StateCancelled
	} else {
		b.state = StateCompleted
	}
	state, counts := b.state, b.counts
	b.mu.Unlock()
	close(b.outcomes)
	close(b.done)
	return state, counts
}
