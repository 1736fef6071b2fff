package worker

import (
	"context"
	"sync"
	"time"

	"neuroflow/internal/batch"
	"neuroflow/internal/services"
	"neuroflow/internal/session"
	"neuroflow/internal/stagegate"
)

// EventKind enumerates the event vocabulary delivered to hosts.
type EventKind string

const (
	EventLog            EventKind = "log"
	EventError          EventKind = "error"
	EventProgress       EventKind = "progress"
	EventStageCompleted EventKind = "stage_completed"
	EventBatchProgress  EventKind = "batch_progress"
	EventBatchSummary   EventKind = "batch_summary"
)

// StageResult is the snapshot payload of a completion event. It carries
// counts, labels, and cloned derived artifacts, never a reference into the
// live session.
type StageResult struct {
	Op      session.Operation      `json:"op"`
	Label   string                 `json:"label,omitempty"`
	Ordinal int                    `json:"ordinal,omitempty"`
	Derived stagegate.DerivedState `json:"derived"`

	ChannelCount    int     `json:"channel_count,omitempty"`
	SampleRate      float64 `json:"sample_rate,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	EpochCount      int     `json:"epoch_count,omitempty"`
	SavedPath       string  `json:"saved_path,omitempty"`

	Spectrum      *session.SpectralSummary    `json:"spectrum,omitempty"`
	Decomposition *session.Decomposition      `json:"decomposition,omitempty"`
	Evoked        *session.Evoked             `json:"evoked,omitempty"`
	Spectrogram   *session.Spectrogram        `json:"spectrogram,omitempty"`
	Connectivity  *session.ConnectivityMatrix `json:"connectivity,omitempty"`

	// BatchSummary is set only on run_batch completions. A non-empty
	// SetupError inside it means no item ran.
	BatchSummary *batch.Summary `json:"batch_summary,omitempty"`
}

// Event is one delivery from the worker to its host. Sequence numbers are
// assigned by the hub and strictly increase in publication order.
type Event struct {
	Sequence      uint64                 `json:"seq"`
	Timestamp     time.Time              `json:"ts"`
	Kind          EventKind              `json:"kind"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Op            session.Operation      `json:"op,omitempty"`
	Message       string                 `json:"message,omitempty"`
	Error         *services.ErrorDetails `json:"error,omitempty"`
	Result        *StageResult           `json:"result,omitempty"`
	BatchProgress *batch.Progress        `json:"batch_progress,omitempty"`
	BatchSummary  *batch.Summary         `json:"batch_summary,omitempty"`
}

// Hub stores recent worker events and wakes waiters when new events arrive.
// Delivery order matches publication order; consumers poll with a sequence
// cursor so a slow host loses old events, never their ordering.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
}

// NewHub constructs a bounded in-memory event buffer.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &Hub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish appends evt to the hub, stamping its sequence number.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Fetch returns events with sequence greater than since. When wait is true,
// Fetch blocks until at least one event is available or the context ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Tail returns the most recent limit events without blocking.
func (h *Hub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	start := len(h.buffer) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

// FirstSequence reports the smallest sequence number still buffered.
func (h *Hub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return h.nextSeq
	}
	return h.buffer[0].Sequence
}

// Events streams every event published after the call, in order, until ctx
// ends. The channel is closed on cancellation.
func (h *Hub) Events(ctx context.Context) <-chan Event {
	out := make(chan Event)
	_, since := h.Tail(0)
	go func() {
		defer close(out)
		cursor := since
		for {
			events, next, err := h.Fetch(ctx, cursor, 0, true)
			for _, evt := range events {
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
			cursor = next
		}
	}()
	return out
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	startIdx := 0
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
		if i == len(h.buffer)-1 {
			return nil, h.nextSeq
		}
	}
	end := startIdx + limit
	if end > len(h.buffer) {
		end = len(h.buffer)
	}
	out := make([]Event, end-startIdx)
	copy(out, h.buffer[startIdx:end])
	return out, h.nextSeq
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
