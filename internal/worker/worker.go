package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"neuroflow/internal/backend"
	"neuroflow/internal/config"
	"neuroflow/internal/logging"
	"neuroflow/internal/services"
	"neuroflow/internal/session"
)

type queued struct {
	id  string
	req Request
}

// Worker runs analysis requests on a single goroutine against one live
// session. Submit never blocks; everything else happens in order on the
// worker goroutine and surfaces through the event hub.
type Worker struct {
	cfg    config.Config
	engine backend.Interface
	hub    *Hub
	logger *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	mailbox []queued
	closed  bool

	done        chan struct{}
	batchCancel atomic.Bool
}

// New starts the worker goroutine. The caller owns shutdown via Close.
func New(cfg config.Config, engine backend.Interface, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &Worker{
		cfg:    cfg,
		engine: engine,
		hub:    NewHub(cfg.Worker.EventBufferSize),
		logger: logging.NewComponentLogger(logger, "worker"),
		done:   make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// Hub exposes the event stream for hosts to drain.
func (w *Worker) Hub() *Hub { return w.hub }

// Submit queues req and returns its correlation ID immediately. Validation
// and precondition checks happen on the worker goroutine; their failures
// arrive as error events tagged with the returned ID.
func (w *Worker) Submit(req Request) (string, error) {
	id := uuid.NewString()
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return "", services.Wrap(services.ErrValidation, string(req.Op), "submit", "worker is closed", nil)
	}
	w.mailbox = append(w.mailbox, queued{id: id, req: req})
	w.cond.Signal()
	w.mu.Unlock()
	return id, nil
}

// CancelBatch requests cooperative cancellation of a running batch job. The
// flag is polled at item boundaries; the in-flight item finishes first.
func (w *Worker) CancelBatch() {
	w.batchCancel.Store(true)
}

// Close stops the worker after the in-flight request. Queued requests are
// rejected with error events. Close blocks until the goroutine has exited.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	w.batchCancel.Store(true)
	w.cond.Broadcast()
	w.mu.Unlock()
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	state := session.NewState()

	for {
		w.mu.Lock()
		for len(w.mailbox) == 0 && !w.closed {
			w.cond.Wait()
		}
		if w.closed {
			rejected := w.mailbox
			w.mailbox = nil
			w.mu.Unlock()
			w.rejectPending(rejected)
			return
		}
		item := w.mailbox[0]
		w.mailbox = w.mailbox[1:]
		w.mu.Unlock()

		w.dispatch(state, item)
	}
}

// rejectPending turns every queued request into an error event so no
// submission disappears silently at shutdown.
func (w *Worker) rejectPending(pending []queued) {
	for _, item := range pending {
		details := services.Details(services.Wrap(
			services.ErrValidation, string(item.req.Op), "", "worker closed before request ran", nil))
		w.hub.Publish(Event{
			Kind:          EventError,
			CorrelationID: item.id,
			Op:            item.req.Op,
			Message:       details.Message,
			Error:         &details,
		})
	}
}

// dispatch runs one request with full fault isolation. A panicking backend
// is recovered into an error event and the loop continues.
func (w *Worker) dispatch(state *session.State, item queued) {
	ctx := services.WithRequestID(context.Background(), item.id)
	ctx = services.WithStage(ctx, string(item.req.Op))
	logger := logging.WithContext(ctx, w.logger)

	defer func() {
		if r := recover(); r != nil {
			err := services.Wrap(services.ErrBackend, string(item.req.Op), "",
				"backend failure while processing request", nil)
			logger.Error("request panicked",
				logging.Any("panic", r),
				logging.String(logging.FieldCorrelationID, item.id),
			)
			w.publishError(item, err)
		}
	}()

	w.hub.Publish(Event{
		Kind:          EventProgress,
		CorrelationID: item.id,
		Op:            item.req.Op,
		Message:       string(item.req.Op) + " started",
	})

	result, err := w.handle(ctx, state, item)
	if err != nil {
		logger.Error("request failed",
			logging.Error(err),
			logging.String(logging.FieldCorrelationID, item.id),
		)
		w.publishError(item, err)
		return
	}

	logger.Info("request completed",
		logging.String(logging.FieldCorrelationID, item.id),
		logging.String("op", string(item.req.Op)),
	)
	w.hub.Publish(Event{
		Kind:          EventStageCompleted,
		CorrelationID: item.id,
		Op:            item.req.Op,
		Message:       string(item.req.Op) + " completed",
		Result:        result,
	})
}

func (w *Worker) publishError(item queued, err error) {
	details := services.Details(err)
	w.hub.Publish(Event{
		Kind:          EventError,
		CorrelationID: item.id,
		Op:            item.req.Op,
		Message:       details.Message,
		Error:         &details,
	})
}
