package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"coursehub/internal/model"
	"coursehub/internal/repository"
)

const (
	eventBatchSize     = 10
	eventFlushInterval = time.Second
	eventBufferSize    = 100
)

// EventRecorder writes team request events asynchronously in small batches.
type EventRecorder struct {
	repo   repository.TeamRequestEventRepository
	log    logrus.FieldLogger
	events chan model.TeamRequestEvent
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewEventRecorder starts the background writer. Call Close to flush it.
func NewEventRecorder(repo repository.TeamRequestEventRepository, log logrus.FieldLogger) *EventRecorder {
	r := &EventRecorder{
		repo:   repo,
		log:    log,
		events: make(chan model.TeamRequestEvent, eventBufferSize),
		done:   make(chan struct{}),
	}
	go r.worker()
	return r
}

// Record queues events. When the buffer is full, or the recorder is closed,
// they are written synchronously instead.
func (r *EventRecorder) Record(ctx context.Context, events ...model.TeamRequestEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range events {
		if events[i].CreatedAt.IsZero() {
			events[i].CreatedAt = time.Now().UTC()
		}
		if r.closed {
			r.writeOne(ctx, events[i])
			continue
		}
		select {
		case r.events <- events[i]:
		default:
			r.writeOne(ctx, events[i])
		}
	}
}

// Close stops accepting queued events and waits for pending ones to be written.
func (r *EventRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()

	<-r.done
}

func (r *EventRecorder) worker() {
	defer close(r.done)

	ctx := context.Background()
	batch := make([]model.TeamRequestEvent, 0, eventBatchSize)
	ticker := time.NewTicker(eventFlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.repo.CreateBatch(ctx, batch); err != nil {
			r.log.WithError(err).WithField("events", len(batch)).Warn("write team request events")
		}
		batch = batch[:0]
	}

	for {
		select {
		case event, ok := <-r.events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, event)
			if len(batch) >= eventBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (r *EventRecorder) writeOne(ctx context.Context, event model.TeamRequestEvent) {
	if err := r.repo.Create(ctx, &event); err != nil {
		r.log.WithError(err).WithField("request_id", event.RequestID).Warn("write team request event")
	}
}
