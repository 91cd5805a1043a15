// Package audit persists audit entries off the request path.
package audit

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"backoffice/config"
	"backoffice/internal/domain/constants"
	deliverycontext "backoffice/internal/delivery/context"
	"backoffice/internal/domain/entity"
	"backoffice/internal/domain/repository"
	"backoffice/internal/domain/service"
	"backoffice/internal/infra/metrics"

	"go.uber.org/fx"
)

const (
	defaultBufferSize   = 1024
	defaultWriteTimeout = 5 * time.Second
)

var _ service.AuditRecorder = (*Dispatcher)(nil)

// Dispatcher queues entries in a bounded buffer and writes them from one goroutine.
// Record never blocks: a full buffer drops the entry and counts it.
type Dispatcher struct {
	repo         repository.AuditRepository
	logger       *slog.Logger
	metrics      *metrics.Metrics
	writeTimeout time.Duration
	now          func() time.Time

	ch        chan *entity.AuditEntry
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
}

// Params holds dependencies for the Dispatcher, injected by Fx
type Params struct {
	fx.In

	Lc      fx.Lifecycle
	Config  *config.Config
	Logger  *slog.Logger
	Repo    repository.AuditRepository
	Metrics *metrics.Metrics
}

// NewDispatcher builds a dispatcher whose worker runs between fx start and stop.
func NewDispatcher(params Params) *Dispatcher {
	writeTimeout := defaultWriteTimeout
	if params.Config.Auth != nil && params.Config.Auth.DatastoreTimeout > 0 {
		writeTimeout = params.Config.Auth.DatastoreTimeout
	}

	d := newDispatcher(params.Repo, params.Logger, params.Metrics, defaultBufferSize, writeTimeout)

	params.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			d.Start()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			return d.Close(ctx)
		},
	})

	return d
}

func newDispatcher(repo repository.AuditRepository, logger *slog.Logger, m *metrics.Metrics, bufferSize int, writeTimeout time.Duration) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	return &Dispatcher{
		repo:         repo,
		logger:       logger,
		metrics:      m,
		writeTimeout: writeTimeout,
		now:          time.Now,
		ch:           make(chan *entity.AuditEntry, bufferSize),
		done:         make(chan struct{}),
	}
}

// Start launches the writer goroutine. Calling it twice is harmless.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.run()
	})
}

// Record enqueues a copy of entry stamped with the creation time and request id.
// Auth attempts are counted whether or not the entry is dropped.
func (d *Dispatcher) Record(ctx context.Context, entry *entity.AuditEntry) {
	if d == nil || entry == nil || d.closed.Load() {
		return
	}

	if d.metrics != nil && entry.Resource == constants.ResourceAuth {
		d.metrics.AuthEvent(entry.Action, string(entry.Status))
	}

	queued := *entry
	if queued.CreatedAt.IsZero() {
		queued.CreatedAt = d.now()
	}
	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		metadata := make(map[string]any, len(entry.Metadata)+1)
		maps.Copy(metadata, entry.Metadata)
		metadata["request_id"] = requestID
		queued.Metadata = metadata
	}

	select {
	case d.ch <- &queued:
	case <-d.done:
	default:
		d.dropped.Add(1)
		if d.metrics != nil {
			d.metrics.AuditDropped()
		}
		d.logger.WarnContext(ctx, "Audit buffer full, entry dropped",
			slog.String("action", queued.Action),
			slog.String("resource", queued.Resource),
		)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case entry := <-d.ch:
			d.write(entry)
		case <-d.done:
			for {
				select {
				case entry := <-d.ch:
					d.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) write(entry *entity.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	err := d.repo.Create(ctx, entry)
	if d.metrics != nil {
		d.metrics.AuditWritten(err == nil)
	}
	if err != nil {
		d.logger.Error("Failed to write audit entry",
			slog.String("action", entry.Action),
			slog.String("resource", entry.Resource),
			slog.String("status", string(entry.Status)),
			slog.Any("error", err),
		)
	}
}

// Close stops accepting entries and waits for the buffer to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}

	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
	})

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		d.logger.Warn("Audit drain interrupted", slog.Int("pending", len(d.ch)))

		return ctx.Err()
	}
}

// Dropped reports how many entries were lost to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}

	return d.dropped.Load()
}
