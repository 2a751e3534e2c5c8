package audit

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Service queues records on a buffered channel and flushes them to the
// store in batches from a background worker. When the channel is full the
// record is dropped and counted; audit pressure must never stall dispatch.
type Service struct {
	store   Store
	records chan Record
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
	once    sync.Once

	batchSize     int
	flushInterval time.Duration
	dropCount     atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithBatchSize sets how many records are written per batch. Default 64.
func WithBatchSize(n int) Option {
	return func(s *Service) { s.batchSize = n }
}

// WithFlushInterval sets how often a partial batch is flushed. Default 1s.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Service) { s.flushInterval = d }
}

// WithChannelSize sets the queue capacity. Default 1024.
func WithChannelSize(n int) Option {
	return func(s *Service) { s.records = make(chan Record, n) }
}

// NewService creates the audit service. Call Start to launch the worker.
func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:         store,
		records:       make(chan Record, 1024),
		done:          make(chan struct{}),
		logger:        logger,
		batchSize:     64,
		flushInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the background writer.
func (s *Service) Start() {
	s.wg.Add(1)
	go s.worker()
}

// Stop flushes pending records and stops the worker. Safe to call more
// than once.
func (s *Service) Stop() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

// Log enqueues a record without blocking. A full queue drops the record
// and bumps the drop counter.
func (s *Service) Log(r Record) {
	select {
	case s.records <- r:
	default:
		s.dropCount.Add(1)
	}
}

// Depth returns the current queue depth.
func (s *Service) Depth() int { return len(s.records) }

// Capacity returns the queue capacity.
func (s *Service) Capacity() int { return cap(s.records) }

// Dropped returns how many records were dropped under backpressure.
func (s *Service) Dropped() int64 { return s.dropCount.Load() }

func (s *Service) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, s.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.store.WriteBatch(batch); err != nil {
			s.logger.Error("audit batch write failed", "count", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-s.done:
			// Drain whatever is queued, then flush and exit.
			for {
				select {
				case r := <-s.records:
					batch = append(batch, r)
					if len(batch) >= s.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case r := <-s.records:
			batch = append(batch, r)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
