// Package historian drains the room action queue into Postgres in batches
// and marks rooms abandoned once they go quiet.
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/partyroom/internal/cache"
	"github.com/jason-s-yu/partyroom/internal/models"
	"github.com/sirupsen/logrus"
)

// Queue yields the next record, or nil when none arrived within timeout.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.ActionRecord, error)
}

// Store persists batches and sweeps inactive rooms.
type Store interface {
	InsertActions(ctx context.Context, recs []models.ActionRecord) error
	MarkAbandoned(ctx context.Context, cutoff time.Time) (int64, error)
}

// Options tune batching and the inactivity sweep.
type Options struct {
	BatchSize  int
	FlushDelay time.Duration
	Inactivity time.Duration
	SweepEvery time.Duration
}

// Service is the historian main loop.
type Service struct {
	queue  Queue
	store  Store
	opts   Options
	logger *logrus.Logger

	batchMu sync.Mutex
	batch   []models.ActionRecord
}

func New(queue Queue, store Store, opts Options, logger *logrus.Logger) *Service {
	if opts.BatchSize < 1 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.SweepEvery <= 0 {
		opts.SweepEvery = time.Minute
	}
	return &Service{
		queue:  queue,
		store:  store,
		opts:   opts,
		logger: logger,
		batch:  make([]models.ActionRecord, 0, opts.BatchSize),
	}
}

// Run blocks until ctx ends. Whatever is still batched is flushed on the
// way out.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.inactivityLoop(ctx)
	}()
	s.logger.Info("historian started")
	wg.Wait()

	// ctx is already done; the final flush gets its own deadline.
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.logger.Info("historian stopped")
}

// readLoop pops with a timeout of one flush delay, so a quiet queue still
// flushes on schedule.
func (s *Service) readLoop(ctx context.Context) {
	lastFlush := time.Now()
	for ctx.Err() == nil {
		rec, err := s.queue.Pop(ctx, s.opts.FlushDelay)
		switch {
		case errors.Is(err, cache.ErrMalformedRecord):
			s.logger.WithError(err).Warn("skipping malformed action record")
		case err != nil && ctx.Err() == nil:
			s.logger.WithError(err).Error("queue pop failed")
			// Avoid spinning on a dead Redis.
			select {
			case <-ctx.Done():
			case <-time.After(s.opts.FlushDelay):
			}
		case rec != nil:
			if s.append(*rec) {
				s.Flush(ctx)
				lastFlush = time.Now()
			}
		}
		if time.Since(lastFlush) >= s.opts.FlushDelay {
			s.Flush(ctx)
			lastFlush = time.Now()
		}
	}
}

// append adds a record and reports whether the batch is full.
func (s *Service) append(rec models.ActionRecord) bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, rec)
	return len(s.batch) >= s.opts.BatchSize
}

// Flush writes the current batch in one transaction. A failed batch is
// logged and dropped.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	batchCopy := make([]models.ActionRecord, len(s.batch))
	copy(batchCopy, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.store.InsertActions(ctx, batchCopy); err != nil {
		s.logger.WithField("count", len(batchCopy)).WithError(err).Error("failed to flush actions")
		return
	}
	s.logger.WithField("count", len(batchCopy)).Debug("flushed actions")
}

func (s *Service) inactivityLoop(ctx context.Context) {
	if s.opts.Inactivity <= 0 {
		return
	}
	ticker := time.NewTicker(s.opts.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(ctx, now)
		}
	}
}

func (s *Service) sweep(ctx context.Context, now time.Time) {
	n, err := s.store.MarkAbandoned(ctx, now.Add(-s.opts.Inactivity))
	if err != nil {
		s.logger.WithError(err).Warn("failed to mark abandoned rooms")
		return
	}
	if n > 0 {
		s.logger.WithField("rooms", n).Info("marked rooms abandoned due to inactivity")
	}
}
