package positionstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vczyh/mysql-cdc/position"
)

const DefaultSaveInterval = time.Second

type SaverOption interface {
	apply(*Saver)
}

type saverOptionFunc func(*Saver)

func (f saverOptionFunc) apply(s *Saver) {
	f(s)
}

// WithInterval sets how often the saver polls its source.
func WithInterval(interval time.Duration) SaverOption {
	return saverOptionFunc(func(s *Saver) {
		s.interval = interval
	})
}

func WithLogger(logger *zap.Logger) SaverOption {
	return saverOptionFunc(func(s *Saver) {
		s.logger = logger
	})
}

// Saver polls a position source, such as Replica.Position, and writes the
// position to a store whenever it changed.
type Saver struct {
	store    Store
	source   func() position.Position
	interval time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	saved *position.Position
}

func NewSaver(store Store, source func() position.Position, opts ...SaverOption) *Saver {
	s := &Saver{
		store:    store,
		source:   source,
		interval: DefaultSaveInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt.apply(s)
	}
	if s.interval <= 0 {
		s.interval = DefaultSaveInterval
	}
	return s
}

// Run saves every interval until ctx is done, then saves once more. Failed
// saves are logged and retried on the next tick.
func (s *Saver) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.Flush(context.Background())
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.logger.Warn("save position failed", zap.Error(err))
			}
		}
	}
}

// Flush saves the current position of the source unless it is already
// stored.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.source()
	if p.IsZero() || (s.saved != nil && equal(*s.saved, p)) {
		return nil
	}
	if err := s.store.Save(ctx, p); err != nil {
		return err
	}
	s.saved = &p
	s.logger.Debug("position saved", zap.Stringer("position", p))
	return nil
}

// Close flushes and closes the store.
func (s *Saver) Close() error {
	return multierr.Append(s.Flush(context.Background()), s.store.Close())
}
