package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shkarik/ordering/internal/client"
	"github.com/shkarik/ordering/pkg/models"
)

// Per-role poll intervals.
const (
	ChefInterval    = 5 * time.Second
	CourierInterval = 4 * time.Second
)

// FetchFunc pulls the current order snapshot for a role.
type FetchFunc func(ctx context.Context) ([]models.OrderSummary, error)

// Synchronizer converges a role view on server truth by fixed-interval
// polling. Each tick fires one fetch and the snapshot replaces the held set
// wholesale. Fetches are fire-and-forget: a slow response can arrive after a
// newer one, so every fetch carries a monotonic sequence number and anything
// older than the last applied snapshot is discarded.
type Synchronizer struct {
	interval       time.Duration
	fetch          FetchFunc
	onSnapshot     func([]models.OrderSummary)
	onUnauthorized func()
	logger         *logrus.Logger

	mu          sync.Mutex
	nextSeq     uint64
	appliedSeq  uint64
	latest      []models.OrderSummary
	stopped     bool
	stop        chan struct{}
	stopOnce    sync.Once
	unauthOnce  sync.Once
}

type Config struct {
	Interval       time.Duration
	Fetch          FetchFunc
	OnSnapshot     func([]models.OrderSummary)
	OnUnauthorized func()
	Logger         *logrus.Logger
}

func New(cfg Config) *Synchronizer {
	return &Synchronizer{
		interval:       cfg.Interval,
		fetch:          cfg.Fetch,
		onSnapshot:     cfg.OnSnapshot,
		onUnauthorized: cfg.OnUnauthorized,
		logger:         cfg.Logger,
		stop:           make(chan struct{}),
	}
}

// NewChef polls the kitchen feed.
func NewChef(c *client.Client, onSnapshot func([]models.OrderSummary), onUnauthorized func(), logger *logrus.Logger) *Synchronizer {
	return New(Config{
		Interval:       ChefInterval,
		Fetch:          c.Orders,
		OnSnapshot:     onSnapshot,
		OnUnauthorized: onUnauthorized,
		Logger:         logger,
	})
}

// NewCourier polls the delivery feed.
func NewCourier(c *client.Client, code string, onSnapshot func([]models.OrderSummary), onUnauthorized func(), logger *logrus.Logger) *Synchronizer {
	return New(Config{
		Interval: CourierInterval,
		Fetch: func(ctx context.Context) ([]models.OrderSummary, error) {
			return c.CourierOrders(ctx, code)
		},
		OnSnapshot:     onSnapshot,
		OnUnauthorized: onUnauthorized,
		Logger:         logger,
	})
}

// Run polls until ctx is cancelled or the session goes unauthorized. The
// first fetch fires immediately; fetch failures are logged and the next tick
// retries.
func (s *Synchronizer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.launch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.launch(ctx)
		}
	}
}

func (s *Synchronizer) launch(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.nextSeq++
	seq := s.nextSeq
	s.mu.Unlock()

	go func() {
		orders, err := s.fetch(ctx)
		if err != nil {
			s.handleError(err)
			return
		}
		s.apply(seq, orders)
	}()
}

func (s *Synchronizer) handleError(err error) {
	if errors.Is(err, client.ErrUnauthorized) {
		// Session gone: stop polling and send the view to login. The loop
		// never retries authentication itself.
		s.unauthOnce.Do(func() {
			s.Stop()
			if s.onUnauthorized != nil {
				s.onUnauthorized()
			}
		})
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	// Swallowed on purpose: the next tick is the retry.
	s.logger.WithError(err).Warn("Poll tick failed")
}

func (s *Synchronizer) apply(seq uint64, orders []models.OrderSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || seq <= s.appliedSeq {
		return
	}
	s.appliedSeq = seq
	s.latest = orders

	if s.onSnapshot != nil {
		s.onSnapshot(orders)
	}
}

// Snapshot returns the last applied order set.
func (s *Synchronizer) Snapshot() []models.OrderSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OrderSummary(nil), s.latest...)
}

func (s *Synchronizer) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stop) })
}

// ActiveDelivery returns the order this courier is currently delivering, or
// nil. The courier view shows only this order while one is in flight.
func ActiveDelivery(orders []models.OrderSummary) *models.OrderSummary {
	for i := range orders {
		if orders[i].Status == models.StatusDelivering {
			return &orders[i]
		}
	}
	return nil
}

// ReadyOrders filters the snapshot down to orders waiting for a courier.
func ReadyOrders(orders []models.OrderSummary) []models.OrderSummary {
	var ready []models.OrderSummary
	for _, o := range orders {
		if o.Status == models.StatusReady {
			ready = append(ready, o)
		}
	}
	return ready
}
