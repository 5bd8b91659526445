package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shkarik/ordering/internal/client"
	"github.com/shkarik/ordering/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func snapshot(codes ...string) []models.OrderSummary {
	orders := make([]models.OrderSummary, 0, len(codes))
	for _, code := range codes {
		orders = append(orders, models.OrderSummary{PublicCode: code, Status: models.StatusNew})
	}
	return orders
}

func TestSnapshotReplacesWholesale(t *testing.T) {
	var tick atomic.Int64
	got := make(chan []models.OrderSummary, 16)

	s := New(Config{
		Interval: 5 * time.Millisecond,
		Fetch: func(ctx context.Context) ([]models.OrderSummary, error) {
			if tick.Add(1) == 1 {
				return snapshot("#AAAA", "#BBBB"), nil
			}
			return snapshot("#CCCC"), nil
		},
		OnSnapshot: func(orders []models.OrderSummary) { got <- orders },
		Logger:     testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case orders := <-got:
			if len(orders) == 1 && orders[0].PublicCode == "#CCCC" {
				latest := s.Snapshot()
				if len(latest) != 1 {
					t.Fatalf("held snapshot = %+v, want replaced wholesale", latest)
				}
				return
			}
		case <-deadline:
			t.Fatal("never saw the replacement snapshot")
		}
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	var applied [][]models.OrderSummary
	s := New(Config{
		OnSnapshot: func(orders []models.OrderSummary) { applied = append(applied, orders) },
		Logger:     testLogger(),
	})

	// Response for tick 2 lands before the slow response for tick 1.
	s.apply(2, snapshot("#NEWW"))
	s.apply(1, snapshot("#OLDD"))

	if len(applied) != 1 {
		t.Fatalf("applied %d snapshots, want 1", len(applied))
	}
	latest := s.Snapshot()
	if len(latest) != 1 || latest[0].PublicCode != "#NEWW" {
		t.Errorf("held snapshot = %+v, want the newer one kept", latest)
	}
}

func TestUnauthorizedStopsPolling(t *testing.T) {
	var fetches, unauth atomic.Int64
	s := New(Config{
		Interval: 5 * time.Millisecond,
		Fetch: func(ctx context.Context) ([]models.OrderSummary, error) {
			fetches.Add(1)
			return nil, client.ErrUnauthorized
		},
		OnUnauthorized: func() { unauth.Add(1) },
		Logger:         testLogger(),
	})

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop kept running after the session went unauthorized")
	}

	settled := fetches.Load()
	time.Sleep(50 * time.Millisecond)
	if fetches.Load() != settled {
		t.Error("fetches continued after stop")
	}
	if unauth.Load() != 1 {
		t.Errorf("onUnauthorized called %d times, want exactly once", unauth.Load())
	}
}

func TestFetchErrorRetriedNextTick(t *testing.T) {
	var tick atomic.Int64
	got := make(chan []models.OrderSummary, 1)

	s := New(Config{
		Interval: 5 * time.Millisecond,
		Fetch: func(ctx context.Context) ([]models.OrderSummary, error) {
			if tick.Add(1) < 3 {
				return nil, errors.New("dial tcp: connection refused")
			}
			return snapshot("#AAAA"), nil
		},
		OnSnapshot: func(orders []models.OrderSummary) {
			select {
			case got <- orders:
			default:
			}
		},
		Logger: testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case orders := <-got:
		if orders[0].PublicCode != "#AAAA" {
			t.Errorf("snapshot = %+v", orders)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("transient fetch errors were not retried")
	}
}

func TestActiveDelivery(t *testing.T) {
	orders := []models.OrderSummary{
		{PublicCode: "#AAAA", Status: models.StatusReady},
		{PublicCode: "#BBBB", Status: models.StatusDelivering},
		{PublicCode: "#CCCC", Status: models.StatusReady},
	}

	active := ActiveDelivery(orders)
	if active == nil || active.PublicCode != "#BBBB" {
		t.Fatalf("active = %+v, want #BBBB", active)
	}
	if ActiveDelivery(snapshot("#AAAA")) != nil {
		t.Error("active delivery reported with nothing in flight")
	}

	ready := ReadyOrders(orders)
	if len(ready) != 2 {
		t.Errorf("ready = %+v, want the two ready orders", ready)
	}
}
