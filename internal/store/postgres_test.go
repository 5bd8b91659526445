package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/shkarik/ordering/internal/lifecycle"
	"github.com/shkarik/ordering/pkg/models"
)

func getPostgres(t *testing.T) *sql.DB {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5432 user=shkarik password=shkarik dbname=shkarik sslmode=disable"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	if err := Bootstrap(db); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return db
}

func TestPostgresOrderRoundTrip(t *testing.T) {
	db := getPostgres(t)
	defer db.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	p := NewPostgres(db, logger)
	ctx := context.Background()

	order := &models.Order{
		ClientName:   "Интеграция",
		ClientPhone:  "+996700123456",
		DeliveryType: models.DeliveryDelivery,
		Address:      "ул. Тестовая 1",
		Items: []models.OrderItem{
			{Name: "Лагман", Price: 250, Quantity: 2},
			{Name: "Чай", Price: 30, Quantity: 1},
		},
		TotalPrice: 580,
		Status:     models.StatusNew,
	}
	if err := p.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() {
		db.Exec(`DELETE FROM order_items WHERE order_code = $1`, order.PublicCode)
		db.Exec(`DELETE FROM orders WHERE public_code = $1`, order.PublicCode)
	}()

	got, err := p.OrderByPublicCode(ctx, order.PublicCode)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.TotalPrice != 580 || len(got.Items) != 2 {
		t.Errorf("round trip lost data: total=%d items=%d", got.TotalPrice, len(got.Items))
	}

	bySecret, err := p.OrderBySecretCode(ctx, order.SecretCode)
	if err != nil {
		t.Fatalf("lookup by secret: %v", err)
	}
	if bySecret.PublicCode != order.PublicCode {
		t.Errorf("secret lookup returned %s", bySecret.PublicCode)
	}
}

func TestPostgresConditionalUpdate(t *testing.T) {
	db := getPostgres(t)
	defer db.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	p := NewPostgres(db, logger)
	ctx := context.Background()

	order := &models.Order{
		ClientName:   "Гонка",
		ClientPhone:  "+996700123456",
		DeliveryType: models.DeliveryDelivery,
		Address:      "ул. Тестовая 2",
		TotalPrice:   100,
		Status:       models.StatusReady,
	}
	if err := p.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() {
		db.Exec(`DELETE FROM orders WHERE public_code = $1`, order.PublicCode)
	}()

	if err := p.UpdateStatus(ctx, order.PublicCode, []models.Status{models.StatusReady}, models.StatusDelivering, "c1"); err != nil {
		t.Fatalf("first take: %v", err)
	}

	// Second take from the stale snapshot loses.
	err := p.UpdateStatus(ctx, order.PublicCode, []models.Status{models.StatusReady}, models.StatusDelivering, "c2")
	if !errors.Is(err, lifecycle.ErrIllegalTransition) {
		t.Fatalf("contested take: got %v, want ErrIllegalTransition", err)
	}

	got, _ := p.OrderByPublicCode(ctx, order.PublicCode)
	if got.AcceptedBy != "c1" {
		t.Errorf("accepted_by = %q, want c1", got.AcceptedBy)
	}

	err = p.UpdateStatus(ctx, "#----", []models.Status{models.StatusReady}, models.StatusDelivering, "c1")
	if !errors.Is(err, lifecycle.ErrOrderNotFound) {
		t.Errorf("missing order: got %v, want ErrOrderNotFound", err)
	}
}
