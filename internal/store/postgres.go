package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/shkarik/ordering/internal/lifecycle"
	"github.com/shkarik/ordering/pkg/models"
)

const codeRetries = 5

type Postgres struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewPostgres(db *sql.DB, logger *logrus.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

func (p *Postgres) CreateOrder(ctx context.Context, order *models.Order) error {
	order.CreatedAt = time.Now()

	// Codes are random; retry on the unique constraint instead of checking
	// for collisions up front.
	var lastErr error
	for attempt := 0; attempt < codeRetries; attempt++ {
		publicCode, err := newPublicCode()
		if err != nil {
			return err
		}
		secretCode, err := newSecretCode()
		if err != nil {
			return err
		}

		err = p.insertOrder(ctx, order, publicCode, secretCode)
		if err == nil {
			order.PublicCode = publicCode
			order.SecretCode = secretCode
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("order code collision persisted: %w", lastErr)
}

func (p *Postgres) insertOrder(ctx context.Context, order *models.Order, publicCode, secretCode string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (public_code, secret_code, client_name, client_phone,
			delivery_type, address, scheduled_time, comment, total_price, status, accepted_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		publicCode, secretCode, order.ClientName, order.ClientPhone,
		order.DeliveryType, order.Address, order.ScheduledTime, order.Comment,
		order.TotalPrice, order.Status, order.AcceptedBy, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_code, product_name, product_price, quantity)
			VALUES ($1, $2, $3, $4)`,
			publicCode, item.Name, item.Price, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit()
}

func (p *Postgres) OrderByPublicCode(ctx context.Context, publicCode string) (*models.Order, error) {
	return p.queryOrder(ctx, "public_code", publicCode)
}

func (p *Postgres) OrderBySecretCode(ctx context.Context, secretCode string) (*models.Order, error) {
	return p.queryOrder(ctx, "secret_code", secretCode)
}

func (p *Postgres) queryOrder(ctx context.Context, column, value string) (*models.Order, error) {
	order := &models.Order{}
	query := fmt.Sprintf(`
		SELECT public_code, secret_code, client_name, client_phone, delivery_type,
			address, scheduled_time, comment, total_price, status, COALESCE(accepted_by, ''), created_at
		FROM orders WHERE %s = $1`, column)

	err := p.db.QueryRowContext(ctx, query, value).Scan(
		&order.PublicCode, &order.SecretCode, &order.ClientName, &order.ClientPhone,
		&order.DeliveryType, &order.Address, &order.ScheduledTime, &order.Comment,
		&order.TotalPrice, &order.Status, &order.AcceptedBy, &order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lifecycle.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	if err := p.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (p *Postgres) ActiveOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT public_code, secret_code, client_name, client_phone, delivery_type,
			address, scheduled_time, comment, total_price, status, COALESCE(accepted_by, ''), created_at
		FROM orders
		WHERE status = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2`,
		pq.Array([]string{string(models.StatusNew), string(models.StatusCooking)}),
		chefFeedLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("query active orders: %w", err)
	}
	return p.collectOrders(ctx, rows, true)
}

func (p *Postgres) CourierOrders(ctx context.Context, courierCode string) ([]models.Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT public_code, secret_code, client_name, client_phone, delivery_type,
			address, scheduled_time, comment, total_price, status, COALESCE(accepted_by, ''), created_at
		FROM orders
		WHERE delivery_type = $1
		  AND (status = $2 OR (status = $3 AND accepted_by = $4))
		ORDER BY created_at DESC
		LIMIT $5`,
		models.DeliveryDelivery, models.StatusReady, models.StatusDelivering, courierCode, courierFeedLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("query courier orders: %w", err)
	}
	return p.collectOrders(ctx, rows, false)
}

func (p *Postgres) collectOrders(ctx context.Context, rows *sql.Rows, withItems bool) ([]models.Order, error) {
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.PublicCode, &order.SecretCode, &order.ClientName, &order.ClientPhone,
			&order.DeliveryType, &order.Address, &order.ScheduledTime, &order.Comment,
			&order.TotalPrice, &order.Status, &order.AcceptedBy, &order.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	if withItems {
		for i := range orders {
			if err := p.loadItems(ctx, &orders[i]); err != nil {
				return nil, err
			}
		}
	}
	return orders, nil
}

func (p *Postgres) loadItems(ctx context.Context, order *models.Order) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT product_name, product_price, quantity
		FROM order_items WHERE order_code = $1 ORDER BY id`,
		order.PublicCode,
	)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.Name, &item.Price, &item.Quantity); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

// UpdateStatus applies the transition only while the order still holds one of
// the expected statuses. Zero rows affected on an existing order means
// another writer got there first.
func (p *Postgres) UpdateStatus(ctx context.Context, publicCode string, expect []models.Status, to models.Status, acceptedBy string) error {
	expected := make([]string, len(expect))
	for i, s := range expect {
		expected[i] = string(s)
	}

	result, err := p.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    accepted_by = CASE WHEN $2 <> '' THEN $2 ELSE accepted_by END
		WHERE public_code = $3 AND status = ANY($4)`,
		to, acceptedBy, publicCode, pq.Array(expected),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE public_code = $1)`, publicCode,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return lifecycle.ErrOrderNotFound
		}
		return lifecycle.ErrIllegalTransition
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Bootstrap creates the schema if it is not there yet.
func Bootstrap(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			public_code VARCHAR(10) PRIMARY KEY,
			secret_code VARCHAR(50) UNIQUE NOT NULL,
			client_name VARCHAR(100) NOT NULL,
			client_phone VARCHAR(20) NOT NULL,
			delivery_type VARCHAR(20) NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			scheduled_time VARCHAR(50) NOT NULL DEFAULT '',
			comment TEXT NOT NULL DEFAULT '',
			total_price INTEGER NOT NULL,
			status VARCHAR(20) NOT NULL,
			accepted_by VARCHAR(50),
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id SERIAL PRIMARY KEY,
			order_code VARCHAR(10) NOT NULL REFERENCES orders(public_code),
			product_name VARCHAR(200) NOT NULL,
			product_price INTEGER NOT NULL,
			quantity INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order_code ON order_items(order_code)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}
