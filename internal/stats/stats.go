package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shkarik/ordering/pkg/models"
)

// Provider computes the owner dashboard aggregates.
type Provider interface {
	Dashboard(ctx context.Context) (*models.StatsResponse, error)
}

var slotNames = []string{"09-12", "12-14", "14-18", "18-20", "20-22"}

// Postgres computes the aggregates with plain SQL over the order tables.
type Postgres struct {
	db           *sql.DB
	courierCodes []string
	now          func() time.Time
}

func NewPostgres(db *sql.DB, courierCodes []string) *Postgres {
	return &Postgres{db: db, courierCodes: courierCodes, now: time.Now}
}

func (p *Postgres) Dashboard(ctx context.Context) (*models.StatsResponse, error) {
	now := p.now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := todayStart.AddDate(0, 0, -6)
	monthStart := todayStart.AddDate(0, 0, -30)

	resp := &models.StatsResponse{}

	var err error
	if resp.RevenueToday, err = p.completedRevenueSince(ctx, todayStart); err != nil {
		return nil, err
	}
	if resp.RevenueWeek, err = p.completedRevenueSince(ctx, weekStart); err != nil {
		return nil, err
	}
	if resp.RevenueMonth, err = p.completedRevenueSince(ctx, monthStart); err != nil {
		return nil, err
	}

	if resp.OrdersToday, err = p.ordersSince(ctx, todayStart); err != nil {
		return nil, err
	}
	if resp.OrdersWeek, err = p.ordersSince(ctx, weekStart); err != nil {
		return nil, err
	}
	if resp.OrdersMonth, err = p.ordersSince(ctx, monthStart); err != nil {
		return nil, err
	}

	if resp.SalesByDay, err = p.salesByDay(ctx, weekStart); err != nil {
		return nil, err
	}
	if resp.TopDishes, err = p.topDishes(ctx, monthStart); err != nil {
		return nil, err
	}
	if resp.TimeSlots, err = p.timeSlots(ctx, todayStart); err != nil {
		return nil, err
	}
	if resp.Couriers, err = p.courierStats(ctx, todayStart); err != nil {
		return nil, err
	}

	return resp, nil
}

func (p *Postgres) completedRevenueSince(ctx context.Context, since time.Time) (int, error) {
	var total int
	err := p.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_price), 0) FROM orders
		WHERE created_at >= $1 AND status = $2`,
		since, models.StatusCompleted,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("revenue since %s: %w", since.Format("2006-01-02"), err)
	}
	return total, nil
}

func (p *Postgres) ordersSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE created_at >= $1`, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("order count since %s: %w", since.Format("2006-01-02"), err)
	}
	return count, nil
}

func (p *Postgres) salesByDay(ctx context.Context, weekStart time.Time) ([]models.DaySales, error) {
	sales := make([]models.DaySales, 0, 7)
	for i := 0; i < 7; i++ {
		dayStart := weekStart.AddDate(0, 0, i)
		dayEnd := dayStart.AddDate(0, 0, 1)

		var total int
		err := p.db.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(total_price), 0) FROM orders
			WHERE created_at >= $1 AND created_at < $2 AND status = $3`,
			dayStart, dayEnd, models.StatusCompleted,
		).Scan(&total)
		if err != nil {
			return nil, fmt.Errorf("daily sales: %w", err)
		}
		sales = append(sales, models.DaySales{Date: dayStart.Format("02.01"), Total: total})
	}
	return sales, nil
}

func (p *Postgres) topDishes(ctx context.Context, monthStart time.Time) ([]models.DishStat, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT i.product_name, i.product_price, SUM(i.quantity) AS qty
		FROM order_items i
		JOIN orders o ON o.public_code = i.order_code
		WHERE o.created_at >= $1 AND o.status = $2
		GROUP BY i.product_name, i.product_price
		ORDER BY qty DESC
		LIMIT 5`,
		monthStart, models.StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("top dishes: %w", err)
	}
	defer rows.Close()

	var dishes []models.DishStat
	for rows.Next() {
		var dish models.DishStat
		var price int
		if err := rows.Scan(&dish.Name, &price, &dish.Quantity); err != nil {
			return nil, fmt.Errorf("scan dish: %w", err)
		}
		dish.Revenue = price * dish.Quantity
		dishes = append(dishes, dish)
	}
	return dishes, rows.Err()
}

func (p *Postgres) timeSlots(ctx context.Context, todayStart time.Time) ([]models.TimeSlotStat, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT EXTRACT(HOUR FROM created_at)::int AS hour, COUNT(*)
		FROM orders WHERE created_at >= $1
		GROUP BY hour ORDER BY hour`,
		todayStart,
	)
	if err != nil {
		return nil, fmt.Errorf("orders by hour: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var hour, count int
		if err := rows.Scan(&hour, &count); err != nil {
			return nil, fmt.Errorf("scan hour: %w", err)
		}
		switch {
		case hour >= 9 && hour < 12:
			counts["09-12"] += count
		case hour >= 12 && hour < 14:
			counts["12-14"] += count
		case hour >= 14 && hour < 18:
			counts["14-18"] += count
		case hour >= 18 && hour < 20:
			counts["18-20"] += count
		case hour >= 20 && hour < 22:
			counts["20-22"] += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, c := range counts {
		total += c
	}

	slots := make([]models.TimeSlotStat, 0, len(slotNames))
	for _, name := range slotNames {
		percent := 0
		if total > 0 {
			percent = int(float64(counts[name])/float64(total)*100 + 0.5)
		}
		slots = append(slots, models.TimeSlotStat{Slot: name, Count: counts[name], Percent: percent})
	}
	return slots, nil
}

func (p *Postgres) courierStats(ctx context.Context, todayStart time.Time) ([]models.CourierStat, error) {
	stats := make([]models.CourierStat, 0, len(p.courierCodes))
	for _, code := range p.courierCodes {
		var stat models.CourierStat
		stat.Code = code

		err := p.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM orders
			WHERE accepted_by = $1 AND created_at >= $2 AND delivery_type = $3`,
			code, todayStart, models.DeliveryDelivery,
		).Scan(&stat.Deliveries)
		if err != nil {
			return nil, fmt.Errorf("courier deliveries: %w", err)
		}

		err = p.db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM orders WHERE accepted_by = $1 AND status = $2)`,
			code, models.StatusDelivering,
		).Scan(&stat.Active)
		if err != nil {
			return nil, fmt.Errorf("courier active: %w", err)
		}

		stats = append(stats, stat)
	}
	return stats, nil
}
