package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kidipark/kidipark/internal/branches"
)

// DayValue is one observed day of a metric.
type DayValue struct {
	Date  time.Time
	Value float64
}

// TypedDayValue is a DayValue tagged with its sale type.
type TypedDayValue struct {
	Type  string
	Date  time.Time
	Value float64
}

// HourTotal is the observed sale count for one branch-local hour.
type HourTotal struct {
	Hour  int
	Count int64
}

// WeekdayTotal aggregates revenue over all occurrences of a weekday.
type WeekdayTotal struct {
	Weekday      int // 0=Sunday .. 6=Saturday
	RevenueCents int64
	Days         int
}

// ProductUsage pairs a product's stock level with trailing units sold.
type ProductUsage struct {
	ProductID int64
	Name      string
	StockQty  int64
	UnitsSold int64
}

// Repository exposes the history queries the predictors consume.
type Repository interface {
	DailyRevenue(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]DayValue, error)
	DailyRevenueByType(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]TypedDayValue, error)
	DailyTimerStarts(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]DayValue, error)
	ActiveServiceCount(ctx context.Context, branchID int64) (int64, error)
	HourlySaleCounts(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]HourTotal, error)
	WeekdayRevenue(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]WeekdayTotal, error)
	ProductUsage(ctx context.Context, branchID int64, from, to time.Time) ([]ProductUsage, error)
	AvgVisitsPerCustomer(ctx context.Context, branchID int64, from, to time.Time, tz string) (float64, error)
	WeeklyProductUnits(ctx context.Context, branchID int64, from, to time.Time, tz string) (float64, error)
}

// Sessions hands out independent data-access sessions so concurrent
// predictors never serialize on one connection.
type Sessions interface {
	Session(ctx context.Context) (Repository, func(), error)
}

// PGSessions acquires one dedicated pool connection per session.
type PGSessions struct {
	pool *pgxpool.Pool
}

// NewPGSessions constructs a PGSessions over the shared pool.
func NewPGSessions(pool *pgxpool.Pool) *PGSessions {
	return &PGSessions{pool: pool}
}

// Session acquires a connection-bound repository. The release func must
// be called when the predictor finishes.
func (s *PGSessions) Session(ctx context.Context) (Repository, func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("forecast: acquire session: %w", err)
	}
	return &PGRepository{q: conn}, conn.Release, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository implements Repository over one connection or the pool.
type PGRepository struct {
	q querier
}

// NewPGRepository constructs a repository bound to q.
func NewPGRepository(q querier) *PGRepository {
	return &PGRepository{q: q}
}

func isoDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// DailyRevenue loads total sale revenue per branch-local day.
func (r *PGRepository) DailyRevenue(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]DayValue, error) {
	dateExpr, err := branches.DateInTZ("s.created_at", tz)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s AS local_date, COALESCE(SUM(s.total_cents), 0)
	FROM sales s
	WHERE %s BETWEEN $1 AND $2 AND ($3 = 0 OR s.sucursal_id = $3)
	GROUP BY local_date
	ORDER BY local_date`, dateExpr, dateExpr)

	rows, err := r.q.Query(ctx, query, isoDate(from), isoDate(to), branchID)
	if err != nil {
		return nil, fmt.Errorf("forecast: daily revenue: %w", err)
	}
	defer rows.Close()
	return scanDayValues(rows)
}

// DailyRevenueByType loads revenue per branch-local day per sale type.
func (r *PGRepository) DailyRevenueByType(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]TypedDayValue, error) {
	dateExpr, err := branches.DateInTZ("s.created_at", tz)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT s.tipo, %s AS local_date, COALESCE(SUM(s.total_cents), 0)
	FROM sales s
	WHERE %s BETWEEN $1 AND $2 AND ($3 = 0 OR s.sucursal_id = $3)
	GROUP BY s.tipo, local_date
	ORDER BY s.tipo, local_date`, dateExpr, dateExpr)

	rows, err := r.q.Query(ctx, query, isoDate(from), isoDate(to), branchID)
	if err != nil {
		return nil, fmt.Errorf("forecast: daily revenue by type: %w", err)
	}
	defer rows.Close()

	var out []TypedDayValue
	for rows.Next() {
		var row TypedDayValue
		var cents int64
		if err := rows.Scan(&row.Type, &row.Date, &cents); err != nil {
			return nil, fmt.Errorf("forecast: scan typed revenue: %w", err)
		}
		row.Value = float64(cents)
		out = append(out, row)
	}
	return out, rows.Err()
}

// DailyTimerStarts counts timers started per branch-local day.
func (r *PGRepository) DailyTimerStarts(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]DayValue, error) {
	dateExpr, err := branches.DateInTZ("t.start_at", tz)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s AS local_date, COUNT(*)
	FROM timers t
	JOIN sales s ON s.id = t.sale_id
	WHERE t.status <> 'cancelled'
	  AND %s BETWEEN $1 AND $2
	  AND ($3 = 0 OR s.sucursal_id = $3)
	GROUP BY local_date
	ORDER BY local_date`, dateExpr, dateExpr)

	rows, err := r.q.Query(ctx, query, isoDate(from), isoDate(to), branchID)
	if err != nil {
		return nil, fmt.Errorf("forecast: daily timer starts: %w", err)
	}
	defer rows.Close()
	return scanDayValues(rows)
}

func scanDayValues(rows pgx.Rows) ([]DayValue, error) {
	var out []DayValue
	for rows.Next() {
		var row DayValue
		var value int64
		if err := rows.Scan(&row.Date, &value); err != nil {
			return nil, fmt.Errorf("forecast: scan day value: %w", err)
		}
		row.Value = float64(value)
		out = append(out, row)
	}
	return out, rows.Err()
}

// ActiveServiceCount counts active services in the branch.
func (r *PGRepository) ActiveServiceCount(ctx context.Context, branchID int64) (int64, error) {
	var count int64
	err := r.q.QueryRow(ctx, `SELECT COUNT(*)
	FROM services sv
	WHERE sv.active AND sv.deleted_at IS NULL AND ($1 = 0 OR sv.sucursal_id = $1)`, branchID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("forecast: active service count: %w", err)
	}
	return count, nil
}

// HourlySaleCounts aggregates sale counts per branch-local hour.
func (r *PGRepository) HourlySaleCounts(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]HourTotal, error) {
	dateExpr, err := branches.DateInTZ("s.created_at", tz)
	if err != nil {
		return nil, err
	}
	hourExpr, err := branches.HourInTZ("s.created_at", tz)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s AS local_hour, COUNT(*)
	FROM sales s
	WHERE %s BETWEEN $1 AND $2 AND ($3 = 0 OR s.sucursal_id = $3)
	GROUP BY local_hour
	ORDER BY COUNT(*) DESC, local_hour`, hourExpr, dateExpr)

	rows, err := r.q.Query(ctx, query, isoDate(from), isoDate(to), branchID)
	if err != nil {
		return nil, fmt.Errorf("forecast: hourly sale counts: %w", err)
	}
	defer rows.Close()

	var out []HourTotal
	for rows.Next() {
		var row HourTotal
		if err := rows.Scan(&row.Hour, &row.Count); err != nil {
			return nil, fmt.Errorf("forecast: scan hour total: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// WeekdayRevenue aggregates revenue and distinct day counts per
// branch-local weekday.
func (r *PGRepository) WeekdayRevenue(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]WeekdayTotal, error) {
	dateExpr, err := branches.DateInTZ("s.created_at", tz)
	if err != nil {
		return nil, err
	}
	dowExpr, err := branches.DayOfWeekInTZ("s.created_at", tz)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s AS local_dow, COALESCE(SUM(s.total_cents), 0), COUNT(DISTINCT %s)
	FROM sales s
	WHERE %s BETWEEN $1 AND $2 AND ($3 = 0 OR s.sucursal_id = $3)
	GROUP BY local_dow
	ORDER BY local_dow`, dowExpr, dateExpr, dateExpr)

	rows, err := r.q.Query(ctx, query, isoDate(from), isoDate(to), branchID)
	if err != nil {
		return nil, fmt.Errorf("forecast: weekday revenue: %w", err)
	}
	defer rows.Close()

	var out []WeekdayTotal
	for rows.Next() {
		var row WeekdayTotal
		if err := rows.Scan(&row.Weekday, &row.RevenueCents, &row.Days); err != nil {
			return nil, fmt.Errorf("forecast: scan weekday revenue: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ProductUsage pairs each active product's stock with units sold in the
// window. Products with zero sales still appear so reorder analysis
// covers the whole catalog.
func (r *PGRepository) ProductUsage(ctx context.Context, branchID int64, from, to time.Time) ([]ProductUsage, error) {
	rows, err := r.q.Query(ctx, `SELECT p.id, p.name, p.stock_qty, COALESCE(u.units, 0)
	FROM products p
	LEFT JOIN (
		SELECT si.ref_id AS product_id, SUM(si.qty) AS units
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE si.item_type = 'product' AND s.created_at BETWEEN $1 AND $2
		GROUP BY si.ref_id
	) u ON u.product_id = p.id
	WHERE p.active AND p.deleted_at IS NULL AND ($3 = 0 OR p.sucursal_id = $3)
	ORDER BY p.id`, from, to.AddDate(0, 0, 1), branchID)
	if err != nil {
		return nil, fmt.Errorf("forecast: product usage: %w", err)
	}
	defer rows.Close()

	var out []ProductUsage
	for rows.Next() {
		var row ProductUsage
		if err := rows.Scan(&row.ProductID, &row.Name, &row.StockQty, &row.UnitsSold); err != nil {
			return nil, fmt.Errorf("forecast: scan product usage: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// AvgVisitsPerCustomer is the loyalty signal: sales with a payer name
// divided by distinct payers.
func (r *PGRepository) AvgVisitsPerCustomer(ctx context.Context, branchID int64, from, to time.Time, tz string) (float64, error) {
	dateExpr, err := branches.DateInTZ("s.created_at", tz)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT COUNT(*), COUNT(DISTINCT s.payer_name)
	FROM sales s
	WHERE s.payer_name IS NOT NULL AND s.payer_name <> ''
	  AND %s BETWEEN $1 AND $2
	  AND ($3 = 0 OR s.sucursal_id = $3)`, dateExpr)

	var visits, customers int64
	if err := r.q.QueryRow(ctx, query, isoDate(from), isoDate(to), branchID).Scan(&visits, &customers); err != nil {
		return 0, fmt.Errorf("forecast: avg visits: %w", err)
	}
	if customers == 0 {
		return 0, nil
	}
	return float64(visits) / float64(customers), nil
}

// WeeklyProductUnits is the product-demand signal: average product
// units sold per week over the window.
func (r *PGRepository) WeeklyProductUnits(ctx context.Context, branchID int64, from, to time.Time, tz string) (float64, error) {
	dateExpr, err := branches.DateInTZ("s.created_at", tz)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT COALESCE(SUM(si.qty), 0)
	FROM sale_items si
	JOIN sales s ON s.id = si.sale_id
	WHERE si.item_type = 'product'
	  AND %s BETWEEN $1 AND $2
	  AND ($3 = 0 OR s.sucursal_id = $3)`, dateExpr)

	var units int64
	if err := r.q.QueryRow(ctx, query, isoDate(from), isoDate(to), branchID).Scan(&units); err != nil {
		return 0, fmt.Errorf("forecast: weekly product units: %w", err)
	}
	days := to.Sub(from).Hours()/24 + 1
	if days <= 0 {
		return 0, nil
	}
	return float64(units) / (days / 7), nil
}
