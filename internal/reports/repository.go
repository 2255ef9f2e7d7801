package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kidipark/kidipark/internal/branches"
)

// SaleRow is one raw sale with its package classification resolved.
type SaleRow struct {
	ID                int64
	BranchID          int64
	CreatedAt         time.Time
	Type              SaleType
	TotalCents        int64
	PaymentMethod     PaymentMethod
	CashReceivedCents int64
	PayerName         string
	PackageKind       PackageKind
}

// ProductRow is one active catalog product with stock levels.
type ProductRow struct {
	ID           int64
	BranchID     int64
	Name         string
	StockQty     int64
	ThresholdQty int64
	PriceCents   int64
}

// TimerRow is one service timer.
type TimerRow struct {
	ID        int64
	SaleID    int64
	ServiceID int64
	Status    TimerStatus
	StartAt   time.Time
	EndAt     time.Time
	ChildName string
	ChildAge  int
}

// ServiceUsageRow aggregates sales per service within a range.
type ServiceUsageRow struct {
	ServiceID    int64
	Name         string
	Count        int64
	RevenueCents int64
}

// HourCount counts service-related sales per branch-local hour.
type HourCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

// ArqueoRow is one day-close record with the closing user's role.
type ArqueoRow struct {
	ID                 int64
	BranchID           int64
	UserID             int64
	UserRole           string
	Date               time.Time
	SystemTotalCents   int64
	PhysicalCountCents int64
	DifferenceCents    int64
}

// ReceptionVisitRow is one timer visit keyed by child identity.
type ReceptionVisitRow struct {
	ChildName    string
	ChildAge     int
	VisitAt      time.Time
	RevenueCents int64
}

// KidibarSaleRow is one payer-attributed snack-bar sale (direct product
// or product-only package).
type KidibarSaleRow struct {
	SaleID       int64
	PayerName    string
	SaleAt       time.Time
	RevenueCents int64
	FromPackage  bool
}

// Repository exposes the raw-row queries the aggregators consume.
type Repository interface {
	SalesInRange(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]SaleRow, error)
	ActiveProducts(ctx context.Context, branchID int64) ([]ProductRow, error)
	LiveTimers(ctx context.Context, branchID int64, now time.Time) ([]TimerRow, error)
	TimersInRange(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]TimerRow, error)
	ServiceUsage(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]ServiceUsageRow, error)
	ServiceSaleHours(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]HourCount, error)
	ArqueosInRange(ctx context.Context, branchID int64, from, to time.Time) ([]ArqueoRow, error)
	ReceptionVisits(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]ReceptionVisitRow, error)
	KidibarSales(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]KidibarSaleRow, error)
}

// PGRepository implements Repository over a pgx pool.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// packageKindExpr classifies a package sale by its item composition.
// A zero-item package resolves to mixed, which both module-filtered
// views exclude.
const packageKindExpr = `CASE
	WHEN s.tipo <> 'package' THEN 'none'
	WHEN COALESCE(pk.has_service, false) AND NOT COALESCE(pk.has_product, false) THEN 'service_only'
	WHEN COALESCE(pk.has_product, false) AND NOT COALESCE(pk.has_service, false) THEN 'product_only'
	ELSE 'mixed'
END`

const packageKindJoin = `LEFT JOIN LATERAL (
	SELECT bool_or(pi.service_id IS NOT NULL) AS has_service,
	       bool_or(pi.product_id IS NOT NULL) AS has_product
	FROM sale_items si
	JOIN package_items pi ON pi.package_id = si.ref_id
	WHERE si.sale_id = s.id AND si.item_type = 'package'
) pk ON s.tipo = 'package'`

// SalesInRange loads raw sale rows whose branch-local business date
// falls within [from, to].
func (r *PGRepository) SalesInRange(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]SaleRow, error) {
	dateExpr, err := branches.DateInTZ("s.created_at", tz)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT s.id, s.sucursal_id, s.created_at, s.tipo, s.total_cents,
		s.payment_method, COALESCE(s.cash_received_cents, 0), COALESCE(s.payer_name, ''), %s
	FROM sales s
	%s
	WHERE %s BETWEEN $1 AND $2 AND ($3 = 0 OR s.sucursal_id = $3)
	ORDER BY s.id`, packageKindExpr, packageKindJoin, dateExpr)

	rows, err := r.pool.Query(ctx, query, isoDate(from), isoDate(to), branchID)
	if err != nil {
		return nil, fmt.Errorf("reports: sales in range: %w", err)
	}
	defer rows.Close()

	var out []SaleRow
	for rows.Next() {
		var row SaleRow
		if err := rows.Scan(&row.ID, &row.BranchID, &row.CreatedAt, &row.Type, &row.TotalCents,
			&row.PaymentMethod, &row.CashReceivedCents, &row.PayerName, &row.PackageKind); err != nil {
			return nil, fmt.Errorf("reports: scan sale: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ActiveProducts loads non-deleted active products. Soft-deleted rows
// are excluded from catalog aggregates; their historical sales remain
// visible through SalesInRange.
func (r *PGRepository) ActiveProducts(ctx context.Context, branchID int64) ([]ProductRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.sucursal_id, p.name, p.stock_qty,
		p.threshold_alert_qty, p.price_cents
	FROM products p
	WHERE p.active AND p.deleted_at IS NULL AND ($1 = 0 OR p.sucursal_id = $1)
	ORDER BY p.id`, branchID)
	if err != nil {
		return nil, fmt.Errorf("reports: active products: %w", err)
	}
	defer rows.Close()

	var out []ProductRow
	for rows.Next() {
		var row ProductRow
		if err := rows.Scan(&row.ID, &row.BranchID, &row.Name, &row.StockQty,
			&row.ThresholdQty, &row.PriceCents); err != nil {
			return nil, fmt.Errorf("reports: scan product: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LiveTimers loads timers that count as active right now: a live status
// AND an end time still in the future. Status alone is insufficient —
// an expired-but-unclosed timer must not count as active.
func (r *PGRepository) LiveTimers(ctx context.Context, branchID int64, now time.Time) ([]TimerRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT t.id, t.sale_id, t.service_id, t.status,
		t.start_at, t.end_at, COALESCE(t.child_name, ''), COALESCE(t.child_age, 0)
	FROM timers t
	JOIN sales s ON s.id = t.sale_id
	WHERE t.status IN ('active', 'scheduled', 'extended')
	  AND t.end_at > $1
	  AND ($2 = 0 OR s.sucursal_id = $2)
	ORDER BY t.end_at`, now, branchID)
	if err != nil {
		return nil, fmt.Errorf("reports: live timers: %w", err)
	}
	defer rows.Close()
	return scanTimers(rows)
}

// TimersInRange loads timers whose start falls in the local date range.
func (r *PGRepository) TimersInRange(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]TimerRow, error) {
	dateExpr, err := branches.DateInTZ("t.start_at", tz)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT t.id, t.sale_id, t.service_id, t.status,
		t.start_at, t.end_at, COALESCE(t.child_name, ''), COALESCE(t.child_age, 0)
	FROM timers t
	JOIN sales s ON s.id = t.sale_id
	WHERE %s BETWEEN $1 AND $2 AND ($3 = 0 OR s.sucursal_id = $3)
	ORDER BY t.id`, dateExpr)

	rows, err := r.pool.Query(ctx, query, isoDate(from), isoDate(to), branchID)
	if err != nil {
		return nil, fmt.Errorf("reports: timers in range: %w", err)
	}
	defer rows.Close()
	return scanTimers(rows)
}

func scanTimers(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]TimerRow, error) {
	var out []TimerRow
	for rows.Next() {
		var row TimerRow
		if err := rows.Scan(&row.ID, &row.SaleID, &row.ServiceID, &row.Status,
			&row.StartAt, &row.EndAt, &row.ChildName, &row.ChildAge); err != nil {
			return nil, fmt.Errorf("reports: scan timer: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ServiceUsage aggregates direct service sales per service.
func (r *PGRepository) ServiceUsage(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]ServiceUsageRow, error) {
	dateExpr, err := branches.DateInTZ("s.created_at", tz)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT sv.id, sv.name, COUNT(*), COALESCE(SUM(s.total_cents), 0)
	FROM sales s
	JOIN timers t ON t.sale_id = s.id
	JOIN services sv ON sv.id = t.service_id
	WHERE s.tipo = 'service'
	  AND %s BETWEEN $1 AND $2
	  AND ($3 = 0 OR s.sucursal_id = $3)
	GROUP BY sv.id, sv.name
	ORDER BY COUNT(*) DESC, sv.id`, dateExpr)

	rows, err := r.pool.Query(ctx, query, isoDate(from), isoDate(to), branchID)
	if err != nil {
		return nil, fmt.Errorf("reports: service usage: %w", err)
	}
	defer rows.Close()

	var out []ServiceUsageRow
	for rows.Next() {
		var row ServiceUsageRow
		if err := rows.Scan(&row.ServiceID, &row.Name, &row.Count, &row.RevenueCents); err != nil {
			return nil, fmt.Errorf("reports: scan service usage: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ServiceSaleHours counts service sales and service-only package sales
// per branch-local hour.
func (r *PGRepository) ServiceSaleHours(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]HourCount, error) {
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
	%s
	WHERE %s BETWEEN $1 AND $2
	  AND ($3 = 0 OR s.sucursal_id = $3)
	  AND (%s) IN ('none', 'service_only')
	  AND s.tipo IN ('service', 'package')
	GROUP BY local_hour
	ORDER BY COUNT(*) DESC, local_hour`, hourExpr, packageKindJoin, dateExpr, packageKindExpr)

	rows, err := r.pool.Query(ctx, query, isoDate(from), isoDate(to), branchID)
	if err != nil {
		return nil, fmt.Errorf("reports: service sale hours: %w", err)
	}
	defer rows.Close()

	var out []HourCount
	for rows.Next() {
		var row HourCount
		if err := rows.Scan(&row.Hour, &row.Count); err != nil {
			return nil, fmt.Errorf("reports: scan hour count: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ArqueosInRange loads day-close rows joined with the closing user's role.
func (r *PGRepository) ArqueosInRange(ctx context.Context, branchID int64, from, to time.Time) ([]ArqueoRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.sucursal_id, a.usuario_id,
		COALESCE(u.role, ''), a.date, a.system_total_cents, a.physical_count_cents, a.difference_cents
	FROM arqueos a
	LEFT JOIN users u ON u.id = a.usuario_id
	WHERE a.date BETWEEN $1 AND $2 AND ($3 = 0 OR a.sucursal_id = $3)
	ORDER BY a.date, a.id`, isoDate(from), isoDate(to), branchID)
	if err != nil {
		return nil, fmt.Errorf("reports: arqueos in range: %w", err)
	}
	defer rows.Close()

	var out []ArqueoRow
	for rows.Next() {
		var row ArqueoRow
		if err := rows.Scan(&row.ID, &row.BranchID, &row.UserID, &row.UserRole,
			&row.Date, &row.SystemTotalCents, &row.PhysicalCountCents, &row.DifferenceCents); err != nil {
			return nil, fmt.Errorf("reports: scan arqueo: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ReceptionVisits loads timer visits with child identity and revenue.
func (r *PGRepository) ReceptionVisits(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]ReceptionVisitRow, error) {
	dateExpr, err := branches.DateInTZ("t.start_at", tz)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT COALESCE(t.child_name, ''), COALESCE(t.child_age, 0),
		t.start_at, s.total_cents
	FROM timers t
	JOIN sales s ON s.id = t.sale_id
	WHERE t.status <> 'cancelled'
	  AND %s BETWEEN $1 AND $2
	  AND ($3 = 0 OR s.sucursal_id = $3)
	ORDER BY t.start_at`, dateExpr)

	rows, err := r.pool.Query(ctx, query, isoDate(from), isoDate(to), branchID)
	if err != nil {
		return nil, fmt.Errorf("reports: reception visits: %w", err)
	}
	defer rows.Close()

	var out []ReceptionVisitRow
	for rows.Next() {
		var row ReceptionVisitRow
		if err := rows.Scan(&row.ChildName, &row.ChildAge, &row.VisitAt, &row.RevenueCents); err != nil {
			return nil, fmt.Errorf("reports: scan reception visit: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// KidibarSales loads payer-attributed snack-bar sales: direct product
// sales plus product-only package sales.
func (r *PGRepository) KidibarSales(ctx context.Context, branchID int64, from, to time.Time, tz string) ([]KidibarSaleRow, error) {
	dateExpr, err := branches.DateInTZ("s.created_at", tz)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT s.id, COALESCE(s.payer_name, ''), s.created_at, s.total_cents,
		s.tipo = 'package'
	FROM sales s
	%s
	WHERE %s BETWEEN $1 AND $2
	  AND ($3 = 0 OR s.sucursal_id = $3)
	  AND (s.tipo = 'product' OR (s.tipo = 'package' AND (%s) = 'product_only'))
	ORDER BY s.id`, packageKindJoin, dateExpr, packageKindExpr)

	rows, err := r.pool.Query(ctx, query, isoDate(from), isoDate(to), branchID)
	if err != nil {
		return nil, fmt.Errorf("reports: kidibar sales: %w", err)
	}
	defer rows.Close()

	var out []KidibarSaleRow
	for rows.Next() {
		var row KidibarSaleRow
		if err := rows.Scan(&row.SaleID, &row.PayerName, &row.SaleAt, &row.RevenueCents, &row.FromPackage); err != nil {
			return nil, fmt.Errorf("reports: scan kidibar sale: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
