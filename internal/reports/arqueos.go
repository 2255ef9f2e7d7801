package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/kidipark/kidipark/internal/stats"
)

// kidibarRole is the user role whose day-closes attribute to the
// snack-bar module. Any other role attributes to reception.
const kidibarRole = "kidibar"

// ArqueoEntry is one day-close in the report payload.
type ArqueoEntry struct {
	ID                 int64  `json:"id"`
	BranchID           int64  `json:"branch_id"`
	Date               string `json:"date"`
	Module             string `json:"module"`
	SystemTotalCents   int64  `json:"system_total_cents"`
	PhysicalCountCents int64  `json:"physical_count_cents"`
	DifferenceCents    int64  `json:"difference_cents"`
}

// ArqueosReport aggregates day-close reconciliation over a range.
type ArqueosReport struct {
	From string `json:"from"`
	To   string `json:"to"`

	TotalArqueos    int     `json:"total_arqueos"`
	PerfectMatches  int     `json:"perfect_matches"`
	Discrepancies   int     `json:"discrepancies"`
	DiscrepancyRate float64 `json:"discrepancy_rate"`

	SystemTotalCents     int64 `json:"system_total_cents"`
	PhysicalTotalCents   int64 `json:"physical_total_cents"`
	DifferenceTotalCents int64 `json:"difference_total_cents"`

	RecepcionCloses int `json:"recepcion_closes"`
	KidibarCloses   int `json:"kidibar_closes"`

	Variance  stats.Summary   `json:"variance"`
	Anomalies []stats.Anomaly `json:"anomalies"`
	Arqueos   []ArqueoEntry   `json:"arqueos"`

	GeneratedAt string `json:"generated_at"`
}

// GetArqueosReport aggregates cash reconciliation results over the
// range, defaulting to a trailing 30-day window. Module attribution
// follows the closing user's role, not the day's sales composition.
func (s *Service) GetArqueosReport(ctx context.Context, f Filter) (ArqueosReport, error) {
	if err := f.Validate(); err != nil {
		return ArqueosReport{}, err
	}
	from, to, err := s.resolveRange(ctx, f, 30)
	if err != nil {
		return ArqueosReport{}, err
	}

	key := Key("arqueos", f.BranchID, from, to)
	return cached(ctx, s, key, s.ttl.Standard, f.UseCache, func(ctx context.Context) (ArqueosReport, error) {
		rows, err := s.repo.ArqueosInRange(ctx, f.BranchID, from, to)
		if err != nil {
			return ArqueosReport{}, err
		}
		return buildArqueosReport(rows, from, to, s.now().UTC()), nil
	})
}

func buildArqueosReport(rows []ArqueoRow, from, to time.Time, generatedAt time.Time) ArqueosReport {
	report := ArqueosReport{
		From:         isoDate(from),
		To:           isoDate(to),
		TotalArqueos: len(rows),
		GeneratedAt:  generatedAt.Format(time.RFC3339),
	}

	differences := make([]int64, 0, len(rows))
	observations := make([]stats.Observation, 0, len(rows))
	report.Arqueos = make([]ArqueoEntry, 0, len(rows))

	for _, row := range rows {
		module := ModuleRecepcion
		if row.UserRole == kidibarRole {
			module = ModuleKidibar
			report.KidibarCloses++
		} else {
			report.RecepcionCloses++
		}

		if row.DifferenceCents == 0 {
			report.PerfectMatches++
		} else {
			report.Discrepancies++
		}
		report.SystemTotalCents += row.SystemTotalCents
		report.PhysicalTotalCents += row.PhysicalCountCents
		report.DifferenceTotalCents += row.DifferenceCents

		differences = append(differences, row.DifferenceCents)
		observations = append(observations, stats.Observation{
			Label: fmt.Sprintf("%s/sucursal-%d", isoDate(row.Date), row.BranchID),
			Value: row.DifferenceCents,
		})
		report.Arqueos = append(report.Arqueos, ArqueoEntry{
			ID:                 row.ID,
			BranchID:           row.BranchID,
			Date:               isoDate(row.Date),
			Module:             string(module),
			SystemTotalCents:   row.SystemTotalCents,
			PhysicalCountCents: row.PhysicalCountCents,
			DifferenceCents:    row.DifferenceCents,
		})
	}

	if report.TotalArqueos > 0 {
		report.DiscrepancyRate = stats.Round2(float64(report.Discrepancies) / float64(report.TotalArqueos) * 100)
	}
	report.Variance = stats.Summarize(differences)
	report.Anomalies = stats.DetectAnomalies(observations)

	return report
}
