package reports

import (
	"context"
	"time"
)

// peakHourLimit is how many top hours the services report surfaces.
const peakHourLimit = 5

// ServiceUsageEntry aggregates usage for one service.
type ServiceUsageEntry struct {
	ServiceID    int64  `json:"service_id"`
	Name         string `json:"name"`
	Count        int64  `json:"count"`
	RevenueCents int64  `json:"revenue_cents"`
}

// ServicesReport combines live timer state with usage over the range.
type ServicesReport struct {
	From string `json:"from"`
	To   string `json:"to"`

	ActiveTimers    int `json:"active_timers"`
	ScheduledTimers int `json:"scheduled_timers"`
	ExtendedTimers  int `json:"extended_timers"`
	CompletedToday  int `json:"completed_today"`

	PeakHours []HourCount         `json:"peak_hours"`
	ByService []ServiceUsageEntry `json:"by_service"`

	GeneratedAt string `json:"generated_at"`
}

// GetServicesReport computes live timer counts, per-service usage, and
// the top peak hours in branch-local time. Defaults to a trailing
// 7-day window. Cached with the live TTL because timer state churns.
func (s *Service) GetServicesReport(ctx context.Context, f Filter) (ServicesReport, error) {
	if err := f.Validate(); err != nil {
		return ServicesReport{}, err
	}
	tz, err := s.resolver.Timezone(ctx, f.BranchID)
	if err != nil {
		return ServicesReport{}, err
	}
	from, to, err := s.resolveRange(ctx, f, 7)
	if err != nil {
		return ServicesReport{}, err
	}

	key := Key("services", f.BranchID, from, to)
	return cached(ctx, s, key, s.ttl.Live, f.UseCache, func(ctx context.Context) (ServicesReport, error) {
		now := s.now().UTC()

		live, err := s.repo.LiveTimers(ctx, f.BranchID, now)
		if err != nil {
			return ServicesReport{}, err
		}
		today, err := s.resolver.BusinessDate(ctx, f.BranchID, nil)
		if err != nil {
			return ServicesReport{}, err
		}
		todays, err := s.repo.TimersInRange(ctx, f.BranchID, today, today, tz)
		if err != nil {
			return ServicesReport{}, err
		}
		usage, err := s.repo.ServiceUsage(ctx, f.BranchID, from, to, tz)
		if err != nil {
			return ServicesReport{}, err
		}
		hours, err := s.repo.ServiceSaleHours(ctx, f.BranchID, from, to, tz)
		if err != nil {
			return ServicesReport{}, err
		}
		return buildServicesReport(live, todays, usage, hours, from, to, now), nil
	})
}

func buildServicesReport(live, todays []TimerRow, usage []ServiceUsageRow, hours []HourCount, from, to time.Time, generatedAt time.Time) ServicesReport {
	report := ServicesReport{
		From:        isoDate(from),
		To:          isoDate(to),
		GeneratedAt: generatedAt.Format(time.RFC3339),
	}

	// LiveTimers already enforces end_at > now; every row counts as
	// active, broken down by status.
	report.ActiveTimers = len(live)
	for _, t := range live {
		switch t.Status {
		case TimerScheduled:
			report.ScheduledTimers++
		case TimerExtended:
			report.ExtendedTimers++
		}
	}
	for _, t := range todays {
		if t.Status == TimerCompleted {
			report.CompletedToday++
		}
	}

	report.ByService = make([]ServiceUsageEntry, 0, len(usage))
	for _, u := range usage {
		report.ByService = append(report.ByService, ServiceUsageEntry{
			ServiceID:    u.ServiceID,
			Name:         u.Name,
			Count:        u.Count,
			RevenueCents: u.RevenueCents,
		})
	}

	// Rows arrive count-descending; keep the top five.
	if len(hours) > peakHourLimit {
		hours = hours[:peakHourLimit]
	}
	report.PeakHours = hours

	return report
}
