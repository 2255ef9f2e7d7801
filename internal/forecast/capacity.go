package forecast

import (
	"context"
	"math"
	"time"
)

// CapacityPoint is one projected day of timer demand.
type CapacityPoint struct {
	Date            string  `json:"date"`
	PredictedTimers int64   `json:"predicted_timers"`
	Utilization     float64 `json:"utilization"`
}

// CapacityForecast projects service-timer demand against the number of
// active services.
type CapacityForecast struct {
	Method          string          `json:"method"`
	Confidence      Confidence      `json:"confidence"`
	Forecast        []CapacityPoint `json:"forecast"`
	ActiveServices  int64           `json:"active_services"`
	TrendFactor     float64         `json:"trend_factor"`
	HistoryDays     int             `json:"history_days"`
	OutliersRemoved int             `json:"outliers_removed"`
	GeneratedAt     string          `json:"generated_at"`
}

// PredictCapacity projects timers started per day; utilization is
// predicted timers over active service count, capped at 1.0.
func (s *Service) PredictCapacity(ctx context.Context, branchID int64, days int) (CapacityForecast, error) {
	days, err := horizon(days)
	if err != nil {
		return CapacityForecast{}, err
	}
	repo, release, err := s.sessions.Session(ctx)
	if err != nil {
		return CapacityForecast{}, err
	}
	defer release()
	return s.predictCapacity(ctx, repo, branchID, days)
}

func (s *Service) predictCapacity(ctx context.Context, repo Repository, branchID int64, days int) (CapacityForecast, error) {
	from, to, tz, err := s.window(ctx, branchID)
	if err != nil {
		return CapacityForecast{}, err
	}
	history, err := repo.DailyTimerStarts(ctx, branchID, from, to, tz)
	if err != nil {
		return CapacityForecast{}, err
	}
	services, err := repo.ActiveServiceCount(ctx, branchID)
	if err != nil {
		return CapacityForecast{}, err
	}

	projection := s.engine.Project(toHistory(history), days, to)

	points := make([]CapacityPoint, len(projection.Forecast))
	for i, p := range projection.Forecast {
		timers := int64(math.Round(p.Value))
		if timers < 0 {
			timers = 0
		}
		utilization := 0.0
		if services > 0 {
			utilization = math.Min(float64(timers)/float64(services), 1.0)
		}
		points[i] = CapacityPoint{
			Date:            p.Date,
			PredictedTimers: timers,
			Utilization:     math.Round(utilization*100) / 100,
		}
	}

	return CapacityForecast{
		Method:          projection.Method,
		Confidence:      projection.Confidence,
		Forecast:        points,
		ActiveServices:  services,
		TrendFactor:     projection.TrendFactor,
		HistoryDays:     projection.HistoryDays,
		OutliersRemoved: projection.OutliersRemoved,
		GeneratedAt:     s.now().UTC().Format(time.RFC3339),
	}, nil
}
