package forecast

import (
	"context"
	"time"
)

// Secondary signal multipliers for the sales forecast. They multiply
// together, never sum.
const (
	peakHourBoost      = 1.15
	loyaltyBoost       = 1.10
	productDemandBoost = 1.05

	loyaltyVisitsFloor  = 3.0
	demandUnitsPerWeek  = 50.0
	peakHourRankedCount = 5
)

// SalesSignals records which secondary signals fired and the resulting
// combined multiplier.
type SalesSignals struct {
	PeakHour      bool    `json:"peak_hour"`
	Loyalty       bool    `json:"loyalty"`
	ProductDemand bool    `json:"product_demand"`
	Multiplier    float64 `json:"multiplier"`
}

// SalesForecast is the revenue projection payload.
type SalesForecast struct {
	Method          string       `json:"method"`
	Confidence      Confidence   `json:"confidence"`
	Forecast        []CentsPoint `json:"forecast"`
	TrendFactor     float64      `json:"trend_factor"`
	CV              float64      `json:"cv"`
	HistoryDays     int          `json:"history_days"`
	OutliersRemoved int          `json:"outliers_removed"`
	Signals         SalesSignals `json:"signals"`
	GeneratedAt     string       `json:"generated_at"`
}

// PredictSales projects daily revenue for the horizon, then multiplies
// by the secondary signals: peak-hour presence, customer loyalty, and
// product demand.
func (s *Service) PredictSales(ctx context.Context, branchID int64, days int) (SalesForecast, error) {
	days, err := horizon(days)
	if err != nil {
		return SalesForecast{}, err
	}
	repo, release, err := s.sessions.Session(ctx)
	if err != nil {
		return SalesForecast{}, err
	}
	defer release()
	return s.predictSales(ctx, repo, branchID, days)
}

func (s *Service) predictSales(ctx context.Context, repo Repository, branchID int64, days int) (SalesForecast, error) {
	from, to, tz, err := s.window(ctx, branchID)
	if err != nil {
		return SalesForecast{}, err
	}
	history, err := repo.DailyRevenue(ctx, branchID, from, to, tz)
	if err != nil {
		return SalesForecast{}, err
	}
	projection := s.engine.Project(toHistory(history), days, to)

	signals, err := s.salesSignals(ctx, repo, branchID, from, to, tz)
	if err != nil {
		return SalesForecast{}, err
	}
	for i := range projection.Forecast {
		projection.Forecast[i].Value *= signals.Multiplier
	}

	return SalesForecast{
		Method:          projection.Method,
		Confidence:      projection.Confidence,
		Forecast:        centsPoints(projection.Forecast),
		TrendFactor:     projection.TrendFactor,
		CV:              projection.CV,
		HistoryDays:     projection.HistoryDays,
		OutliersRemoved: projection.OutliersRemoved,
		Signals:         signals,
		GeneratedAt:     s.now().UTC().Format(time.RFC3339),
	}, nil
}

// salesSignals evaluates the three secondary adjustment signals.
func (s *Service) salesSignals(ctx context.Context, repo Repository, branchID int64, from, to time.Time, tz string) (SalesSignals, error) {
	signals := SalesSignals{Multiplier: 1.0}

	hours, err := repo.HourlySaleCounts(ctx, branchID, from, to, tz)
	if err != nil {
		return signals, err
	}
	loc, err := s.resolver.Location(ctx, branchID)
	if err != nil {
		return signals, err
	}
	localHour := s.now().UTC().In(loc).Hour()
	ranked := hours
	if len(ranked) > peakHourRankedCount {
		ranked = ranked[:peakHourRankedCount]
	}
	for _, h := range ranked {
		if h.Hour == localHour {
			signals.PeakHour = true
			break
		}
	}

	avgVisits, err := repo.AvgVisitsPerCustomer(ctx, branchID, from, to, tz)
	if err != nil {
		return signals, err
	}
	signals.Loyalty = avgVisits >= loyaltyVisitsFloor

	unitsPerWeek, err := repo.WeeklyProductUnits(ctx, branchID, from, to, tz)
	if err != nil {
		return signals, err
	}
	signals.ProductDemand = unitsPerWeek > demandUnitsPerWeek

	if signals.PeakHour {
		signals.Multiplier *= peakHourBoost
	}
	if signals.Loyalty {
		signals.Multiplier *= loyaltyBoost
	}
	if signals.ProductDemand {
		signals.Multiplier *= productDemandBoost
	}
	return signals, nil
}
