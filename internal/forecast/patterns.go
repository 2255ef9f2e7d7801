package forecast

import (
	"context"
	"sort"
	"time"
)

// TypeForecast is the revenue projection for one sale type.
type TypeForecast struct {
	Type            string       `json:"type"`
	Method          string       `json:"method"`
	Confidence      Confidence   `json:"confidence"`
	Forecast        []CentsPoint `json:"forecast"`
	TrendFactor     float64      `json:"trend_factor"`
	HistoryDays     int          `json:"history_days"`
	OutliersRemoved int          `json:"outliers_removed"`
}

// SalesByTypeForecast bundles per-type projections.
type SalesByTypeForecast struct {
	ByType      []TypeForecast `json:"by_type"`
	GeneratedAt string         `json:"generated_at"`
}

// PredictSalesByType projects daily revenue independently per sale type.
// Types with too little history come back as insufficient_data rather
// than being dropped.
func (s *Service) PredictSalesByType(ctx context.Context, branchID int64, days int) (SalesByTypeForecast, error) {
	days, err := horizon(days)
	if err != nil {
		return SalesByTypeForecast{}, err
	}
	repo, release, err := s.sessions.Session(ctx)
	if err != nil {
		return SalesByTypeForecast{}, err
	}
	defer release()
	return s.predictSalesByType(ctx, repo, branchID, days)
}

func (s *Service) predictSalesByType(ctx context.Context, repo Repository, branchID int64, days int) (SalesByTypeForecast, error) {
	from, to, tz, err := s.window(ctx, branchID)
	if err != nil {
		return SalesByTypeForecast{}, err
	}
	rows, err := repo.DailyRevenueByType(ctx, branchID, from, to, tz)
	if err != nil {
		return SalesByTypeForecast{}, err
	}

	byType := make(map[string][]HistoryPoint)
	for _, row := range rows {
		byType[row.Type] = append(byType[row.Type], HistoryPoint{Date: row.Date, Value: row.Value})
	}
	types := make([]string, 0, len(byType))
	for saleType := range byType {
		types = append(types, saleType)
	}
	sort.Strings(types)

	result := SalesByTypeForecast{GeneratedAt: s.now().UTC().Format(time.RFC3339)}
	for _, saleType := range types {
		projection := s.engine.Project(byType[saleType], days, to)
		result.ByType = append(result.ByType, TypeForecast{
			Type:            saleType,
			Method:          projection.Method,
			Confidence:      projection.Confidence,
			Forecast:        centsPoints(projection.Forecast),
			TrendFactor:     projection.TrendFactor,
			HistoryDays:     projection.HistoryDays,
			OutliersRemoved: projection.OutliersRemoved,
		})
	}
	return result, nil
}

// HourOutlook is the expected traffic for one branch-local hour.
type HourOutlook struct {
	Hour          int     `json:"hour"`
	AvgDailySales float64 `json:"avg_daily_sales"`
}

// PeakHoursForecast ranks the hours expected to be busiest.
type PeakHoursForecast struct {
	Method      string        `json:"method"`
	Confidence  Confidence    `json:"confidence"`
	Forecast    []HourOutlook `json:"forecast"`
	HistoryDays int           `json:"history_days"`
	GeneratedAt string        `json:"generated_at"`
}

// PredictPeakHours averages per-hour sale counts over the history
// window and ranks the top hours.
func (s *Service) PredictPeakHours(ctx context.Context, branchID int64, days int) (PeakHoursForecast, error) {
	if _, err := horizon(days); err != nil {
		return PeakHoursForecast{}, err
	}
	repo, release, err := s.sessions.Session(ctx)
	if err != nil {
		return PeakHoursForecast{}, err
	}
	defer release()
	return s.predictPeakHours(ctx, repo, branchID)
}

func (s *Service) predictPeakHours(ctx context.Context, repo Repository, branchID int64) (PeakHoursForecast, error) {
	from, to, tz, err := s.window(ctx, branchID)
	if err != nil {
		return PeakHoursForecast{}, err
	}
	hours, err := repo.HourlySaleCounts(ctx, branchID, from, to, tz)
	if err != nil {
		return PeakHoursForecast{}, err
	}

	result := PeakHoursForecast{
		Method:      MethodMovingAverage,
		Confidence:  ConfidenceMedium,
		HistoryDays: historyDays,
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
	}
	if len(hours) == 0 {
		result.Method = MethodInsufficientData
		result.Confidence = ConfidenceLow
		result.Forecast = []HourOutlook{}
		return result, nil
	}
	ranked := hours
	if len(ranked) > peakHourRankedCount {
		ranked = ranked[:peakHourRankedCount]
	}
	for _, h := range ranked {
		result.Forecast = append(result.Forecast, HourOutlook{
			Hour:          h.Hour,
			AvgDailySales: float64(h.Count) / historyDays,
		})
	}
	return result, nil
}

// DayOutlook is the expected revenue level for one weekday.
type DayOutlook struct {
	Weekday         string `json:"weekday"`
	AvgRevenueCents int64  `json:"avg_revenue_cents"`
}

// BusiestDaysForecast ranks weekdays by historical average revenue.
type BusiestDaysForecast struct {
	Method      string       `json:"method"`
	Confidence  Confidence   `json:"confidence"`
	Forecast    []DayOutlook `json:"forecast"`
	GeneratedAt string       `json:"generated_at"`
}

// PredictBusiestDays ranks weekdays by average revenue per occurrence
// over the history window.
func (s *Service) PredictBusiestDays(ctx context.Context, branchID int64, days int) (BusiestDaysForecast, error) {
	if _, err := horizon(days); err != nil {
		return BusiestDaysForecast{}, err
	}
	repo, release, err := s.sessions.Session(ctx)
	if err != nil {
		return BusiestDaysForecast{}, err
	}
	defer release()
	return s.predictBusiestDays(ctx, repo, branchID)
}

func (s *Service) predictBusiestDays(ctx context.Context, repo Repository, branchID int64) (BusiestDaysForecast, error) {
	from, to, tz, err := s.window(ctx, branchID)
	if err != nil {
		return BusiestDaysForecast{}, err
	}
	weekdays, err := repo.WeekdayRevenue(ctx, branchID, from, to, tz)
	if err != nil {
		return BusiestDaysForecast{}, err
	}

	result := BusiestDaysForecast{
		Method:      MethodMovingAverage,
		Confidence:  ConfidenceMedium,
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
	}
	if len(weekdays) == 0 {
		result.Method = MethodInsufficientData
		result.Confidence = ConfidenceLow
		result.Forecast = []DayOutlook{}
		return result, nil
	}
	outlooks := make([]DayOutlook, 0, len(weekdays))
	for _, w := range weekdays {
		if w.Days == 0 {
			continue
		}
		outlooks = append(outlooks, DayOutlook{
			Weekday:         time.Weekday(w.Weekday).String(),
			AvgRevenueCents: w.RevenueCents / int64(w.Days),
		})
	}
	sort.Slice(outlooks, func(i, j int) bool {
		return outlooks[i].AvgRevenueCents > outlooks[j].AvgRevenueCents
	})
	result.Forecast = outlooks
	return result, nil
}
