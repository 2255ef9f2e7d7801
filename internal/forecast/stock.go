package forecast

import (
	"context"
	"math"
	"sort"
	"time"
)

// noUsageDaysUntilOut is reported when a product has zero trailing usage.
const noUsageDaysUntilOut = 999

// stockUsageWindowDays is the trailing window for usage-rate estimation.
const stockUsageWindowDays = 30

// safetyBufferDays pads the recommended reorder quantity.
const safetyBufferDays = 7

// StockNeed is the reorder outlook for one product.
type StockNeed struct {
	ProductID    int64   `json:"product_id"`
	Name         string  `json:"name"`
	StockQty     int64   `json:"stock_qty"`
	DailyUsage   float64 `json:"daily_usage"`
	DaysUntilOut float64 `json:"days_until_out"`
	NeedsReorder bool    `json:"needs_reorder"`
	ReorderQty   int64   `json:"reorder_qty"`
}

// StockForecast lists per-product reorder needs for the horizon.
type StockForecast struct {
	Method       string      `json:"method"`
	Confidence   Confidence  `json:"confidence"`
	HorizonDays  int         `json:"horizon_days"`
	Forecast     []StockNeed `json:"forecast"`
	ReorderCount int         `json:"reorder_count"`
	GeneratedAt  string      `json:"generated_at"`
}

// PredictStockNeeds estimates, per active product, trailing daily usage
// and days until stock-out, flagging products expected to run out
// within the horizon. Recommended quantity covers the horizon plus a
// seven-day buffer.
func (s *Service) PredictStockNeeds(ctx context.Context, branchID int64, days int) (StockForecast, error) {
	days, err := horizon(days)
	if err != nil {
		return StockForecast{}, err
	}
	repo, release, err := s.sessions.Session(ctx)
	if err != nil {
		return StockForecast{}, err
	}
	defer release()
	return s.predictStockNeeds(ctx, repo, branchID, days)
}

func (s *Service) predictStockNeeds(ctx context.Context, repo Repository, branchID int64, days int) (StockForecast, error) {
	to, err := s.resolver.BusinessDate(ctx, branchID, nil)
	if err != nil {
		return StockForecast{}, err
	}
	from := to.AddDate(0, 0, -(stockUsageWindowDays - 1))

	usage, err := repo.ProductUsage(ctx, branchID, from, to)
	if err != nil {
		return StockForecast{}, err
	}

	needs := buildStockNeeds(usage, days)
	reorders := 0
	for _, n := range needs {
		if n.NeedsReorder {
			reorders++
		}
	}

	confidence := ConfidenceMedium
	if len(usage) == 0 {
		confidence = ConfidenceLow
	}
	return StockForecast{
		Method:       MethodMovingAverage,
		Confidence:   confidence,
		HorizonDays:  days,
		Forecast:     needs,
		ReorderCount: reorders,
		GeneratedAt:  s.now().UTC().Format(time.RFC3339),
	}, nil
}

func buildStockNeeds(usage []ProductUsage, horizonDays int) []StockNeed {
	needs := make([]StockNeed, 0, len(usage))
	for _, u := range usage {
		daily := float64(u.UnitsSold) / stockUsageWindowDays
		daysOut := float64(noUsageDaysUntilOut)
		if daily > 0 {
			daysOut = math.Round(float64(u.StockQty)/daily*10) / 10
			if daysOut > noUsageDaysUntilOut {
				daysOut = noUsageDaysUntilOut
			}
		}
		need := StockNeed{
			ProductID:    u.ProductID,
			Name:         u.Name,
			StockQty:     u.StockQty,
			DailyUsage:   math.Round(daily*100) / 100,
			DaysUntilOut: daysOut,
		}
		if daysOut <= float64(horizonDays) {
			need.NeedsReorder = true
			need.ReorderQty = int64(math.Ceil(daily * float64(horizonDays+safetyBufferDays)))
		}
		needs = append(needs, need)
	}
	// Soonest to run out first.
	sort.Slice(needs, func(i, j int) bool {
		if needs[i].DaysUntilOut != needs[j].DaysUntilOut {
			return needs[i].DaysUntilOut < needs[j].DaysUntilOut
		}
		return needs[i].ProductID < needs[j].ProductID
	})
	return needs
}
