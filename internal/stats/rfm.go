package stats

import (
	"sort"
	"time"
)

// Segment names the eleven RFM customer segments.
type Segment string

const (
	SegmentChampions          Segment = "champions"
	SegmentLoyalCustomers     Segment = "loyal_customers"
	SegmentPotentialLoyalists Segment = "potential_loyalists"
	SegmentNewCustomers       Segment = "new_customers"
	SegmentPromising          Segment = "promising"
	SegmentNeedAttention      Segment = "need_attention"
	SegmentAboutToSleep       Segment = "about_to_sleep"
	SegmentAtRisk             Segment = "at_risk"
	SegmentCannotLose         Segment = "cannot_lose"
	SegmentHibernating        Segment = "hibernating"
	SegmentLost               Segment = "lost"
)

// neverVisitedRecency caps recency for customers without any visit.
const neverVisitedRecency = 999

// RFMInput is one customer's raw trailing-window activity.
type RFMInput struct {
	CustomerKey  string
	LastVisit    time.Time // zero value means never
	Visits       int
	RevenueCents int64
}

// RFMScore is the scored and segmented result for one customer.
type RFMScore struct {
	CustomerKey   string  `json:"customer_key"`
	RecencyDays   int     `json:"recency_days"`
	Frequency     int     `json:"frequency"`
	MonetaryCents int64   `json:"monetary_cents"`
	RScore        int     `json:"r_score"`
	FScore        int     `json:"f_score"`
	MScore        int     `json:"m_score"`
	Segment       Segment `json:"segment"`
}

// ScoreRFM converts raw recency/frequency/monetary metrics into 1-5
// quintile scores (recency inverted: fewer days is better) and assigns
// each customer a segment. Output keeps the input order.
func ScoreRFM(customers []RFMInput, asOf time.Time) []RFMScore {
	if len(customers) == 0 {
		return nil
	}
	recency := make([]float64, len(customers))
	frequency := make([]float64, len(customers))
	monetary := make([]float64, len(customers))
	for i, c := range customers {
		days := neverVisitedRecency
		if !c.LastVisit.IsZero() {
			d := int(asOf.Sub(c.LastVisit).Hours() / 24)
			if d < 0 {
				d = 0
			}
			if d > neverVisitedRecency {
				d = neverVisitedRecency
			}
			days = d
		}
		recency[i] = float64(days)
		frequency[i] = float64(c.Visits)
		monetary[i] = float64(c.RevenueCents)
	}

	rCuts := quintileCuts(recency)
	fCuts := quintileCuts(frequency)
	mCuts := quintileCuts(monetary)

	scores := make([]RFMScore, len(customers))
	for i, c := range customers {
		r := 6 - quintile(recency[i], rCuts) // inverted: low days scores 5
		f := quintile(frequency[i], fCuts)
		m := quintile(monetary[i], mCuts)
		scores[i] = RFMScore{
			CustomerKey:   c.CustomerKey,
			RecencyDays:   int(recency[i]),
			Frequency:     c.Visits,
			MonetaryCents: c.RevenueCents,
			RScore:        r,
			FScore:        f,
			MScore:        m,
			Segment:       Segmentize(r, f, m),
		}
	}
	return scores
}

// quintileCuts returns the 20/40/60/80 percentile boundaries.
func quintileCuts(values []float64) [4]float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return [4]float64{
		Percentile(sorted, 20),
		Percentile(sorted, 40),
		Percentile(sorted, 60),
		Percentile(sorted, 80),
	}
}

// quintile maps a value onto a 1-5 score given ascending cut points.
// Values above a boundary earn the higher score, so increasing a metric
// can never lower its score.
func quintile(value float64, cuts [4]float64) int {
	score := 1
	for _, cut := range cuts {
		if value > cut {
			score++
		}
	}
	return score
}

// Segmentize applies the fixed decision table on (R, F, M) scores.
// Rules are evaluated in order; the first match wins.
func Segmentize(r, f, m int) Segment {
	switch {
	case r == 5 && f == 5 && m == 5:
		return SegmentChampions
	case r >= 4 && f >= 4 && m >= 3:
		return SegmentLoyalCustomers
	case r >= 4 && f >= 2 && m >= 2:
		return SegmentPotentialLoyalists
	case r >= 4:
		return SegmentNewCustomers
	case r == 3 && f >= 3 && m >= 3:
		return SegmentNeedAttention
	case r <= 2 && f >= 4 && m >= 4:
		return SegmentCannotLose
	case r == 3 && f <= 2 && m <= 2:
		return SegmentPromising
	case r == 3:
		return SegmentAboutToSleep
	case r <= 2 && f >= 3:
		return SegmentAtRisk
	case r <= 2 && (f >= 2 || m >= 2):
		return SegmentHibernating
	default:
		return SegmentLost
	}
}

// segmentRank orders segments best (lowest) to worst (highest). The
// decision table above is monotone against this ordering: raising any
// of the three scores never moves a customer to a higher rank.
var segmentRank = map[Segment]int{
	SegmentChampions:          0,
	SegmentLoyalCustomers:     1,
	SegmentPotentialLoyalists: 2,
	SegmentNewCustomers:       3,
	SegmentNeedAttention:      4,
	SegmentCannotLose:         5,
	SegmentAboutToSleep:       6,
	SegmentPromising:          7,
	SegmentAtRisk:             8,
	SegmentHibernating:        9,
	SegmentLost:               10,
}

// SegmentRank exposes the worse-than ordering, 0 being the best.
func SegmentRank(s Segment) int {
	return segmentRank[s]
}
