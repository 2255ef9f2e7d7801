package stats

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func rfmPopulation(asOf time.Time) []RFMInput {
	// Five tiers of recency/frequency/monetary so every quintile is
	// populated; customer c4 is the all-around best.
	inputs := make([]RFMInput, 0, 5)
	for i := 0; i < 5; i++ {
		inputs = append(inputs, RFMInput{
			CustomerKey:  fmt.Sprintf("c%d", i),
			LastVisit:    asOf.AddDate(0, 0, -(80 - i*19)), // 80,61,42,23,4 days ago
			Visits:       1 + i*3,                          // 1,4,7,10,13
			RevenueCents: int64(1000 * (i + 1)),            // 1000..5000
		})
	}
	return inputs
}

func TestScoreRFMQuintilesAndChampion(t *testing.T) {
	asOf := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	scores := ScoreRFM(rfmPopulation(asOf), asOf)
	require.Len(t, scores, 5)

	best := scores[4]
	require.Equal(t, 5, best.RScore)
	require.Equal(t, 5, best.FScore)
	require.Equal(t, 5, best.MScore)
	require.Equal(t, SegmentChampions, best.Segment)

	worst := scores[0]
	require.Equal(t, 1, worst.RScore)
	require.Equal(t, 1, worst.FScore)
	require.Equal(t, 1, worst.MScore)
	require.Contains(t, []Segment{SegmentLost, SegmentHibernating}, worst.Segment)
}

func TestScoreRFMNeverVisitedClamped(t *testing.T) {
	asOf := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	inputs := append(rfmPopulation(asOf), RFMInput{CustomerKey: "ghost"})
	scores := ScoreRFM(inputs, asOf)
	require.Equal(t, neverVisitedRecency, scores[5].RecencyDays)
	require.Equal(t, 1, scores[5].RScore)
}

func TestSegmentizeDecisionTable(t *testing.T) {
	require.Equal(t, SegmentChampions, Segmentize(5, 5, 5))
	require.Equal(t, SegmentLoyalCustomers, Segmentize(4, 4, 3))
	require.Equal(t, SegmentPotentialLoyalists, Segmentize(4, 2, 2))
	require.Equal(t, SegmentNewCustomers, Segmentize(5, 1, 1))
	require.Equal(t, SegmentNeedAttention, Segmentize(3, 3, 3))
	require.Equal(t, SegmentCannotLose, Segmentize(2, 4, 4))
	require.Equal(t, SegmentCannotLose, Segmentize(1, 5, 5))
	require.Equal(t, SegmentPromising, Segmentize(3, 1, 1))
	require.Equal(t, SegmentAboutToSleep, Segmentize(3, 4, 1))
	require.Equal(t, SegmentAtRisk, Segmentize(2, 3, 2))
	require.Equal(t, SegmentHibernating, Segmentize(1, 2, 1))
	require.Equal(t, SegmentLost, Segmentize(1, 1, 1))
}

// Raising any single score must never move a customer to a segment
// ranked worse in the segment ordering.
func TestSegmentizeMonotonic(t *testing.T) {
	for r := 1; r <= 5; r++ {
		for f := 1; f <= 5; f++ {
			for m := 1; m <= 5; m++ {
				base := SegmentRank(Segmentize(r, f, m))
				if m < 5 {
					next := SegmentRank(Segmentize(r, f, m+1))
					require.LessOrEqual(t, next, base, "M %d->%d at R=%d F=%d", m, m+1, r, f)
				}
				if f < 5 {
					next := SegmentRank(Segmentize(r, f+1, m))
					require.LessOrEqual(t, next, base, "F %d->%d at R=%d M=%d", f, f+1, r, m)
				}
				if r < 5 {
					next := SegmentRank(Segmentize(r+1, f, m))
					require.LessOrEqual(t, next, base, "R %d->%d at F=%d M=%d", r, r+1, f, m)
				}
			}
		}
	}
}

// Increasing monetary value while holding recency and frequency fixed
// never lowers the M quintile score.
func TestMonetaryQuintileMonotonic(t *testing.T) {
	asOf := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	inputs := rfmPopulation(asOf)
	before := ScoreRFM(inputs, asOf)

	inputs[2].RevenueCents *= 10
	after := ScoreRFM(inputs, asOf)

	require.GreaterOrEqual(t, after[2].MScore, before[2].MScore)
	require.LessOrEqual(t, SegmentRank(after[2].Segment), SegmentRank(before[2].Segment))
}
