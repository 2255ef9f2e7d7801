package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kidipark/kidipark/internal/stats"
)

// CustomerEntry is one aggregated customer within a module view.
type CustomerEntry struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	ChildAge     int    `json:"child_age,omitempty"`
	Visits       int    `json:"visits"`
	RevenueCents int64  `json:"revenue_cents"`
	FirstVisit   string `json:"first_visit"`
	LastVisit    string `json:"last_visit"`
}

// CustomersReport combines per-module customer aggregates with RFM
// segmentation and first-visit cohorts.
type CustomersReport struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Module string `json:"module"`

	TotalCustomers     int `json:"total_customers"`
	RecepcionCustomers int `json:"recepcion_customers"`
	KidibarCustomers   int `json:"kidibar_customers"`

	TopCustomers []CustomerEntry `json:"top_customers"`

	RFM               []stats.RFMScore  `json:"rfm"`
	SegmentCounts     map[string]int    `json:"segment_counts"`
	Cohorts           []stats.Cohort    `json:"cohorts"`
	CohortGranularity stats.Granularity `json:"cohort_granularity"`

	GeneratedAt string `json:"generated_at"`
}

// topCustomerLimit caps the ranked customer list in the payload.
const topCustomerLimit = 20

// GetCustomersReport aggregates customers over a trailing 90-day window
// by default. Reception customers are keyed by child name plus age;
// snack-bar customers by payer name, with package-attributed sales
// merged by key so a sale never counts twice. Cached with the slow TTL
// because RFM and cohorts change slowly.
func (s *Service) GetCustomersReport(ctx context.Context, f Filter, granularity stats.Granularity) (CustomersReport, error) {
	if err := f.Validate(); err != nil {
		return CustomersReport{}, err
	}
	if granularity == "" {
		granularity = stats.GranularityMonthly
	}
	if !stats.ValidGranularity(granularity) {
		return CustomersReport{}, fmt.Errorf("reports: invalid cohort granularity %q", granularity)
	}
	tz, err := s.resolver.Timezone(ctx, f.BranchID)
	if err != nil {
		return CustomersReport{}, err
	}
	from, to, err := s.resolveRange(ctx, f, 90)
	if err != nil {
		return CustomersReport{}, err
	}

	key := Key("customers", f.BranchID, from, to, f.Module, string(granularity))
	return cached(ctx, s, key, s.ttl.Slow, f.UseCache, func(ctx context.Context) (CustomersReport, error) {
		var (
			visits []ReceptionVisitRow
			snacks []KidibarSaleRow
		)
		if f.Module == "" || f.Module == ModuleAll || f.Module == ModuleRecepcion {
			visits, err = s.repo.ReceptionVisits(ctx, f.BranchID, from, to, tz)
			if err != nil {
				return CustomersReport{}, err
			}
		}
		if f.Module == "" || f.Module == ModuleAll || f.Module == ModuleKidibar {
			snacks, err = s.repo.KidibarSales(ctx, f.BranchID, from, to, tz)
			if err != nil {
				return CustomersReport{}, err
			}
		}
		return buildCustomersReport(visits, snacks, f.Module, granularity, from, to, s.now().UTC()), nil
	})
}

type customerAccum struct {
	entry CustomerEntry
	first time.Time
	last  time.Time
}

func buildCustomersReport(visits []ReceptionVisitRow, snacks []KidibarSaleRow, module Module, granularity stats.Granularity, from, to time.Time, generatedAt time.Time) CustomersReport {
	if module == "" {
		module = ModuleAll
	}
	report := CustomersReport{
		From:              isoDate(from),
		To:                isoDate(to),
		Module:            string(module),
		CohortGranularity: granularity,
		GeneratedAt:       generatedAt.Format(time.RFC3339),
	}

	customers := make(map[string]*customerAccum)
	record := func(key, name string, age int, at time.Time, revenue int64) {
		c := customers[key]
		if c == nil {
			c = &customerAccum{entry: CustomerEntry{Key: key, Name: name, ChildAge: age}, first: at, last: at}
			customers[key] = c
		}
		c.entry.Visits++
		c.entry.RevenueCents += revenue
		if at.Before(c.first) {
			c.first = at
		}
		if at.After(c.last) {
			c.last = at
		}
	}

	recepcionKeys := make(map[string]struct{})
	for _, v := range visits {
		if v.ChildName == "" {
			continue
		}
		key := fmt.Sprintf("recepcion:%s:%d", v.ChildName, v.ChildAge)
		record(key, v.ChildName, v.ChildAge, v.VisitAt, v.RevenueCents)
		recepcionKeys[key] = struct{}{}
	}

	// Direct product sales and product-only package sales arrive as one
	// row per sale, so merging by payer key cannot double count.
	kidibarKeys := make(map[string]struct{})
	for _, k := range snacks {
		if k.PayerName == "" {
			continue
		}
		key := "kidibar:" + k.PayerName
		record(key, k.PayerName, 0, k.SaleAt, k.RevenueCents)
		kidibarKeys[key] = struct{}{}
	}

	report.TotalCustomers = len(customers)
	report.RecepcionCustomers = len(recepcionKeys)
	report.KidibarCustomers = len(kidibarKeys)

	keys := make([]string, 0, len(customers))
	for key := range customers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rfmInputs := make([]stats.RFMInput, 0, len(customers))
	firstVisits := make([]stats.FirstVisit, 0, len(customers))
	entries := make([]CustomerEntry, 0, len(customers))
	for _, key := range keys {
		c := customers[key]
		c.entry.FirstVisit = isoDate(c.first)
		c.entry.LastVisit = isoDate(c.last)
		entries = append(entries, c.entry)
		rfmInputs = append(rfmInputs, stats.RFMInput{
			CustomerKey:  key,
			LastVisit:    c.last,
			Visits:       c.entry.Visits,
			RevenueCents: c.entry.RevenueCents,
		})
		firstVisits = append(firstVisits, stats.FirstVisit{CustomerKey: key, At: c.first})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RevenueCents != entries[j].RevenueCents {
			return entries[i].RevenueCents > entries[j].RevenueCents
		}
		return entries[i].Key < entries[j].Key
	})
	if len(entries) > topCustomerLimit {
		entries = entries[:topCustomerLimit]
	}
	report.TopCustomers = entries

	report.RFM = stats.ScoreRFM(rfmInputs, generatedAt)
	report.SegmentCounts = make(map[string]int)
	for _, score := range report.RFM {
		report.SegmentCounts[string(score.Segment)]++
	}
	report.Cohorts = stats.GroupCohorts(firstVisits, granularity)

	return report
}
