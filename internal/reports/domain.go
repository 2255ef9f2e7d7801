// Package reports implements the analytics core: cache-through
// aggregators over sales, stock, services, arqueos, and customers.
package reports

import (
	"errors"
	"fmt"
	"time"
)

// Module partitions the business into reception (service rentals) and
// kidibar (snack-bar retail). Mixed packages belong to neither module
// and only appear in the unfiltered view.
type Module string

const (
	ModuleAll       Module = "all"
	ModuleRecepcion Module = "recepcion"
	ModuleKidibar   Module = "kidibar"
)

// SaleType discriminates sale line origins.
type SaleType string

const (
	SaleTypeService SaleType = "service"
	SaleTypeProduct SaleType = "product"
	SaleTypePackage SaleType = "package"
)

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

// TimerStatus tracks the lifecycle of a service timer.
type TimerStatus string

const (
	TimerActive    TimerStatus = "active"
	TimerScheduled TimerStatus = "scheduled"
	TimerExtended  TimerStatus = "extended"
	TimerCompleted TimerStatus = "completed"
	TimerCancelled TimerStatus = "cancelled"
)

// PackageKind classifies a package by its item composition. A package
// with zero items, or with both product and service items, is mixed.
type PackageKind string

const (
	PackageNone        PackageKind = "none"
	PackageServiceOnly PackageKind = "service_only"
	PackageProductOnly PackageKind = "product_only"
	PackageMixed       PackageKind = "mixed"
)

// ComparisonType selects the baseline window for comparison reports.
type ComparisonType string

const (
	ComparePreviousPeriod ComparisonType = "previous_period"
	CompareMonthOverMonth ComparisonType = "month_over_month"
	CompareYearOverYear   ComparisonType = "year_over_year"
)

var (
	// ErrInvalidModule occurs when a module filter is not one of
	// recepcion, kidibar, all.
	ErrInvalidModule = errors.New("reports: invalid module")
	// ErrInvalidComparison occurs for unknown comparison types.
	ErrInvalidComparison = errors.New("reports: invalid comparison type")
	// ErrInvalidDateRange occurs when from is after to.
	ErrInvalidDateRange = errors.New("reports: invalid date range")
)

// ParseModule validates a module filter string. Empty means all;
// unknown values are rejected rather than silently defaulted.
func ParseModule(s string) (Module, error) {
	switch Module(s) {
	case "":
		return ModuleAll, nil
	case ModuleAll, ModuleRecepcion, ModuleKidibar:
		return Module(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidModule, s)
}

// ParseComparisonType validates a comparison type string.
func ParseComparisonType(s string) (ComparisonType, error) {
	switch ComparisonType(s) {
	case ComparePreviousPeriod, CompareMonthOverMonth, CompareYearOverYear:
		return ComparisonType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidComparison, s)
}

// Filter scopes a report computation.
type Filter struct {
	BranchID int64 // 0 means all branches
	From     time.Time
	To       time.Time
	Module   Module
	UseCache bool
}

// Validate checks enum values and range ordering.
func (f Filter) Validate() error {
	switch f.Module {
	case "", ModuleAll, ModuleRecepcion, ModuleKidibar:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidModule, f.Module)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRange,
			f.From.Format("2006-01-02"), f.To.Format("2006-01-02"))
	}
	return nil
}

// isoDate formats a time as an ISO-8601 calendar date.
func isoDate(t time.Time) string {
	return t.Format("2006-01-02")
}
