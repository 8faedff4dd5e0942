package kpi

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// UnitSnapshot is the inventory slice the KPI engine needs: counts per
// administrative status plus the rent roll. Occupied is computed from active
// bookings, never read from a stored unit status.
type UnitSnapshot struct {
	Total        int
	Occupied     int
	Blocked      int
	Maintenance  int
	MonthlyRents []decimal.Decimal
}

// InventoryReader supplies the unit snapshot.
type InventoryReader interface {
	Snapshot(ctx context.Context) (UnitSnapshot, error)
}

// CollectionsReader sums confirmed payments inside a window.
type CollectionsReader interface {
	CollectedBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
}

// Report is the dashboard payload. Display fields carry grouped-digit
// formatting so the UI renders amounts verbatim.
type Report struct {
	AsOf                   time.Time       `json:"as_of"`
	Currency               string          `json:"currency"`
	OccupancyRatePercent   float64         `json:"occupancy_rate_percent"`
	PotentialAnnualRevenue decimal.Decimal `json:"potential_annual_revenue"`
	EstimatedAnnualRevenue decimal.Decimal `json:"estimated_annual_revenue"`
	RevPAUPerDay           decimal.Decimal `json:"revpau_per_day"`
	CollectedYearToDate    decimal.Decimal `json:"collected_year_to_date"`
	PotentialDisplay       string          `json:"potential_annual_revenue_display"`
	EstimatedDisplay       string          `json:"estimated_annual_revenue_display"`
}

// Service assembles the KPI report from inventory and ledger reads.
type Service struct {
	inventory   InventoryReader
	collections CollectionsReader
	cfg         Config
	printer     *message.Printer
}

// NewService wires the report dependencies.
func NewService(inventory InventoryReader, collections CollectionsReader, cfg Config) *Service {
	return &Service{
		inventory:   inventory,
		collections: collections,
		cfg:         cfg,
		printer:     message.NewPrinter(language.English),
	}
}

// Report computes all four KPIs as of now. Year-to-date collections use the
// calendar year of now in UTC.
func (s *Service) Report(ctx context.Context, now time.Time) (Report, error) {
	now = now.UTC()
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	daysElapsed := now.YearDay()

	snapshot, err := s.inventory.Snapshot(ctx)
	if err != nil {
		return Report{}, err
	}
	collected, err := s.collections.CollectedBetween(ctx, yearStart, now)
	if err != nil {
		return Report{}, err
	}

	par := PotentialAnnualRevenue(snapshot.MonthlyRents)
	ear := EstimatedAnnualRevenue(collected, daysElapsed)

	return Report{
		AsOf:                   now,
		Currency:               s.cfg.Currency,
		OccupancyRatePercent:   OccupancyRate(snapshot.Occupied, snapshot.Total, snapshot.Blocked, snapshot.Maintenance),
		PotentialAnnualRevenue: par,
		EstimatedAnnualRevenue: ear,
		RevPAUPerDay:           RevPAU(collected, snapshot.Total, daysElapsed),
		CollectedYearToDate:    collected,
		PotentialDisplay:       s.formatAmount(par),
		EstimatedDisplay:       s.formatAmount(ear),
	}, nil
}

func (s *Service) formatAmount(v decimal.Decimal) string {
	f, _ := v.Float64()
	return s.printer.Sprintf("%s %.2f", s.cfg.Currency, f)
}
