package kpi

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestOccupancyRate(t *testing.T) {
	require.Equal(t, 87.5, OccupancyRate(7, 10, 1, 1))
	require.Equal(t, 100.0, OccupancyRate(8, 10, 1, 1))
	require.Equal(t, 33.3, OccupancyRate(1, 3, 0, 0))
}

func TestOccupancyRateGuardsDenominator(t *testing.T) {
	require.Equal(t, 0.0, OccupancyRate(5, 0, 0, 0))
	require.Equal(t, 0.0, OccupancyRate(5, 10, 6, 4))
	require.Equal(t, 0.0, OccupancyRate(5, 10, 8, 4), "over-counted exclusions must not go negative")
}

func TestPotentialAnnualRevenue(t *testing.T) {
	rents := []decimal.Decimal{d("2500"), d("3000.50")}
	require.True(t, d("66006").Equal(PotentialAnnualRevenue(rents)))
	require.True(t, decimal.Zero.Equal(PotentialAnnualRevenue(nil)))
}

func TestEstimatedAnnualRevenue(t *testing.T) {
	require.True(t, d("36500").Equal(EstimatedAnnualRevenue(d("1000"), 10)))
	require.True(t, decimal.Zero.Equal(EstimatedAnnualRevenue(d("1000"), 0)))
}

func TestRevPAU(t *testing.T) {
	require.True(t, d("10").Equal(RevPAU(d("36500"), 10, 365)))
	require.True(t, decimal.Zero.Equal(RevPAU(d("36500"), 0, 365)))
	require.True(t, decimal.Zero.Equal(RevPAU(d("36500"), 10, 0)))
}

type stubInventory struct {
	snapshot UnitSnapshot
}

func (s stubInventory) Snapshot(ctx context.Context) (UnitSnapshot, error) {
	return s.snapshot, nil
}

type stubCollections struct {
	amount decimal.Decimal
	from   time.Time
}

func (s *stubCollections) CollectedBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	s.from = from
	return s.amount, nil
}

func TestReportCombinesInventoryAndCollections(t *testing.T) {
	inventory := stubInventory{snapshot: UnitSnapshot{
		Total:        10,
		Occupied:     7,
		Blocked:      1,
		Maintenance:  1,
		MonthlyRents: []decimal.Decimal{d("2500"), d("2500")},
	}}
	collections := &stubCollections{amount: d("1000")}
	svc := NewService(inventory, collections, Config{Currency: "SAR"})

	now := time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)
	report, err := svc.Report(context.Background(), now)
	require.NoError(t, err)

	require.Equal(t, 87.5, report.OccupancyRatePercent)
	require.True(t, d("60000").Equal(report.PotentialAnnualRevenue))
	require.True(t, d("36500").Equal(report.EstimatedAnnualRevenue))
	require.True(t, d("10").Equal(report.RevPAUPerDay))
	require.Equal(t, "SAR 36,500.00", report.EstimatedDisplay)
	require.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), collections.from)
}

func TestReportEmptyPortfolio(t *testing.T) {
	svc := NewService(stubInventory{}, &stubCollections{amount: decimal.Zero}, Config{Currency: "SAR"})

	report, err := svc.Report(context.Background(), time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 0.0, report.OccupancyRatePercent)
	require.True(t, decimal.Zero.Equal(report.PotentialAnnualRevenue))
	require.True(t, decimal.Zero.Equal(report.EstimatedAnnualRevenue))
	require.True(t, decimal.Zero.Equal(report.RevPAUPerDay))
}
