package kpi

import (
	"math"

	"github.com/shopspring/decimal"
)

// Config carries the reporting knobs. Engines receive it explicitly so they
// stay pure; nothing here is read from ambient globals.
type Config struct {
	Currency string
}

var annualMonths = decimal.NewFromInt(12)
var daysPerYear = decimal.NewFromInt(365)

// OccupancyRate returns occupied / (total - blocked - maintenance) as a
// percentage rounded to one decimal place. A denominator of zero or less
// yields 0 rather than a division error.
func OccupancyRate(occupied, total, blocked, maintenance int) float64 {
	usable := total - blocked - maintenance
	if usable <= 0 {
		return 0
	}
	return math.Round(float64(occupied)/float64(usable)*1000) / 10
}

// PotentialAnnualRevenue sums monthly rent times twelve across the unit set.
func PotentialAnnualRevenue(monthlyRents []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, rent := range monthlyRents {
		total = total.Add(rent.Mul(annualMonths))
	}
	return total
}

// EstimatedAnnualRevenue projects the year-to-date collections to a full-year
// run rate, rounded to whole currency units. Zero elapsed days yields 0.
func EstimatedAnnualRevenue(collectedYTD decimal.Decimal, daysElapsed int) decimal.Decimal {
	if daysElapsed <= 0 {
		return decimal.Zero
	}
	return collectedYTD.Div(decimal.NewFromInt(int64(daysElapsed))).Mul(daysPerYear).Round(0)
}

// RevPAU is revenue per available unit per day, rounded to two decimal
// places. Zero units or zero days yields 0.
func RevPAU(totalRevenue decimal.Decimal, totalUnits, days int) decimal.Decimal {
	if totalUnits <= 0 || days <= 0 {
		return decimal.Zero
	}
	return totalRevenue.
		Div(decimal.NewFromInt(int64(totalUnits))).
		Div(decimal.NewFromInt(int64(days))).
		Round(2)
}
