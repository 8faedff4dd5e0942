package units

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrArchiveBlocked matches any archive refusal under errors.Is.
var ErrArchiveBlocked = errors.New("units: archive blocked")

// ArchiveRefusedError explains why a unit or building cannot be archived yet.
type ArchiveRefusedError struct {
	Reason string
}

func (e *ArchiveRefusedError) Error() string {
	return "units: archive refused: " + e.Reason
}

// UserMessage satisfies shared.UserFacing.
func (e *ArchiveRefusedError) UserMessage() string {
	return e.Reason
}

func (e *ArchiveRefusedError) Is(target error) bool {
	return target == ErrArchiveBlocked
}

// UnitStatus is the administratively set state of a unit. Occupancy is a
// computed fact and deliberately not part of this enumeration.
type UnitStatus string

const (
	StatusAvailable   UnitStatus = "AVAILABLE"
	StatusBlocked     UnitStatus = "BLOCKED"
	StatusMaintenance UnitStatus = "MAINTENANCE"
)

// ValidStatus reports whether s is a known unit status.
func ValidStatus(s UnitStatus) bool {
	switch s {
	case StatusAvailable, StatusBlocked, StatusMaintenance:
		return true
	}
	return false
}

// Building groups units under one address.
type Building struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Address    string     `json:"address"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Unit is one rentable inventory item. Unit numbers are unique per building,
// not globally.
type Unit struct {
	ID              int64           `json:"id"`
	BuildingID      int64           `json:"building_id"`
	UnitNumber      string          `json:"unit_number"`
	MonthlyBaseRent decimal.Decimal `json:"monthly_base_rent"`
	Status          UnitStatus      `json:"status"`
	ArchivedAt      *time.Time      `json:"archived_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
