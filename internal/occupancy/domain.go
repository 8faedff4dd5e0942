package occupancy

import (
	"errors"
	"time"
)

// ConnectionType enumerates how a unit is linked to the channel manager.
type ConnectionType string

const (
	ConnectionAPI  ConnectionType = "API"
	ConnectionICal ConnectionType = "ICAL"
)

// SourceOfTruth enumerates which system owns a unit's availability.
type SourceOfTruth string

const (
	SourceOfTruthBeds24 SourceOfTruth = "BEDS24"
	SourceOfTruthLocal  SourceOfTruth = "LOCAL"
)

// Source is the resolved occupancy authority for a unit. UNKNOWN is a real
// state, not an error: when Beds24 owns the unit and cannot be reached, the
// platform must not guess from stale local data.
type Source string

const (
	SourceLocal   Source = "LOCAL"
	SourceBeds24  Source = "BEDS24"
	SourceUnknown Source = "UNKNOWN"
)

// ExternalMapping links a unit to its channel-manager identity. At most one
// mapping exists per unit.
type ExternalMapping struct {
	ID             int64
	UnitID         int64
	ConnectionType ConnectionType
	SourceOfTruth  SourceOfTruth
	PropertyID     string
	ImportURL      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Resolution is the outcome of resolving a unit's occupancy authority.
// IsExternallyControlled stays true even when the source is UNKNOWN; the
// Conflict Guard keys off this flag, not the resolved source.
type Resolution struct {
	Source                 Source
	IsExternallyControlled bool
}

// Validate enforces the mapping shape: API connections need a property id,
// iCal connections need an import URL.
func (m ExternalMapping) Validate() error {
	if m.UnitID == 0 {
		return errors.New("occupancy: unit ID required")
	}
	switch m.ConnectionType {
	case ConnectionAPI:
		if m.PropertyID == "" {
			return errors.New("occupancy: API mappings require a Beds24 property ID")
		}
	case ConnectionICal:
		if m.ImportURL == "" {
			return errors.New("occupancy: iCal mappings require an import URL")
		}
	default:
		return errors.New("occupancy: unknown connection type")
	}
	switch m.SourceOfTruth {
	case SourceOfTruthBeds24, SourceOfTruthLocal:
	default:
		return errors.New("occupancy: unknown source of truth")
	}
	return nil
}
