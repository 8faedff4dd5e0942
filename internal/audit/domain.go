package audit

import (
	"time"

	"github.com/nuzulstay/nuzulstay/internal/shared"
)

// Entry is one append-only audit row. Rows are never updated or deleted.
type Entry struct {
	EntityType string
	EntityID   string
	Action     string
	Actor      shared.Actor
	Changes    map[string]any
	At         time.Time
}

// TimelineFilters holds the basic filters for the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one row of the audit timeline.
type TimelineRow struct {
	At         time.Time
	ActorID    int64
	ActorName  string
	ActorClass string
	Action     string
	EntityType string
	EntityID   string
	Changes    map[string]any
}

// PagingInfo holds simple pagination metadata.
type PagingInfo struct {
	Page     int
	HasNext  bool
	PageSize int
	PrevPage int
	NextPage int
}
