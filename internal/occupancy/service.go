package occupancy

import (
	"context"
	"strconv"

	"github.com/nuzulstay/nuzulstay/internal/audit"
	"github.com/nuzulstay/nuzulstay/internal/shared"
)

func formatUnitID(unitID int64) string {
	return strconv.FormatInt(unitID, 10)
}

// RecordFunc appends the audit row inside the mutation's transaction.
type RecordFunc func(ctx context.Context, q audit.Execer) error

// MappingRepositoryPort defines data access for external mappings. All of it
// is local-DB only; nothing here reaches the external network.
type MappingRepositoryPort interface {
	GetByUnit(ctx context.Context, unitID int64) (*ExternalMapping, error)
	Create(ctx context.Context, mapping ExternalMapping, record RecordFunc) (*ExternalMapping, error)
	Update(ctx context.Context, mapping ExternalMapping, record RecordFunc) (*ExternalMapping, error)
	Delete(ctx context.Context, unitID int64, record RecordFunc) error
	List(ctx context.Context) ([]ExternalMapping, error)
}

// Checker resolves external reachability for a mapping's property.
type Checker interface {
	Check(ctx context.Context, propertyID string) ProbeStatus
}

// Service resolves occupancy authority and manages mappings.
type Service struct {
	repo    MappingRepositoryPort
	checker Checker
	auditor *audit.Recorder
}

// NewService builds Service instance.
func NewService(repo MappingRepositoryPort, checker Checker, auditor *audit.Recorder) *Service {
	return &Service{repo: repo, checker: checker, auditor: auditor}
}

// probeKey is the identity the availability probe is keyed on.
func probeKey(m *ExternalMapping) string {
	if m.ConnectionType == ConnectionICal {
		return m.ImportURL
	}
	return m.PropertyID
}

// ResolveForUnit decides the authoritative occupancy source for a unit.
func (s *Service) ResolveForUnit(ctx context.Context, unitID int64) (Resolution, error) {
	mapping, err := s.repo.GetByUnit(ctx, unitID)
	if err != nil {
		return Resolution{}, err
	}
	if mapping == nil || mapping.SourceOfTruth == SourceOfTruthLocal {
		return Resolve(mapping, ProbeUnreachable), nil
	}
	probe := ProbeUnreachable
	if s.checker != nil {
		probe = s.checker.Check(ctx, probeKey(mapping))
	}
	return Resolve(mapping, probe), nil
}

// SourceOfTruthByUnit reports which system owns the unit. The Conflict Guard
// consumes this; it is a pure local lookup with no network calls.
func (s *Service) SourceOfTruthByUnit(ctx context.Context, unitID int64) (SourceOfTruth, bool, error) {
	mapping, err := s.repo.GetByUnit(ctx, unitID)
	if err != nil {
		return "", false, err
	}
	if mapping == nil {
		return "", false, nil
	}
	return mapping.SourceOfTruth, true, nil
}

func mappingChanges(m ExternalMapping) map[string]any {
	return map[string]any{
		"unit_id":         m.UnitID,
		"connection_type": string(m.ConnectionType),
		"source_of_truth": string(m.SourceOfTruth),
		"property_id":     m.PropertyID,
		"import_url":      m.ImportURL,
	}
}

// CreateMapping links a unit to its channel-manager identity.
func (s *Service) CreateMapping(ctx context.Context, mapping ExternalMapping, actor shared.Actor) (*ExternalMapping, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, mapping, func(ctx context.Context, q audit.Execer) error {
		return s.auditor.RecordIn(ctx, q, audit.Entry{
			EntityType: "external_mapping",
			EntityID:   formatUnitID(mapping.UnitID),
			Action:     "mapping.create",
			Actor:      actor,
			Changes:    mappingChanges(mapping),
		})
	})
}

// UpdateMapping replaces the mapping for a unit.
func (s *Service) UpdateMapping(ctx context.Context, mapping ExternalMapping, actor shared.Actor) (*ExternalMapping, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByUnit(ctx, mapping.UnitID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, shared.ErrNotFound
	}
	return s.repo.Update(ctx, mapping, func(ctx context.Context, q audit.Execer) error {
		return s.auditor.RecordIn(ctx, q, audit.Entry{
			EntityType: "external_mapping",
			EntityID:   formatUnitID(mapping.UnitID),
			Action:     "mapping.update",
			Actor:      actor,
			Changes: map[string]any{
				"old": mappingChanges(*existing),
				"new": mappingChanges(mapping),
			},
		})
	})
}

// DeleteMapping removes the mapping, returning the unit to local control.
func (s *Service) DeleteMapping(ctx context.Context, unitID int64, actor shared.Actor) error {
	existing, err := s.repo.GetByUnit(ctx, unitID)
	if err != nil {
		return err
	}
	if existing == nil {
		return shared.ErrNotFound
	}
	return s.repo.Delete(ctx, unitID, func(ctx context.Context, q audit.Execer) error {
		return s.auditor.RecordIn(ctx, q, audit.Entry{
			EntityType: "external_mapping",
			EntityID:   formatUnitID(unitID),
			Action:     "mapping.delete",
			Actor:      actor,
			Changes:    map[string]any{"old": mappingChanges(*existing)},
		})
	})
}

// ListMappings returns all mappings, for the admin screen and the warmup job.
func (s *Service) ListMappings(ctx context.Context) ([]ExternalMapping, error) {
	return s.repo.List(ctx)
}
