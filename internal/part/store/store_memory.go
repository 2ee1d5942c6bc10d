package store

import (
	"context"
	"fmt"
	"sync"

	"twinhub/internal/part"
	"twinhub/pkg/domain"
	"twinhub/pkg/platform/sentinel"
)

// MemoryStore keeps the part catalog in process memory for tests/dev.
type MemoryStore struct {
	mu sync.RWMutex

	nextID int64

	entities       map[int64]*part.LegalEntity
	entitiesByBPNL map[domain.BPN]int64

	parts map[int64]*part.CatalogPart

	partners       map[int64]*part.BusinessPartner
	partnersByName map[string]int64
	partnersByBPNL map[domain.BPN]int64

	mappings map[mappingKey]*part.CustomerMapping
}

type mappingKey struct {
	partID    int64
	partnerID int64
}

// NewMemory constructs an empty in-memory part store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		entities:       make(map[int64]*part.LegalEntity),
		entitiesByBPNL: make(map[domain.BPN]int64),
		parts:          make(map[int64]*part.CatalogPart),
		partners:       make(map[int64]*part.BusinessPartner),
		partnersByName: make(map[string]int64),
		partnersByBPNL: make(map[domain.BPN]int64),
		mappings:       make(map[mappingKey]*part.CustomerMapping),
	}
}

func (s *MemoryStore) allocID() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) CreateLegalEntity(_ context.Context, e *part.LegalEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entitiesByBPNL[e.BPNL]; ok {
		return fmt.Errorf("legal entity %s: %w", e.BPNL, sentinel.ErrConflict)
	}
	e.ID = s.allocID()
	copied := *e
	s.entities[e.ID] = &copied
	s.entitiesByBPNL[e.BPNL] = e.ID
	return nil
}

func (s *MemoryStore) GetLegalEntityByBPNL(_ context.Context, bpnl domain.BPN) (part.LegalEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.entitiesByBPNL[bpnl]
	if !ok {
		return part.LegalEntity{}, fmt.Errorf("legal entity %s: %w", bpnl, sentinel.ErrNotFound)
	}
	return *s.entities[id], nil
}

func (s *MemoryStore) CreateCatalogPart(_ context.Context, p *part.CatalogPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.parts {
		if existing.LegalEntityID == p.LegalEntityID && existing.ManufacturerPartID == p.ManufacturerPartID {
			return fmt.Errorf("catalog part %s: %w", p.ManufacturerPartID, sentinel.ErrConflict)
		}
	}
	p.ID = s.allocID()
	copied := *p
	s.parts[p.ID] = &copied
	return nil
}

func (s *MemoryStore) GetCatalogPart(_ context.Context, legalEntityID int64, manufacturerPartID string) (part.CatalogPart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.parts {
		if p.LegalEntityID == legalEntityID && p.ManufacturerPartID == manufacturerPartID {
			return *p, nil
		}
	}
	return part.CatalogPart{}, fmt.Errorf("catalog part %s: %w", manufacturerPartID, sentinel.ErrNotFound)
}

func (s *MemoryStore) ListCatalogParts(_ context.Context, legalEntityID int64) ([]part.CatalogPart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []part.CatalogPart
	for _, p := range s.parts {
		if p.LegalEntityID == legalEntityID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *MemoryStore) LinkTwin(_ context.Context, catalogPartID, twinID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[catalogPartID]
	if !ok {
		return fmt.Errorf("catalog part %d: %w", catalogPartID, sentinel.ErrNotFound)
	}
	if p.TwinID != 0 && p.TwinID != twinID {
		return fmt.Errorf("catalog part %d already has twin %d: %w", catalogPartID, p.TwinID, sentinel.ErrConflict)
	}
	p.TwinID = twinID
	return nil
}

func (s *MemoryStore) CreatePartner(_ context.Context, p *part.BusinessPartner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partnersByName[p.Name]; ok {
		return fmt.Errorf("partner %q: %w", p.Name, sentinel.ErrConflict)
	}
	if _, ok := s.partnersByBPNL[p.BPNL]; ok {
		return fmt.Errorf("partner %s: %w", p.BPNL, sentinel.ErrConflict)
	}
	p.ID = s.allocID()
	copied := *p
	s.partners[p.ID] = &copied
	s.partnersByName[p.Name] = p.ID
	s.partnersByBPNL[p.BPNL] = p.ID
	return nil
}

func (s *MemoryStore) GetPartnerByName(_ context.Context, name string) (part.BusinessPartner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.partnersByName[name]
	if !ok {
		return part.BusinessPartner{}, fmt.Errorf("partner %q: %w", name, sentinel.ErrNotFound)
	}
	return *s.partners[id], nil
}

func (s *MemoryStore) GetPartnerByBPNL(_ context.Context, bpnl domain.BPN) (part.BusinessPartner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.partnersByBPNL[bpnl]
	if !ok {
		return part.BusinessPartner{}, fmt.Errorf("partner %s: %w", bpnl, sentinel.ErrNotFound)
	}
	return *s.partners[id], nil
}

func (s *MemoryStore) ListPartners(_ context.Context) ([]part.BusinessPartner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]part.BusinessPartner, 0, len(s.partners))
	for _, p := range s.partners {
		out = append(out, *p)
	}
	return out, nil
}

func (s *MemoryStore) CreateMapping(_ context.Context, m *part.CustomerMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := mappingKey{m.CatalogPartID, m.BusinessPartnerID}
	if _, ok := s.mappings[key]; ok {
		return fmt.Errorf("mapping (%d,%d): %w", m.CatalogPartID, m.BusinessPartnerID, sentinel.ErrConflict)
	}
	if p, ok := s.partners[m.BusinessPartnerID]; ok {
		m.PartnerName = p.Name
		m.PartnerBPN = p.BPNL
	}
	copied := *m
	s.mappings[key] = &copied
	return nil
}

func (s *MemoryStore) GetMapping(_ context.Context, catalogPartID, businessPartnerID int64) (part.CustomerMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[mappingKey{catalogPartID, businessPartnerID}]
	if !ok {
		return part.CustomerMapping{}, fmt.Errorf("mapping (%d,%d): %w", catalogPartID, businessPartnerID, sentinel.ErrNotFound)
	}
	return *m, nil
}

func (s *MemoryStore) ListMappingsByPart(_ context.Context, catalogPartID int64) ([]part.CustomerMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []part.CustomerMapping
	for key, m := range s.mappings {
		if key.partID == catalogPartID {
			out = append(out, *m)
		}
	}
	return out, nil
}
