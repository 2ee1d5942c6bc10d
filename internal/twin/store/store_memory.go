package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"twinhub/internal/twin"
	"twinhub/pkg/domain"
	"twinhub/pkg/platform/sentinel"
)

// MemoryStore keeps twin metadata in process memory for tests/dev.
// Registration rows follow the same conditional-advance contract as the
// PostgreSQL store: a stored status is only ever raised, never regressed.
type MemoryStore struct {
	mu sync.RWMutex

	nextID int64

	twins      map[int64]*twin.Twin
	byGlobalID map[domain.GlobalID]int64

	stacks       map[int64]*twin.EnablementServiceStack
	stacksByName map[string]int64

	twinRegs map[regKey]*twin.TwinRegistration

	aspects       map[int64]*twin.TwinAspect
	aspectsByTwin map[int64][]int64

	aspectRegs map[regKey]*twin.TwinAspectRegistration

	agreements map[int64]*twin.DataExchangeAgreement
	exchanges  map[regKey]struct{}
}

type regKey struct {
	left  int64
	right int64
}

// NewMemory constructs an empty in-memory twin store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		twins:         make(map[int64]*twin.Twin),
		byGlobalID:    make(map[domain.GlobalID]int64),
		stacks:        make(map[int64]*twin.EnablementServiceStack),
		stacksByName:  make(map[string]int64),
		twinRegs:      make(map[regKey]*twin.TwinRegistration),
		aspects:       make(map[int64]*twin.TwinAspect),
		aspectsByTwin: make(map[int64][]int64),
		aspectRegs:    make(map[regKey]*twin.TwinAspectRegistration),
		agreements:    make(map[int64]*twin.DataExchangeAgreement),
		exchanges:     make(map[regKey]struct{}),
	}
}

func (s *MemoryStore) allocID() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) CreateTwin(_ context.Context, t *twin.Twin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byGlobalID[t.GlobalID]; ok {
		return fmt.Errorf("twin %s: %w", t.GlobalID, sentinel.ErrConflict)
	}
	t.ID = s.allocID()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.ModifiedAt = now
	copied := *t
	s.twins[t.ID] = &copied
	s.byGlobalID[t.GlobalID] = t.ID
	return nil
}

func (s *MemoryStore) GetTwinByID(_ context.Context, id int64) (twin.Twin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.twins[id]
	if !ok {
		return twin.Twin{}, fmt.Errorf("twin %d: %w", id, sentinel.ErrNotFound)
	}
	return *t, nil
}

func (s *MemoryStore) GetTwinByGlobalID(_ context.Context, globalID domain.GlobalID) (twin.Twin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byGlobalID[globalID]
	if !ok {
		return twin.Twin{}, fmt.Errorf("twin %s: %w", globalID, sentinel.ErrNotFound)
	}
	return *s.twins[id], nil
}

func (s *MemoryStore) GetStackByName(_ context.Context, name string) (twin.EnablementServiceStack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.stacksByName[name]
	if !ok {
		return twin.EnablementServiceStack{}, fmt.Errorf("stack %q: %w", name, sentinel.ErrNotFound)
	}
	return *s.stacks[id], nil
}

func (s *MemoryStore) CreateStack(_ context.Context, st *twin.EnablementServiceStack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stacksByName[st.Name]; ok {
		return fmt.Errorf("stack %q: %w", st.Name, sentinel.ErrConflict)
	}
	st.ID = s.allocID()
	copied := *st
	s.stacks[st.ID] = &copied
	s.stacksByName[st.Name] = st.ID
	return nil
}

func (s *MemoryStore) FindStacksByLegalEntity(_ context.Context, legalEntityID int64) ([]twin.EnablementServiceStack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []twin.EnablementServiceStack
	for _, st := range s.stacks {
		if st.LegalEntityID == legalEntityID {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (s *MemoryStore) EnsureTwinRegistration(_ context.Context, twinID, stackID int64) (twin.TwinRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := regKey{twinID, stackID}
	if reg, ok := s.twinRegs[key]; ok {
		return *reg, nil
	}
	reg := &twin.TwinRegistration{TwinID: twinID, StackID: stackID}
	s.twinRegs[key] = reg
	return *reg, nil
}

func (s *MemoryStore) MarkTwinRegistered(_ context.Context, twinID, stackID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.twinRegs[regKey{twinID, stackID}]
	if !ok {
		return fmt.Errorf("twin registration (%d,%d): %w", twinID, stackID, sentinel.ErrNotFound)
	}
	reg.Registered = true
	return nil
}

func (s *MemoryStore) CreateAspect(_ context.Context, a *twin.TwinAspect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.aspectsByTwin[a.TwinID] {
		if s.aspects[id].SemanticID == a.SemanticID {
			return fmt.Errorf("aspect %s on twin %d: %w", a.SemanticID, a.TwinID, sentinel.ErrConflict)
		}
	}
	a.ID = s.allocID()
	copied := *a
	s.aspects[a.ID] = &copied
	s.aspectsByTwin[a.TwinID] = append(s.aspectsByTwin[a.TwinID], a.ID)
	return nil
}

func (s *MemoryStore) GetAspect(_ context.Context, twinID int64, semanticID string) (twin.TwinAspect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.aspectsByTwin[twinID] {
		if s.aspects[id].SemanticID == semanticID {
			return *s.aspects[id], nil
		}
	}
	return twin.TwinAspect{}, fmt.Errorf("aspect %s on twin %d: %w", semanticID, twinID, sentinel.ErrNotFound)
}

func (s *MemoryStore) ListAspectsByTwin(_ context.Context, twinID int64) ([]twin.TwinAspect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.aspectsByTwin[twinID]
	out := make([]twin.TwinAspect, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.aspects[id])
	}
	return out, nil
}

func (s *MemoryStore) EnsureAspectRegistration(_ context.Context, aspectID, stackID int64, mode twin.RegistrationMode) (twin.TwinAspectRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := regKey{aspectID, stackID}
	if reg, ok := s.aspectRegs[key]; ok {
		return *reg, nil
	}
	now := time.Now().UTC()
	reg := &twin.TwinAspectRegistration{
		TwinAspectID: aspectID,
		StackID:      stackID,
		Status:       twin.StatusPlanned,
		Mode:         mode,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	s.aspectRegs[key] = reg
	return *reg, nil
}

func (s *MemoryStore) GetAspectRegistration(_ context.Context, aspectID, stackID int64) (twin.TwinAspectRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.aspectRegs[regKey{aspectID, stackID}]
	if !ok {
		return twin.TwinAspectRegistration{}, fmt.Errorf("aspect registration (%d,%d): %w", aspectID, stackID, sentinel.ErrNotFound)
	}
	return *reg, nil
}

func (s *MemoryStore) AdvanceAspectStatus(_ context.Context, aspectID, stackID int64, target twin.RegistrationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.aspectRegs[regKey{aspectID, stackID}]
	if !ok {
		return fmt.Errorf("aspect registration (%d,%d): %w", aspectID, stackID, sentinel.ErrNotFound)
	}
	if reg.Status < target {
		reg.Status = target
		reg.ModifiedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryStore) CreateAgreement(_ context.Context, a *twin.DataExchangeAgreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.agreements {
		if existing.BusinessPartnerID == a.BusinessPartnerID && existing.Name == a.Name {
			return fmt.Errorf("agreement %q for partner %d: %w", a.Name, a.BusinessPartnerID, sentinel.ErrConflict)
		}
	}
	a.ID = s.allocID()
	copied := *a
	s.agreements[a.ID] = &copied
	return nil
}

func (s *MemoryStore) ListAgreementsByPartner(_ context.Context, businessPartnerID int64) ([]twin.DataExchangeAgreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []twin.DataExchangeAgreement
	for _, a := range s.agreements {
		if a.BusinessPartnerID == businessPartnerID {
			out = append(out, *a)
		}
	}
	// Insertion order, matching the SQL store's ORDER BY id; sharing picks
	// the first agreement, so the order is load-bearing.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) EnsureTwinExchange(_ context.Context, twinID, agreementID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := regKey{twinID, agreementID}
	if _, ok := s.exchanges[key]; ok {
		return false, nil
	}
	s.exchanges[key] = struct{}{}
	return true, nil
}

func (s *MemoryStore) TwinSharedWith(_ context.Context, globalID domain.GlobalID, partner domain.BPN) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	twinID, ok := s.byGlobalID[globalID]
	if !ok {
		return false, nil
	}
	for key := range s.exchanges {
		if key.left != twinID {
			continue
		}
		if a, ok := s.agreements[key.right]; ok && a.PartnerBPN == partner {
			return true, nil
		}
	}
	return false, nil
}
