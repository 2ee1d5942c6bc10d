package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"twinhub/internal/connector"
	"twinhub/internal/events"
	"twinhub/internal/part"
	partstore "twinhub/internal/part/store"
	"twinhub/internal/platform/config"
	"twinhub/internal/registry"
	"twinhub/internal/submodelstore"
	"twinhub/internal/twin"
	twinstore "twinhub/internal/twin/store"
	"twinhub/pkg/domain"
	dErrors "twinhub/pkg/domain-errors"
	"twinhub/pkg/platform/tx"
)

const testSemanticID = "urn:samm:io.catenax.part_type_information:1.0.0#PartTypeInformation"

type fakeProvisioner struct {
	mu         sync.Mutex
	offerCalls int
	offerErr   error
	registry   int
}

func (f *fakeProvisioner) EnsureOffer(_ context.Context, spec connector.AssetSpec, _, _ connector.PolicyDefinition) (connector.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offerErr != nil {
		return connector.Offer{}, f.offerErr
	}
	f.offerCalls++
	return connector.Offer{
		AssetID:        "twinhub:asset:" + spec.SemanticID,
		UsagePolicyID:  "twinhub:policy:usage",
		AccessPolicyID: "twinhub:policy:access",
		ContractID:     "twinhub:contract:c1",
	}, nil
}

func (f *fakeProvisioner) EnsureRegistryOffer(_ context.Context, spec connector.AssetSpec, _, _ connector.PolicyDefinition) (connector.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry++
	return connector.Offer{AssetID: "twinhub:asset:dtr:" + spec.BaseURL}, nil
}

type fakeRegistry struct {
	mu           sync.Mutex
	shells       map[string]registry.ShellDescriptor
	submodels    map[string][]registry.SubmodelDescriptor
	shellErr     error
	submodelErr  error
	shellPushes  int
	descriptorOK int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		shells:    make(map[string]registry.ShellDescriptor),
		submodels: make(map[string][]registry.SubmodelDescriptor),
	}
}

func (f *fakeRegistry) CreateOrUpdateShell(_ context.Context, d registry.ShellDescriptor) (registry.ShellDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shellErr != nil {
		return registry.ShellDescriptor{}, f.shellErr
	}
	f.shellPushes++
	f.shells[d.ID] = d
	return d, nil
}

func (f *fakeRegistry) GetShellByID(_ context.Context, shellID string) (registry.ShellDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shells[shellID], nil
}

func (f *fakeRegistry) CreateSubmodelDescriptor(_ context.Context, shellID string, d registry.SubmodelDescriptor) (registry.SubmodelDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submodelErr != nil {
		return registry.SubmodelDescriptor{}, f.submodelErr
	}
	f.descriptorOK++
	f.submodels[shellID] = append(f.submodels[shellID], d)
	return d, nil
}

func (f *fakeRegistry) DeleteShell(_ context.Context, shellID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.shells, shellID)
	return nil
}

func (f *fakeRegistry) DeleteSubmodel(_ context.Context, shellID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.submodels, shellID)
	return nil
}

// countingStore wraps a submodel store and counts writes.
type countingStore struct {
	submodelstore.Store
	mu   sync.Mutex
	puts int
}

func (c *countingStore) Put(ctx context.Context, key string, payload submodelstore.Payload) error {
	c.mu.Lock()
	c.puts++
	c.mu.Unlock()
	return c.Store.Put(ctx, key, payload)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.RegistrationEvent
}

func (r *eventRecorder) Publish(_ context.Context, ev events.RegistrationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) Close() {}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type OrchestratorSuite struct {
	suite.Suite
	ctx context.Context

	twins       *twinstore.MemoryStore
	parts       *partstore.MemoryStore
	submodels   *countingStore
	provisioner *fakeProvisioner
	registry    *fakeRegistry
	recorder    *eventRecorder
	orch        *Orchestrator

	entity part.LegalEntity
	stack  twin.EnablementServiceStack
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctx = context.Background()
	s.twins = twinstore.NewMemory()
	s.parts = partstore.NewMemory()
	s.submodels = &countingStore{Store: submodelstore.NewMemory()}
	s.provisioner = &fakeProvisioner{}
	s.registry = newFakeRegistry()
	s.recorder = &eventRecorder{}

	cfg := config.Config{
		Connector: config.ConnectorConfig{
			ManagementURL: "http://edc:8081/management",
			CatalogURL:    "http://edc:8081/api/v1/dsp",
		},
		Registry:          config.RegistryConfig{URL: "http://dtr:8443/api/v3"},
		DispatcherBaseURL: "http://twinhub:8080/submodel-dispatcher",
		DispatcherAPIKey:  "secret",
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.orch = NewOrchestrator(s.twins, s.parts, s.submodels, s.provisioner, s.registry, tx.NopRunner{}, s.recorder, nil, cfg, log)

	entity := &part.LegalEntity{BPNL: "BPNL000000000001"}
	s.Require().NoError(s.parts.CreateLegalEntity(s.ctx, entity))
	s.entity = *entity

	stack := &twin.EnablementServiceStack{Name: "default", LegalEntityID: entity.ID}
	s.Require().NoError(s.twins.CreateStack(s.ctx, stack))
	s.stack = *stack
}

func (s *OrchestratorSuite) createPart(manufacturerPartID string) part.CatalogPart {
	p := &part.CatalogPart{LegalEntityID: s.entity.ID, ManufacturerPartID: manufacturerPartID, Name: "Gearbox"}
	s.Require().NoError(s.parts.CreateCatalogPart(s.ctx, p))
	return *p
}

func (s *OrchestratorSuite) TestEnsureTwinRegistered() {
	p := s.createPart("MPN-001")

	s.Run("creates twin, links part, pushes shell", func() {
		t, err := s.orch.EnsureTwinRegistered(s.ctx, s.entity.BPNL, "MPN-001", "default")
		s.Require().NoError(err)
		s.False(t.GlobalID.IsNil())
		s.False(t.ShellID.IsNil())

		linked, err := s.parts.GetCatalogPart(s.ctx, s.entity.ID, "MPN-001")
		s.Require().NoError(err)
		s.Equal(t.ID, linked.TwinID)

		s.Equal(1, s.registry.shellPushes)
		shell := s.registry.shells[t.ShellID.URN()]
		s.Equal(t.GlobalID.URN(), shell.GlobalAssetID)
		s.Equal([]string{events.TypeTwinRegistered}, s.recorder.types())
	})

	s.Run("second call reuses twin and skips the registry", func() {
		first, err := s.twins.GetTwinByID(s.ctx, mustTwinID(s, p))
		s.Require().NoError(err)

		again, err := s.orch.EnsureTwinRegistered(s.ctx, s.entity.BPNL, "MPN-001", "default")
		s.Require().NoError(err)
		s.Equal(first.GlobalID, again.GlobalID)
		s.Equal(1, s.registry.shellPushes)
	})
}

func mustTwinID(s *OrchestratorSuite, p part.CatalogPart) int64 {
	linked, err := s.parts.GetCatalogPart(s.ctx, p.LegalEntityID, p.ManufacturerPartID)
	s.Require().NoError(err)
	s.Require().NotZero(linked.TwinID)
	return linked.TwinID
}

func (s *OrchestratorSuite) TestEnsureTwinRegistered_UnknownReferences() {
	s.createPart("MPN-001")

	s.Run("unknown manufacturer", func() {
		_, err := s.orch.EnsureTwinRegistered(s.ctx, "BPNL999999999999", "MPN-001", "default")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown part", func() {
		_, err := s.orch.EnsureTwinRegistered(s.ctx, s.entity.BPNL, "MPN-404", "default")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown stack", func() {
		_, err := s.orch.EnsureTwinRegistered(s.ctx, s.entity.BPNL, "MPN-001", "missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *OrchestratorSuite) TestEnsureTwinRegistered_RegistryFailureKeepsUnregistered() {
	s.createPart("MPN-001")
	s.registry.shellErr = errors.New("registry down")

	_, err := s.orch.EnsureTwinRegistered(s.ctx, s.entity.BPNL, "MPN-001", "default")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeExternal))

	// The twin exists but the registration is still pending; a retry pushes.
	s.registry.shellErr = nil
	_, err = s.orch.EnsureTwinRegistered(s.ctx, s.entity.BPNL, "MPN-001", "default")
	s.Require().NoError(err)
	s.Equal(1, s.registry.shellPushes)
}

func (s *OrchestratorSuite) registerTwin(manufacturerPartID string) twin.Twin {
	s.createPart(manufacturerPartID)
	t, err := s.orch.EnsureTwinRegistered(s.ctx, s.entity.BPNL, manufacturerPartID, "default")
	s.Require().NoError(err)
	return t
}

func (s *OrchestratorSuite) TestEnsureAspectRegistered_FullRun() {
	t := s.registerTwin("MPN-001")
	payload := submodelstore.Payload(`{"catenaXId":"` + t.GlobalID.URN() + `"}`)

	reg, err := s.orch.EnsureAspectRegistered(s.ctx, t.GlobalID, testSemanticID, payload, "default")
	s.Require().NoError(err)
	s.Equal(twin.StatusDTRRegistered, reg.Status)
	s.Equal(twin.ModeSingle, reg.Mode)

	s.Run("payload is stored under the derived key", func() {
		sem, err := domain.ParseSemanticID(testSemanticID)
		s.Require().NoError(err)
		stored, err := s.submodels.Get(s.ctx, submodelstore.Key(sem, t.GlobalID))
		s.Require().NoError(err)
		s.JSONEq(string(payload), string(stored))
	})

	s.Run("descriptor carries the connector offer reference", func() {
		descriptors := s.registry.submodels[t.ShellID.URN()]
		s.Require().Len(descriptors, 1)
		body := descriptors[0].Endpoints[0].ProtocolInformation.SubprotocolBody
		s.Contains(body, "id=twinhub:asset:")
		s.Contains(body, "dspEndpoint=http://edc:8081/api/v1/dsp")
	})

	s.Run("stages were announced in order", func() {
		types := s.recorder.types()
		// twin registration event first, then the three stage advances
		s.Equal([]string{
			events.TypeTwinRegistered,
			events.TypeAspectAdvanced,
			events.TypeAspectAdvanced,
			events.TypeAspectAdvanced,
		}, types)
		s.Equal(twin.StatusStored.String(), s.recorder.events[1].Status)
		s.Equal(twin.StatusEDCRegistered.String(), s.recorder.events[2].Status)
		s.Equal(twin.StatusDTRRegistered.String(), s.recorder.events[3].Status)
	})
}

func (s *OrchestratorSuite) TestEnsureAspectRegistered_InvalidSemanticID() {
	t := s.registerTwin("MPN-001")

	_, err := s.orch.EnsureAspectRegistered(s.ctx, t.GlobalID, "not-a-semantic-id", nil, "default")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	aspects, err := s.twins.ListAspectsByTwin(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Empty(aspects, "a rejected request must leave no aspect row")
	s.Zero(s.submodels.puts)
}

func (s *OrchestratorSuite) TestEnsureAspectRegistered_ResumesFromStored() {
	t := s.registerTwin("MPN-001")
	payload := submodelstore.Payload(`{"k":"v"}`)

	// First run fails at the registry after storing the payload.
	s.registry.submodelErr = errors.New("registry down")
	reg, err := s.orch.EnsureAspectRegistered(s.ctx, t.GlobalID, testSemanticID, payload, "default")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeExternal))
	s.Equal(twin.StatusEDCRegistered, reg.Status)
	s.Equal(1, s.submodels.puts)

	failTypes := s.recorder.types()
	s.Equal(events.TypeRegistrationFail, failTypes[len(failTypes)-1])

	// The retry resumes: no second payload write, descriptor attached.
	s.registry.submodelErr = nil
	reg, err = s.orch.EnsureAspectRegistered(s.ctx, t.GlobalID, testSemanticID, payload, "default")
	s.Require().NoError(err)
	s.Equal(twin.StatusDTRRegistered, reg.Status)
	s.Equal(1, s.submodels.puts)
	s.Equal(1, s.registry.descriptorOK)
}

func (s *OrchestratorSuite) TestEnsureAspectRegistered_ConnectorFailure() {
	t := s.registerTwin("MPN-001")

	s.provisioner.offerErr = errors.New("edc unreachable")
	reg, err := s.orch.EnsureAspectRegistered(s.ctx, t.GlobalID, testSemanticID, submodelstore.Payload(`{}`), "default")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeExternal))
	// Payload landed, so the persisted stage is STORED.
	s.Equal(twin.StatusStored, reg.Status)
}

func (s *OrchestratorSuite) TestEnsureAspectRegistered_CompletedRunIsNoop() {
	t := s.registerTwin("MPN-001")
	payload := submodelstore.Payload(`{}`)

	_, err := s.orch.EnsureAspectRegistered(s.ctx, t.GlobalID, testSemanticID, payload, "default")
	s.Require().NoError(err)

	reg, err := s.orch.EnsureAspectRegistered(s.ctx, t.GlobalID, testSemanticID, payload, "default")
	s.Require().NoError(err)
	s.Equal(twin.StatusDTRRegistered, reg.Status)
	s.Equal(1, s.submodels.puts)
	s.Equal(1, s.provisioner.offerCalls)
	s.Equal(1, s.registry.descriptorOK)
}

func (s *OrchestratorSuite) TestEnsureAspectRegistered_UnknownTwin() {
	_, err := s.orch.EnsureAspectRegistered(s.ctx, domain.NewGlobalID(), testSemanticID, nil, "default")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *OrchestratorSuite) TestRegisterRegistryOffer() {
	offer, err := s.orch.RegisterRegistryOffer(s.ctx)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(offer.AssetID, "twinhub:asset:dtr:"))
	s.Equal(1, s.provisioner.registry)
}
