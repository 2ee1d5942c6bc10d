// Package service drives twin and aspect registration through the three
// external systems: the submodel store, the connector, and the digital twin
// registry. Progress is tracked per enablement stack and each run resumes
// from the last persisted status.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"twinhub/internal/connector"
	"twinhub/internal/events"
	"twinhub/internal/part"
	"twinhub/internal/platform/config"
	"twinhub/internal/registry"
	"twinhub/internal/submodelstore"
	"twinhub/internal/twin"
	"twinhub/internal/twin/metrics"
	"twinhub/pkg/domain"
	dErrors "twinhub/pkg/domain-errors"
	"twinhub/pkg/platform/sentinel"
	"twinhub/pkg/platform/tx"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// OfferProvisioner is the connector-side contract the orchestrator needs:
// idempotent get-or-create of the asset, its policies, and the contract
// definition binding them.
type OfferProvisioner interface {
	EnsureOffer(ctx context.Context, spec connector.AssetSpec, usage, access connector.PolicyDefinition) (connector.Offer, error)
	EnsureRegistryOffer(ctx context.Context, spec connector.AssetSpec, usage, access connector.PolicyDefinition) (connector.Offer, error)
}

// Orchestrator registers twins and aspects. All operations are safe to retry:
// already-completed stages are skipped and concurrent calls for the same
// (subject, stack) pair collapse into one execution.
type Orchestrator struct {
	twins       twin.Store
	parts       part.Store
	submodels   submodelstore.Store
	provisioner OfferProvisioner
	registry    registry.API
	runner      tx.Runner
	events      events.Publisher
	metrics     *metrics.Metrics
	log         *slog.Logger
	tracer      trace.Tracer

	connectorCfg      config.ConnectorConfig
	registryURL       string
	dispatcherBaseURL string
	dispatcherAPIKey  string

	// Usage and access policies applied to every provisioned offer.
	usagePolicy  connector.PolicyDefinition
	accessPolicy connector.PolicyDefinition

	group singleflight.Group
}

// NewOrchestrator wires the orchestrator. Metrics and events may be nil/nop.
func NewOrchestrator(
	twins twin.Store,
	parts part.Store,
	submodels submodelstore.Store,
	provisioner OfferProvisioner,
	reg registry.API,
	runner tx.Runner,
	publisher events.Publisher,
	m *metrics.Metrics,
	cfg config.Config,
	log *slog.Logger,
) *Orchestrator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Orchestrator{
		twins:             twins,
		parts:             parts,
		submodels:         submodels,
		provisioner:       provisioner,
		registry:          reg,
		runner:            runner,
		events:            publisher,
		metrics:           m,
		log:               log,
		tracer:            otel.Tracer("twinhub/twin/service"),
		connectorCfg:      cfg.Connector,
		registryURL:       cfg.Registry.URL,
		dispatcherBaseURL: cfg.DispatcherBaseURL,
		dispatcherAPIKey:  cfg.DispatcherAPIKey,
		usagePolicy:       connector.EmptyPolicy(),
		accessPolicy:      connector.EmptyPolicy(),
	}
}

// SetPolicies overrides the default (empty) usage and access policies applied
// to provisioned offers.
func (o *Orchestrator) SetPolicies(usage, access connector.PolicyDefinition) {
	o.usagePolicy = usage
	o.accessPolicy = access
}

// EnsureTwinRegistered resolves the catalog part, creates its twin lazily,
// and pushes the shell descriptor to the registry once per (twin, stack).
func (o *Orchestrator) EnsureTwinRegistered(ctx context.Context, manufacturerID domain.BPN, manufacturerPartID, stackName string) (twin.Twin, error) {
	key := "twin/" + manufacturerID.String() + "/" + manufacturerPartID + "/" + stackName
	result, err, _ := o.group.Do(key, func() (any, error) {
		return o.ensureTwinRegistered(ctx, manufacturerID, manufacturerPartID, stackName)
	})
	if err != nil {
		return twin.Twin{}, err
	}
	return result.(twin.Twin), nil
}

func (o *Orchestrator) ensureTwinRegistered(ctx context.Context, manufacturerID domain.BPN, manufacturerPartID, stackName string) (twin.Twin, error) {
	ctx, span := o.tracer.Start(ctx, "twin.EnsureTwinRegistered",
		trace.WithAttributes(
			attribute.String("manufacturer.id", manufacturerID.String()),
			attribute.String("manufacturer.part_id", manufacturerPartID),
			attribute.String("stack", stackName),
		))
	defer span.End()

	entity, err := o.parts.GetLegalEntityByBPNL(ctx, manufacturerID)
	if err != nil {
		return twin.Twin{}, translateLookup(err, "legal entity "+manufacturerID.String())
	}
	catalogPart, err := o.parts.GetCatalogPart(ctx, entity.ID, manufacturerPartID)
	if err != nil {
		return twin.Twin{}, translateLookup(err, "catalog part "+manufacturerPartID)
	}
	stack, err := o.twins.GetStackByName(ctx, stackName)
	if err != nil {
		return twin.Twin{}, translateLookup(err, "stack "+stackName)
	}

	t, err := o.ensureTwin(ctx, &catalogPart)
	if err != nil {
		return twin.Twin{}, err
	}

	reg, err := o.twins.EnsureTwinRegistration(ctx, t.ID, stack.ID)
	if err != nil {
		return twin.Twin{}, dErrors.Wrap(err, dErrors.CodeInternal, "ensure twin registration")
	}
	if reg.Registered {
		return t, nil
	}

	mappings, err := o.parts.ListMappingsByPart(ctx, catalogPart.ID)
	if err != nil {
		return twin.Twin{}, dErrors.Wrap(err, dErrors.CodeInternal, "list customer mappings")
	}
	customerPartIDs := make(map[string]domain.BPN, len(mappings))
	for _, m := range mappings {
		customerPartIDs[m.CustomerPartID] = m.PartnerBPN
	}

	descriptor := registry.BuildShellDescriptor(registry.ShellInput{
		ShellID:            t.ShellID,
		GlobalID:           t.GlobalID,
		ManufacturerID:     manufacturerID,
		ManufacturerPartID: manufacturerPartID,
		CustomerPartIDs:    customerPartIDs,
		PartCategory:       catalogPart.Category,
	})

	start := time.Now()
	if _, err := o.registry.CreateOrUpdateShell(ctx, descriptor); err != nil {
		return twin.Twin{}, dErrors.Wrap(err, dErrors.CodeExternal, "push shell descriptor to registry")
	}
	o.metrics.ObserveAdapterLatency("registry", "create_or_update_shell", time.Since(start))

	if err := o.twins.MarkTwinRegistered(ctx, t.ID, stack.ID); err != nil {
		return twin.Twin{}, dErrors.Wrap(err, dErrors.CodeInternal, "mark twin registered")
	}

	o.log.Info("twin registered",
		"globalId", t.GlobalID.String(),
		"stack", stackName,
		"manufacturerPartId", manufacturerPartID)
	o.events.Publish(ctx, events.RegistrationEvent{
		Type:      events.TypeTwinRegistered,
		GlobalID:  t.GlobalID.String(),
		StackName: stackName,
	})
	return t, nil
}

// ensureTwin returns the part's twin, creating and linking one when the part
// has none yet. Creation and linking share one transaction.
func (o *Orchestrator) ensureTwin(ctx context.Context, catalogPart *part.CatalogPart) (twin.Twin, error) {
	if catalogPart.TwinID != 0 {
		t, err := o.twins.GetTwinByID(ctx, catalogPart.TwinID)
		if err != nil {
			return twin.Twin{}, dErrors.Wrap(err, dErrors.CodeInternal, "load linked twin")
		}
		return t, nil
	}

	t := twin.Twin{
		GlobalID: domain.NewGlobalID(),
		ShellID:  domain.NewShellID(),
	}
	err := o.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := o.twins.CreateTwin(ctx, &t); err != nil {
			return err
		}
		return o.parts.LinkTwin(ctx, catalogPart.ID, t.ID)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Another caller created the twin first; reload the link.
			refreshed, rerr := o.parts.GetCatalogPart(ctx, catalogPart.LegalEntityID, catalogPart.ManufacturerPartID)
			if rerr == nil && refreshed.TwinID != 0 {
				*catalogPart = refreshed
				return o.ensureTwin(ctx, catalogPart)
			}
		}
		return twin.Twin{}, dErrors.Wrap(err, dErrors.CodeInternal, "create twin")
	}
	catalogPart.TwinID = t.ID
	return t, nil
}

// EnsureAspectRegistered walks one aspect registration through its stages:
// payload stored, connector offer provisioned, submodel descriptor attached.
// Each reached stage is persisted with a conditional advance so a crashed or
// racing run leaves a resumable status, never a regressed one.
func (o *Orchestrator) EnsureAspectRegistered(ctx context.Context, globalID domain.GlobalID, semanticID string, payload submodelstore.Payload, stackName string) (twin.TwinAspectRegistration, error) {
	// Grammar check happens before any state exists.
	sem, err := domain.ParseSemanticID(semanticID)
	if err != nil {
		return twin.TwinAspectRegistration{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid semantic ID")
	}

	key := "aspect/" + globalID.String() + "/" + sem.Value + "/" + stackName
	result, err, _ := o.group.Do(key, func() (any, error) {
		reg, runErr := o.ensureAspectRegistered(ctx, globalID, sem, payload, stackName)
		return reg, runErr
	})
	// A failed run still reports how far it got; callers and retries rely on
	// the reached stage, so the partial registration travels with the error.
	reg, _ := result.(twin.TwinAspectRegistration)
	return reg, err
}

func (o *Orchestrator) ensureAspectRegistered(ctx context.Context, globalID domain.GlobalID, sem domain.SemanticID, payload submodelstore.Payload, stackName string) (twin.TwinAspectRegistration, error) {
	ctx, span := o.tracer.Start(ctx, "twin.EnsureAspectRegistered",
		trace.WithAttributes(
			attribute.String("twin.global_id", globalID.String()),
			attribute.String("aspect.semantic_id", sem.Value),
			attribute.String("stack", stackName),
		))
	defer span.End()
	start := time.Now()

	t, err := o.twins.GetTwinByGlobalID(ctx, globalID)
	if err != nil {
		return twin.TwinAspectRegistration{}, translateLookup(err, "twin "+globalID.String())
	}
	stack, err := o.twins.GetStackByName(ctx, stackName)
	if err != nil {
		return twin.TwinAspectRegistration{}, translateLookup(err, "stack "+stackName)
	}

	aspect, err := o.ensureAspect(ctx, t.ID, sem)
	if err != nil {
		return twin.TwinAspectRegistration{}, err
	}
	reg, err := o.twins.EnsureAspectRegistration(ctx, aspect.ID, stack.ID, twin.ModeSingle)
	if err != nil {
		return twin.TwinAspectRegistration{}, dErrors.Wrap(err, dErrors.CodeInternal, "ensure aspect registration")
	}

	reg, err = o.runStages(ctx, t, stack, aspect, sem, payload, reg)
	o.metrics.ObserveRegisterLatency(reg.Status.String(), time.Since(start))
	if err != nil {
		o.events.Publish(ctx, events.RegistrationEvent{
			Type:       events.TypeRegistrationFail,
			GlobalID:   globalID.String(),
			StackName:  stackName,
			SemanticID: sem.Value,
			Status:     reg.Status.String(),
			Detail:     err.Error(),
		})
		return reg, err
	}
	return reg, nil
}

func (o *Orchestrator) ensureAspect(ctx context.Context, twinID int64, sem domain.SemanticID) (twin.TwinAspect, error) {
	aspect, err := o.twins.GetAspect(ctx, twinID, sem.Value)
	if err == nil {
		return aspect, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return twin.TwinAspect{}, dErrors.Wrap(err, dErrors.CodeInternal, "load aspect")
	}

	aspect = twin.TwinAspect{
		TwinID:     twinID,
		SubmodelID: domain.NewSubmodelID(),
		SemanticID: sem.Value,
	}
	if err := o.twins.CreateAspect(ctx, &aspect); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return o.ensureAspect(ctx, twinID, sem)
		}
		return twin.TwinAspect{}, dErrors.Wrap(err, dErrors.CodeInternal, "create aspect")
	}
	return aspect, nil
}

// runStages executes the outstanding stages in order. Adapter calls happen
// outside any database transaction; only the status advance for a completed
// stage is persisted, conditionally.
func (o *Orchestrator) runStages(ctx context.Context, t twin.Twin, stack twin.EnablementServiceStack, aspect twin.TwinAspect, sem domain.SemanticID, payload submodelstore.Payload, reg twin.TwinAspectRegistration) (twin.TwinAspectRegistration, error) {
	advanced := func(target twin.RegistrationStatus) {
		o.events.Publish(ctx, events.RegistrationEvent{
			Type:       events.TypeAspectAdvanced,
			GlobalID:   t.GlobalID.String(),
			StackName:  stack.Name,
			SemanticID: sem.Value,
			Status:     target.String(),
		})
	}

	if !reg.Status.AtLeast(twin.StatusStored) {
		storeKey := submodelstore.Key(sem, t.GlobalID)
		start := time.Now()
		if err := o.submodels.Put(ctx, storeKey, payload); err != nil {
			return reg, dErrors.Wrap(err, dErrors.CodeExternal, "store submodel payload")
		}
		o.metrics.ObserveAdapterLatency("submodel_store", "put", time.Since(start))
		var aerr error
		if reg, aerr = o.advance(ctx, aspect.ID, stack.ID, twin.StatusStored, reg); aerr != nil {
			return reg, aerr
		}
		advanced(twin.StatusStored)
	}

	if !reg.Status.AtLeast(twin.StatusDTRRegistered) {
		// The offer is needed for the descriptor even when the connector
		// stage already completed; provisioning is idempotent either way.
		start := time.Now()
		offer, err := o.provisioner.EnsureOffer(ctx, o.aspectAssetSpec(sem), o.usagePolicy, o.accessPolicy)
		if err != nil {
			return reg, dErrors.Wrap(err, dErrors.CodeExternal, "provision connector offer")
		}
		o.metrics.ObserveAdapterLatency("connector", "ensure_offer", time.Since(start))

		if !reg.Status.AtLeast(twin.StatusEDCRegistered) {
			var aerr error
			if reg, aerr = o.advance(ctx, aspect.ID, stack.ID, twin.StatusEDCRegistered, reg); aerr != nil {
				return reg, aerr
			}
			advanced(twin.StatusEDCRegistered)
		}

		descriptor := registry.BuildSubmodelDescriptor(registry.SubmodelInput{
			SubmodelID:  aspect.SubmodelID,
			SemanticID:  sem,
			Href:        o.submodelHref(sem, t.GlobalID),
			AssetID:     offer.AssetID,
			DSPEndpoint: o.connectorCfg.CatalogURL,
		})
		start = time.Now()
		if _, err := o.registry.CreateSubmodelDescriptor(ctx, t.ShellID.URN(), descriptor); err != nil {
			return reg, dErrors.Wrap(err, dErrors.CodeExternal, "attach submodel descriptor to registry")
		}
		o.metrics.ObserveAdapterLatency("registry", "create_submodel_descriptor", time.Since(start))

		var aerr error
		if reg, aerr = o.advance(ctx, aspect.ID, stack.ID, twin.StatusDTRRegistered, reg); aerr != nil {
			return reg, aerr
		}
		advanced(twin.StatusDTRRegistered)
	}

	return reg, nil
}

// advance persists a reached stage and re-reads the registration, tolerating
// a concurrent run that already moved further.
func (o *Orchestrator) advance(ctx context.Context, aspectID, stackID int64, target twin.RegistrationStatus, reg twin.TwinAspectRegistration) (twin.TwinAspectRegistration, error) {
	err := o.runner.RunInTx(ctx, func(ctx context.Context) error {
		return o.twins.AdvanceAspectStatus(ctx, aspectID, stackID, target)
	})
	if err != nil {
		return reg, dErrors.Wrap(err, dErrors.CodeInternal, "advance status to "+target.String())
	}
	current, err := o.twins.GetAspectRegistration(ctx, aspectID, stackID)
	if err != nil {
		return reg, dErrors.Wrap(err, dErrors.CodeInternal, "reload aspect registration")
	}
	o.metrics.IncrementStage(target.String())
	return current, nil
}

func (o *Orchestrator) aspectAssetSpec(sem domain.SemanticID) connector.AssetSpec {
	spec := connector.AssetSpec{
		BaseURL:    o.dispatcherBaseURL + "/" + url.PathEscape(sem.Value),
		DCTType:    "cx-taxo:Submodel",
		Version:    sem.Version,
		SemanticID: sem.Value,
		ProxyPath:  true,
	}
	if o.dispatcherAPIKey != "" {
		spec.Headers = map[string]string{"X-Api-Key": o.dispatcherAPIKey}
	}
	return spec
}

func (o *Orchestrator) submodelHref(sem domain.SemanticID, globalID domain.GlobalID) string {
	return fmt.Sprintf("%s/%s/%s/submodel", o.dispatcherBaseURL, url.PathEscape(sem.Value), globalID.URN())
}

// RegisterRegistryOffer provisions the connector offer that exposes the
// registry itself, so consumers can discover shells through the dataspace.
func (o *Orchestrator) RegisterRegistryOffer(ctx context.Context) (connector.Offer, error) {
	spec := connector.AssetSpec{
		BaseURL:          o.registryURL,
		DCTType:          "cx-taxo:DigitalTwinRegistry",
		Version:          "3.0",
		ProxyQueryParams: true,
		ProxyPath:        true,
		ProxyMethod:      true,
		ProxyBody:        true,
	}
	offer, err := o.provisioner.EnsureRegistryOffer(ctx, spec, o.usagePolicy, o.accessPolicy)
	if err != nil {
		return connector.Offer{}, dErrors.Wrap(err, dErrors.CodeExternal, "provision registry offer")
	}
	return offer, nil
}

func translateLookup(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, what+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "load "+what)
}
