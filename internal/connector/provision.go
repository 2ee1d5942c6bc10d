package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"twinhub/internal/identity"
	"twinhub/pkg/platform/sentinel"
)

// Offer is the result of a full connector provisioning pass: one asset bound
// to usage and access policies through a contract definition.
type Offer struct {
	AssetID        string
	UsagePolicyID  string
	AccessPolicyID string
	ContractID     string
}

// Provisioner applies the get-or-create pattern uniformly to assets, policies
// and contract definitions. Identifiers are content-addressed, so concurrent
// or repeated attempts with the same semantic content converge on the same
// connector objects instead of creating duplicates.
type Provisioner struct {
	api ManagementAPI
	ids *identity.Deriver
	log *slog.Logger
}

func NewProvisioner(api ManagementAPI, ids *identity.Deriver, log *slog.Logger) *Provisioner {
	return &Provisioner{api: api, ids: ids, log: log}
}

// EnsureOffer provisions asset, policies and contract for a submodel offer.
func (p *Provisioner) EnsureOffer(ctx context.Context, spec AssetSpec, usage, access PolicyDefinition) (Offer, error) {
	assetID, err := p.EnsureAsset(ctx, identity.KindAsset, spec)
	if err != nil {
		return Offer{}, err
	}
	return p.ensureContractWithPolicies(ctx, assetID, usage, access)
}

// EnsureRegistryOffer provisions the offer that exposes the twin registry
// itself, so consumers can negotiate access to shell descriptors.
func (p *Provisioner) EnsureRegistryOffer(ctx context.Context, spec AssetSpec, usage, access PolicyDefinition) (Offer, error) {
	assetID, err := p.EnsureAsset(ctx, identity.KindRegistryAsset, spec)
	if err != nil {
		return Offer{}, err
	}
	return p.ensureContractWithPolicies(ctx, assetID, usage, access)
}

func (p *Provisioner) ensureContractWithPolicies(ctx context.Context, assetID string, usage, access PolicyDefinition) (Offer, error) {
	usagePolicyID, err := p.EnsurePolicy(ctx, usage)
	if err != nil {
		return Offer{}, err
	}
	accessPolicyID, err := p.EnsurePolicy(ctx, access)
	if err != nil {
		return Offer{}, err
	}
	contractID, err := p.EnsureContract(ctx, assetID, accessPolicyID, usagePolicyID)
	if err != nil {
		return Offer{}, err
	}
	return Offer{
		AssetID:        assetID,
		UsagePolicyID:  usagePolicyID,
		AccessPolicyID: accessPolicyID,
		ContractID:     contractID,
	}, nil
}

// EnsureAsset get-or-creates a connector asset for the spec.
func (p *Provisioner) EnsureAsset(ctx context.Context, kind identity.Kind, spec AssetSpec) (string, error) {
	return p.ensure(ctx, ArtifactAsset, kind, spec.definingContent(), func(id string) Object {
		return buildAssetPayload(id, spec)
	})
}

// EnsurePolicy get-or-creates a policy definition. The identifier is derived
// from the translated ODRL rule sets, so declarative rules that translate to
// the same enforceable policy share one connector object.
func (p *Provisioner) EnsurePolicy(ctx context.Context, def PolicyDefinition) (string, error) {
	context := def.Context
	if len(context) == 0 {
		context = DefaultPolicyContext()
	}
	permission := BuildRules(def.Permission)
	prohibition := BuildRules(def.Prohibition)
	obligation := BuildRules(def.Obligation)

	content := map[string]any{
		"context":     context,
		"permission":  permission,
		"prohibition": prohibition,
		"obligation":  obligation,
	}
	return p.ensure(ctx, ArtifactPolicy, identity.KindPolicy, content, func(id string) Object {
		return buildPolicyPayload(id, context, permission, prohibition, obligation)
	})
}

// EnsureContract get-or-creates the contract definition binding an asset to
// its access and usage policies.
func (p *Provisioner) EnsureContract(ctx context.Context, assetID, accessPolicyID, usagePolicyID string) (string, error) {
	content := map[string]any{
		"assetId":        assetID,
		"accessPolicyId": accessPolicyID,
		"usagePolicyId":  usagePolicyID,
	}
	return p.ensure(ctx, ArtifactContract, identity.KindContract, content, func(id string) Object {
		return buildContractPayload(id, assetID, accessPolicyID, usagePolicyID)
	})
}

// ensure is the single get-or-create path shared by all artifact kinds:
// derive the canonical identifier, look it up, create only on not-found.
// A failed create is fatal for this provisioning call.
func (p *Provisioner) ensure(ctx context.Context, artifact ArtifactKind, kind identity.Kind, content any, build func(id string) Object) (string, error) {
	id, err := p.ids.Derive(kind, content)
	if err != nil {
		return "", err
	}

	existing, err := p.api.GetByID(ctx, artifact, id)
	switch {
	case err == nil:
		p.log.DebugContext(ctx, "connector artifact already exists", "kind", artifact, "id", id)
		return idOrDefault(existing, id), nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return "", fmt.Errorf("lookup %s %s: %w", artifact, id, err)
	}

	p.log.InfoContext(ctx, "creating connector artifact", "kind", artifact, "id", id)
	created, err := p.api.Create(ctx, artifact, build(id))
	if err != nil {
		return "", fmt.Errorf("create %s %s: %w", artifact, id, err)
	}
	return idOrDefault(created, id), nil
}

func idOrDefault(obj Object, fallback string) string {
	if id := obj.ID(); id != "" {
		return id
	}
	return fallback
}
