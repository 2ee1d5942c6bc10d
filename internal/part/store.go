package part

import (
	"context"

	"twinhub/pkg/domain"
)

// Store is the persistence boundary for catalog parts and partners.
// Implementations return sentinel.ErrNotFound for absent rows and
// sentinel.ErrConflict for uniqueness violations.
type Store interface {
	CreateLegalEntity(ctx context.Context, e *LegalEntity) error
	GetLegalEntityByBPNL(ctx context.Context, bpnl domain.BPN) (LegalEntity, error)

	CreateCatalogPart(ctx context.Context, p *CatalogPart) error
	GetCatalogPart(ctx context.Context, legalEntityID int64, manufacturerPartID string) (CatalogPart, error)
	ListCatalogParts(ctx context.Context, legalEntityID int64) ([]CatalogPart, error)
	// LinkTwin attaches a twin to a part that does not have one yet.
	LinkTwin(ctx context.Context, catalogPartID, twinID int64) error

	CreatePartner(ctx context.Context, p *BusinessPartner) error
	GetPartnerByName(ctx context.Context, name string) (BusinessPartner, error)
	GetPartnerByBPNL(ctx context.Context, bpnl domain.BPN) (BusinessPartner, error)
	ListPartners(ctx context.Context) ([]BusinessPartner, error)

	CreateMapping(ctx context.Context, m *CustomerMapping) error
	GetMapping(ctx context.Context, catalogPartID, businessPartnerID int64) (CustomerMapping, error)
	ListMappingsByPart(ctx context.Context, catalogPartID int64) ([]CustomerMapping, error)
}
