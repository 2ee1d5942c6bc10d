// Package part manages the catalog of manufactured parts and the business
// partners they are shared with. Catalog parts are the anchor records that
// twins are created for.
package part

import "twinhub/pkg/domain"

// LegalEntity is an owning organization identified by its BPNL.
type LegalEntity struct {
	ID   int64
	BPNL domain.BPN
}

// BusinessPartner is an external organization parts can be shared with.
// Name and BPNL are both unique.
type BusinessPartner struct {
	ID   int64
	Name string
	BPNL domain.BPN
}

// CatalogPart is one manufactured part type. ManufacturerPartID is unique
// within a legal entity. TwinID is zero until a twin has been created.
type CatalogPart struct {
	ID                 int64
	LegalEntityID      int64
	ManufacturerPartID string
	Name               string
	Category           string
	SiteBPNS           string
	TwinID             int64
}

// CustomerMapping is a partner's own part number for a catalog part. The
// partner fields are denormalized on reads for descriptor building.
type CustomerMapping struct {
	CatalogPartID     int64
	BusinessPartnerID int64
	CustomerPartID    string
	PartnerName       string
	PartnerBPN        domain.BPN
}
