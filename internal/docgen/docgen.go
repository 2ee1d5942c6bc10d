// Package docgen generates standard aspect documents for parts that have no
// externally supplied payload yet.
package docgen

import (
	"encoding/json"
	"fmt"

	"twinhub/pkg/domain"
)

// SemIDPartTypeInformationV1 is the semantic ID of the generated part type
// information document.
const SemIDPartTypeInformationV1 = "urn:samm:io.catenax.part_type_information:1.0.0#PartTypeInformation"

type partTypeInformation struct {
	ManufacturerPartID string `json:"manufacturerPartId"`
	NameAtManufacturer string `json:"nameAtManufacturer"`
}

type partSite struct {
	CatenaXSiteID string `json:"catenaXsiteId"`
	Function      string `json:"function"`
}

type partTypeDocument struct {
	CatenaXID           string              `json:"catenaXId"`
	PartTypeInformation partTypeInformation `json:"partTypeInformation"`
	PartSites           []partSite          `json:"partSitesInformationAsPlanned,omitempty"`
}

// PartTypeInformationV1 builds the part type information document for a twin.
// The production site entry is included only when a site BPNS is known.
func PartTypeInformationV1(globalID domain.GlobalID, manufacturerPartID, name, siteBPNS string) (json.RawMessage, error) {
	doc := partTypeDocument{
		CatenaXID: globalID.URN(),
		PartTypeInformation: partTypeInformation{
			ManufacturerPartID: manufacturerPartID,
			NameAtManufacturer: name,
		},
	}
	if siteBPNS != "" {
		doc.PartSites = []partSite{{CatenaXSiteID: siteBPNS, Function: "production"}}
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal part type information: %w", err)
	}
	return payload, nil
}
