package registry

import (
	"twinhub/pkg/domain"
)

// PublicReadable marks a specific asset ID as readable by every dataspace
// participant. It is a sentinel by convention, not an actual partner number.
const PublicReadable = "PUBLIC_READABLE"

// DigitalTwinTypePartType discriminates catalog-part twins in discovery.
const DigitalTwinTypePartType = "PartType"

// ShellDescriptor is the registry-facing record describing a twin.
type ShellDescriptor struct {
	ID                  string               `json:"id"`
	GlobalAssetID       string               `json:"globalAssetId"`
	IDShort             string               `json:"idShort,omitempty"`
	SpecificAssetIDs    []SpecificAssetID    `json:"specificAssetIds"`
	SubmodelDescriptors []SubmodelDescriptor `json:"submodelDescriptors,omitempty"`
}

// SpecificAssetID is one discoverable attribute of a shell, visible only to
// the partners named in its external subject reference.
type SpecificAssetID struct {
	Name              string     `json:"name"`
	Value             string     `json:"value"`
	ExternalSubjectID *Reference `json:"externalSubjectId,omitempty"`
}

type Reference struct {
	Type string `json:"type"`
	Keys []Key  `json:"keys"`
}

type Key struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// SubmodelDescriptor points consumers at a submodel endpoint, carrying the
// connector asset reference they need to negotiate access.
type SubmodelDescriptor struct {
	ID          string     `json:"id"`
	IDShort     string     `json:"idShort,omitempty"`
	SemanticID  *Reference `json:"semanticId"`
	Endpoints   []Endpoint `json:"endpoints"`
	Description []LangText `json:"description,omitempty"`
}

type Endpoint struct {
	Interface           string              `json:"interface"`
	ProtocolInformation ProtocolInformation `json:"protocolInformation"`
}

type ProtocolInformation struct {
	Href                    string              `json:"href"`
	EndpointProtocol        string              `json:"endpointProtocol"`
	EndpointProtocolVersion []string            `json:"endpointProtocolVersion"`
	Subprotocol             string              `json:"subprotocol"`
	SubprotocolBody         string              `json:"subprotocolBody"`
	SubprotocolBodyEncoding string              `json:"subprotocolBodyEncoding"`
	SecurityAttributes      []SecurityAttribute `json:"securityAttributes"`
}

type SecurityAttribute struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type LangText struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// ShellInput carries everything needed to build a twin's shell descriptor.
// CustomerPartIDs maps customer part IDs to the owning partner's BPN.
type ShellInput struct {
	ShellID            domain.ShellID
	GlobalID           domain.GlobalID
	ManufacturerID     domain.BPN
	ManufacturerPartID string
	CustomerPartIDs    map[string]domain.BPN
	PartCategory       string
}

// BuildShellDescriptor applies the descriptor content rules: specific asset
// IDs only for non-empty values, visibility restricted to the partners of the
// current customer mappings, and the manufacturer part ID publicly readable.
func BuildShellDescriptor(in ShellInput) ShellDescriptor {
	partnerBPNs := make([]string, 0, len(in.CustomerPartIDs))
	for _, bpn := range in.CustomerPartIDs {
		partnerBPNs = append(partnerBPNs, bpn.String())
	}

	ids := []SpecificAssetID{
		{
			Name:              "manufacturerId",
			Value:             in.ManufacturerID.String(),
			ExternalSubjectID: subjectFor(partnerBPNs),
		},
		{
			Name:              "manufacturerPartId",
			Value:             in.ManufacturerPartID,
			ExternalSubjectID: subjectFor([]string{PublicReadable}),
		},
		{
			Name:              "digitalTwinType",
			Value:             DigitalTwinTypePartType,
			ExternalSubjectID: subjectFor(partnerBPNs),
		},
	}

	for customerPartID, bpn := range in.CustomerPartIDs {
		// Empty customer part IDs are skipped, never registered as "".
		if customerPartID == "" {
			continue
		}
		ids = append(ids, SpecificAssetID{
			Name:              "customerPartId",
			Value:             customerPartID,
			ExternalSubjectID: subjectFor([]string{bpn.String()}),
		})
	}

	return ShellDescriptor{
		ID:               in.ShellID.URN(),
		GlobalAssetID:    in.GlobalID.URN(),
		IDShort:          in.ManufacturerPartID,
		SpecificAssetIDs: ids,
	}
}

// SubmodelInput carries everything needed to attach a submodel descriptor to
// a shell.
type SubmodelInput struct {
	SubmodelID domain.SubmodelID
	SemanticID domain.SemanticID

	// Href is the data-plane URL consumers call after negotiation.
	Href string
	// AssetID and DSPEndpoint form the subprotocol body consumers use to
	// negotiate access with the providing connector.
	AssetID     string
	DSPEndpoint string
}

// BuildSubmodelDescriptor embeds the connector endpoint information so that
// external consumers can negotiate access to the payload.
func BuildSubmodelDescriptor(in SubmodelInput) SubmodelDescriptor {
	return SubmodelDescriptor{
		ID:      in.SubmodelID.URN(),
		IDShort: in.SemanticID.IDShort,
		SemanticID: &Reference{
			Type: "ExternalReference",
			Keys: []Key{{Type: "GlobalReference", Value: in.SemanticID.Value}},
		},
		Endpoints: []Endpoint{
			{
				Interface: "SUBMODEL-3.0",
				ProtocolInformation: ProtocolInformation{
					Href:                    in.Href,
					EndpointProtocol:        "HTTP",
					EndpointProtocolVersion: []string{"1.1"},
					Subprotocol:             "DSP",
					SubprotocolBody:         "id=" + in.AssetID + ";dspEndpoint=" + in.DSPEndpoint,
					SubprotocolBodyEncoding: "plain",
					SecurityAttributes: []SecurityAttribute{
						{Type: "NONE", Key: "NONE", Value: "NONE"},
					},
				},
			},
		},
	}
}

func subjectFor(values []string) *Reference {
	keys := make([]Key, 0, len(values))
	for _, v := range values {
		keys = append(keys, Key{Type: "GlobalReference", Value: v})
	}
	return &Reference{Type: "ExternalReference", Keys: keys}
}
