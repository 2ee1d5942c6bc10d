package connector

// Payload builders for the connector management API (JSON-LD). Shapes follow
// the EDC v3 management schema: context + typed properties + data address for
// assets, ODRL rule sets for policies, asset selector + policy bindings for
// contract definitions.

// AssetSpec describes an asset to provision. BaseURL plus the dct:type (and
// semantic ID when present) are the asset's defining content for identity
// derivation.
type AssetSpec struct {
	BaseURL    string
	DCTType    string
	Version    string
	SemanticID string

	// Proxy flags for the HttpData data address.
	ProxyQueryParams bool
	ProxyPath        bool
	ProxyMethod      bool
	ProxyBody        bool

	// Headers the data plane forwards to the backend (e.g. dispatcher API key).
	Headers map[string]string
}

// definingContent is what the asset identity is derived from: the base URL
// and the semantic type, not the full payload (proxy flags and auth headers
// do not change which resource the asset exposes).
func (s AssetSpec) definingContent() map[string]any {
	return map[string]any{
		"baseUrl":    s.BaseURL,
		"dctType":    s.DCTType,
		"semanticId": s.SemanticID,
	}
}

func buildAssetPayload(id string, spec AssetSpec) Object {
	context := map[string]any{
		"edc":       "https://w3id.org/edc/v0.0.1/ns/",
		"cx-common": "https://w3id.org/catenax/ontology/common#",
		"cx-taxo":   "https://w3id.org/catenax/taxonomy#",
		"dct":       "http://purl.org/dc/terms/",
	}

	dataAddress := map[string]any{
		"@type":            "DataAddress",
		"type":             "HttpData",
		"baseUrl":          spec.BaseURL,
		"proxyQueryParams": boolString(spec.ProxyQueryParams),
		"proxyPath":        boolString(spec.ProxyPath),
		"proxyMethod":      boolString(spec.ProxyMethod),
		"proxyBody":        boolString(spec.ProxyBody),
	}
	for key, value := range spec.Headers {
		dataAddress["header:"+key] = value
	}

	properties := map[string]any{
		"dct:type": map[string]any{"@id": spec.DCTType},
	}
	if spec.Version != "" {
		properties["cx-common:version"] = spec.Version
	}
	if spec.SemanticID != "" {
		context["aas-semantics"] = "https://admin-shell.io/aas/3/0/HasSemantics/"
		properties["aas-semantics:semanticId"] = map[string]any{"@id": spec.SemanticID}
	}

	return Object{
		"@context":    context,
		"@id":         id,
		"properties":  properties,
		"dataAddress": dataAddress,
	}
}

func buildPolicyPayload(id string, context map[string]any, permission, prohibition, obligation []map[string]any) Object {
	return Object{
		"@context": context,
		"@type":    "PolicyDefinitionRequestDto",
		"@id":      id,
		"policy": map[string]any{
			"@type":            "odrl:Set",
			"odrl:permission":  permission,
			"odrl:prohibition": prohibition,
			"odrl:obligation":  obligation,
		},
	}
}

func buildContractPayload(id, assetID, accessPolicyID, usagePolicyID string) Object {
	return Object{
		"@context": map[string]any{
			"@vocab": "https://w3id.org/edc/v0.0.1/ns/",
		},
		"@id":              id,
		"accessPolicyId":   accessPolicyID,
		"contractPolicyId": usagePolicyID,
		"assetsSelector": []map[string]any{
			{
				"operandLeft":  "https://w3id.org/edc/v0.0.1/ns/id",
				"operator":     "=",
				"operandRight": assetID,
			},
		},
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
