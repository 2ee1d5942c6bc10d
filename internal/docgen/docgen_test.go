package docgen

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twinhub/pkg/domain"
)

func Test_PartTypeInformationV1(t *testing.T) {
	globalID := domain.NewGlobalID()

	payload, err := PartTypeInformationV1(globalID, "MPN-001", "Gearbox", "BPNS000000000001")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(payload, &doc))

	assert.Equal(t, globalID.URN(), doc["catenaXId"])

	info, ok := doc["partTypeInformation"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "MPN-001", info["manufacturerPartId"])
	assert.Equal(t, "Gearbox", info["nameAtManufacturer"])

	sites, ok := doc["partSitesInformationAsPlanned"].([]any)
	require.True(t, ok)
	require.Len(t, sites, 1)
	site := sites[0].(map[string]any)
	assert.Equal(t, "BPNS000000000001", site["catenaXsiteId"])
	assert.Equal(t, "production", site["function"])
}

func Test_PartTypeInformationV1_NoSite(t *testing.T) {
	payload, err := PartTypeInformationV1(domain.NewGlobalID(), "MPN-001", "Gearbox", "")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.NotContains(t, doc, "partSitesInformationAsPlanned")
}
