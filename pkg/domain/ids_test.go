package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseGlobalID(t *testing.T) {
	t.Run("accepts a bare uuid", func(t *testing.T) {
		id, err := ParseGlobalID("0195a3c6-0000-7000-8000-000000000001")
		require.NoError(t, err)
		assert.Equal(t, "0195a3c6-0000-7000-8000-000000000001", id.String())
	})

	t.Run("accepts the urn:uuid form", func(t *testing.T) {
		id, err := ParseGlobalID("urn:uuid:0195a3c6-0000-7000-8000-000000000001")
		require.NoError(t, err)
		assert.Equal(t, "urn:uuid:0195a3c6-0000-7000-8000-000000000001", id.URN())
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		_, err := ParseGlobalID("not-a-uuid")
		assert.Error(t, err)

		_, err = ParseGlobalID("urn:uuid:")
		assert.Error(t, err)
	})
}

func Test_IDRoundtrips(t *testing.T) {
	global := NewGlobalID()
	assert.False(t, global.IsNil())

	parsed, err := ParseGlobalID(global.URN())
	require.NoError(t, err)
	assert.Equal(t, global, parsed)

	shell := NewShellID()
	parsedShell, err := ParseShellID(shell.String())
	require.NoError(t, err)
	assert.Equal(t, shell, parsedShell)

	submodel := NewSubmodelID()
	parsedSub, err := ParseSubmodelID(submodel.String())
	require.NoError(t, err)
	assert.Equal(t, submodel, parsedSub)
}

func Test_IsNilOnZeroValues(t *testing.T) {
	assert.True(t, GlobalID{}.IsNil())
	assert.True(t, ShellID{}.IsNil())
	assert.True(t, SubmodelID{}.IsNil())
	assert.True(t, BPN("").IsNil())
}

func Test_ParseBPN(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"legal entity", "BPNL000000000001", true},
		{"site", "BPNS00000000ABCD", true},
		{"address", "BPNA1234567890AB", true},
		{"lowercase suffix", "BPNL00000000000a", false},
		{"too short", "BPNL0001", false},
		{"too long", "BPNL0000000000012", false},
		{"wrong prefix", "XPNL000000000001", false},
		{"empty", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bpn, err := ParseBPN(tc.input)
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.input, bpn.String())
		})
	}
}
