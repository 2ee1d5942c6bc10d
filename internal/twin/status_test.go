package twin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_RegistrationStatus_Ordering(t *testing.T) {
	ordered := []RegistrationStatus{StatusPlanned, StatusStored, StatusEDCRegistered, StatusDTRRegistered}
	for i := 1; i < len(ordered); i++ {
		assert.True(t, ordered[i].AtLeast(ordered[i-1]), "%s should be at least %s", ordered[i], ordered[i-1])
		assert.False(t, ordered[i-1].AtLeast(ordered[i]), "%s should not be at least %s", ordered[i-1], ordered[i])
	}
	assert.True(t, StatusStored.AtLeast(StatusStored))
}

func Test_RegistrationStatus_String(t *testing.T) {
	assert.Equal(t, "PLANNED", StatusPlanned.String())
	assert.Equal(t, "STORED", StatusStored.String())
	assert.Equal(t, "EDC_REGISTERED", StatusEDCRegistered.String())
	assert.Equal(t, "DTR_REGISTERED", StatusDTRRegistered.String())
	assert.Equal(t, "RegistrationStatus(9)", RegistrationStatus(9).String())
}

func Test_RegistrationStatus_Valid(t *testing.T) {
	assert.True(t, StatusPlanned.Valid())
	assert.True(t, StatusDTRRegistered.Valid())
	assert.False(t, RegistrationStatus(-1).Valid())
	assert.False(t, RegistrationStatus(4).Valid())
}

func Test_RegistrationMode_String(t *testing.T) {
	assert.Equal(t, "SINGLE", ModeSingle.String())
	assert.Equal(t, "DISPATCHED", ModeDispatched.String())
}

func Test_ParseRegistrationMode(t *testing.T) {
	for _, mode := range []RegistrationMode{ModeSingle, ModeDispatched} {
		parsed, err := ParseRegistrationMode(mode.String())
		assert.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}

	_, err := ParseRegistrationMode("single")
	assert.Error(t, err)
	_, err = ParseRegistrationMode("")
	assert.Error(t, err)
}
