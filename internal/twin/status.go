package twin

import "fmt"

// RegistrationStatus is the aspect registration stage. Stages are strictly
// ordered and a registration's status never regresses; the total order is
// defined here once so adding a stage cannot silently reorder comparisons.
type RegistrationStatus int

const (
	StatusPlanned RegistrationStatus = iota
	StatusStored
	StatusEDCRegistered
	StatusDTRRegistered
)

var statusNames = map[RegistrationStatus]string{
	StatusPlanned:       "PLANNED",
	StatusStored:        "STORED",
	StatusEDCRegistered: "EDC_REGISTERED",
	StatusDTRRegistered: "DTR_REGISTERED",
}

func (s RegistrationStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("RegistrationStatus(%d)", int(s))
}

// AtLeast reports whether s has reached the other stage.
func (s RegistrationStatus) AtLeast(other RegistrationStatus) bool {
	return s >= other
}

// Valid reports whether s is one of the defined stages.
func (s RegistrationStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// RegistrationMode selects the connector asset layout for an aspect.
type RegistrationMode int

const (
	// ModeSingle provisions one asset per aspect.
	ModeSingle RegistrationMode = iota
	// ModeDispatched shares one bundle asset per semantic type, with the
	// submodel dispatcher multiplexing payloads behind it.
	ModeDispatched
)

func (m RegistrationMode) String() string {
	switch m {
	case ModeSingle:
		return "SINGLE"
	case ModeDispatched:
		return "DISPATCHED"
	default:
		return fmt.Sprintf("RegistrationMode(%d)", int(m))
	}
}

// ParseRegistrationMode maps a stored mode name back to the enum.
func ParseRegistrationMode(s string) (RegistrationMode, error) {
	switch s {
	case "SINGLE":
		return ModeSingle, nil
	case "DISPATCHED":
		return ModeDispatched, nil
	default:
		return 0, fmt.Errorf("unknown registration mode %q", s)
	}
}
