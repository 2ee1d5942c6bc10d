package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Typed identifiers for the twin domain. Wrapping uuid.UUID keeps the
// different identity spaces (catalog-facing global ID, registry-facing shell
// ID, submodel ID) from being mixed up at compile time.

// GlobalID is the externally visible identifier of a twin (Catena-X ID).
type GlobalID uuid.UUID

// ShellID is the registry-facing identifier of a twin's shell descriptor.
type ShellID uuid.UUID

// SubmodelID identifies one aspect payload attached to a twin.
type SubmodelID uuid.UUID

func NewGlobalID() GlobalID     { return GlobalID(uuid.New()) }
func NewShellID() ShellID       { return ShellID(uuid.New()) }
func NewSubmodelID() SubmodelID { return SubmodelID(uuid.New()) }

// ParseGlobalID validates and returns a GlobalID. Both the bare UUID and the
// urn:uuid form are accepted.
func ParseGlobalID(s string) (GlobalID, error) {
	u, err := uuid.Parse(strings.TrimPrefix(s, "urn:uuid:"))
	if err != nil {
		return GlobalID{}, fmt.Errorf("invalid global ID %q: %w", s, err)
	}
	return GlobalID(u), nil
}

// ParseShellID validates and returns a ShellID.
func ParseShellID(s string) (ShellID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ShellID{}, fmt.Errorf("invalid shell ID %q: %w", s, err)
	}
	return ShellID(u), nil
}

// ParseSubmodelID validates and returns a SubmodelID.
func ParseSubmodelID(s string) (SubmodelID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SubmodelID{}, fmt.Errorf("invalid submodel ID %q: %w", s, err)
	}
	return SubmodelID(u), nil
}

func (id GlobalID) String() string { return uuid.UUID(id).String() }
func (id GlobalID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// URN returns the global ID in the urn:uuid form used in shell descriptors.
func (id GlobalID) URN() string { return "urn:uuid:" + uuid.UUID(id).String() }

func (id ShellID) String() string { return uuid.UUID(id).String() }
func (id ShellID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ShellID) URN() string    { return "urn:uuid:" + uuid.UUID(id).String() }

func (id SubmodelID) String() string { return uuid.UUID(id).String() }
func (id SubmodelID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SubmodelID) URN() string    { return "urn:uuid:" + uuid.UUID(id).String() }

// BPN is a business partner number (BPNL for legal entities).
type BPN string

var bpnPattern = regexp.MustCompile(`^BPN[LSA][A-Z0-9]{12}$`)

// ParseBPN validates the BPN format at parse time so stores and adapters can
// rely on it being well-formed.
func ParseBPN(s string) (BPN, error) {
	if !bpnPattern.MatchString(s) {
		return "", fmt.Errorf("invalid business partner number %q", s)
	}
	return BPN(s), nil
}

func (b BPN) String() string { return string(b) }
func (b BPN) IsNil() bool    { return b == "" }
