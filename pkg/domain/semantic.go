package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// SemanticID references the aspect model a submodel payload conforms to, e.g.
// urn:samm:io.catenax.part_type_information:1.0.0#PartTypeInformation.
// The grammar is namespace segments separated by ':', a version of two or
// three numeric segments, and a '#AspectName' suffix.
type SemanticID struct {
	Value           string
	Name            string
	IDShort         string
	Version         string
	NamespacePrefix string
}

var semanticIDPattern = regexp.MustCompile(`^(([^:]+):)*(\d+(?:\.\d+){1,2})#([\w\-]+)$`)

// ParseSemanticID validates a raw semantic identifier against the grammar and
// derives the aspect name, idShort and version from it.
func ParseSemanticID(raw string) (SemanticID, error) {
	m := semanticIDPattern.FindStringSubmatch(raw)
	if m == nil {
		return SemanticID{}, fmt.Errorf("invalid semantic ID %q", raw)
	}
	name := m[4]
	version := m[3]
	runes := []rune(name)
	runes[0] = unicode.ToLower(runes[0])
	// The repeated namespace group only captures its last segment, so the
	// full prefix is cut from the raw value instead.
	base := strings.TrimSuffix(raw, "#"+name)
	return SemanticID{
		Value:           raw,
		Name:            name,
		IDShort:         string(runes),
		Version:         version,
		NamespacePrefix: strings.TrimSuffix(strings.TrimSuffix(base, version), ":"),
	}, nil
}

func (s SemanticID) String() string { return s.Value }
func (s SemanticID) IsNil() bool    { return s.Value == "" }
