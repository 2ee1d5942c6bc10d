// Package identity derives stable identifiers for connector artifacts from
// their semantic content. Two provisioning attempts with the same content
// converge on the same identifier, which is what makes get-or-create
// idempotent. The identifier is a deduplication key, not a security boundary.
package identity

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Kind namespaces identifiers so equal content of different artifact kinds
// can never collide.
type Kind string

const (
	KindAsset         Kind = "asset"
	KindPolicy        Kind = "policy"
	KindContract      Kind = "contract"
	KindRegistryAsset Kind = "asset:dtr"
)

const prefix = "twinhub"

// Deriver produces content-addressed artifact identifiers.
type Deriver struct{}

func NewDeriver() *Deriver { return &Deriver{} }

// Derive canonicalizes content (stable key ordering at every nesting level)
// and returns "<twinhub>:<kind>:<blake2b-128 hex>".
func (d *Deriver) Derive(kind Kind, content any) (string, error) {
	canonical, err := Canonicalize(content)
	if err != nil {
		return "", fmt.Errorf("canonicalize %s content: %w", kind, err)
	}
	sum, err := blake2b.New(16, nil)
	if err != nil {
		return "", err
	}
	sum.Write(canonical)
	return prefix + ":" + string(kind) + ":" + hex.EncodeToString(sum.Sum(nil)), nil
}

// DeriveString hashes a raw string, used where the defining content already
// is a single value (e.g. a registry endpoint URL).
func (d *Deriver) DeriveString(kind Kind, content string) (string, error) {
	return d.Derive(kind, content)
}

// Canonicalize serializes content to JSON with object keys sorted at every
// level. Array order is preserved: rule order is semantically meaningful,
// object key order is not.
func Canonicalize(content any) ([]byte, error) {
	// Round-trip through encoding/json to reduce arbitrary structs to the
	// generic map/slice/scalar shape before sorting keys.
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var b strings.Builder
	if err := writeCanonical(&b, generic); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func writeCanonical(b *strings.Builder, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kj, err := json.Marshal(k)
			if err != nil {
				return err
			}
			b.Write(kj)
			b.WriteByte(':')
			if err := writeCanonical(b, val[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return err
		}
		b.Write(raw)
	}
	return nil
}
