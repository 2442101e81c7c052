// Package models defines the core data structures for identities,
// their recovery-code vaults, and the backup envelope.
package models

import (
	"encoding/json"
	"regexp"
	"strings"
)

// VaultSize is the fixed number of recovery-code slots per identity.
const VaultSize = 10

// EmptySlot marks a vault slot that holds no recovery code. It is a
// distinct sentinel so that "no code stored" never collides with an
// empty string in stored or exported form.
const EmptySlot = "EMPTY_SLOT"

// secretPattern matches a normalized base32 secret: the RFC 4648
// alphabet with optional trailing padding.
var secretPattern = regexp.MustCompile(`^[A-Z2-7]+=*$`)

// Identity represents one authentication identity with its TOTP secret,
// metadata, classification tags, and recovery-code vault.
type Identity struct {
	// ID is the unique identifier for the identity, assigned at creation.
	ID string `json:"id"`
	// Name is the display label shown for the identity.
	Name string `json:"name"`
	// Secret is the normalized base32 TOTP secret.
	Secret string `json:"secret"`
	// Vault holds exactly VaultSize recovery-code slots. A slot is either
	// EmptySlot or a non-empty static code.
	Vault []string `json:"vault"`
	// Note is an optional free-text identity token (e.g. a login name).
	Note string `json:"note"`
	// HiddenDescription is an optional sensitive field, rendered masked
	// unless explicitly revealed.
	HiddenDescription string `json:"hiddenDescription"`
	// Tags is the set of classification tags assigned to the identity.
	Tags []string `json:"tags"`
	// Extra carries unrecognized fields from imported backups so they
	// survive an export round-trip.
	Extra map[string]json.RawMessage `json:"-"`
}

// NewVault returns a fresh vault of VaultSize empty slots.
func NewVault() []string {
	v := make([]string, VaultSize)
	for i := range v {
		v[i] = EmptySlot
	}
	return v
}

// NormalizeSecret strips all whitespace from s and uppercases it.
func NormalizeSecret(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// ValidSecret reports whether s (already normalized) satisfies the
// base32 pattern.
func ValidSecret(s string) bool {
	return secretPattern.MatchString(s)
}

// knownFields lists the JSON keys owned by Identity itself; everything
// else lands in Extra.
var knownFields = map[string]bool{
	"id": true, "name": true, "secret": true, "vault": true,
	"note": true, "hiddenDescription": true, "tags": true,
}

// UnmarshalJSON decodes an identity leniently: missing or wrong-shaped
// optional fields are defaulted rather than rejected, so a partially
// malformed backup entry never fails the whole import. A vault that is
// not exactly VaultSize slots long is replaced with a fresh one, and
// unknown fields are retained in Extra.
func (id *Identity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*id = Identity{Vault: NewVault(), Tags: []string{}}

	tryString := func(key string, dst *string) {
		if v, ok := raw[key]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil {
				*dst = s
			}
		}
	}
	tryString("id", &id.ID)
	tryString("name", &id.Name)
	tryString("secret", &id.Secret)
	tryString("note", &id.Note)
	tryString("hiddenDescription", &id.HiddenDescription)

	if v, ok := raw["vault"]; ok {
		var vault []string
		if json.Unmarshal(v, &vault) == nil && len(vault) == VaultSize {
			for i, slot := range vault {
				if slot == "" {
					vault[i] = EmptySlot
				}
			}
			id.Vault = vault
		}
	}

	if v, ok := raw["tags"]; ok {
		var tags []string
		if json.Unmarshal(v, &tags) == nil {
			seen := make(map[string]bool, len(tags))
			for _, t := range tags {
				if t != "" && !seen[t] {
					seen[t] = true
					id.Tags = append(id.Tags, t)
				}
			}
		}
	}

	for key, v := range raw {
		if knownFields[key] {
			continue
		}
		if id.Extra == nil {
			id.Extra = make(map[string]json.RawMessage)
		}
		id.Extra[key] = v
	}
	return nil
}

// MarshalJSON emits the identity's own fields plus any retained unknown
// fields from Extra.
func (id Identity) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, 7+len(id.Extra))
	put := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[key] = b
		return nil
	}
	if err := put("id", id.ID); err != nil {
		return nil, err
	}
	_ = put("name", id.Name)
	_ = put("secret", id.Secret)
	vault := id.Vault
	if len(vault) != VaultSize {
		vault = NewVault()
	}
	_ = put("vault", vault)
	_ = put("note", id.Note)
	_ = put("hiddenDescription", id.HiddenDescription)
	tags := id.Tags
	if tags == nil {
		tags = []string{}
	}
	_ = put("tags", tags)
	for key, v := range id.Extra {
		if !knownFields[key] {
			out[key] = v
		}
	}
	return json.Marshal(out)
}

// Clone returns a deep copy of the identity, so callers can hand out
// snapshots without aliasing the store's backing slices.
func (id Identity) Clone() Identity {
	c := id
	c.Vault = append([]string(nil), id.Vault...)
	c.Tags = append([]string(nil), id.Tags...)
	if id.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(id.Extra))
		for k, v := range id.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// CloneAll deep-copies a whole collection.
func CloneAll(ids []Identity) []Identity {
	out := make([]Identity, len(ids))
	for i, id := range ids {
		out[i] = id.Clone()
	}
	return out
}

// Envelope is the versioned wrapper written to and read from .nexus
// backup files. Version 1 backups are a bare array of identities with
// no observer data; version 2 is the full envelope.
type Envelope struct {
	Version      int               `json:"version"`
	Identities   []Identity        `json:"identities"`
	ObserverData []json.RawMessage `json:"observerData"`
}

// FormatVersion is the envelope version written by export.
const FormatVersion = 2
