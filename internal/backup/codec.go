// Package backup implements the versioned export/import protocol for
// .nexus backup files: envelope encoding, format-version detection,
// sanitation of imported identities, and wholesale store replacement.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexuskeeper/nexus/internal/models"
	"github.com/nexuskeeper/nexus/internal/store"
)

// FileExtension is the conventional extension for backup files. The
// content is plain JSON; the extension carries no structural meaning.
const FileExtension = ".nexus"

var (
	// ErrCorruptBackup is returned when the payload is not parseable
	// as any known backup format. The store is left untouched.
	ErrCorruptBackup = errors.New("backup: corrupt backup payload")
	// ErrNotConfirmed is returned when Import is called without the
	// caller-provided confirmation flag. The confirmation comes from
	// the UI boundary; the codec never invents it.
	ErrNotConfirmed = errors.New("backup: import not confirmed")
)

// Observer is the external collaborator owning the secondary dataset
// bundled into backups. The codec reads its snapshot on export and
// forwards imported data to Restore; it does not otherwise manage it.
type Observer interface {
	Snapshot() []json.RawMessage
	Restore(data []json.RawMessage) error
}

// NopObserver is an Observer with no data, for deployments that do not
// carry an observer dataset.
type NopObserver struct{}

// Snapshot returns an empty dataset.
func (NopObserver) Snapshot() []json.RawMessage { return nil }

// Restore discards the dataset.
func (NopObserver) Restore([]json.RawMessage) error { return nil }

// Summary describes what an import applied.
type Summary struct {
	// Version is the detected backup format version (1 or 2).
	Version int `json:"version"`
	// Identities is the number of identities imported.
	Identities int `json:"identities"`
	// ObserverRecords is the number of observer records forwarded.
	ObserverRecords int `json:"observerRecords"`
}

// Codec serializes the full system state into the versioned envelope
// and replaces it wholesale on import.
type Codec struct {
	store    *store.Store
	observer Observer
	log      *zap.Logger
}

// NewCodec constructs a Codec over the given store and observer.
// Pass NopObserver{} when there is no observer dataset.
func NewCodec(st *store.Store, obs Observer, log *zap.Logger) *Codec {
	if obs == nil {
		obs = NopObserver{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Codec{store: st, observer: obs, log: log}
}

// Export writes the current collection and the observer dataset as a
// version-2 envelope to w.
func (c *Codec) Export(w io.Writer) error {
	env := models.Envelope{
		Version:      models.FormatVersion,
		Identities:   c.store.Identities(),
		ObserverData: c.observer.Snapshot(),
	}
	if env.Identities == nil {
		env.Identities = []models.Identity{}
	}
	if env.ObserverData == nil {
		env.ObserverData = []json.RawMessage{}
	}
	if err := json.NewEncoder(w).Encode(env); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// Decode parses raw backup data and detects its format version. It
// first attempts the version-2 envelope (accepting the legacy field
// name "sentinel" for the identities list), then falls back to the
// version-1 bare identity array, and otherwise fails closed with
// ErrCorruptBackup.
func Decode(data []byte) (models.Envelope, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		idsRaw, ok := raw["identities"]
		if !ok {
			idsRaw, ok = raw["sentinel"]
		}
		if !ok {
			return models.Envelope{}, ErrCorruptBackup
		}
		env := models.Envelope{Version: models.FormatVersion}
		if v, found := raw["version"]; found {
			_ = json.Unmarshal(v, &env.Version)
		}
		// A missing or wrong-shaped list defaults to empty rather than
		// rejecting the whole backup.
		_ = json.Unmarshal(idsRaw, &env.Identities)
		if v, found := raw["observerData"]; found {
			_ = json.Unmarshal(v, &env.ObserverData)
		}
		return env, nil
	}

	var legacy []models.Identity
	if err := json.Unmarshal(data, &legacy); err == nil {
		return models.Envelope{Version: 1, Identities: legacy}, nil
	}

	return models.Envelope{}, ErrCorruptBackup
}

// Import parses data, detects the format, sanitizes the identities,
// and replaces the store's collection wholesale. confirmed must be
// true; it is the precondition satisfied at the UI boundary before any
// state is mutated. A parse failure aborts before any mutation.
func (c *Codec) Import(data []byte, confirmed bool) (Summary, error) {
	env, err := Decode(data)
	if err != nil {
		return Summary{}, err
	}
	if !confirmed {
		return Summary{}, ErrNotConfirmed
	}

	ids := env.Identities
	if ids == nil {
		ids = []models.Identity{}
	}
	for i := range ids {
		if ids[i].ID == "" {
			ids[i].ID = uuid.NewString()
		}
	}

	c.store.ReplaceAll(ids)

	if len(env.ObserverData) > 0 {
		if err := c.observer.Restore(env.ObserverData); err != nil {
			c.log.Warn("failed to restore observer data", zap.Error(err))
		}
	}

	c.log.Info("backup imported",
		zap.Int("version", env.Version),
		zap.Int("identities", len(ids)),
		zap.Int("observer_records", len(env.ObserverData)))
	return Summary{
		Version:         env.Version,
		Identities:      len(ids),
		ObserverRecords: len(env.ObserverData),
	}, nil
}
