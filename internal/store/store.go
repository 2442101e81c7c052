// Package store owns the in-memory identity collection and mirrors
// every successful mutation to a persistence backend as a whole-collection
// write-through.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexuskeeper/nexus/internal/models"
)

var (
	// ErrRejectedInput is the base error for add-identity validation
	// failures. Concrete failures wrap it.
	ErrRejectedInput = errors.New("store: rejected input")
	// ErrNotFound is returned when an update targets an id that does
	// not exist in the collection.
	ErrNotFound = errors.New("store: identity not found")

	// ErrEmptyName rejects a draft with a blank display name.
	ErrEmptyName = fmt.Errorf("%w: name must not be empty", ErrRejectedInput)
	// ErrEmptySecret rejects a draft with a blank secret.
	ErrEmptySecret = fmt.Errorf("%w: secret must not be empty", ErrRejectedInput)
	// ErrInvalidSecret rejects a draft whose normalized secret is not
	// valid base32.
	ErrInvalidSecret = fmt.Errorf("%w: secret is not valid base32", ErrRejectedInput)
)

// Persister is the external persistence collaborator. The store hands
// it the entire collection on every successful mutation; there is no
// incremental diff protocol.
type Persister interface {
	// Load returns the previously saved collection, or an empty one.
	Load() ([]models.Identity, error)
	// Save replaces the saved collection wholesale.
	Save(ids []models.Identity) error
}

// Draft holds the fields of an identity about to be created.
type Draft struct {
	Name              string
	Secret            string
	Note              string
	HiddenDescription string
	Tags              []string
}

// Store holds the identity collection. All mutations go through Store
// so the single-writer discipline and the write-through persist are
// enforced in one place.
type Store struct {
	mu         sync.Mutex
	persister  Persister
	log        *zap.Logger
	identities []models.Identity
}

// New constructs a Store backed by p, loading the saved collection.
func New(p Persister, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ids, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	return &Store{persister: p, log: log, identities: ids}, nil
}

// persist mirrors the current collection to the persistence backend.
// Persistence is fire-and-forget: a failed save is logged but never
// fails the mutation that triggered it.
func (s *Store) persist() {
	snapshot := models.CloneAll(s.identities)
	if err := s.persister.Save(snapshot); err != nil {
		s.log.Warn("failed to persist identities", zap.Error(err))
	}
}

// Add validates draft and appends a new identity with a fresh id and a
// fully empty vault. Returns the created identity, or a validation
// error wrapping ErrRejectedInput with the collection unchanged.
func (s *Store) Add(draft Draft) (models.Identity, error) {
	if draft.Name == "" {
		return models.Identity{}, ErrEmptyName
	}
	secret := models.NormalizeSecret(draft.Secret)
	if secret == "" {
		return models.Identity{}, ErrEmptySecret
	}
	if !models.ValidSecret(secret) {
		return models.Identity{}, ErrInvalidSecret
	}

	id := models.Identity{
		ID:                uuid.NewString(),
		Name:              draft.Name,
		Secret:            secret,
		Vault:             models.NewVault(),
		Note:              draft.Note,
		HiddenDescription: draft.HiddenDescription,
		Tags:              append([]string(nil), draft.Tags...),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities = append(s.identities, id)
	s.persist()
	s.log.Info("identity added", zap.String("id", id.ID), zap.String("name", id.Name))
	return id.Clone(), nil
}

// Remove deletes the identity with the given id. Removing an absent id
// is a no-op, not an error.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ident := range s.identities {
		if ident.ID == id {
			s.identities = append(s.identities[:i], s.identities[i+1:]...)
			s.persist()
			s.log.Info("identity removed", zap.String("id", id))
			return
		}
	}
}

// Update applies mutate to the identity with the given id and persists
// the collection. Returns the mutated identity, or ErrNotFound.
func (s *Store) Update(id string, mutate func(*models.Identity)) (models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.identities {
		if s.identities[i].ID == id {
			mutate(&s.identities[i])
			s.persist()
			return s.identities[i].Clone(), nil
		}
	}
	return models.Identity{}, ErrNotFound
}

// ReplaceAll substitutes the whole collection, as done by import. The
// caller is responsible for having sanitized the records.
func (s *Store) ReplaceAll(ids []models.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities = models.CloneAll(ids)
	s.persist()
	s.log.Info("collection replaced", zap.Int("count", len(ids)))
}

// Identities returns a deep-copied snapshot of the collection in
// insertion order.
func (s *Store) Identities() []models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneAll(s.identities)
}

// Get returns a copy of the identity with the given id.
func (s *Store) Get(id string) (models.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ident := range s.identities {
		if ident.ID == id {
			return ident.Clone(), true
		}
	}
	return models.Identity{}, false
}

// Len returns the number of identities in the collection.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.identities)
}
