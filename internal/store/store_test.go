package store_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nexuskeeper/nexus/internal/models"
	"github.com/nexuskeeper/nexus/internal/store"
)

// memPersister records every full-collection save.
type memPersister struct {
	loaded []models.Identity
	loadErr error
	saves  [][]models.Identity
	saveErr error
}

func (m *memPersister) Load() ([]models.Identity, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.loaded, nil
}

func (m *memPersister) Save(ids []models.Identity) error {
	m.saves = append(m.saves, ids)
	return m.saveErr
}

func newStore(t *testing.T, p *memPersister) *store.Store {
	t.Helper()
	s, err := store.New(p, nil)
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	return s
}

func TestNew_LoadError(t *testing.T) {
	_, err := store.New(&memPersister{loadErr: errors.New("disk gone")}, nil)
	if err == nil {
		t.Fatal("expected error from failing load")
	}
}

func TestAdd_Valid(t *testing.T) {
	p := &memPersister{}
	s := newStore(t, p)

	ident, err := s.Add(store.Draft{Name: "GitHub", Secret: "jbsw y3dp ehpk 3pxp", Tags: []string{"FARM"}})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if ident.ID == "" {
		t.Error("expected generated id")
	}
	if ident.Secret != "JBSWY3DPEHPK3PXP" {
		t.Errorf("secret not normalized: %q", ident.Secret)
	}
	if len(ident.Vault) != models.VaultSize {
		t.Errorf("vault length = %d; want %d", len(ident.Vault), models.VaultSize)
	}
	for _, slot := range ident.Vault {
		if slot != models.EmptySlot {
			t.Errorf("new vault slot = %q; want sentinel", slot)
		}
	}
	if len(p.saves) != 1 || len(p.saves[0]) != 1 {
		t.Errorf("expected one save of one identity, got %d saves", len(p.saves))
	}
}

func TestAdd_UniqueIDs(t *testing.T) {
	s := newStore(t, &memPersister{})
	a, _ := s.Add(store.Draft{Name: "a", Secret: "AAAA"})
	b, _ := s.Add(store.Draft{Name: "b", Secret: "AAAA"})
	if a.ID == b.ID {
		t.Errorf("ids collide: %q", a.ID)
	}
}

func TestAdd_Rejected(t *testing.T) {
	cases := []struct {
		name  string
		draft store.Draft
		want  error
	}{
		{"empty name", store.Draft{Secret: "AAAA"}, store.ErrEmptyName},
		{"empty secret", store.Draft{Name: "x"}, store.ErrEmptySecret},
		{"whitespace secret", store.Draft{Name: "x", Secret: "   "}, store.ErrEmptySecret},
		{"bad alphabet", store.Draft{Name: "x", Secret: "abc1"}, store.ErrInvalidSecret},
		{"inner padding", store.Draft{Name: "x", Secret: "AA=AA"}, store.ErrInvalidSecret},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := &memPersister{}
			s := newStore(t, p)
			_, err := s.Add(c.draft)
			if !errors.Is(err, c.want) {
				t.Fatalf("Add error = %v; want %v", err, c.want)
			}
			if !errors.Is(err, store.ErrRejectedInput) {
				t.Errorf("error does not wrap ErrRejectedInput: %v", err)
			}
			if s.Len() != 0 {
				t.Error("collection changed by rejected add")
			}
			if len(p.saves) != 0 {
				t.Error("rejected add persisted")
			}
		})
	}
}

func TestRemove_Idempotent(t *testing.T) {
	p := &memPersister{}
	s := newStore(t, p)
	ident, _ := s.Add(store.Draft{Name: "x", Secret: "AAAA"})

	s.Remove(ident.ID)
	if s.Len() != 0 {
		t.Fatal("identity not removed")
	}
	saves := len(p.saves)

	s.Remove(ident.ID) // absent: no-op
	s.Remove("nonexistent")
	if s.Len() != 0 {
		t.Error("unexpected collection change")
	}
	if len(p.saves) != saves {
		t.Error("no-op remove persisted")
	}
}

func TestUpdate(t *testing.T) {
	p := &memPersister{}
	s := newStore(t, p)
	ident, _ := s.Add(store.Draft{Name: "x", Secret: "AAAA"})

	got, err := s.Update(ident.ID, func(i *models.Identity) {
		i.Note = "hello"
		i.Vault[3] = "code-3"
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Note != "hello" || got.Vault[3] != "code-3" {
		t.Errorf("mutation not applied: %+v", got)
	}
	if len(got.Vault) != models.VaultSize {
		t.Errorf("vault length = %d; want %d", len(got.Vault), models.VaultSize)
	}

	stored, _ := s.Get(ident.ID)
	if stored.Note != "hello" {
		t.Errorf("mutation not stored: %+v", stored)
	}
	// one save for Add, one for Update
	if len(p.saves) != 2 {
		t.Errorf("saves = %d; want 2", len(p.saves))
	}
}

func TestUpdate_NotFound(t *testing.T) {
	p := &memPersister{}
	s := newStore(t, p)
	_, err := s.Update("missing", func(i *models.Identity) { i.Note = "x" })
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Update error = %v; want ErrNotFound", err)
	}
	if len(p.saves) != 0 {
		t.Error("failed update persisted")
	}
}

func TestUpdate_PersistFailureDoesNotFailMutation(t *testing.T) {
	p := &memPersister{saveErr: errors.New("disk full")}
	s := newStore(t, p)
	ident, err := s.Add(store.Draft{Name: "x", Secret: "AAAA"})
	if err != nil {
		t.Fatalf("Add failed despite fire-and-forget persistence: %v", err)
	}
	if _, err := s.Update(ident.ID, func(i *models.Identity) { i.Note = "n" }); err != nil {
		t.Fatalf("Update failed despite fire-and-forget persistence: %v", err)
	}
}

func TestReplaceAll(t *testing.T) {
	p := &memPersister{}
	s := newStore(t, p)
	s.Add(store.Draft{Name: "old", Secret: "AAAA"})

	next := []models.Identity{
		{ID: "n1", Name: "new1", Secret: "AAAA", Vault: models.NewVault()},
		{ID: "n2", Name: "new2", Secret: "BBBB", Vault: models.NewVault()},
	}
	s.ReplaceAll(next)

	got := s.Identities()
	if len(got) != 2 || got[0].ID != "n1" || got[1].ID != "n2" {
		t.Errorf("unexpected collection after replace: %+v", got)
	}
}

func TestIdentities_SnapshotIsolated(t *testing.T) {
	s := newStore(t, &memPersister{})
	s.Add(store.Draft{Name: "x", Secret: "AAAA"})

	snap := s.Identities()
	snap[0].Vault[0] = "tampered"
	snap[0].Name = "tampered"

	fresh := s.Identities()
	if fresh[0].Vault[0] != models.EmptySlot || fresh[0].Name != "x" {
		t.Errorf("snapshot aliases store state: %+v", fresh[0])
	}
}

func TestInsertionOrderPreserved(t *testing.T) {
	s := newStore(t, &memPersister{})
	names := []string{"a", "b", "c", "d"}
	for _, n := range names {
		s.Add(store.Draft{Name: n, Secret: "AAAA"})
	}
	got := s.Identities()
	var order []string
	for _, id := range got {
		order = append(order, id.Name)
	}
	if !reflect.DeepEqual(order, names) {
		t.Errorf("order = %v; want %v", order, names)
	}
}
