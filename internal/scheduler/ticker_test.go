package scheduler_test

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/nexuskeeper/nexus/internal/models"
	"github.com/nexuskeeper/nexus/internal/scheduler"
	"github.com/nexuskeeper/nexus/internal/store"
)

type memPersister struct{}

func (memPersister) Load() ([]models.Identity, error) { return nil, nil }
func (memPersister) Save([]models.Identity) error     { return nil }

// fakeGenerator derives a deterministic code from the secret and
// counts how many generations ran.
type fakeGenerator struct {
	calls     atomic.Int64
	remaining int
	failFor   string
}

func (g *fakeGenerator) Generate(secret string) (string, error) {
	g.calls.Add(1)
	if secret == g.failFor {
		return "", fmt.Errorf("bad secret %q", secret)
	}
	return "code-" + secret, nil
}

func (g *fakeGenerator) Remaining() int { return g.remaining }

func newStore(t *testing.T, names ...string) *store.Store {
	t.Helper()
	st, err := store.New(memPersister{}, nil)
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	for i, n := range names {
		secret := fmt.Sprintf("SECRET%d", i+2) // 2-7 keep it valid base32
		if _, err := st.Add(store.Draft{Name: n, Secret: secret}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	return st
}

func TestRefresh_GeneratesWholeBatch(t *testing.T) {
	st := newStore(t, "a", "b", "c")
	gen := &fakeGenerator{remaining: 17}
	ticker := scheduler.NewTicker(st, gen, nil)

	ticker.Refresh()

	batch := ticker.Current()
	if batch.Remaining != 17 {
		t.Errorf("remaining = %d; want 17", batch.Remaining)
	}
	ids := st.Identities()
	if len(batch.Codes) != len(ids) {
		t.Fatalf("batch has %d codes; want %d", len(batch.Codes), len(ids))
	}
	for _, ident := range ids {
		if batch.Codes[ident.ID] != "code-"+ident.Secret {
			t.Errorf("code for %s = %q", ident.Name, batch.Codes[ident.ID])
		}
	}
	if got := gen.calls.Load(); got != int64(len(ids)) {
		t.Errorf("generator ran %d times; want %d", got, len(ids))
	}
}

func TestRefresh_FailedGenerationOmitted(t *testing.T) {
	st := newStore(t, "ok", "broken")
	ids := st.Identities()
	gen := &fakeGenerator{failFor: ids[1].Secret}
	ticker := scheduler.NewTicker(st, gen, nil)

	ticker.Refresh()

	batch := ticker.Current()
	if _, ok := batch.Codes[ids[0].ID]; !ok {
		t.Error("healthy identity missing from batch")
	}
	if _, ok := batch.Codes[ids[1].ID]; ok {
		t.Error("failed identity present in batch")
	}
}

func TestRefresh_SupersedesPriorBatch(t *testing.T) {
	st := newStore(t, "a")
	gen := &fakeGenerator{remaining: 30}
	ticker := scheduler.NewTicker(st, gen, nil)

	ticker.Refresh()
	gen.remaining = 5
	ticker.Refresh()

	if got := ticker.Current().Remaining; got != 5 {
		t.Errorf("remaining = %d; want latest batch", got)
	}
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	st := newStore(t, "a")
	ticker := scheduler.NewTicker(st, &fakeGenerator{}, nil)
	ticker.Refresh()

	batch := ticker.Current()
	for k := range batch.Codes {
		batch.Codes[k] = "tampered"
	}
	fresh := ticker.Current()
	for _, code := range fresh.Codes {
		if code == "tampered" {
			t.Error("Current exposes internal batch map")
		}
	}
}

func TestCurrent_EmptyBeforeFirstTick(t *testing.T) {
	st := newStore(t)
	ticker := scheduler.NewTicker(st, &fakeGenerator{}, nil)
	if batch := ticker.Current(); len(batch.Codes) != 0 {
		t.Errorf("unexpected codes before first tick: %v", batch.Codes)
	}
}
