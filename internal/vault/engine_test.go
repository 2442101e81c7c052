package vault

import (
	"reflect"
	"testing"
	"time"

	"github.com/nexuskeeper/nexus/internal/models"
	"github.com/nexuskeeper/nexus/internal/store"
)

type memPersister struct{}

func (memPersister) Load() ([]models.Identity, error) { return nil, nil }
func (memPersister) Save([]models.Identity) error     { return nil }

func newFixture(t *testing.T) (*store.Store, *Engine, models.Identity) {
	t.Helper()
	st, err := store.New(memPersister{}, nil)
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	ident, err := st.Add(store.Draft{Name: "acct", Secret: "AAAA"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	e := NewEngine(st, nil)
	e.Select(ident.ID)
	return st, e, ident
}

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"code1 code2 code3", []string{"code1", "code2", "code3"}},
		{"a,b,,c", []string{"a", "b", "c"}},
		{"a\nb\r\nc", []string{"a", "b", "c"}},
		{"  a \t b ,\n c  ", []string{"a", "b", "c"}},
		{"", nil},
		{" , \n ", nil},
	}
	for _, c := range cases {
		got := Tokenize(c.in)
		if len(got) == 0 && len(c.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("Tokenize(%q) = %v; want %v", c.in, got, c.want)
		}
	}
}

func TestClick_Transitions(t *testing.T) {
	_, e, _ := newFixture(t)

	if got := e.State(0); got != IdleEmpty {
		t.Fatalf("initial state = %v; want idle-empty", got)
	}
	if got := e.Click(0); got != Editing {
		t.Fatalf("click on empty = %v; want editing", got)
	}
	if err := e.Commit(0, "code-0"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if got := e.State(0); got != IdleMasked {
		t.Fatalf("state after commit = %v; want idle-masked", got)
	}
	if got := e.Click(0); got != IdleRevealed {
		t.Fatalf("click on masked = %v; want idle-revealed", got)
	}
	if got := e.Click(0); got != IdleMasked {
		t.Fatalf("click on revealed = %v; want idle-masked", got)
	}
}

func TestClick_SingleRevealInvariant(t *testing.T) {
	_, e, _ := newFixture(t)
	e.Commit(0, "a")
	e.Commit(1, "b")

	e.Click(0)
	if e.State(0) != IdleRevealed {
		t.Fatal("slot 0 not revealed")
	}
	e.Click(1)
	if e.State(1) != IdleRevealed {
		t.Fatal("slot 1 not revealed")
	}
	if e.State(0) != IdleMasked {
		t.Error("revealing slot 1 did not collapse slot 0")
	}
}

func TestClick_NoSelection(t *testing.T) {
	st, _, _ := newFixture(t)
	e := NewEngine(st, nil)
	if got := e.Click(0); got != IdleEmpty {
		t.Errorf("click without selection = %v; want idle-empty no-op", got)
	}
}

func TestCommit_TrimAndCollapse(t *testing.T) {
	st, e, ident := newFixture(t)

	if err := e.Commit(2, "  spaced code  "); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	got, _ := st.Get(ident.ID)
	if got.Vault[2] != "spaced code" {
		t.Errorf("slot 2 = %q; want trimmed code", got.Vault[2])
	}

	// Clearing a filled slot collapses it to the sentinel, not "".
	if err := e.Commit(2, "   "); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	got, _ = st.Get(ident.ID)
	if got.Vault[2] != models.EmptySlot {
		t.Errorf("cleared slot = %q; want sentinel", got.Vault[2])
	}
	if e.State(2) != IdleEmpty {
		t.Errorf("state after clearing = %v; want idle-empty", e.State(2))
	}
}

func TestPaste_DistributesAndDropsOverflow(t *testing.T) {
	st, e, ident := newFixture(t)
	e.revertAfter = 25 * time.Millisecond

	n, err := e.Paste(8, "code1 code2 code3")
	if err != nil {
		t.Fatalf("Paste failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("written = %d; want 2", n)
	}

	got, _ := st.Get(ident.ID)
	if got.Vault[8] != "code1" || got.Vault[9] != "code2" {
		t.Errorf("slots 8,9 = %q,%q; want code1,code2", got.Vault[8], got.Vault[9])
	}
	if len(got.Vault) != models.VaultSize {
		t.Fatalf("vault grew to %d slots", len(got.Vault))
	}

	if e.State(8) != JustPasted || e.State(9) != JustPasted {
		t.Errorf("states = %v,%v; want just-pasted", e.State(8), e.State(9))
	}

	// Both marks revert to masked once the window elapses.
	deadline := time.After(time.Second)
	for e.State(8) == JustPasted || e.State(9) == JustPasted {
		select {
		case <-deadline:
			t.Fatal("just-pasted state never reverted")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if e.State(8) != IdleMasked || e.State(9) != IdleMasked {
		t.Errorf("states after revert = %v,%v; want idle-masked", e.State(8), e.State(9))
	}
}

func TestPaste_OverwritesExisting(t *testing.T) {
	st, e, ident := newFixture(t)
	e.Commit(1, "old")

	if _, err := e.Paste(0, "new0,new1"); err != nil {
		t.Fatalf("Paste failed: %v", err)
	}
	got, _ := st.Get(ident.ID)
	if got.Vault[0] != "new0" || got.Vault[1] != "new1" {
		t.Errorf("paste did not overwrite: %v", got.Vault[:2])
	}
}

func TestPaste_NoTokens(t *testing.T) {
	st, e, ident := newFixture(t)
	e.Click(3)

	n, err := e.Paste(3, " , \n ")
	if err != nil {
		t.Fatalf("Paste failed: %v", err)
	}
	if n != 0 {
		t.Errorf("written = %d; want 0", n)
	}
	// No effective change: the slot stays in editing until the blur
	// commit fires.
	if e.State(3) != Editing {
		t.Errorf("state = %v; want editing", e.State(3))
	}
	got, _ := st.Get(ident.ID)
	if got.Vault[3] != models.EmptySlot {
		t.Errorf("slot mutated by empty paste: %q", got.Vault[3])
	}
}

func TestSelect_ResetsTransientState(t *testing.T) {
	st, e, _ := newFixture(t)
	other, _ := st.Add(store.Draft{Name: "other", Secret: "BBBB"})

	e.revertAfter = time.Hour // timer must not fire on its own
	e.Commit(0, "a")
	e.Click(0) // revealed
	e.Click(1) // editing empty slot
	if _, err := e.Paste(5, "x y"); err != nil {
		t.Fatalf("Paste failed: %v", err)
	}

	e.Select(other.ID)
	for i := 0; i < models.VaultSize; i++ {
		if s := e.State(i); s == Editing || s == IdleRevealed || s == JustPasted {
			t.Errorf("slot %d kept transient state %v across selection change", i, s)
		}
	}
}

func TestSelect_CancelsStaleTimers(t *testing.T) {
	st, e, ident := newFixture(t)
	other, _ := st.Add(store.Draft{Name: "other", Secret: "BBBB"})

	e.revertAfter = 10 * time.Millisecond
	if _, err := e.Paste(0, "x"); err != nil {
		t.Fatalf("Paste failed: %v", err)
	}
	e.Select(other.ID)
	e.Select(ident.ID)

	e.revertAfter = time.Hour
	if _, err := e.Paste(0, "y"); err != nil {
		t.Fatalf("Paste failed: %v", err)
	}

	// Wait past the first paste's window: its stale timer must not
	// clear the second paste's mark.
	time.Sleep(30 * time.Millisecond)
	if e.State(0) != JustPasted {
		t.Errorf("stale timer cleared fresh just-pasted mark: %v", e.State(0))
	}
}

func TestPaste_OutOfRangeStart(t *testing.T) {
	_, e, _ := newFixture(t)
	if n, err := e.Paste(models.VaultSize, "a b"); err != nil || n != 0 {
		t.Errorf("Paste out of range = (%d, %v); want (0, nil)", n, err)
	}
}
