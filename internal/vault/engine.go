// Package vault implements the per-slot interaction state machine for
// an identity's recovery-code vault: idle/editing/revealed/just-pasted
// states, trim-and-commit semantics, and the clipboard bulk-fill that
// distributes pasted tokens across consecutive slots.
//
// The engine is keyed by (selected identity, slot index) and is fully
// independent of any display layer.
package vault

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexuskeeper/nexus/internal/models"
	"github.com/nexuskeeper/nexus/internal/store"
)

// State is the interaction state of one vault slot.
type State int

const (
	// IdleEmpty is a slot holding no code.
	IdleEmpty State = iota
	// IdleMasked is a filled slot whose code is hidden.
	IdleMasked
	// IdleRevealed is a filled slot whose code is shown. At most one
	// slot is revealed at a time.
	IdleRevealed
	// Editing is a slot with an open text entry.
	Editing
	// JustPasted is a freshly bulk-filled slot; it reverts to
	// IdleMasked after RevertAfter.
	JustPasted
)

// String returns a short name for the state, for logs and tests.
func (s State) String() string {
	switch s {
	case IdleEmpty:
		return "idle-empty"
	case IdleMasked:
		return "idle-masked"
	case IdleRevealed:
		return "idle-revealed"
	case Editing:
		return "editing"
	case JustPasted:
		return "just-pasted"
	}
	return "unknown"
}

// RevertAfter is how long a slot stays in JustPasted before collapsing
// back to IdleMasked.
const RevertAfter = 1500 * time.Millisecond

// Engine drives the slot state machine for the currently selected
// identity and writes committed vault changes through the store.
type Engine struct {
	mu          sync.Mutex
	store       *store.Store
	log         *zap.Logger
	revertAfter time.Duration

	selected string
	editing  int
	revealed int
	pasted   map[int]*time.Timer

	// gen guards against a stale revert timer resurrecting transient
	// state after the selection has changed.
	gen int
}

// NewEngine returns an engine with no identity selected.
func NewEngine(st *store.Store, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:       st,
		log:         log,
		revertAfter: RevertAfter,
		editing:     -1,
		revealed:    -1,
		pasted:      make(map[int]*time.Timer),
	}
}

// Select switches the engine to the identity with the given id (or to
// none, with ""). Any editing, revealed, or just-pasted state from the
// previous selection is discarded and pending revert timers are
// canceled.
func (e *Engine) Select(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = id
	e.resetTransientLocked()
}

// Selected returns the id of the selected identity, or "".
func (e *Engine) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

func (e *Engine) resetTransientLocked() {
	e.editing = -1
	e.revealed = -1
	for _, t := range e.pasted {
		t.Stop()
	}
	e.pasted = make(map[int]*time.Timer)
	e.gen++
}

// State returns the current state of slot i for the selected identity.
func (e *Engine) State(i int) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked(i)
}

func (e *Engine) stateLocked(i int) State {
	if e.editing == i {
		return Editing
	}
	if _, ok := e.pasted[i]; ok {
		return JustPasted
	}
	filled := false
	if ident, ok := e.store.Get(e.selected); ok && i >= 0 && i < len(ident.Vault) {
		filled = ident.Vault[i] != models.EmptySlot
	}
	if !filled {
		return IdleEmpty
	}
	if e.revealed == i {
		return IdleRevealed
	}
	return IdleMasked
}

// Click handles a pointer activation of slot i and returns the slot's
// resulting state. An empty slot opens for editing; a filled slot
// toggles between masked and revealed, collapsing any other open
// reveal. Clicks are no-ops while no identity is selected.
func (e *Engine) Click(i int) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == "" || i < 0 || i >= models.VaultSize {
		return e.stateLocked(i)
	}
	switch e.stateLocked(i) {
	case IdleEmpty:
		e.editing = i
		e.revealed = -1
	case IdleMasked:
		e.revealed = i
	case IdleRevealed:
		e.revealed = -1
	case JustPasted:
		if t, ok := e.pasted[i]; ok {
			t.Stop()
			delete(e.pasted, i)
		}
		e.revealed = i
	}
	return e.stateLocked(i)
}

// Commit closes the text entry for slot i with input text. The input is
// trimmed; a trimmed-to-empty entry collapses the slot back to the
// empty sentinel rather than storing an empty string. The owning
// identity's vault is persisted through the store.
func (e *Engine) Commit(i int, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == "" || i < 0 || i >= models.VaultSize {
		return nil
	}
	err := Commit(e.store, e.selected, i, text)
	if e.editing == i {
		e.editing = -1
	}
	return err
}

// Mutator is the single store operation the slot-write helpers need.
type Mutator interface {
	Update(id string, mutate func(*models.Identity)) (models.Identity, error)
}

// Commit writes one slot of the identity's vault through st, applying
// the trim-and-collapse rule: a trimmed-to-empty entry becomes the
// empty sentinel, never a stored empty string.
func Commit(st Mutator, id string, i int, text string) error {
	if i < 0 || i >= models.VaultSize {
		return nil
	}
	trimmed := strings.TrimSpace(text)
	_, err := st.Update(id, func(ident *models.Identity) {
		if trimmed == "" {
			ident.Vault[i] = models.EmptySlot
		} else {
			ident.Vault[i] = trimmed
		}
	})
	return err
}

// Paste distributes the clipboard tokens across the identity's vault
// starting at slot i, overwriting existing content and discarding
// tokens past the last slot. The batch is persisted once. Returns the
// indices written.
func Paste(st Mutator, id string, i int, clipboard string) ([]int, error) {
	if i < 0 || i >= models.VaultSize {
		return nil, nil
	}
	tokens := Tokenize(clipboard)
	if len(tokens) == 0 {
		return nil, nil
	}
	written := make([]int, 0, len(tokens))
	_, err := st.Update(id, func(ident *models.Identity) {
		for k, tok := range tokens {
			slot := i + k
			if slot >= models.VaultSize {
				break
			}
			ident.Vault[slot] = tok
			written = append(written, slot)
		}
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

// Paste bulk-fills the vault starting at slot i from clipboard text.
// The clipboard is split on newlines, commas, spaces, and tabs; empty
// tokens are dropped. Token k lands in slot i+k, overwriting existing
// content; tokens past the last slot are discarded. The whole batch is
// persisted once, and every written slot is marked JustPasted until the
// revert window elapses. Returns the number of slots written.
//
// A paste yielding zero tokens leaves the slot in Editing; the commit
// that follows the eventual blur handles it as "no effective change".
func (e *Engine) Paste(i int, clipboard string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == "" || i < 0 || i >= models.VaultSize {
		return 0, nil
	}
	written, err := Paste(e.store, e.selected, i, clipboard)
	if err != nil {
		return 0, err
	}
	if len(written) == 0 {
		return 0, nil
	}

	if e.editing == i {
		e.editing = -1
	}
	e.markPastedLocked(written)
	e.log.Debug("pasted recovery codes",
		zap.String("id", e.selected),
		zap.Int("start", i),
		zap.Int("written", len(written)))
	return len(written), nil
}

func (e *Engine) markPastedLocked(indices []int) {
	gen := e.gen
	for _, idx := range indices {
		if t, ok := e.pasted[idx]; ok {
			t.Stop()
		}
		idx := idx
		e.pasted[idx] = time.AfterFunc(e.revertAfter, func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.gen != gen {
				return
			}
			delete(e.pasted, idx)
		})
	}
}

// Tokenize splits clipboard text on the delimiter class newline,
// carriage return, comma, space, and tab, trimming each token and
// dropping empty ones.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := strings.TrimSpace(f); t != "" {
			out = append(out, t)
		}
	}
	return out
}
