// Package scheduler drives the one-second tick that recomputes the
// countdown and regenerates the current code for every identity. Codes
// for a tick are generated concurrently and applied as one atomic
// batch, so readers never observe a mix of stale and fresh codes from
// the same tick.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexuskeeper/nexus/internal/models"
	"github.com/nexuskeeper/nexus/internal/store"
)

// Generator is the external code-generation collaborator.
type Generator interface {
	// Generate returns the current code for a base32 secret.
	Generate(secret string) (string, error)
	// Remaining returns the seconds left in the current code window.
	Remaining() int
}

// Batch is one tick's worth of generated codes, applied as a unit.
type Batch struct {
	// Codes maps identity id to its current code. Identities whose
	// generation failed are absent.
	Codes map[string]string `json:"codes"`
	// Remaining is the countdown to the next code window in seconds.
	Remaining int `json:"remaining"`
}

// Ticker regenerates codes for the whole collection once per interval.
type Ticker struct {
	store    *store.Store
	gen      Generator
	log      *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	current Batch
	seq     uint64
	applied uint64
}

// NewTicker constructs a Ticker over st using gen, ticking once per
// second.
func NewTicker(st *store.Store, gen Generator, log *zap.Logger) *Ticker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ticker{
		store:    st,
		gen:      gen,
		log:      log,
		interval: time.Second,
		current:  Batch{Codes: map[string]string{}},
	}
}

// Start launches the tick loop in a goroutine. It refreshes once
// immediately, then once per interval until ctx is canceled.
func (t *Ticker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	go func() {
		defer ticker.Stop()
		t.Refresh()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Refresh()
			}
		}
	}()
}

// Refresh generates codes for every identity concurrently and swaps
// the finished batch in atomically. In-flight generation is never
// canceled; a superseding tick simply overwrites the prior result.
func (t *Ticker) Refresh() {
	t.mu.Lock()
	t.seq++
	seq := t.seq
	t.mu.Unlock()

	ids := t.store.Identities()
	codes := make(map[string]string, len(ids))

	var wg sync.WaitGroup
	var codesMu sync.Mutex
	for _, ident := range ids {
		wg.Add(1)
		go func(ident models.Identity) {
			defer wg.Done()
			code, err := t.gen.Generate(ident.Secret)
			if err != nil {
				t.log.Debug("code generation failed",
					zap.String("id", ident.ID), zap.Error(err))
				return
			}
			codesMu.Lock()
			codes[ident.ID] = code
			codesMu.Unlock()
		}(ident)
	}
	wg.Wait()

	batch := Batch{Codes: codes, Remaining: t.gen.Remaining()}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Only a batch newer than the one already applied may land; a slow
	// earlier tick must not clobber a later one.
	if seq < t.applied {
		return
	}
	t.applied = seq
	t.current = batch
}

// Current returns a copy of the most recently applied batch.
func (t *Ticker) Current() Batch {
	t.mu.Lock()
	defer t.mu.Unlock()
	codes := make(map[string]string, len(t.current.Codes))
	for k, v := range t.current.Codes {
		codes[k] = v
	}
	return Batch{Codes: codes, Remaining: t.current.Remaining}
}
