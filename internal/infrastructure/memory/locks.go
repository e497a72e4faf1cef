package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// lockTable candados exclusivos por nombre ("stock:b/p", "sale:id", ...).
// Cada entrada es un semáforo de peso 1 y se borra cuando nadie la usa.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
	timeout time.Duration
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newLockTable(timeout time.Duration) *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry), timeout: timeout}
}

// acquire espera como mucho timeout; al vencer devuelve domain.ErrBusy.
func (t *lockTable) acquire(ctx context.Context, name string) error {
	t.mu.Lock()
	e, ok := t.entries[name]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		t.entries[name] = e
	}
	e.refs++
	t.mu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if err := e.sem.Acquire(wctx, 1); err != nil {
		t.unref(name, e)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: bloqueo %s", domain.ErrBusy, name)
		}
		return err
	}
	return nil
}

func (t *lockTable) release(name string) {
	t.mu.Lock()
	e, ok := t.entries[name]
	t.mu.Unlock()
	if !ok {
		return
	}
	e.sem.Release(1)
	t.unref(name, e)
}

func (t *lockTable) unref(name string, e *lockEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.refs--
	if e.refs == 0 && t.entries[name] == e {
		delete(t.entries, name)
	}
}

// size entradas vivas (tests).
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
