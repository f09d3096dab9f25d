/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package session is the multi-session embedding layer SPEC_FULL.md §4.10
// names: a registry keyed by a generated SessionID, one mutual-exclusion
// gate per session (a Session is not itself safe for concurrent turns,
// spec.md §5), and a process-exit hook that frees every session's
// executable memory even if the host never calls Close explicitly.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dc0d/onexit"
	"github.com/google/btree"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/launix-de/viva/internal/metrics"
	"github.com/launix-de/viva/internal/vlog"
	"github.com/launix-de/viva/viva"
)

// entry pairs one registered session with its gate and bookkeeping. It
// implements btree.Item so the registry can hand back sessions ordered by
// creation time (oldest first).
type entry struct {
	id      uuid.UUID
	sess    *viva.Session
	gate    *semaphore.Weighted
	created time.Time
}

func (e *entry) Less(than btree.Item) bool {
	o := than.(*entry)
	if e.created.Equal(o.created) {
		return e.id.String() < o.id.String()
	}
	return e.created.Before(o.created)
}

// Manager owns every live session for one embedding process. The zero value
// is not usable; construct with NewManager.
type Manager struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*entry
	byAge    *btree.BTree
	closed   bool
}

// NewManager builds an empty registry and registers the process-exit
// cleanup hook (mirrors the teacher's own onexit.Register call in
// storage/settings.go, adapted from "disable tracing" to "free JIT memory").
func NewManager() *Manager {
	m := &Manager{
		byID:  make(map[uuid.UUID]*entry),
		byAge: btree.New(32),
	}
	onexit.Register(m.closeAll)
	return m
}

// Open allocates a fresh session and registers it under a new SessionID.
func (m *Manager) Open() (uuid.UUID, error) {
	sess, err := viva.NewSession()
	if err != nil {
		return uuid.UUID{}, err
	}
	id := uuid.New()
	e := &entry{id: id, sess: sess, gate: semaphore.NewWeighted(1), created: nowFunc()}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		sess.Close()
		return uuid.UUID{}, fmt.Errorf("session: manager is shutting down")
	}
	m.byID[id] = e
	m.byAge.ReplaceOrInsert(e)
	metrics.Default.SessionOpened()
	vlog.Infof("session: opened %s", id)
	return id, nil
}

// With runs fn with exclusive access to the named session's state, blocking
// until any in-flight turn on the same session finishes or ctx is
// cancelled. This is the concurrency boundary spec.md §5 requires: a
// Session's internal maps and code buffer are only ever touched by one
// goroutine at a time.
func (m *Manager) With(ctx context.Context, id uuid.UUID, fn func(*viva.Session) error) error {
	m.mu.Lock()
	e, ok := m.byID[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: unknown session %s", id)
	}
	if err := e.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.gate.Release(1)
	return fn(e.sess)
}

// Close evicts one session and frees its executable memory immediately.
func (m *Manager) Close(id uuid.UUID) error {
	m.mu.Lock()
	e, ok := m.byID[id]
	if ok {
		delete(m.byID, id)
		m.byAge.Delete(e)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: unknown session %s", id)
	}
	metrics.Default.SessionClosed()
	return e.sess.Close()
}

// List returns every live SessionID ordered oldest-first.
func (m *Manager) List() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uuid.UUID, 0, m.byAge.Len())
	m.byAge.Ascend(func(it btree.Item) bool {
		out = append(out, it.(*entry).id)
		return true
	})
	return out
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.byAge.Ascend(func(it btree.Item) bool {
		e := it.(*entry)
		if err := e.sess.Close(); err != nil {
			vlog.Warnf("session: close %s on exit: %v", e.id, err)
		}
		return true
	})
}

var nowFunc = time.Now
