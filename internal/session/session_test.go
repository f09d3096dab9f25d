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

// session_test.go exercises the registry: a turn run through With, two open
// sessions never seeing each other's define_env, List returning every open
// session, and Close/With rejecting an id that is no longer registered.
package session_test

import (
	"context"
	"testing"

	"github.com/launix-de/viva/internal/session"
	"github.com/launix-de/viva/parse"
	"github.com/launix-de/viva/viva"
)

func TestManagerOpenWithClose(t *testing.T) {
	mgr := session.NewManager()
	id, err := mgr.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer mgr.Close(id)

	form, err := parse.ParseReplForm("(+ 1 2)")
	if err != nil {
		t.Fatalf("ParseReplForm: %v", err)
	}
	var got string
	err = mgr.With(context.Background(), id, func(s *viva.Session) error {
		var ferr error
		got, ferr = s.Feed(form)
		return ferr
	})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	if got != "3" {
		t.Fatalf("got %q, want %q", got, "3")
	}
}

func TestManagerSessionsAreIsolated(t *testing.T) {
	mgr := session.NewManager()
	id1, err := mgr.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer mgr.Close(id1)
	id2, err := mgr.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer mgr.Close(id2)

	defineForm, err := parse.ParseReplForm("(define x 99)")
	if err != nil {
		t.Fatalf("ParseReplForm: %v", err)
	}
	if err := mgr.With(context.Background(), id1, func(s *viva.Session) error {
		_, ferr := s.Feed(defineForm)
		return ferr
	}); err != nil {
		t.Fatalf("With(id1): %v", err)
	}

	readForm, err := parse.ParseReplForm("x")
	if err != nil {
		t.Fatalf("ParseReplForm: %v", err)
	}
	err = mgr.With(context.Background(), id2, func(s *viva.Session) error {
		_, ferr := s.Feed(readForm)
		return ferr
	})
	if err == nil {
		t.Fatalf("expected id2 to not see id1's define")
	}
}

func TestManagerListReturnsEveryOpenSession(t *testing.T) {
	mgr := session.NewManager()
	id1, err := mgr.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer mgr.Close(id1)
	id2, err := mgr.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer mgr.Close(id2)

	ids := mgr.List()
	if len(ids) != 2 {
		t.Fatalf("got %d sessions, want 2", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id.String()] = true
	}
	if !seen[id1.String()] || !seen[id2.String()] {
		t.Fatalf("List() = %v, want both %s and %s", ids, id1, id2)
	}
}

func TestManagerCloseUnknownSessionErrors(t *testing.T) {
	mgr := session.NewManager()
	id, err := mgr.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := mgr.Close(id); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := mgr.Close(id); err == nil {
		t.Fatalf("expected closing an already-closed session to error")
	}
}

func TestManagerWithUnknownSessionErrors(t *testing.T) {
	mgr := session.NewManager()
	id, err := mgr.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mgr.Close(id)
	err = mgr.With(context.Background(), id, func(*viva.Session) error { return nil })
	if err == nil {
		t.Fatalf("expected With on a closed session id to error")
	}
}
