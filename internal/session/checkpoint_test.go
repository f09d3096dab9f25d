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
package session_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/launix-de/viva/internal/session"
	"github.com/launix-de/viva/parse"
	"github.com/launix-de/viva/viva"
)

func checkpointRoundTrip(t *testing.T, path string) {
	mgr := session.NewManager()
	ctx := context.Background()

	src, err := mgr.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer mgr.Close(src)

	defineForm, err := parse.ParseReplForm("(define x 41)")
	if err != nil {
		t.Fatalf("ParseReplForm: %v", err)
	}
	if err := mgr.With(ctx, src, func(s *viva.Session) error {
		_, ferr := s.Feed(defineForm)
		return ferr
	}); err != nil {
		t.Fatalf("With(define): %v", err)
	}

	funDefs, err := parse.ParseProgram("(fun (double n) (+ n n)) 0")
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	if err := mgr.With(ctx, src, func(s *viva.Session) error {
		return s.LoadDefinitions(funDefs.Defs)
	}); err != nil {
		t.Fatalf("With(fun): %v", err)
	}

	if err := mgr.Checkpoint(ctx, src, path); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	dst, err := mgr.Open()
	if err != nil {
		t.Fatalf("Open (dst): %v", err)
	}
	defer mgr.Close(dst)

	funcNames, err := mgr.Restore(ctx, dst, path)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(funcNames) != 1 || funcNames[0] != "double" {
		t.Fatalf("Restore funcNames = %v, want [double]", funcNames)
	}

	readForm, err := parse.ParseReplForm("x")
	if err != nil {
		t.Fatalf("ParseReplForm: %v", err)
	}
	var got string
	if err := mgr.With(ctx, dst, func(s *viva.Session) error {
		var ferr error
		got, ferr = s.Feed(readForm)
		return ferr
	}); err != nil {
		t.Fatalf("With(read x on restored session): %v", err)
	}
	if got != "41" {
		t.Fatalf("got %q, want %q", got, "41")
	}
}

func TestCheckpointRoundTripLZ4(t *testing.T) {
	checkpointRoundTrip(t, filepath.Join(t.TempDir(), "state.lz4"))
}

func TestCheckpointRoundTripXZ(t *testing.T) {
	checkpointRoundTrip(t, filepath.Join(t.TempDir(), "state.xz"))
}
