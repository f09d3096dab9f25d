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

// session_test.go exercises the REPL end-to-end scenarios of spec.md §8,
// feeding each line through the external parser the same way cmd/viva does.
package viva_test

import (
	"strings"
	"testing"

	"github.com/launix-de/viva/parse"
	"github.com/launix-de/viva/viva"
)

// feedLine parses and feeds one REPL line, returning the text a REPL would
// show for it ("" when the form has no direct return-value text, matching
// spec.md §8's empty-string convention for Define/Fun turns) or an error.
func feedLine(t *testing.T, s *viva.Session, line string) (string, error) {
	t.Helper()
	form, err := parse.ParseReplForm(line)
	if err != nil {
		return "", err
	}
	return s.Feed(form)
}

func newSession(t *testing.T) *viva.Session {
	t.Helper()
	s, err := viva.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReplScenario1Addition(t *testing.T) {
	s := newSession(t)
	got, err := feedLine(t, s, "(+ 1 17)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "18" {
		t.Fatalf("got %q, want %q", got, "18")
	}
}

func TestReplScenario2Let(t *testing.T) {
	s := newSession(t)
	got, err := feedLine(t, s, "(let ((x 1) (y 2)) (+ x y))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "3" {
		t.Fatalf("got %q, want %q", got, "3")
	}
}

func TestReplScenario3DefinePersistsAcrossTurns(t *testing.T) {
	s := newSession(t)
	lines := []string{"(define x 1)", "x", "(+ x 1)"}
	want := []string{"", "1", "2"}
	for i, line := range lines {
		got, err := feedLine(t, s, line)
		if err != nil {
			t.Fatalf("line %d (%q): unexpected error: %v", i, line, err)
		}
		if got != want[i] {
			t.Fatalf("line %d (%q): got %q, want %q", i, line, got, want[i])
		}
	}
}

func TestReplScenario4DefineWithShadowedLet(t *testing.T) {
	s := newSession(t)
	lines := []string{"(define x (let ((x 17) (y 13)) (+ x y)))", "x"}
	want := []string{"", "30"}
	for i, line := range lines {
		got, err := feedLine(t, s, line)
		if err != nil {
			t.Fatalf("line %d: unexpected error: %v", i, err)
		}
		if got != want[i] {
			t.Fatalf("line %d: got %q, want %q", i, got, want[i])
		}
	}
}

func TestReplScenario5TwoDefinesThenSum(t *testing.T) {
	s := newSession(t)
	lines := []string{
		"(define x 98)",
		"(define y (let ((x 100) (y 300)) (+ x y)))",
		"(+ x y)",
	}
	want := []string{"", "", "498"}
	for i, line := range lines {
		got, err := feedLine(t, s, line)
		if err != nil {
			t.Fatalf("line %d: unexpected error: %v", i, err)
		}
		if got != want[i] {
			t.Fatalf("line %d: got %q, want %q", i, got, want[i])
		}
	}
}

func TestReplScenario6ParseErrorDoesNotEndSession(t *testing.T) {
	s := newSession(t)
	_, err := feedLine(t, s, "(hello")
	if err == nil || !strings.HasPrefix(err.Error(), "Invalid: parse error") {
		t.Fatalf("got err %v, want a parse error", err)
	}
	got, err := feedLine(t, s, "(+ 1 2)")
	if err != nil {
		t.Fatalf("session did not survive parse error: %v", err)
	}
	if got != "3" {
		t.Fatalf("got %q, want %q", got, "3")
	}
}

func TestReplScenario7DuplicateBinding(t *testing.T) {
	s := newSession(t)
	if _, err := feedLine(t, s, "(define x 4)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := feedLine(t, s, "(define x 3)")
	if err == nil || err.Error() != "Duplicate binding" {
		t.Fatalf("got err %v, want \"Duplicate binding\"", err)
	}
	got, err := feedLine(t, s, "(+ 1 4)")
	if err != nil {
		t.Fatalf("session did not survive duplicate binding: %v", err)
	}
	if got != "5" {
		t.Fatalf("got %q, want %q", got, "5")
	}
}

func TestReplScenario8UnboundIdentifier(t *testing.T) {
	s := newSession(t)
	_, err := feedLine(t, s, "y")
	if err == nil || err.Error() != "Unbound variable identifier y" {
		t.Fatalf("got err %v, want \"Unbound variable identifier y\"", err)
	}
}

func TestFunSelfRecursion(t *testing.T) {
	s := newSession(t)
	if _, err := feedLine(t, s, "(fun (f n) (if (= n 0) 0 (+ n (f (sub1 n)))))"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := feedLine(t, s, "(f 10)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "55" {
		t.Fatalf("got %q, want %q", got, "55")
	}
}

func TestBreakOutsideLoopIsRejected(t *testing.T) {
	s := newSession(t)
	_, err := feedLine(t, s, "(break 1)")
	if err == nil {
		t.Fatalf("expected break-outside-loop to be rejected")
	}
}

func TestLoopAndSetMutatesDefine(t *testing.T) {
	s := newSession(t)
	if _, err := feedLine(t, s, "(define acc 0)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := feedLine(t, s, "(define i 0)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := feedLine(t, s, "(loop (if (= i 5) (break acc) (block (set! acc (+ acc i)) (set! i (+ i 1)))))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "10" {
		t.Fatalf("got %q, want %q", got, "10")
	}
}
