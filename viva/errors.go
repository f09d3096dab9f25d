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
package viva

import "fmt"

// Kind classifies a diagnostic so a host (CLI, future HTTP wrapper) can
// decide whether a session survives the turn. Parse and static errors leave
// session state untouched; runtime errors are reported by snek_error from
// inside JIT code and are fatal to the process, never returned as a Go
// error (there is no recoverable path across that boundary, see spec.md §7).
type Kind int

const (
	ParseError Kind = iota
	StaticError
	// RuntimeError classifies the overflow/invalid-argument diagnostics
	// snek_error reports from inside JIT code (spec.md §8). Those errors
	// cross the JIT/Go boundary as a process exit, never as a Go error
	// value, so no *CompileError is ever constructed with this Kind today;
	// it exists so a future caller able to observe that exit (e.g. a
	// subprocess-isolated session host) can classify it without
	// string-matching, per SPEC_FULL.md §4.7.
	RuntimeError
)

// CompileError is a compile-time failure: the text is exactly the
// diagnostic spec.md §4.7 specifies, so the REPL can print it unmodified.
type CompileError struct {
	Kind Kind
	Msg  string
}

func (e *CompileError) Error() string { return e.Msg }

func newStaticError(format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: StaticError, Msg: fmt.Sprintf(format, args...)}
}

func newParseError(format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: ParseError, Msg: "Invalid: parse error" + fmt.Sprintf(format, args...)}
}
