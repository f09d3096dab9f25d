/*
Copyright (C) 2023  Carl-Philip Hänsch

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

// Package viva implements the tagged-value JIT compiler backend: value
// encoding, an x86-64-shaped IL, an assembler binding with dynamic labels,
// the expression and function code generators, the incremental JIT driver
// and the snek_print/snek_error runtime hooks.

import "fmt"

// Value is a 64-bit tagged word. Bit 0 is the tag: 0 = number, 1 = boolean.
// Numbers carry the signed integer shifted left by one; booleans use exactly
// the two bit patterns 1 (false) and 3 (true). The encoding is invariant
// across every boundary: JIT return values, define cells, runtime-hook
// arguments and stack slots.
type Value int64

const (
	ValueFalse Value = 1
	ValueTrue  Value = 3
)

// NewNumber tags a signed integer as a number value. n must fit in 63 bits
// signed; callers compiling a literal are responsible for checking that at
// parse time.
func NewNumber(n int64) Value {
	return Value(n << 1)
}

// NewBoolean tags a boolean.
func NewBoolean(b bool) Value {
	if b {
		return ValueTrue
	}
	return ValueFalse
}

// IsNumber reports whether v carries the number tag (bit 0 clear).
func (v Value) IsNumber() bool {
	return v&1 == 0
}

// IsBoolean reports whether v carries the boolean tag (bit 0 set).
func (v Value) IsBoolean() bool {
	return v&1 == 1
}

// Int returns the untagged signed integer. Only meaningful when IsNumber.
func (v Value) Int() int64 {
	return int64(v) >> 1
}

// Bool returns the untagged boolean. Only meaningful when IsBoolean.
func (v Value) Bool() bool {
	return v == ValueTrue
}

// Format renders v the way snek_print/the REPL result line would: "true",
// "false", the untagged integer, or a diagnostic for an unrecognized
// bit pattern (which should never occur for values that round-tripped
// through this package's own encoders).
func (v Value) Format() string {
	switch v {
	case ValueTrue:
		return "true"
	case ValueFalse:
		return "false"
	default:
		if v.IsNumber() {
			return fmt.Sprintf("%d", v.Int())
		}
		return fmt.Sprintf("Unknown value: %d", int64(v))
	}
}

func (v Value) String() string {
	return v.Format()
}
