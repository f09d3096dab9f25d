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

import "testing"

func TestNumberRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 42, -42, 4611686018427387903, -4611686018427387904} {
		v := NewNumber(n)
		if !v.IsNumber() {
			t.Fatalf("NewNumber(%d) is not tagged as a number: %d", n, v)
		}
		if v.Int() != n {
			t.Fatalf("NewNumber(%d).Int() = %d", n, v.Int())
		}
	}
}

func TestBooleanTagging(t *testing.T) {
	if NewBoolean(true) != ValueTrue {
		t.Fatalf("NewBoolean(true) = %d, want %d", NewBoolean(true), ValueTrue)
	}
	if NewBoolean(false) != ValueFalse {
		t.Fatalf("NewBoolean(false) = %d, want %d", NewBoolean(false), ValueFalse)
	}
	if !NewBoolean(true).IsBoolean() || NewBoolean(true).IsNumber() {
		t.Fatalf("true must be tagged boolean, not number")
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{ValueTrue, "true"},
		{ValueFalse, "false"},
		{NewNumber(55), "55"},
		{NewNumber(-3), "-3"},
	}
	for _, c := range cases {
		if got := c.v.Format(); got != c.want {
			t.Errorf("Value(%d).Format() = %q, want %q", c.v, got, c.want)
		}
	}
}
