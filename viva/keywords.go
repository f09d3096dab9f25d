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

// Keywords is the reserved-word list spec.md §6 names. Function names and
// let/identifier bindings may not shadow any of these.
var Keywords = map[string]bool{
	"let": true, "if": true, "loop": true, "break": true, "set!": true,
	"block": true, "add1": true, "sub1": true, "isnum": true, "isbool": true,
	"print": true, "define": true, "fun": true,
	"+": true, "-": true, "*": true, "=": true,
	">": true, ">=": true, "<": true, "<=": true,
	"true": true, "false": true,
}

func IsKeyword(s string) bool { return Keywords[s] }
