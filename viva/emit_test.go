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
package viva_test

import (
	"strings"
	"testing"

	"github.com/launix-de/viva/parse"
	"github.com/launix-de/viva/viva"
)

func TestCompileProgramToILRendersRecursiveSum(t *testing.T) {
	prog, err := parse.ParseProgram("(fun (f n) (if (= n 0) 0 (+ n (f (sub1 n))))) (f 10)")
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	il, err := viva.CompileProgramToIL(prog)
	if err != nil {
		t.Fatalf("CompileProgramToIL: %v", err)
	}
	asm := viva.RenderProgram(il)
	if !strings.Contains(asm, "our_code_starts_here:") {
		t.Fatalf("rendered assembly missing entry label:\n%s", asm)
	}
	if !strings.Contains(asm, "function_f_call_label:") {
		t.Fatalf("rendered assembly missing function label:\n%s", asm)
	}
}

func TestProgramRunsRecursiveSumToFiftyFive(t *testing.T) {
	prog, err := parse.ParseProgram("(fun (f n) (if (= n 0) 0 (+ n (f (sub1 n))))) (f 10)")
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	s, err := viva.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	if err := s.LoadDefinitions(prog.Defs); err != nil {
		t.Fatalf("LoadDefinitions: %v", err)
	}
	result, err := s.RunMain(&prog.Main, 0, false)
	if err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	if got := viva.Value(result).Int(); got != 55 {
		t.Fatalf("got %d, want 55", got)
	}
}

func TestMainReceivesCallerInput(t *testing.T) {
	prog, err := parse.ParseProgram("(+ input 1)")
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	s, err := viva.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	result, err := s.RunMain(&prog.Main, int64(viva.NewNumber(41)), false)
	if err != nil {
		t.Fatalf("RunMain: %v", err)
	}
	if got := viva.Value(result).Int(); got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}
