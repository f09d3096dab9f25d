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
package parse

import (
	"strings"
	"testing"

	"github.com/launix-de/viva/viva"
)

func TestParseReplFormExpr(t *testing.T) {
	form, err := ParseReplForm("(+ 1 2)")
	if err != nil {
		t.Fatalf("ParseReplForm: %v", err)
	}
	if form.Kind != viva.ReplExprForm {
		t.Fatalf("got kind %v, want ReplExprForm", form.Kind)
	}
	if form.Expr.Kind != viva.ExprBinOp || form.Expr.Op2 != viva.Plus {
		t.Fatalf("got expr %+v, want a Plus BinOp", form.Expr)
	}
}

func TestParseReplFormDefine(t *testing.T) {
	form, err := ParseReplForm("(define x 1)")
	if err != nil {
		t.Fatalf("ParseReplForm: %v", err)
	}
	if form.Kind != viva.ReplDefine || form.DefineName != "x" {
		t.Fatalf("got %+v, want Define(x, ...)", form)
	}
}

func TestParseReplFormFun(t *testing.T) {
	form, err := ParseReplForm("(fun (f n) (+ n 1))")
	if err != nil {
		t.Fatalf("ParseReplForm: %v", err)
	}
	if form.Kind != viva.ReplFun {
		t.Fatalf("got kind %v, want ReplFun", form.Kind)
	}
	if form.Fun.Name != "f" || len(form.Fun.Params) != 1 || form.Fun.Params[0] != "n" {
		t.Fatalf("got %+v, want f(n)", form.Fun)
	}
}

func TestParseReplFormIncomplete(t *testing.T) {
	_, err := ParseReplForm("(+ 1 (")
	if err != ErrIncomplete {
		t.Fatalf("got err %v, want ErrIncomplete", err)
	}
}

func TestParseErrorsAreInvalidPrefixed(t *testing.T) {
	cases := []string{
		"(hello",
		"()",
		"(define)",
		"(fun (let x) x)",
		"(let x)",
	}
	for _, src := range cases {
		_, err := ParseReplForm(src)
		if err == nil {
			t.Fatalf("%q: expected an error", src)
		}
		if err == ErrIncomplete {
			continue
		}
		if !strings.HasPrefix(err.Error(), "Invalid: parse error") {
			t.Fatalf("%q: got %q, want an \"Invalid: parse error\" prefix", src, err)
		}
	}
}

func TestParseRejectsKeywordAsIdentifier(t *testing.T) {
	if _, err := ParseReplForm("(define if 1)"); err == nil {
		t.Fatalf("expected defining the keyword if to fail")
	}
	if _, err := ParseReplForm("(let ((if 1)) if)"); err == nil {
		t.Fatalf("expected binding the keyword if to fail")
	}
	if _, err := ParseReplForm("(if 1 2)"); err == nil {
		t.Fatalf("expected a malformed if (wrong arity) to fail")
	}
}

func TestParseProgramRecursiveSum(t *testing.T) {
	prog, err := ParseProgram("(fun (f n) (if (= n 0) 0 (+ n (f (sub1 n))))) (f 10)")
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	if len(prog.Defs) != 1 || prog.Defs[0].Name != "f" {
		t.Fatalf("got defs %+v, want one def named f", prog.Defs)
	}
	if prog.Main.Kind != viva.ExprCall || prog.Main.CallName != "f" {
		t.Fatalf("got main %+v, want a call to f", prog.Main)
	}
}

func TestParseProgramRejectsFunAfterMain(t *testing.T) {
	_, err := ParseProgram("(fun (f n) n) (fun (g n) n)")
	if err == nil {
		t.Fatalf("expected a program ending in a fun definition to be rejected")
	}
}

func TestParseProgramRejectsEmptySource(t *testing.T) {
	if _, err := ParseProgram("   "); err == nil {
		t.Fatalf("expected an empty program to be rejected")
	}
}
