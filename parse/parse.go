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
	"fmt"

	"github.com/launix-de/viva/viva"
)

type parseErr struct{ msg string }

func (e *parseErr) Error() string { return "Invalid: parse error: " + e.msg + "." }

func fail(format string, args ...interface{}) error {
	return &parseErr{msg: fmt.Sprintf(format, args...)}
}

// ParseReplForm parses one REPL turn's source text into a viva.ReplForm:
// Define(name, expr) | Fun(name, params, body) | Expr(expr) (spec.md §3/§6).
// Returns ErrIncomplete (unchanged) when src ends mid-list, so the REPL
// front-end can switch to its continuation prompt.
func ParseReplForm(src string) (*viva.ReplForm, error) {
	s, err := ReadOne(src)
	if err != nil {
		return nil, err
	}
	return buildReplForm(s)
}

func buildReplForm(s Sexp) (*viva.ReplForm, error) {
	if s.IsAtom() {
		e, err := buildExpr(s)
		if err != nil {
			return nil, err
		}
		return &viva.ReplForm{Kind: viva.ReplExprForm, Expr: e}, nil
	}
	if len(s.List) == 0 {
		return nil, fail("empty form")
	}
	head := s.List[0]
	if head.IsAtom() && head.Atom == "define" {
		if len(s.List) != 3 || !s.List[1].IsAtom() {
			return nil, fail("malformed define")
		}
		name := s.List[1].Atom
		if viva.IsKeyword(name) {
			return nil, fail("%q is a keyword", name)
		}
		expr, err := buildExpr(s.List[2])
		if err != nil {
			return nil, err
		}
		return &viva.ReplForm{Kind: viva.ReplDefine, DefineName: name, DefineExpr: expr}, nil
	}
	if head.IsAtom() && head.Atom == "fun" {
		def, err := buildFunDef(s)
		if err != nil {
			return nil, err
		}
		return &viva.ReplForm{Kind: viva.ReplFun, Fun: def}, nil
	}
	e, err := buildExpr(s)
	if err != nil {
		return nil, err
	}
	return &viva.ReplForm{Kind: viva.ReplExprForm, Expr: e}, nil
}

func buildFunDef(s Sexp) (viva.Definition, error) {
	// (fun (name p1 p2 ...) body)
	if len(s.List) != 3 || s.List[1].IsAtom() {
		return viva.Definition{}, fail("malformed fun")
	}
	header := s.List[1].List
	if len(header) == 0 || !header[0].IsAtom() {
		return viva.Definition{}, fail("malformed fun header")
	}
	name := header[0].Atom
	if viva.IsKeyword(name) {
		return viva.Definition{}, fail("%q is a keyword", name)
	}
	params := make([]string, 0, len(header)-1)
	for _, p := range header[1:] {
		if !p.IsAtom() {
			return viva.Definition{}, fail("malformed parameter")
		}
		if viva.IsKeyword(p.Atom) {
			return viva.Definition{}, fail("%q is a keyword", p.Atom)
		}
		params = append(params, p.Atom)
	}
	body, err := buildExpr(s.List[2])
	if err != nil {
		return viva.Definition{}, err
	}
	return viva.Definition{Name: name, Params: params, Body: body}, nil
}

// ParseProgram parses a whole source file into a viva.Program: an ordered
// list of `fun` definitions followed by one main expression (spec.md §3).
func ParseProgram(src string) (*viva.Program, error) {
	forms, err := ReadAll(src)
	if err != nil {
		return nil, err
	}
	if len(forms) == 0 {
		return nil, fail("empty program")
	}
	prog := &viva.Program{}
	for i, f := range forms {
		isLast := i == len(forms)-1
		if !isLast {
			if f.IsAtom() || len(f.List) == 0 || !f.List[0].IsAtom() || f.List[0].Atom != "fun" {
				return nil, fail("expected a fun definition before the main expression")
			}
			def, err := buildFunDef(f)
			if err != nil {
				return nil, err
			}
			prog.Defs = append(prog.Defs, def)
			continue
		}
		if !f.IsAtom() && len(f.List) > 0 && f.List[0].IsAtom() && f.List[0].Atom == "fun" {
			return nil, fail("program must end with a main expression, not a fun definition")
		}
		main, err := buildExpr(f)
		if err != nil {
			return nil, err
		}
		prog.Main = main
	}
	return prog, nil
}

var op1Table = map[string]viva.Op1{
	"add1": viva.Add1, "sub1": viva.Sub1, "isnum": viva.IsNum, "isbool": viva.IsBool, "print": viva.Print,
}

var op2Table = map[string]viva.Op2{
	"+": viva.Plus, "-": viva.Minus, "*": viva.Times, "=": viva.Equal,
	">": viva.Greater, ">=": viva.GreaterEqual, "<": viva.Less, "<=": viva.LessEqual,
}

func buildExpr(s Sexp) (viva.Expr, error) {
	if s.IsAtom() {
		return buildAtomExpr(s.Atom)
	}
	if len(s.List) == 0 {
		return viva.Expr{}, fail("empty expression")
	}
	head := s.List[0]
	if !head.IsAtom() {
		return viva.Expr{}, fail("expected an operator")
	}
	switch head.Atom {
	case "let":
		return buildLet(s)
	case "if":
		if len(s.List) != 4 {
			return viva.Expr{}, fail("malformed if")
		}
		cond, err := buildExpr(s.List[1])
		if err != nil {
			return viva.Expr{}, err
		}
		then, err := buildExpr(s.List[2])
		if err != nil {
			return viva.Expr{}, err
		}
		els, err := buildExpr(s.List[3])
		if err != nil {
			return viva.Expr{}, err
		}
		return viva.Expr{Kind: viva.ExprIf, Cond: &cond, Then: &then, Else: &els}, nil
	case "loop":
		if len(s.List) != 2 {
			return viva.Expr{}, fail("malformed loop")
		}
		body, err := buildExpr(s.List[1])
		if err != nil {
			return viva.Expr{}, err
		}
		return viva.Expr{Kind: viva.ExprLoop, Body: &body}, nil
	case "break":
		if len(s.List) != 2 {
			return viva.Expr{}, fail("malformed break")
		}
		arg, err := buildExpr(s.List[1])
		if err != nil {
			return viva.Expr{}, err
		}
		return viva.Expr{Kind: viva.ExprBreak, Arg1: &arg}, nil
	case "set!":
		if len(s.List) != 3 || !s.List[1].IsAtom() {
			return viva.Expr{}, fail("malformed set!")
		}
		val, err := buildExpr(s.List[2])
		if err != nil {
			return viva.Expr{}, err
		}
		return viva.Expr{Kind: viva.ExprSet, SetName: s.List[1].Atom, SetExpr: &val}, nil
	case "block":
		if len(s.List) < 2 {
			return viva.Expr{}, fail("block must not be empty")
		}
		block := make([]viva.Expr, 0, len(s.List)-1)
		for _, sub := range s.List[1:] {
			e, err := buildExpr(sub)
			if err != nil {
				return viva.Expr{}, err
			}
			block = append(block, e)
		}
		return viva.Expr{Kind: viva.ExprBlock, Block: block}, nil
	}
	if op, ok := op1Table[head.Atom]; ok {
		if len(s.List) != 2 {
			return viva.Expr{}, fail("malformed %s", head.Atom)
		}
		arg, err := buildExpr(s.List[1])
		if err != nil {
			return viva.Expr{}, err
		}
		return viva.Expr{Kind: viva.ExprUnOp, Op1: op, Arg1: &arg}, nil
	}
	if op, ok := op2Table[head.Atom]; ok {
		if len(s.List) != 3 {
			return viva.Expr{}, fail("malformed %s", head.Atom)
		}
		e1, err := buildExpr(s.List[1])
		if err != nil {
			return viva.Expr{}, err
		}
		e2, err := buildExpr(s.List[2])
		if err != nil {
			return viva.Expr{}, err
		}
		return viva.Expr{Kind: viva.ExprBinOp, Op2: op, E1: &e1, E2: &e2}, nil
	}
	// otherwise a function call: (name arg1 arg2 ...)
	if viva.IsKeyword(head.Atom) {
		return viva.Expr{}, fail("%q is a keyword", head.Atom)
	}
	args := make([]viva.Expr, 0, len(s.List)-1)
	for _, sub := range s.List[1:] {
		e, err := buildExpr(sub)
		if err != nil {
			return viva.Expr{}, err
		}
		args = append(args, e)
	}
	return viva.Expr{Kind: viva.ExprCall, CallName: head.Atom, CallArgs: args}, nil
}

func buildLet(s Sexp) (viva.Expr, error) {
	if len(s.List) != 3 || s.List[1].IsAtom() {
		return viva.Expr{}, fail("malformed let")
	}
	var bindings []viva.Binding
	for _, b := range s.List[1].List {
		if b.IsAtom() || len(b.List) != 2 || !b.List[0].IsAtom() {
			return viva.Expr{}, fail("malformed let binding")
		}
		name := b.List[0].Atom
		if viva.IsKeyword(name) {
			return viva.Expr{}, fail("%q is a keyword", name)
		}
		expr, err := buildExpr(b.List[1])
		if err != nil {
			return viva.Expr{}, err
		}
		bindings = append(bindings, viva.Binding{Name: name, Expr: expr})
	}
	body, err := buildExpr(s.List[2])
	if err != nil {
		return viva.Expr{}, err
	}
	return viva.Expr{Kind: viva.ExprLet, Bindings: bindings, Body: &body}, nil
}

func buildAtomExpr(tok string) (viva.Expr, error) {
	if tok == "true" {
		return viva.Expr{Kind: viva.ExprBoolean, Boolean: true}, nil
	}
	if tok == "false" {
		return viva.Expr{Kind: viva.ExprBoolean, Boolean: false}, nil
	}
	if n, ok := parseInt(tok); ok {
		return viva.Expr{Kind: viva.ExprNumber, Number: n}, nil
	}
	if viva.IsKeyword(tok) {
		return viva.Expr{}, fail("%q is a keyword", tok)
	}
	return viva.Expr{Kind: viva.ExprId, Id: tok}, nil
}
