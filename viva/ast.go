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

// Op1 is a unary operator.
type Op1 int

const (
	Add1 Op1 = iota
	Sub1
	IsNum
	IsBool
	Print
)

// Op2 is a binary operator.
type Op2 int

const (
	Plus Op2 = iota
	Minus
	Times
	Equal
	Greater
	GreaterEqual
	Less
	LessEqual
)

// Binding is one (name, expr) pair of a Let form, in source order.
type Binding struct {
	Name string
	Expr Expr
}

// Expr is the sum type of all expression AST nodes (spec.md §3). Exactly
// one field group is populated per node; Kind says which.
type Expr struct {
	Kind ExprKind

	Number  int64  // Kind == ExprNumber
	Boolean bool   // Kind == ExprBoolean
	Id      string // Kind == ExprId

	Bindings []Binding // Kind == ExprLet
	Body     *Expr     // Kind == ExprLet | ExprLoop

	Op1  Op1   // Kind == ExprUnOp
	Arg1 *Expr // Kind == ExprUnOp | ExprBreak

	Op2 Op2   // Kind == ExprBinOp
	E1  *Expr // Kind == ExprBinOp | ExprIf
	E2  *Expr // Kind == ExprBinOp

	Cond *Expr // Kind == ExprIf
	Then *Expr // Kind == ExprIf
	Else *Expr // Kind == ExprIf

	Block []Expr // Kind == ExprBlock (non-empty)

	CallName string // Kind == ExprCall
	CallArgs []Expr // Kind == ExprCall

	SetName string // Kind == ExprSet
	SetExpr *Expr  // Kind == ExprSet
}

type ExprKind int

const (
	ExprNumber ExprKind = iota
	ExprBoolean
	ExprId
	ExprLet
	ExprUnOp
	ExprBinOp
	ExprIf
	ExprLoop
	ExprBreak
	ExprSet
	ExprBlock
	ExprCall
)

// Definition is a top-level `fun` definition.
type Definition struct {
	Name   string
	Params []string
	Body   Expr
}

// ReplKind distinguishes the three shapes one REPL turn can take.
type ReplKind int

const (
	ReplDefine ReplKind = iota
	ReplFun
	ReplExprForm
)

// ReplForm is one parsed REPL turn: Define(name, expr) | Fun(name, params,
// body) | Expr(expr).
type ReplForm struct {
	Kind ReplKind

	DefineName string
	DefineExpr Expr

	Fun Definition

	Expr Expr
}

// Program is a whole source file: function definitions followed by one
// main expression.
type Program struct {
	Defs []Definition
	Main Expr
}

// depth conservatively estimates how many stack slots evaluating e could
// touch, used by the Call code generator's "safe si" computation
// (spec.md §4.4, §9 Open Question #1). Deliberately an over-approximation:
// spec.md itself flags the tighter bound as unproven, so this follows the
// safer redesign it suggests.
func depth(e *Expr) int {
	if e == nil {
		return 0
	}
	switch e.Kind {
	case ExprNumber, ExprBoolean, ExprId:
		return 1
	case ExprLet:
		// binding i is evaluated i slots deeper than the let itself
		d := len(e.Bindings)
		for i := range e.Bindings {
			if bd := i + depth(&e.Bindings[i].Expr); bd > d {
				d = bd
			}
		}
		if bd := len(e.Bindings) + depth(e.Body); bd > d {
			d = bd
		}
		return d
	case ExprUnOp:
		return 1 + depth(e.Arg1)
	case ExprBinOp:
		d1, d2 := depth(e.E1), depth(e.E2)
		if d2 > d1 {
			d1 = d2
		}
		return 2 + d1
	case ExprIf:
		d := depth(e.Cond)
		dt, de := depth(e.Then), depth(e.Else)
		if dt > d {
			d = dt
		}
		if de > d {
			d = de
		}
		return d + 1
	case ExprLoop:
		return 1 + depth(e.Body)
	case ExprBreak:
		return 1 + depth(e.Arg1)
	case ExprSet:
		return 1 + depth(e.SetExpr)
	case ExprBlock:
		d := 0
		for i := range e.Block {
			if bd := depth(&e.Block[i]); bd > d {
				d = bd
			}
		}
		return d + 1
	case ExprCall:
		d := 0
		for i := range e.CallArgs {
			if bd := depth(&e.CallArgs[i]); bd > d {
				d = bd
			}
		}
		// arguments are evaluated at the caller's safe si, itself d slots
		// past the shelved address and stored arguments
		return 2*d + len(e.CallArgs) + 2
	default:
		return 1
	}
}

// collectSetTargets walks e and returns the set of names used as Set
// targets, used to decide which define_env entries need a heap cell
// (spec.md §4.5).
func collectSetTargets(e *Expr, out map[string]bool) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ExprLet:
		for i := range e.Bindings {
			collectSetTargets(&e.Bindings[i].Expr, out)
		}
		collectSetTargets(e.Body, out)
	case ExprUnOp:
		collectSetTargets(e.Arg1, out)
	case ExprBinOp:
		collectSetTargets(e.E1, out)
		collectSetTargets(e.E2, out)
	case ExprIf:
		collectSetTargets(e.Cond, out)
		collectSetTargets(e.Then, out)
		collectSetTargets(e.Else, out)
	case ExprLoop:
		collectSetTargets(e.Body, out)
	case ExprBreak:
		collectSetTargets(e.Arg1, out)
	case ExprSet:
		out[e.SetName] = true
		collectSetTargets(e.SetExpr, out)
	case ExprBlock:
		for i := range e.Block {
			collectSetTargets(&e.Block[i], out)
		}
	case ExprCall:
		for i := range e.CallArgs {
			collectSetTargets(&e.CallArgs[i], out)
		}
	}
}
