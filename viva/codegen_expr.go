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

// compileExpr lowers one Expr to IL under ctx. The invariant it maintains
// (spec.md §4.3): after executing the returned list starting from the
// current rsp, rax holds the result, rsp is unchanged, and stack slots at
// indices >= ctx.si are free for reuse by whatever compiles next.
func compileExpr(ctx *Context, e *Expr) ([]Instr, error) {
	switch e.Kind {
	case ExprNumber:
		return []Instr{Mov(RAX, e.Number<<1)}, nil

	case ExprBoolean:
		return []Instr{Mov(RAX, int64(NewBoolean(e.Boolean)))}, nil

	case ExprId:
		return compileId(ctx, e.Id)

	case ExprLet:
		return compileLet(ctx, e)

	case ExprUnOp:
		return compileUnOp(ctx, e)

	case ExprBinOp:
		return compileBinOp(ctx, e)

	case ExprIf:
		return compileIf(ctx, e)

	case ExprLoop:
		return compileLoop(ctx, e)

	case ExprBreak:
		return compileBreak(ctx, e)

	case ExprSet:
		return compileSet(ctx, e)

	case ExprBlock:
		return compileBlock(ctx, e)

	case ExprCall:
		return compileCall(ctx, e)

	default:
		return nil, newStaticError("unknown expression form")
	}
}

func compileId(ctx *Context, name string) ([]Instr, error) {
	if name == "input" {
		if !ctx.allowInput {
			return nil, newStaticError("Unbound variable identifier %s", name)
		}
		return []Instr{MovReg(RAX, RDI)}, nil
	}
	if slot, ok := ctx.env[name]; ok {
		return []Instr{MovFromStack(RAX, slot)}, nil
	}
	if ptr, ok := ctx.definePtrs[name]; ok {
		return []Instr{MovFromPtr(RAX, ptr)}, nil
	}
	if v, ok := ctx.defineEnv[name]; ok {
		return []Instr{Mov(RAX, int64(v))}, nil
	}
	return nil, newStaticError("Unbound variable identifier %s", name)
}

func compileLet(ctx *Context, e *Expr) ([]Instr, error) {
	seen := make(map[string]bool, len(e.Bindings))
	var out []Instr
	cur := ctx
	for _, b := range e.Bindings {
		if seen[b.Name] {
			return nil, newStaticError("Duplicate binding")
		}
		seen[b.Name] = true
		rhs, err := compileExpr(cur, &b.Expr)
		if err != nil {
			return nil, err
		}
		out = append(out, rhs...)
		slot := cur.si
		out = append(out, MovToStack(slot, RAX))
		cur = cur.withEnv(b.Name, slot).withSI(slot + 1)
	}
	body, err := compileExpr(cur, e.Body)
	if err != nil {
		return nil, err
	}
	return append(out, body...), nil
}

// overflowGuard appends the no-overflow check used after Add1/Sub1 and the
// three arithmetic BinOps: jno ok; call snek_error(1); ok:
func overflowGuard(id uint64) []Instr {
	ok := fmt.Sprintf("no_overflow_%d", id)
	return []Instr{Jno(ok), CallRustError(1), Label(ok)}
}

// notBoolGuard appends Add1/Sub1's "argument is a number" check.
func notBoolGuard(id uint64) []Instr {
	ok := fmt.Sprintf("unop_ok_%d", id)
	return []Instr{TestImm(RAX, 1), Jcc(CondE, ok), CallRustError(2), Label(ok)}
}

func compileUnOp(ctx *Context, e *Expr) ([]Instr, error) {
	child, err := compileExpr(ctx, e.Arg1)
	if err != nil {
		return nil, err
	}
	switch e.Op1 {
	case Add1, Sub1:
		out := append([]Instr{}, child...)
		out = append(out, notBoolGuard(nextID())...)
		if e.Op1 == Add1 {
			out = append(out, AddImm32(RAX, 2))
		} else {
			out = append(out, SubImm32(RAX, 2))
		}
		out = append(out, overflowGuard(nextID())...)
		return out, nil

	case IsNum, IsBool:
		cond := CondE
		if e.Op1 == IsBool {
			cond = CondNE
		}
		out := append([]Instr{}, child...)
		out = append(out,
			TestImm(RAX, 1),
			Mov(RAX, 1),
			Mov(R10, 3),
			Cmovcc(cond, RAX, R10),
		)
		return out, nil

	case Print:
		// snek_print is a real Go function, not a C-ABI symbol: a call into
		// it may clobber any register, rdi (the live input binding) and rax
		// (the value being printed) included, so both round-trip through
		// scratch stack slots rather than registers across the call. rsp is
		// moved below those slots (and every live slot above them) for the
		// duration of the call so the callee's frame cannot overwrite them.
		out := append([]Instr{}, child...)
		out = append(out,
			MovToStack(ctx.si, RAX),
			MovToStack(ctx.si+1, RDI),
			SubImm32(RSP, int32((ctx.si+1)*8)),
			CallRustPrint(RAX),
			AddImm32(RSP, int32((ctx.si+1)*8)),
			MovFromStack(RDI, ctx.si+1),
			MovFromStack(RAX, ctx.si),
		)
		return out, nil

	default:
		return nil, newStaticError("unknown unary operator")
	}
}

// atLeastOneBoolGuard rejects the operation if either operand is a boolean:
// one operand is live in rax, the other sits at stack slot `slot`. Restores
// rax to the live operand on the ok path (mirrors compile_helpers.rs's
// at_least_one_bool_handler).
func atLeastOneBoolGuard(slot int, id uint64) []Instr {
	ok := fmt.Sprintf("bool_ok_%d", id)
	return []Instr{
		MovReg(R11, RAX),
		MovFromStack(R8, slot),
		OrReg(RAX, R8),
		TestImm(RAX, 1),
		Jcc(CondE, ok),
		CallRustError(2),
		Label(ok),
		MovReg(RAX, R11),
	}
}

// equalTypeGuard rejects `=` when the two operands don't share a tag.
func equalTypeGuard(slot int, id uint64) []Instr {
	ok := fmt.Sprintf("equal_ok_%d", id)
	return []Instr{
		MovReg(R11, RAX),
		MovFromStack(R8, slot),
		XorReg(RAX, R8),
		TestImm(RAX, 1),
		Jcc(CondE, ok),
		CallRustError(2),
		Label(ok),
		MovReg(RAX, R11),
	}
}

func compileBinOp(ctx *Context, e *Expr) ([]Instr, error) {
	switch e.Op2 {
	case Plus, Times:
		return compilePlusTimes(ctx, e)
	case Minus:
		return compileMinus(ctx, e)
	default:
		return compileCompare(ctx, e)
	}
}

func compilePlusTimes(ctx *Context, e *Expr) ([]Instr, error) {
	slot := ctx.si
	e1, err := compileExpr(ctx, e.E1)
	if err != nil {
		return nil, err
	}
	e2, err := compileExpr(ctx.withSI(slot+1), e.E2)
	if err != nil {
		return nil, err
	}
	out := append([]Instr{}, e1...)
	out = append(out, MovToStack(slot, RAX))
	out = append(out, e2...)
	out = append(out, atLeastOneBoolGuard(slot, nextID())...)
	if e.Op2 == Plus {
		out = append(out, AddRaxStack(slot))
		out = append(out, overflowGuard(nextID())...)
	} else {
		out = append(out, MulRaxStack(slot))
		out = append(out, overflowGuard(nextID())...)
		out = append(out, Sar1())
	}
	return out, nil
}

func compileMinus(ctx *Context, e *Expr) ([]Instr, error) {
	slot := ctx.si
	// e2 compiled first so the spill slot holds the subtrahend.
	e2, err := compileExpr(ctx, e.E2)
	if err != nil {
		return nil, err
	}
	e1, err := compileExpr(ctx.withSI(slot+1), e.E1)
	if err != nil {
		return nil, err
	}
	out := append([]Instr{}, e2...)
	out = append(out, MovToStack(slot, RAX))
	out = append(out, e1...)
	out = append(out, atLeastOneBoolGuard(slot, nextID())...)
	out = append(out, SubRaxStack(slot))
	out = append(out, overflowGuard(nextID())...)
	return out, nil
}

var cmpCond = map[Op2]Cond{
	Equal:        CondE,
	Greater:      CondG,
	GreaterEqual: CondGE,
	Less:         CondL,
	LessEqual:    CondLE,
}

func compileCompare(ctx *Context, e *Expr) ([]Instr, error) {
	slot := ctx.si + 1
	e2, err := compileExpr(ctx, e.E2)
	if err != nil {
		return nil, err
	}
	e1, err := compileExpr(ctx.withSI(slot+1), e.E1)
	if err != nil {
		return nil, err
	}
	out := append([]Instr{}, e2...)
	out = append(out, MovToStack(slot, RAX))
	out = append(out, e1...)
	if e.Op2 == Equal {
		out = append(out, equalTypeGuard(slot, nextID())...)
	} else {
		out = append(out, atLeastOneBoolGuard(slot, nextID())...)
	}
	out = append(out,
		CmpStack(RAX, slot),
		Mov(RAX, 1),
		Mov(R10, 3),
		Cmovcc(cmpCond[e.Op2], RAX, R10),
	)
	return out, nil
}

func compileIf(ctx *Context, e *Expr) ([]Instr, error) {
	id := nextID()
	elseLabel := fmt.Sprintf("else_%d", id)
	endLabel := fmt.Sprintf("end_%d", id)

	cond, err := compileExpr(ctx, e.Cond)
	if err != nil {
		return nil, err
	}
	then, err := compileExpr(ctx, e.Then)
	if err != nil {
		return nil, err
	}
	els, err := compileExpr(ctx.withSI(ctx.si+1), e.Else)
	if err != nil {
		return nil, err
	}

	out := append([]Instr{}, cond...)
	out = append(out, CmpImm(RAX, 3), Jcc(CondNE, elseLabel))
	out = append(out, then...)
	out = append(out, Jmp(endLabel), Label(elseLabel))
	out = append(out, els...)
	out = append(out, Label(endLabel))
	return out, nil
}

func compileLoop(ctx *Context, e *Expr) ([]Instr, error) {
	id := nextID()
	start := fmt.Sprintf("loop_start_%d", id)
	end := fmt.Sprintf("loop_end_%d", id)
	body, err := compileExpr(ctx.withBreak(id), e.Body)
	if err != nil {
		return nil, err
	}
	out := []Instr{Label(start)}
	out = append(out, body...)
	out = append(out, Jmp(start), Label(end))
	return out, nil
}

func compileBreak(ctx *Context, e *Expr) ([]Instr, error) {
	if ctx.currBreak == 0 {
		return nil, newStaticError("break outside of a loop")
	}
	expr, err := compileExpr(ctx, e.Arg1)
	if err != nil {
		return nil, err
	}
	out := append([]Instr{}, expr...)
	out = append(out, Jmp(fmt.Sprintf("loop_end_%d", ctx.currBreak)))
	return out, nil
}

func compileSet(ctx *Context, e *Expr) ([]Instr, error) {
	expr, err := compileExpr(ctx, e.SetExpr)
	if err != nil {
		return nil, err
	}
	out := append([]Instr{}, expr...)
	if slot, ok := ctx.env[e.SetName]; ok {
		return append(out, MovToStack(slot, RAX)), nil
	}
	if ptr, ok := ctx.definePtrs[e.SetName]; ok {
		return append(out, MovToPtr(ptr, RAX)), nil
	}
	return nil, newStaticError("Unbound variable identifier %s", e.SetName)
}

func compileBlock(ctx *Context, e *Expr) ([]Instr, error) {
	var out []Instr
	for i := range e.Block {
		sub, err := compileExpr(ctx, &e.Block[i])
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}
