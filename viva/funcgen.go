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

func functionLabel(name string) string {
	return fmt.Sprintf("function_%s_call_label", name)
}

// compileCall lowers Call(name, args) using the shelved-return-address
// calling convention of spec.md §4.4: the caller writes the absolute
// address of its own after-call label into its slot si, evaluates every
// argument at a conservative "safe si" so argument evaluation cannot
// clobber the shelved address or earlier arguments, stores each argument
// into the callee's future frame, subtracts si*8 from rsp and jumps
// (rather than calls) into the callee.
func compileCall(ctx *Context, e *Expr) ([]Instr, error) {
	if !ctx.knownFuncs[e.CallName] {
		return nil, newStaticError("undefined function %s", e.CallName)
	}

	id := nextID()
	after := fmt.Sprintf("after_call_%s_%d", e.CallName, id)
	si := ctx.si

	maxDepth := 0
	for i := range e.CallArgs {
		if d := depth(&e.CallArgs[i]); d > maxDepth {
			maxDepth = d
		}
	}
	safeSI := 2 + si + len(e.CallArgs) + maxDepth
	argCtx := ctx.withSI(safeSI)

	out := []Instr{MovLabel(after, si)}
	for i := range e.CallArgs {
		argCode, err := compileExpr(argCtx, &e.CallArgs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, argCode...)
		out = append(out, MovToStack(si+1+i, RAX))
	}
	out = append(out,
		SubImm32(RSP, int32(si*8)),
		Jmp(functionLabel(e.CallName)),
		Label(after),
		AddImm32(RSP, int32(si*8)),
	)
	return out, nil
}

// compileFunctionDef lowers one `fun` Definition to IL. Parameters occupy
// slots 1..len(params) of the new frame (slot 0 holds the shelved return
// address the caller wrote via MovLabel); the body runs with si =
// 1+len(params), an empty define_ptrs (the original source only ever boxes
// set!-targets for the currently-compiled top-level form, never for a
// function body re-entered on every call) and currBreak = 0. The body ends
// by jumping through [rsp] to the caller's shelved return label.
func compileFunctionDef(defineEnv map[string]Value, knownFuncs map[string]bool, def *Definition) ([]Instr, error) {
	seen := make(map[string]bool, len(def.Params))
	env := make(map[string]int, len(def.Params))
	for i, p := range def.Params {
		if seen[p] {
			return nil, newStaticError("Duplicate parameter name")
		}
		seen[p] = true
		env[p] = i + 1
	}

	ctx := &Context{
		si:         1 + len(def.Params),
		env:        env,
		defineEnv:  defineEnv,
		definePtrs: map[string]int64{},
		currBreak:  0,
		allowInput: false,
		knownFuncs: knownFuncs,
	}

	out := []Instr{Label(functionLabel(def.Name))}
	body, err := compileExpr(ctx, &def.Body)
	if err != nil {
		return nil, err
	}
	out = append(out, body...)
	out = append(out, JmpStackSlot(0))
	return out, nil
}
