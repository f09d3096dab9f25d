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

import "sync/atomic"

// labelCounter is the process-wide monotonic id source for fresh label
// names (loop/if/call sites). It must never roll back between turns since
// label-name uniqueness within a session depends on it (spec.md §9).
var labelCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&labelCounter, 1)
}

// Context is the single bundle threaded down the AST walk (spec.md §3
// "Compilation context"):
//   - si: next free stack slot index (1-based; offsets are si*8 below rsp)
//   - env: local name -> slot index
//   - defineEnv: process/session-lifetime name -> current tagged value
//   - definePtrs: name -> heap cell address, only for set!-targets of the
//     expression currently being compiled
//   - currBreak: the enclosing loop's id, 0 = none
type Context struct {
	si         int
	env        map[string]int
	defineEnv  map[string]Value
	definePtrs map[string]int64
	currBreak  uint64
	allowInput bool            // true only for the top-level main expression (spec.md §9 Open Question #2)
	knownFuncs map[string]bool // registered function names, for Call resolution
}

// NewTopLevelContext builds the context used to compile one REPL/main
// expression: si starts at 2 (slot 1 is reserved for a shelved return
// address, slot 0 is unused), env is empty, currBreak is 0.
func NewTopLevelContext(defineEnv map[string]Value, definePtrs map[string]int64, knownFuncs map[string]bool) *Context {
	return &Context{
		si:         2,
		env:        map[string]int{},
		defineEnv:  defineEnv,
		definePtrs: definePtrs,
		currBreak:  0,
		allowInput: true,
		knownFuncs: knownFuncs,
	}
}

// withSI returns a shallow copy of ctx with a different si, used whenever a
// sub-expression must be compiled at a deeper (or shallower, for the
// function-entry case) stack offset without disturbing the caller's env.
func (ctx *Context) withSI(si int) *Context {
	cp := *ctx
	cp.si = si
	return &cp
}

// withEnv returns a shallow copy of ctx with name bound to slot in a fresh
// env map extending ctx's current one (Let bindings, function parameters).
func (ctx *Context) withEnv(name string, slot int) *Context {
	cp := *ctx
	cp.env = make(map[string]int, len(ctx.env)+1)
	for k, v := range ctx.env {
		cp.env[k] = v
	}
	cp.env[name] = slot
	return &cp
}

// withBreak returns a shallow copy with a new enclosing-loop id.
func (ctx *Context) withBreak(id uint64) *Context {
	cp := *ctx
	cp.currBreak = id
	return &cp
}
