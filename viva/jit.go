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

import (
	"unsafe"

	"github.com/launix-de/viva/internal/metrics"
	"github.com/launix-de/viva/internal/vlog"
)

// Session is one REPL session's state bundle (spec.md §4.6): a growable
// executable-memory assembler, a label table (owned by the Assembler, and
// surviving across turns because the buffer is append-only), define_env,
// and the set of registered function names. A Session is not safe for
// concurrent use by more than one goroutine at a time; internal/session
// provides the per-session mutual-exclusion gate spec.md §5 describes for
// multi-session embedding.
type Session struct {
	buf       *CodeBuffer
	asm       *Assembler
	defineEnv map[string]Value
	funcNames map[string]bool
	metrics   *metrics.Counters
}

// NewSession allocates a fresh session: one code buffer, one assembler
// bound to the process's snek_print/snek_error addresses, empty
// define_env and function-name set.
func NewSession() (*Session, error) {
	buf, err := NewCodeBuffer()
	if err != nil {
		return nil, err
	}
	return &Session{
		buf:       buf,
		asm:       NewAssembler(buf, SnekPrintAddr(), SnekErrorAddr()),
		defineEnv: make(map[string]Value),
		funcNames: make(map[string]bool),
		metrics:   &metrics.Default,
	}, nil
}

// Close releases the session's executable memory. Called from the
// internal/session registry's eviction path, and from the
// internal/session onexit cleanup hook for processes that never evict
// explicitly.
func (s *Session) Close() error {
	return s.buf.Close()
}

// DefineEnv exposes a read-only snapshot, used by the (checkpoint) REPL
// command (internal/session) and by tests asserting define persistence.
func (s *Session) DefineEnv() map[string]Value {
	out := make(map[string]Value, len(s.defineEnv))
	for k, v := range s.defineEnv {
		out[k] = v
	}
	return out
}

// FuncNames exposes a read-only snapshot of registered function names.
func (s *Session) FuncNames() map[string]bool {
	out := make(map[string]bool, len(s.funcNames))
	for k := range s.funcNames {
		out[k] = true
	}
	return out
}

// RestoreDefineEnv repopulates define_env from a checkpoint, without
// re-JITting anything (the executable code buffer itself is never
// checkpointed, per SPEC_FULL.md §4.12).
func (s *Session) RestoreDefineEnv(env map[string]Value) {
	for k, v := range env {
		s.defineEnv[k] = v
	}
}

// LoadDefinitions registers and compiles every function in a whole-program's
// Defs list, one at a time and in order, through the same per-function path
// as a REPL `fun` form. Each def is registered just before its own body is
// compiled, so a body may call itself and any earlier def; a call to a def
// that appears later in the list (and so mutual recursion) is rejected as an
// undefined function.
func (s *Session) LoadDefinitions(defs []Definition) error {
	for i := range defs {
		if err := s.feedFun(&defs[i]); err != nil {
			return err
		}
	}
	return nil
}

// RunMain compiles and executes a whole program's main expression with the
// given tagged input value, optionally inlining the snek_print call
// (spec.md §6 CLI surface: -e/-g print the result, -c only emits assembly
// and never calls RunMain at all).
func (s *Session) RunMain(expr *Expr, input int64, print bool) (int64, error) {
	return s.compileAndRun(expr, print, input)
}

// Feed dispatches one parsed REPL form, implementing spec.md §4.6's
// per-form protocol. The returned string is the REPL result line to show
// the user ("" when nothing is printed); runtime errors never return here,
// they terminate the process from inside snek_error.
func (s *Session) Feed(form *ReplForm) (string, error) {
	switch form.Kind {
	case ReplFun:
		return "", s.feedFun(&form.Fun)
	case ReplDefine:
		return "", s.feedDefine(form.DefineName, &form.DefineExpr)
	case ReplExprForm:
		return s.feedExpr(&form.Expr)
	default:
		return "", newStaticError("unknown REPL form")
	}
}

func (s *Session) feedFun(def *Definition) error {
	if IsKeyword(def.Name) {
		return newStaticError("'%s' is a keyword", def.Name)
	}
	if s.funcNames[def.Name] {
		return newStaticError("Duplicate function name")
	}
	// Register before compiling the body so self recursion resolves.
	// Registration happens per-form, so a body can call itself and
	// functions fed in earlier turns, but not one defined in a later turn.
	s.funcNames[def.Name] = true

	il, err := compileFunctionDef(s.defineEnv, s.funcNames, def)
	if err != nil {
		delete(s.funcNames, def.Name)
		return err
	}
	before := s.buf.TotalBytes()
	if _, err := s.asm.Assemble(il); err != nil {
		delete(s.funcNames, def.Name)
		return err
	}
	s.metrics.FormCompiled(s.buf.TotalBytes() - before)
	return nil
}

func (s *Session) feedDefine(name string, expr *Expr) error {
	if IsKeyword(name) {
		return newStaticError("'%s' is a keyword", name)
	}
	if _, ok := s.defineEnv[name]; ok {
		return newStaticError("Duplicate binding")
	}
	result, err := s.compileAndRun(expr, false, 0)
	if err != nil {
		return err
	}
	s.defineEnv[name] = Value(result)
	return nil
}

func (s *Session) feedExpr(expr *Expr) (string, error) {
	result, err := s.compileAndRun(expr, true, 0)
	if err != nil {
		return "", err
	}
	// The printed text the user sees came from the JIT-inlined snek_print
	// call, not from this return value (spec.md §4.6); Feed still hands the
	// formatted value back so a non-interactive caller (e.g. a test, or the
	// -e CLI mode) can assert on it without scraping stdout.
	return Value(result).Format(), nil
}

// compileAndRun implements spec.md §4.6 step 3 verbatim: allocate
// define_ptrs cells for this expression's set!-targets, compile the
// expression, optionally append the inlined snek_print call, commit, call,
// lift mutated cells back into define_env, free them.
func (s *Session) compileAndRun(expr *Expr, printResult bool, input int64) (int64, error) {
	targets := map[string]bool{}
	collectSetTargets(expr, targets)

	cells := map[string]*int64{}
	definePtrs := map[string]int64{}
	for name := range targets {
		if v, ok := s.defineEnv[name]; ok {
			cell := new(int64)
			*cell = int64(v)
			cells[name] = cell
			definePtrs[name] = int64(uintptr(unsafe.Pointer(cell)))
		}
	}

	ctx := NewTopLevelContext(s.defineEnv, definePtrs, s.funcNames)
	body, err := compileExpr(ctx, expr)
	if err != nil {
		return 0, err
	}

	var il []Instr
	// EntryPoint is called as a genuine Go func(int64) int64 value, so the
	// incoming argument actually arrives in rax under Go's own (ABIInternal)
	// calling convention, not rdi. The rest of codegen still assumes "input"
	// lives in rdi (spec.md §4.3's documented convention), so bridge once
	// here rather than threading rax through every Id/Print lowering.
	il = append(il, MovReg(RDI, RAX))
	il = append(il, PushReg(RBX), PushReg(R12))
	il = append(il, body...)
	if printResult {
		// snek_print returns in rax, so the result is kept on the stack
		// across the call and restored for the return value.
		il = append(il, PushReg(RAX), CallRustPrint(RAX), PopReg(RAX))
	}
	il = append(il, PopReg(R12), PopReg(RBX), Ret())

	before := s.buf.TotalBytes()
	entry, err := s.asm.Assemble(il)
	if err != nil {
		return 0, err
	}
	s.metrics.FormCompiled(s.buf.TotalBytes() - before)

	fn := s.buf.EntryPoint(entry)
	vlog.Debugf("jit: executing form at offset %d", entry)
	result := fn(input)

	for name, cell := range cells {
		s.defineEnv[name] = Value(*cell)
	}
	return result, nil
}
