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
	"fmt"
	"os"
	"unsafe"

	"github.com/launix-de/viva/internal/metrics"
	"github.com/launix-de/viva/internal/vlog"
)

// snekPrint is the snek_print runtime hook JIT code calls back into
// (spec.md §4.1): prints "true" for 3, "false" for 1, the arithmetic
// shift-right-by-one for any other even (number-tagged) value, and a
// diagnostic for anything else. It never returns a meaningful value; since
// this is a real Go function reached via its ABIInternal entry point rather
// than a C-ABI symbol, generated code never assumes any register (rax
// included) survives the call and instead round-trips live state through
// stack slots (codegen_expr.go's UnOp(Print) lowering).
//
//go:noinline
func snekPrint(val int64) int64 {
	v := Value(val)
	fmt.Println(v.Format())
	vlog.Debugf("snek_print %d -> %s", val, v.Format())
	return 0
}

// snekError is the snek_error runtime hook (spec.md §4.1). It terminates
// the process for the two defined codes and otherwise prints a diagnostic
// without exiting.
//
//go:noinline
func snekError(code int64) int64 {
	metrics.Default.RuntimeError()
	vlog.Debugf("snek_error %d", code)
	switch code {
	case 1:
		fmt.Fprintln(os.Stderr, "Runtime error: overflow")
		os.Exit(1)
	case 2:
		fmt.Fprintln(os.Stderr, "Runtime error: invalid argument")
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Runtime error: unknown code %d\n", code)
	}
	return 0
}

// funcEntryAddr returns the code entry address of a Go function value, the
// way a func value's first word (a pointer to a funcval whose own first
// word is the entry pc) is laid out by the runtime. JIT-emitted code embeds
// this as a 64-bit immediate and calls it directly ("mov r11, imm64; call
// r11", see asm.go's emitRel32Call; rax is left free for the argument).
func funcEntryAddr(fn func(int64) int64) uint64 {
	type funcval struct {
		fn uintptr
	}
	fv := *(**funcval)(unsafe.Pointer(&fn))
	return uint64(fv.fn)
}

// SnekPrintAddr and SnekErrorAddr are the addresses embedded into every
// session's JIT-generated print/error call sites.
func SnekPrintAddr() uint64 { return funcEntryAddr(snekPrint) }
func SnekErrorAddr() uint64 { return funcEntryAddr(snekError) }
