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

// Reg names the x86-64 general-purpose registers the IL can reference.
// r14 is listed for completeness but codegen never allocates it: Go's
// ABIInternal reserves r14 as the fixed "g" (goroutine) pointer on amd64,
// and JIT code runs on a real goroutine's stack between calls back into
// snek_print/snek_error, so clobbering it would corrupt the runtime.
type Reg uint8

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

var regNames = [...]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi", "r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}

func (r Reg) String() string { return regNames[r] }

// Cond is a condition code shared by Jcc and Cmovcc lowerings.
type Cond uint8

const (
	CondE  Cond = iota // equal / zero
	CondNE             // not equal / not zero
	CondL              // signed less
	CondLE             // signed less-or-equal
	CondG              // signed greater
	CondGE             // signed greater-or-equal
)

func (c Cond) String() string {
	switch c {
	case CondE:
		return "e"
	case CondNE:
		return "ne"
	case CondL:
		return "l"
	case CondLE:
		return "le"
	case CondG:
		return "g"
	case CondGE:
		return "ge"
	default:
		return "?"
	}
}

// Op enumerates the closed set of IL operations. Every shape mirrors a
// concrete x86-64 operand pattern: the assembler binding (asm.go) owns the
// one lowering each op has to bytes.
type Op uint8

const (
	OpMovImm       Op = iota // mov Dst, Imm
	OpMovReg                 // mov Dst, Src
	OpMovFromStack           // mov Dst, [rsp - Slot*8]
	OpMovToStack             // mov [rsp - Slot*8], Src
	OpMovFromPtr             // mov Dst, [Imm]            (define-cell read)
	OpMovToPtr               // mov [Imm], Src             (define-cell write)
	OpAddImm32               // add Dst, imm32
	OpSubImm32               // sub Dst, imm32
	OpAddRaxStack            // add rax, [rsp - Slot*8]
	OpSubRaxStack            // sub rax, [rsp - Slot*8]
	OpMulRaxStack            // imul rax, [rsp - Slot*8]
	OpSar1                   // sar rax, 1                 (untag after multiply)
	OpOrRegReg               // or Dst, Src
	OpXorRegReg              // xor Dst, Src
	OpTestRegImm             // test Dst, imm32
	OpCmpRegImm              // cmp Dst, imm32
	OpCmpRegStack            // cmp Dst, [rsp - Slot*8]
	OpLabel                  // Label:
	OpJmp                    // jmp Label
	OpJcc                    // jcc Label
	OpJno                    // jno Label
	OpJmpStackSlot           // jmp QWORD [rsp + Slot*8]   (shelved-return-address jump)
	OpMovLabel               // writes absolute addr of Label into [rsp - Slot*8]
	OpCmovcc                 // cmovcc Dst, Src
	OpCallRustError          // call snek_error(Imm)
	OpCallRustPrint          // call snek_print(Src)
	OpComment                // no-op at emit
	OpPushReg                // push Dst               (JIT driver prologue)
	OpPopReg                 // pop Dst                (JIT driver epilogue)
	OpRet                    // ret                    (JIT driver epilogue)
)

// Instr is one IL instruction. Only the fields relevant to Op are
// meaningful; unused fields are zero. A flat struct (rather than one
// interface type per op) keeps the code generator's emission lists cheap to
// build and walk twice (label pre-registration, then byte emission).
type Instr struct {
	Op    Op
	Dst   Reg
	Src   Reg
	Imm   int64  // immediate: literal value, error code, or define-cell address
	Slot  int    // stack slot index (si convention: offset = Slot*8 below rsp)
	Label string // label name operand
	Cond  Cond
	Text  string // Comment text
}

func Mov(dst Reg, imm int64) Instr         { return Instr{Op: OpMovImm, Dst: dst, Imm: imm} }
func MovReg(dst, src Reg) Instr            { return Instr{Op: OpMovReg, Dst: dst, Src: src} }
func MovFromStack(dst Reg, slot int) Instr { return Instr{Op: OpMovFromStack, Dst: dst, Slot: slot} }
func MovToStack(slot int, src Reg) Instr   { return Instr{Op: OpMovToStack, Src: src, Slot: slot} }
func MovFromPtr(dst Reg, ptr int64) Instr  { return Instr{Op: OpMovFromPtr, Dst: dst, Imm: ptr} }
func MovToPtr(ptr int64, src Reg) Instr    { return Instr{Op: OpMovToPtr, Src: src, Imm: ptr} }
func AddImm32(dst Reg, imm int32) Instr    { return Instr{Op: OpAddImm32, Dst: dst, Imm: int64(imm)} }
func SubImm32(dst Reg, imm int32) Instr    { return Instr{Op: OpSubImm32, Dst: dst, Imm: int64(imm)} }
func AddRaxStack(slot int) Instr           { return Instr{Op: OpAddRaxStack, Slot: slot} }
func SubRaxStack(slot int) Instr           { return Instr{Op: OpSubRaxStack, Slot: slot} }
func MulRaxStack(slot int) Instr           { return Instr{Op: OpMulRaxStack, Slot: slot} }
func Sar1() Instr                          { return Instr{Op: OpSar1} }
func OrReg(dst, src Reg) Instr             { return Instr{Op: OpOrRegReg, Dst: dst, Src: src} }
func XorReg(dst, src Reg) Instr            { return Instr{Op: OpXorRegReg, Dst: dst, Src: src} }
func TestImm(dst Reg, imm int64) Instr     { return Instr{Op: OpTestRegImm, Dst: dst, Imm: imm} }
func CmpImm(dst Reg, imm int32) Instr      { return Instr{Op: OpCmpRegImm, Dst: dst, Imm: int64(imm)} }
func CmpStack(dst Reg, slot int) Instr     { return Instr{Op: OpCmpRegStack, Dst: dst, Slot: slot} }
func Label(name string) Instr              { return Instr{Op: OpLabel, Label: name} }
func Jmp(name string) Instr                { return Instr{Op: OpJmp, Label: name} }
func Jcc(cond Cond, name string) Instr     { return Instr{Op: OpJcc, Cond: cond, Label: name} }
func Jno(name string) Instr                { return Instr{Op: OpJno, Label: name} }
func JmpStackSlot(slot int) Instr          { return Instr{Op: OpJmpStackSlot, Slot: slot} }
func MovLabel(name string, slot int) Instr { return Instr{Op: OpMovLabel, Label: name, Slot: slot} }
func Cmovcc(cond Cond, dst, src Reg) Instr {
	return Instr{Op: OpCmovcc, Cond: cond, Dst: dst, Src: src}
}
func CallRustError(code int64) Instr { return Instr{Op: OpCallRustError, Imm: code} }
func CallRustPrint(src Reg) Instr    { return Instr{Op: OpCallRustPrint, Src: src} }
func Comment(text string) Instr      { return Instr{Op: OpComment, Text: text} }
func PushReg(r Reg) Instr            { return Instr{Op: OpPushReg, Dst: r} }
func PopReg(r Reg) Instr             { return Instr{Op: OpPopReg, Dst: r} }
func Ret() Instr                     { return Instr{Op: OpRet} }

// String renders an Instr as a line of NASM-style assembly, used both by
// the textual assembly emitter (-c/-g CLI modes) and for debug logging.
func (in Instr) String() string {
	switch in.Op {
	case OpMovImm:
		return fmt.Sprintf("mov %s, %d", in.Dst, in.Imm)
	case OpMovReg:
		return fmt.Sprintf("mov %s, %s", in.Dst, in.Src)
	case OpMovFromStack:
		return fmt.Sprintf("mov %s, [rsp - %d]", in.Dst, in.Slot*8)
	case OpMovToStack:
		return fmt.Sprintf("mov [rsp - %d], %s", in.Slot*8, in.Src)
	case OpMovFromPtr:
		return fmt.Sprintf("mov %s, [%#x]", in.Dst, uint64(in.Imm))
	case OpMovToPtr:
		return fmt.Sprintf("mov [%#x], %s", uint64(in.Imm), in.Src)
	case OpAddImm32:
		return fmt.Sprintf("add %s, %d", in.Dst, in.Imm)
	case OpSubImm32:
		return fmt.Sprintf("sub %s, %d", in.Dst, in.Imm)
	case OpAddRaxStack:
		return fmt.Sprintf("add rax, [rsp - %d]", in.Slot*8)
	case OpSubRaxStack:
		return fmt.Sprintf("sub rax, [rsp - %d]", in.Slot*8)
	case OpMulRaxStack:
		return fmt.Sprintf("imul rax, [rsp - %d]", in.Slot*8)
	case OpSar1:
		return "sar rax, 1"
	case OpOrRegReg:
		return fmt.Sprintf("or %s, %s", in.Dst, in.Src)
	case OpXorRegReg:
		return fmt.Sprintf("xor %s, %s", in.Dst, in.Src)
	case OpTestRegImm:
		return fmt.Sprintf("test %s, %d", in.Dst, in.Imm)
	case OpCmpRegImm:
		return fmt.Sprintf("cmp %s, %d", in.Dst, in.Imm)
	case OpCmpRegStack:
		return fmt.Sprintf("cmp %s, [rsp - %d]", in.Dst, in.Slot*8)
	case OpLabel:
		return in.Label + ":"
	case OpJmp:
		return "jmp " + in.Label
	case OpJcc:
		return "j" + in.Cond.String() + " " + in.Label
	case OpJno:
		return "jno " + in.Label
	case OpJmpStackSlot:
		return fmt.Sprintf("jmp QWORD [rsp + %d]", in.Slot*8)
	case OpMovLabel:
		return fmt.Sprintf("mov_label %s -> [rsp - %d]", in.Label, in.Slot*8)
	case OpCmovcc:
		return fmt.Sprintf("cmov%s %s, %s", in.Cond, in.Dst, in.Src)
	case OpCallRustError:
		return fmt.Sprintf("call snek_error(%d)", in.Imm)
	case OpCallRustPrint:
		return fmt.Sprintf("call snek_print(%s)", in.Src)
	case OpComment:
		return "; " + in.Text
	case OpPushReg:
		return "push " + in.Dst.String()
	case OpPopReg:
		return "pop " + in.Dst.String()
	case OpRet:
		return "ret"
	default:
		return "; <unknown op>"
	}
}

// Render renders a whole IL list as one NASM-style assembly body.
func Render(program []Instr) string {
	out := ""
	for _, in := range program {
		if in.Op == OpLabel {
			out += in.String() + "\n"
			continue
		}
		out += "  " + in.String() + "\n"
	}
	return out
}

// RenderProgram wraps a whole-program IL body in the textual section/global
// entry point format the -c/-g CLI modes write to disk.
func RenderProgram(body []Instr) string {
	return "\nsection .text\nglobal our_code_starts_here\nour_code_starts_here:\n" + Render(body) + "  ret\n"
}
