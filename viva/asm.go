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

// labelEntry is a dynamic label handle: allocated at pre-registration time,
// resolved to a byte offset once emission reaches the matching Label op.
// Handles persist for the lifetime of the session so a later batch's jump
// or MovLabel can reference a label a previous batch already defined
// (e.g. a Call referencing a function label registered by an earlier Fun
// form).
type labelEntry struct {
	offset   int
	resolved bool
}

// fixup is a deferred patch: a rel32 or imm64 slot written during emission
// whose value depends on a label that may not be resolved yet.
type fixup struct {
	codePos  int
	size     int
	relative bool
	label    string
}

// Assembler lowers Instr batches to machine code in a session's CodeBuffer,
// implementing the two-pass emission spec.md §4.2 requires: label
// pre-registration, then byte emission, with forward references patched
// once every label in the batch has resolved.
type Assembler struct {
	buf    *CodeBuffer
	labels map[string]*labelEntry
	snekPrintAddr uint64
	snekErrorAddr uint64
}

func NewAssembler(buf *CodeBuffer, snekPrintAddr, snekErrorAddr uint64) *Assembler {
	return &Assembler{
		buf:           buf,
		labels:        make(map[string]*labelEntry),
		snekPrintAddr: snekPrintAddr,
		snekErrorAddr: snekErrorAddr,
	}
}

// Assemble emits one batch of IL, returning the byte offset its first
// instruction landed at (the entry point a caller takes a function pointer
// to). Label names re-declared within the same session are a programming
// error (never occurs because every generator names labels off a monotonic
// id counter).
func (a *Assembler) Assemble(batch []Instr) (int, error) {
	entry := a.buf.Offset()

	// pass (i): label pre-registration
	for _, in := range batch {
		if in.Op == OpLabel {
			if _, ok := a.labels[in.Label]; !ok {
				a.labels[in.Label] = &labelEntry{}
			}
		}
	}

	// pass (ii): emission
	var fixups []fixup
	for _, in := range batch {
		if err := a.emit(in, &fixups); err != nil {
			return entry, err
		}
	}

	for _, f := range fixups {
		e, ok := a.labels[f.label]
		if !ok || !e.resolved {
			return entry, fmt.Errorf("viva: undefined label %q", f.label)
		}
		if f.relative {
			rel := int32(e.offset - (f.codePos + f.size))
			a.buf.PatchInt32(f.codePos, rel)
		} else {
			a.buf.PatchUint64(f.codePos, a.buf.BaseAddr(e.offset))
		}
	}

	a.buf.Commit()
	return entry, nil
}

func (a *Assembler) w(b ...byte) error { return a.buf.Write(b) }

const rexW = 0x48

func modrmReg(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | (rm & 7)
}

// rexByte builds a REX prefix; regExt/rmExt mark whether reg/rm operands
// need bit 3 of their encoding carried in REX.R/REX.B.
func rexByte(w bool, regExt, rmExt bool) byte {
	b := byte(0x40)
	if w {
		b |= 0x08
	}
	if regExt {
		b |= 0x04
	}
	if rmExt {
		b |= 0x01
	}
	return b
}

func (a *Assembler) emitMovRegImm64(dst Reg, imm int64) error {
	if err := a.w(rexByte(true, false, dst >= 8) | 0, 0xB8+byte(dst&7)); err != nil {
		return err
	}
	return a.w(u64le(uint64(imm))...)
}

func u64le(v uint64) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24), byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56)}
}
func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// emitRegMemStack encodes `op dst, [rsp - slot*8]` / `op [rsp - slot*8], src`
// style instructions. rsp (and r12) require a SIB byte; the displacement is
// always emitted as disp32 for simplicity (a negative offset below rsp only
// ever grows as si grows, so disp8 would need constant re-checking — not
// worth the complexity for a compiler whose stack frames are small anyway).
func (a *Assembler) emitRegMemStack(opcode byte, reg Reg, slot int, storeDirection bool) error {
	disp := int32(-slot * 8)
	_ = storeDirection
	if err := a.w(rexByte(true, reg >= 8, false)); err != nil {
		return err
	}
	if err := a.w(opcode); err != nil {
		return err
	}
	if err := a.w(modrmReg(0x02, byte(reg), 0x04)); err != nil { // mod=10 (disp32), rm=100 (SIB)
		return err
	}
	if err := a.w(0x24); err != nil { // SIB: scale=0, index=100(none), base=100(rsp)
		return err
	}
	return a.w(u32le(uint32(disp))...)
}

func (a *Assembler) emitAluRegReg(opcode byte, dst, src Reg) error {
	if err := a.w(rexByte(true, src >= 8, dst >= 8)); err != nil {
		return err
	}
	if err := a.w(opcode); err != nil {
		return err
	}
	return a.w(modrmReg(0x03, byte(src), byte(dst)))
}

func (a *Assembler) emitRel32Call(target uint64) error {
	// r11 carries the call target, never rax: callers load their argument
	// into rax first (OpCallRustError/OpCallRustPrint below), and loading
	// the target into rax here would clobber it before the call executes.
	if err := a.emitMovRegImm64(R11, int64(target)); err != nil {
		return err
	}
	return a.w(rexByte(false, false, true), 0xFF, modrmReg(0x03, 2, byte(R11))) // call r11
}

func (a *Assembler) emit(in Instr, fixups *[]fixup) error {
	switch in.Op {
	case OpComment:
		return nil // no bytes at emit, per spec.md §4.2

	case OpLabel:
		a.labels[in.Label].offset = a.buf.Offset()
		a.labels[in.Label].resolved = true
		return nil

	case OpMovImm:
		return a.emitMovRegImm64(in.Dst, in.Imm)

	case OpMovReg:
		return a.emitAluRegReg(0x89, in.Dst, in.Src) // mov r/m, reg encoding: 0x89 dst<-modrm(reg=src)

	case OpMovFromStack:
		return a.emitRegMemStack(0x8B, in.Dst, in.Slot, false) // mov reg, r/m

	case OpMovToStack:
		return a.emitRegMemStack(0x89, in.Src, in.Slot, true) // mov r/m, reg

	case OpMovFromPtr:
		if err := a.emitMovRegImm64(in.Dst, in.Imm); err != nil {
			return err
		}
		// mov dst, [dst]
		if err := a.w(rexByte(true, in.Dst >= 8, in.Dst >= 8)); err != nil {
			return err
		}
		if err := a.w(0x8B); err != nil {
			return err
		}
		return a.w(modrmReg(0x00, byte(in.Dst), byte(in.Dst)))

	case OpMovToPtr:
		scratch := RDX
		if in.Src == RDX {
			scratch = R10
		}
		if err := a.emitMovRegImm64(scratch, in.Imm); err != nil {
			return err
		}
		if err := a.w(rexByte(true, in.Src >= 8, scratch >= 8)); err != nil {
			return err
		}
		if err := a.w(0x89); err != nil {
			return err
		}
		return a.w(modrmReg(0x00, byte(in.Src), byte(scratch)))

	case OpAddImm32:
		if err := a.w(rexByte(true, false, in.Dst >= 8), 0x81, modrmReg(0x03, 0, byte(in.Dst))); err != nil {
			return err
		}
		return a.w(u32le(uint32(int32(in.Imm)))...)

	case OpSubImm32:
		if err := a.w(rexByte(true, false, in.Dst >= 8), 0x81, modrmReg(0x03, 5, byte(in.Dst))); err != nil {
			return err
		}
		return a.w(u32le(uint32(int32(in.Imm)))...)

	case OpAddRaxStack:
		return a.emitRegMemStack(0x03, RAX, in.Slot, false) // add rax, r/m

	case OpSubRaxStack:
		return a.emitRegMemStack(0x2B, RAX, in.Slot, false) // sub rax, r/m

	case OpMulRaxStack:
		// imul rax, [rsp - slot*8]  (0F AF /r)
		if err := a.w(rexByte(true, false, false), 0x0F, 0xAF); err != nil {
			return err
		}
		if err := a.w(modrmReg(0x02, byte(RAX), 0x04)); err != nil {
			return err
		}
		if err := a.w(0x24); err != nil {
			return err
		}
		return a.w(u32le(uint32(int32(-in.Slot * 8)))...)

	case OpSar1:
		// sar rax, 1 -> REX.W D1 /7
		return a.w(rexByte(true, false, false), 0xD1, modrmReg(0x03, 7, byte(RAX)))

	case OpOrRegReg:
		return a.emitAluRegReg(0x09, in.Dst, in.Src)

	case OpXorRegReg:
		return a.emitAluRegReg(0x31, in.Dst, in.Src)

	case OpTestRegImm:
		if err := a.w(rexByte(true, false, in.Dst >= 8), 0xF7, modrmReg(0x03, 0, byte(in.Dst))); err != nil {
			return err
		}
		return a.w(u32le(uint32(in.Imm))...)

	case OpCmpRegImm:
		if err := a.w(rexByte(true, false, in.Dst >= 8), 0x81, modrmReg(0x03, 7, byte(in.Dst))); err != nil {
			return err
		}
		return a.w(u32le(uint32(int32(in.Imm)))...)

	case OpCmpRegStack:
		return a.emitRegMemStack(0x3B, in.Dst, in.Slot, false) // cmp reg, r/m

	case OpJmp:
		if err := a.w(0xE9); err != nil {
			return err
		}
		pos := a.buf.Offset()
		if err := a.w(0, 0, 0, 0); err != nil {
			return err
		}
		*fixups = append(*fixups, fixup{codePos: pos, size: 4, relative: true, label: in.Label})
		return nil

	case OpJno:
		if err := a.w(0x0F, 0x81); err != nil {
			return err
		}
		pos := a.buf.Offset()
		if err := a.w(0, 0, 0, 0); err != nil {
			return err
		}
		*fixups = append(*fixups, fixup{codePos: pos, size: 4, relative: true, label: in.Label})
		return nil

	case OpJcc:
		if err := a.w(0x0F, jccOpcode(in.Cond)); err != nil {
			return err
		}
		pos := a.buf.Offset()
		if err := a.w(0, 0, 0, 0); err != nil {
			return err
		}
		*fixups = append(*fixups, fixup{codePos: pos, size: 4, relative: true, label: in.Label})
		return nil

	case OpJmpStackSlot:
		// jmp QWORD [rsp + slot*8]  (FF /4)
		if err := a.w(0xFF); err != nil {
			return err
		}
		if in.Slot == 0 {
			return a.w(modrmReg(0x00, 4, 0x04), 0x24) // [rsp]
		}
		if err := a.w(modrmReg(0x01, 4, 0x04), 0x24); err != nil {
			return err
		}
		return a.w(byte(in.Slot * 8))

	case OpMovLabel:
		// mov r10, <imm64 placeholder>; mov [rsp - slot*8], r10
		if err := a.w(rexByte(true, false, R10 >= 8), 0xB8+byte(R10&7)); err != nil {
			return err
		}
		pos := a.buf.Offset()
		if err := a.w(u64le(0)...); err != nil {
			return err
		}
		*fixups = append(*fixups, fixup{codePos: pos, size: 8, relative: false, label: in.Label})
		return a.emitRegMemStack(0x89, R10, in.Slot, true)

	case OpCmovcc:
		return a.w(rexByte(true, in.Dst >= 8, in.Src >= 8), 0x0F, cmovOpcode(in.Cond), modrmReg(0x03, byte(in.Dst), byte(in.Src)))

	case OpCallRustError:
		// sub rsp,8; mov rax, code; call snek_error; add rsp,8. snek_error is
		// a real Go function reached through its ABIInternal entry point, not
		// a C-ABI symbol, so its argument travels in rax, not rdi (confirmed
		// against the teacher's jit_amd64.go, whose hand-written trampoline
		// reads its own argument starting at rax for the same reason).
		if err := a.w(rexByte(true, false, false), 0x83, modrmReg(0x03, 5, byte(RSP)), 0x08); err != nil {
			return err
		}
		if err := a.emitMovRegImm64(RAX, in.Imm); err != nil {
			return err
		}
		if err := a.emitRel32Call(a.snekErrorAddr); err != nil {
			return err
		}
		return a.w(rexByte(true, false, false), 0x83, modrmReg(0x03, 0, byte(RSP)), 0x08)

	case OpCallRustPrint:
		// sub rsp,8; mov rax, src; call snek_print; add rsp,8. Same
		// ABIInternal argument register as OpCallRustError above. Preserving
		// the live value and the input stash across the call is the codegen
		// layer's job (codegen_expr.go's UnOp(Print) lowering), not the
		// encoder's: neither rax nor any other register survives a call into
		// arbitrary Go code, so that lowering round-trips both through stack
		// slots rather than registers.
		if err := a.w(rexByte(true, false, false), 0x83, modrmReg(0x03, 5, byte(RSP)), 0x08); err != nil {
			return err
		}
		if in.Src != RAX {
			if err := a.emitAluRegReg(0x89, RAX, in.Src); err != nil {
				return err
			}
		}
		if err := a.emitRel32Call(a.snekPrintAddr); err != nil {
			return err
		}
		return a.w(rexByte(true, false, false), 0x83, modrmReg(0x03, 0, byte(RSP)), 0x08)

	case OpPushReg:
		if in.Dst >= 8 {
			if err := a.w(0x41); err != nil {
				return err
			}
		}
		return a.w(0x50 + byte(in.Dst&7))

	case OpPopReg:
		if in.Dst >= 8 {
			if err := a.w(0x41); err != nil {
				return err
			}
		}
		return a.w(0x58 + byte(in.Dst&7))

	case OpRet:
		return a.w(0xC3)

	default:
		return fmt.Errorf("viva: unhandled IL op %v", in.Op)
	}
}

func jccOpcode(c Cond) byte {
	switch c {
	case CondE:
		return 0x84
	case CondNE:
		return 0x85
	case CondL:
		return 0x8C
	case CondLE:
		return 0x8E
	case CondG:
		return 0x8F
	case CondGE:
		return 0x8D
	default:
		panic("viva: bad condition code")
	}
}

func cmovOpcode(c Cond) byte {
	switch c {
	case CondE:
		return 0x44
	case CondNE:
		return 0x45
	case CondL:
		return 0x4C
	case CondLE:
		return 0x4E
	case CondG:
		return 0x4F
	case CondGE:
		return 0x4D
	default:
		panic("viva: bad condition code")
	}
}
