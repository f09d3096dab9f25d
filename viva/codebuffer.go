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
	"unsafe"

	"golang.org/x/sys/unix"
)

// defaultArenaSize is the virtual-memory reservation made for one session's
// code buffer. Sized generously: a REPL session that needs more than this
// many bytes of machine code is not this engine's target workload (there is
// no cross-architecture portability concern, spec's Non-goals exclude it,
// so a single fixed-capacity reservation per session is simpler than
// chaining relocatable pages and sidesteps the "no retained pointers across
// a growing assembler's reallocation" hazard entirely).
const defaultArenaSize = 4 << 20 // 4 MiB

// page chains a dual RW/RX mapping of the same backing memfd, mirroring the
// RwBase/RxBase split of a teacher-style JITWriter: code is written through
// rw and executed through rx, so no mprotect toggle is needed between
// writing a new form and running previously committed ones. Since the
// reservation is made up-front (see defaultArenaSize) there is in practice
// only ever one page per session; the Next link exists so a session that
// did exhaust its arena could extend without invalidating already-handed-out
// rx addresses of earlier pages.
type page struct {
	rw   []byte
	rx   []byte
	next *page
}

// CodeBuffer is the fixed-capacity (defaultArenaSize), append-only
// executable region one REPL session's assembler writes into; a write past
// the capacity fails rather than growing the buffer. Bytes already written
// are never rewritten; "commit" is the operation that marks new bytes as
// safe to jump into through the rx mapping (here, since rw and rx are two
// views of the same pages, commit is just a watermark bump, not an
// mprotect call).
type CodeBuffer struct {
	first     *page
	cur       *page
	offset    int // write offset within cur, bytes
	committed int // bytes within cur.rx considered safe to jump into
	total     int // bytes written across the whole buffer (for metrics)
}

// NewCodeBuffer reserves one arena-sized dual mapping.
func NewCodeBuffer() (*CodeBuffer, error) {
	p, err := newPage(defaultArenaSize)
	if err != nil {
		return nil, err
	}
	return &CodeBuffer{first: p, cur: p}, nil
}

func newPage(size int) (*page, error) {
	fd, err := unix.MemfdCreate("viva-jit", 0)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	defer unix.Close(fd)
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, fmt.Errorf("ftruncate: %w", err)
	}
	rw, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap(rw): %w", err)
	}
	rx, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_EXEC, unix.MAP_SHARED)
	if err != nil {
		unix.Munmap(rw)
		return nil, fmt.Errorf("mmap(rx): %w", err)
	}
	return &page{rw: rw, rx: rx}, nil
}

// Close releases every page's mappings. Called from the session-exit hook
// (internal/session), not deferred in a hot path.
func (b *CodeBuffer) Close() error {
	var firstErr error
	for p := b.first; p != nil; p = p.next {
		if err := unix.Munmap(p.rw); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := unix.Munmap(p.rx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Offset returns the current absolute write position, used by the
// assembler to remember where one REPL form's entry point begins.
func (b *CodeBuffer) Offset() int {
	return b.offset
}

func (b *CodeBuffer) ensure(n int) error {
	if b.offset+n <= len(b.cur.rw) {
		return nil
	}
	return fmt.Errorf("viva: code buffer exhausted (capacity %d bytes); sessions are not designed to compile more code than one arena holds", len(b.cur.rw))
}

// WriteByte appends one byte at the current write position.
func (b *CodeBuffer) WriteByte(c byte) error {
	if err := b.ensure(1); err != nil {
		return err
	}
	b.cur.rw[b.offset] = c
	b.offset++
	b.total++
	return nil
}

// Write appends p at the current write position.
func (b *CodeBuffer) Write(p []byte) error {
	if err := b.ensure(len(p)); err != nil {
		return err
	}
	copy(b.cur.rw[b.offset:], p)
	b.offset += len(p)
	b.total += len(p)
	return nil
}

// PatchInt32 overwrites a previously-written rel32/abs32 slot. Only ever
// called by fixup resolution before the affected bytes are committed.
func (b *CodeBuffer) PatchInt32(at int, v int32) {
	*(*int32)(unsafe.Pointer(&b.cur.rw[at])) = v
}

// PatchUint64 overwrites a previously-written absolute-address slot (used to
// materialize a MovLabel target once its label resolves).
func (b *CodeBuffer) PatchUint64(at int, v uint64) {
	*(*uint64)(unsafe.Pointer(&b.cur.rw[at])) = v
}

// Commit establishes the happens-before between the writer of new bytes and
// any jump into them: after Commit returns, every byte written so far is
// safe to execute via EntryPoint.
func (b *CodeBuffer) Commit() {
	b.committed = b.offset
}

// EntryPoint returns a callable func for the code at the given offset,
// which must lie before the last Commit. Called this way the code is a
// genuine Go func(int64) int64 value, so the tagged "input" argument and
// the i64 result actually cross through rax under Go's own calling
// convention; the assembled IL bridges rax into rdi as its first
// instruction so the rest of codegen can keep assuming spec.md §6's
// documented rdi-based convention. REPL turns that never reference the
// identifier input simply call it with 0.
func (b *CodeBuffer) EntryPoint(offset int) func(int64) int64 {
	if offset < 0 || offset >= b.committed {
		panic("viva: entry point offset is not committed")
	}
	fn := unsafe.Pointer(&struct{ *byte }{&b.cur.rx[offset]})
	return *(*func(int64) int64)(unsafe.Pointer(&fn))
}

// BaseAddr returns the absolute rx-mapped address of a committed offset,
// used to materialize MovLabel targets and cross-form call sites as 64-bit
// immediates.
func (b *CodeBuffer) BaseAddr(offset int) uint64 {
	return uint64(uintptr(unsafe.Pointer(&b.cur.rx[offset])))
}

// TotalBytes reports how many bytes have ever been written, for metrics.
func (b *CodeBuffer) TotalBytes() int {
	return b.total
}
