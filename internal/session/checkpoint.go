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
package session

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/launix-de/viva/viva"
)

// Checkpoint persists a session's define_env and registered function names
// so a later process can restore the define values without re-running
// them; function bodies have to be fed again (the executable code buffer
// itself never survives a checkpoint, per
// SPEC_FULL.md §4.12 — only the `define` cell values and the names a
// subsequent `fun` form would collide with). The codec is chosen by file
// extension: ".lz4" for a fast, frequent local save, anything else (".xz"
// by convention) for an archival one, mirroring the gzip/xz stream-codec
// pair the teacher exposes as Scheme builtins.
func (m *Manager) Checkpoint(ctx context.Context, id uuid.UUID, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, closeW, err := newCompressedWriter(path, f)
	if err != nil {
		return err
	}

	err = m.With(ctx, id, func(s *viva.Session) error {
		return writeCheckpoint(w, s)
	})
	if cerr := closeW(); err == nil {
		err = cerr
	}
	return err
}

// Restore reads a checkpoint written by Checkpoint back into a live
// session's define_env, and returns the checkpoint's registered-function-
// name set. Function bodies are not restored (they were never serialized,
// per SPEC_FULL.md §4.12's "re-JITting from source on restore is
// simpler") and the returned names are not injected into the session's own
// function-name set directly: doing so would make feedFun's duplicate-name
// check reject the very `fun` re-feeds the caller is expected to perform.
// The caller uses the returned names to know which `fun` definitions the
// checkpointed program had, so it can re-feed exactly those.
func (m *Manager) Restore(ctx context.Context, id uuid.UUID, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := newDecompressedReader(path, f)
	if err != nil {
		return nil, err
	}

	env, funcNames, err := readCheckpoint(r)
	if err != nil {
		return nil, err
	}
	err = m.With(ctx, id, func(s *viva.Session) error {
		s.RestoreDefineEnv(env)
		return nil
	})
	return funcNames, err
}

func newCompressedWriter(path string, f *os.File) (io.Writer, func() error, error) {
	bw := bufio.NewWriterSize(f, 16*1024)
	if strings.EqualFold(filepath.Ext(path), ".lz4") {
		zw := lz4.NewWriter(bw)
		return zw, func() error {
			if err := zw.Close(); err != nil {
				return err
			}
			return bw.Flush()
		}, nil
	}
	zw, err := xz.NewWriter(bw)
	if err != nil {
		return nil, nil, fmt.Errorf("checkpoint: xz writer: %w", err)
	}
	return zw, func() error {
		if err := zw.Close(); err != nil {
			return err
		}
		return bw.Flush()
	}, nil
}

func newDecompressedReader(path string, f *os.File) (io.Reader, error) {
	if strings.EqualFold(filepath.Ext(path), ".lz4") {
		return lz4.NewReader(f), nil
	}
	zr, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: xz reader: %w", err)
	}
	return zr, nil
}

// writeCheckpoint emits two back-to-back length-prefixed records: the
// define_env (a 4-byte entry count, then per entry a 2-byte name length,
// the name bytes, and the define's tagged 8-byte value) followed by the
// registered-function-name set (a 4-byte count, then per entry a 2-byte
// name length and the name bytes) SPEC_FULL.md §4.12 requires alongside it.
func writeCheckpoint(w io.Writer, s *viva.Session) error {
	env := s.DefineEnv()
	if err := binary.Write(w, binary.LittleEndian, uint32(len(env))); err != nil {
		return err
	}
	for name, v := range env {
		if len(name) > 0xffff {
			return fmt.Errorf("checkpoint: define name too long: %s", name)
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(len(name))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int64(v)); err != nil {
			return err
		}
	}

	funcNames := s.FuncNames()
	if err := binary.Write(w, binary.LittleEndian, uint32(len(funcNames))); err != nil {
		return err
	}
	for name := range funcNames {
		if len(name) > 0xffff {
			return fmt.Errorf("checkpoint: function name too long: %s", name)
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(len(name))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, name); err != nil {
			return err
		}
	}
	return nil
}

func readCheckpoint(r io.Reader) (map[string]viva.Value, []string, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, nil, err
	}
	env := make(map[string]viva.Value, count)
	for i := uint32(0); i < count; i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, nil, err
		}
		nameBuf := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return nil, nil, err
		}
		var raw int64
		if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
			return nil, nil, err
		}
		env[string(nameBuf)] = viva.Value(raw)
	}

	var funcCount uint32
	if err := binary.Read(r, binary.LittleEndian, &funcCount); err != nil {
		return nil, nil, err
	}
	funcNames := make([]string, funcCount)
	for i := uint32(0); i < funcCount; i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, nil, err
		}
		nameBuf := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return nil, nil, err
		}
		funcNames[i] = string(nameBuf)
	}
	return env, funcNames, nil
}
