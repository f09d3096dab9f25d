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
package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/launix-de/viva/internal/metrics"
	"github.com/launix-de/viva/internal/session"
	"github.com/launix-de/viva/internal/vlog"
	"github.com/launix-de/viva/parse"
	"github.com/launix-de/viva/viva"
)

const (
	newprompt  = "\033[32m>\033[0m "
	contprompt = "\033[32m.\033[0m "
)

// runRepl drives one interactive session against mgr, reading lines with
// readline the way the teacher's own Repl does, but replacing its
// panic/recover continuation idiom with parse.ErrIncomplete and adding the
// two session-control operator commands SPEC_FULL.md §6 adds: (stats) and
// (checkpoint "path").
func runRepl(mgr *session.Manager, id uuid.UUID) error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".viva-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return err
	}
	defer l.Close()
	l.CaptureExitSignal()

	ctx := context.Background()
	oldline := ""
	for {
		line, err := l.Readline()
		line = oldline + line
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			oldline = ""
			l.SetPrompt(newprompt)
			continue
		} else if err == io.EOF {
			fmt.Println("\ngoodbye")
			break
		} else if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		// Only the session-control command words are folded to lower case
		// here (exit/quit plus the two operator commands below); everything
		// else keeps the case the user typed (SPEC_FULL.md §9).
		switch strings.ToLower(norm.NFC.String(strings.TrimSpace(line))) {
		case "exit", "quit":
			fmt.Println("goodbye")
			return nil
		}

		if handled, err := runOperatorCommand(ctx, mgr, id, line); handled {
			if err != nil {
				fmt.Println(err)
			}
			oldline = ""
			l.SetPrompt(newprompt)
			continue
		}

		form, perr := parse.ParseReplForm(line)
		if perr == parse.ErrIncomplete {
			oldline = line + "\n"
			l.SetPrompt(contprompt)
			continue
		}
		oldline = ""
		l.SetPrompt(newprompt)
		if perr != nil {
			fmt.Println(perr)
			continue
		}

		werr := mgr.With(ctx, id, func(s *viva.Session) error {
			result, ferr := s.Feed(form)
			if ferr != nil {
				return ferr
			}
			if form.Kind == viva.ReplExprForm && result != "" {
				vlog.Debugf("repl: form result %s", result)
			}
			return nil
		})
		if werr != nil {
			fmt.Println(werr)
		}
	}
	return nil
}

// runOperatorCommand recognizes the two session-control forms that are not
// Viva source: only these two command words are case-folded (normalized to
// NFC first so a combining-character variant of the same command still
// matches), every other REPL line keeps its casing exactly as typed, since
// Viva identifiers and keywords are case-sensitive (SPEC_FULL.md §9).
func runOperatorCommand(ctx context.Context, mgr *session.Manager, id uuid.UUID, line string) (bool, error) {
	trimmed := strings.TrimSpace(line)
	folded := strings.ToLower(norm.NFC.String(trimmed))

	if folded == "(stats)" {
		fmt.Println(metrics.Default.Snapshot())
		return true, nil
	}

	const prefix = "(checkpoint "
	if strings.HasPrefix(folded, prefix) && strings.HasSuffix(trimmed, ")") {
		arg := strings.TrimSpace(trimmed[len(prefix) : len(trimmed)-1])
		path := strings.Trim(arg, `"`)
		if path == "" {
			return true, fmt.Errorf("checkpoint: missing path")
		}
		return true, mgr.Checkpoint(ctx, id, path)
	}

	return false, nil
}
