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

// Command viva is the CLI front-end spec.md §6 describes: -c compiles a
// program file to a textual assembly listing, -e JIT-evaluates it and runs
// main once, -g does both, -i drops into an interactive REPL session.
package main

import (
	"fmt"
	"os"

	"github.com/launix-de/viva/internal/session"
	"github.com/launix-de/viva/parse"
	"github.com/launix-de/viva/viva"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: viva -c <input.snek> <output.s>")
	fmt.Fprintln(os.Stderr, "       viva -e <input.snek>")
	fmt.Fprintln(os.Stderr, "       viva -g <input.snek> <output.s>")
	fmt.Fprintln(os.Stderr, "       viva -i")
}

func main() {
	args := os.Args
	if len(args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch args[1] {
	case "-c":
		if len(args) < 4 {
			usage()
			os.Exit(1)
		}
		err = generateMode(args[2], args[3])
	case "-e":
		if len(args) < 3 {
			usage()
			os.Exit(1)
		}
		_, err = evalMode(args[2])
	case "-g":
		if len(args) < 4 {
			usage()
			os.Exit(1)
		}
		if err = generateMode(args[2], args[3]); err == nil {
			_, err = evalMode(args[2])
		}
	case "-i":
		err = replMode()
	default:
		fmt.Fprintf(os.Stderr, "Unknown flag: %s\n", args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readProgram(path string) (*viva.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse.ParseProgram(string(src))
}

// generateMode renders a program file to the textual assembly listing
// (spec.md §6's "-c" mode); it never executes anything.
func generateMode(inPath, outPath string) error {
	prog, err := readProgram(inPath)
	if err != nil {
		return err
	}
	il, err := viva.CompileProgramToIL(prog)
	if err != nil {
		return err
	}
	asm := viva.RenderProgram(il)
	return os.WriteFile(outPath, []byte(asm), 0644)
}

// evalMode JIT-compiles and runs a program file's main expression with
// input 0, the "-e" mode (spec.md §6: "parse, JIT-compile, run, print
// result"). Returns the result too, for "-g" mode's sake and for tests.
func evalMode(inPath string) (int64, error) {
	prog, err := readProgram(inPath)
	if err != nil {
		return 0, err
	}
	sess, err := viva.NewSession()
	if err != nil {
		return 0, err
	}
	defer sess.Close()

	if err := sess.LoadDefinitions(prog.Defs); err != nil {
		return 0, err
	}
	return sess.RunMain(&prog.Main, 0, true)
}

func replMode() error {
	mgr := session.NewManager()
	id, err := mgr.Open()
	if err != nil {
		return err
	}
	defer mgr.Close(id)
	return runRepl(mgr, id)
}
