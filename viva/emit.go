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

// CompileProgramToIL lowers a whole Program (function definitions plus one
// main expression) to a single flat IL list, the shape the -c/-g CLI modes
// render to textual NASM-style assembly (spec.md §6). Function names are
// registered in one first pass, exactly as spec.md §4.4 describes, so
// mutual and self recursion resolve regardless of definition order.
func CompileProgramToIL(prog *Program) ([]Instr, error) {
	funcNames := make(map[string]bool, len(prog.Defs))
	for _, def := range prog.Defs {
		if IsKeyword(def.Name) {
			return nil, newStaticError("'%s' is a keyword", def.Name)
		}
		if funcNames[def.Name] {
			return nil, newStaticError("Duplicate function name")
		}
		funcNames[def.Name] = true
	}

	defineEnv := map[string]Value{}
	var out []Instr
	for i := range prog.Defs {
		il, err := compileFunctionDef(defineEnv, funcNames, &prog.Defs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, il...)
	}

	targets := map[string]bool{}
	collectSetTargets(&prog.Main, targets)
	// A define-less program's set!-targets can never resolve to an existing
	// define_env entry (there are no top-level defines in file mode), so
	// definePtrs is always empty here; targets is only walked to keep the
	// code path identical to the REPL driver's.
	ctx := NewTopLevelContext(defineEnv, map[string]int64{}, funcNames)
	main, err := compileExpr(ctx, &prog.Main)
	if err != nil {
		return nil, err
	}
	out = append(out, PushReg(RBX), PushReg(R12))
	out = append(out, main...)
	out = append(out, PopReg(R12), PopReg(RBX))
	return out, nil
}
