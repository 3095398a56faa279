// This file is part of N64Build.
//
// N64Build is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// N64Build is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with N64Build.  If not, see <https://www.gnu.org/licenses/>.

package dso

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jetsetilly/n64build/artifacts"
	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/environment"
	"github.com/jetsetilly/n64build/logger"
	"github.com/jetsetilly/n64build/toolchain"
	"github.com/jetsetilly/n64build/toolrun"
)

// MissingSource is returned when a module declaration names a source file
// that does not exist. The values are the module name and the path.
const MissingSource = "dso: %s: source file does not exist (%s)"

// Register the sources of every module declared in the environment with the
// store. Returns MissingSource before anything else is done if a source
// does not exist.
func Register(env *environment.Environment, store *artifacts.Store) error {
	for _, m := range env.Modules {
		for _, src := range m.Sources {
			if _, err := os.Stat(env.ProjectPath(src)); err != nil {
				return curated.Errorf(MissingSource, m.Name, src)
			}
		}
	}

	for _, m := range env.Modules {
		for _, src := range m.Sources {
			if _, err := store.Register(env.ProjectPath(src), artifacts.Module, m.Name); err != nil {
				return curated.Errorf("dso: %s: %v", m.Name, err)
			}
		}
	}

	return nil
}

// Sources returns the absolute path of every module source. The paths are
// suitable for excluding module sources from artifacts.Store.Scan().
func Sources(env *environment.Environment) []string {
	var s []string
	for _, m := range env.Modules {
		for _, src := range m.Sources {
			s = append(s, env.ProjectPath(src))
		}
	}
	return s
}

// Output is the result of linking a module.
type Output struct {
	Module string

	// the linked module. the input to Externs()
	ELF string

	// the module blob and its symbol table
	DSO string
	Sym string
}

// Linker links the dynamic modules of a build.
type Linker struct {
	tc    *toolchain.Toolchain
	run   toolrun.Runner
	store *artifacts.Store
	perm  logger.Permission
}

// NewLinker is the preferred method of initialisation for the Linker type.
func NewLinker(env *environment.Environment, tc *toolchain.Toolchain, run toolrun.Runner, store *artifacts.Store) *Linker {
	return &Linker{
		tc:    tc,
		run:   run,
		store: store,
		perm:  env,
	}
}

// Objects returns the object files of the module in registration order.
func (l *Linker) Objects(module string) []string {
	var objs []string
	for _, t := range l.store.ModuleTargets(module) {
		objs = append(objs, l.store.ObjectPath(t))
	}
	return objs
}

// Link the module. The objects of the module must already exist.
func (l *Linker) Link(ctx context.Context, module string) (Output, error) {
	out := Output{
		Module: module,
		ELF:    l.store.ModuleELF(module),
		DSO:    l.store.ModuleDSO(module),
		Sym:    l.store.ModuleSym(module),
	}

	objs := l.Objects(module)
	if len(objs) == 0 {
		return out, curated.Errorf("dso: %s: module has no sources", module)
	}

	for _, d := range []string{filepath.Dir(out.ELF), filepath.Dir(out.DSO)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return out, curated.Errorf("dso: %s: %v", module, err)
		}
	}

	cmds := []toolrun.Command{
		l.tc.LinkDSO(out.ELF, l.store.ModuleMap(module), objs),
		l.tc.DSOConvert(out.ELF, filepath.Dir(out.DSO)),
		l.tc.Symbols(out.ELF, out.Sym),
	}

	for _, cmd := range cmds {
		if err := l.run.Run(ctx, cmd); err != nil {
			return out, curated.Errorf("dso: %s: %v", module, err)
		}
	}

	logger.Logf(l.perm, "dso", "%s: linked %d objects", module, len(objs))

	return out, nil
}
