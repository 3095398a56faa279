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

package dso_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jetsetilly/n64build/artifacts"
	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/dso"
	"github.com/jetsetilly/n64build/environment"
	"github.com/jetsetilly/n64build/test"
	"github.com/jetsetilly/n64build/test/faketools"
	"github.com/jetsetilly/n64build/toolchain"
	"github.com/jetsetilly/n64build/toolrun"
)

type fixture struct {
	env    *environment.Environment
	store  *artifacts.Store
	run    *toolrun.FakeRunner
	tc     *toolchain.Toolchain
	linker *dso.Linker
}

func newFixture(t *testing.T, modules string, sources map[string]string) *fixture {
	t.Helper()

	dir := t.TempDir()
	for name, content := range sources {
		test.WriteFile(t, filepath.Join(dir, filepath.FromSlash(name)), []byte(content))
	}

	m, err := environment.ParseModules(modules)
	test.DemandSuccess(t, err)

	env := &environment.Environment{
		ProjectDir: dir,
		SourceDir:  "src",
		BuildDir:   "build",
		ProgName:   "firmware",
		Modules:    m,
		Quiet:      true,
		Toolchain: environment.Toolchain{
			Root:   "/opt/n64",
			Prefix: "mips64-elf-",
		},
	}

	store, err := artifacts.NewStore(env)
	test.DemandSuccess(t, err)

	run := toolrun.NewFakeRunner()
	faketools.Install(run, env.Toolchain.Prefix)
	tc := &toolchain.Toolchain{Root: env.Toolchain.Root, Prefix: env.Toolchain.Prefix}

	return &fixture{
		env:    env,
		store:  store,
		run:    run,
		tc:     tc,
		linker: dso.NewLinker(env, tc, run, store),
	}
}

// build compiles the module sources and links every module.
func (f *fixture) build(t *testing.T) []string {
	t.Helper()
	test.DemandSuccess(t, dso.Register(f.env, f.store))

	for _, tg := range f.store.Targets(artifacts.Module) {
		cmd := f.tc.Compile(tg.Source, f.store.ObjectPath(tg))
		test.DemandSuccess(t, f.run.Run(context.Background(), cmd))
	}

	var elfs []string
	for _, m := range f.env.Modules {
		out, err := f.linker.Link(context.Background(), m.Name)
		test.DemandSuccess(t, err)
		elfs = append(elfs, out.ELF)
	}
	return elfs
}

func TestLink(t *testing.T) {
	f := newFixture(t, "plugin.dso=src/plugin/a.c src/plugin/b.c", map[string]string{
		"src/plugin/a.c": "@define plugin_init\n@extern foo\n",
		"src/plugin/b.c": "@define plugin_b\n@extern plugin_init\n",
	})
	elfs := f.build(t)
	test.DemandEquality(t, len(elfs), 1)

	test.ExpectSuccess(t, test.FileExists(f.store.ModuleDSO("plugin")))
	test.ExpectSuccess(t, test.FileExists(f.store.ModuleSym("plugin")))

	// undefined symbols are not a link error. plugin_init is defined by the
	// module itself and so is not an import
	imports, err := dso.Imports(elfs[0])
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, strings.Join(imports, " "), "foo")

	ld := f.run.Find("mips64-elf-ld")
	test.DemandEquality(t, len(ld), 1)
	test.ExpectSuccess(t, strings.Contains(strings.Join(ld[0].Args, " "), "--unresolved-symbols=ignore-all"))
}

func TestExternsUnion(t *testing.T) {
	f := newFixture(t, "a.dso=src/a.c; b.dso=src/b.c", map[string]string{
		"src/a.c": "@extern foo\n@extern only_a\n",
		"src/b.c": "@extern foo\n@extern only_b\n",
	})
	elfs := f.build(t)
	test.DemandEquality(t, len(elfs), 2)

	out := f.store.Program(artifacts.SuffixExterns)

	union, err := dso.Externs(elfs, out)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, strings.Join(union, " "), "foo only_a only_b")

	syms, err := dso.ReadExterns(out)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, strings.Join(syms, " "), "foo only_a only_b")
	test.ExpectSuccess(t, strings.Contains(string(test.ReadFile(t, out)), "EXTERN(foo)\n"))

	// omitting a module drops only its unique imports
	union, err = dso.Externs(elfs[1:], out)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, strings.Join(union, " "), "foo only_b")

	// the fragment is replaced and not appended to
	syms, err = dso.ReadExterns(out)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, strings.Join(syms, " "), "foo only_b")
}

func TestMissingSource(t *testing.T) {
	f := newFixture(t, "a.dso=src/a.c src/missing.c", map[string]string{
		"src/a.c": "@extern foo\n",
	})

	err := dso.Register(f.env, f.store)
	test.ExpectSuccess(t, curated.Is(err, dso.MissingSource))

	// nothing is registered when a source is missing
	test.ExpectEquality(t, len(f.store.Targets(artifacts.Module)), 0)
	test.ExpectEquality(t, len(f.run.Commands()), 0)
}

func TestCheckExterns(t *testing.T) {
	dir := t.TempDir()
	obj := filepath.Join(dir, "a.o")
	frag := filepath.Join(dir, "firmware.externs")

	test.WriteFile(t, obj, []byte("o"))

	err := dso.CheckExterns(frag, obj)
	test.ExpectSuccess(t, curated.Is(err, dso.StaleExterns))

	test.WriteFile(t, frag, []byte("EXTERN(foo)\n"))
	old := time.Now().Add(-time.Hour)
	test.DemandSuccess(t, os.Chtimes(obj, old, old))
	test.ExpectSuccess(t, dso.CheckExterns(frag, obj))

	// object rebuilt after the fragment
	now := time.Now().Add(time.Minute)
	test.DemandSuccess(t, os.Chtimes(obj, now, now))
	err = dso.CheckExterns(frag, obj)
	test.ExpectSuccess(t, curated.Is(err, dso.StaleExterns))
}

func TestLinkFailure(t *testing.T) {
	f := newFixture(t, "a.dso=src/a.c", map[string]string{
		"src/a.c": "@extern foo\n",
	})
	test.DemandSuccess(t, dso.Register(f.env, f.store))
	for _, tg := range f.store.Targets(artifacts.Module) {
		test.DemandSuccess(t, f.run.Run(context.Background(), f.tc.Compile(tg.Source, f.store.ObjectPath(tg))))
	}

	f.run.Fail("n64dso")
	_, err := f.linker.Link(context.Background(), "a")
	test.ExpectSuccess(t, curated.Has(err, toolrun.FakeFailure))
	test.ExpectSuccess(t, strings.Contains(err.Error(), "dso: a:"))
}
