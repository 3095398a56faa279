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

package artifacts_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jetsetilly/n64build/artifacts"
	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/environment"
	"github.com/jetsetilly/n64build/test"
)

func newStore(t *testing.T) (*artifacts.Store, string) {
	t.Helper()
	dir := t.TempDir()
	env := &environment.Environment{
		ProjectDir: dir,
		SourceDir:  "src",
		BuildDir:   "build",
		ProgName:   "firmware",
	}
	s, err := artifacts.NewStore(env)
	test.DemandSuccess(t, err)
	return s, dir
}

func TestUnitID(t *testing.T) {
	test.ExpectEquality(t, artifacts.UnitID("crash.S"), "crash")
	test.ExpectEquality(t, artifacts.UnitID("rsp_crash.S"), "rsp_crash")
	test.ExpectEquality(t, artifacts.UnitID("gfx/rsp_tri.S"), "gfx_rsp_tri")
	test.ExpectEquality(t, artifacts.UnitID("gfx/rsp.tri.S"), "gfx_rsp_tri")
	test.ExpectEquality(t, artifacts.UnitID("audio-mixer/rsp_mix.S"), "audio_mixer_rsp_mix")
}

func TestClassify(t *testing.T) {
	test.ExpectEquality(t, artifacts.Classify("src/main.c"), artifacts.Primary)
	test.ExpectEquality(t, artifacts.Classify("src/start.S"), artifacts.Primary)
	test.ExpectEquality(t, artifacts.Classify("src/gfx/rsp_tri.S"), artifacts.Coprocessor)
	test.ExpectEquality(t, artifacts.Classify("src/rsp_helper.c"), artifacts.Primary)

	test.ExpectSuccess(t, artifacts.IsSource("main.cpp"))
	test.ExpectSuccess(t, artifacts.IsSource("rsp_tri.S"))
	test.ExpectFailure(t, artifacts.IsSource("main.h"))
}

func TestDuplicateUnitID(t *testing.T) {
	s, dir := newStore(t)

	_, err := s.Register(filepath.Join(dir, "src", "gfx", "rsp_tri.S"), artifacts.Coprocessor, "")
	test.ExpectSuccess(t, err)

	// normalises to the same identifier
	_, err = s.Register(filepath.Join(dir, "src", "gfx.rsp_tri.S"), artifacts.Coprocessor, "")
	test.ExpectSuccess(t, curated.Is(err, artifacts.DuplicateUnitID))

	// the failed registration is not recorded
	test.ExpectEquality(t, len(s.Targets(artifacts.Coprocessor)), 1)

	// primary sources have no unit symbols. their artifacts are named after
	// the relative path so a matching unit ID is not a collision
	_, err = s.Register(filepath.Join(dir, "src", "gfx_rsp_tri.c"), artifacts.Primary, "")
	test.ExpectSuccess(t, err)

	_, err = s.Register(filepath.Join(dir, "elsewhere.c"), artifacts.Primary, "")
	test.ExpectSuccess(t, curated.Is(err, artifacts.SourceOutsideTree))
}

func TestScanPrimaryUnitIDs(t *testing.T) {
	s, dir := newStore(t)

	test.WriteFile(t, filepath.Join(dir, "src", "foo", "bar.c"), []byte(""))
	test.WriteFile(t, filepath.Join(dir, "src", "foo_bar.c"), []byte(""))

	err := s.Scan(nil)
	test.DemandSuccess(t, err)

	prim := s.Targets(artifacts.Primary)
	test.DemandEquality(t, len(prim), 2)
	test.ExpectEquality(t, prim[0].Unit, prim[1].Unit)
	test.ExpectInequality(t, s.ObjectPath(prim[0]), s.ObjectPath(prim[1]))
}

func TestScan(t *testing.T) {
	s, dir := newStore(t)

	test.WriteFile(t, filepath.Join(dir, "src", "main.c"), []byte("int main() {}"))
	test.WriteFile(t, filepath.Join(dir, "src", "main.h"), []byte(""))
	test.WriteFile(t, filepath.Join(dir, "src", "rsp_crash.S"), []byte(""))
	test.WriteFile(t, filepath.Join(dir, "src", "gfx", "rsp_tri.S"), []byte(""))
	test.WriteFile(t, filepath.Join(dir, "src", "plugin", "a.c"), []byte(""))

	err := s.Scan([]string{filepath.Join(dir, "src", "plugin", "a.c")})
	test.DemandSuccess(t, err)

	prim := s.Targets(artifacts.Primary)
	test.DemandEquality(t, len(prim), 1)
	test.ExpectEquality(t, prim[0].Rel, "main.c")
	test.ExpectEquality(t, prim[0].Unit, "main")

	cop := s.Targets(artifacts.Coprocessor)
	test.DemandEquality(t, len(cop), 2)
	test.ExpectEquality(t, cop[0].Unit, "gfx_rsp_tri")
	test.ExpectEquality(t, cop[1].Unit, "rsp_crash")

	_, err = s.Register(filepath.Join(dir, "src", "plugin", "a.c"), artifacts.Module, "plugin")
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, len(s.ModuleTargets("plugin")), 1)
	test.ExpectEquality(t, len(s.ModuleTargets("other")), 0)
}

func TestPaths(t *testing.T) {
	s, dir := newStore(t)
	build := filepath.Join(dir, "build")

	tg, err := s.Register(filepath.Join(dir, "src", "gfx", "rsp_tri.S"), artifacts.Coprocessor, "")
	test.DemandSuccess(t, err)

	test.ExpectEquality(t, s.ObjectPath(tg), filepath.Join(build, "gfx", "rsp_tri.o"))
	test.ExpectEquality(t, s.UnitExecutablePath(tg), filepath.Join(build, "gfx", "rsp_tri.elf"))
	test.ExpectEquality(t, s.BlobPath(tg, "text"), filepath.Join(build, "gfx", "rsp_tri.text.bin"))
	test.ExpectEquality(t, s.SectionObjectPath(tg, "data"), filepath.Join(build, "gfx", "rsp_tri.data.o"))

	test.ExpectEquality(t, s.Program(artifacts.SuffixImage), filepath.Join(build, "firmware.z64"))
	test.ExpectEquality(t, s.Program(artifacts.SuffixCompressed), filepath.Join(build, "firmware.elf.stripped.compressed"))
	test.ExpectEquality(t, s.ModuleDSO("plugin"), filepath.Join(build, "filesystem", "plugin.dso"))
	test.ExpectEquality(t, s.ModuleSym("plugin"), filepath.Join(build, "filesystem", "plugin.dso.sym"))
	test.ExpectEquality(t, s.Filesystem(), filepath.Join(build, "fs.dfs"))
}

func TestStale(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.o")
	out := filepath.Join(dir, "a.externs")

	test.ExpectSuccess(t, artifacts.Stale(out, in))

	test.WriteFile(t, in, []byte("o"))
	test.WriteFile(t, out, []byte("EXTERN(foo)"))

	old := time.Now().Add(-time.Hour)
	test.DemandSuccess(t, os.Chtimes(in, old, old))
	test.ExpectFailure(t, artifacts.Stale(out, in))

	test.DemandSuccess(t, os.Chtimes(out, old.Add(-time.Minute), old.Add(-time.Minute)))
	test.ExpectSuccess(t, artifacts.Stale(out, in))

	// missing input
	test.ExpectSuccess(t, artifacts.Stale(out, filepath.Join(dir, "missing.o")))
}
