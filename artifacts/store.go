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

package artifacts

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/environment"
	"github.com/jetsetilly/n64build/paths"
)

// DuplicateUnitID is returned when two sources normalise to the same unit
// ID. The values are the unit ID and the two source paths.
const DuplicateUnitID = "artifacts: duplicate unit id %s (%s and %s)"

// SourceOutsideTree is returned for a source that is not in the source
// directory.
const SourceOutsideTree = "artifacts: source is not in the source directory (%s)"

// Store is the record of every target in the build. It also knows where the
// artifacts of each target are written.
type Store struct {
	crit sync.Mutex

	sourceDir string
	buildDir  string
	progName  string

	targets []Target
	units   map[string]string
}

// NewStore is the preferred method of initialisation for the Store type.
func NewStore(env *environment.Environment) (*Store, error) {
	src := env.SourceDir
	if !filepath.IsAbs(src) {
		src = env.ProjectPath(src)
	}
	src, err := filepath.Abs(src)
	if err != nil {
		return nil, curated.Errorf("artifacts: %v", err)
	}

	build, err := filepath.Abs(env.BuildPath())
	if err != nil {
		return nil, curated.Errorf("artifacts: %v", err)
	}

	return &Store{
		sourceDir: src,
		buildDir:  build,
		progName:  env.ProgName,
		units:     make(map[string]string),
	}, nil
}

// SourceDir returns the absolute path of the source directory.
func (s *Store) SourceDir() string {
	return s.sourceDir
}

// BuildDir returns the absolute path of the build directory.
func (s *Store) BuildDir() string {
	return s.buildDir
}

// Register a new target. Returns DuplicateUnitID if the target is a
// coprocessor source and its unit ID is already used by another coprocessor
// source.
func (s *Store) Register(source string, isa ISA, module string, deps ...string) (Target, error) {
	s.crit.Lock()
	defer s.crit.Unlock()

	source, err := filepath.Abs(source)
	if err != nil {
		return Target{}, curated.Errorf("artifacts: %v", err)
	}

	rel, err := filepath.Rel(s.sourceDir, source)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Target{}, curated.Errorf(SourceOutsideTree, source)
	}
	rel = filepath.ToSlash(rel)

	// only coprocessor units have symbols derived from the unit ID. the
	// artifacts of other targets are named after the relative path
	unit := UnitID(rel)
	if isa == Coprocessor {
		if existing, ok := s.units[unit]; ok {
			return Target{}, curated.Errorf(DuplicateUnitID, unit, existing, rel)
		}
		s.units[unit] = rel
	}

	t := Target{
		Source: source,
		Rel:    rel,
		ISA:    isa,
		Unit:   unit,
		Module: module,
		Deps:   append([]string{}, deps...),
	}
	s.targets = append(s.targets, t)

	return t, nil
}

// Scan the source directory and register every source file found. Files in
// the exclude list are skipped. Module sources are registered separately by
// the caller with the Module ISA.
//
// Targets are registered in lexical order so the unit reported by a
// DuplicateUnitID error is the same for every invocation.
func (s *Store) Scan(exclude []string) error {
	skip := make(map[string]bool)
	for _, e := range exclude {
		if a, err := filepath.Abs(e); err == nil {
			skip[a] = true
		}
	}

	var sources []string

	err := filepath.WalkDir(s.sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !IsSource(path) || skip[path] {
			return nil
		}
		sources = append(sources, path)
		return nil
	})
	if err != nil {
		return curated.Errorf("artifacts: %v", err)
	}

	sort.Strings(sources)

	for _, src := range sources {
		if _, err := s.Register(src, Classify(src), ""); err != nil {
			return err
		}
	}

	return nil
}

// Targets returns the targets for the ISA in the order they were registered.
func (s *Store) Targets(isa ISA) []Target {
	s.crit.Lock()
	defer s.crit.Unlock()

	var t []Target
	for _, tg := range s.targets {
		if tg.ISA == isa {
			t = append(t, tg)
		}
	}
	return t
}

// ModuleTargets returns the targets of the named module.
func (s *Store) ModuleTargets(module string) []Target {
	var t []Target
	for _, tg := range s.Targets(Module) {
		if tg.Module == module {
			t = append(t, tg)
		}
	}
	return t
}

// Suffixes of the program artifacts.
const (
	SuffixELF        = ".elf"
	SuffixMap        = ".map"
	SuffixSym        = ".elf.sym"
	SuffixStripped   = ".elf.stripped"
	SuffixCompressed = ".elf.stripped.compressed"
	SuffixMsym       = ".msym"
	SuffixExterns    = ".externs"
	SuffixImage      = ".z64"
	SuffixDSO        = ".dso"
	SuffixDSOSym     = ".dso.sym"
)

// name of the filesystem image in the build directory.
const FilesystemImage = "fs.dfs"

// name of the staging directory for the filesystem image.
const FilesystemDir = "filesystem"

// Program returns the path of a program artifact. For example:
//
//	Program(SuffixImage)  ->  <build>/firmware.z64
func (s *Store) Program(suffix string) string {
	return filepath.Join(s.buildDir, s.progName+suffix)
}

// Filesystem returns the path of the filesystem image.
func (s *Store) Filesystem() string {
	return filepath.Join(s.buildDir, FilesystemImage)
}

// FilesystemDir returns the staging directory of the filesystem image.
func (s *Store) FilesystemDir() string {
	return filepath.Join(s.buildDir, FilesystemDir)
}

func (s *Store) unitPath(t Target, suffix string) string {
	return filepath.Join(s.buildDir, filepath.FromSlash(paths.ReplaceExt(t.Rel, suffix)))
}

// ObjectPath returns the path of the object for the target. For coprocessor
// targets this is the repackaged object consumed by the primary link.
func (s *Store) ObjectPath(t Target) string {
	return s.unitPath(t, ".o")
}

// UnitExecutablePath returns the path of the small executable linked for a
// coprocessor target.
func (s *Store) UnitExecutablePath(t Target) string {
	return s.unitPath(t, ".elf")
}

// UnitMapPath returns the path of the map file for the unit executable.
func (s *Store) UnitMapPath(t Target) string {
	return s.unitPath(t, ".map")
}

// BlobPath returns the path of an extracted section blob.
func (s *Store) BlobPath(t Target, section string) string {
	return s.unitPath(t, "."+section+".bin")
}

// SectionObjectPath returns the path of the object wrapping a single section
// blob.
func (s *Store) SectionObjectPath(t Target, section string) string {
	return s.unitPath(t, "."+section+".o")
}

// ModuleELF returns the path of the linked ELF of a module.
func (s *Store) ModuleELF(module string) string {
	return filepath.Join(s.buildDir, "dso", module+SuffixELF)
}

// ModuleMap returns the path of the map file of a module.
func (s *Store) ModuleMap(module string) string {
	return filepath.Join(s.buildDir, "dso", module+SuffixMap)
}

// ModuleDSO returns the path of the module blob. Modules are loaded at run
// time from the filesystem so the blob is placed in the filesystem staging
// directory.
func (s *Store) ModuleDSO(module string) string {
	return filepath.Join(s.FilesystemDir(), module+SuffixDSO)
}

// ModuleSym returns the path of the symbol file of a module.
func (s *Store) ModuleSym(module string) string {
	return filepath.Join(s.FilesystemDir(), module+SuffixDSOSym)
}

// Stale returns true if the output does not exist or if any input is newer
// than it. An input that does not exist is treated as newer.
func Stale(output string, inputs ...string) bool {
	out, err := os.Stat(output)
	if err != nil {
		return true
	}
	for _, in := range inputs {
		i, err := os.Stat(in)
		if err != nil {
			return true
		}
		if i.ModTime().After(out.ModTime()) {
			return true
		}
	}
	return false
}
