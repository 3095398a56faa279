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

package environment

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/paths"
	"github.com/jetsetilly/n64build/prefs"
)

// PrefsFile is the name of the project preferences file. It is looked for in
// the project directory.
const PrefsFile = "n64build.prefs"

// ToolchainVar is the environment variable that designates the toolchain
// installation root. The libdragon tools locate sibling binaries (readelf,
// objcopy) relative to it.
const ToolchainVar = "N64_INST"

// Sentinal patterns for configuration errors.
const (
	ToolchainRootMissing = "environment: toolchain root is not set (use toolchain.root or $%s)"
	ToolchainRootInvalid = "environment: toolchain root is not a directory (%s)"
	MalformedModule      = "environment: malformed module declaration (%s)"
	DuplicateModule      = "environment: module declared twice (%s)"
)

// Module declares a dynamically loaded module. Sources are relative to the
// project directory.
type Module struct {
	Name    string
	Sources []string
}

// Toolchain describes where the cross compiler tools are installed.
type Toolchain struct {
	Root   string
	Prefix string
}

// Upload configures how the final image is transferred to a device or an
// emulator.
type Upload struct {
	Protocol string
	Command  []string
	Port     string
	Baud     int
}

// Environment is the build configuration for one invocation of n64build. It
// is created once, before any pipeline stage runs, and is passed to every
// stage. It must not be modified after creation.
type Environment struct {
	ProjectDir string
	SourceDir  string
	BuildDir   string
	AssetsDir  string

	ProgName string
	Title    string

	// maximum number of pipeline nodes to run in parallel
	Jobs int

	// the coprocessor .meta section is mandatory when Meta is true. the
	// preview and stable toolchain branches disagree on this so it is a
	// project setting
	Meta bool

	// conversion rules for assets in addition to the builtin converters.
	// parsed by the assets package
	ConvertRules string

	Modules []Module

	// image packer: "native" or "n64tool"
	Packer string

	// maximum size of the program in bytes. zero means no limit
	ROMSize int

	Toolchain Toolchain
	Upload    Upload

	Verbose bool
	Quiet   bool
}

// NewEnvironment creates the build configuration for the project in
// projectDir. Values are taken from the project prefs file with values in the
// CommandLine taking priority. The CommandLine can be nil.
func NewEnvironment(projectDir string, cl *prefs.CommandLine) (*Environment, error) {
	var (
		sourceDir, buildDir, assetsDir prefs.String
		progName, title                prefs.String
		jobs, romSize, baud            prefs.Int
		meta                           prefs.Bool
		convert, packer                prefs.String
		root, prefix                   prefs.String
		protocol, command, port        prefs.String
	)

	// defaults
	_ = sourceDir.Set("src")
	_ = buildDir.Set("build")
	_ = assetsDir.Set("assets")
	_ = progName.Set("firmware")
	_ = jobs.Set(runtime.NumCPU())
	_ = packer.Set("native")
	_ = prefix.Set("mips64-elf-")
	_ = protocol.Set("ares")
	_ = baud.Set(115200)

	var modules []Module
	modulesPref := prefs.NewGeneric(
		func(s string) error {
			m, err := ParseModules(s)
			if err != nil {
				return err
			}
			modules = m
			return nil
		},
		func() string {
			return FormatModules(modules)
		},
	)

	dsk, err := prefs.NewDisk(filepath.Join(projectDir, PrefsFile))
	if err != nil {
		return nil, curated.Errorf("environment: %v", err)
	}

	for k, p := range map[string]interface {
		Set(prefs.Value) error
		Get() prefs.Value
		String() string
	}{
		"build.src":        &sourceDir,
		"build.dir":        &buildDir,
		"build.progname":   &progName,
		"build.title":      &title,
		"build.jobs":       &jobs,
		"build.meta":       &meta,
		"assets.dir":       &assetsDir,
		"assets.convert":   &convert,
		"modules":          modulesPref,
		"image.packer":     &packer,
		"image.romsize":    &romSize,
		"toolchain.root":   &root,
		"toolchain.prefix": &prefix,
		"upload.protocol":  &protocol,
		"upload.command":   &command,
		"upload.port":      &port,
		"upload.baud":      &baud,
	} {
		if err := dsk.Add(k, p); err != nil {
			return nil, curated.Errorf("environment: %v", err)
		}
	}

	// user preferences are loaded before the project preferences. this
	// allows the toolchain root to be set once for every project
	if err := dsk.LoadFrom(paths.ResourcePath(PrefsFile)); err != nil {
		return nil, curated.Errorf("environment: %v", err)
	}

	if err := dsk.Load(cl); err != nil {
		return nil, curated.Errorf("environment: %v", err)
	}

	env := &Environment{
		ProjectDir:   projectDir,
		SourceDir:    sourceDir.String(),
		BuildDir:     buildDir.String(),
		AssetsDir:    assetsDir.String(),
		ProgName:     progName.String(),
		Title:        title.String(),
		Jobs:         jobs.Get().(int),
		Meta:         meta.Get().(bool),
		ConvertRules: convert.String(),
		Modules:      modules,
		Packer:       packer.String(),
		ROMSize:      romSize.Get().(int),
		Toolchain: Toolchain{
			Root:   root.String(),
			Prefix: prefix.String(),
		},
		Upload: Upload{
			Protocol: protocol.String(),
			Command:  strings.Fields(command.String()),
			Port:     port.String(),
			Baud:     baud.Get().(int),
		},
	}

	if env.Title == "" {
		env.Title = env.ProgName
	}
	if env.Jobs < 1 {
		env.Jobs = 1
	}
	if env.Toolchain.Root == "" {
		env.Toolchain.Root = os.Getenv(ToolchainVar)
	}

	return env, nil
}

// AllowLogging implements the logger.Permission interface.
func (env *Environment) AllowLogging() bool {
	return !env.Quiet
}

// CheckToolchain returns an error if the toolchain root is not usable. It
// must be called before any tool is run.
func (env *Environment) CheckToolchain() error {
	if env.Toolchain.Root == "" {
		return curated.Errorf(ToolchainRootMissing, ToolchainVar)
	}
	info, err := os.Stat(env.Toolchain.Root)
	if err != nil || !info.IsDir() {
		return curated.Errorf(ToolchainRootInvalid, env.Toolchain.Root)
	}
	return nil
}

// ChildEnv returns the environment for child processes. The toolchain root is
// always exported, replacing any value inherited from the parent process.
func (env *Environment) ChildEnv() []string {
	parent := os.Environ()
	child := make([]string, 0, len(parent)+1)
	for _, e := range parent {
		if !strings.HasPrefix(e, ToolchainVar+"=") {
			child = append(child, e)
		}
	}
	return append(child, fmt.Sprintf("%s=%s", ToolchainVar, env.Toolchain.Root))
}

// ProjectPath returns the path relative to the project directory.
func (env *Environment) ProjectPath(elem ...string) string {
	return filepath.Join(append([]string{env.ProjectDir}, elem...)...)
}

// BuildPath returns the path relative to the build directory. The build
// directory is itself relative to the project directory unless it is
// absolute.
func (env *Environment) BuildPath(elem ...string) string {
	base := env.BuildDir
	if !filepath.IsAbs(base) {
		base = filepath.Join(env.ProjectDir, base)
	}
	return filepath.Join(append([]string{base}, elem...)...)
}

// ParseModules parses module declarations. The format is:
//
//	name.dso=src/a.c src/b.c; other.dso=src/other.c
//
// The .dso suffix of the name is optional.
func ParseModules(s string) ([]Module, error) {
	var modules []Module
	seen := make(map[string]bool)

	for _, decl := range strings.Split(s, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}

		nv := strings.SplitN(decl, "=", 2)
		if len(nv) != 2 {
			return nil, curated.Errorf(MalformedModule, decl)
		}

		name := strings.TrimSuffix(strings.TrimSpace(nv[0]), ".dso")
		sources := strings.Fields(nv[1])
		if name == "" || len(sources) == 0 {
			return nil, curated.Errorf(MalformedModule, decl)
		}

		if seen[name] {
			return nil, curated.Errorf(DuplicateModule, name)
		}
		seen[name] = true

		modules = append(modules, Module{Name: name, Sources: sources})
	}

	// declaration order is not meaningful. sorting makes the build graph
	// the same for every invocation
	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Name < modules[j].Name
	})

	return modules, nil
}

// FormatModules is the inverse of ParseModules().
func FormatModules(modules []Module) string {
	s := make([]string, 0, len(modules))
	for _, m := range modules {
		s = append(s, fmt.Sprintf("%s.dso=%s", m.Name, strings.Join(m.Sources, " ")))
	}
	return strings.Join(s, "; ")
}
