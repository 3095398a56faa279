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


package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jetsetilly/n64build/artifacts"
	"github.com/jetsetilly/n64build/assets"
	"github.com/jetsetilly/n64build/coprocessor"
	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/dso"
	"github.com/jetsetilly/n64build/environment"
	"github.com/jetsetilly/n64build/image"
	"github.com/jetsetilly/n64build/logger"
	"github.com/jetsetilly/n64build/paths"
	"github.com/jetsetilly/n64build/sizereport"
	"github.com/jetsetilly/n64build/toolchain"
	"github.com/jetsetilly/n64build/toolrun"
	"github.com/jetsetilly/n64build/version"
)

// UnknownPacker is returned by NewBuild() for an unrecognised image.packer
// preference.
const UnknownPacker = "pipeline: unknown image packer (%s)"

// Names of the stages. The stage name is the logging tag of a node.
const (
	StageCompile    = "compile"
	StageUnitLink   = "unitlink"
	StageExtract    = "extract"
	StageRepackage  = "repackage"
	StageDSO        = "dso"
	StageExterns    = "externs"
	StageLink       = "link"
	StageSymbols    = "symbols"
	StageStrip      = "strip"
	StageCompress   = "compress"
	StageModuleSyms = "msym"
	StageSize       = "size"
	StageFilesystem = "filesystem"
	StageImage      = "image"
	StageManifest   = "manifest"
)

// Build is the context of a single build. It creates the graph that is run
// by the Scheduler.
type Build struct {
	env   *environment.Environment
	tc    *toolchain.Toolchain
	run   toolrun.Runner
	store *artifacts.Store

	coproc *coprocessor.Processor
	linker *dso.Linker
	assets *assets.Registry
	packer image.Packer
	sizer  *sizereport.Sizer
}

// NewBuild is the preferred method of initialisation for the Build type. The
// source directory is scanned and every target registered. Configuration
// errors are returned before any tool is run.
func NewBuild(env *environment.Environment, run toolrun.Runner) (*Build, error) {
	b := &Build{
		env: env,
		tc:  toolchain.NewToolchain(env),
		run: run,
	}

	var err error

	b.store, err = artifacts.NewStore(env)
	if err != nil {
		return nil, err
	}

	// module sources are registered first so that they are excluded from
	// the scan of the source directory
	if err := dso.Register(env, b.store); err != nil {
		return nil, err
	}
	if err := b.store.Scan(dso.Sources(env)); err != nil {
		return nil, err
	}

	b.assets, err = assets.NewRegistry(env.ConvertRules, b.tc, run)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(env.Packer) {
	case "", "native":
		b.packer = &image.NativePacker{Banner: version.Banner(), Perm: env}
	case "n64tool":
		b.packer = &image.ToolPacker{TC: b.tc, Run: run, Perm: env}
	default:
		return nil, curated.Errorf(UnknownPacker, env.Packer)
	}

	b.coproc = coprocessor.NewProcessor(env, b.tc, run, b.store)
	b.linker = dso.NewLinker(env, b.tc, run, b.store)
	b.sizer = &sizereport.Sizer{TC: b.tc, Run: run}

	return b, nil
}

// Store returns the artifact store of the build.
func (b *Build) Store() *artifacts.Store {
	return b.store
}

// Sizer returns the size reporter for the build.
func (b *Build) Sizer() *sizereport.Sizer {
	return b.sizer
}

// assetsDir returns the absolute path of the assets directory.
func (b *Build) assetsDir() string {
	if filepath.IsAbs(b.env.AssetsDir) {
		return b.env.AssetsDir
	}
	return b.env.ProjectPath(b.env.AssetsDir)
}

// rel returns the path relative to the build directory. used to identify
// nodes.
func (b *Build) rel(filename string) string {
	return paths.Rel(b.store.BuildDir(), filename)
}

// Plan returns the graph of a full build.
func (b *Build) Plan() (*Graph, error) {
	g := NewGraph()

	var objects []string

	for _, t := range b.store.Targets(artifacts.Primary) {
		if err := g.Add(b.compileNode(t)); err != nil {
			return nil, err
		}
		objects = append(objects, b.store.ObjectPath(t))
	}

	for _, t := range b.store.Targets(artifacts.Coprocessor) {
		nodes := b.coprocessorNodes(t)
		for _, n := range nodes {
			if err := g.Add(n); err != nil {
				return nil, err
			}
		}
		objects = append(objects, b.store.ObjectPath(t))
	}

	var moduleELFs []string
	for _, m := range b.env.Modules {
		for _, t := range b.store.ModuleTargets(m.Name) {
			if err := g.Add(b.compileNode(t)); err != nil {
				return nil, err
			}
		}
		if err := g.Add(b.moduleNode(m.Name)); err != nil {
			return nil, err
		}
		moduleELFs = append(moduleELFs, b.store.ModuleELF(m.Name))
	}

	var externs string
	if len(moduleELFs) > 0 {
		externs = b.store.Program(artifacts.SuffixExterns)
		if err := g.Add(b.externsNode(moduleELFs, externs)); err != nil {
			return nil, err
		}
	}

	elf := b.store.Program(artifacts.SuffixELF)
	sym := b.store.Program(artifacts.SuffixSym)
	stripped := b.store.Program(artifacts.SuffixStripped)
	compressed := b.store.Program(artifacts.SuffixCompressed)

	var msym string
	if len(moduleELFs) > 0 {
		msym = b.store.Program(artifacts.SuffixMsym)
	}

	fsNeeded, err := b.filesystemNeeded()
	if err != nil {
		return nil, err
	}
	var fs string
	if fsNeeded {
		fs = b.store.Filesystem()
	}

	size := b.sizeNode(elf)

	nodes := []*Node{
		b.linkNode(objects, externs, moduleELFs, elf),
		b.toolNode(StageSymbols, elf, sym, b.tc.Symbols(elf, sym)),
		b.toolNode(StageStrip, elf, stripped, b.tc.Strip(elf, stripped)),
		b.compressNode(stripped, compressed),
		size,
	}
	if msym != "" {
		nodes = append(nodes, b.toolNode(StageModuleSyms, elf, msym, b.tc.ModuleSymbols(elf, msym)))
	}
	if fs != "" {
		nodes = append(nodes, b.filesystemNode(fs))
	}

	img := b.imageNode(compressed, sym, msym, fs)
	img.After = append(img.After, size.ID())
	nodes = append(nodes, img)

	roles := map[string]string{
		RoleELF:        elf,
		RoleProgram:    compressed,
		RoleSymbols:    sym,
		RoleModuleSyms: msym,
		RoleFilesystem: fs,
		RoleImage:      b.store.Program(artifacts.SuffixImage),
	}
	nodes = append(nodes, b.manifestNode(NewManifest(b.store.BuildDir()), roles))

	for _, n := range nodes {
		if err := g.Add(n); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// PlanELF returns the part of the full graph needed to link the program.
func (b *Build) PlanELF() (*Graph, error) {
	g, err := b.Plan()
	if err != nil {
		return nil, err
	}
	elf := b.store.Program(artifacts.SuffixELF)
	return g.Prune(NewNode(StageLink, b.rel(elf), nil).ID())
}

// Assemble returns the graph that packs the image from the artifacts of the
// previous build. Every artifact is checked against the manifest before the
// graph is returned.
func (b *Build) Assemble() (*Graph, error) {
	m, err := LoadManifest(b.store.BuildDir())
	if err != nil {
		return nil, err
	}

	var prog, sym, msym, fs string

	if prog, err = m.Verify(RoleProgram); err != nil {
		return nil, err
	}
	if sym, err = m.Verify(RoleSymbols); err != nil {
		return nil, err
	}
	if m.Has(RoleModuleSyms) {
		if msym, err = m.Verify(RoleModuleSyms); err != nil {
			return nil, err
		}
	}
	if m.Has(RoleFilesystem) {
		if fs, err = m.Verify(RoleFilesystem); err != nil {
			return nil, err
		}
	}

	g := NewGraph()

	if err := g.Add(b.imageNode(prog, sym, msym, fs)); err != nil {
		return nil, err
	}

	roles := map[string]string{
		RoleImage: b.store.Program(artifacts.SuffixImage),
	}
	if err := g.Add(b.manifestNode(m, roles)); err != nil {
		return nil, err
	}

	return g, nil
}

func (b *Build) compileNode(t artifacts.Target) *Node {
	obj := b.store.ObjectPath(t)

	n := NewNode(StageCompile, t.Rel, func(ctx context.Context) error {
		if !artifacts.Stale(obj, append([]string{t.Source}, t.Deps...)...) {
			logger.Logf(b.env, StageCompile, "%s: up to date", t.Rel)
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(obj), 0o755); err != nil {
			return err
		}
		return b.run.Run(ctx, b.tc.Compile(t.Source, obj))
	})
	n.Inputs = []string{t.Source}
	n.Outputs = []string{obj}

	return n
}

// coprocessorNodes returns the nodes for a coprocessor target. The blobs
// found by the extract node are passed to the repackage node.
func (b *Build) coprocessorNodes(t artifacts.Target) []*Node {
	exe := b.store.UnitExecutablePath(t)

	link := NewNode(StageUnitLink, t.Rel, func(ctx context.Context) error {
		return b.coproc.Link(ctx, t)
	})
	link.Inputs = []string{t.Source}
	link.Outputs = []string{exe}

	var blobs []coprocessor.Blob

	// only mandatory sections are guaranteed to produce a blob
	var mandatory []string
	for _, s := range coprocessor.Sections(b.env.Meta) {
		if s.Mandatory {
			mandatory = append(mandatory, b.store.BlobPath(t, s.Name))
		}
	}

	extract := NewNode(StageExtract, t.Rel, func(ctx context.Context) error {
		var err error
		blobs, err = b.coproc.Extract(ctx, t)
		return err
	})
	extract.Inputs = []string{exe}
	extract.Outputs = mandatory

	repackage := NewNode(StageRepackage, t.Rel, func(ctx context.Context) error {
		_, err := b.coproc.Repackage(ctx, t, blobs)
		return err
	})
	repackage.Inputs = mandatory
	repackage.Outputs = []string{b.store.ObjectPath(t)}
	repackage.After = []string{extract.ID()}

	return []*Node{link, extract, repackage}
}

func (b *Build) moduleNode(module string) *Node {
	n := NewNode(StageDSO, module, func(ctx context.Context) error {
		out, err := b.linker.Link(ctx, module)
		if err != nil {
			return err
		}
		logger.Logf(b.env, StageDSO, "%s: %s", module, b.rel(out.DSO))
		return nil
	})
	n.Inputs = b.linker.Objects(module)
	n.Outputs = []string{
		b.store.ModuleELF(module),
		b.store.ModuleDSO(module),
		b.store.ModuleSym(module),
	}
	return n
}

func (b *Build) externsNode(moduleELFs []string, out string) *Node {
	n := NewNode(StageExterns, b.rel(out), func(ctx context.Context) error {
		syms, err := dso.Externs(moduleELFs, out)
		if err != nil {
			return err
		}
		logger.Logf(b.env, StageExterns, "%d symbols required by %d modules", len(syms), len(moduleELFs))
		return nil
	})
	n.Inputs = moduleELFs
	n.Outputs = []string{out}
	return n
}

func (b *Build) linkNode(objects []string, externs string, moduleELFs []string, elf string) *Node {
	n := NewNode(StageLink, b.rel(elf), func(ctx context.Context) error {
		if externs != "" {
			if err := dso.CheckExterns(externs, moduleELFs...); err != nil {
				return err
			}
		}
		return b.run.Run(ctx, b.tc.Link(elf, b.store.Program(artifacts.SuffixMap), objects, externs))
	})
	n.Inputs = append([]string{}, objects...)
	if externs != "" {
		n.Inputs = append(n.Inputs, externs)
	}
	n.Outputs = []string{elf}
	return n
}

// toolNode returns a node that runs a single tool to create out from in.
func (b *Build) toolNode(stage string, in string, out string, cmd toolrun.Command) *Node {
	n := NewNode(stage, b.rel(out), func(ctx context.Context) error {
		return b.run.Run(ctx, cmd)
	})
	n.Inputs = []string{in}
	n.Outputs = []string{out}
	return n
}

// compressNode copies the stripped program and compresses the copy in
// place. the compressor has no output option.
func (b *Build) compressNode(stripped string, compressed string) *Node {
	n := NewNode(StageCompress, b.rel(compressed), func(ctx context.Context) error {
		if err := copyFile(stripped, compressed); err != nil {
			return err
		}
		return b.run.Run(ctx, b.tc.Compress(compressed, toolchain.CompressionLevel))
	})
	n.Inputs = []string{stripped}
	n.Outputs = []string{compressed}
	return n
}

func (b *Build) sizeNode(elf string) *Node {
	n := NewNode(StageSize, b.rel(elf), func(ctx context.Context) error {
		rep, err := b.sizer.Measure(ctx, elf)
		if err != nil {
			return err
		}
		logger.Logf(b.env, StageSize, "program %d bytes, data %d bytes", rep.Program, rep.Data)
		return sizereport.Check(rep, b.env.ROMSize)
	})
	n.Inputs = []string{elf}
	return n
}

// filesystemNeeded returns true if the build has a filesystem image. One is
// needed if there are assets or modules.
func (b *Build) filesystemNeeded() (bool, error) {
	if len(b.env.Modules) > 0 {
		return true, nil
	}
	files, err := assets.List(b.assetsDir())
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

func (b *Build) filesystemNode(fs string) *Node {
	staging := b.store.FilesystemDir()

	var moduleFiles []string
	for _, m := range b.env.Modules {
		moduleFiles = append(moduleFiles, b.store.ModuleDSO(m.Name), b.store.ModuleSym(m.Name))
	}

	n := NewNode(StageFilesystem, b.rel(fs), func(ctx context.Context) error {
		if err := os.MkdirAll(staging, 0o755); err != nil {
			return err
		}
		if err := clean(staging, moduleFiles); err != nil {
			return err
		}

		dir := b.assetsDir()
		files, err := assets.List(dir)
		if err != nil {
			return err
		}

		// no two files may be staged at the same path. this includes the
		// module files already in the staging directory
		outs, err := b.assets.Outputs(dir, staging, files)
		if err != nil {
			return err
		}
		for i, out := range outs {
			for _, m := range moduleFiles {
				if out == m {
					return curated.Errorf(assets.DuplicateOutput, paths.Rel(dir, files[i]),
						b.rel(m), paths.Rel(staging, out))
				}
			}
		}

		for _, src := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := b.assets.Lookup(src).Convert(ctx, src, assets.OutDir(dir, staging, src))
			if err != nil {
				return err
			}
			logger.Logf(b.env, "assets", "%s -> %s", paths.Rel(dir, src), b.rel(out))
		}

		return b.run.Run(ctx, b.tc.MakeDFS(fs, staging))
	})
	n.Inputs = moduleFiles
	n.Outputs = []string{fs}

	return n
}

func (b *Build) imageNode(prog string, sym string, msym string, fs string) *Node {
	img := b.store.Program(artifacts.SuffixImage)

	entries := image.StandardEntries(prog, sym, msym, fs)

	n := NewNode(StageImage, b.rel(img), func(ctx context.Context) error {
		placements, err := b.packer.Pack(ctx, img, b.env.Title, entries)
		if err != nil {
			return err
		}
		for _, p := range placements {
			logger.Logf(b.env, StageImage, "%s: offset %#x size %d", p.Entry.Name, p.Offset, p.Size)
		}
		return nil
	})
	for _, e := range entries {
		n.Inputs = append(n.Inputs, e.Path)
	}
	n.Outputs = []string{img}

	return n
}

// manifestNode records the artifacts in the manifest. Roles with an empty
// path are not recorded.
func (b *Build) manifestNode(m *Manifest, roles map[string]string) *Node {
	fn := filepath.Join(b.store.BuildDir(), ManifestFile)

	n := NewNode(StageManifest, ManifestFile, func(ctx context.Context) error {
		for role, path := range roles {
			if path == "" {
				continue
			}
			if err := m.Record(role, path); err != nil {
				return err
			}
		}
		return m.Save()
	})
	for _, path := range roles {
		if path != "" {
			n.Inputs = append(n.Inputs, path)
		}
	}
	n.Outputs = []string{fn}

	return n
}

func copyFile(from string, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(to)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// clean removes everything in the staging directory except the files in the
// keep list. assets removed from the project must not survive in the
// filesystem image.
func clean(dir string, keep []string) error {
	k := make(map[string]bool, len(keep))
	for _, f := range keep {
		k[filepath.Clean(f)] = true
	}

	var remove []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && !k[filepath.Clean(path)] {
			remove = append(remove, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, r := range remove {
		if err := os.Remove(r); err != nil {
			return err
		}
	}

	return nil
}
