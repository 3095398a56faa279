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

package toolchain

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jetsetilly/n64build/environment"
	"github.com/jetsetilly/n64build/paths"
	"github.com/jetsetilly/n64build/toolrun"
)

// object format and architecture used when wrapping raw binary data as an
// object for the primary linker.
const (
	ObjectFormat = "elf32-bigmips"
	ObjectArch   = "mips4300"
)

// default compression level for n64elfcompress.
const CompressionLevel = 1

// Toolchain knows where the binaries of the cross compiler and the N64 tools
// are and how to invoke them. It does not run anything itself. Every method
// returns a toolrun.Command which can be given to a toolrun.Runner.
type Toolchain struct {
	Root   string
	Prefix string

	// environment for every child process. includes N64_INST
	Env []string
}

// NewToolchain is the preferred method of initialisation for the Toolchain
// type.
func NewToolchain(env *environment.Environment) *Toolchain {
	return &Toolchain{
		Root:   env.Toolchain.Root,
		Prefix: env.Toolchain.Prefix,
		Env:    env.ChildEnv(),
	}
}

// Binutil returns the path of a prefixed binary. For example, "objcopy"
// becomes "<root>/bin/mips64-elf-objcopy".
func (tc *Toolchain) Binutil(name string) string {
	return paths.ToolPath(tc.Root, tc.Prefix+name)
}

// Tool returns the path of an unprefixed binary installed alongside the
// cross compiler. For example, "n64tool".
func (tc *Toolchain) Tool(name string) string {
	return paths.ToolPath(tc.Root, name)
}

// LibPath returns the path of a file in the library directory of the
// toolchain. Linker scripts are found here.
func (tc *Toolchain) LibPath(name string) string {
	return filepath.Join(tc.Root, strings.TrimSuffix(tc.Prefix, "-"), "lib", name)
}

// IncludePath returns the include directory of the toolchain.
func (tc *Toolchain) IncludePath() string {
	return filepath.Join(tc.Root, strings.TrimSuffix(tc.Prefix, "-"), "include")
}

func (tc *Toolchain) command(tool string, dir string, args ...string) toolrun.Command {
	return toolrun.Command{
		Tool: tool,
		Args: args,
		Dir:  dir,
		Env:  tc.Env,
	}
}

// SectionCopy extracts one named section of an executable as raw bytes. The
// section name is given without the leading dot.
//
//	objcopy -O binary -j .<section> <exe> <blob>
func (tc *Toolchain) SectionCopy(dir string, exe string, section string, blob string) toolrun.Command {
	return tc.command(tc.Binutil("objcopy"), dir,
		"-O", "binary",
		"-j", "."+section,
		exe, blob,
	)
}

// Rename is a single symbol renaming for BinaryToObject().
type Rename struct {
	From string
	To   string
}

// BinaryToObject wraps a raw blob as a relocatable object. The symbols
// generated by objcopy are renamed as specified and the payload is placed
// in a .data section with the specified alignment.
//
//	objcopy -I binary -O elf32-bigmips -B mips4300 --redefine-sym old=new ...
//	        --set-section-alignment .data=<align> --rename-section .text=.data
//	        <blob> <obj>
func (tc *Toolchain) BinaryToObject(dir string, blob string, obj string, align int, renames []Rename) toolrun.Command {
	args := []string{
		"-I", "binary",
		"-O", ObjectFormat,
		"-B", ObjectArch,
	}
	for _, r := range renames {
		args = append(args, "--redefine-sym", fmt.Sprintf("%s=%s", r.From, r.To))
	}
	args = append(args,
		"--set-section-alignment", fmt.Sprintf(".data=%d", align),
		"--rename-section", ".text=.data",
		blob, obj,
	)
	return tc.command(tc.Binutil("objcopy"), dir, args...)
}

// LinkRelocatable combines objects into a single relocatable object. Objects
// are given to the linker in the order they are specified.
//
//	ld -relocatable <obj>... -o <out>
func (tc *Toolchain) LinkRelocatable(dir string, out string, objs ...string) toolrun.Command {
	args := []string{"-relocatable"}
	args = append(args, objs...)
	args = append(args, "-o", out)
	return tc.command(tc.Binutil("ld"), dir, args...)
}

var cflags = []string{
	"-march=vr4300",
	"-mtune=vr4300",
	"-O2",
	"-g3",
	"-ffunction-sections",
	"-fdata-sections",
	"-falign-functions=32",
	"-ffast-math",
	"-ftrapping-math",
	"-fno-associative-math",
	"-Wall",
}

// Compile a primary CPU source file to an object. The compiler driver is
// chosen by the file extension.
func (tc *Toolchain) Compile(src string, obj string) toolrun.Command {
	driver := "gcc"
	args := append([]string{}, cflags...)

	switch strings.ToLower(filepath.Ext(src)) {
	case ".cpp", ".cc", ".cxx":
		driver = "g++"
		args = append(args, "-std=gnu++17", "-fno-rtti", "-fno-exceptions")
	case ".s":
		args = append(args, "-x", "assembler-with-cpp")
	default:
		args = append(args, "-std=gnu99")
	}

	args = append(args, "-I", tc.IncludePath(), "-c", src, "-o", obj)
	return tc.command(tc.Binutil(driver), "", args...)
}

// CompileCoprocessor assembles and links a coprocessor source file into its
// own small executable. Section extraction works on this executable rather
// than on the primary link so that it only contains the code of the unit.
func (tc *Toolchain) CompileCoprocessor(src string, exe string, mapFile string) toolrun.Command {
	return tc.command(tc.Binutil("gcc"), "",
		"-march=mips1",
		"-mabi=32",
		"-Wa,--fatal-warnings",
		"-x", "assembler-with-cpp",
		"-I", tc.IncludePath(),
		"-nostartfiles",
		"-L", tc.LibPath(""),
		"-Wl,-Trsp.ld",
		"-Wl,--gc-sections",
		fmt.Sprintf("-Wl,-Map=%s", mapFile),
		"-o", exe,
		src,
	)
}

// Link the primary program. If externs is not empty then it names the
// linker script fragment listing the symbols that must remain visible for
// dynamic modules.
func (tc *Toolchain) Link(out string, mapFile string, objs []string, externs string) toolrun.Command {
	args := []string{
		"-march=vr4300",
		"-mtune=vr4300",
		"-L", tc.LibPath(""),
		"-T", tc.LibPath("n64.ld"),
		"-Wl,--gc-sections",
		"-Wl,--wrap", "-Wl,__do_global_ctors",
		"-Wl,--no-warn-rwx-segments",
		fmt.Sprintf("-Wl,-Map=%s", mapFile),
	}
	if externs != "" {
		args = append(args, fmt.Sprintf("-Wl,-T,%s", externs))
	}
	args = append(args, "-o", out)
	args = append(args, objs...)
	args = append(args, "-ldragon", "-lc", "-lm", "-lstdc++", "-ldragonsys")
	return tc.command(tc.Binutil("g++"), "", args...)
}

// LinkDSO links the objects of a dynamic module. Undefined symbols are not
// an error because they are resolved by the loader at run time against the
// symbols of the primary program.
func (tc *Toolchain) LinkDSO(out string, mapFile string, objs []string) toolrun.Command {
	args := []string{
		"--emit-relocs",
		"--unresolved-symbols=ignore-all",
		"--nmagic",
		"-T", tc.LibPath("dso.ld"),
		fmt.Sprintf("-Map=%s", mapFile),
		"-o", out,
	}
	args = append(args, objs...)
	return tc.command(tc.Binutil("ld"), "", args...)
}

// DSOConvert converts a linked module ELF to the compact module format. The
// output is written to outDir with the .dso extension.
func (tc *Toolchain) DSOConvert(elf string, outDir string) toolrun.Command {
	return tc.command(tc.Tool("n64dso"), "", "-o", outDir, elf)
}

// ModuleSymbols creates the module symbol file of the primary program. The
// loader uses it to resolve the imports of dynamic modules.
func (tc *Toolchain) ModuleSymbols(elf string, msym string) toolrun.Command {
	return tc.command(tc.Tool("n64dso-msym"), "", elf, msym)
}

// Symbols creates the symbol file of an ELF, used for backtraces.
func (tc *Toolchain) Symbols(elf string, sym string) toolrun.Command {
	return tc.command(tc.Tool("n64sym"), "", elf, sym)
}

// Strip all symbols from an ELF.
func (tc *Toolchain) Strip(elf string, out string) toolrun.Command {
	return tc.command(tc.Binutil("strip"), "", "-s", "-o", out, elf)
}

// Compress an ELF in place. The file must be a copy if the original is
// still required.
func (tc *Toolchain) Compress(file string, level int) toolrun.Command {
	return tc.command(tc.Tool("n64elfcompress"), "", "-c", fmt.Sprint(level), file)
}

// MakeDFS creates a filesystem image from the contents of a directory.
func (tc *Toolchain) MakeDFS(out string, dir string) toolrun.Command {
	return tc.command(tc.Tool("mkdfs"), "", out, dir)
}

// PackEntry is a single file for Pack().
type PackEntry struct {
	Path  string
	Align int
}

// Pack creates the final image with n64tool. Entries are packed in the order
// they are specified.
func (tc *Toolchain) Pack(out string, title string, entries []PackEntry) toolrun.Command {
	args := []string{
		"--title", title,
		"--toc",
		"--output", out,
	}
	for _, e := range entries {
		args = append(args, "--align", fmt.Sprint(e.Align), e.Path)
	}
	return tc.command(tc.Tool("n64tool"), "", args...)
}

// Size reports the section sizes of an ELF. Sizes are reported per section
// in decimal if sysv is true, or as a berkeley style summary otherwise.
func (tc *Toolchain) Size(elf string, sysv bool) toolrun.Command {
	format := "-B"
	if sysv {
		format = "-A"
	}
	return tc.command(tc.Binutil("size"), "", format, "-d", elf)
}

// Convert runs an asset converter from the toolchain. Converters write their
// output to outDir.
func (tc *Toolchain) Convert(tool string, flags []string, src string, outDir string) toolrun.Command {
	args := append([]string{}, flags...)
	args = append(args, "-o", outDir, src)
	return tc.command(tc.Tool(tool), "", args...)
}
