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

package toolchain_test

import (
	"strings"
	"testing"

	"github.com/jetsetilly/n64build/test"
	"github.com/jetsetilly/n64build/toolchain"
)

func newToolchain() *toolchain.Toolchain {
	return &toolchain.Toolchain{
		Root:   "/opt/n64",
		Prefix: "mips64-elf-",
	}
}

func args(t *testing.T, got []string, expected ...string) {
	t.Helper()
	test.ExpectEquality(t, strings.Join(got, " "), strings.Join(expected, " "))
}

func TestPaths(t *testing.T) {
	tc := newToolchain()
	test.ExpectEquality(t, tc.Binutil("objcopy"), "/opt/n64/bin/mips64-elf-objcopy")
	test.ExpectEquality(t, tc.Tool("n64tool"), "/opt/n64/bin/n64tool")
	test.ExpectEquality(t, tc.LibPath("dso.ld"), "/opt/n64/mips64-elf/lib/dso.ld")
	test.ExpectEquality(t, tc.IncludePath(), "/opt/n64/mips64-elf/include")
}

func TestSectionCopy(t *testing.T) {
	tc := newToolchain()
	cmd := tc.SectionCopy("build", "rsp_crash.elf", "text", "rsp_crash.text.bin")
	test.ExpectEquality(t, cmd.Name(), "mips64-elf-objcopy")
	test.ExpectEquality(t, cmd.Dir, "build")
	args(t, cmd.Args, "-O", "binary", "-j", ".text", "rsp_crash.elf", "rsp_crash.text.bin")
}

func TestBinaryToObject(t *testing.T) {
	tc := newToolchain()
	cmd := tc.BinaryToObject("build", "crash.text.bin", "crash.text.o", 8, []toolchain.Rename{
		{From: "_binary_crash_text_bin_start", To: "crash_text_start"},
		{From: "_binary_crash_text_bin_end", To: "crash_text_end"},
	})
	args(t, cmd.Args,
		"-I", "binary", "-O", "elf32-bigmips", "-B", "mips4300",
		"--redefine-sym", "_binary_crash_text_bin_start=crash_text_start",
		"--redefine-sym", "_binary_crash_text_bin_end=crash_text_end",
		"--set-section-alignment", ".data=8",
		"--rename-section", ".text=.data",
		"crash.text.bin", "crash.text.o")
}

func TestLinkRelocatable(t *testing.T) {
	tc := newToolchain()
	cmd := tc.LinkRelocatable("build", "crash.o", "crash.text.o", "crash.data.o")
	test.ExpectEquality(t, cmd.Name(), "mips64-elf-ld")
	args(t, cmd.Args, "-relocatable", "crash.text.o", "crash.data.o", "-o", "crash.o")
}

func TestLinkDSO(t *testing.T) {
	tc := newToolchain()
	cmd := tc.LinkDSO("a.elf", "a.map", []string{"a.o", "b.o"})
	s := strings.Join(cmd.Args, " ")
	test.ExpectSuccess(t, strings.Contains(s, "--unresolved-symbols=ignore-all"))
	test.ExpectSuccess(t, strings.Contains(s, "-T /opt/n64/mips64-elf/lib/dso.ld"))
	test.ExpectSuccess(t, strings.HasSuffix(s, "-o a.elf a.o b.o"))
}

func TestLinkExterns(t *testing.T) {
	tc := newToolchain()

	cmd := tc.Link("firmware.elf", "firmware.map", []string{"main.o"}, "")
	for _, a := range cmd.Args {
		test.ExpectFailure(t, strings.HasPrefix(a, "-Wl,-T,"))
	}

	cmd = tc.Link("firmware.elf", "firmware.map", []string{"main.o"}, "firmware.externs")
	test.ExpectSuccess(t, strings.Contains(strings.Join(cmd.Args, " "), "-Wl,-T,firmware.externs"))
}

func TestCompile(t *testing.T) {
	tc := newToolchain()
	test.ExpectEquality(t, tc.Compile("main.c", "main.o").Name(), "mips64-elf-gcc")
	test.ExpectEquality(t, tc.Compile("main.cpp", "main.o").Name(), "mips64-elf-g++")

	cmd := tc.Compile("start.S", "start.o")
	test.ExpectSuccess(t, strings.Contains(strings.Join(cmd.Args, " "), "-x assembler-with-cpp"))
}

func TestPack(t *testing.T) {
	tc := newToolchain()
	cmd := tc.Pack("firmware.z64", "Controller Test", []toolchain.PackEntry{
		{Path: "firmware.elf.stripped.compressed", Align: 256},
		{Path: "firmware.sym", Align: 8},
		{Path: "fs.dfs", Align: 16},
	})
	args(t, cmd.Args,
		"--title", "Controller Test", "--toc", "--output", "firmware.z64",
		"--align", "256", "firmware.elf.stripped.compressed",
		"--align", "8", "firmware.sym",
		"--align", "16", "fs.dfs")
}

func TestMiscTools(t *testing.T) {
	tc := newToolchain()
	args(t, tc.Strip("a.elf", "a.stripped").Args, "-s", "-o", "a.stripped", "a.elf")
	args(t, tc.Compress("a.compressed", toolchain.CompressionLevel).Args, "-c", "1", "a.compressed")
	args(t, tc.MakeDFS("fs.dfs", "filesystem").Args, "fs.dfs", "filesystem")
	args(t, tc.Symbols("a.elf", "a.sym").Args, "a.elf", "a.sym")
	args(t, tc.Size("a.elf", true).Args, "-A", "-d", "a.elf")
	args(t, tc.Convert("mksprite", []string{"--format", "RGBA16"}, "a.png", "out").Args,
		"--format", "RGBA16", "-o", "out", "a.png")
}
