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

package image_test

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/image"
	"github.com/jetsetilly/n64build/test"
	"github.com/jetsetilly/n64build/test/faketools"
	"github.com/jetsetilly/n64build/toolchain"
	"github.com/jetsetilly/n64build/toolrun"
)

func TestLayoutScenario(t *testing.T) {
	entries := image.StandardEntries("prog", "sym", "", "fs")
	p, err := image.Layout(entries, []int64{1000, 50, 4096})
	test.DemandSuccess(t, err)
	test.DemandEquality(t, len(p), 3)

	test.ExpectEquality(t, p[0].Name, image.NameProgram)
	test.ExpectEquality(t, p[0].Offset, int64(0))

	// 1000 is already a multiple of eight
	test.ExpectEquality(t, p[1].Name, image.NameSymbols)
	test.ExpectEquality(t, p[1].Offset, int64(1000))

	// 1050 padded to the next multiple of sixteen
	test.ExpectEquality(t, p[2].Name, image.NameFilesystem)
	test.ExpectEquality(t, p[2].Offset, int64(1056))
}

func TestLayoutInvariants(t *testing.T) {
	for i := 0; i < 100; i++ {
		var msym, fs string
		if rand.Intn(2) == 0 {
			msym = "msym"
		}
		if rand.Intn(2) == 0 {
			fs = "fs"
		}
		entries := image.StandardEntries("prog", "sym", msym, fs)

		sizes := make([]int64, len(entries))
		for j := range sizes {
			sizes[j] = rand.Int63n(10000)
		}

		p, err := image.Layout(entries, sizes)
		test.DemandSuccess(t, err)

		for j := range p {
			test.ExpectEquality(t, p[j].Offset%int64(p[j].Align), int64(0), i, j)
			test.ExpectEquality(t, p[j].Name, entries[j].Name, i, j)
			if j > 0 {
				test.ExpectSuccess(t, p[j-1].End() <= p[j].Offset, i, j)
			}
		}
	}
}

func TestOptionalEntries(t *testing.T) {
	e := image.StandardEntries("prog", "sym", "", "")
	test.DemandEquality(t, len(e), 2)

	e = image.StandardEntries("prog", "sym", "", "fs")
	test.DemandEquality(t, len(e), 3)
	test.ExpectEquality(t, e[2].Align, image.AlignFilesystem)

	e = image.StandardEntries("prog", "sym", "msym", "fs")
	test.DemandEquality(t, len(e), 4)
	test.ExpectEquality(t, e[2].Name, image.NameModuleSyms)
	test.ExpectEquality(t, e[2].Align, image.AlignModuleSyms)
	test.ExpectEquality(t, e[3].Align, image.AlignFilesystem)
}

func TestInvalidAlignment(t *testing.T) {
	_, err := image.Layout([]image.Entry{{Name: "odd", Align: 12}}, []int64{10})
	test.ExpectSuccess(t, curated.Is(err, image.InvalidAlignment))
	_, err = image.Layout([]image.Entry{{Name: "zero", Align: 0}}, []int64{10})
	test.ExpectSuccess(t, curated.Is(err, image.InvalidAlignment))
}

func writeEntries(t *testing.T, dir string, sizes map[string]int) map[string][]byte {
	t.Helper()
	data := make(map[string][]byte)
	for name, sz := range sizes {
		b := make([]byte, sz)
		for i := range b {
			b[i] = byte(len(name) + i)
		}
		test.WriteFile(t, filepath.Join(dir, name), b)
		data[name] = b
	}
	return data
}

func TestNativePacker(t *testing.T) {
	dir := t.TempDir()
	data := writeEntries(t, dir, map[string]int{
		"firmware.elf.stripped.compressed": 1000,
		"firmware.elf.sym":                 50,
		"fs.dfs":                           4096,
	})

	entries := image.StandardEntries(
		filepath.Join(dir, "firmware.elf.stripped.compressed"),
		filepath.Join(dir, "firmware.elf.sym"),
		"",
		filepath.Join(dir, "fs.dfs"),
	)

	out := filepath.Join(dir, "firmware.z64")
	pk := &image.NativePacker{Banner: "n64build test"}
	p, err := pk.Pack(context.Background(), out, "Controller Test", entries)
	test.DemandSuccess(t, err)

	img := test.ReadFile(t, out)

	h, err := image.ReadHeader(bytes.NewReader(img))
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, h.Version, uint16(image.FormatVersion))
	test.ExpectEquality(t, h.Title, "Controller Test")
	test.ExpectEquality(t, h.Banner, "n64build test")
	test.DemandEquality(t, len(h.TOC), 3)

	start := image.DataStart(entries)
	test.ExpectEquality(t, start%image.DataAlign, int64(0))

	expected := []int64{0, 1000, 1056}
	for i, e := range h.TOC {
		test.ExpectEquality(t, e.Offset, start+expected[i], i)
		test.ExpectEquality(t, e.Offset, p[i].Offset, i)
		test.ExpectEquality(t, e.Offset%int64(e.Align), int64(0), i)
		test.ExpectEquality(t, e.Name, entries[i].Name, i)

		b := data[filepath.Base(entries[i].Path)]
		test.ExpectEquality(t, e.Size, int64(len(b)), i)
		test.ExpectSuccess(t, bytes.Equal(img[e.Offset:e.End()], b), i)
	}

	test.ExpectEquality(t, int64(len(img)), h.TOC[2].End())

	// no temporary files are left behind
	files, err := os.ReadDir(dir)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, len(files), 4)
}

func TestNativePackerStrings(t *testing.T) {
	dir := t.TempDir()
	writeEntries(t, dir, map[string]int{"prog": 300, "sym": 8})
	out := filepath.Join(dir, "firmware.z64")

	entries := []image.Entry{
		{Name: "program", Path: filepath.Join(dir, "prog"), Align: 256},
		{Name: "symbols", Path: filepath.Join(dir, "sym"), Align: 8},
	}

	// fixed length fields of the header
	pk := &image.NativePacker{Banner: "n64build test"}
	_, err := pk.Pack(context.Background(), out, strings.Repeat("t", 21), entries)
	test.ExpectSuccess(t, curated.Is(err, image.TitleTooLong))
	test.ExpectFailure(t, test.FileExists(out))

	long := []image.Entry{entries[0], {Name: strings.Repeat("s", 25), Path: entries[1].Path, Align: 8}}
	_, err = pk.Pack(context.Background(), out, "title", long)
	test.ExpectSuccess(t, curated.Is(err, image.NameTooLong))
	test.ExpectFailure(t, test.FileExists(out))

	// a title that fills the field exactly is accepted
	title := strings.Repeat("t", 20)

	// the banner is shortened without splitting the two byte rune that
	// straddles the end of the field
	pk.Banner = strings.Repeat("b", 31) + "é"
	_, err = pk.Pack(context.Background(), out, title, entries)
	test.DemandSuccess(t, err)

	h := readHeader(t, out)
	test.ExpectEquality(t, h.Title, title)
	test.ExpectEquality(t, h.Banner, strings.Repeat("b", 31))
}

func readHeader(t *testing.T, filename string) image.Header {
	t.Helper()
	h, err := image.ReadHeader(bytes.NewReader(test.ReadFile(t, filename)))
	test.DemandSuccess(t, err)
	return h
}

func TestNativePackerOverwrite(t *testing.T) {
	dir := t.TempDir()
	writeEntries(t, dir, map[string]int{"prog": 300, "sym": 8})
	out := filepath.Join(dir, "firmware.z64")

	// stale bytes from a previous, larger image must not survive
	test.WriteFile(t, out, make([]byte, 100000))

	pk := &image.NativePacker{}
	p, err := pk.Pack(context.Background(), out, "t", image.StandardEntries(
		filepath.Join(dir, "prog"), filepath.Join(dir, "sym"), "", ""))
	test.DemandSuccess(t, err)

	test.ExpectEquality(t, int64(len(test.ReadFile(t, out))), p[1].End())
}

func TestMissingEntry(t *testing.T) {
	dir := t.TempDir()
	writeEntries(t, dir, map[string]int{"prog": 300})
	out := filepath.Join(dir, "firmware.z64")

	entries := image.StandardEntries(filepath.Join(dir, "prog"), filepath.Join(dir, "sym"), "", "")

	pk := &image.NativePacker{}
	_, err := pk.Pack(context.Background(), out, "t", entries)
	test.ExpectSuccess(t, curated.Is(err, image.MissingEntry))
	test.ExpectFailure(t, test.FileExists(out))

	run := toolrun.NewFakeRunner()
	tp := &image.ToolPacker{TC: &toolchain.Toolchain{Root: "/opt/n64"}, Run: run}
	_, err = tp.Pack(context.Background(), out, "t", entries)
	test.ExpectSuccess(t, curated.Is(err, image.MissingEntry))
	test.ExpectEquality(t, len(run.Commands()), 0)
}

func TestToolPacker(t *testing.T) {
	dir := t.TempDir()
	writeEntries(t, dir, map[string]int{"prog": 1000, "sym": 50})
	out := filepath.Join(dir, "firmware.z64")

	run := toolrun.NewFakeRunner()
	faketools.Install(run, "mips64-elf-")

	tp := &image.ToolPacker{TC: &toolchain.Toolchain{Root: "/opt/n64"}, Run: run}
	entries := image.StandardEntries(filepath.Join(dir, "prog"), filepath.Join(dir, "sym"), "", "")
	_, err := tp.Pack(context.Background(), out, "Controller Test", entries)
	test.DemandSuccess(t, err)

	test.ExpectEquality(t, string(test.ReadFile(t, out)), faketools.SigImage)
	test.ExpectFailure(t, test.FileExists(out+".tmp"))

	cmds := run.Find("n64tool")
	test.DemandEquality(t, len(cmds), 1)
	test.ExpectEquality(t, cmds[0].Args[0], "--title")
	test.ExpectEquality(t, cmds[0].Args[1], "Controller Test")

	// failure leaves no image
	test.DemandSuccess(t, os.Remove(out))
	run.Fail("n64tool")
	_, err = tp.Pack(context.Background(), out, "Controller Test", entries)
	test.ExpectFailure(t, err)
	test.ExpectFailure(t, test.FileExists(out))
}
