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

// Package faketools emulates the cross compiler and the N64 tools well
// enough for the pipeline to be tested without a toolchain installed. The
// handlers are installed in a toolrun.FakeRunner.
//
// Object files and executables produced by the fake tools are real ELF files
// and can be read with the debug/elf package. The fake compiler understands
// the following directives in a source file, one per line:
//
//	@section <name> <size>    section of the given size filled with a pattern
//	@define <symbol>          global symbol defined in .text
//	@extern <symbol>          undefined symbol
//
// Other tools produce placeholder files with a short signature so that tests
// can see which tool created a file.
package faketools

import (
	"bufio"
	"bytes"
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jetsetilly/n64build/test"
	"github.com/jetsetilly/n64build/toolrun"
)

// Signatures of the files produced by the fake tools.
const (
	SigSym        = "SYM0"
	SigMsym       = "MSYM"
	SigCompressed = "CMPR"
	SigDFS        = "DFS0"
	SigDSO        = "DSO0"
	SigImage      = "Z64!"
	SigConverted  = "CONV"
)

// Install the fake tools for the prefix into the runner.
func Install(r *toolrun.FakeRunner, prefix string) {
	r.Handle(prefix+"gcc", compile)
	r.Handle(prefix+"g++", compile)
	r.Handle(prefix+"objcopy", objcopy)
	r.Handle(prefix+"ld", ld)
	r.Handle(prefix+"strip", strip)
	r.Handle(prefix+"size", size)
	r.Handle("n64sym", n64sym)
	r.Handle("n64dso-msym", n64msym)
	r.Handle("n64elfcompress", n64elfcompress)
	r.Handle("n64dso", n64dso)
	r.Handle("mkdfs", mkdfs)
	r.Handle("n64tool", n64tool)
	r.Handle("mksprite", convert)
	r.Handle("mkfont", convert)
}

// flagValue returns the argument following the flag.
func flagValue(args []string, flag string) (string, bool) {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1], true
		}
	}
	return "", false
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

// positional returns the arguments that are not flags or flag values.
func positional(args []string, withValue ...string) []string {
	skip := make(map[string]bool)
	for _, f := range withValue {
		skip[f] = true
	}

	var p []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if skip[a] {
			i++
			continue
		}
		if strings.HasPrefix(a, "-") {
			continue
		}
		p = append(p, a)
	}
	return p
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func compile(cmd toolrun.Command) error {
	out, ok := flagValue(cmd.Args, "-o")
	if !ok {
		return fmt.Errorf("no output file")
	}

	// linking the primary program rather than compiling
	if !hasFlag(cmd.Args, "-c") && !hasFlag(cmd.Args, "-nostartfiles") {
		return link(cmd, out)
	}

	p := positional(cmd.Args, "-o", "-I", "-L", "-x")
	if len(p) != 1 {
		return fmt.Errorf("expected one source file: %v", p)
	}
	src, err := os.ReadFile(toolrun.Resolve(cmd, p[0]))
	if err != nil {
		return err
	}

	f := test.ELFFile{Type: elf.ET_REL}
	if hasFlag(cmd.Args, "-nostartfiles") {
		f.Type = elf.ET_EXEC
	}

	scanner := bufio.NewScanner(bytes.NewReader(src))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		for len(fields) > 0 && !strings.HasPrefix(fields[0], "@") {
			fields = fields[1:]
		}
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "@section":
			if len(fields) != 3 {
				return fmt.Errorf("malformed section directive")
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				return err
			}
			f.Sections = append(f.Sections, test.ELFSection{
				Name:  "." + fields[1],
				Data:  pattern(n),
				Align: 8,
			})
		case "@define":
			f.Symbols = append(f.Symbols, test.ELFSymbol{
				Name: fields[1], Section: ".text", Global: true, Type: elf.STT_FUNC,
			})
		case "@extern":
			f.Symbols = append(f.Symbols, test.ELFSymbol{
				Name: fields[1], Global: true,
			})
		}
	}

	// symbols defined in .text need the section to exist
	found := false
	for _, s := range f.Sections {
		found = found || s.Name == ".text"
	}
	if !found {
		f.Sections = append(f.Sections, test.ELFSection{Name: ".text", Data: pattern(4), Align: 4})
	}

	return f.Write(toolrun.Resolve(cmd, out))
}

func objcopy(cmd toolrun.Command) error {
	p := positional(cmd.Args, "-O", "-I", "-B", "-j", "--redefine-sym", "--set-section-alignment", "--rename-section")
	if len(p) != 2 {
		return fmt.Errorf("expected input and output: %v", p)
	}
	in := toolrun.Resolve(cmd, p[0])
	out := toolrun.Resolve(cmd, p[1])

	if v, _ := flagValue(cmd.Args, "-I"); v == "binary" {
		return binaryToObject(cmd, p[0], in, out)
	}

	section, ok := flagValue(cmd.Args, "-j")
	if !ok {
		return fmt.Errorf("no section specified")
	}

	ef, err := elf.Open(in)
	if err != nil {
		return err
	}
	defer ef.Close()

	// a missing section produces an empty file as the real objcopy does
	var data []byte
	if s := ef.Section(section); s != nil {
		data, err = s.Data()
		if err != nil {
			return err
		}
	}

	return os.WriteFile(out, data, 0o644)
}

// Mangle returns the symbol prefix objcopy generates for a binary input
// file.
func Mangle(filename string) string {
	var s strings.Builder
	s.WriteString("_binary_")
	for _, r := range filename {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			s.WriteRune(r)
		} else {
			s.WriteRune('_')
		}
	}
	return s.String()
}

func binaryToObject(cmd toolrun.Command, name string, in string, out string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%s: file truncated", name)
	}

	renames := make(map[string]string)
	for i := 0; i < len(cmd.Args)-1; i++ {
		if cmd.Args[i] == "--redefine-sym" {
			kv := strings.SplitN(cmd.Args[i+1], "=", 2)
			renames[kv[0]] = kv[1]
		}
	}
	rename := func(s string) string {
		if r, ok := renames[s]; ok {
			return r
		}
		return s
	}

	align := uint32(1)
	if v, ok := flagValue(cmd.Args, "--set-section-alignment"); ok {
		if a, err := strconv.Atoi(strings.TrimPrefix(v, ".data=")); err == nil {
			align = uint32(a)
		}
	}

	m := Mangle(name)
	f := test.ELFFile{
		Type: elf.ET_REL,
		Sections: []test.ELFSection{
			{Name: ".data", Data: data, Align: align, Flags: elf.SHF_ALLOC | elf.SHF_WRITE},
		},
		Symbols: []test.ELFSymbol{
			{Name: rename(m + "_start"), Section: ".data", Value: 0, Global: true},
			{Name: rename(m + "_end"), Section: ".data", Value: uint32(len(data)), Global: true},
			{Name: rename(m + "_size"), Section: test.ABS, Value: uint32(len(data)), Global: true},
		},
	}

	return f.Write(out)
}

// merge the ELF files in the order specified. sections with the same name
// are concatenated with respect to their alignment. undefined symbols that
// are not defined by another input remain undefined.
func merge(typ elf.Type, inputs []string) (test.ELFFile, error) {
	out := test.ELFFile{Type: typ}
	secIdx := make(map[string]int)

	var syms []test.ELFSymbol
	defined := make(map[string]bool)
	undefined := make(map[string]bool)

	for _, in := range inputs {
		ef, err := elf.Open(in)
		if err != nil {
			return out, err
		}

		bases := make(map[elf.SectionIndex]uint32)
		for i, s := range ef.Sections {
			if s.Type != elf.SHT_PROGBITS {
				continue
			}
			data, err := s.Data()
			if err != nil {
				ef.Close()
				return out, err
			}

			idx, ok := secIdx[s.Name]
			if !ok {
				idx = len(out.Sections)
				secIdx[s.Name] = idx
				out.Sections = append(out.Sections, test.ELFSection{
					Name:  s.Name,
					Flags: s.Flags,
					Align: uint32(s.Addralign),
				})
			}

			sec := &out.Sections[idx]
			align := uint32(s.Addralign)
			if align == 0 {
				align = 1
			}
			if align > sec.Align {
				sec.Align = align
			}
			for uint32(len(sec.Data))%align != 0 {
				sec.Data = append(sec.Data, 0)
			}
			bases[elf.SectionIndex(i)] = uint32(len(sec.Data))
			sec.Data = append(sec.Data, data...)
		}

		symbols, err := ef.Symbols()
		if err != nil && err != elf.ErrNoSymbols {
			ef.Close()
			return out, err
		}

		for _, s := range symbols {
			t := test.ELFSymbol{
				Name:   s.Name,
				Value:  uint32(s.Value),
				Size:   uint32(s.Size),
				Global: elf.ST_BIND(s.Info) == elf.STB_GLOBAL,
				Type:   elf.ST_TYPE(s.Info),
			}
			switch s.Section {
			case elf.SHN_UNDEF:
				undefined[s.Name] = true
				continue
			case elf.SHN_ABS:
				t.Section = test.ABS
			default:
				t.Section = ef.Sections[s.Section].Name
				t.Value += bases[s.Section]
			}
			if t.Global {
				defined[s.Name] = true
			}
			syms = append(syms, t)
		}

		ef.Close()
	}

	var names []string
	for n := range undefined {
		if !defined[n] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		syms = append(syms, test.ELFSymbol{Name: n, Global: true})
	}

	out.Symbols = syms
	return out, nil
}

func ld(cmd toolrun.Command) error {
	out, ok := flagValue(cmd.Args, "-o")
	if !ok {
		return fmt.Errorf("no output file")
	}

	var inputs []string
	for _, p := range positional(cmd.Args, "-o", "-T") {
		if strings.HasSuffix(p, ".o") {
			inputs = append(inputs, toolrun.Resolve(cmd, p))
		}
	}

	typ := elf.ET_EXEC
	if hasFlag(cmd.Args, "-relocatable") {
		typ = elf.ET_REL
	}

	f, err := merge(typ, inputs)
	if err != nil {
		return err
	}

	return f.Write(toolrun.Resolve(cmd, out))
}

// link the primary program. the externs linker script, if specified, must
// exist.
func link(cmd toolrun.Command, out string) error {
	var inputs []string
	for _, a := range cmd.Args {
		if strings.HasPrefix(a, "-Wl,-T,") {
			if _, err := os.Stat(toolrun.Resolve(cmd, a[len("-Wl,-T,"):])); err != nil {
				return fmt.Errorf("cannot open linker script: %v", err)
			}
		}
	}
	for _, p := range positional(cmd.Args, "-o", "-L", "-T") {
		if strings.HasSuffix(p, ".o") {
			inputs = append(inputs, toolrun.Resolve(cmd, p))
		}
	}

	f, err := merge(elf.ET_EXEC, inputs)
	if err != nil {
		return err
	}

	return f.Write(toolrun.Resolve(cmd, out))
}

func copyFile(from string, to string, prefix string) error {
	data, err := os.ReadFile(from)
	if err != nil {
		return err
	}
	return os.WriteFile(to, append([]byte(prefix), data...), 0o644)
}

func strip(cmd toolrun.Command) error {
	out, ok := flagValue(cmd.Args, "-o")
	if !ok {
		return fmt.Errorf("no output file")
	}
	p := positional(cmd.Args, "-o")
	return copyFile(toolrun.Resolve(cmd, p[0]), toolrun.Resolve(cmd, out), "")
}

func size(cmd toolrun.Command) error {
	p := positional(cmd.Args)
	ef, err := elf.Open(toolrun.Resolve(cmd, p[0]))
	if err != nil {
		return err
	}
	defer ef.Close()

	if cmd.Stdout == nil {
		return nil
	}

	fmt.Fprintf(cmd.Stdout, "%s  :\nsection   size   addr\n", p[0])
	total := uint64(0)
	for _, s := range ef.Sections {
		if s.Type != elf.SHT_PROGBITS {
			continue
		}
		fmt.Fprintf(cmd.Stdout, "%-10s %d   %d\n", s.Name, s.Size, s.Addr)
		total += s.Size
	}
	fmt.Fprintf(cmd.Stdout, "Total  %d\n\n", total)
	return nil
}

func n64sym(cmd toolrun.Command) error {
	p := positional(cmd.Args)
	return toolrun.Touch(cmd, p[1], []byte(SigSym))
}

func n64msym(cmd toolrun.Command) error {
	p := positional(cmd.Args)
	return toolrun.Touch(cmd, p[1], []byte(SigMsym))
}

// n64elfcompress operates in place.
func n64elfcompress(cmd toolrun.Command) error {
	p := positional(cmd.Args, "-c")
	fn := toolrun.Resolve(cmd, p[0])
	return copyFile(fn, fn, SigCompressed)
}

func n64dso(cmd toolrun.Command) error {
	dir, ok := flagValue(cmd.Args, "-o")
	if !ok {
		return fmt.Errorf("no output directory")
	}
	p := positional(cmd.Args, "-o")
	name := strings.TrimSuffix(filepath.Base(p[0]), filepath.Ext(p[0])) + ".dso"
	return toolrun.Touch(cmd, filepath.Join(dir, name), []byte(SigDSO))
}

// mkdfs creates a file containing the relative names of the files in the
// directory in lexical order.
func mkdfs(cmd toolrun.Command) error {
	p := positional(cmd.Args)
	dir := toolrun.Resolve(cmd, p[1])

	var names []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(dir, path)
			names = append(names, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(names)

	return toolrun.Touch(cmd, p[0], []byte(SigDFS+strings.Join(names, "\n")))
}

func n64tool(cmd toolrun.Command) error {
	out, ok := flagValue(cmd.Args, "--output")
	if !ok {
		return fmt.Errorf("no output file")
	}
	for _, p := range positional(cmd.Args, "--title", "--output", "--align") {
		if _, err := os.Stat(toolrun.Resolve(cmd, p)); err != nil {
			return err
		}
	}
	return toolrun.Touch(cmd, out, []byte(SigImage))
}

func convert(cmd toolrun.Command) error {
	dir, ok := flagValue(cmd.Args, "-o")
	if !ok {
		return fmt.Errorf("no output directory")
	}
	p := positional(cmd.Args, "-o", "--format")
	src := p[len(p)-1]
	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + ".sprite"
	if cmd.Name() == "mkfont" {
		name = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + ".font64"
	}
	return toolrun.Touch(cmd, filepath.Join(dir, name), []byte(SigConverted))
}
