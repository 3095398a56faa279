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

package test

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// ELFSection is a section of an ELFFile.
type ELFSection struct {
	Name  string
	Data  []byte
	Flags elf.SectionFlag
	Align uint32
	Addr  uint32
}

// ELFSymbol is a symbol in an ELFFile. Section is the name of the section
// the symbol is defined in. An empty section name means the symbol is
// undefined and the special name ABS means the symbol is absolute.
type ELFSymbol struct {
	Name    string
	Section string
	Value   uint32
	Size    uint32
	Global  bool
	Type    elf.SymType
}

// ABS is the section name for absolute symbols.
const ABS = "*ABS*"

// ELFFile describes a minimal big-endian 32bit MIPS ELF file. It is enough
// for the debug/elf package and for the tools in this repository that read
// sections and symbols.
type ELFFile struct {
	Type     elf.Type
	Sections []ELFSection
	Symbols  []ELFSymbol
}

type strtab struct {
	buf bytes.Buffer
	idx map[string]uint32
}

func newStrtab() *strtab {
	s := &strtab{idx: make(map[string]uint32)}
	s.buf.WriteByte(0)
	return s
}

func (s *strtab) add(str string) uint32 {
	if str == "" {
		return 0
	}
	if i, ok := s.idx[str]; ok {
		return i
	}
	i := uint32(s.buf.Len())
	s.buf.WriteString(str)
	s.buf.WriteByte(0)
	s.idx[str] = i
	return i
}

const (
	elfHeaderSize  = 52
	elfSectionSize = 40
	elfSymbolSize  = 16
)

// Bytes returns the encoded ELF file.
func (f ELFFile) Bytes() []byte {
	be := binary.BigEndian

	type shdr struct {
		name, typ, flags, addr, offset, size, link, info, align, entsize uint32
	}

	secIdx := make(map[string]uint16)
	for i, s := range f.Sections {
		secIdx[s.Name] = uint16(i + 1)
	}
	symtabIdx := uint32(len(f.Sections) + 1)
	strtabIdx := symtabIdx + 1
	shstrtabIdx := strtabIdx + 1

	shstr := newStrtab()
	str := newStrtab()

	var body bytes.Buffer
	pad := func(align uint32) {
		if align == 0 {
			align = 1
		}
		for uint32(elfHeaderSize+body.Len())%align != 0 {
			body.WriteByte(0)
		}
	}

	var headers []shdr
	headers = append(headers, shdr{})

	for _, s := range f.Sections {
		pad(s.Align)
		flags := s.Flags
		if flags == 0 {
			flags = elf.SHF_ALLOC
		}
		headers = append(headers, shdr{
			name:   shstr.add(s.Name),
			typ:    uint32(elf.SHT_PROGBITS),
			flags:  uint32(flags),
			addr:   s.Addr,
			offset: uint32(elfHeaderSize + body.Len()),
			size:   uint32(len(s.Data)),
			align:  s.Align,
		})
		body.Write(s.Data)
	}

	// local symbols must preceed global symbols
	syms := append([]ELFSymbol{}, f.Symbols...)
	sort.SliceStable(syms, func(i, j int) bool {
		return !syms[i].Global && syms[j].Global
	})

	var symtab bytes.Buffer
	symtab.Write(make([]byte, elfSymbolSize))
	firstGlobal := uint32(len(syms) + 1)
	for i, s := range syms {
		if s.Global && firstGlobal > uint32(len(syms)) {
			firstGlobal = uint32(i + 1)
		}

		bind := elf.STB_LOCAL
		if s.Global {
			bind = elf.STB_GLOBAL
		}

		var shndx uint16
		switch s.Section {
		case "":
			shndx = uint16(elf.SHN_UNDEF)
		case ABS:
			shndx = uint16(elf.SHN_ABS)
		default:
			shndx = secIdx[s.Section]
		}

		var e [elfSymbolSize]byte
		be.PutUint32(e[0:], str.add(s.Name))
		be.PutUint32(e[4:], s.Value)
		be.PutUint32(e[8:], s.Size)
		e[12] = elf.ST_INFO(bind, s.Type)
		be.PutUint16(e[14:], shndx)
		symtab.Write(e[:])
	}

	pad(4)
	headers = append(headers, shdr{
		name:    shstr.add(".symtab"),
		typ:     uint32(elf.SHT_SYMTAB),
		offset:  uint32(elfHeaderSize + body.Len()),
		size:    uint32(symtab.Len()),
		link:    strtabIdx,
		info:    firstGlobal,
		align:   4,
		entsize: elfSymbolSize,
	})
	body.Write(symtab.Bytes())

	headers = append(headers, shdr{
		name:   shstr.add(".strtab"),
		typ:    uint32(elf.SHT_STRTAB),
		offset: uint32(elfHeaderSize + body.Len()),
		size:   uint32(str.buf.Len()),
		align:  1,
	})
	body.Write(str.buf.Bytes())

	// the name of the section name table must be added before the table is
	// written
	shstrName := shstr.add(".shstrtab")
	headers = append(headers, shdr{
		name:   shstrName,
		typ:    uint32(elf.SHT_STRTAB),
		offset: uint32(elfHeaderSize + body.Len()),
		size:   uint32(shstr.buf.Len()),
		align:  1,
	})
	body.Write(shstr.buf.Bytes())

	pad(4)
	shoff := uint32(elfHeaderSize + body.Len())

	var out bytes.Buffer

	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	out.Write(ident[:])

	typ := f.Type
	if typ == elf.ET_NONE {
		typ = elf.ET_EXEC
	}

	var hdr [elfHeaderSize - elf.EI_NIDENT]byte
	be.PutUint16(hdr[0:], uint16(typ))
	be.PutUint16(hdr[2:], uint16(elf.EM_MIPS))
	be.PutUint32(hdr[4:], uint32(elf.EV_CURRENT))
	be.PutUint32(hdr[8:], 0)  // entry
	be.PutUint32(hdr[12:], 0) // phoff
	be.PutUint32(hdr[16:], shoff)
	be.PutUint32(hdr[20:], 0) // flags
	be.PutUint16(hdr[24:], elfHeaderSize)
	be.PutUint16(hdr[26:], 32) // phentsize
	be.PutUint16(hdr[28:], 0)  // phnum
	be.PutUint16(hdr[30:], elfSectionSize)
	be.PutUint16(hdr[32:], uint16(len(headers)))
	be.PutUint16(hdr[34:], uint16(shstrtabIdx))
	out.Write(hdr[:])

	out.Write(body.Bytes())

	for _, h := range headers {
		var e [elfSectionSize]byte
		be.PutUint32(e[0:], h.name)
		be.PutUint32(e[4:], h.typ)
		be.PutUint32(e[8:], h.flags)
		be.PutUint32(e[12:], h.addr)
		be.PutUint32(e[16:], h.offset)
		be.PutUint32(e[20:], h.size)
		be.PutUint32(e[24:], h.link)
		be.PutUint32(e[28:], h.info)
		be.PutUint32(e[32:], h.align)
		be.PutUint32(e[36:], h.entsize)
		out.Write(e[:])
	}

	return out.Bytes()
}

// Write the ELF file to disk.
func (f ELFFile) Write(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filename, f.Bytes(), 0o644)
}

// WriteELF writes the ELF file to disk and fails the test if that is not
// possible.
func WriteELF(t *testing.T, filename string, f ELFFile) {
	t.Helper()
	if err := f.Write(filename); err != nil {
		t.Fatalf("cannot write ELF %s: %v", filename, err)
	}
}
