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

package image

import (
	"github.com/jetsetilly/n64build/curated"
)

// InvalidAlignment is returned when an entry alignment is not a power of
// two.
const InvalidAlignment = "image: %s: invalid alignment (%d)"

// Standard alignments.
const (
	AlignProgram    = 256
	AlignSymbols    = 8
	AlignModuleSyms = 8
	AlignFilesystem = 16
)

// Names of the standard entries.
const (
	NameProgram    = "program"
	NameSymbols    = "symbols"
	NameModuleSyms = "module-symbols"
	NameFilesystem = "filesystem"
)

// Entry is a file to be packed into the image.
type Entry struct {
	Name  string
	Path  string
	Align int
}

// Placement is the position of an entry in the image.
type Placement struct {
	Entry
	Offset int64
	Size   int64
}

// End returns the offset of the first byte after the entry.
func (p Placement) End() int64 {
	return p.Offset + p.Size
}

// StandardEntries returns the entries of the standard image in the fixed
// order. The optional module symbols and filesystem are omitted if their
// path is empty.
func StandardEntries(program string, symbols string, moduleSyms string, filesystem string) []Entry {
	e := []Entry{
		{Name: NameProgram, Path: program, Align: AlignProgram},
		{Name: NameSymbols, Path: symbols, Align: AlignSymbols},
	}
	if moduleSyms != "" {
		e = append(e, Entry{Name: NameModuleSyms, Path: moduleSyms, Align: AlignModuleSyms})
	}
	if filesystem != "" {
		e = append(e, Entry{Name: NameFilesystem, Path: filesystem, Align: AlignFilesystem})
	}
	return e
}

func alignUp(v int64, align int) int64 {
	a := int64(align)
	return (v + a - 1) &^ (a - 1)
}

func validAlign(align int) bool {
	return align > 0 && align&(align-1) == 0
}

// Layout places the entries in the order given. Offsets are relative to the
// start of the data area and every offset is a multiple of the entry's
// alignment. The sizes slice must be the same length as the entries slice.
func Layout(entries []Entry, sizes []int64) ([]Placement, error) {
	if len(entries) != len(sizes) {
		return nil, curated.Errorf("image: %d entries but %d sizes", len(entries), len(sizes))
	}

	placements := make([]Placement, 0, len(entries))

	var end int64
	for i, e := range entries {
		if !validAlign(e.Align) {
			return nil, curated.Errorf(InvalidAlignment, e.Name, e.Align)
		}
		p := Placement{
			Entry:  e,
			Offset: alignUp(end, e.Align),
			Size:   sizes[i],
		}
		placements = append(placements, p)
		end = p.End()
	}

	return placements, nil
}

// MaxAlign returns the largest alignment of the entries.
func MaxAlign(entries []Entry) int {
	m := 1
	for _, e := range entries {
		if e.Align > m {
			m = e.Align
		}
	}
	return m
}
