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

package coprocessor

import (
	"debug/elf"

	"github.com/jetsetilly/n64build/curated"
)

// SymbolMismatch is returned by Verify() when a repackaged object does not
// describe the blobs it was made from. The values are the unit ID, the
// symbol name and a description of the problem.
const SymbolMismatch = "coprocessor: %s: %s: %s"

// Verify that the relocatable object exposes the start, end and size symbols
// for every blob and that they agree with the size of the blob.
func Verify(obj string, blobs []Blob) error {
	ef, err := elf.Open(obj)
	if err != nil {
		return curated.Errorf("coprocessor: %v", err)
	}
	defer ef.Close()

	symbols, err := ef.Symbols()
	if err != nil {
		return curated.Errorf("coprocessor: %v", err)
	}

	lookup := make(map[string]elf.Symbol)
	for _, s := range symbols {
		lookup[s.Name] = s
	}

	if len(blobs) > 0 {
		data := ef.Section(".data")
		if data == nil {
			return curated.Errorf(SymbolMismatch, blobs[0].Unit, ".data", "section missing")
		}
		if data.Addralign < DataAlignment {
			return curated.Errorf(SymbolMismatch, blobs[0].Unit, ".data", "alignment is less than 8")
		}
	}

	for _, b := range blobs {
		var sym [3]elf.Symbol
		for i, suffix := range []string{SymStart, SymEnd, SymSize} {
			name := SymbolName(b.Unit, b.Section, suffix)
			s, ok := lookup[name]
			if !ok {
				return curated.Errorf(SymbolMismatch, b.Unit, name, "not found")
			}
			sym[i] = s
		}

		start, end, size := sym[0], sym[1], sym[2]
		if start.Value%DataAlignment != 0 {
			return curated.Errorf(SymbolMismatch, b.Unit, start.Name, "not aligned")
		}
		if end.Value-start.Value != uint64(b.Size) {
			return curated.Errorf(SymbolMismatch, b.Unit, end.Name, "does not match size of blob")
		}
		if size.Section != elf.SHN_ABS || size.Value != uint64(b.Size) {
			return curated.Errorf(SymbolMismatch, b.Unit, size.Name, "does not match size of blob")
		}
	}

	return nil
}
