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
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jetsetilly/n64build/artifacts"
	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/logger"
	"github.com/jetsetilly/n64build/paths"
	"github.com/jetsetilly/n64build/toolchain"
)

// Suffixes of the symbols describing a section.
const (
	SymStart = "start"
	SymEnd   = "end"
	SymSize  = "size"
)

// SymbolName returns the name of a symbol for the unit section. For example,
// SymbolName("crash", "text", SymEnd) returns "crash_text_end".
func SymbolName(unit string, section string, suffix string) string {
	return fmt.Sprintf("%s_%s_%s", unit, section, suffix)
}

// Mangle returns the prefix of the symbols objcopy creates when it wraps the
// named binary file. Every character that is not a letter or a digit is
// replaced with an underscore.
func Mangle(filename string) string {
	var s strings.Builder
	s.WriteString("_binary_")
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			r = '_'
		}
		s.WriteRune(r)
	}
	return s.String()
}

// Renames returns the symbol renamings for a blob. The filename must be the
// path of the blob as given to objcopy.
func Renames(filename string, unit string, section string) []toolchain.Rename {
	m := Mangle(filename)
	return []toolchain.Rename{
		{From: m + "_" + SymStart, To: SymbolName(unit, section, SymStart)},
		{From: m + "_" + SymEnd, To: SymbolName(unit, section, SymEnd)},
		{From: m + "_" + SymSize, To: SymbolName(unit, section, SymSize)},
	}
}

func sectionOrder(section string) int {
	switch section {
	case Text:
		return 0
	case Data:
		return 1
	case Meta:
		return 2
	}
	return 3
}

// Repackage the blobs of the target as a single relocatable object. The
// path of the object is returned. The object is checked by Verify() before
// Repackage() returns.
func (p *Processor) Repackage(ctx context.Context, t artifacts.Target, blobs []Blob) (string, error) {
	if len(blobs) == 0 {
		return "", curated.Errorf(MissingSection, t.Unit, Text)
	}

	blobs = append([]Blob{}, blobs...)
	sort.SliceStable(blobs, func(i, j int) bool {
		return sectionOrder(blobs[i].Section) < sectionOrder(blobs[j].Section)
	})

	build := p.store.BuildDir()

	objs := make([]string, 0, len(blobs))
	for _, b := range blobs {
		if b.Unit != t.Unit {
			return "", curated.Errorf("coprocessor: %s: blob belongs to %s", t.Unit, b.Unit)
		}

		blob := paths.Rel(build, b.Path)
		obj := paths.Rel(build, p.store.SectionObjectPath(t, b.Section))

		cmd := p.tc.BinaryToObject(build, blob, obj, DataAlignment, Renames(blob, t.Unit, b.Section))
		if err := p.run.Run(ctx, cmd); err != nil {
			return "", curated.Errorf("coprocessor: %s: %v", t.Unit, err)
		}
		objs = append(objs, obj)
	}

	out := p.store.ObjectPath(t)
	cmd := p.tc.LinkRelocatable(build, paths.Rel(build, out), objs...)
	if err := p.run.Run(ctx, cmd); err != nil {
		return "", curated.Errorf("coprocessor: %s: %v", t.Unit, err)
	}

	if err := Verify(out, blobs); err != nil {
		return "", err
	}

	logger.Logf(p.perm, "repackage", "%s: %d sections", t.Unit, len(blobs))

	return out, nil
}
