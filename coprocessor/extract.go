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
	"debug/elf"
	"os"
	"path/filepath"

	"github.com/jetsetilly/n64build/artifacts"
	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/logger"
	"github.com/jetsetilly/n64build/paths"
)

// MissingSection is returned when a mandatory section is not in the unit
// executable. The values are the unit ID and the section name.
const MissingSection = "coprocessor: %s: missing section .%s"

// Blob is a section extracted from a unit executable.
type Blob struct {
	Unit    string
	Section string

	// absolute path of the blob
	Path string

	// size of the blob as written. a placeholder has a size of one
	Size int

	// the section was empty and the blob is a placeholder
	Placeholder bool
}

// Link the unit executable for a coprocessor target.
func (p *Processor) Link(ctx context.Context, t artifacts.Target) error {
	exe := p.store.UnitExecutablePath(t)
	if err := os.MkdirAll(filepath.Dir(exe), 0o755); err != nil {
		return curated.Errorf("coprocessor: %v", err)
	}

	cmd := p.tc.CompileCoprocessor(t.Source, exe, p.store.UnitMapPath(t))
	if err := p.run.Run(ctx, cmd); err != nil {
		return curated.Errorf("coprocessor: %s: %v", t.Unit, err)
	}
	return nil
}

// Extract the sections of the unit executable for the target. Blobs are
// returned in the order of the sections list. An optional section that is
// absent or empty does not produce a blob.
func (p *Processor) Extract(ctx context.Context, t artifacts.Target) ([]Blob, error) {
	return p.extract(ctx, t, p.store.UnitExecutablePath(t), p.sections)
}

func (p *Processor) extract(ctx context.Context, t artifacts.Target, exe string, sections []Section) ([]Blob, error) {
	present, err := sectionSizes(exe)
	if err != nil {
		return nil, curated.Errorf("coprocessor: %s: %v", t.Unit, err)
	}

	// every mandatory section is checked before any tool is run so that a
	// failed unit leaves no blobs behind
	for _, s := range sections {
		if _, ok := present["."+s.Name]; !ok && s.Mandatory {
			return nil, curated.Errorf(MissingSection, t.Unit, s.Name)
		}
	}

	build := p.store.BuildDir()

	var blobs []Blob

	for _, s := range sections {
		size, ok := present["."+s.Name]
		if !ok {
			continue
		}

		if size == 0 && !s.Mandatory {
			logger.Logf(p.perm, "extract", "%s: skipping empty .%s", t.Unit, s.Name)
			continue
		}

		path := p.store.BlobPath(t, s.Name)

		// the blob is always recreated. a previous placeholder must not
		// survive a rebuild in which the section is no longer empty
		_ = os.Remove(path)

		cmd := p.tc.SectionCopy(build, paths.Rel(build, exe), s.Name, paths.Rel(build, path))
		if err := p.run.Run(ctx, cmd); err != nil {
			return nil, curated.Errorf("coprocessor: %s: %v", t.Unit, err)
		}

		b := Blob{
			Unit:    t.Unit,
			Section: s.Name,
			Path:    path,
		}

		info, err := os.Stat(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, curated.Errorf("coprocessor: %s: %v", t.Unit, err)
		}

		if err != nil || info.Size() == 0 {
			// objcopy -I binary refuses empty files
			if err := os.WriteFile(path, []byte{0}, 0o644); err != nil {
				return nil, curated.Errorf("coprocessor: %s: %v", t.Unit, err)
			}
			b.Size = 1
			b.Placeholder = true
			logger.Logf(p.perm, "extract", "%s: .%s is empty. using placeholder", t.Unit, s.Name)
		} else {
			b.Size = int(info.Size())
		}

		blobs = append(blobs, b)
	}

	return blobs, nil
}

// sectionSizes returns the size of every section in the ELF file.
func sectionSizes(filename string) (map[string]uint64, error) {
	ef, err := elf.Open(filename)
	if err != nil {
		return nil, err
	}
	defer ef.Close()

	sizes := make(map[string]uint64)
	for _, s := range ef.Sections {
		if s.Type == elf.SHT_NULL {
			continue
		}
		sizes[s.Name] = s.Size
	}
	return sizes, nil
}
