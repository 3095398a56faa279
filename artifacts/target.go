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

package artifacts

import (
	"path/filepath"
	"strings"
)

// ISA identifies the processor a Target is built for.
type ISA int

// List of valid ISA values.
const (
	Primary ISA = iota
	Coprocessor
	Module
)

func (isa ISA) String() string {
	switch isa {
	case Primary:
		return "primary"
	case Coprocessor:
		return "coprocessor"
	case Module:
		return "module"
	}
	return "unknown"
}

// Target is one compilable unit of the project.
type Target struct {
	// absolute path of the source file
	Source string

	// source path relative to the source directory with forward slashes
	Rel string

	ISA  ISA
	Unit string

	// name of the dynamic module the target belongs to. empty unless ISA is
	// Module
	Module string

	// other files the target depends on. headers for example
	Deps []string
}

// CoprocessorPrefix is the filename prefix that identifies coprocessor
// sources.
const CoprocessorPrefix = "rsp_"

// primary CPU source extensions. an assembly file is a coprocessor source if
// it also has the CoprocessorPrefix.
var sourceExt = map[string]bool{
	".c":   true,
	".cpp": true,
	".cc":  true,
	".cxx": true,
	".s":   true,
}

// IsSource returns true if the filename is a source file of any kind.
func IsSource(filename string) bool {
	return sourceExt[strings.ToLower(filepath.Ext(filename))]
}

// Classify the source file by name. The caller must already have decided
// that the file is a source file.
func Classify(filename string) ISA {
	base := filepath.Base(filename)
	if strings.HasPrefix(base, CoprocessorPrefix) && filepath.Ext(base) == ".S" {
		return Coprocessor
	}
	return Primary
}

// UnitID derives the unit identifier from a path relative to the source
// directory. The extension is removed and every character that cannot
// appear in a C identifier, including path separators and dots, is replaced
// with an underscore.
func UnitID(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))

	var s strings.Builder
	for _, r := range rel {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			r = '_'
		}
		s.WriteRune(r)
	}
	return s.String()
}
