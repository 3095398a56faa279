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
	"github.com/jetsetilly/n64build/artifacts"
	"github.com/jetsetilly/n64build/environment"
	"github.com/jetsetilly/n64build/logger"
	"github.com/jetsetilly/n64build/toolchain"
	"github.com/jetsetilly/n64build/toolrun"
)

// Names of the sections extracted from a coprocessor executable.
const (
	Text = "text"
	Data = "data"
	Meta = "meta"
)

// DataAlignment is the alignment of the payload in the repackaged object.
const DataAlignment = 8

// Section is a section to be extracted from a coprocessor executable.
type Section struct {
	Name string

	// a mandatory section must be present in the executable. an empty
	// mandatory section is replaced with a one byte placeholder
	Mandatory bool
}

// Processor performs the coprocessor steps for every unit of a build.
type Processor struct {
	tc    *toolchain.Toolchain
	run   toolrun.Runner
	store *artifacts.Store
	perm  logger.Permission

	sections []Section
}

// NewProcessor is the preferred method of initialisation for the Processor
// type.
func NewProcessor(env *environment.Environment, tc *toolchain.Toolchain, run toolrun.Runner, store *artifacts.Store) *Processor {
	return &Processor{
		tc:       tc,
		run:      run,
		store:    store,
		perm:     env,
		sections: Sections(env.Meta),
	}
}

// Sections returns the list of sections to extract, in the order they are
// combined by the relink. The meta section is mandatory only if meta is
// true. Otherwise it is included when present.
func Sections(meta bool) []Section {
	return []Section{
		{Name: Text, Mandatory: true},
		{Name: Data, Mandatory: true},
		{Name: Meta, Mandatory: meta},
	}
}
