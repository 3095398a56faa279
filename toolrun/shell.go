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

package toolrun

import (
	"fmt"
	"io"
	"sync"
)

// Shell prints command lines on behalf of a Runner. Commands from parallel
// pipeline nodes are serialised so that lines are never interleaved.
type Shell struct {
	crit sync.Mutex
	out  io.Writer
}

// NewShell is the preferred method of initialisation for the Shell type.
func NewShell(out io.Writer) *Shell {
	return &Shell{out: out}
}

// ShowCmd prints the command line.
func (sh *Shell) ShowCmd(cmd Command) {
	sh.crit.Lock()
	defer sh.crit.Unlock()
	if cmd.Dir != "" {
		fmt.Fprintf(sh.out, "cd %s && %s\n", quote(cmd.Dir), cmd.String())
	} else {
		fmt.Fprintln(sh.out, cmd.String())
	}
}
