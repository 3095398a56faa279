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
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Command is a single invocation of an external tool. Arguments are a list
// and are never interpolated into a shell string.
type Command struct {
	// path to the tool binary
	Tool string
	Args []string

	// working directory of the tool. the current directory if empty
	Dir string

	// environment of the tool. the environment of n64build if nil
	Env []string

	// if not nil, the standard output of the tool is also written here. the
	// size report uses this to parse the output of the size tool
	Stdout io.Writer
}

// Name returns the base name of the tool.
func (cmd Command) Name() string {
	return filepath.Base(cmd.Tool)
}

// String returns the command line as it would be typed into a shell.
func (cmd Command) String() string {
	s := strings.Builder{}
	s.WriteString(quote(cmd.Tool))
	for _, a := range cmd.Args {
		s.WriteString(" ")
		s.WriteString(quote(a))
	}
	return s.String()
}

// quote adds single quotes to arguments that would otherwise be split or
// interpreted by a shell. used only for display.
func quote(a string) string {
	if a == "" {
		return "''"
	}
	if strings.ContainsAny(a, " \t\n'\"$\\*?;&|<>()") {
		return fmt.Sprintf("'%s'", strings.ReplaceAll(a, "'", `'\''`))
	}
	return a
}

// Runner implementations run external tools. A Runner must be safe to call
// from more than one goroutine.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}
