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
	"errors"
	"io"
	"os/exec"
	"strings"

	"github.com/jetsetilly/n64build/curated"
)

// Sentinal patterns for errors returned by ExecRunner.
const (
	// values are the tool name, the *exec.ExitError and the tail of the tool's
	// output
	ToolFailed = "tool: %s: %v\n%s"

	// the tool could not be started at all. values are the tool name and the
	// error returned by the exec package
	ToolNotStarted = "tool: %s: %v"
)

// the maximum amount of output kept from a failing tool
const outputTail = 4096

// ExecRunner runs tools with the os/exec package.
type ExecRunner struct {
	// commands are printed to the Shell before they are run. can be nil
	Shell *Shell

	// tool output is copied here as it is produced. can be nil
	Output io.Writer
}

// Run implements the Runner interface.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	if r.Shell != nil {
		r.Shell.ShowCmd(cmd)
	}

	tail, err := NewRingWriter(outputTail)
	if err != nil {
		return err
	}

	var stdout io.Writer = tail
	var stderr io.Writer = tail
	if r.Output != nil {
		stdout = io.MultiWriter(stdout, r.Output)
		stderr = io.MultiWriter(stderr, r.Output)
	}
	if cmd.Stdout != nil {
		stdout = io.MultiWriter(stdout, cmd.Stdout)
	}

	c := exec.CommandContext(ctx, cmd.Tool, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.Stdout = stdout
	c.Stderr = stderr

	err = c.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return curated.Errorf(ToolFailed, cmd.Name(), exitErr, strings.TrimSpace(tail.String()))
		}
		return curated.Errorf(ToolNotStarted, cmd.Name(), err)
	}

	return nil
}

// ExitCode returns the exit code of the tool that caused the error. The
// second return value is false if the error was not caused by a tool exiting
// with a non-zero status.
func ExitCode(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}
