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
	"os"
	"path/filepath"
	"sync"

	"github.com/jetsetilly/n64build/curated"
)

// FakeFailure is the pattern for errors returned by FakeRunner when a
// scripted failure is triggered.
const FakeFailure = "tool: %s: scripted failure"

// FakeRunner implements the Runner interface without running anything. Each
// command is recorded and passed to the handler registered for the tool's
// base name. Handlers produce whatever files the real tool would have
// produced.
//
// Intended for testing pipeline stages without a cross compiler installed.
type FakeRunner struct {
	crit     sync.Mutex
	commands []Command
	handlers map[string]func(cmd Command) error
	fail     map[string]bool
}

// NewFakeRunner is the preferred method of initialisation for the FakeRunner
// type.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		handlers: make(map[string]func(cmd Command) error),
		fail:     make(map[string]bool),
	}
}

// Handle registers the function to be called when a tool with the base name
// is run. Tools without a handler succeed without doing anything.
func (r *FakeRunner) Handle(name string, f func(cmd Command) error) {
	r.crit.Lock()
	defer r.crit.Unlock()
	r.handlers[name] = f
}

// Fail causes every invocation of the named tool to fail.
func (r *FakeRunner) Fail(name string) {
	r.crit.Lock()
	defer r.crit.Unlock()
	r.fail[name] = true
}

// Run implements the Runner interface.
func (r *FakeRunner) Run(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.crit.Lock()
	r.commands = append(r.commands, cmd)
	f := r.handlers[cmd.Name()]
	fail := r.fail[cmd.Name()]
	r.crit.Unlock()

	if fail {
		return curated.Errorf(FakeFailure, cmd.Name())
	}

	if f != nil {
		return f(cmd)
	}

	return nil
}

// Commands returns a copy of the commands run so far, in the order they
// were run.
func (r *FakeRunner) Commands() []Command {
	r.crit.Lock()
	defer r.crit.Unlock()
	c := make([]Command, len(r.commands))
	copy(c, r.commands)
	return c
}

// Find returns the commands for the named tool.
func (r *FakeRunner) Find(name string) []Command {
	var c []Command
	for _, cmd := range r.Commands() {
		if cmd.Name() == name {
			c = append(c, cmd)
		}
	}
	return c
}

// Touch is a helper for handlers. It writes data to the file, resolving the
// filename against the command's working directory if necessary.
func Touch(cmd Command, filename string, data []byte) error {
	if !filepath.IsAbs(filename) && cmd.Dir != "" {
		filename = filepath.Join(cmd.Dir, filename)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

// Resolve returns filename resolved against the command's working directory.
func Resolve(cmd Command, filename string) string {
	if !filepath.IsAbs(filename) && cmd.Dir != "" {
		return filepath.Join(cmd.Dir, filename)
	}
	return filename
}
