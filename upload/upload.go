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

package upload

import (
	"context"
	"strings"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/environment"
	"github.com/jetsetilly/n64build/toolrun"
)

// Sentinel error patterns.
const (
	UnknownProtocol = "upload: unknown protocol (%s)"
	Unsupported     = "upload: %s does not support %s"
	NoCommand       = "upload: custom protocol requires upload.command"
)

// SourceToken is replaced by the path of the image in a custom upload
// command.
const SourceToken = "$SOURCE"

// Uploader transfers the image.
type Uploader interface {
	Upload(ctx context.Context, image string) error
}

// Resetter is implemented by uploaders that can reset the device.
type Resetter interface {
	Reset(ctx context.Context) error
}

// SDUploader is implemented by uploaders that can write a file to the SD
// card of the device.
type SDUploader interface {
	SDUpload(ctx context.Context, src string, dest string) error
}

// NewUploader returns the uploader for the protocol in the environment.
func NewUploader(env *environment.Environment, run toolrun.Runner) (Uploader, error) {
	switch strings.ToLower(env.Upload.Protocol) {
	case "ares":
		return &Ares{Run: run, Env: env.ChildEnv()}, nil
	case "custom":
		if len(env.Upload.Command) == 0 {
			return nil, curated.Errorf(NoCommand)
		}
		return &Custom{Run: run, Command: env.Upload.Command, Env: env.ChildEnv()}, nil
	case "serial":
		return NewSerial(env.Upload.Port, env.Upload.Baud, env), nil
	}
	return nil, curated.Errorf(UnknownProtocol, env.Upload.Protocol)
}

// AsResetter returns the uploader as a Resetter or an Unsupported error.
func AsResetter(u Uploader) (Resetter, error) {
	if r, ok := u.(Resetter); ok {
		return r, nil
	}
	return nil, curated.Errorf(Unsupported, name(u), "reset")
}

// AsSDUploader returns the uploader as an SDUploader or an Unsupported
// error.
func AsSDUploader(u Uploader) (SDUploader, error) {
	if r, ok := u.(SDUploader); ok {
		return r, nil
	}
	return nil, curated.Errorf(Unsupported, name(u), "SD card upload")
}

func name(u Uploader) string {
	switch u.(type) {
	case *Ares:
		return "ares"
	case *Custom:
		return "custom"
	case *Serial:
		return "serial"
	}
	return "uploader"
}

// Ares launches the image in the ares emulator. The emulator must be in the
// PATH.
type Ares struct {
	Run toolrun.Runner
	Env []string
}

// Upload implements the Uploader interface.
func (a *Ares) Upload(ctx context.Context, image string) error {
	cmd := toolrun.Command{
		Tool: "ares",
		Args: []string{image},
		Env:  a.Env,
	}
	if err := a.Run.Run(ctx, cmd); err != nil {
		return curated.Errorf("upload: %v", err)
	}
	return nil
}

// Custom runs the command in the upload.command preference. The SourceToken
// in the command is replaced by the path of the image. If there is no
// SourceToken the path is appended to the command.
type Custom struct {
	Run     toolrun.Runner
	Command []string
	Env     []string
}

// Upload implements the Uploader interface.
func (c *Custom) Upload(ctx context.Context, image string) error {
	if len(c.Command) == 0 {
		return curated.Errorf(NoCommand)
	}

	args := make([]string, 0, len(c.Command))
	found := false
	for _, a := range c.Command[1:] {
		if strings.Contains(a, SourceToken) {
			a = strings.ReplaceAll(a, SourceToken, image)
			found = true
		}
		args = append(args, a)
	}
	if !found {
		args = append(args, image)
	}

	cmd := toolrun.Command{
		Tool: c.Command[0],
		Args: args,
		Env:  c.Env,
	}
	if err := c.Run.Run(ctx, cmd); err != nil {
		return curated.Errorf("upload: %v", err)
	}
	return nil
}
