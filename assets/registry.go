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

package assets

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/paths"
	"github.com/jetsetilly/n64build/toolchain"
	"github.com/jetsetilly/n64build/toolrun"
)

// DuplicateOutput is returned when two assets would be written to the same
// path of the filesystem image.
const DuplicateOutput = "assets: %s and %s both convert to %s"

// Converter converts one asset. The source file is converted into outDir and
// the path of the output is returned.
type Converter interface {
	Convert(ctx context.Context, src string, outDir string) (string, error)

	// Output returns the path Convert() will write for the source file
	// without converting anything.
	Output(src string, outDir string) string
}

// Registry maps source file extensions to converters.
type Registry struct {
	converters map[string]Converter
	fallback   Converter
}

// NewRegistry creates a registry with the converters described by the rules
// string. Files with an extension not named by a rule are copied unchanged.
func NewRegistry(rules string, tc *toolchain.Toolchain, run toolrun.Runner) (*Registry, error) {
	r := &Registry{
		converters: make(map[string]Converter),
		fallback:   CopyConverter{},
	}

	parsed, err := ParseRules(rules)
	if err != nil {
		return nil, err
	}
	for _, rl := range parsed {
		if rl.Tool == BuiltinPCM {
			r.Register(rl.Ext, PCMConverter{})
			continue
		}
		r.Register(rl.Ext, &ExternalConverter{
			Rule: rl,
			TC:   tc,
			Run:  run,
		})
	}

	return r, nil
}

// Register a converter for an extension. The extension includes the leading
// dot and is not case sensitive.
func (r *Registry) Register(ext string, c Converter) {
	r.converters[strings.ToLower(ext)] = c
}

// Lookup returns the converter for the filename.
func (r *Registry) Lookup(filename string) Converter {
	if c, ok := r.converters[strings.ToLower(filepath.Ext(filename))]; ok {
		return c
	}
	return r.fallback
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	e := make([]string, 0, len(r.converters))
	for k := range r.converters {
		e = append(e, k)
	}
	sort.Strings(e)
	return e
}

// Outputs returns the output path of every file in the list, in the same
// order. The files are in the assets directory and outputs are placed in the
// staging directory. Returns DuplicateOutput if two files would be written
// to the same path.
func (r *Registry) Outputs(assetsDir string, stagingDir string, files []string) ([]string, error) {
	outs := make([]string, 0, len(files))
	seen := make(map[string]string, len(files))

	for _, src := range files {
		out := r.Lookup(src).Output(src, OutDir(assetsDir, stagingDir, src))
		if prev, ok := seen[out]; ok {
			return nil, curated.Errorf(DuplicateOutput, paths.Rel(assetsDir, prev),
				paths.Rel(assetsDir, src), paths.Rel(stagingDir, out))
		}
		seen[out] = src
		outs = append(outs, out)
	}

	return outs, nil
}

// List returns every file under dir in lexical order. An empty list is
// returned if dir does not exist.
func List(dir string) ([]string, error) {
	var files []string

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, curated.Errorf("assets: %v", err)
	}

	sort.Strings(files)
	return files, nil
}

// OutDir returns the directory a converted asset is written to. The
// directory structure of the assets directory is preserved.
func OutDir(assetsDir string, stagingDir string, src string) string {
	rel := paths.Rel(assetsDir, src)
	return filepath.Join(stagingDir, filepath.FromSlash(path.Dir(rel)))
}

// CopyConverter copies the source file unchanged.
type CopyConverter struct{}

// Output implements the Converter interface.
func (CopyConverter) Output(src string, outDir string) string {
	return filepath.Join(outDir, filepath.Base(src))
}

// Convert implements the Converter interface.
func (c CopyConverter) Convert(ctx context.Context, src string, outDir string) (string, error) {
	out := c.Output(src, outDir)

	in, err := os.Open(src)
	if err != nil {
		return "", curated.Errorf("assets: %v", err)
	}
	defer in.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", curated.Errorf("assets: %v", err)
	}

	f, err := os.Create(out)
	if err != nil {
		return "", curated.Errorf("assets: %v", err)
	}

	_, err = io.Copy(f, in)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", curated.Errorf("assets: %v", err)
	}

	return out, nil
}
