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

package dso

import (
	"bufio"
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jetsetilly/n64build/artifacts"
	"github.com/jetsetilly/n64build/curated"
)

// StaleExterns is returned by CheckExterns() when the fragment is missing or
// older than the inputs it was made from.
const StaleExterns = "dso: externs fragment is missing or out of date (%s)"

// Imports returns the undefined symbols of a linked module, sorted by name.
func Imports(filename string) ([]string, error) {
	ef, err := elf.Open(filename)
	if err != nil {
		return nil, curated.Errorf("dso: %v", err)
	}
	defer ef.Close()

	symbols, err := ef.Symbols()
	if err == elf.ErrNoSymbols {
		return nil, nil
	}
	if err != nil {
		return nil, curated.Errorf("dso: %s: %v", filepath.Base(filename), err)
	}

	var imports []string
	for _, s := range symbols {
		if s.Section != elf.SHN_UNDEF || s.Name == "" {
			continue
		}
		switch elf.ST_BIND(s.Info) {
		case elf.STB_GLOBAL, elf.STB_WEAK:
			imports = append(imports, s.Name)
		}
	}
	sort.Strings(imports)

	return imports, nil
}

// Union returns the sorted union of the imports of every module.
func Union(modules []string) ([]string, error) {
	seen := make(map[string]bool)
	var union []string

	for _, m := range modules {
		imports, err := Imports(m)
		if err != nil {
			return nil, err
		}
		for _, s := range imports {
			if !seen[s] {
				seen[s] = true
				union = append(union, s)
			}
		}
	}
	sort.Strings(union)

	return union, nil
}

// Externs writes the linker script fragment for the linked modules. The
// fragment is replaced completely, never appended to.
func Externs(modules []string, out string) ([]string, error) {
	union, err := Union(modules)
	if err != nil {
		return nil, err
	}

	var s strings.Builder
	s.WriteString("/* symbols imported by dynamic modules */\n")
	for _, sym := range union {
		s.WriteString(fmt.Sprintf("EXTERN(%s)\n", sym))
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, curated.Errorf("dso: %v", err)
	}

	tmp := out + ".tmp"
	if err := os.WriteFile(tmp, []byte(s.String()), 0o644); err != nil {
		return nil, curated.Errorf("dso: %v", err)
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return nil, curated.Errorf("dso: %v", err)
	}

	return union, nil
}

// ReadExterns returns the symbols listed in a fragment written by
// Externs().
func ReadExterns(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, curated.Errorf("dso: %v", err)
	}
	defer f.Close()

	var syms []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		l := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(l, "EXTERN(") && strings.HasSuffix(l, ")") {
			syms = append(syms, l[len("EXTERN("):len(l)-1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, curated.Errorf("dso: %v", err)
	}

	return syms, nil
}

// CheckExterns returns StaleExterns if the fragment does not exist or if any
// of the inputs is newer than it.
func CheckExterns(fragment string, inputs ...string) error {
	if artifacts.Stale(fragment, inputs...) {
		return curated.Errorf(StaleExterns, fragment)
	}
	return nil
}
