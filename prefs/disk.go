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

package prefs

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jetsetilly/n64build/curated"
)

// WarningBoilerPlate is written at the head of every prefs file.
const WarningBoilerPlate = "*** do not edit this file while n64build is running ***"

// separator between the key and value of an entry in the prefs file.
const keySep = " :: "

// MalformedLine is the pattern for errors returned when a line of the prefs
// file cannot be split into a key and a value.
const MalformedLine = "prefs: %s: line %d: malformed entry"

// Disk represents preference values as stored on disk.
type Disk struct {
	path    string
	entries map[string]pref

	// entries in the file that have not been added to the Disk. these are
	// preserved when the file is saved
	unused map[string]string
}

// NewDisk is the preferred method of initialisation for the Disk type.
func NewDisk(path string) (*Disk, error) {
	dsk := &Disk{
		path:    path,
		entries: make(map[string]pref),
		unused:  make(map[string]string),
	}
	return dsk, nil
}

// Add preference value to list of values to store/load from Disk. The key
// value is used to identify the value in the file.
func (dsk *Disk) Add(key string, p pref) error {
	key = strings.TrimSpace(key)
	if strings.Contains(key, strings.TrimSpace(keySep)) {
		return curated.Errorf("prefs: illegal key %q", key)
	}
	dsk.entries[key] = p
	return nil
}

// Path returns the path of the file backing the Disk.
func (dsk *Disk) Path() string {
	return dsk.path
}

// Save current preference values to disk. Entries in the file that are not
// known to this Disk instance are preserved.
func (dsk *Disk) Save() error {
	// reload the existing file so that values owned by other Disk instances
	// are not clobbered
	existing, err := dsk.read()
	if err != nil {
		return err
	}

	for k, v := range dsk.entries {
		existing[k] = v.String()
	}

	keys := make([]string, 0, len(existing))
	for k := range existing {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := strings.Builder{}
	s.WriteString(WarningBoilerPlate)
	s.WriteString("\n")
	for _, k := range keys {
		s.WriteString(fmt.Sprintf("%s%s%s\n", k, keySep, existing[k]))
	}

	if err := os.WriteFile(dsk.path, []byte(s.String()), 0o644); err != nil {
		return curated.Errorf("prefs: %v", err)
	}

	return nil
}

// Load preference values from disk. A missing file is not an error, the
// preferences keep their current values.
//
// Values from the command line (see CommandLine type) take priority over
// values in the file. The command line argument can be nil.
func (dsk *Disk) Load(cl *CommandLine) error {
	values, err := dsk.read()
	if err != nil {
		return err
	}

	for k, v := range values {
		if p, ok := dsk.entries[k]; ok {
			if err := p.Set(v); err != nil {
				return curated.Errorf("prefs: %s: %v", k, err)
			}
		} else {
			dsk.unused[k] = v
		}
	}

	if cl != nil {
		for k, p := range dsk.entries {
			if ok, v := cl.Get(k); ok {
				if err := p.Set(v); err != nil {
					return curated.Errorf("prefs: %s: %v", k, err)
				}
			}
		}
	}

	return nil
}

// Unused returns the keys in the file that do not correspond to an added
// preference. Only meaningful after a call to Load().
func (dsk *Disk) Unused() []string {
	keys := make([]string, 0, len(dsk.unused))
	for k := range dsk.unused {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadFrom sets preference values from a file other than the one backing the
// Disk. Keys in the file that have not been added to the Disk are ignored.
// Useful for loading defaults from a user-wide file before the project file
// is loaded with Load().
func (dsk *Disk) LoadFrom(path string) error {
	values, err := read(path)
	if err != nil {
		return err
	}

	for k, v := range values {
		if p, ok := dsk.entries[k]; ok {
			if err := p.Set(v); err != nil {
				return curated.Errorf("prefs: %s: %v", k, err)
			}
		}
	}

	return nil
}

func (dsk *Disk) read() (map[string]string, error) {
	return read(dsk.path)
}

func read(path string) (map[string]string, error) {
	values := make(map[string]string)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, curated.Errorf("prefs: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	ln := 0
	for scanner.Scan() {
		ln++
		l := strings.TrimSpace(scanner.Text())

		// ignore blank lines, comments and the boiler plate
		if l == "" || strings.HasPrefix(l, "#") || l == WarningBoilerPlate {
			continue
		}

		kv := strings.SplitN(l, strings.TrimSpace(keySep), 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" {
			return nil, curated.Errorf(MalformedLine, path, ln)
		}

		values[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}

	if err := scanner.Err(); err != nil {
		return nil, curated.Errorf("prefs: %v", err)
	}

	return values, nil
}
