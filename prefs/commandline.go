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
	"fmt"
	"sort"
	"strings"
)

// CommandLine holds preference values specified on the command line. The
// format of the string is:
//
//	key::value; key::value
//
// Values are consumed when they are retrieved with Get(). The Unused()
// function returns what remains so that a typing mistake on the command line
// can be reported.
type CommandLine struct {
	values map[string]Value
}

// NewCommandLine parses the prefs string. Parts of the string that cannot be
// split into a key and a value are ignored.
func NewCommandLine(prefs string) *CommandLine {
	cl := &CommandLine{
		values: make(map[string]Value),
	}

	// divide prefs string into individual key/value pairs
	for _, p := range strings.Split(prefs, ";") {
		kv := strings.Split(p, "::")
		if len(kv) == 2 {
			cl.values[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}

	return cl
}

// Get value for key. The value is deleted when it is returned.
func (cl *CommandLine) Get(key string) (bool, Value) {
	if v, ok := cl.values[key]; ok {
		delete(cl.values, key)
		return true, v
	}
	return false, nil
}

// Unused returns the preferences that have not been retrieved with Get(), in
// the same format as the string given to NewCommandLine(). Keys are sorted.
func (cl *CommandLine) Unused() string {
	keys := make([]string, 0, len(cl.values))
	for key := range cl.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	s := strings.Builder{}
	for _, key := range keys {
		s.WriteString(fmt.Sprintf("%s::%v; ", key, cl.values[key]))
	}

	return strings.TrimSuffix(s.String(), "; ")
}
