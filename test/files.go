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

package test

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates the file (and any parent directories) with the supplied
// data. A failure is a testing fatility.
func WriteFile(t *testing.T, filename string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		t.Fatalf("cannot create directory for %s: %v", filename, err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		t.Fatalf("cannot write %s: %v", filename, err)
	}
}

// ReadFile returns the contents of the file. A failure is a testing fatility.
func ReadFile(t *testing.T, filename string) []byte {
	t.Helper()
	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("cannot read %s: %v", filename, err)
	}
	return data
}

// FileExists returns true if the named file exists.
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}
