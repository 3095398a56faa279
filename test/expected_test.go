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

package test_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/jetsetilly/n64build/test"
)

func TestExpectFailure(t *testing.T) {
	test.ExpectFailure(t, false)
	test.ExpectFailure(t, errors.New("test"))
}

func TestExpectSuccess(t *testing.T) {
	test.ExpectSuccess(t, true)
	var err error
	test.ExpectSuccess(t, err)
	test.ExpectSuccess(t, nil)
}

func TestExpectEquality(t *testing.T) {
	test.ExpectEquality(t, 10, 5+5)
	test.ExpectEquality(t, true, true)
	test.ExpectEquality(t, true, !false)
}

func TestExpectInequality(t *testing.T) {
	test.ExpectInequality(t, 11, 5+5)
	test.ExpectInequality(t, true, false)
}

func TestExpectApproximate(t *testing.T) {
	test.ExpectApproximate(t, 10, 11, 0.1)
}

func TestCompareWriter(t *testing.T) {
	tw := &test.CompareWriter{}
	tw.Write([]byte("link: "))
	tw.Write([]byte("firmware.elf"))
	test.ExpectSuccess(t, tw.Compare("link: firmware.elf"))
	tw.Clear()
	test.ExpectSuccess(t, tw.Compare(""))
}

func TestFiles(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "a", "b", "blob.bin")
	test.ExpectFailure(t, test.FileExists(fn))
	test.WriteFile(t, fn, []byte{0x01, 0x02})
	test.ExpectSuccess(t, test.FileExists(fn))
	test.ExpectEquality(t, len(test.ReadFile(t, fn)), 2)
}
