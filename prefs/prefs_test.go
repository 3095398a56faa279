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

package prefs_test

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/prefs"
	"github.com/jetsetilly/n64build/test"
)

func tmpPrefFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "n64build.prefs")
}

func cmpTmpFile(t *testing.T, fn string, expected string) {
	t.Helper()
	data := test.ReadFile(t, fn)
	expected = fmt.Sprintf("%s\n%s", prefs.WarningBoilerPlate, expected)
	test.ExpectEquality(t, string(data), expected)
}

func TestBool(t *testing.T) {
	fn := tmpPrefFile(t)

	dsk, err := prefs.NewDisk(fn)
	test.DemandSuccess(t, err)

	var v, w, x prefs.Bool
	test.ExpectSuccess(t, dsk.Add("test", &v))
	test.ExpectSuccess(t, dsk.Add("testB", &w))
	test.ExpectSuccess(t, dsk.Add("testC", &x))

	test.ExpectSuccess(t, v.Set(true))
	test.ExpectSuccess(t, w.Set("off"))
	test.ExpectSuccess(t, x.Set("Yes"))

	// unrecognised strings are an error and leave the value unchanged
	err = x.Set("foo")
	test.ExpectFailure(t, err)
	test.ExpectSuccess(t, curated.Is(err, prefs.MalformedValue))
	test.ExpectEquality(t, x.Get().(bool), true)

	test.DemandSuccess(t, dsk.Save())
	cmpTmpFile(t, fn, "test :: true\ntestB :: false\ntestC :: true\n")
}

func TestString(t *testing.T) {
	fn := tmpPrefFile(t)

	dsk, err := prefs.NewDisk(fn)
	test.DemandSuccess(t, err)

	var v prefs.String
	test.ExpectSuccess(t, dsk.Add("build.title", &v))
	test.ExpectSuccess(t, v.Set("  Controller Test "))

	test.DemandSuccess(t, dsk.Save())
	cmpTmpFile(t, fn, "build.title :: Controller Test\n")
}

func TestInt(t *testing.T) {
	fn := tmpPrefFile(t)

	dsk, err := prefs.NewDisk(fn)
	test.DemandSuccess(t, err)

	var v, w prefs.Int
	test.ExpectSuccess(t, dsk.Add("number", &v))
	test.ExpectSuccess(t, dsk.Add("romsize", &w))

	test.ExpectSuccess(t, v.Set(10))

	// hex strings are accepted
	test.ExpectSuccess(t, w.Set("0x100000"))
	test.ExpectEquality(t, w.Get().(int), 0x100000)

	test.DemandSuccess(t, dsk.Save())
	cmpTmpFile(t, fn, "number :: 10\nromsize :: 1048576\n")

	test.ExpectFailure(t, v.Set("---"))
	test.ExpectFailure(t, v.Set(1.0))
}

func TestGeneric(t *testing.T) {
	fn := tmpPrefFile(t)

	dsk, err := prefs.NewDisk(fn)
	test.DemandSuccess(t, err)

	var w, h int

	v := prefs.NewGeneric(
		func(s string) error {
			_, err := fmt.Sscanf(s, "%d,%d", &w, &h)
			return err
		},
		func() string {
			return fmt.Sprintf("%d,%d", w, h)
		},
	)

	test.ExpectSuccess(t, dsk.Add("generic", v))

	w = 1
	h = 2

	test.DemandSuccess(t, dsk.Save())
	cmpTmpFile(t, fn, "generic :: 1,2\n")

	w = 0
	h = 0

	// reload them from disk
	test.DemandSuccess(t, dsk.Load(nil))
	test.ExpectEquality(t, w, 1)
	test.ExpectEquality(t, h, 2)
}

// write bool and then a string from a different prefs.Disk instance. tests
// that the second writing doesn't clobber the results of the first write.
func TestBoolAndString(t *testing.T) {
	fn := tmpPrefFile(t)

	dsk, err := prefs.NewDisk(fn)
	test.DemandSuccess(t, err)

	var v prefs.Bool
	test.ExpectSuccess(t, dsk.Add("test", &v))
	test.ExpectSuccess(t, v.Set(true))
	test.DemandSuccess(t, dsk.Save())

	dsk, err = prefs.NewDisk(fn)
	test.DemandSuccess(t, err)

	var s prefs.String
	test.ExpectSuccess(t, dsk.Add("foo", &s))
	test.ExpectSuccess(t, s.Set("bar"))
	test.DemandSuccess(t, dsk.Save())

	cmpTmpFile(t, fn, "foo :: bar\ntest :: true\n")
}

func TestLoadWithCommandLine(t *testing.T) {
	fn := tmpPrefFile(t)
	test.WriteFile(t, fn, []byte("# project settings\nbuild.progname :: game\nbuild.jobs :: 2\nother :: x\n"))

	dsk, err := prefs.NewDisk(fn)
	test.DemandSuccess(t, err)

	var name prefs.String
	var jobs prefs.Int
	test.ExpectSuccess(t, dsk.Add("build.progname", &name))
	test.ExpectSuccess(t, dsk.Add("build.jobs", &jobs))

	cl := prefs.NewCommandLine("build.jobs::8")
	test.DemandSuccess(t, dsk.Load(cl))

	test.ExpectEquality(t, name.String(), "game")
	test.ExpectEquality(t, jobs.Get().(int), 8)
	test.ExpectEquality(t, strings.Join(dsk.Unused(), ","), "other")
	test.ExpectEquality(t, cl.Unused(), "")
}

func TestMalformedFile(t *testing.T) {
	fn := tmpPrefFile(t)
	test.WriteFile(t, fn, []byte("build.progname game\n"))

	dsk, err := prefs.NewDisk(fn)
	test.DemandSuccess(t, err)

	var name prefs.String
	test.ExpectSuccess(t, dsk.Add("build.progname", &name))

	err = dsk.Load(nil)
	test.ExpectSuccess(t, curated.Is(err, prefs.MalformedLine))
}

func TestMissingFile(t *testing.T) {
	dsk, err := prefs.NewDisk(tmpPrefFile(t))
	test.DemandSuccess(t, err)
	test.ExpectSuccess(t, dsk.Load(nil))
}
