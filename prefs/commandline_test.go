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
	"testing"

	"github.com/jetsetilly/n64build/prefs"
	"github.com/jetsetilly/n64build/test"
)

func TestCommandLineValues(t *testing.T) {
	// empty string
	test.ExpectEquality(t, prefs.NewCommandLine("").Unused(), "")

	// single value
	test.ExpectEquality(t, prefs.NewCommandLine("foo::bar").Unused(), "foo::bar")

	// single value but with additional space
	test.ExpectEquality(t, prefs.NewCommandLine("   foo:: bar ").Unused(), "foo::bar")

	// more than one key/value in the prefs string. remaining string will
	// will be sorted
	test.ExpectEquality(t, prefs.NewCommandLine("foo::bar; baz::qux").Unused(), "baz::qux; foo::bar")

	// invalid prefs string
	test.ExpectEquality(t, prefs.NewCommandLine("foo_bar").Unused(), "")

	// partially invalid prefs string
	test.ExpectEquality(t, prefs.NewCommandLine("foo_bar;baz::qux").Unused(), "baz::qux")
}

func TestCommandLineGet(t *testing.T) {
	cl := prefs.NewCommandLine("build.jobs::4;build.meta::true")

	ok, v := cl.Get("build.jobs")
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, v.(string), "4")

	// values are consumed by Get()
	ok, _ = cl.Get("build.jobs")
	test.ExpectFailure(t, ok)

	test.ExpectEquality(t, cl.Unused(), "build.meta::true")
}
