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

package paths_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/jetsetilly/n64build/paths"
	"github.com/jetsetilly/n64build/test"
)

func TestResourcePath(t *testing.T) {
	pth := paths.ResourcePath("n64build.prefs")
	test.ExpectSuccess(t, strings.HasSuffix(pth, filepath.Join("n64build", "n64build.prefs")))
}

func TestToolPath(t *testing.T) {
	test.ExpectEquality(t, paths.ToolPath("/opt/n64", "mips64-elf-objcopy"), filepath.Join("/opt/n64", "bin", "mips64-elf-objcopy"))
}

func TestRel(t *testing.T) {
	test.ExpectEquality(t, paths.Rel("/project/build", "/project/build/src/rsp_crash.o"), "src/rsp_crash.o")
	test.ExpectEquality(t, paths.Rel("/project/build", "/elsewhere/a.o"), "/elsewhere/a.o")
}

func TestReplaceExt(t *testing.T) {
	test.ExpectEquality(t, paths.ReplaceExt("src/crash.S", ".o"), "src/crash.o")
	test.ExpectEquality(t, paths.ReplaceExt("firmware.elf", ".elf.sym"), "firmware.elf.sym")
	test.ExpectEquality(t, paths.ReplaceExt("noext", ".o"), "noext.o")
}
