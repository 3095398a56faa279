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

package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// the base path for all user resources. note that we don't use this value
// directly except in the getBasePath() function.
const baseResourcePath = ".n64build"

// ResourcePath returns the resource string (representing the resource to be
// loaded) prepended with operating system specific details.
func ResourcePath(resource ...string) string {
	p := make([]string, 0, len(resource)+1)
	p = append(p, getBasePath())
	p = append(p, resource...)
	return filepath.Join(p...)
}

// getBasePath() returns baseResourcePath with the user's config directory
// prepended if the unadorned baseResourcePath cannot be found in the current
// directory.
func getBasePath() string {
	if _, err := os.Stat(baseResourcePath); err == nil {
		return baseResourcePath
	}

	cnf, err := os.UserConfigDir()
	if err != nil {
		return baseResourcePath
	}
	return filepath.Join(cnf, baseResourcePath[1:])
}

// ToolPath returns the path to a toolchain binary. Binaries are found in the
// bin directory of the toolchain root.
func ToolPath(root string, name string) string {
	return filepath.Join(root, "bin", name)
}

// Rel returns target relative to base using forward slashes. If target cannot
// be made relative to base then it is returned unchanged.
func Rel(base string, target string) string {
	r, err := filepath.Rel(base, target)
	if err != nil || strings.HasPrefix(r, "..") {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(r)
}

// ReplaceExt replaces the extension of the path. The new extension should
// include the leading dot.
func ReplaceExt(path string, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
