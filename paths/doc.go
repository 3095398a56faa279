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

// Package paths contains functions to prepare paths to n64build resources and
// to toolchain binaries.
//
// The ResourcePath() function modifies the supplied resource string such that
// it is prepended with the appropriate config directory. For example, the
// following will return the path to the user's preferences file:
//
//	d := paths.ResourcePath("n64build.prefs")
//
// The policy of ResourcePath() is simple: if the base resource path, currently
// defined to be ".n64build", is present in the program's current directory
// then that is the base path that will used. If it is not present then the
// user's config directory is used.
//
// In the example above, on a modern Linux system, the path returned will be:
//
//	/home/user/.config/n64build/n64build.prefs
package paths
