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

// Package prefs stores and retrieves typed preference values. Values are
// added to a Disk instance under a key and are loaded from (and saved to) a
// plain text file, one "key :: value" entry per line.
//
// The CommandLine type allows values in the file to be overridden for a
// single invocation. For example:
//
//	n64build -prefs "build.jobs::8; build.meta::true"
package prefs
