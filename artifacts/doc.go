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

// Package artifacts tracks the build targets of a project and where each of
// their artifacts lives in the build directory.
//
// A Target is one compilable unit. It is created by the Store when the project
// sources are enumerated and is not changed afterwards. Every target has a
// unit ID derived from its path relative to the source directory:
//
//	crash.S          ->  crash
//	gfx/rsp_tri.S    ->  gfx_rsp_tri
//
// Unit IDs are used to name the symbols of coprocessor sections so they must
// be unique for the whole build. Store.Register() refuses a target whose unit
// ID is already in use. Because every artifact path is derived from the unit's
// relative path, a unique unit ID also means that no two targets write the
// same file.
package artifacts
