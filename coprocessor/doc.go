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

// Package coprocessor turns an assembled coprocessor (RSP) program into an
// object the primary linker can consume.
//
// Each coprocessor source is linked into its own small executable. The
// loadable sections of that executable are extracted as raw blobs by
// Extract(). Repackage() wraps each blob as a relocatable object, renaming
// the symbols objcopy generates from the blob's path so that they are scoped
// to the unit:
//
//	_binary_gfx_rsp_tri_text_bin_start  ->  gfx_rsp_tri_text_start
//	_binary_gfx_rsp_tri_text_bin_end    ->  gfx_rsp_tri_text_end
//	_binary_gfx_rsp_tri_text_bin_size   ->  gfx_rsp_tri_text_size
//
// The section objects are then relinked into a single relocatable object per
// unit, text first then data then meta.
//
// Tools are run in the build directory with paths relative to it. The
// mangled symbol names depend on the path objcopy is given so this keeps
// them the same wherever the project is checked out.
package coprocessor
