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

// Package image assembles the final ROM image from an ordered list of
// entries. Each entry is aligned by padding before it. Entries are never
// reordered.
//
// The standard entries, in order, are the compressed program (aligned to
// 256 bytes), the program symbols (8), the optional module symbols (8) and
// the optional filesystem image (16). Omitting an optional entry does not
// change the alignment of the remaining entries.
//
// Two packers are provided. NativePacker writes the image itself with the
// following layout, all values big-endian:
//
//	0      magic "N64B"
//	4      format version (uint16)
//	6      number of entries (uint16)
//	8      title, NUL padded (20 bytes)
//	28     banner of the tool that made the image, NUL padded (32 bytes)
//	60     table of contents. one record per entry:
//	          name, NUL padded (24 bytes)
//	          offset from the start of the file (uint32)
//	          size (uint32)
//	          alignment (uint32)
//	...    padding to a multiple of 256 bytes
//	       data area
//
// ToolPacker delegates to n64tool, which writes its own header and table of
// contents.
package image
