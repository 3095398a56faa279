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

// Package dso builds the dynamic modules of a project.
//
// A module is linked with undefined symbols left unresolved. They are bound
// at run time by the loader against the symbols of the primary program. The
// primary program therefore has to keep those symbols even when nothing in
// the program itself refers to them. Externs() writes a linker script
// fragment containing an EXTERN() statement for every symbol imported by any
// module:
//
//	EXTERN(bar)
//	EXTERN(foo)
//
// The fragment is computed from all modules at once and must exist before the
// primary program is linked. CheckExterns() is used by the primary link to
// refuse a missing or out of date fragment.
package dso
