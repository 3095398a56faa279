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


// Package modalflag is a wrapper for the flag package in the Go standard
// library. It provides a convenient method of handling program modes (and
// sub-modes) and allows different flags for each mode.
//
// Whereas, with flag.FlagSet you call Parse() with the array of strings as the
// only argument, with modalflag you first NewArgs() with the array of
// arguments and then Parse() with no arguments:
//
//	md := modalflag.Modes{Output: os.Stdout}
//	md.NewArgs(os.Args[1:])
//	md.AddSubModes("BUILDPROG", "NOBUILD", "SIZE", "UPLOAD")
//	_, _ = md.Parse()
//
// The first sub-mode is the default. Comparison of sub-modes is case
// insensitive and the mode found by Parse() is returned by Mode() in upper
// case.
//
//	switch md.Mode() {
//	case "UPLOAD":
//		err = upload(md)
//	}
//
// Once a mode has been decided, NewMode() starts the next layer of flags.
// Flags are added in the same way as the flag package:
//
//	func upload(md *modalflag.Modes) error {
//		md.NewMode()
//		skip := md.AddBool("nobuild", false, "upload the image of the previous build")
//		p, err := md.Parse()
//		if err != nil || p != modalflag.ParseContinue {
//			return err
//		}
//		if err := md.ExpectArgs(0, 0); err != nil {
//			return err
//		}
//		...
//	}
//
// The -help flag is handled by Parse(), which prints the flags and sub-modes
// of the current layer and returns ParseHelp.
//
// Non-flag arguments that remain after the last Parse() are returned by
// RemainingArgs() and GetArg(). ExpectArgs() checks that the number of
// remaining arguments is in range.
package modalflag
