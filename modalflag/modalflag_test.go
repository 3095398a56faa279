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


package modalflag_test

import (
	"testing"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/modalflag"
	"github.com/jetsetilly/n64build/test"
)

func TestNoModesNoFlags(t *testing.T) {
	md := modalflag.Modes{}
	md.NewArgs([]string{})

	p, err := md.Parse()
	test.ExpectEquality(t, p, modalflag.ParseContinue)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, md.Mode(), "")
	test.ExpectEquality(t, md.Path(), "")
}

func TestNoModes(t *testing.T) {
	md := modalflag.Modes{}
	md.NewArgs([]string{"-quiet", "src/a.c", "src/b.c"})
	quiet := md.AddBool("quiet", false, "suppress log")
	test.ExpectFailure(t, *quiet)

	p, err := md.Parse()
	test.ExpectEquality(t, p, modalflag.ParseContinue)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, md.Mode(), "")
	test.ExpectSuccess(t, *quiet)
	test.ExpectEquality(t, len(md.RemainingArgs()), 2)
	test.ExpectEquality(t, md.GetArg(1), "src/b.c")
	test.ExpectEquality(t, md.GetArg(2), "")
}

func TestModes(t *testing.T) {
	md := modalflag.Modes{}
	md.NewArgs([]string{"-v", "sdupload", "-jobs", "4", "save.dat", "saves/game.dat"})
	verbose := md.AddBool("v", false, "verbose")
	md.AddSubModes("BUILDPROG", "SDUPLOAD")

	p, err := md.Parse()
	test.DemandEquality(t, p, modalflag.ParseContinue)
	test.DemandSuccess(t, err)
	test.ExpectSuccess(t, *verbose)
	test.ExpectEquality(t, md.Mode(), "SDUPLOAD")

	md.NewMode()
	jobs := md.AddInt("jobs", 1, "parallel jobs")
	p, err = md.Parse()
	test.DemandEquality(t, p, modalflag.ParseContinue)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, *jobs, 4)
	test.ExpectEquality(t, md.GetArg(0), "save.dat")
	test.ExpectEquality(t, md.GetArg(1), "saves/game.dat")
	test.ExpectSuccess(t, md.ExpectArgs(1, 2))
	test.ExpectSuccess(t, curated.Is(md.ExpectArgs(0, 1), modalflag.TooManyArgs))
	test.ExpectSuccess(t, curated.Is(md.ExpectArgs(3, 3), modalflag.NotEnoughArgs))
	test.ExpectEquality(t, md.Path(), "SDUPLOAD")
}

func TestDefaultMode(t *testing.T) {
	md := modalflag.Modes{}
	md.NewArgs([]string{"-jobs", "2"})
	md.AddSubModes("BUILDPROG", "NOBUILD")

	// the flag is not known at this layer so it belongs to the default mode
	p, err := md.Parse()
	test.ExpectEquality(t, p, modalflag.ParseContinue)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, md.Mode(), "BUILDPROG")

	md.NewMode()
	jobs := md.AddInt("jobs", 1, "parallel jobs")
	p, err = md.Parse()
	test.ExpectEquality(t, p, modalflag.ParseContinue)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, *jobs, 2)

	// no sub-modes to fall back on
	md.NewArgs([]string{"-jobs", "2"})
	p, err = md.Parse()
	test.ExpectEquality(t, p, modalflag.ParseError)
	test.ExpectFailure(t, err)

	md.NewArgs([]string{})
	md.AddSubModes("NOBUILD")
	md.AddDefaultSubMode("buildprog")
	p, err = md.Parse()
	test.ExpectEquality(t, p, modalflag.ParseContinue)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, md.Mode(), "BUILDPROG")
}

func TestNoHelpAvailable(t *testing.T) {
	tw := &test.CompareWriter{}

	md := modalflag.Modes{Output: tw}
	md.NewArgs([]string{"-help"})

	p, _ := md.Parse()
	test.ExpectEquality(t, p, modalflag.ParseHelp)
	test.ExpectEquality(t, tw.String(), "No help available\n")
}

func TestHelpFlags(t *testing.T) {
	tw := &test.CompareWriter{}

	md := modalflag.Modes{Output: tw}
	md.NewArgs([]string{"-help"})
	md.AddBool("quiet", true, "suppress log")

	p, _ := md.Parse()
	test.ExpectEquality(t, p, modalflag.ParseHelp)

	expectedHelp := "Usage:\n" +
		"  -quiet\n" +
		"    	suppress log (default true)\n"
	test.ExpectEquality(t, tw.String(), expectedHelp)
}

func TestHelpModes(t *testing.T) {
	tw := &test.CompareWriter{}

	md := modalflag.Modes{Output: tw}
	md.NewArgs([]string{"-help"})
	md.AddSubModes("BUILDPROG", "NOBUILD", "SIZE")

	p, _ := md.Parse()
	test.ExpectEquality(t, p, modalflag.ParseHelp)

	expectedHelp := "Usage:\n" +
		"  available sub-modes: BUILDPROG, NOBUILD, SIZE\n" +
		"    default: BUILDPROG\n"
	test.ExpectEquality(t, tw.String(), expectedHelp)
}

func TestHelpFlagsAndModes(t *testing.T) {
	tw := &test.CompareWriter{}

	md := modalflag.Modes{Output: tw}
	md.NewArgs([]string{"-help"})
	md.AddBool("quiet", true, "suppress log")
	md.AddSubModes("BUILDPROG", "NOBUILD")
	md.AdditionalHelp("modes are not case sensitive")

	p, _ := md.Parse()
	test.ExpectEquality(t, p, modalflag.ParseHelp)

	expectedHelp := "Usage:\n" +
		"  -quiet\n" +
		"    	suppress log (default true)\n" +
		"\n" +
		"  available sub-modes: BUILDPROG, NOBUILD\n" +
		"    default: BUILDPROG\n" +
		"\n" +
		"modes are not case sensitive\n"
	test.ExpectEquality(t, tw.String(), expectedHelp)
}
