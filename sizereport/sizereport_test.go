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

package sizereport_test

import (
	"context"
	"debug/elf"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/sizereport"
	"github.com/jetsetilly/n64build/test"
	"github.com/jetsetilly/n64build/test/faketools"
	"github.com/jetsetilly/n64build/toolchain"
	"github.com/jetsetilly/n64build/toolrun"
)

const sysv = `firmware.elf  :
section              size         addr
.text              123456   2147484672
.rodata              2048   2147608128
.data                1024   2147610176
.bss                 4096   2147611200
.sdata                 16   2147615296
.debug_info         99999            0
Total              230639
`

func TestParse(t *testing.T) {
	rep, err := sizereport.Parse(strings.NewReader(sysv))
	test.DemandSuccess(t, err)

	test.ExpectEquality(t, rep.Sections[".text"], uint64(123456))
	test.ExpectEquality(t, rep.Program, uint64(123456+2048+1024))
	test.ExpectEquality(t, rep.Data, uint64(1024+4096+16))

	test.ExpectSuccess(t, sizereport.Check(rep, 0))
	test.ExpectSuccess(t, sizereport.Check(rep, 1024*1024))

	err = sizereport.Check(rep, 1000)
	test.ExpectSuccess(t, curated.Is(err, sizereport.ProgramTooLarge))

	w := &strings.Builder{}
	rep.Write(w, 1024*1024)
	test.ExpectSuccess(t, strings.Contains(w.String(), "program: 126528 bytes"))
}

func TestMeasure(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "firmware.elf")
	test.WriteELF(t, fn, test.ELFFile{
		Type: elf.ET_EXEC,
		Sections: []test.ELFSection{
			{Name: ".text", Data: make([]byte, 400), Align: 4},
			{Name: ".data", Data: make([]byte, 40), Align: 8},
		},
	})

	run := toolrun.NewFakeRunner()
	faketools.Install(run, "mips64-elf-")
	s := &sizereport.Sizer{TC: &toolchain.Toolchain{Root: "/opt/n64", Prefix: "mips64-elf-"}, Run: run}

	rep, err := s.Measure(context.Background(), fn)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, rep.Program, uint64(440))
	test.ExpectEquality(t, rep.Data, uint64(40))

	cmds := run.Find("mips64-elf-size")
	test.DemandEquality(t, len(cmds), 1)
	test.ExpectEquality(t, cmds[0].Args[0], "-A")
}
