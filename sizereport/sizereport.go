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

// Package sizereport measures the linked program with the size tool of the
// toolchain and checks it against the maximum program size.
package sizereport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/toolchain"
	"github.com/jetsetilly/n64build/toolrun"
)

// ProgramTooLarge is returned by Check(). The values are the size of the
// program and the maximum size.
const ProgramTooLarge = "size: program is too large (%d bytes, maximum is %d bytes)"

// sections that count towards the program size and the data size.
var (
	programSections = []string{".boot2", ".text", ".data", ".rodata", ".text.align"}
	dataSections    = []string{".data", ".bss", ".sbss", ".sdata", ".lit8", ".lit4", ".noinit"}
)

// Report is the size of every section of an ELF file.
type Report struct {
	Sections map[string]uint64
	Program  uint64
	Data     uint64
}

func sum(sections map[string]uint64, names []string) uint64 {
	var s uint64
	for _, n := range names {
		s += sections[n]
	}
	return s
}

// Parse the output of "size -A -d".
func Parse(r io.Reader) (Report, error) {
	rep := Report{
		Sections: make(map[string]uint64),
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		f := strings.Fields(scanner.Text())
		if len(f) < 2 || !strings.HasPrefix(f[0], ".") {
			continue
		}
		v, err := strconv.ParseUint(f[1], 10, 64)
		if err != nil {
			return rep, curated.Errorf("size: unexpected output: %s", scanner.Text())
		}
		rep.Sections[f[0]] += v
	}
	if err := scanner.Err(); err != nil {
		return rep, curated.Errorf("size: %v", err)
	}

	rep.Program = sum(rep.Sections, programSections)
	rep.Data = sum(rep.Sections, dataSections)

	return rep, nil
}

// Check returns ProgramTooLarge if the program is larger than max. A max of
// zero means there is no limit.
func Check(rep Report, max int) error {
	if max > 0 && rep.Program > uint64(max) {
		return curated.Errorf(ProgramTooLarge, rep.Program, max)
	}
	return nil
}

// Write a summary of the report.
func (rep Report) Write(w io.Writer, max int) {
	names := make([]string, 0, len(rep.Sections))
	for n := range rep.Sections {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		fmt.Fprintf(w, "%-16s %10d\n", n, rep.Sections[n])
	}

	if max > 0 {
		fmt.Fprintf(w, "program: %d bytes (%.1f%% of %d)\n", rep.Program, float64(rep.Program)*100/float64(max), max)
	} else {
		fmt.Fprintf(w, "program: %d bytes\n", rep.Program)
	}
	fmt.Fprintf(w, "data:    %d bytes\n", rep.Data)
}

// Sizer runs the size tool.
type Sizer struct {
	TC  *toolchain.Toolchain
	Run toolrun.Runner
}

// Measure the ELF file.
func (s *Sizer) Measure(ctx context.Context, elf string) (Report, error) {
	var out bytes.Buffer
	cmd := s.TC.Size(elf, true)
	cmd.Stdout = &out
	if err := s.Run.Run(ctx, cmd); err != nil {
		return Report{}, curated.Errorf("size: %v", err)
	}
	return Parse(&out)
}

// Print the berkeley style output of the size tool to w.
func (s *Sizer) Print(ctx context.Context, elf string, w io.Writer) error {
	cmd := s.TC.Size(elf, false)
	cmd.Stdout = w
	if err := s.Run.Run(ctx, cmd); err != nil {
		return curated.Errorf("size: %v", err)
	}
	return nil
}
