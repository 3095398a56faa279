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

package image

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/logger"
	"github.com/jetsetilly/n64build/toolchain"
	"github.com/jetsetilly/n64build/toolrun"
)

// MissingEntry is returned when an entry does not exist at the time of
// packing. The values are the entry name and path.
const MissingEntry = "image: %s: entry does not exist (%s)"

// Sentinel error patterns for strings that do not fit the native header.
const (
	TitleTooLong = "image: title %q is too long (maximum is %d bytes)"
	NameTooLong  = "image: entry name %q is too long (maximum is %d bytes)"
)

// Packer writes the final image. The packer is the only writer of the output
// file. A failed Pack() leaves no output file.
type Packer interface {
	Pack(ctx context.Context, out string, title string, entries []Entry) ([]Placement, error)
}

// sizes returns the size of every entry. Returns MissingEntry if an entry
// does not exist.
func sizes(entries []Entry) ([]int64, error) {
	s := make([]int64, len(entries))
	for i, e := range entries {
		info, err := os.Stat(e.Path)
		if err != nil || info.IsDir() {
			return nil, curated.Errorf(MissingEntry, e.Name, e.Path)
		}
		s[i] = info.Size()
	}
	return s, nil
}

// Values that describe the native image header.
const (
	Magic         = "N64B"
	FormatVersion = 1

	titleLen  = 20
	bannerLen = 32
	nameLen   = 24

	headerLen = 60
	recordLen = nameLen + 12

	// the data area always starts on a multiple of this value
	DataAlign = 256
)

// NativePacker writes the image without any external tool.
type NativePacker struct {
	// written to the header of the image
	Banner string

	Perm logger.Permission
}

// putString writes the string to a fixed length field padded with zero
// bytes. The string must fit the field.
func putString(w *bufio.Writer, s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	w.Write(b)
}

// truncate the string to at most n bytes without splitting a rune. The second
// return value is true if the string was shortened.
func truncate(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n], true
}

// DataStart returns the offset of the data area for an image with the
// entries.
func DataStart(entries []Entry) int64 {
	align := DataAlign
	if m := MaxAlign(entries); m > align {
		align = m
	}
	return alignUp(int64(headerLen+recordLen*len(entries)), align)
}

// Pack implements the Packer interface. The offsets of the returned
// placements are offsets from the start of the file.
func (pk *NativePacker) Pack(ctx context.Context, out string, title string, entries []Entry) ([]Placement, error) {
	if len(title) > titleLen {
		return nil, curated.Errorf(TitleTooLong, title, titleLen)
	}
	for _, e := range entries {
		if len(e.Name) > nameLen {
			return nil, curated.Errorf(NameTooLong, e.Name, nameLen)
		}
	}

	sz, err := sizes(entries)
	if err != nil {
		return nil, err
	}

	placements, err := Layout(entries, sz)
	if err != nil {
		return nil, err
	}

	start := DataStart(entries)
	for i := range placements {
		placements[i].Offset += start
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, curated.Errorf("image: %v", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), filepath.Base(out)+".*")
	if err != nil {
		return nil, curated.Errorf("image: %v", err)
	}

	err = pk.write(ctx, tmp, title, placements)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, err
	}

	if err := os.Rename(tmp.Name(), out); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, curated.Errorf("image: %v", err)
	}

	for _, p := range placements {
		logger.Logf(pk.Perm, "image", "%s at %#x (%d bytes)", p.Name, p.Offset, p.Size)
	}

	return placements, nil
}

func (pk *NativePacker) write(ctx context.Context, f *os.File, title string, placements []Placement) error {
	w := bufio.NewWriter(f)

	w.WriteString(Magic)
	binary.Write(w, binary.BigEndian, uint16(FormatVersion))
	binary.Write(w, binary.BigEndian, uint16(len(placements)))
	putString(w, title, titleLen)

	banner, cut := truncate(pk.Banner, bannerLen)
	if cut {
		logger.Logf(pk.Perm, "image", "banner shortened to %q", banner)
	}
	putString(w, banner, bannerLen)

	for _, p := range placements {
		putString(w, p.Name, nameLen)
		binary.Write(w, binary.BigEndian, uint32(p.Offset))
		binary.Write(w, binary.BigEndian, uint32(p.Size))
		binary.Write(w, binary.BigEndian, uint32(p.Align))
	}

	pos := int64(headerLen + recordLen*len(placements))

	for _, p := range placements {
		if err := ctx.Err(); err != nil {
			return err
		}

		// padding is before the entry
		if p.Offset > pos {
			w.Write(make([]byte, p.Offset-pos))
			pos = p.Offset
		}

		in, err := os.Open(p.Path)
		if err != nil {
			return curated.Errorf(MissingEntry, p.Name, p.Path)
		}
		n, err := io.Copy(w, in)
		in.Close()
		if err != nil {
			return curated.Errorf("image: %s: %v", p.Name, err)
		}
		if n != p.Size {
			return curated.Errorf("image: %s: changed size while packing", p.Name)
		}
		pos += n
	}

	if err := w.Flush(); err != nil {
		return curated.Errorf("image: %v", err)
	}

	return nil
}

// Header is the decoded header of a native image.
type Header struct {
	Version uint16
	Title   string
	Banner  string
	TOC     []Placement
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ReadHeader decodes the header of a native image.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header

	var fixed [headerLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return h, curated.Errorf("image: %v", err)
	}
	if string(fixed[:4]) != Magic {
		return h, curated.Errorf("image: not a native image")
	}

	h.Version = binary.BigEndian.Uint16(fixed[4:])
	n := int(binary.BigEndian.Uint16(fixed[6:]))
	h.Title = cstring(fixed[8 : 8+titleLen])
	h.Banner = cstring(fixed[28 : 28+bannerLen])

	for i := 0; i < n; i++ {
		var rec [recordLen]byte
		if _, err := io.ReadFull(r, rec[:]); err != nil {
			return h, curated.Errorf("image: %v", err)
		}
		h.TOC = append(h.TOC, Placement{
			Entry: Entry{
				Name:  cstring(rec[:nameLen]),
				Align: int(binary.BigEndian.Uint32(rec[nameLen+8:])),
			},
			Offset: int64(binary.BigEndian.Uint32(rec[nameLen:])),
			Size:   int64(binary.BigEndian.Uint32(rec[nameLen+4:])),
		})
	}

	return h, nil
}

// ToolPacker packs the image with n64tool.
type ToolPacker struct {
	TC   *toolchain.Toolchain
	Run  toolrun.Runner
	Perm logger.Permission
}

// Pack implements the Packer interface. n64tool writes a header of its own
// so the offsets of the returned placements are relative to the start of
// its data area.
func (pk *ToolPacker) Pack(ctx context.Context, out string, title string, entries []Entry) ([]Placement, error) {
	sz, err := sizes(entries)
	if err != nil {
		return nil, err
	}

	placements, err := Layout(entries, sz)
	if err != nil {
		return nil, err
	}

	pe := make([]toolchain.PackEntry, 0, len(entries))
	for _, e := range entries {
		pe = append(pe, toolchain.PackEntry{Path: e.Path, Align: e.Align})
	}

	tmp := out + ".tmp"
	_ = os.Remove(tmp)

	if err := pk.Run.Run(ctx, pk.TC.Pack(tmp, title, pe)); err != nil {
		_ = os.Remove(tmp)
		return nil, curated.Errorf("image: %v", err)
	}

	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return nil, curated.Errorf("image: %v", err)
	}

	logger.Logf(pk.Perm, "image", "packed %d entries with n64tool", len(entries))

	return placements, nil
}
