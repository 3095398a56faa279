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

package assets

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/paths"
)

// Values describing the PCM output format. All values are big-endian:
//
//	0   magic "PCM1"
//	4   sample rate (uint32)
//	8   number of samples (uint32)
//	12  number of channels, always 1 (uint16)
//	14  bits per sample, always 16 (uint16)
//	16  samples (int16)
const (
	PCMMagic  = "PCM1"
	PCMExt    = ".pcm"
	PCMHeader = 16
)

// PCMConverter decodes WAV and MP3 files and writes them as mono 16bit
// samples. It is used for the extensions of rules naming the BuiltinPCM
// tool.
type PCMConverter struct{}

// PCM is decoded audio.
type PCM struct {
	SampleRate int
	Samples    []int16
}

// Output implements the Converter interface.
func (c PCMConverter) Output(src string, outDir string) string {
	return filepath.Join(outDir, paths.ReplaceExt(filepath.Base(src), PCMExt))
}

// Convert implements the Converter interface.
func (c PCMConverter) Convert(ctx context.Context, src string, outDir string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", curated.Errorf("assets: %v", err)
	}
	defer f.Close()

	var pcm PCM

	switch strings.ToLower(filepath.Ext(src)) {
	case ".wav":
		pcm, err = DecodeWAV(f)
	case ".mp3":
		pcm, err = DecodeMP3(f)
	default:
		err = curated.Errorf("unsupported audio format")
	}
	if err != nil {
		return "", curated.Errorf("assets: %s: %v", filepath.Base(src), err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", curated.Errorf("assets: %v", err)
	}

	out := c.Output(src, outDir)
	if err := pcm.write(out); err != nil {
		return "", curated.Errorf("assets: %s: %v", filepath.Base(src), err)
	}

	return out, nil
}

func (pcm PCM) write(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	w.WriteString(PCMMagic)
	binary.Write(w, binary.BigEndian, uint32(pcm.SampleRate))
	binary.Write(w, binary.BigEndian, uint32(len(pcm.Samples)))
	binary.Write(w, binary.BigEndian, uint16(1))
	binary.Write(w, binary.BigEndian, uint16(16))
	binary.Write(w, binary.BigEndian, pcm.Samples)

	err = w.Flush()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// downmix averages the channels of interleaved samples.
func downmix(data []int, channels int, shift int) []int16 {
	if channels < 1 {
		channels = 1
	}

	mono := make([]int16, 0, len(data)/channels)
	for i := 0; i+channels <= len(data); i += channels {
		sum := 0
		for c := 0; c < channels; c++ {
			v := data[i+c]
			if shift > 0 {
				v >>= shift
			} else if shift < 0 {
				v <<= -shift
			}
			sum += v
		}
		mono = append(mono, int16(sum/channels))
	}
	return mono
}

// DecodeWAV decodes a WAV file. Samples of any bit depth are scaled to 16
// bits.
func DecodeWAV(r io.ReadSeeker) (PCM, error) {
	dec := wav.NewDecoder(r)
	if dec == nil || !dec.IsValidFile() {
		return PCM{}, curated.Errorf("wav: not a valid wav file")
	}

	var buf *audio.IntBuffer
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, curated.Errorf("wav: %v", err)
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}

	// 8bit wav data is unsigned
	data := buf.Data
	if depth == 8 {
		data = make([]int, len(buf.Data))
		for i, v := range buf.Data {
			data[i] = v - 128
		}
	}

	return PCM{
		SampleRate: int(dec.SampleRate),
		Samples:    downmix(data, buf.Format.NumChannels, depth-16),
	}, nil
}

// DecodeMP3 decodes an MP3 file.
func DecodeMP3(r io.Reader) (PCM, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return PCM{}, curated.Errorf("mp3: %v", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return PCM{}, curated.Errorf("mp3: %v", err)
	}

	// the decoded stream is always 16bit little-endian stereo
	data := make([]int, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		data = append(data, int(int16(binary.LittleEndian.Uint16(raw[i:]))))
	}

	return PCM{
		SampleRate: dec.SampleRate(),
		Samples:    downmix(data, 2, 0),
	}, nil
}

// ReadPCM reads a file written by the PCMConverter.
func ReadPCM(r io.Reader) (PCM, error) {
	var hdr [PCMHeader]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return PCM{}, curated.Errorf("pcm: %v", err)
	}
	if string(hdr[:4]) != PCMMagic {
		return PCM{}, curated.Errorf("pcm: not a pcm file")
	}

	pcm := PCM{
		SampleRate: int(binary.BigEndian.Uint32(hdr[4:])),
		Samples:    make([]int16, binary.BigEndian.Uint32(hdr[8:])),
	}
	if err := binary.Read(r, binary.BigEndian, pcm.Samples); err != nil {
		return PCM{}, curated.Errorf("pcm: %v", err)
	}

	return pcm, nil
}
