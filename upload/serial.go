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

package upload

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jetsetilly/n64build/curated"
	"github.com/jetsetilly/n64build/logger"
	"github.com/pkg/term"
)

// Sentinel error patterns for the serial uploader.
const (
	NoPort      = "upload: serial protocol requires upload.port"
	DeviceError = "upload: device reported error (%s)"
)

// Commands of the serial protocol.
const (
	cmdWrite   byte = 'W'
	cmdSDWrite byte = 'S'
	cmdReset   byte = 'R'
)

// every frame starts with this.
const frameMagic = "N64U"

// size of each write to the port.
const chunkSize = 0x10000

// the reply from the device is four bytes. "OK" followed by two zero bytes
// or "ER" followed by an error code.
const replyLen = 4

// time to wait for the reply after a frame has been sent.
const replyTimeout = 10 * time.Second

// length of the DTR pulse that resets the device.
const resetPulse = 100 * time.Millisecond

// Port is the serial port used by the Serial uploader.
type Port interface {
	io.ReadWriteCloser
	SetDTR(v bool) error
}

// termPort adapts a term.Term to the Port interface.
type termPort struct {
	*term.Term
}

func openTerm(name string, baud int) (Port, error) {
	t, err := term.Open(name, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, err
	}
	if err := t.SetReadTimeout(replyTimeout); err != nil {
		t.Close()
		return nil, err
	}
	return termPort{Term: t}, nil
}

// Serial uploads to a flash cartridge over a serial connection.
//
// Each transfer is a single frame:
//
//	magic "N64U"
//	command (1 byte)
//	length of name (uint16), name
//	length of payload (uint32), payload
//	CRC32 of payload (uint32)
//
// All values are big-endian.
type Serial struct {
	Port string
	Baud int

	// opens the serial port. replaced for testing
	Open func(name string, baud int) (Port, error)

	perm logger.Permission
}

// NewSerial is the preferred method of initialisation for the Serial type.
func NewSerial(port string, baud int, perm logger.Permission) *Serial {
	return &Serial{
		Port: port,
		Baud: baud,
		Open: openTerm,
		perm: perm,
	}
}

func (s *Serial) open() (Port, error) {
	if s.Port == "" {
		return nil, curated.Errorf(NoPort)
	}
	p, err := s.Open(s.Port, s.Baud)
	if err != nil {
		return nil, curated.Errorf("upload: %s: %v", s.Port, err)
	}
	return p, nil
}

// Upload implements the Uploader interface.
func (s *Serial) Upload(ctx context.Context, image string) error {
	data, err := os.ReadFile(image)
	if err != nil {
		return curated.Errorf("upload: %v", err)
	}
	return s.transfer(ctx, cmdWrite, filepath.Base(image), data)
}

// SDUpload implements the SDUploader interface.
func (s *Serial) SDUpload(ctx context.Context, src string, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return curated.Errorf("upload: %v", err)
	}
	if dest == "" {
		dest = filepath.Base(src)
	}
	return s.transfer(ctx, cmdSDWrite, dest, data)
}

// Reset implements the Resetter interface. DTR is pulsed before the reset
// command is sent.
func (s *Serial) Reset(ctx context.Context) error {
	p, err := s.open()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.SetDTR(false); err != nil {
		return curated.Errorf("upload: %v", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(resetPulse):
	}
	if err := p.SetDTR(true); err != nil {
		return curated.Errorf("upload: %v", err)
	}

	logger.Log(s.perm, "upload", "reset")

	return s.send(ctx, p, cmdReset, "", nil)
}

func (s *Serial) transfer(ctx context.Context, cmd byte, name string, data []byte) error {
	p, err := s.open()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := s.send(ctx, p, cmd, name, data); err != nil {
		return err
	}

	logger.Logf(s.perm, "upload", "%s: %d bytes to %s", name, len(data), s.Port)
	return nil
}

// Frame encodes a frame of the serial protocol.
func Frame(cmd byte, name string, data []byte) []byte {
	var b bytes.Buffer
	b.WriteString(frameMagic)
	b.WriteByte(cmd)
	binary.Write(&b, binary.BigEndian, uint16(len(name)))
	b.WriteString(name)
	binary.Write(&b, binary.BigEndian, uint32(len(data)))
	b.Write(data)
	binary.Write(&b, binary.BigEndian, crc32.ChecksumIEEE(data))
	return b.Bytes()
}

func (s *Serial) send(ctx context.Context, p Port, cmd byte, name string, data []byte) error {
	frame := Frame(cmd, name, data)

	for len(frame) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(chunkSize, len(frame))
		if _, err := p.Write(frame[:n]); err != nil {
			return curated.Errorf("upload: %v", err)
		}
		frame = frame[n:]
	}

	var reply [replyLen]byte
	if _, err := io.ReadFull(p, reply[:]); err != nil {
		return curated.Errorf("upload: no reply from device: %v", err)
	}
	if string(reply[:2]) != "OK" {
		return curated.Errorf(DeviceError, string(bytes.TrimRight(reply[:], "\x00")))
	}

	return nil
}
