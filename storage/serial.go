// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"io"
)

// SerialMode selects the serial sink's on-wire framing (spec.md §4.7).
type SerialMode int

const (
	// ModeText emits a human-readable, hex-encoded framing.
	ModeText SerialMode = iota
	// ModeBinary emits the fixed binary packet header/trailer framing.
	ModeBinary
)

const (
	binaryStart   = 0xAA
	binaryVersion = 1
	binaryTrailer = 0x55
)

const (
	binaryTypeData byte = iota
	binaryTypeStart
	binaryTypeEnd
)

// SerialSink streams captured files to a host over a UART link (115200
// baud, 8-N-1 per spec.md §6); the host-side consumer is out of scope, only
// the wire framing lives here.
type SerialSink struct {
	w    io.Writer
	mode SerialMode

	name string
	seq  uint16
	size uint32
}

// NewSerialSink wraps a writer (the UART console) with the chosen framing.
func NewSerialSink(w io.Writer, mode SerialMode) *SerialSink {
	return &SerialSink{w: w, mode: mode}
}

// Begin implements Sink.
func (s *SerialSink) Begin(name string) error {
	s.name = name
	s.seq = 0
	s.size = 0

	if s.mode == ModeText {
		_, err := fmt.Fprintf(s.w, ">>> FILE_START %s SIZE:? <<<\n", name)
		return err
	}

	return s.writeBinary(binaryTypeStart, nil)
}

// Write implements Sink.
func (s *SerialSink) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}

	s.size += uint32(len(p))

	if s.mode == ModeText {
		_, err := fmt.Fprintf(s.w, ">>> DATA %s <<<\n", hex.EncodeToString(p))
		return err
	}

	return s.writeBinary(binaryTypeData, p)
}

// End implements Sink.
func (s *SerialSink) End() error {
	if s.mode == ModeText {
		_, err := fmt.Fprintf(s.w, ">>> FILE_END %s BYTES:%d <<<\n", s.name, s.size)
		return err
	}

	return s.writeBinary(binaryTypeEnd, nil)
}

// writeBinary frames one packet: {start, version, type, fileSize, seq,
// dataLen, checksum}, data, trailer (spec.md §4.7).
func (s *SerialSink) writeBinary(typ byte, data []byte) error {
	hdr := make([]byte, 0, 16+len(data)+1)

	hdr = append(hdr, binaryStart, binaryVersion, typ)

	var sizeBuf, seqBuf, lenBuf, crcBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], s.size)
	binary.BigEndian.PutUint16(seqBuf[:2], s.seq)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	binary.BigEndian.PutUint32(crcBuf[:], crc32.ChecksumIEEE(data))

	hdr = append(hdr, sizeBuf[:]...)
	hdr = append(hdr, seqBuf[:2]...)
	hdr = append(hdr, lenBuf[:]...)
	hdr = append(hdr, crcBuf[:]...)
	hdr = append(hdr, data...)
	hdr = append(hdr, binaryTrailer)

	s.seq++

	_, err := s.w.Write(hdr)
	return err
}
