// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package flashfs implements the minimal append-only directory filesystem
// that lives on the NOR flash (component F, spec.md §4.6): a fixed-size
// directory region followed by a bump-allocated payload region.
package flashfs

import (
	"encoding/binary"
	"hash/crc32"
)

// Layout constants (spec.md §3, §4.6).
const (
	EntrySize  = 48
	MaxFiles   = DirSize / EntrySize // 170 entries fit the two directory sectors
	NameSize   = 32
	DirSectors = 2
	SectorSize = 4096
	DirSize    = DirSectors * SectorSize

	// FileDataStart is the first payload byte, after the directory region
	// and whatever padding rounds it out. The reference reserves nothing
	// extra, so payload starts right after the directory sectors.
	FileDataStart = DirSize
)

// Flags values for a directory entry (spec.md §3). The deleted and unused
// values both read back as "free" on this hardware: a freshly erased flash
// region is all 0xFF, which collides with the deleted-marker value. This
// is a known, preserved quirk — see DESIGN.md's open-question entry.
const (
	flagUnused  = 0x00000000
	flagUsed    = 0x55AA55AA
	flagDeleted = 0xFFFFFFFF
)

// entry is the in-RAM decoding of one 48-byte directory record.
type entry struct {
	name  [NameSize]byte
	start uint32
	size  uint32
	crc   uint32
	flags uint32
}

func (e *entry) nameString() string {
	n := 0
	for n < NameSize && e.name[n] != 0 {
		n++
	}
	return string(e.name[:n])
}

func (e *entry) setName(name string) {
	var buf [NameSize]byte
	copy(buf[:], name)
	e.name = buf
}

func (e *entry) used() bool    { return e.flags == flagUsed }
func (e *entry) free() bool    { return e.flags == flagUnused || e.flags == flagDeleted }

func decodeEntry(b []byte) entry {
	var e entry
	copy(e.name[:], b[0:NameSize])
	e.start = binary.LittleEndian.Uint32(b[32:36])
	e.size = binary.LittleEndian.Uint32(b[36:40])
	e.crc = binary.LittleEndian.Uint32(b[40:44])
	e.flags = binary.LittleEndian.Uint32(b[44:48])
	return e
}

func (e *entry) encode() []byte {
	b := make([]byte, EntrySize)
	copy(b[0:NameSize], e.name[:])
	binary.LittleEndian.PutUint32(b[32:36], e.start)
	binary.LittleEndian.PutUint32(b[36:40], e.size)
	binary.LittleEndian.PutUint32(b[40:44], e.crc)
	binary.LittleEndian.PutUint32(b[44:48], e.flags)
	return b
}

func nameCRC(name string) uint32 {
	return crc32.ChecksumIEEE([]byte(name))
}
