// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package flashfs

import (
	"errors"
)

var (
	ErrNameEmpty    = errors.New("flashfs: empty filename")
	ErrNameTooLong  = errors.New("flashfs: filename too long")
	ErrNameExists   = errors.New("flashfs: filename already exists")
	ErrNoSlot       = errors.New("flashfs: directory full")
	ErrNoSpace      = errors.New("flashfs: flash full")
	ErrNotFound     = errors.New("flashfs: file not found")
	ErrNoActiveFile = errors.New("flashfs: no active file handle")
)

// Flash is the subset of the flash driver (package flash) the filesystem
// needs: bounded reads, page-aligned programs, and sector erase.
type Flash interface {
	Read(addr uint32, dst []byte) (int, error)
	ProgramPage(addr uint32, data []byte) error
	EraseSector(addr uint32) error
}

// MountResult reports whether an existing directory was found.
type MountResult int

const (
	// Mounted means the directory held at least one valid used entry.
	Mounted MountResult = iota
	// Fresh means no usable directory was found (erased or invalid flash).
	Fresh
)

// Handle is the active file handle (spec.md §3): at most one exists at a
// time.
type Handle struct {
	name  string
	start uint32
	size  uint32
}

func (h *Handle) Name() string { return h.name }
func (h *Handle) Size() uint32 { return h.size }

// FileSystem is the flash-resident directory filesystem (component F).
type FileSystem struct {
	dev Flash

	flashSize uint32
	dir       [MaxFiles]entry
	highWater uint32

	active *Handle
}

// New builds a filesystem bound to a flash device of the given total size.
func New(dev Flash, flashSize uint32) *FileSystem {
	return &FileSystem{
		dev:       dev,
		flashSize: flashSize,
		highWater: FileDataStart,
	}
}

// Mount reads the directory into RAM and validates every entry (spec.md
// §4.6). An invalid directory is treated as fresh: the RAM copy is zeroed
// and nothing is written back to flash until the first close/format.
func (fs *FileSystem) Mount() (MountResult, error) {
	buf := make([]byte, DirSize)
	if _, err := fs.dev.Read(0, buf); err != nil {
		return Fresh, err
	}

	var dir [MaxFiles]entry
	highWater := uint32(FileDataStart)
	valid := true
	found := false

	for i := 0; i < MaxFiles; i++ {
		e := decodeEntry(buf[i*EntrySize : (i+1)*EntrySize])
		dir[i] = e

		if e.free() {
			continue
		}
		found = true
		if e.flags != flagUsed {
			valid = false
			break
		}
		if e.start < FileDataStart || uint64(e.start)+uint64(e.size) > uint64(fs.flashSize) {
			valid = false
			break
		}
		if end := e.start + e.size; end > highWater {
			highWater = end
		}
	}

	if !valid || !found {
		fs.dir = [MaxFiles]entry{}
		fs.highWater = FileDataStart
		return Fresh, nil
	}

	if !fs.overlapsFree(dir) {
		valid = false
	}

	if !valid {
		fs.dir = [MaxFiles]entry{}
		fs.highWater = FileDataStart
		return Fresh, nil
	}

	fs.dir = dir
	fs.highWater = highWater

	return Mounted, nil
}

// overlapsFree reports whether the directory is overlap-free: it returns
// false if any two used entries' ranges intersect, true otherwise
// (spec.md §4.6 invariant 1, §8 invariant 5).
func (fs *FileSystem) overlapsFree(dir [MaxFiles]entry) bool {
	for i := 0; i < MaxFiles; i++ {
		if !dir[i].used() {
			continue
		}
		for j := i + 1; j < MaxFiles; j++ {
			if !dir[j].used() {
				continue
			}
			if rangesOverlap(dir[i].start, dir[i].size, dir[j].start, dir[j].size) {
				return false
			}
		}
	}
	return true
}

func rangesOverlap(startA, sizeA, startB, sizeB uint32) bool {
	endA := startA + sizeA
	endB := startB + sizeB
	return startA < endB && startB < endA
}

// Create allocates a new file at the high-water mark (spec.md §4.6).
func (fs *FileSystem) Create(name string) (*Handle, error) {
	if len(name) == 0 {
		return nil, ErrNameEmpty
	}
	if len(name) > NameSize {
		return nil, ErrNameTooLong
	}
	if fs.Exists(name) {
		return nil, ErrNameExists
	}

	slot := -1
	for i := 0; i < MaxFiles; i++ {
		if fs.dir[i].free() {
			slot = i
			break
		}
	}
	if slot == -1 {
		return nil, ErrNoSlot
	}
	if fs.highWater >= fs.flashSize {
		return nil, ErrNoSpace
	}

	e := &fs.dir[slot]
	e.setName(name)
	e.start = fs.highWater
	e.size = 0
	e.crc = nameCRC(name)
	e.flags = flagUsed

	fs.active = &Handle{name: name, start: e.start, size: 0}

	return fs.active, nil
}

// Write programs bytes at start+size, page at a time, never crossing a
// 256-byte page boundary (spec.md §4.6). The on-flash directory is not
// rewritten per write — only Close flushes it.
func (fs *FileSystem) Write(h *Handle, data []byte) (int, error) {
	if h == nil || h != fs.active {
		return 0, ErrNoActiveFile
	}

	written := 0
	addr := h.start + h.size

	for written < len(data) {
		pageOff := addr % 256
		room := 256 - pageOff
		chunk := uint32(len(data) - written)
		if chunk > room {
			chunk = room
		}
		if addr+chunk > fs.flashSize {
			return written, ErrNoSpace
		}

		if err := fs.dev.ProgramPage(addr, data[written:written+int(chunk)]); err != nil {
			return written, err
		}

		addr += chunk
		written += int(chunk)
	}

	h.size += uint32(written)
	fs.syncActiveEntry(h)

	return written, nil
}

func (fs *FileSystem) syncActiveEntry(h *Handle) {
	for i := range fs.dir {
		if fs.dir[i].used() && fs.dir[i].start == h.start {
			fs.dir[i].size = h.size
			return
		}
	}
}

// Close flushes the RAM directory to flash and advances the high-water
// mark (spec.md §4.6).
func (fs *FileSystem) Close(h *Handle) error {
	if h == nil || h != fs.active {
		return ErrNoActiveFile
	}

	if end := h.start + h.size; end > fs.highWater {
		fs.highWater = end
	}

	if err := fs.flushDirectory(); err != nil {
		return err
	}

	fs.active = nil

	return nil
}

// flushDirectory erases the two directory sectors and reprograms them from
// the RAM copy (spec.md §4.6).
func (fs *FileSystem) flushDirectory() error {
	for s := 0; s < DirSectors; s++ {
		if err := fs.dev.EraseSector(uint32(s * SectorSize)); err != nil {
			return err
		}
	}

	buf := make([]byte, 0, MaxFiles*EntrySize)
	for i := 0; i < MaxFiles; i++ {
		buf = append(buf, fs.dir[i].encode()...)
	}

	// Entries are 48 bytes, so program the packed directory a 256-byte
	// page at a time rather than entry by entry.
	for off := 0; off < len(buf); off += 256 {
		end := off + 256
		if end > len(buf) {
			end = len(buf)
		}
		if err := fs.dev.ProgramPage(uint32(off), buf[off:end]); err != nil {
			return err
		}
	}

	return nil
}

// Delete marks a directory slot deleted and flushes the directory;
// payload sectors are not reclaimed (spec.md §4.6).
func (fs *FileSystem) Delete(name string) error {
	for i := range fs.dir {
		if fs.dir[i].used() && fs.dir[i].nameString() == name {
			fs.dir[i].flags = flagDeleted
			return fs.flushDirectory()
		}
	}
	return ErrNotFound
}

// Format erases the directory sectors, zeroes the RAM directory, and
// resets the high-water mark to FileDataStart (spec.md §4.6).
func (fs *FileSystem) Format() error {
	for s := 0; s < DirSectors; s++ {
		if err := fs.dev.EraseSector(uint32(s * SectorSize)); err != nil {
			return err
		}
	}

	fs.dir = [MaxFiles]entry{}
	fs.highWater = FileDataStart

	return nil
}

// Exists reports whether a used entry has the given name.
func (fs *FileSystem) Exists(name string) bool {
	for i := range fs.dir {
		if fs.dir[i].used() && fs.dir[i].nameString() == name {
			return true
		}
	}
	return false
}

// FileInfo is one entry returned by List.
type FileInfo struct {
	Name string
	Size uint32
}

// List returns every used file's name and size.
func (fs *FileSystem) List() []FileInfo {
	var out []FileInfo
	for i := range fs.dir {
		if fs.dir[i].used() {
			out = append(out, FileInfo{Name: fs.dir[i].nameString(), Size: fs.dir[i].size})
		}
	}
	return out
}

// Read reads up to len(dst) bytes from name starting at offset.
func (fs *FileSystem) Read(name string, offset uint32, dst []byte) (int, error) {
	for i := range fs.dir {
		if fs.dir[i].used() && fs.dir[i].nameString() == name {
			e := fs.dir[i]
			if offset >= e.size {
				return 0, nil
			}
			n := len(dst)
			if uint32(n) > e.size-offset {
				n = int(e.size - offset)
			}
			return fs.dev.Read(e.start+offset, dst[:n])
		}
	}
	return 0, ErrNotFound
}

// HighWaterMark exposes the current bump-allocation pointer, mainly for
// tests and the diagnostics surface.
func (fs *FileSystem) HighWaterMark() uint32 {
	return fs.highWater
}
