// Package blkdev defines the BlockDevice capability: a
// minimal read/write-sectors interface, a small registration table
// indexed by ordinal, and a file-backed implementation used in tests
// and by cmd/kcore in place of real disk hardware.
package blkdev

import (
	"os"
	"sync"

	"defs"
)

/// SectorSize is the fixed sector size this core supports.
const SectorSize = 512

/// Device_i is the capability every block device must provide:
/// polled, synchronous sector I/O — no suspension point exists inside
/// Read or Write.
type Device_i interface {
	Read(lba uint32, sectorCount uint32, buf []uint8) defs.Err_t
	Write(lba uint32, sectorCount uint32, buf []uint8) defs.Err_t
	NumSectors() uint32
}

/// Table_t is a small registry of devices indexed by ordinal. At most
/// one device is attached to the BlockCache at a time in this core,
/// but the table itself can hold several, the way an AHCI controller
/// keeps every probed port in a slice even though only one backs the
/// root filesystem.
type Table_t struct {
	sync.Mutex
	devs []Device_i
}

/// MkTable creates an empty device table.
func MkTable() *Table_t {
	return &Table_t{}
}

/// Register adds a device and returns its ordinal handle.
func (t *Table_t) Register(d Device_i) int {
	t.Lock()
	defer t.Unlock()
	t.devs = append(t.devs, d)
	return len(t.devs) - 1
}

/// Get returns the device at ordinal h, or false if h is out of range.
func (t *Table_t) Get(h int) (Device_i, bool) {
	t.Lock()
	defer t.Unlock()
	if h < 0 || h >= len(t.devs) {
		return nil, false
	}
	return t.devs[h], true
}

/// FileDisk_t simulates a block device backed by a host file, a
/// standard technique for running filesystem tests without real AHCI
/// hardware.
type FileDisk_t struct {
	sync.Mutex
	f        *os.File
	nsectors uint32
}

/// OpenFileDisk opens (or creates, sized to nsectors*SectorSize) a
/// host file to back a simulated block device.
func OpenFileDisk(path string, nsectors uint32) (*FileDisk_t, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	sz := int64(nsectors) * SectorSize
	if fi, err := f.Stat(); err == nil && fi.Size() < sz {
		if err := f.Truncate(sz); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &FileDisk_t{f: f, nsectors: nsectors}, nil
}

/// NumSectors reports the simulated disk's capacity in sectors.
func (d *FileDisk_t) NumSectors() uint32 {
	return d.nsectors
}

func (d *FileDisk_t) seek(lba uint32) error {
	_, err := d.f.Seek(int64(lba)*SectorSize, 0)
	return err
}

/// Read fills buf (len >= sectorCount*SectorSize) starting at lba.
func (d *FileDisk_t) Read(lba uint32, sectorCount uint32, buf []uint8) defs.Err_t {
	d.Lock()
	defer d.Unlock()

	if lba+sectorCount > d.nsectors {
		return defs.EINVAL
	}
	n := int(sectorCount) * SectorSize
	if len(buf) < n {
		return defs.EINVAL
	}
	if err := d.seek(lba); err != nil {
		return defs.EIO
	}
	if _, err := d.f.Read(buf[:n]); err != nil {
		return defs.EIO
	}
	return 0
}

/// Write persists sectorCount*SectorSize bytes of buf to lba.
func (d *FileDisk_t) Write(lba uint32, sectorCount uint32, buf []uint8) defs.Err_t {
	d.Lock()
	defer d.Unlock()

	if lba+sectorCount > d.nsectors {
		return defs.EINVAL
	}
	n := int(sectorCount) * SectorSize
	if len(buf) < n {
		return defs.EINVAL
	}
	if err := d.seek(lba); err != nil {
		return defs.EIO
	}
	if _, err := d.f.Write(buf[:n]); err != nil {
		return defs.EIO
	}
	return 0
}

/// Sync flushes the backing file to stable storage.
func (d *FileDisk_t) Sync() defs.Err_t {
	d.Lock()
	defer d.Unlock()
	if err := d.f.Sync(); err != nil {
		return defs.EIO
	}
	return 0
}

/// Close releases the backing file.
func (d *FileDisk_t) Close() error {
	return d.f.Close()
}

/// MemDisk_t is an in-memory block device, handy for unit tests that
/// don't want to touch the filesystem.
type MemDisk_t struct {
	sync.Mutex
	bytes []uint8
}

/// MkMemDisk creates an in-memory device of nsectors sectors, zeroed.
func MkMemDisk(nsectors uint32) *MemDisk_t {
	return &MemDisk_t{bytes: make([]uint8, uint64(nsectors)*SectorSize)}
}

func (d *MemDisk_t) NumSectors() uint32 {
	return uint32(len(d.bytes) / SectorSize)
}

func (d *MemDisk_t) Read(lba uint32, sectorCount uint32, buf []uint8) defs.Err_t {
	d.Lock()
	defer d.Unlock()
	off := uint64(lba) * SectorSize
	n := uint64(sectorCount) * SectorSize
	if off+n > uint64(len(d.bytes)) || uint64(len(buf)) < n {
		return defs.EINVAL
	}
	copy(buf, d.bytes[off:off+n])
	return 0
}

func (d *MemDisk_t) Write(lba uint32, sectorCount uint32, buf []uint8) defs.Err_t {
	d.Lock()
	defer d.Unlock()
	off := uint64(lba) * SectorSize
	n := uint64(sectorCount) * SectorSize
	if off+n > uint64(len(d.bytes)) || uint64(len(buf)) < n {
		return defs.EINVAL
	}
	copy(d.bytes[off:off+n], buf)
	return 0
}
