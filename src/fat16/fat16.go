// Package fat16 implements the FAT16 filesystem: MBR
// and BPB discovery at mount, cluster-chain arithmetic over the
// attached BlockCache, and the file/directory operations layered on
// top. Every on-disk structure is decoded by explicit little-endian
// byte-offset accessors rather than struct casts, so the format is
// independent of host endianness and Go struct packing.
package fat16

import (
	"cache"
	"defs"
	"util"
)

const sectorSize = 512

// FAT16 reserved cluster values.
const (
	clusterFree    = 0x0000
	clusterBad     = 0xFFF7
	clusterEocBase = 0xFFF8
)

const (
	dirEntrySize  = 32
	dirFreeMarker = 0xE5
	dirEndMarker  = 0x00
	attrDirectory = 0x10
	attrVolumeID  = 0x08
	attrArchive   = 0x20
)

const numHandles = 8

/// Fat16_t is the immutable-after-mount layout plus the small mutable
/// handle table. All durable state lives behind the BlockCache.
type Fat16_t struct {
	cache *cache.BlockCache_t

	partitionLba      uint32
	bytesPerSector    uint32
	sectorsPerCluster uint32
	reservedSectors   uint32
	numFats           uint32
	rootDirEntries    uint32
	sectorsPerFat     uint32
	totalSectors      uint32

	fatStart      uint32
	rootDirStart  uint32
	rootDirSectors uint32
	dataStart     uint32
	clusterSize   uint32

	handles [numHandles]*Handle_t
}

/// Handle_t is an open-file cursor, one entry in the fixed 8-slot
/// handle table.
type Handle_t struct {
	firstCluster uint16
	fileSize     uint32
	position     uint32
	dirLBA       uint32
	dirOff       uint32
}

/// Dirent_t is a single normalized directory entry as exposed to
/// callers of the enumerate/list operations.
type Dirent_t struct {
	Name      string
	Size      uint32
	Attr      uint8
	FirstClus uint16
}

func (d Dirent_t) IsDir() bool { return d.Attr&attrDirectory != 0 }

func readSector(c *cache.BlockCache_t, lba uint32) ([]uint8, defs.Err_t) {
	buf := make([]uint8, sectorSize)
	if err := c.Read(lba, buf); err != 0 {
		return nil, err
	}
	return buf, 0
}

/// Mount performs layout discovery: MBR scan, BPB
/// parse, and derivation of every geometry field used afterwards.
func Mount(c *cache.BlockCache_t) (*Fat16_t, defs.Err_t) {
	mbr, err := readSector(c, 0)
	if err != 0 {
		return nil, err
	}
	if util.Readn16(mbr, 510) != 0xAA55 {
		return nil, defs.EINVAL
	}

	var partitionLba uint32
	found := false
	for i := 0; i < 4; i++ {
		off := 446 + i*16
		typ := mbr[off+4]
		if typ == 0x04 || typ == 0x06 || typ == 0x0E {
			partitionLba = util.Readn32(mbr, off+8)
			found = true
			break
		}
	}
	if !found {
		return nil, defs.ENOENT
	}

	boot, err := readSector(c, partitionLba)
	if err != 0 {
		return nil, err
	}

	f := &Fat16_t{cache: c, partitionLba: partitionLba}
	f.bytesPerSector = uint32(util.Readn16(boot, 11))
	f.sectorsPerCluster = uint32(boot[13])
	f.reservedSectors = uint32(util.Readn16(boot, 14))
	f.numFats = uint32(boot[16])
	f.rootDirEntries = uint32(util.Readn16(boot, 17))
	total16 := uint32(util.Readn16(boot, 19))
	f.sectorsPerFat = uint32(util.Readn16(boot, 22))
	if total16 != 0 {
		f.totalSectors = total16
	} else {
		f.totalSectors = util.Readn32(boot, 32)
	}

	if f.bytesPerSector != sectorSize {
		return nil, defs.EINVAL
	}

	f.fatStart = f.partitionLba + f.reservedSectors
	f.rootDirStart = f.fatStart + f.numFats*f.sectorsPerFat
	f.rootDirSectors = util.Ceildiv(f.rootDirEntries*32, f.bytesPerSector)
	f.dataStart = f.rootDirStart + f.rootDirSectors
	f.clusterSize = f.sectorsPerCluster * f.bytesPerSector

	return f, 0
}
