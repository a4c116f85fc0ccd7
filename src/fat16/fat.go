package fat16

import (
	"defs"
	"util"
)

// clusterLBA maps cluster c (>= 2) to its first data-region sector.
func (f *Fat16_t) clusterLBA(c uint16) uint32 {
	return f.dataStart + uint32(c-2)*f.sectorsPerCluster
}

// fatEntrySector returns the sector (within the first FAT copy) and
// byte offset within that sector holding cluster c's 16-bit entry.
func (f *Fat16_t) fatEntrySector(c uint16) (uint32, int) {
	byteOff := uint32(c) * 2
	return f.fatStart + byteOff/f.bytesPerSector, int(byteOff % f.bytesPerSector)
}

/// readFatEntry returns the raw FAT16 table value for cluster c.
func (f *Fat16_t) readFatEntry(c uint16) (uint16, defs.Err_t) {
	lba, off := f.fatEntrySector(c)
	buf, err := readSector(f.cache, lba)
	if err != 0 {
		return 0, err
	}
	return util.Readn16(buf, off), 0
}

/// writeFatEntry stores val for cluster c, mirrored to every FAT copy
/// on disk.
func (f *Fat16_t) writeFatEntry(c uint16, val uint16) defs.Err_t {
	_, off := f.fatEntrySector(c)
	for fatcopy := uint32(0); fatcopy < f.numFats; fatcopy++ {
		lba := f.fatStart + fatcopy*f.sectorsPerFat + (uint32(c)*2)/f.bytesPerSector
		buf, err := readSector(f.cache, lba)
		if err != 0 {
			return err
		}
		util.Writen16(buf, off, val)
		if err := f.cache.Write(lba, buf); err != 0 {
			return err
		}
	}
	return 0
}

func isEOC(v uint16) bool  { return v >= clusterEocBase }
func isFree(v uint16) bool { return v < 0x0002 }

// chain returns every cluster in the chain starting at first, in
// order, following FAT links until end-of-chain.
func (f *Fat16_t) chain(first uint16) ([]uint16, defs.Err_t) {
	var out []uint16
	c := first
	for !isEOC(c) {
		if c == clusterBad || isFree(c) {
			return nil, defs.EIO
		}
		out = append(out, c)
		next, err := f.readFatEntry(c)
		if err != 0 {
			return nil, err
		}
		c = next
	}
	return out, 0
}

// freeChain walks the chain starting at first and marks every
// cluster in it free.
func (f *Fat16_t) freeChain(first uint16) defs.Err_t {
	if first == 0 {
		return 0
	}
	clusters, err := f.chain(first)
	if err != 0 {
		return err
	}
	for _, c := range clusters {
		if err := f.writeFatEntry(c, clusterFree); err != 0 {
			return err
		}
	}
	return 0
}

// allocClusters finds n free clusters by a single first-fit scan of
// the FAT, chains them together (each newly allocated cluster points
// to the next, the last is end-of-chain), and returns the first
// cluster of the new chain. On any failure partway through, every
// cluster allocated so far is freed before returning the error, so a
// failed allocation never leaks clusters.
func (f *Fat16_t) allocClusters(n int) (uint16, defs.Err_t) {
	if n == 0 {
		return 0, 0
	}
	maxCluster := uint16(2 + (f.totalSectors-f.dataStart)/f.sectorsPerCluster)

	var got []uint16
	for c := uint16(2); c < maxCluster && len(got) < n; c++ {
		v, err := f.readFatEntry(c)
		if err != 0 {
			f.rollback(got)
			return 0, err
		}
		if isFree(v) {
			got = append(got, c)
		}
	}
	if len(got) < n {
		f.rollback(got)
		return 0, defs.ENOSPC
	}

	for i, c := range got {
		val := uint16(clusterEocBase)
		if i+1 < len(got) {
			val = got[i+1]
		}
		if err := f.writeFatEntry(c, val); err != 0 {
			f.rollback(got)
			return 0, err
		}
	}
	return got[0], 0
}

func (f *Fat16_t) rollback(clusters []uint16) {
	for _, c := range clusters {
		f.writeFatEntry(c, clusterFree)
	}
}
