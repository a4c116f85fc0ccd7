package fat16

import (
	"defs"
	"util"
)

// dirSectors returns the list of LBAs making up a directory region:
// the fixed-size root directory, or the cluster chain of a subdir.
func (f *Fat16_t) dirSectors(dirCluster uint16) ([]uint32, defs.Err_t) {
	if dirCluster == 0 {
		out := make([]uint32, f.rootDirSectors)
		for i := range out {
			out[i] = f.rootDirStart + uint32(i)
		}
		return out, 0
	}
	clusters, err := f.chain(dirCluster)
	if err != 0 {
		return nil, err
	}
	var out []uint32
	for _, c := range clusters {
		base := f.clusterLBA(c)
		for s := uint32(0); s < f.sectorsPerCluster; s++ {
			out = append(out, base+s)
		}
	}
	return out, 0
}

// dirLoc pins down a single directory entry's location for rewriting.
type dirLoc struct {
	lba uint32
	off int
}

func parseDirent(buf []uint8, off int) (Dirent_t, [11]byte) {
	var raw [11]byte
	copy(raw[:], buf[off:off+11])
	attr := buf[off+11]
	firstClus := util.Readn16(buf, off+26)
	size := util.Readn32(buf, off+28)
	return Dirent_t{Name: from83(raw), Size: size, Attr: attr, FirstClus: firstClus}, raw
}

func writeDirent(buf []uint8, off int, raw83 [11]byte, attr uint8, firstClus uint16, size uint32) {
	copy(buf[off:off+11], raw83[:])
	buf[off+11] = attr
	for i := 12; i < 26; i++ {
		buf[off+i] = 0
	}
	util.Writen16(buf, off+26, firstClus)
	util.Writen32(buf, off+28, size)
}

// findEntry scans a directory region for an entry matching raw83,
// skipping deleted (0xE5) entries and stopping at the end marker
// (0x00). It also returns the location of the first free slot seen
// (end marker or a previously-deleted entry), for create/overwrite.
func (f *Fat16_t) findEntry(dirCluster uint16, raw83 [11]byte) (Dirent_t, dirLoc, bool, dirLoc, bool) {
	var free dirLoc
	haveFree := false

	sectors, err := f.dirSectors(dirCluster)
	if err != 0 {
		return Dirent_t{}, dirLoc{}, false, free, false
	}
	for _, lba := range sectors {
		buf, err := readSector(f.cache, lba)
		if err != 0 {
			continue
		}
		for off := 0; off+dirEntrySize <= len(buf); off += dirEntrySize {
			first := buf[off]
			if first == dirEndMarker {
				if !haveFree {
					free, haveFree = dirLoc{lba, off}, true
				}
				return Dirent_t{}, dirLoc{}, false, free, haveFree
			}
			if first == dirFreeMarker {
				if !haveFree {
					free, haveFree = dirLoc{lba, off}, true
				}
				continue
			}
			ent, raw := parseDirent(buf, off)
			if raw == raw83 {
				return ent, dirLoc{lba, off}, true, free, haveFree
			}
		}
	}
	return Dirent_t{}, dirLoc{}, false, free, haveFree
}

// resolveDir locates the directory named dirName within the root
// directory and returns its first cluster. An empty dirName means the
// root directory itself (cluster 0).
func (f *Fat16_t) resolveDir(dirName string) (uint16, defs.Err_t) {
	if dirName == "" {
		return 0, 0
	}
	raw83, ok := to83(dirName)
	if !ok {
		return 0, defs.EINVAL
	}
	ent, _, found, _, _ := f.findEntry(0, raw83)
	if !found {
		return 0, defs.ENOENT
	}
	if !ent.IsDir() {
		return 0, defs.EINVAL
	}
	return ent.FirstClus, 0
}

/// EnumerateRoot visits every live entry in the root directory.
func (f *Fat16_t) EnumerateRoot(cb func(Dirent_t)) defs.Err_t {
	return f.enumerate(0, cb)
}

/// EnumerateSubdir visits every live entry in the named subdirectory
/// of root.
func (f *Fat16_t) EnumerateSubdir(dirName string, cb func(Dirent_t)) defs.Err_t {
	clus, err := f.resolveDir(dirName)
	if err != 0 {
		return err
	}
	return f.enumerate(clus, cb)
}

func (f *Fat16_t) enumerate(dirCluster uint16, cb func(Dirent_t)) defs.Err_t {
	sectors, err := f.dirSectors(dirCluster)
	if err != 0 {
		return err
	}
	for _, lba := range sectors {
		buf, err := readSector(f.cache, lba)
		if err != 0 {
			return err
		}
		for off := 0; off+dirEntrySize <= len(buf); off += dirEntrySize {
			first := buf[off]
			if first == dirEndMarker {
				return 0
			}
			if first == dirFreeMarker {
				continue
			}
			ent, _ := parseDirent(buf, off)
			if ent.Attr&attrVolumeID != 0 {
				continue
			}
			if ent.Name == "." || ent.Name == ".." {
				continue
			}
			cb(ent)
		}
	}
	return 0
}

/// ListRoot returns every live entry in the root directory as a
/// slice, a convenience wrapper over EnumerateRoot.
func (f *Fat16_t) ListRoot() ([]Dirent_t, defs.Err_t) {
	var out []Dirent_t
	err := f.EnumerateRoot(func(d Dirent_t) { out = append(out, d) })
	return out, err
}
