package fat16

import (
	"defs"
	"util"
)

func (f *Fat16_t) resolveParent(path string) (uint16, string, defs.Err_t) {
	dirName, name := splitPath(path)
	dirClus, err := f.resolveDir(dirName)
	if err != 0 {
		return 0, "", err
	}
	return dirClus, name, 0
}

/// Open searches the appropriate directory for path's normalized 8.3
/// name and, if found, allocates a handle from the fixed 8-slot table.
func (f *Fat16_t) Open(path string) (int, defs.Err_t) {
	dirClus, name, err := f.resolveParent(path)
	if err != 0 {
		return 0, err
	}
	raw83, ok := to83(name)
	if !ok {
		return 0, defs.EINVAL
	}
	ent, loc, found, _, _ := f.findEntry(dirClus, raw83)
	if !found {
		return 0, defs.ENOENT
	}

	slot := -1
	for i, h := range f.handles {
		if h == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		return 0, defs.EBUSY
	}
	f.handles[slot] = &Handle_t{
		firstCluster: ent.FirstClus,
		fileSize:     ent.Size,
		dirLBA:       loc.lba,
		dirOff:       uint32(loc.off),
	}
	return slot, 0
}

/// Stat looks up path's directory entry without opening a handle,
/// reporting its size and whether it is a directory.
func (f *Fat16_t) Stat(path string) (uint32, bool, defs.Err_t) {
	dirClus, name, err := f.resolveParent(path)
	if err != 0 {
		return 0, false, err
	}
	raw83, ok := to83(name)
	if !ok {
		return 0, false, defs.EINVAL
	}
	ent, _, found, _, _ := f.findEntry(dirClus, raw83)
	if !found {
		return 0, false, defs.ENOENT
	}
	return ent.Size, ent.IsDir(), 0
}

/// ReadAll reads a whole file's contents in one call via a scratch
/// handle from the fixed handle table.
func (f *Fat16_t) ReadAll(path string) ([]uint8, defs.Err_t) {
	h, err := f.Open(path)
	if err != 0 {
		return nil, err
	}
	defer f.Close(h)

	size := f.handles[h].fileSize
	out := make([]uint8, size)
	if size == 0 {
		return out, 0
	}
	n, err := f.Read(h, out, int(size))
	if err != 0 {
		return nil, err
	}
	return out[:n], 0
}

/// Close releases a handle back to the free pool.
func (f *Fat16_t) Close(h int) defs.Err_t {
	if h < 0 || h >= numHandles || f.handles[h] == nil {
		return defs.EINVAL
	}
	f.handles[h] = nil
	return 0
}

/// Read clamps n to the remaining file size, walks the cluster chain
/// skipping whole clusters already passed by position, and copies
/// sector by sector into out, advancing position.
func (f *Fat16_t) Read(h int, out []uint8, n int) (int, defs.Err_t) {
	if h < 0 || h >= numHandles || f.handles[h] == nil {
		return 0, defs.EINVAL
	}
	hd := f.handles[h]

	remaining := int(hd.fileSize) - int(hd.position)
	if remaining <= 0 {
		return 0, 0
	}
	if n > remaining {
		n = remaining
	}
	if n > len(out) {
		n = len(out)
	}
	if n == 0 {
		return 0, 0
	}

	clusters, err := f.chain(hd.firstCluster)
	if err != 0 {
		return 0, err
	}

	skip := int(hd.position) / int(f.clusterSize)
	offInCluster := int(hd.position) % int(f.clusterSize)
	if skip >= len(clusters) {
		return 0, defs.EIO
	}

	got := 0
	for ci := skip; ci < len(clusters) && got < n; ci++ {
		base := f.clusterLBA(clusters[ci])
		start := offInCluster
		offInCluster = 0
		for s := uint32(start) / f.bytesPerSector; s < f.sectorsPerCluster && got < n; s++ {
			buf, err := readSector(f.cache, base+s)
			if err != 0 {
				return got, err
			}
			secOff := 0
			if s == uint32(start)/f.bytesPerSector {
				secOff = start % int(f.bytesPerSector)
			}
			take := int(f.bytesPerSector) - secOff
			if take > n-got {
				take = n - got
			}
			copy(out[got:got+take], buf[secOff:secOff+take])
			got += take
		}
	}

	hd.position += uint32(got)
	return got, 0
}

/// WriteFile implements an atomic whole-file write:
/// allocate clusters_needed clusters by first-fit, write data into
/// them sector by sector (zero-padding the remainder of the last
/// cluster), then update or create the directory entry, freeing any
/// prior chain, and finish with a cache sync.
func (f *Fat16_t) WriteFile(path string, data []uint8) defs.Err_t {
	dirClus, name, err := f.resolveParent(path)
	if err != 0 {
		return err
	}
	raw83, ok := to83(name)
	if !ok {
		return defs.EINVAL
	}

	ent, loc, found, freeLoc, haveFree := f.findEntry(dirClus, raw83)
	if !found && !haveFree {
		return defs.ENOSPC
	}

	clustersNeeded := 0
	if len(data) > 0 {
		clustersNeeded = util.Ceildiv(len(data), int(f.clusterSize))
	}

	first, err := f.allocClusters(clustersNeeded)
	if err != 0 {
		return err
	}

	var clusters []uint16
	if first != 0 {
		clusters, err = f.chain(first)
		if err != 0 {
			return err
		}
	}

	written := 0
	for _, c := range clusters {
		base := f.clusterLBA(c)
		for s := uint32(0); s < f.sectorsPerCluster; s++ {
			buf := make([]uint8, f.bytesPerSector)
			if written < len(data) {
				end := written + int(f.bytesPerSector)
				if end > len(data) {
					end = len(data)
				}
				copy(buf, data[written:end])
			}
			if err := f.cache.Write(base+s, buf); err != 0 {
				return err
			}
			written += int(f.bytesPerSector)
		}
	}

	if found {
		if err := f.freeChain(ent.FirstClus); err != 0 {
			return err
		}
	} else {
		loc = freeLoc
	}

	buf, err := readSector(f.cache, loc.lba)
	if err != 0 {
		return err
	}
	writeDirent(buf, loc.off, raw83, attrArchive, first, uint32(len(data)))
	if err := f.cache.Write(loc.lba, buf); err != 0 {
		return err
	}

	return f.cache.Sync()
}

/// Delete locates path, frees its cluster chain, marks the directory
/// entry deleted (0xE5), and syncs.
func (f *Fat16_t) Delete(path string) defs.Err_t {
	dirClus, name, err := f.resolveParent(path)
	if err != 0 {
		return err
	}
	raw83, ok := to83(name)
	if !ok {
		return defs.EINVAL
	}
	ent, loc, found, _, _ := f.findEntry(dirClus, raw83)
	if !found {
		return defs.ENOENT
	}
	if err := f.freeChain(ent.FirstClus); err != 0 {
		return err
	}
	buf, err := readSector(f.cache, loc.lba)
	if err != 0 {
		return err
	}
	buf[loc.off] = dirFreeMarker
	if err := f.cache.Write(loc.lba, buf); err != 0 {
		return err
	}
	return f.cache.Sync()
}

/// Mkdir creates a new root-level directory: allocates one cluster,
/// zeroes it, writes "." (self) and ".." (root = 0) entries, then adds
/// a directory entry in root pointing at the new cluster.
func (f *Fat16_t) Mkdir(name string) defs.Err_t {
	raw83, ok := to83(name)
	if !ok {
		return defs.EINVAL
	}
	_, _, found, freeLoc, haveFree := f.findEntry(0, raw83)
	if found {
		return defs.EINVAL
	}
	if !haveFree {
		return defs.ENOSPC
	}

	clus, err := f.allocClusters(1)
	if err != 0 {
		return err
	}

	dotRaw, _ := to83(".")
	dotdotRaw, _ := to83("..")
	base := f.clusterLBA(clus)
	for s := uint32(0); s < f.sectorsPerCluster; s++ {
		buf := make([]uint8, f.bytesPerSector)
		if s == 0 {
			writeDirent(buf, 0, dotRaw, attrDirectory, clus, 0)
			writeDirent(buf, dirEntrySize, dotdotRaw, attrDirectory, 0, 0)
		}
		if err := f.cache.Write(base+s, buf); err != 0 {
			f.freeChain(clus)
			return err
		}
	}

	buf, err := readSector(f.cache, freeLoc.lba)
	if err != 0 {
		return err
	}
	writeDirent(buf, freeLoc.off, raw83, attrDirectory, clus, 0)
	if err := f.cache.Write(freeLoc.lba, buf); err != 0 {
		return err
	}
	return f.cache.Sync()
}
