package vfs

import "defs"

/// Open resolves path against the mount table and opens it on the
/// owning filesystem, returning a process-wide fd.
func (v *Vfs_t) Open(path string, flags int) (int, defs.Err_t) {
	v.Lock()
	defer v.Unlock()

	mi, rem, err := v.resolve(path)
	if err != 0 {
		return 0, err
	}
	inner, err := v.mounts[mi].fs.Open(rem)
	if err != 0 {
		if flags&O_CREATE == 0 {
			return 0, err
		}
		// Creating a file this core's filesystem has no separate
		// "create empty file" primitive for: write zero bytes, which
		// both fat16.WriteFile and the Fs_i contract treat as a valid
		// (if unusual) file.
		if werr := v.mounts[mi].fs.WriteAll(rem, nil); werr != 0 {
			return 0, werr
		}
		inner, err = v.mounts[mi].fs.Open(rem)
		if err != 0 {
			return 0, err
		}
	}

	fd, ferr := v.allocFd()
	if ferr != 0 {
		v.mounts[mi].fs.Close(inner)
		return 0, ferr
	}
	v.fds[fd] = fd_t{inUse: true, mountIdx: mi, inner: inner, path: rem, flags: flags}
	return fd, 0
}

func (v *Vfs_t) fdOk(fd int) bool {
	return fd >= 0 && fd < numFds && v.fds[fd].inUse
}

/// Close flushes any buffered write data and releases fd.
func (v *Vfs_t) Close(fd int) defs.Err_t {
	v.Lock()
	defer v.Unlock()
	if !v.fdOk(fd) {
		return defs.EINVAL
	}
	f := &v.fds[fd]
	if f.console != nil {
		*f = fd_t{}
		return 0
	}
	var err defs.Err_t
	if f.dirty {
		err = v.mounts[f.mountIdx].fs.WriteAll(f.path, f.wbuf)
	}
	if cerr := v.mounts[f.mountIdx].fs.Close(f.inner); cerr != 0 && err == 0 {
		err = cerr
	}
	*f = fd_t{}
	return err
}

/// Read reads up to len(buf) bytes at the fd's current position.
func (v *Vfs_t) Read(fd int, buf []uint8) (int, defs.Err_t) {
	v.Lock()
	defer v.Unlock()
	if !v.fdOk(fd) {
		return 0, defs.EINVAL
	}
	f := &v.fds[fd]
	if f.console != nil {
		return f.console.Read(buf)
	}
	n, err := v.mounts[f.mountIdx].fs.Read(f.inner, buf, len(buf))
	if err != 0 {
		return 0, err
	}
	f.position += uint32(n)
	return n, 0
}

/// Write buffers data against the fd's write scratch buffer at the
/// current position; it is committed to the underlying filesystem on
/// Close or Flush.
func (v *Vfs_t) Write(fd int, data []uint8) (int, defs.Err_t) {
	v.Lock()
	defer v.Unlock()
	if !v.fdOk(fd) {
		return 0, defs.EINVAL
	}
	f := &v.fds[fd]
	if f.console != nil {
		return f.console.Write(data)
	}
	end := int(f.position) + len(data)
	if end > len(f.wbuf) {
		grown := make([]uint8, end)
		copy(grown, f.wbuf)
		f.wbuf = grown
	}
	copy(f.wbuf[f.position:], data)
	f.position += uint32(len(data))
	f.dirty = true
	return len(data), 0
}

/// Flush commits a fd's buffered writes without closing it.
func (v *Vfs_t) Flush(fd int) defs.Err_t {
	v.Lock()
	defer v.Unlock()
	if !v.fdOk(fd) {
		return defs.EINVAL
	}
	f := &v.fds[fd]
	if f.console != nil || !f.dirty {
		return 0
	}
	if err := v.mounts[f.mountIdx].fs.WriteAll(f.path, f.wbuf); err != 0 {
		return err
	}
	f.dirty = false
	return 0
}

/// Seek sets a fd's position; whence 0 = from start, 1 = relative, 2 = from end.
/// The new position applies to later Write calls; Read continues from
/// the underlying filesystem handle's own offset, which Seek does not move.
func (v *Vfs_t) Seek(fd int, offset int64, whence int) (int64, defs.Err_t) {
	v.Lock()
	defer v.Unlock()
	if !v.fdOk(fd) {
		return 0, defs.EINVAL
	}
	f := &v.fds[fd]
	if f.console != nil {
		return 0, defs.EINVAL
	}
	var base int64
	switch whence {
	case 0:
		base = 0
	case 1:
		base = int64(f.position)
	case 2:
		size, _, err := v.mounts[f.mountIdx].fs.Stat(f.path)
		if err != 0 {
			return 0, err
		}
		base = int64(size)
	default:
		return 0, defs.EINVAL
	}
	np := base + offset
	if np < 0 {
		return 0, defs.EINVAL
	}
	f.position = uint32(np)
	return np, 0
}

/// Stat reports size and directory-ness for path.
func (v *Vfs_t) Stat(path string) (size uint32, isDir bool, err defs.Err_t) {
	v.Lock()
	defer v.Unlock()
	mi, rem, err := v.resolve(path)
	if err != 0 {
		return 0, false, err
	}
	return v.mounts[mi].fs.Stat(rem)
}

/// Readdir lists the entries of the directory at path.
func (v *Vfs_t) Readdir(path string) ([]Dirent_t, defs.Err_t) {
	v.Lock()
	defer v.Unlock()
	mi, rem, err := v.resolve(path)
	if err != 0 {
		return nil, err
	}
	return v.mounts[mi].fs.Readdir(rem)
}

/// Mkdir creates a directory at path.
func (v *Vfs_t) Mkdir(path string) defs.Err_t {
	v.Lock()
	defer v.Unlock()
	mi, rem, err := v.resolve(path)
	if err != 0 {
		return err
	}
	return v.mounts[mi].fs.Mkdir(rem)
}

/// Unlink removes the file at path.
func (v *Vfs_t) Unlink(path string) defs.Err_t {
	v.Lock()
	defer v.Unlock()
	mi, rem, err := v.resolve(path)
	if err != 0 {
		return err
	}
	return v.mounts[mi].fs.Unlink(rem)
}

/// ReadAll reads the full contents of path in one call.
func (v *Vfs_t) ReadAll(path string) ([]uint8, defs.Err_t) {
	v.Lock()
	defer v.Unlock()
	mi, rem, err := v.resolve(path)
	if err != 0 {
		return nil, err
	}
	return v.mounts[mi].fs.ReadAll(rem)
}

/// WriteAll overwrites path with data in one call.
func (v *Vfs_t) WriteAll(path string, data []uint8) defs.Err_t {
	v.Lock()
	defer v.Unlock()
	mi, rem, err := v.resolve(path)
	if err != 0 {
		return err
	}
	return v.mounts[mi].fs.WriteAll(rem, data)
}

/// ReadText is ReadAll with the result decoded as a string.
func (v *Vfs_t) ReadText(path string) (string, defs.Err_t) {
	data, err := v.ReadAll(path)
	if err != 0 {
		return "", err
	}
	return string(data), 0
}

/// WriteText is WriteAll over a string's bytes.
func (v *Vfs_t) WriteText(path string, text string) defs.Err_t {
	return v.WriteAll(path, []uint8(text))
}

/// CopyFile duplicates src's contents at dst.
func (v *Vfs_t) CopyFile(src, dst string) defs.Err_t {
	data, err := v.ReadAll(src)
	if err != 0 {
		return err
	}
	return v.WriteAll(dst, data)
}

/// Rename copies old's contents to new and removes old. This core's
/// filesystems have no native rename, so it is expressed as the usual
/// copy-then-unlink (mirrors a plain POSIX rename only when old and
/// new live on the same mount; cross-mount rename works too since
/// each side resolves independently).
func (v *Vfs_t) Rename(oldPath, newPath string) defs.Err_t {
	if err := v.CopyFile(oldPath, newPath); err != 0 {
		return err
	}
	return v.Unlink(oldPath)
}
