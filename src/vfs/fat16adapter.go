package vfs

import (
	"defs"
	"fat16"
)

// fat16Fs_t adapts *fat16.Fat16_t to the filesystem-agnostic Fs_i
// interface so the mount table can dispatch to it without the rest of
// vfs knowing fat16's concrete Dirent_t type.
type fat16Fs_t struct {
	fs *fat16.Fat16_t
}

/// WrapFat16 adapts a mounted fat16.Fat16_t for use with Vfs_t.Mount.
func WrapFat16(fs *fat16.Fat16_t) Fs_i {
	return &fat16Fs_t{fs: fs}
}

func (a *fat16Fs_t) Open(path string) (int, defs.Err_t) { return a.fs.Open(path) }
func (a *fat16Fs_t) Close(h int) defs.Err_t             { return a.fs.Close(h) }

func (a *fat16Fs_t) Read(h int, out []uint8, n int) (int, defs.Err_t) {
	return a.fs.Read(h, out, n)
}

func (a *fat16Fs_t) Stat(path string) (uint32, bool, defs.Err_t) {
	return a.fs.Stat(path)
}

func (a *fat16Fs_t) Readdir(path string) ([]Dirent_t, defs.Err_t) {
	var raw []fat16.Dirent_t
	var err defs.Err_t
	if path == "" {
		raw, err = a.fs.ListRoot()
	} else {
		cbErr := a.fs.EnumerateSubdir(path, func(d fat16.Dirent_t) { raw = append(raw, d) })
		err = cbErr
	}
	if err != 0 {
		return nil, err
	}
	out := make([]Dirent_t, len(raw))
	for i, d := range raw {
		out[i] = Dirent_t{Name: d.Name, Size: d.Size, IsDir: d.IsDir()}
	}
	return out, 0
}

func (a *fat16Fs_t) WriteAll(path string, data []uint8) defs.Err_t {
	return a.fs.WriteFile(path, data)
}

func (a *fat16Fs_t) ReadAll(path string) ([]uint8, defs.Err_t) {
	return a.fs.ReadAll(path)
}

func (a *fat16Fs_t) Mkdir(path string) defs.Err_t { return a.fs.Mkdir(path) }
func (a *fat16Fs_t) Unlink(path string) defs.Err_t { return a.fs.Delete(path) }
