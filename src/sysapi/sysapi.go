// Package sysapi implements the syscall table: a
// versioned function-pointer table handed to a loaded program so it
// can reach kernel services without linking against kernel code.
// Every field is a closure bound at construction time over the
// concrete heap/vfs/proc instances a particular boot owns; the table
// itself carries no state of its own beyond the version header and a
// handle registry used to pass it across the loader boundary as a
// single uint32 argument.
package sysapi

import (
	"sync"

	"defs"
	"heap"
	"mem"
	"proc"
	"util"
	"vfs"
)

/// Version is bumped whenever a field is added, removed, or
/// reordered. Programs compare both Version and TableSize before
/// using any field.
const Version = 1

/// Table_t is the syscall table. The first two fields are version and
/// table_size so callers can detect a stale binary against a newer
/// kernel.
type Table_t struct {
	Version   uint32
	TableSize uint32

	// Console output. clear_screen has no return value to report: a
	// hosted/simulated console never fails to clear.
	Print       func(s string) defs.Err_t
	Putchar     func(c uint8) defs.Err_t
	PrintInt    func(n int) defs.Err_t
	PrintHex    func(n uint32) defs.Err_t
	ClearScreen func()

	// Heap. Malloc is the plain wrapper around heap.Heap_t.Alloc.
	Malloc func(n uint32) (uint32, bool)
	Free   func(addr uint32)

	// String/memory helpers, over the raw identity map.
	Memset func(addr uint32, val uint8, n uint32)
	Memcpy func(dst, src uint32, n uint32)

	// VFS — every public filesystem operation the table exposes.
	Open      func(path string, flags int) (int, defs.Err_t)
	Close     func(fd int) defs.Err_t
	Read      func(fd int, buf []uint8) (int, defs.Err_t)
	Write     func(fd int, data []uint8) (int, defs.Err_t)
	Seek      func(fd int, offset int64, whence int) (int64, defs.Err_t)
	Stat      func(path string) (size uint32, isDir bool, err defs.Err_t)
	Readdir   func(path string) ([]vfs.Dirent_t, defs.Err_t)
	Mkdir     func(path string) defs.Err_t
	Unlink    func(path string) defs.Err_t
	Rename    func(oldPath, newPath string) defs.Err_t
	CopyFile  func(src, dst string) defs.Err_t
	ReadAll   func(path string) ([]uint8, defs.Err_t)
	WriteAll  func(path string, data []uint8) defs.Err_t
	ReadText  func(path string) (string, defs.Err_t)
	WriteText func(path string, text string) defs.Err_t

	// Process control. Each closes over "whichever pid is currently
	// Running" rather than a pid captured at table-construction time:
	// the single-CPU cooperative model guarantees that is always the
	// program this table was handed to.
	Exit    func(code int) defs.Err_t
	Yield   func() defs.Err_t
	Getpid  func() int
	Kill    func(pid int) defs.Err_t
	SleepMs func(ms int)

	// Shell line execution is a hook onto an external shell
	// interpreter collaborator; a kernel built without
	// one wires ShellExec to a stub returning ENOSYS.
	ShellExec func(line string) defs.Err_t

	// Uptime in milliseconds since boot.
	Uptime func() uint64

	// Exec loads and launches the program at path, argv is attached
	// via proc.SetProgramArgs before the new process first runs.
	Exec func(path string, argv string) (int, defs.Err_t)

	// MemStats renders the heap/physical-allocator summary string.
	MemStats func() string
}

/// Deps_t bundles the kernel instances MkTable closes over. Exec and
/// ShellExec are supplied separately since they depend on packages
/// (loader, the out-of-scope shell) that would otherwise pull an
/// import cycle or an unwanted dependency into this package.
type Deps_t struct {
	Console vfs.Console_i
	Heap    *heap.Heap_t
	Phys    *mem.Physmem_t
	Vfs     *vfs.Vfs_t
	Proc    *proc.Table_t
	NowMs   func() uint64
}

func stubShellExec(string) defs.Err_t { return defs.ENOSYS }
func stubExec(string, string) (int, defs.Err_t) { return 0, defs.ENOSYS }

/// MkTable builds a fully wired Table_t over deps. execFn and
/// shellExecFn may be nil, in which case they report ENOSYS — a core
/// with no loader or shell collaborator attached still hands out a
/// structurally complete table.
func MkTable(deps Deps_t, execFn func(string, string) (int, defs.Err_t), shellExecFn func(string) defs.Err_t) *Table_t {
	if execFn == nil {
		execFn = stubExec
	}
	if shellExecFn == nil {
		shellExecFn = stubShellExec
	}
	h, phys, v, pt := deps.Heap, deps.Phys, deps.Vfs, deps.Proc
	nowMs := deps.NowMs
	if nowMs == nil {
		nowMs = func() uint64 { return 0 }
	}

	t := &Table_t{
		Version:   Version,

		Print: func(s string) defs.Err_t {
			_, err := deps.Console.Write([]uint8(s))
			return err
		},
		Putchar: func(c uint8) defs.Err_t {
			_, err := deps.Console.Write([]uint8{c})
			return err
		},
		PrintInt: func(n int) defs.Err_t {
			_, err := deps.Console.Write([]uint8(util.Itoa(n)))
			return err
		},
		PrintHex: func(n uint32) defs.Err_t {
			_, err := deps.Console.Write([]uint8(util.Hex32(n)))
			return err
		},
		ClearScreen: func() {},

		Malloc: func(n uint32) (uint32, bool) {
			pa, ok := h.Alloc(n)
			return uint32(pa), ok
		},
		Free: func(addr uint32) { h.Free(mem.Pa_t(addr)) },

		Memset: func(addr uint32, val uint8, n uint32) {
			b := phys.Bytes(mem.Pa_t(addr), int(n))
			for i := range b {
				b[i] = val
			}
		},
		Memcpy: func(dst, src uint32, n uint32) {
			copy(phys.Bytes(mem.Pa_t(dst), int(n)), phys.Bytes(mem.Pa_t(src), int(n)))
		},

		Open:      v.Open,
		Close:     v.Close,
		Read:      v.Read,
		Write:     v.Write,
		Seek:      v.Seek,
		Stat:      v.Stat,
		Readdir:   v.Readdir,
		Mkdir:     v.Mkdir,
		Unlink:    v.Unlink,
		Rename:    v.Rename,
		CopyFile:  v.CopyFile,
		ReadAll:   v.ReadAll,
		WriteAll:  v.WriteAll,
		ReadText:  v.ReadText,
		WriteText: v.WriteText,

		Exit: func(code int) defs.Err_t { return pt.Exit(pt.Current(), code) },
		Yield: func() defs.Err_t {
			cur := pt.Current()
			pt.ForceResched()
			return pt.Yield(cur)
		},
		Getpid: func() int { return pt.Current() },
		Kill:   func(pid int) defs.Err_t { return pt.Kill(pid) },
		SleepMs: func(ms int) {
			deadline := nowMs() + uint64(ms)
			cur := pt.Current()
			for nowMs() < deadline {
				pt.ForceResched()
				pt.Yield(cur)
			}
		},

		ShellExec: shellExecFn,
		Uptime:    nowMs,
		Exec:      execFn,
	}
	t.TableSize = uint32(tableSize)
	t.MemStats = func() string { return memStats(phys, h) }
	return t
}

// tableSize is a structural stand-in for sizeof(Table_t) on the
// origin implementation's packed-struct ABI: one "slot" per exported
// function-pointer field plus the two header words.
const tableSize = 35

func memStats(phys *mem.Physmem_t, h *heap.Heap_t) string {
	total, free, alloc, reserved := phys.Stats()
	pages, reservedBytes, inUse, allocs, frees := h.Stats()
	return "frames: " + util.Utoa(uint64(total)) + " total " + util.Utoa(uint64(free)) + " free " +
		util.Utoa(uint64(alloc)) + " alloc " + util.Utoa(uint64(reserved)) + " reserved; " +
		"heap: " + util.Utoa(uint64(pages)) + " pages " + util.Utoa(reservedBytes) + " reserved " +
		util.Utoa(inUse) + " in-use " + util.Utoa(allocs) + " allocs " + util.Utoa(frees) + " frees"
}

// ---- handle registry ----
//
// The loader hands a new process a single uint32 argument;
// Install/Lookup let that argument be an opaque handle into this
// table rather than a raw (and meaningless, in a hosted build) memory
// address.

var (
	registryMu sync.Mutex
	registry   = map[uint32]*Table_t{}
	nextHandle = uint32(1)
)

/// Install registers t and returns the handle a loaded program
/// receives as its entry argument.
func Install(t *Table_t) uint32 {
	registryMu.Lock()
	defer registryMu.Unlock()
	h := nextHandle
	nextHandle++
	registry[h] = t
	return h
}

/// Lookup resolves a handle previously returned by Install.
func Lookup(handle uint32) (*Table_t, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	t, ok := registry[handle]
	return t, ok
}

/// Revoke removes a handle once its process has exited, so a stale
/// handle value cannot be reused to reach a torn-down table.
func Revoke(handle uint32) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, handle)
}
