// Package kernel assembles every layer — physical memory, heap,
// block cache, FAT16, the VFS, the scheduler, the process table, the
// loader, and the syscall table — into one bootable unit. It is the one
// place that knows how all the pieces wire together, even though none
// of the pieces know about each other beyond the small interfaces they
// already accept.
package kernel

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"blkdev"
	"cache"
	"defs"
	"diag"
	"fat16"
	"heap"
	"limits"
	"loader"
	"mem"
	"proc"
	"sched"
	"sysapi"
	"vfs"
)

// tickMs is the simulated PIT period: 100 Hz, matching the
// QuantumTable being expressed in ticks rather than wall-clock time.
const tickMs = 10

// flushEveryTicks spaces PeriodicFlush calls five seconds apart.
const flushEveryTicks = 5000 / tickMs

// Kernel_t owns every subsystem instance for one boot. Every field is
// a plain pointer to that subsystem's own type; Kernel_t adds no
// storage of its own beyond the simulated clock and tick counter.
type Kernel_t struct {
	Phys    *mem.Physmem_t
	Heap    *heap.Heap_t
	Devices *blkdev.Table_t
	Cache   *cache.BlockCache_t
	Fs      *fat16.Fat16_t
	Vfs     *vfs.Vfs_t
	Sched   *sched.Scheduler_t
	Proc    *proc.Table_t
	Loader  *loader.Loader_t
	Limits  *limits.Syslimit_t
	Syscall *sysapi.Table_t

	clockMs   uint64
	tickCount uint64
}

type printfSink struct{}

func (printfSink) Printf(format string, args ...any) { fmt.Printf(format, args...) }

/// Boot brings up a full kernel core over an already-open block
/// device and console: MBR scan, BPB parse, then attach to the VFS
/// at /.
func Boot(dev blkdev.Device_i, console vfs.Console_i) (*Kernel_t, defs.Err_t) {
	phys := mem.MkPhysmem(0)
	h := heap.MkHeap(phys)

	devs := blkdev.MkTable()
	devs.Register(dev)

	bc := cache.MkBlockCache(dev)

	fs, err := fat16.Mount(bc)
	if err != 0 {
		return nil, err
	}

	v := vfs.MkVfs(console)
	v.RegisterFsType("fat16")
	if err := v.Mount(vfs.WrapFat16(fs), "/", "fat16"); err != 0 {
		return nil, err
	}

	s := sched.MkScheduler(proc.MaxProcs)
	pt := proc.MkTable(s, h, phys)
	lims := limits.MkSysLimit()
	pt.SetLimit(lims.Procs)

	ld := loader.MkLoader(phys, h, pt, printfSink{})

	k := &Kernel_t{
		Phys: phys, Heap: h, Devices: devs, Cache: bc, Fs: fs, Vfs: v,
		Sched: s, Proc: pt, Loader: ld, Limits: lims,
	}
	k.Syscall = sysapi.MkTable(sysapi.Deps_t{
		Console: console,
		Heap:    h,
		Phys:    phys,
		Vfs:     v,
		Proc:    pt,
		NowMs:   k.Uptime,
	}, k.Exec, nil)
	return k, 0
}

/// Uptime is the simulated wall clock: tickMs milliseconds per
/// TimerTick call, read without locking since it is only ever advanced
/// by the single timer-tick caller.
func (k *Kernel_t) Uptime() uint64 {
	return atomic.LoadUint64(&k.clockMs)
}

/// TimerTick advances the simulated clock, accounts the tick against
/// whoever is Running, and every five simulated seconds asks the block
/// cache to write back its dirty entries — a periodic flush driven
/// here by the same timer interrupt the scheduler uses rather than a
/// second, independent timer.
func (k *Kernel_t) TimerTick() {
	atomic.AddUint64(&k.clockMs, tickMs)
	k.tickCount++
	k.Proc.TimerTick()
	if k.tickCount%flushEveryTicks == 0 {
		k.Cache.PeriodicFlush()
	}
}

/// YieldPoint is the single place a context switch may happen, per the
/// design note that every event loop iteration and every call to yield
/// pass through one explicit operation rather than switching being
/// scattered across call sites. It yields on behalf of whichever pid
/// is currently Running.
func (k *Kernel_t) YieldPoint() defs.Err_t {
	return k.Proc.Yield(k.Proc.Current())
}

/// SetShellExec wires the out-of-scope shell-line collaborator into
/// the already-constructed syscall table; a kernel with no shell
/// attached leaves ShellExec at its ENOSYS stub.
func (k *Kernel_t) SetShellExec(fn func(string) defs.Err_t) {
	k.Syscall.ShellExec = fn
}

/// Exec reads path whole through the VFS, mints a fresh syscall-table
/// handle for the new process, and loads it. It is bound as the
/// syscall table's own Exec field, so a running program's exec calls
/// recurse back into the same kernel instance that launched it.
func (k *Kernel_t) Exec(path string, argv string) (int, defs.Err_t) {
	data, err := k.Vfs.ReadAll(path)
	if err != 0 {
		return 0, err
	}
	handle := sysapi.Install(k.Syscall)
	pid, lerr := k.Loader.Load(data, baseName(path), handle)
	if lerr != 0 {
		sysapi.Revoke(handle)
		return 0, lerr
	}
	if argv != "" {
		k.Proc.SetProgramArgs(pid, argv)
	}
	return pid, 0
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

/// MemProfile writes a pprof-format snapshot of the physical allocator
/// and heap's live counters to w.
func (k *Kernel_t) MemProfile(w io.Writer) error {
	return diag.WriteTo(w, k.Phys, k.Heap)
}
