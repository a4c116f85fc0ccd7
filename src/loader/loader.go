// Package loader implements the dual-format program loader (spec.md
// §4.9): detection of ELF32 i386 versus flat "CUPD" binaries,
// validation, placement into the physical identity map, and handoff
// to proc.Table_t to create the running process. Per the design note
// on the loader/memory/process cyclic dependency, this package
// depends only on the small interfaces mem.Physmem_t and proc.Table_t
// already expose, never on anything below them.
package loader

import (
	"defs"
	"heap"
	"mem"
	"proc"
	"util"
)

/// MaxElfSpan is the largest virtual-address span (spec.md §4.9) a
/// PT_LOAD set may occupy: 1 MiB.
const MaxElfSpan = 1 << 20

/// ElfLoadFloor is the lowest virtual address an ELF segment may
/// start at.
const ElfLoadFloor = 4 << 20

/// ElfLoadCeiling is the identity-map ceiling no segment may reach.
const ElfLoadCeiling = mem.IdentMapSize

/// DefaultStack is the stack size new processes receive by default.
const DefaultStack = 64 * 1024

/// ElfStackMultiplier inflates the default stack for ELF programs
/// (spec.md §4.9: "ELF programs receive a stack four times the
/// default — the embedded self-hosted compiler needs it").
const ElfStackMultiplier = 4

/// flatMagic is the flat "CUPD" executable's 4-byte little-endian
/// magic, spec.md §4.9/§6.
const flatMagic = 0x43555044

const flatHeaderSize = 20
const maxFlatImage = 256 << 10

const (
	elfMagic0, elfMagic1, elfMagic2, elfMagic3 = 0x7F, 'E', 'L', 'F'
	elfClass32                                 = 1
	elfDataLSB                                 = 1
	elfTypeExec                                = 2
	elfMachine386                              = 3
	elfPtLoad                                  = 1
	maxProgHeaders                             = 16
)

/// Sink_i is the diagnostic output every load goes through, following
/// the design note on function-pointer output overrides: a small sink
/// interface injected at construction rather than a global print
/// function. A nil sink is valid and discards everything.
type Sink_i interface {
	Printf(format string, args ...any)
}

type nullSink struct{}

func (nullSink) Printf(string, ...any) {}

/// Loader_t wires the physical allocator and process table the loader
/// needs. It holds no filesystem reference: callers already have the
/// file's bytes in hand (read via vfs.ReadAll) before calling Load.
type Loader_t struct {
	phys *mem.Physmem_t
	heap *heap.Heap_t
	proc *proc.Table_t
	sink Sink_i
}

/// MkLoader creates a Loader_t. sink may be nil.
func MkLoader(phys *mem.Physmem_t, h *heap.Heap_t, p *proc.Table_t, sink Sink_i) *Loader_t {
	if sink == nil {
		sink = nullSink{}
	}
	return &Loader_t{phys: phys, heap: h, proc: p, sink: sink}
}

/// Format_t names which of the two supported executable formats a
/// byte image was detected as.
type Format_t int

const (
	FormatUnknown Format_t = iota
	FormatElf
	FormatFlat
)

/// Detect inspects the first four bytes of image and reports which
/// format it names, per spec.md §4.9.
func Detect(image []uint8) Format_t {
	if len(image) < 4 {
		return FormatUnknown
	}
	if image[0] == elfMagic0 && image[1] == elfMagic1 && image[2] == elfMagic2 && image[3] == elfMagic3 {
		return FormatElf
	}
	if util.Readn32(image, 0) == flatMagic {
		return FormatFlat
	}
	return FormatUnknown
}

/// Load detects image's format and dispatches to the matching loader.
/// arg is the value handed to the new process's entry function as its
/// first argument — callers pass the handle returned by
/// sysapi.Install so the launched program can reach kernel
/// services (spec.md §4.10).
func (l *Loader_t) Load(image []uint8, name string, arg uint32) (int, defs.Err_t) {
	switch Detect(image) {
	case FormatElf:
		return l.loadElf(image, name, arg)
	case FormatFlat:
		return l.loadFlat(image, name, arg)
	default:
		return 0, defs.EINVAL
	}
}

// ---- flat "CUPD" format ----

type flatHeader_t struct {
	entryOffset uint32
	codeSize    uint32
	dataSize    uint32
	bssSize     uint32
}

func parseFlatHeader(image []uint8) (flatHeader_t, defs.Err_t) {
	if len(image) < flatHeaderSize {
		return flatHeader_t{}, defs.EINVAL
	}
	h := flatHeader_t{
		entryOffset: util.Readn32(image, 4),
		codeSize:    util.Readn32(image, 8),
		dataSize:    util.Readn32(image, 12),
		bssSize:     util.Readn32(image, 16),
	}
	total := uint64(h.codeSize) + uint64(h.dataSize) + uint64(h.bssSize)
	if total == 0 || total > maxFlatImage {
		return flatHeader_t{}, defs.EINVAL
	}
	if h.entryOffset >= h.codeSize {
		return flatHeader_t{}, defs.EINVAL
	}
	return h, 0
}

func (l *Loader_t) loadFlat(image []uint8, name string, arg uint32) (int, defs.Err_t) {
	hdr, err := parseFlatHeader(image)
	if err != 0 {
		return 0, err
	}
	total := hdr.codeSize + hdr.dataSize + hdr.bssSize
	base, ok := l.heap.Alloc(total)
	if !ok {
		return 0, defs.ENOSPC
	}
	dst := l.phys.Bytes(base, int(total))
	mem.Zero(dst)

	body := image[flatHeaderSize:]
	n := util.Min(uint32(len(body)), hdr.codeSize+hdr.dataSize)
	copyInChunks(dst, body, int(n))

	entry := uint32(base) + hdr.entryOffset
	pid, cerr := l.proc.CreateWithArg(entry, name, DefaultStack, arg)
	if cerr != 0 {
		l.heap.Free(base)
		return 0, cerr
	}
	l.sink.Printf("loader: flat %q loaded at %#x, entry %#x, pid %d\n", name, base, entry, pid)
	return pid, 0
}

// copyInChunks copies n bytes from src to dst in 512-byte pieces,
// mirroring spec.md §4.9's "read code and data in 512-byte chunks" —
// a hosted build has no polled-PIO chunking to respect, but the loop
// shape documents where that boundary used to matter.
func copyInChunks(dst, src []uint8, n int) {
	const chunk = 512
	for off := 0; off < n; off += chunk {
		end := util.Min(off+chunk, n)
		copy(dst[off:end], src[off:end])
	}
}

// ---- ELF32 i386 format ----

type progHeader_t struct {
	ptype  uint32
	offset uint32
	vaddr  uint32
	filesz uint32
	memsz  uint32
}

func parseElfHeader(image []uint8) (entry uint32, phoff uint32, phnum int, err defs.Err_t) {
	if len(image) < 52 {
		return 0, 0, 0, defs.EINVAL
	}
	if image[4] != elfClass32 || image[5] != elfDataLSB {
		return 0, 0, 0, defs.EINVAL
	}
	etype := util.Readn16(image, 16)
	machine := util.Readn16(image, 18)
	if etype != elfTypeExec || machine != elfMachine386 {
		return 0, 0, 0, defs.EINVAL
	}
	entry = util.Readn32(image, 24)
	phoff = util.Readn32(image, 28)
	phnum = int(util.Readn16(image, 44))
	if phnum <= 0 || phnum > maxProgHeaders {
		return 0, 0, 0, defs.EINVAL
	}
	return entry, phoff, phnum, 0
}

func parseProgHeaders(image []uint8, phoff uint32, phnum int) ([]progHeader_t, defs.Err_t) {
	const phentsize = 32
	out := make([]progHeader_t, 0, phnum)
	for i := 0; i < phnum; i++ {
		off := int(phoff) + i*phentsize
		if off+phentsize > len(image) {
			return nil, defs.EINVAL
		}
		ph := progHeader_t{
			ptype:  util.Readn32(image, off),
			offset: util.Readn32(image, off+4),
			vaddr:  util.Readn32(image, off+8),
			filesz: util.Readn32(image, off+16),
			memsz:  util.Readn32(image, off+20),
		}
		out = append(out, ph)
	}
	return out, 0
}

func loadSpan(phdrs []progHeader_t) (lo, hi uint32, ok bool) {
	lo = ^uint32(0)
	for _, ph := range phdrs {
		if ph.ptype != elfPtLoad || ph.memsz == 0 {
			continue
		}
		ok = true
		if ph.vaddr < lo {
			lo = ph.vaddr
		}
		if end := ph.vaddr + ph.memsz; end > hi {
			hi = end
		}
	}
	return lo, hi, ok
}

func (l *Loader_t) loadElf(image []uint8, name string, arg uint32) (int, defs.Err_t) {
	entry, phoff, phnum, err := parseElfHeader(image)
	if err != 0 {
		return 0, err
	}
	phdrs, err := parseProgHeaders(image, phoff, phnum)
	if err != 0 {
		return 0, err
	}
	lo, hi, ok := loadSpan(phdrs)
	if !ok || hi <= lo {
		return 0, defs.EINVAL
	}
	span := hi - lo
	if span > MaxElfSpan || lo < ElfLoadFloor || hi > ElfLoadCeiling {
		return 0, defs.EINVAL
	}

	base := util.Rounddown(lo, mem.PGSIZE)
	top := util.Roundup(hi, mem.PGSIZE)
	l.phys.ReserveRegion(mem.Pa_t(base), top-base)
	mem.Zero(l.phys.Bytes(mem.Pa_t(base), int(top-base)))

	for _, ph := range phdrs {
		if ph.ptype != elfPtLoad || ph.memsz == 0 {
			continue
		}
		if int(ph.offset)+int(ph.filesz) > len(image) {
			l.phys.ReleaseRegion(mem.Pa_t(base), top-base)
			return 0, defs.EINVAL
		}
		dst := l.phys.Bytes(mem.Pa_t(ph.vaddr), int(ph.filesz))
		copy(dst, image[ph.offset:ph.offset+ph.filesz])
	}

	l.logEntryInstruction(mem.Pa_t(entry))

	pid, cerr := l.proc.CreateWithArg(entry, name, DefaultStack*ElfStackMultiplier, arg)
	if cerr != 0 {
		l.phys.ReleaseRegion(mem.Pa_t(base), top-base)
		return 0, cerr
	}
	if serr := l.proc.SetImage(pid, mem.Pa_t(base), top-base); serr != 0 {
		l.sink.Printf("loader: set_image failed for pid %d: %v\n", pid, serr)
	}
	l.sink.Printf("loader: elf %q span [%#x,%#x) pid %d entry %#x\n", name, base, top, pid, entry)

	// spec.md §4.9: "Yield immediately so the new process gets a slice."
	l.proc.ForceResched()
	l.proc.Yield(l.proc.Current())
	return pid, 0
}

func (l *Loader_t) logEntryInstruction(entry mem.Pa_t) {
	code := l.phys.Bytes(entry, util.Min(16, int(mem.IdentMapSize)-int(entry)))
	mnem, n := decodeOne(code)
	if n == 0 {
		return
	}
	l.sink.Printf("loader: entry %#x: %s\n", uint32(entry), mnem)
}
