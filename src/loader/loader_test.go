package loader

import (
	"testing"

	"defs"
	"heap"
	"mem"
	"proc"
	"sched"
	"util"
)

func mkLoader(t *testing.T) (*Loader_t, *mem.Physmem_t, *proc.Table_t) {
	t.Helper()
	phys := mem.MkPhysmem(0)
	h := heap.MkHeap(phys)
	s := sched.MkScheduler(proc.MaxProcs)
	pt := proc.MkTable(s, h, phys)
	return MkLoader(phys, h, pt, nil), phys, pt
}

func TestDetectElfAndFlatAndUnknown(t *testing.T) {
	elf := []uint8{0x7F, 'E', 'L', 'F', 0, 0, 0, 0}
	if got := Detect(elf); got != FormatElf {
		t.Fatalf("expected FormatElf, got %v", got)
	}

	flat := make([]uint8, 20)
	util.Writen32(flat, 0, flatMagic)
	if got := Detect(flat); got != FormatFlat {
		t.Fatalf("expected FormatFlat, got %v", got)
	}

	junk := []uint8{1, 2, 3, 4}
	if got := Detect(junk); got != FormatUnknown {
		t.Fatalf("expected FormatUnknown, got %v", got)
	}
}

func mkFlatImage(entryOffset, codeSize, dataSize, bssSize uint32, fill uint8) []uint8 {
	img := make([]uint8, flatHeaderSize+int(codeSize+dataSize))
	util.Writen32(img, 0, flatMagic)
	util.Writen32(img, 4, entryOffset)
	util.Writen32(img, 8, codeSize)
	util.Writen32(img, 12, dataSize)
	util.Writen32(img, 16, bssSize)
	for i := flatHeaderSize; i < len(img); i++ {
		img[i] = fill
	}
	return img
}

func TestLoadFlatRejectsOversizedOrZeroImage(t *testing.T) {
	l, _, _ := mkLoader(t)

	if _, err := l.Load(mkFlatImage(0, 0, 0, 0, 0), "empty", 0); err != defs.EINVAL {
		t.Fatalf("zero-size image: expected EINVAL, got %v", err)
	}
	if _, err := l.Load(mkFlatImage(0, 1<<20, 0, 0, 0), "huge", 0); err != defs.EINVAL {
		t.Fatalf("oversized image: expected EINVAL, got %v", err)
	}
	if _, err := l.Load(mkFlatImage(10, 8, 0, 0, 0xAA), "badentry", 0); err != defs.EINVAL {
		t.Fatalf("entry_offset >= code_size: expected EINVAL, got %v", err)
	}
}

func TestLoadFlatCreatesProcessAndZerosBss(t *testing.T) {
	l, phys, pt := mkLoader(t)

	img := mkFlatImage(0, 16, 8, 16, 0x7A)
	pid, err := l.Load(img, "flatprog", 0xCAFE)
	if err != 0 {
		t.Fatalf("load: %v", err)
	}
	p, ok := pt.Lookup(pid)
	if !ok {
		t.Fatalf("pid %d not found after load", pid)
	}
	if p.Name() != "flatprog" {
		t.Fatalf("name = %q, want flatprog", p.Name())
	}

	// The process's synthetic frame placed arg below the return
	// address on its allocated stack; we only assert the load
	// succeeded and the process is Ready — the register/stack layout
	// itself is proc's concern, exercised by proc's own tests.
	if p.State() != proc.Ready {
		t.Fatalf("state = %v, want Ready", p.State())
	}
	_ = phys
}

// mkElfImage builds a minimal well-formed ELF32/i386/ET_EXEC image
// with a single PT_LOAD segment of len(code) bytes starting at vaddr.
func mkElfImage(vaddr uint32, code []uint8) []uint8 {
	const ehsize = 52
	const phentsize = 32
	img := make([]uint8, ehsize+phentsize+len(code))

	img[0], img[1], img[2], img[3] = 0x7F, 'E', 'L', 'F'
	img[4] = 1 // class32
	img[5] = 1 // LSB
	util.Writen16(img, 16, 2)     // ET_EXEC
	util.Writen16(img, 18, 3)     // EM_386
	util.Writen32(img, 24, vaddr) // e_entry == segment start
	util.Writen32(img, 28, ehsize)
	util.Writen16(img, 44, 1) // e_phnum

	ph := ehsize
	util.Writen32(img, ph+0, 1) // PT_LOAD
	util.Writen32(img, ph+4, uint32(ehsize+phentsize))
	util.Writen32(img, ph+8, vaddr)
	util.Writen32(img, ph+16, uint32(len(code)))
	util.Writen32(img, ph+20, uint32(len(code)))

	copy(img[ehsize+phentsize:], code)
	return img
}

func TestLoadElfPlacesFirstByteAtVaddr(t *testing.T) {
	l, phys, pt := mkLoader(t)

	const vaddr = 4 << 20 // 4 MiB floor
	code := []uint8{0x90, 0x90, 0xF4} // nop; nop; hlt
	img := mkElfImage(vaddr, code)

	pid, err := l.Load(img, "elfprog", 0xBEEF)
	if err != 0 {
		t.Fatalf("load: %v", err)
	}

	got := phys.Bytes(mem.Pa_t(vaddr), 1)[0]
	if got != code[0] {
		t.Fatalf("read_u8(V) = %#x, want %#x (spec.md P8)", got, code[0])
	}

	p, ok := pt.Lookup(pid)
	if !ok {
		t.Fatalf("pid %d not found", pid)
	}
	if p.State() != proc.Running && p.State() != proc.Ready {
		t.Fatalf("unexpected post-load state %v", p.State())
	}
}

func TestLoadElfRejectsBadSpan(t *testing.T) {
	l, _, _ := mkLoader(t)

	// Below the 4 MiB floor.
	img := mkElfImage(0x1000, []uint8{0x90})
	if _, err := l.Load(img, "low", 0); err != defs.EINVAL {
		t.Fatalf("expected EINVAL for sub-floor vaddr, got %v", err)
	}
}

func TestLoadRejectsUnknownMagic(t *testing.T) {
	l, _, _ := mkLoader(t)
	if _, err := l.Load([]uint8{1, 2, 3, 4, 5, 6}, "junk", 0); err != defs.EINVAL {
		t.Fatalf("expected EINVAL for unrecognized magic, got %v", err)
	}
}
