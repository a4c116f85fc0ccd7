// Package mem implements the physical page frame allocator: a bitmap
// over a fixed identity-mapped range of physical memory. It is the
// lowest layer of the memory core, and the Heap and
// Loader both depend only on the small interface it exposes, never on
// Physmem_t's internals.
package mem

import (
	"fmt"
	"sync"

	"util"
)

/// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page frame in bytes.
const PGSIZE uint32 = 1 << PGSHIFT

/// IdentMapSize is the size of the fixed identity-mapped range this
/// core manages: 32 MiB.
const IdentMapSize uint32 = 32 << 20

/// Pa_t is a 32-bit physical address, always a page multiple once it
/// names a frame.
type Pa_t uint32

/// framestate_t is the per-frame bookkeeping state.
type framestate_t uint8

const (
	stFree framestate_t = iota
	stAllocated
	stReserved
)

/// Physmem_t tracks free/used/reserved page frames across a fixed
/// identity-mapped range. The invariant total = free + allocated +
/// reserved holds after every operation.
type Physmem_t struct {
	sync.Mutex
	base      Pa_t
	nframes   uint32
	states    []framestate_t
	freeCnt   uint32
	allocCnt  uint32
	reservCnt uint32

	// image is the byte-addressable backing store for the identity
	// map. Real hardware would give us this for free (virtual ==
	// physical); a hosted build backs it with a plain Go slice so the
	// rest of the core can read/write "physical" memory uniformly.
	image []uint8
}

/// MkPhysmem creates a Physmem_t over [base, base+IdentMapSize) with
/// every frame initially free.
func MkPhysmem(base Pa_t) *Physmem_t {
	if uint32(base)%PGSIZE != 0 {
		panic("mem: base not page aligned")
	}
	n := IdentMapSize / PGSIZE
	p := &Physmem_t{
		base:    base,
		nframes: n,
		states:  make([]framestate_t, n),
		image:   make([]uint8, IdentMapSize),
	}
	p.freeCnt = n
	fmt.Printf("mem: %d frames (%d MB) free at %#x\n", n, IdentMapSize>>20, base)
	return p
}

func (p *Physmem_t) idx(pa Pa_t) (uint32, bool) {
	if pa < p.base {
		return 0, false
	}
	off := uint32(pa - p.base)
	if off%PGSIZE != 0 {
		return 0, false
	}
	idx := off / PGSIZE
	if idx >= p.nframes {
		return 0, false
	}
	return idx, true
}

func (p *Physmem_t) frameaddr(idx uint32) Pa_t {
	return p.base + Pa_t(idx*PGSIZE)
}

/// AllocatePage returns the lowest-address free frame and marks it
/// allocated, or false when no frame is free.
func (p *Physmem_t) AllocatePage() (Pa_t, bool) {
	p.Lock()
	defer p.Unlock()

	for i := uint32(0); i < p.nframes; i++ {
		if p.states[i] == stFree {
			p.states[i] = stAllocated
			p.freeCnt--
			p.allocCnt++
			return p.frameaddr(i), true
		}
	}
	return 0, false
}

/// FreePage releases a previously allocated, page-aligned frame.
/// Double-free or freeing a frame this allocator does not own is a
/// fatal invariant violation.
func (p *Physmem_t) FreePage(pa Pa_t) {
	p.Lock()
	defer p.Unlock()

	i, ok := p.idx(pa)
	if !ok {
		panic("mem: free of address outside identity map")
	}
	if p.states[i] != stAllocated {
		panic("mem: double free or freeing a non-allocated frame")
	}
	p.states[i] = stFree
	p.allocCnt--
	p.freeCnt++
}

/// ReserveRegion rounds [base, base+size) outward to page boundaries
/// and marks every frame in range reserved, regardless of prior state.
/// Used by the loader to claim the ELF target address range.
func (p *Physmem_t) ReserveRegion(base Pa_t, size uint32) {
	p.Lock()
	defer p.Unlock()

	lo := util.Rounddown(uint32(base), PGSIZE)
	hi := util.Roundup(uint32(base)+size, PGSIZE)
	for a := lo; a < hi; a += PGSIZE {
		i, ok := p.idx(Pa_t(a))
		if !ok {
			panic("mem: reserve_region outside identity map")
		}
		switch p.states[i] {
		case stFree:
			p.freeCnt--
		case stAllocated:
			p.allocCnt--
		case stReserved:
			continue
		}
		p.states[i] = stReserved
		p.reservCnt++
	}
}

/// ReleaseRegion is the inverse of ReserveRegion: it returns every
/// frame in [base, base+size) (rounded outward) to the free pool,
/// regardless of whether the whole range was reserved by a single
/// call. No record is kept of a frame's state before ReserveRegion:
/// frames that were free come back free, and so does a frame that was
/// allocated before it was reserved.
func (p *Physmem_t) ReleaseRegion(base Pa_t, size uint32) {
	p.Lock()
	defer p.Unlock()

	lo := util.Rounddown(uint32(base), PGSIZE)
	hi := util.Roundup(uint32(base)+size, PGSIZE)
	for a := lo; a < hi; a += PGSIZE {
		i, ok := p.idx(Pa_t(a))
		if !ok {
			panic("mem: release_region outside identity map")
		}
		switch p.states[i] {
		case stFree:
			continue
		case stAllocated:
			p.allocCnt--
		case stReserved:
			p.reservCnt--
		}
		p.states[i] = stFree
		p.freeCnt++
	}
}

/// Stats reports total, free, allocated, and reserved frame counts.
func (p *Physmem_t) Stats() (total, free, allocated, reserved uint32) {
	p.Lock()
	defer p.Unlock()
	return p.nframes, p.freeCnt, p.allocCnt, p.reservCnt
}

/// Bytes returns a slice view of n bytes of the identity map starting
/// at the physical address pa. It panics if the range falls outside
/// the identity map; callers (Heap, Loader) are expected to have
/// already validated the range via Reserve/Allocate.
func (p *Physmem_t) Bytes(pa Pa_t, n int) []uint8 {
	if pa < p.base || uint32(pa)+uint32(n) > uint32(p.base)+IdentMapSize {
		panic("mem: address range outside identity map")
	}
	off := uint32(pa - p.base)
	return p.image[off : off+uint32(n)]
}

/// Zero clears every byte of pg; callers pass in the byte slice
/// backing a frame or a whole region in whatever address space model
/// the host uses (on a simulated/hosted build this is just a Go slice
/// into an allocated identity-map buffer).
func Zero(pg []uint8) {
	for i := range pg {
		pg[i] = 0
	}
}
