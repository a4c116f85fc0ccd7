// Package heap implements a free-list allocator over pages obtained
// from mem.Physmem_t. It is the kernel's general
// purpose byte allocator: callers ask for n bytes and get back a
// pointer-size-aligned address they later hand back to Free.
package heap

import (
	"fmt"
	"sync"

	"mem"
	"util"
)

const ptrsize = 4

// blockhdr_t is the inline header written at the start of every free
// block. next is the physical address of the next free block in the
// list (0 means end of list); size is the usable size of this block,
// not counting the header. Allocated blocks keep the same header
// format so Free can recover their size without a side table, but
// their "next" field is meaningless once handed out.
type blockhdr_t struct {
	next mem.Pa_t
	size uint32
}

const hdrsize = 8 // 4 bytes next + 4 bytes size, little-endian

/// Heap_t is a first-fit free-list allocator backed by whole pages
/// pulled from a Physmem_t on demand. Freed blocks are pushed onto the
/// head of the free list as they are; adjacent free blocks are not
/// coalesced.
type Heap_t struct {
	sync.Mutex
	phys *mem.Physmem_t

	freehead mem.Pa_t // 0 means empty
	pages    []mem.Pa_t

	bytesReserved uint64
	bytesInUse    uint64
	allocCount    uint64
	freeCount     uint64
}

/// MkHeap creates an empty heap over phys. No pages are claimed until
/// the first Alloc call.
func MkHeap(phys *mem.Physmem_t) *Heap_t {
	return &Heap_t{phys: phys}
}

func (h *Heap_t) readHdr(pa mem.Pa_t) blockhdr_t {
	b := h.phys.Bytes(pa, hdrsize)
	return blockhdr_t{next: mem.Pa_t(util.Readn32(b, 0)), size: util.Readn32(b, 4)}
}

func (h *Heap_t) writeHdr(pa mem.Pa_t, hdr blockhdr_t) {
	b := h.phys.Bytes(pa, hdrsize)
	util.Writen32(b, 0, uint32(hdr.next))
	util.Writen32(b, 4, hdr.size)
}

// growPage claims a fresh page from the underlying allocator. When
// extend is set and the page directly follows the block at the head of
// the free list, that block is extended over it, so repeated growth
// builds a block larger than one page; otherwise the page is pushed
// onto the free list as one new block.
func (h *Heap_t) growPage(extend bool) bool {
	pa, ok := h.phys.AllocatePage()
	if !ok {
		return false
	}
	h.pages = append(h.pages, pa)
	h.bytesReserved += uint64(mem.PGSIZE)
	if extend && h.freehead != 0 {
		head := h.readHdr(h.freehead)
		if h.freehead+mem.Pa_t(hdrsize+head.size) == pa {
			head.size += mem.PGSIZE
			h.writeHdr(h.freehead, head)
			return true
		}
	}
	h.writeHdr(pa, blockhdr_t{next: h.freehead, size: mem.PGSIZE - hdrsize})
	h.freehead = pa
	return true
}

/// Alloc returns the address of a block of at least n usable bytes,
/// aligned to the machine pointer size, or false if the underlying
/// physical allocator is exhausted. First-fit: the free list is walked
/// from the head and the first block large enough is used, splitting
/// off the remainder when it is big enough to host its own header.
func (h *Heap_t) Alloc(n uint32) (mem.Pa_t, bool) {
	h.Lock()
	defer h.Unlock()

	n = util.Roundup(n, ptrsize)

	for {
		if pa, ok := h.tryAlloc(n); ok {
			h.allocCount++
			h.bytesInUse += uint64(n)
			return pa, true
		}
		if !h.growPage(n > mem.PGSIZE-hdrsize) {
			return 0, false
		}
	}
}

func (h *Heap_t) tryAlloc(n uint32) (mem.Pa_t, bool) {
	var prev mem.Pa_t
	cur := h.freehead
	for cur != 0 {
		hdr := h.readHdr(cur)
		if hdr.size >= n {
			rest := hdr.size - n
			if rest >= hdrsize+ptrsize {
				// split: shrink this block to n bytes, turn the
				// remainder into a new free block in cur's place on
				// the list.
				tail := cur + mem.Pa_t(hdrsize+n)
				h.writeHdr(tail, blockhdr_t{next: hdr.next, size: rest - hdrsize})
				h.unlink(prev, cur, tail)
				h.writeHdr(cur, blockhdr_t{size: n})
			} else {
				h.unlink(prev, cur, hdr.next)
				h.writeHdr(cur, blockhdr_t{size: hdr.size})
			}
			return cur + hdrsize, true
		}
		prev = cur
		cur = hdr.next
	}
	return 0, false
}

func (h *Heap_t) unlink(prev, cur, next mem.Pa_t) {
	if prev == 0 {
		h.freehead = next
		return
	}
	phdr := h.readHdr(prev)
	phdr.next = next
	h.writeHdr(prev, phdr)
}

/// Free returns a block previously returned by Alloc to the free
/// list. Freeing a block that is already on the free list is a
/// programming error and panics rather than silently corrupting the
/// heap; an address that Alloc never returned is not detected.
func (h *Heap_t) Free(addr mem.Pa_t) {
	h.Lock()
	defer h.Unlock()

	pa := addr - hdrsize
	for cur := h.freehead; cur != 0; cur = h.readHdr(cur).next {
		if cur == pa {
			panic("heap: double free")
		}
	}
	hdr := h.readHdr(pa)
	hdr.next = h.freehead
	h.writeHdr(pa, hdr)
	h.freehead = pa

	h.freeCount++
	h.bytesInUse -= uint64(hdr.size)
}

/// Stats reports allocator-wide counters for diagnostics.
func (h *Heap_t) Stats() (pages int, reserved, inUse uint64, allocs, frees uint64) {
	h.Lock()
	defer h.Unlock()
	return len(h.pages), h.bytesReserved, h.bytesInUse, h.allocCount, h.freeCount
}

/// String renders a one-line human-readable summary.
func (h *Heap_t) String() string {
	pages, reserved, inUse, allocs, frees := h.Stats()
	return fmt.Sprintf("heap: %d pages (%d bytes reserved), %d in use, %d allocs %d frees",
		pages, reserved, inUse, allocs, frees)
}
