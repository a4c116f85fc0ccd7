// Package diag exports the PhysicalAllocator and Heap's live counters
// as a pprof sample profile, so memory pressure inside the kernel
// core can be inspected with `go tool pprof` the same way a hosted Go
// process's heap is — SPEC_FULL.md's domain-stack wiring for
// github.com/google/pprof/profile. This is a read-only export; it
// does not sample allocation call sites (there is no allocator hook
// deep enough inside mem/heap for that without changing their public
// API), so every sample's single location is this package's own
// Snapshot call site.
package diag

import (
	"io"
	"runtime"

	"github.com/google/pprof/profile"

	"heap"
	"mem"
)

const (
	sampleTypeFrames = "frames"
	sampleTypeBytes  = "bytes"
)

// Snapshot builds a pprof Profile with one sample per counter:
// free/allocated/reserved page frames from phys, and reserved/in-use
// bytes from h. Each sample's value is the counter and its single
// location records where Snapshot itself was called from, via
// runtime.Caller, so distinct call sites in a caller show up as
// distinct locations when multiple snapshots are merged upstream.
func Snapshot(phys *mem.Physmem_t, h *heap.Heap_t) *profile.Profile {
	loc := &profile.Location{ID: 1, Address: callerPC(2)}
	fn := &profile.Function{ID: 1, Name: "diag.Snapshot"}
	loc.Line = []profile.Line{{Function: fn, Line: 1}}

	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: sampleTypeFrames, Unit: "count"},
			{Type: sampleTypeBytes, Unit: "bytes"},
		},
		Function: []*profile.Function{fn},
		Location: []*profile.Location{loc},
		Period:   1,
		PeriodType: &profile.ValueType{
			Type: "space", Unit: "bytes",
		},
	}

	total, free, allocated, reserved := phys.Stats()
	_, reservedBytes, inUse, _, _ := h.Stats()

	add := func(tag string, frames int64, bytes int64) {
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{frames, bytes},
			Label:    map[string][]string{"counter": {tag}},
		})
	}
	add("frames_total", int64(total), 0)
	add("frames_free", int64(free), 0)
	add("frames_allocated", int64(allocated), 0)
	add("frames_reserved", int64(reserved), 0)
	add("heap_reserved", 0, int64(reservedBytes))
	add("heap_in_use", 0, int64(inUse))

	return p
}

// WriteTo gzip-encodes a fresh Snapshot to w, in the same format
// `go tool pprof` reads directly.
func WriteTo(w io.Writer, phys *mem.Physmem_t, h *heap.Heap_t) error {
	return Snapshot(phys, h).Write(w)
}

func callerPC(skip int) uint64 {
	pcs := make([]uintptr, 1)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return 0
	}
	return uint64(pcs[0])
}
