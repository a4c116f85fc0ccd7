package diag

import (
	"bytes"
	"testing"

	"heap"
	"mem"
)

func TestSnapshotReflectsCounters(t *testing.T) {
	phys := mem.MkPhysmem(0)
	h := heap.MkHeap(phys)
	h.Alloc(128)

	p := Snapshot(phys, h)
	if len(p.Sample) == 0 {
		t.Fatal("expected at least one sample")
	}
	if err := p.CheckValid(); err != nil {
		t.Fatalf("profile failed validation: %v", err)
	}
}

func TestWriteToProducesNonEmptyOutput(t *testing.T) {
	phys := mem.MkPhysmem(0)
	h := heap.MkHeap(phys)

	var buf bytes.Buffer
	if err := WriteTo(&buf, phys, h); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected non-empty gzip-encoded profile")
	}
}
