package sysapi

import (
	"bytes"
	"testing"

	"defs"
	"heap"
	"mem"
	"proc"
	"sched"
	"vfs"
)

type fakeConsole struct{ out bytes.Buffer }

func (c *fakeConsole) Read(buf []uint8) (int, defs.Err_t)  { return 0, 0 }
func (c *fakeConsole) Write(buf []uint8) (int, defs.Err_t) {
	n, _ := c.out.Write(buf)
	return n, 0
}

func mkDeps(t *testing.T) (Deps_t, *fakeConsole) {
	t.Helper()
	phys := mem.MkPhysmem(0)
	h := heap.MkHeap(phys)
	s := sched.MkScheduler(proc.MaxProcs)
	pt := proc.MkTable(s, h, phys)
	con := &fakeConsole{}
	v := vfs.MkVfs(con)
	return Deps_t{Console: con, Heap: h, Phys: phys, Vfs: v, Proc: pt}, con
}

func TestMkTableHeaderFields(t *testing.T) {
	deps, _ := mkDeps(t)
	tbl := MkTable(deps, nil, nil)
	if tbl.Version != Version {
		t.Fatalf("Version = %d, want %d", tbl.Version, Version)
	}
	if tbl.TableSize == 0 {
		t.Fatal("TableSize must be nonzero")
	}
}

func TestPrintWritesToConsole(t *testing.T) {
	deps, con := mkDeps(t)
	tbl := MkTable(deps, nil, nil)
	if err := tbl.Print("hello"); err != 0 {
		t.Fatalf("print: %v", err)
	}
	if con.out.String() != "hello" {
		t.Fatalf("console = %q, want hello", con.out.String())
	}
}

func TestMallocFreeRoundTrip(t *testing.T) {
	deps, _ := mkDeps(t)
	tbl := MkTable(deps, nil, nil)
	addr, ok := tbl.Malloc(64)
	if !ok {
		t.Fatal("malloc failed")
	}
	tbl.Free(addr)
}

func TestUnwiredExecAndShellReturnUnsupported(t *testing.T) {
	deps, _ := mkDeps(t)
	tbl := MkTable(deps, nil, nil)
	if _, err := tbl.Exec("/a.bin", ""); err != defs.ENOSYS {
		t.Fatalf("exec: expected ENOSYS, got %v", err)
	}
	if err := tbl.ShellExec("ls"); err != defs.ENOSYS {
		t.Fatalf("shellexec: expected ENOSYS, got %v", err)
	}
}

func TestGetpidReflectsCurrent(t *testing.T) {
	deps, _ := mkDeps(t)
	tbl := MkTable(deps, nil, nil)
	if got := tbl.Getpid(); got != proc.IdlePid {
		t.Fatalf("getpid = %d, want idle pid %d", got, proc.IdlePid)
	}
}

func TestInstallLookupRevoke(t *testing.T) {
	deps, _ := mkDeps(t)
	tbl := MkTable(deps, nil, nil)
	h := Install(tbl)
	got, ok := Lookup(h)
	if !ok || got != tbl {
		t.Fatalf("lookup(%d) = %v, %v; want %v, true", h, got, ok, tbl)
	}
	Revoke(h)
	if _, ok := Lookup(h); ok {
		t.Fatal("expected revoked handle to be gone")
	}
}

func TestVfsOpsAreWired(t *testing.T) {
	deps, _ := mkDeps(t)
	tbl := MkTable(deps, nil, nil)
	if tbl.Open == nil || tbl.Read == nil || tbl.Write == nil || tbl.Mkdir == nil {
		t.Fatal("expected vfs closures to be non-nil")
	}
}

func TestMemStatsReportsCounts(t *testing.T) {
	deps, _ := mkDeps(t)
	tbl := MkTable(deps, nil, nil)
	s := tbl.MemStats()
	if s == "" {
		t.Fatal("expected non-empty memory stats string")
	}
}
