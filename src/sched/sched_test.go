package sched

import "testing"

func TestPriorityOrderingAndFifoWithinLevel(t *testing.T) {
	s := MkScheduler(8)
	s.Add(10, 4)
	s.Add(11, 4)
	s.Add(5, 1)
	s.Add(20, 7)

	if got := s.Next(); got != 5 {
		t.Fatalf("expected highest-priority pid 5 first, got %d", got)
	}
	if got := s.Next(); got != 10 {
		t.Fatalf("expected FIFO order within priority 4, got %d (want 10)", got)
	}
	if got := s.Next(); got != 11 {
		t.Fatalf("expected FIFO order within priority 4, got %d (want 11)", got)
	}
	if got := s.Next(); got != 20 {
		t.Fatalf("expected pid 20 at priority 7, got %d", got)
	}
}

func TestNextReturnsIdleWhenEmpty(t *testing.T) {
	s := MkScheduler(8)
	if got := s.Next(); got != IdlePid {
		t.Fatalf("expected idle pid %d on empty scheduler, got %d", IdlePid, got)
	}
}

func TestRemoveClosesGap(t *testing.T) {
	s := MkScheduler(8)
	s.Add(1, 3)
	s.Add(2, 3)
	s.Add(3, 3)

	if !s.Remove(2, 3) {
		t.Fatal("expected remove of pid 2 to succeed")
	}
	if got := s.Next(); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
	if got := s.Next(); got != 3 {
		t.Fatalf("got %d, want 3 (gap should be closed, order preserved)", got)
	}
}

type fakeProc struct {
	running bool
	ticks   int
	quantum int
}

func (f *fakeProc) IsRunning() bool        { return f.running }
func (f *fakeProc) AddTicksUsed(n int)     { f.ticks += n }
func (f *fakeProc) QuantumRemaining() int  { return f.quantum }
func (f *fakeProc) DecrementQuantum(n int) int {
	f.quantum -= n
	return f.quantum
}

func TestTickSignalsSwitchAtQuantumExpiry(t *testing.T) {
	s := MkScheduler(8)
	p := &fakeProc{running: true, quantum: 2}

	if s.Tick(p) {
		t.Fatal("expected no switch on first tick")
	}
	if !s.Tick(p) {
		t.Fatal("expected switch once quantum reaches zero")
	}
	if p.ticks != 2 {
		t.Fatalf("ticks_used = %d, want 2", p.ticks)
	}
}

func TestTickIgnoresNonRunningOrDisabled(t *testing.T) {
	s := MkScheduler(8)
	blocked := &fakeProc{running: false, quantum: 1}
	if s.Tick(blocked) {
		t.Fatal("expected no switch for a non-running process")
	}

	running := &fakeProc{running: true, quantum: 0}
	s.Enable(false)
	if s.Tick(running) {
		t.Fatal("expected no switch while scheduling disabled")
	}
}

func TestAddOverflowPanics(t *testing.T) {
	s := MkScheduler(2)
	s.Add(1, 0)
	s.Add(2, 0)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on queue overflow")
		}
	}()
	s.Add(3, 0)
}
