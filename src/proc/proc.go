// Package proc implements the process model: a fixed
// 32-slot PCB table, the Ready/Running/Blocked/Terminated/Free state
// machine, and the single voluntary-switch discipline built on top of
// the sched package's priority queues.
//
// This core runs hosted on the Go runtime rather than on bare x86, so
// there is no real register set or interrupt-return frame to save.
// What the spec calls "writing a synthetic return frame" and
// "resuming at entry" is modeled as data: entry is kept as the
// address a loaded program would start at, and the actual transfer of
// control is the concern of whatever external driver calls into a
// loaded program — proc only tracks whose turn it is.
package proc

import (
	"sync"

	"accnt"
	"defs"
	"heap"
	"limits"
	"mem"
	"sched"
	"util"
)

/// State_t is a PCB's position in the process state machine.
type State_t int

const (
	Free State_t = iota
	Ready
	Running
	Blocked
	Terminated
)

func (s State_t) String() string {
	switch s {
	case Free:
		return "free"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Terminated:
		return "terminated"
	default:
		return "?"
	}
}

/// MaxProcs is the fixed PCB table size.
const MaxProcs = 32

/// IdlePid is pid 1, created Ready at boot; it cycles Ready<->Running
/// only and never exits.
const IdlePid = 1

/// Pcb_t is one process control block.
type Pcb_t struct {
	pid              int
	name             string
	state            State_t
	priority         int
	ticksUsed        int
	quantumRemaining int
	exitCode         int

	entry     uint32
	arg       uint32
	stack     mem.Pa_t
	stackSize uint32

	hasImage  bool
	imageBase mem.Pa_t
	imageSize uint32

	argv   string
	reason string

	// acc is a pointer, not an embedded value: Lookup returns Pcb_t by
	// value, and Accnt_t carries a sync.Mutex that must never be
	// copied.
	acc *accnt.Accnt_t
}

/// Accnt returns the PCB's wall-clock accounting record, a companion
/// to the tick-counted quantum accounting below.
func (p *Pcb_t) Accnt() *accnt.Accnt_t { return p.acc }

func (p *Pcb_t) Pid() int           { return p.pid }
func (p *Pcb_t) Name() string       { return p.name }
func (p *Pcb_t) State() State_t     { return p.state }
func (p *Pcb_t) Priority() int      { return p.priority }
func (p *Pcb_t) ExitCode() int      { return p.exitCode }
func (p *Pcb_t) TicksUsed() int     { return p.ticksUsed }
func (p *Pcb_t) Argv() string       { return p.argv }

// The following four methods satisfy sched.Runnable_i.
func (p *Pcb_t) IsRunning() bool       { return p.state == Running }
func (p *Pcb_t) AddTicksUsed(n int)    { p.ticksUsed += n }
func (p *Pcb_t) QuantumRemaining() int { return p.quantumRemaining }
func (p *Pcb_t) DecrementQuantum(n int) int {
	p.quantumRemaining -= n
	return p.quantumRemaining
}

/// Table_t is the 32-slot PCB table plus the scheduler and allocators
/// it draws stacks from.
type Table_t struct {
	sync.Mutex
	slots       [MaxProcs]*Pcb_t
	nextPid     int
	sched       *sched.Scheduler_t
	heap        *heap.Heap_t
	phys        *mem.Physmem_t
	current     int
	needResched bool
	procLimit   *limits.Sysatomic_t
}

/// MkTable creates a PCB table with pid 1 (idle) already running.
func MkTable(s *sched.Scheduler_t, h *heap.Heap_t, phys *mem.Physmem_t) *Table_t {
	t := &Table_t{sched: s, heap: h, phys: phys, nextPid: 2}
	idle := &Pcb_t{
		pid:              IdlePid,
		name:             "idle",
		state:            Running,
		priority:         sched.DefaultPriority,
		quantumRemaining: sched.QuantumTable[sched.DefaultPriority],
		acc:              &accnt.Accnt_t{},
	}
	t.slots[0] = idle
	t.current = IdlePid
	return t
}

/// SetLimit installs the system-wide process count ceiling that create
/// and RegisterCurrent must take a token from; nil (the default) means
/// the 32-slot table itself is the only cap.
func (t *Table_t) SetLimit(l *limits.Sysatomic_t) {
	t.Lock()
	defer t.Unlock()
	t.procLimit = l
}

func (t *Table_t) findSlot(pid int) *Pcb_t {
	for _, p := range t.slots {
		if p != nil && p.pid == pid {
			return p
		}
	}
	return nil
}

func (t *Table_t) freeSlotIndex() int {
	for i, p := range t.slots {
		if p == nil {
			return i
		}
	}
	return -1
}

// writeSyntheticFrame stamps the entry address at the top of a freshly
// allocated stack: a synthetic return frame so the first context
// switch resumes at entry.
func writeSyntheticFrame(stack []uint8, entry uint32, arg uint32, hasArg bool) {
	off := len(stack) - 4
	util.Writen32(stack, off, entry)
	if hasArg {
		off -= 4
		util.Writen32(stack, off, arg)
	}
}

func (t *Table_t) create(entry uint32, name string, stackSize uint32, arg uint32, hasArg bool) (int, defs.Err_t) {
	t.Lock()
	defer t.Unlock()

	slot := t.freeSlotIndex()
	if slot < 0 {
		return 0, defs.ENOSPC
	}
	if t.procLimit != nil && !t.procLimit.Taken(1) {
		return 0, defs.ENOSPC
	}
	stackAddr, ok := t.heap.Alloc(stackSize)
	if !ok {
		if t.procLimit != nil {
			t.procLimit.Given(1)
		}
		return 0, defs.ENOSPC
	}
	writeSyntheticFrame(t.phys.Bytes(stackAddr, int(stackSize)), entry, arg, hasArg)

	pid := t.nextPid
	t.nextPid++
	p := &Pcb_t{
		pid:              pid,
		name:             name,
		state:            Ready,
		priority:         sched.DefaultPriority,
		quantumRemaining: sched.QuantumTable[sched.DefaultPriority],
		entry:            entry,
		arg:              arg,
		stack:            stackAddr,
		stackSize:        stackSize,
		acc:              &accnt.Accnt_t{},
	}
	t.slots[slot] = p
	t.sched.Add(pid, p.priority)
	return pid, 0
}

/// Create allocates a stack from the heap, sets up a new Ready PCB at
/// the default priority, and adds it to the scheduler.
func (t *Table_t) Create(entry uint32, name string, stackSize uint32) (int, defs.Err_t) {
	return t.create(entry, name, stackSize, 0, false)
}

/// CreateWithArg is Create but arg is pushed onto the new stack ahead
/// of the synthetic return frame so entry receives it as its first
/// argument.
func (t *Table_t) CreateWithArg(entry uint32, name string, stackSize uint32, arg uint32) (int, defs.Err_t) {
	return t.create(entry, name, stackSize, arg, true)
}

/// RegisterCurrent adopts the caller's control flow as pid 2, the
/// first non-idle process, without going through Create (there is no
/// freshly allocated stack: the caller is already executing).
func (t *Table_t) RegisterCurrent(name string) (int, defs.Err_t) {
	t.Lock()
	defer t.Unlock()

	slot := t.freeSlotIndex()
	if slot < 0 {
		return 0, defs.ENOSPC
	}
	if t.procLimit != nil && !t.procLimit.Taken(1) {
		return 0, defs.ENOSPC
	}
	pid := t.nextPid
	t.nextPid++
	p := &Pcb_t{
		pid:              pid,
		name:             name,
		state:            Running,
		priority:         sched.DefaultPriority,
		quantumRemaining: sched.QuantumTable[sched.DefaultPriority],
		acc:              &accnt.Accnt_t{},
	}
	t.slots[slot] = p
	t.current = pid
	return pid, 0
}

/// Exit marks pid Terminated, records its exit code, releases its
/// image region if one was set, then yields.
func (t *Table_t) Exit(pid int, code int) defs.Err_t {
	t.Lock()
	p := t.findSlot(pid)
	if p == nil {
		t.Unlock()
		return defs.ENOENT
	}
	p.state = Terminated
	p.exitCode = code
	if p.hasImage {
		t.phys.ReleaseRegion(p.imageBase, p.imageSize)
		p.hasImage = false
	}
	t.needResched = true
	t.Unlock()
	return t.Yield(pid)
}

/// Kill marks pid Terminated from outside and takes it off its ready
/// queue, so it is not dispatched again. Its slot and stack are not
/// reclaimed automatically; they stay in place until a caller calls
/// Reap.
func (t *Table_t) Kill(pid int) defs.Err_t {
	t.Lock()
	defer t.Unlock()
	p := t.findSlot(pid)
	if p == nil {
		return defs.ENOENT
	}
	if p.state == Ready {
		t.sched.Remove(pid, p.priority)
	}
	p.state = Terminated
	return 0
}

/// Reap frees the slot of a Terminated PCB so its pid can eventually
/// be reused once every reference to it has been dropped (the exit
/// code has been collected by the caller).
func (t *Table_t) Reap(pid int) defs.Err_t {
	t.Lock()
	defer t.Unlock()
	for i, p := range t.slots {
		if p != nil && p.pid == pid {
			if p.state != Terminated {
				return defs.EINVAL
			}
			if p.stackSize > 0 {
				t.heap.Free(p.stack)
			}
			if t.procLimit != nil {
				t.procLimit.Given(1)
			}
			t.slots[i] = nil
			return 0
		}
	}
	return defs.ENOENT
}

/// Block marks pid Blocked, removes it from the scheduler, and yields.
func (t *Table_t) Block(pid int, reason string) defs.Err_t {
	t.Lock()
	p := t.findSlot(pid)
	if p == nil {
		t.Unlock()
		return defs.ENOENT
	}
	if p.state == Ready {
		t.sched.Remove(pid, p.priority)
	}
	p.state = Blocked
	p.reason = reason
	t.needResched = true
	t.Unlock()
	return t.Yield(pid)
}

/// Unblock marks pid Ready and re-adds it to the scheduler.
func (t *Table_t) Unblock(pid int) defs.Err_t {
	t.Lock()
	defer t.Unlock()
	p := t.findSlot(pid)
	if p == nil {
		return defs.ENOENT
	}
	if p.state != Blocked {
		return defs.EINVAL
	}
	p.state = Ready
	t.sched.Add(pid, p.priority)
	return 0
}

/// SetImage records the region a loaded program occupies, released
/// automatically on Exit.
func (t *Table_t) SetImage(pid int, base mem.Pa_t, size uint32) defs.Err_t {
	t.Lock()
	defer t.Unlock()
	p := t.findSlot(pid)
	if p == nil {
		return defs.ENOENT
	}
	p.hasImage = true
	p.imageBase = base
	p.imageSize = size
	return 0
}

/// SetProgramArgs attaches a caller-provided argv string the program
/// can read back.
func (t *Table_t) SetProgramArgs(pid int, argv string) defs.Err_t {
	t.Lock()
	defer t.Unlock()
	p := t.findSlot(pid)
	if p == nil {
		return defs.ENOENT
	}
	p.argv = argv
	return 0
}

/// TimerTick accounts one tick against whoever is Running and, if the
/// quantum expires, sets the deferred-reschedule flag. It must never
/// perform the switch itself: a switch from inside the IRQ handler
/// would corrupt the interrupted stack frame.
func (t *Table_t) TimerTick() {
	t.Lock()
	defer t.Unlock()
	cur := t.findSlot(t.current)
	if cur == nil {
		return
	}
	cur.acc.AddTicks(1)
	if t.sched.Tick(cur) {
		t.needResched = true
	}
}

/// Yield consults the deferred-reschedule flag; if a switch is due, it
/// clears the flag and performs it: the current PCB (if still Running)
/// goes back to Ready and rejoins the scheduler, and the next PCB
/// picked by sched.Next becomes Running.
func (t *Table_t) Yield(pid int) defs.Err_t {
	t.Lock()
	defer t.Unlock()
	if !t.needResched {
		return 0
	}
	t.needResched = false
	return t.switchFromLocked(pid)
}

func (t *Table_t) switchFromLocked(pid int) defs.Err_t {
	cur := t.findSlot(pid)
	if cur != nil && cur.state == Running {
		cur.state = Ready
		// pid 1 is never a member of the scheduler's queues; Next
		// falls back to it directly once every queue is empty.
		if cur.pid != IdlePid {
			t.sched.Add(cur.pid, cur.priority)
		}
	}

	next := t.sched.Next()
	nextPcb := t.findSlot(next)
	if nextPcb == nil {
		// pid 1 (idle) is never enqueued; it is always available.
		nextPcb = t.findSlot(IdlePid)
	}
	nextPcb.state = Running
	nextPcb.quantumRemaining = sched.QuantumTable[nextPcb.priority]
	t.current = nextPcb.pid
	return 0
}

/// Current returns the pid currently marked Running.
func (t *Table_t) Current() int {
	t.Lock()
	defer t.Unlock()
	return t.current
}

/// Lookup returns a read-only snapshot of pid's PCB.
func (t *Table_t) Lookup(pid int) (Pcb_t, bool) {
	t.Lock()
	defer t.Unlock()
	p := t.findSlot(pid)
	if p == nil {
		return Pcb_t{}, false
	}
	return *p, true
}

/// ForceResched marks the deferred-reschedule flag directly; used by
/// tests and by callers that want to force a switch on the next Yield
/// without waiting for TimerTick to expire a quantum.
func (t *Table_t) ForceResched() {
	t.Lock()
	defer t.Unlock()
	t.needResched = true
}
