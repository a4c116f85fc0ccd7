// Package accnt gives each PCB a wall-clock-denominated sibling to
// spec.md §4.7's tick-counted quantum accounting: nanoseconds of
// "user" time (while Running) versus "system" time (kernel-side work
// done on the process's behalf, e.g. a blocking VFS call). Grounded
// on the teacher's biscuit/src/accnt/accnt.go, trimmed of the rusage
// byte-serialization this core has no syscall ABI boundary for.
package accnt

import (
	"sync"
	"sync/atomic"
)

/// Accnt_t accumulates per-process accounting information. The
/// embedded mutex guards Add's read-modify-merge; Utadd/Systadd use
/// sync/atomic directly since they are called from the scheduler's
/// tick path without holding any lock (spec.md §5).
type Accnt_t struct {
	Userns int64
	Sysns  int64
	sync.Mutex
}

/// Utadd adds delta nanoseconds of user time.
func (a *Accnt_t) Utadd(delta int64) {
	atomic.AddInt64(&a.Userns, delta)
}

/// Systadd adds delta nanoseconds of system time.
func (a *Accnt_t) Systadd(delta int64) {
	atomic.AddInt64(&a.Sysns, delta)
}

/// Add merges n's counters into a, taking a's lock so a concurrent
/// Fetch sees a consistent snapshot.
func (a *Accnt_t) Add(n *Accnt_t) {
	a.Lock()
	defer a.Unlock()
	a.Userns += atomic.LoadInt64(&n.Userns)
	a.Sysns += atomic.LoadInt64(&n.Sysns)
}

/// Fetch returns a consistent (Userns, Sysns) snapshot.
func (a *Accnt_t) Fetch() (userns, sysns int64) {
	a.Lock()
	defer a.Unlock()
	return a.Userns, a.Sysns
}

/// TickNs is the wall-clock duration of one scheduler tick (spec.md
/// §4.7: "~1 ms each").
const TickNs = 1_000_000

/// AddTicks is the scheduler's accounting hook: n ticks of Running
/// time become n*TickNs nanoseconds of user time.
func (a *Accnt_t) AddTicks(n int) {
	a.Utadd(int64(n) * TickNs)
}
