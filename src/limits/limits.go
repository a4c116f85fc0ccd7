// Package limits gathers the core's fixed capacities — 32 PCBs, 8
// file handles, 64 cache entries — behind one inspectable aggregate.
// It is grounded on the teacher's biscuit/src/limits package:
// Sysatomic_t is kept verbatim in spirit (an atomically-decremented
// counter with Taken/Given), generalized from biscuit's much larger
// POSIX-shaped limit set down to these three capacities. Only the
// process count is enforced (by proc.Table_t once installed with
// SetLimit); fat16's handle table and cache's entry array keep their
// own fixed bounds and do not consult Handles or Blocks.
package limits

import "sync/atomic"

/// Sysatomic_t is a numeric limit that can be atomically acquired and
/// released. Taken fails (and leaves the counter unchanged) once the
/// limit reaches zero; Given restores capacity, typically on release
/// of whatever the caller was holding.
type Sysatomic_t struct {
	remaining int64
}

/// MkSysatomic creates a Sysatomic_t with n units of capacity.
func MkSysatomic(n int64) *Sysatomic_t {
	return &Sysatomic_t{remaining: n}
}

/// Taken tries to decrement the limit by n, returning false (and
/// leaving the counter unchanged) if that would take it negative.
func (s *Sysatomic_t) Taken(n int64) bool {
	if atomic.AddInt64(&s.remaining, -n) >= 0 {
		return true
	}
	atomic.AddInt64(&s.remaining, n)
	return false
}

/// Given returns n units of capacity to the limit.
func (s *Sysatomic_t) Given(n int64) {
	atomic.AddInt64(&s.remaining, n)
}

/// Take is Taken(1).
func (s *Sysatomic_t) Take() bool { return s.Taken(1) }

/// Give is Given(1).
func (s *Sysatomic_t) Give() { s.Given(1) }

/// Remaining reports the current count without mutating it.
func (s *Sysatomic_t) Remaining() int64 {
	return atomic.LoadInt64(&s.remaining)
}

/// Syslimit_t aggregates the core's fixed structural capacities, one
/// field per spec.md data-model limit (§3): the 32-slot PCB table, the
/// 8-slot FAT16 file handle table, and the 64-entry block cache.
type Syslimit_t struct {
	Procs   *Sysatomic_t
	Handles *Sysatomic_t
	Blocks  *Sysatomic_t
}

/// MkSysLimit returns the default Syslimit_t matching spec.md's fixed
/// capacities: 32 processes, 8 file handles, 64 cache entries.
func MkSysLimit() *Syslimit_t {
	return &Syslimit_t{
		Procs:   MkSysatomic(32),
		Handles: MkSysatomic(8),
		Blocks:  MkSysatomic(64),
	}
}
