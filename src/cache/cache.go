// Package cache implements the 64-entry LRU write-back BlockCache
// (spec.md §4.4). It sits between the filesystem layer and a single
// attached blkdev.Device_i, absorbing repeat reads and batching
// writes with write-allocate semantics.
package cache

import (
	"fmt"
	"sync"

	"blkdev"
	"defs"
)

/// NumEntries is the fixed cache size.
const NumEntries = 64

/// entry_t is a single cached sector. data is always SectorSize bytes.
type entry_t struct {
	lba        uint32
	valid      bool
	dirty      bool
	lastAccess uint64
	data       [blkdev.SectorSize]uint8
}

/// BlockCache_t is a direct-mapped-by-search, fully-associative LRU
/// cache of exactly NumEntries sectors over a single attached device.
/// Per spec.md §3, at most one BlockDevice handle is cached at a time
/// in this core, so BlockCache_t owns its device outright rather than
/// looking it up through a table on every call.
type BlockCache_t struct {
	sync.Mutex
	dev     blkdev.Device_i
	entries [NumEntries]entry_t
	clock   uint64

	hits       uint64
	misses     uint64
	writebacks uint64
	evictions  uint64
}

/// MkBlockCache creates an empty cache attached to dev.
func MkBlockCache(dev blkdev.Device_i) *BlockCache_t {
	return &BlockCache_t{dev: dev}
}

func (c *BlockCache_t) findValid(lba uint32) int {
	for i := range c.entries {
		if c.entries[i].valid && c.entries[i].lba == lba {
			return i
		}
	}
	return -1
}

// victim picks an eviction target: the first invalid slot if any,
// else the entry with the smallest last_access stamp.
func (c *BlockCache_t) victim() int {
	for i := range c.entries {
		if !c.entries[i].valid {
			return i
		}
	}
	best := 0
	for i := 1; i < NumEntries; i++ {
		if c.entries[i].lastAccess < c.entries[best].lastAccess {
			best = i
		}
	}
	return best
}

func (c *BlockCache_t) stamp() uint64 {
	c.clock++
	if c.clock == ^uint64(0) {
		// The counter is about to saturate: reset every stamp to 0 and
		// restart the clock (spec.md §4.4). Entries stamped before the
		// reset all tie at 0, so their relative LRU order is not kept.
		for i := range c.entries {
			c.entries[i].lastAccess = 0
		}
		c.clock = 1
	}
	return c.clock
}

// fill loads lba from the device into slot i, evicting whatever was
// there first (writing it back if dirty). Returns the error from
// either the writeback or the fill read.
func (c *BlockCache_t) fill(i int, lba uint32) defs.Err_t {
	e := &c.entries[i]
	if e.valid && e.dirty {
		if err := c.dev.Write(e.lba, 1, e.data[:]); err != 0 {
			return err
		}
		c.writebacks++
	}
	if e.valid {
		c.evictions++
	}
	if err := c.dev.Read(lba, 1, e.data[:]); err != 0 {
		e.valid = false
		return err
	}
	e.lba = lba
	e.valid = true
	e.dirty = false
	e.lastAccess = c.stamp()
	return 0
}

/// Read copies the sector at lba into outBuf (must be >= SectorSize).
func (c *BlockCache_t) Read(lba uint32, outBuf []uint8) defs.Err_t {
	c.Lock()
	defer c.Unlock()

	if i := c.findValid(lba); i >= 0 {
		c.entries[i].lastAccess = c.stamp()
		c.hits++
		copy(outBuf, c.entries[i].data[:])
		return 0
	}

	i := c.victim()
	if err := c.fill(i, lba); err != 0 {
		return err
	}
	c.misses++
	copy(outBuf, c.entries[i].data[:])
	return 0
}

/// Write overwrites the sector at lba with inBuf (must be >=
/// SectorSize) and marks it dirty. Write-allocate: a cache miss reads
/// the sector from the device first so a later sub-sector read sees
/// the rest of the original content merged with this write.
func (c *BlockCache_t) Write(lba uint32, inBuf []uint8) defs.Err_t {
	c.Lock()
	defer c.Unlock()

	if i := c.findValid(lba); i >= 0 {
		copy(c.entries[i].data[:], inBuf[:blkdev.SectorSize])
		c.entries[i].dirty = true
		c.entries[i].lastAccess = c.stamp()
		return 0
	}

	i := c.victim()
	if err := c.fill(i, lba); err != 0 {
		return err
	}
	c.misses++
	copy(c.entries[i].data[:], inBuf[:blkdev.SectorSize])
	c.entries[i].dirty = true
	return 0
}

/// FlushAll writes back every valid dirty entry and clears its dirty
/// bit. A per-entry write failure is recorded but does not abort the
/// sweep over the remaining entries; the first error encountered, if
/// any, is returned to the caller.
func (c *BlockCache_t) FlushAll() defs.Err_t {
	c.Lock()
	defer c.Unlock()
	return c.flushAllLocked()
}

func (c *BlockCache_t) flushAllLocked() defs.Err_t {
	var first defs.Err_t
	for i := range c.entries {
		e := &c.entries[i]
		if !e.valid || !e.dirty {
			continue
		}
		if err := c.dev.Write(e.lba, 1, e.data[:]); err != 0 {
			if first == 0 {
				first = err
			}
			continue
		}
		e.dirty = false
		c.writebacks++
	}
	return first
}

/// Sync is an alias for FlushAll exposed to callers that need an
/// explicit durability point.
func (c *BlockCache_t) Sync() defs.Err_t {
	return c.FlushAll()
}

/// PeriodicFlush is invoked from the kernel's 5-second timer tick; it
/// is the scheduled counterpart to the caller-driven Sync.
func (c *BlockCache_t) PeriodicFlush() defs.Err_t {
	return c.FlushAll()
}

/// Stats reports the four cache counters from spec.md §4.4.
func (c *BlockCache_t) Stats() (hits, misses, writebacks, evictions uint64) {
	c.Lock()
	defer c.Unlock()
	return c.hits, c.misses, c.writebacks, c.evictions
}

/// String renders a one-line human-readable summary of cache activity.
func (c *BlockCache_t) String() string {
	hits, misses, writebacks, evictions := c.Stats()
	total := hits + misses
	rate := 0.0
	if total > 0 {
		rate = 100 * float64(hits) / float64(total)
	}
	return fmt.Sprintf("cache: %d/%d hits (%.1f%%), %d writebacks, %d evictions",
		hits, total, rate, writebacks, evictions)
}
