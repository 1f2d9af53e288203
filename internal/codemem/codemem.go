// Package codemem is an append-only allocator for executable code: callers
// copy compiled function bodies and trampolines into fresh page-aligned
// regions, then Publish flips every outstanding region from writable to
// executable. A region is never both writable and executable at once (W^X),
// and publication is monotonic and idempotent.
package codemem

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Slice is a pointer into a Memory's code, valid for the engine's lifetime.
// Before Publish it may still be written through; after Publish it must
// only be executed.
type Slice []byte

// Memory holds every code region allocated by one JIT engine. The zero
// value is not usable (it has no page size); construct with New.
type Memory struct {
	mu       sync.Mutex
	regions  []*region
	pageSize int
}

type region struct {
	mem        []byte // mmap'd backing store, always a multiple of page size
	used       int    // bytes written so far
	executable bool
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{pageSize: os.Getpagesize()}
}

// AllocateFunctions copies each body in bodies into a fresh writable
// region, one region per call, and returns a Slice per input index, in
// order.
func (m *Memory) AllocateFunctions(bodies [][]byte) ([]Slice, error) {
	total := 0
	for _, b := range bodies {
		total += align16(len(b))
	}
	if total == 0 {
		return nil, nil
	}

	r, err := m.newRegion(total)
	if err != nil {
		return nil, err
	}

	out := make([]Slice, len(bodies))
	for i, b := range bodies {
		out[i] = r.write(b)
	}
	return out, nil
}

// AllocateForFunction is AllocateFunctions for a single body, used for
// per-signature trampolines.
func (m *Memory) AllocateForFunction(body []byte) (Slice, error) {
	slices, err := m.AllocateFunctions([][]byte{body})
	if err != nil {
		return nil, err
	}
	if len(slices) == 0 {
		return Slice{}, nil
	}
	return slices[0], nil
}

// Publish transitions every outstanding writable region to executable.
// Publish may be called repeatedly; regions already published are
// untouched. Pointers handed out before Publish remain the same addresses
// after; Publish only changes the page protection bits.
func (m *Memory) Publish() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.regions {
		if r.executable || len(r.mem) == 0 {
			continue
		}
		if err := unix.Mprotect(r.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
			return fmt.Errorf("codemem: publish: mprotect: %w", err)
		}
		r.executable = true
	}
	return nil
}

// Close unmaps every region. Only safe once no instance may still execute
// code handed out by this Memory.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for _, r := range m.regions {
		if len(r.mem) == 0 {
			continue
		}
		if err := unix.Munmap(r.mem); err != nil && first == nil {
			first = err
		}
		r.mem = nil
	}
	m.regions = nil
	return first
}

func (m *Memory) newRegion(size int) (*region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mapSize := roundUp(size, m.pageSize)
	mem, err := unix.Mmap(-1, 0, mapSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("codemem: allocate %d bytes: %w", size, err)
	}
	r := &region{mem: mem}
	m.regions = append(m.regions, r)
	return r, nil
}

// write copies b to the end of the region's used space and returns a Slice
// aliasing it. The caller (Memory.AllocateFunctions) has already ensured
// mem is large enough for the whole batch.
func (r *region) write(b []byte) Slice {
	start := r.used
	n := copy(r.mem[start:], b)
	r.used = align16(start + n)
	return Slice(r.mem[start : start+n : start+n])
}

func align16(n int) int {
	return (n + 15) &^ 15
}

func roundUp(n, unit int) int {
	if n <= 0 {
		return unit
	}
	return ((n + unit - 1) / unit) * unit
}
