// Package memory implements the demand-paged memory manager: fixed-size
// frames, per-process page tables, FIFO victim selection, an
// append-only text backing store, and per-process symbol tables.
package memory

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arctir/procsim/internal/clock"
	"github.com/arctir/procsim/internal/procerr"
)

const (
	// symbolTableBudgetBytes is the per-process symbol-table cap: 32
	// names at 2 bytes (one uint16) each.
	symbolTableBudgetBytes = 64
	bytesPerSymbol         = 2
	maxSymbols             = symbolTableBudgetBytes / bytesPerSymbol
)

// frame is one fixed-size physical-memory slot.
type frame struct {
	occupied       bool
	ownerPID       string
	vpn            uint32
	lastAccessTick uint64
	data           []byte
}

// procInfo is the per-process memory record: allocation size, page
// table, symbol table, and violation state.
type procInfo struct {
	pid            string
	allocatedBytes uint64
	pageTable      map[uint32]int // vpn -> frame index
	symbolTable    map[string]uint16
	symbolOrder    []string // insertion order, for budget accounting

	violationOccurred  bool
	violationAddress   uint32
	violationTimestamp string
}

// Manager owns the frame table, free list, per-process memory records,
// and the backing store. All mutable state is protected by mu;
// counters additionally use atomics so report queries never block a
// running core worker.
type Manager struct {
	mu sync.Mutex

	frameSize   uint64
	totalFrames int
	frames      []frame
	freeFrames  []int // FIFO queue of free frame indices

	minAlloc uint64
	maxAlloc uint64
	overall  uint64

	processes map[string]*procInfo

	store *BackingStore
	ticks clock.Ticks

	pageFaults uint64 // atomic
	pagesIn    uint64 // atomic
	pagesOut   uint64 // atomic
}

// Config bundles the sizing parameters Manager needs at construction.
type Config struct {
	FrameSize        uint64
	MaxOverallMemory uint64
	MinAllocation    uint64
	MaxAllocation    uint64
}

// New builds a Manager with totalFrames = MaxOverallMemory/FrameSize,
// all initially free, backed by store for evicted page contents.
func New(cfg Config, store *BackingStore) (*Manager, error) {
	if cfg.FrameSize == 0 || cfg.MaxOverallMemory%cfg.FrameSize != 0 {
		return nil, fmt.Errorf("%w: max-overall-mem must be a multiple of mem-per-frame", procerr.ErrConfig)
	}
	total := int(cfg.MaxOverallMemory / cfg.FrameSize)
	m := &Manager{
		frameSize:   cfg.FrameSize,
		totalFrames: total,
		frames:      make([]frame, total),
		freeFrames:  make([]int, total),
		minAlloc:    cfg.MinAllocation,
		maxAlloc:    cfg.MaxAllocation,
		overall:     cfg.MaxOverallMemory,
		processes:   map[string]*procInfo{},
		store:       store,
	}
	for i := 0; i < total; i++ {
		m.freeFrames[i] = i
		m.frames[i].data = make([]byte, cfg.FrameSize)
	}
	return m, nil
}

func isPowerOfTwo(v uint64) bool { return v != 0 && v&(v-1) == 0 }

func (m *Manager) isValidMemorySize(bytes uint64) bool {
	if bytes < m.minAlloc || bytes > m.maxAlloc {
		return false
	}
	return isPowerOfTwo(bytes)
}

// Allocate records a virtual allocation of bytes for pid. It refuses
// when bytes is invalid, when pid is already allocated, when
// ceil(bytes/frameSize) exceeds the total frame count, or when the sum
// of allocated virtual memory across all processes would exceed the
// overall budget. It does not reserve any frames and does not check how
// many frames are currently free.
func (m *Manager) Allocate(pid string, bytes uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isValidMemorySize(bytes) {
		return fmt.Errorf("%w: invalid memory size %d", procerr.ErrInvalidArgument, bytes)
	}
	if _, exists := m.processes[pid]; exists {
		return fmt.Errorf("%w: process %s already has memory allocated", procerr.ErrInvalidArgument, pid)
	}

	pagesNeeded := (bytes + m.frameSize - 1) / m.frameSize
	if pagesNeeded > uint64(m.totalFrames) {
		return fmt.Errorf("%w: %d pages needed exceeds %d total frames in the system", procerr.ErrResourceExhausted, pagesNeeded, m.totalFrames)
	}

	var totalAllocated uint64
	for _, info := range m.processes {
		totalAllocated += info.allocatedBytes
	}
	if totalAllocated+bytes > m.overall {
		return fmt.Errorf("%w: allocating %d bytes would exceed overall memory budget", procerr.ErrResourceExhausted, bytes)
	}

	// Pages are bound to physical frames lazily, on first touch (see
	// handlePageFaultLocked in access.go) — Allocate only reserves the
	// process's share of the virtual budget and its page-table
	// skeleton. This is what makes eviction reachable at all: several
	// small, sum-budget-compliant allocations can still outnumber the
	// physical frame pool once touched.
	m.processes[pid] = &procInfo{
		pid:            pid,
		allocatedBytes: bytes,
		pageTable:      map[uint32]int{},
		symbolTable:    map[string]uint16{},
	}
	return nil
}

// Deallocate returns every frame owned by pid to the free list and
// drops its memory record. Backing-store entries for pid may linger.
func (m *Manager) Deallocate(pid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.processes[pid]
	if !ok {
		return
	}
	for _, fi := range info.pageTable {
		m.frames[fi] = frame{data: m.frames[fi].data}
		m.freeFrames = append(m.freeFrames, fi)
	}
	delete(m.processes, pid)
}

// HasProcess reports whether pid currently has a memory allocation.
func (m *Manager) HasProcess(pid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processes[pid]
	return ok
}

// UsedBytes returns occupied-frame count * frame size.
func (m *Manager) UsedBytes() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	used := 0
	for _, f := range m.frames {
		if f.occupied {
			used++
		}
	}
	return uint64(used) * m.frameSize
}

// FreeFrameCount returns how many frames are currently unoccupied.
func (m *Manager) FreeFrameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.freeFrames)
}

// TotalFrames returns the fixed frame-table size.
func (m *Manager) TotalFrames() int { return m.totalFrames }

// Counters is a point-in-time snapshot of the manager's vmstat fields.
type Counters struct {
	TotalTicks  uint64
	ActiveTicks uint64
	IdleTicks   uint64
	PageFaults  uint64
	PagesIn     uint64
	PagesOut    uint64
	UsedBytes   uint64
	FreeBytes   uint64
}

// Snapshot returns the current counters for reporting.
func (m *Manager) Snapshot() Counters {
	used := m.UsedBytes()
	return Counters{
		TotalTicks:  m.ticks.Total(),
		ActiveTicks: m.ticks.ActiveCount(),
		IdleTicks:   m.ticks.IdleCount(),
		PageFaults:  atomic.LoadUint64(&m.pageFaults),
		PagesIn:     atomic.LoadUint64(&m.pagesIn),
		PagesOut:    atomic.LoadUint64(&m.pagesOut),
		UsedBytes:   used,
		FreeBytes:   m.overall - used,
	}
}

// InspectBackingStore looks up the latest evicted record for (pid, vpn)
// in the backing store, for callers that want to display it without
// going through a page fault (e.g. a CLI "inspect backing store"
// command). Does not touch the frame table or page-fault statistics.
func (m *Manager) InspectBackingStore(pid string, vpn uint32) (frameIndex int, data []byte, ok bool) {
	return m.store.LoadRecord(pid, vpn)
}

// IncrementActiveTick and IncrementIdleTick let the scheduler drive the
// manager's shared tick counters (the original keeps these on the
// memory manager rather than the scheduler).
func (m *Manager) IncrementActiveTick() { m.ticks.Active() }
func (m *Manager) IncrementIdleTick()   { m.ticks.Idle() }
