package memory

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/arctir/procsim/internal/clock"
)

// ReadMemory performs a little-endian 16-bit read at address. An
// out-of-range address marks a violation and returns (0, false). A
// straddling access at the last byte of a frame is an invalid narrow
// read and also returns (0, false), without marking a violation (the
// address itself was in range).
func (m *Manager) ReadMemory(pid string, address uint32) (uint16, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.processes[pid]
	if !ok {
		return 0, false
	}
	if uint64(address) >= info.allocatedBytes {
		m.recordViolationLocked(info, address)
		return 0, false
	}
	if uint64(address)%m.frameSize+1 >= m.frameSize {
		return 0, false
	}

	fi, offset, ok := m.resolvePageLocked(info, address)
	if !ok {
		return 0, false
	}
	m.frames[fi].lastAccessTick = m.ticks.Total()
	return binary.LittleEndian.Uint16(m.frames[fi].data[offset : offset+2]), true
}

// WriteMemory performs a little-endian 16-bit write at address, with
// the same bounds and alignment rules as ReadMemory.
func (m *Manager) WriteMemory(pid string, address uint32, value uint16) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.processes[pid]
	if !ok {
		return false
	}
	if uint64(address) >= info.allocatedBytes {
		m.recordViolationLocked(info, address)
		return false
	}
	if uint64(address)%m.frameSize+1 >= m.frameSize {
		return false
	}

	fi, offset, ok := m.resolvePageLocked(info, address)
	if !ok {
		return false
	}
	m.frames[fi].lastAccessTick = m.ticks.Total()
	binary.LittleEndian.PutUint16(m.frames[fi].data[offset:offset+2], value)
	return true
}

// resolvePageLocked returns the frame index and in-frame byte offset
// for address, triggering a page fault if the page is not resident.
// Caller holds m.mu.
func (m *Manager) resolvePageLocked(info *procInfo, address uint32) (frameIndex int, offset uint64, ok bool) {
	pageNumber := uint32(uint64(address) / m.frameSize)
	offset = uint64(address) % m.frameSize

	fi, present := info.pageTable[pageNumber]
	if !present {
		var err error
		fi, err = m.handlePageFaultLocked(info, pageNumber)
		if err != nil {
			return 0, 0, false
		}
	}
	return fi, offset, true
}

// handlePageFaultLocked satisfies a fault for (info.pid, pageNumber):
// it takes a free frame if one exists, else evicts a victim; then
// loads the page's prior contents from the backing store if present,
// or zero-fills. Caller holds m.mu.
func (m *Manager) handlePageFaultLocked(info *procInfo, pageNumber uint32) (int, error) {
	atomic.AddUint64(&m.pageFaults, 1)

	var fi int
	if len(m.freeFrames) > 0 {
		fi = m.freeFrames[0]
		m.freeFrames = m.freeFrames[1:]
	} else {
		victim := m.findVictimFrameLocked()
		m.evictFrameLocked(victim)
		fi = victim
	}

	for i := range m.frames[fi].data {
		m.frames[fi].data[i] = 0
	}
	if data, found := m.store.Load(info.pid, pageNumber); found {
		n := copy(m.frames[fi].data, data)
		atomic.AddUint64(&m.pagesIn, 1)
		_ = n
	}

	m.frames[fi].occupied = true
	m.frames[fi].ownerPID = info.pid
	m.frames[fi].vpn = pageNumber
	m.frames[fi].lastAccessTick = m.ticks.Total()
	info.pageTable[pageNumber] = fi

	return fi, nil
}

// findVictimFrameLocked scans the frame table in index order and
// returns the first occupied frame: FIFO over scan order. Caller holds
// m.mu.
func (m *Manager) findVictimFrameLocked() int {
	for i := range m.frames {
		if m.frames[i].occupied {
			return i
		}
	}
	return 0
}

// evictFrameLocked persists a victim frame's contents to the backing
// store and frees it from its current owner's page table. Caller holds
// m.mu.
func (m *Manager) evictFrameLocked(fi int) {
	f := &m.frames[fi]
	if !f.occupied {
		return
	}
	m.store.Append(f.ownerPID, f.vpn, fi, f.data)
	atomic.AddUint64(&m.pagesOut, 1)

	if owner, ok := m.processes[f.ownerPID]; ok {
		delete(owner.pageTable, f.vpn)
	}
	f.occupied = false
	f.ownerPID = ""
}

func (m *Manager) recordViolationLocked(info *procInfo, address uint32) {
	info.violationOccurred = true
	info.violationAddress = address
	info.violationTimestamp = clock.Timestamp()
}

// HasViolation reports whether pid has recorded a memory violation.
func (m *Manager) HasViolation(pid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.processes[pid]
	return ok && info.violationOccurred
}

// ViolationInfo returns the offending address and timestamp, if any.
func (m *Manager) ViolationInfo(pid string) (address uint32, timestamp string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, present := m.processes[pid]
	if !present || !info.violationOccurred {
		return 0, "", false
	}
	return info.violationAddress, info.violationTimestamp, true
}

// DeclareVariable adds or updates a symbol-table entry for pid. A new
// name is refused once the 64-byte (32-name) budget is exhausted;
// updating an existing name's value always succeeds.
func (m *Manager) DeclareVariable(pid, name string, value uint16) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.processes[pid]
	if !ok {
		return false
	}
	if _, exists := info.symbolTable[name]; !exists {
		if len(info.symbolOrder) >= maxSymbols {
			return false
		}
		info.symbolOrder = append(info.symbolOrder, name)
	}
	info.symbolTable[name] = value
	return true
}

// GetVariable returns a symbol's value, auto-declaring it to 0 on first
// read if it does not already exist (and budget allows).
func (m *Manager) GetVariable(pid, name string) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.processes[pid]
	if !ok {
		return 0
	}
	if v, exists := info.symbolTable[name]; exists {
		return v
	}
	if len(info.symbolOrder) < maxSymbols {
		info.symbolOrder = append(info.symbolOrder, name)
		info.symbolTable[name] = 0
	}
	return 0
}

// SetVariable updates an existing symbol's value without consuming
// additional symbol-table budget; unknown names are created subject to
// the same budget as DeclareVariable.
func (m *Manager) SetVariable(pid, name string, value uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.processes[pid]
	if !ok {
		return
	}
	if _, exists := info.symbolTable[name]; !exists {
		if len(info.symbolOrder) >= maxSymbols {
			return
		}
		info.symbolOrder = append(info.symbolOrder, name)
	}
	info.symbolTable[name] = value
}
