// Package process implements the Process record and its one-instruction
// interpreter. A Process is a mutex-guarded struct; instruction counts
// are kept in atomically-accessed fields so report queries can read
// them without taking the struct's lock.
package process

import (
	"sync"
	"sync/atomic"

	"github.com/arctir/procsim/internal/clock"
	"github.com/arctir/procsim/internal/instruction"
)

// State is one of the five execution states a Process can be in.
type State int

const (
	New State = iota
	Ready
	Running
	Waiting
	Terminated
)

func (s State) String() string {
	switch s {
	case New:
		return "NEW"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Waiting:
		return "WAITING"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// MemoryAccessor is the subset of the memory manager the interpreter
// touches. It is passed into Step per call rather than stored on the
// Process, so the scheduler and memory manager never hold references to
// each other through the Process.
type MemoryAccessor interface {
	DeclareVariable(pid string, name string, value uint16) bool
	GetVariable(pid string, name string) uint16
	SetVariable(pid string, name string, value uint16)
	ReadMemory(pid string, address uint32) (value uint16, ok bool)
	WriteMemory(pid string, address uint32, value uint16) (ok bool)
}

// loopFrame tracks one active (possibly nested) For loop being expanded
// on the fly, per the execution-stack approach from the design notes.
type loopFrame struct {
	body      []instruction.Instruction
	index     int
	remaining int
}

// Process is a single simulated program: identity, state, the generated
// instruction stream, and runtime bookkeeping.
type Process struct {
	mu sync.Mutex

	id                 int
	pid                string
	name               string
	creationTimestamp  string
	arrivalSeq         int64
	allocatedBytes     uint64
	program            []instruction.Instruction
	cursor             int
	loopStack          []loopFrame
	state              State
	core               int
	sleepRemaining     int
	log                []string
	completionTime     string
	violationOccurred  bool
	violationAddress   uint32
	violationTimestamp string

	responseSet bool

	executedInstructions uint64 // atomic
	totalInstructions    uint64 // atomic
}

// New builds a Process admitted at arrivalSeq with the given generated
// program.
func New(id int, pid, name string, arrivalSeq int64, allocatedBytes uint64, program []instruction.Instruction) *Process {
	p := &Process{
		id:                id,
		pid:               pid,
		name:              name,
		creationTimestamp: clock.Timestamp(),
		arrivalSeq:        arrivalSeq,
		allocatedBytes:    allocatedBytes,
		program:           program,
		core:              -1,
		state:             New,
	}
	atomic.StoreUint64(&p.totalInstructions, uint64(len(program)))
	return p
}

func (p *Process) ID() int             { return p.id }
func (p *Process) PID() string         { return p.pid }
func (p *Process) Name() string        { return p.name }
func (p *Process) ArrivalSeq() int64   { return p.arrivalSeq }
func (p *Process) AllocatedBytes() uint64 { return p.allocatedBytes }

func (p *Process) ExecutedInstructions() int {
	return int(atomic.LoadUint64(&p.executedInstructions))
}

func (p *Process) TotalInstructions() int {
	return int(atomic.LoadUint64(&p.totalInstructions))
}

func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Process) SetState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Process) Core() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.core
}

// AssignCore transitions the process to RUNNING on the given core and
// marks it as dispatched at least once. No response timestamp is
// stored.
func (p *Process) AssignCore(core int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Running
	p.core = core
	if !p.responseSet {
		p.responseSet = true
	}
}

// ClearCore releases the core slot without changing state.
func (p *Process) ClearCore() {
	p.mu.Lock()
	p.core = -1
	p.mu.Unlock()
}

// CreationTimestamp returns the HH:MM:SS this process was admitted.
func (p *Process) CreationTimestamp() string {
	return p.creationTimestamp
}

// Sleep puts the process into WAITING for the given number of ticks.
func (p *Process) Sleep(ticks int) {
	p.mu.Lock()
	p.sleepRemaining = ticks
	p.state = Waiting
	p.mu.Unlock()
}

// TickSleep decrements the sleep counter by one tick. It returns true
// once the counter reaches zero, at which point the caller should
// transition the process back to READY and re-enqueue it.
func (p *Process) TickSleep() (woke bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sleepRemaining > 0 {
		p.sleepRemaining--
	}
	if p.sleepRemaining == 0 && p.state == Waiting {
		p.state = Ready
		return true
	}
	return false
}

// IsSleeping reports whether the process is currently WAITING on a
// sleep counter.
func (p *Process) IsSleeping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == Waiting
}

// IsComplete reports whether every top-level instruction and any
// in-flight loop body has been consumed.
func (p *Process) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isCompleteLocked()
}

func (p *Process) isCompleteLocked() bool {
	return p.state == Terminated ||
		(p.cursor >= len(p.program) && len(p.loopStack) == 0)
}

// Log returns a copy of the execution log accumulated so far.
func (p *Process) Log() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.log))
	copy(out, p.log)
	return out
}

// HasViolation reports whether this process terminated due to an
// out-of-range memory access.
func (p *Process) HasViolation() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.violationOccurred
}

// ViolationMessage returns the shell-facing violation string, or "" if
// no violation occurred.
func (p *Process) ViolationMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.violationOccurred {
		return ""
	}
	return "Process " + p.name + " shut down due to memory access violation error that occurred at " +
		p.violationTimestamp + ". 0x" + hexAddr(p.violationAddress) + " invalid."
}

// CompletionTimestamp returns the HH:MM:SS the process terminated, or
// "" if it has not yet terminated.
func (p *Process) CompletionTimestamp() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completionTime
}

// Finish marks the process TERMINATED, forcing executedInstructions to
// equal totalInstructions (idempotent) and recording the completion
// timestamp.
func (p *Process) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	atomic.StoreUint64(&p.executedInstructions, atomic.LoadUint64(&p.totalInstructions))
	if p.state == Terminated {
		return
	}
	p.state = Terminated
	p.completionTime = clock.Timestamp()
}

// StepResult describes the effect of one Step call.
type StepResult struct {
	LogLine   string
	Completed bool
	Violation bool
}

// Step executes exactly one chargeable action: either a top-level
// instruction, the entry into a (possibly nested) For loop, or one
// instruction from the body of an active loop. It is the unit the
// scheduler charges one executedInstructions/quantum increment to.
func (p *Process) Step(mem MemoryAccessor) StepResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	ins, ok := p.resolveNextLocked()
	if !ok {
		return StepResult{Completed: true}
	}

	line, violation := p.executeLocked(mem, ins)
	atomic.AddUint64(&p.executedInstructions, 1)
	p.log = append(p.log, line)

	if violation {
		p.state = Terminated
		p.completionTime = clock.Timestamp()
		return StepResult{LogLine: line, Violation: true, Completed: true}
	}

	return StepResult{LogLine: line, Completed: p.isCompleteLocked()}
}

// resolveNextLocked finds the next instruction to execute, pushing or
// popping loop frames as needed, without charging a tick for loop
// bookkeeping alone. Returns ok=false if the program is exhausted.
func (p *Process) resolveNextLocked() (instruction.Instruction, bool) {
	for {
		if len(p.loopStack) > 0 {
			top := &p.loopStack[len(p.loopStack)-1]
			if top.index >= len(top.body) {
				top.remaining--
				if top.remaining > 0 {
					top.index = 0
					continue
				}
				p.loopStack = p.loopStack[:len(p.loopStack)-1]
				continue
			}
			ins := top.body[top.index]
			top.index++
			if ins.Kind == instruction.For {
				p.loopStack = append(p.loopStack, loopFrame{body: ins.Body, remaining: ins.Repeats})
				return ins, true
			}
			return ins, true
		}

		if p.cursor >= len(p.program) {
			return instruction.Instruction{}, false
		}
		ins := p.program[p.cursor]
		p.cursor++
		if ins.Kind == instruction.For {
			p.loopStack = append(p.loopStack, loopFrame{body: ins.Body, remaining: ins.Repeats})
			return ins, true
		}
		return ins, true
	}
}
