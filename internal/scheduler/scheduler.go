// Package scheduler owns the ready queue, per-core worker goroutines,
// the FCFS/RR dispatch policy, and the background process generator.
// It is grounded on original_source/src/scheduler/scheduler.{h,cpp}:
// coreWorkerThread becomes one goroutine per core, processCreatorThread
// becomes the generator goroutine, and the raw std::thread/condition
// variable pairing becomes an errgroup.Group plus a buffered
// notification channel.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arctir/procsim/internal/config"
	"github.com/arctir/procsim/internal/instruction"
	"github.com/arctir/procsim/internal/memory"
	"github.com/arctir/procsim/internal/procerr"
	"github.com/arctir/procsim/internal/process"
)

// idleWaitTimeout bounds how long a core worker sleeps waiting for the
// ready queue, so idle ticks still accrue and shutdown stays responsive.
const idleWaitTimeout = 50 * time.Millisecond

// Scheduler dispatches processes across a fixed pool of simulated
// cores under the configured policy, and optionally keeps them fed via
// a background generator.
type Scheduler struct {
	cfg config.Config
	mem *memory.Manager

	// processMu guards the ready queue, running slots, terminated list,
	// and the all-processes index — mirroring the original's single
	// process_mutex. coreQuantum is guarded by the same lock since it is
	// only ever touched by a core's own dispatch step.
	processMu    sync.Mutex
	ready        []*process.Process
	running      []*process.Process // len == cfg.NumCPU; nil slot == idle
	coreQuantum  []int
	terminated   []*process.Process
	allProcesses []*process.Process
	byPID        map[string]*process.Process

	// creationMu serializes CreateProcess so arrival sequence numbers
	// are assigned without races, matching the original's creationLock.
	creationMu sync.Mutex
	arrivalSeq int64
	pidCounter int64

	notify chan struct{} // buffered 1, coalescing wake-up signal

	dummyGen     uint32 // atomic bool
	isRunning    uint32 // atomic bool
	quantumCycle uint64 // atomic, incremented once per generator period
	cancel       context.CancelFunc
	group        *errgroup.Group

	rng   *rand.Rand
	rngMu sync.Mutex
}

func storeBool(addr *uint32, v bool) {
	if v {
		atomic.StoreUint32(addr, 1)
	} else {
		atomic.StoreUint32(addr, 0)
	}
}

func loadBool(addr *uint32) bool { return atomic.LoadUint32(addr) != 0 }

// New builds a Scheduler bound to mem. Core workers are not started
// until Start or StartTestMode.
func New(cfg config.Config, mem *memory.Manager) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		mem:     mem,
		running: make([]*process.Process, cfg.NumCPU),
		coreQuantum: make([]int, cfg.NumCPU),
		byPID:   map[string]*process.Process{},
		notify:  make(chan struct{}, 1),
		rng:     rand.New(rand.NewSource(1)),
	}
}

func (s *Scheduler) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// IsRunning reports whether the core workers and generator are active.
func (s *Scheduler) IsRunning() bool { return loadBool(&s.isRunning) }

// Start begins one goroutine per configured core plus the dummy-process
// generator goroutine, supervised by an errgroup. Idempotent: returns
// false if already running.
func (s *Scheduler) Start() bool {
	return s.start(s.generatorLoop)
}

// StartTestMode begins core workers with the denser test-mode
// generator instead of the standard batch generator. Idempotent.
func (s *Scheduler) StartTestMode() bool {
	return s.start(s.testModeGeneratorLoop)
}

func (s *Scheduler) start(generator func(context.Context) error) bool {
	if loadBool(&s.isRunning) {
		return false
	}
	storeBool(&s.isRunning, true)
	storeBool(&s.dummyGen, true)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	s.group = g

	for core := 0; core < s.cfg.NumCPU; core++ {
		core := core
		g.Go(func() error { return s.coreWorkerLoop(gctx, core) })
	}
	g.Go(func() error { return generator(gctx) })

	return true
}

// Stop cooperatively shuts down every core worker and the generator,
// joining them before returning. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	if !loadBool(&s.isRunning) {
		return
	}
	storeBool(&s.isRunning, false)
	s.cancel()
	s.wake()
	_ = s.group.Wait()
}

// EnsureStarted starts the scheduler in its default mode if it is not
// already running, mirroring the original's ensureSchedulerStarted
// convenience wrapper used by createProcess.
func (s *Scheduler) EnsureStarted() {
	if !loadBool(&s.isRunning) {
		s.Start()
	}
}

// EnableDummyGeneration and DisableDummyGeneration toggle the
// background generator; existing processes keep running either way.
func (s *Scheduler) EnableDummyGeneration()  { storeBool(&s.dummyGen, true) }
func (s *Scheduler) DisableDummyGeneration() { storeBool(&s.dummyGen, false) }
func (s *Scheduler) IsDummyGenerationEnabled() bool { return loadBool(&s.dummyGen) }

// coreWorkerLoop is one simulated CPU core: repeatedly dispatch,
// execute one chargeable step, and handle completion/preemption, until
// ctx is cancelled.
func (s *Scheduler) coreWorkerLoop(ctx context.Context, core int) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		proc := s.dispatch(core)
		if proc == nil {
			s.mem.IncrementIdleTick()
			select {
			case <-ctx.Done():
				return nil
			case <-s.notify:
			case <-time.After(idleWaitTimeout):
			}
			continue
		}

		if proc.IsSleeping() {
			woke := proc.TickSleep()
			s.mem.IncrementActiveTick()
			if woke {
				s.requeue(core)
			}
			s.pace()
			continue
		}

		chunk := 1
		if s.cfg.DelayPerExec <= 5 {
			chunk = 8
		}
		for executed := 0; executed < chunk; executed++ {
			result := proc.Step(s.mem)
			s.mem.IncrementActiveTick()

			if result.Completed {
				s.complete(core, proc)
				break
			}
			if proc.IsSleeping() {
				break
			}
			if s.maybePreempt(core, proc) {
				break
			}
		}

		s.pace()
	}
}

func (s *Scheduler) pace() {
	if s.cfg.DelayPerExec > 0 {
		time.Sleep(time.Duration(s.cfg.DelayPerExec) * time.Millisecond)
	} else {
		runtime.Gosched()
	}
}

// dispatch fills an empty core slot from the ready queue under
// the configured policy, returning the process now occupying it (which
// may already have occupied it before this call).
func (s *Scheduler) dispatch(core int) *process.Process {
	s.processMu.Lock()
	defer s.processMu.Unlock()

	if s.running[core] != nil {
		return s.running[core]
	}
	if len(s.ready) == 0 {
		return nil
	}

	var idx int
	switch s.cfg.Scheduler {
	case config.FCFS:
		idx = 0
		for i, p := range s.ready {
			if p.ArrivalSeq() < s.ready[idx].ArrivalSeq() {
				idx = i
			}
		}
	default: // RR and anything else: head of queue
		idx = 0
	}

	proc := s.ready[idx]
	s.ready = append(s.ready[:idx], s.ready[idx+1:]...)
	proc.AssignCore(core)
	s.running[core] = proc
	return proc
}

// requeue clears a core's slot and returns its occupant to the
// tail of the ready queue, transitioning it back to READY.
func (s *Scheduler) requeue(core int) {
	s.processMu.Lock()
	proc := s.running[core]
	s.running[core] = nil
	if proc != nil {
		proc.SetState(process.Ready)
		proc.ClearCore()
		s.ready = append(s.ready, proc)
	}
	s.processMu.Unlock()
	s.wake()
}

// maybePreempt charges the core's RR quantum counter for the one
// instruction just executed and, once it reaches the configured
// threshold, preempts the running process back to the ready queue.
// Charged once per executed instruction (not once per chunk), so a
// fast-path chunk yields mid-chunk exactly at the quantum boundary.
// Reports whether it preempted, so the caller can stop executing this
// process's chunk immediately.
func (s *Scheduler) maybePreempt(core int, proc *process.Process) bool {
	if s.cfg.Scheduler != config.RR {
		return false
	}
	s.processMu.Lock()
	s.coreQuantum[core]++
	if s.coreQuantum[core] < s.cfg.QuantumCycles {
		s.processMu.Unlock()
		return false
	}
	s.coreQuantum[core] = 0
	s.running[core] = nil
	proc.SetState(process.Ready)
	proc.ClearCore()
	s.ready = append(s.ready, proc)
	s.processMu.Unlock()
	s.wake()
	return true
}

// complete finalizes a terminated process: forces
// executedInstructions to totalInstructions, frees its memory, clears
// the core slot, and inserts it into the terminated list sorted by
// arrival sequence so reports are deterministic.
func (s *Scheduler) complete(core int, proc *process.Process) {
	proc.Finish()
	s.mem.Deallocate(proc.PID())

	s.processMu.Lock()
	s.running[core] = nil
	idx := sort.Search(len(s.terminated), func(i int) bool {
		return s.terminated[i].ArrivalSeq() >= proc.ArrivalSeq()
	})
	s.terminated = append(s.terminated, nil)
	copy(s.terminated[idx+1:], s.terminated[idx:])
	s.terminated[idx] = proc
	s.processMu.Unlock()
}

// CreateProcess admits a new process: it validates instructions (if
// given), allocates memory, generates a synthetic program when none is
// supplied, and enqueues it at the tail of the ready queue under a
// strictly monotonic arrival sequence.
func (s *Scheduler) CreateProcess(name string, memSize uint64, instructions []instruction.Instruction) (string, error) {
	s.EnsureStarted()

	if len(instructions) > 50 {
		return "", fmt.Errorf("%w: instructions list must be in [1,50], got %d", procerr.ErrInvalidArgument, len(instructions))
	}

	s.creationMu.Lock()
	defer s.creationMu.Unlock()

	s.pidCounter++
	pid := fmt.Sprintf("p%03d", s.pidCounter)
	if name == "" {
		name = fmt.Sprintf("process%d", s.pidCounter)
	}

	if memSize == 0 {
		var err error
		memSize, err = s.pickRandomMemorySize()
		if err != nil {
			return "", err
		}
	} else if !s.cfg.IsValidMemorySize(memSize) {
		return "", fmt.Errorf("%w: invalid memory size %d", procerr.ErrInvalidArgument, memSize)
	}

	if err := s.mem.Allocate(pid, memSize); err != nil {
		return "", err
	}

	s.arrivalSeq++
	seq := s.arrivalSeq

	var program []instruction.Instruction
	if len(instructions) > 0 {
		program = instructions
	} else {
		count := s.cfg.MinInstructions
		if s.cfg.MaxInstructions > s.cfg.MinInstructions {
			s.rngMu.Lock()
			count += s.rng.Intn(s.cfg.MaxInstructions - s.cfg.MinInstructions + 1)
			s.rngMu.Unlock()
		}
		s.rngMu.Lock()
		gen := instruction.NewGenerator(s.rng, name, memSize)
		program = gen.Generate(count)
		s.rngMu.Unlock()
	}

	proc := process.New(int(s.pidCounter), pid, name, seq, memSize, program)
	proc.SetState(process.Ready)

	s.processMu.Lock()
	s.allProcesses = append(s.allProcesses, proc)
	s.byPID[pid] = proc
	s.byPID[name] = proc
	s.ready = append(s.ready, proc)
	s.processMu.Unlock()
	s.wake()

	return pid, nil
}

// pickRandomMemorySize chooses a uniformly random power-of-two
// size in [MinMemPerProcess, MaxMemPerProcess], matching the original's
// validMemorySizes/sizeDist construction. Caller holds creationMu.
func (s *Scheduler) pickRandomMemorySize() (uint64, error) {
	var sizes []uint64
	for size := s.cfg.MinMemPerProcess; size <= s.cfg.MaxMemPerProcess; size *= 2 {
		if s.cfg.IsValidMemorySize(size) {
			sizes = append(sizes, size)
		}
	}
	if len(sizes) == 0 {
		return 0, fmt.Errorf("%w: no valid memory size in configured range", procerr.ErrConfig)
	}
	s.rngMu.Lock()
	v := sizes[s.rng.Intn(len(sizes))]
	s.rngMu.Unlock()
	return v, nil
}

// Find looks up a process by name or pid (byPID is keyed by both).
func (s *Scheduler) Find(nameOrPID string) (*process.Process, bool) {
	s.processMu.Lock()
	defer s.processMu.Unlock()
	p, ok := s.byPID[nameOrPID]
	return p, ok
}

// AllProcesses returns every process ever admitted, in admission order.
func (s *Scheduler) AllProcesses() []*process.Process {
	s.processMu.Lock()
	defer s.processMu.Unlock()
	out := make([]*process.Process, len(s.allProcesses))
	copy(out, s.allProcesses)
	return out
}

// ListRunning returns the processes currently occupying a core slot,
// indexed by core (nil entries are idle cores).
func (s *Scheduler) ListRunning() []*process.Process {
	s.processMu.Lock()
	defer s.processMu.Unlock()
	out := make([]*process.Process, len(s.running))
	copy(out, s.running)
	return out
}

// ListTerminated returns the terminated list, already sorted by
// arrival sequence.
func (s *Scheduler) ListTerminated() []*process.Process {
	s.processMu.Lock()
	defer s.processMu.Unlock()
	out := make([]*process.Process, len(s.terminated))
	copy(out, s.terminated)
	return out
}

// Status is a point-in-time snapshot of core utilization for the CLI's
// status command and for report generation.
type Status struct {
	TotalCores     int
	CoresUsed      int
	CoresAvailable int
	CPUUtilization float64
	QuantumCycle   uint64
}

// SystemStatus summarizes core utilization, grounded on the original's
// displaySystemStatus.
func (s *Scheduler) SystemStatus() Status {
	s.processMu.Lock()
	busy := 0
	for _, p := range s.running {
		if p != nil {
			busy++
		}
	}
	s.processMu.Unlock()

	total := s.cfg.NumCPU
	return Status{
		TotalCores:     total,
		CoresUsed:      busy,
		CoresAvailable: total - busy,
		CPUUtilization: 100 * float64(busy) / float64(total),
		QuantumCycle:   atomic.LoadUint64(&s.quantumCycle),
	}
}

// LockForTest holds processMu until the returned func is called, so
// tests outside this package can exercise TrySnapshot's contention
// path. Not for production use.
func (s *Scheduler) LockForTest() (unlock func()) {
	s.processMu.Lock()
	return s.processMu.Unlock
}

// ReportSnapshot bundles everything report.ProcessStatus needs from a
// single critical section: core status plus the running and
// terminated lists, all consistent with one another.
type ReportSnapshot struct {
	Status     Status
	Running    []*process.Process
	Terminated []*process.Process
}

// TrySnapshot gathers a ReportSnapshot under a non-blocking lock
// attempt, mirroring the original generateReport's
// processMutex.try_lock(): report generation must never queue behind
// a busy core worker. Returns ok=false on contention.
func (s *Scheduler) TrySnapshot() (ReportSnapshot, bool) {
	if !s.processMu.TryLock() {
		return ReportSnapshot{}, false
	}
	defer s.processMu.Unlock()

	busy := 0
	for _, p := range s.running {
		if p != nil {
			busy++
		}
	}
	total := s.cfg.NumCPU

	running := make([]*process.Process, len(s.running))
	copy(running, s.running)
	terminated := make([]*process.Process, len(s.terminated))
	copy(terminated, s.terminated)

	return ReportSnapshot{
		Status: Status{
			TotalCores:     total,
			CoresUsed:      busy,
			CoresAvailable: total - busy,
			CPUUtilization: 100 * float64(busy) / float64(total),
			QuantumCycle:   atomic.LoadUint64(&s.quantumCycle),
		},
		Running:    running,
		Terminated: terminated,
	}, true
}

// generatorLoop periodically tops up the workload: it measures active
// cores plus queue depth, then creates enough processes to fill idle
// cores plus a small queue slack, scaling up when delayPerExec is very
// small. Grounded on the original's processCreatorThread.
func (s *Scheduler) generatorLoop(ctx context.Context) error {
	period := time.Duration(s.cfg.BatchProcessFreq) * time.Second
	if period <= 0 {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if !loadBool(&s.dummyGen) {
			continue
		}
		atomic.AddUint64(&s.quantumCycle, 1)

		active, queued := s.workload()
		toCreate := s.workloadTarget(active, queued)
		for i := 0; i < toCreate; i++ {
			if _, err := s.CreateProcess("", 0, nil); err != nil {
				break
			}
		}
	}
}

// testModeGeneratorLoop runs a denser, shorter-period generator that
// keeps the workload near 2x the core count, for exercising the
// scheduler without waiting on a realistic batch-process-freq.
// Grounded on the original's testModeProcessCreator.
func (s *Scheduler) testModeGeneratorLoop(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if !loadBool(&s.dummyGen) {
			continue
		}
		atomic.AddUint64(&s.quantumCycle, 1)

		active, queued := s.workload()
		desired := s.cfg.NumCPU * 2
		toCreate := desired - (active + queued)
		if toCreate < 1 {
			toCreate = 1
		}
		for i := 0; i < toCreate; i++ {
			if _, err := s.CreateProcess("", 0, nil); err != nil {
				break
			}
		}
	}
}

// workload returns the current count of occupied core slots and
// ready-queue depth.
func (s *Scheduler) workload() (active, queued int) {
	s.processMu.Lock()
	defer s.processMu.Unlock()
	for _, p := range s.running {
		if p != nil {
			active++
		}
	}
	return active, len(s.ready)
}

// workloadTarget computes how many processes the standard generator
// should create this period, per the original's fill-available-cores
// plus queue-slack heuristic, scaled up for very small delayPerExec.
func (s *Scheduler) workloadTarget(active, queued int) int {
	available := s.cfg.NumCPU - active
	toCreate := 0
	if available > 0 {
		toCreate = available
		if queued < 3 {
			toCreate += 3 - queued
		}
	} else if queued < 2 {
		toCreate = 2 - queued
	}

	if s.cfg.DelayPerExec <= 5 {
		desired := s.cfg.NumCPU + 5
		if total := active + queued; total < desired {
			if d := desired - total; d > toCreate {
				toCreate = d
			}
		}
		if s.cfg.DelayPerExec == 0 && active+queued < s.cfg.NumCPU*2 {
			if toCreate < 2 {
				toCreate = 2
			}
		}
	}
	return toCreate
}
