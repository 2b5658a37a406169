package scheduler

import (
	"testing"

	"github.com/arctir/procsim/internal/config"
	"github.com/arctir/procsim/internal/instruction"
	"github.com/arctir/procsim/internal/memory"
	"github.com/arctir/procsim/internal/process"
)

func newTestScheduler(t *testing.T, cfg config.Config) *Scheduler {
	t.Helper()
	store, err := memory.OpenBackingStore(t.TempDir() + "/backing-store.txt")
	if err != nil {
		t.Fatalf("OpenBackingStore() error = %v", err)
	}
	mem, err := memory.New(memory.Config{
		FrameSize:        cfg.MemPerFrame,
		MaxOverallMemory: cfg.MaxOverallMemory,
		MinAllocation:    cfg.MinMemPerProcess,
		MaxAllocation:    cfg.MaxMemPerProcess,
	}, store)
	if err != nil {
		t.Fatalf("memory.New() error = %v", err)
	}
	s := New(cfg, mem)
	t.Cleanup(s.Stop)
	return s
}

func tinyProgram() []instruction.Instruction {
	return []instruction.Instruction{
		{Kind: instruction.Declare, DeclVar: "x", DeclValue: 0},
	}
}

func TestCreateProcessAssignsMonotonicArrivalSequence(t *testing.T) {
	cfg := config.Default()
	cfg.MaxOverallMemory = 1024
	cfg.MemPerFrame = 64
	cfg.MinMemPerProcess = 64
	cfg.MaxMemPerProcess = 64
	s := newTestScheduler(t, cfg)

	pid1, err := s.CreateProcess("alpha", 64, tinyProgram())
	if err != nil {
		t.Fatalf("CreateProcess(alpha) error = %v", err)
	}
	pid2, err := s.CreateProcess("beta", 64, tinyProgram())
	if err != nil {
		t.Fatalf("CreateProcess(beta) error = %v", err)
	}

	p1, ok := s.Find(pid1)
	if !ok {
		t.Fatalf("Find(%s) = false", pid1)
	}
	p2, ok := s.Find(pid2)
	if !ok {
		t.Fatalf("Find(%s) = false", pid2)
	}
	if p1.ArrivalSeq() >= p2.ArrivalSeq() {
		t.Fatalf("ArrivalSeq: p1=%d p2=%d, want p1 < p2", p1.ArrivalSeq(), p2.ArrivalSeq())
	}
	if p1.ArrivalSeq() != 1 || p2.ArrivalSeq() != 2 {
		t.Fatalf("ArrivalSeq = (%d, %d), want (1, 2)", p1.ArrivalSeq(), p2.ArrivalSeq())
	}
}

func TestCreateProcessRejectsOversizedInstructionList(t *testing.T) {
	cfg := config.Default()
	s := newTestScheduler(t, cfg)

	ins := make([]instruction.Instruction, 51)
	for i := range ins {
		ins[i] = instruction.Instruction{Kind: instruction.Declare, DeclVar: "x", DeclValue: 0}
	}
	if _, err := s.CreateProcess("toolong", cfg.MinMemPerProcess, ins); err == nil {
		t.Fatalf("CreateProcess() error = nil, want error for 51 instructions")
	}
}

func TestCreateProcessRejectsInvalidMemorySize(t *testing.T) {
	cfg := config.Default()
	s := newTestScheduler(t, cfg)

	if _, err := s.CreateProcess("bad", cfg.MinMemPerProcess+1, tinyProgram()); err == nil {
		t.Fatalf("CreateProcess() error = nil, want error for non-power-of-two size")
	}
}

func TestFCFSDispatchPicksSmallestArrivalSequence(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler = config.FCFS
	cfg.MaxOverallMemory = 1024
	cfg.MemPerFrame = 64
	cfg.MinMemPerProcess = 64
	cfg.MaxMemPerProcess = 64
	s := newTestScheduler(t, cfg)

	// Build the ready queue directly, out of arrival order, to isolate
	// dispatch() from CreateProcess's own queueing.
	older := process.New(1, "p001", "older", 1, 64, tinyProgram())
	newer := process.New(2, "p002", "newer", 2, 64, tinyProgram())
	older.SetState(process.Ready)
	newer.SetState(process.Ready)
	s.ready = []*process.Process{newer, older}

	got := s.dispatch(0)
	if got != older {
		t.Fatalf("dispatch() picked %s, want the process with the smaller arrival sequence", got.PID())
	}
	if got.State() != process.Running || got.Core() != 0 {
		t.Fatalf("dispatch() state=%v core=%d, want Running on core 0", got.State(), got.Core())
	}
	if len(s.ready) != 1 || s.ready[0] != newer {
		t.Fatalf("ready queue after dispatch = %v, want only the newer process left", s.ready)
	}
}

func TestRRDispatchPopsHeadRegardlessOfArrival(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler = config.RR
	s := newTestScheduler(t, cfg)

	older := process.New(1, "p001", "older", 1, 64, tinyProgram())
	newer := process.New(2, "p002", "newer", 5, 64, tinyProgram())
	s.ready = []*process.Process{newer, older}

	got := s.dispatch(0)
	if got != newer {
		t.Fatalf("dispatch() under RR picked %s, want the queue head regardless of arrival seq", got.PID())
	}
}

func TestMaybePreemptRequeuesAtQuantum(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler = config.RR
	cfg.QuantumCycles = 2
	s := newTestScheduler(t, cfg)

	proc := process.New(1, "p001", "alpha", 1, 64, tinyProgram())
	proc.AssignCore(0)
	s.running[0] = proc

	s.maybePreempt(0, proc)
	if s.running[0] != proc {
		t.Fatalf("process preempted after 1 of 2 quantum ticks")
	}

	s.maybePreempt(0, proc)
	if s.running[0] != nil {
		t.Fatalf("running[0] = %v, want nil after quantum exhausted", s.running[0])
	}
	if proc.State() != process.Ready {
		t.Fatalf("State() = %v, want Ready after preemption", proc.State())
	}
	if len(s.ready) != 1 || s.ready[0] != proc {
		t.Fatalf("ready queue after preemption = %v, want [proc]", s.ready)
	}
}

func TestMaybePreemptIsNoopUnderFCFS(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler = config.FCFS
	cfg.QuantumCycles = 1
	s := newTestScheduler(t, cfg)

	proc := process.New(1, "p001", "alpha", 1, 64, tinyProgram())
	proc.AssignCore(0)
	s.running[0] = proc

	s.maybePreempt(0, proc)
	if s.running[0] != proc {
		t.Fatalf("FCFS process was preempted, want it to remain running until completion")
	}
}

func TestCompleteInsertsSortedByArrivalSequence(t *testing.T) {
	cfg := config.Default()
	cfg.MaxOverallMemory = 1024
	cfg.MemPerFrame = 64
	cfg.MinMemPerProcess = 64
	cfg.MaxMemPerProcess = 64
	s := newTestScheduler(t, cfg)

	early := process.New(1, "p001", "early", 1, 64, tinyProgram())
	late := process.New(2, "p002", "late", 5, 64, tinyProgram())
	if err := s.mem.Allocate("p001", 64); err != nil {
		t.Fatalf("Allocate(p001) error = %v", err)
	}
	if err := s.mem.Allocate("p002", 64); err != nil {
		t.Fatalf("Allocate(p002) error = %v", err)
	}
	s.running[0] = late
	s.running[1] = early

	// Complete out of arrival order; the terminated list must still come
	// out sorted by arrival sequence.
	s.complete(0, late)
	s.complete(1, early)

	terminated := s.ListTerminated()
	if len(terminated) != 2 {
		t.Fatalf("len(ListTerminated()) = %d, want 2", len(terminated))
	}
	if terminated[0] != early || terminated[1] != late {
		t.Fatalf("ListTerminated() order = [%s, %s], want [early, late]", terminated[0].PID(), terminated[1].PID())
	}
	if early.ExecutedInstructions() != early.TotalInstructions() {
		t.Fatalf("ExecutedInstructions() = %d, want %d (forced on completion)", early.ExecutedInstructions(), early.TotalInstructions())
	}
}

func TestSystemStatusReflectsBusyCores(t *testing.T) {
	cfg := config.Default()
	cfg.NumCPU = 4
	s := newTestScheduler(t, cfg)

	s.running[0] = process.New(1, "p001", "alpha", 1, 64, tinyProgram())
	s.running[2] = process.New(2, "p002", "beta", 2, 64, tinyProgram())

	status := s.SystemStatus()
	if status.TotalCores != 4 || status.CoresUsed != 2 || status.CoresAvailable != 2 {
		t.Fatalf("SystemStatus() = %+v, want TotalCores=4 CoresUsed=2 CoresAvailable=2", status)
	}
	if status.CPUUtilization != 50 {
		t.Fatalf("CPUUtilization = %v, want 50", status.CPUUtilization)
	}
}

func TestWorkloadTargetFillsAvailableCoresPlusSlack(t *testing.T) {
	cfg := config.Default()
	cfg.NumCPU = 4
	cfg.DelayPerExec = 100
	s := newTestScheduler(t, cfg)

	// 1 active core, empty queue: fill the 3 remaining cores plus slack
	// up to a queue of 3.
	got := s.workloadTarget(1, 0)
	if got != 6 {
		t.Fatalf("workloadTarget(1, 0) = %d, want 6 (3 available cores + 3 queue slack)", got)
	}

	// All cores busy, queue already at 2: no new processes needed.
	got = s.workloadTarget(4, 2)
	if got != 0 {
		t.Fatalf("workloadTarget(4, 2) = %d, want 0", got)
	}
}
