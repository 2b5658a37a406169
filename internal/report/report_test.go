package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/arctir/procsim/internal/config"
	"github.com/arctir/procsim/internal/instruction"
	"github.com/arctir/procsim/internal/memory"
	"github.com/arctir/procsim/internal/procerr"
	"github.com/arctir/procsim/internal/scheduler"
)

func newTestManager(t *testing.T) *memory.Manager {
	t.Helper()
	store, err := memory.OpenBackingStore(t.TempDir() + "/backing-store.txt")
	if err != nil {
		t.Fatalf("OpenBackingStore() error = %v", err)
	}
	mem, err := memory.New(memory.Config{
		FrameSize:        64,
		MaxOverallMemory: 1024,
		MinAllocation:    64,
		MaxAllocation:    64,
	}, store)
	if err != nil {
		t.Fatalf("memory.New() error = %v", err)
	}
	return mem
}

func tinyProgram() []instruction.Instruction {
	return []instruction.Instruction{
		{Kind: instruction.Declare, DeclVar: "x", DeclValue: 0},
	}
}

func TestProcessStatusRendersEmptyQueues(t *testing.T) {
	cfg := config.Default()
	cfg.NumCPU = 2
	mem := newTestManager(t)
	s := scheduler.New(cfg, mem)
	t.Cleanup(s.Stop)

	raw, err := ProcessStatus(s)
	if err != nil {
		t.Fatalf("ProcessStatus() error = %v", err)
	}
	out := string(raw)
	if !strings.Contains(out, "No processes currently running.") {
		t.Fatalf("ProcessStatus() = %q, want the idle-running placeholder", out)
	}
	if !strings.Contains(out, "No processes have finished yet.") {
		t.Fatalf("ProcessStatus() = %q, want the idle-finished placeholder", out)
	}
	if !strings.Contains(out, "Total Cores      : 2") {
		t.Fatalf("ProcessStatus() = %q, want Total Cores : 2", out)
	}
	if !strings.Contains(out, "Generated: ") {
		t.Fatalf("ProcessStatus() = %q, want a Generated: timestamp header", out)
	}
}

func TestProcessStatusListsRunningAndFinishedProcesses(t *testing.T) {
	cfg := config.Default()
	cfg.NumCPU = 2
	cfg.MaxOverallMemory = 1024
	cfg.MemPerFrame = 64
	cfg.MinMemPerProcess = 64
	cfg.MaxMemPerProcess = 64
	mem := newTestManager(t)
	s := scheduler.New(cfg, mem)
	t.Cleanup(s.Stop)

	pid, err := s.CreateProcess("alpha", 64, tinyProgram())
	if err != nil {
		t.Fatalf("CreateProcess() error = %v", err)
	}
	proc, ok := s.Find(pid)
	if !ok {
		t.Fatalf("Find(%s) = false", pid)
	}
	proc.AssignCore(0)

	raw, err := ProcessStatus(s)
	if err != nil {
		t.Fatalf("ProcessStatus() error = %v", err)
	}
	out := string(raw)
	if !strings.Contains(out, "alpha") {
		t.Fatalf("ProcessStatus() = %q, want it to mention the running process by name", out)
	}
}

func TestProcessStatusReturnsTransientBusyUnderContention(t *testing.T) {
	cfg := config.Default()
	cfg.NumCPU = 2
	mem := newTestManager(t)
	s := scheduler.New(cfg, mem)
	t.Cleanup(s.Stop)

	unlock := s.LockForTest()
	defer unlock()

	_, err := ProcessStatus(s)
	if !errors.Is(err, procerr.ErrTransientBusy) {
		t.Fatalf("ProcessStatus() error = %v, want procerr.ErrTransientBusy", err)
	}
}

func TestVMStatRendersCounters(t *testing.T) {
	mem := newTestManager(t)
	if err := mem.Allocate("p1", 64); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	out := string(VMStat(mem))
	if !strings.Contains(out, "vmstat:") {
		t.Fatalf("VMStat() = %q, want a vmstat header", out)
	}
	if !strings.Contains(out, "used bytes") || !strings.Contains(out, "page faults") {
		t.Fatalf("VMStat() = %q, want used-bytes and page-fault rows", out)
	}
}

func TestSnapshotReportsCountsAndMemory(t *testing.T) {
	cfg := config.Default()
	cfg.MaxOverallMemory = 1024
	cfg.MemPerFrame = 64
	cfg.MinMemPerProcess = 64
	cfg.MaxMemPerProcess = 64
	mem := newTestManager(t)
	s := scheduler.New(cfg, mem)
	t.Cleanup(s.Stop)

	if _, err := s.CreateProcess("alpha", 64, tinyProgram()); err != nil {
		t.Fatalf("CreateProcess() error = %v", err)
	}

	out := string(Snapshot(s, mem))
	if !strings.Contains(out, "Processes admitted: 1") {
		t.Fatalf("Snapshot() = %q, want Processes admitted: 1", out)
	}
}

func TestWriteBackingStoreFormatRendersHexDump(t *testing.T) {
	var buf bytes.Buffer
	data := []byte{0xde, 0xad, 0xbe, 0xef}
	if err := WriteBackingStoreFormat(&buf, "p001", 3, 2, data); err != nil {
		t.Fatalf("WriteBackingStoreFormat() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "EVICTED: Process=p001 Page=3 Frame=2") {
		t.Fatalf("WriteBackingStoreFormat() = %q, want an EVICTED header line", out)
	}
	if !strings.Contains(out, "de ad be ef") {
		t.Fatalf("WriteBackingStoreFormat() = %q, want the hex dump of the evicted bytes", out)
	}
}
