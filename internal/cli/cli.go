// Package cli wires the scheduler, memory manager, and report packages
// into a non-interactive cobra command tree, grounded on
// proctor/cmd/cmd.go's SetupCLI/runXxx/outputErrorAndFail structure.
// It is intentionally thin: the original's interactive screen -r/-s
// session views and ASCII banner are an explicit Non-goal and have no
// counterpart here.
package cli

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arctir/procsim/internal/clock"
	"github.com/arctir/procsim/internal/config"
	"github.com/arctir/procsim/internal/instruction"
	"github.com/arctir/procsim/internal/memory"
	"github.com/arctir/procsim/internal/report"
	"github.com/arctir/procsim/internal/scheduler"
)

// session bundles a scheduler and its memory manager, the unit every
// command needs to do useful work.
type session struct {
	cfg config.Config
	mem *memory.Manager
	sch *scheduler.Scheduler
}

// newSession loads cfg (or Default()) and builds a fresh memory manager
// and scheduler against a backing store file. Every CLI invocation
// starts from a clean simulated machine; there is no daemon process
// shared across separate procsim invocations, matching the thin-shell
// framing this command tree is scoped to.
func newSession(configPath string) (*session, error) {
	var cfg config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else if _, statErr := os.Stat(config.DefaultPath()); statErr == nil {
		cfg, err = config.Load(config.DefaultPath())
	} else {
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("failed loading config: %s", err)
	}

	storePath := config.DefaultBackingStorePath()
	if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed preparing backing store directory: %s", err)
	}
	store, err := memory.OpenBackingStore(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed opening backing store: %s", err)
	}

	mem, err := memory.New(memory.Config{
		FrameSize:        cfg.MemPerFrame,
		MaxOverallMemory: cfg.MaxOverallMemory,
		MinAllocation:    cfg.MinMemPerProcess,
		MaxAllocation:    cfg.MaxMemPerProcess,
	}, store)
	if err != nil {
		return nil, fmt.Errorf("failed constructing memory manager: %s", err)
	}

	sch := scheduler.New(cfg, mem)
	return &session{cfg: cfg, mem: mem, sch: sch}, nil
}

func runProcsim(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		cmd.Help()
		os.Exit(0)
	}
}

func runProcess(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		cmd.Help()
		os.Exit(0)
	}
}

// runRun defines `procsim run`: start the scheduler against a config
// file and run until interrupted (SIGINT/SIGTERM) or --ticks generator
// ticks have elapsed, then print a final process-status report.
func runRun(cmd *cobra.Command, args []string) {
	opts := newRunOpts(cmd.Flags())
	sess, err := newSession(opts.configPath)
	if err != nil {
		outputErrorAndFail(err.Error())
	}

	sess.sch.EnableDummyGeneration()
	if opts.testMode {
		sess.sch.StartTestMode()
	} else {
		sess.sch.Start()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	if opts.ticks > 0 {
		deadline := time.Duration(opts.ticks) * time.Duration(sess.cfg.BatchProcessFreq) * time.Second
		select {
		case <-time.After(deadline):
		case <-stop:
		}
	} else {
		<-stop
	}

	sess.sch.Stop()
	out, err := report.ProcessStatus(sess.sch)
	if err != nil {
		outputErrorAndFail(err.Error())
	}
	output(out)
}

// runCreateProcess defines `procsim process create [name]`: admit one
// process into a fresh scheduler instance and report its admission.
func runCreateProcess(cmd *cobra.Command, args []string) {
	opts := newCreateOpts(cmd.Flags())
	if opts.name == "" && len(args) > 0 {
		opts.name = args[0]
	}

	sess, err := newSession("")
	if err != nil {
		outputErrorAndFail(err.Error())
	}

	memSize := opts.memSize
	var program []instruction.Instruction
	if opts.ins > 0 {
		if memSize == 0 {
			memSize = sess.cfg.MinMemPerProcess
		}
		program = instruction.NewGenerator(nil, opts.name, memSize).Generate(opts.ins)
	}

	pid, err := sess.sch.CreateProcess(opts.name, memSize, program)
	if err != nil {
		outputErrorAndFail(fmt.Sprintf("failed creating process: %s", err))
	}

	proc, ok := sess.sch.Find(pid)
	if !ok {
		outputErrorAndFail(fmt.Sprintf("created process %s but could not look it up", pid))
	}
	output([]byte(fmt.Sprintf("created %s (%s) with %d bytes and %d instructions\n",
		proc.Name(), proc.PID(), proc.AllocatedBytes(), proc.TotalInstructions())))
}

// runListProcesses defines `procsim process ls`: run a short simulation
// burst with the test-mode generator and print the process-status
// report (running processes by core, finished processes by arrival).
// Processes still waiting in the ready queue are not listed.
func runListProcesses(cmd *cobra.Command, args []string) {
	sess, err := newSession("")
	if err != nil {
		outputErrorAndFail(err.Error())
	}
	sess.sch.EnableDummyGeneration()
	sess.sch.StartTestMode()
	time.Sleep(2 * time.Second)
	sess.sch.Stop()

	out, err := report.ProcessStatus(sess.sch)
	if err != nil {
		outputErrorAndFail(err.Error())
	}
	output(out)
}

// runGetProcess defines `procsim process get [name-or-pid]`.
func runGetProcess(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		cmd.Help()
		os.Exit(0)
	}
	sess, err := newSession("")
	if err != nil {
		outputErrorAndFail(err.Error())
	}
	sess.sch.EnableDummyGeneration()
	sess.sch.StartTestMode()
	time.Sleep(2 * time.Second)
	sess.sch.Stop()

	proc, ok := sess.sch.Find(args[0])
	if !ok {
		outputErrorAndFail(fmt.Sprintf("no process found matching %q", args[0]))
	}
	msg := proc.ViolationMessage()
	if msg == "" {
		msg = "no violation"
	}
	output([]byte(fmt.Sprintf("pid=%s name=%s state=%s progress=%d/%d completed=%s violation=%s\n",
		proc.PID(), proc.Name(), proc.State(), proc.ExecutedInstructions(), proc.TotalInstructions(),
		proc.CompletionTimestamp(), msg)))
}

// runStatus defines `procsim status`.
func runStatus(cmd *cobra.Command, args []string) {
	opts := newStatusOpts(cmd.Flags())
	sess, err := newSession("")
	if err != nil {
		outputErrorAndFail(err.Error())
	}
	sess.sch.EnableDummyGeneration()
	sess.sch.StartTestMode()
	time.Sleep(1 * time.Second)
	sess.sch.Stop()

	out := report.Snapshot(sess.sch, sess.mem)
	if opts.host {
		out = append(out, hostSummary()...)
	}
	output(out)
}

// runReport defines `procsim report [path]`: write either the
// process-status report or, with --vmstat, the vmstat-style memory
// report to the given path (or stdout when path is omitted).
func runReport(cmd *cobra.Command, args []string) {
	opts := newReportOpts(cmd.Flags())
	sess, err := newSession("")
	if err != nil {
		outputErrorAndFail(err.Error())
	}
	sess.sch.EnableDummyGeneration()
	sess.sch.StartTestMode()
	time.Sleep(2 * time.Second)
	sess.sch.Stop()

	var out []byte
	if opts.vmstat {
		out = report.VMStat(sess.mem)
	} else {
		var err error
		out, err = report.ProcessStatus(sess.sch)
		if err != nil {
			outputErrorAndFail(err.Error())
		}
	}

	if len(args) == 0 {
		output(out)
		return
	}
	path := args[0]
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		outputErrorAndFail(fmt.Sprintf("failed preparing report directory: %s", err))
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		outputErrorAndFail(fmt.Sprintf("failed writing report: %s", err))
	}
}

// runInspectBackingStore defines `procsim memory inspect-backing-store
// <pid> <vpn>`: print the latest evicted-page record for a process's
// virtual page directly from the backing store, without faulting the
// page back into a frame.
func runInspectBackingStore(cmd *cobra.Command, args []string) {
	if len(args) != 2 {
		cmd.Help()
		os.Exit(0)
	}
	pid := args[0]
	vpn, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		outputErrorAndFail(fmt.Sprintf("invalid vpn %q: %s", args[1], err))
	}

	sess, err := newSession("")
	if err != nil {
		outputErrorAndFail(err.Error())
	}

	frameIndex, data, ok := sess.mem.InspectBackingStore(pid, uint32(vpn))
	if !ok {
		outputErrorAndFail(fmt.Sprintf("no backing-store record found for process=%s page=%d", pid, vpn))
	}

	var buf bytes.Buffer
	if err := report.WriteBackingStoreFormat(&buf, pid, uint32(vpn), frameIndex, data); err != nil {
		outputErrorAndFail(fmt.Sprintf("failed formatting backing-store record: %s", err))
	}
	output(buf.Bytes())
}

func output(out []byte) {
	fmt.Printf("%s", out)
}

func outputErrorAndFail(msg string) {
	fmt.Println(msg)
	os.Exit(1)
}

// hostSummary renders the real machine's kernel release and CPU count
// alongside the simulated status, for `procsim status --host`.
func hostSummary() []byte {
	h := clock.ReadHostSummary()
	return []byte(fmt.Sprintf("Host kernel       : %s\nHost CPU count    : %d\n---------------------------------------------\n",
		h.KernelRelease, h.CPUCount))
}
