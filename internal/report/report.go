// Package report renders the scheduler and memory manager's state into
// the human-readable tables and vmstat-style summaries a caller
// (typically the CLI) writes to a terminal or a file. Table rendering
// is grounded on proctor/cmd/cmd.go's createTableListOutput /
// createTableSingleOutput: buffer + tablewriter.NewWriter +
// SetHeader/AppendBulk/Render.
package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/arctir/procsim/internal/clock"
	"github.com/arctir/procsim/internal/memory"
	"github.com/arctir/procsim/internal/procerr"
	"github.com/arctir/procsim/internal/process"
	"github.com/arctir/procsim/internal/scheduler"
)

// ProcessStatus renders the CPU-status block plus running and finished
// process tables, matching the original's displaySystemStatus /
// displayProcesses / generateReport layout. Gathers its data via a
// non-blocking snapshot, matching the original generateReport's
// processMutex.try_lock(): report generation never queues behind a
// busy core worker. Returns a wrapped procerr.ErrTransientBusy when
// the lock is currently held.
func ProcessStatus(s *scheduler.Scheduler) ([]byte, error) {
	snap, ok := s.TrySnapshot()
	if !ok {
		return nil, fmt.Errorf("%w: system busy, please try generating report again", procerr.ErrTransientBusy)
	}

	var buf bytes.Buffer

	fmt.Fprintln(&buf, "procsim OS Emulator Report")
	fmt.Fprintf(&buf, "Generated: %s\n", clock.Timestamp())

	fmt.Fprintln(&buf, "---------------------------------------------")
	fmt.Fprintln(&buf, "CPU Status:")
	fmt.Fprintf(&buf, "Total Cores      : %d\n", snap.Status.TotalCores)
	fmt.Fprintf(&buf, "Cores Used       : %d\n", snap.Status.CoresUsed)
	fmt.Fprintf(&buf, "Cores Available  : %d\n", snap.Status.CoresAvailable)
	fmt.Fprintf(&buf, "CPU Utilization  : %d%%\n", int(snap.Status.CPUUtilization))
	fmt.Fprintln(&buf)

	fmt.Fprintln(&buf, "---------------------------------------------")
	fmt.Fprintln(&buf, "Running processes:")
	writeRunningTable(&buf, snap.Running)

	fmt.Fprintln(&buf)
	fmt.Fprintln(&buf, "Finished processes:")
	writeFinishedTable(&buf, snap.Terminated)
	fmt.Fprintln(&buf, "---------------------------------------------")

	return buf.Bytes(), nil
}

func writeRunningTable(w io.Writer, running []*process.Process) {
	rows := make([][]string, 0, len(running))
	for core, p := range running {
		if p == nil {
			continue
		}
		rows = append(rows, []string{
			p.Name(),
			p.CreationTimestamp(),
			strconv.Itoa(core),
			fmt.Sprintf("%d / %d", p.ExecutedInstructions(), p.TotalInstructions()),
		})
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "No processes currently running.")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"name", "started", "core", "progress"})
	table.AppendBulk(rows)
	table.Render()
}

func writeFinishedTable(w io.Writer, terminated []*process.Process) {
	if len(terminated) == 0 {
		fmt.Fprintln(w, "No processes have finished yet.")
		return
	}
	rows := make([][]string, 0, len(terminated))
	for _, p := range terminated {
		status := "Finished"
		if p.HasViolation() {
			status = "Violation"
		}
		rows = append(rows, []string{
			p.Name(),
			p.CompletionTimestamp(),
			status,
			fmt.Sprintf("%d / %d", p.ExecutedInstructions(), p.TotalInstructions()),
		})
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"name", "finished", "status", "progress"})
	table.AppendBulk(rows)
	table.Render()
}

// VMStat renders the memory manager's counters: total/used/free bytes,
// active/idle CPU ticks, and page-fault/in/out counts. Grounded on the
// original's generateVmstatReport.
func VMStat(mem *memory.Manager) []byte {
	var buf bytes.Buffer
	c := mem.Snapshot()

	fmt.Fprintln(&buf, "---------------------------------------------")
	fmt.Fprintln(&buf, "vmstat:")
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"metric", "value"})
	table.AppendBulk([][]string{
		{"total ticks", strconv.FormatUint(c.TotalTicks, 10)},
		{"active ticks", strconv.FormatUint(c.ActiveTicks, 10)},
		{"idle ticks", strconv.FormatUint(c.IdleTicks, 10)},
		{"used bytes", strconv.FormatUint(c.UsedBytes, 10)},
		{"free bytes", strconv.FormatUint(c.FreeBytes, 10)},
		{"page faults", strconv.FormatUint(c.PageFaults, 10)},
		{"pages in", strconv.FormatUint(c.PagesIn, 10)},
		{"pages out", strconv.FormatUint(c.PagesOut, 10)},
	})
	table.Render()
	fmt.Fprintln(&buf, "---------------------------------------------")
	return buf.Bytes()
}

// Snapshot is a point-in-time render of cores used out of total, the
// quantum cycle, the admitted and finished process counts, and memory
// in use with the free frame count — used by the CLI's live status
// view. It lists no individual processes and does not show the ready
// queue's size or ordering.
func Snapshot(s *scheduler.Scheduler, mem *memory.Manager) []byte {
	var buf bytes.Buffer
	status := s.SystemStatus()
	all := s.AllProcesses()
	terminated := s.ListTerminated()

	fmt.Fprintln(&buf, "---------------------------------------------")
	fmt.Fprintln(&buf, "System snapshot:")
	fmt.Fprintf(&buf, "Cores             : %d used / %d total\n", status.CoresUsed, status.TotalCores)
	fmt.Fprintf(&buf, "Quantum cycle     : %d\n", status.QuantumCycle)
	fmt.Fprintf(&buf, "Processes admitted: %d\n", len(all))
	fmt.Fprintf(&buf, "Processes finished: %d\n", len(terminated))
	used := mem.UsedBytes()
	fmt.Fprintf(&buf, "Memory in use     : %d bytes (%d frames free)\n", used, mem.FreeFrameCount())
	fmt.Fprintln(&buf, "---------------------------------------------")
	return buf.Bytes()
}

// WriteBackingStoreFormat renders a single eviction record in the exact
// text layout internal/memory.BackingStore.Append writes, for callers
// that want to display a record outside the memory package (e.g., a CLI
// "inspect backing store" command). Not used internally by the memory
// manager itself, which writes directly.
func WriteBackingStoreFormat(w io.Writer, pid string, vpn uint32, frameIndex int, data []byte) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "EVICTED: Process=%s Page=%d Frame=%d\n", pid, vpn, frameIndex); err != nil {
		return err
	}
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		for j, b := range data[i:end] {
			if j > 0 {
				fmt.Fprint(bw, " ")
			}
			fmt.Fprintf(bw, "%02x", b)
		}
		fmt.Fprintln(bw)
	}
	fmt.Fprintln(bw)
	return bw.Flush()
}
