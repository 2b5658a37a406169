package cli

import (
	"github.com/spf13/cobra"
)

var procsimCmd = &cobra.Command{
	Use:   "procsim",
	Short: "A CPU, memory, and process scheduler emulator for coursework-scale OS simulation.",
	Run:   runProcsim,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the scheduler against a config file and run until interrupted or --ticks elapses.",
	Run:   runRun,
}

var processCmd = &cobra.Command{
	Use:     "process",
	Aliases: []string{"ps"},
	Short:   "Create and inspect simulated processes.",
	Run:     runProcess,
}

var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Admit a new process into the scheduler.",
	Run:   runCreateProcess,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Run a short simulation burst and list the running and finished processes.",
	Run:     runListProcesses,
}

var getCmd = &cobra.Command{
	Use:   "get [name-or-pid]",
	Short: "Retrieve a single process's details by name or PID.",
	Run:   runGetProcess,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a point-in-time snapshot of core utilization and process counts.",
	Run:   runStatus,
}

var reportCmd = &cobra.Command{
	Use:   "report [path]",
	Short: "Write a process-status or vmstat report to a file.",
	Run:   runReport,
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect the memory manager's backing store.",
	Run:   runProcess,
}

var inspectBackingStoreCmd = &cobra.Command{
	Use:   "inspect-backing-store <pid> <vpn>",
	Short: "Print the latest evicted-page record for a process's page, without faulting it back in.",
	Run:   runInspectBackingStore,
}

// SetupCLI builds the procsim cobra command tree.
func SetupCLI() *cobra.Command {
	procsimCmd.AddCommand(runCmd)
	procsimCmd.AddCommand(processCmd)
	procsimCmd.AddCommand(statusCmd)
	procsimCmd.AddCommand(reportCmd)
	procsimCmd.AddCommand(memoryCmd)
	processCmd.AddCommand(createCmd)
	processCmd.AddCommand(listCmd)
	processCmd.AddCommand(getCmd)
	memoryCmd.AddCommand(inspectBackingStoreCmd)

	return procsimCmd
}
