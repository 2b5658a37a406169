package cli

import "github.com/spf13/pflag"

const (
	configFlag   = "config"
	ticksFlag    = "ticks"
	testModeFlag = "test-mode"

	nameFlag    = "name"
	memSizeFlag = "mem-size"
	insFlag     = "ins"

	vmstatFlag = "vmstat"
	hostFlag   = "host"
)

// runOpts holds the flags for `procsim run`.
type runOpts struct {
	configPath string
	ticks      int
	testMode   bool
}

// createOpts holds the flags for `procsim process create`.
type createOpts struct {
	name    string
	memSize uint64
	ins     int
}

// reportOpts holds the flags for `procsim report`.
type reportOpts struct {
	vmstat bool
}

// statusOpts holds the flags for `procsim status`.
type statusOpts struct {
	host bool
}

func newRunOpts(fs *pflag.FlagSet) runOpts {
	configPath, _ := fs.GetString(configFlag)
	ticks, _ := fs.GetInt(ticksFlag)
	testMode, _ := fs.GetBool(testModeFlag)
	return runOpts{configPath: configPath, ticks: ticks, testMode: testMode}
}

func newCreateOpts(fs *pflag.FlagSet) createOpts {
	name, _ := fs.GetString(nameFlag)
	memSize, _ := fs.GetUint64(memSizeFlag)
	ins, _ := fs.GetInt(insFlag)
	return createOpts{name: name, memSize: memSize, ins: ins}
}

func newReportOpts(fs *pflag.FlagSet) reportOpts {
	vmstat, _ := fs.GetBool(vmstatFlag)
	return reportOpts{vmstat: vmstat}
}

func newStatusOpts(fs *pflag.FlagSet) statusOpts {
	host, _ := fs.GetBool(hostFlag)
	return statusOpts{host: host}
}

func init() {
	runCmd.Flags().String(configFlag, "", "Path to a config file. Defaults to built-in settings when omitted.")
	runCmd.Flags().Int(ticksFlag, 0, "Stop after this many generator ticks. 0 runs until interrupted.")
	runCmd.Flags().Bool(testModeFlag, false, "Use the denser test-mode process generator instead of the standard one.")

	createCmd.Flags().String(nameFlag, "", "Process name. A name is generated when omitted.")
	createCmd.Flags().Uint64(memSizeFlag, 0, "Requested memory size in bytes (power of two). When omitted, a random valid size is chosen, or the configured minimum when --ins is set.")
	createCmd.Flags().Int(insFlag, 0, "Exact instruction count to generate. A random count within the configured range is chosen when omitted.")

	reportCmd.Flags().Bool(vmstatFlag, false, "Render the vmstat-style memory report instead of the process-status report.")

	statusCmd.Flags().Bool(hostFlag, false, "Include the host's kernel release and CPU count alongside the simulated status.")
}
