package cli

import "testing"

func TestSetupCLIWiresSubcommands(t *testing.T) {
	root := SetupCLI()
	if root.Use != "procsim" {
		t.Fatalf("root.Use = %q, want procsim", root.Use)
	}

	want := map[string]bool{"run": false, "process": false, "status": false, "report [path]": false, "memory": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Use]; ok {
			want[c.Use] = true
		}
	}
	for use, found := range want {
		if !found {
			t.Fatalf("SetupCLI() did not attach subcommand %q", use)
		}
	}

	procCmds := map[string]bool{"create [name]": false, "list": false, "get [name-or-pid]": false}
	for _, c := range processCmd.Commands() {
		if _, ok := procCmds[c.Use]; ok {
			procCmds[c.Use] = true
		}
	}
	for use, found := range procCmds {
		if !found {
			t.Fatalf("SetupCLI() did not attach process subcommand %q", use)
		}
	}

	memCmds := map[string]bool{"inspect-backing-store <pid> <vpn>": false}
	for _, c := range memoryCmd.Commands() {
		if _, ok := memCmds[c.Use]; ok {
			memCmds[c.Use] = true
		}
	}
	for use, found := range memCmds {
		if !found {
			t.Fatalf("SetupCLI() did not attach memory subcommand %q", use)
		}
	}
}

func TestNewCreateOptsReadsFlags(t *testing.T) {
	// createCmd's flags are registered by this package's init(); reset
	// them to known values before reading.
	if err := createCmd.Flags().Set(nameFlag, "alpha"); err != nil {
		t.Fatalf("Set(%s) error = %v", nameFlag, err)
	}
	if err := createCmd.Flags().Set(memSizeFlag, "256"); err != nil {
		t.Fatalf("Set(%s) error = %v", memSizeFlag, err)
	}
	if err := createCmd.Flags().Set(insFlag, "10"); err != nil {
		t.Fatalf("Set(%s) error = %v", insFlag, err)
	}

	opts := newCreateOpts(createCmd.Flags())
	if opts.name != "alpha" || opts.memSize != 256 || opts.ins != 10 {
		t.Fatalf("newCreateOpts() = %+v, want {alpha 256 10}", opts)
	}
}

func TestNewRunOptsDefaults(t *testing.T) {
	opts := newRunOpts(runCmd.Flags())
	if opts.configPath != "" || opts.ticks != 0 || opts.testMode != false {
		t.Fatalf("newRunOpts() = %+v, want zero values before flags are set", opts)
	}
}
