package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// DefaultPath returns the location procsim looks for a config file when
// none is given on the command line: $XDG_CONFIG_HOME/procsim/config.txt.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "procsim", "config.txt")
}

// DefaultBackingStorePath returns the default backing-store log location:
// $XDG_STATE_HOME/procsim/backing-store.txt.
func DefaultBackingStorePath() string {
	return filepath.Join(xdg.StateHome, "procsim", "backing-store.txt")
}

// DefaultReportPath returns the default report output location:
// $XDG_STATE_HOME/procsim/report.txt.
func DefaultReportPath() string {
	return filepath.Join(xdg.StateHome, "procsim", "report.txt")
}
