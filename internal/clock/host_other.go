//go:build !linux

package clock

import "runtime"

// HostSummary is a short description of the real machine procsim is
// running on: kernel release and logical CPU count.
type HostSummary struct {
	KernelRelease string
	CPUCount      int
}

// ReadHostSummary falls back to runtime.NumCPU on non-Linux platforms,
// where /proc/cpuinfo and uname(2) are not available the way
// golang.org/x/sys/unix exposes them.
func ReadHostSummary() HostSummary {
	return HostSummary{
		KernelRelease: "unknown",
		CPUCount:      runtime.NumCPU(),
	}
}
