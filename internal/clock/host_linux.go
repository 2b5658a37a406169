//go:build linux

// Raw host CPU/kernel introspection backing `procsim status --host`,
// mirroring host/host.go's GetHardware/GetKernel use of
// golang.org/x/sys/unix. Kept separate from the simulated scheduler's
// own NumCPU config so the two are never confused: this reports what
// the real machine has, not what the simulation was configured with.
package clock

import (
	"bufio"
	"bytes"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// HostSummary is a short description of the real machine procsim is
// running on: kernel release and logical CPU count.
type HostSummary struct {
	KernelRelease string
	CPUCount      int
}

// ReadHostSummary gathers HostSummary via uname(2) and /proc/cpuinfo.
func ReadHostSummary() HostSummary {
	var uts unix.Utsname
	release := "unknown"
	if err := unix.Uname(&uts); err == nil {
		release = charsToString(uts.Release[:])
	}
	return HostSummary{
		KernelRelease: release,
		CPUCount:      countProcessors(),
	}
}

func charsToString(b []byte) string {
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		n = len(b)
	}
	return string(b[:n])
}

func countProcessors() int {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return 0
	}
	defer f.Close()
	count := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), "processor") {
			count++
		}
	}
	return count
}
