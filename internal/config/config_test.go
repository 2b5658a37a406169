package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/arctir/procsim/internal/procerr"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse(empty) error = %v", err)
	}
	if cfg != Default() {
		t.Fatalf("Parse(empty) = %+v, want Default()", cfg)
	}
}

func TestParseOverrides(t *testing.T) {
	src := `
# comment line
num-cpu 2
scheduler="rr"
quantum-cycles=3
batch-process-freq 2
min-ins 5
max-ins 10
delay-per-exec 0
max-overall-mem 1024
mem-per-frame 64
min-mem-per-proc 64
max-mem-per-proc 1024
`
	cfg, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.NumCPU != 2 {
		t.Errorf("NumCPU = %d, want 2", cfg.NumCPU)
	}
	if cfg.Scheduler != RR {
		t.Errorf("Scheduler = %q, want rr", cfg.Scheduler)
	}
	if cfg.QuantumCycles != 3 {
		t.Errorf("QuantumCycles = %d, want 3", cfg.QuantumCycles)
	}
	if cfg.MaxOverallMemory != 1024 {
		t.Errorf("MaxOverallMemory = %d, want 1024", cfg.MaxOverallMemory)
	}
}

func TestParseRejectsBadScheduler(t *testing.T) {
	_, err := Parse(strings.NewReader("scheduler round-robin\n"))
	if !errors.Is(err, procerr.ErrConfig) {
		t.Fatalf("Parse() error = %v, want procerr.ErrConfig", err)
	}
}

func TestParseRejectsNonDivisibleFrame(t *testing.T) {
	src := "mem-per-frame 3\n"
	_, err := Parse(strings.NewReader(src))
	if !errors.Is(err, procerr.ErrConfig) {
		t.Fatalf("Parse() error = %v, want procerr.ErrConfig", err)
	}
}

func TestIsValidMemorySize(t *testing.T) {
	cfg := Default()
	cases := []struct {
		bytes uint64
		want  bool
	}{
		{cfg.MinMemPerProcess, true},
		{cfg.MaxMemPerProcess, true},
		{cfg.MaxMemPerProcess * 2, false},
		{cfg.MinMemPerProcess + 1, false},
		{0, false},
	}
	for _, c := range cases {
		if got := cfg.IsValidMemorySize(c.bytes); got != c.want {
			t.Errorf("IsValidMemorySize(%d) = %v, want %v", c.bytes, got, c.want)
		}
	}
}
