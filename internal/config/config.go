// Package config parses the simulator's tuning file: a flat key/value
// text format with "#" comments, accepting either "key value" or
// "key=value" lines, and quoted strings for the scheduler name.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/arctir/procsim/internal/procerr"
)

// Policy selects the scheduling algorithm.
type Policy string

const (
	FCFS Policy = "fcfs"
	RR   Policy = "rr"
)

// Config is the immutable tuning record consumed at scheduler
// construction. Zero value is not valid; use Default() or Load().
type Config struct {
	NumCPU           int
	Scheduler        Policy
	QuantumCycles    int
	BatchProcessFreq int
	MinInstructions  int
	MaxInstructions  int
	DelayPerExec     int // milliseconds

	MaxOverallMemory uint64
	MemPerFrame      uint64
	MinMemPerProcess uint64
	MaxMemPerProcess uint64
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		NumCPU:           4,
		Scheduler:        FCFS,
		QuantumCycles:    5,
		BatchProcessFreq: 1,
		MinInstructions:  1000,
		MaxInstructions:  2000,
		DelayPerExec:     100,
		MaxOverallMemory: 16384,
		MemPerFrame:      256,
		MinMemPerProcess: 64,
		MaxMemPerProcess: 4096,
	}
}

// Load reads and parses a configuration file at path, starting from
// Default() and overwriting whichever keys are present.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: open %s: %s", procerr.ErrConfig, path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a configuration stream in the key/value grammar described
// in the package doc.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := splitKV(line)
		if !ok {
			return Config{}, fmt.Errorf("%w: line %d: cannot parse %q", procerr.ErrConfig, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return Config{}, fmt.Errorf("%w: line %d: %s", procerr.ErrConfig, lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return Config{}, fmt.Errorf("%w: %s", procerr.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func splitKV(line string) (key, value string, ok bool) {
	idx := strings.IndexAny(line, " \t")
	if idx == -1 {
		idx = strings.Index(line, "=")
		if idx == -1 {
			return "", "", false
		}
	}
	key = line[:idx]
	value = strings.TrimSpace(line[idx+1:])
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}
	return key, value, true
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "num-cpu":
		c.NumCPU, err = strconv.Atoi(value)
	case "scheduler":
		c.Scheduler = Policy(strings.ToLower(value))
	case "quantum-cycles":
		c.QuantumCycles, err = strconv.Atoi(value)
	case "batch-process-freq":
		c.BatchProcessFreq, err = strconv.Atoi(value)
	case "min-ins":
		c.MinInstructions, err = strconv.Atoi(value)
	case "max-ins":
		c.MaxInstructions, err = strconv.Atoi(value)
	case "delay-per-exec":
		c.DelayPerExec, err = strconv.Atoi(value)
	case "max-overall-mem":
		c.MaxOverallMemory, err = strconv.ParseUint(value, 10, 64)
	case "mem-per-frame":
		c.MemPerFrame, err = strconv.ParseUint(value, 10, 64)
	case "min-mem-per-proc":
		c.MinMemPerProcess, err = strconv.ParseUint(value, 10, 64)
	case "max-mem-per-proc":
		c.MaxMemPerProcess, err = strconv.ParseUint(value, 10, 64)
	default:
		// unknown keys are ignored, matching the original's tolerant parser
	}
	return err
}

// Validate checks the cross-field constraints the rest of the system
// assumes hold: num-cpu positive, scheduler recognized, frame size
// divides overall memory, and the memory bounds are powers of two.
func (c Config) Validate() error {
	if c.NumCPU < 1 {
		return fmt.Errorf("%w: num-cpu must be >= 1, got %d", procerr.ErrConfig, c.NumCPU)
	}
	if c.Scheduler != FCFS && c.Scheduler != RR {
		return fmt.Errorf("%w: scheduler must be fcfs or rr, got %q", procerr.ErrConfig, c.Scheduler)
	}
	if c.QuantumCycles < 1 {
		return fmt.Errorf("%w: quantum-cycles must be >= 1", procerr.ErrConfig)
	}
	if c.MemPerFrame == 0 || !isPowerOfTwo(c.MemPerFrame) {
		return fmt.Errorf("%w: mem-per-frame must be a power of two, got %d", procerr.ErrConfig, c.MemPerFrame)
	}
	if c.MaxOverallMemory%c.MemPerFrame != 0 {
		return fmt.Errorf("%w: max-overall-mem must be a multiple of mem-per-frame", procerr.ErrConfig)
	}
	if c.MinMemPerProcess == 0 || !isPowerOfTwo(c.MinMemPerProcess) {
		return fmt.Errorf("%w: min-mem-per-proc must be a power of two, got %d", procerr.ErrConfig, c.MinMemPerProcess)
	}
	if c.MaxMemPerProcess == 0 || !isPowerOfTwo(c.MaxMemPerProcess) {
		return fmt.Errorf("%w: max-mem-per-proc must be a power of two, got %d", procerr.ErrConfig, c.MaxMemPerProcess)
	}
	if c.MinMemPerProcess > c.MaxMemPerProcess {
		return fmt.Errorf("%w: min-mem-per-proc exceeds max-mem-per-proc", procerr.ErrConfig)
	}
	return nil
}

func isPowerOfTwo(v uint64) bool {
	return v&(v-1) == 0
}

// IsValidMemorySize reports whether bytes is an admissible per-process
// allocation size under this configuration: a power of two within
// [MinMemPerProcess, MaxMemPerProcess].
func (c Config) IsValidMemorySize(bytes uint64) bool {
	if bytes < c.MinMemPerProcess || bytes > c.MaxMemPerProcess {
		return false
	}
	return isPowerOfTwo(bytes)
}
