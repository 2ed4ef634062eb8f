package signals

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FileSampler reads the current input value from a file. An I/O daemon (or
// a test harness) owns the hardware and mirrors the pin state into the
// file; this keeps GPIO access out of the process.
func FileSampler(path string) Sampler {
	return func() (int64, error) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("read signal file %s: %w", path, err)
		}
		value, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse signal file %s: %w", path, err)
		}
		return value, nil
	}
}
