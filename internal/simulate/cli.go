package simulate

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/openab/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to stdout and, when logFile is set, to that
// file as well.
func SetupLogging(format, logFile string, verbose bool) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.Configure(format, w); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`openab traffic simulator
========================

Sends simulated visitors to a running openab server and compares the observed
variant split with the configured weights.

Usage:
  ab-sim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -route string
        Path of the A/B page (default: read from /experiment)
  -visitors int
        Number of distinct visitors (default 1000)
  -visits int
        Page loads per visitor (default 3)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -cookies
        Keep a cookie jar per visitor (default true)
  -timeout duration
        HTTP request timeout (default 10s)
  -log string
        Also write logs to this file
  -log-format string
        text or json (default "text")
  -verbose
        Log every visit
  -help
        Show this help message

Examples:
  # Sticky visitors against a local server
  ab-sim -visitors 5000

  # Cookie-less visitors: every load is a fresh draw
  ab-sim -cookies=false -visits 10
`)
}
