package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/openab/internal/simulate"
)

// Default configuration constants.
const (
	defaultVisitors    = 1000
	defaultVisits      = 3
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 10 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		route     = flag.String("route", "", "Path of the A/B page (default: read from /experiment)")
		visitors  = flag.Int("visitors", defaultVisitors, "Number of distinct visitors")
		visits    = flag.Int("visits", defaultVisits, "Page loads per visitor")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		cookies   = flag.Bool("cookies", true, "Keep a cookie jar per visitor")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile   = flag.String("log", "", "Also write logs to this file")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Log every visit")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFormat, *logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &simulate.Config{
		BaseURL:          *baseURL,
		Route:            *route,
		Visitors:         *visitors,
		VisitsPerVisitor: *visits,
		Workers:          *workers,
		Timeout:          *timeout,
		Cookies:          *cookies,
		Verbose:          *verbose,
	}

	if _, err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
