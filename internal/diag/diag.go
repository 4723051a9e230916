// Package diag is tissue's diagnostic logging surface: quiet by default,
// verbose to stderr when TISSUE_VERBOSE is set, and optionally duplicated to
// a rotating file when TISSUE_LOG_FILE is set. Grounded on the teacher's
// internal/debug package (env-gated stderr logger) with file rotation added
// via lumberjack, the library the wider example pack reaches for whenever a
// CLI wants a rotating diagnostic log.
package diag

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu       sync.Mutex
	verbose  bool
	logger   *log.Logger
	fileSink *lumberjack.Logger
)

func init() {
	verbose = os.Getenv("TISSUE_VERBOSE") != ""
	var w io.Writer = os.Stderr
	if path := os.Getenv("TISSUE_LOG_FILE"); path != "" {
		fileSink = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		w = io.MultiWriter(os.Stderr, fileSink)
	}
	logger = log.New(w, "", log.LstdFlags)
}

// Verbose reports whether diagnostic output is enabled for this process.
func Verbose() bool { return verbose }

// Logf writes a diagnostic line. It is always written to the optional log
// file, but only echoed to stderr when TISSUE_VERBOSE is set — import
// warnings and retry backoffs use this rather than Errorf so a quiet run
// stays quiet.
func Logf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if fileSink == nil && !verbose {
		return
	}
	if fileSink != nil && !verbose {
		// File-only: bypass the stderr-bound logger and write directly.
		fmt.Fprintf(fileSink, "%s\n", fmt.Sprintf(format, args...))
		return
	}
	logger.Printf(format, args...)
}

// Close flushes and closes the optional log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if fileSink != nil {
		return fileSink.Close()
	}
	return nil
}
