//go:build !windows

package log

import (
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// closeStdin will close stdin on Unix platforms - this is standard practice
// for daemons
func closeStdin() {
	if err := os.Stdin.Close(); err != nil {
		// Not a fatal error
		log.Error().Str("module", "log").Err(err).Msg("Failed to close os.Stdin during log setup")
	}
}

// reassignStdout points stdout/stderr to our logfile on systems that support
// the Dup2 syscall per https://github.com/golang/go/issues/325
func reassignStdout(logf *os.File) {
	if err := unix.Dup2(int(logf.Fd()), 1); err != nil {
		// Not considered fatal
		log.Error().Str("module", "log").Err(err).Msg("Failed to re-assign stdout to logfile")
	}
	if err := unix.Dup2(int(logf.Fd()), 2); err != nil {
		// Not considered fatal
		log.Error().Str("module", "log").Err(err).Msg("Failed to re-assign stderr to logfile")
	}
}
