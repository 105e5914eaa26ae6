// Package console provides terminal UI components including spinners for
// long-running operations.
//
// # Spinner Component
//
// The spinner provides visual feedback during long-running pipeline stages
// (scan/fix/validate subprocess invocations). It automatically adapts to the
// environment:
//   - TTY Detection: Spinners only animate in terminal environments (disabled in pipes/redirects)
//   - Accessibility: Respects ACCESSIBLE environment variable to disable animations
//
// # Usage Example
//
//	spinner := console.NewSpinner("Scanning...")
//	spinner.Start()
//	// Long-running operation
//	spinner.Stop()
//
// # Accessibility
//
// Spinners respect the ACCESSIBLE environment variable. When ACCESSIBLE is set to any value,
// spinner animations are disabled to support screen readers and accessibility tools.
//
//	export ACCESSIBLE=1
//	qk run .  # Spinners will be disabled
package console

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/qualitykeeper/qualitykeeper/pkg/tty"
)

// SpinnerWrapper wraps briandowns/spinner with TTY and accessibility detection.
type SpinnerWrapper struct {
	s       *spinner.Spinner
	enabled bool
	running bool
}

// NewSpinner creates a new spinner with the given message using a dot-style
// character set. The spinner is automatically disabled when not running in a
// TTY or in accessibility mode.
func NewSpinner(message string) *SpinnerWrapper {
	enabled := tty.IsStderrTerminal() && os.Getenv("ACCESSIBLE") == ""

	w := &SpinnerWrapper{enabled: enabled}
	if enabled {
		s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " " + message
		w.s = s
	}
	return w
}

// Start begins the spinner animation.
func (w *SpinnerWrapper) Start() {
	if !w.enabled || w.running {
		return
	}
	w.running = true
	w.s.Start()
}

// Stop stops the spinner animation and clears the line.
func (w *SpinnerWrapper) Stop() {
	if !w.enabled || !w.running {
		return
	}
	w.running = false
	w.s.Stop()
	fmt.Fprint(os.Stderr, "\r\033[K")
}

// StopWithMessage stops the spinner and displays a final message.
func (w *SpinnerWrapper) StopWithMessage(msg string) {
	if !w.enabled || !w.running {
		return
	}
	w.running = false
	w.s.Stop()
	fmt.Fprintf(os.Stderr, "\r\033[K%s\n", msg)
}

// UpdateMessage updates the spinner message.
func (w *SpinnerWrapper) UpdateMessage(message string) {
	if !w.enabled || !w.running {
		return
	}
	w.s.Suffix = " " + message
}

// IsEnabled returns whether the spinner is enabled (i.e., running in a TTY).
func (w *SpinnerWrapper) IsEnabled() bool {
	return w.enabled
}
