// Package harness drives a codec through the generated images: structural
// round trips in both read modes, deliberate metadata errors, and the gamma
// test families, with every diagnostic funnelled through a Recorder.
package harness

import (
	"fmt"
	"io"
	"log/slog"
)

// Recorder accumulates the errors and warnings of a run. The first error
// message is kept for the final report; a warning is kept only while no
// error has been recorded. Expected errors and warnings are absorbed
// without touching the counters, so a test that provokes a failure on
// purpose can check it arrived without failing the run.
type Recorder struct {
	logger  *slog.Logger
	verbose bool

	// PromoteWarnings counts warnings as failures at exit.
	PromoteWarnings bool

	test string

	nerrors   int
	nwarnings int
	message   string

	expectError   bool
	expectWarning bool
	sawWarning    bool
}

// NewRecorder returns a recorder logging through logger when verbose is
// set. A nil logger discards output.
func NewRecorder(logger *slog.Logger, verbose bool) *Recorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recorder{logger: logger, verbose: verbose}
}

// Begin names the test whose diagnostics follow. The name prefixes every
// recorded message.
func (r *Recorder) Begin(name string) {
	r.test = name
	if r.verbose {
		r.logger.Info("begin", "test", name)
	}
}

// Test returns the current test name.
func (r *Recorder) Test() string { return r.test }

func (r *Recorder) prefixed(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if r.test != "" {
		msg = r.test + ": " + msg
	}
	return msg
}

// Errorf records an error unless one is expected. The first recorded error
// message replaces any captured warning.
func (r *Recorder) Errorf(format string, args ...any) {
	if r.expectError {
		return
	}
	msg := r.prefixed(format, args...)
	if r.nerrors == 0 {
		r.message = msg
	}
	r.nerrors++
	if r.verbose {
		r.logger.Error(msg)
	}
}

// Warning records a warning unless one is expected, in which case only the
// saw-warning flag is set. It implements codec.Handler.
func (r *Recorder) Warning(msg string) {
	if r.expectWarning {
		r.sawWarning = true
		return
	}
	msg = r.prefixed("%s", msg)
	if r.nwarnings == 0 && r.nerrors == 0 {
		r.message = msg
	}
	r.nwarnings++
	if r.verbose {
		r.logger.Warn(msg)
	}
}

// ExpectError arms or disarms error absorption.
func (r *Recorder) ExpectError(on bool) { r.expectError = on }

// ExpectWarning arms or disarms warning absorption and clears the
// saw-warning flag when arming.
func (r *Recorder) ExpectWarning(on bool) {
	r.expectWarning = on
	if on {
		r.sawWarning = false
	}
}

// SawWarning reports whether a warning arrived while one was expected.
func (r *Recorder) SawWarning() bool { return r.sawWarning }

// Errors returns the recorded error count.
func (r *Recorder) Errors() int { return r.nerrors }

// Warnings returns the recorded warning count.
func (r *Recorder) Warnings() int { return r.nwarnings }

// Message returns the captured diagnostic: the first error, or the first
// warning if no error ever arrived.
func (r *Recorder) Message() string { return r.message }

// Failed reports whether the run must exit non-zero: any error, or any
// warning when warnings are promoted.
func (r *Recorder) Failed() bool {
	return r.nerrors > 0 || (r.PromoteWarnings && r.nwarnings > 0)
}
