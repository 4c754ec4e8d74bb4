// Package errs defines the fixed error-kind sentinels surfaced by the
// engine's cores (spec §7) and the CriticalError type raised on
// must-succeed paths (mapped-buffer mapping failure, irrecoverable device
// loss). Components wrap these sentinels with fmt.Errorf("...: %w", err),
// the teacher's convention throughout internal/scheduler and
// internal/objects.
package errs

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/catalystcommunity/app-utils-go/logging"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("duplicate")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrValidation      = errors.New("validation failed")
	ErrResourceLoad    = errors.New("resource load failed")
	ErrDevice          = errors.New("device error")
)

// CriticalError carries the source site of a must-succeed failure, mirrored
// on spec §7's "critical errors also emit a source-site (file, line)".
type CriticalError struct {
	File string
	Line int
	Err  error
}

func (e *CriticalError) Error() string {
	return fmt.Sprintf("%s:%d: critical: %v", e.File, e.Line, e.Err)
}

func (e *CriticalError) Unwrap() error { return e.Err }

// NewCritical builds a CriticalError capturing the caller's (file, line)
// and logs it at Error level through the shared logger, matching spec's
// "critical error hook which terminates the process" — callers on a
// must-succeed path should treat a returned *CriticalError as fatal and
// propagate termination; this constructor does not itself call os.Exit so
// tests can observe the error without killing the test binary.
func NewCritical(err error) *CriticalError {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file, line = "unknown", 0
	}
	ce := &CriticalError{File: file, Line: line, Err: err}
	logging.Log.WithField("file", file).WithField("line", line).WithError(err).Error("critical error")
	return ce
}
