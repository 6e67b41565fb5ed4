package cli

import (
	"errors"
	"fmt"

	"github.com/ppiankov/ttpmap/internal/model"
)

// Process exit codes
const (
	exitOK         = 0
	exitFailure    = 1
	exitUnverified = 2
	exitConfig     = 3
	exitGeneration = 4
)

// exitErr carries a numeric exit code through the cobra error path
type exitErr struct {
	code int
	msg  string
	err  error
}

func (e *exitErr) Error() string { return e.msg }

func (e *exitErr) Unwrap() error { return e.err }

// codeError returns an exitErr for the given code
func codeError(code int, cause error, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...), err: cause}
}

// ExitCode maps an error returned by Execute to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitErr
	if errors.As(err, &ee) {
		return ee.code
	}
	switch {
	case errors.Is(err, model.ErrConfiguration):
		return exitConfig
	case errors.Is(err, model.ErrGeneration):
		return exitGeneration
	case errors.Is(err, model.ErrExhausted):
		return exitUnverified
	default:
		return exitFailure
	}
}
