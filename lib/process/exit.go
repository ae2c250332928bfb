// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitError carries a specific process exit code. Commands return it
// when a run finished but its outcome should fail the process, such as
// a simulation that stopped on a node error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps err to a process exit code: 0 for nil, the carried code
// for an *ExitError, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// Report writes "error: err" to w unless err is nil or an *ExitError
// with no message of its own.
func Report(w io.Writer, err error) {
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

// Fatal reports err on stderr and exits with its code. Use it in main()
// for errors returned by run(), where the structured logger may not be
// initialized.
func Fatal(err error) {
	Report(os.Stderr, err)
	os.Exit(ExitCode(err))
}
