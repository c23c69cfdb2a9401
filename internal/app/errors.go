package app

import "errors"

var (
	ErrMissingDependencies = errors.New("missing dependencies")
	// ErrFatalPrecondition aborts a run before any purge is sent.
	ErrFatalPrecondition = errors.New("fatal precondition")
)
