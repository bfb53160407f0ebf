package command

import (
	"errors"
	"fmt"
)

// ErrReleased is returned by Resolve after Release.
var ErrReleased = errors.New("binding released")

// PersistError reports a failed Persist. Stage names the step that failed.
type PersistError struct {
	Stage string
	Key   string
	Err   error
}

func (e *PersistError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("persist %s: %s: %v", e.Key, e.Stage, e.Err)
	}
	return fmt.Sprintf("persist: %s: %v", e.Stage, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// IsPersistError reports whether err is a *PersistError failed at stage.
// An empty stage matches any.
func IsPersistError(err error, stage string) bool {
	var pe *PersistError
	if !errors.As(err, &pe) {
		return false
	}
	return stage == "" || pe.Stage == stage
}

// Persist stages.
const (
	StageEnvironment = "environment"
	StageCompile     = "compile"
	StageRun         = "run"
	StageRecord      = "record"
)
