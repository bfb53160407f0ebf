package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/roboticsapi/robotics-api-sub003/internal/exprdoc"
	"github.com/roboticsapi/robotics-api-sub003/internal/sim"
)

const closeTimeout = 5 * time.Second

// DocumentError is a failure to turn a document file into an expression.
type DocumentError struct {
	Code    string
	Path    string
	Message string
	Err     error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// session is a simulation environment with a builder bound to it. Documents
// built in one session share their inputs.
type session struct {
	env     *sim.Environment
	builder *exprdoc.Builder
}

func openSession(logger *slog.Logger) *session {
	env := sim.New(sim.WithID("rapi"), sim.WithLogger(logger))
	return &session{
		env:     env,
		builder: exprdoc.NewBuilder(exprdoc.WithEnvironment(env)),
	}
}

func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	_ = s.env.Close(ctx)
}

// load reads path and builds its expression.
func (s *session) load(path string) (*exprdoc.Document, exprdoc.Expr, error) {
	doc, err := exprdoc.LoadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, exprdoc.Expr{}, &DocumentError{Code: ErrCodeNotFound, Path: path, Message: "document not found", Err: err}
		}
		return nil, exprdoc.Expr{}, &DocumentError{Code: ErrCodeLoadFailed, Path: path, Message: err.Error(), Err: err}
	}

	e, err := s.builder.Build(doc)
	if err != nil {
		return doc, exprdoc.Expr{}, &DocumentError{Code: ErrCodeBuildFailed, Path: path, Message: err.Error(), Err: err}
	}
	return doc, e, nil
}

// documentFailure reports err through f and returns the exit error. Missing
// files are command errors; everything else is a document failure.
func documentFailure(f *OutputFormatter, err error) error {
	var de *DocumentError
	if !errors.As(err, &de) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	exit := ExitFailure
	if de.Code == ErrCodeNotFound {
		exit = ExitCommandError
	}
	return f.Fail(exit, de.Code, de.Error(), nil)
}
