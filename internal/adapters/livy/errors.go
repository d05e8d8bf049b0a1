package livy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionDead is returned when a session reaches a state it cannot
	// run statements from.
	ErrSessionDead = errors.New("livy session is not usable")
	// ErrTimeout is returned when a session or statement does not settle
	// within the configured wait.
	ErrTimeout = errors.New("livy wait timed out")
	// ErrHTTP is matched by every non-2xx answer from the server.
	ErrHTTP = errors.New("livy http error")
	// ErrCancelled is returned when a statement was cancelled server side.
	ErrCancelled = errors.New("livy statement cancelled")
	// ErrClosed is returned by a Handle after Close.
	ErrClosed = errors.New("livy handle closed")
)

// HTTPError is a non-2xx response.
type HTTPError struct {
	Op     string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("livy %s: status %d: %s", e.Op, e.Status, strings.TrimSpace(e.Body))
}

func (e *HTTPError) Is(target error) bool { return target == ErrHTTP }

// StatementError is the exception raised by remote code.
type StatementError struct {
	Name      string
	Value     string
	Traceback []string
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Name, e.Value)
}
