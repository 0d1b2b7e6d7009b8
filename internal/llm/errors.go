package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	ErrTimeout       = errors.New("inference timed out")
	ErrUnavailable   = errors.New("inference backend unavailable")
	ErrEmptyResponse = errors.New("empty model response")
)

// Error carries the failed operation and model alongside the cause.
type Error struct {
	Op    string
	Model string
	Err   error
}

func (e *Error) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Model, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// wrapError tags transport failures with ErrTimeout or ErrUnavailable so
// callers can tell them apart with errors.Is.
func wrapError(op, model string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isTimeout(err):
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	case isUnavailable(err):
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &Error{Op: op, Model: model, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isUnavailable(err error) bool {
	if errors.Is(err, ErrUnavailable) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// Degraded renders a backend failure as the text the user sees in place of
// an answer.
func Degraded(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "I'm taking too long to respond. Let me try with a simpler approach."
	case errors.Is(err, ErrUnavailable):
		return "I can't reach my language model. Make sure Ollama is running."
	case errors.Is(err, ErrEmptyResponse):
		return "I didn't get an answer from my language model. Please try again."
	default:
		return fmt.Sprintf("Error communicating with the language model: %v", err)
	}
}
