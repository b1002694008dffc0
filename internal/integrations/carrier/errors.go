package carrier

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrUnknownProvider = errors.New("unknown shipping provider")
	ErrNotConfigured   = errors.New("carrier is not configured")
)

// Error is the uniform failure shape of every adapter.
type Error struct {
	Provider string
	Op       string
	Message  string
	// StatusCode is the carrier's raw HTTP status, 0 when no response was received.
	StatusCode int
	// Payload is the carrier's raw error body.
	Payload json.RawMessage

	err error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: %s (http %d)", e.Provider, e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// HTTPError builds an Error from a non-2xx carrier response.
func HTTPError(provider, op string, status int, body []byte, msg string) *Error {
	if msg == "" {
		msg = fmt.Sprintf("carrier responded with http %d", status)
	}
	e := &Error{Provider: provider, Op: op, Message: msg, StatusCode: status}
	if len(body) > 0 {
		if json.Valid(body) {
			e.Payload = json.RawMessage(body)
		} else {
			b, _ := json.Marshal(string(body))
			e.Payload = b
		}
	}
	return e
}

// WrapError turns a transport, decoding or configuration failure into an Error.
func WrapError(provider, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Provider: provider, Op: op, Message: err.Error(), err: err}
}

// NotConfigured reports missing credentials or shipper data at call time.
func NotConfigured(provider, op, what string) *Error {
	return &Error{
		Provider: provider,
		Op:       op,
		Message:  fmt.Sprintf("%s is not configured", what),
		err:      ErrNotConfigured,
	}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
