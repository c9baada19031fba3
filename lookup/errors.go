package lookup

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/go-faster/errors"
)

// ErrEmptySymbol is returned when Lookup is called without a symbol.
var ErrEmptySymbol = errors.New("lookup: empty symbol")

// NetworkError indicates a transport failure or an unusable HTTP status.
type NetworkError struct {
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network: http status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("network: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError indicates the API answered with a body that could not be parsed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrorLabel returns a low-cardinality category for metrics and logs.
func ErrorLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return "decode"
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return "timeout"
		}
		return "other"
	}

	switch code := netErr.StatusCode; {
	case code == http.StatusForbidden || code == http.StatusUnauthorized:
		return "forbidden"
	case code == http.StatusNotFound:
		return "not_found"
	case code == http.StatusTooManyRequests:
		return "rate_limited"
	case code >= http.StatusInternalServerError:
		return "server"
	case code != 0:
		return "status"
	}

	if errors.Is(netErr.Err, context.DeadlineExceeded) {
		return "timeout"
	}
	var timeout net.Error
	if errors.As(netErr.Err, &timeout) && timeout.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(netErr.Err, &opErr) {
		return "connection"
	}
	return "other"
}
