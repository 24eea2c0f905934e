package whep

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrStreamNotFound    = errors.New("stream not found")
	ErrBadStatusCode     = errors.New("bad status code")
	ErrInvalidLinkHeader = errors.New("invalid link header")
	ErrMissingLocation   = errors.New("missing location header")
	ErrConnectionLost    = errors.New("ICE connection lost")
)

// SignalError carries the message of a JSON error body returned by the WHEP endpoint.
type SignalError struct {
	Status  int
	Message string
}

func (e *SignalError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return e.Message
}
