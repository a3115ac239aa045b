package ai

import (
	"errors"
	"fmt"
)

// StreamErrorKind classifies a stream failure as surfaced to the caller.
type StreamErrorKind int

const (
	// KindConnectionError is a transport-level failure after a connection
	// had been established at least once.
	KindConnectionError StreamErrorKind = iota
	// KindNetworkUnavailable is a transport failure with no prior successful
	// connection, typically meaning no backend is reachable at all.
	KindNetworkUnavailable
	// KindServerRejected is a terminal 4xx rejection (other than 429) with
	// the server-reported message surfaced verbatim.
	KindServerRejected
)

func (k StreamErrorKind) String() string {
	switch k {
	case KindNetworkUnavailable:
		return "network unavailable"
	case KindServerRejected:
		return "server rejected"
	default:
		return "connection error"
	}
}

// StreamError is a classified stream failure. Partial holds whatever text had
// accumulated before the failure so callers can preserve it.
type StreamError struct {
	Kind      StreamErrorKind
	Status    int
	Message   string
	Retriable bool
	Partial   string
	Err       error
}

func (e *StreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

func asStreamError(err error, target **StreamError) bool {
	return errors.As(err, target)
}
