package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a transport failure.
type Kind string

const (
	// KindNetwork covers dial, DNS, timeout and reset failures. Retried.
	KindNetwork Kind = "network"
	// KindMalformed is a response that is not JSON. Retried for reads only.
	KindMalformed Kind = "malformed"
	// KindServer is a JSON failure envelope or non-2xx JSON response. Never retried.
	KindServer Kind = "server"
)

var (
	// ErrNetwork matches any *Error of KindNetwork via errors.Is.
	ErrNetwork = errors.New("remote unreachable")
	// ErrMalformedResponse matches any *Error of KindMalformed via errors.Is.
	ErrMalformedResponse = errors.New("malformed remote response")
	// ErrResponseTooLarge wraps a KindServer error whose body exceeded the
	// client's size cap. Never retried.
	ErrResponseTooLarge = errors.New("remote response too large")
)

// Error is returned by every failed remote call.
type Error struct {
	Kind    Kind
	Status  int // HTTP status, 0 when no response arrived
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers test the kind with the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrMalformedResponse:
		return e.Kind == KindMalformed
	}
	return false
}

// KindOf returns the kind of err, or "" when err is not a transport error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var te *Error
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}
