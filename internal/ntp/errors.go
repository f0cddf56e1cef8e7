package ntp

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated means the buffer ends before the requested field
	ErrTruncated = errors.New("ntp: truncated message")

	// ErrMalformed means the field could not be read for any other reason
	ErrMalformed = errors.New("ntp: malformed message")

	// ErrNetwork matches every *NetworkError
	ErrNetwork = errors.New("ntp: network error")

	// ErrNoData means no server produced a usable sample
	ErrNoData = errors.New("ntp: no usable samples")
)

// ParseError describes a failure to decode a field of an NTP message
type ParseError struct {
	Offset int   // Byte offset of the field
	Length int   // Length of the buffer
	Kind   error // ErrTruncated or ErrMalformed
	Err    error // Underlying read error, if any
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v at offset %d (buffer %d bytes): %v", e.Kind, e.Offset, e.Length, e.Err)
	}
	return fmt.Sprintf("%v at offset %d (buffer %d bytes)", e.Kind, e.Offset, e.Length)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// NetworkError wraps a transport failure talking to one server
type NetworkError struct {
	Server string // host:port
	Op     string // dial, send, deadline, receive
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ntp %s %s: %v", e.Op, e.Server, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNetwork) match any NetworkError
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}
