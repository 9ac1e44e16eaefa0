package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	// ErrInvalidInput is returned by ParseForm.
	ErrInvalidInput = errors.New("Invalid input — income must be numeric, year must be integer")
	// ErrMalformedResponse is returned when a successful reply has no
	// numeric predicted_tax.
	ErrMalformedResponse = errors.New("prediction service returned a malformed response")
)

// TransportKind classifies a failure to exchange a request with the service.
type TransportKind int

const (
	Other TransportKind = iota
	Unreachable
	Timeout
)

func (k TransportKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Timeout:
		return "timeout"
	default:
		return "other"
	}
}

// TransportError is a failure below the HTTP status line.
type TransportError struct {
	Kind TransportKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("prediction service %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError is a non-success reply. Message is the service's error string.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

// classify sorts a client.Do error. Timeouts are checked first since a dial
// that runs out of time is both.
func classify(err error) *TransportError {
	if isTimeout(err) {
		return &TransportError{Kind: Timeout, Err: err}
	}
	if isUnreachable(err) {
		return &TransportError{Kind: Unreachable, Err: err}
	}
	return &TransportError{Kind: Other, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isUnreachable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
