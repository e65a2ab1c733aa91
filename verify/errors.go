package verify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrContentTooLarge is the ParseError cause for bodies over the size limit.
var ErrContentTooLarge = errors.New("content too large")

// StatusError reports a response other than 200 OK.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d %s", e.URL, e.Code, e.Status)
}

// FetchError reports a transport failure: connection, TLS, timeout or an
// interrupted body.
type FetchError struct {
	URL   string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Summary describes the cause in a short fixed phrase fit for chat.
func (e *FetchError) Summary() string {
	var (
		dnsErr     *net.DNSError
		certErr    *tls.CertificateVerificationError
		recordErr  tls.RecordHeaderError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)
	switch {
	case isTimeout(e.Cause):
		return "timed out"
	case errors.Is(e.Cause, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.As(e.Cause, &certErr), errors.As(e.Cause, &recordErr),
		errors.As(e.Cause, &unknownCA), errors.As(e.Cause, &hostErr),
		errors.As(e.Cause, &invalidErr):
		return "TLS handshake failed"
	case errors.As(e.Cause, &dnsErr):
		return "host not found"
	default:
		return "could not be reached"
	}
}

// ParseError reports a body that could not be read as markup.
type ParseError struct {
	URL   string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
