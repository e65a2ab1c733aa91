package resolve

import (
	"errors"

	"github.com/c360studio/trackref/reference"
	"github.com/c360studio/trackref/verify"
)

// ErrChannelNotConfigured is returned when the channel has no tracker.
var ErrChannelNotConfigured = errors.New("no tracker configured for channel")

// ErrorClass names a failure category for logs and metrics.
type ErrorClass string

const (
	ClassOK                   ErrorClass = "ok"
	ClassChannelNotConfigured ErrorClass = "channel_not_configured"
	ClassUnrecognizedSyntax   ErrorClass = "unrecognized_syntax"
	ClassRemoteStatus         ErrorClass = "remote_status"
	ClassFetchError           ErrorClass = "fetch_error"
	ClassParseError           ErrorClass = "parse_error"
	ClassUnknown              ErrorClass = "unknown"
)

// Classify maps an error returned in an Outcome onto its class. A nil error
// is ClassOK.
func Classify(err error) ErrorClass {
	var (
		statusErr *verify.StatusError
		fetchErr  *verify.FetchError
		parseErr  *verify.ParseError
	)
	switch {
	case err == nil:
		return ClassOK
	case errors.Is(err, ErrChannelNotConfigured):
		return ClassChannelNotConfigured
	case errors.Is(err, reference.ErrUnrecognizedSyntax):
		return ClassUnrecognizedSyntax
	case errors.As(err, &statusErr):
		return ClassRemoteStatus
	case errors.As(err, &fetchErr):
		return ClassFetchError
	case errors.As(err, &parseErr):
		return ClassParseError
	default:
		return ClassUnknown
	}
}
