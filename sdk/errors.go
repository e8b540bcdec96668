package sdk

import (
	"errors"
	"fmt"
)

// Configuration problems. These are programmer errors: the SDK reports them
// before any network activity and never retries them.
var (
	ErrMissingNetworkID = errors.New("network id not configured")
	ErrMissingSiteID    = errors.New("site id not configured")
	ErrMissingUserKey   = errors.New("no user key supplied and none stored")
	ErrHostUnresolved   = errors.New("decision host cannot be resolved")
	ErrInvalidPlacement = errors.New("invalid placement")
	ErrSerialize        = errors.New("request payload cannot be serialized")
	ErrInvalidConfig    = errors.New("invalid client configuration")
	ErrInvalidRequest   = errors.New("request cannot be constructed")
)

// ConfigurationError wraps one of the configuration sentinels with the
// operation that hit it.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration error: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configError(op string, err error) *ConfigurationError {
	return &ConfigurationError{Op: op, Err: err}
}

// TransportError carries a failure reported by the HTTP layer unmodified.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport failure: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError is returned for any non-200 status.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("request rejected with status %d: %s", e.StatusCode, e.Body)
}

// MalformedError is returned when a 200 response cannot be understood.
type MalformedError struct {
	Body string
}

func (e *MalformedError) Error() string {
	return "malformed response: " + e.Body
}

// IsConfigurationError reports whether err was caused by missing or invalid
// client configuration.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
