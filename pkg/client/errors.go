package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (connection reset, unreachable host, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the gateway refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeTLS indicates a certificate or handshake failure
	ErrTypeTLS
	// ErrTypeAuth indicates the token or credentials were rejected
	ErrTypeAuth
	// ErrTypeAPI indicates the gateway answered with a non-2xx status or a failure envelope
	ErrTypeAPI
	// ErrTypeRateLimit indicates the gateway asked us to slow down (HTTP 429)
	ErrTypeRateLimit
	// ErrTypeParse indicates a malformed response body
	ErrTypeParse
	// ErrTypeValidation indicates invalid arguments supplied by the caller
	ErrTypeValidation
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
	NetworkErrorTLS
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeTLS:
		return "TLS Error"
	case ErrTypeAuth:
		return "Authentication Error"
	case ErrTypeAPI:
		return "API Error"
	case ErrTypeRateLimit:
		return "Rate Limited"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is returned by every operation of the client and the domain modules
type Error struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	StatusCode     int                 // HTTP status code (if applicable)
	VendorMessage  string              // Message reported by the gateway (if any)
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	Host           string              // Gateway host (for context)
	Retryable      bool                // Whether the error is retryable
	RetryAfter     time.Duration       // Server supplied delay before retrying (429)
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.VendorMessage != "" {
		msg = fmt.Sprintf("%s (gateway: %s)", msg, e.VendorMessage)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s (caused by: %v)", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes a transport error and returns a more specific error type
func ClassifyNetworkError(err error, host string) *Error {
	if err == nil {
		return nil
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &timeoutErr) && timeoutErr.Timeout()) {
		return &Error{
			Type:           ErrTypeTimeout,
			Message:        "request timed out",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			Host:           host,
			Retryable:      true,
		}
	}

	if errors.Is(err, context.Canceled) {
		return &Error{
			Type:      ErrTypeNetwork,
			Message:   "request cancelled",
			Err:       err,
			Host:      host,
			Retryable: false,
		}
	}

	if isTLSError(err) {
		return &Error{
			Type:           ErrTypeTLS,
			Message:        "TLS handshake or certificate verification failed",
			Err:            err,
			NetworkSubtype: NetworkErrorTLS,
			Host:           host,
			Retryable:      false,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{
			Type:           ErrTypeDNS,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
			Host:           host,
			Retryable:      dnsErr.IsTemporary,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return &Error{
				Type:           ErrTypeConnectionRefused,
				Message:        "gateway refused connection",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				Host:           host,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.EHOSTUNREACH) {
			return &Error{
				Type:           ErrTypeNetwork,
				Message:        "host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				Host:           host,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.ENETUNREACH) {
			return &Error{
				Type:           ErrTypeNetwork,
				Message:        "network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				Host:           host,
				Retryable:      true,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return ClassifyNetworkError(urlErr.Err, host)
	}

	return &Error{
		Type:           ErrTypeNetwork,
		Message:        "network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		Host:           host,
		Retryable:      true,
	}
}

func isTLSError(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		verifyErr   *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr)
}

// NewNetworkError creates a transport-level error with automatic classification
func NewNetworkError(message string, err error) *Error {
	if classified := ClassifyNetworkError(err, ""); classified != nil {
		classified.Message = message + ": " + classified.Message
		return classified
	}
	return &Error{
		Type:      ErrTypeNetwork,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// NewAuthError creates an authentication error
func NewAuthError(statusCode int, message string) *Error {
	return &Error{
		Type:       ErrTypeAuth,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  false,
	}
}

// NewAPIError creates an error for a gateway-reported failure.
// Server errors (5xx) are retryable, client errors are not.
func NewAPIError(statusCode int, vendorMessage string) *Error {
	return &Error{
		Type:          ErrTypeAPI,
		Message:       fmt.Sprintf("gateway returned status %d", statusCode),
		StatusCode:    statusCode,
		VendorMessage: vendorMessage,
		Retryable:     statusCode >= 500,
	}
}

// NewRateLimitError creates a retryable error for HTTP 429 responses
func NewRateLimitError(vendorMessage string, retryAfter time.Duration) *Error {
	return &Error{
		Type:          ErrTypeRateLimit,
		Message:       "too many requests",
		StatusCode:    http.StatusTooManyRequests,
		VendorMessage: vendorMessage,
		Retryable:     true,
		RetryAfter:    retryAfter,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *Error {
	return &Error{
		Type:      ErrTypeParse,
		Message:   message,
		Err:       err,
		Retryable: false,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *Error {
	return &Error{
		Type:      ErrTypeValidation,
		Message:   message,
		Retryable: false,
	}
}

func asError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsNetworkError checks if an error is a transport error (including timeout, connection refused, DNS, TLS)
func IsNetworkError(err error) bool {
	if e, ok := asError(err); ok {
		return e.Type == ErrTypeNetwork ||
			e.Type == ErrTypeTimeout ||
			e.Type == ErrTypeConnectionRefused ||
			e.Type == ErrTypeDNS ||
			e.Type == ErrTypeTLS
	}
	return false
}

// IsTimeoutError checks if an error is a timeout
func IsTimeoutError(err error) bool {
	e, ok := asError(err)
	return ok && e.Type == ErrTypeTimeout
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	e, ok := asError(err)
	return ok && e.Type == ErrTypeAuth
}

// IsAPIError checks if an error was reported by the gateway (including rate limiting)
func IsAPIError(err error) bool {
	e, ok := asError(err)
	return ok && (e.Type == ErrTypeAPI || e.Type == ErrTypeRateLimit)
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	e, ok := asError(err)
	return ok && e.Type == ErrTypeParse
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	e, ok := asError(err)
	return ok && e.Type == ErrTypeValidation
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	if e, ok := asError(err); ok {
		return e.Retryable
	}
	return false
}

// StatusCode returns the HTTP status attached to err, or 0
func StatusCode(err error) int {
	if e, ok := asError(err); ok {
		return e.StatusCode
	}
	return 0
}

// TroubleshootingHint returns user-friendly troubleshooting advice for an error
func TroubleshootingHint(err error) string {
	e, ok := asError(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch e.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The gateway did not respond in time.",
			"Troubleshooting:",
			"  • Check that the gateway is powered on and reachable",
			"  • Try increasing the request timeout",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The gateway refused the connection.",
			"Troubleshooting:",
			"  • Verify the port number (443 for HTTPS, 80 for HTTP)",
			"  • Check that the gateway web service is running",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the gateway hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of the hostname",
			"  • Try 'omctl scan' to discover gateways on the local network",
		}, "\n")

	case ErrTypeTLS:
		return strings.Join([]string{
			"The TLS connection to the gateway failed.",
			"Troubleshooting:",
			"  • Local gateways use self-signed certificates; disable verification with --verify-tls=false",
			"  • Check that the scheme and port match the gateway configuration",
		}, "\n")

	case ErrTypeAuth:
		return strings.Join([]string{
			"Authentication failed.",
			"Troubleshooting:",
			"  • Check the username and password (OPENMOTICS_PASSWORD)",
			"  • For the cloud API check the client id and secret",
		}, "\n")

	case ErrTypeRateLimit:
		return "The gateway is rate limiting requests. Wait a moment and try again."

	case ErrTypeAPI:
		if e.StatusCode >= 500 {
			return fmt.Sprintf("The gateway returned an internal error (HTTP %d). Try again later.", e.StatusCode)
		}
		return fmt.Sprintf("The gateway rejected the request (HTTP %d). Check the ids and parameters.", e.StatusCode)

	case ErrTypeParse:
		return "Failed to parse the gateway response. The firmware may be incompatible."

	case ErrTypeValidation:
		return "The supplied values are invalid. Check the error message for details."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// ShortMessage returns a concise, user-friendly error message
func ShortMessage(err error) string {
	e, ok := asError(err)
	if !ok {
		return err.Error()
	}

	switch e.Type {
	case ErrTypeTimeout:
		return "Gateway not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Gateway refused connection"
	case ErrTypeDNS:
		return "Cannot resolve gateway hostname"
	case ErrTypeTLS:
		return "TLS error talking to gateway"
	case ErrTypeAuth:
		return "Authentication failed - check credentials"
	case ErrTypeRateLimit:
		return "Rate limited by gateway"
	case ErrTypeAPI:
		if e.VendorMessage != "" {
			return fmt.Sprintf("Gateway error (HTTP %d): %s", e.StatusCode, e.VendorMessage)
		}
		return fmt.Sprintf("Gateway error (HTTP %d)", e.StatusCode)
	case ErrTypeParse:
		return "Failed to parse gateway response"
	default:
		return e.Message
	}
}
