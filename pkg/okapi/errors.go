package okapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// StatusReason is a machine-readable description of why a request failed.
type StatusReason string

// Reasons mirrored from the API server's failure statuses.
const (
	ReasonBadRequest   StatusReason = "BadRequest"
	ReasonUnauthorized StatusReason = "Unauthorized"
	ReasonForbidden    StatusReason = "Forbidden"
	ReasonNotFound     StatusReason = "NotFound"
	ReasonConflict     StatusReason = "Conflict"
	ReasonInvalid      StatusReason = "Invalid"
	ReasonTimeout      StatusReason = "Timeout"
	ReasonServerError  StatusReason = "InternalError"
	ReasonUnknown      StatusReason = "Unknown"
)

// Status is the structured failure body returned by the API server.
type Status struct {
	Kind    string         `json:"kind,omitempty"    yaml:"kind,omitempty"`
	Status  string         `json:"status,omitempty"  yaml:"status,omitempty"`
	Message string         `json:"message,omitempty" yaml:"message,omitempty"`
	Reason  StatusReason   `json:"reason,omitempty"  yaml:"reason,omitempty"`
	Details *StatusDetails `json:"details,omitempty" yaml:"details,omitempty"`
	Code    int            `json:"code,omitempty"    yaml:"code,omitempty"`
}

// StatusDetails names the resource a failure status refers to.
type StatusDetails struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// StatusError represents an HTTP-level failure from the API, carrying the
// status code and whatever structured detail the server provided. The raw
// response body is retained for callers that need it.
type StatusError struct {
	StatusCode int
	Reason     StatusReason
	Message    string
	Details    *StatusDetails
	Body       []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Reason, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("%s (HTTP %d)", e.Reason, e.StatusCode)
}

// NewStatusError builds a StatusError from a response status code and body.
// A Status-shaped JSON body contributes its reason and message; anything else
// falls back to a reason derived from the status code alone.
func NewStatusError(statusCode int, body []byte) *StatusError {
	statusErr := &StatusError{
		StatusCode: statusCode,
		Reason:     reasonForCode(statusCode),
		Body:       body,
	}

	var status Status
	if err := json.Unmarshal(body, &status); err == nil && status.Status == "Failure" {
		if status.Reason != "" {
			statusErr.Reason = status.Reason
		}

		statusErr.Message = status.Message
		statusErr.Details = status.Details
	} else if len(body) > 0 {
		statusErr.Message = strings.TrimSpace(string(body))
	}

	return statusErr
}

// reasonForCode maps an HTTP status code to a StatusReason.
func reasonForCode(code int) StatusReason {
	switch code {
	case http.StatusBadRequest:
		return ReasonBadRequest
	case http.StatusUnauthorized:
		return ReasonUnauthorized
	case http.StatusForbidden:
		return ReasonForbidden
	case http.StatusNotFound:
		return ReasonNotFound
	case http.StatusConflict:
		return ReasonConflict
	case http.StatusUnprocessableEntity:
		return ReasonInvalid
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return ReasonTimeout
	default:
		if code >= http.StatusInternalServerError {
			return ReasonServerError
		}

		return ReasonUnknown
	}
}

// ParameterError reports a missing or unusable required parameter. It is
// fatal at construction time and never retried.
type ParameterError struct {
	Param  string
	Detail string
}

// Error implements the error interface.
func (e *ParameterError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("parameter %q: %s", e.Param, e.Detail)
	}

	return fmt.Sprintf("parameter %q is required", e.Param)
}

// VersionError reports an unknown API version and carries the valid set.
type VersionError struct {
	Version string
	Valid   []string
}

// Error implements the error interface.
func (e *VersionError) Error() string {
	return fmt.Sprintf("unknown API version %q (valid: %s)", e.Version, strings.Join(e.Valid, ", "))
}

// TokenParseError reports that the authentication response did not yield a
// token. It is distinct from HTTP errors: the exchange itself succeeded at
// the transport level but the redirect location could not be parsed.
type TokenParseError struct {
	Detail string
}

// Error implements the error interface.
func (e *TokenParseError) Error() string {
	if e.Detail != "" {
		return "unable to parse token from authentication response: " + e.Detail
	}

	return "unable to parse token from authentication response"
}

// Static errors for err113 compliance.
var (
	ErrConfigRequired         = errors.New("config is required")
	ErrAPIEndpointRequired    = errors.New("API endpoint is required")
	ErrNoTokenManager         = errors.New("no token manager configured")
	ErrStaticTokenInvalidated = errors.New("static token invalidated and cannot be refreshed")
	ErrInsecureAuthEndpoint   = errors.New("authentication endpoint is not using https (set AllowInsecureAuth to override)")
	ErrHostNotFound           = errors.New("host could not be resolved")
	ErrUnknownResource        = errors.New("unknown resource")
	ErrVerbNotSupported       = errors.New("verb not supported for resource")
	ErrSessionStarted         = errors.New("watch session already started")
	ErrSessionStopped         = errors.New("watch session stopped")
	ErrSnapshotRequired       = errors.New("watch session has no snapshot")
	ErrFrameTooLarge          = errors.New("watch frame exceeds maximum buffered size")
	ErrSkipTLSOnlyInDev       = errors.New("skipTLS is only allowed in development environments")
	ErrNoAuthorizeEndpoint    = errors.New("no authorization endpoint found in server metadata")
	ErrDiscoveryFailed        = errors.New("authorization server discovery failed")
)

// IsNotFound checks whether the error is an HTTP 404 from the API.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized checks whether the error is an HTTP 401 from the API.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden checks whether the error is an HTTP 403 from the API.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsConflict checks whether the error is an HTTP 409 from the API.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

// IsServerError checks whether the error is an HTTP 5xx from the API.
func IsServerError(err error) bool {
	statusErr := &StatusError{}
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError
	}

	return false
}

func hasStatus(err error, code int) bool {
	statusErr := &StatusError{}
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == code
	}

	return false
}

// MaskSecret replaces a credential value for inclusion in error context or
// logs. Tokens and passwords must never appear verbatim.
func MaskSecret(value string) string {
	if value == "" {
		return ""
	}

	return "***"
}
