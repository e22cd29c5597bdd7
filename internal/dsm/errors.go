package dsm

import (
	"errors"
	"fmt"
)

// DSM error codes returned by the appliance. Auth codes come from
// SYNO.API.Auth; the session codes are shared by all webapi endpoints.
const (
	codeInvalidCredentials = 400
	codeAccountDisabled    = 401
	codeOTPRequired        = 403
	codeOTPInvalid         = 404
	codeOTPEnforced        = 406

	codeInsufficientPrivilege = 105
	codeSessionTimeout        = 106
	codeSessionInterrupted    = 107
	codeSIDNotFound           = 119
)

// AuthError reports a login or session failure.
// NeedsOTP is set when the appliance demands a one-time password and none was
// configured; the setup flow must collect one, it is never retried here.
// Permanent is set when credentials were rejected outright -- re-login with
// the same configuration cannot succeed.
type AuthError struct {
	Code      int
	NeedsOTP  bool
	Expired   bool
	Permanent bool
}

func (e *AuthError) Error() string {
	switch {
	case e.NeedsOTP:
		return "dsm: authentication requires a one-time password"
	case e.Expired:
		return fmt.Sprintf("dsm: session expired (code %d)", e.Code)
	case e.Permanent:
		return fmt.Sprintf("dsm: credentials rejected (code %d)", e.Code)
	default:
		return fmt.Sprintf("dsm: authentication failed (code %d)", e.Code)
	}
}

// NetworkError reports a transport-level failure (timeout, unreachable host).
// The session is left intact; the scheduler backs off instead of retrying.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("dsm: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError reports a structured failure returned by the appliance.
type APIError struct {
	API    string
	Method string
	Code   int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dsm: %s/%s failed with code %d", e.API, e.Method, e.Code)
}

// ParseError reports an unexpected payload shape for a named source.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dsm: parse %s payload: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsAuthExpired reports whether err is an expired-session auth error, the
// only class of error Call transparently recovers from.
func IsAuthExpired(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Expired
}

// IsPermanentAuth reports whether err indicates permanently rejected
// credentials. Callers surface this as the single "integration offline"
// condition instead of retrying.
func IsPermanentAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Permanent
}

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

func isSessionExpiredCode(code int) bool {
	switch code {
	case codeInsufficientPrivilege, codeSessionTimeout, codeSessionInterrupted, codeSIDNotFound:
		return true
	}
	return false
}
