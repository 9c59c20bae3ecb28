//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

// Package common provides shared types and utilities used across the
// oracle packages.
//
// # Error Handling
//
// Four structured error types cover the failure taxonomy of a test run:
//
//   - [AuthenticationError]: a usable session could not be obtained for a
//     role. Fatal to every probe depending on that role.
//   - [DecodeError]: a bearer token is structurally malformed. Recorded as
//     an ERROR finding, never a crash.
//   - [ConfigurationError]: the policy matrix is missing an entry for an
//     exercised role/action-class pair. Gates the entire run pre-flight.
//   - [TransportError]: a network-level failure (timeout, refused
//     connection) distinct from a meaningful HTTP rejection.
//
// Each type carries a machine-readable reason code suitable for report
// records alongside the human-readable message.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// ReasonCode is the machine-readable classification of an error for
// report records.
type ReasonCode string

// Reason codes attached to the structured error types.
const (
	ReasonAuthRejected   ReasonCode = "AUTH_REJECTED"
	ReasonAuthTransport  ReasonCode = "AUTH_TRANSPORT"
	ReasonTokenMissing   ReasonCode = "TOKEN_MISSING"
	ReasonTokenMalformed ReasonCode = "TOKEN_MALFORMED"
	ReasonPolicyGap      ReasonCode = "POLICY_GAP"
	ReasonRoleInvalid    ReasonCode = "ROLE_INVALID"
	ReasonPlanInvalid    ReasonCode = "PLAN_INVALID"
	ReasonTimeout        ReasonCode = "TIMEOUT"
	ReasonNetwork        ReasonCode = "NETWORK"
)

// AuthenticationError indicates that a role could not obtain a usable
// session. All probes depending on the role must be recorded as ERROR,
// not executed.
type AuthenticationError struct {
	Role       string
	ReasonCode ReasonCode
	Reason     string
	Cause      error
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for role %s: %s(code-%s)", e.Role, e.Reason, e.ReasonCode)
}

// Unwrap returns the underlying cause, if any.
func (e *AuthenticationError) Unwrap() error { return e.Cause }

// NewAuthenticationError creates a new [AuthenticationError].
func NewAuthenticationError(role string, code ReasonCode, reason string, cause error) *AuthenticationError {
	return &AuthenticationError{Role: role, ReasonCode: code, Reason: reason, Cause: cause}
}

// DecodeError indicates a structurally malformed bearer token: wrong
// segment count, invalid base64url, or invalid encoded content.
type DecodeError struct {
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("token decode failed: %s(code-%s)", e.Reason, ReasonTokenMalformed)
}

// Unwrap returns the underlying cause, if any.
func (e *DecodeError) Unwrap() error { return e.Cause }

// NewDecodeError creates a new [DecodeError].
func NewDecodeError(reason string, cause error) *DecodeError {
	return &DecodeError{Reason: reason, Cause: cause}
}

// ConfigurationError indicates an incomplete or inconsistent test
// configuration. An incomplete policy matrix makes every downstream
// verdict untrustworthy, so it aborts the run before any probe executes.
type ConfigurationError struct {
	ReasonCode ReasonCode
	Reason     string
	// Missing lists unresolved role/action-class combinations, when the
	// error stems from a policy matrix gap.
	Missing []string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s(code-%s): %s", e.Reason, e.ReasonCode, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s(code-%s)", e.Reason, e.ReasonCode)
}

// NewConfigurationError creates a new [ConfigurationError].
func NewConfigurationError(code ReasonCode, reason string, missing ...string) *ConfigurationError {
	return &ConfigurationError{ReasonCode: code, Reason: reason, Missing: missing}
}

// TransportError indicates a network-level probe failure. It is
// classified as ERROR downstream, never as a DENY verdict.
type TransportError struct {
	Op         string
	ReasonCode ReasonCode
	Cause      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s(code-%s): %v", e.Op, e.ReasonCode, e.Cause)
}

// Unwrap returns the underlying cause, if any.
func (e *TransportError) Unwrap() error { return e.Cause }

// NewTransportError creates a new [TransportError].
func NewTransportError(op string, code ReasonCode, cause error) *TransportError {
	return &TransportError{Op: op, ReasonCode: code, Cause: cause}
}

// IsAuthentication reports whether err is (or wraps) an [AuthenticationError].
func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// IsDecode reports whether err is (or wraps) a [DecodeError].
func IsDecode(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

// IsConfiguration reports whether err is (or wraps) a [ConfigurationError].
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsTransport reports whether err is (or wraps) a [TransportError].
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}
