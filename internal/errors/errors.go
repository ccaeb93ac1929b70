// Package errors provides centralized error definitions and error handling utilities
// for ndvlink. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures of the development server session:
//   - ConnectionError: connect failures, classified as authentication or network
//   - ProtocolError: any other transport failure during logon, listing, read or write
//   - ResolutionError: no usable storage area could be determined
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//
// # Usage
//
//	err := errors.NewProtocolError("read source failed", cause).
//		WithOp("read").WithLibrary("ABAK-T").WithObject("#BHOBICP").WithArea(10, 32)
//
//	if errors.IsAuthFailure(err) { ... }
//	if errors.IsNetworkFailure(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry (network failures)
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Connection-related sentinel errors
var (
	// ErrAuthFailed indicates that the server rejected the credentials.
	ErrAuthFailed = New("authentication failed")
	// ErrNetworkUnreachable indicates that the server could not be reached.
	ErrNetworkUnreachable = New("server unreachable")
	// ErrNotConnected indicates an operation was attempted without an open session.
	ErrNotConnected = New("not connected")
	// ErrUnsupportedCodepage indicates the client codepage is unknown or not single-byte.
	ErrUnsupportedCodepage = New("unsupported client codepage")
)

// Resolution and content sentinel errors
var (
	// ErrNoStorageArea indicates that no storage area could be resolved.
	ErrNoStorageArea = New("no storage area available")
	// ErrObjectNotFound indicates that an object is not present in a library.
	ErrObjectNotFound = New("object not found")
	// ErrInvalidPath indicates that a LIBRARY/NAME.EXT path could not be parsed.
	ErrInvalidPath = New("invalid path")
	// ErrUnrepresentableText indicates source text the client codepage cannot encode.
	ErrUnrepresentableText = New("text not representable in client codepage")
)

// ErrInvalidInput indicates that input validation failed.
var ErrInvalidInput = New("invalid input")

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// NDVError is the base interface for all ndvlink errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type NDVError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// formatWithContext renders "<prefix> [k=v, ...]: message: cause".
func formatWithContext(prefix string, parts []string, message string, cause error) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ConnectionKind classifies a connect failure.
type ConnectionKind int

const (
	// ConnectionAuth means the server was reached but rejected the credentials.
	ConnectionAuth ConnectionKind = iota
	// ConnectionNetwork means the server could not be reached at all.
	ConnectionNetwork
)

// String returns the string representation of the connection kind.
func (k ConnectionKind) String() string {
	switch k {
	case ConnectionAuth:
		return "authentication"
	case ConnectionNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// networkHints is appended to network failures so the user knows where to look.
const networkHints = "check that the server is running, the port is correct, " +
	"and no firewall or VPN is blocking the connection"

// ConnectionError represents a failed connect attempt.
//
// Example:
//
//	err := errors.NewConnectionError(errors.ConnectionNetwork, "connect failed", cause)
//	err = err.WithHost("mf01").WithPort(2700).WithUser("JDOE")
type ConnectionError struct {
	baseError
	Kind ConnectionKind
	Host string
	Port int
	User string
}

// NewConnectionError creates a new ConnectionError. Network failures are
// retryable; authentication failures never are.
func NewConnectionError(kind ConnectionKind, message string, cause error) *ConnectionError {
	return &ConnectionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  kind == ConnectionNetwork,
			userFacing: true,
		},
		Kind: kind,
	}
}

// WithHost adds the server host to the error context.
func (e *ConnectionError) WithHost(host string) *ConnectionError {
	e.Host = host
	return e
}

// WithPort adds the server port to the error context.
func (e *ConnectionError) WithPort(port int) *ConnectionError {
	e.Port = port
	return e
}

// WithUser adds the user id to the error context.
func (e *ConnectionError) WithUser(user string) *ConnectionError {
	e.User = user
	return e
}

// Hint returns the actionable advice for this failure, if any.
func (e *ConnectionError) Hint() string {
	switch e.Kind {
	case ConnectionNetwork:
		return networkHints
	case ConnectionAuth:
		return "check the user id and password"
	}
	return ""
}

// Error returns the formatted error message.
func (e *ConnectionError) Error() string {
	var parts []string
	if e.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", e.Host))
	}
	if e.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", e.Port))
	}
	if e.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", e.User))
	}
	msg := formatWithContext(e.Kind.String()+" error", parts, e.message, e.cause)
	if hint := e.Hint(); hint != "" {
		msg += " (" + hint + ")"
	}
	return msg
}

// Is checks if this error matches the target.
func (e *ConnectionError) Is(target error) bool {
	if _, ok := target.(*ConnectionError); ok {
		return true
	}
	switch {
	case e.Kind == ConnectionAuth && target == ErrAuthFailed:
		return true
	case e.Kind == ConnectionNetwork && target == ErrNetworkUnreachable:
		return true
	}
	return e.baseError.Is(target)
}

// ProtocolError represents a transport failure during logon, listing or
// content transfer. It carries enough context to diagnose without re-running.
//
// Example:
//
//	err := errors.NewProtocolError("read source failed", cause).
//		WithOp("read").WithLibrary("ABAK-T").WithObject("#BHOBICP").WithArea(0, 0)
//	// "protocol error [op=read, library=ABAK-T, object=#BHOBICP, area=0/0]: read source failed: ..."
type ProtocolError struct {
	baseError
	Op         string
	Library    string
	Object     string
	DatabaseID int
	FileNumber int
	hasArea    bool
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(message string, cause error) *ProtocolError {
	return &ProtocolError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithOp adds the failing operation name to the error context.
func (e *ProtocolError) WithOp(op string) *ProtocolError {
	e.Op = op
	return e
}

// WithLibrary adds the library to the error context.
func (e *ProtocolError) WithLibrary(library string) *ProtocolError {
	e.Library = library
	return e
}

// WithObject adds the object name to the error context.
func (e *ProtocolError) WithObject(name string) *ProtocolError {
	e.Object = name
	return e
}

// WithArea adds the attempted storage area coordinates to the error context.
func (e *ProtocolError) WithArea(databaseID, fileNumber int) *ProtocolError {
	e.DatabaseID = databaseID
	e.FileNumber = fileNumber
	e.hasArea = true
	return e
}

// HasArea reports whether area coordinates were recorded.
func (e *ProtocolError) HasArea() bool {
	return e.hasArea
}

// Error returns the formatted error message.
func (e *ProtocolError) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Library != "" {
		parts = append(parts, fmt.Sprintf("library=%s", e.Library))
	}
	if e.Object != "" {
		parts = append(parts, fmt.Sprintf("object=%s", e.Object))
	}
	if e.hasArea {
		parts = append(parts, fmt.Sprintf("area=%d/%d", e.DatabaseID, e.FileNumber))
	}
	return formatWithContext("protocol error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ProtocolError) Is(target error) bool {
	if _, ok := target.(*ProtocolError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ResolutionError represents a failure to determine the storage area for a
// content operation.
type ResolutionError struct {
	baseError
	Library string
	Object  string
}

// NewResolutionError creates a new ResolutionError wrapping ErrNoStorageArea
// unless another cause is given.
func NewResolutionError(message string, cause error) *ResolutionError {
	if cause == nil {
		cause = ErrNoStorageArea
	}
	return &ResolutionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithLibrary adds the library to the error context.
func (e *ResolutionError) WithLibrary(library string) *ResolutionError {
	e.Library = library
	return e
}

// WithObject adds the object name to the error context.
func (e *ResolutionError) WithObject(name string) *ResolutionError {
	e.Object = name
	return e
}

// Error returns the formatted error message.
func (e *ResolutionError) Error() string {
	var parts []string
	if e.Library != "" {
		parts = append(parts, fmt.Sprintf("library=%s", e.Library))
	}
	if e.Object != "" {
		parts = append(parts, fmt.Sprintf("object=%s", e.Object))
	}
	return formatWithContext("resolution error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ResolutionError) Is(target error) bool {
	if _, ok := target.(*ResolutionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("object", "ABAK-T/#BHOBICP")
//	fmt.Println(err) // "object 'ABAK-T/#BHOBICP' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("library name is empty").WithField("path").WithValue("/X")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%q", fmt.Sprint(e.Value)))
	}
	return formatWithContext("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsAuthFailure reports whether err is a rejected-credentials connect failure.
func IsAuthFailure(err error) bool {
	var connErr *ConnectionError
	return As(err, &connErr) && connErr.Kind == ConnectionAuth
}

// IsNetworkFailure reports whether err is an unreachable-server connect failure.
func IsNetworkFailure(err error) bool {
	var connErr *ConnectionError
	return As(err, &connErr) && connErr.Kind == ConnectionNetwork
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    time.Sleep(backoff)
//	    return retry(operation)
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ndvErr NDVError
	if As(err, &ndvErr) {
		return ndvErr.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var ndvErr NDVError
	if As(err, &ndvErr) {
		return ndvErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement NDVError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var ndvErr NDVError
	if As(err, &ndvErr) {
		return ndvErr.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike building a new error, this preserves the NDVError interface.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
