package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "server.port")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// maxPageLimit bounds listing.page_limit; a listing that needs more pages
// than this is treated as a misbehaving server.
const maxPageLimit = 100000

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateListing()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Value:   c.Server.Port,
			Message: "must be between 1 and 65535",
		})
	}

	if strings.TrimSpace(c.Server.ClientCodepage) == "" {
		errors = append(errors, ValidationError{
			Field:   "server.client_codepage",
			Value:   c.Server.ClientCodepage,
			Message: "must not be empty",
		})
	}

	if strings.TrimSpace(c.Server.Transport) == "" {
		errors = append(errors, ValidationError{
			Field:   "server.transport",
			Value:   c.Server.Transport,
			Message: "must not be empty",
		})
	}

	if strings.ContainsAny(c.Server.Host, " \t/") {
		errors = append(errors, ValidationError{
			Field:   "server.host",
			Value:   c.Server.Host,
			Message: "must be a bare host name or address",
		})
	}

	if c.Server.ConnectRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.connect_retries",
			Value:   c.Server.ConnectRetries,
			Message: "must be non-negative",
		})
	}

	if c.Server.RetryBackoffMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.retry_backoff_ms",
			Value:   c.Server.RetryBackoffMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateListing validates the ListingConfig
func (c *Config) validateListing() []ValidationError {
	var errors []ValidationError

	if c.Listing.PageLimit < 1 || c.Listing.PageLimit > maxPageLimit {
		errors = append(errors, ValidationError{
			Field:   "listing.page_limit",
			Value:   c.Listing.PageLimit,
			Message: fmt.Sprintf("must be between 1 and %d", maxPageLimit),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}

	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
