// Package errors provides foundational, type-safe error primitives used across timetracker.
//
// Key features:
//   - ErrorCategory: Broad error classification (config, network, delivery, storage, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - RetryStrategy: Whether state should be kept for the next start
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - HTTP and CLI adapters for error presentation
//
// Example usage:
//
//	err := errors.NetworkError("log-time request failed").
//		WithContext("endpoint", "/api/visitors/log-time").
//		WithCause(originalErr).
//		Build()
package errors
