// Package logging provides structured logging helpers for slotkeeper.
//
// It centralizes attribute names so every component logs tenants,
// operations and errors the same way, using the standard library's slog.
//
// # Usage Patterns
//
// Scope a logger to a tenant:
//
//	logger := logging.WithTenant(slog.Default(), tenantID)
//	logger.Info("availability refreshed", logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("booking confirmed", logging.ClientHash(details.ClientEmail))
//
// # Security Considerations
//
//   - Client emails are hashed so log lines can be correlated without PII
//   - Refresh tokens and client secrets are only logged through SanitizeToken
package logging
