// Package google resolves per-tenant Google OAuth credentials and turns them
// into authenticated HTTP clients for the Calendar API.
//
// A CredentialProvider returns ErrNoCredentials when a tenant has no
// calendar integration. Callers treat that as "use the static schedule",
// not as a failure.
package google
