package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/goccy/go-json"
)

// DefaultRedirectURI is used when credentials do not carry a redirect URI.
const DefaultRedirectURI = "http://localhost:3000/oauth2callback"

// ErrNoCredentials signals that a tenant has no calendar credentials.
var ErrNoCredentials = errors.New("no calendar credentials")

// ErrInvalidTenantID is returned for tenant ids that cannot be used as
// file names.
var ErrInvalidTenantID = errors.New("invalid tenant id")

// Credentials are the OAuth client and refresh token for one tenant.
type Credentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RefreshToken string `json:"refreshToken"`
	RedirectURI  string `json:"redirectUri,omitempty"`
}

// Complete reports whether the credentials can be used to obtain tokens.
func (c *Credentials) Complete() bool {
	return c != nil && c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// CredentialProvider resolves credentials for a tenant.
type CredentialProvider interface {
	// CredentialsForTenant returns ErrNoCredentials when the tenant has none.
	CredentialsForTenant(ctx context.Context, tenantID string) (*Credentials, error)
}

var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateTenantID rejects ids that are empty, too long or contain path
// separators.
func ValidateTenantID(tenantID string) error {
	if !tenantIDPattern.MatchString(tenantID) {
		return fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}
	return nil
}

// EnvCredentialProvider reads one set of credentials from the process
// environment and hands it to every tenant.
type EnvCredentialProvider struct {
	// lookup defaults to os.LookupEnv
	lookup func(string) (string, bool)
}

// NewEnvCredentialProvider reads GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET,
// GOOGLE_REFRESH_TOKEN and GOOGLE_REDIRECT_URI.
func NewEnvCredentialProvider() *EnvCredentialProvider {
	return &EnvCredentialProvider{lookup: os.LookupEnv}
}

// CredentialsForTenant implements CredentialProvider.
func (p *EnvCredentialProvider) CredentialsForTenant(_ context.Context, _ string) (*Credentials, error) {
	get := func(key string) string {
		v, _ := p.lookup(key)
		return v
	}
	creds := &Credentials{
		ClientID:     get("GOOGLE_CLIENT_ID"),
		ClientSecret: get("GOOGLE_CLIENT_SECRET"),
		RefreshToken: get("GOOGLE_REFRESH_TOKEN"),
		RedirectURI:  get("GOOGLE_REDIRECT_URI"),
	}
	if !creds.Complete() {
		return nil, ErrNoCredentials
	}
	if creds.RedirectURI == "" {
		creds.RedirectURI = DefaultRedirectURI
	}
	return creds, nil
}

// FileCredentialProvider reads <dir>/<tenant>.json.
type FileCredentialProvider struct {
	dir string
}

// NewFileCredentialProvider creates a provider rooted at dir. An empty dir
// uses DefaultCredentialsDir.
func NewFileCredentialProvider(dir string) *FileCredentialProvider {
	if dir == "" {
		dir = DefaultCredentialsDir()
	}
	return &FileCredentialProvider{dir: dir}
}

// Dir returns the directory credentials are read from.
func (p *FileCredentialProvider) Dir() string {
	return p.dir
}

func (p *FileCredentialProvider) path(tenantID string) (string, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return "", err
	}
	return filepath.Join(p.dir, tenantID+".json"), nil
}

// CredentialsForTenant implements CredentialProvider.
func (p *FileCredentialProvider) CredentialsForTenant(_ context.Context, tenantID string) (*Credentials, error) {
	path, err := p.path(tenantID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}
	if !creds.Complete() {
		return nil, ErrNoCredentials
	}
	if creds.RedirectURI == "" {
		creds.RedirectURI = DefaultRedirectURI
	}
	return &creds, nil
}

// Save writes credentials for a tenant with owner-only permissions.
func (p *FileCredentialProvider) Save(tenantID string, creds Credentials) error {
	path, err := p.path(tenantID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}

// ChainCredentialProvider asks each provider in turn and returns the first
// credentials found. Provider errors other than ErrNoCredentials are
// logged and the chain moves on.
type ChainCredentialProvider struct {
	providers []CredentialProvider
	logger    *slog.Logger
}

// NewChainCredentialProvider creates a chain. A nil logger uses slog.Default.
func NewChainCredentialProvider(logger *slog.Logger, providers ...CredentialProvider) *ChainCredentialProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainCredentialProvider{providers: providers, logger: logger}
}

// CredentialsForTenant implements CredentialProvider.
func (c *ChainCredentialProvider) CredentialsForTenant(ctx context.Context, tenantID string) (*Credentials, error) {
	for _, p := range c.providers {
		creds, err := p.CredentialsForTenant(ctx, tenantID)
		if err == nil {
			return creds, nil
		}
		if !errors.Is(err, ErrNoCredentials) {
			c.logger.Warn("credential provider failed, trying next",
				slog.String("tenant", tenantID),
				slog.String("provider", fmt.Sprintf("%T", p)),
				slog.String("error", err.Error()))
		}
	}
	return nil, ErrNoCredentials
}

// StaticCredentialProvider serves credentials from a fixed map.
type StaticCredentialProvider map[string]Credentials

// CredentialsForTenant implements CredentialProvider.
func (s StaticCredentialProvider) CredentialsForTenant(_ context.Context, tenantID string) (*Credentials, error) {
	creds, ok := s[tenantID]
	if !ok || !creds.Complete() {
		return nil, ErrNoCredentials
	}
	return &creds, nil
}
