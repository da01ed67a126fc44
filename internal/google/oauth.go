package google

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuthConfig returns the OAuth2 configuration for a tenant's credentials.
func OAuthConfig(creds Credentials) *oauth2.Config {
	redirect := creds.RedirectURI
	if redirect == "" {
		redirect = DefaultRedirectURI
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirect,
		Scopes:       CalendarScopes,
	}
}

// TokenSource returns a token source that refreshes access tokens from the
// tenant's refresh token.
func TokenSource(ctx context.Context, creds Credentials) oauth2.TokenSource {
	return OAuthConfig(creds).TokenSource(ctx, &oauth2.Token{
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
	})
}

// HTTPClient returns an HTTP client authenticated with the tenant's
// credentials. Requests are traced and use HTTP/1.1 to avoid HTTP/2
// protocol errors.
func HTTPClient(ctx context.Context, creds Credentials) *http.Client {
	client := oauth2.NewClient(ctx, TokenSource(ctx, creds))

	// Force HTTP/1.1 by disabling HTTP/2
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = otelhttp.NewTransport(&http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		})
	}
	return client
}

// DefaultCredentialsDir is the per-user directory tenant credential files
// are read from.
func DefaultCredentialsDir() string {
	return filepath.Join(userCacheDir(), "slotkeeper", "credentials")
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		return os.TempDir()
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
