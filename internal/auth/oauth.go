package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/sakif/category-note/internal/apperror"
	"github.com/sakif/category-note/internal/model"
)

// IdentityProvider is one OAuth 2.0 authorization-code integration.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. AuthURL: we redirect the browser to the provider with our ClientID,
//     the requested scopes and a random state value.
//  2. The user approves on the provider's site.
//  3. The provider redirects back to our callback with a short-lived code.
//  4. ExchangeCode: trade the code for an access token (server-to-server,
//     using the ClientSecret), then call the provider's profile API.
//
// Every failure from step 4 is reported as apperror.ErrUpstreamAuth. Codes
// are single-use, so nothing here is retried.
type IdentityProvider interface {
	Name() model.Provider
	AuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*model.Identity, error)
}

// ProviderConfig holds the credentials and, optionally, endpoint overrides
// for one provider. Zero-valued overrides fall back to the provider's public
// endpoints.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	Endpoint   oauth2.Endpoint
	APIBaseURL string
	HTTPClient *http.Client
}

// Providers is the closed set of identity providers, keyed by name.
type Providers map[model.Provider]IdentityProvider

// NewProviders builds the lookup table.
func NewProviders(ps ...IdentityProvider) Providers {
	out := make(Providers, len(ps))
	for _, p := range ps {
		out[p.Name()] = p
	}
	return out
}

// Lookup returns the provider registered under name. Unknown names are a
// client error and are rejected before any network call.
func (p Providers) Lookup(name string) (IdentityProvider, error) {
	prov, ok := p[model.Provider(strings.ToLower(name))]
	if !ok {
		return nil, apperror.BadRequest(fmt.Sprintf("unsupported OAuth provider %q", name))
	}
	return prov, nil
}

// oauthClient carries what GitHubProvider and GoogleProvider share: the
// oauth2 config, the API base URL and an optional custom HTTP client.
type oauthClient struct {
	name    model.Provider
	config  *oauth2.Config
	apiBase string
	hc      *http.Client
}

func newOAuthClient(name model.Provider, cfg ProviderConfig, defaultEndpoint oauth2.Endpoint, defaultAPI string, scopes []string) oauthClient {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
		endpoint = defaultEndpoint
	}
	api := strings.TrimRight(cfg.APIBaseURL, "/")
	if api == "" {
		api = defaultAPI
	}
	return oauthClient{
		name: name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		apiBase: api,
		hc:      cfg.HTTPClient,
	}
}

func (c oauthClient) AuthURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// exchange trades the code for a token and returns an HTTP client that adds
// "Authorization: Bearer <token>" to every request.
func (c oauthClient) exchange(ctx context.Context, code string) (*http.Client, error) {
	if c.hc != nil {
		// oauth2 picks the transport for both the token call and the
		// returned client from this context value.
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.hc)
	}
	tok, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.UpstreamAuth(string(c.name), fmt.Errorf("exchanging code: %w", err))
	}
	return c.config.Client(ctx, tok), nil
}

// getJSON fetches apiBase+path and decodes a 200 response into dst.
func (c oauthClient) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
