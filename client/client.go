package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/panyam/authcore"
)

// AuthClient talks to an authcore server and remembers the issued token
type AuthClient struct {
	mu            sync.Mutex
	serverURL     string
	store         CredentialStore
	httpClient    *http.Client
	baseTransport http.RoundTripper
	pathPrefix    string // e.g., "/auth"
}

// AuthResponse is the body returned by register and login
type AuthResponse struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expiresAt"`
	User      authcore.PublicUser `json:"user"`
}

// APIError is a non-2xx response from the server. It unwraps to the
// matching authcore error kind, so errors.Is(err, authcore.ErrDuplicateAccount) works.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authentication failed: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case authcore.ErrCodeDuplicateAccount:
		return authcore.ErrDuplicateAccount
	case authcore.ErrCodeInvalidCredentials:
		return authcore.ErrInvalidCredentials
	case authcore.ErrCodeAccountNotFound:
		return authcore.ErrAccountNotFound
	case authcore.ErrCodeInvalidToken:
		return authcore.ErrInvalidToken
	case authcore.ErrCodeInvalidInput:
		return authcore.ErrInvalidInput
	case authcore.ErrCodeProviderDisabled:
		return authcore.ErrProviderDisabled
	default:
		return nil
	}
}

// ClientOption configures an AuthClient
type ClientOption func(*AuthClient)

// WithPathPrefix sets where the auth routes are mounted (default "/auth")
func WithPathPrefix(prefix string) ClientOption {
	return func(c *AuthClient) {
		c.pathPrefix = prefix
	}
}

// WithHTTPClient sets a custom base HTTP client (for timeouts, TLS config, etc.)
// The transport from this client will be wrapped with auth handling.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *AuthClient) {
		if client == nil {
			return
		}
		if client.Transport != nil {
			c.baseTransport = client.Transport
		}
		c.httpClient.Timeout = client.Timeout
		c.httpClient.CheckRedirect = client.CheckRedirect
		c.httpClient.Jar = client.Jar
	}
}

// WithTransport sets a custom base transport (for connection pooling, proxies, etc.)
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *AuthClient) {
		c.baseTransport = transport
	}
}

// NewAuthClient creates a new authenticated HTTP client for a server
func NewAuthClient(serverURL string, store CredentialStore, opts ...ClientOption) *AuthClient {
	u, err := url.Parse(serverURL)
	if err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}

	c := &AuthClient{
		serverURL:     serverURL,
		store:         store,
		httpClient:    &http.Client{},
		baseTransport: http.DefaultTransport,
		pathPrefix:    "/auth",
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient.Transport = &AuthTransport{
		Base:           c.baseTransport,
		Source:         c.GetToken,
		OnUnauthorized: c.forgetToken,
	}
	return c
}

// HTTPClient returns an HTTP client that sends the stored token
func (c *AuthClient) HTTPClient() *http.Client {
	return c.httpClient
}

// ServerURL returns the server URL this client is configured for
func (c *AuthClient) ServerURL() string {
	return c.serverURL
}

// GetToken returns the stored token, or "" if there is none or it expired
func (c *AuthClient) GetToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil {
		return "", err
	}
	if cred == nil || cred.IsExpired() {
		return "", nil
	}
	return cred.AccessToken, nil
}

// GetCredential returns the stored credential for this server
func (c *AuthClient) GetCredential() (*ServerCredential, error) {
	return c.store.GetCredential(c.serverURL)
}

// Register creates a local account and stores the issued token
func (c *AuthClient) Register(ctx context.Context, email, password, name string) (*ServerCredential, error) {
	return c.authenticate(ctx, "/register", authcore.RegisterInput{Email: email, Password: password, Name: name})
}

// Login authenticates with email and password and stores the issued token
func (c *AuthClient) Login(ctx context.Context, email, password string) (*ServerCredential, error) {
	return c.authenticate(ctx, "/login", authcore.LoginInput{Email: email, Password: password})
}

// LoginWithApple exchanges an Apple identity token for a server token
func (c *AuthClient) LoginWithApple(ctx context.Context, idToken, name string) (*ServerCredential, error) {
	return c.authenticate(ctx, "/apple", map[string]string{"idToken": idToken, "name": name})
}

// Me returns the account the stored token belongs to
func (c *AuthClient) Me(ctx context.Context) (*authcore.PublicUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+c.pathPrefix+"/me", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	var user authcore.PublicUser
	if err := decodeResponse(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout forgets the credential for this server. Tokens are stateless, so
// the server is not contacted.
func (c *AuthClient) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.RemoveCredential(c.serverURL); err != nil {
		return err
	}
	return c.store.Save()
}

// IsLoggedIn returns true if there is a valid (non-expired) credential
func (c *AuthClient) IsLoggedIn() bool {
	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil || cred == nil {
		return false
	}
	return !cred.IsExpired()
}

// forgetToken drops a credential the server no longer accepts
func (c *AuthClient) forgetToken() {
	c.Logout()
}

func (c *AuthClient) authenticate(ctx context.Context, path string, body any) (*ServerCredential, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+c.pathPrefix+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	// Use base transport directly so a stale token is not attached
	httpClient := &http.Client{Transport: c.baseTransport, Timeout: c.httpClient.Timeout}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	var result AuthResponse
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	cred := &ServerCredential{
		AccessToken: result.Token,
		TokenType:   "Bearer",
		UserID:      result.User.ID,
		UserEmail:   result.User.Email,
		Provider:    string(result.User.Provider),
		ExpiresAt:   result.ExpiresAt,
		CreatedAt:   time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.SetCredential(c.serverURL, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}
	if err := c.store.Save(); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}
	return cred, nil
}

func decodeResponse(resp *http.Response, dst any) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		json.Unmarshal(body, apiErr)
		return apiErr
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid response from server: %w", err)
	}
	return nil
}

// IsAPIError reports whether err came from a server response with the given status
func IsAPIError(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
