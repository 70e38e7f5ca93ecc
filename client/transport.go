package client

import (
	"net/http"
)

// TokenSource returns the token to send, or "" to send none
type TokenSource func() (string, error)

// StaticToken always returns the same token
func StaticToken(token string) TokenSource {
	return func() (string, error) { return token, nil }
}

// AuthTransport wraps an http.RoundTripper to add Authorization headers
type AuthTransport struct {
	Base   http.RoundTripper
	Source TokenSource

	// OnUnauthorized is called when a request that carried a token gets a 401
	OnUnauthorized func()
}

// RoundTrip implements http.RoundTripper
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var token string
	if t.Source != nil {
		var err error
		if token, err = t.Source(); err != nil {
			return nil, err
		}
	}
	if token != "" {
		// Clone the request to avoid mutating the original
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && token != "" && t.OnUnauthorized != nil {
		t.OnUnauthorized()
	}
	return resp, nil
}

// NewAuthTransport creates an AuthTransport with the given token
func NewAuthTransport(token string) *AuthTransport {
	return NewAuthTransportWithBase(http.DefaultTransport, token)
}

// NewAuthTransportWithBase creates an AuthTransport with a custom base transport
func NewAuthTransportWithBase(base http.RoundTripper, token string) *AuthTransport {
	return &AuthTransport{
		Base:   base,
		Source: StaticToken(token),
	}
}
