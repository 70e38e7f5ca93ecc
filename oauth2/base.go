package oauth2

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/panyam/authcore"
	"golang.org/x/oauth2"
)

// BaseOAuth2 carries what every authorization-code flow needs: the client
// config, the session holding the state parameter and the result callbacks.
type BaseOAuth2 struct {
	Config  oauth2.Config
	Session *scs.SessionManager

	HandleUser  HandleUserFunc
	HandleError HandleErrorFunc

	// HTTPClient is used for the code exchange and profile fetch. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	Logger *slog.Logger
}

func (b *BaseOAuth2) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

func (b *BaseOAuth2) fail(w http.ResponseWriter, r *http.Request, err error) {
	if b.HandleError != nil {
		b.HandleError(w, r, err)
		return
	}
	defaultErrorHandler(w, r, err)
}

// HandleRedirect stores a fresh state in the session and sends the browser to the consent page.
// The session middleware must wrap this handler.
func (b *BaseOAuth2) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		b.fail(w, r, err)
		return
	}
	b.Session.Put(r.Context(), stateSessionKey, state)
	http.Redirect(w, r, b.Config.AuthCodeURL(state), http.StatusFound)
}

// exchange validates the callback's state and trades its code for a token
func (b *BaseOAuth2) exchange(r *http.Request) (*oauth2.Token, error) {
	if errCode := r.FormValue("error"); errCode != "" {
		return nil, fmt.Errorf("%w: provider returned %s", authcore.ErrInvalidCredentials, errCode)
	}

	expected := b.Session.PopString(r.Context(), stateSessionKey)
	got := r.FormValue("state")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		return nil, fmt.Errorf("%w: oauth state mismatch", authcore.ErrInvalidInput)
	}

	code := r.FormValue("code")
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", authcore.ErrInvalidInput)
	}

	token, err := b.Config.Exchange(b.clientContext(r.Context()), code)
	if err != nil {
		b.logger().Warn("oauth code exchange failed", "error", err)
		return nil, fmt.Errorf("%w: code exchange failed", authcore.ErrInvalidCredentials)
	}
	return token, nil
}

// clientContext makes x/oauth2 use the configured HTTP client
func (b *BaseOAuth2) clientContext(ctx context.Context) context.Context {
	if b.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, b.HTTPClient)
}
