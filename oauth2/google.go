package oauth2

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/panyam/authcore"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUserInfoURL returns the profile of the token's owner
const GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleOAuth2 runs Google's authorization-code flow.
// Mounted under a prefix it serves "/" (redirect) and "/callback".
type GoogleOAuth2 struct {
	BaseOAuth2

	// UserInfoURL can be pointed at a fake in tests
	UserInfoURL string
}

func NewGoogleOAuth2(clientID, clientSecret, callbackURL string, session *scs.SessionManager, handleUser HandleUserFunc) *GoogleOAuth2 {
	return &GoogleOAuth2{
		BaseOAuth2: BaseOAuth2{
			Config: oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				RedirectURL:  callbackURL,
				Scopes: []string{
					"https://www.googleapis.com/auth/userinfo.email",
					"https://www.googleapis.com/auth/userinfo.profile",
				},
				Endpoint: google.Endpoint,
			},
			Session:    session,
			HandleUser: handleUser,
		},
		UserInfoURL: GoogleUserInfoURL,
	}
}

func (g *GoogleOAuth2) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch strings.Trim(r.URL.Path, "/") {
	case "":
		g.HandleRedirect(w, r)
	case "callback":
		g.handleCallback(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (g *GoogleOAuth2) handleCallback(w http.ResponseWriter, r *http.Request) {
	token, err := g.exchange(r)
	if err != nil {
		g.fail(w, r, err)
		return
	}

	profile, err := g.fetchProfile(r, token)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.HandleUser(authcore.ProviderGoogle, *profile, w, r)
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail *bool  `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (g *GoogleOAuth2) fetchProfile(r *http.Request, token *oauth2.Token) (*authcore.ProviderProfile, error) {
	client := g.Config.Client(g.clientContext(r.Context()), token)
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, g.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		g.logger().Warn("google userinfo request failed", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: google rejected the access token", authcore.ErrInvalidCredentials)
	}

	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode google user info: %w", err)
	}
	if info.VerifiedEmail != nil && !*info.VerifiedEmail {
		return nil, fmt.Errorf("%w: google email is not verified", authcore.ErrInvalidCredentials)
	}

	return &authcore.ProviderProfile{
		ProviderID:      info.ID,
		Email:           info.Email,
		DisplayName:     info.Name,
		ProfileImageURL: info.Picture,
	}, nil
}
