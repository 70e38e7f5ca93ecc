package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/panyam/authcore"
)

// HandleUserFunc receives the verified profile at the end of a successful flow
type HandleUserFunc func(provider authcore.Provider, profile authcore.ProviderProfile, w http.ResponseWriter, r *http.Request)

// HandleErrorFunc receives every failure of a flow
type HandleErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

// Session key holding the state parameter between redirect and callback
const stateSessionKey = "oauth2.state"

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	http.Error(w, authcore.PublicMessage(err), authcore.HTTPStatus(err))
}
