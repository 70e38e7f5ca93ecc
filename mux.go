package authcore

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
)

// IdentityTokenVerifier checks a provider-signed identity token (for example
// an Apple id_token) and returns the identity it vouches for.
type IdentityTokenVerifier interface {
	VerifyIdentityToken(ctx context.Context, idToken string) (*ProviderProfile, error)
}

// Handler exposes the Service over HTTP.
//
// Routes:
//
//	POST  /auth/register
//	POST  /auth/login
//	GET   /auth/google            (only when Google is enabled)
//	GET   /auth/google/callback   (only when Google is enabled)
//	POST  /auth/apple             (only when Apple is enabled)
//	GET   /auth/me
//	PATCH /auth/me
//	GET   /healthz
type Handler struct {
	Service *Service

	// Session holds short lived OAuth state between redirect and callback
	Session *scs.SessionManager

	// GoogleFlow serves the redirect and callback of the Google sign-in flow.
	// It sees paths relative to /auth/google.
	GoogleFlow http.Handler

	// AppleVerifier validates identity tokens posted to /auth/apple
	AppleVerifier IdentityTokenVerifier

	// AllowedOrigins enables CORS for browser clients on these origins
	AllowedOrigins []string

	Logger *slog.Logger

	middleware *Middleware
}

// NewHandler creates a handler with a fresh session manager
func NewHandler(svc *Service) *Handler {
	return &Handler{
		Service: svc,
		Session: scs.New(),
		Logger:  slog.Default(),
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// Middleware returns the bearer token middleware bound to the service's issuer
func (h *Handler) Middleware() *Middleware {
	if h.middleware == nil {
		h.middleware = &Middleware{Tokens: h.Service.Tokens(), Logger: h.logger()}
	}
	return h.middleware
}

// Routes builds a router with every enabled route, behind CORS handling
// when AllowedOrigins is set
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	h.Mount(r.PathPrefix("/auth").Subrouter(), "/auth")
	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found", Code: "not_found"})
	})
	return h.withCORS(r)
}

// withCORS wraps the whole router: preflight OPTIONS requests match no route.
func (h *Handler) withCORS(next http.Handler) http.Handler {
	var origins []string
	for _, origin := range h.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return next
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:       origins,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:       []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:               300,
		OptionsSuccessStatus: http.StatusNoContent,
	})(next)
}

// Mount registers the auth routes on r. prefix is the path r is mounted at,
// needed to strip it before handing requests to provider flows.
func (h *Handler) Mount(r *mux.Router, prefix string) {
	prefix = strings.TrimSuffix(prefix, "/")
	caps := h.Service.Capabilities()

	r.HandleFunc("/register", h.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", h.HandleLogin).Methods(http.MethodPost)

	if caps.Google() {
		if h.GoogleFlow == nil {
			h.logger().Warn("google sign-in enabled but no flow configured, skipping routes")
		} else {
			var flow http.Handler = http.StripPrefix(prefix+"/google", h.GoogleFlow)
			if h.Session != nil {
				flow = h.Session.LoadAndSave(flow)
			}
			r.Handle("/google", flow).Methods(http.MethodGet)
			r.Handle("/google/callback", flow).Methods(http.MethodGet)
		}
	}
	if caps.Apple() {
		if h.AppleVerifier == nil {
			h.logger().Warn("apple sign-in enabled but no verifier configured, skipping route")
		} else {
			r.HandleFunc("/apple", h.HandleAppleLogin).Methods(http.MethodPost)
		}
	}

	me := h.Middleware().EnsureClaims
	r.Handle("/me", me(http.HandlerFunc(h.HandleMe))).Methods(http.MethodGet)
	r.Handle("/me", me(http.HandlerFunc(h.HandleUpdateMe))).Methods(http.MethodPatch)
}

// HandleProviderLogin completes a federated login once a provider flow has
// produced a verified profile. Provider flows call it from their callbacks.
func (h *Handler) HandleProviderLogin(provider Provider, profile ProviderProfile, w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.LoginWithProvider(r.Context(), provider, profile)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type appleLoginRequest struct {
	IDToken string `json:"idToken"`
	// Apple only reveals the user's name to the client, on first authorization
	Name string `json:"name,omitempty"`
}

// HandleAppleLogin verifies a posted Apple identity token and logs its subject in
func (h *Handler) HandleAppleLogin(w http.ResponseWriter, r *http.Request) {
	var req appleLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}
	if req.IDToken == "" {
		h.WriteError(w, r, &ValidationError{Message: "idToken is required", Fields: map[string]string{"idToken": "idToken is required"}})
		return
	}

	profile, err := h.AppleVerifier.VerifyIdentityToken(r.Context(), req.IDToken)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if profile.DisplayName == "" {
		profile.DisplayName = strings.TrimSpace(req.Name)
	}
	h.HandleProviderLogin(ProviderApple, *profile, w, r)
}

// HandleMe returns the account behind the bearer token
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		h.WriteError(w, r, ErrInvalidToken)
		return
	}
	user, err := h.Service.CurrentUser(r.Context(), claims.AccountID())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateMe applies a profile change to the account behind the bearer token
func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		h.WriteError(w, r, ErrInvalidToken)
		return
	}
	var update ProfileUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		h.WriteError(w, r, err)
		return
	}
	user, err := h.Service.UpdateProfile(r.Context(), claims.AccountID(), update)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": h.Service.Capabilities().Providers(),
	})
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError maps an error onto its status code and JSON body.
// Internal failures are logged and replaced by a generic message.
func (h *Handler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger().Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.logger().Debug("request rejected", "method", r.Method, "path", r.URL.Path, "code", ErrorCode(err))
	}
	writeJSON(w, status, errorBody{Error: PublicMessage(err), Code: ErrorCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}
