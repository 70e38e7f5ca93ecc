package authcore

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Largest request body accepted by the JSON endpoints
const maxBodyBytes = 1 << 20

// HandleRegister creates a local account. Accepts JSON or form encoded bodies.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			h.WriteError(w, r, fmt.Errorf("%w: error parsing form", ErrInvalidInput))
			return
		}
		in.Email = r.FormValue("email")
		in.Password = r.FormValue("password")
		in.Name = r.FormValue("name")
	} else if err := decodeJSON(w, r, &in); err != nil {
		h.WriteError(w, r, err)
		return
	}

	result, err := h.Service.Register(r.Context(), in)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// HandleLogin authenticates a local account. Accepts JSON or form encoded bodies.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			h.WriteError(w, r, fmt.Errorf("%w: error parsing form", ErrInvalidInput))
			return
		}
		in.Email = r.FormValue("email")
		in.Password = r.FormValue("password")
	} else if err := decodeJSON(w, r, &in); err != nil {
		h.WriteError(w, r, err)
		return
	}

	result, err := h.Service.LoginLocal(r.Context(), in)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func isForm(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body too large", ErrInvalidInput)
		}
		return fmt.Errorf("%w: invalid request body", ErrInvalidInput)
	}
	return nil
}
