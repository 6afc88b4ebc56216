package api

import (
	"errors"
	"net/http"

	"github.com/imf-gadgets/gadget-core/internal/audit"
	"github.com/imf-gadgets/gadget-core/internal/auth"
)

// credentialsRequest is the body of POST /register and POST /login.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the body of a successful login.
type loginResponse struct {
	Token string `json:"token"`
}

// handleRegister creates a user and returns its public identity.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !requireFields(w, "username", req.Username, "password", req.Password) {
		return
	}

	identity, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	s.auditLog(r, audit.ActionRegister, audit.EntityUser, identity.ID, identity.ID, map[string]any{
		"username": identity.Username,
	})
	writeJSON(w, http.StatusCreated, identity)
}

// handleLogin exchanges credentials for a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !requireFields(w, "username", req.Username, "password", req.Password) {
		return
	}

	result, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.auditLog(r, audit.ActionLoginFailed, audit.EntityUser, "", "", map[string]any{
				"username":    req.Username,
				"remote_addr": r.RemoteAddr,
			})
		}
		s.writeAuthError(w, r, err)
		return
	}

	s.auditLog(r, audit.ActionLogin, audit.EntityUser, result.UserID, result.UserID, nil)
	writeJSON(w, http.StatusOK, loginResponse{Token: result.Token})
}
