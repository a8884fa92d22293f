package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"

	"github.com/visionguard/visionguard/pkg/rando"
	"github.com/visionguard/visionguard/server/auth"
	"github.com/visionguard/visionguard/server/configdb"
)

const oauthStateCookie = "oauthstate"

type loginResponse struct {
	UserID   int64  `json:"userID"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Picture  string `json:"picture,omitempty"`
}

func userResponse(user *configdb.User) loginResponse {
	return loginResponse{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.DisplayName(),
		Picture:  user.Picture,
	}
}

func (s *Server) httpAuthRegister(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type request struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	req := request{}
	www.ReadJSON(w, r, &req, 1024*1024)
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		www.PanicBadRequestf("Invalid email address")
	}
	if len(req.Password) < 6 {
		www.PanicBadRequestf("Password must be at least 6 characters")
	}
	user, err := s.auth.Register(req.Email, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateUser) {
			www.PanicBadRequestf("%v", err)
		}
		www.Check(err)
	}
	www.Check(s.auth.IssueSession(w, user.ID))
	www.SendJSON(w, userResponse(user))
}

func (s *Server) httpAuthLogin(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	req := request{}
	www.ReadJSON(w, r, &req, 1024*1024)
	user, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		www.SendError(w, err.Error(), http.StatusUnauthorized)
		return
	}
	www.Check(s.auth.IssueSession(w, user.ID))
	www.SendJSON(w, userResponse(user))
}

func (s *Server) httpAuthLogout(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	s.auth.Logout(w, r)
	www.SendOK(w)
}

func (s *Server) httpAuthCheck(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	www.SendJSON(w, userResponse(cred.User))
}

func (s *Server) httpAuthGoogleLogin(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.google == nil || !s.google.Enabled() {
		www.SendError(w, "Google login is not configured", http.StatusNotImplemented)
		return
	}
	state := rando.StrongRandomAlphaNumChars(24)
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.google.LoginURL(state), http.StatusTemporaryRedirect)
}

func (s *Server) httpAuthGoogleCallback(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.google == nil {
		www.SendError(w, "Google login is not configured", http.StatusNotImplemented)
		return
	}
	stateCookie, _ := r.Cookie(oauthStateCookie)
	if stateCookie == nil || stateCookie.Value == "" || stateCookie.Value != www.QueryValue(r, "state") {
		s.redirectLoginError(w, r, "invalid_state")
		return
	}
	code := www.QueryValue(r, "code")
	if code == "" {
		s.redirectLoginError(w, r, "token_exchange_failed")
		return
	}
	claims, err := s.google.Exchange(r.Context(), code)
	if err != nil {
		s.Log.Warnf("Google OAuth failed: %v", err)
		if errors.Is(err, auth.ErrTokenExchange) {
			s.redirectLoginError(w, r, "token_exchange_failed")
		} else {
			s.redirectLoginError(w, r, "userinfo_failed")
		}
		return
	}
	user, err := s.auth.FederatedLogin(configdb.AuthProviderGoogle, claims)
	if err != nil {
		s.Log.Warnf("Google login for '%v' failed: %v", claims.Email, err)
		if errors.Is(err, auth.ErrMissingEmailClaim) {
			s.redirectLoginError(w, r, "no_email")
		} else {
			s.redirectLoginError(w, r, "db_failed")
		}
		return
	}
	if err := s.auth.IssueSession(w, user.ID); err != nil {
		s.Log.Errorf("Failed to create session for '%v': %v", user.Email, err)
		s.redirectLoginError(w, r, "db_failed")
		return
	}
	http.Redirect(w, r, s.cfg.FrontendURL+"/", http.StatusTemporaryRedirect)
}

func (s *Server) redirectLoginError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, s.cfg.FrontendURL+"/login?error="+code, http.StatusTemporaryRedirect)
}
