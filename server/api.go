package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"

	"github.com/visionguard/visionguard/server/auth"
)

type authenticatedHandler func(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials)

func (s *Server) setupHttpRoutes() error {
	router := httprouter.New()

	// protected creates an HTTP handler that is accessible only with authentication
	protected := func(method, route string, handle authenticatedHandler) {
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			cred := s.auth.AuthenticateRequest(w, r)
			if cred == nil {
				return
			}
			handle(w, r, params, cred)
		})
	}

	// unprotected creates an HTTP handler that is accessible without authentication
	unprotected := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	// ratelimited is for the credential-guessing targets
	limiter := httprate.LimitByIP(10, time.Minute)
	ratelimited := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	unprotected("GET", "/api/ping", s.httpPing)

	ratelimited("POST", "/api/auth/register", s.httpAuthRegister)
	ratelimited("POST", "/api/auth/login", s.httpAuthLogin)
	protected("POST", "/api/auth/logout", s.httpAuthLogout)
	protected("GET", "/api/auth/user", s.httpAuthCheck)
	unprotected("GET", "/api/auth/google/login", s.httpAuthGoogleLogin)
	unprotected("GET", "/api/auth/google/callback", s.httpAuthGoogleCallback)

	// Detection works for anonymous callers too, so identity is resolved
	// inside the handler instead of via 'protected'
	unprotected("POST", "/api/detect", s.httpDetect)

	protected("GET", "/api/history", s.httpHistoryList)
	protected("GET", "/api/history/:id/download", s.httpHistoryDownload)
	protected("DELETE", "/api/history/:id", s.httpHistoryDelete)
	protected("DELETE", "/api/history", s.httpHistoryDeleteAll)

	unprotected("POST", "/api/live/start", s.httpLiveStart)
	unprotected("POST", "/api/live/stop", s.httpLiveStop)
	unprotected("GET", "/api/live/status", s.httpLiveStatus)
	unprotected("GET", "/api/live/stream", s.httpLiveStream)
	unprotected("GET", "/api/live/latest", s.httpLiveLatest)

	// Locally served artifacts (the fallback when the blob store is down,
	// plus the live snapshot)
	router.ServeFiles("/results/*filepath", http.Dir(s.cfg.ResultDir))
	// A filesystem blob store is served by us too
	if s.cfg.Storage.Filesystem != nil {
		router.ServeFiles("/blobs/*filepath", http.Dir(s.cfg.Storage.Filesystem.Root))
	}

	router.GlobalOPTIONS = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		w.WriteHeader(http.StatusNoContent)
	})

	s.httpRouter = router
	return nil
}

// handler is the top-level HTTP handler: CORS headers, then routing
func (s *Server) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		s.httpRouter.ServeHTTP(w, r)
	})
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" || s.cfg.FrontendURL == "" || origin != s.cfg.FrontendURL {
		return
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}
