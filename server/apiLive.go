package server

import (
	"net/http"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"

	"github.com/visionguard/visionguard/server/live"
)

// httpLiveStart begins the live detection session. Identity is optional:
// a logged-in caller gets snapshots in their history and empty-detection
// alerts, an anonymous caller just gets the stream.
func (s *Server) httpLiveStart(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var identity *live.Identity
	if cred := s.auth.CredentialsFromRequest(r); cred != nil {
		identity = &live.Identity{
			UserID: cred.UserID,
			Email:  cred.User.Email,
		}
	}
	www.Check(s.live.Start(identity))
	s.sendLiveStatus(w)
}

func (s *Server) httpLiveStop(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.live.Stop()
	s.sendLiveStatus(w)
}

func (s *Server) httpLiveStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.sendLiveStatus(w)
}

func (s *Server) sendLiveStatus(w http.ResponseWriter) {
	type response struct {
		State string `json:"state"`
	}
	www.SendJSON(w, response{State: s.live.State().String()})
}

func (s *Server) httpLiveStream(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if err := s.live.ServeMJPEG(w, r); err != nil {
		www.SendError(w, err.Error(), http.StatusConflict)
	}
}

// httpLiveLatest returns the most recent annotated frame as a plain JPEG,
// for clients that poll instead of streaming
func (s *Server) httpLiveLatest(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	data, at, ok := s.live.LatestJPEG()
	if !ok {
		www.SendError(w, "No frame captured yet", http.StatusNotFound)
		return
	}
	www.CacheNever(w)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Last-Modified", at.UTC().Format(http.TimeFormat))
	w.Write(data)
}
