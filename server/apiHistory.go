package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"

	"github.com/visionguard/visionguard/server/auth"
	"github.com/visionguard/visionguard/server/history"
)

func (s *Server) httpHistoryList(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	records, err := s.history.List(cred.UserID)
	www.Check(err)
	www.SendJSON(w, records)
}

func (s *Server) httpHistoryDownload(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	recordID := www.ParseID(params.ByName("id"))
	if recordID == 0 {
		www.PanicBadRequestf("Invalid record ID")
	}
	record, file, err := s.history.OpenArtifact(cred.UserID, recordID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			www.PanicNotFound()
		}
		www.Check(err)
	}
	defer file.Reader.Close()
	w.Header().Set("Content-Disposition", "attachment; filename=\""+record.Filename+"\"")
	if file.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	io.Copy(w, file.Reader)
}

func (s *Server) httpHistoryDelete(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	recordID := www.ParseID(params.ByName("id"))
	if recordID == 0 {
		www.PanicBadRequestf("Invalid record ID")
	}
	if err := s.history.DeleteOne(cred.UserID, recordID); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			www.PanicNotFound()
		}
		www.Check(err)
	}
	www.SendOK(w)
}

func (s *Server) httpHistoryDeleteAll(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	deleted, err := s.history.DeleteAll(cred.UserID)
	www.Check(err)
	type response struct {
		Deleted int `json:"deleted"`
	}
	www.SendJSON(w, response{Deleted: deleted})
}
