package server

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"

	"github.com/visionguard/visionguard/pkg/iox"
	"github.com/visionguard/visionguard/pkg/rando"
	"github.com/visionguard/visionguard/server/configdb"
	"github.com/visionguard/visionguard/server/detect"
)

// Videos can get big. The limit stops somebody streaming us a disk filler.
const maxUploadBytes = 512 * 1024 * 1024

// httpDetect accepts one uploaded image or video, runs both models over it,
// and returns the stored history record. Anonymous callers get a record with
// no owner, which is not retrievable later.
func (s *Server) httpDetect(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	cred := s.auth.CredentialsFromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		www.PanicBadRequestf("Missing 'file' upload: %v", err)
	}
	defer file.Close()
	if header.Filename == "" {
		www.PanicBadRequestf("Upload has no filename")
	}

	tempPath := rando.TempFilename(filepath.Ext(header.Filename))
	www.Check(iox.WriteStreamToFile(tempPath, file))
	defer iox.RemoveQuietly(tempPath)

	result, err := s.pipeline.Run(tempPath, header.Filename)
	if err != nil {
		if errors.Is(err, detect.ErrInvalidInput) {
			www.PanicBadRequestf("%v", err)
		}
		if errors.Is(err, detect.ErrServiceUnavailable) {
			www.Panic(http.StatusServiceUnavailable, err.Error())
		}
		www.Check(err)
	}

	kind := configdb.KindStatic
	if detect.IsVideoFilename(header.Filename) {
		kind = configdb.KindVideo
	}
	ref, err := s.publisher.Publish(result.OutputPath, kind)
	www.Check(err)

	userID := int64(0)
	email := ""
	if cred != nil {
		userID = cred.UserID
		email = cred.User.Email
	}
	record, err := s.history.Record(userID, header.Filename, ref, result.Labels, kind)
	www.Check(err)

	if len(result.Labels) == 0 {
		go s.notifier.NotifyEmptyDetection(email, kind)
	}

	www.SendJSON(w, record)
}
