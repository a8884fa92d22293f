package history

import (
	"errors"
	"path/filepath"

	"github.com/cyclopcam/logs"

	"github.com/visionguard/visionguard/server/configdb"
	"github.com/visionguard/visionguard/server/publish"
)

// ErrNotFound covers both a record that does not exist and a record that
// belongs to somebody else. Callers cannot tell the two apart.
var ErrNotFound = errors.New("Detection record not found")

// History owns the per-user record of past detection runs, and the
// lifecycle of the artifacts those records point at.
type History struct {
	log       logs.Log
	db        *configdb.ConfigDB
	publisher *publish.Publisher
}

func NewHistory(log logs.Log, db *configdb.ConfigDB, publisher *publish.Publisher) *History {
	return &History{
		log:       log,
		db:        db,
		publisher: publisher,
	}
}

// Record stores the outcome of a detection run against userID.
// userID 0 records an anonymous run.
func (h *History) Record(userID int64, filename string, ref publish.Reference, labels []string, kind string) (*configdb.Detection, error) {
	det := &configdb.Detection{
		UserID:      userID,
		Filename:    filepath.Base(filename),
		ArtifactURL: ref.URL,
		ArtifactKey: ref.Key,
		LocalPath:   ref.LocalPath,
		Labels:      configdb.LabelList(labels),
		Kind:        kind,
	}
	if err := h.db.CreateDetection(det); err != nil {
		return nil, err
	}
	return det, nil
}

// List returns the user's detections, newest first
func (h *History) List(userID int64) ([]configdb.Detection, error) {
	return h.db.ListDetections(userID)
}

// Get returns one of the user's detections, or ErrNotFound
func (h *History) Get(userID, recordID int64) (*configdb.Detection, error) {
	det := h.db.GetDetection(userID, recordID)
	if det == nil {
		return nil, ErrNotFound
	}
	return det, nil
}

// OpenArtifact opens the annotated media behind one of the user's records,
// preferring the published copy and falling back to the local file
func (h *History) OpenArtifact(userID, recordID int64) (*configdb.Detection, *publish.File, error) {
	det, err := h.Get(userID, recordID)
	if err != nil {
		return nil, nil, err
	}
	file, err := h.publisher.Open(reference(det))
	if err != nil {
		h.log.Warnf("Artifact for detection %v is gone: %v", recordID, err)
		return nil, nil, ErrNotFound
	}
	return det, file, nil
}

// DeleteOne removes a record and best-effort deletes its artifact.
// An artifact that refuses to die never blocks deletion of the record.
func (h *History) DeleteOne(userID, recordID int64) error {
	det, err := h.Get(userID, recordID)
	if err != nil {
		return err
	}
	h.publisher.Unpublish(reference(det))
	return h.db.DeleteDetection(userID, recordID)
}

// DeleteAll clears the user's history and returns how many records went.
// Zero records is a no-op, not an error.
func (h *History) DeleteAll(userID int64) (int, error) {
	dets, err := h.db.ListDetections(userID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for i := range dets {
		h.publisher.Unpublish(reference(&dets[i]))
		if err := h.db.DeleteDetection(userID, dets[i].ID); err != nil {
			h.log.Errorf("Failed to delete detection %v: %v", dets[i].ID, err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

func reference(det *configdb.Detection) publish.Reference {
	return publish.Reference{
		URL:       det.ArtifactURL,
		Key:       det.ArtifactKey,
		LocalPath: det.LocalPath,
	}
}
