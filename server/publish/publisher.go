package publish

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"

	"github.com/visionguard/visionguard/pkg/iox"
)

// ErrPublish means we have neither a remote copy nor a local artifact to serve
var ErrPublish = errors.New("No usable artifact: upload failed and no local fallback exists")

// Reference points at a published artifact.
// Key is non-empty only when the artifact sits in blob storage (and can
// therefore be deleted later). LocalPath is non-empty only for the
// degraded case where the upload failed and we serve the file ourselves.
type Reference struct {
	URL       string `json:"url"`
	Key       string `json:"key,omitempty"`
	LocalPath string `json:"-"`
}

// Publisher moves finished artifacts from the local result folder into
// blob storage, with a local-serving fallback when the store is unreachable.
type Publisher struct {
	log       logs.Log
	storage   Storage
	resultDir string
	localBase string // URL prefix of our own /results/ mount
}

func NewPublisher(log logs.Log, storage Storage, resultDir, localBase string) *Publisher {
	return &Publisher{
		log:       log,
		storage:   storage,
		resultDir: resultDir,
		localBase: localBase,
	}
}

// Publish uploads the artifact at localPath.
// On success the local copy is removed and the returned Reference carries
// the blob URL and its deletable key.
// If the upload fails but the local file still exists, we keep it and return
// a Reference that points at our own static mount.
func (p *Publisher) Publish(localPath, kind string) (Reference, error) {
	key := fmt.Sprintf("%v/%v%v", kind, uuid.New().String(), filepath.Ext(localPath))

	uploadErr := p.upload(localPath, key)
	if uploadErr == nil {
		url, err := p.storage.URL(key)
		if err != nil {
			// Private bucket. The artifact is stored, and downloads go
			// through the history endpoint rather than a direct URL.
			url = ""
		}
		iox.RemoveQuietly(localPath)
		return Reference{URL: url, Key: key}, nil
	}

	if _, statErr := os.Stat(localPath); statErr == nil {
		rel, err := filepath.Rel(p.resultDir, localPath)
		if err != nil {
			rel = filepath.Base(localPath)
		}
		p.log.Warnf("Upload of %v failed (%v), falling back to locally served copy", localPath, uploadErr)
		return Reference{
			URL:       p.localBase + "/" + filepath.ToSlash(rel),
			LocalPath: localPath,
		}, nil
	}

	p.log.Errorf("Upload of %v failed (%v), and no local copy remains", localPath, uploadErr)
	return Reference{}, ErrPublish
}

func (p *Publisher) upload(localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteFile(p.storage, key, f)
}

// Unpublish is a best-effort remote delete.
// A history record must remain deletable even when its artifact is not,
// so failures here are logged and swallowed.
func (p *Publisher) Unpublish(ref Reference) {
	if ref.Key != "" {
		if err := p.storage.DeleteFile(ref.Key); err != nil {
			p.log.Warnf("Failed to delete artifact %v: %v", ref.Key, err)
		}
	}
	if ref.LocalPath != "" {
		iox.RemoveQuietly(ref.LocalPath)
	}
}

// Open returns a reader on a published artifact, preferring the blob store
func (p *Publisher) Open(ref Reference) (*File, error) {
	if ref.Key != "" {
		return p.storage.ReadFile(ref.Key)
	}
	if ref.LocalPath != "" {
		file, err := os.Open(ref.LocalPath)
		if err != nil {
			return nil, err
		}
		st, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, err
		}
		return &File{Reader: file, ModifiedAt: st.ModTime(), Size: st.Size()}, nil
	}
	return nil, os.ErrNotExist
}

// CleanupTemp deletes the given temporary files, swallowing errors
func (p *Publisher) CleanupTemp(paths ...string) {
	iox.RemoveQuietly(paths...)
}
