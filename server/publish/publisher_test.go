package publish

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

// brokenStorage refuses all writes, like an unreachable bucket
type brokenStorage struct{}

func (b *brokenStorage) WriteFile(name string) (io.WriteCloser, error) {
	return nil, errors.New("bucket unreachable")
}
func (b *brokenStorage) ReadFile(name string) (*File, error) {
	return nil, errors.New("bucket unreachable")
}
func (b *brokenStorage) DeleteFile(name string) error {
	return errors.New("bucket unreachable")
}
func (b *brokenStorage) URL(name string) (string, error) {
	return "", ErrNoPublicUrl
}

func writeArtifact(t *testing.T, dir, name string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("annotated bytes"), 0644))
	return path
}

func TestPublish(t *testing.T) {
	log := logs.NewTestingLog(t)
	storage, err := NewStorageFS(log, t.TempDir(), "http://localhost:8080/results")
	require.NoError(t, err)
	resultDir := t.TempDir()
	p := NewPublisher(log, storage, resultDir, "http://localhost:8080/results")

	local := writeArtifact(t, resultDir, "merged_cat.jpg")
	ref, err := p.Publish(local, "static")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref.Key, "static/"))
	require.True(t, strings.HasSuffix(ref.Key, ".jpg"))
	require.Contains(t, ref.URL, "/results/")
	require.Empty(t, ref.LocalPath)

	// Local copy is gone after a successful upload
	_, err = os.Stat(local)
	require.True(t, os.IsNotExist(err))

	// The published artifact reads back
	file, err := p.Open(ref)
	require.NoError(t, err)
	content, err := io.ReadAll(file.Reader)
	require.NoError(t, err)
	file.Reader.Close()
	require.Equal(t, "annotated bytes", string(content))

	// Independent keys for identical filenames
	local2 := writeArtifact(t, resultDir, "merged_cat.jpg")
	ref2, err := p.Publish(local2, "static")
	require.NoError(t, err)
	require.NotEqual(t, ref.Key, ref2.Key)
}

func TestPublishFallback(t *testing.T) {
	log := logs.NewTestingLog(t)
	resultDir := t.TempDir()
	p := NewPublisher(log, &brokenStorage{}, resultDir, "http://localhost:8080/results")

	local := writeArtifact(t, resultDir, "merged_dog.jpg")
	ref, err := p.Publish(local, "static")
	require.NoError(t, err)
	require.Empty(t, ref.Key)
	require.Equal(t, local, ref.LocalPath)
	require.Equal(t, "http://localhost:8080/results/merged_dog.jpg", ref.URL)

	// The local file survives, since it is all we have
	_, err = os.Stat(local)
	require.NoError(t, err)

	file, err := p.Open(ref)
	require.NoError(t, err)
	file.Reader.Close()

	// Nothing at all to serve
	_, err = p.Publish(filepath.Join(resultDir, "never-existed.jpg"), "static")
	require.ErrorIs(t, err, ErrPublish)
}

func TestUnpublishBestEffort(t *testing.T) {
	log := logs.NewTestingLog(t)
	resultDir := t.TempDir()

	// Remote delete failing must not panic or error
	p := NewPublisher(log, &brokenStorage{}, resultDir, "http://localhost:8080/results")
	p.Unpublish(Reference{Key: "static/gone.jpg"})

	// Local fallback artifacts get removed
	local := writeArtifact(t, resultDir, "merged_bird.jpg")
	p.Unpublish(Reference{LocalPath: local})
	_, err := os.Stat(local)
	require.True(t, os.IsNotExist(err))
}
