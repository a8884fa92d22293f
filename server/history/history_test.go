package history

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"github.com/visionguard/visionguard/server/configdb"
	"github.com/visionguard/visionguard/server/publish"
)

type fixture struct {
	db        *configdb.ConfigDB
	history   *History
	publisher *publish.Publisher
	resultDir string
	alice     *configdb.User
	bob       *configdb.User
}

func createFixture(t *testing.T) *fixture {
	log := logs.NewTestingLog(t)
	db, err := configdb.NewConfigDB(log, filepath.Join(t.TempDir(), "test-history.sqlite"))
	require.NoError(t, err)
	storage, err := publish.NewStorageFS(log, t.TempDir(), "http://localhost:8080/results")
	require.NoError(t, err)
	resultDir := t.TempDir()
	publisher := publish.NewPublisher(log, storage, resultDir, "http://localhost:8080/results")

	alice := &configdb.User{Email: "alice@example.com", Provider: configdb.AuthProviderLocal}
	bob := &configdb.User{Email: "bob@example.com", Provider: configdb.AuthProviderLocal}
	require.NoError(t, db.CreateUser(alice))
	require.NoError(t, db.CreateUser(bob))

	return &fixture{
		db:        db,
		history:   NewHistory(log, db, publisher),
		publisher: publisher,
		resultDir: resultDir,
		alice:     alice,
		bob:       bob,
	}
}

// publishArtifact stores a fake annotated file and returns its reference
func (f *fixture) publishArtifact(t *testing.T, name string) publish.Reference {
	local := filepath.Join(f.resultDir, name)
	require.NoError(t, os.WriteFile(local, []byte("artifact "+name), 0644))
	ref, err := f.publisher.Publish(local, configdb.KindStatic)
	require.NoError(t, err)
	return ref
}

func TestRecordAndList(t *testing.T) {
	f := createFixture(t)

	ref := f.publishArtifact(t, "merged_cat.jpg")
	rec, err := f.history.Record(f.alice.ID, "/uploads/cat.jpg", ref, []string{"cat"}, configdb.KindStatic)
	require.NoError(t, err)
	require.Equal(t, "cat.jpg", rec.Filename)

	list, err := f.history.List(f.alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// Other users see nothing
	list, err = f.history.List(f.bob.ID)
	require.NoError(t, err)
	require.Len(t, list, 0)
}

func TestOpenArtifact(t *testing.T) {
	f := createFixture(t)

	ref := f.publishArtifact(t, "merged_cat.jpg")
	rec, err := f.history.Record(f.alice.ID, "cat.jpg", ref, []string{"cat"}, configdb.KindStatic)
	require.NoError(t, err)

	_, file, err := f.history.OpenArtifact(f.alice.ID, rec.ID)
	require.NoError(t, err)
	content, err := io.ReadAll(file.Reader)
	require.NoError(t, err)
	file.Reader.Close()
	require.Equal(t, "artifact merged_cat.jpg", string(content))

	// Ownership and absence are indistinguishable
	_, _, err = f.history.OpenArtifact(f.bob.ID, rec.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, _, err = f.history.OpenArtifact(f.alice.ID, 99999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteOne(t *testing.T) {
	f := createFixture(t)

	ref := f.publishArtifact(t, "merged_cat.jpg")
	rec, err := f.history.Record(f.alice.ID, "cat.jpg", ref, nil, configdb.KindStatic)
	require.NoError(t, err)

	// Somebody else's record looks like it doesn't exist
	require.ErrorIs(t, f.history.DeleteOne(f.bob.ID, rec.ID), ErrNotFound)

	require.NoError(t, f.history.DeleteOne(f.alice.ID, rec.ID))
	_, err = f.history.Get(f.alice.ID, rec.ID)
	require.ErrorIs(t, err, ErrNotFound)

	// Repeat delete
	require.ErrorIs(t, f.history.DeleteOne(f.alice.ID, rec.ID), ErrNotFound)
}

func TestDeleteAll(t *testing.T) {
	f := createFixture(t)

	// Empty history is a no-op, not an error
	n, err := f.history.DeleteAll(f.alice.ID)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	for _, name := range []string{"merged_a.jpg", "merged_b.jpg", "merged_c.jpg"} {
		ref := f.publishArtifact(t, name)
		_, err := f.history.Record(f.alice.ID, name, ref, nil, configdb.KindStatic)
		require.NoError(t, err)
	}
	ref := f.publishArtifact(t, "merged_bob.jpg")
	_, err = f.history.Record(f.bob.ID, "bob.jpg", ref, nil, configdb.KindStatic)
	require.NoError(t, err)

	n, err = f.history.DeleteAll(f.alice.ID)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	list, err := f.history.List(f.alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 0)

	// Bob's record survives
	list, err = f.history.List(f.bob.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
