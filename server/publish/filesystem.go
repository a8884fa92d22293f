package publish

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/logs"
)

// StorageFS is a filesystem-based blob store.
// Files stored here are reachable through our own /blobs/ mount,
// which is why URL() works for this backend.
type StorageFS struct {
	Root    string
	baseURL string
	log     logs.Log
}

func NewStorageFS(log logs.Log, root, baseURL string) (*StorageFS, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("Failed to create root directory %v (relative path %v): %w", absRoot, root, err)
	}
	return &StorageFS{
		Root:    absRoot,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		log:     log,
	}, nil
}

func validateName(name string) error {
	if strings.Contains(name, "..") {
		return fmt.Errorf("Invalid file name %v", name)
	}
	return nil
}

func (fs *StorageFS) WriteFile(name string) (io.WriteCloser, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	fullPath := filepath.Join(fs.Root, name)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(fullPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
}

func (fs *StorageFS) ReadFile(name string) (*File, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(fs.Root, name))
	if err != nil {
		return nil, err
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	return &File{
		Reader:     file,
		ModifiedAt: st.ModTime(),
		Size:       st.Size(),
	}, nil
}

func (fs *StorageFS) DeleteFile(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	fs.log.Infof("Deleting file %v", name)
	return os.Remove(filepath.Join(fs.Root, name))
}

func (fs *StorageFS) URL(name string) (string, error) {
	if fs.baseURL == "" {
		return "", ErrNoPublicUrl
	}
	return fs.baseURL + "/" + name, nil
}
