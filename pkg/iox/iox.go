package iox

import (
	"io"
	"os"
)

// WriteStreamToFile copies src into a new file at dstFilename.
// On a partial write, the destination file is removed.
func WriteStreamToFile(dstFilename string, src io.Reader) error {
	dstFile, err := os.Create(dstFilename)
	if err != nil {
		return err
	}
	defer dstFile.Close()
	_, err = io.Copy(dstFile, src)
	if err != nil {
		os.Remove(dstFilename)
		return err
	}
	return nil
}

// RemoveQuietly deletes the named files, ignoring any error.
// Used for best effort cleanup of temporary artifacts.
func RemoveQuietly(filenames ...string) {
	for _, fn := range filenames {
		if fn != "" {
			os.Remove(fn)
		}
	}
}
