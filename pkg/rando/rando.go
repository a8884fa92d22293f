package rando

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// This is 62 symbols, hence 5.9542 bits per character
// At 20 characters, that's 119 bits
// At 30 characters, that's 178 bits
const alphaNumChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func StrongRandomAlphaNumChars(nchars int) string {
	buf := make([]byte, nchars)
	if n, _ := rand.Read(buf[:]); n != nchars {
		panic("Unable to read from crypto/rand")
	}
	for i := 0; i < nchars; i++ {
		buf[i] = alphaNumChars[buf[i]%byte(len(alphaNumChars))]
	}
	return string(buf)
}

func StrongRandomBytes(nbytes int) []byte {
	buf := make([]byte, nbytes)
	if n, _ := rand.Read(buf[:]); n != nbytes {
		panic("Unable to read from crypto/rand")
	}
	return buf
}

func StrongRandomBase64(nbytes int) string {
	return base64.StdEncoding.EncodeToString(StrongRandomBytes(nbytes))
}

// TempFilename returns a collision free filename inside the OS temp dir.
// ext includes the dot, eg ".mp4"
func TempFilename(ext string) string {
	return filepath.Join(os.TempDir(), uuid.New().String()+ext)
}
