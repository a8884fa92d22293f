package configdb

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// Stored password hash layout: one version byte, then the salt, then the
// scrypt key. The version byte lets us migrate to new parameters without
// invalidating existing accounts.
const (
	hashVersion1     = 1
	saltSizeV1       = 20
	scryptKeySizeV1  = 32
	scryptNV1        = 16384
	scryptRV1        = 8
	scryptPV1        = 1
	passwordHashSize = 1 + saltSizeV1 + scryptKeySizeV1
)

func createSalt() []byte {
	s := [saltSizeV1]byte{}
	if n, _ := rand.Read(s[:]); n != saltSizeV1 {
		panic("Error creating password salt")
	}
	return s[:]
}

func hashPasswordWithSalt(salt []byte, password string) []byte {
	dk, err := scrypt.Key([]byte(password), salt, scryptNV1, scryptRV1, scryptPV1, scryptKeySizeV1)
	if err != nil {
		panic(fmt.Sprintf("Error hashing password: %v", err))
	}
	final := [passwordHashSize]byte{}
	final[0] = hashVersion1
	copy(final[1:1+saltSizeV1], salt)
	copy(final[1+saltSizeV1:], dk)
	return final[:]
}

// HashPassword creates a fresh salt and returns the full stored hash
func HashPassword(password string) []byte {
	return hashPasswordWithSalt(createSalt(), password)
}

// VerifyHash returns true if a plaintext password matches a stored hash
func VerifyHash(password string, hash []byte) bool {
	if len(hash) != passwordHashSize || hash[0] != hashVersion1 {
		return false
	}
	salt := hash[1 : 1+saltSizeV1]
	dk, _ := scrypt.Key([]byte(password), salt, scryptNV1, scryptRV1, scryptPV1, scryptKeySizeV1)
	return subtle.ConstantTimeCompare(dk, hash[1+saltSizeV1:]) == 1
}

// HashSessionToken is what we store in the sessions table. Only the hash is
// persisted, so a leaked database does not leak usable tokens, and lookups
// don't compare attacker-controlled plaintext inside the DB's btree.
func HashSessionToken(value string) []byte {
	h := sha256.Sum256([]byte(value))
	return h[:]
}
