// Package cryptox holds the key-derivation and hashing primitives shared by
// the client and server: the argon2 login verifier and content hashing for
// photo blobs.
package cryptox

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

// MakeVerifier returns the value sent to and stored by the server in place
// of the password-derived key.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// DeriveMasterKey stretches password with salt using argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// ContentSHA256 returns the lowercase hex sha256 of data. Photo blobs are
// stored under this digest so identical uploads land on one object.
func ContentSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
