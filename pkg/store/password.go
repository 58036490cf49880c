package store

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// VerifyPassword tests a simple-bind password against an entry's stored
// userPassword values. Supported forms: plaintext, "{SHA256}" followed by a
// hex digest, and "{BCRYPT}" followed by a hex-encoded bcrypt hash. Any one
// matching value authenticates the bind.
func VerifyPassword(stored [][]byte, password []byte) bool {
	for _, v := range stored {
		switch {
		case bytes.HasPrefix(v, []byte("{SHA256}")):
			sum := sha256.Sum256(password)
			want := bytes.TrimPrefix(v, []byte("{SHA256}"))
			if subtle.ConstantTimeCompare(want, []byte(hex.EncodeToString(sum[:]))) == 1 {
				return true
			}
		case bytes.HasPrefix(v, []byte("{BCRYPT}")):
			decoded, err := hex.DecodeString(string(bytes.TrimPrefix(v, []byte("{BCRYPT}"))))
			if err != nil {
				continue
			}
			if bcrypt.CompareHashAndPassword(decoded, password) == nil {
				return true
			}
		default:
			if subtle.ConstantTimeCompare(v, password) == 1 {
				return true
			}
		}
	}
	return false
}

// Bind verifies a simple bind against the entry named by dn. An empty
// password never authenticates a named entry (unauthenticated binds are
// handled by the caller as anonymous).
func (s *Store) Bind(dn string, password []byte) bool {
	if len(password) == 0 {
		return false
	}
	e, ok := s.Get(dn)
	if !ok {
		return false
	}
	return VerifyPassword(e.Values("userPassword"), password)
}
