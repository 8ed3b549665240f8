package auth

import (
	"crypto/sha256"
	"errors"
	"strings"
	"sync"
)

var ErrInvalidKey = errors.New("invalid api key")

// KeyVerifier checks API keys against one bcrypt hash. Keys that verified
// once are remembered by digest so repeat requests skip bcrypt.
type KeyVerifier struct {
	hash string

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

// NewKeyVerifier returns nil when hash is empty, meaning keys are not
// required.
func NewKeyVerifier(hash string) *KeyVerifier {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil
	}
	return &KeyVerifier{hash: hash, verified: make(map[[sha256.Size]byte]struct{})}
}

func (v *KeyVerifier) Verify(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	digest := sha256.Sum256([]byte(key))

	v.mu.RLock()
	_, ok := v.verified[digest]
	v.mu.RUnlock()
	if ok {
		return nil
	}

	if err := CheckKey(v.hash, key); err != nil {
		return ErrInvalidKey
	}

	v.mu.Lock()
	v.verified[digest] = struct{}{}
	v.mu.Unlock()
	return nil
}
