package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

// SaltKey holds the key-derivation salt in the wrapped store, unsealed.
const SaltKey = "_sealed_salt"

const (
	nonceSize = 24
	saltSize  = 16

	argonTime    = 1
	argonMemory  = 19 * 1024
	argonThreads = 1
)

// ErrUnseal is returned when a stored value cannot be decrypted with the
// configured key.
var ErrUnseal = errors.New("cannot unseal value")

// ErrBadSalt is returned when the stored salt is not saltSize bytes. A new
// salt would make every sealed value unreadable, so it is never replaced.
var ErrBadSalt = errors.New("stored salt has the wrong length")

// Sealed encrypts values with NaCl secretbox before handing them to the
// wrapped KVStore. Keys are stored in the clear.
type Sealed struct {
	inner KVStore
	key   [32]byte
}

// NewSealedWithKey wraps inner with a raw 32-byte key.
func NewSealedWithKey(inner KVStore, key [32]byte) *Sealed {
	return &Sealed{inner: inner, key: key}
}

// NewSealed derives the key from passphrase with Argon2id. The salt is
// created on first use and kept in inner under SaltKey. A stored salt of
// the wrong length fails with ErrBadSalt.
func NewSealed(ctx context.Context, inner KVStore, passphrase string) (*Sealed, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	salt, ok, err := inner.Get(ctx, SaltKey)
	if err != nil {
		return nil, err
	}
	if ok && len(salt) != saltSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadSalt, len(salt))
	}
	if !ok {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		if err := inner.Set(ctx, SaltKey, salt); err != nil {
			return nil, err
		}
	}
	var key [32]byte
	copy(key[:], argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, 32))
	return NewSealedWithKey(inner, key), nil
}

// Get implements KVStore.
func (s *Sealed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	if len(b) < nonceSize+secretbox.Overhead {
		return nil, false, Failure("unseal "+key, ErrUnseal)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], b[:nonceSize])
	out, opened := secretbox.Open(nil, b[nonceSize:], &nonce, &s.key)
	if !opened {
		return nil, false, Failure("unseal "+key, ErrUnseal)
	}
	return out, true, nil
}

// Set implements KVStore.
func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], value, &nonce, &s.key)
	return s.inner.Set(ctx, key, sealed)
}
