package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// SealedSlots encrypts slot values before handing them to the wrapped storage.
type SealedSlots struct {
	inner Slots
	key   [32]byte
}

// Sealed wraps slots so values are stored as secretbox ciphertext keyed by secret.
func Sealed(inner Slots, secret string) *SealedSlots {
	return &SealedSlots{inner: inner, key: sha256.Sum256([]byte(secret))}
}

func (s *SealedSlots) Get(ctx context.Context, name string) (string, bool, error) {
	val, ok, err := s.inner.Get(ctx, name)
	if err != nil || !ok {
		return "", ok, err
	}
	plain, err := s.open(val)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %v", ErrCorruptSlot, name, err)
	}
	return plain, true, nil
}

func (s *SealedSlots) SetPair(ctx context.Context, user, token string) error {
	u, err := s.seal(user)
	if err != nil {
		return err
	}
	t, err := s.seal(token)
	if err != nil {
		return err
	}
	return s.inner.SetPair(ctx, u, t)
}

func (s *SealedSlots) Clear(ctx context.Context) error {
	return s.inner.Clear(ctx)
}

func (s *SealedSlots) seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("seal nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

func (s *SealedSlots) open(sealed string) (string, error) {
	box, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	if len(box) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("sealed value too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", fmt.Errorf("authentication failed")
	}
	return string(plain), nil
}
