package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sealed.v1:"

var ErrSealBroken = errors.New("sealed value cannot be opened")

// SealedKV encrypts values with NaCl secretbox before handing them to the
// wrapped store. The key is derived from a passphrase with HKDF-SHA256.
type SealedKV struct {
	kv  KV
	key [32]byte
}

func NewSealedKV(kv KV, passphrase string) (*SealedKV, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, errors.New("seal passphrase is empty")
	}
	s := &SealedKV{kv: kv}
	r := hkdf.New(sha256.New, []byte(passphrase), nil, []byte("lawchat sealed kv"))
	if _, err := io.ReadFull(r, s.key[:]); err != nil {
		return nil, fmt.Errorf("derive seal key failed: %w", err)
	}
	return s, nil
}

func (s *SealedKV) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	plain, err := s.open(raw)
	if err != nil {
		return "", false, fmt.Errorf("open %s failed: %w", key, err)
	}
	return plain, true, nil
}

func (s *SealedKV) Set(ctx context.Context, key, value string) error {
	sealed, err := s.seal(value)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, sealed)
}

func (s *SealedKV) Delete(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, key)
}

func (s *SealedKV) seal(value string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce failed: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

func (s *SealedKV) open(raw string) (string, error) {
	if !strings.HasPrefix(raw, sealedPrefix) {
		return "", ErrSealBroken
	}
	box, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(raw, sealedPrefix))
	if err != nil || len(box) < 24+secretbox.Overhead {
		return "", ErrSealBroken
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, &s.key)
	if !ok {
		return "", ErrSealBroken
	}
	return string(plain), nil
}
