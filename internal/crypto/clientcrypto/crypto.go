// Package clientcrypto builds the encrypted key blobs a user attaches to registration.
//
// The recovery blob wraps the caller's key seed under a passphrase-derived KEK. The
// government blob seals the same seed to the registrar's X25519 key so it can be
// recovered through the government channel.
package clientcrypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/box"

	"github.com/and161185/car-registry/internal/model"
)

// Params
const (
	KeKLen  = 32
	SaltLen = 16

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1
)

func Rand(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// DeriveKEK derives a KEK from passphrase and salt using Argon2id.
func DeriveKEK(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, KeKLen)
}

// WrapRecoveryKey encrypts the seed of priv as salt||nonce||ciphertext. The owner's
// public key is bound as additional data.
func WrapRecoveryKey(passphrase []byte, priv ed25519.PrivateKey) ([]byte, error) {
	salt, err := Rand(SaltLen)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(DeriveKEK(passphrase, salt))
	if err != nil {
		return nil, err
	}
	nonce, err := Rand(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	pub := priv.Public().(ed25519.PublicKey)
	out := make([]byte, 0, SaltLen+len(nonce)+ed25519.SeedSize+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, priv.Seed(), pub)...)
	return out, nil
}

// UnwrapRecoveryKey reverses WrapRecoveryKey for the account owned by owner.
func UnwrapRecoveryKey(passphrase []byte, owner model.Pubkey, blob []byte) (ed25519.PrivateKey, error) {
	if len(blob) < SaltLen+chacha20poly1305.NonceSizeX {
		return nil, errors.New("recovery blob too short")
	}
	salt := blob[:SaltLen]
	nonce := blob[SaltLen : SaltLen+chacha20poly1305.NonceSizeX]
	ct := blob[SaltLen+chacha20poly1305.NonceSizeX:]
	aead, err := chacha20poly1305.NewX(DeriveKEK(passphrase, salt))
	if err != nil {
		return nil, err
	}
	seed, err := aead.Open(nil, nonce, ct, owner[:])
	if err != nil {
		return nil, err
	}
	return seedKey(seed, owner)
}

// GenerateGovernmentKey returns a fresh X25519 key pair for the registrar channel.
func GenerateGovernmentKey() (pub, priv *[32]byte, err error) {
	return box.GenerateKey(rand.Reader)
}

// SealForGovernment encrypts the seed of priv to the registrar's X25519 key.
func SealForGovernment(govPub *[32]byte, priv ed25519.PrivateKey) ([]byte, error) {
	return box.SealAnonymous(nil, priv.Seed(), govPub, rand.Reader)
}

// OpenAsGovernment decrypts a blob produced by SealForGovernment.
func OpenAsGovernment(govPub, govPriv *[32]byte, owner model.Pubkey, blob []byte) (ed25519.PrivateKey, error) {
	seed, ok := box.OpenAnonymous(nil, blob, govPub, govPriv)
	if !ok {
		return nil, errors.New("government blob does not open")
	}
	return seedKey(seed, owner)
}

func seedKey(seed []byte, owner model.Pubkey) (ed25519.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed is %d bytes", len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	if model.PubkeyFromEd25519(priv.Public().(ed25519.PublicKey)) != owner {
		return nil, errors.New("recovered key does not match owner")
	}
	return priv, nil
}
