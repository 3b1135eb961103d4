package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mr-tron/base58"

	"github.com/and161185/car-registry/internal/model"
)

// KeyFile is the on-disk form of a caller key.
type KeyFile struct {
	PublicKey  model.Pubkey `json:"publicKey"`
	PrivateKey string       `json:"privateKey"`
}

// GenerateKey creates a new Ed25519 caller key.
func GenerateKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	return priv, err
}

// SaveKey writes priv to path with owner-only permissions, refusing to overwrite.
func SaveKey(path string, priv ed25519.PrivateKey) error {
	kf := KeyFile{
		PublicKey:  model.PubkeyFromEd25519(priv.Public().(ed25519.PublicKey)),
		PrivateKey: base58.Encode(priv),
	}
	b, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadKey reads a key written by SaveKey.
func LoadKey(path string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var kf KeyFile
	if err := json.Unmarshal(b, &kf); err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	raw, err := base58.Decode(kf.PrivateKey)
	if err != nil || len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key file %s: malformed private key", path)
	}
	priv := ed25519.PrivateKey(raw)
	if model.PubkeyFromEd25519(priv.Public().(ed25519.PublicKey)) != kf.PublicKey {
		return nil, fmt.Errorf("key file %s: public key does not match private key", path)
	}
	return priv, nil
}
