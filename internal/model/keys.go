// Package model defines registry records, their latches and their persisted layout.
package model

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// KeyLen is the byte length of keys and addresses.
const KeyLen = 32

// Pubkey is an Ed25519 public key identifying an actor.
type Pubkey [KeyLen]byte

// Address is the deterministic location of a record.
type Address [KeyLen]byte

// ParsePubkey decodes a base58 public key.
func ParsePubkey(s string) (Pubkey, error) {
	var k Pubkey
	if err := decode58(s, k[:]); err != nil {
		return Pubkey{}, fmt.Errorf("pubkey %q: %w", s, err)
	}
	return k, nil
}

// MustPubkey is like ParsePubkey but panics on error. Tests only.
func MustPubkey(s string) Pubkey {
	k, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// PubkeyFromEd25519 converts a standard library public key.
func PubkeyFromEd25519(pk ed25519.PublicKey) Pubkey {
	var k Pubkey
	copy(k[:], pk)
	return k
}

// Ed25519 returns the key in standard library form.
func (k Pubkey) Ed25519() ed25519.PublicKey { return ed25519.PublicKey(k[:]) }

// IsZero reports whether k is the all-zero key.
func (k Pubkey) IsZero() bool { return k == Pubkey{} }

func (k Pubkey) String() string { return base58.Encode(k[:]) }

// MarshalText encodes the key as base58.
func (k Pubkey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a base58 key.
func (k *Pubkey) UnmarshalText(b []byte) error {
	v, err := ParsePubkey(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseAddress decodes a base58 record address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if err := decode58(s, a[:]); err != nil {
		return Address{}, fmt.Errorf("address %q: %w", s, err)
	}
	return a, nil
}

// IsZero reports whether a is unset.
func (a Address) IsZero() bool { return a == Address{} }

func (a Address) String() string { return base58.Encode(a[:]) }

// MarshalText encodes the address as base58.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText decodes a base58 address.
func (a *Address) UnmarshalText(b []byte) error {
	v, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func decode58(s string, dst []byte) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("want %d bytes, got %d", len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}
