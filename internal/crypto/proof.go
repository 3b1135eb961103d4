// Package crypto implements caller keys and the authorization proofs signed with them.
package crypto

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/car-registry/internal/model"
)

// ErrInvalidProof is returned for any proof that does not verify.
var ErrInvalidProof = errors.New("invalid authorization proof")

// ProofClaims are the claims of an authorization proof. Subject is the base58 signer key;
// Audience is the full method name the proof authorizes. Scope, when set, narrows the
// proof to one request, e.g. a single car transfer.
type ProofClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// Proof is a verified authorization proof.
type Proof struct {
	Signer model.Pubkey
	Scope  string
}

// SignProof issues a proof that the holder of priv authorizes a call to method.
func SignProof(priv ed25519.PrivateKey, method string, ttl time.Duration, now time.Time) (string, error) {
	return SignScopedProof(priv, method, "", ttl, now)
}

// SignScopedProof is SignProof narrowed to scope.
func SignScopedProof(priv ed25519.PrivateKey, method, scope string, ttl time.Duration, now time.Time) (string, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	pub := model.PubkeyFromEd25519(priv.Public().(ed25519.PublicKey))
	claims := ProofClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   pub.String(),
		Audience:  jwt.ClaimStrings{method},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        jti.String(),
	}, Scope: scope}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
}

// Verifier checks proofs against a method and a maximum lifetime.
type Verifier struct {
	MaxAge time.Duration
	Leeway time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Verify returns the key that signed token for method.
func (v Verifier) Verify(token, method string) (model.Pubkey, error) {
	p, err := v.VerifyProof(token, method)
	return p.Signer, err
}

// VerifyProof checks token for method and returns its signer and scope.
func (v Verifier) VerifyProof(token, method string) (Proof, error) {
	var claims ProofClaims
	var signer model.Pubkey
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithAudience(method),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.Leeway),
	}
	if v.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(v.Now))
	}
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		k, err := model.ParsePubkey(claims.Subject)
		if err != nil {
			return nil, err
		}
		signer = k
		return k.Ed25519(), nil
	}, opts...)
	if err != nil {
		return Proof{}, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if claims.IssuedAt == nil {
		return Proof{}, fmt.Errorf("%w: missing iat", ErrInvalidProof)
	}
	if v.MaxAge > 0 && claims.ExpiresAt.Sub(claims.IssuedAt.Time) > v.MaxAge {
		return Proof{}, fmt.Errorf("%w: lifetime exceeds %s", ErrInvalidProof, v.MaxAge)
	}
	return Proof{Signer: signer, Scope: claims.Scope}, nil
}
