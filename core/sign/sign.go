// Package sign provides ed25519 signing of evidence package hashes. A
// signature binds a package hash to a key holder; it supplements the hash
// chain, it does not replace it.
package sign

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const AlgEd25519 = "ed25519"

type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

type Signature struct {
	Alg   string `json:"alg"`
	KeyID string `json:"key_id"`
	Sig   string `json:"sig"`
}

func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// KeyID is the sha256 hex digest of the public key bytes.
func KeyID(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

// SignDigestHex signs a sha256 hex digest (an evidence package hash).
func SignDigestHex(priv ed25519.PrivateKey, digestHex string) (Signature, error) {
	digest, err := hex.DecodeString(digestHex)
	if err != nil {
		return Signature{}, fmt.Errorf("decode digest: %w", err)
	}
	if len(digest) != sha256.Size {
		return Signature{}, fmt.Errorf("invalid digest length: %d", len(digest))
	}
	raw := ed25519.Sign(priv, digest)
	return Signature{
		Alg:   AlgEd25519,
		KeyID: KeyID(priv.Public().(ed25519.PublicKey)),
		Sig:   base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// VerifyDigestHex checks a signature against a sha256 hex digest.
func VerifyDigestHex(pub ed25519.PublicKey, sig Signature, digestHex string) (bool, error) {
	if sig.Alg != AlgEd25519 {
		return false, fmt.Errorf("unsupported alg: %s", sig.Alg)
	}
	if sig.KeyID != "" && sig.KeyID != KeyID(pub) {
		return false, fmt.Errorf("key id mismatch")
	}
	digest, err := hex.DecodeString(digestHex)
	if err != nil {
		return false, fmt.Errorf("decode digest: %w", err)
	}
	if len(digest) != sha256.Size {
		return false, fmt.Errorf("invalid digest length: %d", len(digest))
	}
	rawSig, err := base64.StdEncoding.DecodeString(sig.Sig)
	if err != nil {
		return false, fmt.Errorf("decode sig: %w", err)
	}
	if len(rawSig) != ed25519.SignatureSize {
		return false, fmt.Errorf("invalid signature length: %d", len(rawSig))
	}
	return ed25519.Verify(pub, digest, rawSig), nil
}

func LoadPrivateKeyBase64(path string) (ed25519.PrivateKey, error) {
	// #nosec G304 -- caller supplies local key path by design
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return ParsePrivateKeyBase64(strings.TrimSpace(string(raw)))
}

func LoadPublicKeyBase64(path string) (ed25519.PublicKey, error) {
	// #nosec G304 -- caller supplies local key path by design
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return ParsePublicKeyBase64(strings.TrimSpace(string(raw)))
}

func ParsePrivateKeyBase64(encoded string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if l := len(raw); l != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length: %d", l)
	}
	return ed25519.PrivateKey(raw), nil
}

func ParsePublicKeyBase64(encoded string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if l := len(raw); l != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key length: %d", l)
	}
	return ed25519.PublicKey(raw), nil
}

// EncodeKeyPairBase64 returns the private and public keys in the storage
// encoding used by key files.
func EncodeKeyPairBase64(kp KeyPair) (privateEncoded, publicEncoded string) {
	return base64.StdEncoding.EncodeToString(kp.Private), base64.StdEncoding.EncodeToString(kp.Public)
}
