package sign

import (
	"path/filepath"
	"testing"

	"github.com/liyecom/govkernel/core/canonical"
	"github.com/liyecom/govkernel/internal/testutil"
)

func TestSignAndVerifyDigest(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	digest := canonical.SHA256Hex("evidence package body")
	sig, err := SignDigestHex(kp.Private, digest)
	if err != nil {
		t.Fatalf("sign digest: %v", err)
	}
	if sig.Alg != AlgEd25519 || sig.KeyID != KeyID(kp.Public) {
		t.Fatalf("unexpected signature envelope: %+v", sig)
	}
	ok, err := VerifyDigestHex(kp.Public, sig, digest)
	if err != nil {
		t.Fatalf("verify digest: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyRejectsWrongDigest(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	sig, err := SignDigestHex(kp.Private, canonical.SHA256Hex("original"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := VerifyDigestHex(kp.Public, sig, canonical.SHA256Hex("tampered"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("signature must not verify against a different digest")
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	signer, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}
	other, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate other: %v", err)
	}
	digest := canonical.SHA256Hex("body")
	sig, err := SignDigestHex(signer.Private, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := VerifyDigestHex(other.Public, sig, digest); err == nil {
		t.Fatal("expected key id mismatch")
	}
}

func TestSignRejectsMalformedDigest(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	if _, err := SignDigestHex(kp.Private, "abc123"); err == nil {
		t.Fatal("expected short digest to be rejected")
	}
}

func TestKeyFileRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	privateEncoded, publicEncoded := EncodeKeyPairBase64(kp)
	workDir := t.TempDir()
	privatePath := filepath.Join(workDir, "signing.key")
	publicPath := filepath.Join(workDir, "signing.pub")
	testutil.WriteFile(t, privatePath, []byte(privateEncoded+"\n"))
	testutil.WriteFile(t, publicPath, []byte(publicEncoded+"\n"))

	privateLoaded, err := LoadPrivateKeyBase64(privatePath)
	if err != nil {
		t.Fatalf("load private key: %v", err)
	}
	publicLoaded, err := LoadPublicKeyBase64(publicPath)
	if err != nil {
		t.Fatalf("load public key: %v", err)
	}
	if !privateLoaded.Equal(kp.Private) || !publicLoaded.Equal(kp.Public) {
		t.Fatal("key round trip mismatch")
	}
}
