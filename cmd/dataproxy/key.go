package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

// loadOrCreateSigningKey reads this proxy's Ed25519 token-signing key
// from path (base64 standard encoding of the 64-byte seed+public
// form), generating and persisting a fresh one on first run. The
// serial advertised as the JWT `kid` is the key's own base64 public
// half, truncated to 16 characters — enough to namespace it in the
// pubkey cache without a separate identity file.
func loadOrCreateSigningKey(path string) (ed25519.PrivateKey, string, error) {
	if data, err := os.ReadFile(path); err == nil {
		raw, err := base64.StdEncoding.DecodeString(string(data))
		if err != nil {
			return nil, "", fmt.Errorf("decode signing key at %s: %w", path, err)
		}
		if len(raw) != ed25519.PrivateKeySize {
			return nil, "", fmt.Errorf("signing key at %s has wrong length", path)
		}
		key := ed25519.PrivateKey(raw)
		return key, serialFor(key), nil
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("generate signing key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, "", fmt.Errorf("persist signing key to %s: %w", path, err)
	}
	return key, serialFor(key), nil
}

func serialFor(key ed25519.PrivateKey) string {
	pub := base64.RawURLEncoding.EncodeToString(key.Public().(ed25519.PublicKey))
	if len(pub) > 16 {
		pub = pub[:16]
	}
	return pub
}
