// Package did derives a did:key identity from a 32-byte Ed25519 seed and signs the
// bearer tokens the document node uses to authenticate requests.
package did

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

const (
	SeedSize = ed25519.SeedSize

	didKeyPrefix = "did:key:z"
)

// ed25519-pub multicodec, varint encoded.
var ed25519Multicodec = []byte{0xed, 0x01}

type Key struct {
	priv ed25519.PrivateKey
	did  string
}

func FromSeed(seed []byte) (*Key, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes; got %d", SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Key{priv: priv, did: EncodeDID(pub)}, nil
}

func (k *Key) DID() string { return k.did }

func (k *Key) PublicKey() ed25519.PublicKey { return k.priv.Public().(ed25519.PublicKey) }

// EncodeDID returns the did:key form of an Ed25519 public key.
func EncodeDID(pub ed25519.PublicKey) string {
	b := make([]byte, 0, len(ed25519Multicodec)+len(pub))
	b = append(b, ed25519Multicodec...)
	b = append(b, pub...)
	return didKeyPrefix + base58.Encode(b)
}

// PublicKeyFromDID resolves a did:key back to its Ed25519 public key.
func PublicKeyFromDID(did string) (ed25519.PublicKey, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(did), didKeyPrefix)
	if !ok {
		return nil, fmt.Errorf("unsupported did method: %q", did)
	}
	raw, err := base58.Decode(rest)
	if err != nil {
		return nil, fmt.Errorf("decode did: %w", err)
	}
	if len(raw) != len(ed25519Multicodec)+ed25519.PublicKeySize || raw[0] != ed25519Multicodec[0] || raw[1] != ed25519Multicodec[1] {
		return nil, errors.New("did is not an ed25519 key")
	}
	return ed25519.PublicKey(raw[len(ed25519Multicodec):]), nil
}

// ParseSeed decodes a hex seed (64 hex chars, optional 0x prefix).
func ParseSeed(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("seed is not hex: %w", err)
	}
	if len(b) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes; got %d", SeedSize, len(b))
	}
	return b, nil
}

func GenerateSeed() ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return seed, nil
}
