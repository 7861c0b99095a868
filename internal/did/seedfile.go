package did

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

const ageHeader = "age-encryption.org/"

// PassphraseFunc supplies the passphrase for an encrypted seed file.
type PassphraseFunc func() (string, error)

var ErrPassphraseRequired = errors.New("seed file is encrypted; passphrase required")

// ReadSeedFile loads a hex seed, decrypting it first when the file is an age
// scrypt envelope.
func ReadSeedFile(path string, passphrase PassphraseFunc) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(b, []byte(ageHeader)) {
		if passphrase == nil {
			return nil, ErrPassphraseRequired
		}
		pass, err := passphrase()
		if err != nil {
			return nil, err
		}
		identity, err := age.NewScryptIdentity(pass)
		if err != nil {
			return nil, fmt.Errorf("seed file: %w", err)
		}
		r, err := age.Decrypt(bytes.NewReader(b), identity)
		if err != nil {
			return nil, fmt.Errorf("decrypt seed file: %w", err)
		}
		b, err = io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("decrypt seed file: %w", err)
		}
	}
	return ParseSeed(string(b))
}

// WriteSeedFile stores seed as hex, age-encrypted when passphrase is non-empty.
func WriteSeedFile(path string, seed []byte, passphrase string) error {
	if len(seed) != SeedSize {
		return fmt.Errorf("seed must be %d bytes; got %d", SeedSize, len(seed))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	plain := []byte(hex.EncodeToString(seed) + "\n")
	out := plain
	if strings.TrimSpace(passphrase) != "" {
		recipient, err := age.NewScryptRecipient(passphrase)
		if err != nil {
			return fmt.Errorf("seed file: %w", err)
		}
		var buf bytes.Buffer
		w, err := age.Encrypt(&buf, recipient)
		if err != nil {
			return fmt.Errorf("encrypt seed file: %w", err)
		}
		if _, err := w.Write(plain); err != nil {
			return fmt.Errorf("encrypt seed file: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("encrypt seed file: %w", err)
		}
		out = buf.Bytes()
	}
	return os.WriteFile(path, out, 0o600)
}
