package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrNoKeyComponents is returned when neither a password nor a key file
// was supplied.
var ErrNoKeyComponents = errors.New("password or key file required")

// CompositeKey is the combination of all key components of a vault.
// It is the key material a session retains while unlocked.
type CompositeKey struct {
	passphrase []byte // SHA-256 of the password, nil without one
	keyfile    []byte // key file contents, nil without one
	hash       []byte
}

// NewCompositeKey combines the supplied components. A nil password means
// "no password", which differs from an empty one. The same holds for the
// key file.
func NewCompositeKey(password, keyfile []byte) (*CompositeKey, error) {
	if password == nil && keyfile == nil {
		return nil, ErrNoKeyComponents
	}

	c := &CompositeKey{}
	h := sha256.New()
	if password != nil {
		sum := sha256.Sum256(password)
		c.passphrase = bytes.Clone(sum[:])
		h.Write(sum[:])
		ClearBytes(sum[:])
	}
	if keyfile != nil {
		c.keyfile = bytes.Clone(keyfile)
		sum := keyfileHash(keyfile)
		h.Write(sum)
		ClearBytes(sum)
	}
	c.hash = h.Sum(nil)
	return c, nil
}

// keyfileHash follows the KeePass rules for legacy key files: exactly 32
// bytes are used raw, 64 hex characters are decoded, anything else is
// hashed with SHA-256.
func keyfileHash(data []byte) []byte {
	switch len(data) {
	case 32:
		return append([]byte(nil), data...)
	case 64:
		if decoded, err := hex.DecodeString(string(data)); err == nil {
			return decoded
		}
	}
	sum := sha256.Sum256(data)
	return sum[:]
}

// Derive runs the KDF over the composite key and returns an encryption key.
// The caller owns the returned slice and must clear it.
func (c *CompositeKey) Derive(kdf *KDF) ([]byte, error) {
	return kdf.DeriveKey(c.hash)
}

// Passphrase returns a copy of the hashed password, or nil when the key
// has no password. The caller must clear it.
func (c *CompositeKey) Passphrase() []byte {
	return bytes.Clone(c.passphrase)
}

// Keyfile returns a copy of the key file contents, or nil when the key
// has no key file. The caller must clear it.
func (c *CompositeKey) Keyfile() []byte {
	return bytes.Clone(c.keyfile)
}

// Destroy clears the key material
func (c *CompositeKey) Destroy() {
	if c == nil {
		return
	}
	ClearBytes(c.passphrase)
	ClearBytes(c.keyfile)
	ClearBytes(c.hash)
	c.passphrase, c.keyfile, c.hash = nil, nil, nil
}
