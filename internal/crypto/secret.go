package crypto

import "crypto/rand"

// Secret holds a protected value in memory. The cleartext is kept XOR-masked
// with a random pad so it never sits in memory verbatim, and it is only
// available through Reveal.
type Secret struct {
	masked []byte
	pad    []byte
}

// NewSecret copies plaintext into a new Secret. The caller keeps ownership
// of plaintext and may clear it afterwards.
func NewSecret(plaintext []byte) *Secret {
	pad := make([]byte, len(plaintext))
	// rand.Read never returns an error since Go 1.24
	_, _ = rand.Read(pad)

	masked := make([]byte, len(plaintext))
	for i := range plaintext {
		masked[i] = plaintext[i] ^ pad[i]
	}
	return &Secret{masked: masked, pad: pad}
}

// NewSecretString is NewSecret for string input
func NewSecretString(s string) *Secret {
	b := []byte(s)
	defer ClearBytes(b)
	return NewSecret(b)
}

// Reveal returns a fresh copy of the cleartext. The caller must clear it.
func (s *Secret) Reveal() []byte {
	out := make([]byte, len(s.masked))
	for i := range s.masked {
		out[i] = s.masked[i] ^ s.pad[i]
	}
	return out
}

// Equal compares two secrets in constant time
func (s *Secret) Equal(other *Secret) bool {
	if s == nil || other == nil {
		return s == other
	}
	a, b := s.Reveal(), other.Reveal()
	defer ClearBytes(a)
	defer ClearBytes(b)
	return ConstantTimeCompare(a, b)
}

// Clone returns an independent copy with a new pad
func (s *Secret) Clone() *Secret {
	plain := s.Reveal()
	defer ClearBytes(plain)
	return NewSecret(plain)
}

// Destroy zeroes the secret
func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	ClearBytes(s.masked)
	ClearBytes(s.pad)
}
