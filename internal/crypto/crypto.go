package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize     = 32     // Salt size in bytes
	KeySize      = 32     // AES-256 key size
	NonceSize    = 12     // GCM nonce size
	TagSize      = 16     // GCM authentication tag size
	DefaultIters = 210000 // Default PBKDF2 iterations (OWASP minimum)

	DefaultArgonTime    = 3
	DefaultArgonMemory  = 64 * 1024 // KiB
	DefaultArgonThreads = 4

	maxPBKDF2Iters  = 10_000_000
	maxArgonTime    = 64
	maxArgonMemory  = 1024 * 1024 // 1 GiB in KiB
	maxArgonThreads = 64
)

// Supported key derivation algorithms
const (
	KDFArgon2id = "argon2id"
	KDFPBKDF2   = "pbkdf2-sha256"
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrUnsupportedKDF    = errors.New("unsupported key derivation function")
	ErrKDFParams         = errors.New("invalid key derivation parameters")
)

// KDF handles key derivation from the composite key.
// Iterations is the PBKDF2 iteration count or the argon2 time cost.
type KDF struct {
	Algorithm  string
	Salt       []byte
	Iterations uint32
	Memory     uint32 // KiB, argon2id only
	Threads    uint8  // argon2id only
}

// NewKDF creates a new argon2id KDF with a random salt
func NewKDF() (*KDF, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	return &KDF{
		Algorithm:  KDFArgon2id,
		Salt:       salt,
		Iterations: DefaultArgonTime,
		Memory:     DefaultArgonMemory,
		Threads:    DefaultArgonThreads,
	}, nil
}

// NewPBKDF2 creates a PBKDF2-HMAC-SHA256 KDF with a random salt.
// A zero iteration count selects DefaultIters.
func NewPBKDF2(iterations uint32) (*KDF, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if iterations == 0 {
		iterations = DefaultIters
	}

	return &KDF{
		Algorithm:  KDFPBKDF2,
		Salt:       salt,
		Iterations: iterations,
	}, nil
}

// Validate rejects unknown algorithms and parameters outside sane bounds.
// Parameters come from untrusted vault headers, so an absurd memory cost
// must fail here instead of exhausting the process.
func (k *KDF) Validate() error {
	if len(k.Salt) == 0 {
		return fmt.Errorf("%w: empty salt", ErrKDFParams)
	}

	switch k.Algorithm {
	case KDFPBKDF2:
		if k.Iterations == 0 || k.Iterations > maxPBKDF2Iters {
			return fmt.Errorf("%w: iterations %d", ErrKDFParams, k.Iterations)
		}
	case KDFArgon2id:
		if k.Iterations == 0 || k.Iterations > maxArgonTime {
			return fmt.Errorf("%w: time cost %d", ErrKDFParams, k.Iterations)
		}
		if k.Memory < 8*uint32(k.Threads) || k.Memory > maxArgonMemory {
			return fmt.Errorf("%w: memory %d KiB", ErrKDFParams, k.Memory)
		}
		if k.Threads == 0 || k.Threads > maxArgonThreads {
			return fmt.Errorf("%w: threads %d", ErrKDFParams, k.Threads)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedKDF, k.Algorithm)
	}
	return nil
}

// DeriveKey derives an encryption key from the composite key material
func (k *KDF) DeriveKey(secret []byte) ([]byte, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}

	switch k.Algorithm {
	case KDFPBKDF2:
		return pbkdf2.Key(secret, k.Salt, int(k.Iterations), KeySize, sha256.New), nil
	default:
		return argon2.IDKey(secret, k.Salt, k.Iterations, k.Memory, k.Threads, KeySize), nil
	}
}

// Reseed returns a copy of the KDF with the same cost parameters and a
// fresh random salt. Every save uses a new salt.
func (k *KDF) Reseed() (*KDF, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	next := *k
	next.Salt = salt
	return &next, nil
}

// Encryptor provides authenticated encryption
type Encryptor struct {
	key []byte
}

// NewEncryptor creates a new encryptor with the given key
func NewEncryptor(key []byte) *Encryptor {
	return &Encryptor{
		key: key,
	}
}

// Encrypt encrypts plaintext using AES-256-GCM, authenticating
// additionalData alongside it. The nonce is prepended to the result.
func (e *Encryptor) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}

	// Generate random nonce
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, additionalData)

	result := make([]byte, NonceSize+len(ciphertext))
	copy(result, nonce)
	copy(result[NonceSize:], ciphertext)

	return result, nil
}

// Decrypt decrypts ciphertext using AES-256-GCM
func (e *Encryptor) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize+TagSize {
		return nil, ErrInvalidCiphertext
	}

	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}

	nonce := ciphertext[:NonceSize]
	ciphertext = ciphertext[NonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrAuthFailed
	}

	return plaintext, nil
}

func (e *Encryptor) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Destroy clears the encryptor's key from memory
func (e *Encryptor) Destroy() {
	ClearBytes(e.key)
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
