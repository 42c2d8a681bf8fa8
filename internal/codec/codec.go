package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/illarion/keevault/internal/crypto"
	"github.com/illarion/keevault/internal/domain"
)

const (
	NativeName    = "keevault"
	Version       = 1
	prefixSize    = 10      // magic + version + header length
	maxHeaderSize = 1 << 16 // Header is a few hundred bytes in practice
)

var magic = []byte("KEEV")

var (
	ErrNotVault           = errors.New("not a keevault file")
	ErrUnsupportedVersion = errors.New("unsupported format version")
)

// header is stored unencrypted in front of the payload
type header struct {
	KDF kdfHeader `json:"kdf"`
}

type kdfHeader struct {
	Algorithm  string `json:"algorithm"`
	Salt       []byte `json:"salt"`
	Iterations uint32 `json:"iterations"`
	Memory     uint32 `json:"memory,omitempty"`
	Threads    uint8  `json:"threads,omitempty"`
}

// Native implements the keevault file format
type Native struct{}

// Name returns NativeName
func (Native) Name() string { return NativeName }

// Match reports whether prefix starts with the keevault magic
func (Native) Match(prefix []byte) bool { return bytes.HasPrefix(prefix, magic) }

// Decode reads a complete vault from r and decrypts it with key.
// Reader failures wrap domain.ErrIO; wrong credentials and malformed
// bytes wrap domain.ErrAuth.
func (Native) Decode(r io.Reader, key *crypto.CompositeKey) (*domain.Database, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read vault: %w", domain.ErrIO, err)
	}

	prefix, hdr, ciphertext, err := split(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}

	kdf := &crypto.KDF{
		Algorithm:  hdr.KDF.Algorithm,
		Salt:       hdr.KDF.Salt,
		Iterations: hdr.KDF.Iterations,
		Memory:     hdr.KDF.Memory,
		Threads:    hdr.KDF.Threads,
	}

	derived, err := key.Derive(kdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}
	enc := crypto.NewEncryptor(derived)
	defer enc.Destroy()

	plaintext, err := enc.Decrypt(ciphertext, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong credentials or corrupted vault", domain.ErrAuth)
	}
	defer crypto.ClearBytes(plaintext)

	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("%w: failed to parse payload: %w", domain.ErrAuth, err)
	}

	db, err := p.toDomain()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}
	db.Config.Format = NativeName
	db.Config.KDF = *kdf
	return db, nil
}

// Encode encrypts db with key and writes it to w. The KDF cost from
// db.Config is reused with a fresh salt; an unset KDF selects the
// default argon2id parameters. Nothing is written when encryption fails.
func (Native) Encode(w io.Writer, db *domain.Database, key *crypto.CompositeKey) error {
	kdf, err := nextKDF(db.Config.KDF)
	if err != nil {
		return err
	}

	hdrJSON, err := json.Marshal(header{KDF: kdfHeader{
		Algorithm:  kdf.Algorithm,
		Salt:       kdf.Salt,
		Iterations: kdf.Iterations,
		Memory:     kdf.Memory,
		Threads:    kdf.Threads,
	}})
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	prefix := make([]byte, prefixSize, prefixSize+len(hdrJSON))
	copy(prefix, magic)
	binary.BigEndian.PutUint16(prefix[4:6], Version)
	binary.BigEndian.PutUint32(prefix[6:10], uint32(len(hdrJSON)))
	prefix = append(prefix, hdrJSON...)

	p := fromDomain(db)
	plaintext, err := json.Marshal(p)
	p.Root.clearSecrets()
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	defer crypto.ClearBytes(plaintext)

	derived, err := key.Derive(kdf)
	if err != nil {
		return err
	}
	enc := crypto.NewEncryptor(derived)
	defer enc.Destroy()

	ciphertext, err := enc.Encrypt(plaintext, prefix)
	if err != nil {
		return fmt.Errorf("failed to encrypt payload: %w", err)
	}

	if _, err := w.Write(append(prefix, ciphertext...)); err != nil {
		return fmt.Errorf("%w: failed to write vault: %w", domain.ErrIO, err)
	}
	return nil
}

func nextKDF(current crypto.KDF) (*crypto.KDF, error) {
	if current.Algorithm == "" {
		return crypto.NewKDF()
	}
	return current.Reseed()
}

// split separates the authenticated prefix, the parsed header and the
// ciphertext
func split(data []byte) ([]byte, *header, []byte, error) {
	if len(data) < prefixSize || !bytes.Equal(data[:4], magic) {
		return nil, nil, nil, ErrNotVault
	}
	if v := binary.BigEndian.Uint16(data[4:6]); v != Version {
		return nil, nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	hdrLen := binary.BigEndian.Uint32(data[6:10])
	if hdrLen > maxHeaderSize || uint64(len(data)) < uint64(prefixSize)+uint64(hdrLen) {
		return nil, nil, nil, fmt.Errorf("%w: truncated header", ErrNotVault)
	}

	end := prefixSize + int(hdrLen)
	var hdr header
	if err := json.Unmarshal(data[prefixSize:end], &hdr); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: malformed header: %w", ErrNotVault, err)
	}

	return data[:end], &hdr, data[end:], nil
}

// NewDatabase returns an empty vault whose root group and configured name
// are both name. A nil kdf selects the default on first save.
func NewDatabase(name string, kdf *crypto.KDF) *domain.Database {
	db := &domain.Database{
		Meta: domain.Meta{Name: name},
		Root: domain.NewGroup(name),
	}
	if kdf != nil {
		db.Config.KDF = *kdf
	}
	return db
}
