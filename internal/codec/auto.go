package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/illarion/keevault/internal/crypto"
	"github.com/illarion/keevault/internal/domain"
)

// sniffSize covers the longest file signature
const sniffSize = 12

var ErrUnknownFormat = errors.New("unrecognized vault format")

// FileFormat is one on-disk vault format
type FileFormat interface {
	Name() string
	Match(prefix []byte) bool
	Decode(r io.Reader, key *crypto.CompositeKey) (*domain.Database, error)
	Encode(w io.Writer, db *domain.Database, key *crypto.CompositeKey) error
}

// Auto picks a FileFormat per vault. Decode goes to the format that
// recognizes the file signature. Encode writes the format recorded in
// db.Config.Format, or the first format when none is recorded.
type Auto struct {
	formats []FileFormat
}

// NewAuto returns an Auto over formats; formats[0] is the default for
// new vaults
func NewAuto(formats ...FileFormat) *Auto {
	return &Auto{formats: formats}
}

// Lookup returns the format called name
func (a *Auto) Lookup(name string) (FileFormat, bool) {
	for _, f := range a.formats {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

func (a *Auto) Decode(r io.Reader, key *crypto.CompositeKey) (*domain.Database, error) {
	br := bufio.NewReaderSize(r, 4096)
	prefix, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: failed to read vault: %w", domain.ErrIO, err)
	}

	for _, f := range a.formats {
		if f.Match(prefix) {
			return f.Decode(br, key)
		}
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrAuth, ErrUnknownFormat)
}

func (a *Auto) Encode(w io.Writer, db *domain.Database, key *crypto.CompositeKey) error {
	if len(a.formats) == 0 {
		return ErrUnknownFormat
	}
	f, ok := a.Lookup(db.Config.Format)
	if !ok {
		if db.Config.Format != "" {
			return fmt.Errorf("%w: %s", ErrUnknownFormat, db.Config.Format)
		}
		f = a.formats[0]
	}
	return f.Encode(w, db, key)
}
