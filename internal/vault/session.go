// Package vault holds open vault sessions and the registry that
// addresses them by position.
//
// A Session is either locked or unlocked. The key material, the parsed
// tree and the uuid index exist only inside the unlocked state, and every
// accessor goes through a failable unwrap that reports domain.ErrState
// while locked.
package vault

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/illarion/keevault/internal/crypto"
	"github.com/illarion/keevault/internal/domain"
	"github.com/illarion/keevault/internal/icon"
	"github.com/illarion/keevault/internal/otp"
	"github.com/illarion/keevault/internal/storage"
	"github.com/illarion/keevault/internal/tree"
)

// Codec turns vault bytes into a tree and back
type Codec interface {
	Decode(r io.Reader, key *crypto.CompositeKey) (*domain.Database, error)
	Encode(w io.Writer, db *domain.Database, key *crypto.CompositeKey) error
}

var (
	ErrEntryNotFound = fmt.Errorf("%w: no entry by that uuid", domain.ErrNotFound)
	ErrGroupNotFound = fmt.Errorf("%w: no group by that uuid", domain.ErrNotFound)
	ErrFieldNotFound = fmt.Errorf("%w: cannot find a field with that name", domain.ErrNotFound)
	ErrNotProtected  = fmt.Errorf("%w: the field is not protected", domain.ErrType)
)

// state is locked or *unlocked
type state interface {
	isState()
}

type locked struct{}

type unlocked struct {
	key      *crypto.CompositeKey
	db       *domain.Database
	index    *tree.Index
	baseline *domain.Database // copy as last loaded or saved, nil before the first save
	modified bool             // an update ran since the last load or save
}

func (locked) isState()    {}
func (*unlocked) isState() {}

// Session is one open vault
type Session struct {
	backend storage.Backend
	codec   Codec
	state   state
}

// Load creates a locked session. The backend is not touched until Unlock.
func Load(backend storage.Backend, codec Codec) *Session {
	return &Session{backend: backend, codec: codec, state: locked{}}
}

// Create returns an unlocked session for a new database protected by
// the supplied components. Nothing is written until Save.
func Create(backend storage.Backend, codec Codec, db *domain.Database, password *string, keyfile []byte) (*Session, error) {
	if db == nil || db.Root == nil {
		return nil, fmt.Errorf("%w: database has no root group", domain.ErrInvalidInput)
	}
	key, err := compositeKey(password, keyfile)
	if err != nil {
		return nil, err
	}
	return &Session{
		backend: backend,
		codec:   codec,
		state: &unlocked{
			key:      key,
			db:       db,
			index:    tree.BuildIndex(db.Root),
			modified: true,
		},
	}, nil
}

func compositeKey(password *string, keyfile []byte) (*crypto.CompositeKey, error) {
	var pw []byte
	if password != nil {
		pw = []byte(*password)
		defer crypto.ClearBytes(pw)
	}
	key, err := crypto.NewCompositeKey(pw, keyfile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return key, nil
}

func (s *Session) unlocked() (*unlocked, error) {
	u, ok := s.state.(*unlocked)
	if !ok {
		return nil, domain.ErrState
	}
	return u, nil
}

// IsUnlocked reports the lock state
func (s *Session) IsUnlocked() bool {
	_, ok := s.state.(*unlocked)
	return ok
}

// Unlock builds a composite key from the supplied components, reads the
// backend and decodes it. A nil password or keyfile means that component
// was not supplied. The session changes state only on success.
func (s *Session) Unlock(password *string, keyfile []byte) error {
	key, err := compositeKey(password, keyfile)
	if err != nil {
		return err
	}

	r, err := s.backend.Open()
	if err != nil {
		key.Destroy()
		return fmt.Errorf("%w: failed to open %s: %w", domain.ErrIO, s.backend.Name(), err)
	}
	defer r.Close()

	db, err := s.codec.Decode(r, key)
	if err != nil {
		key.Destroy()
		if errors.Is(err, domain.ErrIO) || errors.Is(err, domain.ErrAuth) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}
	if db.Root == nil {
		key.Destroy()
		return fmt.Errorf("%w: vault has no root group", domain.ErrAuth)
	}

	next := &unlocked{
		key:      key,
		db:       db,
		index:    tree.BuildIndex(db.Root),
		baseline: db.Clone(),
	}
	s.discard()
	s.state = next
	return nil
}

// Lock zeroes the key material and every secret, then drops the tree.
// Locking a locked session does nothing.
func (s *Session) Lock() {
	s.discard()
	s.state = locked{}
}

func (s *Session) discard() {
	if u, ok := s.state.(*unlocked); ok {
		u.key.Destroy()
		u.db.Destroy()
		u.baseline.Destroy()
	}
}

// Save encodes the tree with the retained key and writes it to the
// backend, returning the backend's SendSaved result. Encoding happens in
// memory first so a failure leaves the backend untouched.
func (s *Session) Save() ([]byte, error) {
	u, err := s.unlocked()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := s.codec.Encode(&buf, u.db, u.key); err != nil {
		return nil, fmt.Errorf("failed to encode vault: %w", err)
	}

	w, err := s.backend.Save()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s for writing: %w", domain.ErrIO, s.backend.Name(), err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		w.Close()
		return nil, fmt.Errorf("%w: failed to write %s: %w", domain.ErrIO, s.backend.Name(), err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit %s: %w", domain.ErrIO, s.backend.Name(), err)
	}

	u.baseline.Destroy()
	u.baseline = u.db.Clone()
	u.modified = false
	return s.backend.SendSaved(), nil
}

// Name is the vault's configured name while unlocked and the backend's
// display name while locked
func (s *Session) Name() string {
	if u, err := s.unlocked(); err == nil {
		return u.db.Name()
	}
	return s.backend.Name()
}

// FileName is the backend's display name
func (s *Session) FileName() string {
	return s.backend.Name()
}

// Backend returns the current backend
func (s *Session) Backend() storage.Backend {
	return s.backend
}

// SetBackend replaces the backend. The lock state is not touched; the
// next Save writes to b.
func (s *Session) SetBackend(b storage.Backend) {
	s.backend = b
}

// Database returns the parsed vault. Callers must not modify it; use
// UpdateGroup and UpdateEntry.
func (s *Session) Database() (*domain.Database, error) {
	u, err := s.unlocked()
	if err != nil {
		return nil, err
	}
	return u.db, nil
}

// Group returns the first group with uuid id in pre-order, or nil
func (s *Session) Group(id uuid.UUID) (*domain.Group, error) {
	u, err := s.unlocked()
	if err != nil {
		return nil, err
	}
	p, ok := u.index.GroupPath(id)
	if !ok {
		return nil, nil
	}
	return tree.GroupAt(u.db.Root, p), nil
}

// Entry returns the first entry with uuid id in pre-order, or nil
func (s *Session) Entry(id uuid.UUID) (*domain.Entry, error) {
	u, err := s.unlocked()
	if err != nil {
		return nil, err
	}
	p, ok := u.index.EntryPath(id)
	if !ok {
		return nil, nil
	}
	return tree.EntryAt(u.db.Root, p), nil
}

// UpdateGroup runs fn on the group with uuid id. The group is only
// reachable for the duration of the call. The index is rebuilt afterwards
// in case fn restructured the subtree.
func (s *Session) UpdateGroup(id uuid.UUID, fn func(*domain.Group) error) error {
	u, err := s.unlocked()
	if err != nil {
		return err
	}
	p, ok := u.index.GroupPath(id)
	if !ok {
		return ErrGroupNotFound
	}
	g := tree.GroupAt(u.db.Root, p)
	if g == nil {
		return ErrGroupNotFound
	}

	u.modified = true
	defer func() { u.index = tree.BuildIndex(u.db.Root) }()
	return fn(g)
}

// UpdateEntry runs fn on the entry with uuid id
func (s *Session) UpdateEntry(id uuid.UUID, fn func(*domain.Entry) error) error {
	u, err := s.unlocked()
	if err != nil {
		return err
	}
	p, ok := u.index.EntryPath(id)
	if !ok {
		return ErrEntryNotFound
	}
	e := tree.EntryAt(u.db.Root, p)
	if e == nil {
		return ErrEntryNotFound
	}
	u.modified = true
	return fn(e)
}

// Reveal returns the cleartext of a protected field
func (s *Session) Reveal(entryID uuid.UUID, field string) (string, error) {
	e, err := s.Entry(entryID)
	if err != nil {
		return "", err
	}
	if e == nil {
		return "", ErrEntryNotFound
	}

	v, ok := e.Get(field)
	if !ok {
		return "", ErrFieldNotFound
	}
	if v.Kind() != domain.KindProtected || v.Secret() == nil {
		return "", ErrNotProtected
	}

	b := v.Secret().Reveal()
	defer crypto.ClearBytes(b)
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: field %q", domain.ErrEncoding, field)
	}
	return string(b), nil
}

// SetField inserts or overwrites a field with exactly the given variant
func (s *Session) SetField(entryID uuid.UUID, field string, v domain.Value) error {
	return s.UpdateEntry(entryID, func(e *domain.Entry) error {
		e.Set(field, v)
		return nil
	})
}

// OTP computes the one-time code of an entry at unix time t
func (s *Session) OTP(entryID uuid.UUID, t uint64) (otp.Value, error) {
	e, err := s.Entry(entryID)
	if err != nil {
		return otp.Value{}, err
	}
	if e == nil {
		return otp.Value{}, ErrEntryNotFound
	}
	return otp.ValueAt(e, t)
}

// Icon resolves an icon reference against this vault. Custom icons only
// resolve while unlocked.
func (s *Session) Icon(ref domain.IconRef) (string, bool) {
	var db *domain.Database
	if u, err := s.unlocked(); err == nil {
		db = u.db
	}
	return icon.ResolveRef(db, ref)
}

// Modified reports whether the tree was updated since it was last
// loaded or saved. A new vault counts as modified until its first save.
// An edit that restores the previous value still counts.
func (s *Session) Modified() (bool, error) {
	u, err := s.unlocked()
	if err != nil {
		return false, err
	}
	return u.modified, nil
}

// Changes returns a diff between the tree as last loaded or saved and
// the current tree, or "" when the two match. Protected values appear
// only as markers; an edited secret is marked as changed.
func (s *Session) Changes() (string, error) {
	u, err := s.unlocked()
	if err != nil {
		return "", err
	}
	var before string
	var baseline *domain.Group
	if u.baseline != nil {
		baseline = u.baseline.Root
		before = tree.Render(baseline)
	}
	return tree.Diff(s.Name(), before, tree.RenderChanges(u.db.Root, baseline)), nil
}
