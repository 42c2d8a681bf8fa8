// Package kdbx reads and writes KeePass databases through gokeepasslib.
//
// KDBX 3.1 and 4 files are read; saves always write KDBX 4 with a fresh
// header. KeePass keeps the entries of a group ahead of its subgroups, so
// a mixed child order does not survive a save. Entry strings map to text
// or protected values and attachments map to bytes values.
package kdbx

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/tobischo/gokeepasslib/v3"
	w "github.com/tobischo/gokeepasslib/v3/wrappers"

	"github.com/illarion/keevault/internal/crypto"
	"github.com/illarion/keevault/internal/domain"
)

// Name identifies the format in domain.Config
const Name = "kdbx"

// signature is the KeePass 2 file magic
var signature = []byte{0x03, 0xd9, 0xa2, 0x9a, 0x67, 0xfb, 0x4b, 0xb5}

var (
	ErrNoRoot            = errors.New("database has no root group")
	ErrMissingAttachment = errors.New("entry references a missing attachment")
	ErrUnreadableKeyfile = errors.New("unreadable key file")
)

// Format implements the KeePass file format
type Format struct{}

// Name returns Name
func (Format) Name() string { return Name }

// Match reports whether prefix starts with the KeePass signature
func (Format) Match(prefix []byte) bool { return bytes.HasPrefix(prefix, signature) }

// Decode reads a KeePass database from r. Reader failures wrap
// domain.ErrIO; wrong credentials and malformed files wrap domain.ErrAuth.
func (Format) Decode(r io.Reader, key *crypto.CompositeKey) (*domain.Database, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read vault: %w", domain.ErrIO, err)
	}

	creds, err := credentials(key)
	if err != nil {
		return nil, err
	}
	defer clearCredentials(creds)

	kdb := gokeepasslib.NewDatabase()
	kdb.Credentials = creds
	if err := gokeepasslib.NewDecoder(bytes.NewReader(data)).Decode(kdb); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}
	if kdb.Content == nil || kdb.Content.Root == nil || len(kdb.Content.Root.Groups) == 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuth, ErrNoRoot)
	}
	kdb.UnlockProtectedEntries()

	db, err := toDomain(kdb)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}
	return db, nil
}

// Encode writes db as a KDBX 4 database protected by key. Nothing is
// written when encoding fails.
func (Format) Encode(out io.Writer, db *domain.Database, key *crypto.CompositeKey) error {
	if db.Root == nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, ErrNoRoot)
	}
	creds, err := credentials(key)
	if err != nil {
		return err
	}
	defer clearCredentials(creds)

	kdb := gokeepasslib.NewDatabase(gokeepasslib.WithDatabaseKDBXVersion4())
	kdb.Credentials = creds
	kdb.Content.Meta.DatabaseName = db.Meta.Name
	for _, icon := range db.Meta.CustomIcons {
		kdb.Content.Meta.CustomIcons = append(kdb.Content.Meta.CustomIcons, gokeepasslib.CustomIcon{
			UUID: gokeepasslib.UUID(icon.UUID),
			Data: base64.StdEncoding.EncodeToString(icon.Data),
		})
	}
	kdb.Content.Root = &gokeepasslib.RootData{
		Groups: []gokeepasslib.Group{groupFromDomain(kdb, db.Root)},
	}
	kdb.LockProtectedEntries()

	var buf bytes.Buffer
	if err := gokeepasslib.NewEncoder(&buf).Encode(kdb); err != nil {
		return fmt.Errorf("failed to encode database: %w", err)
	}
	if _, err := out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: failed to write vault: %w", domain.ErrIO, err)
	}
	return nil
}

// credentials maps a composite key onto KeePass credentials. gokeepasslib
// parses the key file (XML, hex or raw) the way KeePass does.
func credentials(key *crypto.CompositeKey) (*gokeepasslib.DBCredentials, error) {
	creds := &gokeepasslib.DBCredentials{Passphrase: key.Passphrase()}

	keyfile := key.Keyfile()
	if keyfile == nil {
		return creds, nil
	}
	defer crypto.ClearBytes(keyfile)

	parsed, err := gokeepasslib.NewKeyDataCredentials(keyfile)
	if err != nil {
		crypto.ClearBytes(creds.Passphrase)
		return nil, fmt.Errorf("%w: %w: %w", domain.ErrInvalidInput, ErrUnreadableKeyfile, err)
	}
	creds.Key = parsed.Key
	return creds, nil
}

func clearCredentials(creds *gokeepasslib.DBCredentials) {
	crypto.ClearBytes(creds.Passphrase)
	crypto.ClearBytes(creds.Key)
}

func toDomain(kdb *gokeepasslib.Database) (*domain.Database, error) {
	db := &domain.Database{Config: domain.Config{Format: Name}}
	if meta := kdb.Content.Meta; meta != nil {
		db.Meta.Name = meta.DatabaseName
		for _, icon := range meta.CustomIcons {
			data, err := base64.StdEncoding.DecodeString(icon.Data)
			if err != nil {
				return nil, fmt.Errorf("custom icon %s: %w", uuid.UUID(icon.UUID), err)
			}
			db.Meta.CustomIcons = append(db.Meta.CustomIcons, domain.CustomIcon{UUID: uuid.UUID(icon.UUID), Data: data})
		}
	}

	root, err := groupToDomain(kdb, &kdb.Content.Root.Groups[0])
	if err != nil {
		db.Destroy()
		return nil, err
	}
	db.Root = root
	return db, nil
}

func groupToDomain(kdb *gokeepasslib.Database, g *gokeepasslib.Group) (*domain.Group, error) {
	out := &domain.Group{
		UUID: uuid.UUID(g.UUID),
		Name: g.Name,
		Icon: iconRef(int(g.IconID), g.CustomIconUUID),
	}
	for i := range g.Entries {
		e, err := entryToDomain(kdb, &g.Entries[i])
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, e)
	}
	for i := range g.Groups {
		sub, err := groupToDomain(kdb, &g.Groups[i])
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, sub)
	}
	return out, nil
}

func entryToDomain(kdb *gokeepasslib.Database, e *gokeepasslib.Entry) (*domain.Entry, error) {
	out := &domain.Entry{
		UUID:   uuid.UUID(e.UUID),
		Icon:   iconRef(int(e.IconID), e.CustomIconUUID),
		Fields: make(map[string]domain.Value, len(e.Values)+len(e.Binaries)),
	}
	for _, v := range e.Values {
		if v.Value.Protected.Bool {
			out.Fields[v.Key] = domain.ProtectedString(v.Value.Content)
			continue
		}
		out.Fields[v.Key] = domain.TextValue(v.Value.Content)
	}
	for i := range e.Binaries {
		ref := &e.Binaries[i]
		bin := ref.Find(kdb)
		if bin == nil {
			return nil, fmt.Errorf("%w: %q of entry %s", ErrMissingAttachment, ref.Name, out.UUID)
		}
		data, err := bin.GetContentBytes()
		if err != nil {
			return nil, fmt.Errorf("attachment %q of entry %s: %w", ref.Name, out.UUID, err)
		}
		out.Fields[ref.Name] = domain.BytesValue(data)
	}
	return out, nil
}

// iconRef keeps the standard index alongside a custom icon
func iconRef(standard int, custom gokeepasslib.UUID) domain.IconRef {
	ref := domain.StandardIcon(standard)
	if custom != (gokeepasslib.UUID{}) {
		id := uuid.UUID(custom)
		ref.Custom = &id
	}
	return ref
}

func groupFromDomain(kdb *gokeepasslib.Database, src *domain.Group) gokeepasslib.Group {
	g := gokeepasslib.NewGroup()
	g.UUID = gokeepasslib.UUID(src.UUID)
	g.Name = src.Name
	g.IconID, g.CustomIconUUID = iconFields(src.Icon)
	for _, child := range src.Children {
		switch n := child.(type) {
		case *domain.Entry:
			g.Entries = append(g.Entries, entryFromDomain(kdb, n))
		case *domain.Group:
			g.Groups = append(g.Groups, groupFromDomain(kdb, n))
		}
	}
	return g
}

func entryFromDomain(kdb *gokeepasslib.Database, src *domain.Entry) gokeepasslib.Entry {
	e := gokeepasslib.NewEntry()
	e.UUID = gokeepasslib.UUID(src.UUID)
	e.IconID, e.CustomIconUUID = iconFields(src.Icon)

	for _, name := range slices.Sorted(maps.Keys(src.Fields)) {
		v := src.Fields[name]
		switch v.Kind() {
		case domain.KindUnprotected:
			text, _ := v.Text()
			e.Values = append(e.Values, gokeepasslib.ValueData{Key: name, Value: gokeepasslib.V{Content: text}})
		case domain.KindProtected:
			plain := v.Secret().Reveal()
			e.Values = append(e.Values, gokeepasslib.ValueData{
				Key:   name,
				Value: gokeepasslib.V{Content: string(plain), Protected: w.NewBoolWrapper(true)},
			})
			crypto.ClearBytes(plain)
		case domain.KindBytes:
			bin := kdb.AddBinary(v.Raw())
			e.Binaries = append(e.Binaries, bin.CreateReference(name))
		}
	}
	return e
}

func iconFields(ref domain.IconRef) (int64, gokeepasslib.UUID) {
	var standard int64
	if ref.Standard != nil {
		standard = int64(*ref.Standard)
	}
	var custom gokeepasslib.UUID
	if ref.Custom != nil {
		custom = gokeepasslib.UUID(*ref.Custom)
	}
	return standard, custom
}
