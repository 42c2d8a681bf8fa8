package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/illarion/keevault/internal/codec"
	"github.com/illarion/keevault/internal/config"
	"github.com/illarion/keevault/internal/crypto"
	"github.com/illarion/keevault/internal/domain"
	"github.com/illarion/keevault/internal/exchange"
	"github.com/illarion/keevault/internal/kdbx"
	"github.com/illarion/keevault/internal/otp"
	"github.com/illarion/keevault/internal/security"
	"github.com/illarion/keevault/internal/storage"
	"github.com/illarion/keevault/internal/vault"
)

const (
	DirPermSecure = 0700 // Directory: owner rwx only
)

var (
	ErrNoVaultDir    = fmt.Errorf("%w: no vault directory configured", domain.ErrInvalidInput)
	ErrAlreadyExists = fmt.Errorf("%w: vault file already exists", domain.ErrInvalidInput)
)

// Options configures an App. Every field is optional: without VaultDir
// only buffer vaults can be loaded, without HistoryPath nothing is
// remembered. Without Codec vaults are read in either format and new
// vaults are written as Format, KeePass by default.
type Options struct {
	VaultDir    string
	HistoryPath string
	HistorySize int
	Format      string
	KDF         config.KDFConfig
	Codec       vault.Codec
	Logger      *slog.Logger
}

// App holds the open vault sessions
type App struct {
	mu       sync.Mutex
	registry *vault.Registry
	codec    vault.Codec
	format   string
	paths    *security.PathValidator
	history  *storage.History
	kdf      config.KDFConfig
	logger   *slog.Logger
}

// New creates an App. The vault directory is created when missing.
func New(opts Options) (*App, error) {
	a := &App{
		registry: vault.NewRegistry(),
		codec:    opts.Codec,
		format:   opts.Format,
		kdf:      opts.KDF,
		logger:   opts.Logger,
	}
	if a.codec == nil {
		a.codec = codec.NewAuto(kdbx.Format{}, codec.Native{})
	}
	if auto, ok := a.codec.(*codec.Auto); ok && a.format != "" {
		if _, found := auto.Lookup(a.format); !found {
			return nil, fmt.Errorf("%w: %w: %s", domain.ErrInvalidInput, codec.ErrUnknownFormat, a.format)
		}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	if opts.VaultDir != "" {
		if err := os.MkdirAll(opts.VaultDir, DirPermSecure); err != nil {
			return nil, fmt.Errorf("failed to create vault directory: %w", err)
		}
		paths, err := security.New(opts.VaultDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize path validator: %w", err)
		}
		a.paths = paths
	}

	if opts.HistoryPath != "" {
		history, err := storage.OpenHistory(opts.HistoryPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		if opts.HistorySize > 0 {
			history.SetLimit(opts.HistorySize)
		}
		a.history = history
	}

	return a, nil
}

// Close locks every session and releases the vault directory and the
// history database
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range a.registry.All() {
		s.Lock()
	}

	var errs []error
	if a.paths != nil {
		errs = append(errs, a.paths.Close())
		a.paths = nil
	}
	if a.history != nil {
		errs = append(errs, a.history.Close())
		a.history = nil
	}
	return errors.Join(errs...)
}

// VaultDir returns the absolute vault directory, or "" when none is
// configured
func (a *App) VaultDir() string {
	if a.paths == nil {
		return ""
	}
	return a.paths.Dir()
}

// ListVaults returns an overview of every session, in position order
func (a *App) ListVaults(ctx context.Context) []exchange.Overview {
	a.mu.Lock()
	defer a.mu.Unlock()

	sessions := a.registry.All()
	out := make([]exchange.Overview, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, exchange.OverviewOf(s))
	}
	return out
}

// LoadVaultBuffer adds a locked session over an in-memory copy of data
func (a *App) LoadVaultBuffer(ctx context.Context, name string, data []byte) (int, exchange.Overview) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := vault.Load(storage.NewBuffer(name, data), a.codec)
	i := a.registry.Add(s)
	a.logger.InfoContext(ctx, "vault loaded", "index", i, "file", name, "size", len(data))
	return i, exchange.OverviewOf(s)
}

// LoadVaultPath adds a locked session over a file in the vault directory
func (a *App) LoadVaultPath(ctx context.Context, path string) (int, exchange.Overview, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.paths == nil {
		return 0, exchange.Overview{}, ErrNoVaultDir
	}
	file, abs, err := a.paths.ExistingFile(path)
	if err != nil {
		return 0, exchange.Overview{}, pathError(path, err)
	}

	s := vault.Load(file, a.codec)
	i := a.registry.Add(s)
	a.logger.InfoContext(ctx, "vault loaded", "index", i, "path", abs)
	a.remember(ctx, abs, s.FileName())
	return i, exchange.OverviewOf(s), nil
}

// UnlockVault unlocks session i. A nil password or keyfile means that
// component is not used.
func (a *App) UnlockVault(ctx context.Context, i int, password *string, keyfile []byte) (exchange.Overview, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.registry.Get(i)
	if err != nil {
		return exchange.Overview{}, err
	}
	if err := s.Unlock(password, keyfile); err != nil {
		a.logger.WarnContext(ctx, "unlock failed", "index", i, "file", s.FileName(), "error", err)
		return exchange.Overview{}, err
	}
	a.logger.InfoContext(ctx, "vault unlocked", "index", i, "file", s.FileName())
	return exchange.OverviewOf(s), nil
}

// LockVault locks session i
func (a *App) LockVault(ctx context.Context, i int) (exchange.Overview, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.registry.Get(i)
	if err != nil {
		return exchange.Overview{}, err
	}
	s.Lock()
	a.logger.InfoContext(ctx, "vault locked", "index", i, "file", s.FileName())
	return exchange.OverviewOf(s), nil
}

// SaveVault writes session i back to its backend. Buffer backends return
// the saved bytes; file backends return nil.
func (a *App) SaveVault(ctx context.Context, i int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.registry.Get(i)
	if err != nil {
		return nil, err
	}
	return a.save(ctx, s)
}

// SaveVaultAs points session i at a file in the vault directory and saves
// it there. On failure the session keeps its previous backend.
func (a *App) SaveVaultAs(ctx context.Context, i int, path string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.registry.Get(i)
	if err != nil {
		return nil, err
	}
	if !s.IsUnlocked() {
		return nil, domain.ErrState
	}
	if a.paths == nil {
		return nil, ErrNoVaultDir
	}
	if err := a.paths.MkdirAllInRoot(path, DirPermSecure); err != nil {
		return nil, pathError(path, err)
	}
	file, abs, err := a.paths.File(path)
	if err != nil {
		return nil, pathError(path, err)
	}

	previous := s.Backend()
	s.SetBackend(file)
	out, err := a.save(ctx, s)
	if err != nil {
		s.SetBackend(previous)
		return nil, err
	}
	a.remember(ctx, abs, s.FileName())
	return out, nil
}

func (a *App) save(ctx context.Context, s *vault.Session) ([]byte, error) {
	out, err := s.Save()
	if err != nil {
		a.logger.ErrorContext(ctx, "save failed", "file", s.FileName(), "error", err)
		return nil, err
	}
	a.logger.InfoContext(ctx, "vault saved", "file", s.FileName())
	return out, nil
}

// CloseVault locks session i and removes it. Later sessions move down one
// position.
func (a *App) CloseVault(ctx context.Context, i int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.registry.Remove(i); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "vault closed", "index", i)
	return nil
}

// ListEntries returns the direct entries of a group. An unknown group
// yields an empty list.
func (a *App) ListEntries(ctx context.Context, i int, groupID string) ([]exchange.Entry, error) {
	id, err := parseUUID(groupID)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.registry.Get(i)
	if err != nil {
		return nil, err
	}
	db, err := s.Database()
	if err != nil {
		return nil, err
	}
	g, err := s.Group(id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return []exchange.Entry{}, nil
	}
	return exchange.EntriesOf(db, g), nil
}

// RevealProtected returns the cleartext of a protected field
func (a *App) RevealProtected(ctx context.Context, i int, entryID, field string) (string, error) {
	id, err := parseUUID(entryID)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.registry.Get(i)
	if err != nil {
		return "", err
	}
	text, err := s.Reveal(id, field)
	if err != nil {
		return "", err
	}
	a.logger.InfoContext(ctx, "field revealed", "index", i, "entry", id, "field", field)
	return text, nil
}

// SetGroupName renames a group
func (a *App) SetGroupName(ctx context.Context, i int, groupID, name string) error {
	id, err := parseUUID(groupID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.registry.Get(i)
	if err != nil {
		return err
	}
	return s.UpdateGroup(id, func(g *domain.Group) error {
		g.Name = name
		return nil
	})
}

// SetField inserts or replaces an entry field with exactly the variant
// described by v
func (a *App) SetField(ctx context.Context, i int, entryID, field string, v exchange.ValueSet) error {
	id, err := parseUUID(entryID)
	if err != nil {
		return err
	}
	value, err := v.ToValue()
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.registry.Get(i)
	if err != nil {
		return err
	}
	return s.SetField(id, field, value)
}

// GetOTP computes the one-time code of an entry at unix time t
func (a *App) GetOTP(ctx context.Context, i int, entryID string, t uint64) (exchange.OTPResponse, error) {
	id, err := parseUUID(entryID)
	if err != nil {
		return exchange.OTPResponse{}, err
	}
	if err := otp.CheckTime(t); err != nil {
		return exchange.OTPResponse{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.registry.Get(i)
	if err != nil {
		return exchange.OTPResponse{}, err
	}
	v, err := s.OTP(id, t)
	if err != nil {
		return exchange.OTPResponse{}, err
	}
	return exchange.OTPOf(v), nil
}

// VaultChanges returns the unsaved changes of session i: a unified diff
// and whether anything was edited since the last load or save
func (a *App) VaultChanges(ctx context.Context, i int) (exchange.Changes, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.registry.Get(i)
	if err != nil {
		return exchange.Changes{}, err
	}
	return exchange.ChangesOf(s)
}

// CreateVault writes a new empty vault to a file in the vault directory
// and adds it as an unlocked session
func (a *App) CreateVault(ctx context.Context, path, name string, password *string, keyfile []byte) (int, exchange.Overview, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.paths == nil {
		return 0, exchange.Overview{}, ErrNoVaultDir
	}
	if _, err := a.paths.StatInRoot(path); err == nil {
		return 0, exchange.Overview{}, fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return 0, exchange.Overview{}, pathError(path, err)
	}
	if err := a.paths.MkdirAllInRoot(path, DirPermSecure); err != nil {
		return 0, exchange.Overview{}, pathError(path, err)
	}
	file, abs, err := a.paths.File(path)
	if err != nil {
		return 0, exchange.Overview{}, pathError(path, err)
	}

	kdf, err := newKDF(a.kdf)
	if err != nil {
		return 0, exchange.Overview{}, err
	}
	if name == "" {
		name = file.Name()
	}
	db := codec.NewDatabase(name, kdf)
	db.Config.Format = a.format
	s, err := vault.Create(file, a.codec, db, password, keyfile)
	if err != nil {
		return 0, exchange.Overview{}, err
	}
	if _, err := a.save(ctx, s); err != nil {
		s.Lock()
		return 0, exchange.Overview{}, err
	}

	i := a.registry.Add(s)
	a.logger.InfoContext(ctx, "vault created", "index", i, "path", abs, "format", a.format, "kdf", kdf.Algorithm)
	a.remember(ctx, abs, s.FileName())
	return i, exchange.OverviewOf(s), nil
}

// RecentVaults lists recently opened vault files, newest first
func (a *App) RecentVaults(ctx context.Context) ([]storage.RecentVault, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.history == nil {
		return []storage.RecentVault{}, nil
	}
	recent, err := a.history.List()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	if recent == nil {
		recent = []storage.RecentVault{}
	}
	return recent, nil
}

// ForgetRecent drops a vault file from the history. Relative paths are
// resolved against the vault directory; unknown paths are not an error.
func (a *App) ForgetRecent(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, security.ErrEmptyPath)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !filepath.IsAbs(path) && a.paths != nil {
		path = filepath.Join(a.paths.Dir(), path)
	}
	path = filepath.Clean(path)
	if a.history == nil {
		return nil
	}
	if err := a.history.Forget(path); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	a.logger.InfoContext(ctx, "recent vault forgotten", "path", path)
	return nil
}

// remember records a vault file in the history. History failures are
// logged and otherwise ignored.
func (a *App) remember(ctx context.Context, path, name string) {
	if a.history == nil {
		return
	}
	if err := a.history.Record(path, name); err != nil {
		a.logger.WarnContext(ctx, "failed to record recent vault", "path", path, "error", err)
	}
}

func newKDF(cfg config.KDFConfig) (*crypto.KDF, error) {
	switch cfg.Algorithm {
	case "", crypto.KDFArgon2id:
		return crypto.NewKDF()
	case crypto.KDFPBKDF2:
		return crypto.NewPBKDF2(cfg.Iterations)
	default:
		return nil, fmt.Errorf("%w: %s", crypto.ErrUnsupportedKDF, cfg.Algorithm)
	}
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not a uuid", domain.ErrInvalidInput, s)
	}
	return id, nil
}

// pathError classifies a vault directory failure: a missing file is
// ErrNotFound, a rejected path ErrInvalidInput, anything else ErrIO
func pathError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	case errors.Is(err, security.ErrPathEscapes),
		errors.Is(err, security.ErrEmptyPath),
		errors.Is(err, security.ErrNotAFile):
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
}
