package core

import (
	"context"
	"fmt"

	"github.com/illarion/keevault/internal/demo"
	"github.com/illarion/keevault/internal/exchange"
	"github.com/illarion/keevault/internal/storage"
	"github.com/illarion/keevault/internal/vault"
)

const (
	DemoFileName = demo.FileName
	DemoPassword = demo.Password
)

// LoadDemo loads the bundled KeePass demo vault as a buffer and unlocks
// it with DemoPassword
func (a *App) LoadDemo(ctx context.Context) (int, exchange.Overview, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := vault.Load(storage.NewBuffer(DemoFileName, demo.Vault()), a.codec)
	password := DemoPassword
	if err := s.Unlock(&password, nil); err != nil {
		return 0, exchange.Overview{}, fmt.Errorf("failed to unlock demo vault: %w", err)
	}

	i := a.registry.Add(s)
	a.logger.InfoContext(ctx, "demo vault loaded", "index", i)
	return i, exchange.OverviewOf(s), nil
}
