// Package keyring remembers vault passwords in the OS keyring, keyed by
// the vault file's absolute path.
package keyring

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

const serviceName = "keevault"

// ErrNotFound is returned when no password is stored for a vault
var ErrNotFound = errors.New("no password stored for this vault")

func account(vaultPath string) (string, error) {
	abs, err := filepath.Abs(vaultPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve vault path: %w", err)
	}
	return abs, nil
}

// SavePassword stores a vault password in the OS keyring
func SavePassword(vaultPath, password string) error {
	acct, err := account(vaultPath)
	if err != nil {
		return err
	}
	return keyring.Set(serviceName, acct, password)
}

// GetPassword retrieves a vault password from the OS keyring
func GetPassword(vaultPath string) (string, error) {
	acct, err := account(vaultPath)
	if err != nil {
		return "", err
	}
	password, err := keyring.Get(serviceName, acct)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return password, err
}

// DeletePassword removes a vault password from the OS keyring
func DeletePassword(vaultPath string) error {
	acct, err := account(vaultPath)
	if err != nil {
		return err
	}
	if err := keyring.Delete(serviceName, acct); errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return nil
}

// HasPassword checks if a password is stored for a vault
func HasPassword(vaultPath string) bool {
	_, err := GetPassword(vaultPath)
	return err == nil
}
