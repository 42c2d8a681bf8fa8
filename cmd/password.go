package cmd

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/illarion/keevault/internal/crypto"
	"github.com/illarion/keevault/internal/keyring"
)

// PasswordEnv names the environment variable holding a vault password
const PasswordEnv = "KEEVAULT_PASSWORD"

var errPasswordMismatch = errors.New("passwords do not match")

// ReadPassword reads a password from the terminal without echoing
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	return password, nil
}

// ReadPasswordConfirm reads a password twice and ensures they match
func ReadPasswordConfirm() ([]byte, error) {
	password1, err := ReadPassword("Enter password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password1)

	password2, err := ReadPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password2)

	if !crypto.ConstantTimeCompare(password1, password2) {
		return nil, errPasswordMismatch
	}

	return append([]byte(nil), password1...), nil
}

// GetPasswordFromEnv reads the password from KEEVAULT_PASSWORD
func GetPasswordFromEnv() []byte {
	password := os.Getenv(PasswordEnv)
	if password == "" {
		return nil
	}
	return []byte(password)
}

// GetPassword finds the password of an existing vault: the environment
// first, then the OS keyring, then a prompt. An empty prompt answer with
// a keyfile means the vault has no password component.
func GetPassword(vaultPath string, haveKeyfile bool) (*string, error) {
	if password := GetPasswordFromEnv(); password != nil {
		s := string(password)
		return &s, nil
	}

	if password, err := keyring.GetPassword(vaultPath); err == nil {
		return &password, nil
	}

	password, err := ReadPassword("Enter password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password)
	if len(password) == 0 && haveKeyfile {
		return nil, nil
	}
	s := string(password)
	return &s, nil
}

// GetPasswordForInit finds the password of a new vault: the environment
// first, then a confirmed prompt
func GetPasswordForInit(haveKeyfile bool) (*string, error) {
	if password := GetPasswordFromEnv(); password != nil {
		s := string(password)
		return &s, nil
	}

	password, err := ReadPasswordConfirm()
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password)
	if len(password) == 0 && haveKeyfile {
		return nil, nil
	}
	s := string(password)
	return &s, nil
}
