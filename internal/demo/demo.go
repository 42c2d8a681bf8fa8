// Package demo embeds a small KeePass vault for trying keevault out.
//
// The vault holds three groups (Internet, Banking and Work with a nested
// Servers group), protected passwords, a TOTP entry using the RFC 6238
// test secret, a custom icon and one attachment.
package demo

import (
	"bytes"
	_ "embed"
)

const (
	FileName = "demo.kdbx"
	Password = "demopass"
)

//go:embed demo.kdbx
var vault []byte

// Vault returns a copy of the demo vault file
func Vault() []byte {
	return bytes.Clone(vault)
}
