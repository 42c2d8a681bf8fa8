// Package core provides the keevault application state and the commands
// exposed to the HTTP server and the CLI.
//
// An App owns an ordered registry of vault sessions. Commands address a
// session by its position and every command holds the App mutex for its
// whole duration, so commands are serialized. Positions shift when a
// session is closed.
//
// Commands cover:
//   - Loading vaults from a buffer, from a file in the vault directory,
//     or the built-in demo vault
//   - Unlocking, locking, saving and closing sessions
//   - Listing entries, revealing protected fields, editing fields and
//     group names, computing one-time codes
//   - Creating new vaults and listing recently opened ones
//
// Results are exchange views; protected cleartext is returned only by
// RevealProtected.
package core
