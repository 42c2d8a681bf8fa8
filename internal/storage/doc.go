// Package storage provides the byte-level storage backends a vault
// session reads from and writes to, plus a small BBolt database that
// remembers recently opened vault files.
//
// Two backends implement Backend:
//   - Buffer: the vault lives in memory; saved bytes are handed back to
//     the host through SendSaved
//   - File: the vault lives on disk; saves are written to a temporary
//     file and renamed over the target on Close
//
// History is unencrypted and only stores paths, display names and
// timestamps. It never sees vault contents.
package storage
