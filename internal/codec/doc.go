// Package codec reads and writes vault files.
//
// Native is the keevault file format:
//   - 4-byte magic "KEEV"
//   - 2-byte big-endian format version (currently 1)
//   - 4-byte big-endian header length
//   - JSON header: KDF algorithm, salt and cost parameters (unencrypted)
//   - AES-256-GCM ciphertext of the JSON payload (meta + group tree)
//
// The whole prefix (magic through header) is authenticated as GCM
// additional data, so tampering with the KDF parameters fails the same way
// a wrong password does. Every Encode draws a fresh salt and nonce.
//
// Auto dispatches between formats by file signature, so KeePass files
// and keevault files open through the same session code.
//
// Callers treat every format as an opaque byte-stream transform keyed by a
// crypto.CompositeKey: Decode yields a domain.Database, Encode writes one.
package codec
