// Package crypto provides the key handling and cryptographic primitives
// used by the keevault vault format.
//
// Encryption uses AES-256-GCM with:
//   - 32-byte key derived from the composite key via the vault's KDF
//   - 12-byte random nonce per encryption operation
//   - The vault header bound as additional authenticated data
//
// Key derivation supports:
//   - argon2id (default): 64 MiB memory, 3 passes, 4 lanes
//   - PBKDF2-HMAC-SHA256: 210,000 iterations (OWASP minimum recommendation)
//
// A composite key combines a password and/or a key file the way KeePass
// does: each component is hashed with SHA-256 and the concatenation is
// hashed again.
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call Encryptor.Destroy(), CompositeKey.Destroy() and Secret.Destroy()
//     when the material is no longer needed
package crypto
