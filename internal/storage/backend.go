package storage

import "io"

// Backend is where a vault's encrypted bytes live.
//
// Open must not mutate the source. Save returns a sink whose Close
// commits the write. SendSaved returns the persisted bytes for backends
// that have no durable artifact of their own, and nil otherwise.
type Backend interface {
	Open() (io.ReadCloser, error)
	Save() (io.WriteCloser, error)
	SendSaved() []byte
	Name() string
}
