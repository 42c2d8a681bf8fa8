package domain

import (
	"bytes"

	"github.com/illarion/keevault/internal/crypto"
)

// ValueKind identifies the variant held by a Value
type ValueKind int

const (
	KindBytes ValueKind = iota
	KindUnprotected
	KindProtected
)

func (k ValueKind) String() string {
	switch k {
	case KindBytes:
		return "Bytes"
	case KindUnprotected:
		return "Unprotected"
	case KindProtected:
		return "Protected"
	default:
		return "Unknown"
	}
}

// Value is an entry field: raw bytes, plain text, or a protected secret.
// The zero Value is an empty Bytes value.
type Value struct {
	kind   ValueKind
	raw    []byte
	text   string
	secret *crypto.Secret
}

// BytesValue copies b into a Bytes value
func BytesValue(b []byte) Value {
	return Value{kind: KindBytes, raw: append([]byte(nil), b...)}
}

// TextValue returns an Unprotected value
func TextValue(s string) Value {
	return Value{kind: KindUnprotected, text: s}
}

// ProtectedValue wraps a secret. The value takes ownership of s.
func ProtectedValue(s *crypto.Secret) Value {
	return Value{kind: KindProtected, secret: s}
}

// ProtectedString is ProtectedValue for string input
func ProtectedString(s string) Value {
	return ProtectedValue(crypto.NewSecretString(s))
}

// Kind returns the variant
func (v Value) Kind() ValueKind {
	return v.kind
}

// Raw returns a copy of a Bytes value, or nil for other variants
func (v Value) Raw() []byte {
	if v.kind != KindBytes {
		return nil
	}
	return append([]byte(nil), v.raw...)
}

// Text returns an Unprotected value's text. Protected values never
// answer here.
func (v Value) Text() (string, bool) {
	if v.kind != KindUnprotected {
		return "", false
	}
	return v.text, true
}

// Secret returns the secret of a Protected value, or nil
func (v Value) Secret() *crypto.Secret {
	if v.kind != KindProtected {
		return nil
	}
	return v.secret
}

// Equal reports whether both values hold the same variant and content.
// Secrets are compared in constant time.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	case KindUnprotected:
		return v.text == o.text
	default:
		return v.secret.Equal(o.secret)
	}
}

// Clone returns a deep copy
func (v Value) Clone() Value {
	switch v.kind {
	case KindBytes:
		return BytesValue(v.raw)
	case KindProtected:
		if v.secret == nil {
			return v
		}
		return ProtectedValue(v.secret.Clone())
	default:
		return v
	}
}

func (v Value) destroy() {
	if v.kind == KindProtected {
		v.secret.Destroy()
	}
}
