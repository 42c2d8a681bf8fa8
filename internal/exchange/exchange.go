// Package exchange converts session state into the JSON views handed
// across the process boundary. Protected cleartext never appears in any
// of these types.
package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/illarion/keevault/internal/domain"
	"github.com/illarion/keevault/internal/icon"
	"github.com/illarion/keevault/internal/otp"
	"github.com/illarion/keevault/internal/vault"
)

// Overview states
const (
	StateLocked   = "Locked"
	StateUnlocked = "Unlocked"
)

// Value types, shared by Value and ValueSet
const (
	TypeBytes       = "Bytes"
	TypeUnprotected = "Unprotected"
	TypeProtected   = "Protected"
)

// Overview describes an open vault. Root is only set while unlocked.
type Overview struct {
	State    string `json:"state"`
	FileName string `json:"file_name"`
	Name     string `json:"name"`
	Root     *Group `json:"root,omitempty"`
}

// Group is a group and its subgroups. Entries are listed separately.
type Group struct {
	Name     string    `json:"name"`
	UUID     uuid.UUID `json:"uuid"`
	Children []Group   `json:"children"`
	Icon     *string   `json:"icon,omitempty"`
}

// Entry is an entry with protected fields redacted
type Entry struct {
	Name     *string          `json:"name,omitempty"`
	UUID     uuid.UUID        `json:"uuid"`
	UserName *string          `json:"user_name,omitempty"`
	URL      *string          `json:"url,omitempty"`
	Fields   map[string]Value `json:"fields"`
	Icon     *string          `json:"icon,omitempty"`
}

// Value is a field as shown to the boundary: bytes, plain text, or a
// placeholder for a protected value
type Value struct {
	Type  string
	Bytes []byte
	Text  string
}

// OTPResponse is a one-time code; durations are in seconds
type OTPResponse struct {
	Code     string `json:"code"`
	ValidFor int64  `json:"valid_for"`
	Period   int64  `json:"period"`
}

// Changes is the unsaved state of a session. Modified can be true while
// Diff is empty, for instance after an edit that restored a value.
type Changes struct {
	Diff     string `json:"diff"`
	Modified bool   `json:"modified"`
}

// ChangesOf projects the unsaved state of an unlocked session
func ChangesOf(s *vault.Session) (Changes, error) {
	modified, err := s.Modified()
	if err != nil {
		return Changes{}, err
	}
	diff, err := s.Changes()
	if err != nil {
		return Changes{}, err
	}
	return Changes{Diff: diff, Modified: modified}, nil
}

// OverviewOf projects a session
func OverviewOf(s *vault.Session) Overview {
	ov := Overview{State: StateLocked, FileName: s.FileName(), Name: s.Name()}
	if db, err := s.Database(); err == nil {
		ov.State = StateUnlocked
		root := GroupOf(db, db.Root)
		ov.Root = &root
	}
	return ov
}

// GroupOf projects g and its subgroups recursively
func GroupOf(db *domain.Database, g *domain.Group) Group {
	out := Group{Name: g.Name, UUID: g.UUID, Children: []Group{}, Icon: iconOf(db, g.Icon)}
	for _, sub := range g.Groups() {
		out.Children = append(out.Children, GroupOf(db, sub))
	}
	return out
}

// EntryOf projects e. Name, user name and URL are only set when the
// underlying field is unprotected text.
func EntryOf(db *domain.Database, e *domain.Entry) Entry {
	out := Entry{UUID: e.UUID, Fields: make(map[string]Value, len(e.Fields)), Icon: iconOf(db, e.Icon)}
	if s, ok := e.Title(); ok {
		out.Name = &s
	}
	if s, ok := e.UserName(); ok {
		out.UserName = &s
	}
	if s, ok := e.URL(); ok {
		out.URL = &s
	}
	for name, v := range e.Fields {
		out.Fields[name] = ValueOf(v)
	}
	return out
}

// EntriesOf projects the direct entry children of g, in order
func EntriesOf(db *domain.Database, g *domain.Group) []Entry {
	out := []Entry{}
	for _, e := range g.Entries() {
		out = append(out, EntryOf(db, e))
	}
	return out
}

// ValueOf redacts a field value
func ValueOf(v domain.Value) Value {
	switch v.Kind() {
	case domain.KindBytes:
		return Value{Type: TypeBytes, Bytes: v.Raw()}
	case domain.KindUnprotected:
		text, _ := v.Text()
		return Value{Type: TypeUnprotected, Text: text}
	default:
		return Value{Type: TypeProtected}
	}
}

// OTPOf converts an engine result
func OTPOf(v otp.Value) OTPResponse {
	return OTPResponse{
		Code:     v.Code,
		ValidFor: int64(v.ValidFor.Seconds()),
		Period:   int64(v.Period.Seconds()),
	}
}

func iconOf(db *domain.Database, ref domain.IconRef) *string {
	s, ok := icon.ResolveRef(db, ref)
	if !ok {
		return nil
	}
	return &s
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Type {
	case TypeBytes:
		return json.Marshal(struct {
			Type  string `json:"type"`
			Value []byte `json:"value"`
		}{v.Type, append([]byte{}, v.Bytes...)})
	case TypeUnprotected:
		return json.Marshal(struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		}{v.Type, v.Text})
	case TypeProtected:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{v.Type})
	default:
		return nil, fmt.Errorf("unknown value type %q", v.Type)
	}
}

// ValueSet is a field value supplied by the caller. Protected values
// carry their cleartext, which becomes a protected secret on conversion.
type ValueSet struct {
	Type  string
	Bytes []byte
	Text  string
}

func (v *ValueSet) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	v.Type = raw.Type
	switch raw.Type {
	case TypeBytes:
		b, err := decodeBytes(raw.Value)
		if err != nil {
			return err
		}
		v.Bytes = b
	case TypeUnprotected, TypeProtected:
		if len(raw.Value) == 0 {
			return fmt.Errorf("%s value requires a string", raw.Type)
		}
		if err := json.Unmarshal(raw.Value, &v.Text); err != nil {
			return fmt.Errorf("%s value must be a string: %w", raw.Type, err)
		}
	default:
		return fmt.Errorf("unknown value type %q", raw.Type)
	}
	return nil
}

// decodeBytes accepts a base64 string or an array of byte values
func decodeBytes(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []byte{}, nil
	}
	if raw[0] == '[' {
		var nums []int
		if err := json.Unmarshal(raw, &nums); err != nil {
			return nil, fmt.Errorf("bytes value: %w", err)
		}
		out := make([]byte, 0, len(nums))
		for _, n := range nums {
			if n < 0 || n > 255 {
				return nil, fmt.Errorf("bytes value: %d out of range", n)
			}
			out = append(out, uint8(n))
		}
		return out, nil
	}
	var b []byte
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("bytes value: %w", err)
	}
	return b, nil
}

// ToValue converts to a field value of exactly the requested variant
func (v ValueSet) ToValue() (domain.Value, error) {
	switch v.Type {
	case TypeBytes:
		return domain.BytesValue(v.Bytes), nil
	case TypeUnprotected:
		return domain.TextValue(v.Text), nil
	case TypeProtected:
		return domain.ProtectedString(v.Text), nil
	default:
		return domain.Value{}, fmt.Errorf("%w: unknown value type %q", domain.ErrInvalidInput, v.Type)
	}
}
