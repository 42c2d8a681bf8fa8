// Package domain defines the vault tree model and the error taxonomy
// shared by every keevault layer.
package domain

import (
	"github.com/google/uuid"

	"github.com/illarion/keevault/internal/crypto"
)

// Standard KeePass field names
const (
	FieldTitle    = "Title"
	FieldUserName = "UserName"
	FieldPassword = "Password"
	FieldURL      = "URL"
	FieldNotes    = "Notes"
	FieldOTP      = "otp"
)

// Database is a parsed vault
type Database struct {
	Config Config
	Meta   Meta
	Root   *Group
}

// Config holds the format settings the vault was read with.
// Format names the file format a save writes; an empty Format selects
// the default. The KDF cost applies to keevault files and is reused on
// save with a fresh salt.
type Config struct {
	Format string
	KDF    crypto.KDF
}

// Meta is vault-level metadata
type Meta struct {
	Name        string
	CustomIcons []CustomIcon
}

// CustomIcon is a PNG image addressed by uuid
type CustomIcon struct {
	UUID uuid.UUID
	Data []byte
}

// IconRef points at a custom icon or a standard icon index.
// Custom takes precedence when both are set.
type IconRef struct {
	Custom   *uuid.UUID
	Standard *int
}

// StandardIcon returns an IconRef for a catalog index
func StandardIcon(index int) IconRef {
	return IconRef{Standard: &index}
}

// CustomIconRef returns an IconRef for a custom icon
func CustomIconRef(id uuid.UUID) IconRef {
	return IconRef{Custom: &id}
}

// Node is a child of a group: *Group or *Entry
type Node interface {
	NodeUUID() uuid.UUID
	node()
}

// Group is a folder node
type Group struct {
	UUID     uuid.UUID
	Name     string
	Icon     IconRef
	Children []Node
}

// NewGroup creates an empty group with a random uuid
func NewGroup(name string) *Group {
	return &Group{UUID: uuid.New(), Name: name, Icon: StandardIcon(48)}
}

func (g *Group) NodeUUID() uuid.UUID { return g.UUID }
func (g *Group) node()               {}

// Add appends children in order
func (g *Group) Add(children ...Node) *Group {
	g.Children = append(g.Children, children...)
	return g
}

// Entries returns the direct entry children
func (g *Group) Entries() []*Entry {
	var out []*Entry
	for _, c := range g.Children {
		if e, ok := c.(*Entry); ok {
			out = append(out, e)
		}
	}
	return out
}

// Groups returns the direct group children
func (g *Group) Groups() []*Group {
	var out []*Group
	for _, c := range g.Children {
		if sub, ok := c.(*Group); ok {
			out = append(out, sub)
		}
	}
	return out
}

// Entry is a leaf node holding named fields
type Entry struct {
	UUID   uuid.UUID
	Icon   IconRef
	Fields map[string]Value
}

// NewEntry creates an entry with a random uuid and the given title
func NewEntry(title string) *Entry {
	return &Entry{
		UUID:   uuid.New(),
		Icon:   StandardIcon(0),
		Fields: map[string]Value{FieldTitle: TextValue(title)},
	}
}

func (e *Entry) NodeUUID() uuid.UUID { return e.UUID }
func (e *Entry) node()               {}

// Get returns a field
func (e *Entry) Get(name string) (Value, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

// Set inserts or overwrites a field, destroying a replaced secret
func (e *Entry) Set(name string, v Value) {
	if e.Fields == nil {
		e.Fields = make(map[string]Value)
	}
	if old, ok := e.Fields[name]; ok {
		old.destroy()
	}
	e.Fields[name] = v
}

// Title returns the Title field when it is unprotected
func (e *Entry) Title() (string, bool) { return e.text(FieldTitle) }

// UserName returns the UserName field when it is unprotected
func (e *Entry) UserName() (string, bool) { return e.text(FieldUserName) }

// URL returns the URL field when it is unprotected
func (e *Entry) URL() (string, bool) { return e.text(FieldURL) }

func (e *Entry) text(name string) (string, bool) {
	v, ok := e.Fields[name]
	if !ok {
		return "", false
	}
	return v.Text()
}

// Name returns the configured vault name, falling back to the root group's name
func (d *Database) Name() string {
	if d.Meta.Name != "" {
		return d.Meta.Name
	}
	if d.Root != nil {
		return d.Root.Name
	}
	return ""
}

// CustomIcon looks up a custom icon by uuid
func (d *Database) CustomIcon(id uuid.UUID) (CustomIcon, bool) {
	for _, icon := range d.Meta.CustomIcons {
		if icon.UUID == id {
			return icon, true
		}
	}
	return CustomIcon{}, false
}

// Clone returns a deep copy, including independent secrets
func (d *Database) Clone() *Database {
	out := &Database{Config: d.Config, Meta: Meta{Name: d.Meta.Name}}
	out.Config.KDF.Salt = append([]byte(nil), d.Config.KDF.Salt...)
	for _, icon := range d.Meta.CustomIcons {
		out.Meta.CustomIcons = append(out.Meta.CustomIcons, CustomIcon{
			UUID: icon.UUID,
			Data: append([]byte(nil), icon.Data...),
		})
	}
	if d.Root != nil {
		out.Root = d.Root.clone()
	}
	return out
}

func (g *Group) clone() *Group {
	out := &Group{UUID: g.UUID, Name: g.Name, Icon: g.Icon.clone()}
	out.Children = make([]Node, 0, len(g.Children))
	for _, c := range g.Children {
		switch n := c.(type) {
		case *Group:
			out.Children = append(out.Children, n.clone())
		case *Entry:
			out.Children = append(out.Children, n.clone())
		}
	}
	return out
}

func (e *Entry) clone() *Entry {
	out := &Entry{UUID: e.UUID, Icon: e.Icon.clone(), Fields: make(map[string]Value, len(e.Fields))}
	for k, v := range e.Fields {
		out.Fields[k] = v.Clone()
	}
	return out
}

func (r IconRef) clone() IconRef {
	var out IconRef
	if r.Custom != nil {
		id := *r.Custom
		out.Custom = &id
	}
	if r.Standard != nil {
		i := *r.Standard
		out.Standard = &i
	}
	return out
}

// Destroy zeroes every secret in the tree
func (d *Database) Destroy() {
	if d == nil || d.Root == nil {
		return
	}
	d.Root.destroy()
}

func (g *Group) destroy() {
	for _, c := range g.Children {
		switch n := c.(type) {
		case *Group:
			n.destroy()
		case *Entry:
			for _, v := range n.Fields {
				v.destroy()
			}
		}
	}
}
