package codec

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/illarion/keevault/internal/crypto"
	"github.com/illarion/keevault/internal/domain"
)

var errMalformedNode = errors.New("malformed tree node")

// payload is the encrypted part of a vault file
type payload struct {
	Meta wireMeta   `json:"meta"`
	Root *wireGroup `json:"root"`
}

type wireMeta struct {
	Name        string     `json:"name,omitempty"`
	CustomIcons []wireIcon `json:"custom_icons,omitempty"`
}

type wireIcon struct {
	UUID uuid.UUID `json:"uuid"`
	Data []byte    `json:"data"`
}

type wireIconRef struct {
	Custom   *uuid.UUID `json:"custom,omitempty"`
	Standard *int       `json:"standard,omitempty"`
}

type wireGroup struct {
	UUID     uuid.UUID   `json:"uuid"`
	Name     string      `json:"name"`
	Icon     wireIconRef `json:"icon"`
	Children []wireNode  `json:"children,omitempty"`
}

// wireNode holds exactly one of Group or Entry
type wireNode struct {
	Group *wireGroup `json:"group,omitempty"`
	Entry *wireEntry `json:"entry,omitempty"`
}

type wireEntry struct {
	UUID   uuid.UUID            `json:"uuid"`
	Icon   wireIconRef          `json:"icon"`
	Fields map[string]wireValue `json:"fields,omitempty"`
}

// wireValue kinds: "bytes" (Data), "text" (Text), "protected" (Data)
type wireValue struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
	Data []byte `json:"data,omitempty"`
}

func fromDomain(db *domain.Database) payload {
	p := payload{Meta: wireMeta{Name: db.Meta.Name}}
	for _, icon := range db.Meta.CustomIcons {
		p.Meta.CustomIcons = append(p.Meta.CustomIcons, wireIcon{UUID: icon.UUID, Data: icon.Data})
	}
	if db.Root != nil {
		p.Root = groupToWire(db.Root)
	}
	return p
}

func groupToWire(g *domain.Group) *wireGroup {
	out := &wireGroup{UUID: g.UUID, Name: g.Name, Icon: wireIconRef(g.Icon)}
	for _, child := range g.Children {
		switch n := child.(type) {
		case *domain.Group:
			out.Children = append(out.Children, wireNode{Group: groupToWire(n)})
		case *domain.Entry:
			out.Children = append(out.Children, wireNode{Entry: entryToWire(n)})
		}
	}
	return out
}

func entryToWire(e *domain.Entry) *wireEntry {
	out := &wireEntry{UUID: e.UUID, Icon: wireIconRef(e.Icon), Fields: make(map[string]wireValue, len(e.Fields))}
	for name, v := range e.Fields {
		switch v.Kind() {
		case domain.KindBytes:
			out.Fields[name] = wireValue{Kind: "bytes", Data: v.Raw()}
		case domain.KindUnprotected:
			text, _ := v.Text()
			out.Fields[name] = wireValue{Kind: "text", Text: text}
		case domain.KindProtected:
			out.Fields[name] = wireValue{Kind: "protected", Data: v.Secret().Reveal()}
		}
	}
	return out
}

func (p payload) toDomain() (*domain.Database, error) {
	if p.Root == nil {
		return nil, fmt.Errorf("%w: missing root group", errMalformedNode)
	}

	db := &domain.Database{Meta: domain.Meta{Name: p.Meta.Name}}
	for _, icon := range p.Meta.CustomIcons {
		db.Meta.CustomIcons = append(db.Meta.CustomIcons, domain.CustomIcon{UUID: icon.UUID, Data: icon.Data})
	}

	root, err := p.Root.toDomain()
	if err != nil {
		db.Destroy()
		return nil, err
	}
	db.Root = root
	return db, nil
}

func (g *wireGroup) toDomain() (*domain.Group, error) {
	out := &domain.Group{UUID: g.UUID, Name: g.Name, Icon: domain.IconRef(g.Icon)}
	for _, child := range g.Children {
		switch {
		case child.Group != nil && child.Entry == nil:
			sub, err := child.Group.toDomain()
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, sub)
		case child.Entry != nil && child.Group == nil:
			e, err := child.Entry.toDomain()
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, e)
		default:
			return nil, fmt.Errorf("%w in group %s", errMalformedNode, g.UUID)
		}
	}
	return out, nil
}

func (e *wireEntry) toDomain() (*domain.Entry, error) {
	out := &domain.Entry{UUID: e.UUID, Icon: domain.IconRef(e.Icon), Fields: make(map[string]domain.Value, len(e.Fields))}
	for name, v := range e.Fields {
		switch v.Kind {
		case "bytes":
			out.Fields[name] = domain.BytesValue(v.Data)
		case "text":
			out.Fields[name] = domain.TextValue(v.Text)
		case "protected":
			out.Fields[name] = domain.ProtectedValue(crypto.NewSecret(v.Data))
			crypto.ClearBytes(v.Data)
		default:
			return nil, fmt.Errorf("%w: field %q of entry %s has kind %q", errMalformedNode, name, e.UUID, v.Kind)
		}
	}
	return out, nil
}

// clearSecrets zeroes revealed protected values after marshaling
func (g *wireGroup) clearSecrets() {
	if g == nil {
		return
	}
	for _, child := range g.Children {
		if child.Group != nil {
			child.Group.clearSecrets()
			continue
		}
		for _, v := range child.Entry.Fields {
			if v.Kind == "protected" {
				crypto.ClearBytes(v.Data)
			}
		}
	}
}
