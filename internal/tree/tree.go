// Package tree implements uuid-addressed search over a vault's group and
// entry tree.
//
// Traversal is depth-first pre-order following each group's child order,
// so when a malformed vault repeats a uuid the first node visited wins.
// Mutation goes through a Path (child positions from the root) taken
// from an Index built once per unlock.
package tree

import (
	"slices"

	"github.com/google/uuid"

	"github.com/illarion/keevault/internal/domain"
)

// Path addresses a node by child positions starting at the root group.
// The empty path is the root itself.
type Path []int

// Walk visits root and every descendant in pre-order. Returning false
// from fn stops the walk. The path passed to fn is only valid during the
// call.
func Walk(root *domain.Group, fn func(n domain.Node, p Path) bool) {
	if root == nil {
		return
	}
	walk(root, make(Path, 0, 8), fn)
}

func walk(g *domain.Group, p Path, fn func(domain.Node, Path) bool) bool {
	if !fn(g, p) {
		return false
	}
	for i, child := range g.Children {
		cp := append(p, i)
		switch n := child.(type) {
		case *domain.Group:
			if !walk(n, cp, fn) {
				return false
			}
		case *domain.Entry:
			if !fn(n, cp) {
				return false
			}
		}
	}
	return true
}

// Index maps node uuids to their paths. Groups and entries are indexed
// separately so a group and an entry sharing a uuid both stay reachable.
type Index struct {
	groups  map[uuid.UUID]Path
	entries map[uuid.UUID]Path
}

// BuildIndex indexes every node under root, keeping the first path seen
// for a repeated uuid
func BuildIndex(root *domain.Group) *Index {
	ix := &Index{groups: make(map[uuid.UUID]Path), entries: make(map[uuid.UUID]Path)}
	Walk(root, func(n domain.Node, p Path) bool {
		m := ix.entries
		if _, ok := n.(*domain.Group); ok {
			m = ix.groups
		}
		if _, seen := m[n.NodeUUID()]; !seen {
			m[n.NodeUUID()] = slices.Clone(p)
		}
		return true
	})
	return ix
}

// GroupPath returns the path of the group with uuid id
func (ix *Index) GroupPath(id uuid.UUID) (Path, bool) {
	p, ok := ix.groups[id]
	return p, ok
}

// EntryPath returns the path of the entry with uuid id
func (ix *Index) EntryPath(id uuid.UUID) (Path, bool) {
	p, ok := ix.entries[id]
	return p, ok
}

// NodeAt follows p from root
func NodeAt(root *domain.Group, p Path) (domain.Node, bool) {
	if root == nil {
		return nil, false
	}
	var cur domain.Node = root
	for _, i := range p {
		g, ok := cur.(*domain.Group)
		if !ok || i < 0 || i >= len(g.Children) {
			return nil, false
		}
		cur = g.Children[i]
	}
	return cur, true
}

// GroupAt returns the group at p, or nil
func GroupAt(root *domain.Group, p Path) *domain.Group {
	n, _ := NodeAt(root, p)
	g, _ := n.(*domain.Group)
	return g
}

// EntryAt returns the entry at p, or nil
func EntryAt(root *domain.Group, p Path) *domain.Entry {
	n, _ := NodeAt(root, p)
	e, _ := n.(*domain.Entry)
	return e
}
