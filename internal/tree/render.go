package tree

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/illarion/keevault/internal/domain"
)

// Render dumps the tree as indented text, one line per node and field.
// Protected values are shown as a marker and never in cleartext.
func Render(root *domain.Group) string {
	return render(root, nil)
}

// RenderChanges renders root like Render, but a protected or bytes value
// that differs from the same field of the same entry under baseline gets
// a changed marker. Secrets are compared in constant time and never
// printed.
func RenderChanges(root, baseline *domain.Group) string {
	if baseline == nil {
		return render(root, nil)
	}
	ix := BuildIndex(baseline)
	return render(root, func(e *domain.Entry) *domain.Entry {
		p, ok := ix.EntryPath(e.UUID)
		if !ok {
			return nil
		}
		return EntryAt(baseline, p)
	})
}

func render(root *domain.Group, previous func(*domain.Entry) *domain.Entry) string {
	var b strings.Builder
	Walk(root, func(n domain.Node, p Path) bool {
		indent := strings.Repeat("  ", len(p))
		switch node := n.(type) {
		case *domain.Group:
			fmt.Fprintf(&b, "%s[%s] %s\n", indent, node.Name, node.UUID)
		case *domain.Entry:
			fmt.Fprintf(&b, "%s- %s\n", indent, node.UUID)
			var old *domain.Entry
			if previous != nil {
				old = previous(node)
			}
			for _, name := range slices.Sorted(maps.Keys(node.Fields)) {
				v := node.Fields[name]
				fmt.Fprintf(&b, "%s    %s: %s\n", indent, name, renderValue(v, changed(old, name, v)))
			}
		}
		return true
	})
	return b.String()
}

// changed reports whether an opaque value differs from the same field of
// old. Text values are printed in full and need no marker.
func changed(old *domain.Entry, name string, v domain.Value) bool {
	if old == nil || v.Kind() == domain.KindUnprotected {
		return false
	}
	prev, ok := old.Get(name)
	if !ok || prev.Kind() != v.Kind() {
		return false
	}
	return !v.Equal(prev)
}

func renderValue(v domain.Value, changed bool) string {
	var out string
	switch v.Kind() {
	case domain.KindUnprotected:
		text, _ := v.Text()
		return fmt.Sprintf("%q", text)
	case domain.KindProtected:
		out = "<protected"
	default:
		out = fmt.Sprintf("<%d bytes", len(v.Raw()))
	}
	if changed {
		out += ", changed"
	}
	return out + ">"
}

// Diff returns a line diff between two renders, or "" when they match.
// Removed lines start with "-", added lines with "+" and unchanged
// lines with a space.
func Diff(name, before, after string) string {
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()

	// Line-mode diff
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var out strings.Builder
	fmt.Fprintf(&out, "--- a/%s\n", name)
	fmt.Fprintf(&out, "+++ b/%s\n", name)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix + line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteString("\n")
			}
		}
	}
	return out.String()
}
