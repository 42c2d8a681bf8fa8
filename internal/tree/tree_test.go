package tree

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/illarion/keevault/internal/domain"
)

// fixture builds:
//
//	root
//	├── mail (entry)
//	├── work (group)
//	│   ├── vpn (entry)
//	│   └── deep (group)
//	│       └── ssh (entry)
//	└── home (group)
func fixture() (root *domain.Group, mail, vpn, ssh *domain.Entry, work, deep, home *domain.Group) {
	mail = domain.NewEntry("Mail")
	vpn = domain.NewEntry("VPN")
	ssh = domain.NewEntry("SSH")
	deep = domain.NewGroup("Deep").Add(ssh)
	work = domain.NewGroup("Work").Add(vpn, deep)
	home = domain.NewGroup("Home")
	root = domain.NewGroup("Root").Add(mail, work, home)
	return
}

func TestWalkPreOrder(t *testing.T) {
	root, mail, vpn, ssh, work, deep, home := fixture()

	var got []uuid.UUID
	Walk(root, func(n domain.Node, _ Path) bool {
		got = append(got, n.NodeUUID())
		return true
	})

	want := []uuid.UUID{root.UUID, mail.UUID, work.UUID, vpn.UUID, deep.UUID, ssh.UUID, home.UUID}
	if len(got) != len(want) {
		t.Fatalf("visited %d nodes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("visit %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestWalkStops(t *testing.T) {
	root, _, _, _, _, _, _ := fixture()
	count := 0
	Walk(root, func(domain.Node, Path) bool {
		count++
		return count < 3
	})
	if count != 3 {
		t.Errorf("walk continued after stop: %d visits", count)
	}
}

func TestIndexUnknownAndCrossKind(t *testing.T) {
	root, _, _, _, _, deep, _ := fixture()
	ix := BuildIndex(root)

	if _, ok := ix.EntryPath(deep.UUID); ok {
		t.Error("a group uuid must not resolve as an entry")
	}
	for i := 0; i < 50; i++ {
		id := uuid.New()
		_, g := ix.GroupPath(id)
		_, e := ix.EntryPath(id)
		if g || e {
			t.Fatal("random uuid resolved")
		}
	}
	if _, ok := BuildIndex(nil).GroupPath(root.UUID); ok {
		t.Error("nil root should index nothing")
	}
}

func TestDuplicateUUIDFirstMatch(t *testing.T) {
	first := domain.NewEntry("first")
	second := domain.NewEntry("second")
	second.UUID = first.UUID

	// The duplicate lives in a later subtree
	root := domain.NewGroup("root").Add(first, domain.NewGroup("g").Add(second))

	ix := BuildIndex(root)
	p, ok := ix.EntryPath(first.UUID)
	if !ok || EntryAt(root, p) != first {
		t.Errorf("index should keep the first occurrence, got path %v", p)
	}
}

func TestIndexPaths(t *testing.T) {
	root, mail, vpn, ssh, work, deep, home := fixture()
	ix := BuildIndex(root)

	for _, e := range []*domain.Entry{mail, vpn, ssh} {
		p, ok := ix.EntryPath(e.UUID)
		if !ok || EntryAt(root, p) != e {
			t.Errorf("entry %s not reachable through index", e.UUID)
		}
	}
	for _, g := range []*domain.Group{root, work, deep, home} {
		p, ok := ix.GroupPath(g.UUID)
		if !ok || GroupAt(root, p) != g {
			t.Errorf("group %s not reachable through index", g.UUID)
		}
	}

	if p, _ := ix.GroupPath(root.UUID); len(p) != 0 {
		t.Errorf("root path = %v, want empty", p)
	}
	if p, _ := ix.EntryPath(ssh.UUID); len(p) != 3 || p[0] != 1 || p[1] != 1 || p[2] != 0 {
		t.Errorf("ssh path = %v, want [1 1 0]", p)
	}
	if _, ok := ix.EntryPath(uuid.New()); ok {
		t.Error("unknown uuid should not be indexed")
	}
}

func TestNodeAtInvalid(t *testing.T) {
	root, _, _, _, _, _, _ := fixture()
	for _, p := range []Path{{9}, {-1}, {0, 0}, {1, 5}} {
		if _, ok := NodeAt(root, p); ok {
			t.Errorf("NodeAt(%v) should fail", p)
		}
	}
	if GroupAt(root, Path{0}) != nil {
		t.Error("GroupAt on an entry path should be nil")
	}
	if EntryAt(root, Path{1}) != nil {
		t.Error("EntryAt on a group path should be nil")
	}
}

func TestRenderHidesProtected(t *testing.T) {
	root, mail, _, _, _, _, _ := fixture()
	mail.Set(domain.FieldPassword, domain.ProtectedString("hunter2"))
	mail.Set(domain.FieldUserName, domain.TextValue("alice"))
	mail.Set("blob", domain.BytesValue([]byte{1, 2, 3}))

	out := Render(root)
	if strings.Contains(out, "hunter2") {
		t.Error("render leaked a protected value")
	}
	for _, want := range []string{"[Root]", "Password: <protected>", `UserName: "alice"`, "blob: <3 bytes>", "    [Deep]"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestDiff(t *testing.T) {
	root, _, _, _, work, _, _ := fixture()
	before := Render(root)

	if Diff("vault", before, before) != "" {
		t.Error("identical renders should produce no diff")
	}

	work.Name = "Office"
	diff := Diff("vault", before, Render(root))

	if !strings.HasPrefix(diff, "--- a/vault\n+++ b/vault\n") {
		t.Errorf("missing headers:\n%s", diff)
	}
	if !strings.Contains(diff, "-  [Work]") || !strings.Contains(diff, "+  [Office]") {
		t.Errorf("rename not shown:\n%s", diff)
	}
}

func TestRenderChangesMarksSecrets(t *testing.T) {
	root, mail, _, ssh, _, _, _ := fixture()
	mail.Set(domain.FieldPassword, domain.ProtectedString("old-secret"))
	ssh.Set("key", domain.BytesValue([]byte{1, 2, 3}))
	baseline := (&domain.Database{Root: root}).Clone().Root

	if got := RenderChanges(root, baseline); got != Render(root) {
		t.Errorf("unchanged tree should render like Render:\n%s", got)
	}
	if Diff("vault", Render(baseline), RenderChanges(root, baseline)) != "" {
		t.Error("unchanged tree should give no diff")
	}

	// Same length on purpose: only the content differs
	mail.Set(domain.FieldPassword, domain.ProtectedString("new-secret"))
	ssh.Set("key", domain.BytesValue([]byte{3, 2, 1}))

	after := RenderChanges(root, baseline)
	if strings.Contains(after, "new-secret") || strings.Contains(after, "old-secret") {
		t.Fatal("render leaked a protected value")
	}
	diff := Diff("vault", Render(baseline), after)
	for _, want := range []string{
		"-      Password: <protected>\n",
		"+      Password: <protected, changed>\n",
		"-          key: <3 bytes>\n",
		"+          key: <3 bytes, changed>\n",
	} {
		if !strings.Contains(diff, want) {
			t.Errorf("diff missing %q:\n%s", want, diff)
		}
	}

	// Restoring the original secret clears the marker
	mail.Set(domain.FieldPassword, domain.ProtectedString("old-secret"))
	if strings.Contains(RenderChanges(root, baseline), "Password: <protected, changed>") {
		t.Error("restored secret should not be marked")
	}
}

func TestRenderChangesWithoutBaseline(t *testing.T) {
	root, mail, _, _, _, _, _ := fixture()
	mail.Set(domain.FieldPassword, domain.ProtectedString("x"))
	if RenderChanges(root, nil) != Render(root) {
		t.Error("no baseline should render like Render")
	}
}
