package exchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/illarion/keevault/internal/codec"
	"github.com/illarion/keevault/internal/crypto"
	"github.com/illarion/keevault/internal/domain"
	"github.com/illarion/keevault/internal/otp"
	"github.com/illarion/keevault/internal/storage"
	"github.com/illarion/keevault/internal/vault"
)

func testSession(t *testing.T) (*vault.Session, *domain.Entry) {
	t.Helper()
	kdf, err := crypto.NewPBKDF2(1000)
	if err != nil {
		t.Fatal(err)
	}
	db := codec.NewDatabase("Demo", kdf)
	entry := domain.NewEntry("Mail")
	entry.Set(domain.FieldUserName, domain.TextValue("alice"))
	entry.Set(domain.FieldURL, domain.TextValue("https://mail.example.com"))
	entry.Set(domain.FieldPassword, domain.ProtectedString("hunter2"))
	db.Root.Add(entry, domain.NewGroup("Work").Add(domain.NewGroup("Deep")), domain.NewEntry("Second"))

	key, _ := crypto.NewCompositeKey([]byte("demopass"), nil)
	var buf bytes.Buffer
	if err := (codec.Native{}).Encode(&buf, db, key); err != nil {
		t.Fatal(err)
	}

	s := vault.Load(storage.NewBuffer("demo.kdbx", buf.Bytes()), codec.Native{})
	return s, entry
}

func TestOverviewLocked(t *testing.T) {
	s, _ := testSession(t)
	data, err := json.Marshal(OverviewOf(s))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"state":"Locked","file_name":"demo.kdbx","name":"demo.kdbx"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestOverviewUnlocked(t *testing.T) {
	s, _ := testSession(t)
	pw := "demopass"
	if err := s.Unlock(&pw, nil); err != nil {
		t.Fatal(err)
	}

	ov := OverviewOf(s)
	if ov.State != StateUnlocked || ov.Name != "Demo" || ov.FileName != "demo.kdbx" {
		t.Errorf("unexpected overview header: %+v", ov)
	}
	if ov.Root == nil || ov.Root.Name != "Demo" {
		t.Fatalf("root missing: %+v", ov.Root)
	}
	if len(ov.Root.Children) != 1 || ov.Root.Children[0].Name != "Work" {
		t.Fatalf("root children should be groups only: %+v", ov.Root.Children)
	}
	if len(ov.Root.Children[0].Children) != 1 || ov.Root.Children[0].Children[0].Name != "Deep" {
		t.Error("nested group missing")
	}
	if ov.Root.Icon == nil || *ov.Root.Icon != "mdi-folder" {
		t.Errorf("root icon = %v", ov.Root.Icon)
	}

	data, _ := json.Marshal(ov)
	if !strings.Contains(string(data), `"children":[]`) {
		t.Errorf("leaf groups should carry an empty children list: %s", data)
	}
}

func TestEntriesRedactProtected(t *testing.T) {
	s, entry := testSession(t)
	pw := "demopass"
	s.Unlock(&pw, nil)
	db, _ := s.Database()

	entries := EntriesOf(db, db.Root)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 direct entries, got %d", len(entries))
	}

	e := entries[0]
	if e.UUID != entry.UUID {
		t.Errorf("entry order not kept")
	}
	if e.Name == nil || *e.Name != "Mail" {
		t.Errorf("Name = %v", e.Name)
	}
	if e.UserName == nil || *e.UserName != "alice" {
		t.Errorf("UserName = %v", e.UserName)
	}
	if e.URL == nil || *e.URL != "https://mail.example.com" {
		t.Errorf("URL = %v", e.URL)
	}
	if e.Fields[domain.FieldPassword].Type != TypeProtected {
		t.Errorf("password type = %s", e.Fields[domain.FieldPassword].Type)
	}

	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Fatal("projection leaked protected cleartext")
	}
	if !strings.Contains(string(data), `"Password":{"type":"Protected"}`) {
		t.Errorf("missing protected placeholder: %s", data)
	}
	if !strings.Contains(string(data), `"UserName":{"type":"Unprotected","value":"alice"}`) {
		t.Errorf("missing unprotected value: %s", data)
	}
}

func TestEntryHidesProtectedStandardFields(t *testing.T) {
	e := domain.NewEntry("x")
	e.Set(domain.FieldTitle, domain.ProtectedString("secret title"))
	e.Set(domain.FieldUserName, domain.ProtectedString("secret user"))

	got := EntryOf(nil, e)
	if got.Name != nil || got.UserName != nil || got.URL != nil {
		t.Errorf("protected standard fields must not be projected: %+v", got)
	}
	data, _ := json.Marshal(got)
	if bytes.Contains(data, []byte(`"name"`)) || bytes.Contains(data, []byte("secret")) {
		t.Errorf("unexpected output: %s", data)
	}
}

func TestValueJSON(t *testing.T) {
	tests := []struct {
		value domain.Value
		want  string
	}{
		{domain.BytesValue([]byte{1, 2, 3}), `{"type":"Bytes","value":"AQID"}`},
		{domain.BytesValue(nil), `{"type":"Bytes","value":""}`},
		{domain.TextValue("hi"), `{"type":"Unprotected","value":"hi"}`},
		{domain.ProtectedString("x"), `{"type":"Protected"}`},
	}
	for _, tt := range tests {
		data, err := json.Marshal(ValueOf(tt.value))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != tt.want {
			t.Errorf("got %s, want %s", data, tt.want)
		}
	}
}

func TestValueSet(t *testing.T) {
	tests := []struct {
		input    string
		wantKind domain.ValueKind
		check    func(domain.Value) bool
	}{
		{`{"type":"Bytes","value":"AQID"}`, domain.KindBytes, func(v domain.Value) bool { return bytes.Equal(v.Raw(), []byte{1, 2, 3}) }},
		{`{"type":"Bytes","value":[1,2,255]}`, domain.KindBytes, func(v domain.Value) bool { return bytes.Equal(v.Raw(), []byte{1, 2, 255}) }},
		{`{"type":"Unprotected","value":"plain"}`, domain.KindUnprotected, func(v domain.Value) bool { s, _ := v.Text(); return s == "plain" }},
		{`{"type":"Protected","value":"s3cr3t"}`, domain.KindProtected, func(v domain.Value) bool { return string(v.Secret().Reveal()) == "s3cr3t" }},
	}

	for _, tt := range tests {
		var vs ValueSet
		if err := json.Unmarshal([]byte(tt.input), &vs); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", tt.input, err)
		}
		v, err := vs.ToValue()
		if err != nil {
			t.Fatalf("ToValue failed: %v", err)
		}
		if v.Kind() != tt.wantKind || !tt.check(v) {
			t.Errorf("%s converted wrongly", tt.input)
		}
	}

	for _, bad := range []string{
		`{"type":"Secret","value":"x"}`,
		`{"type":"Protected"}`,
		`{"type":"Unprotected","value":5}`,
		`{"type":"Bytes","value":[256]}`,
		`{"type":"Bytes","value":"%%%"}`,
	} {
		var vs ValueSet
		if err := json.Unmarshal([]byte(bad), &vs); err == nil {
			t.Errorf("Unmarshal(%s) should fail", bad)
		}
	}

	if _, err := (ValueSet{Type: "nope"}).ToValue(); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestOTPOf(t *testing.T) {
	got := OTPOf(otp.Value{Code: "123456", ValidFor: 12 * time.Second, Period: 30 * time.Second})
	data, _ := json.Marshal(got)
	if string(data) != `{"code":"123456","valid_for":12,"period":30}` {
		t.Errorf("got %s", data)
	}
}

func TestGroupIconCustom(t *testing.T) {
	id := uuid.New()
	db := &domain.Database{Meta: domain.Meta{CustomIcons: []domain.CustomIcon{{UUID: id, Data: []byte("png")}}}}
	g := domain.NewGroup("g")
	g.Icon = domain.CustomIconRef(id)

	got := GroupOf(db, g)
	if got.Icon == nil || *got.Icon != "data:image/png;base64,cG5n" {
		t.Errorf("icon = %v", got.Icon)
	}

	g.Icon = domain.IconRef{}
	if GroupOf(db, g).Icon != nil {
		t.Error("missing icon should be omitted")
	}
}
