package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readAll(t *testing.T, b Backend) []byte {
	t.Helper()
	r, err := b.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	return data
}

func writeAll(t *testing.T, b Backend, data []byte) {
	t.Helper()
	w, err := b.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestBufferOpenDoesNotAlias(t *testing.T) {
	src := []byte("vault bytes")
	b := NewBuffer("demo.kdbx", src)

	// Mutating the caller's slice must not reach the backend
	src[0] = 'X'

	data := readAll(t, b)
	if string(data) != "vault bytes" {
		t.Fatalf("Open returned %q", data)
	}

	data[0] = 'Y'
	if got := readAll(t, b); string(got) != "vault bytes" {
		t.Errorf("read cursor aliased the held buffer: %q", got)
	}
}

func TestBufferSaveReplacesContents(t *testing.T) {
	b := NewBuffer("demo.kdbx", []byte("a much longer original payload"))

	writeAll(t, b, []byte("new"))

	if got := b.SendSaved(); string(got) != "new" {
		t.Errorf("SendSaved = %q, want %q", got, "new")
	}
	if got := readAll(t, b); string(got) != "new" {
		t.Errorf("Open after save = %q", got)
	}

	sent := b.SendSaved()
	sent[0] = 'N'
	if got := b.SendSaved(); string(got) != "new" {
		t.Error("SendSaved should return a copy")
	}
	if b.Name() != "demo.kdbx" {
		t.Errorf("Name = %q", b.Name())
	}
}

func TestBufferSendSavedEmpty(t *testing.T) {
	b := NewBuffer("empty", nil)
	if got := b.SendSaved(); got == nil || len(got) != 0 {
		t.Errorf("SendSaved on empty buffer should be empty, non-nil: %v", got)
	}
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "personal.kdbx")
	if err := os.WriteFile(path, []byte("old contents that are longer"), 0600); err != nil {
		t.Fatal(err)
	}

	f := NewFile(path)
	if f.Name() != "personal.kdbx" {
		t.Errorf("Name = %q", f.Name())
	}
	if got := readAll(t, f); string(got) != "old contents that are longer" {
		t.Errorf("Open = %q", got)
	}

	writeAll(t, f, []byte("new"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("file contents = %q, want truncated %q", data, "new")
	}
	if f.SendSaved() != nil {
		t.Error("SendSaved should be nil for files")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestFileSaveNotCommittedUntilClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v.kdbx")
	if err := os.WriteFile(path, []byte("original"), 0600); err != nil {
		t.Fatal(err)
	}

	f := NewFile(path)
	w, err := f.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	w.Write([]byte("partial"))

	data, _ := os.ReadFile(path)
	if string(data) != "original" {
		t.Errorf("target changed before Close: %q", data)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "partial" {
		t.Errorf("target = %q after Close", data)
	}
}

func TestFileCreatesMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.kdbx")
	f := NewFile(path)

	if _, err := f.Open(); err == nil {
		t.Error("Open of a missing file should fail")
	}
	writeAll(t, f, []byte("fresh"))
	if got := readAll(t, f); string(got) != "fresh" {
		t.Errorf("got %q", got)
	}
}

func TestFileInRoot(t *testing.T) {
	dir := t.TempDir()
	root, err := os.OpenRoot(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer root.Close()

	f := NewFileInRoot(root, "inner.kdbx")
	writeAll(t, f, []byte("rooted"))

	if f.Path() != filepath.Join(dir, "inner.kdbx") {
		t.Errorf("Path = %q", f.Path())
	}
	data, err := os.ReadFile(filepath.Join(dir, "inner.kdbx"))
	if err != nil || !bytes.Equal(data, []byte("rooted")) {
		t.Errorf("rooted write failed: %q %v", data, err)
	}

	escaping := NewFileInRoot(root, "../outside.kdbx")
	if _, err := escaping.Save(); err == nil {
		t.Error("writes outside the root should fail")
	}
}

func TestHistoryRecordAndList(t *testing.T) {
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	defer h.Close()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for _, p := range []string{"/a.kdbx", "/b.kdbx", "/c.kdbx"} {
		if err := h.Record(p, filepath.Base(p)); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	// Re-opening moves a vault to the front
	if err := h.Record("/a.kdbx", "a.kdbx"); err != nil {
		t.Fatal(err)
	}

	list, err := h.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"/a.kdbx", "/c.kdbx", "/b.kdbx"}
	if len(list) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(list))
	}
	for i, p := range want {
		if list[i].Path != p {
			t.Errorf("list[%d] = %s, want %s", i, list[i].Path, p)
		}
	}

	if err := h.Forget("/c.kdbx"); err != nil {
		t.Fatal(err)
	}
	if err := h.Forget("/never-seen.kdbx"); err != nil {
		t.Errorf("Forget of unknown path should succeed: %v", err)
	}
	list, _ = h.List()
	if len(list) != 2 {
		t.Errorf("Expected 2 entries after Forget, got %d", len(list))
	}
}

func TestHistoryLimit(t *testing.T) {
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	h.SetLimit(2)

	clock := time.Unix(1000, 0)
	h.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	for _, p := range []string{"/1", "/2", "/3"} {
		if err := h.Record(p, p); err != nil {
			t.Fatal(err)
		}
	}

	list, _ := h.List()
	if len(list) != 2 || list[0].Path != "/3" || list[1].Path != "/2" {
		t.Errorf("unexpected list after trimming: %+v", list)
	}
}

func TestHistoryPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	h, err := OpenHistory(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Record("/vaults/work.kdbx", "work.kdbx"); err != nil {
		t.Fatal(err)
	}
	h.Close()

	h2, err := OpenHistory(path)
	if err != nil {
		t.Fatalf("Failed to reopen history: %v", err)
	}
	defer h2.Close()

	list, err := h2.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "work.kdbx" {
		t.Errorf("history not persisted: %+v", list)
	}
}
