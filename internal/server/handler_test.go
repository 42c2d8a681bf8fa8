package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/illarion/keevault/internal/config"
	"github.com/illarion/keevault/internal/core"
	"github.com/illarion/keevault/internal/crypto"
	"github.com/illarion/keevault/internal/domain"
	"github.com/illarion/keevault/internal/exchange"
)

type loaded struct {
	Index int             `json:"index"`
	State string          `json:"state"`
	Name  string          `json:"name"`
	Root  *exchange.Group `json:"root"`
}

func setupRouter(t *testing.T) (http.Handler, *core.App) {
	t.Helper()
	dir := t.TempDir()
	app, err := core.New(core.Options{
		VaultDir:    filepath.Join(dir, "vaults"),
		HistoryPath: filepath.Join(dir, "history.db"),
		KDF:         config.KDFConfig{Algorithm: crypto.KDFPBKDF2, Iterations: 1000},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("core.New failed: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return NewRouter(NewVaultHandler(app), nil), app
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		r = bytes.NewReader(b)
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("want status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	var resp ErrorResponse
	decode(t, rec, &resp)
	if resp.Code != code {
		t.Errorf("want code %s, got %s (%s)", code, resp.Code, resp.Message)
	}
}

func loadDemo(t *testing.T, h http.Handler) loaded {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/vaults/demo", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("want status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp loaded
	decode(t, rec, &resp)
	return resp
}

func groupNamed(t *testing.T, g *exchange.Group, name string) exchange.Group {
	t.Helper()
	for _, c := range g.Children {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("group %q not found", name)
	return exchange.Group{}
}

func TestDemoOverHTTP(t *testing.T) {
	h, _ := setupRouter(t)

	demo := loadDemo(t, h)
	if demo.Index != 0 || demo.State != exchange.StateUnlocked || demo.Name != "Demo" {
		t.Fatalf("unexpected demo response %+v", demo)
	}

	rec := do(t, h, http.MethodGet, "/api/vaults", nil)
	var list []exchange.Overview
	decode(t, rec, &list)
	if len(list) != 1 || list[0].FileName != core.DemoFileName {
		t.Fatalf("unexpected list %+v", list)
	}

	internet := groupNamed(t, demo.Root, "Internet")
	rec = do(t, h, http.MethodGet, fmt.Sprintf("/api/vaults/0/groups/%s/entries", internet.UUID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want status 200, got %d", rec.Code)
	}
	raw := rec.Body.String()
	if strings.Contains(raw, "correct horse") {
		t.Fatal("entry listing leaked a protected value")
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		t.Fatal(err)
	}
	var mailID string
	for _, e := range entries {
		if e["name"] == "Mail" {
			mailID = e["uuid"].(string)
			pw := e["fields"].(map[string]any)["Password"].(map[string]any)
			if pw["type"] != "Protected" {
				t.Errorf("want Protected password, got %v", pw)
			}
			if _, ok := pw["value"]; ok {
				t.Error("protected value must not carry a value")
			}
		}
	}
	if mailID == "" {
		t.Fatal("Mail entry not listed")
	}

	rec = do(t, h, http.MethodGet, "/api/vaults/0/entries/"+mailID+"/fields/Password", nil)
	var reveal RevealResponse
	decode(t, rec, &reveal)
	if reveal.Value != "correct horse battery staple" {
		t.Errorf("unexpected reveal %q", reveal.Value)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("revealed secrets must not be cached")
	}

	rec = do(t, h, http.MethodGet, "/api/vaults/0/entries/"+mailID+"/otp?time=59", nil)
	var code exchange.OTPResponse
	decode(t, rec, &code)
	if code.Code != "287082" || code.ValidFor != 1 || code.Period != 30 {
		t.Errorf("unexpected otp %+v", code)
	}

	rec = do(t, h, http.MethodPut, "/api/vaults/0/entries/"+mailID+"/fields/Security%20Question",
		`{"type":"Protected","value":"first pet"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("want status 204, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodGet, "/api/vaults/0/entries/"+mailID+"/fields/Security%20Question", nil)
	decode(t, rec, &reveal)
	if reveal.Value != "first pet" {
		t.Errorf("unexpected reveal %q", reveal.Value)
	}

	rec = do(t, h, http.MethodGet, "/api/vaults/0/changes", nil)
	var changes exchange.Changes
	decode(t, rec, &changes)
	if !changes.Modified || !strings.Contains(changes.Diff, "Security Question: <protected>") {
		t.Errorf("changes do not show the new field: %+v", changes)
	}
}

func TestFieldNamesWithEscapes(t *testing.T) {
	h, _ := setupRouter(t)
	demo := loadDemo(t, h)
	internet := groupNamed(t, demo.Root, "Internet")

	rec := do(t, h, http.MethodGet, fmt.Sprintf("/api/vaults/0/groups/%s/entries", internet.UUID), nil)
	var entries []map[string]any
	decode(t, rec, &entries)
	entryURL := fmt.Sprintf("/api/vaults/0/entries/%s/fields/", entries[0]["uuid"])

	tests := []struct {
		name    string
		escaped string
	}{
		{"percent", "100%25"},
		{"space", "Recovery%20Codes"},
		{"slash", "a%2Fb"},
		{"plus", "a+b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value := "value of " + tt.name
			rec := do(t, h, http.MethodPut, entryURL+tt.escaped, map[string]string{"type": "Protected", "value": value})
			if rec.Code != http.StatusNoContent {
				t.Fatalf("want status 204, got %d: %s", rec.Code, rec.Body.String())
			}
			rec = do(t, h, http.MethodGet, entryURL+tt.escaped, nil)
			var reveal RevealResponse
			decode(t, rec, &reveal)
			if reveal.Value != value {
				t.Errorf("reveal = %q, want %q", reveal.Value, value)
			}
		})
	}

	rec = do(t, h, http.MethodGet, "/api/vaults/0/changes", nil)
	var changes exchange.Changes
	decode(t, rec, &changes)
	for _, name := range []string{"100%:", "Recovery Codes:", "a/b:", "a+b:"} {
		if !strings.Contains(changes.Diff, name) {
			t.Errorf("diff is missing field %q:\n%s", name, changes.Diff)
		}
	}
}

func TestForgetRecentOverHTTP(t *testing.T) {
	h, _ := setupRouter(t)
	rec := do(t, h, http.MethodPost, "/api/vaults/create", CreateRequest{Path: "kept.kdbx", Password: &[]string{"pw"}[0]})
	if rec.Code != http.StatusCreated {
		t.Fatalf("want status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var recent []map[string]any
	decode(t, do(t, h, http.MethodGet, "/api/vaults/recent", nil), &recent)
	if len(recent) != 1 {
		t.Fatalf("want one recent vault, got %v", recent)
	}

	rec = do(t, h, http.MethodDelete, "/api/vaults/recent?path="+url.QueryEscape(recent[0]["path"].(string)), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("want status 204, got %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, do(t, h, http.MethodGet, "/api/vaults/recent", nil), &recent)
	if len(recent) != 0 {
		t.Errorf("forgotten vault still listed: %v", recent)
	}
	wantError(t, do(t, h, http.MethodDelete, "/api/vaults/recent", nil), http.StatusBadRequest, "INVALID_INPUT")
}

func TestLockUnlockOverHTTP(t *testing.T) {
	h, _ := setupRouter(t)
	demo := loadDemo(t, h)
	entriesURL := fmt.Sprintf("/api/vaults/0/groups/%s/entries", demo.Root.UUID)

	rec := do(t, h, http.MethodPost, "/api/vaults/0/lock", nil)
	var ov exchange.Overview
	decode(t, rec, &ov)
	if ov.State != exchange.StateLocked || ov.Root != nil {
		t.Fatalf("unexpected lock response %+v", ov)
	}

	wantError(t, do(t, h, http.MethodGet, entriesURL, nil), http.StatusConflict, "VAULT_LOCKED")
	wantError(t, do(t, h, http.MethodPost, "/api/vaults/0/unlock", `{"password":"nope"}`), http.StatusUnauthorized, "AUTH_FAILED")
	wantError(t, do(t, h, http.MethodPost, "/api/vaults/0/unlock", `{}`), http.StatusBadRequest, "INVALID_INPUT")

	rec = do(t, h, http.MethodPost, "/api/vaults/0/unlock", UnlockRequest{Password: &[]string{core.DemoPassword}[0]})
	if rec.Code != http.StatusOK {
		t.Fatalf("want status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, entriesURL, nil); rec.Code != http.StatusOK {
		t.Errorf("want status 200 after unlock, got %d", rec.Code)
	}
}

func TestSaveAndLoadBuffer(t *testing.T) {
	h, _ := setupRouter(t)
	loadDemo(t, h)

	rec := do(t, h, http.MethodPost, "/api/vaults/0/save", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/octet-stream" {
		t.Fatalf("unexpected save response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	data := rec.Body.Bytes()

	wantError(t, do(t, h, http.MethodPost, "/api/vaults/buffer", data), http.StatusBadRequest, "INVALID_INPUT")

	rec = do(t, h, http.MethodPost, "/api/vaults/buffer?name=copy.kdbx", data)
	var resp loaded
	decode(t, rec, &resp)
	if resp.Index != 1 || resp.State != exchange.StateLocked {
		t.Fatalf("unexpected buffer response %+v", resp)
	}

	rec = do(t, h, http.MethodPost, "/api/vaults/1/unlock", map[string]string{"password": core.DemoPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("copy should unlock: %d %s", rec.Code, rec.Body.String())
	}

	if rec := do(t, h, http.MethodDelete, "/api/vaults/0", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("want status 204, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/vaults", nil)
	var list []exchange.Overview
	decode(t, rec, &list)
	if len(list) != 1 || list[0].FileName != "copy.kdbx" {
		t.Errorf("closing should shift positions, got %+v", list)
	}
}

func TestCreateAndSaveAs(t *testing.T) {
	h, _ := setupRouter(t)

	rec := do(t, h, http.MethodPost, "/api/vaults/create", CreateRequest{Path: "new.kdbx", Name: "New", Password: &[]string{"pw"}[0]})
	if rec.Code != http.StatusCreated {
		t.Fatalf("want status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	wantError(t, do(t, h, http.MethodPost, "/api/vaults/create", CreateRequest{Path: "new.kdbx", Password: &[]string{"pw"}[0]}),
		http.StatusBadRequest, "INVALID_INPUT")

	rec = do(t, h, http.MethodPost, "/api/vaults/0/save", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("file save should answer 204, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/vaults/0/save-as", PathRequest{Path: "copies/new.kdbx"})
	if rec.Code != http.StatusNoContent {
		t.Errorf("save-as should answer 204, got %d: %s", rec.Code, rec.Body.String())
	}
	wantError(t, do(t, h, http.MethodPost, "/api/vaults/0/save-as", PathRequest{Path: "../out.kdbx"}), http.StatusBadRequest, "INVALID_INPUT")

	rec = do(t, h, http.MethodPost, "/api/vaults/open", PathRequest{Path: "copies/new.kdbx"})
	var resp loaded
	decode(t, rec, &resp)
	if resp.Index != 1 || resp.State != exchange.StateLocked {
		t.Errorf("unexpected open response %+v", resp)
	}
	wantError(t, do(t, h, http.MethodPost, "/api/vaults/open", PathRequest{Path: "missing.kdbx"}), http.StatusNotFound, "NOT_FOUND")
	wantError(t, do(t, h, http.MethodPost, "/api/vaults/open", "{"), http.StatusBadRequest, "INVALID_INPUT")
}

func TestRequestErrors(t *testing.T) {
	h, _ := setupRouter(t)
	loadDemo(t, h)

	tests := []struct {
		name   string
		method string
		target string
		body   any
		status int
		code   string
	}{
		{"non-numeric index", http.MethodPost, "/api/vaults/abc/lock", nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"index out of range", http.MethodPost, "/api/vaults/7/lock", nil, http.StatusNotFound, "NOT_FOUND"},
		{"malformed uuid", http.MethodGet, "/api/vaults/0/groups/xyz/entries", nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown entry", http.MethodGet, "/api/vaults/0/entries/00000000-0000-0000-0000-000000000001/otp", nil, http.StatusNotFound, "NOT_FOUND"},
		{"bad otp time", http.MethodGet, "/api/vaults/0/entries/00000000-0000-0000-0000-000000000001/otp?time=soon", nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"otp time past int64", http.MethodGet, "/api/vaults/0/entries/00000000-0000-0000-0000-000000000001/otp?time=9223372036854775808", nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown value type", http.MethodPut, "/api/vaults/0/entries/00000000-0000-0000-0000-000000000001/fields/x", `{"type":"Weird"}`, http.StatusBadRequest, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantError(t, do(t, h, tt.method, tt.target, tt.body), tt.status, tt.code)
		})
	}
}

func TestLockHandlerWithRouteContext(t *testing.T) {
	_, app := setupRouter(t)
	app.LoadVaultBuffer(context.Background(), "a.kdbx", nil)
	h := NewVaultHandler(app)

	req := httptest.NewRequest(http.MethodPost, "/api/vaults/0/lock", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("index", "0")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h.Lock(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("want status 200, got %d", rec.Code)
	}
	var resp map[string]any
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["file_name"] != "a.kdbx" || resp["state"] != "Locked" {
		t.Errorf("unexpected response %v", resp)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrIndexOutOfRange, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", domain.ErrState), http.StatusConflict},
		{domain.ErrAuth, http.StatusUnauthorized},
		{domain.ErrType, http.StatusUnprocessableEntity},
		{domain.ErrEncoding, http.StatusUnprocessableEntity},
		{domain.ErrConfig, http.StatusUnprocessableEntity},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrIO, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := statusOf(tt.err); got != tt.status {
			t.Errorf("statusOf(%v) = %d, want %d", tt.err, got, tt.status)
		}
	}
}
