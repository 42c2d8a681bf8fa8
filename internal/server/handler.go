// Package server exposes core.App over HTTP as JSON.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/illarion/keevault/internal/core"
	"github.com/illarion/keevault/internal/domain"
	"github.com/illarion/keevault/internal/exchange"
	"github.com/illarion/keevault/internal/otp"
)

// MaxVaultSize bounds uploaded vault buffers
const MaxVaultSize = 64 << 20

// VaultHandler serves the vault commands
type VaultHandler struct {
	app *core.App
}

// NewVaultHandler creates a handler over app
func NewVaultHandler(app *core.App) *VaultHandler {
	return &VaultHandler{app: app}
}

// LoadedResponse is returned by every command that adds a vault
type LoadedResponse struct {
	Index int `json:"index"`
	exchange.Overview
}

// UnlockRequest carries the credentials of an unlock. Keyfile is base64
// in JSON.
type UnlockRequest struct {
	Password *string `json:"password"`
	Keyfile  []byte  `json:"keyfile"`
}

// PathRequest names a file in the vault directory
type PathRequest struct {
	Path string `json:"path"`
}

// CreateRequest describes a new vault file
type CreateRequest struct {
	Path     string  `json:"path"`
	Name     string  `json:"name"`
	Password *string `json:"password"`
	Keyfile  []byte  `json:"keyfile"`
}

// RenameRequest carries a new group name
type RenameRequest struct {
	Name string `json:"name"`
}

// RevealResponse carries protected cleartext
type RevealResponse struct {
	Value string `json:"value"`
}

func vaultIndex(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, fmt.Errorf("%w: vault index must be an integer", domain.ErrInvalidInput)
	}
	return i, nil
}

// pathParam returns a decoded route parameter. chi matches on RawPath
// when the request has one, and then the parameter is still escaped.
func pathParam(r *http.Request, name string) (string, error) {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v, nil
	}
	v, err := url.PathUnescape(v)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, name, err)
	}
	return v, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// ListVaults lists every loaded vault
func (h *VaultHandler) ListVaults(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.app.ListVaults(r.Context()))
}

// LoadDemo loads and unlocks the demo vault
func (h *VaultHandler) LoadDemo(w http.ResponseWriter, r *http.Request) {
	i, ov, err := h.app.LoadDemo(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, LoadedResponse{Index: i, Overview: ov})
}

// LoadBuffer loads the raw request body as a vault named by the name
// query parameter
func (h *VaultHandler) LoadBuffer(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		Error(w, http.StatusBadRequest, "INVALID_INPUT", "name query parameter is required")
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxVaultSize))
	if err != nil {
		Error(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", err.Error())
		return
	}

	i, ov := h.app.LoadVaultBuffer(r.Context(), name, data)
	JSON(w, http.StatusCreated, LoadedResponse{Index: i, Overview: ov})
}

// LoadPath loads a vault file from the vault directory
func (h *VaultHandler) LoadPath(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	i, ov, err := h.app.LoadVaultPath(r.Context(), req.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, LoadedResponse{Index: i, Overview: ov})
}

// Create writes a new vault file and loads it unlocked
func (h *VaultHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	i, ov, err := h.app.CreateVault(r.Context(), req.Path, req.Name, req.Password, req.Keyfile)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, LoadedResponse{Index: i, Overview: ov})
}

// Recent lists recently opened vault files
func (h *VaultHandler) Recent(w http.ResponseWriter, r *http.Request) {
	recent, err := h.app.RecentVaults(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, recent)
}

// ForgetRecent drops the file named by the path query parameter from the
// recent list
func (h *VaultHandler) ForgetRecent(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		Error(w, http.StatusBadRequest, "INVALID_INPUT", "path query parameter is required")
		return
	}
	if err := h.app.ForgetRecent(r.Context(), path); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unlock unlocks a vault
func (h *VaultHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	i, err := vaultIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req UnlockRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ov, err := h.app.UnlockVault(r.Context(), i, req.Password, req.Keyfile)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, ov)
}

// Lock locks a vault
func (h *VaultHandler) Lock(w http.ResponseWriter, r *http.Request) {
	i, err := vaultIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ov, err := h.app.LockVault(r.Context(), i)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, ov)
}

// Save writes a vault back to its backend. Buffer vaults answer with the
// encoded bytes.
func (h *VaultHandler) Save(w http.ResponseWriter, r *http.Request) {
	i, err := vaultIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, err := h.app.SaveVault(r.Context(), i)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSaved(w, data)
}

// SaveAs writes a vault to a new file in the vault directory
func (h *VaultHandler) SaveAs(w http.ResponseWriter, r *http.Request) {
	i, err := vaultIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req PathRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	data, err := h.app.SaveVaultAs(r.Context(), i, req.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSaved(w, data)
}

func writeSaved(w http.ResponseWriter, data []byte) {
	if data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Close removes a vault. Later vaults move down one position.
func (h *VaultHandler) Close(w http.ResponseWriter, r *http.Request) {
	i, err := vaultIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.app.CloseVault(r.Context(), i); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEntries lists the entries directly inside a group
func (h *VaultHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	i, err := vaultIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.app.ListEntries(r.Context(), i, chi.URLParam(r, "group"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, entries)
}

// RenameGroup sets a group name
func (h *VaultHandler) RenameGroup(w http.ResponseWriter, r *http.Request) {
	i, err := vaultIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req RenameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.app.SetGroupName(r.Context(), i, chi.URLParam(r, "group"), req.Name); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reveal returns the cleartext of a protected field
func (h *VaultHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	i, err := vaultIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	field, err := pathParam(r, "field")
	if err != nil {
		writeError(w, r, err)
		return
	}

	value, err := h.app.RevealProtected(r.Context(), i, chi.URLParam(r, "entry"), field)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	JSON(w, http.StatusOK, RevealResponse{Value: value})
}

// SetField inserts or replaces an entry field
func (h *VaultHandler) SetField(w http.ResponseWriter, r *http.Request) {
	i, err := vaultIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	field, err := pathParam(r, "field")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req exchange.ValueSet
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.app.SetField(r.Context(), i, chi.URLParam(r, "entry"), field, req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OTP computes the one-time code of an entry, at the unix time given by
// the time query parameter or now
func (h *VaultHandler) OTP(w http.ResponseWriter, r *http.Request) {
	i, err := vaultIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t := uint64(time.Now().Unix())
	if s := r.URL.Query().Get("time"); s != "" {
		t, err = strconv.ParseUint(s, 10, 64)
		if err != nil || t > otp.MaxTime {
			Error(w, http.StatusBadRequest, "INVALID_INPUT", "time must be a unix timestamp")
			return
		}
	}

	code, err := h.app.GetOTP(r.Context(), i, chi.URLParam(r, "entry"), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, code)
}

// Changes returns the unsaved changes of a vault
func (h *VaultHandler) Changes(w http.ResponseWriter, r *http.Request) {
	i, err := vaultIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	changes, err := h.app.VaultChanges(r.Context(), i)
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, changes)
}
