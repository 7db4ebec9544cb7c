package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/keyservice/internal/core"
	"github.com/edvin/keyservice/internal/keystore"
	"github.com/edvin/keyservice/internal/model"
)

func newKeyHandler(t *testing.T) (*Key, *keystore.FileStore) {
	t.Helper()
	store := keystore.NewFileStore(filepath.Join(t.TempDir(), "key.json"))
	return NewKey(core.NewKeyService(store, 0)), store
}

func generate(t *testing.T, h *Key) model.GeneratedKey {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Generate(rec, newRequest(http.MethodPost, "/api/generate-key", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeVerification(rec)
	return model.GeneratedKey{Key: body["key"].(string), Expiry: int64(body["expiry"].(float64))}
}

// --- Generate ---

func TestKeyGenerate_Success(t *testing.T) {
	h, store := newKeyHandler(t)
	rec := httptest.NewRecorder()

	before := time.Now().UnixMilli()
	h.Generate(rec, newRequest(http.MethodPost, "/api/generate-key", nil))
	after := time.Now().UnixMilli()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decodeVerification(rec)
	key, ok := body["key"].(string)
	require.True(t, ok)
	assert.Regexp(t, `^[0-9a-f]{16}$`, key)
	expiry := int64(body["expiry"].(float64))
	assert.GreaterOrEqual(t, expiry, before+86_400_000)
	assert.LessOrEqual(t, expiry, after+86_400_000)

	table, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Contains(t, table, key)
	assert.Equal(t, expiry, table[key].Expiry)
	assert.Empty(t, table[key].Devices)
}

func TestKeyGenerate_IgnoresBody(t *testing.T) {
	h, _ := newKeyHandler(t)
	rec := httptest.NewRecorder()

	h.Generate(rec, newRequestRaw(http.MethodPost, "/api/generate-key", "{garbage"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestKeyGenerate_CorruptFileReplaced(t *testing.T) {
	h, store := newKeyHandler(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("not json"), 0o644))

	gen := generate(t, h)

	table, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 1)
	assert.Contains(t, table, gen.Key)
}

func TestKeyGenerate_SaveError(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "key.json")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "occupied"), 0o755))
	h := NewKey(core.NewKeyService(keystore.NewFileStore(target), 0))
	rec := httptest.NewRecorder()

	h.Generate(rec, newRequest(http.MethodPost, "/api/generate-key", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Equal(t, "internal server error", body["error"])
}

// --- Verify ---

func TestKeyVerify_ImmediatelyAfterGenerate(t *testing.T) {
	h, _ := newKeyHandler(t)
	gen := generate(t, h)
	rec := httptest.NewRecorder()

	h.Verify(rec, newRequest(http.MethodPost, "/api/verify-key", map[string]any{"key": gen.Key}))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeVerification(rec)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "Key verified.", body["message"])
	assert.Equal(t, float64(gen.Expiry), body["expiry"])
}

func TestKeyVerify_MissingKey(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"device only", `{"deviceId":"dev1"}`},
		{"empty key", `{"key":"","deviceId":"dev1"}`},
		{"null key", `{"key":null}`},
		{"zero key", `{"key":0}`},
		{"false key", `{"key":false}`},
		{"numeric device only", `{"deviceId":123}`},
		{"array body", `[1,2]`},
		{"empty body", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newKeyHandler(t)
			rec := httptest.NewRecorder()

			h.Verify(rec, newRequestRaw(http.MethodPost, "/api/verify-key", tt.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"valid":false,"message":"Key is required."}`, rec.Body.String())
		})
	}
}

func TestKeyVerify_MissingKeyNeverReachesService(t *testing.T) {
	// A nil service would panic if the request got past validation.
	h := NewKey(nil)
	rec := httptest.NewRecorder()

	h.Verify(rec, newRequestRaw(http.MethodPost, "/api/verify-key", `{"deviceId":"dev1"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"valid":false,"message":"Key is required."}`, rec.Body.String())
}

func TestKeyVerify_NonStringKeyIsLookedUp(t *testing.T) {
	h, _ := newKeyHandler(t)
	rec := httptest.NewRecorder()

	h.Verify(rec, newRequestRaw(http.MethodPost, "/api/verify-key", `{"key":12345,"deviceId":true}`))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"valid":false,"message":"Invalid key."}`, rec.Body.String())
}

func TestKeyVerify_InvalidJSON(t *testing.T) {
	h, _ := newKeyHandler(t)
	rec := httptest.NewRecorder()

	h.Verify(rec, newRequestRaw(http.MethodPost, "/api/verify-key", "{bad json"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"valid":false,"message":"Invalid request body."}`, rec.Body.String())
}

func TestKeyVerify_BodyTooLarge(t *testing.T) {
	h, _ := newKeyHandler(t)
	rec := httptest.NewRecorder()

	body := `{"key":"` + strings.Repeat("a", 200<<10) + `"}`
	h.Verify(rec, newRequestRaw(http.MethodPost, "/api/verify-key", body))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestKeyVerify_UnknownKey(t *testing.T) {
	h, _ := newKeyHandler(t)
	rec := httptest.NewRecorder()

	h.Verify(rec, newRequest(http.MethodPost, "/api/verify-key", map[string]any{"key": "deadbeef00000000"}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"valid":false,"message":"Invalid key."}`, rec.Body.String())
}

func TestKeyVerify_Expired(t *testing.T) {
	h, store := newKeyHandler(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Minute).UnixMilli()
	require.NoError(t, store.Save(ctx, model.KeyTable{
		"0123456789abcdef": {Expiry: past, Devices: []string{}},
	}))
	rec := httptest.NewRecorder()

	h.Verify(rec, newRequest(http.MethodPost, "/api/verify-key", map[string]any{
		"key":      "0123456789abcdef",
		"deviceId": "dev1",
	}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"valid":false,"message":"Key expired."}`, rec.Body.String())

	table, err := store.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, table, "0123456789abcdef")
	assert.Equal(t, past, table["0123456789abcdef"].Expiry)
	assert.Empty(t, table["0123456789abcdef"].Devices)
}

func TestKeyVerify_DeviceRegisteredOnce(t *testing.T) {
	h, store := newKeyHandler(t)
	gen := generate(t, h)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.Verify(rec, newRequest(http.MethodPost, "/api/verify-key", map[string]any{
			"key":      gen.Key,
			"deviceId": "dev1",
		}))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	table, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dev1"}, table[gen.Key].Devices)
}

func TestKeyVerify_FormBody(t *testing.T) {
	h, store := newKeyHandler(t)
	gen := generate(t, h)

	r := httptest.NewRequest(http.MethodPost, "/api/verify-key", strings.NewReader("key="+gen.Key+"&deviceId=dev2"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.Verify(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	table, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dev2"}, table[gen.Key].Devices)
}

func TestKeyVerify_SaveError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key.json")
	store := keystore.NewFileStore(path)
	require.NoError(t, store.Save(context.Background(), model.KeyTable{
		"0123456789abcdef": {Expiry: time.Now().Add(time.Hour).UnixMilli(), Devices: []string{}},
	}))
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { os.Chmod(dir, 0o755) })
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	h := NewKey(core.NewKeyService(store, 0))
	rec := httptest.NewRecorder()
	h.Verify(rec, newRequest(http.MethodPost, "/api/verify-key", map[string]any{
		"key":      "0123456789abcdef",
		"deviceId": "dev1",
	}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeErrorResponse(rec)["error"])
}
