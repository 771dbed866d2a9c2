/*
handlers_test.go - Tests for the HTTP surface

Tests for:
- Entity creation and retrieval
- Error mapping (status code and categories)
- Partial updates and the "nothing has changed" answer
- Purchase revocation through PUT
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/campus-shop/api"
	"github.com/warp/campus-shop/shop"
	"github.com/warp/campus-shop/store/sqlite"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) *httptest.Server {
	store, err := sqlite.New(":memory:", sqlite.WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	router := api.NewRouter(api.NewHandler(store, shop.Pricing{UseKarma: true}), []string{"*"})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// do sends body (if any) and decodes the JSON response into a map or slice.
func do(t *testing.T, srv *httptest.Server, method, path string, body any) (int, any) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func object(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "expected a JSON object, got %T", v)
	return m
}

func errorInfo(t *testing.T, v any) map[string]any {
	t.Helper()
	return object(t, object(t, v)["error"])
}

func TestConsumers_CreateAndGet(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/api/consumers/", map[string]any{"name": "Alice"})
	require.Equal(t, http.StatusCreated, status)
	created := object(t, body)
	assert.Equal(t, float64(1), created["id"])
	assert.Equal(t, float64(0), created["credit"])
	assert.Equal(t, true, created["active"])

	status, body = do(t, srv, http.MethodGet, "/api/consumers/1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Alice", object(t, body)["name"])
}

func TestErrors_AreMapped(t *testing.T) {
	srv := newTestServer(t)

	_, _ = do(t, srv, http.MethodPost, "/api/consumers/", map[string]any{"name": "Alice"})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
		types  []any
		field  string
	}{
		{"duplicate", http.MethodPost, "/api/consumers/", map[string]any{"name": "Alice"},
			http.StatusConflict, []any{"input", "database", "duplicate"}, "name"},
		{"too short", http.MethodPost, "/api/consumers/", map[string]any{"name": "Al"},
			http.StatusBadRequest, []any{"input", "field", "length"}, "name"},
		{"unknown field", http.MethodPost, "/api/consumers/", map[string]any{"name": "Bobby", "shoe": 42},
			http.StatusBadRequest, []any{"input", "field"}, "shoe"},
		{"forbidden credit", http.MethodPut, "/api/consumers/1", map[string]any{"credit": 10},
			http.StatusBadRequest, []any{"input", "field"}, "credit"},
		{"invalid json", http.MethodPost, "/api/consumers/", "{name:",
			http.StatusBadRequest, []any{"input", "json"}, ""},
		{"not found", http.MethodGet, "/api/consumers/7", nil,
			http.StatusNotFound, []any{"resource", "not_found"}, ""},
		{"bad limit", http.MethodGet, "/api/consumers/?limit=x", nil,
			http.StatusBadRequest, []any{"input", "field"}, "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, status)
			info := errorInfo(t, body)
			assert.Equal(t, float64(tt.code), info["code"])
			assert.Equal(t, tt.types, info["types"])
			if tt.field != "" {
				assert.Equal(t, tt.field, info["field"])
			}
		})
	}
}

func TestUpdate_NothingHasChanged(t *testing.T) {
	srv := newTestServer(t)
	_, _ = do(t, srv, http.MethodPost, "/api/departments/", map[string]any{"name": "Drinks", "budget": 100})

	status, body := do(t, srv, http.MethodPut, "/api/departments/1", map[string]any{"budget": 200})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"budget"}, object(t, body)["updated"])

	status, body = do(t, srv, http.MethodPut, "/api/departments/1", map[string]any{"budget": 200})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"input", "noop"}, errorInfo(t, body)["types"])
}

func TestPurchase_RevokeThroughPut(t *testing.T) {
	srv := newTestServer(t)

	do(t, srv, http.MethodPost, "/api/departments/", map[string]any{"name": "Drinks", "budget": 100})
	do(t, srv, http.MethodPost, "/api/products/", map[string]any{"name": "Coffee", "price": 300, "department_id": 1})
	do(t, srv, http.MethodPost, "/api/consumers/", map[string]any{"name": "Alice"})
	do(t, srv, http.MethodPost, "/api/deposits/", map[string]any{"consumer_id": 1, "amount": 1000, "comment": "cash"})

	status, body := do(t, srv, http.MethodPost, "/api/purchases/", map[string]any{
		"consumer_id": 1, "product_id": 1, "amount": 2, "comment": "",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(600), object(t, body)["price"])

	_, body = do(t, srv, http.MethodGet, "/api/consumers/1", nil)
	assert.Equal(t, float64(400), object(t, body)["credit"])

	status, _ = do(t, srv, http.MethodPut, "/api/purchases/1", map[string]any{"revoked": true})
	require.Equal(t, http.StatusOK, status)

	_, body = do(t, srv, http.MethodGet, "/api/consumers/1", nil)
	assert.Equal(t, float64(1000), object(t, body)["credit"])

	status, body = do(t, srv, http.MethodPut, "/api/purchases/1", map[string]any{"revoked": true})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, []any{"ledger", "revocation"}, errorInfo(t, body)["types"])
}

func TestAdminRoles(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/departments/", map[string]any{"name": "Drinks", "budget": 100})
	do(t, srv, http.MethodPost, "/api/consumers/", map[string]any{"name": "Alice"})

	status, body := do(t, srv, http.MethodPost, "/api/consumers/1/adminroles", map[string]any{"department_id": 1, "admin": true})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []any{"input", "credentials"}, errorInfo(t, body)["types"])

	do(t, srv, http.MethodPut, "/api/consumers/1", map[string]any{"email": "alice@example.com", "password": "secret123"})

	status, body = do(t, srv, http.MethodPost, "/api/consumers/1/adminroles", map[string]any{"department_id": 1, "admin": true})
	require.Equal(t, http.StatusOK, status)
	roles, ok := body.([]any)
	require.True(t, ok)
	require.Len(t, roles, 1)
	assert.Equal(t, float64(1), object(t, roles[0])["department_id"])
}
