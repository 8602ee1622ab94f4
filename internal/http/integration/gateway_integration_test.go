package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calebross/markethub/internal/cache"
	"github.com/calebross/markethub/internal/config"
	"github.com/calebross/markethub/internal/datastore"
	apphttp "github.com/calebross/markethub/internal/http"
	"github.com/calebross/markethub/internal/identity"
	"github.com/calebross/markethub/internal/validate"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
	validate.RegisterBindings()
}

func testConfig() config.Config {
	return config.Config{
		Env:             "test",
		Port:            0,
		SecretKey:       "test-secret-key",
		RateLimitPerMin: 10000,
	}
}

// countingStore wraps the in-memory store so tests can assert how often the
// gateway actually reaches for the backend.
type countingStore struct {
	*datastore.Memory
	queryCalls int
}

func (c *countingStore) QueryEqual(ctx context.Context, collection, field, value string) (map[string]map[string]any, error) {
	c.queryCalls++
	return c.Memory.QueryEqual(ctx, collection, field, value)
}

func setupGateway(t *testing.T) (*gin.Engine, *countingStore, identity.Provider) {
	t.Helper()

	provider := identity.NewLocal("test-secret-key", time.Hour)
	store := &countingStore{Memory: datastore.NewMemory()}
	respCache := cache.NewMemory()

	router := apphttp.NewRouter(testConfig(), provider, store, respCache, nil, nil)

	return router, store, provider
}

func doRequest(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request

	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func registerAndLogin(t *testing.T, router http.Handler, email string) string {
	t.Helper()

	w := doRequest(router, http.MethodPost, "/register", `{"email":"`+email+`","password":"Abcdef1!"}`, "")

	if w.Code != http.StatusCreated {
		t.Fatalf("register got %d, body=%s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodPost, "/login", `{"email":"`+email+`","password":"Abcdef1!"}`, "")

	if w.Code != http.StatusOK {
		t.Fatalf("login got %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		IDToken string `json:"idToken"`
	}
	mustReadJSON(t, w, &resp)

	if resp.IDToken == "" {
		t.Fatalf("login returned no token, body=%s", w.Body.String())
	}

	return resp.IDToken
}

func uploadProduct(t *testing.T, router http.Handler, token, body string) string {
	t.Helper()

	w := doRequest(router, http.MethodPost, "/upload_product", body, token)

	if w.Code != http.StatusCreated {
		t.Fatalf("upload got %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		ProductID string `json:"product_id"`
	}
	mustReadJSON(t, w, &resp)

	if resp.ProductID == "" {
		t.Fatalf("upload returned no product_id, body=%s", w.Body.String())
	}

	return resp.ProductID
}

func TestRegisterDuplicateEmail(t *testing.T) {
	router, _, _ := setupGateway(t)

	w := doRequest(router, http.MethodPost, "/register", `{"email":"a@b.com","password":"Abcdef1!"}`, "")

	if w.Code != http.StatusCreated {
		t.Fatalf("first register got %d, body=%s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodPost, "/register", `{"email":"a@b.com","password":"Abcdef1!"}`, "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register got %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestProductRoutesRequireAuth(t *testing.T) {
	router, _, _ := setupGateway(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/upload_product"},
		{http.MethodGet, "/user_products"},
		{http.MethodDelete, "/delete_product/p-1"},
		{http.MethodGet, "/product_info/p-1"},
		{http.MethodGet, "/all_products"},
		{http.MethodPut, "/update_product/p-1"},
		{http.MethodGet, "/search_products?query=x"},
		{http.MethodGet, "/products_by_category/books"},
	}

	for _, rt := range routes {
		w := doRequest(router, rt.method, rt.path, "", "")

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token got %d, want 401", rt.method, rt.path, w.Code)
		}

		w = doRequest(router, rt.method, rt.path, "", "garbage-token")

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s with bad token got %d, want 401", rt.method, rt.path, w.Code)
		}
	}
}

func TestOwnershipBoundary(t *testing.T) {
	router, _, _ := setupGateway(t)

	tokenU := registerAndLogin(t, router, "owner@example.com")
	tokenV := registerAndLogin(t, router, "other@example.com")

	productID := uploadProduct(t, router, tokenU, `{"title":"lamp","category":"home"}`)

	// reads are not owner-restricted
	w := doRequest(router, http.MethodGet, "/product_info/"+productID, "", tokenV)

	if w.Code != http.StatusOK {
		t.Fatalf("cross-user read got %d, body=%s", w.Code, w.Body.String())
	}

	// mutations are
	w = doRequest(router, http.MethodDelete, "/delete_product/"+productID, "", tokenV)

	if w.Code != http.StatusForbidden {
		t.Fatalf("cross-user delete got %d, want 403, body=%s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodPut, "/update_product/"+productID, `{"price": 5}`, tokenV)

	if w.Code != http.StatusForbidden {
		t.Fatalf("cross-user update got %d, want 403, body=%s", w.Code, w.Body.String())
	}

	// the product is left unmodified
	w = doRequest(router, http.MethodGet, "/product_info/"+productID, "", tokenU)

	if w.Code != http.StatusOK {
		t.Fatalf("owner read got %d, body=%s", w.Code, w.Body.String())
	}

	var product map[string]any
	mustReadJSON(t, w, &product)

	if _, ok := product["price"]; ok {
		t.Fatalf("product was modified by a non-owner: %v", product)
	}

	// and the owner can still delete it
	w = doRequest(router, http.MethodDelete, "/delete_product/"+productID, "", tokenU)

	if w.Code != http.StatusOK {
		t.Fatalf("owner delete got %d, body=%s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/product_info/"+productID, "", tokenU)

	if w.Code != http.StatusNotFound {
		t.Fatalf("read after delete got %d, want 404", w.Code)
	}
}

func TestUserProductsCacheAcrossRequests(t *testing.T) {
	router, store, _ := setupGateway(t)

	token := registerAndLogin(t, router, "owner@example.com")
	uploadProduct(t, router, token, `{"title":"lamp","category":"home"}`)

	w1 := doRequest(router, http.MethodGet, "/user_products", "", token)

	if w1.Code != http.StatusOK {
		t.Fatalf("first list got %d, body=%s", w1.Code, w1.Body.String())
	}

	w2 := doRequest(router, http.MethodGet, "/user_products", "", token)

	if w2.Code != http.StatusOK {
		t.Fatalf("second list got %d, body=%s", w2.Code, w2.Body.String())
	}

	if !bytes.Equal(w1.Body.Bytes(), w2.Body.Bytes()) {
		t.Fatalf("cached list differs: %q vs %q", w1.Body.String(), w2.Body.String())
	}

	if store.queryCalls != 1 {
		t.Fatalf("store queried %d times across two list calls, want 1", store.queryCalls)
	}

	// the cache is not invalidated by a write: a new upload does not show
	// up in the cached list
	uploadProduct(t, router, token, `{"title":"desk","category":"home"}`)

	w3 := doRequest(router, http.MethodGet, "/user_products", "", token)

	if !bytes.Equal(w1.Body.Bytes(), w3.Body.Bytes()) {
		t.Fatalf("cached list changed after write: %q vs %q", w1.Body.String(), w3.Body.String())
	}
}

func TestSearchAndCategoryFlow(t *testing.T) {
	router, _, _ := setupGateway(t)

	token := registerAndLogin(t, router, "owner@example.com")
	uploadProduct(t, router, token, `{"title":"lamp","category":"home"}`)
	uploadProduct(t, router, token, `{"title":"keyboard","category":"electronics"}`)

	// search matches exactly, lowercased
	w := doRequest(router, http.MethodGet, "/search_products?query=Lamp", "", token)

	if w.Code != http.StatusOK {
		t.Fatalf("search got %d, body=%s", w.Code, w.Body.String())
	}

	var matches map[string]map[string]any
	mustReadJSON(t, w, &matches)

	if len(matches) != 1 {
		t.Fatalf("search got %d matches, want 1: %v", len(matches), matches)
	}

	w = doRequest(router, http.MethodGet, "/search_products?query=missing", "", token)

	if w.Code != http.StatusNotFound {
		t.Fatalf("search with no matches got %d, want 404", w.Code)
	}

	w = doRequest(router, http.MethodGet, "/products_by_category/electronics", "", token)

	if w.Code != http.StatusOK {
		t.Fatalf("category got %d, body=%s", w.Code, w.Body.String())
	}

	matches = nil
	mustReadJSON(t, w, &matches)

	if len(matches) != 1 {
		t.Fatalf("category got %d matches, want 1: %v", len(matches), matches)
	}

	w = doRequest(router, http.MethodGet, "/products_by_category/books", "", token)

	if w.Code != http.StatusNotFound {
		t.Fatalf("empty category got %d, want 404", w.Code)
	}
}

func TestAllProducts(t *testing.T) {
	router, _, _ := setupGateway(t)

	token := registerAndLogin(t, router, "owner@example.com")

	w := doRequest(router, http.MethodGet, "/all_products", "", token)

	if w.Code != http.StatusOK {
		t.Fatalf("empty all_products got %d, body=%s", w.Code, w.Body.String())
	}

	var empty struct {
		Message string `json:"message"`
	}
	mustReadJSON(t, w, &empty)

	if empty.Message != "No products available" {
		t.Fatalf("got message %q, body=%s", empty.Message, w.Body.String())
	}

	uploadProduct(t, router, token, `{"title":"lamp","category":"home"}`)

	w = doRequest(router, http.MethodGet, "/all_products", "", token)

	if w.Code != http.StatusOK {
		t.Fatalf("all_products got %d, body=%s", w.Code, w.Body.String())
	}

	var all map[string]map[string]any
	mustReadJSON(t, w, &all)

	if len(all) != 1 {
		t.Fatalf("got %d products, want 1: %v", len(all), all)
	}
}
