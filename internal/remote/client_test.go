package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lunaretail/posync/internal/config"
)

func testClient(url string, apiKey string) *Client {
	return NewClient(config.RemoteConfig{
		URL:        url,
		APIKey:     apiKey,
		Timeout:    5 * time.Second,
		MaxRetries: 3,
	}, "test-instance")
}

func collectionResponse(name string, items string, total int) string {
	return `{"data":{"` + name + `":{"items":` + items + `,"total":` + jsonInt(total) + `,"limit":100,"offset":0}}}`
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestFetchProductsDecodesLoosePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Instance-ID") != "test-instance" {
			t.Errorf("missing instance header")
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing request id header")
		}
		// description false, missing tax rate and is_active: the remote's
		// loose typing must not break decoding
		items := `[{"ean":"4001234","ref":1234,"title":"Milk","description":false,"price":1.19,"updated_at":"2026-04-01 10:00:00"}]`
		w.Write([]byte(collectionResponse("products", items, 1)))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	items, total, err := c.FetchProducts(context.Background(), Query{Limit: 100})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("got %d items, total %d", len(items), total)
	}

	p := items[0].ToModel()
	if p.EAN != "4001234" || p.Title != "Milk" {
		t.Errorf("basic fields wrong: %+v", p)
	}
	if p.Ref != "1234" {
		t.Errorf("numeric ref = %q, want \"1234\"", p.Ref)
	}
	if p.Description != "" {
		t.Errorf("false description = %q, want empty", p.Description)
	}
	if p.TaxRate != 0.21 {
		t.Errorf("missing tax rate = %v, want default 0.21", p.TaxRate)
	}
	if !p.IsActive {
		t.Error("missing is_active must default to true")
	}
	if p.ServerUpdatedAt.IsZero() {
		t.Error("timestamp without timezone not parsed")
	}
}

func TestExecuteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(collectionResponse("taxes", `[]`, 0)))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	_, _, err := c.FetchTaxes(context.Background(), Query{Limit: 10})
	if err != nil {
		t.Fatalf("fetch after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("made %d attempts, want 3", calls.Load())
	}
}

func TestConflictIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"errors":[{"message":"duplicate order id","kind":"CONFLICT"}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	_, err := c.CreatePurchaseOrder(context.Background(), PurchaseOrderRecord{ID: "x"})
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("conflict was retried %d times", calls.Load()-1)
	}
}

func TestValidationErrorMapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"unknown store","kind":"VALIDATION"}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	_, err := c.CreatePurchaseOrder(context.Background(), PurchaseOrderRecord{ID: "x"})
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	_, _, err := c.FetchTaxes(context.Background(), Query{Limit: 10})
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("4xx was retried %d times", calls.Load()-1)
	}
}

func TestSessionTokenReused(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	var sessions atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		if strings.Contains(req.Query, "createSession") {
			sessions.Add(1)
			w.Write([]byte(`{"data":{"createSession":{"token":"` + token + `"}}}`))
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer "+token {
			t.Errorf("authorization = %q", got)
		}
		w.Write([]byte(collectionResponse("taxes", `[]`, 0)))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "secret-key")
	for i := 0; i < 3; i++ {
		if _, _, err := c.FetchTaxes(context.Background(), Query{Limit: 10}); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if sessions.Load() != 1 {
		t.Errorf("authenticated %d times, want 1 (token should be reused)", sessions.Load())
	}
}

func TestQueryVariables(t *testing.T) {
	since := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	vars := Query{Since: &since, Limit: 50, Offset: 100, StoreID: "S01"}.variables()

	if vars["timestamp"] != "2026-04-01T10:00:00Z" {
		t.Errorf("timestamp = %v", vars["timestamp"])
	}
	if vars["store_id"] != "S01" || vars["limit"] != 50 || vars["offset"] != 100 {
		t.Errorf("variables = %v", vars)
	}

	vars = Query{Limit: 10}.variables()
	if _, ok := vars["timestamp"]; ok {
		t.Error("nil since must omit the timestamp variable")
	}
	if _, ok := vars["store_id"]; ok {
		t.Error("empty store id must be omitted")
	}
}
