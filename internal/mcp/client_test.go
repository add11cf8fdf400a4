package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_GetAndPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/weights":
			w.Write([]byte(`{"weights":{"eth_transfer":1},"modelVersion":"m@v1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v1/calculate":
			var body map[string]float64
			json.NewDecoder(r.Body).Decode(&body)
			if body["dailyTxns"] <= 0 {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid daily transactions: must be greater than zero"}`))
				return
			}
			w.Write([]byte(`{"report":{"dailyTxns":5}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	raw, err := c.Get(ctx, "/v1/weights")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !strings.Contains(string(raw), "m@v1") {
		t.Errorf("Get body = %s", raw)
	}

	if _, err := c.Post(ctx, "/v1/calculate", map[string]float64{"dailyTxns": 5}); err != nil {
		t.Fatalf("Post: %v", err)
	}

	_, err = c.Post(ctx, "/v1/calculate", map[string]float64{"dailyTxns": 0})
	if err == nil || err.Error() != "HTTP 400: invalid daily transactions: must be greater than zero" {
		t.Errorf("Post error = %v", err)
	}
}

func TestDecode(t *testing.T) {
	var v struct{ A int }
	if err := decode(json.RawMessage(`{"A":3}`), nil, &v); err != nil || v.A != 3 {
		t.Errorf("decode = %v, %+v", err, v)
	}
	if err := decode(json.RawMessage(`{`), nil, &v); err == nil {
		t.Error("expected parse error")
	}
}
