package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agrismart-core/go/src/core"
	types "github.com/agrismart-core/go/src/core/record"
	"github.com/agrismart-core/go/src/query"
	"github.com/agrismart-core/go/src/state"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := state.NewMemoryStore()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	feed := make(chan *types.Block, 16)
	engine := core.NewLedgerEngine(store, feed)
	return NewServer(engine, query.NewService(engine, store), NewBlockHub(feed), prometheus.NewRegistry())
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid response body %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func TestServer_RecordAndTrace(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/api/blockchain/record-stage", map[string]any{
		"product_id": "PROD-1",
		"stage":      "planted",
		"actor":      "farmer",
		"actor_id":   "F-1",
		"location":   "Field 7",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	if hash, _ := body["transaction_hash"].(string); hash == "" {
		t.Error("response must carry the record hash")
	}

	rec, body = doJSON(t, srv.Handler(), http.MethodGet, "/api/blockchain/product-trace/PROD-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("trace status = %d", rec.Code)
	}
	if body["total_records"] != float64(1) {
		t.Errorf("total_records = %v, want 1", body["total_records"])
	}
}

func TestServer_RecordRejectsInvalidStage(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/api/blockchain/record-stage", map[string]any{
		"product_id": "PROD-1",
		"stage":      "bogus",
		"actor":      "farmer",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body["status"] != "error" {
		t.Errorf("body = %v", body)
	}
}

func TestServer_ContractLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/api/blockchain/smart-contract/create", map[string]any{
		"product_id":             "PROD-1",
		"farmer_id":              "F-1",
		"farmer_name":            "Ana",
		"product_type":           "coffee",
		"quantity":               500,
		"unit":                   "kg",
		"expected_delivery_days": 7,
		"price":                  1200,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	contractID, _ := body["contract_id"].(string)
	if contractID == "" {
		t.Fatalf("missing contract id in %v", body)
	}

	rec, body = doJSON(t, srv.Handler(), http.MethodGet, "/api/blockchain/contract/"+contractID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["compliance"] == nil {
		t.Error("live contract status must include compliance")
	}

	rec, _ = doJSON(t, srv.Handler(), http.MethodGet, "/api/blockchain/contract/SC-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing contract status = %d, want 404", rec.Code)
	}
}

func TestServer_MineEmptyPool(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/api/blockchain/force-mine-block", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["block"] != nil {
		t.Errorf("empty pool must not mine a block, got %v", body["block"])
	}
}

func TestServer_StatsAndHealth(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv.Handler(), http.MethodGet, "/api/blockchain/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	if body["network_status"] != "operational" {
		t.Errorf("stats = %v", body)
	}

	rec, body = doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", rec.Code, body)
	}
}
