package query

import (
	"context"
	"errors"
	"testing"

	"github.com/agrismart-core/go/src/core"
	"github.com/agrismart-core/go/src/state"
)

func fp(v float64) *float64 { return &v }

func newTestService(t *testing.T) (*Service, *core.LedgerEngine, *state.LevelStore) {
	t.Helper()
	store, err := state.NewMemoryStore()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	engine := core.NewLedgerEngine(store, nil)
	return NewService(engine, store), engine, store
}

func TestGetProductTrace_EmptyProduct(t *testing.T) {
	svc, _, _ := newTestService(t)

	trace, err := svc.GetProductTrace(context.Background(), "PROD-nope")
	if err != nil {
		t.Fatal(err)
	}
	if trace["total_records"] != 0 {
		t.Errorf("total_records = %v, want 0", trace["total_records"])
	}
	auth := trace["authenticity"].(map[string]any)
	if auth["is_authentic"] != false {
		t.Error("a product with no records must not verify as authentic")
	}
}

func TestGetProductTrace_TimelineChronological(t *testing.T) {
	svc, engine, _ := newTestService(t)
	ctx := context.Background()

	for _, stage := range []string{"planted", "growing", "harvested"} {
		if _, err := engine.RecordStage(ctx, "PROD-1", stage, "farmer", "F-1", "Field 7",
			nil, nil, nil, "", ""); err != nil {
			t.Fatal(err)
		}
	}
	// A different product must not appear in the trace.
	if _, err := engine.RecordStage(ctx, "PROD-2", "planted", "farmer", "F-1", "",
		nil, nil, nil, "", ""); err != nil {
		t.Fatal(err)
	}

	trace, err := svc.GetProductTrace(ctx, "PROD-1")
	if err != nil {
		t.Fatal(err)
	}
	if trace["total_records"] != 3 {
		t.Fatalf("total_records = %v, want 3", trace["total_records"])
	}

	timeline := trace["timeline"].([]map[string]any)
	wantOrder := []string{"planted", "growing", "harvested"}
	for i, stage := range wantOrder {
		if timeline[i]["stage"] != stage {
			t.Errorf("timeline[%d] = %v, want stage %s", i, timeline[i], stage)
		}
	}

	records := trace["blockchain_records"].([]map[string]any)
	if records[0]["stage"] != "harvested" {
		t.Errorf("records must be newest first, got %v first", records[0]["stage"])
	}

	auth := trace["authenticity"].(map[string]any)
	if auth["is_authentic"] != true {
		t.Error("hashed records must verify as authentic")
	}
	if auth["blockchain_blocks"] != 1 {
		t.Errorf("authenticity blockchain_blocks = %v, want 1", auth["blockchain_blocks"])
	}
}

func TestGetProductTrace_TimelineCarriesReadings(t *testing.T) {
	svc, engine, _ := newTestService(t)
	ctx := context.Background()

	if _, err := engine.RecordStage(ctx, "PROD-1", "in_transit", "carrier", "C-1", "Route 9",
		fp(22), fp(55), fp(91), "cold chain intact", ""); err != nil {
		t.Fatal(err)
	}

	trace, err := svc.GetProductTrace(ctx, "PROD-1")
	if err != nil {
		t.Fatal(err)
	}
	entry := trace["timeline"].([]map[string]any)[0]
	if entry["temperature"] != float64(22) {
		t.Errorf("temperature = %v, want 22", entry["temperature"])
	}
	if entry["humidity"] != float64(55) {
		t.Errorf("humidity = %v, want 55", entry["humidity"])
	}
	if entry["quality_score"] != float64(91) {
		t.Errorf("quality_score = %v, want 91", entry["quality_score"])
	}
	if entry["notes"] != "cold chain intact" {
		t.Errorf("notes = %v", entry["notes"])
	}
}

func TestVerifyProductAuthenticity(t *testing.T) {
	svc, engine, store := newTestService(t)
	ctx := context.Background()

	result, err := svc.VerifyProductAuthenticity(ctx, "PROD-1")
	if err != nil {
		t.Fatal(err)
	}
	if result["is_authentic"] != false || result["total_records"] != 0 {
		t.Errorf("empty product: %v", result)
	}

	if _, err := engine.RecordStage(ctx, "PROD-1", "planted", "farmer", "F-1", "",
		nil, nil, nil, "", ""); err != nil {
		t.Fatal(err)
	}
	result, err = svc.VerifyProductAuthenticity(ctx, "PROD-1")
	if err != nil {
		t.Fatal(err)
	}
	if result["is_authentic"] != true {
		t.Errorf("recorded product: %v", result)
	}
	if result["first_recorded"] == nil || result["last_recorded"] == nil {
		t.Error("expected first/last timestamps for a recorded product")
	}
	stages := result["stages"].([]string)
	if len(stages) != 1 || stages[0] != "planted" {
		t.Errorf("stages = %v, want [planted]", stages)
	}
	if result["blockchain_blocks"] != 1 {
		t.Errorf("blockchain_blocks = %v, want 1", result["blockchain_blocks"])
	}

	// A tampered record with a stripped hash breaks authenticity.
	if err := store.InsertOne(ctx, state.TransactionsCollection, map[string]any{
		"product_id": "PROD-1", "stage": "sold", "hash": "",
	}); err != nil {
		t.Fatal(err)
	}
	result, err = svc.VerifyProductAuthenticity(ctx, "PROD-1")
	if err != nil {
		t.Fatal(err)
	}
	if result["is_authentic"] != false {
		t.Error("a hashless record must break authenticity")
	}
}

func TestGetContractStatus_LiveAndFallback(t *testing.T) {
	svc, engine, store := newTestService(t)
	ctx := context.Background()

	created, err := engine.CreateContract(ctx, "PROD-1", "F-1", "Ana", "coffee", 500, "kg", 7, "", 1200)
	if err != nil {
		t.Fatal(err)
	}

	status, err := svc.GetContractStatus(ctx, created.ContractID)
	if err != nil {
		t.Fatal(err)
	}
	if status["compliance"] == nil {
		t.Error("live contract must carry a compliance summary")
	}
	if status["degraded"] != nil {
		t.Error("live contract must not be flagged degraded")
	}

	// A contract only present in the store (written by an earlier process)
	// comes back without compliance, flagged degraded.
	if err := store.InsertOne(ctx, state.ContractsCollection, map[string]any{
		"contract_id": "SC-old", "product_id": "PROD-9",
	}); err != nil {
		t.Fatal(err)
	}
	status, err = svc.GetContractStatus(ctx, "SC-old")
	if err != nil {
		t.Fatal(err)
	}
	if status["degraded"] != true {
		t.Errorf("store-only contract: %v", status)
	}

	if _, err := svc.GetContractStatus(ctx, "SC-missing"); !errors.Is(err, ErrContractNotFound) {
		t.Errorf("err = %v, want ErrContractNotFound", err)
	}
}

func TestGetBlockchainStats(t *testing.T) {
	svc, engine, _ := newTestService(t)
	ctx := context.Background()

	for _, stage := range []string{"planted", "planted", "harvested"} {
		if _, err := engine.RecordStage(ctx, "PROD-1", stage, "farmer", "F-1", "",
			nil, nil, nil, "", ""); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := svc.GetBlockchainStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats["total_blocks"] != 1 {
		t.Errorf("total_blocks = %v, want 1 (threshold not reached)", stats["total_blocks"])
	}
	if stats["pending_transactions"] != 3 {
		t.Errorf("pending = %v, want 3", stats["pending_transactions"])
	}
	if stats["total_transactions"] != int64(3) {
		t.Errorf("total_transactions = %v, want 3", stats["total_transactions"])
	}
	if stats["network_status"] != "operational" {
		t.Errorf("network_status = %v", stats["network_status"])
	}

	distribution := stats["stage_distribution"].(map[string]int64)
	if distribution["planted"] != 2 || distribution["harvested"] != 1 {
		t.Errorf("distribution = %v", distribution)
	}
}

func TestGetFarmerStatistics(t *testing.T) {
	svc, engine, _ := newTestService(t)
	ctx := context.Background()

	created, err := engine.CreateContract(ctx, "PROD-1", "F-1", "Ana", "coffee", 500, "kg", 7, "", 1200)
	if err != nil {
		t.Fatal(err)
	}
	// One violating stage: 100 penalty points cost 10 reputation points.
	if _, err := engine.RecordStage(ctx, "PROD-1", "in_transit", "farmer", "F-1", "",
		fp(30), nil, nil, "", created.ContractID); err != nil {
		t.Fatal(err)
	}

	stats, err := svc.GetFarmerStatistics(ctx, "F-1")
	if err != nil {
		t.Fatal(err)
	}
	if stats["total_contracts"] != 1 {
		t.Errorf("total_contracts = %v", stats["total_contracts"])
	}
	if stats["active_contracts"] != 1 || stats["completed_contracts"] != 0 {
		t.Errorf("active = %v completed = %v, want 1/0", stats["active_contracts"], stats["completed_contracts"])
	}
	if stats["total_products"] != float64(500) {
		t.Errorf("total_products = %v, want 500 (contract quantity)", stats["total_products"])
	}
	if stats["total_penalties"] != float64(100) {
		t.Errorf("total_penalties = %v, want 100", stats["total_penalties"])
	}
	if stats["average_penalty"] != float64(100) {
		t.Errorf("average_penalty = %v, want 100 over one contract", stats["average_penalty"])
	}
	if stats["reputation_score"] != float64(90) {
		t.Errorf("reputation = %v, want 90", stats["reputation_score"])
	}
	if stats["records_submitted"] != int64(1) {
		t.Errorf("records_submitted = %v, want 1", stats["records_submitted"])
	}
}

func TestGetFarmerStatistics_NoContracts(t *testing.T) {
	svc, _, _ := newTestService(t)

	stats, err := svc.GetFarmerStatistics(context.Background(), "F-nobody")
	if err != nil {
		t.Fatal(err)
	}
	if stats["total_contracts"] != 0 || stats["total_products"] != float64(0) {
		t.Errorf("stats = %v", stats)
	}
	if stats["average_penalty"] != float64(0) {
		t.Errorf("average_penalty = %v, want 0 when the farmer has no contracts", stats["average_penalty"])
	}
	if stats["reputation_score"] != float64(100) {
		t.Errorf("reputation = %v, want 100", stats["reputation_score"])
	}
}

func TestReputationScore(t *testing.T) {
	cases := []struct {
		penalties float64
		want      float64
	}{
		{0, 100},
		{250, 75},
		{1000, 0},
		{2000, 0}, // floored, never negative
	}
	for _, tc := range cases {
		if got := ReputationScore(tc.penalties); got != tc.want {
			t.Errorf("ReputationScore(%g) = %g, want %g", tc.penalties, got, tc.want)
		}
	}
}
