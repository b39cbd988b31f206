package core

import (
	"context"
	"testing"
	"time"

	"github.com/agrismart-core/go/src/common"
	types "github.com/agrismart-core/go/src/core/record"
	"github.com/agrismart-core/go/src/state"
)

func fp(v float64) *float64 { return &v }

func testDeadline() time.Time { return time.Now().Add(7 * 24 * time.Hour) }

func newTestEngine(t *testing.T) (*LedgerEngine, *state.LevelStore) {
	t.Helper()
	store, err := state.NewMemoryStore()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return NewLedgerEngine(store, nil), store
}

func TestNewLedgerEngine_Genesis(t *testing.T) {
	engine, _ := newTestEngine(t)

	info := engine.ChainInfo()
	if info.TotalBlocks != 1 {
		t.Fatalf("total blocks = %d, want 1 (genesis)", info.TotalBlocks)
	}
	if info.PendingCount != 0 {
		t.Errorf("pending = %d, want 0", info.PendingCount)
	}
	if info.GenesisHash != info.CurrentHash {
		t.Errorf("genesis should be the tail of a fresh chain")
	}

	genesis := engine.Blocks()[0]
	if genesis.PrevHash != common.ZeroHash {
		t.Errorf("genesis prev hash = %s, want %s", genesis.PrevHash, common.ZeroHash)
	}
	if len(genesis.Transactions) != 1 || genesis.Transactions[0].ID != "genesis_tx_001" {
		t.Errorf("unexpected genesis transactions %v", genesis.Transactions)
	}
}

func TestCreateContract_RegistersAndPersists(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.CreateContract(ctx, "PROD-1", "F-1", "Ana", "coffee", 500, "kg", 7, "B-1", 1200)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != "success" || result.ContractID == "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if engine.ContractCount() != 1 {
		t.Errorf("registry size = %d, want 1", engine.ContractCount())
	}

	doc, err := store.FindOne(ctx, state.ContractsCollection, state.Filter{"contract_id": result.ContractID})
	if err != nil {
		t.Fatalf("contract not persisted: %v", err)
	}
	if doc["product_id"] != "PROD-1" || doc["status"] != types.ContractStatusActive {
		t.Errorf("persisted doc %v", doc)
	}
}

func TestCreateContract_RejectsBadDeliveryWindow(t *testing.T) {
	engine, _ := newTestEngine(t)

	if _, err := engine.CreateContract(context.Background(), "PROD-1", "F-1", "", "", 1, "kg", 0, "", 10); err == nil {
		t.Fatal("expected error for zero delivery days")
	}
	if engine.ContractCount() != 0 {
		t.Error("failed creation must not register a contract")
	}
}

func TestRecordStage_UniqueIDsAndPersistence(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	a, err := engine.RecordStage(ctx, "PROD-1", "planted", "farmer", "F-1", "Field 7", nil, nil, nil, "", "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := engine.RecordStage(ctx, "PROD-1", "planted", "farmer", "F-1", "Field 7", nil, nil, nil, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if a.TransactionID == b.TransactionID {
		t.Errorf("identical submissions must get distinct ids, both %s", a.TransactionID)
	}

	doc, err := store.FindOne(ctx, state.TransactionsCollection, state.Filter{"tx_id": a.TransactionID})
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if doc["contract_id"] != nil {
		t.Errorf("contract_id = %v, want nil when no contract given", doc["contract_id"])
	}
	// Numbers come back as float64 after the store's JSON round trip.
	if doc["block_index"] != float64(0) {
		t.Errorf("block_index = %v, want 0 while unmined", doc["block_index"])
	}
}

func TestRecordStage_RejectsInvalidStage(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.RecordStage(context.Background(), "PROD-1", "bogus", "farmer", "F-1", "", nil, nil, nil, "", "")
	if err == nil {
		t.Fatal("expected error for invalid stage")
	}
	if engine.PendingCount() != 0 {
		t.Error("rejected stage must not enter the pending pool")
	}
}

func TestRecordStage_UnknownContractSkipsVerification(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.RecordStage(context.Background(), "PROD-1", "harvested", "farmer", "F-1", "",
		fp(30), nil, nil, "", "SC-does-not-exist")
	if err != nil {
		t.Fatalf("unknown contract must not fail the recording: %v", err)
	}
	if result.Verification != nil {
		t.Errorf("verification = %+v, want nil for unknown contract", result.Verification)
	}
}

func TestRecordStage_VerifiesAgainstContract(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := engine.CreateContract(ctx, "PROD-1", "F-1", "Ana", "coffee", 500, "kg", 7, "", 1200)
	if err != nil {
		t.Fatal(err)
	}

	result, err := engine.RecordStage(ctx, "PROD-1", "in_transit", "carrier", "C-1", "Route 9",
		fp(30), fp(55), nil, "", created.ContractID)
	if err != nil {
		t.Fatal(err)
	}
	if result.Verification == nil {
		t.Fatal("expected a verification result")
	}
	if result.Verification.ConditionsMet {
		t.Error("temperature 30 must violate the default range")
	}
	if result.Verification.Penalties != 100 {
		t.Errorf("penalties = %g, want 100", result.Verification.Penalties)
	}

	_, summary, ok := engine.ContractStatus(created.ContractID)
	if !ok {
		t.Fatal("contract missing from registry")
	}
	if summary.TotalPenalties != 100 || summary.StagesCompleted != 1 {
		t.Errorf("summary %+v", summary)
	}
}

func TestRecordStage_AutominesAtThreshold(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	stages := []string{"planted", "growing", "harvested", "processed", "packaged"}
	var last *StageResult
	for i, stage := range stages {
		result, err := engine.RecordStage(ctx, "PROD-1", stage, "farmer", "F-1", "", nil, nil, nil, "", "")
		if err != nil {
			t.Fatal(err)
		}
		last = result
		if i < MiningThreshold-1 && engine.ChainLength() != 1 {
			t.Fatalf("premature mine after %d records", i+1)
		}
	}

	if engine.ChainLength() != 2 {
		t.Fatalf("chain length = %d, want 2 after automine", engine.ChainLength())
	}
	if engine.PendingCount() != 0 {
		t.Errorf("pending = %d, want 0 after automine", engine.PendingCount())
	}

	blocks := engine.Blocks()
	mined := blocks[1]
	if len(mined.Transactions) != MiningThreshold {
		t.Errorf("mined block has %d transactions, want %d", len(mined.Transactions), MiningThreshold)
	}
	if mined.PrevHash != blocks[0].Hash {
		t.Errorf("mined block prev hash %s != genesis hash %s", mined.PrevHash, blocks[0].Hash)
	}

	// The triggering record reports the post-mine tail index.
	if last.BlockIndex != 1 {
		t.Errorf("triggering record block index = %d, want 1", last.BlockIndex)
	}

	doc, err := store.FindOne(ctx, state.BlocksCollection, state.Filter{"block_index": uint64(1)})
	if err != nil {
		t.Fatalf("mined block not persisted: %v", err)
	}
	if doc["previous_hash"] != blocks[0].Hash {
		t.Errorf("persisted block prev hash %v", doc["previous_hash"])
	}
}

func TestMine_EmptyPoolIsNoOp(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Mine(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result != nil {
		t.Fatalf("result = %+v, want nil for empty pool", result)
	}
	if engine.ChainLength() != 1 {
		t.Error("empty mine must not extend the chain")
	}
}

func TestMine_SealsEntirePool(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for _, stage := range []string{"planted", "growing"} {
		if _, err := engine.RecordStage(ctx, "PROD-1", stage, "farmer", "F-1", "", nil, nil, nil, "", ""); err != nil {
			t.Fatal(err)
		}
	}

	result, err := engine.Mine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result == nil || result.TransactionsCount != 2 || result.BlockIndex != 1 {
		t.Fatalf("result %+v", result)
	}
	if engine.PendingCount() != 0 {
		t.Error("mine must clear the pending pool")
	}
}

func TestMine_PublishesToBlockFeed(t *testing.T) {
	store, err := state.NewMemoryStore()
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	feed := make(chan *types.Block, 1)
	engine := NewLedgerEngine(store, feed)
	ctx := context.Background()

	if _, err := engine.RecordStage(ctx, "PROD-1", "planted", "farmer", "F-1", "", nil, nil, nil, "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Mine(ctx); err != nil {
		t.Fatal(err)
	}

	select {
	case block := <-feed:
		if block.Index != 1 {
			t.Errorf("announced block index = %d, want 1", block.Index)
		}
	default:
		t.Fatal("mined block was not announced on the feed")
	}
}

func TestContractRegistry_Ordering(t *testing.T) {
	reg := NewContractRegistry()
	ids := []string{"SC-c", "SC-a", "SC-b"}
	for _, id := range ids {
		c, err := types.NewSmartContract(id, "P", "F", "", "", 1, "kg",
			testDeadline(), "", 10, types.DefaultTemperatureRange, types.DefaultHumidityRange)
		if err != nil {
			t.Fatal(err)
		}
		if err := reg.Register(c); err != nil {
			t.Fatal(err)
		}
	}

	var seen []string
	reg.ForEach(func(c *types.SmartContract) { seen = append(seen, c.ContractID) })
	for i, id := range ids {
		if seen[i] != id {
			t.Fatalf("iteration order %v, want registration order %v", seen, ids)
		}
	}

	dup, err := types.NewSmartContract("SC-a", "P", "F", "", "", 1, "kg",
		testDeadline(), "", 10, types.DefaultTemperatureRange, types.DefaultHumidityRange)
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(dup); err == nil {
		t.Error("duplicate id must be rejected")
	}
	if reg.Len() != 3 {
		t.Errorf("len = %d, want 3", reg.Len())
	}
}
