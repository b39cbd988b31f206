// MIT License
//
// Copyright (c) 2025 agrismart-core
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// go/src/core/engine.go
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agrismart-core/go/src/common"
	types "github.com/agrismart-core/go/src/core/record"
	logger "github.com/agrismart-core/go/src/log"
	"github.com/agrismart-core/go/src/state"
)

// NewLedgerEngine creates a ledger engine over the given document store and
// seals the genesis block into its chain. The engine is the process's single
// mutation surface; construct exactly one per store and inject it where
// needed, there is no package-level instance.
// store: Persistent append/query backend for contracts, records and blocks
// blockFeed: Optional channel receiving every mined block; nil disables it
func NewLedgerEngine(store state.Store, blockFeed chan<- *types.Block) *LedgerEngine {
	engine := &LedgerEngine{
		store:     store,
		registry:  NewContractRegistry(),
		chain:     []*types.Block{genesisBlock()},
		blockFeed: blockFeed,
	}
	logger.Infof("Ledger engine initialized, genesis hash=%s", engine.chain[0].Hash)
	return engine
}

// genesisBlock builds block 0 around the synthetic network-initialization
// record, linked to the 64-zero sentinel hash.
func genesisBlock() *types.Block {
	rec, err := types.NewStageRecord(
		"genesis_tx_001", "genesis", string(types.StagePlanted),
		"system", "system", "AgriSmart Network",
		nil, nil, nil, "Genesis block - Network initialization",
	)
	if err != nil {
		// The genesis record only uses closed-set values.
		panic(err)
	}
	return types.NewBlock(0, []*types.StageRecord{rec}, common.ZeroHash, 0)
}

// CreateContract builds a smart contract for a product/delivery agreement,
// registers it and write-through persists it.
// expectedDeliveryDays: Days from now until the delivery deadline, at least 1
// buyerID: Optional, empty when the buyer is not yet known
// Returns the serialized contract. Validation failures are reported before
// any state is touched; a store failure after registration leaves the
// in-memory registry ahead of the store, by design.
func (e *LedgerEngine) CreateContract(ctx context.Context, productID, farmerID, farmerName, productType string,
	quantity float64, unit string, expectedDeliveryDays int, buyerID string, price float64) (*ContractResult, error) {
	if expectedDeliveryDays < 1 {
		return nil, fmt.Errorf("expected delivery days must be at least 1, got %d", expectedDeliveryDays)
	}

	contractID := fmt.Sprintf("SC-%s-%s", productID, uuid.NewString())
	expected := time.Now().UTC().Add(time.Duration(expectedDeliveryDays) * 24 * time.Hour)

	contract, err := types.NewSmartContract(contractID, productID, farmerID, farmerName, productType,
		quantity, unit, expected, buyerID, price,
		types.DefaultTemperatureRange, types.DefaultHumidityRange)
	if err != nil {
		return nil, err
	}

	e.lock.Lock()
	err = e.registry.Register(contract)
	doc := contract.Serialize()
	e.lock.Unlock()
	if err != nil {
		return nil, err
	}

	if err := e.store.InsertOne(ctx, state.ContractsCollection, doc); err != nil {
		return nil, fmt.Errorf("failed to persist contract %s: %w", contractID, err)
	}

	logger.Infof("Created smart contract %s for product %s (farmer %s)", contractID, productID, farmerID)
	return &ContractResult{
		Status:     "success",
		Message:    "Smart contract created",
		ContractID: contractID,
		Contract:   doc,
	}, nil
}

// RecordStage appends one lifecycle event to the pending pool. When contractID
// names a registered contract, the stage is marked completed and the
// contract's conditions are evaluated in the same critical section; an
// unknown or empty contractID simply skips verification, it is never an
// error. Reaching the mining threshold triggers an automatic, synchronous
// mine before the call returns.
func (e *LedgerEngine) RecordStage(ctx context.Context, productID, stage, actor, actorID, location string,
	temperature, humidity, qualityScore *float64, notes, contractID string) (*StageResult, error) {
	id := fmt.Sprintf("TX-%s-%s-%s", productID, stage, uuid.NewString())

	// Validation happens in the constructor, before any engine state moves.
	rec, err := types.NewStageRecord(id, productID, stage, actor, actorID, location,
		temperature, humidity, qualityScore, notes)
	if err != nil {
		return nil, err
	}

	var (
		verification *types.VerificationResult
		mined        *types.Block
	)

	e.lock.Lock()
	e.pending = append(e.pending, rec)
	if contractID != "" {
		if contract, ok := e.registry.Get(contractID); ok {
			contract.MarkStageCompleted(rec.Stage)
			verification = contract.VerifyConditions(rec.Stage, temperature, humidity, qualityScore)
		} else {
			logger.Debugf("Stage %s recorded with unknown contract %s, verification skipped", stage, contractID)
		}
	}
	if len(e.pending) >= MiningThreshold {
		mined = e.mineLocked()
	}
	blockIndex := e.chain[len(e.chain)-1].Index
	e.lock.Unlock()

	if mined != nil {
		if err := e.persistBlock(ctx, mined); err != nil {
			return nil, err
		}
	}

	doc := rec.Serialize()
	if contractID != "" {
		doc["contract_id"] = contractID
	} else {
		doc["contract_id"] = nil
	}
	doc["block_index"] = blockIndex
	if err := e.store.InsertOne(ctx, state.TransactionsCollection, doc); err != nil {
		return nil, fmt.Errorf("failed to persist stage record %s: %w", id, err)
	}

	return &StageResult{
		Status:          "success",
		Message:         "Product stage recorded on blockchain",
		TransactionID:   rec.ID,
		TransactionHash: rec.Hash,
		Stage:           rec.Stage,
		Verification:    verification,
		BlockIndex:      blockIndex,
	}, nil
}

// Mine seals the entire pending pool into a new block. On an empty pool it is
// a no-op and returns (nil, nil); the chain is left untouched.
func (e *LedgerEngine) Mine(ctx context.Context) (*MineResult, error) {
	e.lock.Lock()
	if len(e.pending) == 0 {
		e.lock.Unlock()
		return nil, nil
	}
	mined := e.mineLocked()
	e.lock.Unlock()

	if err := e.persistBlock(ctx, mined); err != nil {
		return nil, err
	}
	return &MineResult{
		BlockIndex:        mined.Index,
		BlockHash:         mined.Hash,
		TransactionsCount: len(mined.Transactions),
	}, nil
}

// mineLocked seals the pending pool into a block linked to the current tail
// and clears the pool in full. Callers hold the engine lock and guarantee a
// non-empty pool.
func (e *LedgerEngine) mineLocked() *types.Block {
	tail := e.chain[len(e.chain)-1]
	txs := make([]*types.StageRecord, len(e.pending))
	copy(txs, e.pending)

	block := types.NewBlock(uint64(len(e.chain)), txs, tail.Hash, 0)
	e.chain = append(e.chain, block)
	e.pending = nil

	logger.Infof("Mined block %d with %d transactions, hash=%s", block.Index, len(txs), block.Hash)
	return block
}

// persistBlock stores a mined block and announces it on the block feed. The
// in-memory append already happened; a store failure here leaves memory ahead
// of the store and is surfaced to the caller.
func (e *LedgerEngine) persistBlock(ctx context.Context, block *types.Block) error {
	if err := e.store.InsertOne(ctx, state.BlocksCollection, block.Serialize()); err != nil {
		return fmt.Errorf("failed to persist block %d: %w", block.Index, err)
	}
	if e.blockFeed != nil {
		select {
		case e.blockFeed <- block:
		default:
			logger.Warnf("Block feed full, dropping announcement for block %d", block.Index)
		}
	}
	return nil
}

// ChainInfo returns a consistent snapshot of the chain's shape.
func (e *LedgerEngine) ChainInfo() ChainInfo {
	e.lock.RLock()
	defer e.lock.RUnlock()
	tail := e.chain[len(e.chain)-1]
	return ChainInfo{
		TotalBlocks:   len(e.chain),
		PendingCount:  len(e.pending),
		GenesisHash:   e.chain[0].Hash,
		CurrentHash:   tail.Hash,
		LastBlockTime: tail.Timestamp,
	}
}

// ChainLength returns the number of blocks in the chain, genesis included.
func (e *LedgerEngine) ChainLength() int {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return len(e.chain)
}

// PendingCount returns the size of the unmined pending pool.
func (e *LedgerEngine) PendingCount() int {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return len(e.pending)
}

// Blocks returns the chain as a copied slice. Blocks themselves are immutable.
func (e *LedgerEngine) Blocks() []*types.Block {
	e.lock.RLock()
	defer e.lock.RUnlock()
	out := make([]*types.Block, len(e.chain))
	copy(out, e.chain)
	return out
}

// TotalPenalties sums the accumulated penalties of every registered contract.
func (e *LedgerEngine) TotalPenalties() float64 {
	e.lock.RLock()
	defer e.lock.RUnlock()
	var total float64
	e.registry.ForEach(func(c *types.SmartContract) {
		total += c.Penalties
	})
	return total
}

// ContractCount returns the number of registered contracts.
func (e *LedgerEngine) ContractCount() int {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.registry.Len()
}

// ForEachContract visits every registered contract in registration order
// while holding the engine's read lock. The callback must not mutate the
// contract and must not retain it past the call.
func (e *LedgerEngine) ForEachContract(visit func(c *types.SmartContract)) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	e.registry.ForEach(visit)
}

// ContractsForProduct returns serialized snapshots of every registered
// contract covering the given product.
func (e *LedgerEngine) ContractsForProduct(productID string) []map[string]any {
	e.lock.RLock()
	defer e.lock.RUnlock()
	out := []map[string]any{}
	e.registry.ForEach(func(c *types.SmartContract) {
		if c.ProductID == productID {
			out = append(out, c.Serialize())
		}
	})
	return out
}

// ContractStatus returns a serialized snapshot of a registered contract with
// its compliance summary. The snapshot and summary come from one critical
// section, so a concurrent stage recording can never split a
// mark-completed/verify pair across the read.
func (e *LedgerEngine) ContractStatus(contractID string) (map[string]any, *ComplianceSummary, bool) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	contract, ok := e.registry.Get(contractID)
	if !ok {
		return nil, nil, false
	}
	total := types.StageCount()
	summary := &ComplianceSummary{
		ConditionsMet:        contract.ConditionsMet,
		TotalPenalties:       contract.Penalties,
		StagesCompleted:      len(contract.StagesCompleted),
		TotalStages:          total,
		CompletionPercentage: float64(len(contract.StagesCompleted)) / float64(total) * 100,
	}
	return contract.Serialize(), summary, true
}
