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

// go/src/query/service.go
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/agrismart-core/go/src/core"
	types "github.com/agrismart-core/go/src/core/record"
	logger "github.com/agrismart-core/go/src/log"
	"github.com/agrismart-core/go/src/state"
)

// ErrContractNotFound reports a contract id unknown to both the live
// registry and the store.
var ErrContractNotFound = errors.New("contract not found")

// Service answers read-only questions about the ledger. It composes the
// engine's in-memory view (chain shape, registered contracts) with the
// store's persisted documents; it never mutates either.
type Service struct {
	engine *core.LedgerEngine
	store  state.Store
}

// NewService builds a query service over an engine and its backing store.
func NewService(engine *core.LedgerEngine, store state.Store) *Service {
	return &Service{engine: engine, store: store}
}

// GetProductTrace assembles the full journey of a product: its persisted
// stage records newest-first, a chronological reduced timeline, covering
// smart contracts and an authenticity verdict. A product with no records
// yields an empty trace, not an error.
func (s *Service) GetProductTrace(ctx context.Context, productID string) (map[string]any, error) {
	records, err := s.store.Find(ctx, state.TransactionsCollection,
		state.Filter{"product_id": productID},
		state.FindOptions{SortField: "timestamp", Ascending: false})
	if err != nil {
		return nil, fmt.Errorf("failed to load trace for product %s: %w", productID, err)
	}

	// Timeline is the same record set oldest-first, projected down to the
	// consumer-facing fields, sensor readings included.
	timeline := make([]map[string]any, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		timeline = append(timeline, map[string]any{
			"stage":         rec["stage"],
			"actor":         rec["actor"],
			"location":      rec["location"],
			"timestamp":     rec["timestamp"],
			"temperature":   rec["temperature"],
			"humidity":      rec["humidity"],
			"quality_score": rec["quality_score"],
			"notes":         rec["notes"],
		})
	}

	contracts := s.engine.ContractsForProduct(productID)
	authentic := isAuthentic(records)

	return map[string]any{
		"status":             "success",
		"product_id":         productID,
		"total_records":      len(records),
		"blockchain_records": records,
		"timeline":           timeline,
		"smart_contracts":    contracts,
		"authenticity": map[string]any{
			"is_authentic":      authentic,
			"verified_records":  len(records),
			"blockchain_blocks": s.engine.ChainInfo().TotalBlocks,
		},
	}, nil
}

// VerifyProductAuthenticity checks that a product has at least one persisted
// record and that every record carries a hash. The report lists the stage
// values the records cover, the chain length and the first and last record
// timestamps.
func (s *Service) VerifyProductAuthenticity(ctx context.Context, productID string) (map[string]any, error) {
	records, err := s.store.Find(ctx, state.TransactionsCollection,
		state.Filter{"product_id": productID},
		state.FindOptions{SortField: "timestamp", Ascending: true})
	if err != nil {
		return nil, fmt.Errorf("failed to verify product %s: %w", productID, err)
	}

	stages := make([]string, 0, len(records))
	for _, rec := range records {
		if stage, ok := rec["stage"].(string); ok {
			stages = append(stages, stage)
		}
	}

	result := map[string]any{
		"status":            "success",
		"product_id":        productID,
		"is_authentic":      isAuthentic(records),
		"total_records":     len(records),
		"stages":            stages,
		"blockchain_blocks": s.engine.ChainInfo().TotalBlocks,
	}
	if len(records) > 0 {
		result["first_recorded"] = records[0]["timestamp"]
		result["last_recorded"] = records[len(records)-1]["timestamp"]
	}
	return result, nil
}

// isAuthentic holds when the record set is non-empty and every record has a
// non-empty hash.
func isAuthentic(records []map[string]any) bool {
	if len(records) == 0 {
		return false
	}
	for _, rec := range records {
		hash, ok := rec["hash"].(string)
		if !ok || hash == "" {
			return false
		}
	}
	return true
}

// GetContractStatus returns a contract snapshot with its compliance summary.
// The live registry is authoritative; when the contract is only present in
// the store (a previous process registered it), the persisted document is
// returned without a compliance summary and the response is flagged
// degraded.
func (s *Service) GetContractStatus(ctx context.Context, contractID string) (map[string]any, error) {
	if doc, summary, ok := s.engine.ContractStatus(contractID); ok {
		return map[string]any{
			"status":     "success",
			"contract":   doc,
			"compliance": summary,
		}, nil
	}

	doc, err := s.store.FindOne(ctx, state.ContractsCollection, state.Filter{"contract_id": contractID})
	if errors.Is(err, state.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, contractID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load contract %s: %w", contractID, err)
	}

	logger.Warnf("Contract %s served from store only, no live compliance view", contractID)
	return map[string]any{
		"status":   "success",
		"contract": doc,
		"degraded": true,
	}, nil
}

// GetBlockchainStats reports the ledger's shape and activity: chain length,
// persisted document counts, the pending pool, accumulated penalties across
// all contracts and the distribution of records per stage.
func (s *Service) GetBlockchainStats(ctx context.Context) (map[string]any, error) {
	info := s.engine.ChainInfo()

	txCount, err := s.store.Count(ctx, state.TransactionsCollection, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	contractCount, err := s.store.Count(ctx, state.ContractsCollection, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count contracts: %w", err)
	}
	blockCount, err := s.store.Count(ctx, state.BlocksCollection, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count blocks: %w", err)
	}

	byStage, err := s.store.GroupSum(ctx, state.TransactionsCollection, "stage", "", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stage distribution: %w", err)
	}
	distribution := map[string]int64{}
	for _, bucket := range byStage {
		distribution[bucket.Key] = bucket.Count
	}

	return map[string]any{
		"status":               "success",
		"total_blocks":         info.TotalBlocks,
		"mined_blocks":         blockCount,
		"total_transactions":   txCount,
		"total_contracts":      contractCount,
		"pending_transactions": info.PendingCount,
		"total_penalties":      s.engine.TotalPenalties(),
		"genesis_hash":         info.GenesisHash,
		"current_hash":         info.CurrentHash,
		"last_block_time":      info.LastBlockTime,
		"stage_distribution":   distribution,
		"network_status":       "operational",
	}, nil
}

// GetFarmerStatistics aggregates a farmer's contracts into delivery and
// reputation figures. Reputation starts at 100 and loses one point per ten
// penalty points, floored at zero.
func (s *Service) GetFarmerStatistics(ctx context.Context, farmerID string) (map[string]any, error) {
	var (
		total, completed, active int
		penalties, quantity      float64
	)
	s.engine.ForEachContract(func(c *types.SmartContract) {
		if c.FarmerID != farmerID {
			return
		}
		total++
		switch c.Status {
		case types.ContractStatusCompleted:
			completed++
		case types.ContractStatusActive:
			active++
		}
		penalties += c.Penalties
		quantity += c.Quantity
	})

	var averagePenalty float64
	if total > 0 {
		averagePenalty = penalties / float64(total)
	}

	txCount, err := s.store.Count(ctx, state.TransactionsCollection, state.Filter{"actor_id": farmerID})
	if err != nil {
		return nil, fmt.Errorf("failed to count farmer records: %w", err)
	}

	return map[string]any{
		"status":              "success",
		"farmer_id":           farmerID,
		"total_contracts":     total,
		"active_contracts":    active,
		"completed_contracts": completed,
		"total_products":      quantity,
		"total_penalties":     penalties,
		"average_penalty":     averagePenalty,
		"records_submitted":   txCount,
		"reputation_score":    ReputationScore(penalties),
	}, nil
}

// ReputationScore maps accumulated penalties to a 0-100 reputation. Every
// ten penalty points cost one reputation point, capped so the score never
// goes negative.
func ReputationScore(totalPenalties float64) float64 {
	deduction := totalPenalties / 10
	if deduction > 100 {
		deduction = 100
	}
	return 100 - deduction
}
