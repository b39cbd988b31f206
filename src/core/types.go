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

// go/src/core/types.go
package core

import (
	"sync"
	"time"

	types "github.com/agrismart-core/go/src/core/record"
	"github.com/agrismart-core/go/src/state"
)

// MiningThreshold is the pending-pool size that triggers an automatic,
// synchronous mine inside RecordStage.
const MiningThreshold = 5

// LedgerEngine is the single mutation surface of the ledger. It owns the
// chain, the pending pool and the contract registry for the lifetime of the
// process; every state transition is serialized through its mutex. Store I/O
// is issued after the in-memory transition is finalized and outside the lock,
// so a reader can never observe a persisted block whose pending-pool clear
// has not yet happened in memory.
type LedgerEngine struct {
	store    state.Store
	registry *ContractRegistry

	chain   []*types.Block
	pending []*types.StageRecord
	lock    sync.RWMutex

	// blockFeed receives every mined block, best effort. May be nil.
	blockFeed chan<- *types.Block
}

// ContractResult is the caller-facing outcome of CreateContract.
type ContractResult struct {
	Status     string         `json:"status"`
	Message    string         `json:"message"`
	ContractID string         `json:"contract_id"`
	Contract   map[string]any `json:"contract"`
}

// StageResult is the caller-facing outcome of RecordStage. BlockIndex is the
// chain's tail index at call time, which is not necessarily the index of the
// block the record will ultimately be sealed into.
type StageResult struct {
	Status          string                    `json:"status"`
	Message         string                    `json:"message"`
	TransactionID   string                    `json:"transaction_id"`
	TransactionHash string                    `json:"transaction_hash"`
	Stage           types.Stage               `json:"stage"`
	Verification    *types.VerificationResult `json:"verification,omitempty"`
	BlockIndex      uint64                    `json:"block_index"`
}

// MineResult is the caller-facing outcome of a successful Mine.
type MineResult struct {
	BlockIndex        uint64 `json:"block_index"`
	BlockHash         string `json:"block_hash"`
	TransactionsCount int    `json:"transactions_count"`
}

// ChainInfo is a consistent snapshot of the chain's shape.
type ChainInfo struct {
	TotalBlocks   int
	PendingCount  int
	GenesisHash   string
	CurrentHash   string
	LastBlockTime time.Time
}

// ComplianceSummary condenses a contract's compliance state. ConditionsMet
// reflects the contract's most recent condition check only; TotalPenalties is
// all-time cumulative.
type ComplianceSummary struct {
	ConditionsMet        bool    `json:"conditions_met"`
	TotalPenalties       float64 `json:"total_penalties"`
	StagesCompleted      int     `json:"stages_completed"`
	TotalStages          int     `json:"total_stages"`
	CompletionPercentage float64 `json:"completion_percentage"`
}
