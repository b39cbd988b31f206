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

// go/src/core/record/block.go
package types

import (
	"time"

	"github.com/agrismart-core/go/src/common"
)

// Block is an immutable, hash-linked batch of stage records. Index 0 is the
// genesis block, whose previous hash is the 64-zero sentinel. The nonce is
// carried in the hash preimage but never searched; this ledger seals blocks
// without proof-of-work.
type Block struct {
	Index        uint64         `json:"block_index"`
	Transactions []*StageRecord `json:"transactions"`
	PrevHash     string         `json:"previous_hash"`
	Nonce        uint64         `json:"nonce"`
	MerkleRoot   string         `json:"merkle_root"`
	Timestamp    time.Time      `json:"timestamp"`
	Hash         string         `json:"hash"`
}

// ComputeBlockHash is the pure hash function behind Block: a SHA-256 digest
// over the canonical serialization of the block's index, previous hash,
// timestamp, serialized transactions and nonce. Re-hashing the same fields
// from a serialized block reproduces the stored hash bit-for-bit.
func ComputeBlockHash(index uint64, prevHash, timestamp string, transactions []map[string]any, nonce uint64) string {
	return common.DigestHex(map[string]any{
		"block_index":   index,
		"previous_hash": prevHash,
		"timestamp":     timestamp,
		"transactions":  transactions,
		"nonce":         nonce,
	})
}

// NewBlock creates a block over the given records, links it to the previous
// block's hash and computes its own hash immediately. The block must not be
// mutated afterwards.
// index: Zero-based position in the chain
// transactions: The records sealed into this block, in arrival order
// prevHash: Hash of the chain's current tail
// nonce: Carried verbatim into the hash preimage
func NewBlock(index uint64, transactions []*StageRecord, prevHash string, nonce uint64) *Block {
	b := &Block{
		Index:        index,
		Transactions: transactions,
		PrevHash:     prevHash,
		Nonce:        nonce,
		MerkleRoot:   TransactionsRoot(transactions),
		Timestamp:    time.Now().UTC(),
	}
	b.Hash = ComputeBlockHash(b.Index, b.PrevHash, common.FormatTime(b.Timestamp), b.serializeTransactions(), b.Nonce)
	return b
}

// serializeTransactions renders the block's records in document form, the
// exact shape fed to the hash preimage and to persistence.
func (b *Block) serializeTransactions() []map[string]any {
	out := make([]map[string]any, len(b.Transactions))
	for i, tx := range b.Transactions {
		out[i] = tx.Serialize()
	}
	return out
}

// Serialize returns the flat document form of the block, nested transaction
// serializations included.
func (b *Block) Serialize() map[string]any {
	return map[string]any{
		"block_index":   b.Index,
		"previous_hash": b.PrevHash,
		"timestamp":     common.FormatTime(b.Timestamp),
		"transactions":  b.serializeTransactions(),
		"nonce":         b.Nonce,
		"merkle_root":   b.MerkleRoot,
		"hash":          b.Hash,
	}
}
