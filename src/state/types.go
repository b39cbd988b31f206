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

// go/src/state/types.go
package state

import (
	"context"
	"errors"
)

// Collection names of the persisted ledger layout. Documents are keyed by
// their natural business id fields inside the document; the store assigns
// opaque storage keys.
const (
	ContractsCollection    = "smart_contracts"
	TransactionsCollection = "blockchain_transactions"
	BlocksCollection       = "blockchain_blocks"
)

// ErrNotFound reports that no document matched a FindOne filter.
var ErrNotFound = errors.New("state: document not found")

// Filter matches documents by field equality. An empty filter matches all.
type Filter map[string]any

// FindOptions shapes a Find result set.
type FindOptions struct {
	SortField string // field to sort by; empty keeps insertion order
	Ascending bool   // sort direction when SortField is set
	Limit     int    // maximum documents returned; 0 means no limit
}

// GroupResult is one bucket of an aggregate-by-group operation.
type GroupResult struct {
	Key   string  `json:"key"`
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
}

// Store is the persistent document backend the ledger appends to and queries.
// It is an append/query surface, never a transactional engine: callers must
// not rely on cross-document atomicity. Implementations are safe for
// concurrent use and enforce their own I/O timeouts.
type Store interface {
	// InsertOne appends a document to a named collection.
	InsertOne(ctx context.Context, collection string, doc map[string]any) error

	// FindOne returns the first document matching filter, or ErrNotFound.
	FindOne(ctx context.Context, collection string, filter Filter) (map[string]any, error)

	// Find returns documents matching filter, sorted and limited per opts.
	Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]map[string]any, error)

	// Count returns the number of documents matching filter.
	Count(ctx context.Context, collection string, filter Filter) (int64, error)

	// GroupSum buckets matching documents by groupField and, when sumField is
	// non-empty, sums that field per bucket.
	GroupSum(ctx context.Context, collection, groupField, sumField string, filter Filter) ([]GroupResult, error)

	// Close releases backend resources.
	Close() error
}
