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

// go/src/state/leveldb.go
package state

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/minio/highwayhash"
	"github.com/syndtr/goleveldb/leveldb"
	ldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	logger "github.com/agrismart-core/go/src/log"
)

// Key layout inside LevelDB. Document keys carry a zero-padded per-collection
// sequence so iteration order equals insertion order.
const (
	docKeyPrefix  = "doc/"
	metaChecksum  = "meta/hhkey"
	metaSeqPrefix = "meta/seq/"
)

// envelope wraps every persisted document with a HighwayHash checksum of its
// payload. A mismatch on read is logged, never fatal.
type envelope struct {
	Checksum uint64          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

// LevelStore is the default document store backend, a LevelDB database with
// one key range per collection.
type LevelStore struct {
	db    *leveldb.DB
	hhKey []byte // 32-byte HighwayHash key, persisted across restarts

	mu  sync.Mutex // guards seq
	seq map[string]uint64
}

// NewLevelStore opens (or creates) a LevelDB-backed document store at path.
func NewLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
	}
	return initLevelStore(db)
}

// NewMemoryStore opens a document store on in-memory LevelDB storage.
// Intended for tests and ephemeral processes.
func NewMemoryStore() (*LevelStore, error) {
	db, err := leveldb.Open(ldbstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory leveldb: %w", err)
	}
	return initLevelStore(db)
}

// initLevelStore loads or creates the store's checksum key.
func initLevelStore(db *leveldb.DB) (*LevelStore, error) {
	s := &LevelStore{
		db:  db,
		seq: make(map[string]uint64),
	}

	key, err := db.Get([]byte(metaChecksum), nil)
	switch {
	case err == leveldb.ErrNotFound:
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to generate checksum key: %w", err)
		}
		if err := db.Put([]byte(metaChecksum), key, nil); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to persist checksum key: %w", err)
		}
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("failed to load checksum key: %w", err)
	}
	s.hhKey = key
	return s, nil
}

// InsertOne appends a document to the collection.
func (s *LevelStore) InsertOne(ctx context.Context, collection string, doc map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	env, err := json.Marshal(envelope{
		Checksum: highwayhash.Sum64(payload, s.hhKey),
		Payload:  payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	seq, err := s.nextSeq(collection)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%s/%016d", docKeyPrefix, collection, seq)
	if err := s.db.Put([]byte(key), env, nil); err != nil {
		return fmt.Errorf("failed to store document in %s: %w", collection, err)
	}
	return nil
}

// nextSeq allocates the next insertion sequence for a collection and persists
// the counter so reopened stores keep appending past existing documents.
func (s *LevelStore) nextSeq(collection string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, loaded := s.seq[collection]; !loaded {
		raw, err := s.db.Get([]byte(metaSeqPrefix+collection), nil)
		switch {
		case err == leveldb.ErrNotFound:
			s.seq[collection] = 0
		case err != nil:
			return 0, fmt.Errorf("failed to load sequence for %s: %w", collection, err)
		default:
			var n uint64
			if _, err := fmt.Sscanf(string(raw), "%d", &n); err != nil {
				return 0, fmt.Errorf("corrupted sequence for %s: %w", collection, err)
			}
			s.seq[collection] = n
		}
	}

	seq := s.seq[collection]
	s.seq[collection] = seq + 1
	if err := s.db.Put([]byte(metaSeqPrefix+collection), []byte(fmt.Sprintf("%d", seq+1)), nil); err != nil {
		return 0, fmt.Errorf("failed to persist sequence for %s: %w", collection, err)
	}
	return seq, nil
}

// scan walks a collection in insertion order, verifying checksums as it goes.
func (s *LevelStore) scan(ctx context.Context, collection string, visit func(doc map[string]any) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := []byte(docKeyPrefix + collection + "/")
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		var env envelope
		if err := json.Unmarshal(iter.Value(), &env); err != nil {
			logger.Warnf("state: skipping unreadable document %s: %v", iter.Key(), err)
			continue
		}
		if got := highwayhash.Sum64(env.Payload, s.hhKey); got != env.Checksum {
			logger.Warnf("state: checksum mismatch on %s (stored %d, computed %d)", iter.Key(), env.Checksum, got)
		}
		var doc map[string]any
		if err := json.Unmarshal(env.Payload, &doc); err != nil {
			logger.Warnf("state: skipping malformed document %s: %v", iter.Key(), err)
			continue
		}
		if !visit(doc) {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("failed to scan %s: %w", collection, err)
	}
	return nil
}

// FindOne returns the first document matching filter, or ErrNotFound.
func (s *LevelStore) FindOne(ctx context.Context, collection string, filter Filter) (map[string]any, error) {
	docs, err := s.Find(ctx, collection, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// Find returns documents matching filter, sorted and limited per opts.
func (s *LevelStore) Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]map[string]any, error) {
	var docs []map[string]any
	err := s.scan(ctx, collection, func(doc map[string]any) bool {
		if matchFilter(doc, filter) {
			docs = append(docs, doc)
			// Without a sort the scan order is final, so the limit can stop
			// the walk early.
			if opts.SortField == "" && opts.Limit > 0 && len(docs) == opts.Limit {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	if opts.SortField != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			cmp := compareValues(docs[i][opts.SortField], docs[j][opts.SortField])
			if opts.Ascending {
				return cmp < 0
			}
			return cmp > 0
		})
	}
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docs, nil
}

// Count returns the number of documents matching filter.
func (s *LevelStore) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	var n int64
	err := s.scan(ctx, collection, func(doc map[string]any) bool {
		if matchFilter(doc, filter) {
			n++
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// GroupSum buckets matching documents by groupField, counting each bucket and
// summing sumField when given.
func (s *LevelStore) GroupSum(ctx context.Context, collection, groupField, sumField string, filter Filter) ([]GroupResult, error) {
	buckets := make(map[string]*GroupResult)
	var order []string
	err := s.scan(ctx, collection, func(doc map[string]any) bool {
		if !matchFilter(doc, filter) {
			return true
		}
		key := fmt.Sprintf("%v", doc[groupField])
		b, ok := buckets[key]
		if !ok {
			b = &GroupResult{Key: key}
			buckets[key] = b
			order = append(order, key)
		}
		b.Count++
		if sumField != "" {
			if v, ok := toFloat(doc[sumField]); ok {
				b.Sum += v
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	out := make([]GroupResult, 0, len(order))
	for _, key := range order {
		out = append(out, *buckets[key])
	}
	return out, nil
}

// Close releases the underlying LevelDB handle.
func (s *LevelStore) Close() error {
	return s.db.Close()
}

// matchFilter reports whether doc satisfies every equality in filter.
func matchFilter(doc map[string]any, filter Filter) bool {
	for field, want := range filter {
		if !eqValue(doc[field], want) {
			return false
		}
	}
	return true
}

// eqValue compares document values across the numeric types a JSON round
// trip produces.
func eqValue(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return a == b
}

// compareValues orders two document values: numbers numerically, everything
// else by string form. Missing values sort first.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// toFloat widens any numeric document value to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
