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

// go/src/core/record/record.go
package types

import (
	"fmt"
	"time"

	"github.com/agrismart-core/go/src/common"
)

// RecordType classifies a ledger record.
type RecordType string

// Record type constants.
const (
	RecordTypeSmartContract    RecordType = "smart_contract"
	RecordTypePayment          RecordType = "payment"
	RecordTypeTransfer         RecordType = "transfer"
	RecordTypeVerification     RecordType = "verification"
	RecordTypeQualityAssurance RecordType = "quality_assurance"
)

// StageRecord is one immutable lifecycle event for a product. It is owned by
// the pending pool until mined, then exclusively by the block containing it.
// Never mutate a StageRecord after construction.
type StageRecord struct {
	ID           string     `json:"tx_id"`
	ProductID    string     `json:"product_id"`
	Stage        Stage      `json:"stage"`
	Actor        string     `json:"actor"`
	ActorID      string     `json:"actor_id"`
	Location     string     `json:"location"`
	Temperature  *float64   `json:"temperature"`
	Humidity     *float64   `json:"humidity"`
	QualityScore *float64   `json:"quality_score"`
	Notes        string     `json:"notes"`
	Type         RecordType `json:"tx_type"`
	Timestamp    time.Time  `json:"timestamp"`
	Hash         string     `json:"hash"`
}

// ComputeRecordHash is the pure hash function behind StageRecord: a SHA-256
// digest over the canonical serialization of the record's semantic fields.
// The timestamp is the canonical string captured at construction, so the same
// fields and timestamp always reproduce the same hash.
func ComputeRecordHash(id, productID string, stage Stage, actor, timestamp string) string {
	return common.DigestHex(map[string]any{
		"tx_id":      id,
		"product_id": productID,
		"stage":      string(stage),
		"actor":      actor,
		"timestamp":  timestamp,
	})
}

// NewStageRecord creates an immutable stage record and computes its hash.
// id: Caller-assigned transaction identifier
// productID: The product this lifecycle event belongs to
// stage: Raw stage name, validated against the closed stage set
// actor, actorID: Role and identifier of the acting party
// location: Where the event took place
// temperature, humidity, qualityScore: Optional sensor readings; qualityScore
// must fall in [0, 100] when present
// notes: Free-text annotation
// Returns an error before any state is touched when validation fails.
func NewStageRecord(id, productID, stage, actor, actorID, location string,
	temperature, humidity, qualityScore *float64, notes string) (*StageRecord, error) {
	st, err := ParseStage(stage)
	if err != nil {
		return nil, err
	}
	if qualityScore != nil && (*qualityScore < 0 || *qualityScore > 100) {
		return nil, fmt.Errorf("quality score %g out of range [0, 100]", *qualityScore)
	}

	r := &StageRecord{
		ID:           id,
		ProductID:    productID,
		Stage:        st,
		Actor:        actor,
		ActorID:      actorID,
		Location:     location,
		Temperature:  temperature,
		Humidity:     humidity,
		QualityScore: qualityScore,
		Notes:        notes,
		Type:         RecordTypeSmartContract,
		Timestamp:    time.Now().UTC(),
	}
	r.Hash = ComputeRecordHash(r.ID, r.ProductID, r.Stage, r.Actor, common.FormatTime(r.Timestamp))
	return r, nil
}

// Serialize returns the flat document form of the record for persistence and
// display, including the content hash.
func (r *StageRecord) Serialize() map[string]any {
	return map[string]any{
		"tx_id":         r.ID,
		"product_id":    r.ProductID,
		"stage":         string(r.Stage),
		"actor":         r.Actor,
		"actor_id":      r.ActorID,
		"location":      r.Location,
		"temperature":   optFloat(r.Temperature),
		"humidity":      optFloat(r.Humidity),
		"quality_score": optFloat(r.QualityScore),
		"notes":         r.Notes,
		"tx_type":       string(r.Type),
		"timestamp":     common.FormatTime(r.Timestamp),
		"hash":          r.Hash,
	}
}

// optFloat converts an optional reading to its document representation.
func optFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
