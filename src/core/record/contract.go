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

// go/src/core/record/contract.go
package types

import (
	"fmt"
	"time"

	"github.com/agrismart-core/go/src/common"
)

// Default acceptance ranges applied when a delivery agreement does not
// negotiate its own.
var (
	DefaultTemperatureRange = [2]float64{15, 25}
	DefaultHumidityRange    = [2]float64{40, 70}
)

// Penalty amounts per violated rule. Lateness accrues per whole day.
const (
	penaltyTemperature = 100.0
	penaltyHumidity    = 100.0
	penaltyQuality     = 200.0
	penaltyLatePerDay  = 50.0

	// minQualityScore is the lowest acceptable quality check result.
	minQualityScore = 70.0
)

// Contract status values. Terminal states are reached only by external status
// changes; the ledger itself never deletes a contract.
const (
	ContractStatusActive    = "active"
	ContractStatusCompleted = "completed"
)

// SmartContract tracks one product's expected delivery terms and the
// violations accumulated against them. It is mutable, but every mutation goes
// through the ledger engine's mutex; the type itself carries no lock.
type SmartContract struct {
	ContractID       string
	ProductID        string
	FarmerID         string
	FarmerName       string
	ProductType      string
	Quantity         float64
	Unit             string
	ExpectedDelivery time.Time
	BuyerID          string
	Price            float64
	TemperatureRange [2]float64
	HumidityRange    [2]float64
	CreatedAt        time.Time
	Status           string
	StagesCompleted  []Stage
	ConditionsMet    bool
	Penalties        float64
	ContractHash     string
}

// VerificationResult reports the outcome of one condition check.
// ConditionsMet reflects only this call; Penalties is the contract's running
// total including every earlier violation.
type VerificationResult struct {
	ConditionsMet bool     `json:"conditions_met"`
	Violations    []string `json:"violations"`
	Penalties     float64  `json:"penalties"`
	Stage         Stage    `json:"stage"`
}

// ComputeContractHash is the pure hash function behind SmartContract.
func ComputeContractHash(contractID, productID, farmerID, createdAt string) string {
	return common.DigestHex(map[string]any{
		"contract_id": contractID,
		"product_id":  productID,
		"farmer_id":   farmerID,
		"created_at":  createdAt,
	})
}

// NewSmartContract creates a compliance contract for one product/delivery
// agreement and computes its hash at construction.
// contractID: Unique contract identifier
// productID, farmerID, farmerName, productType: The agreement's subject
// quantity: Agreed amount, must be positive
// unit: Unit of the quantity (kg, tonnes, ...)
// expectedDelivery: Deadline after which delivered stages accrue lateness
// buyerID: Optional buyer, empty when unassigned
// price: Agreed price, must not be negative
// temperatureRange, humidityRange: Acceptance windows for sensor readings
func NewSmartContract(contractID, productID, farmerID, farmerName, productType string,
	quantity float64, unit string, expectedDelivery time.Time, buyerID string, price float64,
	temperatureRange, humidityRange [2]float64) (*SmartContract, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("contract quantity must be positive, got %g", quantity)
	}
	if price < 0 {
		return nil, fmt.Errorf("contract price must not be negative, got %g", price)
	}

	c := &SmartContract{
		ContractID:       contractID,
		ProductID:        productID,
		FarmerID:         farmerID,
		FarmerName:       farmerName,
		ProductType:      productType,
		Quantity:         quantity,
		Unit:             unit,
		ExpectedDelivery: expectedDelivery.UTC(),
		BuyerID:          buyerID,
		Price:            price,
		TemperatureRange: temperatureRange,
		HumidityRange:    humidityRange,
		CreatedAt:        time.Now().UTC(),
		Status:           ContractStatusActive,
		ConditionsMet:    true,
	}
	c.ContractHash = ComputeContractHash(c.ContractID, c.ProductID, c.FarmerID, common.FormatTime(c.CreatedAt))
	return c, nil
}

// VerifyConditions evaluates the contract's rules against one stage event.
// Each violated rule appends to the contract's running penalty total; the
// total never resets. ConditionsMet, by contrast, reflects only this call: a
// clean stage flips it back to true even while penalties remain nonzero.
// That asymmetry is intentional and load-bearing for downstream statistics.
func (c *SmartContract) VerifyConditions(stage Stage, temperature, humidity, qualityScore *float64) *VerificationResult {
	violations := []string{}

	if temperature != nil {
		if *temperature < c.TemperatureRange[0] || *temperature > c.TemperatureRange[1] {
			violations = append(violations, fmt.Sprintf("Temperature %g°C out of range [%g, %g]",
				*temperature, c.TemperatureRange[0], c.TemperatureRange[1]))
			c.Penalties += penaltyTemperature
		}
	}

	if humidity != nil {
		if *humidity < c.HumidityRange[0] || *humidity > c.HumidityRange[1] {
			violations = append(violations, fmt.Sprintf("Humidity %g%% out of range [%g, %g]",
				*humidity, c.HumidityRange[0], c.HumidityRange[1]))
			c.Penalties += penaltyHumidity
		}
	}

	if qualityScore != nil && *qualityScore < minQualityScore {
		violations = append(violations, fmt.Sprintf("Quality score %g/100 below minimum %g",
			*qualityScore, minQualityScore))
		c.Penalties += penaltyQuality
	}

	if stage == StageDelivered {
		now := time.Now().UTC()
		if now.After(c.ExpectedDelivery) {
			lateDays := int(now.Sub(c.ExpectedDelivery).Hours() / 24)
			violations = append(violations, fmt.Sprintf("Delivered %d days late", lateDays))
			c.Penalties += penaltyLatePerDay * float64(lateDays)
		}
	}

	c.ConditionsMet = len(violations) == 0

	return &VerificationResult{
		ConditionsMet: c.ConditionsMet,
		Violations:    violations,
		Penalties:     c.Penalties,
		Stage:         stage,
	}
}

// MarkStageCompleted records a lifecycle stage as completed. Idempotent:
// re-recording a stage leaves the completed set unchanged.
func (c *SmartContract) MarkStageCompleted(stage Stage) {
	for _, s := range c.StagesCompleted {
		if s == stage {
			return
		}
	}
	c.StagesCompleted = append(c.StagesCompleted, stage)
}

// Serialize returns the flat document form of the contract including the
// completed-stage list.
func (c *SmartContract) Serialize() map[string]any {
	stages := make([]string, len(c.StagesCompleted))
	for i, s := range c.StagesCompleted {
		stages[i] = string(s)
	}
	var buyer any
	if c.BuyerID != "" {
		buyer = c.BuyerID
	}
	return map[string]any{
		"contract_id":            c.ContractID,
		"product_id":             c.ProductID,
		"farmer_id":              c.FarmerID,
		"farmer_name":            c.FarmerName,
		"product_type":           c.ProductType,
		"quantity":               c.Quantity,
		"unit":                   c.Unit,
		"expected_delivery_date": common.FormatTime(c.ExpectedDelivery),
		"buyer_id":               buyer,
		"price":                  c.Price,
		"temperature_range":      []float64{c.TemperatureRange[0], c.TemperatureRange[1]},
		"humidity_range":         []float64{c.HumidityRange[0], c.HumidityRange[1]},
		"created_at":             common.FormatTime(c.CreatedAt),
		"status":                 c.Status,
		"stages_completed":       stages,
		"conditions_met":         c.ConditionsMet,
		"penalties":              c.Penalties,
		"contract_hash":          c.ContractHash,
	}
}
