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

// go/src/core/record/stage.go
package types

import "fmt"

// Stage identifies one step of a product's lifecycle. The set is closed:
// values outside it are rejected at record construction instead of being
// accepted as free text.
type Stage string

// Lifecycle stages of an agricultural product, in order.
const (
	StagePlanted        Stage = "planted"
	StageGrowing        Stage = "growing"
	StageHarvested      Stage = "harvested"
	StageQualityChecked Stage = "quality_checked"
	StageProcessed      Stage = "processed"
	StagePackaged       Stage = "packaged"
	StageShipped        Stage = "shipped"
	StageInTransit      Stage = "in_transit"
	StageDelivered      Stage = "delivered"
	StageSold           Stage = "sold"
)

// allStages lists every valid stage in lifecycle order.
var allStages = []Stage{
	StagePlanted,
	StageGrowing,
	StageHarvested,
	StageQualityChecked,
	StageProcessed,
	StagePackaged,
	StageShipped,
	StageInTransit,
	StageDelivered,
	StageSold,
}

// ParseStage validates a raw stage name against the closed set.
// name: The raw stage string supplied by a caller
// Returns the typed Stage or an error for unrecognized values.
func ParseStage(name string) (Stage, error) {
	for _, s := range allStages {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown product stage %q", name)
}

// Stages returns a copy of the full lifecycle stage set in order.
func Stages() []Stage {
	out := make([]Stage, len(allStages))
	copy(out, allStages)
	return out
}

// StageCount returns the size of the closed stage set.
// Used as the denominator of contract completion percentages.
func StageCount() int {
	return len(allStages)
}
