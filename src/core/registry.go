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

// go/src/core/registry.go
package core

import (
	"fmt"

	"github.com/elliotchance/orderedmap/v2"

	types "github.com/agrismart-core/go/src/core/record"
)

// ContractRegistry owns every live smart contract of a ledger process, keyed
// by contract id. Iteration follows registration order so statistics stay
// deterministic. The registry is process-scoped: contracts are write-through
// persisted on creation but never rehydrated from the store after a restart.
//
// The registry carries no lock of its own; every access is serialized through
// the owning engine's mutex.
type ContractRegistry struct {
	contracts *orderedmap.OrderedMap[string, *types.SmartContract]
}

// NewContractRegistry creates an empty registry.
func NewContractRegistry() *ContractRegistry {
	return &ContractRegistry{
		contracts: orderedmap.NewOrderedMap[string, *types.SmartContract](),
	}
}

// Register adds a contract. Ids are unique within a process lifetime.
func (r *ContractRegistry) Register(c *types.SmartContract) error {
	if _, exists := r.contracts.Get(c.ContractID); exists {
		return fmt.Errorf("contract %s already registered", c.ContractID)
	}
	r.contracts.Set(c.ContractID, c)
	return nil
}

// Get returns the contract for an id, if registered.
func (r *ContractRegistry) Get(contractID string) (*types.SmartContract, bool) {
	return r.contracts.Get(contractID)
}

// Len returns the number of registered contracts.
func (r *ContractRegistry) Len() int {
	return r.contracts.Len()
}

// ForEach visits every contract in registration order.
func (r *ContractRegistry) ForEach(visit func(c *types.SmartContract)) {
	for el := r.contracts.Front(); el != nil; el = el.Next() {
		visit(el.Value)
	}
}
