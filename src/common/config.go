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

// go/src/common/config.go
package common

import "path/filepath"

const (
	// DataDir is the unified data directory for a ledger process.
	DataDir = "data"
)

// GetLedgerDataDir returns the standardized data directory for a named ledger
// instance.
func GetLedgerDataDir(name string) string {
	return filepath.Join(DataDir, name)
}

// GetLevelDBPath returns the standardized LevelDB path for a named ledger
// instance.
func GetLevelDBPath(name string) string {
	return filepath.Join(GetLedgerDataDir(name), "leveldb")
}
