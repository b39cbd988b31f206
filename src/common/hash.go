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

// go/src/common/hash.go
package common

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// ZeroHash is the previous-hash value carried by the genesis block:
// 64 zero characters, the width of a hex-encoded SHA-256 digest.
var ZeroHash = strings.Repeat("0", 64)

// CanonicalJSON serializes fields deterministically: encoding/json writes map
// keys in sorted order at every nesting level, so the same field values always
// produce the same byte sequence.
func CanonicalJSON(fields map[string]any) []byte {
	data, err := json.Marshal(fields)
	if err != nil {
		// Only non-serializable values can end up here; ledger fields are
		// strings, numbers, nils and nested maps of the same.
		panic(err)
	}
	return data
}

// DigestHex computes the hex-encoded SHA-256 digest of the canonical
// serialization of fields. Same fields in, same digest out.
func DigestHex(fields map[string]any) string {
	sum := sha256.Sum256(CanonicalJSON(fields))
	return hex.EncodeToString(sum[:])
}

// TimeLayout is the canonical timestamp form used inside hash preimages and
// persisted documents. Fixed-width nanoseconds keep the string order of
// timestamps identical to their chronological order, which the store's
// sort-by-timestamp queries rely on.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders a timestamp in the canonical form. UTC keeps digests
// host-independent.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
