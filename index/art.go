// Copyright 2024 The Castor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package index implements the secondary index: a radix tree keyed by the
// lexicographic byte encoding of one or more indexed columns followed by
// the row's $tid (spec.md §3, §4.4).
//
// The tree here is a plain 256-ary byte trie rather than a node-growing
// ART (node4/16/48/256 as in the Leis et al. paper the original engine
// cites) — each internal node holds a sparse map of its present children
// instead of fixed-size arrays that grow with fan-out. It gives the same
// insert/get/range-scan/delete contract and the same key space; what it
// gives up is the paper's cache-line-packed node layout, which has no
// bearing on correctness. See DESIGN.md.
package index

// Art is an ordered byte-keyed map from index key to row $tid.
type Art struct {
	root *artNode
}

type artNode struct {
	children map[byte]*artNode
	value    int64
	hasValue bool
}

func newArtNode() *artNode {
	return &artNode{children: make(map[byte]*artNode)}
}

func NewArt() *Art {
	return &Art{root: newArtNode()}
}

// Insert stores value under key, overwriting any previous value at that
// exact key (spec.md §4.4 — equal index keys differ by their trailing
// $tid byte-encoding, so collisions only happen on exact re-insertion).
func (t *Art) Insert(key []byte, value int64) {
	n := t.root
	for _, b := range key {
		child, ok := n.children[b]
		if !ok {
			child = newArtNode()
			n.children[b] = child
		}
		n = child
	}
	n.value = value
	n.hasValue = true
}

// Get returns the value stored at key, if any.
func (t *Art) Get(key []byte) (int64, bool) {
	n := t.root
	for _, b := range key {
		child, ok := n.children[b]
		if !ok {
			return 0, false
		}
		n = child
	}
	if !n.hasValue {
		return 0, false
	}
	return n.value, true
}

// Delete removes the value at key, if present, returning whether it was
// there. Nodes are not pruned on delete; the tree only grows, which is
// fine for a demonstration secondary index backing a process-lifetime
// table (spec.md §4.4 does not require reclaiming trie nodes).
func (t *Art) Delete(key []byte) bool {
	n := t.root
	for _, b := range key {
		child, ok := n.children[b]
		if !ok {
			return false
		}
		n = child
	}
	if !n.hasValue {
		return false
	}
	n.hasValue = false
	return true
}

// Entry is one (key, value) pair returned by a range scan.
type Entry struct {
	Key   []byte
	Value int64
}

// RangeScan returns every entry with key in [start, end), in lexicographic
// key order, matching the half-open range contract of spec.md §4.4.
func (t *Art) RangeScan(start, end []byte) []Entry {
	var out []Entry
	var walk func(n *artNode, prefix []byte)
	walk = func(n *artNode, prefix []byte) {
		if n.hasValue && keyInRange(prefix, start, end) {
			key := make([]byte, len(prefix))
			copy(key, prefix)
			out = append(out, Entry{Key: key, Value: n.value})
		}
		for _, b := range sortedKeys(n.children) {
			walk(n.children[b], append(prefix, b))
		}
	}
	walk(t.root, nil)
	return out
}

func keyInRange(key, start, end []byte) bool {
	if start != nil && compareBytes(key, start) < 0 {
		return false
	}
	if end != nil && compareBytes(key, end) >= 0 {
		return false
	}
	return true
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func sortedKeys(m map[byte]*artNode) []byte {
	keys := make([]byte, 0, len(m))
	for b := range m {
		keys = append(keys, b)
	}
	// Insertion sort: at most 256 entries, and usually far fewer, so this
	// is cheaper than importing sort for a byte slice.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// UpperBound returns the lexicographically smallest key strictly greater
// than every key with prefix `prefix`: incrementing the last byte that
// isn't already 0xFF, carrying otherwise, and appending 0xFF if the whole
// prefix is 0xFF (spec.md §4.4, ported from the original engine's
// byte_key::upper_bound).
func UpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	i := len(end)
	for {
		if i == 0 {
			return append(append([]byte(nil), prefix...), 0xFF)
		}
		if end[i-1] < 0xFF {
			end[i-1]++
			return end
		}
		end[i-1] = 0
		i--
	}
}
