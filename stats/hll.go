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

// Package stats implements the per-column statistics the optimizer
// consults for cardinality estimation and selectivity: a HyperLogLog
// distinct-count sketch and a streaming quantile histogram, both
// merge-safe and maintained incrementally on insert (spec.md §3, §4.6).
//
// No HyperLogLog or streaming-quantile library appears anywhere in the
// retrieval pack, so both sketches are implemented directly on top of the
// xxhash mixer already wired into kernel — see DESIGN.md.
package stats

import (
	"math"
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

// hllPrecision fixes the number of registers to 2^hllPrecision = 2048,
// a standard choice trading memory for the ~1.04/sqrt(m) relative error.
const hllPrecision = 11

// HyperLogLog is a mergeable distinct-count sketch over string-encoded
// column values.
type HyperLogLog struct {
	registers []uint8
}

func NewHyperLogLog() *HyperLogLog {
	return &HyperLogLog{registers: make([]uint8, 1<<hllPrecision)}
}

// Add folds one value (its byte encoding, as produced by encodeForStats)
// into the sketch.
func (h *HyperLogLog) Add(value []byte) {
	hash := xxhash.Sum64(value)
	idx := hash >> (64 - hllPrecision)
	rest := hash<<hllPrecision | (1 << (hllPrecision - 1))
	rho := uint8(bits.LeadingZeros64(rest)) + 1
	if rho > h.registers[idx] {
		h.registers[idx] = rho
	}
}

// Merge combines another sketch's registers into h, taking the max of each.
func (h *HyperLogLog) Merge(other *HyperLogLog) {
	for i, r := range other.registers {
		if r > h.registers[i] {
			h.registers[i] = r
		}
	}
}

// Estimate returns the approximate number of distinct values added.
func (h *HyperLogLog) Estimate() float64 {
	m := float64(len(h.registers))
	sum := 0.0
	zeros := 0
	for _, r := range h.registers {
		sum += 1.0 / math.Pow(2, float64(r))
		if r == 0 {
			zeros++
		}
	}
	alpha := 0.7213 / (1 + 1.079/m)
	estimate := alpha * m * m / sum
	// small-range correction
	if estimate <= 2.5*m && zeros > 0 {
		estimate = m * math.Log(m/float64(zeros))
	}
	return estimate
}

func (h *HyperLogLog) Clone() *HyperLogLog {
	out := &HyperLogLog{registers: make([]uint8, len(h.registers))}
	copy(out.registers, h.registers)
	return out
}
