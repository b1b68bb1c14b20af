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

package index

import (
	"encoding/binary"
	"math"

	"github.com/castorsql/castor/kernel"
)

// EncodeRow appends the byte-key encoding of row i of every column in
// cols, in order, to dst and returns the extended slice. The encoding
// preserves each column's native ordering when compared lexicographically
// as bytes (spec.md §3):
//
//	bool      1 byte: 0 = null, 1 = false, 2 = true
//	i64/date/timestamp  8 (or 4 for date) bytes, big-endian, sign bit flipped
//	f64       8 bytes, sign bit flipped, and if the original was negative
//	          every bit flipped (so negative values sort before positive
//	          ones, and more-negative sorts before less-negative)
//	string    raw UTF-8 bytes + a 0x00 terminator (so no key is a prefix
//	          of another)
//	null      the column kind's minimum-value sentinel; for integers and
//	          dates it is followed by a 0x00 byte while a real MinInt64
//	          (MinInt32 for dates) is followed by 0x01, so null sorts just
//	          below the minimum value and never equals it
//	          (ART, section IV.B.e)
func EncodeRow(dst []byte, cols []kernel.Array, i int) []byte {
	for _, col := range cols {
		dst = encodeValue(dst, col, i)
	}
	return dst
}

func encodeValue(dst []byte, col kernel.Array, i int) []byte {
	switch arr := col.(type) {
	case *kernel.BoolArray:
		v, valid := arr.Get(i)
		switch {
		case !valid:
			return append(dst, 0)
		case !v:
			return append(dst, 1)
		default:
			return append(dst, 2)
		}
	case *kernel.Int64Array:
		switch arr.Kind() {
		case kernel.Date:
			v, valid := arr.Get(i)
			if !valid {
				dst = encodeInt32(dst, math.MinInt32)
				return append(dst, 0)
			}
			dst = encodeInt32(dst, int32(v))
			if int32(v) == math.MinInt32 {
				dst = append(dst, 1)
			}
			return dst
		default:
			v, valid := arr.Get(i)
			if !valid {
				dst = encodeInt64(dst, math.MinInt64)
				return append(dst, 0)
			}
			dst = encodeInt64(dst, v)
			if v == math.MinInt64 {
				dst = append(dst, 1)
			}
			return dst
		}
	case *kernel.Float64Array:
		v, valid := arr.Get(i)
		if !valid {
			return encodeFloat64(dst, -math.MaxFloat64)
		}
		return encodeFloat64(dst, v)
	case *kernel.StringArray:
		v, valid := arr.Get(i)
		if !valid {
			return append(dst, 0)
		}
		dst = append(dst, []byte(v)...)
		return append(dst, 0)
	}
	return dst
}

func encodeInt64(dst []byte, v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v)^(uint64(1)<<63))
	return append(dst, buf[:]...)
}

func encodeInt32(dst []byte, v int32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v)^(uint32(1)<<31))
	return append(dst, buf[:]...)
}

func encodeFloat64(dst []byte, v float64) []byte {
	bits := math.Float64bits(v)
	if bits&(uint64(1)<<63) != 0 {
		bits = ^bits
	} else {
		bits ^= uint64(1) << 63
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bits)
	return append(dst, buf[:]...)
}

// EncodeTid appends the byte-key encoding of a $tid, used to break ties
// between rows that share an indexed-column key.
func EncodeTid(dst []byte, tid int64) []byte {
	return encodeInt64(dst, tid)
}
