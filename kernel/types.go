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

// Package kernel implements the columnar value domain: typed arrays, null
// bitmaps, and the RecordBatch that flows between operators.
package kernel

import "gopkg.in/src-d/go-errors.v1"

// Kind is one of the six scalar types in the value domain.
type Kind int

const (
	Bool Kind = iota
	Int64
	Float64
	Date
	Timestamp
	String
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "BOOL"
	case Int64:
		return "INT64"
	case Float64:
		return "FLOAT64"
	case Date:
		return "DATE"
	case Timestamp:
		return "TIMESTAMP"
	case String:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// ErrKindMismatch is returned when an operator receives operands of
// different kinds.
var ErrKindMismatch = errors.NewKind("kernel: kind mismatch: %s vs %s")

// ErrLengthMismatch is returned by binary operators when operands differ
// in length.
var ErrLengthMismatch = errors.NewKind("kernel: length mismatch: %d vs %d")

// ErrNaN is returned when a float64 array would store a NaN. The engine
// rejects NaN at the point of insertion rather than silently dropping it,
// because silently dropping would change row counts and break gather/sort
// round-tripping (see SPEC_FULL.md open question 2).
var ErrNaN = errors.NewKind("kernel: NaN is not representable in a FLOAT64 array")

// Value is a dynamically-typed scalar, used at the boundaries of the
// kernel (literals, parameter bindings, single-row accessors).
type Value struct {
	Kind  Kind
	Valid bool
	Bool  bool
	I64   int64
	F64   float64
	Str   string
}

func NullValue(k Kind) Value { return Value{Kind: k, Valid: false} }

func BoolValue(v bool) Value   { return Value{Kind: Bool, Valid: true, Bool: v} }
func Int64Value(v int64) Value { return Value{Kind: Int64, Valid: true, I64: v} }
func Float64Value(v float64) Value {
	return Value{Kind: Float64, Valid: true, F64: v}
}
func DateValue(days int32) Value      { return Value{Kind: Date, Valid: true, I64: int64(days)} }
func TimestampValue(usec int64) Value { return Value{Kind: Timestamp, Valid: true, I64: usec} }
func StringValue(v string) Value      { return Value{Kind: String, Valid: true, Str: v} }
