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

// Package eval implements the scalar evaluator: a tree-walking
// interpreter over plan.Scalar that produces one kernel.Array per
// expression, given a record batch for Column references and a session
// for Parameter bindings and next_val (spec.md §4.4).
package eval

import (
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/session"
	"gopkg.in/src-d/go-errors.v1"
)

var (
	ErrUnknownColumn    = errors.NewKind("eval: column %q not found in batch")
	ErrUnboundParam     = errors.NewKind("eval: parameter %d is not bound")
	ErrUnknownFunction  = errors.NewKind("eval: unknown function %q")
	ErrNonDeterministic = errors.NewKind("eval: %q must be rewritten to a literal before planning")
	ErrWrongArity       = errors.NewKind("eval: %q expects %d argument(s), got %d")
	ErrBadCast          = errors.NewKind("eval: cannot cast %s to %s")
)

// Eval walks expr and returns a column-length array of its result.
func Eval(expr plan.Scalar, batch *kernel.RecordBatch, sess *session.Session) (kernel.Array, error) {
	switch e := expr.(type) {
	case plan.Literal:
		return repeat(e.Value, batch.Len())
	case plan.ColumnRef:
		col, ok := batch.Column(e.Column.Name)
		if !ok {
			return nil, ErrUnknownColumn.New(e.Column.Name)
		}
		return col, nil
	case plan.Parameter:
		v, ok := sess.Parameter(e.Ordinal)
		if !ok {
			return nil, ErrUnboundParam.New(e.Ordinal)
		}
		return repeat(v, batch.Len())
	case plan.Cast:
		in, err := Eval(e.Input, batch, sess)
		if err != nil {
			return nil, err
		}
		return castArray(in, e.To)
	case plan.FuncCall:
		return evalCall(e, batch, sess)
	}
	return nil, ErrUnknownFunction.New("<unrecognized scalar node>")
}

// repeat expands a single bound/literal value to a length-n array.
func repeat(v kernel.Value, n int) (kernel.Array, error) {
	switch v.Kind {
	case kernel.Bool:
		a := kernel.NewBoolArrayCap(n)
		for i := 0; i < n; i++ {
			a.Push(v.Bool, v.Valid)
		}
		return a, nil
	case kernel.Int64:
		a := kernel.NewInt64Array()
		for i := 0; i < n; i++ {
			a.Push(v.I64, v.Valid)
		}
		return a, nil
	case kernel.Date:
		a := kernel.NewDateArray()
		for i := 0; i < n; i++ {
			a.Push(v.I64, v.Valid)
		}
		return a, nil
	case kernel.Timestamp:
		a := kernel.NewTimestampArray()
		for i := 0; i < n; i++ {
			a.Push(v.I64, v.Valid)
		}
		return a, nil
	case kernel.Float64:
		a := kernel.NewFloat64Array()
		for i := 0; i < n; i++ {
			if err := a.Push(v.F64, v.Valid); err != nil {
				return nil, err
			}
		}
		return a, nil
	case kernel.String:
		a := kernel.NewStringArray()
		for i := 0; i < n; i++ {
			a.Push(v.Str, v.Valid)
		}
		return a, nil
	}
	return nil, ErrUnknownFunction.New("<unknown literal kind>")
}
