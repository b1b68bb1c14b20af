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

package eval

import (
	"fmt"
	"strconv"
	"time"

	"github.com/castorsql/castor/kernel"
)

// castArray converts in to the target kind element-wise, failing with
// ErrBadCast on pairs the engine does not support.
func castArray(in kernel.Array, to kernel.Kind) (kernel.Array, error) {
	if in.Kind() == to {
		return in, nil
	}
	switch to {
	case kernel.String:
		return castToString(in)
	case kernel.Int64:
		return castToInt64(in)
	case kernel.Float64:
		return castToFloat64(in)
	case kernel.Bool:
		return castToBool(in)
	case kernel.Date, kernel.Timestamp:
		return castToTemporal(in, to)
	}
	return nil, ErrBadCast.New(in.Kind().String(), to.String())
}

func castToString(in kernel.Array) (kernel.Array, error) {
	out := kernel.NewStringArray()
	switch a := in.(type) {
	case *kernel.BoolArray:
		for i := 0; i < a.Len(); i++ {
			v, ok := a.Get(i)
			out.Push(strconv.FormatBool(v), ok)
		}
	case *kernel.Int64Array:
		for i := 0; i < a.Len(); i++ {
			v, ok := a.Get(i)
			switch a.Kind() {
			case kernel.Date:
				out.Push(formatDate(v), ok)
			case kernel.Timestamp:
				out.Push(formatTimestamp(v), ok)
			default:
				out.Push(strconv.FormatInt(v, 10), ok)
			}
		}
	case *kernel.Float64Array:
		for i := 0; i < a.Len(); i++ {
			v, ok := a.Get(i)
			out.Push(strconv.FormatFloat(v, 'g', -1, 64), ok)
		}
	default:
		return nil, ErrBadCast.New(in.Kind().String(), kernel.String.String())
	}
	return out, nil
}

func castToInt64(in kernel.Array) (kernel.Array, error) {
	out := kernel.NewInt64Array()
	switch a := in.(type) {
	case *kernel.BoolArray:
		for i := 0; i < a.Len(); i++ {
			v, ok := a.Get(i)
			if v {
				out.Push(1, ok)
			} else {
				out.Push(0, ok)
			}
		}
	case *kernel.Float64Array:
		for i := 0; i < a.Len(); i++ {
			v, ok := a.Get(i)
			out.Push(int64(v), ok)
		}
	case *kernel.StringArray:
		for i := 0; i < a.Len(); i++ {
			v, ok := a.Get(i)
			if !ok {
				out.Push(0, false)
				continue
			}
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, ErrBadCast.New(fmt.Sprintf("string %q", v), "INT64")
			}
			out.Push(n, true)
		}
	default:
		return nil, ErrBadCast.New(in.Kind().String(), kernel.Int64.String())
	}
	return out, nil
}

func castToFloat64(in kernel.Array) (kernel.Array, error) {
	out := kernel.NewFloat64Array()
	switch a := in.(type) {
	case *kernel.Int64Array:
		for i := 0; i < a.Len(); i++ {
			v, ok := a.Get(i)
			if err := out.Push(float64(v), ok); err != nil {
				return nil, err
			}
		}
	case *kernel.StringArray:
		for i := 0; i < a.Len(); i++ {
			v, ok := a.Get(i)
			if !ok {
				if err := out.Push(0, false); err != nil {
					return nil, err
				}
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, ErrBadCast.New(fmt.Sprintf("string %q", v), "FLOAT64")
			}
			if err := out.Push(f, true); err != nil {
				return nil, err
			}
		}
	default:
		return nil, ErrBadCast.New(in.Kind().String(), kernel.Float64.String())
	}
	return out, nil
}

func castToBool(in kernel.Array) (kernel.Array, error) {
	out := kernel.NewBoolArrayCap(in.Len())
	switch a := in.(type) {
	case *kernel.Int64Array:
		for i := 0; i < a.Len(); i++ {
			v, ok := a.Get(i)
			out.Push(v != 0, ok)
		}
	case *kernel.StringArray:
		for i := 0; i < a.Len(); i++ {
			v, ok := a.Get(i)
			if !ok {
				out.Push(false, false)
				continue
			}
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, ErrBadCast.New(fmt.Sprintf("string %q", v), "BOOL")
			}
			out.Push(b, true)
		}
	default:
		return nil, ErrBadCast.New(in.Kind().String(), kernel.Bool.String())
	}
	return out, nil
}

func castToTemporal(in kernel.Array, to kernel.Kind) (kernel.Array, error) {
	var out *kernel.Int64Array
	if to == kernel.Date {
		out = kernel.NewDateArray()
	} else {
		out = kernel.NewTimestampArray()
	}
	a, ok := in.(*kernel.StringArray)
	if !ok {
		return nil, ErrBadCast.New(in.Kind().String(), to.String())
	}
	for i := 0; i < a.Len(); i++ {
		v, valid := a.Get(i)
		if !valid {
			out.Push(0, false)
			continue
		}
		if to == kernel.Date {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				return nil, ErrBadCast.New(fmt.Sprintf("string %q", v), "DATE")
			}
			out.Push(int64(t.Unix()/86400), true)
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, ErrBadCast.New(fmt.Sprintf("string %q", v), "TIMESTAMP")
		}
		out.Push(t.UnixMicro(), true)
	}
	return out, nil
}

func formatDate(days int64) string {
	return time.Unix(days*86400, 0).UTC().Format("2006-01-02")
}

func formatTimestamp(usec int64) string {
	sec := usec / 1_000_000
	nsec := (usec % 1_000_000) * 1000
	return time.Unix(sec, nsec).UTC().Format(time.RFC3339)
}

// DatePart is one of the fields extractable from a DATE/TIMESTAMP via the
// date_part builtin (spec.md §4.4).
type DatePart int

const (
	PartDay DatePart = iota
	PartWeek
	PartIsoWeek
	PartMonth
	PartQuarter
	PartYear
	PartIsoYear
	PartDayOfWeek
	PartDayOfYear
)

func extractDatePart(t time.Time, part DatePart) int64 {
	switch part {
	case PartDay:
		return int64(t.Day())
	case PartWeek:
		return int64(t.Weekday())
	case PartIsoWeek:
		_, w := t.ISOWeek()
		return int64(w)
	case PartMonth:
		return int64(t.Month())
	case PartQuarter:
		return int64((int(t.Month())-1)/3 + 1)
	case PartYear:
		return int64(t.Year())
	case PartIsoYear:
		y, _ := t.ISOWeek()
		return int64(y)
	case PartDayOfWeek:
		return int64(t.Weekday()) + 1
	case PartDayOfYear:
		return int64(t.YearDay())
	}
	return 0
}
