package kernel

import "gopkg.in/src-d/go-errors.v1"

// This file implements the SQL three-valued elementwise operators over the
// Array union: any null operand yields null, except Is (§4.1), which never
// returns null and treats null as equal to null.

func checkLen(a, b Array) error {
	if a.Len() != b.Len() {
		return ErrLengthMismatch.New(a.Len(), b.Len())
	}
	return nil
}

func checkKind(a, b Array) error {
	if a.Kind() != b.Kind() {
		return ErrKindMismatch.New(a.Kind(), b.Kind())
	}
	return nil
}

// And implements SQL three-valued AND: false dominates null.
func And(a, b *BoolArray) (*BoolArray, error) {
	if err := checkLen(a, b); err != nil {
		return nil, err
	}
	out := NewBoolArrayCap(a.Len())
	for i := 0; i < a.Len(); i++ {
		av, avalid := a.Get(i)
		bv, bvalid := b.Get(i)
		switch {
		case avalid && !av, bvalid && !bv:
			out.Push(false, true)
		case avalid && bvalid:
			out.Push(av && bv, true)
		default:
			out.Push(false, false)
		}
	}
	return out, nil
}

// Or implements SQL three-valued OR: true dominates null.
func Or(a, b *BoolArray) (*BoolArray, error) {
	if err := checkLen(a, b); err != nil {
		return nil, err
	}
	out := NewBoolArrayCap(a.Len())
	for i := 0; i < a.Len(); i++ {
		av, avalid := a.Get(i)
		bv, bvalid := b.Get(i)
		switch {
		case avalid && av, bvalid && bv:
			out.Push(true, true)
		case avalid && bvalid:
			out.Push(av || bv, true)
		default:
			out.Push(false, false)
		}
	}
	return out, nil
}

func Not(a *BoolArray) *BoolArray {
	out := NewBoolArrayCap(a.Len())
	for i := 0; i < a.Len(); i++ {
		v, ok := a.Get(i)
		out.Push(!v, ok)
	}
	return out
}

// Is implements the `IS` comparator: never null, and null IS null = true.
func Is(a, b Array) (*BoolArray, error) {
	if err := checkLen(a, b); err != nil {
		return nil, err
	}
	if err := checkKind(a, b); err != nil {
		return nil, err
	}
	out := NewBoolArrayCap(a.Len())
	for i := 0; i < a.Len(); i++ {
		aValid := a.IsValid(i)
		bValid := b.IsValid(i)
		if !aValid && !bValid {
			out.Push(true, true)
			continue
		}
		if aValid != bValid {
			out.Push(false, true)
			continue
		}
		eq := elemEqual(a, b, i)
		out.Push(eq, true)
	}
	return out, nil
}

func elemEqual(a, b Array, i int) bool {
	switch av := a.(type) {
	case *BoolArray:
		x, _ := av.Get(i)
		y, _ := b.(*BoolArray).Get(i)
		return x == y
	case *Int64Array:
		x, _ := av.Get(i)
		y, _ := b.(*Int64Array).Get(i)
		return x == y
	case *Float64Array:
		x, _ := av.Get(i)
		y, _ := b.(*Float64Array).Get(i)
		return x == y
	case *StringArray:
		x, _ := av.Get(i)
		y, _ := b.(*StringArray).Get(i)
		return x == y
	}
	return false
}

// Cmp is one of the six comparison operators.
type Cmp int

const (
	CmpEq Cmp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// Compare dispatches a null-propagating comparison across any two arrays of
// the same kind.
func Compare(op Cmp, a, b Array) (*BoolArray, error) {
	if err := checkLen(a, b); err != nil {
		return nil, err
	}
	if err := checkKind(a, b); err != nil {
		return nil, err
	}
	out := NewBoolArrayCap(a.Len())
	for i := 0; i < a.Len(); i++ {
		if !a.IsValid(i) || !b.IsValid(i) {
			out.Push(false, false)
			continue
		}
		c := elemCompare(a, b, i)
		var r bool
		switch op {
		case CmpEq:
			r = c == 0
		case CmpNe:
			r = c != 0
		case CmpLt:
			r = c < 0
		case CmpLe:
			r = c <= 0
		case CmpGt:
			r = c > 0
		case CmpGe:
			r = c >= 0
		}
		out.Push(r, true)
	}
	return out, nil
}

func elemCompare(a, b Array, i int) int {
	switch av := a.(type) {
	case *BoolArray:
		x, _ := av.Get(i)
		y, _ := b.(*BoolArray).Get(i)
		if x == y {
			return 0
		}
		if !x {
			return -1
		}
		return 1
	case *Int64Array:
		x, _ := av.Get(i)
		y, _ := b.(*Int64Array).Get(i)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case *Float64Array:
		x, _ := av.Get(i)
		y, _ := b.(*Float64Array).Get(i)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case *StringArray:
		x, _ := av.Get(i)
		y, _ := b.(*StringArray).Get(i)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	}
	return 0
}

// Arith is one of the four arithmetic operators over INT64/FLOAT64 (DATE
// and TIMESTAMP arithmetic is handled in the eval package via DatePart, not
// here, since it isn't a pure elementwise binary op).
type Arith int

const (
	ArithAdd Arith = iota
	ArithSub
	ArithMul
	ArithDiv
)

var ErrDivideByZero = errors.NewKind("kernel: divide by zero")

func ArithInt64(op Arith, a, b *Int64Array) (*Int64Array, error) {
	if err := checkLen(a, b); err != nil {
		return nil, err
	}
	out := &Int64Array{kind: a.kind, isValid: NewBitmap(0)}
	for i := 0; i < a.Len(); i++ {
		x, xok := a.Get(i)
		y, yok := b.Get(i)
		if !xok || !yok {
			out.Push(0, false)
			continue
		}
		var r int64
		switch op {
		case ArithAdd:
			r = x + y
		case ArithSub:
			r = x - y
		case ArithMul:
			r = x * y
		case ArithDiv:
			if y == 0 {
				return nil, ErrDivideByZero.New()
			}
			r = x / y
		}
		out.Push(r, true)
	}
	return out, nil
}

func ArithFloat64(op Arith, a, b *Float64Array) (*Float64Array, error) {
	if err := checkLen(a, b); err != nil {
		return nil, err
	}
	out := NewFloat64Array()
	for i := 0; i < a.Len(); i++ {
		x, xok := a.Get(i)
		y, yok := b.Get(i)
		if !xok || !yok {
			if err := out.Push(0, false); err != nil {
				return nil, err
			}
			continue
		}
		var r float64
		switch op {
		case ArithAdd:
			r = x + y
		case ArithSub:
			r = x - y
		case ArithMul:
			r = x * y
		case ArithDiv:
			if y == 0 {
				return nil, ErrDivideByZero.New()
			}
			r = x / y
		}
		if err := out.Push(r, true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func NegateInt64(a *Int64Array) *Int64Array {
	out := &Int64Array{kind: a.kind, isValid: NewBitmap(0)}
	for i := 0; i < a.Len(); i++ {
		v, ok := a.Get(i)
		out.Push(-v, ok)
	}
	return out
}

func NegateFloat64(a *Float64Array) (*Float64Array, error) {
	out := NewFloat64Array()
	for i := 0; i < a.Len(); i++ {
		v, ok := a.Get(i)
		if err := out.Push(-v, ok); err != nil {
			return nil, err
		}
	}
	return out, nil
}
