// Package value defines the runtime value model executed by the VM: a
// small tagged Value carrying scalars inline and everything else — the
// bytecode-defined kinds string, tuple, list, map, range, error, tagged,
// function, iterator, and frame — behind a heap object reachable through
// Obj. Heap bookkeeping (the mark/sweep collector) lives in heap.go.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the runtime type tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindNum
	KindStr
	KindTuple
	KindList
	KindMap
	KindRange
	KindError
	KindTagged
	KindFunction
	KindIterator
	KindFrame
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindNum:
		return "num"
	case KindStr:
		return "str"
	case KindTuple:
		return "tuple"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindRange:
		return "range"
	case KindError:
		return "error"
	case KindTagged:
		return "tagged"
	case KindFunction:
		return "function"
	case KindIterator:
		return "iterator"
	case KindFrame:
		return "frame"
	default:
		return "invalid"
	}
}

// Value is the universal runtime value. Scalars live inline; everything
// else is a pointer to a heap object tracked by a Heap for mark/sweep.
type Value struct {
	Kind Kind
	B    bool
	I    int64
	N    float64
	Obj  Object
}

var Null = Value{Kind: KindNull}

func Bool(b bool) Value { return Value{Kind: KindBool, B: b} }
func Int(i int64) Value { return Value{Kind: KindInt, I: i} }
func Num(n float64) Value { return Value{Kind: KindNum, N: n} }

func Str(o *StrObj) Value      { return Value{Kind: KindStr, Obj: o} }
func Tuple(o *TupleObj) Value  { return Value{Kind: KindTuple, Obj: o} }
func List(o *ListObj) Value    { return Value{Kind: KindList, Obj: o} }
func Map(o *MapObj) Value      { return Value{Kind: KindMap, Obj: o} }
func Range(o *RangeObj) Value  { return Value{Kind: KindRange, Obj: o} }
func Err(o *ErrorObj) Value    { return Value{Kind: KindError, Obj: o} }
func Tag(o *TaggedObj) Value   { return Value{Kind: KindTagged, Obj: o} }
func Fn(o *FunctionObj) Value  { return Value{Kind: KindFunction, Obj: o} }
func Iter(o *IteratorObj) Value { return Value{Kind: KindIterator, Obj: o} }
func Frame(o *FrameObj) Value  { return Value{Kind: KindFrame, Obj: o} }

func (v Value) IsTruthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.B
	default:
		return true
	}
}

func (v Value) StrObj() *StrObj         { return v.Obj.(*StrObj) }
func (v Value) TupleObj() *TupleObj     { return v.Obj.(*TupleObj) }
func (v Value) ListObj() *ListObj       { return v.Obj.(*ListObj) }
func (v Value) MapObj() *MapObj         { return v.Obj.(*MapObj) }
func (v Value) RangeObj() *RangeObj     { return v.Obj.(*RangeObj) }
func (v Value) ErrorObj() *ErrorObj     { return v.Obj.(*ErrorObj) }
func (v Value) TaggedObj() *TaggedObj   { return v.Obj.(*TaggedObj) }
func (v Value) FunctionObj() *FunctionObj { return v.Obj.(*FunctionObj) }
func (v Value) IteratorObj() *IteratorObj { return v.Obj.(*IteratorObj) }
func (v Value) FrameObj() *FrameObj     { return v.Obj.(*FrameObj) }

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindNum:
		return strconv.FormatFloat(v.N, 'g', -1, 64)
	case KindStr:
		return v.StrObj().S
	case KindTuple:
		return joinValues("(", v.TupleObj().Elems, ")")
	case KindList:
		return joinValues("[", v.ListObj().Elems, "]")
	case KindMap:
		m := v.MapObj()
		var b strings.Builder
		b.WriteString("%{")
		for i, e := range m.Entries {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.Key.String())
			b.WriteString(": ")
			b.WriteString(e.Value.String())
		}
		b.WriteString("}")
		return b.String()
	case KindRange:
		r := v.RangeObj()
		if r.Step == 1 {
			return fmt.Sprintf("%d:%d", r.Start, r.End)
		}
		return fmt.Sprintf("%d:%d:%d", r.Start, r.End, r.Step)
	case KindError:
		e := v.ErrorObj()
		if e.HasInner {
			return "error(" + e.Inner.String() + ")"
		}
		return "error"
	case KindTagged:
		t := v.TaggedObj()
		if t.HasInner {
			return t.Name + "(" + t.Inner.String() + ")"
		}
		return t.Name
	case KindFunction:
		return fmt.Sprintf("<function %s/%d>", v.FunctionObj().Name, v.FunctionObj().Arity)
	case KindIterator:
		return "<iterator>"
	case KindFrame:
		return "<frame>"
	default:
		return "<invalid>"
	}
}

func joinValues(open string, elems []Value, close string) string {
	var b strings.Builder
	b.WriteString(open)
	for i, e := range elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.String())
	}
	b.WriteString(close)
	return b.String()
}

// Equal implements structural equality: deep for aggregates, and
// mathematical for cross-type int/num comparisons.
func Equal(a, b Value) bool {
	if a.Kind == KindInt && b.Kind == KindNum {
		return float64(a.I) == b.N
	}
	if a.Kind == KindNum && b.Kind == KindInt {
		return a.N == float64(b.I)
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.B == b.B
	case KindInt:
		return a.I == b.I
	case KindNum:
		return a.N == b.N
	case KindStr:
		return a.StrObj().S == b.StrObj().S
	case KindTuple:
		return equalSlices(a.TupleObj().Elems, b.TupleObj().Elems)
	case KindList:
		return equalSlices(a.ListObj().Elems, b.ListObj().Elems)
	case KindMap:
		return equalMaps(a.MapObj(), b.MapObj())
	case KindRange:
		ra, rb := a.RangeObj(), b.RangeObj()
		return ra.Start == rb.Start && ra.End == rb.End && ra.Step == rb.Step
	case KindError:
		ea, eb := a.ErrorObj(), b.ErrorObj()
		if ea.HasInner != eb.HasInner {
			return false
		}
		return !ea.HasInner || Equal(ea.Inner, eb.Inner)
	case KindTagged:
		ta, tb := a.TaggedObj(), b.TaggedObj()
		if ta.Name != tb.Name || ta.HasInner != tb.HasInner {
			return false
		}
		return !ta.HasInner || Equal(ta.Inner, tb.Inner)
	case KindFunction:
		return a.Obj == b.Obj
	default:
		return a.Obj == b.Obj
	}
}

func equalSlices(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalMaps(a, b *MapObj) bool {
	if len(a.Entries) != len(b.Entries) {
		return false
	}
	for _, ea := range a.Entries {
		bv, ok := b.Get(ea.Key)
		if !ok || !Equal(ea.Value, bv) {
			return false
		}
	}
	return true
}

// Compare orders two values for <, <=, >, >=. ok is false when the pair is
// not ordered (mismatched kinds outside the numeric-tower exception, or an
// aggregate kind with no defined order).
func Compare(a, b Value) (cmp int, ok bool) {
	numeric := func(v Value) (float64, bool) {
		switch v.Kind {
		case KindInt:
			return float64(v.I), true
		case KindNum:
			return v.N, true
		default:
			return 0, false
		}
	}
	if fa, aok := numeric(a); aok {
		if fb, bok := numeric(b); bok {
			if IsNaN(a) || IsNaN(b) {
				return 0, false
			}
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if a.Kind != b.Kind {
		return 0, false
	}
	switch a.Kind {
	case KindStr:
		return strings.Compare(a.StrObj().S, b.StrObj().S), true
	case KindTuple:
		return compareSlices(a.TupleObj().Elems, b.TupleObj().Elems)
	case KindList:
		return compareSlices(a.ListObj().Elems, b.ListObj().Elems)
	default:
		return 0, false
	}
}

func compareSlices(a, b []Value) (int, bool) {
	if len(a) != len(b) {
		return 0, false
	}
	for i := range a {
		c, ok := Compare(a[i], b[i])
		if !ok {
			return 0, false
		}
		if c != 0 {
			return c, true
		}
	}
	return 0, true
}

// IsNaN reports whether v is the float64 NaN value (used by comparison
// opcodes to reject ordering on NaN operands rather than silently ordering
// them, matching IEEE-754 semantics).
func IsNaN(v Value) bool {
	return v.Kind == KindNum && math.IsNaN(v.N)
}
