package vm

import (
	"strconv"

	"lumen/internal/diag"
	"lumen/internal/ir"
	"lumen/internal/value"
)

// deliver searches live frames top-down for a handler willing to take v,
// popping every frame that has none (spec §4.3: raising unwinds frames
// until some frame's own handler stack has an entry). A handler that
// claims v resumes its frame at the absolute IP recorded when it was
// pushed; everything below that frame on the stack is left untouched.
func (vm *VM) deliver(v value.Value) bool {
	for len(vm.frames) > 0 {
		fr := vm.frames[len(vm.frames)-1]
		if n := len(fr.Handlers); n > 0 {
			h := fr.Handlers[n-1]
			fr.Handlers = fr.Handlers[:n-1]
			fr.Registers[h.catchReg] = v
			fr.IP = h.resumeIP
			return true
		}
		vm.frames = vm.frames[:len(vm.frames)-1]
	}
	return false
}

// snapshotTraceback captures FuncName/Pos for every live frame, innermost
// first, before a raise starts popping them — used only if the raise ends
// up unhandled.
func (vm *VM) snapshotTraceback() []diag.Frame {
	out := make([]diag.Frame, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := vm.frames[i]
		pos := diag.PositionFromOffset(fr.Module.Debug.Source, 0)
		if fr.IP < len(fr.Body) {
			if off, ok := fr.Module.Debug.Lines[fr.Body[fr.IP]]; ok {
				pos = diag.PositionFromOffset(fr.Module.Debug.Source, off)
			}
		}
		out = append(out, diag.Frame{FuncName: fr.FuncName, Pos: pos})
	}
	return out
}

func (vm *VM) collectGarbage() {
	roots := make([]value.Value, 0, len(vm.globals)+4*len(vm.frames))
	roots = append(roots, vm.globals...)
	for _, fr := range vm.frames {
		roots = append(roots, fr.Registers...)
		roots = append(roots, fr.Captures...)
		roots = append(roots, fr.This)
	}
	vm.heap.Collect(roots)
}

func (vm *VM) gatherRegs(fr *Frame, off, count uint32) []value.Value {
	refs := fr.Module.ExtraSlice(off, count)
	elems := make([]value.Value, count)
	for i, r := range refs {
		elems[i] = fr.Registers[ir.Ref(r)]
	}
	return elems
}

func (vm *VM) newStr(s string) value.Value {
	o := value.NewStr(s)
	vm.heap.Track(o, 32+len(s))
	return value.Str(o)
}

func (vm *VM) newTuple(elems []value.Value) value.Value {
	o := value.NewTuple(elems)
	vm.heap.Track(o, 32+16*len(elems))
	return value.Tuple(o)
}

func (vm *VM) newList(elems []value.Value) value.Value {
	o := value.NewList(elems)
	vm.heap.Track(o, 32+16*len(elems))
	return value.List(o)
}

func (vm *VM) newRange(start, end, step int64) value.Value {
	o := value.NewRange(start, end, step)
	vm.heap.Track(o, 32)
	return value.Range(o)
}

func (vm *VM) newError(inner value.Value, hasInner bool) value.Value {
	o := value.NewError(inner, hasInner)
	vm.heap.Track(o, 32)
	return value.Err(o)
}

func (vm *VM) makeError(msg string) value.Value {
	return vm.newError(vm.newStr(msg), true)
}

func (vm *VM) newTagged(name string, inner value.Value, hasInner bool) value.Value {
	o := value.NewTagged(name, inner, hasInner)
	vm.heap.Track(o, 32+len(name))
	return value.Tag(o)
}

func (vm *VM) newFunction(name string, body []int, captures []value.Value, module *ir.Bytecode, arity uint8) value.Value {
	o := value.NewFunction(name, body, captures, module, arity)
	vm.heap.Track(o, 48+8*len(captures))
	return value.Fn(o)
}

func asInt64(v value.Value) (int64, bool) {
	if v.Kind != value.KindInt {
		return 0, false
	}
	return v.I, true
}

func sequenceLen(v value.Value) (int, bool) {
	switch v.Kind {
	case value.KindTuple:
		return len(v.TupleObj().Elems), true
	case value.KindList:
		return len(v.ListObj().Elems), true
	default:
		return 0, false
	}
}

func unwrapError(v value.Value) value.Value {
	e := v.ErrorObj()
	if e.HasInner {
		return e.Inner
	}
	return value.Null
}

func unwrapTagged(v value.Value) value.Value {
	t := v.TaggedObj()
	if t.HasInner {
		return t.Inner
	}
	return value.Null
}

// index implements get/get_or_null across every indexable kind: tuple and
// list by integer position, map by arbitrary key, string by rune offset.
func (vm *VM) index(x, idx value.Value) (value.Value, bool) {
	switch x.Kind {
	case value.KindTuple:
		return indexSlice(x.TupleObj().Elems, idx)
	case value.KindList:
		return indexSlice(x.ListObj().Elems, idx)
	case value.KindMap:
		return x.MapObj().Get(idx)
	case value.KindStr:
		i, ok := asInt64(idx)
		if !ok {
			return value.Null, false
		}
		runes := []rune(x.StrObj().S)
		if i < 0 || i >= int64(len(runes)) {
			return value.Null, false
		}
		return vm.newStr(string(runes[i])), true
	default:
		return value.Null, false
	}
}

func indexSlice(elems []value.Value, idx value.Value) (value.Value, bool) {
	i, ok := asInt64(idx)
	if !ok || i < 0 || i >= int64(len(elems)) {
		return value.Null, false
	}
	return elems[i], true
}

// setIndex implements the `set` opcode: list element replacement by
// integer position, map entry upsert by arbitrary key. msg is non-empty
// on fault.
func (vm *VM) setIndex(x, idx, val value.Value) string {
	switch x.Kind {
	case value.KindList:
		obj := x.ListObj()
		i, ok := asInt64(idx)
		if !ok || i < 0 || i >= int64(len(obj.Elems)) {
			return "list index out of range"
		}
		obj.Elems[i] = val
		return ""
	case value.KindMap:
		x.MapObj().Set(idx, val)
		return ""
	default:
		return "cannot set an index on a " + x.Kind.String()
	}
}

// castTo implements the `as` opcode. Casting to an aggregate or function
// kind is not supported; str is the universal target via Value.String.
func castTo(v value.Value, ty ir.TypeTag) (value.Value, string) {
	switch ty {
	case ir.TypeStr:
		return value.Str(value.NewStr(v.String())), ""
	case ir.TypeInt:
		switch v.Kind {
		case value.KindInt:
			return v, ""
		case value.KindNum:
			return value.Int(int64(v.N)), ""
		case value.KindBool:
			if v.B {
				return value.Int(1), ""
			}
			return value.Int(0), ""
		case value.KindStr:
			n, err := strconv.ParseInt(v.StrObj().S, 10, 64)
			if err != nil {
				return value.Null, "cannot cast " + strconv.Quote(v.StrObj().S) + " to int"
			}
			return value.Int(n), ""
		default:
			return value.Null, "cannot cast " + v.Kind.String() + " to int"
		}
	case ir.TypeNum:
		switch v.Kind {
		case value.KindNum:
			return v, ""
		case value.KindInt:
			return value.Num(float64(v.I)), ""
		case value.KindBool:
			if v.B {
				return value.Num(1), ""
			}
			return value.Num(0), ""
		case value.KindStr:
			n, err := strconv.ParseFloat(v.StrObj().S, 64)
			if err != nil {
				return value.Null, "cannot cast " + strconv.Quote(v.StrObj().S) + " to num"
			}
			return value.Num(n), ""
		default:
			return value.Null, "cannot cast " + v.Kind.String() + " to num"
		}
	case ir.TypeBool:
		return value.Bool(v.IsTruthy()), ""
	default:
		return value.Null, "unsupported cast target"
	}
}

// newIterator allocates the cursor state iter_init needs for src's kind.
func (vm *VM) newIterator(src value.Value) (value.Value, string) {
	var o *value.IteratorObj
	switch src.Kind {
	case value.KindList:
		o = &value.IteratorObj{Kind: value.IterList, Source: src, InitLen: len(src.ListObj().Elems)}
	case value.KindTuple:
		o = &value.IteratorObj{Kind: value.IterTuple, Source: src, InitLen: len(src.TupleObj().Elems)}
	case value.KindStr:
		o = &value.IteratorObj{Kind: value.IterStr, Source: src, InitLen: len([]rune(src.StrObj().S))}
	case value.KindMap:
		o = &value.IteratorObj{Kind: value.IterMap, Source: src, InitLen: len(src.MapObj().Entries)}
	case value.KindRange:
		r := src.RangeObj()
		o = &value.IteratorObj{Kind: value.IterRange, RangeCur: r.Start, RangeEnd: r.End, RangeStep: r.Step}
	default:
		return value.Null, "value is not iterable"
	}
	vm.heap.Track(o, 48)
	return value.Iter(o), ""
}

// iterNext advances it one step, detecting container-length changes since
// iter_init the way a fail-fast iterator would.
func (vm *VM) iterNext(it *value.IteratorObj) (next value.Value, exhausted bool, msg string) {
	switch it.Kind {
	case value.IterList:
		cur := it.Source.ListObj()
		if len(cur.Elems) != it.InitLen {
			return value.Null, false, "list modified during iteration"
		}
		if it.Index >= it.InitLen {
			return value.Null, true, ""
		}
		v := cur.Elems[it.Index]
		it.Index++
		return v, false, ""
	case value.IterTuple:
		cur := it.Source.TupleObj()
		if it.Index >= it.InitLen || it.Index >= len(cur.Elems) {
			return value.Null, true, ""
		}
		v := cur.Elems[it.Index]
		it.Index++
		return v, false, ""
	case value.IterStr:
		runes := []rune(it.Source.StrObj().S)
		if len(runes) != it.InitLen {
			return value.Null, false, "string modified during iteration"
		}
		if it.Index >= it.InitLen {
			return value.Null, true, ""
		}
		v := vm.newStr(string(runes[it.Index]))
		it.Index++
		return v, false, ""
	case value.IterMap:
		m := it.Source.MapObj()
		if len(m.Entries) != it.InitLen {
			return value.Null, false, "map modified during iteration"
		}
		if it.Index >= it.InitLen {
			return value.Null, true, ""
		}
		e := m.Entries[it.Index]
		it.Index++
		return vm.newTuple([]value.Value{e.Key, e.Value}), false, ""
	case value.IterRange:
		ascending := it.RangeStep > 0
		if (ascending && it.RangeCur >= it.RangeEnd) || (!ascending && it.RangeCur <= it.RangeEnd) {
			return value.Null, true, ""
		}
		v := value.Int(it.RangeCur)
		it.RangeCur += it.RangeStep
		return v, false, ""
	default:
		return value.Null, true, ""
	}
}
