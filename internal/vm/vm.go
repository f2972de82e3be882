// Package vm executes the register-based bytecode produced by package
// compiler. Each active invocation owns a flat register file (instruction
// i of a P-parameter function writes to register P+i); the module-level
// frame's own register file doubles as the program's globals table, and
// closures capture by copying values out of the enclosing frame at
// build_func time rather than through live upvalue cells.
package vm

import (
	"fmt"

	"lumen/internal/diag"
	"lumen/internal/ir"
	"lumen/internal/value"
)

// NativeFunc is a host-provided function reachable from bytecode through
// the `native` opcode. It lives in this package (rather than a host
// package importing vm) so that internal/host can build a registry of
// these without either package importing the other.
type NativeFunc func(args []value.Value) (value.Value, error)

// errHandler is one entry of a frame's error-handler stack: where to
// resume and which register receives the raised value, computed to an
// absolute instruction index at push_err_handler time so a raise deep
// inside the protected body doesn't need to know where the push happened.
type errHandler struct {
	resumeIP int
	catchReg ir.Ref
}

// Frame is one active invocation's state: its own register file, the
// module that owns its code (a function value built by an imported
// module keeps pointing at that module's Code/Extra/Strings, not the
// caller's), and a private error-handler stack (a deliberate departure
// from a single VM-global handler stack, so that invariant 5 — "every
// function's handler stack is empty on return" — is checked per frame).
type Frame struct {
	FuncName string
	Module   *ir.Bytecode
	Body     []int
	Params   int
	Registers []value.Value
	Captures  []value.Value
	This      value.Value
	IP        int
	Handlers  []errHandler

	// retReg is the register in the caller's frame that should receive
	// this frame's return value; unused for the outermost frame.
	retReg ir.Ref
}

// RuntimeError is an unhandled raise that unwound every frame looking for
// a handler and found none. Its Traceback renders the way the spec's
// error-handling design describes: the raised value's message plus one
// entry per frame unwound, innermost first.
type RuntimeError struct {
	Traceback *diag.Traceback
}

func (e *RuntimeError) Error() string { return e.Traceback.String() }

// VM is a register-based virtual machine for Lumen bytecode.
type VM struct {
	heap    *value.Heap
	globals []value.Value
	frames  []*Frame
	natives map[string]NativeFunc
}

// NewVM creates a VM with the given native-function registry (may be nil
// for a module that never calls `native`, `import`, or `in`).
func NewVM(natives map[string]NativeFunc) *VM {
	if natives == nil {
		natives = map[string]NativeFunc{}
	}
	return &VM{heap: value.NewHeap(0), natives: natives}
}

// HeapBytes reports the VM's current GC allocation counter, for a caller
// (typically the CLI's verbose logging) to report alongside humanize-d byte
// counts after a run completes.
func (vm *VM) HeapBytes() int { return vm.heap.BytesAllocated() }

// RunMain runs bc's main function to completion.
func (vm *VM) RunMain(bc *ir.Bytecode) (value.Value, error) {
	if bc.MainIndex < 0 || bc.MainIndex >= len(bc.Functions) {
		return value.Null, fmt.Errorf("vm: invalid main index %d", bc.MainIndex)
	}
	main := bc.Functions[bc.MainIndex]
	vm.globals = make([]value.Value, main.NumLocals)
	frame := &Frame{
		FuncName:  main.Name,
		Module:    bc,
		Body:      main.Body,
		Params:    main.Params,
		Registers: vm.globals,
		This:      value.Null,
	}
	vm.frames = []*Frame{frame}
	return vm.run()
}

func (vm *VM) run() (value.Value, error) {
	var lastRet value.Value
	var skipIncrement bool

	for {
		if len(vm.frames) == 0 {
			return lastRet, nil
		}
		if vm.heap.ShouldCollect() {
			vm.collectGarbage()
		}

		fr := vm.frames[len(vm.frames)-1]
		if fr.IP < 0 || fr.IP >= len(fr.Body) {
			return value.Null, fmt.Errorf("vm: instruction pointer out of range in %s: %d", fr.FuncName, fr.IP)
		}

		globalIdx := fr.Body[fr.IP]
		inst := fr.Module.Code.At(globalIdx)
		resultReg := ir.Ref(fr.Params + fr.IP)
		shouldIncrement := !skipIncrement
		skipIncrement = false

		// fault delivers msg as a runtime error to the nearest handler on
		// any live frame. When no handler claims it, it returns the
		// *RuntimeError the caller should propagate; handled is true when a
		// handler took it, and the case then continues the loop at that
		// handler's resume point.
		fault := func(msg string) (retErr error, handled bool) {
			snap := vm.snapshotTraceback()
			if vm.deliver(vm.makeError(msg)) {
				return nil, true
			}
			return &RuntimeError{Traceback: &diag.Traceback{Message: msg, Frames: snap}}, false
		}

		switch inst.Op {
		case ir.OpLoadNull:
			fr.Registers[resultReg] = value.Null
		case ir.OpLoadTrue:
			fr.Registers[resultReg] = value.Bool(true)
		case ir.OpLoadFalse:
			fr.Registers[resultReg] = value.Bool(false)
		case ir.OpLoadInt:
			fr.Registers[resultReg] = value.Int(inst.AsInt())
		case ir.OpLoadNum:
			fr.Registers[resultReg] = value.Num(inst.AsNum())
		case ir.OpLoadStr:
			off, length := inst.AsStr()
			fr.Registers[resultReg] = vm.newStr(fr.Module.String(off, length))

		case ir.OpBuildTuple:
			off, count := inst.AsExtra()
			fr.Registers[resultReg] = vm.newTuple(vm.gatherRegs(fr, off, count))
		case ir.OpBuildList:
			off, count := inst.AsExtra()
			fr.Registers[resultReg] = vm.newList(vm.gatherRegs(fr, off, count))
		case ir.OpBuildMap:
			off, count := inst.AsExtra()
			refs := fr.Module.ExtraSlice(off, count*2)
			m := value.NewMap()
			for i := uint32(0); i < count; i++ {
				k := fr.Registers[ir.Ref(refs[2*i])]
				v := fr.Registers[ir.Ref(refs[2*i+1])]
				m.Set(k, v)
			}
			vm.heap.Track(m, 32+32*len(m.Entries))
			fr.Registers[resultReg] = value.Map(m)
		case ir.OpBuildRange:
			startReg, endReg := inst.AsRange()
			start, sok := asInt64(fr.Registers[startReg])
			end, eok := asInt64(fr.Registers[endReg])
			if !sok || !eok {
				if err, handled := fault("range bounds must be int"); !handled {
					return value.Null, err
				}
				continue
			}
			fr.Registers[resultReg] = vm.newRange(start, end, 1)
		case ir.OpBuildRangeStep:
			off := inst.AsRangeStep()
			refs := fr.Module.ExtraSlice(off, 3)
			start, sok := asInt64(fr.Registers[ir.Ref(refs[0])])
			end, eok := asInt64(fr.Registers[ir.Ref(refs[1])])
			step, tok := asInt64(fr.Registers[ir.Ref(refs[2])])
			switch {
			case !sok || !eok || !tok:
				if err, handled := fault("range bounds must be int"); !handled {
					return value.Null, err
				}
				continue
			case step == 0:
				if err, handled := fault("range step cannot be zero"); !handled {
					return value.Null, err
				}
				continue
			}
			fr.Registers[resultReg] = vm.newRange(start, end, step)

		case ir.OpMov:
			dst, src := inst.AsBin()
			fr.Registers[dst] = fr.Registers[src]
		case ir.OpLoadGlobal:
			fr.Registers[resultReg] = vm.globals[inst.AsUn()]
		case ir.OpStoreGlobal:
			g, src := inst.AsBin()
			vm.globals[g] = fr.Registers[src]
		case ir.OpLoadCapture:
			fr.Registers[resultReg] = fr.Captures[inst.AsUn()]
		case ir.OpLoadThis:
			fr.Registers[resultReg] = fr.This
		case ir.OpBuildFunc:
			off, captureCount := inst.AsBuildFunc()
			refs := fr.Module.ExtraSlice(off, captureCount+1)
			fnIndex := refs[0]
			fn := fr.Module.Functions[fnIndex]
			captures := make([]value.Value, captureCount)
			for i := uint32(0); i < captureCount; i++ {
				captures[i] = fr.Registers[ir.Ref(refs[1+i])]
			}
			fr.Registers[resultReg] = vm.newFunction(fn.Name, fn.Body, captures, fr.Module, uint8(fn.Params))
		case ir.OpDiscard:
			v := fr.Registers[inst.AsUn()]
			if v.Kind == value.KindError {
				if err, handled := fault("discarded an error value"); !handled {
					return value.Null, err
				}
				continue
			}

		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpDivFloor, ir.OpRem, ir.OpPow:
			lhs, rhs := inst.AsBin()
			res, msg := binArith(inst.Op, fr.Registers[lhs], fr.Registers[rhs])
			if msg != "" {
				if err, handled := fault(msg); !handled {
					return value.Null, err
				}
				continue
			}
			fr.Registers[resultReg] = res
		case ir.OpNeg:
			res, msg := unaryNeg(fr.Registers[inst.AsUn()])
			if msg != "" {
				if err, handled := fault(msg); !handled {
					return value.Null, err
				}
				continue
			}
			fr.Registers[resultReg] = res

		case ir.OpBAnd, ir.OpBOr, ir.OpBXor, ir.OpShl, ir.OpShr:
			lhs, rhs := inst.AsBin()
			res, msg := binBitwise(inst.Op, fr.Registers[lhs], fr.Registers[rhs])
			if msg != "" {
				if err, handled := fault(msg); !handled {
					return value.Null, err
				}
				continue
			}
			fr.Registers[resultReg] = res
		case ir.OpBNot:
			res, msg := unaryBNot(fr.Registers[inst.AsUn()])
			if msg != "" {
				if err, handled := fault(msg); !handled {
					return value.Null, err
				}
				continue
			}
			fr.Registers[resultReg] = res

		case ir.OpEq, ir.OpNeq:
			lhs, rhs := inst.AsBin()
			eq := value.Equal(fr.Registers[lhs], fr.Registers[rhs])
			if inst.Op == ir.OpNeq {
				eq = !eq
			}
			fr.Registers[resultReg] = value.Bool(eq)
		case ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte:
			lhs, rhs := inst.AsBin()
			cmp, ok := value.Compare(fr.Registers[lhs], fr.Registers[rhs])
			if !ok {
				if err, handled := fault("values are not comparable"); !handled {
					return value.Null, err
				}
				continue
			}
			var b bool
			switch inst.Op {
			case ir.OpLt:
				b = cmp < 0
			case ir.OpLte:
				b = cmp <= 0
			case ir.OpGt:
				b = cmp > 0
			case ir.OpGte:
				b = cmp >= 0
			}
			fr.Registers[resultReg] = value.Bool(b)

		case ir.OpNot:
			fr.Registers[resultReg] = value.Bool(!fr.Registers[inst.AsUn()].IsTruthy())

		case ir.OpAppend:
			listReg, valReg := inst.AsBin()
			list := fr.Registers[listReg]
			if list.Kind != value.KindList {
				if err, handled := fault("append requires a list"); !handled {
					return value.Null, err
				}
				continue
			}
			obj := list.ListObj()
			obj.Elems = append(obj.Elems, fr.Registers[valReg])
		case ir.OpSetIndex:
			off, _ := inst.AsExtra()
			refs := fr.Module.ExtraSlice(off, 3)
			x := fr.Registers[ir.Ref(refs[0])]
			idx := fr.Registers[ir.Ref(refs[1])]
			val := fr.Registers[ir.Ref(refs[2])]
			msg := vm.setIndex(x, idx, val)
			if msg != "" {
				if err, handled := fault(msg); !handled {
					return value.Null, err
				}
				continue
			}

		case ir.OpAs:
			operand, ty := inst.AsBinTy()
			res, msg := castTo(fr.Registers[operand], ty)
			if msg != "" {
				if err, handled := fault(msg); !handled {
					return value.Null, err
				}
				continue
			}
			fr.Registers[resultReg] = res
		case ir.OpIs:
			operand, ty := inst.AsBinTy()
			fr.Registers[resultReg] = value.Bool(fr.Registers[operand].Kind == value.Kind(ty))

		case ir.OpBuildError:
			fr.Registers[resultReg] = vm.newError(fr.Registers[inst.AsUn()], true)
		case ir.OpBuildErrorNull:
			fr.Registers[resultReg] = vm.newError(value.Null, false)
		case ir.OpIsError:
			fr.Registers[resultReg] = value.Bool(fr.Registers[inst.AsUn()].Kind == value.KindError)
		case ir.OpUnwrapError:
			v := fr.Registers[inst.AsUn()]
			if v.Kind != value.KindError {
				if err, handled := fault("unwrap_error requires an error value"); !handled {
					return value.Null, err
				}
				continue
			}
			e := v.ErrorObj()
			if e.HasInner {
				fr.Registers[resultReg] = e.Inner
			} else {
				fr.Registers[resultReg] = value.Null
			}
		case ir.OpBuildTagged:
			off, _ := inst.AsExtra()
			refs := fr.Module.ExtraSlice(off, 3)
			name := fr.Module.String(refs[0], refs[1])
			fr.Registers[resultReg] = vm.newTagged(name, fr.Registers[ir.Ref(refs[2])], true)
		case ir.OpBuildTaggedNull:
			nameOff, nameLen := inst.AsStr()
			name := fr.Module.String(nameOff, nameLen)
			fr.Registers[resultReg] = vm.newTagged(name, value.Null, false)
		case ir.OpUnwrapTagged:
			v := fr.Registers[inst.AsUn()]
			if v.Kind != value.KindTagged {
				if err, handled := fault("unwrap_tagged requires a tagged value"); !handled {
					return value.Null, err
				}
				continue
			}
			fr.Registers[resultReg] = unwrapTagged(v)
		case ir.OpUnwrapTaggedOrNull:
			v := fr.Registers[inst.AsUn()]
			if v.Kind != value.KindTagged {
				fr.Registers[resultReg] = value.Null
			} else {
				fr.Registers[resultReg] = unwrapTagged(v)
			}

		case ir.OpCheckLen:
			srcReg, wantRef := inst.AsBin()
			got, ok := sequenceLen(fr.Registers[srcReg])
			if ok && got == int(wantRef) {
				fr.Registers[resultReg] = value.Bool(true)
			} else {
				fr.Registers[resultReg] = value.Null
			}
		case ir.OpAssertLen:
			srcReg, wantRef := inst.AsBin()
			got, ok := sequenceLen(fr.Registers[srcReg])
			if !ok || got != int(wantRef) {
				if err, handled := fault(fmt.Sprintf("expected a sequence of length %d", wantRef)); !handled {
					return value.Null, err
				}
				continue
			}

		case ir.OpGet, ir.OpGetOrNull:
			xReg, idxReg := inst.AsBin()
			res, ok := vm.index(fr.Registers[xReg], fr.Registers[idxReg])
			if !ok {
				if inst.Op == ir.OpGetOrNull {
					fr.Registers[resultReg] = value.Null
				} else {
					if err, handled := fault("index out of range or not indexable"); !handled {
						return value.Null, err
					}
					continue
				}
			} else {
				fr.Registers[resultReg] = res
			}

		case ir.OpJump:
			fr.IP = fr.IP + 1 + int(inst.AsJump())
			skipIncrement = true
		case ir.OpJumpIfFalse:
			cond, offset := inst.AsJumpCond()
			if !fr.Registers[cond].IsTruthy() {
				fr.IP = fr.IP + 1 + int(offset)
				skipIncrement = true
			}
		case ir.OpJumpIfTrue:
			cond, offset := inst.AsJumpCond()
			if fr.Registers[cond].IsTruthy() {
				fr.IP = fr.IP + 1 + int(offset)
				skipIncrement = true
			}

		case ir.OpIterInit:
			src := fr.Registers[inst.AsUn()]
			it, msg := vm.newIterator(src)
			if msg != "" {
				if err, handled := fault(msg); !handled {
					return value.Null, err
				}
				continue
			}
			fr.Registers[resultReg] = it
		case ir.OpIterNext:
			iterReg, offset := inst.AsIterNext()
			it := fr.Registers[iterReg].IteratorObj()
			next, exhausted, msg := vm.iterNext(it)
			if msg != "" {
				if err, handled := fault(msg); !handled {
					return value.Null, err
				}
				continue
			}
			if exhausted {
				fr.IP = fr.IP + 1 + int(offset)
				skipIncrement = true
			} else {
				fr.Registers[resultReg] = next
			}

		case ir.OpCall:
			off, argCount := inst.AsCall()
			refs := fr.Module.ExtraSlice(off, argCount+1)
			callee := fr.Registers[ir.Ref(refs[0])]
			if callee.Kind != value.KindFunction {
				if err, handled := fault("call target is not a function"); !handled {
					return value.Null, err
				}
				continue
			}
			fn := callee.FunctionObj()
			if int(fn.Arity) != int(argCount) {
				if err, handled := fault(fmt.Sprintf("function %s expects %d args, got %d", fn.Name, fn.Arity, argCount)); !handled {
					return value.Null, err
				}
				continue
			}
			numLocals := int(fn.Arity) + len(fn.Body)
			registers := make([]value.Value, numLocals)
			for i := uint32(0); i < argCount; i++ {
				registers[i] = fr.Registers[ir.Ref(refs[1+i])]
			}
			newFrame := &Frame{
				FuncName:  fn.Name,
				Module:    fn.Module,
				Body:      fn.Body,
				Params:    int(fn.Arity),
				Registers: registers,
				Captures:  fn.Captures,
				This:      value.Null,
				retReg:    resultReg,
			}
			vm.frames = append(vm.frames, newFrame)
			skipIncrement = true // resume the caller at fr.IP+1 once the callee returns

		case ir.OpThisCall:
			off, argCount := inst.AsThisCall()
			refs := fr.Module.ExtraSlice(off, argCount+2)
			callee := fr.Registers[ir.Ref(refs[0])]
			receiver := fr.Registers[ir.Ref(refs[1])]
			if callee.Kind != value.KindFunction {
				if err, handled := fault("call target is not a function"); !handled {
					return value.Null, err
				}
				continue
			}
			fn := callee.FunctionObj()
			if int(fn.Arity) != int(argCount) {
				if err, handled := fault(fmt.Sprintf("function %s expects %d args, got %d", fn.Name, fn.Arity, argCount)); !handled {
					return value.Null, err
				}
				continue
			}
			numLocals := int(fn.Arity) + len(fn.Body)
			registers := make([]value.Value, numLocals)
			for i := uint32(0); i < argCount; i++ {
				registers[i] = fr.Registers[ir.Ref(refs[2+i])]
			}
			newFrame := &Frame{
				FuncName:  fn.Name,
				Module:    fn.Module,
				Body:      fn.Body,
				Params:    int(fn.Arity),
				Registers: registers,
				Captures:  fn.Captures,
				This:      receiver,
				retReg:    resultReg,
			}
			vm.frames = append(vm.frames, newFrame)
			skipIncrement = true

		case ir.OpRet:
			retVal := fr.Registers[inst.AsUn()]
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				lastRet = retVal
				continue
			}
			caller := vm.frames[len(vm.frames)-1]
			caller.Registers[fr.retReg] = retVal
			continue

		case ir.OpPushErrHandler:
			resumeOffset, catchReg := inst.AsErrHandler()
			fr.Handlers = append(fr.Handlers, errHandler{
				resumeIP: fr.IP + 1 + int(resumeOffset),
				catchReg: catchReg,
			})
		case ir.OpPopErrHandler:
			if len(fr.Handlers) == 0 {
				return value.Null, fmt.Errorf("vm: pop_err_handler with an empty handler stack in %s", fr.FuncName)
			}
			fr.Handlers = fr.Handlers[:len(fr.Handlers)-1]
		case ir.OpUnwrapErrorOrJump:
			cond, offset := inst.AsJumpCond()
			v := fr.Registers[cond]
			if v.Kind != value.KindError {
				fr.IP = fr.IP + 1 + int(offset)
				skipIncrement = true
			} else {
				fr.Registers[resultReg] = unwrapError(v)
			}
		case ir.OpRaise:
			v := fr.Registers[inst.AsUn()]
			snap := vm.snapshotTraceback()
			if !vm.deliver(v) {
				return value.Null, &RuntimeError{Traceback: &diag.Traceback{Message: v.String(), Frames: snap}}
			}
			skipIncrement = true

		case ir.OpNative:
			off, argCount := inst.AsNative()
			refs := fr.Module.ExtraSlice(off, argCount+2)
			name := fr.Module.String(refs[0], refs[1])
			args := make([]value.Value, argCount)
			for i := uint32(0); i < argCount; i++ {
				args[i] = fr.Registers[ir.Ref(refs[2+i])]
			}
			nf, ok := vm.natives[name]
			if !ok {
				if err, handled := fault("unknown native function " + name); !handled {
					return value.Null, err
				}
				continue
			}
			res, err := nf(args)
			if err != nil {
				if rerr, handled := fault(err.Error()); !handled {
					return value.Null, rerr
				}
				continue
			}
			fr.Registers[resultReg] = res

		default:
			return value.Null, fmt.Errorf("vm: unimplemented opcode %s", inst.Op)
		}

		if shouldIncrement && !skipIncrement {
			fr.IP++
		}
	}
}
