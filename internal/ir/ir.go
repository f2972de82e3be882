// Package ir defines the linear, register-based bytecode the compiler
// emits and the VM executes: the opcode set, the packed instruction
// encoding, and the on-disk module layout (struct-of-arrays code, an
// extra-operand pool, and a string pool).
//
// Registers are addressed by Ref, an opaque handle whose meaning depends
// on context: inside a function body it is a register index; inside the
// extra-operand pool it is an offset into that pool. Instruction i of a
// function with P parameters writes its result, if any, to register P+i —
// the "instruction-as-register" scheme described by has_result below.
package ir

import "math"

// Ref is an opaque 32-bit handle: a register index or an extra-pool
// offset, depending on where it appears.
type Ref uint32

// Op identifies an instruction's operation.
type Op uint8

const (
	// literals
	OpLoadNull Op = iota
	OpLoadTrue
	OpLoadFalse
	OpLoadInt
	OpLoadNum
	OpLoadStr

	// aggregates
	OpBuildTuple
	OpBuildList
	OpBuildMap
	OpBuildRange
	OpBuildRangeStep

	// bindings & movement
	OpMov
	OpLoadGlobal
	OpStoreGlobal
	OpLoadCapture
	OpLoadThis
	OpBuildFunc
	OpDiscard

	// arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpDivFloor
	OpRem
	OpPow
	OpNeg

	// bitwise
	OpBAnd
	OpBOr
	OpBXor
	OpBNot
	OpShl
	OpShr

	// comparison
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte

	// unary logical
	OpNot

	// mutation
	OpAppend
	OpSetIndex

	// type
	OpAs
	OpIs

	// errors & tags
	OpBuildError
	OpBuildErrorNull
	OpIsError
	OpUnwrapError
	OpBuildTagged
	OpBuildTaggedNull
	OpUnwrapTagged
	OpUnwrapTaggedOrNull

	// sequence shape
	OpCheckLen
	OpAssertLen

	// indexed access
	OpGet
	OpGetOrNull

	// control
	OpJump
	OpJumpIfFalse
	OpJumpIfTrue

	// iteration
	OpIterInit
	OpIterNext

	// calls, returns, error handling
	OpCall
	OpThisCall
	OpRet
	OpPushErrHandler
	OpPopErrHandler
	OpUnwrapErrorOrJump
	OpRaise

	// host
	OpNative

	opCount
)

var opNames = [opCount]string{
	OpLoadNull: "load_null", OpLoadTrue: "load_true", OpLoadFalse: "load_false",
	OpLoadInt: "load_int", OpLoadNum: "load_num", OpLoadStr: "load_str",
	OpBuildTuple: "build_tuple", OpBuildList: "build_list", OpBuildMap: "build_map",
	OpBuildRange: "build_range", OpBuildRangeStep: "build_range_step",
	OpMov: "mov", OpLoadGlobal: "load_global", OpStoreGlobal: "store_global",
	OpLoadCapture: "load_capture", OpLoadThis: "load_this", OpBuildFunc: "build_func",
	OpDiscard: "discard",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpDivFloor: "div_floor",
	OpRem: "rem", OpPow: "pow", OpNeg: "neg",
	OpBAnd: "band", OpBOr: "bor", OpBXor: "bxor", OpBNot: "bnot", OpShl: "shl", OpShr: "shr",
	OpEq: "eq", OpNeq: "neq", OpLt: "lt", OpLte: "lte", OpGt: "gt", OpGte: "gte",
	OpNot:    "not",
	OpAppend: "append", OpSetIndex: "set_index",
	OpAs: "as", OpIs: "is",
	OpBuildError: "build_error", OpBuildErrorNull: "build_error_null",
	OpIsError: "is_error", OpUnwrapError: "unwrap_error",
	OpBuildTagged: "build_tagged", OpBuildTaggedNull: "build_tagged_null",
	OpUnwrapTagged: "unwrap_tagged", OpUnwrapTaggedOrNull: "unwrap_tagged_or_null",
	OpCheckLen: "check_len", OpAssertLen: "assert_len",
	OpGet: "get", OpGetOrNull: "get_or_null",
	OpJump: "jump", OpJumpIfFalse: "jump_if_false", OpJumpIfTrue: "jump_if_true",
	OpIterInit: "iter_init", OpIterNext: "iter_next",
	OpCall: "call", OpThisCall: "this_call", OpRet: "ret",
	OpPushErrHandler: "push_err_handler", OpPopErrHandler: "pop_err_handler",
	OpUnwrapErrorOrJump: "unwrap_error_or_jump", OpRaise: "raise",
	OpNative: "native",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "op(?)"
}

// HasResult reports whether op writes a value to this instruction's own
// register (instruction index i -> register P+i, P = function param count).
// An instruction for which HasResult is false must never be referenced by
// a later operand as if it produced a value.
func HasResult(op Op) bool {
	switch op {
	case OpJump, OpJumpIfFalse, OpJumpIfTrue, OpRet, OpStoreGlobal, OpSetIndex,
		OpPushErrHandler, OpPopErrHandler, OpAppend, OpAssertLen, OpRaise, OpDiscard, OpMov:
		return false
	default:
		return true
	}
}

// NeedsDebugInfo reports whether op requires a source-offset entry in the
// module's debug table: operations that can raise a runtime error or that
// mark a statement boundary for tracebacks.
func NeedsDebugInfo(op Op) bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpDivFloor, OpRem, OpPow, OpNeg,
		OpBAnd, OpBOr, OpBXor, OpBNot, OpShl, OpShr,
		OpGet, OpGetOrNull, OpSetIndex, OpAs,
		OpCheckLen, OpAssertLen, OpCall, OpThisCall, OpRaise, OpUnwrapError,
		OpUnwrapTagged, OpIterNext, OpNative, OpDiscard:
		return true
	default:
		return false
	}
}

// Instruction is the packed 8-byte union: an Op plus a 64-bit payload
// interpreted through opcode-keyed accessors instead of a C-style union,
// per the reimplementation guidance for this IR.
type Instruction struct {
	Op   Op
	Data uint64
}

func pack32(hi, lo uint32) uint64 {
	return uint64(hi)<<32 | uint64(lo)
}

func unpack32(data uint64) (hi, lo uint32) {
	return uint32(data >> 32), uint32(data)
}

// AsInt decodes a load_int payload.
func (i Instruction) AsInt() int64 { return int64(i.Data) }

// AsNum decodes a load_num payload (IEEE-754 bits).
func (i Instruction) AsNum() float64 { return math.Float64frombits(i.Data) }

// AsStr decodes a load_str payload: (string-pool offset, length).
func (i Instruction) AsStr() (offset, length uint32) { return unpack32(i.Data) }

// AsExtra decodes a payload that is a single extra-pool offset paired with
// a count: (extra offset, count).
func (i Instruction) AsExtra() (offset, count uint32) { return unpack32(i.Data) }

// AsBin decodes a two-register payload: (lhs, rhs).
func (i Instruction) AsBin() (lhs, rhs Ref) {
	hi, lo := unpack32(i.Data)
	return Ref(hi), Ref(lo)
}

// AsUn decodes a single-register payload.
func (i Instruction) AsUn() Ref { return Ref(i.Data) }

// AsJump decodes a jump payload: a signed offset in instruction slots,
// relative to the instruction immediately following this one.
func (i Instruction) AsJump() int32 { return int32(i.Data) }

// AsJumpCond decodes a conditional jump payload: (condition register,
// signed offset).
func (i Instruction) AsJumpCond() (cond Ref, offset int32) {
	hi, lo := unpack32(i.Data)
	return Ref(hi), int32(lo)
}

// AsRange decodes a build_range payload: (start, end) registers. Step
// defaults to 1; build_range_step is the variant used when a step
// expression was written explicitly.
func (i Instruction) AsRange() (start, end Ref) {
	hi, lo := unpack32(i.Data)
	return Ref(hi), Ref(lo)
}

// AsRangeStep decodes a build_range_step payload: an extra-pool offset to
// three consecutive Refs (start, end, step).
func (i Instruction) AsRangeStep() (extraOffset uint32) {
	hi, _ := unpack32(i.Data)
	return hi
}

// AsCall decodes a call payload: (extra offset, arg count). The callee and
// argument registers live in the extra pool starting at offset: extra[0]
// is the callee, extra[1:1+count] are the arguments.
func (i Instruction) AsCall() (extraOffset, argCount uint32) { return unpack32(i.Data) }

// AsThisCall decodes a this_call payload: (extra offset, arg count).
// extra[0] is the callee, extra[1] is the receiver bound to `this` in the
// new frame, extra[2:2+count] are the arguments.
func (i Instruction) AsThisCall() (extraOffset, argCount uint32) { return unpack32(i.Data) }

// AsIterNext decodes an iter_next payload: (iterator register, jump
// offset taken when the iterator is exhausted). The destination register
// is the instruction's own register per HasResult.
func (i Instruction) AsIterNext() (iter Ref, offset int32) {
	hi, lo := unpack32(i.Data)
	return Ref(hi), int32(lo)
}

// AsErrHandler decodes a push_err_handler payload: (resume offset in
// instruction slots, catch register).
func (i Instruction) AsErrHandler() (resumeOffset int32, catchReg Ref) {
	hi, lo := unpack32(i.Data)
	return int32(hi), Ref(lo)
}

// AsNative decodes a native payload: (extra offset, arg count).
// extra[offset] and extra[offset+1] hold the name's string-pool offset and
// length; the argument registers follow from extra[offset+2].
func (i Instruction) AsNative() (extraOffset, argCount uint32) { return unpack32(i.Data) }

// Encoders used by the compiler.

func NewLoadInt(v int64) Instruction    { return Instruction{Op: OpLoadInt, Data: uint64(v)} }
func NewLoadNum(v float64) Instruction  { return Instruction{Op: OpLoadNum, Data: math.Float64bits(v)} }
func NewLoadStr(offset, length uint32) Instruction {
	return Instruction{Op: OpLoadStr, Data: pack32(offset, length)}
}
func NewBin(op Op, lhs, rhs Ref) Instruction {
	return Instruction{Op: op, Data: pack32(uint32(lhs), uint32(rhs))}
}
func NewUn(op Op, x Ref) Instruction { return Instruction{Op: op, Data: uint64(x)} }
func NewExtra(op Op, offset, count uint32) Instruction {
	return Instruction{Op: op, Data: pack32(offset, count)}
}
func NewJump(offset int32) Instruction {
	return Instruction{Op: OpJump, Data: uint64(uint32(offset))}
}
func NewJumpCond(op Op, cond Ref, offset int32) Instruction {
	return Instruction{Op: op, Data: pack32(uint32(cond), uint32(offset))}
}
func NewErrHandler(resumeOffset int32, catchReg Ref) Instruction {
	return Instruction{Op: OpPushErrHandler, Data: pack32(uint32(resumeOffset), uint32(catchReg))}
}
func NewIterNext(iter Ref, offset int32) Instruction {
	return Instruction{Op: OpIterNext, Data: pack32(uint32(iter), uint32(offset))}
}
func NewRangeStep(extraOffset uint32) Instruction {
	return Instruction{Op: OpBuildRangeStep, Data: pack32(extraOffset, 0)}
}

// AsBuildFunc decodes a build_func payload: (extra offset, capture count).
// extra[offset] holds the target Function's index (packed as a plain
// uint32, not a Ref); extra[offset+1 : offset+1+count] holds the
// enclosing frame's registers to copy into the new closure's captures, in
// capture-index order.
func (i Instruction) AsBuildFunc() (extraOffset, captureCount uint32) { return unpack32(i.Data) }

func NewBuildFunc(extraOffset, captureCount uint32) Instruction {
	return Instruction{Op: OpBuildFunc, Data: pack32(extraOffset, captureCount)}
}

// Code is the struct-of-arrays instruction stream: parallel Op and Data
// slices keep dispatch cache-friendly (no per-instruction struct padding
// straddling cache lines when only Op is being scanned, e.g. by a
// disassembler).
type Code struct {
	Op   []Op
	Data []uint64
}

func (c *Code) Len() int { return len(c.Op) }

func (c *Code) At(i int) Instruction {
	return Instruction{Op: c.Op[i], Data: c.Data[i]}
}

func (c *Code) Emit(inst Instruction) int {
	c.Op = append(c.Op, inst.Op)
	c.Data = append(c.Data, inst.Data)
	return len(c.Op) - 1
}

func (c *Code) Patch(i int, inst Instruction) {
	c.Op[i] = inst.Op
	c.Data[i] = inst.Data
}

// TypeTag mirrors ast.TypeTag for the `as`/`is` opcodes' operand; the
// compiler translates ast.TypeTag to this enumeration one-for-one and the
// VM's is/as handling and value.Kind must agree with this ordering.
type TypeTag uint8

const (
	TypeNull TypeTag = iota
	TypeBool
	TypeInt
	TypeNum
	TypeStr
	TypeTuple
	TypeList
	TypeMap
	TypeRange
	TypeError
	TypeTagged
	TypeFunction
	TypeIterator
)

// AsBinTy decodes an as/is payload: (operand register, type tag).
func (i Instruction) AsBinTy() (operand Ref, ty TypeTag) {
	hi, lo := unpack32(i.Data)
	return Ref(hi), TypeTag(lo)
}

func NewBinTy(op Op, operand Ref, ty TypeTag) Instruction {
	return Instruction{Op: op, Data: pack32(uint32(operand), uint32(ty))}
}

// DebugInfo maps instruction index to the source byte offset it was
// compiled from, populated only where NeedsDebugInfo(op) is true.
type DebugInfo struct {
	SourcePath string
	Source     string
	Lines      map[int]int // instruction index -> source byte offset
}

// Function is one compiled function body: a slice of instruction indices
// into the owning Bytecode's shared Code, plus arity and register count
// (captures are not recorded here; build_func supplies their count and
// values).
type Function struct {
	Name      string
	Params    int
	Body      []int // instruction indices into Bytecode.Code
	NumLocals int   // total registers this function's frame needs
}

// Bytecode is one compiled module: shared struct-of-arrays code, an
// extra-operand pool for variable-length operands, a string pool, and the
// list of functions defined at top level (main is Functions[MainIndex]).
type Bytecode struct {
	Code      Code
	Extra     []uint32
	Strings   []byte
	Functions []Function
	MainIndex int
	Debug     DebugInfo

	// BuildID distinguishes modules compiled from identical source text at
	// different times.
	BuildID string
}

// InternString appends s to the string pool and returns its (offset,
// length), reusing an existing identical run if the pool already ends
// with one (cheap interning for repeated literals within one module).
func (b *Bytecode) InternString(s string) (offset, length uint32) {
	if n := len(s); n > 0 && len(b.Strings) >= n {
		tail := b.Strings[len(b.Strings)-n:]
		if string(tail) == s {
			return uint32(len(b.Strings) - n), uint32(n)
		}
	}
	offset = uint32(len(b.Strings))
	b.Strings = append(b.Strings, s...)
	return offset, uint32(len(s))
}

func (b *Bytecode) String(offset, length uint32) string {
	return string(b.Strings[offset : offset+length])
}

// PushExtra appends a run of Refs to the extra-operand pool and returns
// its starting offset.
func (b *Bytecode) PushExtra(refs ...Ref) uint32 {
	offset := uint32(len(b.Extra))
	for _, r := range refs {
		b.Extra = append(b.Extra, uint32(r))
	}
	return offset
}

func (b *Bytecode) ExtraSlice(offset, count uint32) []uint32 {
	return b.Extra[offset : offset+count]
}
