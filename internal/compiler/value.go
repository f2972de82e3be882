package compiler

import (
	"lumen/internal/ir"
	"lumen/internal/token"
)

// cvalue is the compiler's compile-time Value (spec §4.2): either a
// register already holding a runtime value, or one of the constant kinds
// the folder and literal compiler produce directly without touching the
// instruction stream until something actually needs a register.
type cvKind uint8

const (
	cvReg cvKind = iota
	cvNull
	cvBool
	cvInt
	cvNum
	cvStr
)

type cvalue struct {
	kind cvKind
	reg  ir.Ref
	b    bool
	i    int64
	n    float64
	s    string
}

func cvRegVal(r ir.Ref) cvalue { return cvalue{kind: cvReg, reg: r} }

// materialize turns a compile-time constant into a register by emitting
// the matching load instruction, or returns an already-live register
// unchanged.
func (fc *funcCompiler) materialize(pos token.Position, v cvalue) ir.Ref {
	switch v.kind {
	case cvReg:
		return v.reg
	case cvNull:
		return fc.emitAt1(pos, ir.Instruction{Op: ir.OpLoadNull})
	case cvBool:
		op := ir.OpLoadFalse
		if v.b {
			op = ir.OpLoadTrue
		}
		return fc.emitAt1(pos, ir.Instruction{Op: op})
	case cvInt:
		return fc.emitAt1(pos, ir.NewLoadInt(v.i))
	case cvNum:
		return fc.emitAt1(pos, ir.NewLoadNum(v.n))
	case cvStr:
		off, length := fc.c.bc.InternString(v.s)
		return fc.emitAt1(pos, ir.NewLoadStr(off, length))
	}
	return fc.emitAt1(pos, ir.Instruction{Op: ir.OpLoadNull})
}
