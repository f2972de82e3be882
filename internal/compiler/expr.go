package compiler

import (
	"path"
	"strings"

	"lumen/internal/ast"
	"lumen/internal/ir"
	"lumen/internal/token"
)

// compileExpr lowers e, returning either a compile-time constant (so a
// caller folding an enclosing expression can still fold through it) or a
// register already holding the computed value.
func (fc *funcCompiler) compileExpr(e ast.Expr) cvalue {
	switch n := e.(type) {
	case *ast.Literal:
		return fc.compileLiteral(n)
	case *ast.Ident:
		return fc.compileIdent(n)
	case *ast.Grouped:
		return fc.compileExpr(n.X)
	case *ast.Discard:
		fc.c.errorf(n.Pos(), "_ cannot be used as a value")
		return cvalue{kind: cvNull}
	case *ast.Tuple:
		return fc.compileAggregate(n.Pos(), ir.OpBuildTuple, n.Elems)
	case *ast.List:
		return fc.compileAggregate(n.Pos(), ir.OpBuildList, n.Elems)
	case *ast.Map:
		return fc.compileMap(n)
	case *ast.Range:
		return fc.compileRange(n)
	case *ast.Prefix:
		return fc.compilePrefix(n)
	case *ast.Infix:
		return fc.compileInfix(n)
	case *ast.TypeInfix:
		return fc.compileTypeInfix(n)
	case *ast.Suffix:
		return fc.compileSuffix(n)
	case *ast.ErrorLit:
		return fc.compileErrorLit(n)
	case *ast.Tagged:
		return fc.compileTagged(n)
	case *ast.Fn:
		return fc.compileFn(n)
	case *ast.Native:
		return fc.compileNative(n)
	case *ast.Block:
		return fc.compileBlock(n)
	case *ast.Assign:
		return fc.compileAssign(n)
	case *ast.If:
		return fc.compileIf(n)
	case *ast.While:
		return fc.compileWhile(n)
	case *ast.For:
		return fc.compileFor(n)
	case *ast.Match:
		return fc.compileMatch(n)
	case *ast.Catch:
		return fc.compileCatch(n)
	default:
		fc.c.errorf(e.Pos(), "compiler: unhandled expression node %T", e)
		return cvalue{kind: cvNull}
	}
}

func (fc *funcCompiler) compileLiteral(n *ast.Literal) cvalue {
	if n.Parts != nil {
		return fc.compileInterp(n)
	}
	switch n.Kind {
	case ast.LitNull:
		return cvalue{kind: cvNull}
	case ast.LitBool:
		return cvalue{kind: cvBool, b: n.Bool}
	case ast.LitInt:
		return cvalue{kind: cvInt, i: n.Int}
	case ast.LitFloat:
		return cvalue{kind: cvNum, n: n.Num}
	case ast.LitString:
		return cvalue{kind: cvStr, s: n.Str}
	case ast.LitBytes:
		return cvalue{kind: cvStr, s: string(n.Byt)}
	default:
		fc.c.errorf(n.Pos(), "compiler: unhandled literal kind %d", n.Kind)
		return cvalue{kind: cvNull}
	}
}

// compileInterp lowers an interpolated string into a left-to-right chain
// of `as str` casts and `add` concatenations (SPEC_FULL §4: no dedicated
// string-builder opcode).
func (fc *funcCompiler) compileInterp(n *ast.Literal) cvalue {
	var acc ir.Ref
	have := false
	for _, part := range n.Parts {
		var partReg ir.Ref
		if lit, ok := part.(*ast.Literal); ok && lit.Kind == ast.LitString && lit.Parts == nil {
			partReg = fc.materialize(part.Pos(), cvalue{kind: cvStr, s: lit.Str})
		} else {
			v := fc.compileExpr(part)
			if v.kind == cvStr {
				partReg = fc.materialize(part.Pos(), v)
			} else {
				raw := fc.materialize(part.Pos(), v)
				partReg = fc.emitAt1(part.Pos(), ir.NewBinTy(ir.OpAs, raw, ir.TypeStr))
			}
		}
		if !have {
			acc, have = partReg, true
			continue
		}
		acc = fc.emitAt1(part.Pos(), ir.NewBin(ir.OpAdd, acc, partReg))
	}
	if !have {
		return cvalue{kind: cvStr, s: ""}
	}
	return cvRegVal(acc)
}

func (fc *funcCompiler) compileIdent(n *ast.Ident) cvalue {
	if n.Name == "this" {
		return cvRegVal(fc.emitAt1(n.Pos(), ir.Instruction{Op: ir.OpLoadThis}))
	}
	res, ok := fc.resolveAndMaterialize(n.Name)
	if !ok {
		fc.c.errorf(n.Pos(), "undefined name %q", n.Name)
		return cvalue{kind: cvNull}
	}
	if res.kind == resGlobal && !fc.isRoot() {
		return cvRegVal(fc.emitAt1(n.Pos(), ir.NewUn(ir.OpLoadGlobal, res.reg)))
	}
	return cvRegVal(res.reg)
}

func (fc *funcCompiler) compileAggregate(pos token.Position, op ir.Op, elems []ast.Expr) cvalue {
	regs := make([]ir.Ref, len(elems))
	for i, e := range elems {
		v := fc.compileExpr(e)
		regs[i] = fc.materialize(e.Pos(), v)
	}
	off := fc.c.bc.PushExtra(regs...)
	return cvRegVal(fc.emitAt1(pos, ir.NewExtra(op, off, uint32(len(regs)))))
}

func (fc *funcCompiler) compileMap(n *ast.Map) cvalue {
	regs := make([]ir.Ref, 0, len(n.Entries)*2)
	for _, entry := range n.Entries {
		kv := fc.compileExpr(entry.Key)
		vv := fc.compileExpr(entry.Value)
		regs = append(regs, fc.materialize(entry.Key.Pos(), kv), fc.materialize(entry.Value.Pos(), vv))
	}
	off := fc.c.bc.PushExtra(regs...)
	return cvRegVal(fc.emitAt1(n.Pos(), ir.NewExtra(ir.OpBuildMap, off, uint32(len(n.Entries)))))
}

func (fc *funcCompiler) compileRange(n *ast.Range) cvalue {
	startV := fc.compileExpr(n.Start)
	endV := fc.compileExpr(n.End)
	startReg := fc.materialize(n.Start.Pos(), startV)
	endReg := fc.materialize(n.End.Pos(), endV)
	if n.Step == nil {
		return cvRegVal(fc.emitAt1(n.Pos(), ir.NewBin(ir.OpBuildRange, startReg, endReg)))
	}
	stepV := fc.compileExpr(n.Step)
	stepReg := fc.materialize(n.Step.Pos(), stepV)
	off := fc.c.bc.PushExtra(startReg, endReg, stepReg)
	return cvRegVal(fc.emitAt1(n.Pos(), ir.NewRangeStep(off)))
}

func (fc *funcCompiler) compilePrefix(n *ast.Prefix) cvalue {
	v := fc.compileExpr(n.X)
	if folded, ok := foldUnary(n.Op, v); ok {
		return folded
	}
	reg := fc.materialize(n.X.Pos(), v)
	var op ir.Op
	switch n.Op {
	case ast.PrefixNeg:
		op = ir.OpNeg
	case ast.PrefixNot:
		op = ir.OpNot
	case ast.PrefixBitNot:
		op = ir.OpBNot
	}
	return cvRegVal(fc.emitAt1(n.Pos(), ir.NewUn(op, reg)))
}

var infixOps = map[ast.InfixOp]ir.Op{
	ast.OpAdd: ir.OpAdd, ast.OpSub: ir.OpSub, ast.OpMul: ir.OpMul,
	ast.OpDiv: ir.OpDiv, ast.OpDivFloor: ir.OpDivFloor, ast.OpRem: ir.OpRem, ast.OpPow: ir.OpPow,
	ast.OpShl: ir.OpShl, ast.OpShr: ir.OpShr,
	ast.OpBitAnd: ir.OpBAnd, ast.OpBitOr: ir.OpBOr, ast.OpBitXor: ir.OpBXor,
	ast.OpEq: ir.OpEq, ast.OpNotEq: ir.OpNeq,
	ast.OpLt: ir.OpLt, ast.OpLtEq: ir.OpLte, ast.OpGt: ir.OpGt, ast.OpGtEq: ir.OpGte,
}

func (fc *funcCompiler) compileInfix(n *ast.Infix) cvalue {
	if n.Op == ast.OpAnd || n.Op == ast.OpOr {
		return fc.compileShortCircuit(n)
	}
	if n.Op == ast.OpIn {
		return fc.compileIn(n)
	}
	left := fc.compileExpr(n.Left)
	right := fc.compileExpr(n.Right)
	if folded, ok := foldBinary(n.Op, left, right); ok {
		return folded
	}
	op, ok := infixOps[n.Op]
	if !ok {
		fc.c.errorf(n.Pos(), "compiler: unhandled infix operator %d", n.Op)
		return cvalue{kind: cvNull}
	}
	lReg := fc.materialize(n.Left.Pos(), left)
	rReg := fc.materialize(n.Right.Pos(), right)
	return cvRegVal(fc.emitAt1(n.Pos(), ir.NewBin(op, lReg, rReg)))
}

// compileShortCircuit implements the short-circuit law: when the left
// operand is not a compile-time constant, the right operand's code is
// still emitted (so it can be referenced) but only ever *executed* when
// the left side didn't already decide the result.
func (fc *funcCompiler) compileShortCircuit(n *ast.Infix) cvalue {
	left := fc.compileExpr(n.Left)
	if left.kind == cvBool {
		if n.Op == ast.OpAnd {
			if !left.b {
				return left
			}
			return fc.compileExpr(n.Right)
		}
		if left.b {
			return left
		}
		return fc.compileExpr(n.Right)
	}
	resultSlot := fc.reserveSlot(n.Pos())
	lReg := fc.materialize(n.Left.Pos(), left)
	fc.emitAt(n.Pos(), ir.NewBin(ir.OpMov, resultSlot, lReg))
	op := ir.OpJumpIfFalse
	if n.Op == ast.OpOr {
		op = ir.OpJumpIfTrue
	}
	skip, _ := fc.emitAt(n.Pos(), ir.NewJumpCond(op, resultSlot, 0))
	right := fc.compileExpr(n.Right)
	rReg := fc.materialize(n.Right.Pos(), right)
	fc.emitAt(n.Pos(), ir.NewBin(ir.OpMov, resultSlot, rReg))
	fc.patchJumpCond(skip, fc.here())
	return cvRegVal(resultSlot)
}

// compileIn lowers `x in container` into a reserved host call: no
// membership opcode exists in the VM's instruction set, so this is the
// same seam `native(...)` uses for every other host-provided behavior
// (see DESIGN.md).
func (fc *funcCompiler) compileIn(n *ast.Infix) cvalue {
	left := fc.compileExpr(n.Left)
	right := fc.compileExpr(n.Right)
	lReg := fc.materialize(n.Left.Pos(), left)
	rReg := fc.materialize(n.Right.Pos(), right)
	nameOff, nameLen := fc.c.bc.InternString("$contains")
	off := fc.c.bc.PushExtra(ir.Ref(nameOff), ir.Ref(nameLen), rReg, lReg)
	return cvRegVal(fc.emitAt1(n.Pos(), ir.NewExtra(ir.OpNative, off, 2)))
}

func (fc *funcCompiler) compileTypeInfix(n *ast.TypeInfix) cvalue {
	v := fc.compileExpr(n.X)
	reg := fc.materialize(n.X.Pos(), v)
	op := ir.OpAs
	if n.Op == ast.TypeIs {
		op = ir.OpIs
	}
	return cvRegVal(fc.emitAt1(n.Pos(), ir.NewBinTy(op, reg, ir.TypeTag(n.Type))))
}

func (fc *funcCompiler) compileSuffix(n *ast.Suffix) cvalue {
	switch n.Kind {
	case ast.SuffixCall:
		return fc.compileCall(n.Pos(), n.X, n.Args)
	case ast.SuffixIndex:
		xv := fc.compileExpr(n.X)
		iv := fc.compileExpr(n.Index)
		xReg := fc.materialize(n.X.Pos(), xv)
		iReg := fc.materialize(n.Index.Pos(), iv)
		return cvRegVal(fc.emitAt1(n.Pos(), ir.NewBin(ir.OpGet, xReg, iReg)))
	case ast.SuffixIndexOpt:
		xv := fc.compileExpr(n.X)
		iv := fc.compileExpr(n.Index)
		xReg := fc.materialize(n.X.Pos(), xv)
		iReg := fc.materialize(n.Index.Pos(), iv)
		return cvRegVal(fc.emitAt1(n.Pos(), ir.NewBin(ir.OpGetOrNull, xReg, iReg)))
	case ast.SuffixMethodCall:
		return fc.compileMethodCall(n)
	default:
		fc.c.errorf(n.Pos(), "compiler: unhandled suffix kind %d", n.Kind)
		return cvalue{kind: cvNull}
	}
}

func (fc *funcCompiler) compileCall(pos token.Position, callee ast.Expr, args []ast.Expr) cvalue {
	cv := fc.compileExpr(callee)
	calleeReg := fc.materialize(callee.Pos(), cv)
	regs := []ir.Ref{calleeReg}
	for _, a := range args {
		v := fc.compileExpr(a)
		regs = append(regs, fc.materialize(a.Pos(), v))
	}
	off := fc.c.bc.PushExtra(regs...)
	return cvRegVal(fc.emitAt1(pos, ir.NewExtra(ir.OpCall, off, uint32(len(args)))))
}

// compileMethodCall resolves `x.name(args...)`. `append` is the one
// mutating builtin the value model exposes directly as an opcode;
// anything else is sugar for looking `name` up as a map entry on x and
// calling whatever it holds, which is how the language lets a map of
// functions stand in for an object's methods.
func (fc *funcCompiler) compileMethodCall(n *ast.Suffix) cvalue {
	if n.Name == "append" {
		if len(n.Args) != 1 {
			fc.c.errorf(n.Pos(), "append takes exactly one argument")
			return cvalue{kind: cvNull}
		}
		xv := fc.compileExpr(n.X)
		xReg := fc.materialize(n.X.Pos(), xv)
		av := fc.compileExpr(n.Args[0])
		aReg := fc.materialize(n.Args[0].Pos(), av)
		fc.emitAt(n.Pos(), ir.NewBin(ir.OpAppend, xReg, aReg))
		return cvalue{kind: cvNull}
	}
	xv := fc.compileExpr(n.X)
	xReg := fc.materialize(n.X.Pos(), xv)
	nameReg := fc.materialize(n.Pos(), cvalue{kind: cvStr, s: n.Name})
	fnReg := fc.emitAt1(n.Pos(), ir.NewBin(ir.OpGet, xReg, nameReg))
	// this_call binds the receiver (x) to `this` in the callee's frame, so
	// a method looked up off a map can read `this` back to reach its own
	// receiver rather than only the arguments it was given explicitly.
	regs := []ir.Ref{fnReg, xReg}
	for _, a := range n.Args {
		v := fc.compileExpr(a)
		regs = append(regs, fc.materialize(a.Pos(), v))
	}
	off := fc.c.bc.PushExtra(regs...)
	return cvRegVal(fc.emitAt1(n.Pos(), ir.NewExtra(ir.OpThisCall, off, uint32(len(n.Args)))))
}

func (fc *funcCompiler) compileErrorLit(n *ast.ErrorLit) cvalue {
	if n.Inner == nil {
		return cvRegVal(fc.emitAt1(n.Pos(), ir.Instruction{Op: ir.OpBuildErrorNull}))
	}
	v := fc.compileExpr(n.Inner)
	reg := fc.materialize(n.Inner.Pos(), v)
	return cvRegVal(fc.emitAt1(n.Pos(), ir.NewUn(ir.OpBuildError, reg)))
}

func (fc *funcCompiler) compileTagged(n *ast.Tagged) cvalue {
	nameOff, nameLen := fc.c.bc.InternString(n.Name)
	if n.Inner == nil {
		return cvRegVal(fc.emitAt1(n.Pos(), ir.Instruction{Op: ir.OpBuildTaggedNull, Data: packStr(nameOff, nameLen)}))
	}
	v := fc.compileExpr(n.Inner)
	innerReg := fc.materialize(n.Inner.Pos(), v)
	off := fc.c.bc.PushExtra(ir.Ref(nameOff), ir.Ref(nameLen), innerReg)
	return cvRegVal(fc.emitAt1(n.Pos(), ir.NewExtra(ir.OpBuildTagged, off, 1)))
}

func (fc *funcCompiler) compileFn(n *ast.Fn) cvalue {
	names := make([]string, len(n.Params))
	for i, p := range n.Params {
		names[i] = p.Name
	}
	child := fc.c.newFuncCompiler(fc, "<anonymous>", names)
	fc.c.compileFuncBody(child, n.Body.Stmts, n.Body.Pos())
	child.finish()

	capRegs := make([]ir.Ref, len(child.captures))
	for i, ce := range child.captures {
		capRegs[i] = ce.parentReg
	}
	extra := append([]ir.Ref{ir.Ref(child.funcIndex)}, capRegs...)
	off := fc.c.bc.PushExtra(extra...)
	return cvRegVal(fc.emitAt1(n.Pos(), ir.NewBuildFunc(off, uint32(len(capRegs)))))
}

func (fc *funcCompiler) compileNative(n *ast.Native) cvalue {
	nameOff, nameLen := fc.c.bc.InternString(n.Name)
	regs := []ir.Ref{ir.Ref(nameOff), ir.Ref(nameLen)}
	for _, a := range n.Args {
		v := fc.compileExpr(a)
		regs = append(regs, fc.materialize(a.Pos(), v))
	}
	off := fc.c.bc.PushExtra(regs...)
	return cvRegVal(fc.emitAt1(n.Pos(), ir.NewExtra(ir.OpNative, off, uint32(len(n.Args)))))
}

func (fc *funcCompiler) compileBlock(n *ast.Block) cvalue {
	fc.pushScope(scopeBlock)
	var last cvalue
	hasLast := false
	for _, st := range n.Stmts {
		v, ok := fc.compileStmt(st)
		if ok {
			last, hasLast = v, true
		} else {
			hasLast = false
		}
	}
	fc.popScope()
	if hasLast {
		return last
	}
	return cvalue{kind: cvNull}
}

func packStr(offset, length uint32) uint64 { return ir.NewLoadStr(offset, length).Data }

func (fc *funcCompiler) compileImport(n *ast.Import) {
	pathLit := &ast.Literal{Base: ast.Base{At: n.Pos()}, Kind: ast.LitString, Str: n.Path}
	nameOff, nameLen := fc.c.bc.InternString("$import")
	pv := fc.compileExpr(pathLit)
	pReg := fc.materialize(pathLit.Pos(), pv)
	off := fc.c.bc.PushExtra(ir.Ref(nameOff), ir.Ref(nameLen), pReg)
	reg := fc.emitAt1(n.Pos(), ir.NewExtra(ir.OpNative, off, 1))

	alias := n.Alias
	if alias == "" {
		base := path.Base(n.Path)
		alias = strings.TrimSuffix(base, path.Ext(base))
	}
	fc.bindNew(n.Pos(), alias, cvRegVal(reg), false)
}
