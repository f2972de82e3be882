package compiler

import (
	"lumen/internal/ast"
	"lumen/internal/ir"
	"lumen/internal/token"
)

// compileStmt compiles one statement. The returned cvalue is meaningful
// only when ok is true (the statement was an ExprStmt), matching the
// block-value rule: a block's value is its last ExprStmt's value, or null
// if it ends in a decl/jump/import.
func (fc *funcCompiler) compileStmt(st ast.Stmt) (cvalue, bool) {
	switch s := st.(type) {
	case *ast.Decl:
		v := fc.compileExpr(s.Value)
		fc.letBindPattern(s.Pattern, v, s.Kind == ast.DeclLet)
		return cvalue{}, false
	case *ast.Jump:
		fc.compileJump(s)
		return cvalue{}, false
	case *ast.Import:
		fc.compileImport(s)
		return cvalue{}, false
	case *ast.ExprStmt:
		return fc.compileExpr(s.X), true
	default:
		fc.c.errorf(st.Pos(), "compiler: unhandled statement node %T", st)
		return cvalue{}, false
	}
}

func (fc *funcCompiler) compileJump(s *ast.Jump) {
	switch s.Kind {
	case ast.JumpBreak:
		loop := fc.innermostLoop()
		if loop == nil {
			fc.c.errorf(s.Pos(), "break outside a loop")
			return
		}
		j, _ := fc.emitAt(s.Pos(), ir.NewJump(0))
		loop.breakJumps = append(loop.breakJumps, j)
	case ast.JumpContinue:
		loop := fc.innermostLoop()
		if loop == nil {
			fc.c.errorf(s.Pos(), "continue outside a loop")
			return
		}
		here := fc.here()
		fc.emitAt(s.Pos(), ir.NewJump(int32(loop.continueTarget-(here+1))))
	case ast.JumpReturn:
		var reg ir.Ref
		if s.Value != nil {
			v := fc.compileExpr(s.Value)
			reg = fc.materialize(s.Value.Pos(), v)
		} else {
			reg = fc.materialize(s.Pos(), cvalue{kind: cvNull})
		}
		fc.emitAt(s.Pos(), ir.NewUn(ir.OpRet, reg))
	}
}

// bindNew reserves a fresh register for name and copies value into it, so
// the symbol's register is never aliased to some other binding's register
// (important for a plain `let x = y`, where x and y must be independently
// reassignable afterward).
func (fc *funcCompiler) bindNew(pos token.Position, name string, value cvalue, mutable bool) {
	slot := fc.reserveSlot(pos)
	src := fc.materialize(pos, value)
	fc.emitAt(pos, ir.NewBin(ir.OpMov, slot, src))
	if !fc.declare(name, slot, mutable) {
		fc.c.errorf(pos, "redeclaration of %q in this scope", name)
	}
}

// letBindPattern implements let/const destructuring: assert_len on the
// source for a tuple/list pattern, then get each element in turn. `_`
// elements are still evaluated (discard checks the value, raising if it's
// an uncaught error, per the discard-on-error rule).
func (fc *funcCompiler) letBindPattern(p *ast.Pattern, value cvalue, mutable bool) {
	if p.Discard {
		reg := fc.materialize(p.Pos, value)
		fc.emitAt(p.Pos, ir.NewUn(ir.OpDiscard, reg))
		return
	}
	if p.Elems != nil {
		src := fc.materialize(p.Pos, value)
		fc.emitAt(p.Pos, ir.NewBin(ir.OpAssertLen, src, ir.Ref(len(p.Elems))))
		for idx, el := range p.Elems {
			idxReg := fc.materialize(p.Pos, cvalue{kind: cvInt, i: int64(idx)})
			got := fc.emitAt1(p.Pos, ir.NewBin(ir.OpGet, src, idxReg))
			fc.letBindPattern(el, cvRegVal(got), mutable)
		}
		return
	}
	fc.bindNew(p.Pos, p.Name, value, mutable)
}

func (fc *funcCompiler) compileAssign(n *ast.Assign) cvalue {
	rhs := fc.compileExpr(n.Value)
	if n.Op != ast.AssignPlain {
		cur := fc.compileExpr(n.Target)
		folded, ok := foldBinary(augmentedOp(n.Op), cur, rhs)
		if ok {
			rhs = folded
		} else {
			curReg := fc.materialize(n.Target.Pos(), cur)
			rhsReg := fc.materialize(n.Value.Pos(), rhs)
			op := infixOps[augmentedOp(n.Op)]
			rhs = cvRegVal(fc.emitAt1(n.Pos(), ir.NewBin(op, curReg, rhsReg)))
		}
	}
	return fc.assignTo(n.Pos(), n.Target, rhs)
}

func augmentedOp(op ast.AssignOp) ast.InfixOp {
	switch op {
	case ast.AssignAdd:
		return ast.OpAdd
	case ast.AssignSub:
		return ast.OpSub
	case ast.AssignMul:
		return ast.OpMul
	case ast.AssignDiv:
		return ast.OpDiv
	}
	return ast.OpAdd
}

func (fc *funcCompiler) assignTo(pos token.Position, target ast.Expr, value cvalue) cvalue {
	switch t := target.(type) {
	case *ast.Ident:
		res, ok := fc.resolveAndMaterialize(t.Name)
		if !ok {
			fc.c.errorf(pos, "undefined name %q", t.Name)
			return value
		}
		if !res.mutable {
			fc.c.errorf(pos, "cannot assign to const %q", t.Name)
			return value
		}
		srcReg := fc.materialize(pos, value)
		if res.kind == resGlobal && !fc.isRoot() {
			fc.emitAt(pos, ir.NewBin(ir.OpStoreGlobal, res.reg, srcReg))
		} else {
			fc.emitAt(pos, ir.NewBin(ir.OpMov, res.reg, srcReg))
		}
		return cvRegVal(srcReg)
	case *ast.Suffix:
		if t.Kind != ast.SuffixIndex {
			fc.c.errorf(pos, "invalid assignment target")
			return value
		}
		xv := fc.compileExpr(t.X)
		iv := fc.compileExpr(t.Index)
		xReg := fc.materialize(t.X.Pos(), xv)
		iReg := fc.materialize(t.Index.Pos(), iv)
		srcReg := fc.materialize(pos, value)
		off := fc.c.bc.PushExtra(xReg, iReg, srcReg)
		fc.emitAt(pos, ir.NewExtra(ir.OpSetIndex, off, 3))
		return cvRegVal(srcReg)
	default:
		fc.c.errorf(pos, "invalid assignment target")
		return value
	}
}
