package compiler

import (
	"lumen/internal/ast"
	"lumen/internal/ir"
)

// compileIf lowers if/else into: evaluate cond, jump_if_false past the
// then-branch, Mov each branch's value into a reserved result register,
// jump past the else-branch at the end of the then-branch.
func (fc *funcCompiler) compileIf(n *ast.If) cvalue {
	condV := fc.compileExpr(n.Cond)
	condReg := fc.materialize(n.Cond.Pos(), condV)
	skipThen, _ := fc.emitAt(n.Pos(), ir.NewJumpCond(ir.OpJumpIfFalse, condReg, 0))

	resultSlot := fc.reserveSlot(n.Pos())
	thenV := fc.compileBlock(n.Then)
	thenReg := fc.materialize(n.Then.Pos(), thenV)
	fc.emitAt(n.Then.Pos(), ir.NewBin(ir.OpMov, resultSlot, thenReg))
	skipElse, _ := fc.emitAt(n.Pos(), ir.NewJump(0))

	fc.patchJumpCond(skipThen, fc.here())
	var elseV cvalue
	switch e := n.Else.(type) {
	case nil:
		elseV = cvalue{kind: cvNull}
	case *ast.Block:
		elseV = fc.compileBlock(e)
	case *ast.If:
		elseV = fc.compileIf(e)
	default:
		fc.c.errorf(n.Pos(), "compiler: unhandled else node %T", e)
		elseV = cvalue{kind: cvNull}
	}
	elseReg := fc.materialize(n.Pos(), elseV)
	fc.emitAt(n.Pos(), ir.NewBin(ir.OpMov, resultSlot, elseReg))

	fc.patchJump(skipElse, fc.here())
	return cvRegVal(resultSlot)
}

// compileWhile re-checks cond at the top of every iteration by simply
// re-executing the header instructions via the backward jump — no mutable
// cell is needed since the instruction-as-register scheme gives the cond
// expression the same register on every pass.
func (fc *funcCompiler) compileWhile(n *ast.While) cvalue {
	header := fc.here()
	condV := fc.compileExpr(n.Cond)
	condReg := fc.materialize(n.Cond.Pos(), condV)
	exit, _ := fc.emitAt(n.Pos(), ir.NewJumpCond(ir.OpJumpIfFalse, condReg, 0))

	loop := fc.pushScope(scopeLoop)
	loop.continueTarget = header
	fc.compileBlock(n.Body)
	back := fc.here()
	fc.emitAt(n.Pos(), ir.NewJump(int32(header-(back+1))))

	exitTarget := fc.here()
	fc.patchJumpCond(exit, exitTarget)
	for _, bj := range loop.breakJumps {
		fc.patchJump(bj, exitTarget)
	}
	fc.popScope()
	return cvalue{kind: cvNull}
}

// compileFor lowers `for x in ITER BODY` through iter_init/iter_next. The
// loop variable is bound directly to iter_next's own result register:
// since the backward jump re-executes that same instruction each pass,
// the register is naturally refreshed every iteration.
func (fc *funcCompiler) compileFor(n *ast.For) cvalue {
	iterV := fc.compileExpr(n.Iter)
	iterSrc := fc.materialize(n.Iter.Pos(), iterV)
	iterReg := fc.emitAt1(n.Pos(), ir.NewUn(ir.OpIterInit, iterSrc))

	niLocal, itemReg := fc.emitAt(n.Pos(), ir.NewIterNext(iterReg, 0))

	loop := fc.pushScope(scopeLoop)
	loop.continueTarget = niLocal
	fc.declare(n.VarName, itemReg, true)
	fc.compileBlock(n.Body)
	back := fc.here()
	fc.emitAt(n.Pos(), ir.NewJump(int32(niLocal-(back+1))))

	exitTarget := fc.here()
	fc.patchIterNext(niLocal, exitTarget)
	for _, bj := range loop.breakJumps {
		fc.patchJump(bj, exitTarget)
	}
	fc.popScope()
	return cvalue{kind: cvNull}
}

// compileMatch lowers a match expression into a chain of pattern tests:
// each case's pattern only ever checks arity (check_len) for a
// tuple/list shape — the pattern grammar has no literal-value form, so
// discrimination between cases comes from the optional guard expression.
// A case with no pattern (`else`) always matches.
func (fc *funcCompiler) compileMatch(n *ast.Match) cvalue {
	subjV := fc.compileExpr(n.Subject)
	subjReg := fc.materialize(n.Subject.Pos(), subjV)
	resultSlot := fc.reserveSlot(n.Pos())

	var endJumps []int
	var pendingSkips []int
	for _, cs := range n.Cases {
		caseStart := fc.here()
		for _, pj := range pendingSkips {
			fc.patchJumpCond(pj, caseStart)
		}
		pendingSkips = nil

		fc.pushScope(scopeBlock)
		if cs.Pattern != nil {
			fc.matchBindPattern(cs.Pattern, subjReg, &pendingSkips)
		}
		if cs.Guard != nil {
			gv := fc.compileExpr(cs.Guard)
			gReg := fc.materialize(cs.Guard.Pos(), gv)
			skip, _ := fc.emitAt(cs.Guard.Pos(), ir.NewJumpCond(ir.OpJumpIfFalse, gReg, 0))
			pendingSkips = append(pendingSkips, skip)
		}
		bodyV := fc.compileExpr(cs.Body)
		bodyReg := fc.materialize(cs.Body.Pos(), bodyV)
		fc.emitAt(cs.Body.Pos(), ir.NewBin(ir.OpMov, resultSlot, bodyReg))
		ej, _ := fc.emitAt(cs.Body.Pos(), ir.NewJump(0))
		endJumps = append(endJumps, ej)
		fc.popScope()
	}

	fallthroughTarget := fc.here()
	for _, pj := range pendingSkips {
		fc.patchJumpCond(pj, fallthroughTarget)
	}
	nullReg := fc.materialize(n.Pos(), cvalue{kind: cvNull})
	fc.emitAt(n.Pos(), ir.NewBin(ir.OpMov, resultSlot, nullReg))

	endTarget := fc.here()
	for _, ej := range endJumps {
		fc.patchJump(ej, endTarget)
	}
	return cvRegVal(resultSlot)
}

// matchBindPattern binds a match case's pattern against srcReg,
// registering a jump_if_false placeholder in skips whenever the pattern
// can fail (a tuple/list arity check); a bare name always matches.
func (fc *funcCompiler) matchBindPattern(p *ast.Pattern, srcReg ir.Ref, skips *[]int) {
	if p.Discard {
		fc.emitAt(p.Pos, ir.NewUn(ir.OpDiscard, srcReg))
		return
	}
	if p.Elems != nil {
		lenReg := fc.emitAt1(p.Pos, ir.NewBin(ir.OpCheckLen, srcReg, ir.Ref(len(p.Elems))))
		skip, _ := fc.emitAt(p.Pos, ir.NewJumpCond(ir.OpJumpIfFalse, lenReg, 0))
		*skips = append(*skips, skip)
		for idx, el := range p.Elems {
			idxReg := fc.materialize(p.Pos, cvalue{kind: cvInt, i: int64(idx)})
			got := fc.emitAt1(p.Pos, ir.NewBin(ir.OpGet, srcReg, idxReg))
			fc.matchBindPattern(el, got, skips)
		}
		return
	}
	fc.bindNew(p.Pos, p.Name, cvRegVal(srcReg), true)
}

// compileCatch lowers `try BODY catch |name| HANDLER`. push_err_handler
// records where to resume (the handler) and which register receives the
// raised value; pop_err_handler removes it once the body finishes
// normally. The catch binding receives the raw raised value, unwrapped or
// not, matching the language's choice not to auto-unwrap on catch.
func (fc *funcCompiler) compileCatch(n *ast.Catch) cvalue {
	resultSlot := fc.reserveSlot(n.Pos())
	catchSlot := fc.reserveSlot(n.Pos())

	push, _ := fc.emitAt(n.Pos(), ir.NewErrHandler(0, catchSlot))
	bodyV := fc.compileExpr(n.Body)
	bodyReg := fc.materialize(n.Body.Pos(), bodyV)
	fc.emitAt(n.Pos(), ir.Instruction{Op: ir.OpPopErrHandler})
	fc.emitAt(n.Body.Pos(), ir.NewBin(ir.OpMov, resultSlot, bodyReg))
	skipHandler, _ := fc.emitAt(n.Pos(), ir.NewJump(0))

	fc.patchErrHandler(push, fc.here(), catchSlot)
	fc.pushScope(scopeBlock)
	fc.declare(n.CatchName, catchSlot, true)
	handlerV := fc.compileExpr(n.Handler)
	handlerReg := fc.materialize(n.Handler.Pos(), handlerV)
	fc.emitAt(n.Handler.Pos(), ir.NewBin(ir.OpMov, resultSlot, handlerReg))
	fc.popScope()

	fc.patchJump(skipHandler, fc.here())
	return cvRegVal(resultSlot)
}
