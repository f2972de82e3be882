// Package compiler lowers the parser's AST into the register-based
// bytecode defined by package ir (spec §4.2). It resolves lexical scope
// and closure captures, folds constant arithmetic under the VM's own
// overflow policy, patches forward and backward jumps, and desugars
// destructuring, string interpolation, and method-call syntax into the
// VM's small opcode set.
package compiler

import (
	"github.com/google/uuid"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/ir"
	"lumen/internal/token"
)

// Compiler holds the in-progress Bytecode and the diagnostics accumulated
// while compiling it, mirroring how the teacher's own Compiler pairs a
// build with a running error list rather than failing on the first
// problem.
type Compiler struct {
	bc   *ir.Bytecode
	errs *diag.Bag
}

// Compile lowers a parsed program into a Bytecode module. A non-empty
// diag.Bag on return means the module is incomplete; callers should not
// attempt to run or serialize it.
func Compile(sourcePath, source string, prog *ast.Program) (*ir.Bytecode, *diag.Bag) {
	c := &Compiler{
		bc: &ir.Bytecode{
			Debug:   ir.DebugInfo{SourcePath: sourcePath, Source: source, Lines: map[int]int{}},
			BuildID: uuid.New().String(),
		},
		errs: diag.NewBag(diag.Compile),
	}

	main := c.newFuncCompiler(nil, "main", nil)
	c.compileFuncBody(main, prog.Stmts, prog.Pos())
	main.finish()
	c.bc.MainIndex = main.funcIndex

	return c.bc, c.errs
}

func (c *Compiler) errorf(pos token.Position, format string, args ...interface{}) {
	c.errs.Addf(pos, format, args...)
}

// newFuncCompiler reserves a Function slot in the shared Bytecode and
// returns a funcCompiler ready to have its body compiled. Parameters bind
// as ordinary mutable locals at registers 0..len(params)-1.
func (c *Compiler) newFuncCompiler(parent *funcCompiler, name string, params []string) *funcCompiler {
	idx := len(c.bc.Functions)
	c.bc.Functions = append(c.bc.Functions, ir.Function{})
	fc := &funcCompiler{c: c, parent: parent, name: name, params: params, funcIndex: idx}
	fc.pushScope(scopeBlock)
	for i, p := range params {
		fc.declare(p, ir.Ref(i), true)
	}
	return fc
}

// compileFuncBody compiles stmts as a function's top-level statement
// sequence, then emits the implicit `ret` of the last expression's value
// (or null) unless the sequence already ended in an explicit `return`.
func (c *Compiler) compileFuncBody(fc *funcCompiler, stmts []ast.Stmt, pos token.Position) {
	var last cvalue
	hasLast := false
	lastWasReturn := false
	for _, st := range stmts {
		v, ok := fc.compileStmt(st)
		if ok {
			last, hasLast = v, true
		} else {
			hasLast = false
		}
		if j, isJump := st.(*ast.Jump); isJump && j.Kind == ast.JumpReturn {
			lastWasReturn = true
		} else {
			lastWasReturn = false
		}
	}
	if lastWasReturn {
		return
	}
	var reg ir.Ref
	if hasLast {
		reg = fc.materialize(pos, last)
	} else {
		reg = fc.materialize(pos, cvalue{kind: cvNull})
	}
	fc.emitAt(pos, ir.NewUn(ir.OpRet, reg))
}

// emitAt emits inst and records debug info for it when the opcode needs
// it, using pos as the source location a traceback would point at.
func (fc *funcCompiler) emitAt(pos token.Position, inst ir.Instruction) (int, ir.Ref) {
	localIdx, reg := fc.emit(inst)
	if ir.NeedsDebugInfo(inst.Op) {
		fc.c.bc.Debug.Lines[fc.body[localIdx]] = pos.Offset
	}
	return localIdx, reg
}

func (fc *funcCompiler) emitAt1(pos token.Position, inst ir.Instruction) ir.Ref {
	_, reg := fc.emitAt(pos, inst)
	return reg
}

func (fc *funcCompiler) reserveSlot(pos token.Position) ir.Ref {
	return fc.emitAt1(pos, ir.Instruction{Op: ir.OpLoadNull})
}

// patchJump rewrites the jump at localIdx to target the instruction at
// local index target, computing the offset relative to the instruction
// immediately following the jump (the convention ir.Instruction.AsJump
// documents).
func (fc *funcCompiler) patchJump(localIdx, target int) {
	fc.patch(localIdx, ir.NewJump(int32(target-(localIdx+1))))
}

func (fc *funcCompiler) patchJumpCond(localIdx, target int) {
	inst := fc.instAt(localIdx)
	cond, _ := inst.AsJumpCond()
	fc.patch(localIdx, ir.NewJumpCond(inst.Op, cond, int32(target-(localIdx+1))))
}

func (fc *funcCompiler) patchIterNext(localIdx, target int) {
	inst := fc.instAt(localIdx)
	iter, _ := inst.AsIterNext()
	fc.patch(localIdx, ir.NewIterNext(iter, int32(target-(localIdx+1))))
}

func (fc *funcCompiler) patchErrHandler(localIdx, target int, catchReg ir.Ref) {
	fc.patch(localIdx, ir.NewErrHandler(int32(target-(localIdx+1)), catchReg))
}
