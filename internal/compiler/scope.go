package compiler

import "lumen/internal/ir"

// symbol is one name bound in a funcCompiler's scope chain: a stable
// register plus whether the binding accepts reassignment.
type symbol struct {
	name    string
	reg     ir.Ref
	mutable bool
}

type scopeKind uint8

const (
	scopeBlock scopeKind = iota
	scopeLoop
)

// blockScope is one entry in a funcCompiler's lexical scope chain: a plain
// block, or a loop carrying its back-edge target and pending break jumps.
type blockScope struct {
	parent         *blockScope
	kind           scopeKind
	symbols        []*symbol
	breakJumps     []int // local body indices of jump placeholders patched at loop exit
	continueTarget int   // local body index a `continue` jumps back to
}

// captureEntry is one slot in a funcCompiler's ordered, de-duplicated
// capture list: a name plus the register in the *immediately enclosing*
// frame whose value is copied into this closure's captures at build_func
// time (see resolveAndMaterialize for how multi-level capture chains
// collapse into a single materialized parent register).
type captureEntry struct {
	name      string
	mutable   bool
	parentReg ir.Ref
}

// funcCompiler compiles one function body (main, or a nested fn literal)
// into the shared Bytecode's Code/Extra/Strings pools. Its own body slice
// tracks local instruction positions so register numbers (params + local
// index) stay independent of where instructions land in the shared,
// global Code array.
type funcCompiler struct {
	c      *Compiler
	parent *funcCompiler
	name   string
	params []string

	body  []int // local body index -> global ir.Code index
	scope *blockScope

	captures []captureEntry
	capReg   map[string]symbol // name -> already-materialized capture register

	funcIndex int
}

func (fc *funcCompiler) isRoot() bool { return fc.parent == nil }

func (fc *funcCompiler) pushScope(kind scopeKind) *blockScope {
	fc.scope = &blockScope{parent: fc.scope, kind: kind}
	return fc.scope
}

func (fc *funcCompiler) popScope() { fc.scope = fc.scope.parent }

func (fc *funcCompiler) innermostLoop() *blockScope {
	for s := fc.scope; s != nil; s = s.parent {
		if s.kind == scopeLoop {
			return s
		}
	}
	return nil
}

// declare binds name in the innermost scope. Redeclaration within that
// same scope is an error; shadowing an outer scope's binding is not.
func (fc *funcCompiler) declare(name string, reg ir.Ref, mutable bool) bool {
	for _, s := range fc.scope.symbols {
		if s.name == name {
			return false
		}
	}
	fc.scope.symbols = append(fc.scope.symbols, &symbol{name: name, reg: reg, mutable: mutable})
	return true
}

func (fc *funcCompiler) lookupOwn(name string) (*symbol, bool) {
	for s := fc.scope; s != nil; s = s.parent {
		for i := len(s.symbols) - 1; i >= 0; i-- {
			if s.symbols[i].name == name {
				return s.symbols[i], true
			}
		}
	}
	return nil, false
}

type resKind uint8

const (
	resNone resKind = iota
	resLocal
	resGlobal
)

type resolution struct {
	kind    resKind
	reg     ir.Ref
	mutable bool
}

// resolveAndMaterialize finds name's binding from fc's point of view,
// climbing the function-nesting chain when it is not local to fc.
//
// A name found in the root (module-level) function's own scope is always
// reported as resGlobal: the root's frame persists for the program's
// lifetime, so every function may reach it directly via load_global /
// store_global without being threaded through an explicit capture list.
//
// A name found as a genuine local of some enclosing *non-root* function is
// a capture: fc registers it (de-duplicated by name) in its own capture
// list, immediately emits one load_capture to materialize it into a fresh
// local register, and caches that register so later references in fc
// reuse it instead of re-emitting load_capture. This also means captures
// of captures collapse automatically, since the parent's own call to this
// same method already produced a concrete parent-local register.
func (fc *funcCompiler) resolveAndMaterialize(name string) (resolution, bool) {
	if sym, ok := fc.capReg[name]; ok {
		return resolution{kind: resLocal, reg: sym.reg, mutable: sym.mutable}, true
	}
	if sym, ok := fc.lookupOwn(name); ok {
		if fc.isRoot() {
			return resolution{kind: resGlobal, reg: sym.reg, mutable: sym.mutable}, true
		}
		return resolution{kind: resLocal, reg: sym.reg, mutable: sym.mutable}, true
	}
	if fc.isRoot() {
		return resolution{}, false
	}
	up, ok := fc.parent.resolveAndMaterialize(name)
	if !ok {
		return resolution{}, false
	}
	if up.kind == resGlobal {
		return up, true
	}
	idx := fc.addCaptureIfAbsent(name, up.reg, up.mutable)
	reg := fc.emit1(ir.NewUn(ir.OpLoadCapture, ir.Ref(idx)))
	if fc.capReg == nil {
		fc.capReg = make(map[string]symbol)
	}
	fc.capReg[name] = symbol{reg: reg, mutable: up.mutable}
	return resolution{kind: resLocal, reg: reg, mutable: up.mutable}, true
}

func (fc *funcCompiler) addCaptureIfAbsent(name string, parentReg ir.Ref, mutable bool) int {
	for i, ce := range fc.captures {
		if ce.name == name {
			return i
		}
	}
	fc.captures = append(fc.captures, captureEntry{name: name, mutable: mutable, parentReg: parentReg})
	return len(fc.captures) - 1
}

// emit appends inst to the shared Code array and to fc's own body, and
// reports the register the instruction writes to, if any. Register
// numbers never depend on the shared array's index, only on fc's own
// running instruction count plus its parameter count.
func (fc *funcCompiler) emit(inst ir.Instruction) (localIdx int, reg ir.Ref) {
	globalIdx := fc.c.bc.Code.Emit(inst)
	localIdx = len(fc.body)
	fc.body = append(fc.body, globalIdx)
	if ir.HasResult(inst.Op) {
		reg = ir.Ref(len(fc.params) + localIdx)
	}
	return localIdx, reg
}

func (fc *funcCompiler) emit1(inst ir.Instruction) ir.Ref {
	_, reg := fc.emit(inst)
	return reg
}

func (fc *funcCompiler) here() int { return len(fc.body) }

func (fc *funcCompiler) patch(localIdx int, inst ir.Instruction) {
	fc.c.bc.Code.Patch(fc.body[localIdx], inst)
}

func (fc *funcCompiler) instAt(localIdx int) ir.Instruction {
	return fc.c.bc.Code.At(fc.body[localIdx])
}

// finish writes fc's completed body back into the Bytecode's reserved
// Function slot. Called once, after every statement of the function has
// been compiled.
func (fc *funcCompiler) finish() {
	fc.c.bc.Functions[fc.funcIndex] = ir.Function{
		Name:      fc.name,
		Params:    len(fc.params),
		NumLocals: len(fc.params) + len(fc.body),
		Body:      fc.body,
	}
}
