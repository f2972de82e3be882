package compiler

import (
	"testing"

	"lumen/internal/ir"
	"lumen/internal/lexer"
	"lumen/internal/parser"
)

func mustCompile(t *testing.T, src string) *ir.Bytecode {
	t.Helper()
	l := lexer.New(src)
	p := parser.New(l)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	bc, errs := Compile("test.lm", src, prog)
	if !errs.Empty() {
		t.Fatalf("compile errors: %v", errs.Items())
	}
	return bc
}

// 1 + 2 * 3 folds entirely at compile time: main's body should be a single
// load_int 7 followed by its implicit ret, never touching OpAdd or OpMul.
func TestConstantFoldingArithmetic(t *testing.T) {
	bc := mustCompile(t, "1 + 2 * 3")

	main := bc.Functions[bc.MainIndex]
	if len(main.Body) != 2 {
		t.Fatalf("expected 2 instructions (load_int, ret), got %d", len(main.Body))
	}
	loadInt := bc.Code.At(main.Body[0])
	if loadInt.Op != ir.OpLoadInt {
		t.Fatalf("expected OpLoadInt, got %v", loadInt.Op)
	}
	if got := loadInt.AsInt(); got != 7 {
		t.Fatalf("expected folded value 7, got %d", got)
	}
	ret := bc.Code.At(main.Body[1])
	if ret.Op != ir.OpRet {
		t.Fatalf("expected OpRet, got %v", ret.Op)
	}
}

// Division by zero must not be folded away: the VM needs to see the
// division at runtime so it can raise.
func TestConstantFoldingAbandonsOnDivideByZero(t *testing.T) {
	bc := mustCompile(t, "let x = 1; let y = 0; x / y")

	main := bc.Functions[bc.MainIndex]
	sawDiv := false
	for _, gi := range main.Body {
		if bc.Code.At(gi).Op == ir.OpDiv {
			sawDiv = true
		}
	}
	if !sawDiv {
		t.Fatalf("expected an OpDiv instruction to survive folding")
	}
}

// Overflowing multiplication must also fall back to a runtime op.
func TestConstantFoldingAbandonsOnOverflow(t *testing.T) {
	bc := mustCompile(t, "9223372036854775807 * 2")

	main := bc.Functions[bc.MainIndex]
	sawMul := false
	for _, gi := range main.Body {
		if bc.Code.At(gi).Op == ir.OpMul {
			sawMul = true
		}
	}
	if !sawMul {
		t.Fatalf("expected an OpMul instruction to survive overflow")
	}
}

// A closure over a mutable local must capture by materializing a
// load_capture: the program compiles to at least three functions (main,
// counter, inc), and some function body contains a load_capture.
func TestClosureCapture(t *testing.T) {
	bc := mustCompile(t, `
		let counter = fn() {
			let n = 0;
			let inc = fn() {
				n = n + 1;
				n
			};
			inc
		};
	`)

	if len(bc.Functions) < 3 {
		t.Fatalf("expected at least 3 functions (main, counter, inc), got %d", len(bc.Functions))
	}

	var innerFn *ir.Function
	for i := range bc.Functions {
		fn := &bc.Functions[i]
		for _, gi := range fn.Body {
			if bc.Code.At(gi).Op == ir.OpLoadCapture {
				innerFn = fn
			}
		}
	}
	if innerFn == nil {
		t.Fatalf("expected some function to reference a captured register via load_capture")
	}
}

// `for x in 1:4` compiles to iter_init followed by a backward-jumping
// iter_next; the loop variable is bound directly to iter_next's result
// register, so no extra mov is emitted per iteration.
func TestForLoopOverRange(t *testing.T) {
	bc := mustCompile(t, `
		let total = 0;
		for x in 1:4 {
			total = total + x;
		}
		total
	`)

	main := bc.Functions[bc.MainIndex]
	var sawIterInit, sawIterNext, sawBackwardJump bool
	for idx, gi := range main.Body {
		inst := bc.Code.At(gi)
		switch inst.Op {
		case ir.OpIterInit:
			sawIterInit = true
		case ir.OpIterNext:
			sawIterNext = true
		case ir.OpJump:
			if off := inst.AsJump(); off < 0 {
				_ = idx
				sawBackwardJump = true
			}
		}
	}
	if !sawIterInit || !sawIterNext || !sawBackwardJump {
		t.Fatalf("expected iter_init, iter_next and a backward jump; got init=%v next=%v back=%v",
			sawIterInit, sawIterNext, sawBackwardJump)
	}
}

// try/catch on a divide-by-zero compiles to push_err_handler guarding the
// body, with the handler reached only via the patched resume offset (not
// sequential fallthrough) and the catch binding wired to the handler
// register push_err_handler names.
func TestTryCatchDivideByZero(t *testing.T) {
	bc := mustCompile(t, `
		try {
			1 / 0
		} catch |e| {
			e
		}
	`)

	main := bc.Functions[bc.MainIndex]
	var sawPush, sawPop bool
	for _, gi := range main.Body {
		switch bc.Code.At(gi).Op {
		case ir.OpPushErrHandler:
			sawPush = true
		case ir.OpPopErrHandler:
			sawPop = true
		}
	}
	if !sawPush || !sawPop {
		t.Fatalf("expected push_err_handler and pop_err_handler, got push=%v pop=%v", sawPush, sawPop)
	}
}

// Destructuring `let (a, _, b) = (1, 2, 3)` asserts length 3, discards the
// middle element (still evaluated, per the discard-on-error rule) and
// binds a and b to fresh, independently-mutable registers.
func TestDestructuringLet(t *testing.T) {
	bc := mustCompile(t, `
		let (a, _, b) = (1, 2, 3);
		a + b
	`)

	main := bc.Functions[bc.MainIndex]
	var sawAssertLen, sawDiscard int
	for _, gi := range main.Body {
		switch bc.Code.At(gi).Op {
		case ir.OpAssertLen:
			sawAssertLen++
		case ir.OpDiscard:
			sawDiscard++
		}
	}
	if sawAssertLen != 1 {
		t.Fatalf("expected exactly one assert_len, got %d", sawAssertLen)
	}
	if sawDiscard != 1 {
		t.Fatalf("expected exactly one discard for the `_` element, got %d", sawDiscard)
	}
}

// Globals are read through load_global only from inside a nested function;
// at module (root) scope a plain register reference suffices.
func TestGlobalAccessFromNestedFunction(t *testing.T) {
	bc := mustCompile(t, `
		let shared = 10;
		let reader = fn() { shared };
	`)

	var readerFn *ir.Function
	for i := range bc.Functions {
		if bc.Functions[i].Name == "<anonymous>" {
			readerFn = &bc.Functions[i]
		}
	}
	if readerFn == nil {
		t.Fatalf("expected an anonymous function to exist")
	}
	sawLoadGlobal := false
	for _, gi := range readerFn.Body {
		if bc.Code.At(gi).Op == ir.OpLoadGlobal {
			sawLoadGlobal = true
		}
	}
	if !sawLoadGlobal {
		t.Fatalf("expected the nested function to reach the module-level binding via load_global")
	}
}

// Redeclaring a name in the same scope is a compile error; shadowing in a
// nested scope is not.
func TestRedeclarationError(t *testing.T) {
	l := lexer.New("let x = 1; let x = 2;")
	p := parser.New(l)
	prog := p.ParseProgram()
	_, errs := Compile("test.lm", "let x = 1; let x = 2;", prog)
	if errs.Empty() {
		t.Fatalf("expected a redeclaration error")
	}
}

func TestShadowingInNestedScopeIsAllowed(t *testing.T) {
	mustCompile(t, `
		let x = 1;
		if true {
			let x = 2;
			x
		} else {
			x
		}
	`)
}
