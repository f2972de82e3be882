package vm

import (
	"testing"

	"lumen/internal/compiler"
	"lumen/internal/ir"
	"lumen/internal/lexer"
	"lumen/internal/parser"
	"lumen/internal/value"
)

func mustCompile(t *testing.T, src string) *ir.Bytecode {
	t.Helper()
	l := lexer.New(src)
	p := parser.New(l)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	bc, errs := compiler.Compile("test.lm", src, prog)
	if !errs.Empty() {
		t.Fatalf("compile errors: %v", errs.Items())
	}
	return bc
}

func mustRun(t *testing.T, src string) value.Value {
	t.Helper()
	bc := mustCompile(t, src)
	v, err := NewVM(nil).RunMain(bc)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	return v
}

// 1 + 2 * 3 folds to a single load_int at compile time; running it should
// simply surface the folded value.
func TestConstantFoldingArithmeticRuns(t *testing.T) {
	v := mustRun(t, "1 + 2 * 3")
	if v.Kind != value.KindInt || v.I != 7 {
		t.Fatalf("expected int 7, got %v", v)
	}
}

// A closure captures n by copying its value out of the enclosing frame at
// build_func time, not through a live upvalue cell: every call to inc
// starts from that one snapshot, so repeated calls each independently
// increment their own call-local copy rather than accumulating across
// calls.
func TestClosureCaptureRuns(t *testing.T) {
	v := mustRun(t, `
		let counter = fn() {
			let n = 0;
			let inc = fn() {
				n = n + 1;
				n
			};
			inc
		};
		let inc = counter();
		inc();
		inc();
		inc()
	`)
	if v.Kind != value.KindInt || v.I != 1 {
		t.Fatalf("expected int 1 (captures are snapshotted by value, not shared), got %v", v)
	}
}

// for x in 1:4 iterates 1, 2, 3 (half-open range); summing yields 6.
func TestForLoopOverRangeRuns(t *testing.T) {
	v := mustRun(t, `
		let total = 0;
		for x in 1:4 {
			total = total + x;
		}
		total
	`)
	if v.Kind != value.KindInt || v.I != 6 {
		t.Fatalf("expected int 6, got %v", v)
	}
}

// try/catch on a divide-by-zero hands the raised error to the catch binding
// rather than unwinding out of RunMain.
func TestTryCatchDivideByZeroRuns(t *testing.T) {
	v := mustRun(t, `
		try {
			1 / 0
		} catch |e| {
			e
		}
	`)
	if v.Kind != value.KindError {
		t.Fatalf("expected an error value caught, got %v", v)
	}
}

// An uncaught raise unwinds every frame and surfaces as a *RuntimeError
// carrying a traceback, not a Go panic or a zero value masquerading as
// success.
func TestUncaughtDivideByZeroReturnsRuntimeError(t *testing.T) {
	bc := mustCompile(t, "1 / 0")
	_, err := NewVM(nil).RunMain(bc)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("expected *RuntimeError, got %T: %v", err, err)
	}
}

// Destructuring `let (a, _, b) = (1, 2, 3)` discards the middle element and
// binds a and b independently.
func TestDestructuringLetRuns(t *testing.T) {
	v := mustRun(t, `
		let (a, _, b) = (1, 2, 3);
		a + b
	`)
	if v.Kind != value.KindInt || v.I != 4 {
		t.Fatalf("expected int 4, got %v", v)
	}
}

// Calling the same function twice exercises the flat frame stack (not Go's
// own call stack): each call pushes and pops its own Frame, and the second
// call must not see any leftover register state from the first.
func TestRepeatedCallsPopFramesCleanly(t *testing.T) {
	v := mustRun(t, `
		let double = fn(n) { n * 2 };
		let a = double(3);
		let b = double(10);
		a + b
	`)
	if v.Kind != value.KindInt || v.I != 26 {
		t.Fatalf("expected int 26, got %v", v)
	}
}

// A function that itself calls another function nests two frames before
// either returns, proving OpCall/OpRet correctly thread retReg across more
// than one level.
func TestNestedCallsRuns(t *testing.T) {
	v := mustRun(t, `
		let inc = fn(n) { n + 1 };
		let twice = fn(n) { inc(inc(n)) };
		twice(5)
	`)
	if v.Kind != value.KindInt || v.I != 7 {
		t.Fatalf("expected int 7, got %v", v)
	}
}

// Overflowing multiplication survives folding and raises at runtime rather
// than silently wrapping.
func TestOverflowingMultiplicationRaises(t *testing.T) {
	bc := mustCompile(t, "9223372036854775807 * 2")
	_, err := NewVM(nil).RunMain(bc)
	if err == nil {
		t.Fatalf("expected an overflow error")
	}
}

// List append and indexed get observe list identity, not value: appending
// through one reference is visible through another pointing at the same
// list.
func TestListMutationIsSharedByIdentity(t *testing.T) {
	v := mustRun(t, `
		let a = [1, 2];
		let b = a;
		b.append(3);
		a[2]
	`)
	if v.Kind != value.KindInt || v.I != 3 {
		t.Fatalf("expected int 3, got %v", v)
	}
}
