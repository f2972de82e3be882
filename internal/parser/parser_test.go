package parser_test

import (
	"testing"

	"lumen/internal/ast"
	"lumen/internal/lexer"
	"lumen/internal/parser"
)

func parseProgram(t *testing.T, input string) *ast.Program {
	t.Helper()
	l := lexer.New(input)
	p := parser.New(l)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		for _, e := range errs {
			t.Logf("parser error: %s", e)
		}
		t.Fatalf("expected no parser errors, got %d", len(errs))
	}
	return prog
}

func TestParseLetAndReturn(t *testing.T) {
	prog := parseProgram(t, `
let x = 1 + 2 * 3;
let f = fn(a, b) => a + b;
return f(x, 10);
`)

	if len(prog.Stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(prog.Stmts))
	}

	decl, ok := prog.Stmts[0].(*ast.Decl)
	if !ok {
		t.Fatalf("stmt[0] is %T, want *ast.Decl", prog.Stmts[0])
	}
	if decl.Kind != ast.DeclLet || decl.Pattern.Name != "x" {
		t.Fatalf("unexpected decl: %+v", decl)
	}
	infix, ok := decl.Value.(*ast.Infix)
	if !ok || infix.Op != ast.OpAdd {
		t.Fatalf("expected top-level add, got %#v", decl.Value)
	}

	jump, ok := prog.Stmts[2].(*ast.Jump)
	if !ok || jump.Kind != ast.JumpReturn {
		t.Fatalf("stmt[2] is %T, want return jump", prog.Stmts[2])
	}
}

func TestOperatorPrecedence(t *testing.T) {
	prog := parseProgram(t, `1 + 2 * 3 == 7 and not false;`)
	stmt := prog.Stmts[0].(*ast.ExprStmt)
	and, ok := stmt.X.(*ast.Infix)
	if !ok || and.Op != ast.OpAnd {
		t.Fatalf("expected top-level 'and', got %#v", stmt.X)
	}
	eq, ok := and.Left.(*ast.Infix)
	if !ok || eq.Op != ast.OpEq {
		t.Fatalf("expected '==' on the left of 'and', got %#v", and.Left)
	}
	add, ok := eq.Left.(*ast.Infix)
	if !ok || add.Op != ast.OpAdd {
		t.Fatalf("expected '+' inside '==', got %#v", eq.Left)
	}
	if _, ok := add.Right.(*ast.Infix); !ok {
		t.Fatalf("expected '*' to bind tighter than '+', got %#v", add.Right)
	}
}

func TestPowIsRightAssociativeAndBindsTighterThanUnaryMinus(t *testing.T) {
	prog := parseProgram(t, `-2 ** 2 ** 3;`)
	stmt := prog.Stmts[0].(*ast.ExprStmt)
	neg, ok := stmt.X.(*ast.Prefix)
	if !ok || neg.Op != ast.PrefixNeg {
		t.Fatalf("expected top-level unary minus, got %#v", stmt.X)
	}
	outer, ok := neg.X.(*ast.Infix)
	if !ok || outer.Op != ast.OpPow {
		t.Fatalf("expected pow under the minus, got %#v", neg.X)
	}
	if _, ok := outer.Right.(*ast.Infix); !ok {
		t.Fatalf("expected pow to be right-associative, got %#v", outer.Right)
	}
}

func TestRangeLiteral(t *testing.T) {
	prog := parseProgram(t, `let r = 0:10:2;`)
	decl := prog.Stmts[0].(*ast.Decl)
	rng, ok := decl.Value.(*ast.Range)
	if !ok {
		t.Fatalf("expected *ast.Range, got %#v", decl.Value)
	}
	if rng.Step == nil {
		t.Fatal("expected a step expression")
	}
}

func TestDestructuringPattern(t *testing.T) {
	prog := parseProgram(t, `let (a, [b, _]) = pair;`)
	decl := prog.Stmts[0].(*ast.Decl)
	if decl.Pattern.Elems == nil || len(decl.Pattern.Elems) != 2 {
		t.Fatalf("expected tuple pattern with 2 elements, got %+v", decl.Pattern)
	}
	inner := decl.Pattern.Elems[1]
	if !inner.IsList || len(inner.Elems) != 2 {
		t.Fatalf("expected nested list pattern, got %+v", inner)
	}
	if !inner.Elems[1].Discard {
		t.Fatalf("expected second element of list pattern to be discard, got %+v", inner.Elems[1])
	}
}

func TestIfElseChain(t *testing.T) {
	prog := parseProgram(t, `
if x > 0 {
    1;
} else if x < 0 {
    2;
} else {
    3;
}
`)
	stmt := prog.Stmts[0].(*ast.ExprStmt)
	ifExpr, ok := stmt.X.(*ast.If)
	if !ok {
		t.Fatalf("expected *ast.If, got %#v", stmt.X)
	}
	elseIf, ok := ifExpr.Else.(*ast.If)
	if !ok {
		t.Fatalf("expected else-if to parse as nested *ast.If, got %#v", ifExpr.Else)
	}
	if _, ok := elseIf.Else.(*ast.Block); !ok {
		t.Fatalf("expected final else to be a block, got %#v", elseIf.Else)
	}
}

func TestForLoopOverRange(t *testing.T) {
	prog := parseProgram(t, `for i in 0:10 { i; }`)
	stmt := prog.Stmts[0].(*ast.ExprStmt)
	forExpr, ok := stmt.X.(*ast.For)
	if !ok || forExpr.VarName != "i" {
		t.Fatalf("expected *ast.For over 'i', got %#v", stmt.X)
	}
	if _, ok := forExpr.Iter.(*ast.Range); !ok {
		t.Fatalf("expected range iterable, got %#v", forExpr.Iter)
	}
}

func TestMatchWithGuardAndWildcard(t *testing.T) {
	prog := parseProgram(t, `
match n {
    x if x == 0 => "zero",
    x if x > 0 => "positive",
    else => "negative"
}
`)
	stmt := prog.Stmts[0].(*ast.ExprStmt)
	m, ok := stmt.X.(*ast.Match)
	if !ok {
		t.Fatalf("expected *ast.Match, got %#v", stmt.X)
	}
	if len(m.Cases) != 3 {
		t.Fatalf("expected 3 cases, got %d", len(m.Cases))
	}
	if m.Cases[0].Guard == nil || m.Cases[1].Guard == nil {
		t.Fatal("expected guards on the first two cases")
	}
	if m.Cases[2].Pattern != nil {
		t.Fatalf("expected wildcard case to have a nil pattern, got %+v", m.Cases[2].Pattern)
	}
}

func TestTryCatch(t *testing.T) {
	prog := parseProgram(t, `try risky() catch |e| error(e);`)
	stmt := prog.Stmts[0].(*ast.ExprStmt)
	c, ok := stmt.X.(*ast.Catch)
	if !ok || c.CatchName != "e" {
		t.Fatalf("expected *ast.Catch binding 'e', got %#v", stmt.X)
	}
}

func TestTaggedAndErrorLiterals(t *testing.T) {
	prog := parseProgram(t, `
let a = tag Some(1);
let b = tag None;
let c = error("bad");
`)
	tagged := prog.Stmts[0].(*ast.Decl).Value.(*ast.Tagged)
	if tagged.Name != "Some" || tagged.Inner == nil {
		t.Fatalf("unexpected tagged value: %+v", tagged)
	}
	none := prog.Stmts[1].(*ast.Decl).Value.(*ast.Tagged)
	if none.Name != "None" || none.Inner != nil {
		t.Fatalf("unexpected tagged value: %+v", none)
	}
	errLit := prog.Stmts[2].(*ast.Decl).Value.(*ast.ErrorLit)
	if errLit.Inner == nil {
		t.Fatal("expected error() to carry an inner value")
	}
}

func TestInterpolatedStringLiteral(t *testing.T) {
	prog := parseProgram(t, `let s = "sum is ${1 + 2}!";`)
	lit := prog.Stmts[0].(*ast.Decl).Value.(*ast.Literal)
	if lit.Kind != ast.LitString || len(lit.Parts) != 3 {
		t.Fatalf("expected 3 interpolation parts, got %+v", lit)
	}
	if _, ok := lit.Parts[1].(*ast.Infix); !ok {
		t.Fatalf("expected middle part to be the embedded expression, got %#v", lit.Parts[1])
	}
}

func TestSuffixChainCallIndexAndMethod(t *testing.T) {
	prog := parseProgram(t, `a.b(1)[2]?[3].c();`)
	stmt := prog.Stmts[0].(*ast.ExprStmt)
	outer, ok := stmt.X.(*ast.Suffix)
	if !ok || outer.Kind != ast.SuffixMethodCall || outer.Name != "c" {
		t.Fatalf("expected outermost suffix to be method call 'c', got %#v", stmt.X)
	}
	opt, ok := outer.X.(*ast.Suffix)
	if !ok || opt.Kind != ast.SuffixIndexOpt {
		t.Fatalf("expected optional-index suffix beneath, got %#v", outer.X)
	}
}

func TestAugmentedAssign(t *testing.T) {
	prog := parseProgram(t, `x += 1;`)
	stmt := prog.Stmts[0].(*ast.ExprStmt)
	assign, ok := stmt.X.(*ast.Assign)
	if !ok || assign.Op != ast.AssignAdd {
		t.Fatalf("expected += assignment, got %#v", stmt.X)
	}
}

func TestImportWithAlias(t *testing.T) {
	prog := parseProgram(t, `import "std/list" as l;`)
	imp, ok := prog.Stmts[0].(*ast.Import)
	if !ok || imp.Path != "std/list" || imp.Alias != "l" {
		t.Fatalf("unexpected import: %+v", imp)
	}
}

func TestAsAndIsTypeInfix(t *testing.T) {
	prog := parseProgram(t, `let a = x as int; let b = x is str;`)
	as, ok := prog.Stmts[0].(*ast.Decl).Value.(*ast.TypeInfix)
	if !ok || as.Op != ast.TypeAs || as.Type != ast.TypeInt {
		t.Fatalf("unexpected as-expr: %+v", as)
	}
	is, ok := prog.Stmts[1].(*ast.Decl).Value.(*ast.TypeInfix)
	if !ok || is.Op != ast.TypeIs || is.Type != ast.TypeStr {
		t.Fatalf("unexpected is-expr: %+v", is)
	}
}

func TestGroupedVsTuple(t *testing.T) {
	prog := parseProgram(t, `let a = (1); let b = (1,); let c = (1, 2);`)
	if _, ok := prog.Stmts[0].(*ast.Decl).Value.(*ast.Grouped); !ok {
		t.Fatalf("expected (1) to parse as Grouped, got %#v", prog.Stmts[0].(*ast.Decl).Value)
	}
	one, ok := prog.Stmts[1].(*ast.Decl).Value.(*ast.Tuple)
	if !ok || len(one.Elems) != 1 {
		t.Fatalf("expected (1,) to parse as a 1-tuple, got %#v", prog.Stmts[1].(*ast.Decl).Value)
	}
	two, ok := prog.Stmts[2].(*ast.Decl).Value.(*ast.Tuple)
	if !ok || len(two.Elems) != 2 {
		t.Fatalf("expected (1, 2) to parse as a 2-tuple, got %#v", prog.Stmts[2].(*ast.Decl).Value)
	}
}

func TestMapLiteral(t *testing.T) {
	prog := parseProgram(t, `let m = %{"a": 1, "b": 2};`)
	m, ok := prog.Stmts[0].(*ast.Decl).Value.(*ast.Map)
	if !ok || len(m.Entries) != 2 {
		t.Fatalf("expected map literal with 2 entries, got %#v", prog.Stmts[0].(*ast.Decl).Value)
	}
}
