package lexer_test

import (
	"testing"

	"lumen/internal/lexer"
	"lumen/internal/token"
)

func TestNextToken_BasicProgram(t *testing.T) {
	input := `let a = 10;
let b = "hi";
fn add(x, y) => x + y;
`

	tests := []struct {
		kind token.Kind
		lit  string
	}{
		{token.Let, "let"},
		{token.Ident, "a"},
		{token.Assign, "="},
		{token.Int, "10"},
		{token.Semicolon, ";"},

		{token.Let, "let"},
		{token.Ident, "b"},
		{token.Assign, "="},
		{token.String, "hi"},
		{token.Semicolon, ";"},

		{token.Fn, "fn"},
		{token.Ident, "add"},
		{token.LParen, "("},
		{token.Ident, "x"},
		{token.Comma, ","},
		{token.Ident, "y"},
		{token.RParen, ")"},
		{token.Arrow, "=>"},
		{token.Ident, "x"},
		{token.Plus, "+"},
		{token.Ident, "y"},
		{token.Semicolon, ";"},

		{token.EOF, ""},
	}

	l := lexer.New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Kind != tt.kind {
			t.Fatalf("tests[%d] - kind wrong. expected=%s, got=%s (lit=%q, pos=%+v)",
				i, tt.kind, tok.Kind, tok.Lit, tok.Pos)
		}
		if tok.Lit != tt.lit {
			t.Fatalf("tests[%d] - lit wrong. expected=%q, got=%q", i, tt.lit, tok.Lit)
		}
	}
}

func TestOperators(t *testing.T) {
	input := `+= -= *= /= // ** << >> ?[ %{ => == != <= >=`
	tests := []token.Kind{
		token.PlusEq, token.MinusEq, token.StarEq, token.SlashEq,
		token.SlashSlash, token.StarStar, token.Shl, token.Shr,
		token.QLBracket, token.PctLBrace, token.Arrow, token.EqEq,
		token.NotEq, token.LtEq, token.GtEq, token.EOF,
	}
	l := lexer.New(input)
	for i, want := range tests {
		tok := l.NextToken()
		if tok.Kind != want {
			t.Fatalf("tests[%d] - expected=%s, got=%s (%q)", i, want, tok.Kind, tok.Lit)
		}
	}
}

func TestUnderscoreIsDiscardNotIdent(t *testing.T) {
	l := lexer.New(`_ _foo foo_bar _1`)
	kinds := []token.Kind{token.Underscore, token.Ident, token.Ident, token.Ident, token.EOF}
	lits := []string{"_", "_foo", "foo_bar", "_1", ""}
	for i, want := range kinds {
		tok := l.NextToken()
		if tok.Kind != want {
			t.Fatalf("tests[%d] - kind expected=%s, got=%s (%q)", i, want, tok.Kind, tok.Lit)
		}
		if tok.Lit != lits[i] {
			t.Fatalf("tests[%d] - lit expected=%q, got=%q", i, lits[i], tok.Lit)
		}
	}
}

func TestStringEscapes(t *testing.T) {
	l := lexer.New(`"Line1\nLine2\tTabbed\"" "A\x42\0"`)

	tok := l.NextToken()
	if tok.Kind != token.String {
		t.Fatalf("expected String, got %s", tok.Kind)
	}
	if tok.Lit != "Line1\nLine2\tTabbed\"" {
		t.Fatalf("escape decode wrong: %q", tok.Lit)
	}

	tok = l.NextToken()
	if tok.Kind != token.String {
		t.Fatalf("expected String, got %s", tok.Kind)
	}
	want := "A\x42\x00"
	if tok.Lit != want {
		t.Fatalf("hex escape decode wrong: %q, want %q", tok.Lit, want)
	}
}

func TestInterpolatedString(t *testing.T) {
	l := lexer.New(`"hello ${name}!"`)

	tests := []struct {
		kind token.Kind
		lit  string
	}{
		{token.StringPart, "hello "},
		{token.InterpStart, "${"},
		{token.Ident, "name"},
		{token.InterpEnd, "}"},
		{token.StringPart, "!"},
		{token.StringEnd, ""},
		{token.EOF, ""},
	}
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Kind != tt.kind {
			t.Fatalf("tests[%d] - kind expected=%s, got=%s (%q)", i, tt.kind, tok.Kind, tok.Lit)
		}
		if tok.Lit != tt.lit {
			t.Fatalf("tests[%d] - lit expected=%q, got=%q", i, tt.lit, tok.Lit)
		}
	}
}

func TestInterpolationWithNestedBraces(t *testing.T) {
	// The interpolation holds its own brace pair `{1}`; interpDepth must
	// track it so that pair's '}' doesn't end the interpolation early.
	l := lexer.New(`"${ {1} }"`)

	var kinds []token.Kind
	for {
		tok := l.NextToken()
		kinds = append(kinds, tok.Kind)
		if tok.Kind == token.EOF || tok.Kind == token.Illegal {
			break
		}
	}
	want := []token.Kind{
		token.InterpStart, token.LBrace, token.Int, token.RBrace, token.InterpEnd,
		token.StringEnd, token.EOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds[%d] = %s, want %s (full: %v)", i, kinds[i], want[i], kinds)
		}
	}
}

func TestRangeLiteralTokens(t *testing.T) {
	l := lexer.New(`0:10:2`)
	tests := []struct {
		kind token.Kind
		lit  string
	}{
		{token.Int, "0"}, {token.Colon, ":"}, {token.Int, "10"},
		{token.Colon, ":"}, {token.Int, "2"}, {token.EOF, ""},
	}
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Kind != tt.kind || tok.Lit != tt.lit {
			t.Fatalf("tests[%d] = %s(%q), want %s(%q)", i, tok.Kind, tok.Lit, tt.kind, tt.lit)
		}
	}
}

func TestBytesLiteral(t *testing.T) {
	l := lexer.New(`b"abc"`)
	tok := l.NextToken()
	if tok.Kind != token.Bytes || tok.Lit != "abc" {
		t.Fatalf("got %s(%q), want Bytes(\"abc\")", tok.Kind, tok.Lit)
	}
}

func TestComments(t *testing.T) {
	l := lexer.New("1 // line comment\n/* block */ 2")
	tok := l.NextToken()
	if tok.Kind != token.Int || tok.Lit != "1" {
		t.Fatalf("got %s(%q)", tok.Kind, tok.Lit)
	}
	tok = l.NextToken()
	if tok.Kind != token.Int || tok.Lit != "2" {
		t.Fatalf("got %s(%q)", tok.Kind, tok.Lit)
	}
}

func TestUnterminatedStringReportsError(t *testing.T) {
	l := lexer.New(`"abc`)
	tok := l.NextToken()
	if tok.Kind != token.Illegal {
		t.Fatalf("expected Illegal, got %s", tok.Kind)
	}
	if len(l.Errors()) == 0 {
		t.Fatal("expected a lexer error to be recorded")
	}
}
