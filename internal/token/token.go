// Package token defines the lexical tokens produced by the lexer and
// consumed by the parser. It carries no semantics of its own.
package token

import "fmt"

// Kind identifies the lexical category of a token.
type Kind int

const (
	Illegal Kind = iota
	EOF

	Ident      // identifier
	Int        // integer literal
	Float      // floating point literal
	String     // string literal with no interpolation
	StringPart // interpolated string literal segment
	InterpStart
	InterpEnd
	StringEnd
	Bytes // b"..." literal

	// Keywords
	Let
	Const
	Fn
	If
	Else
	While
	For
	In
	Match
	Try
	Catch
	Throw
	Break
	Continue
	Return
	Import
	As
	Is
	And
	Or
	Not
	True
	False
	Null
	Error
	Tag
	This

	// Operators
	Assign     // =
	PlusEq     // +=
	MinusEq    // -=
	StarEq     // *=
	SlashEq    // /=
	Plus       // +
	Minus      // -
	Star       // *
	Slash      // /
	SlashSlash // //
	Percent    // %
	StarStar   // **
	Amp        // &
	Pipe       // |
	Caret      // ^
	Tilde      // ~
	Shl        // <<
	Shr        // >>
	Bang       // !
	EqEq       // ==
	NotEq      // !=
	Lt         // <
	LtEq       // <=
	Gt         // >
	GtEq       // >=
	Question   // ?
	QLBracket  // ?[
	Colon      // :
	Comma      // ,
	Dot        // .
	Semicolon  // ;
	Arrow      // =>
	Underscore // _

	// Delimiters
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	PctLBrace // %{  (map literal opener)
)

var names = map[Kind]string{
	Illegal: "illegal", EOF: "eof", Ident: "ident", Int: "int", Float: "float",
	String: "string", StringPart: "string-part", InterpStart: "${", InterpEnd: "}",
	StringEnd: "string-end",
	Bytes: "bytes", Let: "let", Const: "const", Fn: "fn",
	If: "if", Else: "else", While: "while", For: "for", In: "in", Match: "match",
	Try: "try", Catch: "catch", Throw: "throw", Break: "break", Continue: "continue",
	Return: "return", Import: "import", As: "as", Is: "is", And: "and", Or: "or",
	Not: "not", True: "true", False: "false", Null: "null", Error: "error",
	Tag: "tag", This: "this", Assign: "=", PlusEq: "+=", MinusEq: "-=",
	StarEq: "*=", SlashEq: "/=", Plus: "+", Minus: "-", Star: "*", Slash: "/",
	SlashSlash: "//", Percent: "%", StarStar: "**", Amp: "&", Pipe: "|",
	Caret: "^", Tilde: "~", Shl: "<<", Shr: ">>", Bang: "!", EqEq: "==",
	NotEq: "!=", Lt: "<", LtEq: "<=", Gt: ">", GtEq: ">=", Question: "?",
	QLBracket: "?[", Colon: ":", Comma: ",", Dot: ".",
	Semicolon: ";", Arrow: "=>", Underscore: "_", LParen: "(", RParen: ")",
	LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]", PctLBrace: "%{",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Keywords maps reserved identifiers to their keyword kind.
var Keywords = map[string]Kind{
	"let": Let, "const": Const, "fn": Fn, "if": If, "else": Else,
	"while": While, "for": For, "in": In, "match": Match, "try": Try,
	"catch": Catch, "throw": Throw, "break": Break, "continue": Continue,
	"return": Return, "import": Import, "as": As, "is": Is, "and": And,
	"or": Or, "not": Not, "true": True, "false": False, "null": Null,
	"error": Error, "tag": Tag, "this": This,
}

// Position is a human-facing source location: a byte offset plus the
// line/column it was computed from for diagnostics.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is one lexical unit.
type Token struct {
	Kind Kind
	Lit  string // literal text (identifier name, raw number text, unescaped string body)
	Pos  Position
}

func (t Token) String() string {
	if t.Lit != "" {
		return fmt.Sprintf("%s(%q)", t.Kind, t.Lit)
	}
	return t.Kind.String()
}
