package lox

import "strconv"

// TokenType enumerates every lexeme class the scanner can produce.
type TokenType int

const (
	LeftParen TokenType = iota
	RightParen
	LeftBrace
	RightBrace
	Comma
	Dot
	Minus
	Plus
	Semicolon
	Slash
	Star

	Bang
	BangEqual
	Equal
	EqualEqual
	Greater
	GreaterEqual
	Less
	LessEqual

	Identifier
	String
	Number

	And
	ClassKw
	Else
	False
	Fun
	For
	If
	Nil
	Or
	Print
	Return
	SuperKw
	ThisKw
	True
	Var
	While

	EOF
)

var tokenNames = map[TokenType]string{
	LeftParen: "LEFT_PAREN", RightParen: "RIGHT_PAREN",
	LeftBrace: "LEFT_BRACE", RightBrace: "RIGHT_BRACE",
	Comma: "COMMA", Dot: "DOT", Minus: "MINUS", Plus: "PLUS",
	Semicolon: "SEMICOLON", Slash: "SLASH", Star: "STAR",
	Bang: "BANG", BangEqual: "BANG_EQUAL",
	Equal: "EQUAL", EqualEqual: "EQUAL_EQUAL",
	Greater: "GREATER", GreaterEqual: "GREATER_EQUAL",
	Less: "LESS", LessEqual: "LESS_EQUAL",
	Identifier: "IDENTIFIER", String: "STRING", Number: "NUMBER",
	And: "AND", ClassKw: "CLASS", Else: "ELSE", False: "FALSE",
	Fun: "FUN", For: "FOR", If: "IF", Nil: "NIL", Or: "OR",
	Print: "PRINT", Return: "RETURN", SuperKw: "SUPER", ThisKw: "THIS",
	True: "TRUE", Var: "VAR", While: "WHILE", EOF: "EOF",
}

var keywords = map[string]TokenType{
	"and": And, "class": ClassKw, "else": Else, "false": False,
	"fun": Fun, "for": For, "if": If, "nil": Nil, "or": Or,
	"print": Print, "return": Return, "super": SuperKw, "this": ThisKw,
	"true": True, "var": Var, "while": While,
}

// Token carries a lexeme's type, source span and any literal payload
// (float64 for numbers, string for strings; nil for identifiers and
// every other token).
type Token struct {
	Type    TokenType
	Lexeme  string
	Literal interface{}
	Line    int
}

func (t Token) String() string {
	return tokenNames[t.Type] + " '" + t.Lexeme + "' " + strconv.Itoa(t.Line)
}
