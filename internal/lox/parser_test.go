package lox

import (
	"reflect"
	"strings"
	"testing"
)

func TestParser_Parse(t *testing.T) {
	testCases := map[string]struct {
		inTokens       []Token
		expected       []Stmt
		errExpected    bool
		expectedErrStr string
	}{
		"primary string": {
			inTokens: []Token{
				{Type: String, Literal: "string"},
				{Type: Semicolon},
				{Type: EOF},
			},
			expected: []Stmt{&ExpressionStmt{Expression: &Literal{Value: "string"}}},
		},
		"parenthetical false": {
			inTokens: []Token{
				{Type: LeftParen},
				{Type: False},
				{Type: RightParen},
				{Type: Semicolon},
				{Type: EOF},
			},
			expected: []Stmt{&ExpressionStmt{Expression: &Grouping{
				Expression: &Literal{Value: false},
			}}},
		},
		"unary bang": {
			inTokens: []Token{
				{Type: Bang},
				{Type: Number, Literal: 123.0},
				{Type: Semicolon},
				{Type: EOF},
			},
			expected: []Stmt{&ExpressionStmt{Expression: &Unary{
				Operator: Token{Type: Bang},
				Right:    &Literal{Value: 123.0},
			}}},
		},
		"factor multiply": {
			inTokens: []Token{
				{Type: Number, Literal: 1.0},
				{Type: Star},
				{Type: Number, Literal: 2.0},
				{Type: Semicolon},
				{Type: EOF},
			},
			expected: []Stmt{&ExpressionStmt{Expression: &Binary{
				Left:     &Literal{Value: 1.0},
				Operator: Token{Type: Star},
				Right:    &Literal{Value: 2.0},
			}}},
		},
		"term plus": {
			inTokens: []Token{
				{Type: Number, Literal: 1.0},
				{Type: Plus},
				{Type: Number, Literal: 2.0},
				{Type: Semicolon},
				{Type: EOF},
			},
			expected: []Stmt{&ExpressionStmt{Expression: &Binary{
				Left:     &Literal{Value: 1.0},
				Operator: Token{Type: Plus},
				Right:    &Literal{Value: 2.0},
			}}},
		},
		"variable declaration": {
			inTokens: []Token{
				{Type: Var},
				{Type: Identifier, Lexeme: "myVar"},
				{Type: Equal},
				{Type: Number, Literal: 1.0},
				{Type: Semicolon},
				{Type: EOF},
			},
			expected: []Stmt{&VarStmt{
				Name:        Token{Type: Identifier, Lexeme: "myVar"},
				Initializer: &Literal{Value: 1.0},
			}},
		},
		"block": {
			inTokens: []Token{
				{Type: LeftBrace},
				{Type: Var},
				{Type: Identifier, Lexeme: "myVar"},
				{Type: Semicolon},
				{Type: RightBrace},
				{Type: EOF},
			},
			expected: []Stmt{
				&BlockStmt{Statements: []Stmt{
					&VarStmt{Name: Token{Type: Identifier, Lexeme: "myVar"}},
				}},
			},
		},
		"if/else": {
			inTokens: []Token{
				{Type: If},
				{Type: LeftParen},
				{Type: Identifier, Lexeme: "a"},
				{Type: RightParen},
				{Type: Print},
				{Type: Identifier, Lexeme: "a"},
				{Type: Semicolon},
				{Type: Else},
				{Type: Print},
				{Type: Identifier, Lexeme: "b"},
				{Type: Semicolon},
				{Type: EOF},
			},
			expected: []Stmt{
				&IfStmt{
					Condition: &Variable{Name: Token{Type: Identifier, Lexeme: "a"}},
					Then:      &PrintStmt{Expression: &Variable{Name: Token{Type: Identifier, Lexeme: "a"}}},
					Else:      &PrintStmt{Expression: &Variable{Name: Token{Type: Identifier, Lexeme: "b"}}},
				},
			},
		},
		"empty for desugars to while": {
			inTokens: []Token{
				{Type: For},
				{Type: LeftParen},
				{Type: Semicolon},
				{Type: Semicolon},
				{Type: RightParen},
				{Type: Print},
				{Type: Identifier, Lexeme: "a"},
				{Type: Semicolon},
				{Type: EOF},
			},
			expected: []Stmt{
				&WhileStmt{
					Condition: &Literal{Value: true},
					Body:      &PrintStmt{Expression: &Variable{Name: Token{Type: Identifier, Lexeme: "a"}}},
				},
			},
		},
		"class with superclass": {
			inTokens: []Token{
				{Type: ClassKw},
				{Type: Identifier, Lexeme: "bar"},
				{Type: Less},
				{Type: Identifier, Lexeme: "foo"},
				{Type: LeftBrace},
				{Type: RightBrace},
				{Type: EOF},
			},
			expected: []Stmt{
				&ClassStmt{
					Name:       Token{Type: Identifier, Lexeme: "bar"},
					Superclass: &Variable{Name: Token{Type: Identifier, Lexeme: "foo"}},
				},
			},
		},
		"invalid assignment target is an error": {
			inTokens: []Token{
				{Type: Number, Literal: 1.0},
				{Type: Equal},
				{Type: Number, Literal: 2.0},
				{Type: Semicolon},
				{Type: EOF},
			},
			errExpected:    true,
			expectedErrStr: "Invalid assignment target.",
		},
		"missing semicolon is an error": {
			inTokens: []Token{
				{Type: Print},
				{Type: Number, Literal: 1.0},
				{Type: EOF},
			},
			errExpected:    true,
			expectedErrStr: "Expect ';' after value.",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			p := NewParser(tc.inTokens)
			actual, err := p.Parse()
			if !tc.errExpected && err != nil {
				t.Fatalf("unexpected error: %s", err)
			} else if tc.errExpected && err == nil {
				t.Fatal("expected error, didn't get one")
			} else if tc.errExpected && err != nil {
				if !strings.Contains(err.Error(), tc.expectedErrStr) {
					t.Errorf("expected error containing %q, got %q", tc.expectedErrStr, err)
				}
				return
			}
			if !reflect.DeepEqual(actual, tc.expected) {
				t.Errorf("%#v != %#v", actual, tc.expected)
			}
		})
	}
}
