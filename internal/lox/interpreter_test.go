package lox

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func newTestInterpreter(out *bytes.Buffer) *Interpreter {
	return NewInterpreter(Options{Stdout: out, Stderr: out})
}

func TestInterpreter_Interpret_exprStmts(t *testing.T) {
	testCases := map[string]struct {
		in          []Stmt
		expected    string
		errExpected bool
		expectedErr string
	}{
		"number literal": {
			in:       []Stmt{&PrintStmt{Expression: &Literal{Value: 10.0}}},
			expected: "10\n",
		},
		"grouped literal": {
			in:       []Stmt{&PrintStmt{Expression: &Grouping{Expression: &Literal{Value: 1.0}}}},
			expected: "1\n",
		},
		"numeric addition": {
			in: []Stmt{&PrintStmt{Expression: &Binary{
				Operator: Token{Type: Plus},
				Left:     &Literal{Value: 1.0},
				Right:    &Literal{Value: 1.0},
			}}},
			expected: "2\n",
		},
		"string concat": {
			in: []Stmt{&PrintStmt{Expression: &Binary{
				Operator: Token{Type: Plus},
				Left:     &Literal{Value: "one"},
				Right:    &Literal{Value: "two"},
			}}},
			expected: "onetwo\n",
		},
		"string + number stringifies the number": {
			in: []Stmt{&PrintStmt{Expression: &Binary{
				Operator: Token{Type: Plus},
				Left:     &Literal{Value: "foo"},
				Right:    &Literal{Value: 2.0},
			}}},
			expected: "foo2\n",
		},
		"number + string stringifies the number": {
			in: []Stmt{&PrintStmt{Expression: &Binary{
				Operator: Token{Type: Plus},
				Left:     &Literal{Value: 2.0},
				Right:    &Literal{Value: "foo"},
			}}},
			expected: "2foo\n",
		},
		"err: bool + number": {
			in: []Stmt{&PrintStmt{Expression: &Binary{
				Operator: Token{Type: Plus},
				Left:     &Literal{Value: false},
				Right:    &Literal{Value: 1.0},
			}}},
			errExpected: true,
			expectedErr: "Operands must be two numbers or two strings.",
		},
		"division by zero": {
			in: []Stmt{&PrintStmt{Expression: &Binary{
				Operator: Token{Type: Slash},
				Left:     &Literal{Value: 1.0},
				Right:    &Literal{Value: 0.0},
			}}},
			errExpected: true,
			expectedErr: "Division by zero.",
		},
		"equality: identical": {
			in: []Stmt{&PrintStmt{Expression: &Binary{
				Operator: Token{Type: EqualEqual},
				Left:     &Literal{Value: 1.0},
				Right:    &Literal{Value: 1.0},
			}}},
			expected: "true\n",
		},
		"equality: different types": {
			in: []Stmt{&PrintStmt{Expression: &Binary{
				Operator: Token{Type: EqualEqual},
				Left:     &Literal{Value: 1.0},
				Right:    &Literal{Value: "one"},
			}}},
			expected: "false\n",
		},
		"unary minus": {
			in: []Stmt{&PrintStmt{Expression: &Unary{
				Operator: Token{Type: Minus},
				Right:    &Literal{Value: 1.0},
			}}},
			expected: "-1\n",
		},
		"unary bang": {
			in: []Stmt{&PrintStmt{Expression: &Unary{
				Operator: Token{Type: Bang},
				Right:    &Literal{Value: true},
			}}},
			expected: "false\n",
		},
		"var assignment and reassignment": {
			in: []Stmt{
				&VarStmt{Name: Token{Lexeme: "a"}, Initializer: &Literal{Value: "1"}},
				&PrintStmt{Expression: &Variable{Name: Token{Lexeme: "a"}}},
				&ExpressionStmt{Expression: &Assign{Name: Token{Lexeme: "a"}, Value: &Literal{Value: "2"}}},
				&PrintStmt{Expression: &Variable{Name: Token{Lexeme: "a"}}},
			},
			expected: "1\n2\n",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			out := &bytes.Buffer{}
			i := newTestInterpreter(out)
			err := i.Interpret(tc.in)
			actual := out.String()
			if tc.errExpected && err == nil {
				t.Fatal("err expected, didn't get one")
			} else if !tc.errExpected && err != nil {
				t.Fatalf("unexpected error: %s", err)
			} else if err != nil && !strings.Contains(err.Error(), tc.expectedErr) {
				t.Errorf("expected error containing %q, got %q", tc.expectedErr, err)
			} else if actual != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, actual)
			}
		})
	}
}

func runScript(t *testing.T, src string) (string, error) {
	t.Helper()
	tokens := (&Scanner{}).ScanTokens(src)
	stmts, parseErr := NewParser(tokens).Parse()
	if parseErr != nil {
		t.Fatalf("parsing error in test input: %s", parseErr)
	}
	resolver := NewResolver()
	if resolveErr := resolver.Resolve(stmts); resolveErr != nil {
		t.Fatalf("resolution error in test input: %s", resolveErr)
	}
	out := &bytes.Buffer{}
	interp := newTestInterpreter(out)
	interp.AddBindings(resolver.Bindings())
	err := interp.Interpret(stmts)
	return out.String(), err
}

func TestInterpreter_Interpret_script(t *testing.T) {
	testCases := map[string]struct {
		in          string
		expected    string
		errExpected bool
		expectedErr string
	}{
		"block scope": {
			in: `
var a = "global a";
var b = "global b";
var c = "global c";
{
    var a = "outer a";
    var b = "outer b";
    {
        var a = "inner a";
        print a;
        print b;
        print c;
    }
    print a;
    print b;
    print c;
}
print a;
print b;
print c;`,
			expected: "inner a\nouter b\nglobal c\nouter a\nouter b\nglobal c\nglobal a\nglobal b\nglobal c\n",
		},
		"if true": {
			in:       `var a = true; if (a) print "yes";`,
			expected: "yes\n",
		},
		"else true": {
			in:       `var a = false; if (a) print "yes"; else print "no";`,
			expected: "no\n",
		},
		"true or false": {
			in:       "print true or false;",
			expected: "true\n",
		},
		"true and false": {
			in:       "print true and false;",
			expected: "false\n",
		},
		"trivial for loop": {
			in: `for(var i = 0; i < 3; i = i + 1){
				print i;}`,
			expected: "0\n1\n2\n",
		},
		"recursion with return": {
			in:       "fun fib(n){ if(n<=1) return n; return fib(n-2)+fib(n-1); } print fib(10);",
			expected: "55\n",
		},
		"closures": {
			in:       "fun makeCounter(){ var i=0; fun count(){i=i+1; print i;} return count;} var counter=makeCounter(); counter(); counter();",
			expected: "1\n2\n",
		},
		"scope is static": {
			in: `
var a = "global";
{
  fun showA(){
    print a;
  }
  showA();
  var a = "block";
  showA();
  print a;
}
`,
			expected: "global\nglobal\nblock\n",
		},
		"class with fields": {
			in: `
class Cake {
  exclaim() {
    return "Hooray, cake!";
  }
}

print Cake;

var c = Cake();
print c;

c.foo = "foo";
print c.foo;

print c.exclaim();`,
			expected: "Cake\nCake instance\nfoo\nHooray, cake!\n",
		},
		"class with methods and init": {
			in: `
class Sammy {
  init(flavor) { this.flavor = flavor; }
  describe() { return "A delicious "+this.flavor+" sandwich."; }
}
var sammy = Sammy("turkey");
print sammy.describe();
var x = sammy.describe;
print x();
`,
			expected: "A delicious turkey sandwich.\nA delicious turkey sandwich.\n",
		},
		"implicit and explicit calls to init() return the instance": {
			in: `
class foo {
  init(myParam) {
    this.myParam = myParam;
  }
  getMyParam() {
    return this.myParam;
  }
}

print foo("foo");
var ie = foo("foo");
print ie;
print ie.init("bar");
`,
			expected: "foo instance\nfoo instance\nfoo instance\n",
		},
		"superclass must be a class": {
			in:          "var foo = 0; class bar < foo {}",
			errExpected: true,
			expectedErr: "Superclass must be a class.",
		},
		"inherited methods work": {
			in: `
class foo {
  blah(){ return "foo level blah"; }
}
class bar < foo {}
var x = bar();
print x.blah();
`,
			expected: "foo level blah\n",
		},
		"super methods work": {
			in: `
class bread {
  str(){ return "bread"; }
}
class donut < bread {
  str(){ return super.str() + ", donut"; }
}
class kruller < donut{}
var k = kruller();
print k.str();
`,
			expected: "bread, donut\n",
		},
		"undefined variable": {
			in:          "print notDefined;",
			errExpected: true,
			expectedErr: "Undefined variable 'notDefined'.",
		},
		"only instances have fields": {
			in:          "var n = 1; n.foo = 2;",
			errExpected: true,
			expectedErr: "Only instances have fields.",
		},
		"wrong arity": {
			in:          "fun f(a,b){} f(1);",
			errExpected: true,
			expectedErr: "Expected 2 arguments but got 1.",
		},
		"can only call functions and classes": {
			in:          `var n = 1; n();`,
			errExpected: true,
			expectedErr: "Can only call functions and classes.",
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			actual, err := runScript(t, tc.in)
			if tc.errExpected && err == nil {
				t.Fatal("expected error, didn't get one")
			} else if !tc.errExpected && err != nil {
				t.Fatalf("unexpected error: %s", err)
			} else if err != nil && !strings.Contains(err.Error(), tc.expectedErr) {
				t.Errorf("expected error containing %q, got %q", tc.expectedErr, err)
			} else if actual != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, actual)
			}
		})
	}
}

func TestInterpreter_Clock_isMonotonicAndRelative(t *testing.T) {
	out := &bytes.Buffer{}
	i := newTestInterpreter(out)
	v1, err := i.nativeClock(i, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	n1, _ := v1.AsNumber()
	if n1 < 0 {
		t.Errorf("expected a non-negative elapsed time, got %v", n1)
	}
	v2, err := i.nativeClock(i, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	n2, _ := v2.AsNumber()
	if n2 < n1 {
		t.Errorf("expected clock() not to go backwards, got %v then %v", n1, n2)
	}
}

func TestInterpreter_StrictUninitializedVariables(t *testing.T) {
	src := "var a; print a;"
	tokens := (&Scanner{}).ScanTokens(src)
	stmts, parseErr := NewParser(tokens).Parse()
	if parseErr != nil {
		t.Fatalf("parsing error: %s", parseErr)
	}
	resolver := NewResolver()
	if err := resolver.Resolve(stmts); err != nil {
		t.Fatalf("resolution error: %s", err)
	}

	t.Run("off by default yields nil", func(t *testing.T) {
		out := &bytes.Buffer{}
		i := NewInterpreter(Options{Stdout: out})
		i.AddBindings(resolver.Bindings())
		if err := i.Interpret(stmts); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if out.String() != "nil\n" {
			t.Errorf("expected %q, got %q", "nil\n", out.String())
		}
	})

	t.Run("strict mode rejects the read", func(t *testing.T) {
		out := &bytes.Buffer{}
		i := NewInterpreter(Options{Stdout: out, StrictUninitializedVariables: true})
		i.AddBindings(resolver.Bindings())
		err := i.Interpret(stmts)
		if err == nil {
			t.Fatal("expected an error, didn't get one")
		}
		if !strings.Contains(err.Error(), "Accessing uninitialized variable 'a'.") {
			t.Errorf("unexpected error: %s", err)
		}
	})
}

func TestInterpreter_REPLQuit(t *testing.T) {
	src := "quit();"
	tokens := (&Scanner{}).ScanTokens(src)
	stmts, parseErr := NewParser(tokens).Parse()
	if parseErr != nil {
		t.Fatalf("parsing error: %s", parseErr)
	}
	resolver := NewResolver()
	if err := resolver.Resolve(stmts); err != nil {
		t.Fatalf("resolution error: %s", err)
	}
	out := &bytes.Buffer{}
	i := NewInterpreter(Options{Stdout: out, Interactive: true})
	i.AddBindings(resolver.Bindings())
	err := i.Interpret(stmts)
	if !errors.Is(err, ErrQuit) {
		t.Errorf("expected ErrQuit, got %v", err)
	}
}

func TestInterpreter_GC_collectsUnreachableEnvironments(t *testing.T) {
	src := `
fun makeNoop() {
  var throwaway = "garbage";
  return 1;
}
for (var i = 0; i < 2000; i = i + 1) {
  makeNoop();
}
print "done";
`
	out := &bytes.Buffer{}
	i := NewInterpreter(Options{Stdout: out, Heap: HeapConfig{MaxEnvironments: 64, PinStackDepth: 64}})

	tokens := (&Scanner{}).ScanTokens(src)
	stmts, parseErr := NewParser(tokens).Parse()
	if parseErr != nil {
		t.Fatalf("parsing error: %s", parseErr)
	}
	resolver := NewResolver()
	if err := resolver.Resolve(stmts); err != nil {
		t.Fatalf("resolution error: %s", err)
	}
	i.AddBindings(resolver.Bindings())

	if err := i.Interpret(stmts); err != nil {
		t.Fatalf("unexpected error (GC should reclaim dead call environments well under the cap): %s", err)
	}
	if out.String() != "done\n" {
		t.Errorf("expected %q, got %q", "done\n", out.String())
	}
}
