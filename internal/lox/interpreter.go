package lox

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Options configures a new Interpreter. The zero value is usable:
// Stdout/Stderr default to the process streams, Heap to
// DefaultHeapConfig, and both StrictUninitializedVariables and
// Interactive default to off.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	Heap   HeapConfig

	// StrictUninitializedVariables makes reading a `var x;` declared
	// without an initializer a runtime error instead of yielding Nil
	// (§4.2/§9's off-by-default Open Question).
	StrictUninitializedVariables bool

	// Interactive registers the REPL-only natives (help/env/quit) in
	// addition to clock(), per §9.
	Interactive bool
}

// Interpreter is the tree-walking evaluator described in §4.5. One
// Interpreter owns one Heap and one Global environment for its entire
// lifetime; a REPL reuses the same Interpreter across input lines so
// that global definitions and side effects persist.
type Interpreter struct {
	heap     *Heap
	globals  *Environment
	env      *Environment
	bindings map[Expr]Binding

	stdout io.Writer
	stderr io.Writer

	strictUninitialized bool
	interactive         bool

	startedAt time.Time
}

// NewInterpreter allocates the Heap and Global environment and
// registers the built-in natives (§9).
func NewInterpreter(opts Options) *Interpreter {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	heap := NewHeap(opts.Heap)
	globals := heap.NewGlobalEnvironment()
	i := &Interpreter{
		heap:                heap,
		globals:             globals,
		env:                 globals,
		bindings:            make(map[Expr]Binding),
		stdout:              opts.Stdout,
		stderr:              opts.Stderr,
		strictUninitialized: opts.StrictUninitializedVariables,
		interactive:         opts.Interactive,
		startedAt:           time.Now(),
	}
	registerBuiltins(i)
	return i
}

// Heap exposes the Interpreter's collector, for env()'s report and for
// tests asserting GC invariants directly.
func (i *Interpreter) Heap() *Heap { return i.heap }

// CollectGarbage runs a collection rooted at the current globals. The
// REPL calls this at the end of every line that compiles and runs
// without error, matching
// original_source/src/main.c's repl() (gcCollect after each statement)
// as an explicit collection point on top of the allocation-threshold
// trigger the rest of the evaluator relies on.
func (i *Interpreter) CollectGarbage() { i.heap.Collect(i.globals) }

// AddBindings merges a Resolver's side-table into the Interpreter's own.
// A REPL resolves each input line independently and merges the result
// in before interpreting it; Expr pointers are unique per parse, so
// repeated merges never collide.
func (i *Interpreter) AddBindings(b map[Expr]Binding) {
	for k, v := range b {
		i.bindings[k] = v
	}
}

// Interpret executes stmts against the Interpreter's persistent global
// state. A runtime error unwinds to here, resets the current
// environment to globals, and clears the pin stack (§4.5's non-local
// exit discipline) before being returned to the caller.
func (i *Interpreter) Interpret(stmts []Stmt) error {
	var rerr error
	func() {
		defer recoverControlFlow(func(cf controlFlow) {
			switch cf.Kind {
			case flowError:
				rerr = cf.Err
			case flowQuit:
				rerr = ErrQuit
			default:
				panic(cf)
			}
		})
		for _, s := range stmts {
			i.execute(s)
		}
	}()
	if rerr != nil {
		i.env = i.globals
		i.heap.ClearPins()
	}
	return rerr
}

func (i *Interpreter) evaluate(e Expr) *Value {
	return e.acceptExpr(i).(*Value)
}

func (i *Interpreter) execute(s Stmt) { s.acceptStmt(i) }

func (i *Interpreter) executeBlock(stmts []Stmt, env *Environment) {
	previous := i.env
	i.env = env
	defer func() {
		i.env = previous
		env.Release()
	}()
	for _, s := range stmts {
		i.execute(s)
	}
}

// raiseAt converts a plain error returned from a Value/Instance method
// into the evaluator's non-local exit, filling in Line when the error
// didn't already carry one (e.g. Environment.DefineLocal's capacity
// error, which has no token to source a line from).
func (i *Interpreter) raiseAt(line int, err error) {
	if rerr, ok := err.(*RuntimeError); ok {
		if rerr.Line == 0 {
			rerr.Line = line
		}
		panic(controlFlow{Kind: flowError, Err: rerr})
	}
	panic(controlFlow{Kind: flowError, Err: &RuntimeError{Line: line, Message: err.Error()}})
}

// defineAt installs name -> value in the current scope: the Global
// table if i.env is the root environment, otherwise the next free
// local slot. The call order here must mirror the Resolver's declare()
// call order exactly, since that's what keeps slot indices in lockstep
// between the two passes (Invariant 2, §3).
func (i *Interpreter) defineAt(name Token, value *Value) {
	if i.env.IsGlobal() {
		i.env.DefineGlobal(name.Lexeme, value)
		return
	}
	if err := i.env.DefineLocal(value); err != nil {
		i.raiseAt(name.Line, err)
	}
}

// lookupVariable resolves a Variable/This reference using the
// Resolver's side-table; an expression absent from it is global.
func (i *Interpreter) lookupVariable(expr Expr, name Token) *Value {
	if b, ok := i.bindings[expr]; ok {
		v := i.env.GetAt(b.Depth, b.Slot)
		if i.strictUninitialized && v != nil && v.uninitialized {
			throwRuntimeError(name.Line, "Accessing uninitialized variable '%s'.", name.Lexeme)
		}
		return v
	}
	v, ok := i.env.GetGlobal(name.Lexeme)
	if !ok {
		throwRuntimeError(name.Line, "Undefined variable '%s'.", name.Lexeme)
	}
	if i.strictUninitialized && v != nil && v.uninitialized {
		throwRuntimeError(name.Line, "Accessing uninitialized variable '%s'.", name.Lexeme)
	}
	return v
}

func (i *Interpreter) checkNumberOperands(op Token, left, right *Value) (float64, float64) {
	ln, lok := left.AsNumber()
	rn, rok := right.AsNumber()
	if !lok || !rok {
		throwRuntimeError(op.Line, "Operands must be numbers.")
	}
	return ln, rn
}

/* ---- statements ---- */

func (i *Interpreter) VisitBlockStmt(s *BlockStmt) {
	env, ok := i.heap.NewLocalEnvironment(i.env)
	if !ok {
		throwRuntimeError(0, "Stack overflow.")
	}
	i.executeBlock(s.Statements, env)
}

func (i *Interpreter) VisitClassStmt(s *ClassStmt) {
	var superclass *Class
	hasSuper := s.Superclass != nil
	outer := i.env

	if hasSuper {
		sv := i.evaluate(s.Superclass)
		cls, ok := sv.AsClass()
		if !ok {
			throwRuntimeError(s.Superclass.Name.Line, "Superclass must be a class.")
		}
		superclass = cls
		if !i.heap.Pin(sv) {
			throwRuntimeError(s.Name.Line, "Stack overflow.")
		}
		superEnv, ok := i.heap.NewLocalEnvironment(i.env)
		if !ok {
			i.heap.Unpin()
			throwRuntimeError(s.Name.Line, "Stack overflow.")
		}
		superEnv.DefineSuper(sv)
		i.env = superEnv
	}

	methods := make(map[string]*Function, len(s.Methods))
	for _, m := range s.Methods {
		methods[m.Name.Lexeme] = newFunctionPayload(m, i.env, m.Name.Lexeme == "init")
	}

	class := newClassPayload(s.Name.Lexeme, superclass, methods)
	classVal := i.heap.wrapClass(class)

	if hasSuper {
		i.env = outer
		i.heap.Unpin()
	}

	i.defineAt(s.Name, classVal)
}

func (i *Interpreter) VisitExpressionStmt(s *ExpressionStmt) {
	i.evaluate(s.Expression)
}

func (i *Interpreter) VisitFunctionStmt(s *FunctionStmt) {
	fn := newFunctionPayload(s, i.env, false)
	i.defineAt(s.Name, i.heap.wrapFunction(fn))
}

func (i *Interpreter) VisitIfStmt(s *IfStmt) {
	if i.evaluate(s.Condition).IsTruthy() {
		i.execute(s.Then)
	} else if s.Else != nil {
		i.execute(s.Else)
	}
}

func (i *Interpreter) VisitPrintStmt(s *PrintStmt) {
	v := i.evaluate(s.Expression)
	fmt.Fprintln(i.stdout, v.String())
}

func (i *Interpreter) VisitReturnStmt(s *ReturnStmt) {
	var value *Value
	if s.Value != nil {
		value = i.evaluate(s.Value)
	}
	throwReturn(value)
}

func (i *Interpreter) VisitVarStmt(s *VarStmt) {
	var value *Value
	if s.Initializer != nil {
		value = i.evaluate(s.Initializer)
	} else {
		value = i.heap.NewUninitializedNil()
	}
	i.defineAt(s.Name, value)
}

func (i *Interpreter) VisitWhileStmt(s *WhileStmt) {
	for i.evaluate(s.Condition).IsTruthy() {
		i.execute(s.Body)
	}
}

/* ---- expressions ---- */

func (i *Interpreter) VisitAssign(e *Assign) interface{} {
	value := i.evaluate(e.Value)
	if b, ok := i.bindings[e]; ok {
		i.env.AssignAt(b.Depth, b.Slot, value)
	} else if !i.env.AssignGlobal(e.Name.Lexeme, value) {
		throwRuntimeError(e.Name.Line, "Undefined variable '%s'.", e.Name.Lexeme)
	}
	return value
}

func (i *Interpreter) VisitBinary(e *Binary) interface{} {
	left := i.evaluate(e.Left)
	if !i.heap.Pin(left) {
		throwRuntimeError(e.Operator.Line, "Stack overflow.")
	}
	right := i.evaluate(e.Right)
	i.heap.Unpin()

	switch e.Operator.Type {
	case Plus:
		ln, lIsNum := left.AsNumber()
		rn, rIsNum := right.AsNumber()
		if lIsNum && rIsNum {
			return i.heap.NewNumber(ln + rn)
		}
		ls, lIsStr := left.AsString()
		rs, rIsStr := right.AsString()
		if lIsStr && rIsStr {
			return i.heap.NewString(ls + rs)
		}
		if lIsStr && rIsNum {
			return i.heap.NewString(ls + right.String())
		}
		if rIsStr && lIsNum {
			return i.heap.NewString(left.String() + rs)
		}
		throwRuntimeError(e.Operator.Line, "Operands must be two numbers or two strings.")
	case Minus:
		ln, rn := i.checkNumberOperands(e.Operator, left, right)
		return i.heap.NewNumber(ln - rn)
	case Slash:
		ln, rn := i.checkNumberOperands(e.Operator, left, right)
		if rn == 0 {
			throwRuntimeError(e.Operator.Line, "Division by zero.")
		}
		return i.heap.NewNumber(ln / rn)
	case Star:
		ln, rn := i.checkNumberOperands(e.Operator, left, right)
		return i.heap.NewNumber(ln * rn)
	case Greater:
		ln, rn := i.checkNumberOperands(e.Operator, left, right)
		return i.heap.NewBool(ln > rn)
	case GreaterEqual:
		ln, rn := i.checkNumberOperands(e.Operator, left, right)
		return i.heap.NewBool(ln >= rn)
	case Less:
		ln, rn := i.checkNumberOperands(e.Operator, left, right)
		return i.heap.NewBool(ln < rn)
	case LessEqual:
		ln, rn := i.checkNumberOperands(e.Operator, left, right)
		return i.heap.NewBool(ln <= rn)
	case BangEqual:
		return i.heap.NewBool(!left.Equals(right))
	case EqualEqual:
		return i.heap.NewBool(left.Equals(right))
	}
	return i.heap.NewNil()
}

func (i *Interpreter) VisitCall(e *Call) interface{} {
	callee := i.evaluate(e.Callee)
	if !i.heap.Pin(callee) {
		throwRuntimeError(e.Paren.Line, "Stack overflow.")
	}
	pinned := 1
	args := make([]*Value, 0, len(e.Args))
	for _, a := range e.Args {
		v := i.evaluate(a)
		if !i.heap.Pin(v) {
			i.heap.UnpinN(pinned)
			throwRuntimeError(e.Paren.Line, "Stack overflow.")
		}
		pinned++
		args = append(args, v)
	}
	defer func() { i.heap.UnpinN(pinned) }()

	arity, call, ok := callee.Callable()
	if !ok {
		throwRuntimeError(e.Paren.Line, "Can only call functions and classes.")
	}
	if len(args) != arity {
		throwRuntimeError(e.Paren.Line, "Expected %d arguments but got %d.", arity, len(args))
	}
	result, err := call(i, args)
	if err != nil {
		i.raiseAt(e.Paren.Line, err)
	}
	return result
}

func (i *Interpreter) VisitGet(e *Get) interface{} {
	obj := i.evaluate(e.Object)
	inst, ok := obj.AsInstance()
	if !ok {
		throwRuntimeError(e.Name.Line, "Only instances have properties.")
	}
	if !i.heap.Pin(obj) {
		throwRuntimeError(e.Name.Line, "Stack overflow.")
	}
	v, found, allocOK := inst.Get(i.heap, e.Name.Lexeme)
	i.heap.Unpin()
	if !allocOK {
		throwRuntimeError(e.Name.Line, "Stack overflow.")
	}
	if !found {
		throwRuntimeError(e.Name.Line, "Undefined property '%s'.", e.Name.Lexeme)
	}
	return v
}

func (i *Interpreter) VisitGrouping(e *Grouping) interface{} {
	return i.evaluate(e.Expression)
}

func (i *Interpreter) VisitLiteral(e *Literal) interface{} {
	switch val := e.Value.(type) {
	case nil:
		return i.heap.NewNil()
	case bool:
		return i.heap.NewBool(val)
	case float64:
		return i.heap.NewNumber(val)
	case string:
		return i.heap.NewString(val)
	}
	return i.heap.NewNil()
}

func (i *Interpreter) VisitLogical(e *Logical) interface{} {
	left := i.evaluate(e.Left)
	if e.Operator.Type == Or {
		if left.IsTruthy() {
			return left
		}
	} else if !left.IsTruthy() {
		return left
	}
	return i.evaluate(e.Right)
}

func (i *Interpreter) VisitSet(e *Set) interface{} {
	obj := i.evaluate(e.Object)
	inst, ok := obj.AsInstance()
	if !ok {
		throwRuntimeError(e.Name.Line, "Only instances have fields.")
	}
	if !i.heap.Pin(obj) {
		throwRuntimeError(e.Name.Line, "Stack overflow.")
	}
	value := i.evaluate(e.Value)
	i.heap.Unpin()
	if err := inst.Set(e.Name.Lexeme, value); err != nil {
		i.raiseAt(e.Name.Line, err)
	}
	return value
}

func (i *Interpreter) VisitSuper(e *Super) interface{} {
	b, ok := i.bindings[e]
	if !ok {
		throwRuntimeError(e.Keyword.Line, "Cannot use 'super' outside of a class.")
	}
	superVal := i.env.GetAt(b.Depth, b.Slot)
	superclass, _ := superVal.AsClass()
	thisVal := i.env.GetAt(b.Depth-1, 0)
	inst, _ := thisVal.AsInstance()

	method, ok := superclass.FindMethod(e.Method.Lexeme)
	if !ok {
		throwRuntimeError(e.Method.Line, "Undefined property '%s'.", e.Method.Lexeme)
	}
	bound, ok := method.Bind(i.heap, inst)
	if !ok {
		throwRuntimeError(e.Method.Line, "Stack overflow.")
	}
	return i.heap.wrapFunction(bound)
}

func (i *Interpreter) VisitThis(e *This) interface{} {
	return i.lookupVariable(e, e.Keyword)
}

func (i *Interpreter) VisitUnary(e *Unary) interface{} {
	right := i.evaluate(e.Right)
	switch e.Operator.Type {
	case Minus:
		n, ok := right.AsNumber()
		if !ok {
			throwRuntimeError(e.Operator.Line, "Operand must be a number.")
		}
		return i.heap.NewNumber(-n)
	case Bang:
		return i.heap.NewBool(!right.IsTruthy())
	}
	return i.heap.NewNil()
}

func (i *Interpreter) VisitVariable(e *Variable) interface{} {
	return i.lookupVariable(e, e.Name)
}

/* ---- call protocol ---- */

// callFunction runs fn's body in a fresh environment enclosed by its
// closure, with args already bound to parameter slots in declaration
// order. A `return` statement inside unwinds here via panic/recover
// rather than an ad hoc sentinel, per the Design Note in §9.
func (i *Interpreter) callFunction(fn *Function, args []*Value) (result *Value, rerr error) {
	newEnv, ok := i.heap.NewLocalEnvironment(fn.Closure)
	if !ok {
		return nil, &RuntimeError{Message: "Stack overflow."}
	}
	for _, a := range args {
		if err := newEnv.DefineLocal(a); err != nil {
			return nil, err
		}
	}

	previous := i.env
	i.env = newEnv

	defer func() {
		if r := recover(); r != nil {
			cf, ok := r.(controlFlow)
			if !ok {
				i.env = previous
				newEnv.Release()
				panic(r)
			}
			switch cf.Kind {
			case flowReturn:
				result = cf.Value
			case flowError:
				rerr = cf.Err
			default:
				i.env = previous
				newEnv.Release()
				panic(r)
			}
		}
		if fn.IsInitializer {
			result = fn.Closure.GetAt(0, 0)
		}
		i.env = previous
		newEnv.Release()
	}()

	for _, stmt := range fn.Declaration.Body {
		i.execute(stmt)
	}
	return nil, nil
}

// instantiate builds a fresh Instance of cls and, if it declares an
// init method, runs it for constructor side effects; init's own return
// value is discarded (§4.5).
func (i *Interpreter) instantiate(cls *Class, args []*Value) (*Value, error) {
	inst := newInstancePayload(cls)
	instVal := i.heap.wrapInstance(inst)
	if !i.heap.Pin(instVal) {
		return nil, &RuntimeError{Message: "Stack overflow."}
	}
	defer i.heap.Unpin()

	if init, ok := cls.FindMethod("init"); ok {
		bound, ok := init.Bind(i.heap, inst)
		if !ok {
			return nil, &RuntimeError{Message: "Stack overflow."}
		}
		if _, err := i.callFunction(bound, args); err != nil {
			return nil, err
		}
	}
	return instVal, nil
}
