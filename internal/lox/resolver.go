package lox

import "fmt"

// Binding is what the Resolver records for a variable-reading or
// -writing expression once it finds the enclosing scope that declares
// it: how many enclosing links to walk, and which slot within that
// environment. Absence from the side-table means "global" (§4.4/§6).
type Binding struct {
	Depth int
	Slot  int32
}

// maxLocalsPerScope and maxCallArity mirror LOX_MAX_LOCAL_VARIABLES and
// LOX_MAX_ARG_COUNT in the reference implementation.
const (
	maxLocalsPerScope = 255
	maxCallArity      = 8
)

type functionType int

const (
	funcNone functionType = iota
	funcFunction
	funcInitializer
	funcMethod
)

type classType int

const (
	classNone classType = iota
	classClass
	classSubclass
)

type scopeEntry struct {
	slot     int32
	line     int
	declared bool
	defined  bool
}

// scope is a hash map from identifier name to (slot index, defined-flag),
// per §4.4. nextSlot hands out slots in declaration order so they line
// up with the order the evaluator's Environment.DefineLocal calls make
// at runtime for the same block.
type scope struct {
	entries  map[string]*scopeEntry
	nextSlot int32
}

func newScope() *scope { return &scope{entries: make(map[string]*scopeEntry)} }

// Resolver is the static pass described in §4.4: it walks the AST with
// an explicit scope stack, annotates every local variable/this/super/
// assign expression with a Binding, and rejects a fixed set of
// semantically invalid constructs as compile-time errors.
type Resolver struct {
	scopes          []*scope
	bindings        map[Expr]Binding
	currentFunction functionType
	currentClass    classType
	errs            []*ResolveError
}

// NewResolver constructs an empty Resolver. Bindings() should be handed
// to the Interpreter that will evaluate the same AST.
func NewResolver() *Resolver {
	return &Resolver{bindings: make(map[Expr]Binding)}
}

// Bindings returns the side-table populated by Resolve.
func (r *Resolver) Bindings() map[Expr]Binding { return r.bindings }

// Errors returns every resolve error collected during Resolve.
func (r *Resolver) Errors() []*ResolveError { return r.errs }

// Resolve statically analyzes stmts. It returns the first error hit, if
// any; Errors() holds every error collected (resolution continues past
// the first one within reason, matching §7's "continue where sensible").
func (r *Resolver) Resolve(stmts []Stmt) error {
	for _, s := range stmts {
		r.resolveStmt(s)
	}
	if len(r.errs) > 0 {
		return r.errs[0]
	}
	return nil
}

func (r *Resolver) errorf(line int, format string, args ...interface{}) {
	r.errs = append(r.errs, &ResolveError{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (r *Resolver) resolveStmt(s Stmt) { s.acceptStmt(r) }
func (r *Resolver) resolveExpr(e Expr) { e.acceptExpr(r) }

func (r *Resolver) resolveStmts(stmts []Stmt) {
	for _, s := range stmts {
		r.resolveStmt(s)
	}
}

func (r *Resolver) beginScope() { r.scopes = append(r.scopes, newScope()) }

func (r *Resolver) endScope() { r.scopes = r.scopes[:len(r.scopes)-1] }

func (r *Resolver) peekScope() *scope {
	if len(r.scopes) == 0 {
		return nil
	}
	return r.scopes[len(r.scopes)-1]
}

// declare registers name in the innermost scope as "declared but not
// defined yet" and hands it the next free slot. Redeclaring a name
// already declared in the same scope is a resolve error (§4.4).
func (r *Resolver) declare(name Token) {
	s := r.peekScope()
	if s == nil {
		return // global: no slot, no side-table entry
	}
	if _, exists := s.entries[name.Lexeme]; exists {
		r.errorf(name.Line, "Variable with this name already declared in this scope.")
		return
	}
	if s.nextSlot >= maxLocalsPerScope {
		r.errorf(name.Line, "Too many local variables in function.")
		return
	}
	s.entries[name.Lexeme] = &scopeEntry{slot: s.nextSlot, line: name.Line, declared: true}
	s.nextSlot++
}

func (r *Resolver) define(name Token) {
	s := r.peekScope()
	if s == nil {
		return
	}
	if e, ok := s.entries[name.Lexeme]; ok {
		e.defined = true
	}
}

// declareDefineSynthetic installs a synthetic binding (this/super) that
// occupies slot 0 of a scope created purely to hold it, per Invariant 3
// in §3.
func (r *Resolver) declareDefineSynthetic(name string, line int) {
	s := r.peekScope()
	s.entries[name] = &scopeEntry{slot: s.nextSlot, line: line, declared: true, defined: true}
	s.nextSlot++
}

func (r *Resolver) resolveLocal(expr Expr, name Token) {
	for depth := 0; depth < len(r.scopes); depth++ {
		idx := len(r.scopes) - depth - 1
		if e, ok := r.scopes[idx].entries[name.Lexeme]; ok {
			r.bindings[expr] = Binding{Depth: depth, Slot: e.slot}
			return
		}
	}
	// not found in any scope: treated as global, no side-table entry.
}

func (r *Resolver) resolveFunction(fn *FunctionStmt, typ functionType) {
	enclosing := r.currentFunction
	r.currentFunction = typ

	r.beginScope()
	if len(fn.Params) > maxCallArity {
		r.errorf(fn.Name.Line, "Cannot have more than %d parameters.", maxCallArity)
	}
	for _, p := range fn.Params {
		r.declare(p)
		r.define(p)
	}
	r.resolveStmts(fn.Body)
	r.endScope()

	r.currentFunction = enclosing
}

/* ---- statements ---- */

func (r *Resolver) VisitBlockStmt(s *BlockStmt) {
	r.beginScope()
	r.resolveStmts(s.Statements)
	r.endScope()
}

func (r *Resolver) VisitClassStmt(s *ClassStmt) {
	enclosingClass := r.currentClass
	r.currentClass = classClass

	r.declare(s.Name)
	r.define(s.Name)

	if s.Superclass != nil {
		if s.Superclass.Name.Lexeme == s.Name.Lexeme {
			r.errorf(s.Name.Line, "A class cannot inherit from itself.")
		}
		r.currentClass = classSubclass
		r.resolveExpr(s.Superclass)
		r.beginScope()
		r.declareDefineSynthetic("super", s.Name.Line)
	}

	r.beginScope()
	r.declareDefineSynthetic("this", s.Name.Line)

	for _, method := range s.Methods {
		typ := funcMethod
		if method.Name.Lexeme == "init" {
			typ = funcInitializer
		}
		r.resolveFunction(method, typ)
	}

	r.endScope()
	if s.Superclass != nil {
		r.endScope()
	}
	r.currentClass = enclosingClass
}

func (r *Resolver) VisitExpressionStmt(s *ExpressionStmt) { r.resolveExpr(s.Expression) }

func (r *Resolver) VisitFunctionStmt(s *FunctionStmt) {
	r.declare(s.Name)
	r.define(s.Name)
	r.resolveFunction(s, funcFunction)
}

func (r *Resolver) VisitIfStmt(s *IfStmt) {
	r.resolveExpr(s.Condition)
	r.resolveStmt(s.Then)
	if s.Else != nil {
		r.resolveStmt(s.Else)
	}
}

func (r *Resolver) VisitPrintStmt(s *PrintStmt) { r.resolveExpr(s.Expression) }

func (r *Resolver) VisitReturnStmt(s *ReturnStmt) {
	if r.currentFunction == funcNone {
		r.errorf(s.Keyword.Line, "Cannot return from top-level code.")
	}
	if s.Value != nil {
		if r.currentFunction == funcInitializer {
			r.errorf(s.Keyword.Line, "Cannot return a value from an initializer.")
		}
		r.resolveExpr(s.Value)
	}
}

func (r *Resolver) VisitVarStmt(s *VarStmt) {
	r.declare(s.Name)
	if s.Initializer != nil {
		r.resolveExpr(s.Initializer)
	}
	r.define(s.Name)
}

func (r *Resolver) VisitWhileStmt(s *WhileStmt) {
	r.resolveExpr(s.Condition)
	r.resolveStmt(s.Body)
}

/* ---- expressions ---- */

func (r *Resolver) VisitAssign(e *Assign) interface{} {
	r.resolveExpr(e.Value)
	r.resolveLocal(e, e.Name)
	return nil
}

func (r *Resolver) VisitBinary(e *Binary) interface{} {
	r.resolveExpr(e.Left)
	r.resolveExpr(e.Right)
	return nil
}

func (r *Resolver) VisitCall(e *Call) interface{} {
	r.resolveExpr(e.Callee)
	if len(e.Args) > maxCallArity {
		r.errorf(e.Paren.Line, "Cannot have more than %d arguments.", maxCallArity)
	}
	for _, a := range e.Args {
		r.resolveExpr(a)
	}
	return nil
}

func (r *Resolver) VisitGet(e *Get) interface{} {
	r.resolveExpr(e.Object)
	return nil
}

func (r *Resolver) VisitGrouping(e *Grouping) interface{} {
	r.resolveExpr(e.Expression)
	return nil
}

func (r *Resolver) VisitLiteral(e *Literal) interface{} { return nil }

func (r *Resolver) VisitLogical(e *Logical) interface{} {
	r.resolveExpr(e.Left)
	r.resolveExpr(e.Right)
	return nil
}

func (r *Resolver) VisitSet(e *Set) interface{} {
	r.resolveExpr(e.Value)
	r.resolveExpr(e.Object)
	return nil
}

func (r *Resolver) VisitSuper(e *Super) interface{} {
	if r.currentClass == classNone {
		r.errorf(e.Keyword.Line, "Cannot use 'super' outside of a class.")
	} else if r.currentClass != classSubclass {
		r.errorf(e.Keyword.Line, "Cannot use 'super' in a class with no superclass.")
	}
	r.resolveLocal(e, e.Keyword)
	return nil
}

func (r *Resolver) VisitThis(e *This) interface{} {
	if r.currentClass == classNone {
		r.errorf(e.Keyword.Line, "Cannot use 'this' outside of a class.")
	}
	r.resolveLocal(e, e.Keyword)
	return nil
}

func (r *Resolver) VisitUnary(e *Unary) interface{} {
	r.resolveExpr(e.Right)
	return nil
}

func (r *Resolver) VisitVariable(e *Variable) interface{} {
	if s := r.peekScope(); s != nil {
		if entry, ok := s.entries[e.Name.Lexeme]; ok && entry.declared && !entry.defined {
			r.errorf(e.Name.Line, "Cannot read local variable in its own initializer.")
		}
	}
	r.resolveLocal(e, e.Name)
	return nil
}
