package lox

// Function is the shared payload backing a KindFunction Value: a
// declaration, the closure environment captured when the `fun`/method
// statement executed, and whether it is a class initializer (which
// changes its return semantics — see §4.5).
type Function struct {
	Declaration   *FunctionStmt
	Closure       *Environment
	IsInitializer bool

	gcMark     int32
	gcRecycled int32
}

func newFunctionPayload(decl *FunctionStmt, closure *Environment, isInit bool) *Function {
	return &Function{Declaration: decl, Closure: closure, IsInitializer: isInit, gcMark: gcClear, gcRecycled: gcClear}
}

func (f *Function) Arity() int { return len(f.Declaration.Params) }

// Bind produces a fresh Function whose closure introduces `this` for a
// specific instance at slot 0, per §4.5's "bound function" rule. ok is
// false only if the environment cap (§4.3) is exhausted.
func (f *Function) Bind(h *Heap, inst *Instance) (*Function, bool) {
	env, ok := h.NewLocalEnvironment(f.Closure)
	if !ok {
		return nil, false
	}
	env.DefineThis(h.wrapInstance(inst))
	return newFunctionPayload(f.Declaration, env, f.IsInitializer), true
}

func (f *Function) marked() int32    { return f.gcMark }
func (f *Function) setMarked(m int32) { f.gcMark = m }
func (f *Function) recycled() int32  { return f.gcRecycled }
func (f *Function) setRecycled(m int32) { f.gcRecycled = m }
