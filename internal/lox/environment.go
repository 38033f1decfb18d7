package lox

// envMaxLocalSlots bounds a single Local environment's slot array,
// mirroring the original's ENV_MAX_CAPACITY (LOX_MAX_LOCAL_VARIABLES+1).
const envMaxLocalSlots = 256

// Environment is a lexical frame: either Local (a bounded slot array
// with a link to its enclosing frame) or Global (the root frame, backed
// by globalTable). See spec §3/§4.2.
type Environment struct {
	enclosing *Environment
	isGlobal  bool

	values    [envMaxLocalSlots]*Value
	slotsUsed int32

	global *globalTable

	// GC bookkeeping (§4.3): `active` is the flag a Block/Call marks
	// false on scope exit without forcing its slots live; `gcNext` links
	// every environment the heap has allocated and not yet swept, so a
	// full sweep can walk them without a separate registry (a swept
	// environment is relinked through it onto the heap's free list).
	active  bool
	gcMark  int32
	gcNext  *Environment
}

// IsGlobal reports whether e is the root environment.
func (e *Environment) IsGlobal() bool { return e.isGlobal }

// Release marks e inactive: the GC will no longer treat e as a root by
// itself, though anything still reachable through a live closure stays
// reachable regardless. Mirrors env_release in the original.
func (e *Environment) Release() { e.active = false }

// Active reports whether e is currently a GC root via the active flag.
func (e *Environment) Active() bool { return e.active }

// Ancestor walks `distance` enclosing links, per §4.2's depth semantics
// (distance 0 is e itself).
func (e *Environment) Ancestor(distance int) *Environment {
	env := e
	for i := 0; i < distance; i++ {
		env = env.enclosing
	}
	return env
}

// DefineLocal appends value to the next free slot of a Local
// environment, per §4.2. Exceeding capacity is the verbatim-preserved
// "Too many constants in one chunk." error (§4.2/§9).
func (e *Environment) DefineLocal(value *Value) error {
	if e.slotsUsed >= envMaxLocalSlots {
		return &RuntimeError{Message: "Too many constants in one chunk."}
	}
	e.values[e.slotsUsed] = value
	e.slotsUsed++
	return nil
}

// DefineThis binds `this` at slot 0 of a fresh method-binding
// environment (Invariant 3, §3).
func (e *Environment) DefineThis(instance *Value) {
	e.values[e.slotsUsed] = instance
	e.slotsUsed++
}

// DefineSuper binds `super` at slot 0 of a fresh subclass-body scope
// (Invariant 3, §3).
func (e *Environment) DefineSuper(class *Value) {
	e.values[e.slotsUsed] = class
	e.slotsUsed++
}

// DefineGlobal inserts or redefines name in the Global environment.
func (e *Environment) DefineGlobal(name string, value *Value) {
	e.global.Define(name, value)
}

// GetAt reads the slot `index` of the environment `distance` links up
// from e. The resolver guarantees both are well-formed (Invariant 2, §3).
func (e *Environment) GetAt(distance int, index int32) *Value {
	return e.Ancestor(distance).values[index]
}

// AssignAt overwrites the slot `index` of the environment `distance`
// links up from e.
func (e *Environment) AssignAt(distance int, index int32, value *Value) {
	e.Ancestor(distance).values[index] = value
}

// GetGlobal looks up name in the Global table.
func (e *Environment) GetGlobal(name string) (*Value, bool) {
	return e.root().global.Get(name)
}

// AssignGlobal assigns to an already-defined global; it does not
// implicitly create one.
func (e *Environment) AssignGlobal(name string, value *Value) bool {
	return e.root().global.Assign(name, value)
}

func (e *Environment) root() *Environment {
	env := e
	for env.enclosing != nil {
		env = env.enclosing
	}
	return env
}

func (e *Environment) marked() int32       { return e.gcMark }
func (e *Environment) setMarked(m int32)   { e.gcMark = m }
