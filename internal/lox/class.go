package lox

// Class is the shared payload backing a KindClass Value: a name, an
// optional superclass, and a method table. The arity of `init` is not
// cached: Arity looks it up (walking the ancestor chain) on every call.
type Class struct {
	Name       string
	Superclass *Class
	Methods    map[string]*Function

	gcMark     int32
	gcRecycled int32
}

func newClassPayload(name string, superclass *Class, methods map[string]*Function) *Class {
	return &Class{Name: name, Superclass: superclass, Methods: methods, gcMark: gcClear, gcRecycled: gcClear}
}

// FindMethod walks c's own method table, then its ancestors, per §4.5's
// `super.method` / property-lookup resolution rule.
func (c *Class) FindMethod(name string) (*Function, bool) {
	if m, ok := c.Methods[name]; ok {
		return m, true
	}
	if c.Superclass != nil {
		return c.Superclass.FindMethod(name)
	}
	return nil, false
}

// Arity is the arity of `init`, or 0 if the class declares none.
func (c *Class) Arity() int {
	init, ok := c.FindMethod("init")
	if !ok {
		return 0
	}
	return init.Arity()
}

func (c *Class) marked() int32      { return c.gcMark }
func (c *Class) setMarked(m int32)  { c.gcMark = m }
func (c *Class) recycled() int32    { return c.gcRecycled }
func (c *Class) setRecycled(m int32) { c.gcRecycled = m }

// Instance is the shared payload backing a KindInstance Value: a class
// reference and a field table. The spec caps the number of fields per
// instance (§3); maxInstanceFields enforces it.
const maxInstanceFields = 255

type Instance struct {
	Class  *Class
	Fields map[string]*Value

	gcMark     int32
	gcRecycled int32
}

func newInstancePayload(class *Class) *Instance {
	return &Instance{Class: class, gcMark: gcClear, gcRecycled: gcClear}
}

// Get looks up name, fields shadowing methods (§4.5's property lookup
// rule). A method hit is bound fresh to inst before being returned. The
// first bool reports whether name was found; the second is false only
// on environment-cap exhaustion (§4.3); the
// caller surfaces that as a runtime "Stack overflow." rather than a
// property-lookup failure.
func (inst *Instance) Get(h *Heap, name string) (*Value, bool, bool) {
	if v, ok := inst.Fields[name]; ok {
		return v, true, true
	}
	if m, ok := inst.Class.FindMethod(name); ok {
		bound, ok := m.Bind(h, inst)
		if !ok {
			return nil, true, false
		}
		return h.wrapFunction(bound), true, true
	}
	return nil, false, true
}

// Set assigns a field, enforcing the per-instance field cap.
func (inst *Instance) Set(name string, value *Value) error {
	if inst.Fields == nil {
		inst.Fields = make(map[string]*Value)
	}
	if _, exists := inst.Fields[name]; !exists && len(inst.Fields) >= maxInstanceFields {
		return &RuntimeError{Message: "Too many fields in one instance."}
	}
	inst.Fields[name] = value
	return nil
}

func (inst *Instance) marked() int32      { return inst.gcMark }
func (inst *Instance) setMarked(m int32)  { inst.gcMark = m }
func (inst *Instance) recycled() int32    { return inst.gcRecycled }
func (inst *Instance) setRecycled(m int32) { inst.gcRecycled = m }
