package lox

// HeapConfig tunes the collector; see SPEC_FULL.md §6 and spec §4.3.
type HeapConfig struct {
	// MaxEnvironments hard-caps live environments (~31*1024 in the
	// reference configuration). Exceeding it surfaces as "Stack
	// overflow." at the call site.
	MaxEnvironments int32
	// PinStackDepth bounds the GC pin stack (4096 in the reference
	// configuration). Overflow is also "Stack overflow.".
	PinStackDepth int
	// Trace, if non-nil, is invoked after every collection with
	// before/after live counts — the hook cmd/loxi's -gc-trace flag
	// wires to zerolog.
	Trace func(beforeValues, afterValues, beforeEnvs, afterEnvs int32, newThreshold int32)
}

// DefaultHeapConfig mirrors the reference implementation's constants.
func DefaultHeapConfig() HeapConfig {
	return HeapConfig{
		MaxEnvironments: 31 * 1024,
		PinStackDepth:   4096,
	}
}

const valuePageSize = 512

type valuePage struct {
	items [valuePageSize]Value
	used  int
}

// gcPayload is implemented by every reference-kind payload
// (Function/Class/Instance) so the sweep's "laundry list" (§4.3) can
// check/update a shared payload's visited and recycled marks without
// knowing its concrete type.
type gcPayload interface {
	marked() int32
	setMarked(int32)
	recycled() int32
	setRecycled(int32)
}

// Heap is the mark-and-sweep collector plus the value/environment
// arenas it sweeps, per spec §4.3. A single Heap is shared by every
// Environment and Value an Interpreter allocates.
type Heap struct {
	cfg HeapConfig

	pages        []*valuePage
	valueFree    *Value // free list of recyclable Value wrappers (reuses gcNext)
	firstValue   *Value // linked list of every allocated wrapper not yet swept
	valuesCount  int32
	valuesMax    int32

	firstEnvironment  *Environment
	envFree           *Environment // free list of recyclable environments (reuses gcNext)
	environmentsCount int32
	environmentsMax   int32

	visitedMark  int32
	recycledMark int32

	pins []*Value

	laundry []gcPayload
}

// NewHeap constructs a Heap with the given configuration.
func NewHeap(cfg HeapConfig) *Heap {
	if cfg.MaxEnvironments <= 0 {
		cfg.MaxEnvironments = DefaultHeapConfig().MaxEnvironments
	}
	if cfg.PinStackDepth <= 0 {
		cfg.PinStackDepth = DefaultHeapConfig().PinStackDepth
	}
	return &Heap{
		cfg:             cfg,
		visitedMark:     0,
		recycledMark:    0,
		valuesMax:       64,
		environmentsMax: 64,
		pins:            make([]*Value, 0, cfg.PinStackDepth),
	}
}

// gcClear is the sentinel mark value meaning "never visited, never
// recycled" (mirrors GC_CLEAR in the reference implementation). Real
// marks are a monotonically increasing, non-negative sequence, so -1
// never collides with one, regardless of which mark happens to be
// current when an object is freshly allocated.
const gcClear int32 = -1

/* ---- pin stack (§4.3's "Pin stack discipline") ---- */

// Pin pushes v onto the pin stack so it survives any allocation that
// happens before the matching Unpin. Returns false (the value is not
// actually protected) if the stack is already at capacity, at which
// point the caller must raise "Stack overflow."
func (h *Heap) Pin(v *Value) bool {
	if len(h.pins) >= h.cfg.PinStackDepth {
		return false
	}
	h.pins = append(h.pins, v)
	return true
}

// Unpin pops the most recently pinned value.
func (h *Heap) Unpin() {
	if len(h.pins) == 0 {
		return
	}
	h.pins = h.pins[:len(h.pins)-1]
}

// UnpinN pops n values from the pin stack in one step.
func (h *Heap) UnpinN(n int) {
	if n > len(h.pins) {
		n = len(h.pins)
	}
	h.pins = h.pins[:len(h.pins)-n]
}

// ClearPins empties the pin stack; called on runtime-error unwind
// (§4.5's non-local exit discipline).
func (h *Heap) ClearPins() { h.pins = h.pins[:0] }

func (h *Heap) PinDepth() int { return len(h.pins) }

/* ---- value allocation ---- */

func (h *Heap) allocValue() *Value {
	h.maybeCollectValues()

	var v *Value
	if h.valueFree != nil {
		v = h.valueFree
		h.valueFree = v.gcNext
		*v = Value{}
	} else {
		page := h.currentValuePage()
		v = &page.items[page.used]
		page.used++
		*v = Value{}
	}

	v.gcNext = h.firstValue
	v.gcMark = gcClear
	h.firstValue = v
	h.valuesCount++
	return v
}

func (h *Heap) currentValuePage() *valuePage {
	if len(h.pages) == 0 || h.pages[len(h.pages)-1].used >= valuePageSize {
		h.pages = append(h.pages, &valuePage{})
	}
	return h.pages[len(h.pages)-1]
}

func (h *Heap) NewNil() *Value {
	v := h.allocValue()
	v.Kind = KindNil
	return v
}

// NewUninitializedNil is what `var x;` (no initializer) stores. It
// stringifies/compares identically to NewNil(); the distinction only
// matters to a StrictUninitializedVariables-configured Interpreter,
// which raises an error instead of reading Nil through it.
func (h *Heap) NewUninitializedNil() *Value {
	v := h.NewNil()
	v.uninitialized = true
	return v
}

func (h *Heap) NewBool(b bool) *Value {
	v := h.allocValue()
	v.Kind = KindBool
	v.boolean = b
	return v
}

func (h *Heap) NewNumber(n float64) *Value {
	v := h.allocValue()
	v.Kind = KindNumber
	v.number = n
	return v
}

func (h *Heap) NewString(s string) *Value {
	v := h.allocValue()
	v.Kind = KindString
	v.str = s
	return v
}

func (h *Heap) wrapNative(n *Native) *Value {
	v := h.allocValue()
	v.Kind = KindNative
	v.native = n
	return v
}

func (h *Heap) wrapFunction(f *Function) *Value {
	v := h.allocValue()
	v.Kind = KindFunction
	v.function = f
	return v
}

func (h *Heap) wrapClass(c *Class) *Value {
	v := h.allocValue()
	v.Kind = KindClass
	v.class = c
	return v
}

func (h *Heap) wrapInstance(inst *Instance) *Value {
	v := h.allocValue()
	v.Kind = KindInstance
	v.instance = inst
	return v
}

func (h *Heap) NewNative(n *Native) *Value { return h.wrapNative(n) }

/* ---- environment allocation ---- */

// NewLocalEnvironment allocates a Local environment enclosed by parent.
// Returns nil with ok=false if the hard environment cap is exceeded,
// which the caller surfaces as "Stack overflow." (§4.3).
func (h *Heap) NewLocalEnvironment(parent *Environment) (*Environment, bool) {
	return h.tryNewEnvironment(parent, false)
}

func (h *Heap) tryNewEnvironment(parent *Environment, isGlobal bool) (*Environment, bool) {
	h.maybeCollectEnvironments()
	if h.environmentsCount >= h.cfg.MaxEnvironments {
		return nil, false
	}

	var e *Environment
	if h.envFree != nil {
		e = h.envFree
		h.envFree = e.gcNext
		*e = Environment{}
	} else {
		e = &Environment{}
	}
	e.enclosing = parent
	e.isGlobal = isGlobal
	e.active = true
	e.gcMark = gcClear
	e.gcNext = h.firstEnvironment
	h.firstEnvironment = e
	h.environmentsCount++
	return e, true
}

// NewGlobalEnvironment allocates the one root environment an
// Interpreter uses for the lifetime of the program.
func (h *Heap) NewGlobalEnvironment() *Environment {
	e, _ := h.tryNewEnvironment(nil, true)
	e.global = newGlobalTable()
	return e
}

/* ---- pacing (§4.3) ---- */

func (h *Heap) maybeCollectValues() {
	if h.valuesCount < h.valuesMax {
		return
	}
	h.Collect(nil)
}

func (h *Heap) maybeCollectEnvironments() {
	if h.environmentsCount < h.environmentsMax {
		return
	}
	h.Collect(nil)
}

/* ---- mark & sweep ---- */

// Collect runs a full mark-and-sweep pass. `globals`, if non-nil, seeds
// the root set together with every `active` environment and the pin
// stack, per §4.3's root definition; with nil, the roots are just the
// pin stack and the active environments (the Global environment is
// allocated active, so it is still reached that way).
func (h *Heap) Collect(globals *Environment) {
	before, beforeEnv := h.valuesCount, h.environmentsCount

	h.visitedMark++
	h.laundry = h.laundry[:0]

	for _, pinned := range h.pins {
		h.markValue(pinned)
	}
	for e := h.firstEnvironment; e != nil; e = e.gcNext {
		if e.active {
			h.markEnvironment(e)
		}
	}
	if globals != nil {
		h.markEnvironment(globals)
	}

	h.sweepValues()
	h.sweepEnvironments()
	h.drainLaundry()

	h.recycledMark++
	h.valuesMax = maxInt32(2*h.valuesCount, int32(len(h.pages))*valuePageSize)
	h.environmentsMax = maxInt32(2*h.environmentsCount, h.environmentsMax)

	if h.cfg.Trace != nil {
		h.cfg.Trace(before, h.valuesCount, beforeEnv, h.environmentsCount, h.valuesMax)
	}
}

func maxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func (h *Heap) markEnvironment(e *Environment) {
	for e != nil {
		if e.gcMark == h.visitedMark {
			return
		}
		e.gcMark = h.visitedMark
		if e.isGlobal && e.global != nil {
			for _, v := range e.global.values {
				h.markValue(v)
			}
		}
		for i := int32(0); i < e.slotsUsed; i++ {
			h.markValue(e.values[i])
		}
		e = e.enclosing
	}
}

func (h *Heap) markValue(v *Value) {
	if v == nil || v.gcMark == h.visitedMark {
		return
	}
	v.gcMark = h.visitedMark

	switch v.Kind {
	case KindFunction:
		h.markFunction(v.function)
	case KindClass:
		h.markClass(v.class)
	case KindInstance:
		h.markInstance(v.instance)
	}
}

func (h *Heap) markFunction(f *Function) {
	if f == nil || f.gcMark == h.visitedMark {
		return
	}
	f.gcMark = h.visitedMark
	h.markEnvironment(f.Closure)
}

func (h *Heap) markClass(c *Class) {
	if c == nil || c.gcMark == h.visitedMark {
		return
	}
	c.gcMark = h.visitedMark
	for _, m := range c.Methods {
		h.markFunction(m)
	}
	h.markClass(c.Superclass)
}

func (h *Heap) markInstance(inst *Instance) {
	if inst == nil || inst.gcMark == h.visitedMark {
		return
	}
	inst.gcMark = h.visitedMark
	h.markClass(inst.Class)
	for _, v := range inst.Fields {
		h.markValue(v)
	}
}

// sweepValues releases every Value wrapper not marked visited this
// pass. Shared Function/Class/Instance payloads are only queued once:
// the first wrapper to see an unmarked, not-yet-recycled payload puts
// it on the laundry list and flips its recycled mark so later wrappers
// sharing the same payload short-circuit (§4.3).
func (h *Heap) sweepValues() {
	var kept *Value
	next := h.firstValue
	for next != nil {
		v := next
		next = v.gcNext
		if v.gcMark == h.visitedMark {
			v.gcNext = kept
			kept = v
			continue
		}
		if payload := v.payload(); payload != nil {
			if payload.marked() != h.visitedMark && payload.recycled() != h.recycledMark {
				payload.setRecycled(h.recycledMark)
				h.laundry = append(h.laundry, payload)
			}
		}
		*v = Value{}
		v.gcNext = h.valueFree
		h.valueFree = v
		h.valuesCount--
	}
	h.firstValue = kept
}

func (v *Value) payload() gcPayload {
	switch v.Kind {
	case KindFunction:
		return v.function
	case KindClass:
		return v.class
	case KindInstance:
		return v.instance
	}
	return nil
}

func (h *Heap) drainLaundry() {
	for _, p := range h.laundry {
		_ = p // payloads are plain Go-GC'd structs; "freeing" them here
		// means forgetting our last strong reference to them, which we
		// already did by unlinking their owning Value wrappers above.
	}
	h.laundry = h.laundry[:0]
}

func (h *Heap) sweepEnvironments() {
	var kept *Environment
	next := h.firstEnvironment
	for next != nil {
		e := next
		next = e.gcNext
		if e.gcMark == h.visitedMark {
			e.gcNext = kept
			kept = e
			continue
		}
		*e = Environment{}
		e.gcNext = h.envFree
		h.envFree = e
		h.environmentsCount--
	}
	h.firstEnvironment = kept
}

// Stats reports the live counts, useful for env()'s diagnostic report
// and for property tests asserting GC soundness.
func (h *Heap) Stats() (values, environments int32) {
	return h.valuesCount, h.environmentsCount
}
