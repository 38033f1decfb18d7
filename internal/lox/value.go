package lox

import (
	"fmt"
	"math"
	"strconv"
)

// Kind tags the variant a Value currently holds.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindNative
	KindFunction
	KindClass
	KindInstance
)

// Value is the tagged union described in spec §3. It is always
// heap-allocated through a Heap (see gc.go) so the garbage collector can
// track, mark, and recycle it; callers never construct a Value literal
// directly outside of gc.go's allocator.
type Value struct {
	Kind Kind

	boolean  bool
	number   float64
	str      string
	native   *Native
	function *Function
	class    *Class
	instance *Instance

	// uninitialized is set on the Nil stored by a `var x;` declaration
	// with no initializer. It only matters when the interpreter is
	// configured to reject reads of such variables (§4.2/§9's
	// off-by-default toggle) instead of yielding Nil.
	uninitialized bool

	// GC linkage: next node in the heap's live list, and this wrapper's
	// own visited mark. Reference-kind payloads (Function/Class/Instance)
	// carry their own marks separately, since one payload may be shared
	// by several Value wrappers (see gc.go).
	gcNext *Value
	gcMark int32
}

// Native is a built-in callable — see builtins.go.
type Native struct {
	Name  string
	Arity int
	Fn    func(i *Interpreter, args []*Value) (*Value, error)
}

func (n *Native) String() string { return "<fn >" }

// IsTruthy implements §4.1's truthiness rule: Nil and false are falsey,
// everything else is truthy.
func (v *Value) IsTruthy() bool {
	if v == nil || v.Kind == KindNil {
		return false
	}
	if v.Kind == KindBool {
		return v.boolean
	}
	return true
}

// Equals implements §4.1's variant-matched equality: structural for
// Nil/Boolean/Number/String (NaN is never equal to itself), identity for
// Function/Class/Instance/Native, and false across mismatched variants.
func (v *Value) Equals(other *Value) bool {
	if v == nil || other == nil {
		return v == other
	}
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNil:
		return true
	case KindBool:
		return v.boolean == other.boolean
	case KindNumber:
		return v.number == other.number
	case KindString:
		return v.str == other.str
	case KindNative:
		return v.native == other.native
	case KindFunction:
		return v.function == other.function
	case KindClass:
		return v.class == other.class
	case KindInstance:
		return v.instance == other.instance
	}
	return false
}

// String renders the user-visible stringification of v, per §4.1's rules
// (must match byte-for-byte, including the integral/non-integral number
// split and the negative-zero special case).
func (v *Value) String() string {
	if v == nil || v.Kind == KindNil {
		return "nil"
	}
	switch v.Kind {
	case KindBool:
		if v.boolean {
			return "true"
		}
		return "false"
	case KindNumber:
		return stringifyNumber(v.number)
	case KindString:
		return v.str
	case KindNative:
		return v.native.String()
	case KindFunction:
		return fmt.Sprintf("<fn %s>", v.function.Declaration.Name.Lexeme)
	case KindClass:
		return v.class.Name
	case KindInstance:
		return v.instance.Class.Name + " instance"
	}
	return "<invalid>"
}

// Describe renders a diagnostic (non-user-facing) form; for every variant
// except strings it is identical to String(), but strings are quoted so
// error messages don't run together with surrounding punctuation.
func (v *Value) Describe() string {
	if v != nil && v.Kind == KindString {
		return strconv.Quote(v.str)
	}
	return v.String()
}

func stringifyNumber(value float64) string {
	if value == 0 {
		if math.Signbit(value) {
			return "-0"
		}
		return "0"
	}
	if value == math.Trunc(value) && !math.IsInf(value, 0) &&
		value >= math.MinInt64 && value <= math.MaxInt64 {
		return strconv.FormatInt(int64(value), 10)
	}
	// DBL_DIG is 15 on the platforms the original targets; Go's
	// strconv equivalent of "%.*g" with that precision is 'g' with
	// prec=15. Values that need more significant digits are rounded
	// (0.1 + 0.2 prints as 0.3), so those do not round-trip.
	return strconv.FormatFloat(value, 'g', 15, 64)
}

// §3 describes assignment and argument-passing as duplicating the
// source Value. Values here are immutable after construction and
// shared freely by pointer, so a duplicating copy would be
// observationally identical to sharing the pointer while costing an
// extra allocation; assignment and call-arg binding store the
// evaluated *Value directly rather than duplicating it.

func (v *Value) AsNumber() (float64, bool) {
	if v != nil && v.Kind == KindNumber {
		return v.number, true
	}
	return 0, false
}

func (v *Value) AsString() (string, bool) {
	if v != nil && v.Kind == KindString {
		return v.str, true
	}
	return "", false
}

func (v *Value) AsInstance() (*Instance, bool) {
	if v != nil && v.Kind == KindInstance {
		return v.instance, true
	}
	return nil, false
}

func (v *Value) AsClass() (*Class, bool) {
	if v != nil && v.Kind == KindClass {
		return v.class, true
	}
	return nil, false
}

// Callable reports whether v can be the callee of a Call expression, and
// if so exposes its arity and a uniform invocation hook.
func (v *Value) Callable() (arity int, call func(i *Interpreter, args []*Value) (*Value, error), ok bool) {
	if v == nil {
		return 0, nil, false
	}
	switch v.Kind {
	case KindNative:
		return v.native.Arity, v.native.Fn, true
	case KindFunction:
		fn := v.function
		return fn.Arity(), func(i *Interpreter, args []*Value) (*Value, error) {
			return i.callFunction(fn, args)
		}, true
	case KindClass:
		cls := v.class
		return cls.Arity(), func(i *Interpreter, args []*Value) (*Value, error) {
			return i.instantiate(cls, args)
		}, true
	}
	return 0, nil, false
}
