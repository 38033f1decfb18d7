package lox

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGC_EnvironmentResetsToGlobalsAfterUnwind covers §8's invariant
// that after any unwind (error or normal exit) the current environment
// is globals again and the pin stack is empty.
func TestGC_EnvironmentResetsToGlobalsAfterUnwind(t *testing.T) {
	out := &bytes.Buffer{}
	i := newTestInterpreter(out)

	_, err := runScriptWith(t, i, `
fun boom() {
  var a = 1;
  print 1/0;
}
boom();
`)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if i.env != i.globals {
		t.Error("current environment was not reset to globals after the unwind")
	}
	if i.heap.PinDepth() != 0 {
		t.Errorf("expected an empty pin stack after unwind, got depth %d", i.heap.PinDepth())
	}
}

func runScriptWith(t *testing.T, i *Interpreter, src string) (string, error) {
	t.Helper()
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
	err := i.Interpret(stmts)
	return "", err
}

// TestGC_CollectReclaimsUnreachableValues covers the soundness
// invariant: a fresh allocation after a collection must not alias any
// value still reachable through an active root.
func TestGC_CollectReclaimsUnreachableValues(t *testing.T) {
	h := NewHeap(HeapConfig{MaxEnvironments: 8, PinStackDepth: 8})
	globals := h.NewGlobalEnvironment()

	reachable := h.NewString("kept")
	globals.DefineGlobal("kept", reachable)

	before, _ := h.Stats()
	for n := 0; n < 100; n++ {
		h.NewString("garbage-" + strconv.Itoa(n))
	}
	h.Collect(globals)
	after, _ := h.Stats()

	assert.LessOrEqualf(t, after, before, "expected collection to shrink the live set (before=%d after=%d)", before, after)

	fresh := h.NewString("fresh")
	assert.NotSame(t, reachable, fresh, "a fresh allocation aliased a still-reachable value")

	keptVal, ok := globals.GetGlobal("kept")
	require.True(t, ok, "the reachable global did not survive collection")
	assert.Same(t, reachable, keptVal)
}

// TestGC_PinProtectsFromCollection covers the pin-stack discipline: a
// pinned value must survive a collection triggered by intervening
// allocations even with no other root referencing it.
func TestGC_PinProtectsFromCollection(t *testing.T) {
	h := NewHeap(HeapConfig{MaxEnvironments: 8, PinStackDepth: 8})
	globals := h.NewGlobalEnvironment()

	v := h.NewString("pinned")
	if !h.Pin(v) {
		t.Fatal("pin stack unexpectedly full")
	}
	h.Collect(globals)
	if v.Kind != KindString || v.str != "pinned" {
		t.Error("pinned value was collected despite having no other root")
	}
	h.Unpin()
}

func TestValue_EqualsIsReflexiveAndSymmetric(t *testing.T) {
	h := NewHeap(DefaultHeapConfig())
	values := []*Value{
		h.NewNil(),
		h.NewBool(true),
		h.NewBool(false),
		h.NewNumber(1),
		h.NewNumber(-0.0),
		h.NewString("a"),
		h.NewString("b"),
	}
	for _, v := range values {
		if !v.Equals(v) {
			t.Errorf("%v is not equal to itself", v.String())
		}
	}
	for _, a := range values {
		for _, b := range values {
			if a.Equals(b) != b.Equals(a) {
				t.Errorf("equality is not symmetric for %v and %v", a.String(), b.String())
			}
		}
	}
	nan := h.NewNumber(nanValue())
	if nan.Equals(nan) {
		t.Error("NaN must not be equal to itself")
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestValue_StringifyRoundTripsIntegers(t *testing.T) {
	h := NewHeap(DefaultHeapConfig())
	for _, n := range []float64{0, 1, -1, 42, -42, 1000000} {
		v := h.NewNumber(n)
		parsed, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			t.Fatalf("stringified %v as %q, which doesn't parse: %s", n, v.String(), err)
		}
		if parsed != n {
			t.Errorf("round trip failed: %v -> %q -> %v", n, v.String(), parsed)
		}
	}
}
