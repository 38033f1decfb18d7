package lox

import "github.com/cespare/xxhash/v2"

// globalTable is the open-addressed hash table backing the Global
// environment (§3: "an open-addressed hash table mapping name → (name
// copy, slot index)"). It uses xxhash rather than Go's builtin map
// because the spec calls for an explicit open-addressed table, not a
// delegated hash map — the one place in this codebase where that
// distinction is load-bearing rather than cosmetic.
type globalTable struct {
	keys   []string // "" marks an empty bucket
	slots  []int32  // parallel: index into `values` for keys[i]
	values []*Value
	count  int
}

const globalTableMinCapacity = 16

func newGlobalTable() *globalTable {
	return &globalTable{
		keys:  make([]string, globalTableMinCapacity),
		slots: make([]int32, globalTableMinCapacity),
	}
}

func (t *globalTable) hashIndex(name string, capacity int) int {
	return int(xxhash.Sum64String(name) % uint64(capacity))
}

func (t *globalTable) find(name string) (idx int, found bool) {
	capacity := len(t.keys)
	idx = t.hashIndex(name, capacity)
	for i := 0; i < capacity; i++ {
		probe := (idx + i) % capacity
		if t.keys[probe] == "" {
			return probe, false
		}
		if t.keys[probe] == name {
			return probe, true
		}
	}
	return -1, false
}

// Define inserts or overwrites name -> value, growing the table if its
// load factor would exceed 0.7. Redefinition is always allowed, matching
// §4.2's "Global definition allows redefinition."
func (t *globalTable) Define(name string, value *Value) {
	if t.count+1 > len(t.keys)*7/10 {
		t.grow()
	}
	probe, found := t.find(name)
	if found {
		t.values[t.slots[probe]] = value
		return
	}
	t.values = append(t.values, value)
	t.keys[probe] = name
	t.slots[probe] = int32(len(t.values) - 1)
	t.count++
}

func (t *globalTable) Get(name string) (*Value, bool) {
	probe, found := t.find(name)
	if !found {
		return nil, false
	}
	return t.values[t.slots[probe]], true
}

// Assign overwrites an existing binding; it does not create one, per
// §4.5's "Undefined variable" rule for assignment to an unknown name.
func (t *globalTable) Assign(name string, value *Value) bool {
	probe, found := t.find(name)
	if !found {
		return false
	}
	t.values[t.slots[probe]] = value
	return true
}

func (t *globalTable) grow() {
	old := *t
	newCap := len(old.keys) * 2
	if newCap < globalTableMinCapacity {
		newCap = globalTableMinCapacity
	}
	t.keys = make([]string, newCap)
	t.slots = make([]int32, newCap)
	t.values = nil
	t.count = 0
	for i, k := range old.keys {
		if k == "" {
			continue
		}
		t.Define(k, old.values[old.slots[i]])
	}
}

// Names returns every currently-defined global name, for env()'s report.
func (t *globalTable) Names() []string {
	names := make([]string, 0, t.count)
	for _, k := range t.keys {
		if k != "" {
			names = append(names, k)
		}
	}
	return names
}
