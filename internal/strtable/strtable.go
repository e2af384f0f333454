// Package strtable implements the open-addressed name -> integer-slot map
// described in spec.md §3/§4.3: power-of-two bucket count tracked by a
// rank, linear probing, a DJBX33A-style hash, and a Put that returns the
// existing slot for a known key or binds+returns a caller-supplied slot for
// a new one. Grounded on original_source/ht.c, with the hash function
// swapped from the original's FNV-1a to DJBX33A per spec.md §3's explicit
// naming of the hash family (see DESIGN.md).
package strtable

const noValue = ^uint32(0)

type entry struct {
	keyOff uint32
	keyLen uint32
	value  uint32
}

// Table is the hash map described above. The zero value is not usable;
// construct with New.
type Table struct {
	rank    uint
	buckets []uint32
	entries []entry
	keys    []byte
}

// New creates a table with 1<<rank initial buckets.
func New(rank uint) *Table {
	t := &Table{rank: rank}
	t.buckets = make([]uint32, 1<<rank)
	for i := range t.buckets {
		t.buckets[i] = noValue
	}
	return t
}

// djb hashes key the DJBX33A way: hash = hash*33 + byte, seeded at 5381.
func djb(key string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(key); i++ {
		h = h*33 + uint32(key[i])
	}
	return h
}

func (t *Table) mask() uint32 { return uint32(len(t.buckets) - 1) }

func (t *Table) keyAt(e entry) string {
	return string(t.keys[e.keyOff : e.keyOff+e.keyLen])
}

func (t *Table) growIfNeeded() {
	if len(t.entries)*3 < len(t.buckets)*2 {
		return
	}
	t.rank++
	t.buckets = make([]uint32, 1<<t.rank)
	for i := range t.buckets {
		t.buckets[i] = noValue
	}
	mask := t.mask()
	for i, e := range t.entries {
		base := djb(t.keyAt(e)) & mask
		for b := base; ; b = (b + 1) & mask {
			if t.buckets[b] == noValue {
				t.buckets[b] = uint32(i)
				break
			}
		}
	}
}

// Put returns the existing slot bound to key, or binds key to fallback and
// returns fallback if key is new (spec.md §3: "caller uses this as a
// was-new signal").
func (t *Table) Put(key string, fallback uint32) uint32 {
	mask := t.mask()
	base := djb(key) & mask
	for b := base; ; b = (b + 1) & mask {
		idx := t.buckets[b]
		if idx == noValue {
			keyOff := uint32(len(t.keys))
			t.keys = append(t.keys, key...)
			t.entries = append(t.entries, entry{keyOff: keyOff, keyLen: uint32(len(key)), value: fallback})
			t.buckets[b] = uint32(len(t.entries) - 1)
			t.growIfNeeded()
			return fallback
		}
		e := t.entries[idx]
		if e.keyLen == uint32(len(key)) && t.keyAt(e) == key {
			return e.value
		}
	}
}

// Get returns the slot bound to key, and whether key was present.
func (t *Table) Get(key string) (uint32, bool) {
	mask := t.mask()
	base := djb(key) & mask
	for b := base; ; b = (b + 1) & mask {
		idx := t.buckets[b]
		if idx == noValue {
			return 0, false
		}
		e := t.entries[idx]
		if e.keyLen == uint32(len(key)) && t.keyAt(e) == key {
			return e.value, true
		}
	}
}

// Size reports the number of bound keys.
func (t *Table) Size() int { return len(t.entries) }

// Keys returns every bound key, in insertion order (the order Put first
// saw them). Used by Globals.Names for teardown enumeration.
func (t *Table) Keys() []string {
	keys := make([]string, len(t.entries))
	for i, e := range t.entries {
		keys[i] = t.keyAt(e)
	}
	return keys
}
