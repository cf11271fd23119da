package ebt

// Table is the top-level rule-set container: a name, the hooks it is
// valid for, and the set of chains (one standard chain per valid hook,
// plus zero or more user-defined chains) (§3).
type Table struct {
	Name       string
	ValidHooks ValidHooks
	Chains     []*Chain
}

// NewTable returns a table with one empty standard chain per hook in
// validHooks, each defaulting to PolicyAccept.
func NewTable(name string, validHooks ValidHooks) *Table {
	t := &Table{Name: name, ValidHooks: validHooks}
	for _, h := range validHooks.Hooks() {
		t.Chains = append(t.Chains, NewStandardChain(h, PolicyAccept))
	}
	return t
}

// Chain looks up a chain by name.
func (t *Table) Chain(name string) (*Chain, int) {
	for i, c := range t.Chains {
		if c.Name == name {
			return c, i
		}
	}
	return nil, -1
}

// StandardChain looks up the standard chain bound to hook h, if the
// table is valid for it and the chain hasn't been removed.
func (t *Table) StandardChain(h Hook) (*Chain, int) {
	return t.Chain(standardChainName(h))
}

// UserChains returns the table's user-defined chains in declaration
// order.
func (t *Table) UserChains() []*Chain {
	var out []*Chain
	for _, c := range t.Chains {
		if c.Kind == ChainUser {
			out = append(out, c)
		}
	}
	return out
}

// EntryCount returns the total number of entries across every chain,
// the size of the table's flat counter array (§4.5).
func (t *Table) EntryCount() int {
	n := 0
	for _, c := range t.Chains {
		n += len(c.Entries)
	}
	return n
}

// RenumberCounters reassigns every entry's CounterOffset to its
// position in a flat walk of the chains in declaration order. Called
// by mutators after any structural change, since insertion/deletion
// shifts every later entry's offset (§4.4, §4.5).
func (t *Table) RenumberCounters() {
	n := 0
	for _, c := range t.Chains {
		for _, e := range c.Entries {
			e.CounterOffset = n
			n++
		}
	}
}

// Snapshot returns a shallow copy of the table's chain slice, for
// callers (e.g. the validator) that need to iterate without racing a
// concurrent mutation. Entries and chains themselves are not deep
// copied.
func (t *Table) Snapshot() []*Chain {
	out := make([]*Chain, len(t.Chains))
	copy(out, t.Chains)
	return out
}

// ChainIndex returns the index of chain c within t.Chains, used to
// resolve jump verdicts to graph indices.
func (t *Table) ChainIndex(c *Chain) int {
	for i, tc := range t.Chains {
		if tc == c {
			return i
		}
	}
	return -1
}
