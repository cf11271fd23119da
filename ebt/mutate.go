package ebt

// Append inserts e at the end of c's entry list, recording a ChangeAdd
// node in log at the matching linear position (§4.4).
func Append(t *Table, log *CounterLog, c *Chain, e *Entry) error {
	return Insert(t, log, c, len(c.Entries), e)
}

// Insert inserts e at position pos (0-based) within c's entry list.
// pos == len(c.Entries) appends.
func Insert(t *Table, log *CounterLog, c *Chain, pos int, e *Entry) error {
	if pos < 0 || pos > len(c.Entries) {
		return errConfig("insert position %d out of range for chain %q (%d entries)", pos, c.Name, len(c.Entries))
	}

	linear := linearIndex(t, c, pos)

	c.Entries = append(c.Entries, nil)
	copy(c.Entries[pos+1:], c.Entries[pos:])
	c.Entries[pos] = e

	node := &ChangeNode{Mode: ChangeAdd, Entry: e}
	log.Nodes = append(log.Nodes, nil)
	copy(log.Nodes[linear+1:], log.Nodes[linear:])
	log.Nodes[linear] = node

	t.RenumberCounters()
	return nil
}

// linearIndex computes the flat, chain-ordered slot position of index
// pos within chain c, i.e. the sum of every preceding chain's entry
// count plus pos — the position a counter for that slot occupies in
// both the table's counter array and its CounterLog (§4.4).
func linearIndex(t *Table, c *Chain, pos int) int {
	n := 0
	for _, tc := range t.Chains {
		if tc == c {
			return n + pos
		}
		n += len(tc.Entries)
	}
	return n + pos
}

// Delete removes the entries at indices [from, to] (inclusive) from c.
// Each removed entry's log node is dropped outright if it was a
// pending ChangeAdd, otherwise converted to ChangeDel in place (§4.4).
func Delete(t *Table, log *CounterLog, c *Chain, from, to int) error {
	if from < 0 || to < from || to >= len(c.Entries) {
		return errConfig("delete range %d:%d out of bounds for chain %q (%d entries)", from, to, c.Name, len(c.Entries))
	}

	for i := to; i >= from; i-- {
		e := c.Entries[i]
		idx := log.indexOfEntry(e)
		if idx < 0 {
			return errBug("delete: entry at chain %q index %d has no counter-log node", c.Name, i)
		}
		if log.Nodes[idx].Mode == ChangeAdd {
			log.Nodes = append(log.Nodes[:idx], log.Nodes[idx+1:]...)
		} else {
			log.Nodes[idx].Mode = ChangeDel
			log.Nodes[idx].Entry = nil
		}
	}

	c.Entries = append(c.Entries[:from], c.Entries[to+1:]...)
	t.RenumberCounters()
	return nil
}

// DeleteValue removes the first entry in c equal to e by Entry.Compare
// (ignoring counters), the by-value form of -D (§4.4, §6).
func DeleteValue(t *Table, log *CounterLog, c *Chain, e *Entry) error {
	for i, ce := range c.Entries {
		if ce.Compare(e) {
			return Delete(t, log, c, i, i)
		}
	}
	return errResolve("no matching rule in chain %q", c.Name)
}

// Flush removes every entry from c.
func Flush(t *Table, log *CounterLog, c *Chain) error {
	if len(c.Entries) == 0 {
		return nil
	}
	return Delete(t, log, c, 0, len(c.Entries)-1)
}

// FlushTable flushes every chain in t.
func FlushTable(t *Table, log *CounterLog) error {
	for _, c := range t.Chains {
		if err := Flush(t, log, c); err != nil {
			return err
		}
	}
	return nil
}

// ZeroCounters marks every node currently backed by a live old
// counter (NORM, OWRITE or CHANGE) and referencing an entry in c as
// ChangeZero. ChangeAdd nodes are left alone: they have no old slot to
// consume, and converting one to ChangeZero would desynchronize
// Reconcile's walk against the old counter array (§4.4, §4.5).
func ZeroCounters(c *Chain, log *CounterLog) {
	inChain := make(map[*Entry]bool, len(c.Entries))
	for _, e := range c.Entries {
		inChain[e] = true
	}
	for _, n := range log.Nodes {
		if n.Entry == nil || !inChain[n.Entry] {
			continue
		}
		switch n.Mode {
		case ChangeNorm, ChangeOwrite, ChangeChange:
			n.Mode = ChangeZero
		}
		n.Entry.Packets, n.Entry.Bytes = 0, 0
	}
}

// ZeroCountersTable zeroes every chain in t.
func ZeroCountersTable(t *Table, log *CounterLog) {
	for _, c := range t.Chains {
		ZeroCounters(c, log)
	}
}

// ChangePolicy sets c's policy, rejecting a policy invalid for c's
// kind (standard chains reject PolicyReturn, UDCs reject
// PolicyContinue) (§3, §4.4).
func ChangePolicy(c *Chain, p Policy) error {
	if !p.Valid(c.Kind) {
		return errConfig("policy %s is not valid for chain %q", p, c.Name)
	}
	c.Policy = p
	return nil
}

// NewChain validates name and appends an empty UDC to t (§4.4).
func NewChain(t *Table, reg *Registry, name string) (*Chain, error) {
	if len(name) == 0 || len(name) > ChainNameLen-1 {
		return nil, errConfig("chain name %q is empty or too long", name)
	}
	if reg.HasTargetName(name) {
		return nil, errReference("chain name %q collides with a registered target", name)
	}
	if _, i := t.Chain(name); i >= 0 {
		return nil, errReference("chain %q already exists", name)
	}

	c := NewUserChain(name)
	t.Chains = append(t.Chains, c)
	return c, nil
}

// jumpsTo reports whether any entry in any chain of t jumps to target.
func jumpsTo(t *Table, target *Chain) bool {
	idx := t.ChainIndex(target)
	for _, c := range t.Chains {
		for _, e := range c.Entries {
			if st, ok := e.Target.Payload.(*StandardTarget); ok && st.Verdict.IsJump() && st.Verdict.Chain == idx {
				return true
			}
		}
	}
	return false
}

// DeleteChain removes UDC name from t. It refuses a chain still
// jumped to, a standard chain, or a non-empty chain, and rewrites
// every jump verdict whose target index is greater than the deleted
// chain's index by decrementing it by one so they keep pointing at
// the right chain after the slice shifts (§4.4).
func DeleteChain(t *Table, name string) error {
	c, idx := t.Chain(name)
	if c == nil {
		return errResolve("unknown chain %q", name)
	}
	if c.Kind != ChainUser {
		return errConfig("chain %q is a standard chain and cannot be deleted", name)
	}
	if len(c.Entries) != 0 {
		return errConfig("chain %q is not empty", name)
	}
	if jumpsTo(t, c) {
		return errReference("chain %q is still referenced by a jump", name)
	}

	t.Chains = append(t.Chains[:idx], t.Chains[idx+1:]...)

	for _, oc := range t.Chains {
		for _, e := range oc.Entries {
			st, ok := e.Target.Payload.(*StandardTarget)
			if !ok || !st.Verdict.IsJump() {
				continue
			}
			if st.Verdict.Chain > idx {
				st.Verdict.Chain--
			}
		}
	}
	return nil
}

// DeleteAllUserChains repeatedly deletes UDCs that have no remaining
// inbound jump, until no more can be removed. It returns the first
// Reference error for a UDC that is still referenced once no further
// progress can be made, the "-X" with no chain argument behavior.
func DeleteAllUserChains(t *Table) error {
	for {
		progressed := false
		for _, c := range t.UserChains() {
			if len(c.Entries) != 0 || jumpsTo(t, c) {
				continue
			}
			if err := DeleteChain(t, c.Name); err != nil {
				return err
			}
			progressed = true
			break
		}
		if !progressed {
			break
		}
	}

	if remaining := t.UserChains(); len(remaining) > 0 {
		return errReference("chain %q is still referenced by a jump", remaining[0].Name)
	}
	return nil
}

// RenameChain changes a UDC's name, validating uniqueness the same
// way NewChain does (§4.4).
func RenameChain(t *Table, reg *Registry, oldName, newName string) error {
	c, _ := t.Chain(oldName)
	if c == nil {
		return errResolve("unknown chain %q", oldName)
	}
	if c.Kind != ChainUser {
		return errConfig("chain %q is a standard chain and cannot be renamed", oldName)
	}
	if len(newName) == 0 || len(newName) > ChainNameLen-1 {
		return errConfig("chain name %q is empty or too long", newName)
	}
	if reg.HasTargetName(newName) {
		return errReference("chain name %q collides with a registered target", newName)
	}
	if _, i := t.Chain(newName); i >= 0 {
		return errReference("chain %q already exists", newName)
	}

	c.Name = newName
	return nil
}
