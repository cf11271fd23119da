package ebt

// ChangeMode tags how a CounterLog slot's counter should be produced
// during reconciliation (§3, §4.5).
type ChangeMode int

const (
	// ChangeNorm: slot unchanged, copy the old counter forward.
	ChangeNorm ChangeMode = iota
	// ChangeZero: reset to zero; still consumes an old slot.
	ChangeZero
	// ChangeAdd: a newly inserted rule with no prior counter; does
	// not consume an old slot.
	ChangeAdd
	// ChangeDel: a deleted rule; consumes and discards an old slot.
	ChangeDel
	// ChangeOwrite: overwrite with the entry's own Packets/Bytes.
	ChangeOwrite
	// ChangeChange: combine the old counter with the entry's
	// transient surplus per Axis.
	ChangeChange
)

// SurplusAxis describes how CHANGE combines one counter axis
// (packets or bytes) of the old value with the entry's surplus (§4.5).
type SurplusAxis int

const (
	AxisSet SurplusAxis = iota
	AxisAddSurplus
	AxisSubSurplus
)

// ChangeNode is one slot of a table's counter-change log. Nodes whose
// Mode is ChangeAdd or ChangeDel do not reference a live old counter
// slot the same way NORM/ZERO/OWRITE/CHANGE do; see CounterLog's
// doc comment for how the reconciler tells them apart.
type ChangeNode struct {
	Mode  ChangeMode
	Entry *Entry // nil once a node has been converted to ChangeDel

	// PacketAxis/ByteAxis select CHANGE's combination rule per axis;
	// meaningful only when Mode == ChangeChange.
	PacketAxis, ByteAxis SurplusAxis

	// Surplus holds the transient cnt_surplus pair CHANGE combines
	// with the old counter.
	SurplusPackets, SurplusBytes uint64
}

// CounterLog is the per-table counter-change log (§3, §4.4, §4.5): one
// node per counter slot as of the last fetch, in the same flat,
// chain-ordered sequence as the table's entries and the classifier's
// counter array. Mutators append/convert/drop nodes as the graph
// changes; Reconcile consumes the log against the old counter array
// to produce the new one, then the log is reset to all-NORM.
type CounterLog struct {
	Nodes []*ChangeNode
}

// NewCounterLog builds a log of all-NORM nodes, one per entry
// currently in t, in flat chain order — the state immediately after a
// successful fetch or install (§4.5, "replayed into NORM state").
func NewCounterLog(t *Table) *CounterLog {
	log := &CounterLog{}
	for _, c := range t.Chains {
		for _, e := range c.Entries {
			log.Nodes = append(log.Nodes, &ChangeNode{Mode: ChangeNorm, Entry: e})
		}
	}
	return log
}

// indexOfEntry returns the position of the node referencing e, or -1.
func (log *CounterLog) indexOfEntry(e *Entry) int {
	for i, n := range log.Nodes {
		if n.Entry == e {
			return i
		}
	}
	return -1
}

// Reconcile walks the log against old, producing the new counter
// array slot by slot (§4.5). old must have exactly as many elements
// as the number of log nodes that consume an old slot (every mode
// except ChangeAdd).
func (log *CounterLog) Reconcile(old []Counter) ([]Counter, error) {
	var out []Counter
	i := 0

	consume := func() (Counter, error) {
		if i >= len(old) {
			return Counter{}, errCorrupt("counter log: old counter array exhausted at log position %d", i)
		}
		c := old[i]
		i++
		return c, nil
	}

	for _, n := range log.Nodes {
		switch n.Mode {
		case ChangeNorm:
			c, err := consume()
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		case ChangeZero:
			if _, err := consume(); err != nil {
				return nil, err
			}
			out = append(out, Counter{})
		case ChangeAdd:
			out = append(out, Counter{})
		case ChangeDel:
			if _, err := consume(); err != nil {
				return nil, err
			}
		case ChangeOwrite:
			if _, err := consume(); err != nil {
				return nil, err
			}
			out = append(out, Counter{Packets: n.Entry.Packets, Bytes: n.Entry.Bytes})
		case ChangeChange:
			c, err := consume()
			if err != nil {
				return nil, err
			}
			out = append(out, Counter{
				Packets: combineAxis(n.PacketAxis, c.Packets, n.SurplusPackets),
				Bytes:   combineAxis(n.ByteAxis, c.Bytes, n.SurplusBytes),
			})
		default:
			return nil, errBug("counter log: unknown change mode %d", n.Mode)
		}
	}

	if i != len(old) {
		return nil, errCorrupt("counter log: old counter array has %d unconsumed entries", len(old)-i)
	}

	log.reset()
	return out, nil
}

func combineAxis(axis SurplusAxis, old, surplus uint64) uint64 {
	switch axis {
	case AxisAddSurplus:
		return old + surplus
	case AxisSubSurplus:
		if surplus > old {
			return 0
		}
		return old - surplus
	default:
		return surplus
	}
}

// reset replays every surviving node back to NORM, dropping DEL nodes
// entirely, per §4.5's "replayed into NORM state" step.
func (log *CounterLog) reset() {
	nodes := log.Nodes[:0]
	for _, n := range log.Nodes {
		if n.Mode == ChangeDel {
			continue
		}
		n.Mode = ChangeNorm
		nodes = append(nodes, n)
	}
	log.Nodes = nodes
}

// Counter is a single entry's packet/byte pair, the unit the
// classifier reports back and the atomic file persists (§3).
type Counter struct {
	Packets uint64
	Bytes   uint64
}
