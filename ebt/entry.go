package ebt

import "net"

// invflags bits, one per invertible field of Entry (§3, mirrors
// ebt_u_entry's bitmask/invflags split in ebtables_u.h).
const (
	InvProto Invflags = 1 << iota
	InvSourceMAC
	InvDestMAC
	InvIn
	InvOut
	InvLogicalIn
	InvLogicalOut
)

// Invflags records which of an Entry's populated fields are negated
// ("! -p ipv4" etc).
type Invflags uint16

// Has reports whether bit f is set.
func (f Invflags) Has(bit Invflags) bool { return f&bit != 0 }

// bitmask bits record which optional fields of Entry actually carry a
// value, distinct from Invflags which records negation of a field that
// is present (mirrors ebt_u_entry.bitmask in ebtables_u.h).
const (
	BitProto Bitmask = 1 << iota
	BitSourceMAC
	BitDestMAC
	BitIn
	BitOut
	BitLogicalIn
	BitLogicalOut
	BitNoProto
	Bit8023
)

// Bitmask records which optional header fields of an Entry are set.
type Bitmask uint16

// Has reports whether bit b is set.
func (b Bitmask) Has(bit Bitmask) bool { return b&bit != 0 }

// IfName is a bridge interface name pattern: up to IfNameLen-2 bytes of
// ASCII plus an optional trailing wildcard ("eth+" matches any
// interface whose name starts with "eth").
type IfName struct {
	Name     string
	Wildcard bool
}

// Match reports whether iface satisfies the pattern.
func (p IfName) Match(iface string) bool {
	if p.Wildcard {
		return len(iface) >= len(p.Name) && iface[:len(p.Name)] == p.Name
	}
	return iface == p.Name
}

func (p IfName) String() string {
	if p.Wildcard {
		return p.Name + "+"
	}
	return p.Name
}

// Entry is a single rule within a Chain: a fixed header of core match
// fields, an ordered list of extension matches, an ordered list of
// watchers, exactly one target, and a packet/byte counter pair (§3).
type Entry struct {
	Bitmask  Bitmask
	Invflags Invflags

	// Ethproto is the EtherType to match, meaningful only when
	// Bitmask.Has(BitProto).
	Ethproto uint16

	In, Out                   IfName
	LogicalIn, LogicalOut     IfName
	SourceMAC, SourceMask     net.HardwareAddr
	DestMAC, DestMask         net.HardwareAddr

	Matches  Matches
	Watchers Watchers
	Target   TargetRef

	Packets, Bytes uint64

	// CounterOffset is this entry's index into the owning Table's flat
	// counter array, assigned when the entry is appended and stable
	// across Serialize/Parse round trips until the next structural
	// mutation renumbers the table (§4.5).
	CounterOffset int
}

// NewEntry returns a zero Entry targeting the standard ACCEPT verdict,
// the default a freshly appended rule gets until -j is given.
func NewEntry() *Entry {
	return &Entry{
		Target: TargetRef{
			Name:    StandardTargetName,
			Payload: &StandardTarget{Verdict: Accept()},
		},
	}
}

// Clone returns a deep-enough copy of e suitable for insertion into
// another chain: slices and hardware addresses are copied, payloads
// are assumed immutable after construction and are shared.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Matches = append(Matches(nil), e.Matches...)
	c.Watchers = append(Watchers(nil), e.Watchers...)
	c.SourceMAC = cloneMAC(e.SourceMAC)
	c.SourceMask = cloneMAC(e.SourceMask)
	c.DestMAC = cloneMAC(e.DestMAC)
	c.DestMask = cloneMAC(e.DestMask)
	return &c
}

func cloneMAC(a net.HardwareAddr) net.HardwareAddr {
	if a == nil {
		return nil
	}
	b := make(net.HardwareAddr, len(a))
	copy(b, a)
	return b
}

// Compare reports whether two entries are identical in every header
// field, match list, watcher list and target, ignoring counters. Used
// by -D's by-value delete (§4.4).
func (e *Entry) Compare(other *Entry) bool {
	if e.Bitmask != other.Bitmask || e.Invflags != other.Invflags {
		return false
	}
	if e.Bitmask.Has(BitProto) && e.Ethproto != other.Ethproto {
		return false
	}
	if e.In != other.In || e.Out != other.Out {
		return false
	}
	if e.LogicalIn != other.LogicalIn || e.LogicalOut != other.LogicalOut {
		return false
	}
	if !macEqual(e.SourceMAC, other.SourceMAC) || !macEqual(e.SourceMask, other.SourceMask) {
		return false
	}
	if !macEqual(e.DestMAC, other.DestMAC) || !macEqual(e.DestMask, other.DestMask) {
		return false
	}
	if !e.Matches.Compare(other.Matches) || !e.Watchers.Compare(other.Watchers) {
		return false
	}
	if e.Target.Name != other.Target.Name {
		return false
	}
	if (e.Target.Payload == nil) != (other.Target.Payload == nil) {
		return false
	}
	if e.Target.Payload != nil && !e.Target.Payload.Compare(other.Target.Payload) {
		return false
	}
	return true
}

func macEqual(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
