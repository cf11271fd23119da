package ebt

import (
	"encoding/binary"
	"net"
)

// Wire layout constants (§4.2.1). Every record is padded to a multiple
// of wireAlign bytes so offsets stay cheap to compute and compare.
const (
	wireAlign = 4

	// entryOrEntriesFlag is OR-ed into the high bits of an entry's
	// on-wire bitmask field so its first byte is always non-zero,
	// distinguishing it from a chain header's always-zero
	// distinguisher byte (§4.2.1, §9).
	entryOrEntriesFlag Bitmask = 1 << 15

	// chainHeaderSize is the fixed size of a chain record's header:
	// 1 distinguisher + 3 reserved, 4 nentries, 1 policy + 3 reserved,
	// 4 counter-offset, 32 name.
	chainHeaderSize = 48

	// entryHeaderSize is the fixed size of an entry's header, up to
	// but not including its matches/watchers/target records:
	// 2 bitmask + 2 invflags + 2 ethproto + 2 reserved, 4*IfNameLen,
	// 4*MACLen, 3*4 offsets.
	entryHeaderSize = 2 + 2 + 2 + 2 + 4*IfNameLen + 4*MACLen + 3*4

	// recordHeaderSize precedes every match/watcher/target payload:
	// a 4-byte size field and the fixed-width extension name.
	recordHeaderSize = 4 + ExtensionNameLen
)

func alignUp(n int) int {
	if r := n % wireAlign; r != 0 {
		return n + (wireAlign - r)
	}
	return n
}

func padName(name string, width int) []byte {
	b := make([]byte, width)
	copy(b, name)
	return b
}

func readName(b []byte) string {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return string(b[:i])
}

func encodeIfName(p IfName) []byte {
	b := make([]byte, IfNameLen)
	n := copy(b, p.Name)
	if p.Wildcard && n < IfNameLen {
		b[n] = WildcardSuffix
	}
	return b
}

func decodeIfName(b []byte) IfName {
	i := 0
	for i < len(b) && b[i] != 0 && b[i] != WildcardSuffix {
		i++
	}
	return IfName{Name: string(b[:i]), Wildcard: i < len(b) && b[i] == WildcardSuffix}
}

func encodeMAC(a net.HardwareAddr) []byte {
	b := make([]byte, MACLen)
	copy(b, a)
	return b
}

func decodeMAC(b []byte) net.HardwareAddr {
	a := make(net.HardwareAddr, MACLen)
	copy(a, b)
	return a
}

func putUint32(b []byte, off int, v uint32) { binary.BigEndian.PutUint32(b[off:off+4], v) }
func getUint32(b []byte, off int) uint32    { return binary.BigEndian.Uint32(b[off : off+4]) }
func putUint16(b []byte, off int, v uint16) { binary.BigEndian.PutUint16(b[off:off+2], v) }
func getUint16(b []byte, off int) uint16    { return binary.BigEndian.Uint16(b[off : off+2]) }
