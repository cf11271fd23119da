package ext

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/netrack/ebtables/ebt"
)

// Among bitmask/invflags bits, grounded on ebt_among.h's EBT_AMONG_*
// constants.
const (
	AmongDst uint8 = 0x01
	AmongSrc uint8 = 0x02
)

// wormEntry is one pool slot of an ebt_mac_wormhash: the pool index
// of the next entry in this bucket's chain, or -1 at the end, plus the
// two halves of the MAC address being compared (the first 4 bytes,
// then the last 2).
type wormEntry struct {
	NextOfs int32
	Cmp     [2]uint32
}

// wormHash is an ebt_mac_wormhash: 256 hash buckets, indexed by the
// MAC address's last byte, each chaining into pool.
type wormHash struct {
	Table [256]int32
	Pool  []wormEntry
}

func hashMAC(mac net.HardwareAddr) int {
	if len(mac) != 6 {
		return 0
	}
	return int(mac[5])
}

func macToCmp(mac net.HardwareAddr) [2]uint32 {
	var c [2]uint32
	c[0] = binary.BigEndian.Uint32(mac[0:4])
	c[1] = uint32(mac[4])<<8 | uint32(mac[5])
	return c
}

// lookup reports whether mac is present in the wormhash, mirroring
// ebt_mac_wormhash lookup in ebt_among.c.
func (w *wormHash) lookup(mac net.HardwareAddr) bool {
	if w == nil || len(w.Pool) == 0 {
		return false
	}
	cmp := macToCmp(mac)
	idx := w.Table[hashMAC(mac)]
	for idx >= 0 && int(idx) < len(w.Pool) {
		e := w.Pool[idx]
		if e.Cmp == cmp {
			return true
		}
		idx = e.NextOfs
	}
	return false
}

func (w *wormHash) readFrom(b []byte) (int, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("among match: short wormhash header")
	}
	n := int(binary.BigEndian.Uint32(b[0:4]))
	off := 4
	for i := 0; i < 256; i++ {
		if len(b) < off+4 {
			return 0, fmt.Errorf("among match: short wormhash table")
		}
		w.Table[i] = int32(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
	}
	w.Pool = make([]wormEntry, n)
	for i := 0; i < n; i++ {
		if len(b) < off+12 {
			return 0, fmt.Errorf("among match: short wormhash pool")
		}
		w.Pool[i].NextOfs = int32(binary.BigEndian.Uint32(b[off : off+4]))
		w.Pool[i].Cmp[0] = binary.BigEndian.Uint32(b[off+4 : off+8])
		w.Pool[i].Cmp[1] = binary.BigEndian.Uint32(b[off+8 : off+12])
		off += 12
	}
	return off, nil
}

func (w *wormHash) writeTo() []byte {
	b := make([]byte, 4+256*4+len(w.Pool)*12)
	binary.BigEndian.PutUint32(b[0:4], uint32(len(w.Pool)))
	off := 4
	for i := 0; i < 256; i++ {
		binary.BigEndian.PutUint32(b[off:off+4], uint32(w.Table[i]))
		off += 4
	}
	for _, e := range w.Pool {
		binary.BigEndian.PutUint32(b[off:off+4], uint32(e.NextOfs))
		binary.BigEndian.PutUint32(b[off+4:off+8], e.Cmp[0])
		binary.BigEndian.PutUint32(b[off+8:off+12], e.Cmp[1])
		off += 12
	}
	return b
}

// AmongMatch is the "among" match's payload: membership tests for a
// frame's source and/or destination MAC address against two wormhash
// sets (ebt_among_info).
type AmongMatch struct {
	Bitmask, Invflags uint8
	DstTable          wormHash
	SrcTable          wormHash
}

func (m *AmongMatch) ReadFrom(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("among match: short payload (%d bytes)", len(b))
	}
	m.Bitmask = b[0]
	m.Invflags = b[1]
	pos := 2
	if m.Bitmask&AmongDst != 0 {
		n, err := m.DstTable.readFrom(b[pos:])
		if err != nil {
			return err
		}
		pos += n
	}
	if m.Bitmask&AmongSrc != 0 {
		n, err := m.SrcTable.readFrom(b[pos:])
		if err != nil {
			return err
		}
		pos += n
	}
	return nil
}

func (m *AmongMatch) WriteTo() ([]byte, error) {
	b := []byte{m.Bitmask, m.Invflags}
	if m.Bitmask&AmongDst != 0 {
		b = append(b, m.DstTable.writeTo()...)
	}
	if m.Bitmask&AmongSrc != 0 {
		b = append(b, m.SrcTable.writeTo()...)
	}
	return b, nil
}

func (m *AmongMatch) FinalCheck(table string, hookMask ebt.HookMask, pass int) error {
	return nil
}

func (m *AmongMatch) Print() string {
	s := ""
	if m.Bitmask&AmongDst != 0 {
		s += " --among-dst <list>"
	}
	if m.Bitmask&AmongSrc != 0 {
		s += " --among-src <list>"
	}
	return s
}

func (m *AmongMatch) Compare(other ebt.Payload) bool {
	o, ok := other.(*AmongMatch)
	if !ok {
		return false
	}
	if m.Bitmask != o.Bitmask || m.Invflags != o.Invflags ||
		m.DstTable.Table != o.DstTable.Table || m.SrcTable.Table != o.SrcTable.Table ||
		len(m.DstTable.Pool) != len(o.DstTable.Pool) || len(m.SrcTable.Pool) != len(o.SrcTable.Pool) {
		return false
	}
	for i := range m.DstTable.Pool {
		if m.DstTable.Pool[i] != o.DstTable.Pool[i] {
			return false
		}
	}
	for i := range m.SrcTable.Pool {
		if m.SrcTable.Pool[i] != o.SrcTable.Pool[i] {
			return false
		}
	}
	return true
}

// Match reports whether the frame's source/dest MAC addresses satisfy
// the configured among-src/among-dst membership tests, honoring
// Invflags the same way every built-in match does in the classifier.
func (m *AmongMatch) Match(src, dst net.HardwareAddr) bool {
	if m.Bitmask&AmongDst != 0 {
		hit := m.DstTable.lookup(dst)
		if hit == (m.Invflags&AmongDst != 0) {
			return false
		}
	}
	if m.Bitmask&AmongSrc != 0 {
		hit := m.SrcTable.lookup(src)
		if hit == (m.Invflags&AmongSrc != 0) {
			return false
		}
	}
	return true
}

// MatchFrame implements ebt.FrameMatcher.
func (m *AmongMatch) MatchFrame(f *ebt.Frame) bool {
	return m.Match(f.SourceMAC, f.DestMAC)
}

type amongExtension struct{}

func (amongExtension) Name() string { return "among" }
func (amongExtension) Help() string {
	return "among: --among-dst/--among-src [!] list (MAC address set membership)"
}
func (amongExtension) New() ebt.Payload { return &AmongMatch{} }
