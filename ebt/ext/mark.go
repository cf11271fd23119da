package ext

import (
	"encoding/binary"
	"fmt"

	"github.com/netrack/ebtables/ebt"
)

// MarkMatch is the "mark_m" match's payload (ebt_mark_m_info): a
// Netfilter mark value and mask. The kernel struct stores mark/mask
// as "unsigned long"; the wire format here fixes them at 64 bits.
type MarkMatch struct {
	Mark, Mask uint64
	Invert     uint8
}

func (m *MarkMatch) ReadFrom(b []byte) error {
	if len(b) < 17 {
		return fmt.Errorf("mark_m match: short payload (%d bytes)", len(b))
	}
	m.Mark = binary.BigEndian.Uint64(b[0:8])
	m.Mask = binary.BigEndian.Uint64(b[8:16])
	m.Invert = b[16]
	return nil
}

func (m *MarkMatch) WriteTo() ([]byte, error) {
	b := make([]byte, 17)
	binary.BigEndian.PutUint64(b[0:8], m.Mark)
	binary.BigEndian.PutUint64(b[8:16], m.Mask)
	b[16] = m.Invert
	return b, nil
}

func (m *MarkMatch) FinalCheck(table string, hookMask ebt.HookMask, pass int) error {
	if m.Mask == 0 {
		return fmt.Errorf("mark_m match: mask of 0 never matches")
	}
	return nil
}

func (m *MarkMatch) Print() string {
	neg := ""
	if m.Invert != 0 {
		neg = "! "
	}
	return fmt.Sprintf(" --mark %s0x%x/0x%x", neg, m.Mark, m.Mask)
}

func (m *MarkMatch) Compare(other ebt.Payload) bool {
	o, ok := other.(*MarkMatch)
	return ok && *m == *o
}

// Match reports whether mark satisfies m, honoring Invert.
func (m *MarkMatch) Match(mark uint64) bool {
	hit := mark&m.Mask == m.Mark&m.Mask
	return hit != (m.Invert != 0)
}

// MatchFrame implements ebt.FrameMatcher.
func (m *MarkMatch) MatchFrame(f *ebt.Frame) bool {
	return m.Match(f.Mark)
}

type markExtension struct{}

func (markExtension) Name() string     { return "mark_m" }
func (markExtension) Help() string     { return "mark_m: --mark [!] value[/mask]" }
func (markExtension) New() ebt.Payload { return &MarkMatch{} }
