package ext

import (
	"encoding/binary"
	"fmt"

	"github.com/netrack/ebtables/ebt"
)

// VLAN bitmask/invflags bits, grounded on ebt_vlan.h's EBT_VLAN_*
// constants.
const (
	VLANID   uint8 = 0x01
	VLANPrio uint8 = 0x02
)

// VLANMatch is the "vlan" match's payload (ebt_vlan_info): 802.1Q
// VLAN id and priority.
type VLANMatch struct {
	ID, Prio          uint16
	Bitmask, Invflags uint8
}

func (m *VLANMatch) ReadFrom(b []byte) error {
	if len(b) < 6 {
		return fmt.Errorf("vlan match: short payload (%d bytes)", len(b))
	}
	m.ID = binary.BigEndian.Uint16(b[0:2])
	m.Prio = binary.BigEndian.Uint16(b[2:4])
	m.Bitmask = b[4]
	m.Invflags = b[5]
	return nil
}

func (m *VLANMatch) WriteTo() ([]byte, error) {
	b := make([]byte, 6)
	binary.BigEndian.PutUint16(b[0:2], m.ID)
	binary.BigEndian.PutUint16(b[2:4], m.Prio)
	b[4] = m.Bitmask
	b[5] = m.Invflags
	return b, nil
}

// FinalCheck rejects VLAN ids and priorities outside their valid
// ranges, mirroring ebt_vlan.c's ebt_vlan_check (id 1-4095, prio 0-7).
func (m *VLANMatch) FinalCheck(table string, hookMask ebt.HookMask, pass int) error {
	if m.Bitmask&VLANID != 0 && (m.ID == 0 || m.ID > 4095) {
		return fmt.Errorf("vlan match: VLAN id %d out of range 1-4095", m.ID)
	}
	if m.Bitmask&VLANPrio != 0 && m.Prio > 7 {
		return fmt.Errorf("vlan match: VLAN priority %d out of range 0-7", m.Prio)
	}
	return nil
}

func (m *VLANMatch) Print() string {
	s := ""
	if m.Bitmask&VLANID != 0 {
		s += fmt.Sprintf(" --vlan-id %d", m.ID)
	}
	if m.Bitmask&VLANPrio != 0 {
		s += fmt.Sprintf(" --vlan-prio %d", m.Prio)
	}
	return s
}

func (m *VLANMatch) Compare(other ebt.Payload) bool {
	o, ok := other.(*VLANMatch)
	return ok && *m == *o
}

// MatchFrame implements ebt.FrameMatcher.
func (m *VLANMatch) MatchFrame(f *ebt.Frame) bool {
	if m.Bitmask&VLANID != 0 {
		hit := f.VLANID == m.ID
		if hit == (m.Invflags&VLANID != 0) {
			return false
		}
	}
	if m.Bitmask&VLANPrio != 0 {
		hit := f.VLANPrio == m.Prio
		if hit == (m.Invflags&VLANPrio != 0) {
			return false
		}
	}
	return true
}

type vlanExtension struct{}

func (vlanExtension) Name() string     { return "vlan" }
func (vlanExtension) Help() string     { return "vlan: --vlan-id {1-4095}, --vlan-prio {0-7}" }
func (vlanExtension) New() ebt.Payload { return &VLANMatch{} }
