package ext

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/netrack/ebtables/ebt"
)

// ARP bitmask/invflags bits, grounded on ebt_arp.h's EBT_ARP_* constants.
const (
	ARPOpcode uint8 = 0x01
	ARPHType  uint8 = 0x02
	ARPPType  uint8 = 0x04
	ARPSrcIP  uint8 = 0x08
	ARPDstIP  uint8 = 0x10
)

// ARPMatch is the "arp" match's payload (ebt_arp_info): hardware/
// protocol type, opcode, and source/dest protocol address with mask.
type ARPMatch struct {
	HType, PType, Opcode uint16
	SourceAddr, DestAddr net.IP
	SourceMask, DestMask net.IPMask
	Bitmask, Invflags    uint8
}

func (m *ARPMatch) ReadFrom(b []byte) error {
	if len(b) < 22 {
		return fmt.Errorf("arp match: short payload (%d bytes)", len(b))
	}
	m.HType = binary.BigEndian.Uint16(b[0:2])
	m.PType = binary.BigEndian.Uint16(b[2:4])
	m.Opcode = binary.BigEndian.Uint16(b[4:6])
	m.SourceAddr = net.IPv4(b[6], b[7], b[8], b[9])
	m.SourceMask = net.IPv4Mask(b[10], b[11], b[12], b[13])
	m.DestAddr = net.IPv4(b[14], b[15], b[16], b[17])
	m.DestMask = net.IPv4Mask(b[18], b[19], b[20], b[21])
	if len(b) < 24 {
		return fmt.Errorf("arp match: short payload (%d bytes)", len(b))
	}
	m.Bitmask = b[22]
	m.Invflags = b[23]
	return nil
}

func (m *ARPMatch) WriteTo() ([]byte, error) {
	b := make([]byte, 24)
	binary.BigEndian.PutUint16(b[0:2], m.HType)
	binary.BigEndian.PutUint16(b[2:4], m.PType)
	binary.BigEndian.PutUint16(b[4:6], m.Opcode)
	copy(b[6:10], m.SourceAddr.To4())
	copy(b[10:14], m.SourceMask)
	copy(b[14:18], m.DestAddr.To4())
	copy(b[18:22], m.DestMask)
	b[22] = m.Bitmask
	b[23] = m.Invflags
	return b, nil
}

func (m *ARPMatch) FinalCheck(table string, hookMask ebt.HookMask, pass int) error {
	return nil
}

func (m *ARPMatch) Print() string {
	s := ""
	if m.Bitmask&ARPOpcode != 0 {
		s += fmt.Sprintf(" --arp-opcode %d", m.Opcode)
	}
	if m.Bitmask&ARPHType != 0 {
		s += fmt.Sprintf(" --arp-htype %d", m.HType)
	}
	if m.Bitmask&ARPPType != 0 {
		s += fmt.Sprintf(" --arp-ptype 0x%04x", m.PType)
	}
	if m.Bitmask&ARPSrcIP != 0 {
		s += fmt.Sprintf(" --arp-ip-src %s/%s", m.SourceAddr, net.IP(m.SourceMask))
	}
	if m.Bitmask&ARPDstIP != 0 {
		s += fmt.Sprintf(" --arp-ip-dst %s/%s", m.DestAddr, net.IP(m.DestMask))
	}
	return s
}

func (m *ARPMatch) Compare(other ebt.Payload) bool {
	o, ok := other.(*ARPMatch)
	if !ok {
		return false
	}
	return m.Bitmask == o.Bitmask && m.Invflags == o.Invflags &&
		m.HType == o.HType && m.PType == o.PType && m.Opcode == o.Opcode &&
		m.SourceAddr.Equal(o.SourceAddr) && m.DestAddr.Equal(o.DestAddr) &&
		string(m.SourceMask) == string(o.SourceMask) && string(m.DestMask) == string(o.DestMask)
}

// MatchFrame implements ebt.FrameMatcher, honoring Invflags the way
// the classifier evaluates every built-in and extension match.
func (m *ARPMatch) MatchFrame(f *ebt.Frame) bool {
	if m.Bitmask&ARPOpcode != 0 {
		hit := f.ARPOpcode == m.Opcode
		if hit == (m.Invflags&ARPOpcode != 0) {
			return false
		}
	}
	if m.Bitmask&ARPHType != 0 {
		hit := f.ARPHType == m.HType
		if hit == (m.Invflags&ARPHType != 0) {
			return false
		}
	}
	if m.Bitmask&ARPPType != 0 {
		hit := f.ARPPType == m.PType
		if hit == (m.Invflags&ARPPType != 0) {
			return false
		}
	}
	if m.Bitmask&ARPSrcIP != 0 {
		hit := maskedEqual(f.ARPSourceIP, m.SourceAddr, m.SourceMask)
		if hit == (m.Invflags&ARPSrcIP != 0) {
			return false
		}
	}
	if m.Bitmask&ARPDstIP != 0 {
		hit := maskedEqual(f.ARPDestIP, m.DestAddr, m.DestMask)
		if hit == (m.Invflags&ARPDstIP != 0) {
			return false
		}
	}
	return true
}

type arpExtension struct{}

func (arpExtension) Name() string { return "arp" }
func (arpExtension) Help() string {
	return "arp: --arp-opcode/--arp-htype/--arp-ptype op, --arp-ip-src/--arp-ip-dst [!] addr[/mask]"
}
func (arpExtension) New() ebt.Payload { return &ARPMatch{} }
