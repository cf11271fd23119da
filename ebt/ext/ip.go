package ext

import (
	"fmt"
	"net"

	"github.com/netrack/ebtables/ebt"
)

// IP bitmask/invflags bits, grounded on ebt_ip.h's EBT_IP_* constants.
const (
	IPSource   uint8 = 0x01
	IPDest     uint8 = 0x02
	IPTOS      uint8 = 0x04
	IPProtocol uint8 = 0x08
)

// IPMatch is the "ip" match's payload: encapsulated IPv4 source/dest
// address with mask, type-of-service and protocol (ebt_ip_info).
type IPMatch struct {
	SourceAddr, DestAddr net.IP
	SourceMask, DestMask net.IPMask
	TOS                  uint8
	Protocol             uint8
	Bitmask              uint8
	Invflags             uint8
}

func (m *IPMatch) ReadFrom(b []byte) error {
	if len(b) < 20 {
		return fmt.Errorf("ip match: short payload (%d bytes)", len(b))
	}
	m.SourceAddr = net.IPv4(b[0], b[1], b[2], b[3])
	m.DestAddr = net.IPv4(b[4], b[5], b[6], b[7])
	m.SourceMask = net.IPv4Mask(b[8], b[9], b[10], b[11])
	m.DestMask = net.IPv4Mask(b[12], b[13], b[14], b[15])
	m.TOS = b[16]
	m.Protocol = b[17]
	m.Bitmask = b[18]
	m.Invflags = b[19]
	return nil
}

func (m *IPMatch) WriteTo() ([]byte, error) {
	b := make([]byte, 20)
	copy(b[0:4], m.SourceAddr.To4())
	copy(b[4:8], m.DestAddr.To4())
	copy(b[8:12], m.SourceMask)
	copy(b[12:16], m.DestMask)
	b[16] = m.TOS
	b[17] = m.Protocol
	b[18] = m.Bitmask
	b[19] = m.Invflags
	return b, nil
}

// FinalCheck enforces EBT_IP_MASK's "protocol required" rule: TOS and
// protocol predicates only make sense once a protocol narrower than
// "any IP" is implied, mirroring ebt_ip.c's ebt_ip_check.
func (m *IPMatch) FinalCheck(table string, hookMask ebt.HookMask, pass int) error {
	if m.Bitmask&(IPTOS|IPProtocol) != 0 && m.Bitmask&IPProtocol == 0 {
		return fmt.Errorf("ip match: --ip-tos requires --ip-proto")
	}
	return nil
}

func (m *IPMatch) Print() string {
	s := ""
	if m.Bitmask&IPSource != 0 {
		s += fmt.Sprintf(" --ip-src %s/%s", m.SourceAddr, net.IP(m.SourceMask))
	}
	if m.Bitmask&IPDest != 0 {
		s += fmt.Sprintf(" --ip-dst %s/%s", m.DestAddr, net.IP(m.DestMask))
	}
	if m.Bitmask&IPTOS != 0 {
		s += fmt.Sprintf(" --ip-tos 0x%02x", m.TOS)
	}
	if m.Bitmask&IPProtocol != 0 {
		s += fmt.Sprintf(" --ip-proto %d", m.Protocol)
	}
	return s
}

func (m *IPMatch) Compare(other ebt.Payload) bool {
	o, ok := other.(*IPMatch)
	if !ok {
		return false
	}
	return m.Bitmask == o.Bitmask && m.Invflags == o.Invflags &&
		m.TOS == o.TOS && m.Protocol == o.Protocol &&
		m.SourceAddr.Equal(o.SourceAddr) && m.DestAddr.Equal(o.DestAddr) &&
		string(m.SourceMask) == string(o.SourceMask) && string(m.DestMask) == string(o.DestMask)
}

// Match reports whether a packet's IPv4 source/dest address, TOS and
// protocol satisfy m's predicates, honoring Invflags the way the
// classifier evaluates every built-in match (§4.3). It does not look
// at the EtherType; callers are expected to have verified ethproto ==
// IPv4 before invoking an "ip" match at all.
func (m *IPMatch) Match(srcIP, dstIP net.IP, tos, protocol uint8) bool {
	if m.Bitmask&IPSource != 0 {
		hit := maskedEqual(srcIP, m.SourceAddr, m.SourceMask)
		if hit == (m.Invflags&IPSource != 0) {
			return false
		}
	}
	if m.Bitmask&IPDest != 0 {
		hit := maskedEqual(dstIP, m.DestAddr, m.DestMask)
		if hit == (m.Invflags&IPDest != 0) {
			return false
		}
	}
	if m.Bitmask&IPTOS != 0 {
		hit := tos == m.TOS
		if hit == (m.Invflags&IPTOS != 0) {
			return false
		}
	}
	if m.Bitmask&IPProtocol != 0 {
		hit := protocol == m.Protocol
		if hit == (m.Invflags&IPProtocol != 0) {
			return false
		}
	}
	return true
}

// MatchFrame implements ebt.FrameMatcher for the classifier's generic
// extension-match dispatch.
func (m *IPMatch) MatchFrame(f *ebt.Frame) bool {
	return m.Match(f.SourceIP, f.DestIP, f.TOS, f.Protocol)
}

func maskedEqual(a, b net.IP, mask net.IPMask) bool {
	a4, b4 := a.To4(), b.To4()
	if a4 == nil || b4 == nil {
		return false
	}
	for i := range mask {
		if a4[i]&mask[i] != b4[i]&mask[i] {
			return false
		}
	}
	return true
}

type ipExtension struct{}

func (ipExtension) Name() string     { return "ip" }
func (ipExtension) Help() string     { return "ip: --ip-src/--ip-dst [!] addr[/mask], --ip-tos tos, --ip-proto proto" }
func (ipExtension) New() ebt.Payload { return &IPMatch{} }
