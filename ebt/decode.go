package ebt

import (
	"encoding/binary"
	"net"
)

// EtherType values this decoder recognizes past the Ethernet header.
const (
	etherTypeVLAN = 0x8100
	etherTypeIPv4 = 0x0800
	etherTypeARP  = 0x0806

	// ethFrameMin is the shortest possible Ethernet II header: two
	// hardware addresses plus a 16-bit EtherType/length field.
	ethFrameMin = 14
)

// ParseFrame decodes raw into a Frame ready for classifier evaluation,
// filling in the interface names and the mark the caller already knows
// (the wire format carries neither). It understands Ethernet II and
// 802.3 framing, a single 802.1Q VLAN tag, and the ARP and IPv4 headers
// immediately following, which is the full span of fields the built-in
// entry checks and the ip/arp/vlan/mark/among matches need (§4.3).
func ParseFrame(raw []byte, in, out, logicalIn, logicalOut string, mark uint64) (*Frame, error) {
	if len(raw) < ethFrameMin {
		return nil, errCorrupt("frame: short packet (%d bytes)", len(raw))
	}

	f := &Frame{
		In:         in,
		Out:        out,
		LogicalIn:  logicalIn,
		LogicalOut: logicalOut,
		DestMAC:    net.HardwareAddr(append([]byte(nil), raw[0:6]...)),
		SourceMAC:  net.HardwareAddr(append([]byte(nil), raw[6:12]...)),
		Length:     len(raw),
	}

	ethertype := binary.BigEndian.Uint16(raw[12:14])
	off := 14

	// A value below 1536 is an 802.3 length field, not an EtherType:
	// the frame carries no protocol identifier of its own (§4.3's
	// "NOPROTO is set, or EtherType equals ethproto, or 802_3-framed").
	if ethertype < 1536 {
		f.Framed8023 = true
		f.EtherType = 0
		return f, nil
	}

	if ethertype == etherTypeVLAN {
		if len(raw) < off+4 {
			return nil, errCorrupt("frame: truncated 802.1Q tag")
		}
		tci := binary.BigEndian.Uint16(raw[off : off+2])
		f.VLANPrio = uint16(tci&0xe000) >> 13
		f.VLANID = tci & 0x0fff
		ethertype = binary.BigEndian.Uint16(raw[off+2 : off+4])
		off += 4
	}

	f.EtherType = ethertype

	switch ethertype {
	case etherTypeIPv4:
		parseIPv4(f, raw[off:])
	case etherTypeARP:
		parseARP(f, raw[off:])
	}

	return f, nil
}

func parseIPv4(f *Frame, b []byte) {
	if len(b) < 20 {
		return
	}
	f.TOS = b[1]
	f.Protocol = b[9]
	f.SourceIP = net.IPv4(b[12], b[13], b[14], b[15])
	f.DestIP = net.IPv4(b[16], b[17], b[18], b[19])
}

func parseARP(f *Frame, b []byte) {
	if len(b) < 28 {
		return
	}
	f.ARPHType = binary.BigEndian.Uint16(b[0:2])
	f.ARPPType = binary.BigEndian.Uint16(b[2:4])
	f.ARPOpcode = binary.BigEndian.Uint16(b[6:8])
	f.ARPSourceIP = net.IPv4(b[14], b[15], b[16], b[17])
	f.ARPDestIP = net.IPv4(b[24], b[25], b[26], b[27])
}
