package ebt

import "net"

// Frame is the decoded packet metadata the classifier presents to the
// built-in header checks and to every match/watcher payload in turn
// (§4.3). Fields beyond EtherType/MACs/interface names are populated
// only when the frame carries that protocol (ParseFrame fills the IPv4
// or ARP fields according to the EtherType); extensions are expected
// to treat a zero value as "not applicable" rather than a real match.
type Frame struct {
	EtherType                  uint16
	Framed8023                 bool
	In, Out                    string
	LogicalIn, LogicalOut      string
	SourceMAC, DestMAC         net.HardwareAddr
	Length                     int

	SourceIP, DestIP net.IP
	TOS, Protocol    uint8

	ARPOpcode            uint16
	ARPHType, ARPPType   uint16
	ARPSourceIP, ARPDestIP net.IP

	VLANID, VLANPrio uint16

	Mark uint64
}

// FrameMatcher is implemented by match/watcher payloads that inspect
// decoded packet fields beyond the entry's own built-in header. The
// classifier type-asserts every match/watcher Payload against this
// interface; one that doesn't implement it contributes no frame-level
// predicate (§4.3).
type FrameMatcher interface {
	MatchFrame(f *Frame) bool
}
