package ext

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIPMatchRoundTrip(t *testing.T) {
	m := &IPMatch{
		SourceAddr: net.IPv4(10, 0, 0, 1),
		DestAddr:   net.IPv4(10, 0, 0, 2),
		SourceMask: net.IPv4Mask(255, 255, 255, 0),
		DestMask:   net.IPv4Mask(255, 255, 255, 0),
		TOS:        0x10,
		Protocol:   6,
		Bitmask:    IPSource | IPDest | IPTOS | IPProtocol,
	}
	b, err := m.WriteTo()
	require.NoError(t, err)
	require.Len(t, b, 20)

	got := &IPMatch{}
	require.NoError(t, got.ReadFrom(b))
	require.True(t, m.Compare(got))
	require.NoError(t, got.FinalCheck("filter", 0, 1))
}

func TestIPMatchRequiresProtocolForTOS(t *testing.T) {
	m := &IPMatch{Bitmask: IPTOS}
	require.Error(t, m.FinalCheck("filter", 0, 1))
}

func TestIPMatchEvaluation(t *testing.T) {
	m := &IPMatch{
		SourceAddr: net.IPv4(10, 0, 0, 1),
		SourceMask: net.IPv4Mask(255, 255, 255, 0),
		Bitmask:    IPSource,
	}
	require.True(t, m.Match(net.IPv4(10, 0, 0, 99), net.IPv4(1, 1, 1, 1), 0, 0))
	require.False(t, m.Match(net.IPv4(10, 0, 1, 99), net.IPv4(1, 1, 1, 1), 0, 0))

	m.Invflags = IPSource
	require.False(t, m.Match(net.IPv4(10, 0, 0, 99), net.IPv4(1, 1, 1, 1), 0, 0))
	require.True(t, m.Match(net.IPv4(10, 0, 1, 99), net.IPv4(1, 1, 1, 1), 0, 0))
}

func TestARPMatchRoundTrip(t *testing.T) {
	m := &ARPMatch{
		HType:      1,
		PType:      0x0800,
		Opcode:     1,
		SourceAddr: net.IPv4(192, 168, 0, 1),
		DestAddr:   net.IPv4(192, 168, 0, 2),
		SourceMask: net.IPv4Mask(255, 255, 255, 255),
		DestMask:   net.IPv4Mask(255, 255, 255, 255),
		Bitmask:    ARPOpcode | ARPHType | ARPPType | ARPSrcIP | ARPDstIP,
	}
	b, err := m.WriteTo()
	require.NoError(t, err)
	require.Len(t, b, 24)

	got := &ARPMatch{}
	require.NoError(t, got.ReadFrom(b))
	require.True(t, m.Compare(got))
}

func TestVLANMatchRoundTripAndRange(t *testing.T) {
	m := &VLANMatch{ID: 100, Prio: 3, Bitmask: VLANID | VLANPrio}
	b, err := m.WriteTo()
	require.NoError(t, err)

	got := &VLANMatch{}
	require.NoError(t, got.ReadFrom(b))
	require.True(t, m.Compare(got))
	require.NoError(t, m.FinalCheck("filter", 0, 1))

	bad := &VLANMatch{ID: 5000, Bitmask: VLANID}
	require.Error(t, bad.FinalCheck("filter", 0, 1))

	badPrio := &VLANMatch{Prio: 8, Bitmask: VLANPrio}
	require.Error(t, badPrio.FinalCheck("filter", 0, 1))
}

func TestMarkMatchRoundTripAndMatch(t *testing.T) {
	m := &MarkMatch{Mark: 0x5, Mask: 0xff}
	b, err := m.WriteTo()
	require.NoError(t, err)
	require.Len(t, b, 17)

	got := &MarkMatch{}
	require.NoError(t, got.ReadFrom(b))
	require.True(t, m.Compare(got))

	require.True(t, m.Match(0x5))
	require.False(t, m.Match(0x6))

	m.Invert = 1
	require.False(t, m.Match(0x5))
	require.True(t, m.Match(0x6))

	zero := &MarkMatch{Mask: 0}
	require.Error(t, zero.FinalCheck("filter", 0, 1))
}

func TestAmongMatchRoundTripAndLookup(t *testing.T) {
	mac1, _ := net.ParseMAC("00:11:22:33:44:55")
	mac2, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")

	m := &AmongMatch{Bitmask: AmongDst}
	m.DstTable.Table = [256]int32{}
	for i := range m.DstTable.Table {
		m.DstTable.Table[i] = -1
	}
	m.DstTable.Pool = []wormEntry{{NextOfs: -1, Cmp: macToCmp(mac1)}}
	m.DstTable.Table[hashMAC(mac1)] = 0

	require.True(t, m.Match(mac2, mac1))
	require.False(t, m.Match(mac2, mac2))

	b, err := m.WriteTo()
	require.NoError(t, err)

	got := &AmongMatch{}
	require.NoError(t, got.ReadFrom(b))
	require.True(t, m.Compare(got))
	require.True(t, got.DstTable.lookup(mac1))
	require.False(t, got.DstTable.lookup(mac2))
}
