package ebt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFrameEthernetII(t *testing.T) {
	raw := []byte{
		0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, // dst
		0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb, // src
		0x08, 0x00, // EtherType IPv4
		0x45, 0x00, 0x00, 0x14, 0, 0, 0, 0, 64, 6, 0, 0,
		10, 0, 0, 1, // src ip
		10, 0, 0, 2, // dst ip
	}
	f, err := ParseFrame(raw, "eth0", "eth1", "br0", "br0", 0)
	require.NoError(t, err)
	require.Equal(t, uint16(0x0800), f.EtherType)
	require.False(t, f.Framed8023)
	require.Equal(t, "10.0.0.1", f.SourceIP.String())
	require.Equal(t, "10.0.0.2", f.DestIP.String())
	require.Equal(t, uint8(6), f.Protocol)
}

func Test8021QVLANTag(t *testing.T) {
	raw := []byte{
		0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa,
		0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb,
		0x81, 0x00, // 802.1Q
		0x20, 0x07, // prio 1, id 7
		0x08, 0x06, // ARP
		0, 1, 0x08, 0, 6, 4, 0, 1,
		0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 10, 0, 0, 2,
		0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 10, 0, 0, 1,
	}
	f, err := ParseFrame(raw, "eth0", "eth1", "", "", 0)
	require.NoError(t, err)
	require.Equal(t, uint16(1), f.VLANPrio)
	require.Equal(t, uint16(7), f.VLANID)
	require.Equal(t, uint16(etherTypeARP), f.EtherType)
	require.Equal(t, uint16(1), f.ARPOpcode)
	require.Equal(t, "10.0.0.2", f.ARPSourceIP.String())
	require.Equal(t, "10.0.0.1", f.ARPDestIP.String())
}

func Test8023FramedHasNoEtherType(t *testing.T) {
	raw := []byte{
		0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa,
		0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb,
		0x00, 0x20, // length field, not an EtherType
	}
	f, err := ParseFrame(raw, "eth0", "eth1", "", "", 0)
	require.NoError(t, err)
	require.True(t, f.Framed8023)
	require.Equal(t, uint16(0), f.EtherType)
}

func TestParseFrameRejectsShortPacket(t *testing.T) {
	_, err := ParseFrame([]byte{1, 2, 3}, "eth0", "eth1", "", "", 0)
	require.Error(t, err)
}
