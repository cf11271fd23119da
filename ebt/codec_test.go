package ebt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestTable() (*Table, *Registry) {
	reg := NewRegistry()
	t := NewTable("filter", ValidHooks(HookInput.Bit()|HookForward.Bit()|HookOutput.Bit()))
	return t, reg
}

func TestSerializeParseRoundTrip(t *testing.T) {
	tbl, reg := newTestTable()

	fwd, _ := tbl.StandardChain(HookForward)
	e1 := NewEntry()
	e1.Bitmask |= BitProto
	e1.Ethproto = 0x0800
	e1.Target.Payload.(*StandardTarget).Verdict = Drop()
	require.NoError(t, Append(tbl, NewCounterLog(tbl), fwd, e1))

	udc, err := NewChain(tbl, reg, "mychain")
	require.NoError(t, err)
	e2 := NewEntry()
	require.NoError(t, Append(tbl, NewCounterLog(tbl), udc, e2))

	e3 := NewEntry()
	e3.Target.Payload.(*StandardTarget).Verdict = Jump(tbl.ChainIndex(udc))
	require.NoError(t, Append(tbl, NewCounterLog(tbl), fwd, e3))

	require.NoError(t, Validate(tbl, reg, nil))

	blob, err := Serialize(tbl)
	require.NoError(t, err)
	require.Greater(t, blob.Len(), 0)

	parsed, err := Parse(blob.Bytes(), tbl.Name, tbl.ValidHooks, reg)
	require.NoError(t, err)
	require.Equal(t, tbl.EntryCount(), parsed.EntryCount())

	pfwd, _ := parsed.StandardChain(HookForward)
	require.Len(t, pfwd.Entries, 2)
	require.Equal(t, uint16(0x0800), pfwd.Entries[0].Ethproto)
	st0 := pfwd.Entries[0].Target.Payload.(*StandardTarget)
	require.Equal(t, Drop(), st0.Verdict)

	st1 := pfwd.Entries[1].Target.Payload.(*StandardTarget)
	require.True(t, st1.Verdict.IsJump())

	jumpedChain := parsed.Chains[st1.Verdict.Chain]
	require.Equal(t, "mychain", jumpedChain.Name)
}

func TestSerializeJumpOffsetPointsAtChainHeader(t *testing.T) {
	tbl, reg := newTestTable()
	fwd, _ := tbl.StandardChain(HookForward)

	udc, err := NewChain(tbl, reg, "mychain")
	require.NoError(t, err)
	require.NoError(t, Append(tbl, NewCounterLog(tbl), udc, NewEntry()))

	e := NewEntry()
	e.Target.Payload.(*StandardTarget).Verdict = Jump(tbl.ChainIndex(udc))
	require.NoError(t, Append(tbl, NewCounterLog(tbl), fwd, e))
	require.NoError(t, Validate(tbl, reg, nil))

	blob, err := Serialize(tbl)
	require.NoError(t, err)

	data := blob.Bytes()
	headers, err := parseChainHeaders(data)
	require.NoError(t, err)

	var fwdHeader, udcHeader chainHeaderInfo
	for _, h := range headers {
		if h.name == "FORWARD" {
			fwdHeader = h
		}
		if h.name == "mychain" {
			udcHeader = h
		}
	}
	require.NotEmpty(t, fwdHeader.entryAt)

	targetOff := int(getUint32(data, fwdHeader.entryAt[0]+100))
	recStart := fwdHeader.entryAt[0] + targetOff
	verdict := int32(getUint32(data, recStart+recordHeaderSize))
	require.Equal(t, int32(udcHeader.offset), verdict)
}
