package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netrack/ebtables/ebt"
)

func TestEvaluateRawDecodesAndEvaluates(t *testing.T) {
	tbl := ebt.NewTable("filter", ebt.ValidHooks(ebt.HookInput.Bit()|ebt.HookForward.Bit()|ebt.HookOutput.Bit()))
	reg := newRegistry()

	p := &Program{Table: tbl, Registry: reg}
	e := NewEngine(nil)
	e.Install(p)

	counters := NewShardedCounters(tbl.EntryCount())

	raw := []byte{
		0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa,
		0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb,
		0x08, 0x00,
		0x45, 0x00, 0x00, 0x14, 0, 0, 0, 0, 64, 6, 0, 0,
		10, 0, 0, 1,
		10, 0, 0, 2,
	}

	v, err := e.EvaluateRaw(ebt.HookInput, raw, "eth0", "eth1", "", "", 0, counters, 0)
	require.NoError(t, err)
	require.Equal(t, ebt.VerdictAccept, v.Kind)
}

func TestEvaluateRawPropagatesDecodeError(t *testing.T) {
	tbl := ebt.NewTable("filter", ebt.ValidHooks(ebt.HookInput.Bit()))
	e := NewEngine(nil)
	e.Install(&Program{Table: tbl, Registry: newRegistry()})
	counters := NewShardedCounters(tbl.EntryCount())

	_, err := e.EvaluateRaw(ebt.HookInput, []byte{1, 2, 3}, "eth0", "eth1", "", "", 0, counters, 0)
	require.Error(t, err)
}
