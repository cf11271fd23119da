package classifier

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netrack/ebtables/ebt"
	"github.com/netrack/ebtables/ebt/ext"
)

func newRegistry() *ebt.Registry {
	reg := ebt.NewRegistry()
	ext.Register(reg)
	return reg
}

func macMust(s string) net.HardwareAddr {
	m, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

func TestEngineAcceptsByDefaultPolicy(t *testing.T) {
	tbl := ebt.NewTable("filter", ebt.ValidHooks(ebt.HookInput.Bit()|ebt.HookForward.Bit()|ebt.HookOutput.Bit()))
	reg := newRegistry()

	p := &Program{Table: tbl, Registry: reg}
	e := NewEngine(nil)
	e.Install(p)

	counters := NewShardedCounters(tbl.EntryCount())
	v := e.Evaluate(ebt.HookInput, &ebt.Frame{EtherType: 0x0800}, counters, 0)
	require.Equal(t, ebt.VerdictAccept, v.Kind)
}

func TestEngineDropsOnMatchingRule(t *testing.T) {
	tbl := ebt.NewTable("filter", ebt.ValidHooks(ebt.HookInput.Bit()))
	reg := newRegistry()
	log := ebt.NewCounterLog(tbl)

	in, _ := tbl.StandardChain(ebt.HookInput)
	rule := ebt.NewEntry()
	rule.Bitmask |= ebt.BitSourceMAC
	rule.SourceMAC = macMust("00:11:22:33:44:55")
	rule.SourceMask = macMust("ff:ff:ff:ff:ff:ff")
	rule.Target.Payload.(*ebt.StandardTarget).Verdict = ebt.Drop()
	require.NoError(t, ebt.Append(tbl, log, in, rule))
	tbl.RenumberCounters()

	p := &Program{Table: tbl, Registry: reg}
	e := NewEngine(nil)
	e.Install(p)

	counters := NewShardedCounters(tbl.EntryCount())

	match := &ebt.Frame{SourceMAC: macMust("00:11:22:33:44:55"), DestMAC: macMust("aa:bb:cc:dd:ee:ff")}
	v := e.Evaluate(ebt.HookInput, match, counters, 0)
	require.Equal(t, ebt.VerdictDrop, v.Kind)

	miss := &ebt.Frame{SourceMAC: macMust("66:66:66:66:66:66"), DestMAC: macMust("aa:bb:cc:dd:ee:ff")}
	v = e.Evaluate(ebt.HookInput, miss, counters, 0)
	require.Equal(t, ebt.VerdictAccept, v.Kind)

	snap := counters.Snapshot()
	require.Equal(t, uint64(1), snap[0].Packets)
}

func TestEngineJumpAndReturn(t *testing.T) {
	tbl := ebt.NewTable("filter", ebt.ValidHooks(ebt.HookInput.Bit()))
	reg := newRegistry()
	log := ebt.NewCounterLog(tbl)

	in, _ := tbl.StandardChain(ebt.HookInput)
	udc, err := ebt.NewChain(tbl, reg, "udc")
	require.NoError(t, err)

	jump := ebt.NewEntry()
	jump.Target.Payload.(*ebt.StandardTarget).Verdict = ebt.Jump(tbl.ChainIndex(udc))
	require.NoError(t, ebt.Append(tbl, log, in, jump))

	ret := ebt.NewEntry()
	ret.Target.Payload.(*ebt.StandardTarget).Verdict = ebt.Return()
	require.NoError(t, ebt.Append(tbl, log, udc, ret))

	drop := ebt.NewEntry()
	drop.Target.Payload.(*ebt.StandardTarget).Verdict = ebt.Drop()
	require.NoError(t, ebt.Append(tbl, log, in, drop))

	p := &Program{Table: tbl, Registry: reg}
	e := NewEngine(nil)
	e.Install(p)

	counters := NewShardedCounters(tbl.EntryCount())
	v := e.Evaluate(ebt.HookInput, &ebt.Frame{}, counters, 0)
	require.Equal(t, ebt.VerdictDrop, v.Kind)
}

func TestEngineReturnStackOverflowDrops(t *testing.T) {
	tbl := ebt.NewTable("filter", ebt.ValidHooks(ebt.HookInput.Bit()))
	reg := newRegistry()
	log := ebt.NewCounterLog(tbl)

	in, _ := tbl.StandardChain(ebt.HookInput)

	var chains []*ebt.Chain
	for i := 0; i < MaxReturnDepth+2; i++ {
		name := "c" + string(rune('a'+i))
		c, err := ebt.NewChain(tbl, reg, name)
		require.NoError(t, err)
		chains = append(chains, c)
	}

	cur := in
	for _, c := range chains {
		e := ebt.NewEntry()
		e.Target.Payload.(*ebt.StandardTarget).Verdict = ebt.Jump(tbl.ChainIndex(c))
		require.NoError(t, ebt.Append(tbl, log, cur, e))
		cur = c
	}

	p := &Program{Table: tbl, Registry: reg}
	e := NewEngine(nil)
	e.Install(p)

	counters := NewShardedCounters(tbl.EntryCount())
	v := e.Evaluate(ebt.HookInput, &ebt.Frame{}, counters, 0)
	require.Equal(t, ebt.VerdictDrop, v.Kind)
}

func TestEngineExtensionMatchDispatch(t *testing.T) {
	tbl := ebt.NewTable("filter", ebt.ValidHooks(ebt.HookInput.Bit()))
	reg := newRegistry()
	log := ebt.NewCounterLog(tbl)

	in, _ := tbl.StandardChain(ebt.HookInput)
	rule := ebt.NewEntry()
	ipm := &ext.IPMatch{
		SourceAddr: net.IPv4(10, 0, 0, 1),
		SourceMask: net.IPv4Mask(255, 255, 255, 255),
		Bitmask:    ext.IPSource,
	}
	rule.Matches = append(rule.Matches, ebt.MatchRef{Name: "ip", Payload: ipm})
	rule.Target.Payload.(*ebt.StandardTarget).Verdict = ebt.Drop()
	require.NoError(t, ebt.Append(tbl, log, in, rule))

	p := &Program{Table: tbl, Registry: reg}
	e := NewEngine(nil)
	e.Install(p)
	counters := NewShardedCounters(tbl.EntryCount())

	hit := &ebt.Frame{SourceIP: net.IPv4(10, 0, 0, 1)}
	require.Equal(t, ebt.VerdictDrop, e.Evaluate(ebt.HookInput, hit, counters, 0).Kind)

	miss := &ebt.Frame{SourceIP: net.IPv4(10, 0, 0, 2)}
	require.Equal(t, ebt.VerdictAccept, e.Evaluate(ebt.HookInput, miss, counters, 0).Kind)
}
