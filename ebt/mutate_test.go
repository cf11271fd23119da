package ebt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendThenList(t *testing.T) {
	tbl, _ := newTestTable()
	fwd, _ := tbl.StandardChain(HookForward)
	log := NewCounterLog(tbl)

	e := NewEntry()
	e.Bitmask |= BitProto
	e.Ethproto = 0x0800
	e.Target.Payload.(*StandardTarget).Verdict = Drop()
	require.NoError(t, Append(tbl, log, fwd, e))

	require.Len(t, fwd.Entries, 1)
	require.Equal(t, 1, tbl.EntryCount())
	require.Equal(t, uint16(0x0800), fwd.Entries[0].Ethproto)
}

func TestLoopRejection(t *testing.T) {
	tbl, reg := newTestTable()
	log := NewCounterLog(tbl)

	a, err := NewChain(tbl, reg, "a")
	require.NoError(t, err)
	b, err := NewChain(tbl, reg, "b")
	require.NoError(t, err)

	ea := NewEntry()
	ea.Target.Payload.(*StandardTarget).Verdict = Jump(tbl.ChainIndex(b))
	require.NoError(t, Append(tbl, log, a, ea))

	eb := NewEntry()
	eb.Target.Payload.(*StandardTarget).Verdict = Jump(tbl.ChainIndex(a))
	require.NoError(t, Append(tbl, log, b, eb))

	err = Validate(tbl, reg, nil)
	require.Error(t, err)
	ebtErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, KindLoop, ebtErr.Kind)
}

func TestDeleteRangeReconcilesCounters(t *testing.T) {
	tbl, _ := newTestTable()
	fwd, _ := tbl.StandardChain(HookForward)
	log := NewCounterLog(tbl)

	for i := 0; i < 5; i++ {
		require.NoError(t, Append(tbl, log, fwd, NewEntry()))
	}

	old := []Counter{{Packets: 1}, {Packets: 2}, {Packets: 3}, {Packets: 4}, {Packets: 5}}
	newCounters, err := log.Reconcile(old)
	require.NoError(t, err)
	require.Equal(t, []Counter{{}, {}, {}, {}, {}}, newCounters)

	// Replay log back to NORM (as Reconcile does) and simulate a second
	// fetch reporting 1..5, matching the scenario in spec.md §8.
	log2 := NewCounterLog(tbl)
	require.NoError(t, Delete(tbl, log2, fwd, 1, 3))

	reconciled, err := log2.Reconcile(old)
	require.NoError(t, err)
	require.Equal(t, []Counter{{Packets: 1}, {Packets: 5}}, reconciled)
	require.Len(t, fwd.Entries, 2)
}

func TestPolicyChangeAndZero(t *testing.T) {
	tbl, _ := newTestTable()
	in, _ := tbl.StandardChain(HookInput)
	log := NewCounterLog(tbl)

	for i := 0; i < 3; i++ {
		e := NewEntry()
		e.Packets, e.Bytes = 10, 1000
		require.NoError(t, Append(tbl, log, in, e))
	}

	require.NoError(t, ChangePolicy(in, PolicyDrop))
	require.Equal(t, PolicyDrop, in.Policy)

	ZeroCounters(in, log)
	for _, e := range in.Entries {
		require.Zero(t, e.Packets)
		require.Zero(t, e.Bytes)
	}
}

func TestPolicyInvalidForChainKind(t *testing.T) {
	tbl, reg := newTestTable()
	in, _ := tbl.StandardChain(HookInput)
	require.Error(t, ChangePolicy(in, PolicyReturn))

	udc, err := NewChain(tbl, reg, "mychain")
	require.NoError(t, err)
	require.Error(t, ChangePolicy(udc, PolicyContinue))
	require.NoError(t, ChangePolicy(udc, PolicyAccept))
}

func TestNewChainNameCollision(t *testing.T) {
	tbl, reg := newTestTable()
	_, err := NewChain(tbl, reg, StandardTargetName)
	require.Error(t, err)

	_, err = NewChain(tbl, reg, "FORWARD")
	require.Error(t, err)

	_, err = NewChain(tbl, reg, "ok")
	require.NoError(t, err)
	_, err = NewChain(tbl, reg, "ok")
	require.Error(t, err)
}

func TestDeleteChainRefusesWhenReferenced(t *testing.T) {
	tbl, reg := newTestTable()
	fwd, _ := tbl.StandardChain(HookForward)
	log := NewCounterLog(tbl)

	udc, err := NewChain(tbl, reg, "mychain")
	require.NoError(t, err)

	e := NewEntry()
	e.Target.Payload.(*StandardTarget).Verdict = Jump(tbl.ChainIndex(udc))
	require.NoError(t, Append(tbl, log, fwd, e))

	err = DeleteChain(tbl, "mychain")
	require.Error(t, err)

	require.NoError(t, Delete(tbl, log, fwd, 0, 0))
	require.NoError(t, DeleteChain(tbl, "mychain"))
	_, idx := tbl.Chain("mychain")
	require.Equal(t, -1, idx)
}

func TestDeleteChainRewritesJumpIndices(t *testing.T) {
	tbl, reg := newTestTable()
	fwd, _ := tbl.StandardChain(HookForward)
	log := NewCounterLog(tbl)

	a, err := NewChain(tbl, reg, "a")
	require.NoError(t, err)
	b, err := NewChain(tbl, reg, "b")
	require.NoError(t, err)

	ejump := NewEntry()
	ejump.Target.Payload.(*StandardTarget).Verdict = Jump(tbl.ChainIndex(b))
	require.NoError(t, Append(tbl, log, fwd, ejump))

	require.NoError(t, DeleteChain(tbl, "a"))

	st := fwd.Entries[0].Target.Payload.(*StandardTarget)
	jumped := tbl.Chains[st.Verdict.Chain]
	require.Equal(t, "b", jumped.Name)
}

func TestRenameChain(t *testing.T) {
	tbl, reg := newTestTable()
	_, err := NewChain(tbl, reg, "old")
	require.NoError(t, err)

	require.NoError(t, RenameChain(tbl, reg, "old", "new"))
	c, _ := tbl.Chain("new")
	require.NotNil(t, c)

	_, idx := tbl.Chain("old")
	require.Equal(t, -1, idx)
}
