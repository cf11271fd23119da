package ebt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHookMaskUnionAcrossCallers(t *testing.T) {
	tbl, reg := newTestTable()
	in, _ := tbl.StandardChain(HookInput)
	fwd, _ := tbl.StandardChain(HookForward)
	log := NewCounterLog(tbl)

	udc, err := NewChain(tbl, reg, "shared")
	require.NoError(t, err)

	jumpFromIn := NewEntry()
	jumpFromIn.Target.Payload.(*StandardTarget).Verdict = Jump(tbl.ChainIndex(udc))
	require.NoError(t, Append(tbl, log, in, jumpFromIn))

	jumpFromFwd := NewEntry()
	jumpFromFwd.Target.Payload.(*StandardTarget).Verdict = Jump(tbl.ChainIndex(udc))
	require.NoError(t, Append(tbl, log, fwd, jumpFromFwd))

	require.NoError(t, Validate(tbl, reg, nil))

	require.True(t, udc.HookMask.Has(HookInput))
	require.True(t, udc.HookMask.Has(HookForward))
	require.False(t, udc.HookMask.Has(HookOutput))
	require.False(t, udc.HookMask&StandardChainBit != 0)
}

func TestValidateRejectsUnknownJumpIndex(t *testing.T) {
	tbl, reg := newTestTable()
	fwd, _ := tbl.StandardChain(HookForward)
	log := NewCounterLog(tbl)

	e := NewEntry()
	e.Target.Payload.(*StandardTarget).Verdict = Jump(999)
	require.NoError(t, Append(tbl, log, fwd, e))

	err := Validate(tbl, reg, nil)
	require.Error(t, err)
}

func TestUnreachableLoopStillRejected(t *testing.T) {
	// Neither chain a nor b is ever jumped to from a standard chain;
	// the cycle between them must still be rejected (spec.md §8
	// scenario 3 / testable property "UDC jump graph is acyclic").
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
	require.Equal(t, KindLoop, err.(*Error).Kind)
}
