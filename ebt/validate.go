package ebt

import "go.uber.org/zap"

// Validate runs the two checks required before every install (§4.6):
// loop detection over the full UDC jump graph, hook-mask propagation
// from the standard chains, then final-check dispatch (pass=1) over
// every match, watcher and target, followed by the table's own
// registered check if any. log may be nil; a nil logger silences the
// Warn-level rejection messages without affecting behavior.
//
// Validate mutates t.Chains' HookMask fields in place; callers must
// run it after every structural mutation and before Serialize.
func Validate(t *Table, reg *Registry, log *zap.Logger) error {
	if err := detectLoops(t); err != nil {
		logWarn(log, "validate: loop rejected", zap.String("table", t.Name), zap.Error(err))
		return err
	}

	propagateHookMasks(t)

	for _, c := range t.Chains {
		for _, e := range c.Entries {
			if err := finalCheckEntry(e, t.Name, c.HookMask, 1, reg); err != nil {
				logWarn(log, "validate: final check rejected", zap.String("table", t.Name), zap.String("chain", c.Name), zap.Error(err))
				return err
			}
		}
	}

	if desc, ok := reg.Table(t.Name); ok && desc.Check != nil {
		if err := desc.Check(t); err != nil {
			logWarn(log, "validate: table check rejected", zap.String("table", t.Name), zap.Error(err))
			return err
		}
	}

	return nil
}

const (
	colorWhite = iota
	colorGray
	colorBlack
)

// detectLoops walks the full jump graph — every entry's standard
// target, in every chain, regardless of reachability from a standard
// hook — with three-color DFS, rejecting any cycle among UDC jumps
// (§4.6, §8, invariant 8).
func detectLoops(t *Table) error {
	color := make([]int, len(t.Chains))

	var visit func(idx int) error
	visit = func(idx int) error {
		color[idx] = colorGray
		c := t.Chains[idx]

		for _, e := range c.Entries {
			st, ok := e.Target.Payload.(*StandardTarget)
			if !ok || !st.Verdict.IsJump() {
				continue
			}
			ci := st.Verdict.Chain
			if ci < 0 || ci >= len(t.Chains) {
				return errResolve("jump verdict in chain %q references unknown chain index %d", c.Name, ci)
			}
			target := t.Chains[ci]
			if target.Kind != ChainUser {
				return errResolve("jump verdict in chain %q targets non-UDC chain %q", c.Name, target.Name)
			}

			switch color[ci] {
			case colorWhite:
				if err := visit(ci); err != nil {
					return err
				}
			case colorGray:
				return errLoop("loop from chain %q to chain %q", c.Name, target.Name)
			}
		}

		color[idx] = colorBlack
		return nil
	}

	for idx := range t.Chains {
		if color[idx] == colorWhite {
			if err := visit(idx); err != nil {
				return err
			}
		}
	}
	return nil
}

// propagateHookMasks computes, for every UDC, the union of the
// hook-masks of every chain whose jump can reach it, by iterating the
// jump edges to a fixed point. Since loops have already been rejected
// by detectLoops, this always terminates: each chain's mask only ever
// grows, and it is bounded by HookCount+1 bits.
func propagateHookMasks(t *Table) {
	for _, c := range t.Chains {
		if c.Kind == ChainUser {
			c.HookMask = 0
		}
	}

	for dirty := true; dirty; {
		dirty = false
		for _, c := range t.Chains {
			for _, e := range c.Entries {
				st, ok := e.Target.Payload.(*StandardTarget)
				if !ok || !st.Verdict.IsJump() {
					continue
				}
				ci := st.Verdict.Chain
				if ci < 0 || ci >= len(t.Chains) {
					continue
				}
				target := t.Chains[ci]
				merged := target.HookMask | (c.HookMask &^ StandardChainBit)
				if merged != target.HookMask {
					target.HookMask = merged
					dirty = true
				}
			}
		}
	}
}
