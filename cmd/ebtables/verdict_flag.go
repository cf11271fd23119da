package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/netrack/ebtables/ebt"
)

// verdictValue implements pflag.Value so -j accepts either a sentinel
// verdict name (ACCEPT/DROP/CONTINUE/RETURN) or an arbitrary chain
// name, resolved to a jump once the target chain is known to exist.
type verdictValue struct {
	raw     string
	verdict ebt.Verdict
}

var _ pflag.Value = (*verdictValue)(nil)

func (v *verdictValue) String() string {
	if v.raw == "" {
		return "ACCEPT"
	}
	return v.raw
}

func (v *verdictValue) Set(s string) error {
	v.raw = s
	switch s {
	case "ACCEPT":
		v.verdict = ebt.Accept()
	case "DROP":
		v.verdict = ebt.Drop()
	case "CONTINUE":
		v.verdict = ebt.Continue()
	case "RETURN":
		v.verdict = ebt.Return()
	default:
		// Resolved against the live chain list by the caller once the
		// table is loaded; Set only records the raw chain name here.
	}
	return nil
}

func (v *verdictValue) Type() string { return "verdict" }

// resolve turns a pending chain-name jump into an ebt.Verdict now that
// tbl's chain list is available, erroring if the name isn't a
// sentinel and doesn't match any chain.
func (v *verdictValue) resolve(tbl *ebt.Table) (ebt.Verdict, error) {
	switch v.raw {
	case "", "ACCEPT", "DROP", "CONTINUE", "RETURN":
		return v.verdict, nil
	default:
		_, idx := tbl.Chain(v.raw)
		if idx < 0 {
			return ebt.Verdict{}, ebt.NewError(ebt.KindResolve, "unknown jump target %q", v.raw)
		}
		return ebt.Jump(idx), nil
	}
}

func newVerdictFlag(fs *pflag.FlagSet) *verdictValue {
	v := &verdictValue{raw: "ACCEPT", verdict: ebt.Accept()}
	fs.VarP(v, "jump", "j", fmt.Sprintf("target verdict: %s", "ACCEPT|DROP|CONTINUE|RETURN|<chain>"))
	return v
}
