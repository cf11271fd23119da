package main

import "github.com/netrack/ebtables/ebt"

// defaultValidHooks mirrors ebtable_filter.c / ebtable_nat.c /
// ebtable_broute.c's FILTER_VALID_HOOKS / NAT_VALID_HOOKS / BROUTING-only
// masks: which standard hooks each of the three built-in tables
// participates in.
func defaultValidHooks(table string) ebt.ValidHooks {
	switch table {
	case "nat":
		return ebt.ValidHooks(ebt.HookPrerouting.Bit() | ebt.HookOutput.Bit() | ebt.HookPostrouting.Bit())
	case "broute":
		return ebt.ValidHooks(ebt.HookBrouting.Bit())
	default: // "filter"
		return ebt.ValidHooks(ebt.HookInput.Bit() | ebt.HookForward.Bit() | ebt.HookOutput.Bit())
	}
}
