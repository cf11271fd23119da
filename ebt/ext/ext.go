// Package ext provides the built-in match, watcher and target
// extensions registered alongside the standard target: ip, arp, vlan,
// mark and among. Each implements the wire-format and validation half
// of the extension capability contract (ReadFrom, WriteTo, FinalCheck,
// Print, Compare); CLI argument parsing is left as the documented
// plug-in boundary.
package ext

import "github.com/netrack/ebtables/ebt"

// Register adds every built-in extension in this package to reg.
func Register(reg *ebt.Registry) {
	reg.RegisterMatch(ipExtension{})
	reg.RegisterMatch(arpExtension{})
	reg.RegisterMatch(vlanExtension{})
	reg.RegisterMatch(markExtension{})
	reg.RegisterMatch(amongExtension{})
}
