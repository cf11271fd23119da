package ebt

// ChainKind distinguishes a chain bound to a hook from a user-defined
// chain reachable only by jump (§3).
type ChainKind int

const (
	ChainStandard ChainKind = iota
	ChainUser
)

// Policy is the verdict applied when a walk runs off the end of a
// chain (§3). Standard chains reject PolicyReturn; UDCs reject
// PolicyContinue — Validate enforces both (§4.4, §4.6).
type Policy VerdictKind

const (
	PolicyAccept   Policy = Policy(VerdictAccept)
	PolicyDrop     Policy = Policy(VerdictDrop)
	PolicyContinue Policy = Policy(VerdictContinue)
	PolicyReturn   Policy = Policy(VerdictReturn)
)

func (p Policy) String() string {
	switch p {
	case PolicyAccept:
		return "ACCEPT"
	case PolicyDrop:
		return "DROP"
	case PolicyContinue:
		return "CONTINUE"
	case PolicyReturn:
		return "RETURN"
	default:
		return "INVALID"
	}
}

// Valid reports whether p is a legal policy for a chain of kind k.
func (p Policy) Valid(k ChainKind) bool {
	switch p {
	case PolicyAccept, PolicyDrop:
		return true
	case PolicyReturn:
		return k == ChainUser
	case PolicyContinue:
		return k == ChainStandard
	default:
		return false
	}
}

// Chain is an ordered list of entries, either bound to one of the
// table's valid hooks (ChainStandard) or reachable only by a jump
// target from another chain's entry (ChainUser) (§3).
type Chain struct {
	Name string
	Kind ChainKind

	// Hook is only meaningful when Kind == ChainStandard.
	Hook Hook

	// Policy applied when a walk falls off this chain's entry list.
	Policy Policy

	Entries []*Entry

	// HookMask is the set of hooks from which this chain is
	// reachable, propagated by the validator across the jump graph
	// (§4.6). A standard chain always has its own hook bit plus
	// StandardChainBit set; a UDC's mask is the union of its callers'
	// masks and is empty until the validator runs at least once.
	HookMask HookMask
}

// NewStandardChain returns an empty chain bound to hook h with the
// given default policy.
func NewStandardChain(h Hook, policy Policy) *Chain {
	return &Chain{
		Name:     standardChainName(h),
		Kind:     ChainStandard,
		Hook:     h,
		Policy:   policy,
		HookMask: h.Bit() | StandardChainBit,
	}
}

// NewUserChain returns an empty user-defined chain. Its HookMask is
// left zero until Validate computes reachability from the jump graph.
func NewUserChain(name string) *Chain {
	return &Chain{Name: name, Kind: ChainUser, Policy: PolicyReturn}
}

// EntryIndex returns the index of e within the chain's Entries, or -1
// if e is not a member.
func (c *Chain) EntryIndex(e *Entry) int {
	for i, ce := range c.Entries {
		if ce == e {
			return i
		}
	}
	return -1
}
