package ebt

import "fmt"

// VerdictKind distinguishes the sentinel (negative, on the wire)
// verdicts from a jump to a user-defined chain.
type VerdictKind int

const (
	VerdictAccept VerdictKind = iota
	VerdictDrop
	VerdictContinue
	VerdictReturn
	VerdictJump
)

// wire encodings of the EBT_STANDARD_TARGET verdict field (§3). Values
// below zero are sentinels; values >= 0 are jump targets (a chain index
// in the graph, a byte offset to a chain header on the wire).
const (
	wireAccept   int32 = -1
	wireDrop     int32 = -2
	wireContinue int32 = -3
	wireReturn   int32 = -4
)

// Verdict is the tagged-variant, in-memory form of the standard target's
// verdict field. The on-wire int32 encoding (negative sentinels vs.
// non-negative jump addresses) is produced only at serialize time and
// consumed only at parse time; nothing else in the package looks at the
// raw integer.
type Verdict struct {
	Kind VerdictKind

	// Chain is the jump target when Kind == VerdictJump. In the graph
	// it is an index into the owning Table's chain list; it carries
	// no meaning for any other Kind.
	Chain int
}

func Accept() Verdict   { return Verdict{Kind: VerdictAccept} }
func Drop() Verdict     { return Verdict{Kind: VerdictDrop} }
func Continue() Verdict { return Verdict{Kind: VerdictContinue} }
func Return() Verdict   { return Verdict{Kind: VerdictReturn} }
func Jump(chain int) Verdict {
	return Verdict{Kind: VerdictJump, Chain: chain}
}

// verdictFromWire decodes the raw standard-target verdict integer. The jump
// case is deliberately left as a raw address (graph index or blob
// offset, depending on caller) for the caller to resolve.
func verdictFromWire(v int32) Verdict {
	switch v {
	case wireAccept:
		return Accept()
	case wireDrop:
		return Drop()
	case wireContinue:
		return Continue()
	case wireReturn:
		return Return()
	default:
		return Jump(int(v))
	}
}

// toWire encodes the verdict back to its raw integer form. For
// VerdictJump the caller is expected to have already resolved Chain to
// whatever address space is needed (graph index vs. blob offset) before
// calling this.
func (v Verdict) toWire() int32 {
	switch v.Kind {
	case VerdictAccept:
		return wireAccept
	case VerdictDrop:
		return wireDrop
	case VerdictContinue:
		return wireContinue
	case VerdictReturn:
		return wireReturn
	case VerdictJump:
		return int32(v.Chain)
	default:
		return wireAccept
	}
}

func (v Verdict) String() string {
	switch v.Kind {
	case VerdictAccept:
		return "ACCEPT"
	case VerdictDrop:
		return "DROP"
	case VerdictContinue:
		return "CONTINUE"
	case VerdictReturn:
		return "RETURN"
	case VerdictJump:
		return fmt.Sprintf("jump(%d)", v.Chain)
	default:
		return "INVALID"
	}
}

// IsJump reports whether the verdict is a jump to a UDC.
func (v Verdict) IsJump() bool {
	return v.Kind == VerdictJump
}

// VerdictTarget is implemented by a target Payload that issues a
// verdict directly, the way the classifier's target dispatch expects
// (§4.3): StandardTarget is the built-in case, but a plug-in target
// extension participates the same way.
type VerdictTarget interface {
	TargetVerdict() Verdict
}

func (t *StandardTarget) TargetVerdict() Verdict {
	return t.Verdict
}
