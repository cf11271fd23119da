package classifier

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/netrack/ebtables/ebt"
)

// MaxReturnDepth bounds the return stack a single evaluation may build
// up across nested jumps. A chain of jumps deeper than this is treated
// as a resource exhaustion: the packet is dropped (§4.3).
const MaxReturnDepth = 32

// resumePoint is one entry of the return stack: the chain and the
// index of the next entry to resume at once a RETURN unwinds back to
// it.
type resumePoint struct {
	chain     *ebt.Chain
	nextEntry int
}

// Engine evaluates frames against whichever Program is currently
// installed. Installing a new Program is the sole writer operation;
// any number of Evaluate calls may run concurrently against the
// Program observed at their start, read-copy-update style (§5).
type Engine struct {
	current atomic.Pointer[Program]
	log     *zap.Logger
}

// NewEngine returns an Engine with no Program installed; Evaluate
// calls before the first Install return Accept with no error, mirroring
// an empty passthrough bridge.
func NewEngine(log *zap.Logger) *Engine {
	return &Engine{log: log}
}

// Install swaps in a new Program. Readers that already hold the
// previous Program pointer finish their evaluation against it; Go's
// garbage collector reclaims it once they're done, standing in for
// the manual RCU grace period a non-GC'd implementation would need.
func (e *Engine) Install(p *Program) {
	e.current.Store(p)
}

// Current returns the Program currently installed, or nil if none is.
func (e *Engine) Current() *Program {
	return e.current.Load()
}

// Evaluate walks the chain bound to hook against frame and returns the
// terminal verdict reached: ACCEPT, DROP, or the RETURN-to-policy
// fallthrough at the top of the stack. shardHint selects which counter
// shard this call's increments land in (typically a per-goroutine or
// per-CPU id).
func (e *Engine) Evaluate(hook ebt.Hook, frame *ebt.Frame, counters *ShardedCounters, shardHint int) ebt.Verdict {
	p := e.current.Load()
	if p == nil {
		return ebt.Accept()
	}
	chain, _ := p.Table.StandardChain(hook)
	if chain == nil {
		return ebt.Accept()
	}

	start := chain
	var stack []resumePoint
	entryIdx := 0

	for {
		if entryIdx >= len(chain.Entries) {
			v := policyVerdict(chain.Policy)
			if v.Kind != ebt.VerdictReturn {
				return terminal(v)
			}
			if len(stack) == 0 {
				return ebt.Accept()
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			chain, entryIdx = top.chain, top.nextEntry
			continue
		}

		entry := chain.Entries[entryIdx]
		if !matchBuiltins(entry, frame) {
			entryIdx++
			continue
		}
		if !matchExtensions(entry.Matches, frame) {
			entryIdx++
			continue
		}

		counters.Add(shardHint, entry.CounterOffset, frame.Length)
		evaluateWatchers(entry.Watchers, frame)

		verdict := targetVerdict(entry)
		switch verdict.Kind {
		case ebt.VerdictAccept:
			return ebt.Accept()
		case ebt.VerdictDrop:
			return ebt.Drop()
		case ebt.VerdictContinue:
			entryIdx++
		case ebt.VerdictReturn:
			if len(stack) == 0 {
				return terminal(policyVerdict(start.Policy))
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			chain, entryIdx = top.chain, top.nextEntry
		case ebt.VerdictJump:
			target := p.Table.Chains[verdict.Chain]
			if len(stack) >= MaxReturnDepth {
				logWarn(e.log, "return stack overflow, dropping frame",
					zap.String("table", p.Table.Name),
					zap.String("chain", chain.Name))
				return ebt.Drop()
			}
			stack = append(stack, resumePoint{chain: chain, nextEntry: entryIdx + 1})
			chain, entryIdx = target, 0
		}
	}
}

// terminal resolves a non-RETURN chain-end policy into the evaluation's
// final verdict. Only ACCEPT/DROP/CONTINUE are legal chain-end
// policies besides RETURN; CONTINUE at the very end of a chain behaves
// like ACCEPT (nothing left to continue to).
func terminal(v ebt.Verdict) ebt.Verdict {
	switch v.Kind {
	case ebt.VerdictDrop:
		return ebt.Drop()
	default:
		return ebt.Accept()
	}
}

func policyVerdict(p ebt.Policy) ebt.Verdict {
	switch p {
	case ebt.PolicyAccept:
		return ebt.Accept()
	case ebt.PolicyDrop:
		return ebt.Drop()
	case ebt.PolicyReturn:
		return ebt.Return()
	case ebt.PolicyContinue:
		return ebt.Continue()
	default:
		return ebt.Accept()
	}
}

// matchBuiltins implements the fixed-header checks of §4.3 step 1.
func matchBuiltins(e *ebt.Entry, f *ebt.Frame) bool {
	if e.Bitmask.Has(ebt.BitProto) {
		hit := matchProto(e, f)
		if hit == e.Invflags.Has(ebt.InvProto) {
			return false
		}
	}
	if e.Bitmask.Has(ebt.BitIn) {
		hit := e.In.Match(f.In)
		if hit == e.Invflags.Has(ebt.InvIn) {
			return false
		}
	}
	if e.Bitmask.Has(ebt.BitOut) {
		hit := e.Out.Match(f.Out)
		if hit == e.Invflags.Has(ebt.InvOut) {
			return false
		}
	}
	if e.Bitmask.Has(ebt.BitLogicalIn) {
		hit := e.LogicalIn.Match(f.LogicalIn)
		if hit == e.Invflags.Has(ebt.InvLogicalIn) {
			return false
		}
	}
	if e.Bitmask.Has(ebt.BitLogicalOut) {
		hit := e.LogicalOut.Match(f.LogicalOut)
		if hit == e.Invflags.Has(ebt.InvLogicalOut) {
			return false
		}
	}
	if e.Bitmask.Has(ebt.BitSourceMAC) {
		hit := maskedMACEqual(f.SourceMAC, e.SourceMAC, e.SourceMask)
		if hit == e.Invflags.Has(ebt.InvSourceMAC) {
			return false
		}
	}
	if e.Bitmask.Has(ebt.BitDestMAC) {
		hit := maskedMACEqual(f.DestMAC, e.DestMAC, e.DestMask)
		if hit == e.Invflags.Has(ebt.InvDestMAC) {
			return false
		}
	}
	return true
}

// matchProto decides the protocol predicate: NOPROTO always hits,
// 802_3 hits on a frame whose EtherType signals an 802.3 length field
// rather than an EtherType, otherwise compare Ethproto directly.
func matchProto(e *ebt.Entry, f *ebt.Frame) bool {
	if e.Bitmask.Has(ebt.BitNoProto) {
		return true
	}
	if e.Bitmask.Has(ebt.Bit8023) && f.Framed8023 {
		return true
	}
	return f.EtherType == e.Ethproto
}

func maskedMACEqual(frameMAC, ruleMAC, mask []byte) bool {
	if len(frameMAC) != 6 || len(ruleMAC) != 6 || len(mask) != 6 {
		return false
	}
	for i := 0; i < 6; i++ {
		if frameMAC[i]&mask[i] != ruleMAC[i]&mask[i] {
			return false
		}
	}
	return true
}

// matchExtensions runs every registered match in order (§4.3 step 2).
// A match whose payload doesn't implement ebt.FrameMatcher is treated
// as always matching: the registry contract only requires ReadFrom/
// WriteTo/FinalCheck/Print/Compare, so a payload opting out of runtime
// evaluation (a pure bookkeeping match) can't veto.
func matchExtensions(matches ebt.Matches, f *ebt.Frame) bool {
	for _, m := range matches {
		fm, ok := m.Payload.(ebt.FrameMatcher)
		if !ok {
			continue
		}
		if !fm.MatchFrame(f) {
			return false
		}
	}
	return true
}

// evaluateWatchers runs every watcher for its side effect; the return
// value is deliberately discarded (§4.3 step 3: "watchers may not veto").
func evaluateWatchers(watchers ebt.Watchers, f *ebt.Frame) {
	for _, w := range watchers {
		if fm, ok := w.Payload.(ebt.FrameMatcher); ok {
			fm.MatchFrame(f)
		}
	}
}

// targetVerdict dispatches the entry's single target (§4.3 step 4).
// A target payload that doesn't implement ebt.VerdictTarget can't
// happen for a validated table — Validate's final-check pass runs
// before install — so this falls back to CONTINUE defensively rather
// than panicking.
func targetVerdict(e *ebt.Entry) ebt.Verdict {
	vt, ok := e.Target.Payload.(ebt.VerdictTarget)
	if !ok {
		return ebt.Continue()
	}
	return vt.TargetVerdict()
}

func logWarn(log *zap.Logger, msg string, fields ...zap.Field) {
	if log == nil {
		return
	}
	log.Warn(msg, fields...)
}
