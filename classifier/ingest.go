package classifier

import "github.com/netrack/ebtables/ebt"

// EvaluateRaw decodes a raw Ethernet frame read off the wire and runs it
// through Evaluate at hook, the boundary a real bridge datapath sits
// behind: callers that only have bytes and interface names, not an
// already-decoded Frame, use this instead of building one by hand.
func (e *Engine) EvaluateRaw(hook ebt.Hook, raw []byte, in, out, logicalIn, logicalOut string, mark uint64, counters *ShardedCounters, shardHint int) (ebt.Verdict, error) {
	frame, err := ebt.ParseFrame(raw, in, out, logicalIn, logicalOut, mark)
	if err != nil {
		return ebt.Verdict{}, err
	}
	return e.Evaluate(hook, frame, counters, shardHint), nil
}
