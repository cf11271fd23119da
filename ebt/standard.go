package ebt

import (
	"encoding/binary"
	"fmt"
)

// StandardTargetName is the registered name of the built-in target
// every Entry falls back to: a plain verdict, no extension state (§3).
const StandardTargetName = "standard"

// StandardTarget is the Payload of the standard target: a Verdict and
// nothing else. It is the only target the core registers by itself;
// every other target is a plug-in (§4.1).
type StandardTarget struct {
	Verdict Verdict
}

// ReadFrom decodes the four-byte wire verdict. The raw integer is left
// as a jump address in Verdict.Chain; resolving it from a blob byte
// offset to a graph chain index is the parser's job (decodeRecordFor
// in parse.go), not this type's.
func (t *StandardTarget) ReadFrom(b []byte) error {
	if len(b) < 4 {
		return errCorrupt("standard target: short payload (%d bytes)", len(b))
	}
	raw := int32(binary.BigEndian.Uint32(b))
	t.Verdict = verdictFromWire(raw)
	return nil
}

// WriteTo encodes the verdict as it stands; for a jump that is the
// graph chain index. The serializer (writeEntry in blob.go) then
// overwrites the encoded jump with the byte offset of the target
// chain's header.
func (t *StandardTarget) WriteTo() ([]byte, error) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(t.Verdict.toWire()))
	return b, nil
}

// FinalCheck accepts every verdict. Checking that a jump target is an
// existing user-defined chain is the validator's job (detectLoops in
// validate.go), which runs before the final-check dispatch.
func (t *StandardTarget) FinalCheck(table string, hookMask HookMask, pass int) error {
	return nil
}

func (t *StandardTarget) Print() string {
	return fmt.Sprintf("-j %s", t.Verdict)
}

func (t *StandardTarget) Compare(other Payload) bool {
	o, ok := other.(*StandardTarget)
	return ok && o.Verdict == t.Verdict
}

// standardTargetExtension is the Extension descriptor registered for
// "standard" by NewRegistry.
type standardTargetExtension struct{}

func (standardTargetExtension) Name() string { return StandardTargetName }

func (standardTargetExtension) Help() string {
	return "standard: -j ACCEPT|DROP|CONTINUE|RETURN|<chain>"
}

func (standardTargetExtension) New() Payload { return &StandardTarget{} }
