package ebt

// chainHeaderInfo is what pass 1 records about a chain header it
// walked: its byte offset in the blob (the jump-target address every
// standard-target verdict is resolved against) and the decoded header
// fields, before any entry has been materialized.
type chainHeaderInfo struct {
	offset   int
	nentries int
	policy   byte
	name     string
	entryAt  []int // byte offset of each of this chain's entries
}

// Parse reconstructs a Table's chain graph from a Blob produced by
// Serialize (§4.2.2). name and validHooks identify the table being
// rebuilt; they are known ahead of time from the transport's metadata
// header rather than recovered from the blob itself.
func Parse(data []byte, name string, validHooks ValidHooks, reg *Registry) (*Table, error) {
	headers, err := parseChainHeaders(data)
	if err != nil {
		return nil, err
	}

	offsetIndex := make(map[int]int, len(headers))
	for i, h := range headers {
		offsetIndex[h.offset] = i
	}

	t := &Table{Name: name, ValidHooks: validHooks}
	seenHooks := make(map[Hook]bool)

	for _, h := range headers {
		c := &Chain{Name: h.name, Policy: Policy(h.policy)}
		if hook, ok := hookByName(h.name, validHooks); ok {
			c.Kind = ChainStandard
			c.Hook = hook
			c.HookMask = hook.Bit() | StandardChainBit
			seenHooks[hook] = true
		} else {
			c.Kind = ChainUser
		}

		for _, entryOff := range h.entryAt {
			e, err := parseEntry(data, entryOff, offsetIndex)
			if err != nil {
				return nil, err
			}
			c.Entries = append(c.Entries, e)
		}
		t.Chains = append(t.Chains, c)
	}

	for _, hook := range validHooks.Hooks() {
		if !seenHooks[hook] {
			return nil, errCorrupt("table %q: blob missing standard chain for hook %s", name, hook)
		}
	}

	t.RenumberCounters()

	for _, c := range t.Chains {
		for _, e := range c.Entries {
			if err := finalCheckEntry(e, name, c.HookMask, 0, reg); err != nil {
				return nil, err
			}
		}
	}

	return t, nil
}

func hookByName(name string, validHooks ValidHooks) (Hook, bool) {
	for _, h := range validHooks.Hooks() {
		if standardChainName(h) == name {
			return h, true
		}
	}
	return 0, false
}

// parseChainHeaders runs pass 1 (§4.2.2): walk the blob once,
// allocating a chainHeaderInfo per chain record and recording the byte
// offset of each of its entries, following each entry's self-relative
// nextOffset to reach the next record without decoding matches,
// watchers or targets yet.
func parseChainHeaders(data []byte) ([]chainHeaderInfo, error) {
	var headers []chainHeaderInfo
	pos := 0

	for pos < len(data) {
		if pos+chainHeaderSize > len(data) {
			return nil, errCorrupt("blob: truncated chain header at offset %d", pos)
		}
		if data[pos] != 0 {
			return nil, errCorrupt("blob: expected chain header distinguisher at offset %d", pos)
		}

		h := chainHeaderInfo{
			offset:   pos,
			nentries: int(getUint32(data, pos+4)),
			policy:   data[pos+8],
			name:     readName(data[pos+16 : pos+16+ChainNameLen]),
		}

		cur := pos + chainHeaderSize
		for i := 0; i < h.nentries; i++ {
			if cur+entryHeaderSize > len(data) {
				return nil, errCorrupt("blob: truncated entry header at offset %d", cur)
			}
			watchersOff := int(getUint32(data, cur+96))
			targetOff := int(getUint32(data, cur+100))
			nextOff := int(getUint32(data, cur+104))

			if !(entryHeaderSize <= watchersOff && watchersOff <= targetOff && targetOff <= nextOff) {
				return nil, errCorrupt("blob: entry at offset %d has inconsistent internal offsets", cur)
			}
			if cur+nextOff > len(data) {
				return nil, errCorrupt("blob: entry at offset %d extends past end of blob", cur)
			}

			h.entryAt = append(h.entryAt, cur)
			cur += nextOff
		}

		if cur > len(data) {
			return nil, errCorrupt("blob: chain %q overruns blob bounds", h.name)
		}
		headers = append(headers, h)
		pos = cur
	}

	return headers, nil
}

// parseEntry runs pass 2's per-entry work: decode the fixed header,
// every match, every watcher and the target, then (for a standard
// target with a jump verdict) resolve the wire byte offset to a graph
// chain index via offsetIndex.
func parseEntry(data []byte, start int, offsetIndex map[int]int) (*Entry, error) {
	e := &Entry{}

	bitmask := Bitmask(getUint16(data, start))
	e.Bitmask = bitmask &^ entryOrEntriesFlag
	e.Invflags = Invflags(getUint16(data, start+2))
	e.Ethproto = getUint16(data, start+4)
	e.In = decodeIfName(data[start+8 : start+24])
	e.Out = decodeIfName(data[start+24 : start+40])
	e.LogicalIn = decodeIfName(data[start+40 : start+56])
	e.LogicalOut = decodeIfName(data[start+56 : start+72])
	e.SourceMAC = decodeMAC(data[start+72 : start+78])
	e.SourceMask = decodeMAC(data[start+78 : start+84])
	e.DestMAC = decodeMAC(data[start+84 : start+90])
	e.DestMask = decodeMAC(data[start+90 : start+96])

	watchersOff := int(getUint32(data, start+96))
	targetOff := int(getUint32(data, start+100))
	nextOff := int(getUint32(data, start+104))

	pos := start + entryHeaderSize
	for pos < start+watchersOff {
		name, payload, n, err := decodeRecordFor(data, pos, nil)
		if err != nil {
			return nil, err
		}
		e.Matches = append(e.Matches, MatchRef{Name: name, Payload: payload})
		pos += n
	}
	if pos != start+watchersOff {
		return nil, errCorrupt("blob: entry at offset %d matches overrun watchers_offset", start)
	}

	for pos < start+targetOff {
		name, payload, n, err := decodeRecordFor(data, pos, nil)
		if err != nil {
			return nil, err
		}
		e.Watchers = append(e.Watchers, MatchRef{Name: name, Payload: payload})
		pos += n
	}
	if pos != start+targetOff {
		return nil, errCorrupt("blob: entry at offset %d watchers overrun target_offset", start)
	}

	tname, tpayload, n, err := decodeRecordFor(data, pos, offsetIndex)
	if err != nil {
		return nil, err
	}
	pos += n
	if pos != start+nextOff {
		return nil, errCorrupt("blob: entry at offset %d target overruns next_offset", start)
	}
	e.Target = TargetRef{Name: tname, Payload: tpayload}

	return e, nil
}

// decodeRecordFor decodes one [size][name][payload] record at pos. For
// a standard target whose verdict is a jump, offsetIndex (non-nil only
// when decoding a target) resolves the wire byte offset to the graph
// chain index pass 1 assigned it.
func decodeRecordFor(data []byte, pos int, offsetIndex map[int]int) (string, Payload, int, error) {
	if pos+recordHeaderSize > len(data) {
		return "", nil, 0, errCorrupt("blob: truncated record header at offset %d", pos)
	}
	size := int(getUint32(data, pos))
	name := readName(data[pos+4 : pos+4+ExtensionNameLen])
	payloadStart := pos + recordHeaderSize
	if payloadStart+size > len(data) {
		return "", nil, 0, errCorrupt("blob: record %q payload overruns blob at offset %d", name, pos)
	}
	raw := data[payloadStart : payloadStart+size]

	if name == StandardTargetName {
		st := &StandardTarget{}
		if err := st.ReadFrom(raw); err != nil {
			return "", nil, 0, err
		}
		if st.Verdict.IsJump() && offsetIndex != nil {
			idx, ok := offsetIndex[st.Verdict.Chain]
			if !ok {
				return "", nil, 0, errCorrupt("blob: jump target offset %d does not name a chain header", st.Verdict.Chain)
			}
			st.Verdict.Chain = idx
		}
		return name, st, recordHeaderSize + alignUp(size), nil
	}

	return name, &unresolvedPayload{raw: append([]byte(nil), raw...)}, recordHeaderSize + alignUp(size), nil
}

// unresolvedPayload is a placeholder used for any match/watcher/target
// name the caller's registry doesn't resolve to a known extension
// during the raw decodeRecordFor pass; finalCheckEntry below replaces
// it with the registry's real payload type, or fails with Resolve if
// no registry entry exists.
type unresolvedPayload struct {
	raw []byte
}

func (p *unresolvedPayload) ReadFrom(b []byte) error {
	p.raw = append([]byte(nil), b...)
	return nil
}

func (p *unresolvedPayload) WriteTo() ([]byte, error)               { return p.raw, nil }
func (p *unresolvedPayload) FinalCheck(string, HookMask, int) error { return nil }
func (p *unresolvedPayload) Print() string                          { return "" }

func (p *unresolvedPayload) Compare(other Payload) bool {
	o, ok := other.(*unresolvedPayload)
	return ok && string(o.raw) == string(p.raw)
}

// finalCheckEntry resolves every match/watcher/target name against
// reg, replacing unresolvedPayload placeholders with the extension's
// own decoded Payload, then invokes FinalCheck on every one (§4.1,
// §4.2.2, §4.6).
func finalCheckEntry(e *Entry, table string, hookMask HookMask, pass int, reg *Registry) error {
	for i := range e.Matches {
		if err := resolveRef(&e.Matches[i], reg.Match); err != nil {
			return err
		}
		if err := e.Matches[i].Payload.FinalCheck(table, hookMask, pass); err != nil {
			return err
		}
	}
	for i := range e.Watchers {
		if err := resolveRef(&e.Watchers[i], reg.Watcher); err != nil {
			return err
		}
		if err := e.Watchers[i].Payload.FinalCheck(table, hookMask, pass); err != nil {
			return err
		}
	}
	if err := resolveRef(&e.Target, reg.Target); err != nil {
		return err
	}
	return e.Target.Payload.FinalCheck(table, hookMask, pass)
}

func resolveRef(ref *MatchRef, lookup func(string) (Extension, bool)) error {
	up, ok := ref.Payload.(*unresolvedPayload)
	if !ok {
		return nil
	}
	ext, ok := lookup(ref.Name)
	if !ok {
		return errResolve("unsupported by userspace tool: extension %q unknown", ref.Name)
	}
	p := ext.New()
	if err := p.ReadFrom(up.raw); err != nil {
		return err
	}
	ref.Payload = p
	return nil
}
