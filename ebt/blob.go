package ebt

// Blob is the flat, relocatable byte image produced by Serialize and
// consumed by Parse: every chain of a table laid out back-to-back,
// chain headers followed by their entries, jump verdicts resolved to
// byte offsets (§4.2).
type Blob struct {
	bytes []byte
}

// NewBlob wraps a raw byte image received from a transport (kernel
// socket or atomic file) as a Blob ready for Parse. The bytes are
// copied so the caller's buffer can be reused.
func NewBlob(data []byte) *Blob {
	return &Blob{bytes: append([]byte(nil), data...)}
}

// Bytes returns the blob's raw byte image.
func (b *Blob) Bytes() []byte { return append([]byte(nil), b.bytes...) }

// Len reports the blob's byte length.
func (b *Blob) Len() int { return len(b.bytes) }

func chainOrder(t *Table) ([]*Chain, error) {
	var order []*Chain
	for _, h := range t.ValidHooks.Hooks() {
		c, _ := t.StandardChain(h)
		if c == nil {
			return nil, errCorrupt("table %q: missing standard chain for hook %s", t.Name, h)
		}
		order = append(order, c)
	}
	order = append(order, t.UserChains()...)
	return order, nil
}

// encodedEntry caches the pre-rendered byte form of one entry's
// matches, watchers and target so the pre-pass and the write pass
// don't serialize extension payloads twice.
type encodedEntry struct {
	entry    *Entry
	matches  [][]byte
	watchers [][]byte
	target   []byte
	size     int
}

func encodeRecord(name string, p Payload) ([]byte, error) {
	raw, err := p.WriteTo()
	if err != nil {
		return nil, err
	}
	rec := make([]byte, recordHeaderSize+alignUp(len(raw)))
	putUint32(rec, 0, uint32(len(raw)))
	copy(rec[4:4+ExtensionNameLen], padName(name, ExtensionNameLen))
	copy(rec[recordHeaderSize:], raw)
	return rec, nil
}

func encodeEntry(e *Entry) (*encodedEntry, error) {
	ee := &encodedEntry{entry: e}

	for _, m := range e.Matches {
		rec, err := encodeRecord(m.Name, m.Payload)
		if err != nil {
			return nil, err
		}
		ee.matches = append(ee.matches, rec)
	}
	for _, w := range e.Watchers {
		rec, err := encodeRecord(w.Name, w.Payload)
		if err != nil {
			return nil, err
		}
		ee.watchers = append(ee.watchers, rec)
	}

	target, err := encodeRecord(e.Target.Name, e.Target.Payload)
	if err != nil {
		return nil, err
	}
	ee.target = target

	size := entryHeaderSize
	for _, r := range ee.matches {
		size += len(r)
	}
	for _, r := range ee.watchers {
		size += len(r)
	}
	size += len(target)
	ee.size = size
	return ee, nil
}

// Serialize translates the in-memory chain graph of t into a Blob.
// Callers must have run Validate first: Serialize assumes every jump
// verdict names a chain that actually exists in t and performs no
// loop detection of its own (§4.2.1, §4.6).
func Serialize(t *Table) (*Blob, error) {
	order, err := chainOrder(t)
	if err != nil {
		return nil, err
	}

	encodedByChain := make(map[*Chain][]*encodedEntry, len(order))
	chainSize := make(map[*Chain]int, len(order))
	for _, c := range order {
		size := 0
		encoded := make([]*encodedEntry, 0, len(c.Entries))
		for _, e := range c.Entries {
			ee, err := encodeEntry(e)
			if err != nil {
				return nil, err
			}
			encoded = append(encoded, ee)
			size += ee.size
		}
		encodedByChain[c] = encoded
		chainSize[c] = size
	}

	chainOffset := make(map[*Chain]int, len(order))
	offset := 0
	for _, c := range order {
		chainOffset[c] = offset
		offset += chainHeaderSize + chainSize[c]
	}
	total := offset

	buf := make([]byte, total)
	pos := 0
	for _, c := range order {
		writeChainHeader(buf[pos:pos+chainHeaderSize], c)
		pos += chainHeaderSize

		for _, ee := range encodedByChain[c] {
			n, err := writeEntry(buf[pos:pos+ee.size], ee, t, chainOffset)
			if err != nil {
				return nil, err
			}
			pos += n
		}
	}

	return &Blob{bytes: buf}, nil
}

func writeChainHeader(b []byte, c *Chain) {
	b[0] = 0
	putUint32(b, 4, uint32(len(c.Entries)))
	b[8] = byte(c.Policy)
	putUint32(b, 12, uint32(counterOffsetOf(c)))
	copy(b[16:16+ChainNameLen], padName(c.Name, ChainNameLen))
}

func counterOffsetOf(c *Chain) int {
	if len(c.Entries) == 0 {
		return 0
	}
	return c.Entries[0].CounterOffset
}

func writeEntry(b []byte, ee *encodedEntry, t *Table, chainOffset map[*Chain]int) (int, error) {
	e := ee.entry

	bitmask := e.Bitmask | entryOrEntriesFlag
	putUint16(b, 0, uint16(bitmask))
	putUint16(b, 2, uint16(e.Invflags))
	putUint16(b, 4, e.Ethproto)
	putUint16(b, 6, 0)
	copy(b[8:24], encodeIfName(e.In))
	copy(b[24:40], encodeIfName(e.Out))
	copy(b[40:56], encodeIfName(e.LogicalIn))
	copy(b[56:72], encodeIfName(e.LogicalOut))
	copy(b[72:78], encodeMAC(e.SourceMAC))
	copy(b[78:84], encodeMAC(e.SourceMask))
	copy(b[84:90], encodeMAC(e.DestMAC))
	copy(b[90:96], encodeMAC(e.DestMask))

	pos := entryHeaderSize
	for _, rec := range ee.matches {
		copy(b[pos:], rec)
		pos += len(rec)
	}
	watchersOffset := pos
	for _, rec := range ee.watchers {
		copy(b[pos:], rec)
		pos += len(rec)
	}
	targetOffset := pos

	target := ee.target
	if st, ok := e.Target.Payload.(*StandardTarget); ok && st.Verdict.IsJump() {
		target = append([]byte(nil), target...)
		idx := st.Verdict.Chain
		if idx < 0 || idx >= len(t.Chains) {
			return 0, errCorrupt("jump verdict references chain index %d out of range", idx)
		}
		off, ok := chainOffset[t.Chains[idx]]
		if !ok {
			return 0, errCorrupt("jump target chain not found while serializing entry")
		}
		putUint32(target, recordHeaderSize, uint32(off))
	}
	copy(b[pos:], target)
	pos += len(target)

	putUint32(b, 96, uint32(watchersOffset))
	putUint32(b, 100, uint32(targetOffset))
	putUint32(b, 104, uint32(pos))

	return pos, nil
}
