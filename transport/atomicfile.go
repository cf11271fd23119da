package transport

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/netrack/ebtables/classifier"
	"github.com/netrack/ebtables/ebt"
)

// atomicFileHeader is the fixed metadata header of §4.7's atomic file
// format: a mirror of the transport's framing fields, written in
// native byte order ahead of the blob and the counter array (whose
// own fields, notably each entry's ethproto, stay network-order as
// fixed by the wire codec in ebt/wire.go).
type atomicFileHeader struct {
	TableName   [ebt.TableNameLen]byte
	ValidHooks  uint8
	_           [3]byte
	NumEntries  uint32
	EntriesSize uint32
	NumCounters uint32
}

const atomicFileHeaderSize = ebt.TableNameLen + 1 + 3 + 4 + 4 + 4

// nativeOrder is used for the atomic file's fixed metadata fields,
// mirroring the host-order assumption the original kernel ABI makes
// for this struct (§4.7); ethproto inside the blob itself is always
// network order regardless of host.
var nativeOrder = binary.NativeEndian

func (h *atomicFileHeader) encode() []byte {
	b := make([]byte, atomicFileHeaderSize)
	copy(b[0:ebt.TableNameLen], h.TableName[:])
	off := ebt.TableNameLen
	b[off] = h.ValidHooks
	off += 4 // ValidHooks + 3 bytes padding
	nativeOrder.PutUint32(b[off:], h.NumEntries)
	off += 4
	nativeOrder.PutUint32(b[off:], h.EntriesSize)
	off += 4
	nativeOrder.PutUint32(b[off:], h.NumCounters)
	return b
}

func decodeAtomicFileHeader(b []byte) (*atomicFileHeader, error) {
	if len(b) < atomicFileHeaderSize {
		return nil, ebt.NewError(ebt.KindCorrupt, "atomic file: short header (%d bytes)", len(b))
	}
	h := &atomicFileHeader{}
	copy(h.TableName[:], b[0:ebt.TableNameLen])
	off := ebt.TableNameLen
	h.ValidHooks = b[off]
	off += 4
	h.NumEntries = nativeOrder.Uint32(b[off:])
	off += 4
	h.EntriesSize = nativeOrder.Uint32(b[off:])
	off += 4
	h.NumCounters = nativeOrder.Uint32(b[off:])
	return h, nil
}

// AtomicFileTransport implements Transport by reading/writing a single
// file: fixed header, blob, counter array, all guarded by an
// inter-process flock so two ebtables invocations against the same
// file never interleave writes (§4.7, §5). The intra-file hazard
// documented in §5 (a reader observing the file between the blob write
// and the counter write) is a property of the one-file format itself
// and is not something the lock can close — flock only keeps two
// *writers*, or a writer and a would-be concurrent writer, from
// clobbering each other.
type AtomicFileTransport struct {
	path string
	log  *zap.Logger
}

// NewAtomicFileTransport returns a transport backed by the file at
// path, created on first write with mode 0600 (§4.7).
func NewAtomicFileTransport(path string, log *zap.Logger) *AtomicFileTransport {
	return &AtomicFileTransport{path: path, log: log}
}

func (a *AtomicFileTransport) lock() (*flock.Flock, error) {
	fl := flock.New(a.path + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, ebt.WrapError(ebt.KindIO, err, "atomic file: acquire lock")
	}
	return fl, nil
}

func (a *AtomicFileTransport) FetchCurrent(ctx context.Context, table string) (*ebt.Blob, []classifier.Counter, error) {
	id := newCorrelationID()
	logOp(a.log, "fetch-current", table, id)

	fl, err := a.lock()
	if err != nil {
		return nil, nil, err
	}
	defer fl.Unlock()

	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, nil, ebt.WrapError(ebt.KindIO, err, "atomic file: read %s", a.path)
	}
	return decodeAtomicFile(data)
}

// FetchInitial has no file-backed notion of "boot-time contents"
// distinct from whatever is currently on disk; it returns the same
// blob FetchCurrent would, minus counters, mirroring how a freshly
// written atomic file has no prior installed state to diverge from.
func (a *AtomicFileTransport) FetchInitial(ctx context.Context, table string) (*ebt.Blob, error) {
	blob, _, err := a.FetchCurrent(ctx, table)
	return blob, err
}

func (a *AtomicFileTransport) PutBlob(ctx context.Context, table string, blob *ebt.Blob) error {
	id := newCorrelationID()
	logOp(a.log, "put-blob", table, id)

	fl, err := a.lock()
	if err != nil {
		return err
	}
	defer fl.Unlock()

	existingCounters := a.readCountersLocked()
	return a.writeLocked(table, blob, existingCounters)
}

func (a *AtomicFileTransport) PutCounters(ctx context.Context, table string, counters []classifier.Counter) error {
	id := newCorrelationID()
	logOp(a.log, "put-counters", table, id)

	fl, err := a.lock()
	if err != nil {
		return err
	}
	defer fl.Unlock()

	data, err := os.ReadFile(a.path)
	if err != nil {
		return ebt.WrapError(ebt.KindIO, err, "atomic file: read %s", a.path)
	}
	blob, _, err := decodeAtomicFile(data)
	if err != nil {
		return err
	}
	return a.writeLocked(table, blob, counters)
}

// readCountersLocked best-efforts a read of the existing file's
// counters when overwriting with a new blob of possibly different
// size; a missing or corrupt file just means "no prior counters".
func (a *AtomicFileTransport) readCountersLocked() []classifier.Counter {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil
	}
	_, counters, err := decodeAtomicFile(data)
	if err != nil {
		return nil
	}
	return counters
}

// writeLocked performs the atomic rewrite: build the full file image
// in memory, write it to a temp file in the same directory, chmod
// 0600, then rename over the target (§4.7's "truncate, chmod, write",
// made atomic against other readers via rename instead of in-place
// truncate).
func (a *AtomicFileTransport) writeLocked(table string, blob *ebt.Blob, counters []classifier.Counter) error {
	hdr := &atomicFileHeader{
		TableName:   tableBytes(table),
		NumEntries:  uint32(len(counters)),
		EntriesSize: uint32(blob.Len()),
		NumCounters: uint32(len(counters)),
	}

	buf := append([]byte{}, hdr.encode()...)
	buf = append(buf, blob.Bytes()...)
	buf = append(buf, encodeCounters(counters)...)

	dir := filepath.Dir(a.path)
	tmp, err := os.CreateTemp(dir, ".ebtables-atomic-*")
	if err != nil {
		return ebt.WrapError(ebt.KindIO, err, "atomic file: create temp in %s", dir)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return ebt.WrapError(ebt.KindIO, err, "atomic file: write temp")
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return ebt.WrapError(ebt.KindIO, err, "atomic file: chmod temp")
	}
	if err := tmp.Close(); err != nil {
		return ebt.WrapError(ebt.KindIO, err, "atomic file: close temp")
	}
	if err := os.Rename(tmpPath, a.path); err != nil {
		return ebt.WrapError(ebt.KindIO, err, "atomic file: rename into place")
	}
	return nil
}

func decodeAtomicFile(data []byte) (*ebt.Blob, []classifier.Counter, error) {
	hdr, err := decodeAtomicFileHeader(data)
	if err != nil {
		return nil, nil, err
	}
	off := atomicFileHeaderSize
	if len(data) < off+int(hdr.EntriesSize) {
		return nil, nil, ebt.NewError(ebt.KindCorrupt, "atomic file: truncated blob section")
	}
	blob := ebt.NewBlob(data[off : off+int(hdr.EntriesSize)])
	off += int(hdr.EntriesSize)

	counterBytes := int(hdr.NumCounters) * 16
	if len(data) < off+counterBytes {
		return nil, nil, ebt.NewError(ebt.KindCorrupt, "atomic file: truncated counter section")
	}
	counters := decodeCounters(data[off : off+counterBytes])
	return blob, counters, nil
}
