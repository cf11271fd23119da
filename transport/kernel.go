package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netrack/ebtables/classifier"
	"github.com/netrack/ebtables/ebt"
)

// opCode identifies which of the four §4.7 operations a frame carries,
// the socket-transport analogue of the teacher's header.Type.
type opCode uint8

const (
	opFetchCurrent opCode = iota
	opFetchInitial
	opPutBlob
	opPutCounters
	opReply
	opError
)

// frameHeader is the fixed preamble of every message on the kernel
// socket: an opcode, a correlation id (§B domain stack), the target
// table name, and the length of the frame's payload. Modeled on the
// teacher's OpenFlow header (header.go): a small fixed header in front
// of an opaque body, read and written as two separate I/O calls.
type frameHeader struct {
	Op      opCode
	Table   [ebt.TableNameLen]byte
	ID      [16]byte
	Length  uint32
}

func (h *frameHeader) writeTo(w io.Writer) error {
	var buf [1 + ebt.TableNameLen + 16 + 4]byte
	buf[0] = byte(h.Op)
	copy(buf[1:1+ebt.TableNameLen], h.Table[:])
	copy(buf[1+ebt.TableNameLen:1+ebt.TableNameLen+16], h.ID[:])
	binary.BigEndian.PutUint32(buf[1+ebt.TableNameLen+16:], h.Length)
	_, err := w.Write(buf[:])
	return err
}

func (h *frameHeader) readFrom(r io.Reader) error {
	var buf [1 + ebt.TableNameLen + 16 + 4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	h.Op = opCode(buf[0])
	copy(h.Table[:], buf[1:1+ebt.TableNameLen])
	copy(h.ID[:], buf[1+ebt.TableNameLen:1+ebt.TableNameLen+16])
	h.Length = binary.BigEndian.Uint32(buf[1+ebt.TableNameLen+16:])
	return nil
}

var noDeadline time.Time

func tableBytes(name string) [ebt.TableNameLen]byte {
	var b [ebt.TableNameLen]byte
	copy(b[:], name)
	return b
}

// KernelTransport implements Transport over a framed byte-stream
// connection to a classifier process, the socket-facing counterpart of
// the atomic-file transport. Requests are serialized: one in flight at
// a time per connection, mirroring the admin side's single-threaded
// cooperative model (§5).
type KernelTransport struct {
	mu   sync.Mutex
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
	log  *zap.Logger
}

// NewKernelTransport wraps an already-established connection to the
// classifier's control socket.
func NewKernelTransport(conn net.Conn, log *zap.Logger) *KernelTransport {
	return &KernelTransport{
		conn: conn,
		br:   bufio.NewReader(conn),
		bw:   bufio.NewWriter(conn),
		log:  log,
	}
}

func (k *KernelTransport) roundTrip(ctx context.Context, op opCode, table string, payload []byte) ([]byte, error) {
	id := newCorrelationID()
	logOp(k.log, op.String(), table, id)

	k.mu.Lock()
	defer k.mu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		k.conn.SetDeadline(dl)
		defer k.conn.SetDeadline(noDeadline)
	}

	hdr := frameHeader{Op: op, Table: tableBytes(table), Length: uint32(len(payload))}
	hdr.ID = id

	if err := hdr.writeTo(k.bw); err != nil {
		return nil, ebt.WrapError(ebt.KindTransport, err, "kernel transport: write header")
	}
	if len(payload) > 0 {
		if _, err := k.bw.Write(payload); err != nil {
			return nil, ebt.WrapError(ebt.KindTransport, err, "kernel transport: write payload")
		}
	}
	if err := k.bw.Flush(); err != nil {
		return nil, ebt.WrapError(ebt.KindTransport, err, "kernel transport: flush")
	}

	var reply frameHeader
	if err := reply.readFrom(k.br); err != nil {
		return nil, ebt.WrapError(ebt.KindTransport, err, "kernel transport: read reply header")
	}
	body := make([]byte, reply.Length)
	if _, err := io.ReadFull(k.br, body); err != nil {
		return nil, ebt.WrapError(ebt.KindTransport, err, "kernel transport: read reply body")
	}
	if reply.Op == opError {
		return nil, ebt.NewError(ebt.KindTransport, "kernel transport: classifier reported: %s", string(body))
	}
	return body, nil
}

func (k *KernelTransport) FetchCurrent(ctx context.Context, table string) (*ebt.Blob, []classifier.Counter, error) {
	body, err := k.roundTrip(ctx, opFetchCurrent, table, nil)
	if err != nil {
		return nil, nil, err
	}
	return decodeBlobAndCounters(body)
}

func (k *KernelTransport) FetchInitial(ctx context.Context, table string) (*ebt.Blob, error) {
	body, err := k.roundTrip(ctx, opFetchInitial, table, nil)
	if err != nil {
		return nil, err
	}
	return ebt.NewBlob(body), nil
}

func (k *KernelTransport) PutBlob(ctx context.Context, table string, blob *ebt.Blob) error {
	_, err := k.roundTrip(ctx, opPutBlob, table, blob.Bytes())
	return err
}

func (k *KernelTransport) PutCounters(ctx context.Context, table string, counters []classifier.Counter) error {
	_, err := k.roundTrip(ctx, opPutCounters, table, encodeCounters(counters))
	return err
}

func encodeCounters(counters []classifier.Counter) []byte {
	b := make([]byte, len(counters)*16)
	for i, c := range counters {
		binary.BigEndian.PutUint64(b[i*16:i*16+8], c.Packets)
		binary.BigEndian.PutUint64(b[i*16+8:i*16+16], c.Bytes)
	}
	return b
}

func decodeCounters(b []byte) []classifier.Counter {
	n := len(b) / 16
	out := make([]classifier.Counter, n)
	for i := 0; i < n; i++ {
		out[i].Packets = binary.BigEndian.Uint64(b[i*16 : i*16+8])
		out[i].Bytes = binary.BigEndian.Uint64(b[i*16+8 : i*16+16])
	}
	return out
}

// decodeBlobAndCounters splits a FetchCurrent reply: a 4-byte blob
// length prefix, the blob bytes, then the trailing counter array.
func decodeBlobAndCounters(body []byte) (*ebt.Blob, []classifier.Counter, error) {
	if len(body) < 4 {
		return nil, nil, ebt.NewError(ebt.KindCorrupt, "kernel transport: short fetch-current reply")
	}
	blobLen := binary.BigEndian.Uint32(body[:4])
	if uint32(len(body)-4) < blobLen {
		return nil, nil, ebt.NewError(ebt.KindCorrupt, "kernel transport: truncated blob in reply")
	}
	blob := ebt.NewBlob(body[4 : 4+blobLen])
	counters := decodeCounters(body[4+blobLen:])
	return blob, counters, nil
}

func (o opCode) String() string {
	switch o {
	case opFetchCurrent:
		return "fetch-current"
	case opFetchInitial:
		return "fetch-initial"
	case opPutBlob:
		return "put-blob"
	case opPutCounters:
		return "put-counters"
	case opReply:
		return "reply"
	case opError:
		return "error"
	default:
		return fmt.Sprintf("op(%d)", o)
	}
}
