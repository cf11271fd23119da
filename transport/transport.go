// Package transport abstracts the boundary between the admin process
// and the classifier (§4.7): fetching the currently-installed blob or
// the classifier's boot-time initial contents, and installing a new
// blob and its companion counter array. Two implementations are
// provided: a socket-framed kernel transport (kernel.go) and a
// file-backed one (atomicfile.go).
package transport

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netrack/ebtables/classifier"
	"github.com/netrack/ebtables/ebt"
)

// Transport is the four-operation boundary of §4.7. Every call carries
// a UUID correlation id for end-to-end tracing through the logger,
// analogous to the teacher's OpenFlow transaction id (header.go's XID).
type Transport interface {
	// FetchCurrent returns the blob presently installed for table,
	// plus the classifier's current counter snapshot for it.
	FetchCurrent(ctx context.Context, table string) (*ebt.Blob, []classifier.Counter, error)

	// FetchInitial returns the classifier's boot-time contents for
	// table, used by --init-table.
	FetchInitial(ctx context.Context, table string) (*ebt.Blob, error)

	// PutBlob installs a new blob for table. Per §5's ordering rule,
	// callers must call PutBlob before PutCounters; the classifier
	// may observe the intermediate state with zeroed counters.
	PutBlob(ctx context.Context, table string, blob *ebt.Blob) error

	// PutCounters installs a new counter array for table. Always
	// called after a matching PutBlob in the same install cycle.
	PutCounters(ctx context.Context, table string, counters []classifier.Counter) error
}

// logOp emits one Info line per transport call carrying the
// correlation id, matching the ambient logging contract (transport
// logs Info on install/fetch).
func logOp(log *zap.Logger, op, table string, id uuid.UUID) {
	if log == nil {
		return
	}
	log.Info("transport op",
		zap.String("op", op),
		zap.String("table", table),
		zap.String("correlation_id", id.String()))
}

func newCorrelationID() uuid.UUID {
	return uuid.New()
}
