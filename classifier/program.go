// Package classifier implements the per-packet interpreter that walks
// an installed rule-set and produces a verdict (§4.3), plus the
// read-copy-update blob swap and sharded counter bookkeeping the
// admin side and the packet path share (§5).
package classifier

import (
	"github.com/netrack/ebtables/ebt"
)

// Program is the decoded, ready-to-evaluate form of an installed
// blob: the rule graph plus the extension registry needed to resolve
// match/watcher/target payloads during a walk. Swapping the Engine's
// current Program is the classifier's single writer operation (§5).
type Program struct {
	Table    *ebt.Table
	Registry *ebt.Registry
}

// NewProgram decodes blob into a Program ready for the Engine to
// install, resolving payload extensions through reg.
func NewProgram(blob *ebt.Blob, tableName string, validHooks ebt.ValidHooks, reg *ebt.Registry) (*Program, error) {
	t, err := ebt.Parse(blob.Bytes(), tableName, validHooks, reg)
	if err != nil {
		return nil, err
	}
	return &Program{Table: t, Registry: reg}, nil
}
