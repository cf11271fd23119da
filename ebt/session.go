package ebt

import "go.uber.org/zap"

// Session bundles a table, its registry and counter-change log with an
// optional logger, and re-exposes the package-level mutators as
// methods that log one Debug line per call (§A of the expanded spec).
// It carries no behavior of its own beyond that logging wrapper: every
// method is a thin pass-through to the corresponding mutator function
// so the two stay usable independently (tests call the bare functions
// directly; cmd/ebtables drives everything through a Session).
type Session struct {
	Table    *Table
	Registry *Registry
	Log      *CounterLog
	Logger   *zap.Logger
}

// NewSession wraps t with a freshly built CounterLog reflecting t's
// current entries as all-NORM (§4.5), the state expected right after a
// fetch.
func NewSession(t *Table, reg *Registry, logger *zap.Logger) *Session {
	return &Session{Table: t, Registry: reg, Log: NewCounterLog(t), Logger: logger}
}

func (s *Session) Append(c *Chain, e *Entry) error {
	err := Append(s.Table, s.Log, c, e)
	logDebug(s.Logger, "append", zap.String("chain", c.Name), zap.Error(err))
	return err
}

func (s *Session) Insert(c *Chain, pos int, e *Entry) error {
	err := Insert(s.Table, s.Log, c, pos, e)
	logDebug(s.Logger, "insert", zap.String("chain", c.Name), zap.Int("pos", pos), zap.Error(err))
	return err
}

func (s *Session) Delete(c *Chain, from, to int) error {
	err := Delete(s.Table, s.Log, c, from, to)
	logDebug(s.Logger, "delete", zap.String("chain", c.Name), zap.Int("from", from), zap.Int("to", to), zap.Error(err))
	return err
}

func (s *Session) DeleteValue(c *Chain, e *Entry) error {
	err := DeleteValue(s.Table, s.Log, c, e)
	logDebug(s.Logger, "delete-value", zap.String("chain", c.Name), zap.Error(err))
	return err
}

func (s *Session) Flush(c *Chain) error {
	err := Flush(s.Table, s.Log, c)
	logDebug(s.Logger, "flush", zap.String("chain", c.Name), zap.Error(err))
	return err
}

func (s *Session) FlushTable() error {
	err := FlushTable(s.Table, s.Log)
	logDebug(s.Logger, "flush-table", zap.String("table", s.Table.Name), zap.Error(err))
	return err
}

func (s *Session) ZeroCounters(c *Chain) {
	ZeroCounters(c, s.Log)
	logDebug(s.Logger, "zero-counters", zap.String("chain", c.Name))
}

func (s *Session) ZeroCountersTable() {
	ZeroCountersTable(s.Table, s.Log)
	logDebug(s.Logger, "zero-counters-table", zap.String("table", s.Table.Name))
}

func (s *Session) ChangePolicy(c *Chain, p Policy) error {
	err := ChangePolicy(c, p)
	logDebug(s.Logger, "change-policy", zap.String("chain", c.Name), zap.Stringer("policy", p), zap.Error(err))
	return err
}

func (s *Session) NewChain(name string) (*Chain, error) {
	c, err := NewChain(s.Table, s.Registry, name)
	logDebug(s.Logger, "new-chain", zap.String("chain", name), zap.Error(err))
	return c, err
}

func (s *Session) DeleteChain(name string) error {
	err := DeleteChain(s.Table, name)
	logDebug(s.Logger, "delete-chain", zap.String("chain", name), zap.Error(err))
	return err
}

func (s *Session) DeleteAllUserChains() error {
	err := DeleteAllUserChains(s.Table)
	logDebug(s.Logger, "delete-all-chains", zap.String("table", s.Table.Name), zap.Error(err))
	return err
}

func (s *Session) RenameChain(oldName, newName string) error {
	err := RenameChain(s.Table, s.Registry, oldName, newName)
	logDebug(s.Logger, "rename-chain", zap.String("from", oldName), zap.String("to", newName), zap.Error(err))
	return err
}

// Validate runs the validator against the session's table and logger.
func (s *Session) Validate() error {
	return Validate(s.Table, s.Registry, s.Logger)
}
