package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/netrack/ebtables/classifier"
	"github.com/netrack/ebtables/config"
	"github.com/netrack/ebtables/ebt"
	"github.com/netrack/ebtables/ebt/ext"
	"github.com/netrack/ebtables/transport"
)

func logWarn(log *zap.Logger, msg string, fields ...zap.Field) {
	if log == nil {
		return
	}
	log.Warn(msg, fields...)
}

// app bundles the global flags every subcommand needs (§6: -t and
// --atomic-file must be consulted before any command that touches a
// table), plus the shared logger.
type app struct {
	table      string
	atomicFile string
	module     string
	logger     *zap.Logger
}

// transport resolves the atomic file path (flag, then
// EBTABLES_ATOMIC_FILE, then the built-in default — §6) and returns a
// transport bound to it. Every command that touches a table, including
// the atomic-* commands, goes through this single constructor so the
// path resolution rule is applied exactly once.
func (a *app) transport() (*transport.AtomicFileTransport, error) {
	path := a.atomicFile
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, ebt.WrapError(ebt.KindIO, err, "load config")
		}
		path = cfg.AtomicFile
	}
	return transport.NewAtomicFileTransport(path, a.logger), nil
}

func (a *app) registry() *ebt.Registry {
	reg := ebt.NewRegistry()
	ext.Register(reg)
	return reg
}

func toEBTCounters(cs []classifier.Counter) []ebt.Counter {
	out := make([]ebt.Counter, len(cs))
	for i, c := range cs {
		out[i] = ebt.Counter{Packets: c.Packets, Bytes: c.Bytes}
	}
	return out
}

func toClassifierCounters(cs []ebt.Counter) []classifier.Counter {
	out := make([]classifier.Counter, len(cs))
	for i, c := range cs {
		out[i] = classifier.Counter{Packets: c.Packets, Bytes: c.Bytes}
	}
	return out
}

// session loads the named table from the configured atomic file,
// falling back to a fresh default table (no entries, policy ACCEPT on
// every standard chain) when the file doesn't exist yet.
func (a *app) session() (*ebt.Session, *transport.AtomicFileTransport, []ebt.Counter, error) {
	tr, err := a.transport()
	if err != nil {
		return nil, nil, nil, err
	}
	reg := a.registry()
	validHooks := defaultValidHooks(a.table)

	blob, rawCounters, err := tr.FetchCurrent(context.Background(), a.table)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil, err
		}
		tbl := ebt.NewTable(a.table, validHooks)
		return ebt.NewSession(tbl, reg, a.logger), tr, nil, nil
	}

	tbl, err := ebt.Parse(blob.Bytes(), a.table, validHooks, reg)
	if err != nil {
		return nil, nil, nil, err
	}
	return ebt.NewSession(tbl, reg, a.logger), tr, toEBTCounters(rawCounters), nil
}

// commit validates, serializes and installs the session's table, then
// reconciles and installs counters, in the order §5 requires: put-blob
// before put-counters.
func (a *app) commit(s *ebt.Session, tr *transport.AtomicFileTransport, oldCounters []ebt.Counter) error {
	if err := s.Validate(); err != nil {
		return err
	}
	blob, err := ebt.Serialize(s.Table)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := tr.PutBlob(ctx, a.table, blob); err != nil {
		return err
	}

	newCounters, err := s.Log.Reconcile(oldCounters)
	if err != nil {
		logWarn(a.logger, "counter reconciliation failed, will retry on next cycle", zap.Error(err))
		return nil
	}
	if err := tr.PutCounters(ctx, a.table, toClassifierCounters(newCounters)); err != nil {
		logWarn(a.logger, "counter install failed", zap.Error(err))
	}
	return nil
}

// writeInitial fetches the classifier's initial (boot-time) blob and
// installs it as the current table, the shared behavior behind
// --init-table and --atomic-init (§6): the two differ only in which
// destination "current" resolves to, which in this transport is always
// the configured atomic file.
func (a *app) writeInitial() error {
	tr, err := a.transport()
	if err != nil {
		return err
	}
	reg := a.registry()
	validHooks := defaultValidHooks(a.table)

	blob, err := tr.FetchInitial(context.Background(), a.table)
	if err != nil {
		return err
	}
	tbl, err := ebt.Parse(blob.Bytes(), a.table, validHooks, reg)
	if err != nil {
		return err
	}
	s := ebt.NewSession(tbl, reg, a.logger)
	return a.commit(s, tr, nil)
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "ebtables",
		Short:         "Administer an Ethernet-bridge packet filter rule-set",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.table, "table", "t", "filter", "table to operate on")
	flags.StringVar(&a.atomicFile, "atomic-file", "", "atomic file path (overrides "+config.AtomicFileEnvVar+")")
	flags.StringVarP(&a.module, "module", "M", "", "module-loader command (accepted, not executed)")

	logger, _ := zap.NewProduction()
	a.logger = logger

	root.AddCommand(
		newAppendCmd(a),
		newInsertCmd(a),
		newDeleteCmd(a),
		newPolicyCmd(a),
		newListCmd(a),
		newFlushCmd(a),
		newZeroCmd(a),
		newNewChainCmd(a),
		newRenameChainCmd(a),
		newDeleteChainCmd(a),
		newInitTableCmd(a),
		newAtomicInitCmd(a),
		newAtomicSaveCmd(a),
		newAtomicCommitCmd(a),
	)
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
