package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/netrack/ebtables/ebt"
)

func newAppendCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append <chain>",
		Short: "-A: append a rule to a chain",
		Args:  cobra.ExactArgs(1),
	}
	verdict := newVerdictFlag(cmd.Flags())
	return withRunE(cmd, a, func(s *ebt.Session, _ *cobra.Command, args []string) error {
		c, _ := s.Table.Chain(args[0])
		if c == nil {
			return ebt.NewError(ebt.KindResolve, "unknown chain %q", args[0])
		}
		v, err := verdict.resolve(s.Table)
		if err != nil {
			return err
		}
		e := ebt.NewEntry()
		e.Target.Payload.(*ebt.StandardTarget).Verdict = v
		return s.Append(c, e)
	})
}

func newInsertCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert <chain> <position>",
		Short: "-I: insert a rule at a position",
		Args:  cobra.ExactArgs(2),
	}
	verdict := newVerdictFlag(cmd.Flags())
	return withRunE(cmd, a, func(s *ebt.Session, _ *cobra.Command, args []string) error {
		c, _ := s.Table.Chain(args[0])
		if c == nil {
			return ebt.NewError(ebt.KindResolve, "unknown chain %q", args[0])
		}
		pos, err := strconv.Atoi(args[1])
		if err != nil {
			return ebt.NewError(ebt.KindConfig, "bad position %q", args[1])
		}
		v, err := verdict.resolve(s.Table)
		if err != nil {
			return err
		}
		e := ebt.NewEntry()
		e.Target.Payload.(*ebt.StandardTarget).Verdict = v
		return s.Insert(c, pos, e)
	})
}

func newDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <chain> [n[:m]]",
		Short: "-D: delete a rule by number/range",
		Args:  cobra.RangeArgs(1, 2),
	}
	return withRunE(cmd, a, func(s *ebt.Session, _ *cobra.Command, args []string) error {
		c, _ := s.Table.Chain(args[0])
		if c == nil {
			return ebt.NewError(ebt.KindResolve, "unknown chain %q", args[0])
		}
		if len(args) == 1 {
			return s.Delete(c, 0, len(c.Entries)-1)
		}
		from, to, err := parseRange(args[1])
		if err != nil {
			return err
		}
		// Rule numbers are 1-based, as printed by -L --Ln.
		if to == -1 {
			to = len(c.Entries)
		}
		return s.Delete(c, from-1, to-1)
	})
}

func parseRange(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	from, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, ebt.NewError(ebt.KindConfig, "bad range %q", s)
	}
	if len(parts) == 1 {
		return from, from, nil
	}
	to, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, ebt.NewError(ebt.KindConfig, "bad range %q", s)
	}
	return from, to, nil
}

func newPolicyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy <chain> <ACCEPT|DROP|RETURN|CONTINUE>",
		Short: "-P: set a chain's policy",
		Args:  cobra.ExactArgs(2),
	}
	return withRunE(cmd, a, func(s *ebt.Session, _ *cobra.Command, args []string) error {
		c, _ := s.Table.Chain(args[0])
		if c == nil {
			return ebt.NewError(ebt.KindResolve, "unknown chain %q", args[0])
		}
		p, err := parsePolicy(args[1])
		if err != nil {
			return err
		}
		return s.ChangePolicy(c, p)
	})
}

func parsePolicy(s string) (ebt.Policy, error) {
	switch s {
	case "ACCEPT":
		return ebt.PolicyAccept, nil
	case "DROP":
		return ebt.PolicyDrop, nil
	case "RETURN":
		return ebt.PolicyReturn, nil
	case "CONTINUE":
		return ebt.PolicyContinue, nil
	default:
		return 0, ebt.NewError(ebt.KindConfig, "unknown policy %q", s)
	}
}

func newListCmd(a *app) *cobra.Command {
	var withCounters, withNumbers bool
	cmd := &cobra.Command{
		Use:   "list [chain]",
		Short: "-L: list a chain's rules",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().BoolVar(&withCounters, "Lc", false, "show packet/byte counters")
	cmd.Flags().BoolVar(&withNumbers, "Ln", false, "number each rule")

	return withRunE(cmd, a, func(s *ebt.Session, cc *cobra.Command, args []string) error {
		chains := s.Table.Chains
		if len(args) == 1 {
			c, _ := s.Table.Chain(args[0])
			if c == nil {
				return ebt.NewError(ebt.KindResolve, "unknown chain %q", args[0])
			}
			chains = []*ebt.Chain{c}
		}
		for _, c := range chains {
			fmt.Fprintf(cc.OutOrStdout(), "Chain %s, policy %s:\n", c.Name, c.Policy)
			for i, e := range c.Entries {
				prefix := ""
				if withNumbers {
					prefix = fmt.Sprintf("%d. ", i+1)
				}
				suffix := ""
				if withCounters {
					suffix = fmt.Sprintf(" [%d:%d]", e.Packets, e.Bytes)
				}
				fmt.Fprintf(cc.OutOrStdout(), "%s%s%s\n", prefix, e.Target.Payload.Print(), suffix)
			}
		}
		return nil
	})
}

func newFlushCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush [chain]",
		Short: "-F: flush a chain, or the whole table",
		Args:  cobra.MaximumNArgs(1),
	}
	return withRunE(cmd, a, func(s *ebt.Session, _ *cobra.Command, args []string) error {
		if len(args) == 0 {
			return s.FlushTable()
		}
		c, _ := s.Table.Chain(args[0])
		if c == nil {
			return ebt.NewError(ebt.KindResolve, "unknown chain %q", args[0])
		}
		return s.Flush(c)
	})
}

func newZeroCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zero [chain]",
		Short: "-Z: zero a chain's counters, or the whole table's",
		Args:  cobra.MaximumNArgs(1),
	}
	return withRunE(cmd, a, func(s *ebt.Session, _ *cobra.Command, args []string) error {
		if len(args) == 0 {
			s.ZeroCountersTable()
			return nil
		}
		c, _ := s.Table.Chain(args[0])
		if c == nil {
			return ebt.NewError(ebt.KindResolve, "unknown chain %q", args[0])
		}
		s.ZeroCounters(c)
		return nil
	})
}

func newNewChainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newchain <name>",
		Short: "-N: create a user-defined chain",
		Args:  cobra.ExactArgs(1),
	}
	return withRunE(cmd, a, func(s *ebt.Session, _ *cobra.Command, args []string) error {
		_, err := s.NewChain(args[0])
		return err
	})
}

func newRenameChainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "-E: rename a chain",
		Args:  cobra.ExactArgs(2),
	}
	return withRunE(cmd, a, func(s *ebt.Session, _ *cobra.Command, args []string) error {
		return s.RenameChain(args[0], args[1])
	})
}

func newDeleteChainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deletechain [chain]",
		Short: "-X: delete a user-defined chain, or all of them (fails if any is non-empty or still referenced)",
		Args:  cobra.MaximumNArgs(1),
	}
	return withRunE(cmd, a, func(s *ebt.Session, _ *cobra.Command, args []string) error {
		if len(args) == 0 {
			return s.DeleteAllUserChains()
		}
		return s.DeleteChain(args[0])
	})
}

func newInitTableCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init-table",
		Short: "--init-table: replace the current table with its initial contents",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, args []string) error {
			return a.writeInitial()
		},
	}
}

func newAtomicInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "atomic-init",
		Short: "--atomic-init: write the table's initial contents to the atomic file",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, args []string) error {
			return a.writeInitial()
		},
	}
}

func newAtomicSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "atomic-save",
		Short: "--atomic-save: write the current table to the atomic file",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, args []string) error {
			s, tr, oldCounters, err := a.session()
			if err != nil {
				return err
			}
			return a.commit(s, tr, oldCounters)
		},
	}
}

func newAtomicCommitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "atomic-commit",
		Short: "--atomic-commit: install the atomic file's contents into the classifier",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, args []string) error {
			tr, err := a.transport()
			if err != nil {
				return err
			}
			reg := a.registry()
			validHooks := defaultValidHooks(a.table)
			ctx := cc.Context()

			blob, rawCounters, err := tr.FetchCurrent(ctx, a.table)
			if err != nil {
				return err
			}
			tbl, err := ebt.Parse(blob.Bytes(), a.table, validHooks, reg)
			if err != nil {
				return err
			}
			if err := ebt.Validate(tbl, reg, a.logger); err != nil {
				return err
			}
			newBlob, err := ebt.Serialize(tbl)
			if err != nil {
				return err
			}
			if err := tr.PutBlob(ctx, a.table, newBlob); err != nil {
				return err
			}
			return tr.PutCounters(ctx, a.table, rawCounters)
		},
	}
}

// withRunE wraps fn with the common session load / mutate / validate /
// commit lifecycle every mutating subcommand shares.
func withRunE(cmd *cobra.Command, a *app, fn func(s *ebt.Session, cc *cobra.Command, args []string) error) *cobra.Command {
	cmd.RunE = func(cc *cobra.Command, args []string) error {
		s, tr, oldCounters, err := a.session()
		if err != nil {
			return err
		}
		if err := fn(s, cc, args); err != nil {
			return err
		}
		return a.commit(s, tr, oldCounters)
	}
	return cmd
}
