package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/queryir"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Caller      string
	Receiver    string
	Op          string
	Outcome     string
	Batch       string
	Fingerprint string
	FromBlock   uint64
	ToBlock     uint64
	Limit       int
}

// JournalResult holds the matching calls.
type JournalResult struct {
	Calls []ir.Call `json:"calls"`
	Total int       `json:"total"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Search journaled calls",
		Long: `List journaled calls in seq order, accepted or rejected.

Filters combine with AND. Identities are normalized the same way calls are.

Examples:
  poe journal --caller alice
  poe journal --outcome NotProofOwner --from-block 10 --to-block 20
  poe journal --op transfer --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Caller, "caller", "", "only calls made by this identity")
	cmd.Flags().StringVar(&opts.Receiver, "receiver", "", "only transfers to this identity")
	cmd.Flags().StringVar(&opts.Op, "op", "", "only this operation (create|transfer|revoke)")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "only this outcome (Ok or a registry error code)")
	cmd.Flags().StringVar(&opts.Batch, "batch", "", "only calls from this session")
	cmd.Flags().StringVarP(&opts.Fingerprint, "fingerprint", "f", "", "only calls on this 0x-prefixed fingerprint")
	cmd.Flags().Uint64Var(&opts.FromBlock, "from-block", 0, "lowest block (inclusive)")
	cmd.Flags().Uint64Var(&opts.ToBlock, "to-block", 0, "highest block (inclusive, 0 = no bound)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of calls (0 = all)")

	return cmd
}

// filter builds the journal filter from the set flags.
func (o *JournalOptions) filter() (queryir.Predicate, error) {
	var preds []queryir.Predicate

	equals := func(field, value string) {
		if value != "" {
			preds = append(preds, queryir.Equals{Field: field, Value: value})
		}
	}
	equals("caller", ir.NormalizeIdentity(o.Caller))
	equals("receiver", ir.NormalizeIdentity(o.Receiver))
	equals("outcome", o.Outcome)
	equals("batch", o.Batch)

	if o.Op != "" {
		if !ir.ValidOps[ir.Op(o.Op)] {
			return nil, fmt.Errorf("unknown op %q", o.Op)
		}
		equals("op", o.Op)
	}
	if o.Fingerprint != "" {
		fp, err := ir.ParseFingerprint(o.Fingerprint)
		if err != nil {
			return nil, err
		}
		preds = append(preds, queryir.Equals{Field: "fingerprint", Value: fp})
	}
	if o.FromBlock > 0 {
		preds = append(preds, queryir.Compare{Field: "block", Op: queryir.AtLeast, Value: o.FromBlock})
	}
	if o.ToBlock > 0 {
		if o.ToBlock < o.FromBlock {
			return nil, fmt.Errorf("--to-block %d is below --from-block %d", o.ToBlock, o.FromBlock)
		}
		preds = append(preds, queryir.Compare{Field: "block", Op: queryir.AtMost, Value: o.ToBlock})
	}
	if o.Limit < 0 {
		return nil, fmt.Errorf("negative --limit %d", o.Limit)
	}

	return queryir.Where(preds...), nil
}

func runJournal(ctx context.Context, opts *JournalOptions, cmd *cobra.Command) (err error) {
	out := formatter(opts.RootOptions, cmd)

	filter, err := opts.filter()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	s, err := openStore(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.closeInto(&err)

	calls, err := s.store.QueryCalls(ctx, filter, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query journal", err)
	}

	result := JournalResult{Calls: calls, Total: len(calls)}
	return out.Success(result, func(w io.Writer) {
		if len(calls) == 0 {
			fmt.Fprintln(w, "No matching calls.")
			return
		}
		for _, c := range calls {
			who := c.Caller
			if c.Receiver != "" {
				who += " -> " + c.Receiver
			}
			fmt.Fprintf(w, "[%d] block %d  %-8s %-20s %s  %s\n",
				c.Seq, c.Block, c.Op, who, ir.FormatFingerprint(c.Fingerprint), c.Outcome)
			if opts.Verbose {
				fmt.Fprintf(w, "    call %s  batch %s\n", c.ID, c.Batch)
			}
		}
		fmt.Fprintf(w, "\n%d call(s)\n", len(calls))
	})
}
