package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/queryir"
	"github.com/roach88/poe/internal/registry"
)

// QueryOptions holds flags for lookup and history.
type QueryOptions struct {
	*RootOptions
	Fingerprint fingerprintFlags
}

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Show the claim on a fingerprint",
		Long: `Show the owner and registration height of a claimed fingerprint.

Exit codes:
  0 - Fingerprint is claimed
  1 - Fingerprint is not claimed (NoSuchProof)
  2 - Command error

Examples:
  poe lookup --fingerprint 0x5d41402abc4b2a76
  poe lookup --file ./contract.pdf --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd.Context(), opts, cmd)
		},
	}
	opts.Fingerprint.register(cmd)

	return cmd
}

func runLookup(ctx context.Context, opts *QueryOptions, cmd *cobra.Command) (err error) {
	out := formatter(opts.RootOptions, cmd)

	fp, err := opts.Fingerprint.resolve(cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid fingerprint", err)
	}

	s, err := openStore(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.closeInto(&err)

	proof, ok, err := s.store.ReadProof(ctx, fp)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read proof", err)
	}
	if !ok {
		return out.Fail(ExitFailure, string(registry.CodeNoSuchProof),
			fmt.Sprintf("%s is not claimed", ir.FormatFingerprint(fp)), nil, nil)
	}

	return out.Success(proof, func(w io.Writer) {
		writeProofText(w, proof)
	})
}

// ListResult holds every live claim.
type ListResult struct {
	Proofs []ir.ProofRecord `json:"proofs"`
	Total  int              `json:"total"`
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Owner string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all claims",
		Long: `List every live claim in fingerprint order.

Examples:
  poe list --db ./poe.db
  poe list --owner alice --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "only claims held by this identity")

	return cmd
}

func runList(ctx context.Context, opts *ListOptions, cmd *cobra.Command) (err error) {
	out := formatter(opts.RootOptions, cmd)

	s, err := openStore(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.closeInto(&err)

	var filter queryir.Predicate
	if owner := ir.NormalizeIdentity(opts.Owner); owner != "" {
		filter = queryir.Equals{Field: "owner", Value: owner}
	}
	proofs, err := s.store.QueryProofs(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read proofs", err)
	}

	result := ListResult{Proofs: proofs, Total: len(proofs)}
	return out.Success(result, func(w io.Writer) {
		if len(proofs) == 0 {
			fmt.Fprintln(w, "No claims found.")
			return
		}
		for _, p := range proofs {
			writeProofText(w, p)
		}
		fmt.Fprintf(w, "\n%d claim(s)\n", len(proofs))
	})
}

func writeProofText(w io.Writer, p ir.ProofRecord) {
	fmt.Fprintf(w, "%s\n", ir.FormatFingerprint(p.Fingerprint))
	fmt.Fprintf(w, "  Owner: %s\n", p.Owner)
	fmt.Fprintf(w, "  Registered at: %d\n", p.RegisteredAt)
}

// HistoryEntry is one journaled call on a fingerprint and the event it
// deposited, if accepted.
type HistoryEntry struct {
	Call  ir.Call         `json:"call"`
	Event *ir.EventRecord `json:"event,omitempty"`
}

// HistoryResult holds the journal of one fingerprint.
type HistoryResult struct {
	Fingerprint string         `json:"fingerprint"`
	Entries     []HistoryEntry `json:"entries"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the journal of a fingerprint",
		Long: `Show every journaled call on a fingerprint in seq order, accepted or
rejected, with the event each accepted call deposited.

Examples:
  poe history --fingerprint 0x5d41402abc4b2a76
  poe history --cid bafkreie... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, cmd)
		},
	}
	opts.Fingerprint.register(cmd)

	return cmd
}

func runHistory(ctx context.Context, opts *QueryOptions, cmd *cobra.Command) (err error) {
	out := formatter(opts.RootOptions, cmd)

	fp, err := opts.Fingerprint.resolve(cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid fingerprint", err)
	}

	s, err := openStore(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.closeInto(&err)

	calls, err := s.store.ReadCallsForFingerprint(ctx, fp)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := HistoryResult{
		Fingerprint: ir.FormatFingerprint(fp),
		Entries:     make([]HistoryEntry, 0, len(calls)),
	}
	for _, call := range calls {
		entry := HistoryEntry{Call: call}
		ev, ok, err := s.store.ReadEventForCall(ctx, call.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read events", err)
		}
		if ok {
			entry.Event = &ev
		}
		result.Entries = append(result.Entries, entry)
	}

	return out.Success(result, func(w io.Writer) {
		if len(result.Entries) == 0 {
			fmt.Fprintf(w, "No calls found for %s.\n", result.Fingerprint)
			return
		}
		fmt.Fprintf(w, "History of %s\n\n", result.Fingerprint)
		for _, e := range result.Entries {
			c := e.Call
			who := c.Caller
			if c.Receiver != "" {
				who += " -> " + c.Receiver
			}
			fmt.Fprintf(w, "  [%d] block %d  %-8s %-20s %s\n", c.Seq, c.Block, c.Op, who, c.Outcome)
			if opts.Verbose && e.Event != nil {
				fmt.Fprintf(w, "      %s (call %s)\n", e.Event.Kind, c.ID)
			}
		}
	})
}
