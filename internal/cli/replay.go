package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/poe/internal/engine"
)

// BatchSummary counts the calls journaled by one engine session.
type BatchSummary struct {
	Batch string `json:"batch"`
	Calls int    `json:"calls"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	MaxBytesInHash uint32               `json:"max_bytes_in_hash"`
	Batches        []BatchSummary       `json:"batches"`
	Report         *engine.ReplayReport `json:"report"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify determinism",
		Long: `Replay every journaled call into a fresh registry and verify that it
reproduces the recorded outcomes, events and final claims.

Each call is applied at its recorded block height. The replay uses the
fingerprint bound the database was initialized with.

Exit codes:
  0 - Journal replays deterministically
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  poe replay --db ./poe.db
  poe replay --db ./poe.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), rootOpts, cmd)
		},
	}
	return cmd
}

func runReplay(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (err error) {
	out := formatter(opts, cmd)

	s, err := openStore(opts, cmd)
	if err != nil {
		return err
	}
	defer s.closeInto(&err)

	maxBytes, ok, err := s.store.MaxBytesInHash(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read database settings", err)
	}
	if !ok {
		maxBytes = s.cfg.MaxBytesInHash
	}

	batches, err := s.store.ListBatches(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list batches", err)
	}
	result := ReplayResult{
		MaxBytesInHash: maxBytes,
		Batches:        make([]BatchSummary, 0, len(batches)),
	}
	for _, batch := range batches {
		calls, err := s.store.ReadCallsForBatch(ctx, batch)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read batch %s", batch), err)
		}
		result.Batches = append(result.Batches, BatchSummary{Batch: batch, Calls: len(calls)})
	}

	report, err := engine.Replay(ctx, s.store, maxBytes)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay journal", err)
	}
	result.Report = report
	s.logger.Debug("replayed journal", "calls", report.Calls, "mismatches", len(report.Mismatches))

	if !report.Deterministic {
		if opts.Format != "json" {
			writeMismatchesText(out.Writer, report)
		}
		return out.Fail(ExitFailure, "E_DETERMINISM", "determinism verification failed", result, nil)
	}
	return out.Success(result, func(w io.Writer) {
		writeReplayText(w, result, opts.Verbose)
	})
}

func writeReplayText(w io.Writer, result ReplayResult, verbose bool) {
	r := result.Report
	if r.Calls == 0 {
		fmt.Fprintln(w, "No calls found in database.")
		return
	}

	fmt.Fprintf(w, "Replay Summary: %d call(s) in %d batch(es)\n", r.Calls, len(result.Batches))
	fmt.Fprintf(w, "  Accepted: %d  Rejected: %d\n", r.Accepted, r.Rejected)
	fmt.Fprintf(w, "  Events: %d\n", r.Events)
	fmt.Fprintf(w, "  Claims: %d (proofs table: %d)\n", r.Claims, r.Proofs)

	if verbose {
		fmt.Fprintln(w)
		for _, b := range result.Batches {
			fmt.Fprintf(w, "  Batch %s: %d call(s)\n", b.Batch, b.Calls)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "✓ Journal verified deterministic")
}

func writeMismatchesText(w io.Writer, r *engine.ReplayReport) {
	fmt.Fprintf(w, "✗ %d mismatch(es) after replaying %d call(s)\n", len(r.Mismatches), r.Calls)
	for _, m := range r.Mismatches {
		if m.Seq != 0 {
			fmt.Fprintf(w, "  seq %d %s\n", m.Seq, m.Field)
		} else {
			fmt.Fprintf(w, "  %s\n", m.Field)
		}
		fmt.Fprintf(w, "    want: %s\n", m.Want)
		fmt.Fprintf(w, "    got:  %s\n", m.Got)
	}
}
