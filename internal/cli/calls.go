package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/poe/internal/engine"
	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/registry"
)

// CallOptions holds flags for create, transfer and revoke.
type CallOptions struct {
	*RootOptions
	Caller      string
	Receiver    string
	Fingerprint fingerprintFlags
}

// CallResult is the journaled result of one call.
type CallResult struct {
	Call     ir.Call          `json:"call"`
	Events   []ir.EventRecord `json:"events"`
	Accepted bool             `json:"accepted"`
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return newCallCommand(rootOpts, ir.OpCreate, &cobra.Command{
		Use:   "create",
		Short: "Claim an unclaimed fingerprint",
		Long: `Claim a fingerprint for the caller at the current block height.

Exit codes:
  0 - Claim created
  1 - Call rejected (ProofAlreadyClaimed, FingerprintTooLong) or refused
  2 - Command error (invalid flags, database not found, etc.)

Examples:
  poe create --caller alice --fingerprint 0x5d41402abc4b2a76
  poe create --caller alice --file ./contract.pdf --algo keccak-256
  poe create --caller alice --cid bafkreie...`,
	})
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(rootOpts *RootOptions) *cobra.Command {
	return newCallCommand(rootOpts, ir.OpTransfer, &cobra.Command{
		Use:   "transfer",
		Short: "Move a claim to a new owner",
		Long: `Transfer a claim owned by the caller to the receiver.

The claim is restamped with the current block height.

Exit codes:
  0 - Claim transferred
  1 - Call rejected (NoSuchProof, NotProofOwner) or refused
  2 - Command error

Examples:
  poe transfer --caller alice --receiver bob --fingerprint 0x5d41402abc4b2a76`,
	})
}

// NewRevokeCommand creates the revoke command.
func NewRevokeCommand(rootOpts *RootOptions) *cobra.Command {
	return newCallCommand(rootOpts, ir.OpRevoke, &cobra.Command{
		Use:   "revoke",
		Short: "Remove a claim owned by the caller",
		Long: `Revoke a claim owned by the caller. The fingerprint can be claimed again.

Exit codes:
  0 - Claim revoked
  1 - Call rejected (NoSuchProof, NotProofOwner) or refused
  2 - Command error

Examples:
  poe revoke --caller alice --fingerprint 0x5d41402abc4b2a76`,
	})
}

func newCallCommand(rootOpts *RootOptions, op ir.Op, cmd *cobra.Command) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd.Args = cobra.NoArgs
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runCall(cmd.Context(), opts, op, cmd)
	}

	cmd.Flags().StringVar(&opts.Caller, "caller", "", "calling identity (required)")
	_ = cmd.MarkFlagRequired("caller")
	if op == ir.OpTransfer {
		cmd.Flags().StringVar(&opts.Receiver, "receiver", "", "new owner (required)")
		_ = cmd.MarkFlagRequired("receiver")
	}
	opts.Fingerprint.register(cmd)

	return cmd
}

func runCall(ctx context.Context, opts *CallOptions, op ir.Op, cmd *cobra.Command) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	out := formatter(opts.RootOptions, cmd)

	fp, err := opts.Fingerprint.resolve(cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid fingerprint", err)
	}

	s, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.closeInto(&err)

	receipt, err := s.engine.Apply(ctx, engine.Request{
		Op:          op,
		Caller:      opts.Caller,
		Receiver:    opts.Receiver,
		Fingerprint: fp,
	})
	if err != nil {
		var re *engine.RuntimeError
		if errors.As(err, &re) {
			var details any
			if len(re.Details) > 0 {
				details = re.Details
			}
			return out.Fail(ExitFailure, string(re.Code), re.Message, nil, details)
		}
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s failed", op), err)
	}

	result := CallResult{
		Call:     receipt.Call,
		Events:   receipt.Events,
		Accepted: receipt.Accepted(),
	}
	if result.Events == nil {
		result.Events = []ir.EventRecord{}
	}

	if !receipt.Accepted() {
		code := string(registry.CodeOf(receipt.Err))
		return out.Fail(ExitFailure, code, receipt.Err.Error(), result, nil)
	}
	return out.Success(result, func(w io.Writer) {
		writeCallText(w, result, opts.Verbose)
	})
}

func writeCallText(w io.Writer, r CallResult, verbose bool) {
	for _, ev := range r.Events {
		fmt.Fprintf(w, "✓ %s %s\n", ev.Kind, ir.FormatFingerprint(ev.Fingerprint))
		if ev.Receiver != "" {
			fmt.Fprintf(w, "  %s -> %s\n", ev.Caller, ev.Receiver)
		} else {
			fmt.Fprintf(w, "  Owner: %s\n", ev.Caller)
		}
	}
	fmt.Fprintf(w, "  Block: %d  Seq: %d\n", r.Call.Block, r.Call.Seq)
	if verbose {
		fmt.Fprintf(w, "  Call: %s\n", r.Call.ID)
		fmt.Fprintf(w, "  Batch: %s\n", r.Call.Batch)
		fmt.Fprintf(w, "  Weight: %d\n", r.Call.Weight)
	}
}
