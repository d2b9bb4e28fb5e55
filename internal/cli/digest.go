package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/poe/internal/digest"
)

// DigestOptions holds flags for the digest command.
type DigestOptions struct {
	*RootOptions
	Algo string
}

// DigestResult holds the fingerprint forms of a file.
type DigestResult struct {
	File        string `json:"file"`
	Algorithm   string `json:"algorithm"`
	Fingerprint string `json:"fingerprint"`
	Multihash   string `json:"multihash"`
	CID         string `json:"cid"`
}

// NewDigestCommand creates the digest command.
func NewDigestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DigestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "digest <file>",
		Short: "Compute the fingerprint of a file",
		Long: `Compute the fingerprint of a file without touching the registry.

Prints the raw digest as hex, its multihash and a CIDv1. Use - to read stdin.

Examples:
  poe digest ./contract.pdf
  poe digest ./contract.pdf --algo blake2b-256 --format json
  cat contract.pdf | poe digest -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Algo, "algo", string(digest.DefaultAlgorithm),
		fmt.Sprintf("digest algorithm %v", digest.Algorithms))

	return cmd
}

func runDigest(opts *DigestOptions, path string, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	algo, err := digest.ParseAlgorithm(opts.Algo)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid algorithm", err)
	}

	d, err := digestFile(path, algo, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest input", err)
	}
	mh, err := d.Multihash()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode multihash", err)
	}
	c, err := d.CID()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode cid", err)
	}

	result := DigestResult{
		File:        path,
		Algorithm:   string(d.Algorithm),
		Fingerprint: d.Hex(),
		Multihash:   mh.HexString(),
		CID:         c.String(),
	}
	return out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s  %s\n", result.Fingerprint, result.File)
		fmt.Fprintf(w, "  Algorithm: %s\n", result.Algorithm)
		fmt.Fprintf(w, "  Multihash: %s\n", result.Multihash)
		fmt.Fprintf(w, "  CID: %s\n", result.CID)
	})
}
