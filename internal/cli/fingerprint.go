package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/poe/internal/digest"
	"github.com/roach88/poe/internal/ir"
)

// fingerprintFlags selects the fingerprint a command operates on.
// Exactly one of Hex, File and CID is set.
type fingerprintFlags struct {
	Hex  string
	File string // "-" reads stdin
	CID  string
	Algo string // digest algorithm for File
}

func (f *fingerprintFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Hex, "fingerprint", "f", "", "fingerprint as 0x-prefixed hex")
	cmd.Flags().StringVar(&f.File, "file", "", "fingerprint the contents of a file (- for stdin)")
	cmd.Flags().StringVar(&f.CID, "cid", "", "fingerprint from a CIDv1")
	cmd.Flags().StringVar(&f.Algo, "algo", string(digest.DefaultAlgorithm), "digest algorithm for --file")
}

// resolve returns the fingerprint bytes. in is used when File is "-".
func (f *fingerprintFlags) resolve(in io.Reader) ([]byte, error) {
	set := 0
	for _, v := range []string{f.Hex, f.File, f.CID} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("exactly one of --fingerprint, --file or --cid is required")
	}

	switch {
	case f.Hex != "":
		return ir.ParseFingerprint(f.Hex)
	case f.CID != "":
		d, err := digest.FromCID(f.CID)
		if err != nil {
			return nil, err
		}
		return d.Sum, nil
	default:
		algo, err := digest.ParseAlgorithm(f.Algo)
		if err != nil {
			return nil, err
		}
		d, err := digestFile(f.File, algo, in)
		if err != nil {
			return nil, err
		}
		return d.Sum, nil
	}
}

func digestFile(path string, algo digest.Algorithm, in io.Reader) (digest.Digest, error) {
	if path == "-" {
		return digest.SumReader(in, algo)
	}
	file, err := os.Open(path)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()
	return digest.SumReader(file, algo)
}
