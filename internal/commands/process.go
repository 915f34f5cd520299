package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/pipeline"
)

type processOptions struct {
	name        string
	approve     bool
	attestation string
	share       bool
}

func newProcessCommand(root *rootOptions) *cobra.Command {
	opts := &processOptions{}
	cmd := &cobra.Command{
		Use:   "process FILE",
		Short: "Run one invoice through extract, parse and score, optionally sealing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.attestation != "" && !opts.approve {
				return common.InputErrorf("--attestation requires --approve")
			}
			if opts.share && opts.attestation == "" {
				return common.InputErrorf("--share requires --attestation")
			}
			return runProcess(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.name, "name", "", "display name (defaults to the file name)")
	cmd.Flags().BoolVar(&opts.approve, "approve", false, "approve the scored entry")
	cmd.Flags().StringVar(&opts.attestation, "attestation", "", "attestation token to seal the entry with")
	cmd.Flags().BoolVar(&opts.share, "share", false, "share the sealed entry with the auditor")
	return cmd
}

func runProcess(cmd *cobra.Command, root *rootOptions, opts *processOptions, path string) error {
	ctx := cmd.Context()
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	a, err := root.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	o := a.NewOrchestrator()
	defer o.Close()

	o.Upload(ctx, filepath.Base(path), opts.name, content)
	steps := []func() error{
		func() error { _, err := o.Extract(ctx); return err },
		func() error { _, err := o.Parse(ctx); return err },
		func() error { _, err := o.Score(ctx); return err },
	}
	if opts.approve {
		steps = append(steps, func() error { return o.Approve(ctx) })
	}
	if opts.attestation != "" {
		steps = append(steps, func() error { return o.Seal(ctx, opts.attestation) })
	}
	if opts.share {
		steps = append(steps, func() error { return o.Share(ctx) })
	}

	var runErr error
	for _, step := range steps {
		if runErr = step(); runErr != nil {
			break
		}
	}
	if err := writeSnapshot(cmd.OutOrStdout(), o.Snapshot()); err != nil {
		return err
	}
	return runErr
}

func writeSnapshot(w io.Writer, snap pipeline.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
