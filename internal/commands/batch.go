package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ledger/constants"
	"github.com/joseph-ayodele/invoice-ledger/internal/async"
	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/ingest"
)

type batchLine struct {
	File   string                 `json:"file"`
	JobID  string                 `json:"job_id"`
	Status constants.LedgerStatus `json:"status"`
	Score  *float64               `json:"score,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

func newBatchCommand(root *rootOptions) *cobra.Command {
	var (
		workers    int
		dir        string
		exts       []string
		skipHidden bool
	)
	cmd := &cobra.Command{
		Use:   "batch [FILE...]",
		Short: "Process many invoices concurrently up to Scored",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if dir != "" {
				found, stats, err := ingest.Scan(dir, ingest.ScanOptions{Exts: exts, SkipHidden: skipHidden})
				if err != nil {
					return err
				}
				root.logger(cmd.ErrOrStderr()).Info("ingest.scan.ok",
					"dir", dir, "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)
				paths = append(paths, found...)
			}
			if len(paths) == 0 {
				return common.InputErrorf("no files given; pass FILE arguments or --dir")
			}
			return runBatch(cmd, root, paths, workers)
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "worker count (defaults to QUEUE_WORKERS)")
	cmd.Flags().StringVar(&dir, "dir", "", "also process every invoice file under this directory")
	cmd.Flags().StringSliceVar(&exts, "ext", nil, "extensions to pick up with --dir (default pdf,jpg,jpeg,png,tif,tiff,txt)")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "skip dot files and directories with --dir")
	return cmd
}

// runBatch prints one JSON line per file and fails if any file failed.
func runBatch(cmd *cobra.Command, root *rootOptions, paths []string, workers int) error {
	ctx := cmd.Context()
	a, err := root.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		mu     sync.Mutex
		failed int
		out    = json.NewEncoder(cmd.OutOrStdout())
	)
	q := a.NewQueue(
		async.WithWorkers(workers),
		async.WithResults(func(r async.Result) {
			line := batchLine{File: r.Name, JobID: r.JobID.String(), Status: r.Snapshot.Status}
			if r.Snapshot.Entry != nil && r.Snapshot.Entry.Score != nil {
				v := r.Snapshot.Entry.Score.Value
				line.Score = &v
			}
			mu.Lock()
			defer mu.Unlock()
			if r.Err != nil {
				line.Error = r.Err.Error()
				failed++
			}
			_ = out.Encode(line)
		}),
	)

	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			q.Shutdown(ctx)
			return fmt.Errorf("reading %s: %w", p, err)
		}
		if _, err := q.Enqueue(ctx, async.Job{Name: filepath.Base(p), Content: content}); err != nil {
			q.Shutdown(ctx)
			return err
		}
	}
	q.Shutdown(ctx)

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}
