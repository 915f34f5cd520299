package commands

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-ledger/internal/async"
	"github.com/joseph-ayodele/invoice-ledger/internal/ingest"
)

func newWatchCommand(root *rootOptions) *cobra.Command {
	var (
		existing bool
		debounce time.Duration
		exts     []string
	)
	cmd := &cobra.Command{
		Use:   "watch DIR...",
		Short: "Process invoice files as they appear in the given directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			logger := a.Logger

			out := json.NewEncoder(cmd.OutOrStdout())
			lines := make(chan batchLine, 16)
			q := a.NewQueue(async.WithResults(func(r async.Result) {
				line := batchLine{File: r.Name, JobID: r.JobID.String(), Status: r.Snapshot.Status}
				if r.Snapshot.Entry != nil && r.Snapshot.Entry.Score != nil {
					v := r.Snapshot.Entry.Score.Value
					line.Score = &v
				}
				if r.Err != nil {
					line.Error = r.Err.Error()
				}
				lines <- line
			}))
			printed := make(chan struct{})
			go func() {
				defer close(printed)
				for l := range lines {
					_ = out.Encode(l)
				}
			}()

			events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
				Roots:       args,
				Exts:        exts,
				InitialScan: existing,
				Debounce:    debounce,
				SkipHidden:  true,
			}, logger)
			if err != nil {
				q.Shutdown(ctx)
				close(lines)
				<-printed
				return err
			}
			logger.Info("ingest.watch.started", "roots", args)

			for events != nil {
				select {
				case p, ok := <-events:
					if !ok {
						events = nil
						continue
					}
					content, err := os.ReadFile(p)
					if err != nil || len(content) == 0 {
						logger.Warn("ingest.watch.read_failed", "path", p, "error", err)
						continue
					}
					if _, err := q.Enqueue(ctx, async.Job{Name: filepath.Base(p), Content: content}); err != nil {
						logger.Warn("ingest.watch.enqueue_failed", "path", p, "error", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					logger.Warn("ingest.watch.error", "error", err)
				}
			}

			// ctx is done here; give running jobs their own deadline to finish
			drain, cancel := context.WithTimeout(context.Background(), a.Config.Queue.ProcessTimeout)
			defer cancel()
			q.Shutdown(drain)
			close(lines)
			<-printed
			return nil
		},
	}
	cmd.Flags().BoolVar(&existing, "existing", false, "also process files already present")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "coalesce bursts of events per file")
	cmd.Flags().StringSliceVar(&exts, "ext", nil, "extensions to pick up (default pdf,jpg,jpeg,png,tif,tiff,txt)")
	return cmd
}
