package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChuLiYu/batchfeed/internal/trainset"
	"github.com/ChuLiYu/batchfeed/internal/worker"
)

func buildPackCommand() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "pack CSV...",
		Short: "Convert CSV files into training files",
		Long:  "Convert CSV files into compressed training files, one output per input, using a worker pool",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			return packFiles(args, outDir, env.cfg, env.logger, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory")
	cmd.MarkFlagRequired("out")

	return cmd
}

// packTarget maps a CSV path to its training file path inside outDir.
func packTarget(outDir, src string) string {
	base := filepath.Base(src)
	return filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".bftd")
}

// packFiles converts every input on a worker pool and waits for all of them.
// Failed conversions are reported together.
func packFiles(inputs []string, outDir string, cfg *Config, logger *slog.Logger, out io.Writer) error {
	layout := cfg.csvLayout()
	if len(layout.Features) == 0 {
		return fmt.Errorf("pack.feature_columns must name at least one column")
	}

	pool := worker.NewPool(len(inputs), func(ctx context.Context, task worker.Task) error {
		td, err := trainset.FromCSV(task.Source, layout)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return td.WriteToFile(task.Dest)
	})
	if err := pool.Start(min(cfg.Pack.Workers, len(inputs))); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	defer pool.Stop()

	start := time.Now()
	for _, src := range inputs {
		task := worker.Task{
			ID:      src,
			Source:  src,
			Dest:    packTarget(outDir, src),
			Timeout: cfg.Pack.TaskTimeout,
		}
		if err := pool.Submit(task); err != nil {
			return fmt.Errorf("failed to submit %s: %w", src, err)
		}
	}

	var errs []error
	for range inputs {
		res, err := pool.ReceiveResult()
		if err != nil {
			return err
		}
		if !res.Success {
			logger.Error("pack failed", "file", res.TaskID, "error", res.Error)
			errs = append(errs, fmt.Errorf("%s: %w", res.TaskID, res.Error))
			continue
		}
		logger.Debug("packed", "file", res.TaskID, "duration", res.Duration)
	}

	fmt.Fprintf(out, "packed %d/%d files into %s in %s\n",
		len(inputs)-len(errs), len(inputs), outDir, time.Since(start).Round(time.Millisecond))
	return errors.Join(errs...)
}
