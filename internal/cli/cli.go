// ============================================================================
// Batchfeed CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra commands driving the batch generator
//
// Command Structure:
//   batchfeed                      # Root command
//   ├── run [files...]             # Run epochs over the files
//   ├── inspect [files...]         # Print sample counts and batch count
//   ├── pack -o DIR CSV...         # Convert CSV files to training files
//   │   └── --out, -o             # Output directory
//   ├── --config, -c               # Config file (persistent)
//   ├── --version                  # Display version information
//   └── --help                     # Display help information
//
// Configuration:
//   YAML config file (default: configs/default.yaml) with sections
//   generator, run, pack, metrics and log. Paths given on the command line
//   replace generator.files and generator.file_glob.
//
// run Command:
//   1. Load config, set up the logger with a fresh run id
//   2. Start the metrics HTTP server (if enabled)
//   3. Configure a generator and run run.epochs epochs
//   4. With run.checkpoint set, skip epochs an earlier run completed and
//      record every completed epoch
//   5. SIGINT / SIGTERM stop the run after the current batch
//
//   Examples:
//     ./batchfeed run
//     ./batchfeed run -c custom.yaml data/*.bftd
//
// inspect Command:
//   Reads only the file headers.
//
//   Examples:
//     ./batchfeed inspect data/*.bftd
//
// pack Command:
//   Converts CSV files concurrently on a worker pool, one task per file.
//
//   Examples:
//     ./batchfeed pack -o data/ raw/*.csv
//
// ============================================================================

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ChuLiYu/batchfeed/internal/checkpoint"
	"github.com/ChuLiYu/batchfeed/internal/generator"
	"github.com/ChuLiYu/batchfeed/internal/metrics"
	"github.com/ChuLiYu/batchfeed/internal/trainset"
	"github.com/ChuLiYu/batchfeed/pkg/types"
)

var configFile string

func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "batchfeed",
		Short: "Batchfeed: a prefetching batch generator for training data",
		Long: `Batchfeed feeds fixed-size training batches from a list of files:
- files reshuffled every epoch
- next file read in the background while batches are consumed
- missing or corrupt files retried within a budget
- Prometheus metrics`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildInspectCommand())
	rootCmd.AddCommand(buildPackCommand())

	return rootCmd
}

func newTrainData() *trainset.TrainData {
	return &trainset.TrainData{}
}

// runEnv is what every command starts from.
type runEnv struct {
	cfg    *Config
	logger *slog.Logger
	runID  string
}

// setup loads the config file and installs the default logger.
func setup() (*runEnv, error) {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	runID := uuid.NewString()
	logger, err := newLogger(os.Stderr, cfg.Log, runID)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return &runEnv{cfg: cfg, logger: logger, runID: runID}, nil
}

func buildRunCommand() *cobra.Command {
	var epochs int

	cmd := &cobra.Command{
		Use:   "run [files...]",
		Short: "Start generating batches",
		Long:  "Run the configured number of epochs over the files and report per-epoch throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			cfg, logger := env.cfg, env.logger
			if epochs > 0 {
				cfg.Run.Epochs = epochs
			}
			files, err := cfg.resolveFiles(args)
			if err != nil {
				return err
			}

			var rec generator.Recorder
			if cfg.Metrics.Enabled {
				rec = metrics.NewCollector()
				go func() {
					logger.Info("starting metrics server", "port", cfg.Metrics.Port)
					if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
						logger.Error("metrics server error", "error", err)
					}
				}()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runSystem(ctx, env, files, rec, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&epochs, "epochs", 0, "number of epochs (overrides run.epochs)")

	return cmd
}

// epochStats summarises one epoch of a run.
type epochStats struct {
	Epoch    int
	Batches  int
	Samples  int
	Duration time.Duration
}

// runSystem runs cfg.Run.Epochs epochs over files. With a checkpoint
// configured, epochs completed by an earlier run over the same files are
// skipped and every completed epoch is recorded.
func runSystem(ctx context.Context, env *runEnv, files []string, rec generator.Recorder, out io.Writer) error {
	cfg, logger := env.cfg, env.logger

	gen, err := generator.New(newTrainData, cfg.generatorConfig(logger, rec))
	if err != nil {
		return err
	}
	defer gen.Close()

	if err := gen.SetFileList(files); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d files, %d samples, %d batches of %d per epoch\n",
		len(files), gen.NTotal(), gen.NBatches(), gen.BatchSize())

	var ckpt *checkpoint.Manager
	if cfg.Run.Checkpoint != "" {
		ckpt = checkpoint.NewManager(cfg.Run.Checkpoint)
		st, err := ckpt.Load()
		if err != nil {
			return fmt.Errorf("failed to load checkpoint: %w", err)
		}
		switch {
		case st.CompletedEpochs == 0:
		case st.Matches(files, gen.BatchSize()):
			if err := gen.SkipEpochs(st.CompletedEpochs); err != nil {
				return err
			}
			logger.Info("resuming from checkpoint",
				"checkpoint", ckpt.GetPath(),
				"completed_epochs", st.CompletedEpochs,
				"previous_run", st.RunID)
			fmt.Fprintf(out, "resuming after epoch %d\n", st.CompletedEpochs)
		default:
			logger.Warn("checkpoint belongs to another file list or batch size, starting over",
				"checkpoint", ckpt.GetPath())
		}
	}

	for gen.Epoch() < cfg.Run.Epochs {
		stats, err := runEpoch(ctx, gen)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "epoch %d: %d batches, %d samples in %s\n",
			stats.Epoch, stats.Batches, stats.Samples, stats.Duration.Round(time.Millisecond))

		if stats.Batches < gen.NBatches() {
			logger.Info("run interrupted", "epoch", stats.Epoch, "batches", stats.Batches)
			break
		}
		if ckpt != nil {
			err := ckpt.Write(checkpoint.State{
				RunID:           env.runID,
				Files:           files,
				BatchSize:       gen.BatchSize(),
				TotalSamples:    gen.NTotal(),
				CompletedEpochs: stats.Epoch,
			})
			if err != nil {
				return err
			}
		}
	}
	return gen.End()
}

// runEpoch consumes one epoch, stopping early once ctx is done.
func runEpoch(ctx context.Context, gen *generator.Generator[*trainset.TrainData]) (epochStats, error) {
	start := time.Now()
	if err := gen.PrepareNextEpoch(); err != nil {
		return epochStats{}, err
	}

	stats := epochStats{Epoch: gen.Epoch()}
	for i := 0; i < gen.NBatches(); i++ {
		if ctx.Err() != nil {
			break
		}
		batch, err := gen.GetBatch()
		if err != nil {
			return stats, fmt.Errorf("epoch %d batch %d: %w", stats.Epoch, i, err)
		}
		stats.Batches++
		stats.Samples += batch.NElements()
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

func buildInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [files...]",
		Short: "Show sample counts of training files",
		Long:  "Read the shape metadata of every file and print sample and batch counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			files, err := env.cfg.resolveFiles(args)
			if err != nil {
				return err
			}
			return inspectFiles(files, env.cfg.Generator.BatchSize, cmd.OutOrStdout())
		},
	}
	return cmd
}

func inspectFiles(files []string, batchSize int, out io.Writer) error {
	total := 0
	var errs []error
	for _, f := range files {
		shapes, err := trainset.ReadShapes(f)
		if err != nil {
			fmt.Fprintf(out, "  %-40s  error: %v\n", f, err)
			errs = append(errs, err)
			continue
		}
		n, ok := shapes.SampleCount()
		if !ok {
			err := fmt.Errorf("%s: no features filled", f)
			fmt.Fprintf(out, "  %-40s  error: no features filled\n", f)
			errs = append(errs, err)
			continue
		}
		total += n
		fmt.Fprintf(out, "  %-40s  %8d samples  features=%s truth=%s weights=%s\n",
			f, n, formatShapes(shapes.Features), formatShapes(shapes.Truth), formatShapes(shapes.Weights))
	}

	fmt.Fprintf(out, "\nfiles: %d  samples: %d  batch size: %d  batches: %d\n",
		len(files), total, batchSize, total/batchSize)
	return errors.Join(errs...)
}

func formatShapes(shapes []types.Shape) string {
	if len(shapes) == 0 {
		return "-"
	}
	s := ""
	for i, sh := range shapes {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprint([]int(sh))
	}
	return s
}
