package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/opsbridge/internal/batch"
	"github.com/vietddude/opsbridge/internal/control"
	"github.com/vietddude/opsbridge/internal/core/domain"
)

var (
	batchInstance string
	batchParallel int
	transactional bool
	stopOnError   bool
)

var errBatchesFailed = errors.New("one or more batches reported failures")

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run create or update batches from JSON files",
}

var batchCreateCmd = &cobra.Command{
	Use:   "create FILE...",
	Short: "Run create batches; later operations may reference ${save_as} names",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatches(cmd, args, func(ctx context.Context, app *control.App, data []byte) (*domain.BatchResult, error) {
			req, err := batch.ParseCreateRequest(data)
			if err != nil {
				return nil, err
			}
			opts := req.Options()
			if cmd.Flags().Changed("transactional") {
				opts = append(opts, batch.Transactional(transactional))
			}
			return app.Executor().Create(ctx, instanceFor(req.Instance), req.Operations, opts...)
		})
	},
}

var batchUpdateCmd = &cobra.Command{
	Use:   "update FILE...",
	Short: "Run update batches",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatches(cmd, args, func(ctx context.Context, app *control.App, data []byte) (*domain.BatchResult, error) {
			req, err := batch.ParseUpdateRequest(data)
			if err != nil {
				return nil, err
			}
			opts := req.Options()
			if cmd.Flags().Changed("stop-on-error") {
				opts = append(opts, batch.StopOnError(stopOnError))
			}
			return app.Executor().Update(ctx, instanceFor(req.Instance), req.Updates, opts...)
		})
	},
}

func init() {
	batchCmd.PersistentFlags().StringVar(&batchInstance, "instance", "", "instance alias overriding the one in each file")
	batchCmd.PersistentFlags().IntVar(&batchParallel, "parallel", 4, "number of files processed concurrently")
	batchCreateCmd.Flags().BoolVar(&transactional, "transactional", true, "stop at the first failed operation")
	batchUpdateCmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "stop at the first failed update")

	batchCmd.AddCommand(batchCreateCmd, batchUpdateCmd)
	rootCmd.AddCommand(batchCmd)
}

func instanceFor(fromFile string) string {
	if batchInstance != "" {
		return batchInstance
	}
	return fromFile
}

type fileResult struct {
	File   string              `json:"file"`
	Result *domain.BatchResult `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
}

type batchRunner func(ctx context.Context, app *control.App, data []byte) (*domain.BatchResult, error)

// runBatches runs one batch per file. Files are independent and run
// concurrently; the session cache is shared, so an alias is authenticated
// once for all of them.
func runBatches(cmd *cobra.Command, files []string, run batchRunner) error {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := control.NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize opsbridge", "error", err)
		return err
	}
	defer func() { _ = app.Close() }()

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(batchParallel, 1))

	for i, file := range files {
		g.Go(func() error {
			results[i].File = file

			data, err := os.ReadFile(file)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}

			res, err := run(gctx, app, data)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Result = res
			return nil
		})
	}
	_ = g.Wait()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	for _, r := range results {
		if r.Error != "" || r.Result == nil || !r.Result.Success {
			return errBatchesFailed
		}
	}
	return nil
}
