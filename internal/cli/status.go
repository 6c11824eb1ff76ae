package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/opsbridge/internal/control"
	"github.com/vietddude/opsbridge/internal/infra/remote"
	"github.com/vietddude/opsbridge/internal/session"
)

var (
	probeTarget string
	recentRuns  int
)

var statusCmd = &cobra.Command{
	Use:   "status [ALIAS...]",
	Short: "Open a session to each instance and show its health",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&probeTarget, "probe-table", "sys_user", "table queried to verify each session")
	statusCmd.Flags().IntVar(&recentRuns, "runs", 10, "number of recent batch runs to list when a database is configured")
	rootCmd.AddCommand(statusCmd)
}

type probeResult struct {
	alias   string
	status  string
	latency time.Duration
	detail  string
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return err
	}

	ctx := context.Background()
	app, err := control.NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize opsbridge", "error", err)
		return err
	}
	defer func() { _ = app.Close() }()

	aliases := args
	if len(aliases) == 0 {
		aliases = knownAliases(ctx, app)
	}

	results := make([]probeResult, len(aliases))
	var g errgroup.Group
	for i, alias := range aliases {
		g.Go(func() error {
			results[i] = probe(ctx, app.Sessions(), alias)
			return nil
		})
	}
	_ = g.Wait()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ALIAS\tSTATUS\tLATENCY\tDETAIL")
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.alias, r.status, r.latency.Round(time.Millisecond), r.detail)
	}
	_ = w.Flush()

	stats := app.Sessions().Stats()
	fmt.Printf("\nsessions opened: %d, retries: %d\n", stats.Misses, stats.Retries)

	if cfg.Database.URL != "" && recentRuns > 0 {
		return printRuns(ctx, app)
	}
	return nil
}

// knownAliases lists configured instances plus those in the credential store.
func knownAliases(ctx context.Context, app *control.App) []string {
	var aliases []string
	for _, ic := range app.Config().Instances {
		aliases = append(aliases, ic.Alias)
	}

	if store, err := app.CredentialStore(); err == nil {
		creds, err := store.List(ctx)
		if err != nil {
			slog.Warn("Failed to list stored credentials", "error", err)
		}
		for _, c := range creds {
			aliases = append(aliases, c.Alias)
		}
	}

	slices.Sort(aliases)
	return slices.Compact(aliases)
}

func probe(ctx context.Context, sessions *session.Cache, alias string) probeResult {
	res := probeResult{alias: alias}

	start := time.Now()
	_, err := session.WithRetry(ctx, sessions, alias,
		func(ctx context.Context, c remote.Client) ([]remote.Record, error) {
			return c.Query(ctx, probeTarget, "", 1)
		})
	res.latency = time.Since(start)

	if err != nil {
		res.status = "error"
		res.detail = err.Error()
		return res
	}

	res.status = remote.StatusHealthy.String()
	for _, info := range sessions.Snapshot() {
		if info.Alias == alias && info.Monitor != nil {
			res.status = info.Monitor.Status.String()
			res.detail = fmt.Sprintf("requests=%d failures=%d throttled=%d",
				info.Monitor.Requests, info.Monitor.Failures, info.Monitor.ThrottleCount)
		}
	}
	return res
}

func printRuns(ctx context.Context, app *control.App) error {
	runs, err := app.Runs().ListRecent(ctx, nil, recentRuns)
	if err != nil {
		return fmt.Errorf("list batch runs: %w", err)
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "RUN\tKIND\tALIAS\tOK\tDONE\tERRORS\tSTARTED")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d/%d\t%d\t%s\n",
			r.ID, r.Kind, r.Alias, r.Success, r.Count, r.Operations, len(r.Errors),
			r.StartedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
