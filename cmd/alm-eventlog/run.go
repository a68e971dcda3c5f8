package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vilaca/alm-eventlog/internal/api"
	"github.com/vilaca/alm-eventlog/internal/api/azure"
	"github.com/vilaca/alm-eventlog/internal/api/github"
	"github.com/vilaca/alm-eventlog/internal/api/gitlab"
	"github.com/vilaca/alm-eventlog/internal/config"
	"github.com/vilaca/alm-eventlog/internal/dashboard"
	"github.com/vilaca/alm-eventlog/internal/domain"
	"github.com/vilaca/alm-eventlog/internal/export"
	"github.com/vilaca/alm-eventlog/internal/logging"
	"github.com/vilaca/alm-eventlog/internal/service"
	"github.com/vilaca/alm-eventlog/internal/storage/postgres"
	"github.com/vilaca/alm-eventlog/internal/storage/sqlite"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, correlate and export the event log of every configured project",
	RunE:  runRun,
}

func init() {
	flags := runCmd.Flags()
	flags.Bool("production", false, "fetch every page instead of the first max-pages")
	flags.Int("max-pages", 1, "pages fetched per listing when not a production run")
	flags.Duration("api-delay", 0, "minimum delay between API calls")
	flags.String("ext-issue-regex", "", "regex whose first group is an external issue id")
	flags.String("output-dir", "out", "directory for CSV and JSON output")
	flags.String("output-suffix", "", "suffix appended to output file names")
	flags.String("sqlite", "", "also store the run in this SQLite database")
	flags.String("postgres", "", "also store the run in this PostgreSQL database (DSN)")
	flags.String("snapshot-dir", "", "save fetched entities per project as JSON snapshots")
	flags.Bool("offline", false, "replay snapshots from snapshot-dir instead of calling the APIs")

	for key, flag := range map[string]string{
		"production_run":  "production",
		"max_pages":       "max-pages",
		"api_delay":       "api-delay",
		"ext_issue_regex": "ext-issue-regex",
		"output_dir":      "output-dir",
		"output_suffix":   "output-suffix",
		"sqlite_path":     "sqlite",
		"postgres_dsn":    "postgres",
		"snapshot_dir":    "snapshot-dir",
		"offline":         "offline",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	logger := logging.NewStdLogger(cfg.Verbose)

	svc, targets, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		logger.Warnf("no ALM platforms configured, set ALM_GITLAB_TOKEN, ALM_GITHUB_TOKEN or ALM_AZURE_TOKEN with their projects")
		return nil
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sinks, closeSinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	out, err := svc.Run(ctx, targets)
	if err != nil {
		return err
	}
	if err := svc.Publish(ctx, out, sinks...); err != nil {
		return err
	}
	if len(out.Failed) > 0 {
		return fmt.Errorf("%d of %d projects failed", len(out.Failed), len(targets))
	}
	return nil
}

// buildService wires up all sources and returns the service with its targets.
// This is the composition root where all dependencies are created and injected.
func buildService(cfg *config.Config, logger *logging.StdLogger) (*service.EventLogService, []service.Target, error) {
	pattern, err := cfg.ExtIssuePattern()
	if err != nil {
		return nil, nil, err
	}
	prefixes, err := loadPrefixes(cfg)
	if err != nil {
		return nil, nil, err
	}

	svc := service.NewEventLogService(service.Options{
		Prefixes:        prefixes,
		ExtIssuePattern: pattern,
	}, logger)

	if cfg.SnapshotDir != "" {
		svc.UseSnapshots(service.NewFileCache(cfg.SnapshotDir, logger), cfg.Offline)
	} else if cfg.Offline {
		return nil, nil, fmt.Errorf("offline replay needs a snapshot directory")
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second, // Set reasonable timeout for API requests
	}
	clientConfig := func(baseURL, token string) api.ClientConfig {
		return api.ClientConfig{
			BaseURL:  baseURL,
			Token:    token,
			MaxPages: cfg.PageLimit(),
			APIDelay: cfg.APIDelay,
			Logger:   logger,
		}
	}

	var targets []service.Target
	add := func(platform string, projects []string) {
		for _, p := range projects {
			targets = append(targets, service.Target{Platform: platform, Project: p})
		}
		logger.Infof("%s integration enabled: %d projects", platform, len(projects))
	}

	if cfg.HasGitLabConfig() {
		svc.RegisterSource(gitlab.NewClient(clientConfig(cfg.GitLabURL, cfg.GitLabToken), httpClient))
		add(domain.PlatformGitLab, cfg.GetGitLabProjects())
	}
	if cfg.HasGitHubConfig() {
		svc.RegisterSource(github.NewClient(clientConfig(cfg.GitHubURL, cfg.GitHubToken), httpClient))
		add(domain.PlatformGitHub, cfg.GetGitHubRepos())
	}
	if cfg.HasAzureConfig() {
		svc.RegisterSource(azure.NewClient(clientConfig(cfg.AzureURL, cfg.AzureToken), httpClient))
		add(domain.PlatformAzure, cfg.GetAzureProjects())
	}

	return svc, targets, nil
}

// buildSinks opens every configured output. The returned func closes the
// database connections.
func buildSinks(ctx context.Context, cfg *config.Config, logger *logging.StdLogger) ([]service.Sink, func(), error) {
	sinks := []service.Sink{
		export.NewFileExporter(cfg.OutputDir, cfg.OutputSuffix, cfg.UserDump, logger),
		dashboard.NewReportWriter(cfg.OutputDir, cfg.OutputSuffix),
	}
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { store.Close() })
		sinks = append(sinks, store)
		logger.Infof("storing runs in SQLite database %s", cfg.SQLitePath)
	}

	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		if err := db.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, postgres.NewWriter(db))
		logger.Infof("storing runs in PostgreSQL")
	}

	return sinks, closeAll, nil
}
