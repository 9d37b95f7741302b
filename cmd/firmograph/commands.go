package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Firmograph/Firmograph/internal/buildinfo"
	"github.com/Firmograph/Firmograph/internal/config"
	"github.com/Firmograph/Firmograph/internal/export"
	"github.com/Firmograph/Firmograph/internal/model"
	"github.com/Firmograph/Firmograph/internal/orchestrator"
	"github.com/Firmograph/Firmograph/internal/store"
)

const dbFile = "firmograph.db"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "firmograph",
		Short:         "Legal-entity website crawler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newCrawlCmd(),
		newEnqueueCmd(),
		newExportCmd(),
		newResetCmd(),
		newStatsCmd(),
		newVersionCmd(),
	)
	return root
}

func loadConfig() (*config.EnvConfig, error) {
	cfg, err := config.LoadEnvConfig()
	if err != nil {
		return nil, configError(err)
	}
	return cfg, nil
}

func openStore(cfg *config.EnvConfig) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, storageError(fmt.Errorf("data dir: %w", err))
	}
	st, err := store.Open(filepath.Join(cfg.DataDir, dbFile))
	if err != nil {
		return nil, storageError(err)
	}
	return st, nil
}

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Work the queue until it drains or a stop is requested",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			orch, err := orchestrator.New(cfg, st, nil)
			if err != nil {
				return configError(err)
			}

			var sched *export.Scheduler
			if cfg.ExportSchedule != "" {
				sched, err = export.NewScheduler(cfg.ExportSchedule, cfg.ExportDir, orch.RunID(), st, export.Options{
					Profile: cfg.ExportProfile,
					JSONL:   cfg.ExportJSONL,
				})
				if err != nil {
					return configError(err)
				}
				sched.Start()
				defer sched.Stop()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if code := orch.Run(ctx); code != orchestrator.ExitOK {
				return &exitError{code: code, err: fmt.Errorf("crawl halted with exit code %d", code)}
			}
			return nil
		},
	}
}

func newEnqueueCmd() *cobra.Command {
	var source string
	var fromFile string
	cmd := &cobra.Command{
		Use:   "enqueue [domains...]",
		Short: "Add domains to the crawl queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			domains := args
			if fromFile != "" {
				fileDomains, err := readDomainFile(fromFile)
				if err != nil {
					return err
				}
				domains = append(domains, fileDomains...)
			}
			if len(domains) == 0 {
				return fmt.Errorf("no domains given; pass them as arguments or with --file")
			}
			for _, d := range domains {
				if err := st.Enqueue(d, source); err != nil {
					return storageError(err)
				}
			}
			log.Printf("Enqueued %d domains (source %q)", len(domains), source)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "manual", "discovery source recorded on new entries")
	cmd.Flags().StringVar(&fromFile, "file", "", "file with one domain per line")
	return cmd
}

func readDomainFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var domains []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	return domains, sc.Err()
}

func newExportCmd() *cobra.Command {
	var profile string
	var jsonl bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored results to a timestamped report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if profile == "" {
				profile = cfg.ExportProfile
			}
			if profile != export.ProfileStrict && profile != export.ProfilePermissive {
				return configError(fmt.Errorf("unknown export profile %q", profile))
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			rows, err := st.Results()
			if err != nil {
				return storageError(err)
			}
			paths, err := export.Run(cfg.ExportDir, uuid.NewString(), rows, export.Options{
				Profile: profile,
				JSONL:   jsonl || cfg.ExportJSONL,
			}, time.Now())
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Println(p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "strict or permissive (default from config)")
	cmd.Flags().BoolVar(&jsonl, "jsonl", false, "also write a JSONL file")
	return cmd
}

func newResetCmd() *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Return terminal entries to PENDING for a re-crawl",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			var filter []model.Status
			for _, s := range statuses {
				filter = append(filter, model.Status(strings.ToUpper(strings.TrimSpace(s))))
			}
			n, err := st.Reset(filter)
			if err != nil {
				return storageError(err)
			}
			log.Printf("Reset %d entries to PENDING", n)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "statuses", nil,
		"terminal statuses to reset (default: all failure statuses; COMPLETED only when named)")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print queue status counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.SnapshotStats()
			if err != nil {
				return storageError(err)
			}
			keys := make([]string, 0, len(stats))
			for s := range stats {
				keys = append(keys, string(s))
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%-20s %d\n", k, stats[model.Status(k)])
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("firmograph %s (%s, built %s)\n", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)
		},
	}
}
