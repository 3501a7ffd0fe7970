package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/skyfell/reaper/config"
	"github.com/skyfell/reaper/engine"
	"github.com/skyfell/reaper/journal"
	"github.com/skyfell/reaper/policy"
	"github.com/skyfell/reaper/report"
	"github.com/skyfell/reaper/telemetry"
)

var (
	nukeRegions        string
	nukeInclude        string
	nukeExclude        string
	nukeOlderThan      string
	nukeRequiredTags   string
	nukeDryRun         bool
	nukeOutput         string
	nukeMaxConcurrency int
	nukeTimeout        time.Duration
)

// nukeCmd represents the nuke command
var nukeCmd = &cobra.Command{
	Use:   "nuke",
	Short: "Delete matching resources across regions",
	Long: `Enumerate every supported service in the configured regions, apply
the include/exclude, required-tag, and age filters, and delete what
remains. Deletion order follows service precedence so dependents go
before their dependencies.

Resources carrying a required tag are never deleted. Resources younger
than --older-than are never deleted. Both protections apply per
resource, not per service.`,
	Example: `  reaper nuke --regions us-east-1 --older-than 7d
  reaper nuke --regions us-east-1,eu-west-1 --include ec2,ebs
  reaper nuke --required-tags keep=true --older-than 2w
  reaper nuke --dry-run --output json`,
	RunE: runNuke,
}

func init() {
	rootCmd.AddCommand(nukeCmd)

	nukeCmd.Flags().StringVar(&nukeRegions, "regions", "", "Comma-separated AWS regions to sweep")
	nukeCmd.Flags().StringVar(&nukeInclude, "include", "", "Only these services (comma-separated)")
	nukeCmd.Flags().StringVar(&nukeExclude, "exclude", "", "Skip these services (comma-separated)")
	nukeCmd.Flags().StringVar(&nukeOlderThan, "older-than", "", "Only delete resources older than this (e.g. 36h, 7d, 2w)")
	nukeCmd.Flags().StringVar(&nukeRequiredTags, "required-tags", "", "key=value pairs that exempt a resource (comma-separated)")
	nukeCmd.Flags().BoolVar(&nukeDryRun, "dry-run", false, "Report what would be deleted without deleting")
	nukeCmd.Flags().StringVarP(&nukeOutput, "output", "o", "table", "Output format: table, json")
	nukeCmd.Flags().IntVar(&nukeMaxConcurrency, "max-concurrency", 0, "Concurrent region/service pairs (0 = config default)")
	nukeCmd.Flags().DurationVar(&nukeTimeout, "timeout", 0, "Abort the run after this long (0 = no limit)")
}

func runNuke(cmd *cobra.Command, args []string) error {
	cfg, err := buildRunConfig(cmd)
	if err != nil {
		return err
	}
	return executeRun(cfg, nukeOutput)
}

// buildRunConfig layers nuke flags over the file or environment config.
func buildRunConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("regions") {
		cfg.Regions = config.SplitList(nukeRegions)
	}
	if flags.Changed("include") {
		cfg.Include, err = config.ParseServiceList(nukeInclude)
		if err != nil {
			return config.Config{}, err
		}
	}
	if flags.Changed("exclude") {
		cfg.Exclude, err = config.ParseServiceList(nukeExclude)
		if err != nil {
			return config.Config{}, err
		}
	}
	if flags.Changed("older-than") {
		cfg.OlderThan, err = config.ParseDuration(nukeOlderThan)
		if err != nil {
			return config.Config{}, err
		}
	}
	if flags.Changed("required-tags") {
		cfg.RequiredTags, err = config.ParseTagList(nukeRequiredTags)
		if err != nil {
			return config.Config{}, err
		}
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = nukeDryRun
	}
	if flags.Changed("max-concurrency") {
		cfg.MaxConcurrency = nukeMaxConcurrency
	}
	if flags.Changed("timeout") {
		cfg.RunTimeout = nukeTimeout
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// executeRun drives one full sweep and renders the report.
func executeRun(cfg config.Config, output string) error {
	if output != "table" && output != "json" {
		return fmt.Errorf("invalid output format: %s (must be table or json)", output)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := telemetry.NewLogger("reaper")

	policies := policy.NewEngine(logger)
	if cfg.PolicyDir != "" {
		if err := policies.LoadDir(ctx, cfg.PolicyDir); err != nil {
			return err
		}
	}

	eng := engine.New(cfg, logger, engine.WithPolicyEngine(policies))
	rpt, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	recordRun(logger, cfg, rpt)

	if output == "json" {
		if err := rpt.WriteJSON(os.Stdout); err != nil {
			return err
		}
	} else {
		if err := rpt.WriteTable(os.Stdout); err != nil {
			return err
		}
	}

	if !rpt.Clean() {
		s := rpt.Summarize()
		return fmt.Errorf("run finished with %d failed deletes and %d errored pairs", s.Failed, s.PairsFailed)
	}
	return nil
}

// recordRun archives the report. Archiving failure is logged, not
// fatal; the run itself already happened.
func recordRun(logger zerolog.Logger, cfg config.Config, rpt *report.Report) {
	if cfg.JournalPath == "" {
		return
	}

	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.JournalPath).Msg("failed to open run journal")
		return
	}
	defer j.Close()

	if err := j.Record(rpt); err != nil {
		logger.Warn().Err(err).Msg("failed to archive run report")
	}
}
