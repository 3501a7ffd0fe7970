package main

import (
	"github.com/spf13/cobra"

	"github.com/skyfell/reaper/config"
)

var (
	planRegions      string
	planInclude      string
	planExclude      string
	planOlderThan    string
	planRequiredTags string
	planOutput       string
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what a nuke run would delete",
	Long: `Run the full enumerate-and-filter pipeline without deleting
anything. Every resource shows up in the report with the outcome it
would get from an actual run.`,
	Example: `  reaper plan --regions us-east-1 --older-than 7d
  reaper plan --regions us-east-1 --include ec2,ebs --output json`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVar(&planRegions, "regions", "", "Comma-separated AWS regions to sweep")
	planCmd.Flags().StringVar(&planInclude, "include", "", "Only these services (comma-separated)")
	planCmd.Flags().StringVar(&planExclude, "exclude", "", "Skip these services (comma-separated)")
	planCmd.Flags().StringVar(&planOlderThan, "older-than", "", "Only flag resources older than this (e.g. 36h, 7d, 2w)")
	planCmd.Flags().StringVar(&planRequiredTags, "required-tags", "", "key=value pairs that exempt a resource (comma-separated)")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "table", "Output format: table, json")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("regions") {
		cfg.Regions = config.SplitList(planRegions)
	}
	if flags.Changed("include") {
		if cfg.Include, err = config.ParseServiceList(planInclude); err != nil {
			return err
		}
	}
	if flags.Changed("exclude") {
		if cfg.Exclude, err = config.ParseServiceList(planExclude); err != nil {
			return err
		}
	}
	if flags.Changed("older-than") {
		if cfg.OlderThan, err = config.ParseDuration(planOlderThan); err != nil {
			return err
		}
	}
	if flags.Changed("required-tags") {
		if cfg.RequiredTags, err = config.ParseTagList(planRequiredTags); err != nil {
			return err
		}
	}

	// A plan never deletes and never needs archiving.
	cfg.DryRun = true
	cfg.JournalPath = ""

	if err := cfg.Validate(); err != nil {
		return err
	}
	return executeRun(cfg, planOutput)
}
