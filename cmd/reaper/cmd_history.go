package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/skyfell/reaper/journal"
)

// openJournal opens the configured journal, failing clearly when no
// runs have ever been recorded.
func openJournal(path string) (*journal.Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("no journal path configured")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no journal at %s, run a sweep first", path)
	}
	return journal.Open(path)
}

var (
	historyLimit int
	historyJSON  bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past runs from the journal",
	Long: `List archived run reports from the local journal, newest first.
With --json the most recent run is printed in full.`,
	Example: `  reaper history
  reaper history --limit 5
  reaper history --json`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of runs to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print the most recent run as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	jnl, err := openJournal(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer jnl.Close()

	if historyJSON {
		last, err := jnl.Last()
		if err != nil {
			return err
		}
		if last == nil {
			return fmt.Errorf("journal is empty")
		}
		return last.WriteJSON(os.Stdout)
	}

	reports, err := jnl.List(historyLimit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDURATION\tREGIONS\tDELETED\tSKIPPED\tFAILED\tDRY RUN")
	for _, rpt := range reports {
		s := rpt.Summarize()
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%t\n",
			rpt.StartedAt.Local().Format(time.RFC3339),
			rpt.FinishedAt.Sub(rpt.StartedAt).Round(time.Second),
			len(rpt.Regions), s.Deleted, s.Skipped, s.Failed, rpt.DryRun)
	}
	return tw.Flush()
}
