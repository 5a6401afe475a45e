package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyberbalsa/gci-goad/internal/history"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past runs, or the targets of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			path := cfg.HistoryPath()
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(cmd.OutOrStdout(), "No run history at %s\n", path)
				return nil
			}

			db, err := history.Open(path)
			if err != nil {
				return err
			}
			defer db.Close()

			if len(args) == 1 {
				return showRun(cmd, db, args[0])
			}
			return listRuns(cmd, db, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")

	return cmd
}

func listRuns(cmd *cobra.Command, db *history.DB, limit int) error {
	runs, err := db.ListRuns(limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tPROVIDER\tTARGETS\tSUCCESS\tFAILED\tTIMEOUT\tERROR\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), runStatusText(r),
			r.Provider, r.Total, r.Success, r.Failed, r.Timeout, r.Error,
			r.Duration().Round(time.Second))
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, db *history.DB, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	targets, err := db.ListTargets(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:         %s\n", run.ID)
	fmt.Fprintf(out, "Status:      %s\n", runStatusText(*run))
	fmt.Fprintf(out, "Provider:    %s\n", run.Provider)
	fmt.Fprintf(out, "Started:     %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Duration:    %s\n", run.Duration().Round(time.Second))
	fmt.Fprintf(out, "Concurrency: %d, up to %d attempt(s)\n", run.Concurrency, run.MaxAttempts)
	fmt.Fprintf(out, "Attempts:    %d\n", run.TotalAttempts)
	if run.LogDir != "" {
		fmt.Fprintf(out, "Logs:        %s\n", run.LogDir)
	}

	if len(targets) == 0 {
		return nil
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tNAME\tADDRESS\tSTATUS\tATTEMPTS\tDURATION\tERROR")
	for _, t := range targets {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			t.GroupID, t.Name, t.Address, t.Status, t.Attempts,
			t.Duration.Round(time.Second), t.ErrorPreview)
	}
	return w.Flush()
}

func runStatusText(r history.RunRecord) string {
	if r.Status == history.RunStatusAborted && r.AbortedStage != "" {
		return fmt.Sprintf("%s (%s)", r.Status, r.AbortedStage)
	}
	return string(r.Status)
}
