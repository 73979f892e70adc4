package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/pipeline"
)

var (
	enrichOutput   string
	enrichDeep     bool
	enrichSaveAs   string
	enrichRetries  int
	enrichTimeout  time.Duration
	enrichRateRPS  float64
	enrichProgress bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <leads.xlsx|leads.csv>",
	Short: "Enrich every lead in a spreadsheet and export the results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		flags := cmd.Flags()
		if flags.Changed("max-retries") {
			cfg.Pipeline.MaxRetries = enrichRetries
		}
		if flags.Changed("request-timeout") {
			cfg.Pipeline.RequestTimeout = enrichTimeout
		}
		if flags.Changed("rate-limit-rps") {
			cfg.Pipeline.RateLimitRPS = enrichRateRPS
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if enrichProgress {
			stopProgress := watchProgress(cmd.ErrOrStderr(), a.Orchestrator)
			defer stopProgress()
		}

		final, written, err := a.RunLocal(ctx, args[0], enrichOutput, enrich.ModeFor(enrichDeep))
		if err != nil {
			return err
		}

		if final.Phase == pipeline.Aborted {
			fmt.Fprintf(out, "Aborted after %d of %d leads.\n", len(final.Rows), final.Total)
		} else if s := final.Summary; s != nil {
			printSummary(out, s)
		}
		fmt.Fprintf(out, "Export written to %s\n", written)

		if enrichSaveAs != "" && final.Phase == pipeline.Completed {
			// Saving must not be cut short by the signal context.
			ws, err := a.Workspaces.Save(context.WithoutCancel(ctx), final.Rows, enrichSaveAs)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Workspace %q saved as %s\n", ws.Name, ws.ID)
		}
		return nil
	},
}

func printSummary(w io.Writer, s *pipeline.Summary) {
	fmt.Fprintf(w, "Processed %d records: %d succeeded, %d with contacts, %d errors.\n",
		s.TotalRecords, s.RecordsSuccessfullyProcessed, s.RecordsWithContacts, s.ErrorsEncountered)
	for _, d := range s.DetailedErrors {
		fmt.Fprintf(w, "  %s: %s\n", d.RecordDetail, d.Message)
	}
}

// watchProgress prints the batch status line whenever it changes.
func watchProgress(w io.Writer, o *pipeline.Orchestrator) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		t := time.NewTicker(500 * time.Millisecond)
		defer t.Stop()
		last := ""
		for {
			select {
			case <-done:
				return
			case <-t.C:
				st := o.Snapshot()
				if st.Phase != pipeline.Running || st.StatusText == last {
					continue
				}
				last = st.StatusText
				fmt.Fprintf(w, "[%3d%%] %s (about %ds left) %s\n", st.Progress, st.StatusText, st.RemainingSeconds, st.Phrase)
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

func init() {
	enrichCmd.Flags().StringVarP(&enrichOutput, "output", "o", "", "export path, .xlsx or .csv (default Zuno_<input>.xlsx next to the input)")
	enrichCmd.Flags().BoolVar(&enrichDeep, "deep", false, "use the deep research prompt")
	enrichCmd.Flags().StringVar(&enrichSaveAs, "save", "", "save the completed results as a workspace with this name")
	enrichCmd.Flags().IntVar(&enrichRetries, "max-retries", 0, "retries per lead for transient failures (default from config)")
	enrichCmd.Flags().DurationVar(&enrichTimeout, "request-timeout", 0, "per-lead timeout, 0 for none (default from config)")
	enrichCmd.Flags().Float64Var(&enrichRateRPS, "rate-limit-rps", 0, "pace calls to this many per second, 0 disables (default from config)")
	enrichCmd.Flags().BoolVar(&enrichProgress, "progress", true, "print progress to stderr")
	rootCmd.AddCommand(enrichCmd)
}
