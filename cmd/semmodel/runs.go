package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/semmodel/storage"
)

func runsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect run history",
	}
	cmd.AddCommand(runsListCmd(flags), runsShowCmd(flags))
	return cmd
}

func runsListCmd(flags *globalFlags) *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags, appOptions{store: true})
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.store.List(cmd.Context(), storage.ListOptions{Status: status, Limit: limit})
			if err != nil {
				return err
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only runs with this status (accepted_clean, accepted_with_caveat, abandoned, aborted, running)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs")
	return cmd
}

func runsShowCmd(flags *globalFlags) *cobra.Command {
	var (
		asJSON bool
		calls  bool
	)

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its stage history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, appOptions{store: true})
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var callList []storage.CallSummary
			if calls {
				if callList, err = a.store.Calls(cmd.Context(), run.ID); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if asJSON {
				if calls {
					return writeJSON(w, struct {
						*storage.Run
						Calls []storage.CallSummary `json:"calls"`
					}{run, callList})
				}
				return writeJSON(w, run)
			}
			printRun(w, run)
			if calls {
				printCalls(w, callList)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run, including its model, as JSON")
	cmd.Flags().BoolVar(&calls, "calls", false, "Include LLM calls")
	return cmd
}

func printRuns(w io.Writer, runs []storage.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tITER\tNAME\tSOURCE")
	for _, r := range runs {
		status := r.Status
		if r.Caveat != "" {
			status += "/" + r.Caveat
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), status, r.Iterations, r.Name, r.Source)
	}
	_ = tw.Flush()
}

func printRun(w io.Writer, run *storage.Run) {
	fmt.Fprintf(w, "Run:        %s\n", run.ID)
	fmt.Fprintf(w, "Source:     %s\n", run.Source)
	fmt.Fprintf(w, "Status:     %s\n", run.Status)
	if run.Caveat != "" {
		fmt.Fprintf(w, "Caveat:     %s\n", run.Caveat)
	}
	if run.Reason != "" {
		fmt.Fprintf(w, "Reason:     %s\n", truncate(run.Reason, 300))
	}
	if run.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", run.Error)
	}
	fmt.Fprintf(w, "Iterations: %d (validate %d, improve %d)\n", run.Iterations, run.ValidateCalls, run.ImproveCalls)
	fmt.Fprintf(w, "Started:    %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.CompletedAt != nil {
		fmt.Fprintf(w, "Duration:   %s\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}

	fmt.Fprintln(w, "\nStages:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, s := range run.Stages {
		detail := s.Item
		if s.Reason != "" {
			if detail != "" {
				detail += ": "
			}
			detail += truncate(s.Reason, 80)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%s\t%s\n", s.Stage, s.Outcome, s.Iteration, s.Duration.Round(time.Millisecond), detail)
	}
	_ = tw.Flush()
}

func printCalls(w io.Writer, calls []storage.CallSummary) {
	fmt.Fprintln(w, "\nLLM calls:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range calls {
		result := "ok"
		if c.Error != "" {
			result = truncate(c.Error, 60)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d+%d tok\t%dms\t%s\n",
			c.Role, c.Endpoint, c.Model, c.PromptTokens, c.CompletionTokens, c.DurationMs, result)
	}
	_ = tw.Flush()
}
