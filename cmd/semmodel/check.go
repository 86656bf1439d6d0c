package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/c360studio/semmodel/dsl"
	"github.com/c360studio/semmodel/workflow/validation"
)

func validateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <model.json>...",
		Short: "Check saved models for duplicate names and dangling references",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invalid := 0
			for _, path := range args {
				m, err := dsl.Load(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				report := validation.ValidateModel(m)
				if !report.IsValid {
					invalid++
				}
				if asJSON {
					if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
						return err
					}
					continue
				}
				printReport(cmd.OutOrStdout(), path, report)
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d models have errors", invalid, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print reports as JSON")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <model.json>...",
		Short: "Report element counts and complexity of saved models",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				m, err := dsl.Load(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				c := dsl.AnalyzeComplexity(m)
				if asJSON {
					if err := writeJSON(cmd.OutOrStdout(), c); err != nil {
						return err
					}
					continue
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%s (%s)\n", path, m.Name)
				fmt.Fprintf(w, "  use cases:     %d\n", c.UseCases)
				fmt.Fprintf(w, "  actors:        %d\n", c.Actors)
				fmt.Fprintf(w, "  classes:       %d\n", c.Classes)
				fmt.Fprintf(w, "  relationships: %d\n", c.Relationships)
				fmt.Fprintf(w, "  constraints:   %d\n", c.Constraints)
				fmt.Fprintf(w, "  complexity:    %.1f (%s)\n", c.Score, c.Level)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func printReport(w io.Writer, path string, r *validation.Report) {
	status := "valid"
	if !r.IsValid {
		status = "invalid"
	}
	fmt.Fprintf(w, "%s: %s (%d actors, %d use cases, %d classes)\n", path, status, r.ActorCount, r.UseCaseCount, r.ClassCount)
	for _, issue := range r.Errors {
		fmt.Fprintf(w, "  error:   %s\n", issue.Message)
	}
	for _, issue := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", issue.Message)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
