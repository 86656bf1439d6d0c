package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/semmodel/dsl"
	"github.com/c360studio/semmodel/source"
	"github.com/c360studio/semmodel/workflow"
)

// modelSuffix replaces the extension of a requirements file to name its model.
const modelSuffix = ".model.json"

func generateCmd(flags *globalFlags) *cobra.Command {
	var (
		output   string
		name     string
		toStdout bool
	)

	cmd := &cobra.Command{
		Use:   "generate <file|dir|glob>...",
		Short: "Generate domain models from requirements documents",
		Long: `Generate runs the modeling workflow once per input document.

Inputs may be files, directories (every .md, .txt and .html file below them)
or doublestar globs such as "reqs/**/*.md". Each model is written beside its
source as <name>.model.json, or into store.output_dir when configured.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := source.Expand(args)
			if err != nil {
				return err
			}
			if output != "" && len(paths) > 1 {
				return fmt.Errorf("--output needs exactly one input, got %d", len(paths))
			}

			a, err := newApp(flags, appOptions{controller: true})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var failed []string
			for _, path := range paths {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				dest := output
				if dest == "" && !toStdout {
					dest = modelPath(path, a.cfg.Store.OutputDir)
				}
				res, err := generateOne(ctx, a.controller, path, name, dest)
				if err != nil {
					a.logger.Error("Generate failed", "source", path, "error", err)
					failed = append(failed, path)
					continue
				}
				if toStdout {
					if err := writeModel(cmd.OutOrStdout(), res.Model); err != nil {
						return err
					}
					continue
				}
				printSummary(cmd.OutOrStdout(), path, dest, res)
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d inputs failed: %s", len(failed), len(paths), strings.Join(failed, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Model output path (single input only)")
	cmd.Flags().StringVar(&name, "name", "", "Model name (defaults to the use case diagram name)")
	cmd.Flags().BoolVar(&toStdout, "print", false, "Write the model JSON to stdout instead of a file")
	return cmd
}

// generateOne loads one document, runs the workflow and saves the model to
// dest when dest is non-empty.
func generateOne(ctx context.Context, runner *workflow.Controller, path, name, dest string) (*workflow.Result, error) {
	doc, err := source.Load(path)
	if err != nil {
		return nil, err
	}

	res, err := runner.Run(ctx, documentRequest(doc, name))
	if err != nil {
		var stageErr *workflow.StageError
		if errors.As(err, &stageErr) && stageErr.Raw != "" {
			return nil, fmt.Errorf("%w (model output: %s)", err, truncate(stageErr.Raw, 200))
		}
		return nil, err
	}

	if dest != "" {
		if err := dsl.Save(dest, res.Model); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// documentRequest builds the workflow request for a document. Frontmatter
// becomes model metadata.
func documentRequest(doc *source.Document, name string) workflow.Request {
	meta := make(map[string]any, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta["document"] = doc.Name
	meta["content_hash"] = doc.Hash

	return workflow.Request{
		Name:         name,
		Requirements: doc.Text,
		Source:       doc.Path,
		Metadata:     meta,
	}
}

// modelPath returns where the model for src is written: beside it, or in
// outDir when set.
func modelPath(src, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + modelSuffix
	if outDir != "" {
		return filepath.Join(outDir, base)
	}
	return filepath.Join(filepath.Dir(src), base)
}

func writeModel(w io.Writer, m *dsl.DomainModel) error {
	data, err := dsl.Marshal(m)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printSummary(w io.Writer, src, dest string, res *workflow.Result) {
	status := string(res.Termination)
	if res.Caveat != workflow.CaveatNone {
		status += " (" + string(res.Caveat) + ")"
	}
	fmt.Fprintf(w, "%s -> %s\n", src, dest)
	fmt.Fprintf(w, "  run:        %s\n", res.RunID)
	fmt.Fprintf(w, "  status:     %s\n", status)
	fmt.Fprintf(w, "  iterations: %d (validate %d, improve %d)\n", res.Iterations, res.ValidateCalls, res.ImproveCalls)
	if res.Reason != "" {
		fmt.Fprintf(w, "  reason:     %s\n", truncate(res.Reason, 200))
	}
	if m := res.Model; m != nil {
		fmt.Fprintf(w, "  model:      %s: %d use cases, %d classes, %d sequences, %d constraints\n",
			m.Name,
			len(m.UseCaseDiagram.UseCases),
			len(m.ClassDiagram.Classes),
			len(m.SequenceDiagrams),
			len(m.Constraints))
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
