package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"neuroflow/internal/backend"
	"neuroflow/internal/batch"
	"neuroflow/internal/config"
	"neuroflow/internal/report"
	"neuroflow/internal/session"
	"neuroflow/internal/worker"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Batch processing over recording sets",
	}

	batchCmd.AddCommand(newBatchRunCommand(ctx))
	batchCmd.AddCommand(newBatchReportCommand())

	return batchCmd
}

func newBatchRunCommand(ctx *commandContext) *cobra.Command {
	var (
		outputDir   string
		raw         bool
		low         float64
		high        float64
		notch       float64
		components  int
		exclude     []int
		interpolate bool
		label       string
		tmin        float64
		tmax        float64
		noExport    bool
	)

	cmd := &cobra.Command{
		Use:   "run <recordings...>",
		Short: "Process a set of recordings with a shared stage configuration",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorker(ctx, func(cfg *config.Config, w *worker.Worker) error {
				spec := &batch.JobSpec{
					Inputs:         args,
					OutputDir:      outputDir,
					InterpolateBad: interpolate,
					Export:         !noExport,
				}
				if !raw {
					spec.Filter = &backend.FilterParams{LowHz: low, HighHz: high, NotchHz: notch}
				}
				if components > 0 {
					spec.Decomposition = &backend.DecompositionParams{
						Components: components,
						HighpassHz: cfg.Pipeline.DecompositionHighpassHz,
					}
					spec.Exclude = exclude
				}
				if strings.TrimSpace(label) != "" {
					spec.Segment = &backend.SegmentParams{
						Label:    label,
						TMin:     tmin,
						TMax:     tmax,
						Baseline: cfg.Pipeline.EpochBaselineToZero,
					}
				}

				out := cmd.OutOrStdout()
				results, err := runSequence(out, w, []worker.Request{{Op: session.OpRunBatch, Batch: spec}})
				if err != nil {
					return err
				}
				if s := results[0].BatchSummary; s != nil && s.SetupError != "" {
					return fmt.Errorf("batch setup failed: %s", s.SetupError)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for processed recordings and the results database")
	_ = cmd.MarkFlagRequired("output")
	cmd.Flags().BoolVar(&raw, "raw", false, "Skip the filter stage")
	cmd.Flags().Float64Var(&low, "low", 1.0, "Band-pass low edge in Hz")
	cmd.Flags().Float64Var(&high, "high", 40.0, "Band-pass high edge in Hz")
	cmd.Flags().Float64Var(&notch, "notch", 50.0, "Notch frequency in Hz (0 disables)")
	cmd.Flags().IntVar(&components, "components", 0, "Fit a decomposition with this many components (0 skips)")
	cmd.Flags().IntSliceVar(&exclude, "exclude", nil, "Component indices to remove after fitting")
	cmd.Flags().BoolVar(&interpolate, "interpolate", false, "Interpolate channels marked bad in each recording")
	cmd.Flags().StringVar(&label, "label", "", "Trigger label to segment around (skips segmentation when empty)")
	cmd.Flags().Float64Var(&tmin, "tmin", -0.2, "Epoch window start in seconds")
	cmd.Flags().Float64Var(&tmax, "tmax", 0.5, "Epoch window end in seconds")
	cmd.Flags().BoolVar(&noExport, "no-export", false, "Skip writing processed recordings")
	return cmd
}

func newBatchReportCommand() *cobra.Command {
	var jobPrefix string

	cmd := &cobra.Command{
		Use:         "report <output-dir>",
		Short:       "Show persisted results of previous batch runs",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := batch.OpenStore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if strings.TrimSpace(jobPrefix) != "" {
				return printJobItems(cmd.Context(), out, store, jobPrefix)
			}

			jobs, err := store.Jobs(cmd.Context())
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No batch runs recorded")
				return nil
			}
			fmt.Fprintln(out, report.JobsTable(jobs, report.Colorize(out)))
			return nil
		},
	}

	cmd.Flags().StringVar(&jobPrefix, "job", "", "Show per-item outcomes for the job matching this ID prefix")
	return cmd
}

func printJobItems(ctx context.Context, out io.Writer, store *batch.Store, prefix string) error {
	jobs, err := store.Jobs(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if !strings.HasPrefix(job.ID, prefix) {
			continue
		}
		items, err := store.Items(ctx, job.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, report.ItemsTable(items, report.Colorize(out)))
		return nil
	}
	return fmt.Errorf("no batch job matches prefix %q", prefix)
}
