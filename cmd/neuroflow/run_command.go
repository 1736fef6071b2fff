package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"neuroflow/internal/backend"
	"neuroflow/internal/config"
	"neuroflow/internal/report"
	"neuroflow/internal/session"
	"neuroflow/internal/worker"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		raw         bool
		label       string
		tmin        float64
		tmax        float64
		average     bool
		saveSession bool
	)

	cmd := &cobra.Command{
		Use:   "run <recording>",
		Short: "Run the standard pipeline on a single recording",
		Long: "Loads a recording and applies the configured pipeline: band-pass and " +
			"notch filtering, optional epoch segmentation around a trigger label, and " +
			"averaging. Stage parameters default to the [pipeline] config section.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorker(ctx, func(cfg *config.Config, w *worker.Worker) error {
				reqs := []worker.Request{{Op: session.OpLoad, Path: args[0]}}
				if !raw {
					reqs = append(reqs, worker.Request{
						Op: session.OpFilter,
						Filter: backend.FilterParams{
							LowHz:   cfg.Pipeline.FilterLowHz,
							HighHz:  cfg.Pipeline.FilterHighHz,
							NotchHz: cfg.Pipeline.NotchHz,
						},
					})
				}
				if strings.TrimSpace(label) != "" {
					reqs = append(reqs, worker.Request{
						Op: session.OpSegment,
						Segment: backend.SegmentParams{
							Label:    label,
							TMin:     tmin,
							TMax:     tmax,
							Baseline: cfg.Pipeline.EpochBaselineToZero,
						},
					})
					if average {
						reqs = append(reqs, worker.Request{Op: session.OpAverage})
					}
				}
				if saveSession {
					reqs = append(reqs, worker.Request{Op: session.OpSaveSession})
				}

				out := cmd.OutOrStdout()
				results, err := runSequence(out, w, reqs)
				if err != nil {
					return err
				}

				last := results[len(results)-1]
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Pipeline state:")
				for _, line := range report.PipelineLines(last.Derived) {
					fmt.Fprintln(out, line)
				}
				if saveSession && last.SavedPath != "" {
					fmt.Fprintf(out, "\nSession saved to %s\n", last.SavedPath)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Skip the filter stage")
	cmd.Flags().StringVar(&label, "label", "", "Trigger label to segment around (skips segmentation when empty)")
	cmd.Flags().Float64Var(&tmin, "tmin", -0.2, "Epoch window start relative to the trigger, in seconds")
	cmd.Flags().Float64Var(&tmax, "tmax", 0.5, "Epoch window end relative to the trigger, in seconds")
	cmd.Flags().BoolVar(&average, "average", true, "Average epochs after segmentation")
	cmd.Flags().BoolVar(&saveSession, "save-session", false, "Save the session to the session directory afterwards")
	return cmd
}
