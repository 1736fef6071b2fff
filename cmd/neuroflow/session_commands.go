package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"neuroflow/internal/persist"
	"neuroflow/internal/report"
	"neuroflow/internal/stagegate"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Saved session utilities",
	}

	sessionCmd.AddCommand(newSessionInspectCommand())

	return sessionCmd
}

func newSessionInspectCommand() *cobra.Command {
	var trust bool

	cmd := &cobra.Command{
		Use:         "inspect <session-file>",
		Short:       "Validate a saved session and print its lineage",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			confirm := func(info persist.FileInfo) bool {
				if trust {
					return true
				}
				fmt.Fprintf(out, "Open %s (%d bytes, modified %s)? [y/N]: ",
					info.Path, info.Size, info.ModTime.Local().Format("2006-01-02 15:04"))
				reader := bufio.NewReader(cmd.InOrStdin())
				line, err := reader.ReadString('\n')
				if err != nil {
					return false
				}
				return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
			}

			state, err := persist.Restore(args[0], confirm)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Session %s\n", state.ID)
			fmt.Fprintf(out, "Source:   %s\n", state.Dataset.SourcePath)
			fmt.Fprintf(out, "Channels: %d at %g Hz, %.1f s\n",
				len(state.Dataset.Channels), state.Dataset.SampleRate, state.Dataset.Duration())
			if len(state.Dataset.Markers) > 0 {
				fmt.Fprintf(out, "Markers:  %d (%s)\n",
					len(state.Dataset.Markers), strings.Join(state.Dataset.MarkerLabels(), ", "))
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Pipeline state:")
			for _, line := range report.PipelineLines(stagegate.Derive(state)) {
				fmt.Fprintln(out, line)
			}

			if len(state.Lineage) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, report.LineageTable(state.Lineage, report.Colorize(out)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&trust, "trust", false, "Open the file without asking for confirmation")
	return cmd
}
