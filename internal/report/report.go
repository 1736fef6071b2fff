package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"neuroflow/internal/batch"
	"neuroflow/internal/session"
	"neuroflow/internal/stagegate"
)

var titleCaser = cases.Title(language.English)

// OpLabel renders an operation name for human output, e.g.
// "fit_decomposition" becomes "Fit Decomposition".
func OpLabel(op session.Operation) string {
	return titleCaser.String(strings.ReplaceAll(string(op), "_", " "))
}

// LineageTable renders the append-only lineage log of a session.
// interactive selects the terminal table style; pass Colorize(out).
func LineageTable(entries []session.LineageEntry, interactive bool) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			strconv.Itoa(entry.Ordinal),
			OpLabel(entry.Op),
			formatParams(entry.Params),
			entry.Timestamp.Local().Format("2006-01-02 15:04:05"),
		})
	}
	return renderTable(
		[]string{"#", "Operation", "Parameters", "When"},
		rows,
		[]Alignment{AlignRight, AlignLeft, AlignLeft, AlignLeft},
		interactive,
	)
}

// PipelineLines renders the derived pipeline state as one line per stage.
func PipelineLines(d stagegate.DerivedState) []string {
	row := func(label string, reached bool) string {
		mark := " "
		if reached {
			mark = "x"
		}
		return fmt.Sprintf("  [%s] %s", mark, label)
	}
	return []string{
		row("Loaded", d.Loaded),
		row("Filtered", d.Filtered),
		row("Decomposed", d.Decomposed),
		row("Cleaned", d.Cleaned),
		row("Segmented", d.Segmented),
		row("Averaged", d.Averaged),
		row("Time-Frequency", d.SpectroTemporal),
		row("Connectivity", d.Connectivity),
	}
}

// JobsTable renders the persisted batch jobs of an output directory.
func JobsTable(jobs []batch.Job, interactive bool) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		status := "finished"
		switch {
		case job.FinishedAt == nil:
			status = "interrupted"
		case job.Canceled:
			status = "canceled"
		case job.Failed > 0:
			status = fmt.Sprintf("%d failed", job.Failed)
		}
		rows = append(rows, []string{
			shortID(job.ID),
			strconv.Itoa(job.Total),
			strconv.Itoa(job.Completed),
			strconv.Itoa(job.Failed),
			strconv.Itoa(job.Skipped),
			status,
			job.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return renderTable(
		[]string{"Job", "Total", "Done", "Failed", "Skipped", "Status", "Started"},
		rows,
		[]Alignment{AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight, AlignLeft, AlignLeft},
		interactive,
	)
}

// ItemsTable renders per-item outcomes of one batch job.
func ItemsTable(items []batch.Item, interactive bool) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.Itoa(item.Index),
			item.Input,
			string(item.Status),
			itemDuration(item),
			item.Error,
		})
	}
	return renderTable(
		[]string{"#", "Input", "Status", "Duration", "Error"},
		rows,
		[]Alignment{AlignRight, AlignLeft, AlignLeft, AlignRight, AlignLeft},
		interactive,
	)
}

// SummaryLine condenses a terminal batch summary to one line.
func SummaryLine(s batch.Summary) string {
	if s.SetupError != "" {
		return fmt.Sprintf("setup failed: %s", s.SetupError)
	}
	line := fmt.Sprintf("%d/%d completed, %d failed, %d skipped", s.Completed, s.Total, s.Failed, s.Skipped)
	if s.Canceled {
		line += " (canceled)"
	}
	return line
}

func formatParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, " ")
}

func itemDuration(item batch.Item) string {
	if item.StartedAt == nil || item.FinishedAt == nil {
		return ""
	}
	d := item.FinishedAt.Sub(*item.StartedAt)
	if d < 0 {
		return ""
	}
	return d.Round(time.Millisecond).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
