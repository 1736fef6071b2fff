package main

import (
	"context"
	"fmt"
	"io"

	"neuroflow/internal/backend/memdsp"
	"neuroflow/internal/batch"
	"neuroflow/internal/config"
	"neuroflow/internal/report"
	"neuroflow/internal/worker"
)

// withWorker builds a worker over the in-memory engine, runs fn, and shuts
// the worker down afterwards.
func withWorker(ctx *commandContext, fn func(*config.Config, *worker.Worker) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	w := worker.New(*cfg, memdsp.New(), logger)
	defer w.Close()
	return fn(cfg, w)
}

// runSequence submits requests in order and blocks until each has finished,
// echoing progress to out. It returns the completion payloads in submission
// order, stopping at the first failure.
func runSequence(out io.Writer, w *worker.Worker, reqs []worker.Request) ([]*worker.StageResult, error) {
	hub := w.Hub()
	_, cursor := hub.Tail(0)

	indexByID := make(map[string]int, len(reqs))
	for i, req := range reqs {
		id, err := w.Submit(req)
		if err != nil {
			return nil, err
		}
		indexByID[id] = i
	}

	results := make([]*worker.StageResult, len(reqs))
	remaining := len(reqs)
	for remaining > 0 {
		events, next, err := hub.Fetch(context.Background(), cursor, 0, true)
		if err != nil {
			return nil, err
		}
		if first := hub.FirstSequence(); first > cursor+1 {
			fmt.Fprintf(out, "  (%d events dropped from a full buffer)\n", first-cursor-1)
		}
		for _, evt := range events {
			idx, mine := indexByID[evt.CorrelationID]
			if !mine {
				continue
			}
			switch evt.Kind {
			case worker.EventBatchProgress:
				printBatchProgress(out, evt.BatchProgress)
			case worker.EventBatchSummary:
				fmt.Fprintln(out, report.SummaryLine(*evt.BatchSummary))
			case worker.EventError:
				return nil, fmt.Errorf("%s: %s", report.OpLabel(evt.Op), evt.Error.Message)
			case worker.EventStageCompleted:
				results[idx] = evt.Result
				remaining--
				label := evt.Result.Label
				if label == "" {
					label = "done"
				}
				fmt.Fprintf(out, "%-20s %s\n", report.OpLabel(evt.Op), label)
			}
		}
		cursor = next
	}
	return results, nil
}

func printBatchProgress(out io.Writer, p *batch.Progress) {
	if p == nil {
		return
	}
	status := "ok"
	if p.Failed {
		status = "failed"
	}
	fmt.Fprintf(out, "  [%d/%d] %s %s\n", p.Index, p.Total, p.Item, status)
}
