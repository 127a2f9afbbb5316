package main

import (
	"errors"
	"io"
	"time"

	"github.com/torosent/stampede/internal/history"
	"github.com/torosent/stampede/internal/output"
)

const historyListLimit = 20

func recordRun(path string, s output.Summary, startedAt time.Time) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Save(history.Record{
		ID:           s.RunID,
		StartedAt:    startedAt,
		Target:       s.Target,
		Duration:     s.Metrics.Duration,
		Total:        s.Metrics.Total,
		Failures:     s.Metrics.Failures,
		ErrorRate:    s.Metrics.ErrorRate,
		Iterations:   s.Metrics.Iterations,
		VUsMax:       s.Metrics.VUsMax,
		P95LatencyMs: s.Metrics.P95LatencyMs,
		P99LatencyMs: s.Metrics.P99LatencyMs,
		Passed:       s.Passed,
		AbortedBy:    s.AbortedBy,
	})
	return err
}

func listHistory(path string, w io.Writer) (int, error) {
	if path == "" {
		return exitFatal, errors.New("--history-list requires --history-file")
	}
	store, err := history.Open(path)
	if err != nil {
		return exitFatal, err
	}
	defer store.Close()

	records, err := store.List(historyListLimit)
	if err != nil {
		return exitFatal, err
	}
	if err := history.PrintList(w, records); err != nil {
		return exitFatal, err
	}
	return exitOK, nil
}
