package models

import "time"

// ErrorMarker replaces the provider ID in the filename of a failed job.
const ErrorMarker = "error"

// ResultsFileName is the name of the summary document written per run.
const ResultsFileName = "results.json"

// GenerationResult is the outcome of one job. It is created once and never
// mutated afterwards.
type GenerationResult struct {
	Index        int    `json:"index"`
	Pose         string `json:"pose"`
	Section      string `json:"section"`
	Filename     string `json:"filename"`
	Path         string `json:"path,omitempty"`
	Success      bool   `json:"success"`
	GenerationID string `json:"generationId,omitempty"`
	// Error is set only when Success is false.
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// RunSummary aggregates every result of a run, in job index order.
type RunSummary struct {
	RunID           string             `json:"runId"`
	Timestamp       time.Time          `json:"timestamp"`
	OutputDirectory string             `json:"outputDirectory"`
	Style           string             `json:"style,omitempty"`
	Model           string             `json:"model,omitempty"`
	Total           int                `json:"total"`
	Successful      int                `json:"successful"`
	Failed          int                `json:"failed"`
	DurationMs      int64              `json:"durationMs"`
	Results         []GenerationResult `json:"results"`
}

// NewRunSummary counts successes and failures over results. The caller is
// responsible for passing results already sorted by job index.
func NewRunSummary(runID string, ts time.Time, outputDir string, results []GenerationResult) *RunSummary {
	s := &RunSummary{
		RunID:           runID,
		Timestamp:       ts,
		OutputDirectory: outputDir,
		Total:           len(results),
		Results:         results,
	}
	for _, r := range results {
		if r.Success {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	return s
}

// Failures returns the failed results in index order.
func (s *RunSummary) Failures() []GenerationResult {
	var failed []GenerationResult
	for _, r := range s.Results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}
