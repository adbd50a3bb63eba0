package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spboyer/posegen/internal/catalog"
	"github.com/spboyer/posegen/internal/config"
	"github.com/spboyer/posegen/internal/execution"
	"github.com/spboyer/posegen/internal/hooks"
	"github.com/spboyer/posegen/internal/models"
	"github.com/spboyer/posegen/internal/naming"
	"github.com/spboyer/posegen/internal/style"
	"github.com/spboyer/posegen/internal/template"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle stage of a BatchRunner.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateDispatching
	StateCollecting
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateDispatching:
		return "dispatching"
	case StateCollecting:
		return "collecting"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// OutputDirError is returned when the run directory can't be created.
type OutputDirError struct {
	Path string
	Err  error
}

func (e *OutputDirError) Error() string {
	return fmt.Sprintf("failed to create output directory %s: %v", e.Path, e.Err)
}

func (e *OutputDirError) Unwrap() error {
	return e.Err
}

// BatchRunner generates one image per pose of a catalog
type BatchRunner struct {
	cfg    *config.RunConfig
	client execution.GenerationClient

	now      func() time.Time
	newRunID func() string

	jobFilters []string

	// Lifecycle hooks
	hooks      hooks.HooksConfig
	hookRunner *hooks.Runner

	stateMu sync.Mutex
	state   State

	// Progress tracking
	progressMu sync.Mutex
	listeners  []ProgressListener

	// deliverMu serializes listener calls coming from concurrent jobs.
	deliverMu sync.Mutex
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventRunStart    EventType = "run_start"
	EventJobStart    EventType = "job_start"
	EventJobAccepted EventType = "job_accepted"
	EventJobComplete EventType = "job_complete"
	EventRunComplete EventType = "run_complete"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType  EventType
	JobIndex   int
	TotalJobs  int
	PoseName   string
	ProviderID string
	Filename   string
	Success    bool
	Error      string
	DurationMs int64
	// OutputDirectory is set on run events.
	OutputDirectory string
}

// RunnerOption configures a BatchRunner.
type RunnerOption func(*BatchRunner)

// WithClock replaces time.Now, which names the run directory and stamps the summary.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *BatchRunner) {
		r.now = now
	}
}

// WithRunIDGenerator replaces the random run ID.
func WithRunIDGenerator(fn func() string) RunnerOption {
	return func(r *BatchRunner) {
		r.newRunID = fn
	}
}

// WithJobFilters sets glob patterns used to select jobs. See FilterJobs.
func WithJobFilters(patterns ...string) RunnerOption {
	return func(r *BatchRunner) {
		r.jobFilters = patterns
	}
}

// WithHooks runs the before_run and after_run commands of cfg with hookRunner.
func WithHooks(cfg hooks.HooksConfig, hookRunner *hooks.Runner) RunnerOption {
	return func(r *BatchRunner) {
		r.hooks = cfg
		r.hookRunner = hookRunner
	}
}

// NewBatchRunner creates a new batch runner
func NewBatchRunner(cfg *config.RunConfig, client execution.GenerationClient, opts ...RunnerOption) *BatchRunner {
	r := &BatchRunner{
		cfg:       cfg,
		client:    client,
		now:       time.Now,
		newRunID:  uuid.NewString,
		listeners: []ProgressListener{},
	}
	for _, o := range opts {
		o(r)
	}
	if r.hookRunner == nil {
		r.hookRunner = &hooks.Runner{}
	}
	return r
}

// OnProgress registers a progress listener
func (r *BatchRunner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *BatchRunner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()
	for _, listener := range listeners {
		listener(event)
	}
}

// State returns the current lifecycle stage.
func (r *BatchRunner) State() State {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

func (r *BatchRunner) setState(s State) {
	r.stateMu.Lock()
	r.state = s
	r.stateMu.Unlock()
	slog.Debug("Runner state changed", "state", s)
}

// runInputs is everything read during loading. It's shared read-only by all jobs.
type runInputs struct {
	jobs     []models.Job
	template string
	style    *style.Image
	runDir   string
}

// Run executes the whole batch. Errors returned here are fatal and happen
// before any job is dispatched; per-job failures are recorded in the summary.
func (r *BatchRunner) Run(ctx context.Context) (*models.RunSummary, error) {
	if r.State() != StateIdle {
		return nil, errors.New("runner has already been used")
	}

	startTime := r.now()

	r.setState(StateLoading)

	if len(r.hooks.BeforeRun) > 0 {
		if err := r.hookRunner.Execute(ctx, "before_run", r.hooks.BeforeRun); err != nil {
			return nil, fmt.Errorf("before_run hook failed: %w", err)
		}
	}

	inputs, err := r.load(startTime)
	if err != nil {
		return nil, err
	}

	r.notifyProgress(ProgressEvent{
		EventType:       EventRunStart,
		TotalJobs:       len(inputs.jobs),
		OutputDirectory: inputs.runDir,
	})

	r.setState(StateDispatching)
	results := r.dispatch(ctx, inputs)

	r.setState(StateFinalized)

	summary := models.NewRunSummary(r.newRunID(), startTime, inputs.runDir, results)
	summary.Style = r.cfg.StyleName()
	summary.Model = r.cfg.Model()
	summary.DurationMs = r.now().Sub(startTime).Milliseconds()

	if err := writeSummary(inputs.runDir, summary); err != nil {
		return summary, err
	}

	var hookErr error
	if len(r.hooks.AfterRun) > 0 {
		env := []string{
			hooks.EnvRunDir + "=" + inputs.runDir,
			hooks.EnvResultsFile + "=" + filepath.Join(inputs.runDir, models.ResultsFileName),
			fmt.Sprintf("%s=%d", hooks.EnvTotal, summary.Total),
			fmt.Sprintf("%s=%d", hooks.EnvFailed, summary.Failed),
		}
		if err := r.hookRunner.Execute(ctx, "after_run", r.hooks.AfterRun, env...); err != nil {
			hookErr = fmt.Errorf("after_run hook failed: %w", err)
		}
	}

	// run_complete is sent even when an after_run hook fails; results.json
	// is already on disk at that point.
	r.notifyProgress(ProgressEvent{
		EventType:       EventRunComplete,
		TotalJobs:       summary.Total,
		Success:         summary.Failed == 0,
		DurationMs:      summary.DurationMs,
		OutputDirectory: inputs.runDir,
	})

	return summary, hookErr
}

func (r *BatchRunner) load(startTime time.Time) (*runInputs, error) {
	if r.cfg.StylePath() == "" {
		return nil, errors.New("no style image was selected")
	}

	styleImage, err := style.Load(r.cfg.StylePath())
	if err != nil {
		return nil, err
	}

	jobs, err := catalog.Load(r.cfg.CatalogPath())
	if err != nil {
		return nil, err
	}

	jobs, err = FilterJobs(jobs, r.jobFilters)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.Load(r.cfg.TemplatePath())
	if err != nil {
		return nil, err
	}

	runDir, err := createRunDir(r.cfg.OutputRoot(), naming.RunDirName(startTime, r.cfg.StyleName()))
	if err != nil {
		return nil, err
	}

	slog.Info("Loaded batch", "jobs", len(jobs), "style", styleImage.Name, "output", runDir)

	return &runInputs{
		jobs:     jobs,
		template: tmpl,
		style:    styleImage,
		runDir:   runDir,
	}, nil
}

// createRunDir creates root if needed and a fresh run directory inside it.
// An existing run directory is an error so two runs never share output.
func createRunDir(root, name string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", &OutputDirError{Path: root, Err: err}
	}

	dir := filepath.Join(root, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", &OutputDirError{Path: dir, Err: err}
	}
	return dir, nil
}

// dispatch runs every job on a bounded pool and waits for all of them.
// Each job owns its slot in the returned slice.
func (r *BatchRunner) dispatch(ctx context.Context, inputs *runInputs) []models.GenerationResult {
	results := make([]models.GenerationResult, len(inputs.jobs))

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers())

	for i, job := range inputs.jobs {
		g.Go(func() error {
			results[i] = r.runJob(ctx, job, len(inputs.jobs), inputs)
			return nil
		})
	}

	r.setState(StateCollecting)
	_ = g.Wait()

	return results
}

func (r *BatchRunner) runJob(ctx context.Context, job models.Job, totalJobs int, inputs *runInputs) (result models.GenerationResult) {
	start := time.Now()

	r.notifyProgress(ProgressEvent{
		EventType: EventJobStart,
		JobIndex:  job.Index,
		TotalJobs: totalJobs,
		PoseName:  job.Pose.Sanskrit,
	})

	defer func() {
		if p := recover(); p != nil {
			result = r.failure(job, "", fmt.Errorf("panic: %v", p), start)
		}

		r.notifyProgress(ProgressEvent{
			EventType:  EventJobComplete,
			JobIndex:   job.Index,
			TotalJobs:  totalJobs,
			PoseName:   job.Pose.Sanskrit,
			ProviderID: result.GenerationID,
			Filename:   result.Filename,
			Success:    result.Success,
			Error:      result.Error,
			DurationMs: result.DurationMs,
		})
	}()

	prompt := template.Render(inputs.template, job.Pose)

	resp, err := r.client.Generate(ctx, &execution.GenerateRequest{
		Prompt:       prompt,
		StyleDataURL: inputs.style.DataURL(),
		OnAccepted: func(providerID string) {
			r.notifyProgress(ProgressEvent{
				EventType:  EventJobAccepted,
				JobIndex:   job.Index,
				TotalJobs:  totalJobs,
				PoseName:   job.Pose.Sanskrit,
				ProviderID: providerID,
			})
		},
	})

	if err != nil {
		var genErr *execution.GenerationError
		providerID := ""
		if errors.As(err, &genErr) {
			providerID = genErr.ProviderID
		}
		return r.failure(job, providerID, err, start)
	}

	filename, err := naming.ImageFilename(job, resp.ProviderID, r.cfg.OutputFormat())
	if err != nil {
		return r.failure(job, resp.ProviderID, err, start)
	}
	path := filepath.Join(inputs.runDir, filename)

	if err := os.WriteFile(path, resp.Image, 0o644); err != nil {
		return r.failure(job, resp.ProviderID, fmt.Errorf("failed to write image: %w", err), start)
	}

	return models.GenerationResult{
		Index:        job.Index,
		Pose:         job.Pose.Sanskrit,
		Section:      job.Section,
		Filename:     filename,
		Path:         path,
		Success:      true,
		GenerationID: resp.ProviderID,
		DurationMs:   time.Since(start).Milliseconds(),
	}
}

func (r *BatchRunner) failure(job models.Job, providerID string, err error, start time.Time) models.GenerationResult {
	slog.Error("Generation failed",
		"index", job.Index,
		"pose", job.Pose.Sanskrit,
		"providerId", providerID,
		"error", err)

	return models.GenerationResult{
		Index:        job.Index,
		Pose:         job.Pose.Sanskrit,
		Section:      job.Section,
		Filename:     naming.ErrorFilename(job, r.cfg.OutputFormat()),
		Success:      false,
		GenerationID: providerID,
		Error:        err.Error(),
		DurationMs:   time.Since(start).Milliseconds(),
	}
}

func writeSummary(runDir string, summary *models.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	path := filepath.Join(runDir, models.ResultsFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
