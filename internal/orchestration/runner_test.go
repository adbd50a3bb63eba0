package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spboyer/posegen/internal/catalog"
	"github.com/spboyer/posegen/internal/config"
	"github.com/spboyer/posegen/internal/execution"
	"github.com/spboyer/posegen/internal/hooks"
	"github.com/spboyer/posegen/internal/models"
	"github.com/spboyer/posegen/internal/naming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

// clientFunc adapts a function to execution.GenerationClient
type clientFunc func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error)

func (f clientFunc) Generate(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
	return f(ctx, req)
}

type fixture struct {
	catalogPath  string
	templatePath string
	stylePath    string
	outputRoot   string
}

func writeFixture(t *testing.T, catalogJSON string) fixture {
	t.Helper()
	dir := t.TempDir()

	f := fixture{
		catalogPath:  filepath.Join(dir, "poses.json"),
		templatePath: filepath.Join(dir, "prompt.txt"),
		stylePath:    filepath.Join(dir, "ink.png"),
		outputRoot:   filepath.Join(dir, "output"),
	}

	require.NoError(t, os.WriteFile(f.catalogPath, []byte(catalogJSON), 0o644))
	require.NoError(t, os.WriteFile(f.templatePath, []byte("Draw {{sanskrit}} ({{translation}})"), 0o644))
	require.NoError(t, os.WriteFile(f.stylePath, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, 0o644))
	return f
}

func (f fixture) config(opts ...config.Option) *config.RunConfig {
	opts = append([]config.Option{config.WithStyle(f.stylePath), config.WithOutputRoot(f.outputRoot)}, opts...)
	return config.NewRunConfig(f.catalogPath, f.templatePath, opts...)
}

func posesJSON(names ...string) string {
	var poses []string
	for _, n := range names {
		poses = append(poses, fmt.Sprintf(`{"sanskrit": %q, "translation": "%s Pose", "description": "d"}`, n, n))
	}
	return `{"sections": [{"name": "Main", "poses": [` + strings.Join(poses, ",") + `]}]}`
}

func newTestRunner(cfg *config.RunConfig, client execution.GenerationClient, opts ...RunnerOption) *BatchRunner {
	opts = append([]RunnerOption{
		WithClock(func() time.Time { return fixedTime }),
		WithRunIDGenerator(func() string { return "run-1" }),
	}, opts...)
	return NewBatchRunner(cfg, client, opts...)
}

func TestBatchRunner_EndToEnd(t *testing.T) {
	f := writeFixture(t, `{"sections": [{"name": "Standing", "poses": [
		{"sanskrit": "tadasana", "translation": "Mountain Pose", "description": "stand"},
		{"sanskrit": "vrksasana", "translation": "Tree Pose", "description": "balance"}
	]}]}`)

	b1 := []byte("B1")
	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		assert.True(t, strings.HasPrefix(req.StyleDataURL, "data:image/png;base64,"))
		if strings.Contains(req.Prompt, "tadasana") {
			return &execution.GenerateResponse{ProviderID: "abc", Image: b1}, nil
		}
		return nil, errors.New("network error")
	})

	runner := newTestRunner(f.config(), client)
	assert.Equal(t, StateIdle, runner.State())

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, runner.State())

	runDir := filepath.Join(f.outputRoot, "20261018093000-ink")
	assert.Equal(t, runDir, summary.OutputDirectory)

	data, err := os.ReadFile(filepath.Join(runDir, "001-tadasana-mountain-pose-abc.jpg"))
	require.NoError(t, err)
	assert.Equal(t, b1, data)

	raw, err := os.ReadFile(filepath.Join(runDir, models.ResultsFileName))
	require.NoError(t, err)

	var written models.RunSummary
	require.NoError(t, json.Unmarshal(raw, &written))

	assert.Equal(t, 2, written.Total)
	assert.Equal(t, 1, written.Successful)
	assert.Equal(t, 1, written.Failed)
	assert.Equal(t, "run-1", written.RunID)
	assert.Equal(t, "ink", written.Style)
	assert.True(t, written.Timestamp.Equal(fixedTime))
	require.Len(t, written.Results, 2)

	first := written.Results[0]
	assert.True(t, first.Success)
	assert.Equal(t, "abc", first.GenerationID)
	assert.Equal(t, "001-tadasana-mountain-pose-abc.jpg", first.Filename)

	second := written.Results[1]
	assert.False(t, second.Success)
	assert.Equal(t, "002-vrksasana-tree-pose-error.jpg", second.Filename)
	assert.True(t, strings.HasSuffix(second.Filename, "-error.jpg"))
	assert.Equal(t, "network error", second.Error)

	// no file for the failed job
	entries, err := os.ReadDir(runDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"001-tadasana-mountain-pose-abc.jpg", models.ResultsFileName}, names)
}

func TestBatchRunner_ResultsInIndexOrder(t *testing.T) {
	f := writeFixture(t, posesJSON("Alpha", "Beta", "Gamma"))

	gammaDone := make(chan struct{})
	var order []string
	var orderMu sync.Mutex

	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		var id string
		switch {
		case strings.Contains(req.Prompt, "Alpha"):
			<-gammaDone
			id = "a"
		case strings.Contains(req.Prompt, "Beta"):
			id = "b"
		default:
			defer close(gammaDone)
			id = "g"
		}

		orderMu.Lock()
		order = append(order, id)
		orderMu.Unlock()

		return &execution.GenerateResponse{ProviderID: id, Image: []byte(id)}, nil
	})

	summary, err := newTestRunner(f.config(config.WithWorkers(3)), client).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "a", order[len(order)-1], "Alpha finishes last")

	require.Len(t, summary.Results, 3)
	for i, r := range summary.Results {
		assert.Equal(t, i+1, r.Index)
	}
	assert.Equal(t, "a", summary.Results[0].GenerationID)
	assert.Equal(t, "b", summary.Results[1].GenerationID)
	assert.Equal(t, "g", summary.Results[2].GenerationID)
}

func TestBatchRunner_BoundedConcurrency(t *testing.T) {
	f := writeFixture(t, posesJSON("A", "B", "C", "D", "E", "F"))

	var inFlight, maxInFlight atomic.Int32

	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)

		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}

		time.Sleep(20 * time.Millisecond)
		return &execution.GenerateResponse{ProviderID: "x", Image: []byte("x")}, nil
	})

	summary, err := newTestRunner(f.config(config.WithWorkers(2)), client).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Successful)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(2))
}

func TestBatchRunner_PanicIsIsolated(t *testing.T) {
	f := writeFixture(t, posesJSON("Calm", "Broken", "Steady"))

	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		if strings.Contains(req.Prompt, "Broken") {
			panic("boom")
		}
		return &execution.GenerateResponse{ProviderID: "ok", Image: []byte("ok")}, nil
	})

	summary, err := newTestRunner(f.config(), client).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)

	failed := summary.Failures()
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Index)
	assert.Contains(t, failed[0].Error, "boom")
	assert.Equal(t, "002-broken-broken-pose-error.jpg", failed[0].Filename)
}

func TestBatchRunner_GenerationErrorKeepsProviderID(t *testing.T) {
	f := writeFixture(t, posesJSON("Lost"))

	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		req.OnAccepted("P9")
		return nil, &execution.GenerationError{ProviderID: "P9", Err: errors.New("prediction failed")}
	})

	summary, err := newTestRunner(f.config(), client).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, "P9", summary.Results[0].GenerationID)
	assert.Equal(t, "prediction failed", summary.Results[0].Error)
	assert.Equal(t, "001-lost-lost-pose-error.jpg", summary.Results[0].Filename)
}

func TestBatchRunner_ProgressEvents(t *testing.T) {
	f := writeFixture(t, posesJSON("One", "Two"))

	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		req.OnAccepted("id")
		if strings.Contains(req.Prompt, "Two") {
			return nil, errors.New("nope")
		}
		return &execution.GenerateResponse{ProviderID: "id", Image: []byte("x")}, nil
	})

	runner := newTestRunner(f.config(), client)

	var mu sync.Mutex
	counts := map[EventType]int{}
	var last ProgressEvent
	runner.OnProgress(func(e ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		counts[e.EventType]++
		last = e
	})

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, counts[EventRunStart])
	assert.Equal(t, 2, counts[EventJobStart])
	assert.Equal(t, 2, counts[EventJobAccepted])
	assert.Equal(t, 2, counts[EventJobComplete])
	assert.Equal(t, 1, counts[EventRunComplete])

	assert.Equal(t, EventRunComplete, last.EventType)
	assert.Equal(t, 2, last.TotalJobs)
	assert.False(t, last.Success)
}

func TestBatchRunner_JobFilters(t *testing.T) {
	f := writeFixture(t, posesJSON("Alpha", "Beta", "Gamma"))

	var calls atomic.Int32
	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		calls.Add(1)
		return &execution.GenerateResponse{ProviderID: "x", Image: []byte("x")}, nil
	})

	summary, err := newTestRunner(f.config(), client, WithJobFilters("Beta")).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "002-beta-beta-pose-x.jpg", summary.Results[0].Filename)
}

func TestBatchRunner_ExistingRunDirIsFatal(t *testing.T) {
	f := writeFixture(t, posesJSON("Alpha"))
	require.NoError(t, os.MkdirAll(filepath.Join(f.outputRoot, "20261018093000-ink"), 0o755))

	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		t.Fatal("no job should be dispatched")
		return nil, nil
	})

	_, err := newTestRunner(f.config(), client).Run(context.Background())
	require.Error(t, err)

	var dirErr *OutputDirError
	require.ErrorAs(t, err, &dirErr)
	assert.ErrorIs(t, err, os.ErrExist)
}

func TestBatchRunner_FatalLoadErrors(t *testing.T) {
	noClient := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		t.Fatal("no job should be dispatched")
		return nil, nil
	})

	t.Run("malformed catalog", func(t *testing.T) {
		f := writeFixture(t, `{"sections": [{"poses": [{"translation": "no sanskrit"}]}]}`)
		_, err := newTestRunner(f.config(), noClient).Run(context.Background())
		assert.ErrorIs(t, err, catalog.ErrMalformedCatalog)
	})

	t.Run("missing template", func(t *testing.T) {
		f := writeFixture(t, posesJSON("Alpha"))
		require.NoError(t, os.Remove(f.templatePath))
		_, err := newTestRunner(f.config(), noClient).Run(context.Background())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("missing style", func(t *testing.T) {
		f := writeFixture(t, posesJSON("Alpha"))
		require.NoError(t, os.Remove(f.stylePath))
		_, err := newTestRunner(f.config(), noClient).Run(context.Background())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("no style selected", func(t *testing.T) {
		f := writeFixture(t, posesJSON("Alpha"))
		cfg := config.NewRunConfig(f.catalogPath, f.templatePath, config.WithOutputRoot(f.outputRoot))
		_, err := newTestRunner(cfg, noClient).Run(context.Background())
		assert.Error(t, err)
	})
}

func TestBatchRunner_RunOnce(t *testing.T) {
	f := writeFixture(t, posesJSON("Alpha"))
	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		return &execution.GenerateResponse{ProviderID: "x", Image: []byte("x")}, nil
	})

	runner := newTestRunner(f.config(), client)
	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "collecting", StateCollecting.String())
	assert.Equal(t, "finalized", StateFinalized.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestBatchRunner_CanceledContextFailsJobs(t *testing.T) {
	f := writeFixture(t, posesJSON("A", "B", "C"))

	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		if err := ctx.Err(); err != nil {
			return nil, &execution.GenerationError{Err: err}
		}
		return &execution.GenerateResponse{ProviderID: "x", Image: []byte("x")}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newTestRunner(f.config(), client).Run(ctx)
	require.NoError(t, err, "a canceled run still finalizes")

	assert.Equal(t, 3, summary.Failed)
	for _, r := range summary.Results {
		assert.True(t, strings.HasSuffix(r.Filename, "-error.jpg"))
	}
}

func TestBatchRunner_Hooks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell commands")
	}

	f := writeFixture(t, posesJSON("Alpha"))
	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		return &execution.GenerateResponse{ProviderID: "x", Image: []byte("x")}, nil
	})

	var out strings.Builder
	runner := newTestRunner(f.config(), client, WithHooks(hooks.HooksConfig{
		AfterRun: []hooks.HookConfig{{Command: "printenv " + hooks.EnvFailed, ErrorOnFail: true}},
	}, &hooks.Runner{Output: &out}))

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "[hook:after_run] 0")
}

func TestBatchRunner_BeforeRunHookFailureIsFatal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell commands")
	}

	f := writeFixture(t, posesJSON("Alpha"))
	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		t.Fatal("no job should be dispatched")
		return nil, nil
	})

	runner := newTestRunner(f.config(), client, WithHooks(hooks.HooksConfig{
		BeforeRun: []hooks.HookConfig{{Command: "false", ErrorOnFail: true}},
	}, nil))

	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before_run hook failed")

	_, statErr := os.Stat(f.outputRoot)
	assert.True(t, os.IsNotExist(statErr))
}

func TestBatchRunner_ImageWriteFailureIsIsolated(t *testing.T) {
	f := writeFixture(t, posesJSON("Alpha", "Beta", "Gamma"))
	runDir := filepath.Join(f.outputRoot, naming.RunDirName(fixedTime, "ink"))
	blocked := filepath.Join(runDir, "002-beta-beta-pose-x.jpg")

	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		if strings.Contains(req.Prompt, "Beta") {
			// a directory at the target path makes the image write fail
			if err := os.Mkdir(blocked, 0o755); err != nil {
				return nil, err
			}
		}
		return &execution.GenerateResponse{ProviderID: "x", Image: []byte("x")}, nil
	})

	summary, err := newTestRunner(f.config(), client).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)

	failed := summary.Results[1]
	assert.False(t, failed.Success)
	assert.Equal(t, "002-beta-beta-pose-error.jpg", failed.Filename)
	assert.Equal(t, "x", failed.GenerationID)
	assert.Contains(t, failed.Error, "failed to write image")
	assert.Empty(t, failed.Path)

	info, statErr := os.Stat(blocked)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir(), "no image was written in place of the blocking directory")
	_, statErr = os.Stat(filepath.Join(runDir, failed.Filename))
	assert.True(t, os.IsNotExist(statErr))

	for _, i := range []int{0, 2} {
		assert.True(t, summary.Results[i].Success)
		_, statErr := os.Stat(summary.Results[i].Path)
		assert.NoError(t, statErr)
	}
}

func TestBatchRunner_UnsafeProviderIDFailsJob(t *testing.T) {
	f := writeFixture(t, posesJSON("Alpha", "Beta"))

	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		id := "ok"
		if strings.Contains(req.Prompt, "Beta") {
			id = "../../escape"
		}
		return &execution.GenerateResponse{ProviderID: id, Image: []byte("x")}, nil
	})

	summary, err := newTestRunner(f.config(), client).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Results[0].Success)
	assert.False(t, summary.Results[1].Success)
	assert.Equal(t, "002-beta-beta-pose-error.jpg", summary.Results[1].Filename)
	assert.Contains(t, summary.Results[1].Error, "unsafe provider id")

	var written []string
	require.NoError(t, filepath.WalkDir(filepath.Dir(f.outputRoot), func(path string, d os.DirEntry, err error) error {
		if err == nil && strings.Contains(d.Name(), "escape") {
			written = append(written, path)
		}
		return err
	}))
	assert.Empty(t, written)
}

func TestBatchRunner_ListenersAreNotCalledConcurrently(t *testing.T) {
	names := make([]string, 24)
	for i := range names {
		names[i] = fmt.Sprintf("Pose%d", i)
	}
	f := writeFixture(t, posesJSON(names...))

	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		req.OnAccepted("x")
		return &execution.GenerateResponse{ProviderID: "x", Image: []byte("x")}, nil
	})

	runner := newTestRunner(f.config(config.WithWorkers(8)), client)

	var inside, overlaps atomic.Int32
	var events []EventType // written without a lock; delivery must be serialized
	runner.OnProgress(func(e ProgressEvent) {
		if inside.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		events = append(events, e.EventType)
		inside.Add(-1)
	})

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, overlaps.Load())
	assert.Len(t, events, 2+3*len(names))
}

func TestBatchRunner_AfterRunHookFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell commands")
	}

	f := writeFixture(t, posesJSON("Alpha"))
	client := clientFunc(func(ctx context.Context, req *execution.GenerateRequest) (*execution.GenerateResponse, error) {
		return &execution.GenerateResponse{ProviderID: "x", Image: []byte("x")}, nil
	})

	runner := newTestRunner(f.config(), client, WithHooks(hooks.HooksConfig{
		AfterRun: []hooks.HookConfig{{Command: "false", ErrorOnFail: true}},
	}, nil))

	var completed atomic.Bool
	runner.OnProgress(func(e ProgressEvent) {
		if e.EventType == EventRunComplete {
			completed.Store(true)
		}
	})

	summary, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after_run hook failed")

	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Successful)
	assert.True(t, completed.Load(), "run_complete is still delivered")

	_, statErr := os.Stat(filepath.Join(summary.OutputDirectory, models.ResultsFileName))
	assert.NoError(t, statErr)
}
