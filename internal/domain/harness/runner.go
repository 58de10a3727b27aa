package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scenariokit/harness/internal/logger"
)

// Scenario is a runnable test flow.
type Scenario interface {
	Name() string
	Run(ctx context.Context, h *Harness) error
}

// ScenarioFunc adapts a plain function into a Scenario.
type ScenarioFunc struct {
	Title string
	Fn    func(ctx context.Context, h *Harness) error
}

func (f ScenarioFunc) Name() string { return f.Title }

func (f ScenarioFunc) Run(ctx context.Context, h *Harness) error { return f.Fn(ctx, h) }

// Entry is a scenario registered under an id.
type Entry struct {
	Key      string
	File     string
	Scenario Scenario
}

// ScriptKey is the file name without extension, or Key when there is no file.
func (e Entry) ScriptKey() string {
	if e.File == "" {
		return e.Key
	}
	base := filepath.Base(e.File)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (e Entry) String() string {
	name := ""
	if e.Scenario != nil {
		name = e.Scenario.Name()
	}
	label := e.File
	if label == "" {
		label = e.Key
	}
	if name == "" {
		return fmt.Sprintf("[%s] %s", e.Key, label)
	}
	return fmt.Sprintf("[%s] %s %q", e.Key, label, name)
}

// Result describes one scenario run.
type Result struct {
	RunID    string        `json:"run_id"`
	Key      string        `json:"key"`
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// stopGrace bounds how long Run waits for a scenario that ignores
// cancellation after its deadline has passed.
const stopGrace = 5 * time.Second

// ErrStillRunning is returned by Run while a scenario abandoned by an earlier
// run has not returned yet.
var ErrStillRunning = errors.New("previous scenario is still running")

// Runner executes scenarios one at a time against a shared Harness.
//
// A scenario that ignores cancellation is abandoned after its timeout plus a
// grace period. It keeps the harness until it returns, so Run refuses to start
// another scenario in the meantime.
type Runner struct {
	h       *Harness
	timeout time.Duration
	grace   time.Duration

	mu       sync.Mutex
	stuck    <-chan error
	stuckKey string
}

// NewRunner returns a runner that bounds each scenario by timeout; zero means
// the harness setting.
func NewRunner(h *Harness, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = h.Settings.ScenarioTimeout
	}
	return &Runner{h: h, timeout: timeout, grace: stopGrace}
}

func (r *Runner) Harness() *Harness { return r.h }

// Run executes e. It passes when the scenario returns no error and logged no
// error. The script logger and token cache are reset first, and mock servers
// left running are stopped afterwards.
func (r *Runner) Run(ctx context.Context, e Entry) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.awaitStuck(ctx); err != nil {
		res := Result{RunID: uuid.NewString(), Key: e.Key, Err: err, Error: err.Error()}
		if e.Scenario != nil {
			res.Name = e.Scenario.Name()
		}
		logger.AddScopedLog("ERROR", "runner", fmt.Sprintf("SKIP [%s]: %v", e.Key, err))
		return res
	}

	h := r.h
	h.Logger.Reset()
	h.Auth.Reset()
	h.ScriptKey = e.ScriptKey()

	res := Result{RunID: uuid.NewString(), Key: e.Key}
	if e.Scenario == nil {
		res.Err = fmt.Errorf("scenario %q has no implementation", e.Key)
		res.Error = res.Err.Error()
		return res
	}
	res.Name = e.Scenario.Name()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	logger.AddScopedLog("INFO", "runner", fmt.Sprintf("START [%s] File:[%s] run=%s", e.Key, e.File, res.RunID))
	start := time.Now()

	done := make(chan error, 1)
	go func() {
		done <- invoke(ctx, e.Scenario, h)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		select {
		case err = <-done:
		case <-time.After(r.grace):
			r.stuck, r.stuckKey = done, e.Key
			logger.AddScopedLog("WARN", "runner", fmt.Sprintf("[%s] ignored cancellation for %s, abandoning it", e.Key, r.grace))
		}
		if err == nil {
			err = ctx.Err()
		}
	}
	if err == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("scenario timed out after %s: %w", r.timeout, ctx.Err())
	}

	res.Duration = time.Since(start)
	res.Err = err
	res.Passed = err == nil && !h.Logger.HasError()

	if stopErr := h.Mocks.StopAll(context.Background()); stopErr != nil {
		logger.AddScopedLog("WARN", "runner", fmt.Sprintf("stop mocks after [%s]: %v", e.Key, stopErr))
	}

	switch {
	case err != nil:
		res.Error = err.Error()
		logger.AddScopedLog("ERROR", "runner", fmt.Sprintf("ERROR [%s]: %v", e.Key, err))
	case !res.Passed:
		res.Error = "scenario logged errors"
		logger.AddScopedLog("ERROR", "runner", fmt.Sprintf("FAIL [%s] File:[%s] (%s)", e.Key, e.File, res.Duration.Round(time.Millisecond)))
	default:
		logger.AddScopedLog("INFO", "runner", fmt.Sprintf("END [%s] File:[%s] (%s)", e.Key, e.File, res.Duration.Round(time.Millisecond)))
	}
	return res
}

// awaitStuck gives an abandoned scenario one more grace period to return.
// Caller holds r.mu.
func (r *Runner) awaitStuck(ctx context.Context) error {
	if r.stuck == nil {
		return nil
	}
	timer := time.NewTimer(r.grace)
	defer timer.Stop()
	select {
	case <-r.stuck:
		r.stuck, r.stuckKey = nil, ""
		return nil
	case <-ctx.Done():
	case <-timer.C:
	}
	return fmt.Errorf("%w: [%s] ignored cancellation", ErrStillRunning, r.stuckKey)
}

// RunBatch runs entries in order and stops after the first failure.
func (r *Runner) RunBatch(ctx context.Context, entries []Entry) []Result {
	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		res := r.Run(ctx, e)
		results = append(results, res)
		if !res.Passed || ctx.Err() != nil {
			break
		}
	}
	return results
}

func invoke(ctx context.Context, s Scenario, h *Harness) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("scenario panicked: %v", p)
		}
	}()
	return s.Run(ctx, h)
}
