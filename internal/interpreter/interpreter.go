// interpreter.go — Step Interpreter (C4): drives a flow step by step,
// maintaining input/variable/collectible state and templating (§4.4).
//
// Grounded on the teacher's internal/session/tool-handler.go dispatch-
// table-plus-interface-abstraction style (its CaptureStateReader pattern):
// the interpreter depends on narrow interfaces (BrowserController,
// NetworkCapture, OnceCache) rather than on concrete structs, so it can
// drive either a real browser or the pure-HTTP snapshot path identically.
package interpreter

import (
	"context"
	"time"

	"github.com/eyupulker/showrun/internal/auth"
	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/netcapture"
	"github.com/eyupulker/showrun/internal/pack"
	"github.com/eyupulker/showrun/internal/replay"
	"github.com/eyupulker/showrun/internal/templating"
	"github.com/eyupulker/showrun/internal/types"
)

// DefaultStepTimeout is applied when a step has no timeoutMs (§4.4, §5).
const DefaultStepTimeout = 30 * time.Second

// Interpreter drives one flow for one run. It is not safe for concurrent
// use by multiple goroutines on the same run — the step loop is strictly
// sequential per §5's single-threaded cooperative scheduling model.
type Interpreter struct {
	Controller types.BrowserController // nil in HTTP-only mode
	Capture    *netcapture.Capture     // nil in HTTP-only mode

	HTTPOnly   bool
	Snapshots  *types.SnapshotFile
	HTTPReplay *replay.HTTPReplay

	OnceCache *auth.OnceCache
	Monitor   *auth.FailureMonitor
	Guard     *auth.GuardChecker

	Secrets map[string]string
	Events  Sink

	// Redactor, if set, is run over every error message before it reaches an
	// emitted event or the final RunResult (§3, §7, §9: "wrap every log and
	// error sink with a redaction pass") — a templated URL or replay error
	// can otherwise echo a secret.* value straight into a persisted
	// artifact. Nil-safe: a nil Redactor leaves strings unchanged.
	Redactor func(string) string

	// FailureHook, if set, is called with the run's page right before a
	// fatal error closes it, so the Run Orchestrator (C11) can capture a
	// screenshot/HTML snapshot of the state the run actually failed in
	// (§4.11). Never called in HTTP-only mode (st.Page is nil).
	FailureHook func(ctx context.Context, page types.PageHandle)

	currentFlow []types.Step
}

// runContext carries the run's live browser-tab/frame bookkeeping
// alongside the shared types.RunState. Kept separate from RunState so the
// public RunState shape stays exactly what §3 specifies.
type runContext struct {
	state *types.RunState
	tabs  []types.PageHandle
	active int
	mainOf map[int]types.PageHandle // active tab index -> its main frame handle, for frame-scope pop

	// lastStatus/lastURL track the most recent network_replay's observed
	// response, so the auth recovery driver can attribute a step failure
	// to an auth failure regardless of browser vs. HTTP-only mode.
	lastStatus int
	lastURL    string
}

func (in *Interpreter) emit(typ EventType, data map[string]any) {
	sink := in.Events
	if sink == nil {
		sink = NopSink{}
	}
	sink.Emit(Event{Type: typ, Timestamp: time.Now().UTC(), Data: data})
}

// redact passes s through in.Redactor when one is configured, leaving it
// unchanged otherwise.
func (in *Interpreter) redact(s string) string {
	if in.Redactor == nil {
		return s
	}
	return in.Redactor(s)
}

// Run implements §4.4's run(flow, inputs, options) -> RunResult contract.
func (in *Interpreter) Run(ctx context.Context, p *types.TaskPack, rawInputs map[string]any) (types.RunResult, error) {
	start := time.Now()

	if err := pack.ValidateInputs(rawInputs, p.Inputs); err != nil {
		return types.RunResult{}, err
	}
	inputs := pack.ApplyDefaults(rawInputs, p.Inputs)

	st := &types.RunState{
		Inputs:       inputs,
		Vars:         map[string]any{},
		Collectibles: map[string]any{},
	}
	rc := &runContext{state: st, mainOf: map[int]types.PageHandle{}}

	if !in.HTTPOnly {
		if in.Controller == nil {
			return types.RunResult{}, errs.NewOperationalError("browser mode selected but no BrowserController configured")
		}
		page, err := in.Controller.NewPage(ctx)
		if err != nil {
			return types.RunResult{}, errs.NewOperationalError("creating page: %v", err)
		}
		if in.Capture != nil {
			if err := in.Controller.AttachCapture(ctx, page, in.Capture); err != nil {
				return types.RunResult{}, errs.NewOperationalError("attaching network capture: %v", err)
			}
		}
		st.Page = page
		rc.tabs = []types.PageHandle{page}
	}

	in.currentFlow = p.Flow
	in.emit(EventRunStarted, map[string]any{"packId": p.ID, "totalSteps": len(p.Flow)})

	var notes []string
	if in.HTTPOnly {
		notes = append(notes, "http-only mode")
	}

	executed := 0
	for i, step := range p.Flow {
		select {
		case <-ctx.Done():
			in.emit(EventRunAborted, map[string]any{"stepIndex": i})
			return in.buildResult(false, "run aborted: "+ctx.Err().Error(), st, p, start, executed, notes), ctx.Err()
		default:
		}

		st.CurrentStep = step.ID

		skip, reason, err := in.shouldSkip(ctx, step, st)
		if err != nil {
			return in.fail(p, st, start, executed, notes, err)
		}
		if skip {
			in.emit(EventStepSkipped, map[string]any{"stepId": step.ID, "index": i, "reason": reason})
			continue
		}

		in.emit(EventStepStarted, map[string]any{"stepId": step.ID, "index": i, "type": step.Type})

		stepTimeout := DefaultStepTimeout
		if step.TimeoutMs != nil {
			stepTimeout = time.Duration(*step.TimeoutMs) * time.Millisecond
		}
		stepCtx, cancel := context.WithTimeout(ctx, stepTimeout)
		stepErr := in.dispatch(stepCtx, step, rc)
		cancel()

		if stepErr != nil {
			if ctx.Err() == nil && stepCtx.Err() == context.DeadlineExceeded {
				stepErr = errs.NewStepTimeoutError(step.ID, int(stepTimeout.Milliseconds()))
			}
			in.detectAuthFailure(step, rc)
			stepErr = in.recoverOrFail(ctx, step, rc, stepErr)
		}

		if stepErr != nil {
			downgraded := step.Optional || step.OnError == "continue"
			in.emit(EventError, map[string]any{"stepId": step.ID, "index": i, "error": in.redact(stepErr.Error()), "continued": downgraded})
			if !downgraded {
				return in.fail(p, st, start, executed, notes, stepErr)
			}
		}

		if step.Once != "" && in.OnceCache != nil {
			_ = in.OnceCache.MarkSeen(step.Once, step.ID)
		}

		executed++
		in.emit(EventStepFinished, map[string]any{"stepId": step.ID, "index": i})
	}

	result := in.buildResult(true, "", st, p, start, executed, notes)
	if !in.HTTPOnly && in.Controller != nil {
		_ = in.Controller.Close(ctx, st.Page)
	}

	in.emit(EventRunFinished, map[string]any{"stepsExecuted": executed})
	return result, nil
}

func (in *Interpreter) shouldSkip(ctx context.Context, step types.Step, st *types.RunState) (bool, string, error) {
	if step.Once != "" && in.OnceCache != nil && in.OnceCache.Seen(step.Once, step.ID) {
		return true, "once", nil
	}
	if in.HTTPOnly && httpSkippedSet[step.Type] {
		return true, "http_mode", nil
	}
	if len(step.SkipIf) > 0 {
		skip, err := in.evalSkipIf(ctx, step.SkipIf, st)
		if err != nil {
			return false, "", err
		}
		if skip {
			return true, "skip_if", nil
		}
	}
	return false, "", nil
}

func (in *Interpreter) fail(p *types.TaskPack, st *types.RunState, start time.Time, executed int, notes []string, err error) (types.RunResult, error) {
	r := in.buildResult(false, err.Error(), st, p, start, executed, notes)
	if !in.HTTPOnly && in.Controller != nil && st.Page != nil {
		if in.FailureHook != nil {
			in.FailureHook(context.Background(), st.Page)
		}
		_ = in.Controller.Close(context.Background(), st.Page)
	}
	return r, err
}

func (in *Interpreter) buildResult(success bool, errMsg string, st *types.RunState, p *types.TaskPack, start time.Time, executed int, notes []string) types.RunResult {
	declared := map[string]bool{}
	for _, c := range p.Collectibles {
		declared[c.Name] = true
	}
	out := map[string]any{}
	for k, v := range st.Collectibles {
		if declared[k] {
			out[k] = v
		}
	}
	var url string
	if in.Controller != nil && st.Page != nil {
		u, err := in.Controller.URL(context.Background(), st.Page)
		if err == nil {
			url = u
		}
	}
	return types.RunResult{
		Success:      success,
		Collectibles: out,
		Error:        in.redact(errMsg),
		Meta: types.RunMeta{
			URL:           url,
			DurationMs:    time.Since(start).Milliseconds(),
			StepsExecuted: executed,
			StepsTotal:    len(p.Flow),
			Notes:         notes,
		},
	}
}

// resolveParams runs templating.ResolveValue over every string-valued
// param before dispatch, per §4.4 step 3 ("Templating resolves all
// string-valued params first").
func (in *Interpreter) resolveParams(params map[string]any, st *types.RunState) (map[string]any, error) {
	ctx := templating.Context{Inputs: st.Inputs, Vars: st.Vars, Secrets: in.Secrets}
	resolved, err := templating.ResolveValue(params, ctx)
	if err != nil {
		return nil, err
	}
	m, _ := resolved.(map[string]any)
	return m, nil
}

func (in *Interpreter) currentPage(rc *runContext) types.PageHandle {
	if len(rc.tabs) == 0 {
		return rc.state.Page
	}
	return rc.tabs[rc.active]
}

func (in *Interpreter) setCurrentPage(rc *runContext, page types.PageHandle) {
	if len(rc.tabs) == 0 {
		rc.tabs = []types.PageHandle{page}
		rc.active = 0
	} else {
		rc.tabs[rc.active] = page
	}
	rc.state.Page = page
}
