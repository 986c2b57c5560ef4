// recovery.go — Auth recovery driver (§4.8): on a non-optional step
// failure attributable to an auth failure, rerun the once-tagged steps
// (in original order) to re-establish auth, then retry the failing step
// up to maxStepRetryAfterRecovery times with cooldownMs between retries.
// Recovery is counted once per run regardless of how many once-steps are
// re-run.
package interpreter

import (
	"context"
	"time"

	"github.com/eyupulker/showrun/internal/auth"
	"github.com/eyupulker/showrun/internal/types"
)

// detectAuthFailure checks the most recently observed network_replay
// response against the configured AuthFailureMonitor predicate and
// records a failure attributed to step.ID if it matches (§4.8).
func (in *Interpreter) detectAuthFailure(step types.Step, rc *runContext) {
	if in.Monitor == nil || rc.lastStatus == 0 {
		return
	}
	if !in.Monitor.IsAuthFailure(rc.lastURL, rc.lastStatus) {
		return
	}
	in.Monitor.Record(auth.Failure{URL: rc.lastURL, Status: rc.lastStatus, StepID: step.ID})
	in.emit(EventAuthFailureDetected, map[string]any{"stepId": step.ID, "url": rc.lastURL, "status": rc.lastStatus})
}

// recoverOrFail is called after a step fails. When the monitor attributes
// the failure to an auth failure and recovery budget remains, it reruns
// the once-steps and retries the failing step; otherwise the original
// error is returned unchanged.
func (in *Interpreter) recoverOrFail(ctx context.Context, step types.Step, rc *runContext, stepErr error) error {
	if in.Monitor == nil || stepErr == nil {
		return stepErr
	}

	failure, hasFailure := in.Monitor.LatestFailure()
	if !hasFailure || failure.StepID != step.ID {
		return stepErr
	}
	if in.Monitor.IsLoginURL(failure.URL) {
		return stepErr // never recursively recover a failing login step itself
	}
	if !in.Monitor.HasRecoveryBudget() {
		return stepErr
	}

	in.Monitor.UseRecovery()
	in.emit(EventAuthRecoveryStarted, map[string]any{"stepId": step.ID, "failedUrl": failure.URL, "status": failure.Status})

	var onceSteps []types.Step
	for _, s := range in.currentFlow {
		if s.Type != "" && s.Once != "" {
			onceSteps = append(onceSteps, s)
		}
	}
	for _, s := range onceSteps {
		if s.ID == step.ID {
			continue
		}
		_ = in.dispatch(ctx, s, rc) // best-effort re-auth; a failure here surfaces via the retry below
	}

	var lastErr error = stepErr
	for in.Monitor.RetryBudgetRemaining(step.ID) > 0 {
		in.Monitor.UseRetry(step.ID)
		if cooldown := in.Monitor.CooldownMs(); cooldown > 0 {
			timer := time.NewTimer(time.Duration(cooldown) * time.Millisecond)
			select {
			case <-ctx.Done():
				timer.Stop()
				in.emit(EventAuthRecoveryFinished, map[string]any{"stepId": step.ID, "success": false})
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := in.dispatch(ctx, step, rc); err == nil {
			in.emit(EventAuthRecoveryFinished, map[string]any{"stepId": step.ID, "success": true})
			return nil
		} else {
			lastErr = err
		}
	}

	in.emit(EventAuthRecoveryFinished, map[string]any{"stepId": step.ID, "success": false})
	return lastErr
}
