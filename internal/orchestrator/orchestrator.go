// orchestrator.go — Run Orchestrator (C11): composes C1-C10, C12, C13 for
// one run: wires inputs -> apply defaults -> decide HTTP-only -> create
// browser (or not) -> interpret steps -> materialize result (§4.11).
//
// Grounded on the wiring style of the teacher's internal/session package
// (its tool handlers take a narrow CaptureStateReader rather than a
// concrete capture struct), generalized here to a constructor that
// assembles every subsystem behind the interfaces C4's Interpreter
// already depends on.
package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eyupulker/showrun/internal/auth"
	"github.com/eyupulker/showrun/internal/browserctl"
	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/interpreter"
	"github.com/eyupulker/showrun/internal/netcapture"
	"github.com/eyupulker/showrun/internal/pack"
	"github.com/eyupulker/showrun/internal/proxy"
	"github.com/eyupulker/showrun/internal/redaction"
	"github.com/eyupulker/showrun/internal/replay"
	"github.com/eyupulker/showrun/internal/results"
	"github.com/eyupulker/showrun/internal/runpaths"
	"github.com/eyupulker/showrun/internal/snapshot"
	"github.com/eyupulker/showrun/internal/types"
)

// RunOptions carries the per-run overrides §4.11's contract names
// ({runDir, logger, headless?, profileId?, secrets?}).
type RunOptions struct {
	RunDir    string // auto-generated under runpaths.RunsRoot() when empty
	Logger    *zerolog.Logger
	Headless  *bool
	ProfileID string
	Secrets   map[string]string // merged over the pack's own .secrets.json

	// ResultsProvider overrides the default persisted Result Store (C10)
	// provider, which otherwise opens "<packDir>/results.db" (§6). Tests and
	// callers that want an ephemeral store inject a results.NewMemoryProvider()
	// here.
	ResultsProvider results.Provider
}

// RunPaths is the artifact-location half of §4.11's "RunResult + paths".
type RunPaths struct {
	RunDir         string
	EventsPath     string
	ScreenshotPath string // set only when a fatal error triggered artifact capture
	HTMLPath       string
}

// Orchestrator holds the process-wide pieces (proxy registry, cross-run
// concurrency limiter) that are shared across every Run call.
type Orchestrator struct {
	cfg     Config
	proxies *proxy.Registry
	limiter *Limiter
	log     zerolog.Logger
}

// New builds an Orchestrator from the given configuration.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		proxies: proxy.NewRegistry(),
		limiter: NewLimiter(cfg.MaxConcurrentRuns, cfg.MinRunIntervalMs),
		log:     zerolog.New(os.Stderr).With().Timestamp().Str("component", "orchestrator").Logger(),
	}
}

// Run executes packDir's flow once against inputs, gated by the
// cross-run concurrency limiter (§5).
func (o *Orchestrator) Run(ctx context.Context, packDir string, inputs map[string]any, opts RunOptions) (types.RunResult, RunPaths, error) {
	var result types.RunResult
	var paths RunPaths
	err := o.limiter.Execute(ctx, func() error {
		r, p, runErr := o.runOnce(ctx, packDir, inputs, opts)
		result, paths = r, p
		return runErr
	})
	return result, paths, err
}

func (o *Orchestrator) runOnce(ctx context.Context, packDir string, inputs map[string]any, opts RunOptions) (types.RunResult, RunPaths, error) {
	logger := o.log
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	p, err := pack.Load(packDir)
	if err != nil {
		return types.RunResult{}, RunPaths{}, err
	}
	if err := pack.Validate(p, nil); err != nil {
		return types.RunResult{}, RunPaths{}, err
	}

	secrets, err := pack.LoadSecrets(packDir)
	if err != nil {
		return types.RunResult{}, RunPaths{}, err
	}
	for k, v := range opts.Secrets {
		secrets[k] = v
	}

	runID := uuid.NewString()
	runDir := opts.RunDir
	if runDir == "" {
		root, err := runpaths.RunsRoot()
		if err != nil {
			return types.RunResult{}, RunPaths{}, err
		}
		runDir = filepath.Join(root, runID)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return types.RunResult{}, RunPaths{}, errs.NewOperationalError("creating run directory: %v", err)
	}

	redactor := redaction.NewRedactionEngine("")

	eventsPath := filepath.Join(runDir, "events.jsonl")
	sink, err := newFileSink(eventsPath, redactor)
	if err != nil {
		return types.RunResult{}, RunPaths{}, err
	}
	defer sink.Close()

	paths := RunPaths{RunDir: runDir, EventsPath: eventsPath}

	httpOnly := snapshot.IsFlowHTTPCompatible(p.Flow, p.Snapshots)
	logger.Info().Str("packId", p.ID).Str("runId", runID).Bool("httpOnly", httpOnly).Msg("run starting")

	headless := o.cfg.Headless
	if opts.Headless != nil {
		headless = *opts.Headless
	}

	var controller types.BrowserController
	var bctl *browserctl.Controller
	var capture *netcapture.Capture
	var dial proxy.DialInfo

	proxyCfg := types.ProxyConfig{}
	if p.Browser != nil && p.Browser.Proxy != nil {
		proxyCfg = *p.Browser.Proxy
	}
	dial, err = o.proxies.Resolve(proxyCfg)
	if err != nil {
		return types.RunResult{}, paths, err
	}

	if !httpOnly {
		bctl, err = browserctl.New(ctx, browserctl.Options{
			Headless:  headless,
			ProxyAddr: stripScheme(dial.Endpoint),
			ProxyUser: dial.Username,
			ProxyPass: dial.Password,
		})
		if err != nil {
			return types.RunResult{}, paths, err
		}
		defer bctl.Shutdown()
		controller = bctl
		capture = netcapture.NewCapture(netcapture.DefaultBufferMax, redactor)
	}

	cacheDir, err := runpaths.CacheRoot()
	if err != nil {
		return types.RunResult{}, paths, err
	}
	if opts.ProfileID != "" {
		cacheDir = filepath.Join(cacheDir, opts.ProfileID)
	}
	onceCache, err := auth.NewOnceCache(cacheDir)
	if err != nil {
		return types.RunResult{}, paths, err
	}

	monitorCfg, err := auth.ConfigFromPolicy(p.Auth)
	if err != nil {
		return types.RunResult{}, paths, err
	}
	monitor := auth.NewFailureMonitor(monitorCfg)

	var guard *auth.GuardChecker
	if p.Auth != nil && (p.Auth.GuardVisibleSelector != "" || p.Auth.GuardURLIncludes != "") && controller != nil {
		guard = auth.NewGuardChecker(controller, auth.GuardStrategy{
			VisibleSelector: p.Auth.GuardVisibleSelector,
			URLIncludes:     p.Auth.GuardURLIncludes,
		})
	}

	in := &interpreter.Interpreter{
		Controller: controller,
		Capture:    capture,
		HTTPOnly:   httpOnly,
		Snapshots:  p.Snapshots,
		HTTPReplay: &replay.HTTPReplay{ProxyAddr: dial.Addr()},
		OnceCache:  onceCache,
		Monitor:    monitor,
		Guard:      guard,
		Secrets:    secrets,
		Events:     sink,
		Redactor:   redactor.Redact,
	}
	if controller != nil {
		in.FailureHook = func(ctx context.Context, page types.PageHandle) {
			captureFailureArtifacts(ctx, controller, page, &paths)
		}
	}

	start := time.Now()
	result, runErr := in.Run(ctx, p, inputs)
	logger.Info().Str("packId", p.ID).Bool("success", result.Success).
		Dur("duration", time.Since(start)).Msg("run finished")

	if runErr == nil && result.Success {
		if key, keyErr := results.GenerateResultKey(p.ID, inputs); keyErr != nil {
			logger.Error().Err(keyErr).Msg("computing result key")
		} else {
			result.ResultKey = key
			o.persistResultAsync(logger, packDir, opts.ResultsProvider, types.StoredResult{
				Key:          key,
				PackID:       p.ID,
				ToolName:     p.ID,
				Inputs:       inputs,
				Collectibles: result.Collectibles,
				StoredAt:     time.Now().UTC(),
				RanAt:        start.UTC(),
			})
		}
	}

	return result, paths, runErr
}

// persistResultAsync implements §5's "Result Store writes are not ordered
// with respect to the tool caller's response" — it stores r in the
// background and never blocks or fails the run on a storage error. When
// provider is nil it opens (and closes, once the store completes) the
// default persisted provider: a single SQLite file in the pack directory
// (§4.10, §6's "results.db").
func (o *Orchestrator) persistResultAsync(logger zerolog.Logger, packDir string, provider results.Provider, r types.StoredResult) {
	go func() {
		p := provider
		var owned *results.SQLiteProvider
		if p == nil {
			opened, err := results.OpenSQLiteProvider(filepath.Join(packDir, "results.db"))
			if err != nil {
				logger.Error().Err(err).Msg("opening results store")
				return
			}
			owned = opened
			p = opened
		}
		if owned != nil {
			defer owned.Close()
		}
		if _, err := p.Store(r); err != nil {
			logger.Error().Err(err).Str("key", r.Key).Msg("storing result")
		}
	}()
}

// captureFailureArtifacts implements §4.11's "capture a screenshot + HTML
// snapshot on fatal error," reading the page the run actually failed on
// (via Interpreter.FailureHook) rather than a fresh blank one. Capture
// failures are logged-and-swallowed: losing diagnostic artifacts must
// never mask the original run error.
func captureFailureArtifacts(ctx context.Context, controller types.BrowserController, page types.PageHandle, paths *RunPaths) {
	if shot, err := controller.Screenshot(ctx, page); err == nil {
		p := filepath.Join(paths.RunDir, "failure.png")
		if os.WriteFile(p, shot, 0o644) == nil {
			paths.ScreenshotPath = p
		}
	}
	if html, err := controller.Content(ctx, page); err == nil {
		p := filepath.Join(paths.RunDir, "failure.html")
		if os.WriteFile(p, []byte(html), 0o644) == nil {
			paths.HTMLPath = p
		}
	}
}

func stripScheme(endpoint string) string {
	const httpPrefix, httpsPrefix = "http://", "https://"
	if len(endpoint) >= len(httpPrefix) && endpoint[:len(httpPrefix)] == httpPrefix {
		return endpoint[len(httpPrefix):]
	}
	if len(endpoint) >= len(httpsPrefix) && endpoint[:len(httpsPrefix)] == httpsPrefix {
		return endpoint[len(httpsPrefix):]
	}
	return endpoint
}
