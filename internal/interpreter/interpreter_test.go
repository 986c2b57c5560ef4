package interpreter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyupulker/showrun/internal/auth"
	"github.com/eyupulker/showrun/internal/types"
)

// fakeLocator is a types.Locator stub whose match count and click/fill
// behavior is configured per test.
type fakeLocator struct {
	count   int
	text    string
	clicked *bool
	filled  *string
}

func (l *fakeLocator) Count(context.Context) (int, error) { return l.count, nil }
func (l *fakeLocator) First() types.Locator                { return l }
func (l *fakeLocator) Nth(int) types.Locator               { return l }
func (l *fakeLocator) Click(context.Context) error {
	if l.clicked != nil {
		*l.clicked = true
	}
	return nil
}
func (l *fakeLocator) Fill(_ context.Context, value string, _ bool) error {
	if l.filled != nil {
		*l.filled = value
	}
	return nil
}
func (l *fakeLocator) TextContent(context.Context) (string, error)         { return l.text, nil }
func (l *fakeLocator) GetAttribute(context.Context, string) (string, error) { return "", nil }
func (l *fakeLocator) SelectOption(context.Context, string, string) error   { return nil }
func (l *fakeLocator) Press(context.Context, string) error                 { return nil }
func (l *fakeLocator) SetInputFiles(context.Context, []string) error       { return nil }
func (l *fakeLocator) WaitFor(context.Context, string) error                { return nil }

// fakeController implements types.BrowserController with the minimum
// behavior the step handlers under test exercise; CSS selector -> locator
// lookups are satisfied from `byCSS`, keyed by selector.
type fakeController struct {
	byCSS     map[string]*fakeLocator
	gotoCalls []string
	url       string
	closed    bool
}

func (c *fakeController) NewPage(context.Context) (types.PageHandle, error) { return "page-1", nil }
func (c *fakeController) Goto(_ context.Context, _ types.PageHandle, url string, _ types.WaitUntil) error {
	c.gotoCalls = append(c.gotoCalls, url)
	c.url = url
	return nil
}
func (c *fakeController) WaitForURL(context.Context, types.PageHandle, string, int) error      { return nil }
func (c *fakeController) WaitForLoadState(context.Context, types.PageHandle, string, int) error { return nil }

func (c *fakeController) Locator(_ context.Context, _ types.PageHandle, selector string) (types.Locator, error) {
	if l, ok := c.byCSS[selector]; ok {
		return l, nil
	}
	return &fakeLocator{count: 0}, nil
}
func (c *fakeController) GetByRole(context.Context, types.PageHandle, string, string, bool) (types.Locator, error) {
	return &fakeLocator{count: 0}, nil
}
func (c *fakeController) GetByLabel(context.Context, types.PageHandle, string, bool) (types.Locator, error) {
	return &fakeLocator{count: 0}, nil
}
func (c *fakeController) GetByText(context.Context, types.PageHandle, string, bool) (types.Locator, error) {
	return &fakeLocator{count: 0}, nil
}
func (c *fakeController) GetByPlaceholder(context.Context, types.PageHandle, string, bool) (types.Locator, error) {
	return &fakeLocator{count: 0}, nil
}
func (c *fakeController) GetByAltText(context.Context, types.PageHandle, string, bool) (types.Locator, error) {
	return &fakeLocator{count: 0}, nil
}
func (c *fakeController) GetByTestID(context.Context, types.PageHandle, string) (types.Locator, error) {
	return &fakeLocator{count: 0}, nil
}
func (c *fakeController) Frame(context.Context, types.PageHandle, types.Locator) (types.PageHandle, error) {
	return "frame-1", nil
}
func (c *fakeController) MainFrame(context.Context, types.PageHandle) (types.PageHandle, error) {
	return "page-1", nil
}
func (c *fakeController) NewTab(context.Context, string) (types.PageHandle, error) { return "tab-2", nil }
func (c *fakeController) Tab(context.Context, int) (types.PageHandle, error)       { return "page-1", nil }
func (c *fakeController) Screenshot(context.Context, types.PageHandle) ([]byte, error) {
	return []byte("png"), nil
}
func (c *fakeController) Content(context.Context, types.PageHandle) (string, error) { return "<html></html>", nil }
func (c *fakeController) URL(context.Context, types.PageHandle) (string, error)     { return c.url, nil }
func (c *fakeController) Fetch(context.Context, types.PageHandle, types.FetchRequest) (types.FetchResponse, error) {
	return types.FetchResponse{}, nil
}
func (c *fakeController) AttachCapture(context.Context, types.PageHandle, types.CaptureObserver) error {
	return nil
}
func (c *fakeController) Close(context.Context, types.PageHandle) error {
	c.closed = true
	return nil
}

func newOnceCache(t *testing.T) *auth.OnceCache {
	t.Helper()
	c, err := auth.NewOnceCache(t.TempDir())
	require.NoError(t, err)
	return c
}

func TestRun_HappyPath_FillClickSetVarAssert(t *testing.T) {
	filled := new(string)
	clicked := new(bool)
	ctrl := &fakeController{byCSS: map[string]*fakeLocator{
		"#name":   {count: 1, filled: filled},
		"#submit": {count: 1, clicked: clicked},
	}}

	in := &Interpreter{Controller: ctrl, OnceCache: newOnceCache(t)}
	p := &types.TaskPack{
		ID:     "pack1",
		Inputs: types.InputSchema{"name": {Type: "string", Required: true}},
		Flow: []types.Step{
			{ID: "s1", Type: "navigate", Params: map[string]any{"url": "https://ex.test"}},
			{ID: "s2", Type: "fill", Params: map[string]any{"target": map[string]any{"kind": "css", "selector": "#name"}, "value": "{{inputs.name}}"}},
			{ID: "s3", Type: "click", Params: map[string]any{"target": map[string]any{"kind": "css", "selector": "#submit"}}},
			{ID: "s4", Type: "set_var", Params: map[string]any{"name": "done", "value": true}},
			{ID: "s5", Type: "assert", Params: map[string]any{"varTruthy": "done", "message": "done must be truthy"}},
		},
		Collectibles: []types.Collectible{{Name: "done"}},
	}

	result, err := in.Run(context.Background(), p, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 5, result.Meta.StepsExecuted)
	assert.Equal(t, "Ada", *filled)
	assert.True(t, *clicked)
	assert.True(t, ctrl.closed)
	assert.Equal(t, []string{"https://ex.test"}, ctrl.gotoCalls)
}

func TestRun_TargetNotFound_FailsRunAndClosesPage(t *testing.T) {
	ctrl := &fakeController{byCSS: map[string]*fakeLocator{}}
	in := &Interpreter{Controller: ctrl, OnceCache: newOnceCache(t)}
	p := &types.TaskPack{
		ID: "pack1",
		Flow: []types.Step{
			{ID: "s1", Type: "click", Params: map[string]any{"target": map[string]any{"kind": "css", "selector": "#missing"}}},
		},
	}

	result, err := in.Run(context.Background(), p, nil)
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.Meta.StepsExecuted)
	assert.True(t, ctrl.closed)
}

func TestRun_OptionalStepFailureDoesNotAbortRun(t *testing.T) {
	ctrl := &fakeController{byCSS: map[string]*fakeLocator{}}
	in := &Interpreter{Controller: ctrl, OnceCache: newOnceCache(t)}
	p := &types.TaskPack{
		ID: "pack1",
		Flow: []types.Step{
			{ID: "s1", Type: "click", Params: map[string]any{"target": map[string]any{"kind": "css", "selector": "#missing"}}, Optional: true},
			{ID: "s2", Type: "set_var", Params: map[string]any{"name": "reached", "value": true}},
		},
	}

	result, err := in.Run(context.Background(), p, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Meta.StepsExecuted)
}

func TestRun_SkipIf_SkipsStepWithoutExecuting(t *testing.T) {
	clicked := new(bool)
	ctrl := &fakeController{byCSS: map[string]*fakeLocator{"#submit": {count: 1, clicked: clicked}}}
	in := &Interpreter{Controller: ctrl, OnceCache: newOnceCache(t)}
	p := &types.TaskPack{
		ID: "pack1",
		Flow: []types.Step{
			{ID: "s1", Type: "set_var", Params: map[string]any{"name": "skip_it", "value": true}},
			{
				ID:     "s2",
				Type:   "click",
				Params: map[string]any{"target": map[string]any{"kind": "css", "selector": "#submit"}},
				SkipIf: map[string]any{"var_truthy": "skip_it"},
			},
		},
	}

	result, err := in.Run(context.Background(), p, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, *clicked)
	assert.Equal(t, 1, result.Meta.StepsExecuted)
}

func TestRun_OnceStep_SkippedOnSecondRunWithSameCache(t *testing.T) {
	cache := newOnceCache(t)
	ctrl := &fakeController{byCSS: map[string]*fakeLocator{}}
	p := func() *types.TaskPack {
		return &types.TaskPack{
			ID: "pack1",
			Flow: []types.Step{
				{ID: "login", Type: "set_var", Once: "session", Params: map[string]any{"name": "loggedIn", "value": true}},
			},
		}
	}

	in1 := &Interpreter{Controller: ctrl, OnceCache: cache}
	r1, err := in1.Run(context.Background(), p(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, r1.Meta.StepsExecuted)

	in2 := &Interpreter{Controller: ctrl, OnceCache: cache}
	r2, err := in2.Run(context.Background(), p(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, r2.Meta.StepsExecuted)
}

func TestRun_HTTPOnlyMode_SkipsInteractionSteps(t *testing.T) {
	in := &Interpreter{HTTPOnly: true, OnceCache: newOnceCache(t)}
	p := &types.TaskPack{
		ID: "pack1",
		Flow: []types.Step{
			{ID: "s1", Type: "navigate", Params: map[string]any{"url": "https://ex.test"}},
			{ID: "s2", Type: "set_var", Params: map[string]any{"name": "x", "value": 1}},
		},
	}
	result, err := in.Run(context.Background(), p, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Meta.StepsExecuted)
	assert.Contains(t, result.Meta.Notes, "http-only mode")
}
