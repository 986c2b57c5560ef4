package replay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyupulker/showrun/internal/types"
)

func TestResolveURL_OrderAndSetQueryMerge(t *testing.T) {
	ov := Overrides{
		URLReplace: &RegexReplace{Pattern: `/v1/`, Replace: "/v2/"},
		SetQuery:   map[string]string{"limit": "5"},
	}
	out, err := ResolveURL("https://api.test/v1/items?sort=asc", ov)
	require.NoError(t, err)
	assert.Contains(t, out, "/v2/items")
	assert.Contains(t, out, "limit=5")
	assert.Contains(t, out, "sort=asc")
}

func TestResolveURL_ExplicitOverrideWinsOverRegex(t *testing.T) {
	ov := Overrides{
		URLReplace: &RegexReplace{Pattern: `/v1/`, Replace: "/v2/"},
		URL:        "https://api.test/override",
	}
	out, err := ResolveURL("https://api.test/v1/items", ov)
	require.NoError(t, err)
	assert.Equal(t, "https://api.test/override", out)
}

func TestResolveBody_RegexThenExplicit(t *testing.T) {
	ov := Overrides{BodyReplace: &RegexReplace{Pattern: "old", Replace: "new"}}
	out, err := ResolveBody(`{"x":"old"}`, ov)
	require.NoError(t, err)
	assert.Equal(t, `{"x":"new"}`, out)

	ov.Body = `{"replaced":true}`
	out, err = ResolveBody(`{"x":"old"}`, ov)
	require.NoError(t, err)
	assert.Equal(t, `{"replaced":true}`, out)
}

func TestResolveHeaders_RejectsSensitiveOverride(t *testing.T) {
	_, err := ResolveHeaders(map[string]string{"X-Trace": "1"}, Overrides{
		SetHeaders: map[string]string{"Authorization": "Bearer x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sensitive")
}

func TestResolveHeaders_MergesNonSensitive(t *testing.T) {
	out, err := ResolveHeaders(map[string]string{"X-Trace": "1"}, Overrides{
		SetHeaders: map[string]string{"X-Extra": "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1", out["X-Trace"])
	assert.Equal(t, "2", out["X-Extra"])
}

func TestStripContentLength(t *testing.T) {
	out := StripContentLength(map[string]string{"Content-Length": "10", "X-Trace": "1"})
	_, ok := out["Content-Length"]
	assert.False(t, ok)
	assert.Equal(t, "1", out["X-Trace"])
}

func TestResolve_FullChain(t *testing.T) {
	data := types.ReplayData{
		RequestHeadersFull: map[string]string{"Authorization": "Bearer secret", "X-Trace": "1"},
		PostData:           `{"x":"old"}`,
	}
	ov := Overrides{
		BodyReplace: &RegexReplace{Pattern: "old", Replace: "new"},
		SetQuery:    map[string]string{"foo": "bar"},
	}
	req, err := Resolve(data, "POST", "https://api.test/x", ov)
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.Contains(t, req.URL, "foo=bar")
	assert.Equal(t, `{"x":"new"}`, string(req.Body))
	assert.Equal(t, "Bearer secret", req.Headers["Authorization"])
}

func TestValidateStatusClass(t *testing.T) {
	assert.NoError(t, ValidateStatusClass("s1", 200, 204))
	err := ValidateStatusClass("s1", 200, 500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s1")
}

func TestTruncateBody(t *testing.T) {
	small := make([]byte, 100)
	assert.Equal(t, small, truncateBody(small))

	big := make([]byte, browserBodyTruncateFull+1)
	out := truncateBody(big)
	assert.Less(t, len(out), len(big))
	assert.Contains(t, string(out), "truncated")
}

type fakeController struct {
	resp types.FetchResponse
	err  error
}

func (f *fakeController) NewPage(ctx context.Context) (types.PageHandle, error) { return nil, nil }
func (f *fakeController) Goto(ctx context.Context, page types.PageHandle, url string, w types.WaitUntil) error {
	return nil
}
func (f *fakeController) WaitForURL(ctx context.Context, page types.PageHandle, pattern string, timeoutMs int) error {
	return nil
}
func (f *fakeController) WaitForLoadState(ctx context.Context, page types.PageHandle, state string, timeoutMs int) error {
	return nil
}
func (f *fakeController) Locator(ctx context.Context, page types.PageHandle, selector string) (types.Locator, error) {
	return nil, nil
}
func (f *fakeController) GetByRole(ctx context.Context, page types.PageHandle, role, name string, exact bool) (types.Locator, error) {
	return nil, nil
}
func (f *fakeController) GetByLabel(ctx context.Context, page types.PageHandle, text string, exact bool) (types.Locator, error) {
	return nil, nil
}
func (f *fakeController) GetByText(ctx context.Context, page types.PageHandle, text string, exact bool) (types.Locator, error) {
	return nil, nil
}
func (f *fakeController) GetByPlaceholder(ctx context.Context, page types.PageHandle, text string, exact bool) (types.Locator, error) {
	return nil, nil
}
func (f *fakeController) GetByAltText(ctx context.Context, page types.PageHandle, text string, exact bool) (types.Locator, error) {
	return nil, nil
}
func (f *fakeController) GetByTestID(ctx context.Context, page types.PageHandle, id string) (types.Locator, error) {
	return nil, nil
}
func (f *fakeController) Frame(ctx context.Context, page types.PageHandle, loc types.Locator) (types.PageHandle, error) {
	return nil, nil
}
func (f *fakeController) MainFrame(ctx context.Context, page types.PageHandle) (types.PageHandle, error) {
	return nil, nil
}
func (f *fakeController) NewTab(ctx context.Context, url string) (types.PageHandle, error) {
	return nil, nil
}
func (f *fakeController) Tab(ctx context.Context, index int) (types.PageHandle, error) { return nil, nil }
func (f *fakeController) Screenshot(ctx context.Context, page types.PageHandle) ([]byte, error) {
	return nil, nil
}
func (f *fakeController) Content(ctx context.Context, page types.PageHandle) (string, error) {
	return "", nil
}
func (f *fakeController) URL(ctx context.Context, page types.PageHandle) (string, error) {
	return "", nil
}
func (f *fakeController) Fetch(ctx context.Context, page types.PageHandle, req types.FetchRequest) (types.FetchResponse, error) {
	return f.resp, f.err
}
func (f *fakeController) AttachCapture(ctx context.Context, page types.PageHandle, observer types.CaptureObserver) error {
	return nil
}
func (f *fakeController) Close(ctx context.Context, page types.PageHandle) error { return nil }

func TestBrowserReplay_Do(t *testing.T) {
	ctrl := &fakeController{resp: types.FetchResponse{Status: 200, Body: []byte("hi")}}
	r := BrowserReplay{Controller: ctrl}
	resp, err := r.Do(context.Background(), nil, Request{Method: "GET", URL: "https://x.test"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "hi", string(resp.Body))
}
