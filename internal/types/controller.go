// controller.go — Browser Controller capability interface (§6).
// The core engine packages (C1-C11) depend only on this interface; concrete
// drivers (e.g. internal/browserctl's chromedp adapter) live outside the
// import graph of the engine itself.
package types

import "context"

// WaitUntil mirrors navigate's waitUntil enum.
type WaitUntil string

const (
	WaitLoad            WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle      WaitUntil = "networkidle"
	WaitCommit           WaitUntil = "commit"
)

// Locator is an opaque, resolved reference to zero or more DOM elements.
type Locator interface {
	Count(ctx context.Context) (int, error)
	First() Locator
	Nth(i int) Locator
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string, clear bool) error
	TextContent(ctx context.Context) (string, error)
	GetAttribute(ctx context.Context, name string) (string, error)
	SelectOption(ctx context.Context, value, label string) error
	Press(ctx context.Context, key string) error
	SetInputFiles(ctx context.Context, paths []string) error
	WaitFor(ctx context.Context, state string) error
}

// FetchRequest is the page-context fetch primitive used by browser-context
// replay (§4.6) so the request rides the page's live cookies/TLS session.
type FetchRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// FetchResponse is the result of a page-context fetch.
type FetchResponse struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// BrowserController is the capability the engine drives a browser through.
type BrowserController interface {
	NewPage(ctx context.Context) (PageHandle, error)
	Goto(ctx context.Context, page PageHandle, url string, waitUntil WaitUntil) error
	WaitForURL(ctx context.Context, page PageHandle, pattern string, timeoutMs int) error
	WaitForLoadState(ctx context.Context, page PageHandle, state string, timeoutMs int) error

	Locator(ctx context.Context, page PageHandle, selector string) (Locator, error)
	GetByRole(ctx context.Context, page PageHandle, role, name string, exact bool) (Locator, error)
	GetByLabel(ctx context.Context, page PageHandle, text string, exact bool) (Locator, error)
	GetByText(ctx context.Context, page PageHandle, text string, exact bool) (Locator, error)
	GetByPlaceholder(ctx context.Context, page PageHandle, text string, exact bool) (Locator, error)
	GetByAltText(ctx context.Context, page PageHandle, text string, exact bool) (Locator, error)
	GetByTestID(ctx context.Context, page PageHandle, id string) (Locator, error)

	Frame(ctx context.Context, page PageHandle, loc Locator) (PageHandle, error)
	MainFrame(ctx context.Context, page PageHandle) (PageHandle, error)
	NewTab(ctx context.Context, url string) (PageHandle, error)
	Tab(ctx context.Context, index int) (PageHandle, error)

	Screenshot(ctx context.Context, page PageHandle) ([]byte, error)
	Content(ctx context.Context, page PageHandle) (string, error)
	URL(ctx context.Context, page PageHandle) (string, error)

	// Fetch issues a request inside the page's network context (cookies,
	// TLS session) for browser-context replay (§4.6).
	Fetch(ctx context.Context, page PageHandle, req FetchRequest) (FetchResponse, error)

	// AttachCapture wires a network-capture observer to a page; the
	// observer receives onRequest/onResponse callbacks as traffic occurs.
	AttachCapture(ctx context.Context, page PageHandle, observer CaptureObserver) error

	Close(ctx context.Context, page PageHandle) error
}

// CaptureObserver is implemented by the Network Capture Service (C5) and
// driven by the controller's live browser event stream.
type CaptureObserver interface {
	OnRequest(id, method, url, resourceType string, headers map[string]string, postData string)
	OnResponse(id string, status int, headers map[string]string, bodyReader func() ([]byte, error))
}
