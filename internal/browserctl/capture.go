// capture.go — wires the Network Capture Service (C5) to chromedp's
// cdproto/network event stream, the one place this adapter reaches past
// chromedp's high-level API into raw CDP events (AttachCapture has no
// chromedp task equivalent).
//
// Grounded on intelligencedev-manifold's internal/web/web.go import of
// github.com/chromedp/cdproto/network for header injection; extended here
// to event subscription instead of one-shot header setting.
package browserctl

import (
	"context"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/types"
)

func attachCapture(pg *pageHandle, observer types.CaptureObserver) error {
	if err := chromedp.Run(pg.ctx, network.Enable()); err != nil {
		return errs.NewOperationalError("enabling network domain: %v", err)
	}

	chromedp.ListenTarget(pg.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			headers := map[string]string{}
			for k, v := range e.Request.Headers {
				if s, ok := v.(string); ok {
					headers[k] = s
				}
			}
			observer.OnRequest(string(e.RequestID), e.Request.Method, e.Request.URL, string(e.Type), headers, e.Request.PostData)

		case *network.EventResponseReceived:
			headers := map[string]string{}
			for k, v := range e.Response.Headers {
				if s, ok := v.(string); ok {
					headers[k] = s
				}
			}
			reqID := e.RequestID
			observer.OnResponse(string(reqID), int(e.Response.Status), headers, func() ([]byte, error) {
				body, err := fetchResponseBody(pg.ctx, reqID)
				if err != nil {
					return nil, err
				}
				return body, nil
			})
		}
	})
	return nil
}

func fetchResponseBody(ctx context.Context, id network.RequestID) ([]byte, error) {
	var body []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		b, _, err := network.GetResponseBody(id).Do(ctx)
		if err != nil {
			return err
		}
		body = b
		return nil
	}))
	if err != nil {
		return nil, errs.NewOperationalError("fetching response body: %v", err)
	}
	return body, nil
}
