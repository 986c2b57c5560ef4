// locator.go — types.Locator implementation and the Controller methods
// that produce one. Every accessor (Count/Click/Fill/...) compiles to a
// single JS expression run via chromedp.Evaluate, scoped into the
// locator's page's frameChain by walking contentDocument references
// before evaluating the query (see controller.go's doc comment).
package browserctl

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/types"
)

const cssMarker = "css:"

// locator is a deferred, re-evaluated XPath query plus an optional fixed
// index. It holds no live DOM reference — §4.3's target resolution
// re-queries the DOM on every Locator method call, matching how
// Playwright-style locators (which the spec's Target shape is modeled on)
// behave.
type locator struct {
	pg    *pageHandle
	xpath string
	nth   int // -1 = unset (methods needing one element implicitly use 0)
}

func newLocator(pg *pageHandle, xpath string) *locator {
	return &locator{pg: pg, xpath: xpath, nth: -1}
}

func (l *locator) index() int {
	if l.nth < 0 {
		return 0
	}
	return l.nth
}

// root builds the JS expression that walks frameChain and returns the
// XPathResult snapshot for l.xpath within that document.
func (l *locator) snapshotExpr() string {
	var b strings.Builder
	b.WriteString("(function(){var d=document;")
	for _, sel := range l.pg.frameChain {
		fmt.Fprintf(&b, "var f=d.querySelector(%s); if(!f) return null; d=f.contentDocument;", jsString(sel))
	}
	if strings.HasPrefix(l.xpath, cssMarker) {
		fmt.Fprintf(&b, "return Array.prototype.slice.call(d.querySelectorAll(%s));})()",
			jsString(strings.TrimPrefix(l.xpath, cssMarker)))
		return b.String()
	}
	fmt.Fprintf(&b, "var r=d.evaluate(%s,d,null,XPathResult.ORDERED_NODE_SNAPSHOT_TYPE,null); var out=[]; for(var i=0;i<r.snapshotLength;i++){out.push(r.snapshotItem(i));} return out;})()", jsString(l.xpath))
	return b.String()
}

// nodeExpr returns a JS expression yielding the element at l.index(), or
// null, bound to the local variable name "el" inside body.
func (l *locator) withNode(body string) string {
	return fmt.Sprintf(`(function(){var nodes=%s; var el=nodes?nodes[%d]:null; if(!el) return {__missing:true}; %s})()`,
		trimIIFEParens(l.snapshotExpr()), l.index(), body)
}

func trimIIFEParens(expr string) string {
	return strings.TrimSuffix(strings.TrimPrefix(expr, "("), ")")
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (l *locator) eval(ctx context.Context, expr string, out interface{}) error {
	return chromedp.Run(l.pg.ctx, chromedp.Evaluate(expr, out))
}

func (l *locator) Count(ctx context.Context) (int, error) {
	var n int
	expr := fmt.Sprintf("(%s || []).length", trimIIFEParens(l.snapshotExpr()))
	if err := l.eval(ctx, expr, &n); err != nil {
		return 0, errs.NewOperationalError("counting target matches: %v", err)
	}
	return n, nil
}

func (l *locator) First() types.Locator {
	return &locator{pg: l.pg, xpath: l.xpath, nth: 0}
}

func (l *locator) Nth(i int) types.Locator {
	return &locator{pg: l.pg, xpath: l.xpath, nth: i}
}

func (l *locator) Click(ctx context.Context) error {
	return l.runVoid(ctx, `el.scrollIntoView({block:"center"}); el.click(); return {};`)
}

func (l *locator) Fill(ctx context.Context, value string, clear bool) error {
	body := fmt.Sprintf(`
if (clear) { el.value = ""; }
el.focus();
el.value = %s;
el.dispatchEvent(new Event('input', {bubbles:true}));
el.dispatchEvent(new Event('change', {bubbles:true}));
return {};`, jsString(value))
	if clear {
		body = "var clear=true;" + body
	} else {
		body = "var clear=false;" + body
	}
	return l.runVoid(ctx, body)
}

func (l *locator) TextContent(ctx context.Context) (string, error) {
	var res map[string]interface{}
	if err := l.eval(ctx, l.withNode(`return {value: (el.textContent||"")};`), &res); err != nil {
		return "", errs.NewTargetNotFoundError("reading text content: %v", err)
	}
	if res["__missing"] == true {
		return "", errs.NewTargetNotFoundError("target element not found")
	}
	s, _ := res["value"].(string)
	return s, nil
}

func (l *locator) GetAttribute(ctx context.Context, name string) (string, error) {
	var res map[string]interface{}
	expr := l.withNode(fmt.Sprintf(`return {value: el.getAttribute(%s)};`, jsString(name)))
	if err := l.eval(ctx, expr, &res); err != nil {
		return "", errs.NewTargetNotFoundError("reading attribute %q: %v", name, err)
	}
	if res["__missing"] == true {
		return "", errs.NewTargetNotFoundError("target element not found")
	}
	s, _ := res["value"].(string)
	return s, nil
}

func (l *locator) SelectOption(ctx context.Context, value, label string) error {
	body := fmt.Sprintf(`
var value = %s, label = %s;
var matched = false;
for (var i = 0; i < el.options.length; i++) {
  var opt = el.options[i];
  if ((value && opt.value === value) || (label && opt.text === label)) {
    el.selectedIndex = i; matched = true; break;
  }
}
if (!matched) { return {__missing:true}; }
el.dispatchEvent(new Event('change', {bubbles:true}));
return {};`, jsString(value), jsString(label))
	return l.runVoid(ctx, body)
}

func (l *locator) Press(ctx context.Context, key string) error {
	body := fmt.Sprintf(`
el.focus();
var opts = {key: %s, bubbles: true};
el.dispatchEvent(new KeyboardEvent('keydown', opts));
el.dispatchEvent(new KeyboardEvent('keypress', opts));
el.dispatchEvent(new KeyboardEvent('keyup', opts));
return {};`, jsString(key))
	return l.runVoid(ctx, body)
}

func (l *locator) SetInputFiles(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return errs.NewValidationError("upload_file: no paths given")
	}
	var n int
	if err := l.eval(ctx, fmt.Sprintf("(%s||[]).length", trimIIFEParens(l.snapshotExpr())), &n); err != nil || n == 0 {
		return errs.NewTargetNotFoundError("upload_file: target element not found")
	}
	// chromedp.SetUploadFiles needs a cdp.Node lookup, unlike the rest of
	// this adapter's JS-evaluate path, so it can't be frame-chain scoped
	// the same way; it resolves against the current tab's top document.
	var sel chromedp.QueryOption
	if strings.HasPrefix(l.xpath, cssMarker) {
		sel = chromedp.ByQuery
	} else {
		sel = chromedp.BySearch
	}
	target := strings.TrimPrefix(l.xpath, cssMarker)
	if err := chromedp.Run(l.pg.ctx, chromedp.SetUploadFiles(target, paths, sel)); err != nil {
		return errs.NewOperationalError("setting upload files: %v", err)
	}
	return nil
}

func (l *locator) WaitFor(ctx context.Context, state string) error {
	deadline := 10
	for i := 0; i < deadline*10; i++ {
		var res map[string]interface{}
		expr := l.withNode(waitForBody(state))
		if err := l.eval(ctx, expr, &res); err == nil {
			if res["__missing"] == true {
				if state == "hidden" || state == "detached" {
					return nil
				}
			} else if ok, _ := res["ok"].(bool); ok {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return errs.NewTargetNotFoundError("timed out waiting for state %q", state)
}

func waitForBody(state string) string {
	switch state {
	case "visible":
		return `var r = el.getClientRects(); return {ok: r.length > 0};`
	case "hidden":
		return `var r = el.getClientRects(); return {ok: r.length === 0};`
	case "attached":
		return `return {ok: true};`
	default:
		return `return {ok: true};`
	}
}

func (l *locator) runVoid(ctx context.Context, body string) error {
	var res map[string]interface{}
	if err := l.eval(ctx, l.withNode(body), &res); err != nil {
		return errs.NewOperationalError("%v", err)
	}
	if res["__missing"] == true {
		return errs.NewTargetNotFoundError("target element not found")
	}
	return nil
}

// cssSelector is used by Frame(): a "frame" step's target must be a plain
// CSS selector addressing an <iframe> element (§3).
func (l *locator) cssSelector() (string, error) {
	if strings.HasPrefix(l.xpath, cssMarker) {
		return strings.TrimPrefix(l.xpath, cssMarker), nil
	}
	return "", errs.NewValidationError("frame target must be a css selector")
}

// --- Controller locator constructors ---

func (c *Controller) Locator(ctx context.Context, page types.PageHandle, selector string) (types.Locator, error) {
	pg, err := toPage(page)
	if err != nil {
		return nil, err
	}
	return &cssLocator{newLocator(pg, cssToXPath(selector)), selector}, nil
}

// cssLocator wraps locator to additionally satisfy cssSelector() with the
// original selector text (XPath translation is lossy for Frame's purpose).
type cssLocator struct {
	*locator
	raw string
}

func (c *cssLocator) cssSelector() (string, error) { return c.raw, nil }

func (c *Controller) GetByRole(ctx context.Context, page types.PageHandle, role, name string, exact bool) (types.Locator, error) {
	pg, err := toPage(page)
	if err != nil {
		return nil, err
	}
	xp := fmt.Sprintf(`//*[@role=%s or (self::button and %s="button") or (self::a and %s="link") or (self::input and @type=%s)]%s`,
		jsString(role), jsString(role), jsString(role), jsString(role), nameFilter(name, exact))
	return newLocator(pg, xp), nil
}

func (c *Controller) GetByLabel(ctx context.Context, page types.PageHandle, text string, exact bool) (types.Locator, error) {
	pg, err := toPage(page)
	if err != nil {
		return nil, err
	}
	cmp := textCompare("normalize-space(.)", text, exact)
	xp := fmt.Sprintf(`//label[%s]/following::input[1] | //input[@aria-label=%s] | //*[@aria-labelledby][%s]`, cmp, jsString(text), cmp)
	return newLocator(pg, xp), nil
}

func (c *Controller) GetByText(ctx context.Context, page types.PageHandle, text string, exact bool) (types.Locator, error) {
	pg, err := toPage(page)
	if err != nil {
		return nil, err
	}
	xp := fmt.Sprintf(`//*[%s]`, textCompare("normalize-space(.)", text, exact))
	return newLocator(pg, xp), nil
}

func (c *Controller) GetByPlaceholder(ctx context.Context, page types.PageHandle, text string, exact bool) (types.Locator, error) {
	pg, err := toPage(page)
	if err != nil {
		return nil, err
	}
	xp := fmt.Sprintf(`//*[@placeholder][%s]`, textCompare("@placeholder", text, exact))
	return newLocator(pg, xp), nil
}

func (c *Controller) GetByAltText(ctx context.Context, page types.PageHandle, text string, exact bool) (types.Locator, error) {
	pg, err := toPage(page)
	if err != nil {
		return nil, err
	}
	xp := fmt.Sprintf(`//*[@alt][%s]`, textCompare("@alt", text, exact))
	return newLocator(pg, xp), nil
}

func (c *Controller) GetByTestID(ctx context.Context, page types.PageHandle, id string) (types.Locator, error) {
	pg, err := toPage(page)
	if err != nil {
		return nil, err
	}
	xp := fmt.Sprintf(`//*[@data-testid=%s]`, jsString(id))
	return newLocator(pg, xp), nil
}

func nameFilter(name string, exact bool) string {
	if name == "" {
		return ""
	}
	return "[" + textCompare("normalize-space(.)", name, exact) + "]"
}

func textCompare(xpathExpr, text string, exact bool) string {
	if exact {
		return fmt.Sprintf("%s=%s", xpathExpr, jsString(text))
	}
	return fmt.Sprintf("contains(%s, %s)", xpathExpr, jsString(text))
}

// cssToXPath wraps a CSS selector so it can ride the same XPath-snapshot
// evaluation path as the role/text/label locators above, via the
// document.evaluate-incompatible browsers' fallback: querySelectorAll
// translated into an XPath-shaped marker the snapshot expression
// special-cases. Kept intentionally simple: §4.3 targets only ever need
// simple CSS selectors (id/class/attribute/tag), not arbitrary combinators
// requiring a full CSS->XPath compiler.
func cssToXPath(selector string) string {
	return cssMarker + selector
}
