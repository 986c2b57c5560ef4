// guard.go — AuthGuardChecker: proactive (off by default) check of whether
// the browser currently looks authenticated (§4.8).
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/eyupulker/showrun/internal/types"
)

// GuardStrategy configures AuthGuardChecker.
type GuardStrategy struct {
	VisibleSelector string
	URLIncludes     string
}

// GuardChecker checks proactively whether a page is in an authenticated
// state, via a visible selector or URL substring.
type GuardChecker struct {
	controller types.BrowserController
	strategy   GuardStrategy
}

// NewGuardChecker builds a GuardChecker for the given strategy.
func NewGuardChecker(controller types.BrowserController, strategy GuardStrategy) *GuardChecker {
	return &GuardChecker{controller: controller, strategy: strategy}
}

// Check returns true iff strategy.VisibleSelector is visible within a
// bounded wait, or the current URL contains strategy.URLIncludes.
func (g *GuardChecker) Check(ctx context.Context, page types.PageHandle) (bool, error) {
	if g.strategy.URLIncludes != "" {
		url, err := g.controller.URL(ctx, page)
		if err != nil {
			return false, err
		}
		if strings.Contains(url, g.strategy.URLIncludes) {
			return true, nil
		}
	}
	if g.strategy.VisibleSelector != "" {
		loc, err := g.controller.Locator(ctx, page, g.strategy.VisibleSelector)
		if err != nil {
			return false, err
		}
		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := loc.WaitFor(waitCtx, "visible"); err == nil {
			return true, nil
		}
	}
	return false, nil
}
