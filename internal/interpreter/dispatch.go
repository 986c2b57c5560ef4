// dispatch.go — per-step-type dispatch table (§3, §4.4).
package interpreter

import (
	"context"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/types"
)

// httpSkippedSet is silently no-op'd when the interpreter runs in
// HTTP-only mode (§4.7 rule 4).
var httpSkippedSet = map[string]bool{
	"navigate": true, "click": true, "fill": true, "select_option": true,
	"press_key": true, "upload_file": true, "wait_for": true, "assert": true,
	"frame": true, "new_tab": true, "switch_tab": true, "network_find": true,
	"dom_scrape": true,
}

func (in *Interpreter) dispatch(ctx context.Context, step types.Step, rc *runContext) error {
	params, err := in.resolveParams(step.Params, rc.state)
	if err != nil {
		return err
	}

	switch step.Type {
	case "navigate":
		return in.stepNavigate(ctx, step, params, rc)
	case "wait_for":
		return in.stepWaitFor(ctx, step, params, rc)
	case "click":
		return in.stepClick(ctx, step, params, rc)
	case "fill":
		return in.stepFill(ctx, step, params, rc)
	case "extract_text":
		return in.stepExtractText(ctx, step, params, rc)
	case "extract_attribute":
		return in.stepExtractAttribute(ctx, step, params, rc)
	case "extract_title":
		return in.stepExtractTitle(ctx, step, params, rc)
	case "dom_scrape":
		return in.stepDomScrape(ctx, step, params, rc)
	case "sleep":
		return in.stepSleep(ctx, params)
	case "assert":
		return in.stepAssert(ctx, step, params, rc)
	case "set_var":
		return in.stepSetVar(step, params, rc)
	case "select_option":
		return in.stepSelectOption(ctx, step, params, rc)
	case "press_key":
		return in.stepPressKey(ctx, step, params, rc)
	case "upload_file":
		return in.stepUploadFile(ctx, step, params, rc)
	case "frame":
		return in.stepFrame(ctx, step, params, rc)
	case "new_tab":
		return in.stepNewTab(ctx, params, rc)
	case "switch_tab":
		return in.stepSwitchTab(ctx, params, rc)
	case "network_find":
		return in.stepNetworkFind(ctx, step, params, rc)
	case "network_replay":
		return in.stepNetworkReplay(ctx, step, params, rc)
	case "network_extract":
		return in.stepNetworkExtract(step, params, rc)
	default:
		return errs.NewValidationError("unknown step type %q", step.Type)
	}
}
