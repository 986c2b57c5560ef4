// overrides.go — network_replay override resolution (§4.4, §4.6): the
// fixed URL/body/header transformation order a replayed request goes
// through before it is dispatched, shared by both replay paths.
package replay

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/types"
)

// RegexReplace is a compile-once find/replace pair used by urlReplace and
// bodyReplace.
type RegexReplace struct {
	Pattern string
	Replace string
}

// Overrides is the resolved, templated form of a network_replay step's
// "overrides" param block.
type Overrides struct {
	URLReplace  *RegexReplace
	URL         string
	SetQuery    map[string]string
	BodyReplace *RegexReplace
	Body        string
	SetHeaders  map[string]string
}

// ResolveURL applies the override chain for a request's URL: urlReplace
// regex, then an explicit url override, then a setQuery merge (§4.4).
func ResolveURL(original string, ov Overrides) (string, error) {
	result := original
	if ov.URLReplace != nil {
		re, err := regexp.Compile(ov.URLReplace.Pattern)
		if err != nil {
			return "", errs.NewValidationError("overrides.urlReplace: %v", err)
		}
		result = re.ReplaceAllString(result, ov.URLReplace.Replace)
	}
	if ov.URL != "" {
		result = ov.URL
	}
	if len(ov.SetQuery) == 0 {
		return result, nil
	}
	u, err := url.Parse(result)
	if err != nil {
		return "", errs.NewValidationError("overrides produced an unparseable URL %q: %v", result, err)
	}
	q := u.Query()
	for k, v := range ov.SetQuery {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ResolveBody applies the override chain for a request body: bodyReplace
// regex, then an explicit body override (§4.4).
func ResolveBody(original string, ov Overrides) (string, error) {
	result := original
	if ov.BodyReplace != nil {
		re, err := regexp.Compile(ov.BodyReplace.Pattern)
		if err != nil {
			return "", errs.NewValidationError("overrides.bodyReplace: %v", err)
		}
		result = re.ReplaceAllString(result, ov.BodyReplace.Replace)
	}
	if ov.Body != "" {
		result = ov.Body
	}
	return result, nil
}

// ResolveHeaders merges SetHeaders onto base, rejecting any sensitive
// header (§4.4: "Sensitive-header blocklist applies to setHeaders").
func ResolveHeaders(base map[string]string, ov Overrides) (map[string]string, error) {
	out := make(map[string]string, len(base)+len(ov.SetHeaders))
	for k, v := range base {
		out[k] = v
	}
	// Deterministic order so the rejected header in an error is stable
	// across runs when multiple are invalid.
	keys := make([]string, 0, len(ov.SetHeaders))
	for k := range ov.SetHeaders {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if types.SensitiveHeaders[strings.ToLower(k)] {
			return nil, errs.NewSensitiveHeaderError(k)
		}
		out[k] = ov.SetHeaders[k]
	}
	return out, nil
}

// ContentLengthHeader is the canonical header name stripped before a
// pure-HTTP replay send, per §4.6: "content-length must be stripped before
// send... a new one is computed by the client."
const ContentLengthHeader = "Content-Length"

// StripContentLength removes any content-length header (case-insensitive
// key) from headers, returning a new map.
func StripContentLength(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if strings.EqualFold(k, ContentLengthHeader) {
			continue
		}
		out[k] = v
	}
	return out
}
