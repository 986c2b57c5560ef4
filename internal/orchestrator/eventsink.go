// eventsink.go — events.jsonl writer (§6): one NDJSON line per interpreter
// event, flushed as it's written so a crashed run still leaves a readable
// partial stream.
package orchestrator

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/interpreter"
	"github.com/eyupulker/showrun/internal/redaction"
)

// fileSink implements interpreter.Sink by appending one JSON line per
// event to an open file. Every event's data payload is passed through the
// redaction engine first (§3, §7, §9: "wrap every log and error sink with
// a redaction pass") since events.jsonl is a persisted artifact a
// templated URL, header, or error message could otherwise leak a secret
// into.
type fileSink struct {
	mu       sync.Mutex
	f        *os.File
	enc      *json.Encoder
	redactor *redaction.RedactionEngine
}

func newFileSink(path string, redactor *redaction.RedactionEngine) (*fileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errs.NewOperationalError("opening event stream %s: %v", path, err)
	}
	if redactor == nil {
		redactor = redaction.NewRedactionEngine("")
	}
	return &fileSink{f: f, enc: json.NewEncoder(f), redactor: redactor}, nil
}

func (s *fileSink) Emit(e interpreter.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Data = redactEventData(e.Data, s.redactor)
	_ = s.enc.Encode(e) // a dropped event must never abort the run
}

func (s *fileSink) Close() error {
	return s.f.Close()
}

// redactEventData walks data's values and redacts every string, including
// those nested inside maps/slices, so a secret riding along inside a
// step's params/URL/error text never reaches the persisted event stream.
func redactEventData(data map[string]any, r *redaction.RedactionEngine) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = redactEventValue(v, r)
	}
	return out
}

func redactEventValue(v any, r *redaction.RedactionEngine) any {
	switch t := v.(type) {
	case string:
		return r.Redact(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = redactEventValue(vv, r)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = redactEventValue(vv, r)
		}
		return out
	default:
		return v
	}
}
