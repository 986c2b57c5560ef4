package pack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyupulker/showrun/internal/types"
)

func minimalPack() *types.TaskPack {
	return &types.TaskPack{
		ID:   "example-pack",
		Name: "Example",
		Kind: "json-dsl",
		Flow: []types.Step{
			{ID: "s1", Type: "navigate", Params: map[string]any{"url": "https://ex.test"}},
		},
	}
}

func TestValidate_HappyPath(t *testing.T) {
	p := minimalPack()
	require.NoError(t, Validate(p, nil))
}

func TestValidate_DuplicateStepIDsCollected(t *testing.T) {
	p := minimalPack()
	p.Flow = append(p.Flow, types.Step{ID: "s1", Type: "extract_title", Params: map[string]any{"out": "title"}})

	var sink []error
	err := Validate(p, &sink)
	require.NoError(t, err)
	require.Len(t, sink, 1)
	assert.Contains(t, sink[0].Error(), `duplicate step id "s1"`)
}

func TestValidate_FailFastReferencesFirstViolationStepIndex(t *testing.T) {
	p := minimalPack()
	p.Flow[0].Type = "bogus_type"
	err := Validate(p, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Step 0")
}

func TestValidate_UnknownStepTypeSkipsParamCheck(t *testing.T) {
	p := minimalPack()
	p.Flow[0] = types.Step{ID: "s1", Type: "bogus_type", Params: map[string]any{"whatever": true}}
	var sink []error
	require.NoError(t, Validate(p, &sink))
	require.Len(t, sink, 1) // only the unknown-type diagnostic, not a param diagnostic too
	assert.Contains(t, sink[0].Error(), "unknown step type")
}

func TestValidate_UnknownParamSteersExtractTextToNetworkExtract(t *testing.T) {
	p := minimalPack()
	p.Flow[0] = types.Step{ID: "s1", Type: "extract_text", Params: map[string]any{
		"target": map[string]any{"kind": "css", "selector": "h1"},
		"out":    "x",
		"eval":   "$.foo",
	}}
	var sink []error
	require.NoError(t, Validate(p, &sink))
	require.Len(t, sink, 1)
	assert.Contains(t, sink[0].Error(), "network_extract")
	assert.Contains(t, sink[0].Error(), "JMESPath")
}

func TestValidate_NetworkFindRejectsInvalidRegex(t *testing.T) {
	p := minimalPack()
	p.Flow[0] = types.Step{ID: "s1", Type: "network_find", Params: map[string]any{
		"where":  map[string]any{"urlRegex": "("},
		"saveAs": "r",
	}}
	err := Validate(p, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid regex")
}

func TestValidate_NetworkFindResponseContainsBoundary(t *testing.T) {
	ok := make([]byte, 2000)
	for i := range ok {
		ok[i] = 'a'
	}
	bad := make([]byte, 2001)
	for i := range bad {
		bad[i] = 'a'
	}

	p := minimalPack()
	p.Flow[0] = types.Step{ID: "s1", Type: "network_find", Params: map[string]any{
		"where":  map[string]any{"responseContains": string(ok)},
		"saveAs": "r",
	}}
	require.NoError(t, Validate(p, nil))

	p.Flow[0].Params["where"].(map[string]any)["responseContains"] = string(bad)
	require.Error(t, Validate(p, nil))
}

func TestValidate_NetworkFindPollIntervalBoundary(t *testing.T) {
	p := minimalPack()
	p.Flow[0] = types.Step{ID: "s1", Type: "network_find", Params: map[string]any{
		"where":          map[string]any{"urlIncludes": "/api"},
		"saveAs":         "r",
		"pollIntervalMs": float64(99),
	}}
	require.Error(t, Validate(p, nil))

	p.Flow[0].Params["pollIntervalMs"] = float64(100)
	require.NoError(t, Validate(p, nil))
}

func TestValidate_NetworkReplayRejectsSensitiveHeaderOverride(t *testing.T) {
	p := minimalPack()
	p.Flow[0] = types.Step{ID: "s1", Type: "network_replay", Params: map[string]any{
		"requestId": "{{vars.r}}",
		"auth":      "browser_context",
		"out":       "o",
		"response":  map[string]any{"as": "json"},
		"overrides": map[string]any{
			"setHeaders": map[string]any{"Authorization": "Bearer x"},
		},
	}}
	err := Validate(p, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sensitive header")
}

func TestValidate_UnknownTargetRole(t *testing.T) {
	p := minimalPack()
	p.Flow[0] = types.Step{ID: "s1", Type: "click", Params: map[string]any{
		"target": map[string]any{"kind": "role", "role": "not-a-role"},
	}}
	// Role enum validity is enforced by the target resolver, not the
	// structural validator (targets are opaque param blobs here); this
	// test documents that expectation rather than asserting a validator
	// failure.
	require.NoError(t, Validate(p, nil))
}

func TestApplyDefaults_MissingKeyGetsDefault(t *testing.T) {
	schema := types.InputSchema{"count": {Type: "number", Default: float64(10)}}
	out := ApplyDefaults(map[string]any{}, schema)
	assert.Equal(t, float64(10), out["count"])
}

func TestApplyDefaults_ExplicitFalsyValuesSuppressDefault(t *testing.T) {
	schema := types.InputSchema{"count": {Type: "number", Default: float64(10)}}
	out := ApplyDefaults(map[string]any{"count": float64(0)}, schema)
	assert.Equal(t, float64(0), out["count"])
}

func TestValidateInputs_RejectsUnknownField(t *testing.T) {
	schema := types.InputSchema{"name": {Type: "string"}}
	err := ValidateInputs(map[string]any{"name": "a", "extra": 1}, schema)
	require.Error(t, err)
}

func TestValidateInputs_MissingRequiredField(t *testing.T) {
	schema := types.InputSchema{"name": {Type: "string", Required: true}}
	err := ValidateInputs(map[string]any{}, schema)
	require.Error(t, err)
}
