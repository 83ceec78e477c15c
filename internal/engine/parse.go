package engine

import (
	"encoding/json"
	"fmt"

	"github.com/yangwenmai/reviewer/internal/model"
)

// ParseError reports generation output that does not satisfy a JSON stage
// contract. Raw holds the unmodified output for diagnostics.
type ParseError struct {
	Feature model.FeatureType
	Stage   string
	Raw     string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s/%s output: %v", e.Feature, e.Stage, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{model.ErrUpstreamFormat, e.Err}
}

// Extract strips fences from raw and decodes it. The output must be valid JSON
// whose top level is an object; fields inside it are not checked.
func Extract(raw string, feature model.FeatureType, stage string) (model.Artifact, error) {
	text := StripFences(raw)
	if text == "" {
		return nil, &ParseError{Feature: feature, Stage: stage, Raw: raw, Err: fmt.Errorf("empty output")}
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, &ParseError{Feature: feature, Stage: stage, Raw: raw, Err: err}
	}
	out, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Feature: feature, Stage: stage, Raw: raw, Err: fmt.Errorf("top-level value is %s, want object", jsonKind(v))}
	}
	return model.Artifact(out), nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case float64:
		return "a number"
	case bool:
		return "a boolean"
	}
	return fmt.Sprintf("%T", v)
}
