package engine

import (
	"errors"
	"testing"

	"github.com/yangwenmai/reviewer/internal/model"
)

func TestExtract_Valid(t *testing.T) {
	raw := "```json\n{\"title\":\"Networking\",\"questions\":[{\"id\":\"q1\"}]}\n```"
	art, err := Extract(raw, model.FeatureTerms, "definitions")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if art.Title() != "Networking" {
		t.Errorf("title = %q", art.Title())
	}
	qs, ok := art["questions"].([]any)
	if !ok || len(qs) != 1 {
		t.Errorf("questions = %#v", art["questions"])
	}
}

func TestExtract_KeepsUnknownFields(t *testing.T) {
	art, err := Extract(`{"title":"T","extra":{"x":[1,2]}}`, model.FeatureSummarize, "summary")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if _, ok := art["extra"]; !ok {
		t.Error("extra field dropped")
	}
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"fence only", "```json\n```"},
		{"prose", "Sure! Here is your JSON."},
		{"truncated", `{"title": "x"`},
		{"array", `[1,2,3]`},
		{"null", `null`},
		{"string", `"just text"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.raw, model.FeatureAcronym, "groups")
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, model.ErrUpstreamFormat) {
				t.Errorf("error %v is not ErrUpstreamFormat", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not *ParseError", err)
			}
			if pe.Raw != tt.raw {
				t.Errorf("Raw = %q, want %q", pe.Raw, tt.raw)
			}
			if pe.Stage != "groups" || pe.Feature != model.FeatureAcronym {
				t.Errorf("ParseError = %+v", pe)
			}
		})
	}
}

func TestExtract_NonObjectMessage(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`[{"title":"x"}]`, "top-level value is an array, want object"},
		{`null`, "top-level value is null, want object"},
		{`42`, "top-level value is a number, want object"},
	}
	for _, tt := range tests {
		_, err := Extract(tt.raw, model.FeatureTerms, "options")
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("Extract(%s) error = %v, want *ParseError", tt.raw, err)
		}
		if pe.Err.Error() != tt.want {
			t.Errorf("Extract(%s) cause = %q, want %q", tt.raw, pe.Err.Error(), tt.want)
		}
	}
}
