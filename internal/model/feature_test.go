package model

import (
	"errors"
	"testing"
)

func TestParseFeature(t *testing.T) {
	tests := []struct {
		in      string
		want    FeatureType
		wantErr bool
	}{
		{"acronym", FeatureAcronym, false},
		{"Terms", FeatureTerms, false},
		{" summarize ", FeatureSummarize, false},
		{"explain", FeatureExplain, false},
		{"quiz", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFeature(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFeature(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownFeature) {
				t.Errorf("error should wrap ErrUnknownFeature, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseFeature(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFeatureTable(t *testing.T) {
	tests := []struct {
		f      FeatureType
		prefix string
		folder string
		field  string
	}{
		{FeatureAcronym, "ac", "AcronymMnemonics", "acronymCounter"},
		{FeatureTerms, "td", "TermsAndCondition", "termCounter"},
		{FeatureSummarize, "std", "SummarizedReviewers", "summarizationCounter"},
		{FeatureExplain, "ai", "SummarizedAIReviewers", "aiCounter"},
	}
	for _, tt := range tests {
		if got := tt.f.Prefix(); got != tt.prefix {
			t.Errorf("%s.Prefix() = %q, want %q", tt.f, got, tt.prefix)
		}
		if got := tt.f.Folder(); got != tt.folder {
			t.Errorf("%s.Folder() = %q, want %q", tt.f, got, tt.folder)
		}
		if got := tt.f.CounterField(); got != tt.field {
			t.Errorf("%s.CounterField() = %q, want %q", tt.f, got, tt.field)
		}
	}
}

func TestNewReviewerID(t *testing.T) {
	if got := NewReviewerID(FeatureAcronym, 7); got != "ac7" {
		t.Errorf("NewReviewerID = %q, want %q", got, "ac7")
	}
	if got := NewReviewerID(FeatureSummarize, 12); got != "std12" {
		t.Errorf("NewReviewerID = %q, want %q", got, "std12")
	}
}

func TestCountersNext(t *testing.T) {
	var c Counters
	for want := int64(1); want <= 3; want++ {
		got, err := c.Next(FeatureTerms)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != want {
			t.Errorf("Next = %d, want %d", got, want)
		}
	}
	if c.Get(FeatureAcronym) != 0 {
		t.Errorf("acronym counter changed: %d", c.Get(FeatureAcronym))
	}
	if _, err := c.Next("quiz"); !errors.Is(err, ErrUnknownFeature) {
		t.Errorf("Next(unknown) error = %v, want ErrUnknownFeature", err)
	}
}

func TestCountersFromFields(t *testing.T) {
	c, err := CountersFromFields(map[string]string{
		"acronymCounter": "4",
		"aiCounter":      "2",
		"other":          "x",
	})
	if err != nil {
		t.Fatalf("CountersFromFields: %v", err)
	}
	if c.Acronym != 4 || c.AI != 2 || c.Term != 0 {
		t.Errorf("counters = %+v", c)
	}
	if _, err := CountersFromFields(map[string]string{"termCounter": "-1"}); err == nil {
		t.Error("negative counter should fail")
	}
	if _, err := CountersFromFields(map[string]string{"termCounter": "abc"}); err == nil {
		t.Error("non-numeric counter should fail")
	}

	fields := c.Fields()
	if fields["acronymCounter"] != 4 || fields["summarizationCounter"] != 0 || len(fields) != 4 {
		t.Errorf("Fields = %v", fields)
	}
}
