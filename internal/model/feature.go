package model

import (
	"fmt"
	"strconv"
	"strings"
)

// FeatureType selects which study aid a request produces.
type FeatureType string

// Feature type constants
const (
	FeatureAcronym   FeatureType = "acronym"
	FeatureTerms     FeatureType = "terms"
	FeatureSummarize FeatureType = "summarize"
	FeatureExplain   FeatureType = "explain"
)

type featureInfo struct {
	folder       string
	prefix       string
	counterField string
}

var featureTable = map[FeatureType]featureInfo{
	FeatureAcronym:   {folder: "AcronymMnemonics", prefix: "ac", counterField: "acronymCounter"},
	FeatureTerms:     {folder: "TermsAndCondition", prefix: "td", counterField: "termCounter"},
	FeatureSummarize: {folder: "SummarizedReviewers", prefix: "std", counterField: "summarizationCounter"},
	FeatureExplain:   {folder: "SummarizedAIReviewers", prefix: "ai", counterField: "aiCounter"},
}

// Features returns every feature type in a stable order.
func Features() []FeatureType {
	return []FeatureType{FeatureAcronym, FeatureTerms, FeatureSummarize, FeatureExplain}
}

// ParseFeature converts a route segment or flag value into a FeatureType.
func ParseFeature(s string) (FeatureType, error) {
	f := FeatureType(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeature, s)
	}
	return f, nil
}

// Valid reports whether f is one of the four known feature types.
func (f FeatureType) Valid() bool {
	_, ok := featureTable[f]
	return ok
}

// Folder is the store collection segment that groups reviewers of this feature.
func (f FeatureType) Folder() string { return featureTable[f].folder }

// Prefix is the ReviewerID prefix for this feature.
func (f FeatureType) Prefix() string { return featureTable[f].prefix }

// CounterField is the name of the per-user counter backing this feature's ids.
func (f FeatureType) CounterField() string { return featureTable[f].counterField }

func (f FeatureType) String() string { return string(f) }

// ReviewerID is the human-readable, per-user sequential identifier of one artifact, e.g. "ac7".
// IDs are unique within (user, feature) but not necessarily contiguous: failed runs consume a value.
type ReviewerID string

// NewReviewerID joins the feature prefix and counter value.
func NewReviewerID(f FeatureType, n int64) ReviewerID {
	return ReviewerID(f.Prefix() + strconv.FormatInt(n, 10))
}

func (id ReviewerID) String() string { return string(id) }

// Counters holds one allocation counter per feature type for a single user.
type Counters struct {
	Acronym       int64 `json:"acronymCounter"`
	Term          int64 `json:"termCounter"`
	Summarization int64 `json:"summarizationCounter"`
	AI            int64 `json:"aiCounter"`
}

// Get returns the current count for f.
func (c Counters) Get(f FeatureType) int64 {
	if p := c.field(f); p != nil {
		return *p
	}
	return 0
}

// Next increments the counter for f and returns the new value.
func (c *Counters) Next(f FeatureType) (int64, error) {
	p := c.field(f)
	if p == nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFeature, f)
	}
	*p++
	return *p, nil
}

// Fields returns the counters keyed by their stored field names.
func (c Counters) Fields() map[string]int64 {
	out := make(map[string]int64, len(featureTable))
	for _, f := range Features() {
		out[f.CounterField()] = c.Get(f)
	}
	return out
}

// CountersFromFields rebuilds Counters from stored field values. Unknown fields are ignored.
func CountersFromFields(fields map[string]string) (Counters, error) {
	var c Counters
	for _, f := range Features() {
		raw, ok := fields[f.CounterField()]
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Counters{}, fmt.Errorf("counter %s: %w", f.CounterField(), err)
		}
		if n < 0 {
			return Counters{}, fmt.Errorf("counter %s is negative: %d", f.CounterField(), n)
		}
		*c.field(f) = n
	}
	return c, nil
}

func (c *Counters) field(f FeatureType) *int64 {
	switch f {
	case FeatureAcronym:
		return &c.Acronym
	case FeatureTerms:
		return &c.Term
	case FeatureSummarize:
		return &c.Summarization
	case FeatureExplain:
		return &c.AI
	}
	return nil
}
