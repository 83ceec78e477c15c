package engine

import (
	"fmt"

	"github.com/yangwenmai/reviewer/internal/model"
)

// Contract is what a stage's output must satisfy before the run moves on.
type Contract int

const (
	// ContractMarkdown output is free text. Empty output falls back to the
	// local normalizer.
	ContractMarkdown Contract = iota
	// ContractJSON output must parse as a JSON object.
	ContractJSON
)

func (c Contract) String() string {
	if c == ContractJSON {
		return "json"
	}
	return "markdown"
}

// StageInput is what a stage can build its user prompt from: the current
// markdown text and the parsed output of the latest JSON stage.
type StageInput struct {
	Markdown string
	Previous model.Artifact
}

// StageSpec describes one generation stage.
type StageSpec struct {
	Name        string
	System      string
	Temperature float64
	Contract    Contract
	Input       func(StageInput) (string, error)

	// Optional stages refine the previous JSON output. If their own output
	// fails to parse, the previous output is kept.
	Optional bool
}

// Definition is the ordered stage list of one feature.
type Definition struct {
	Feature model.FeatureType
	Stages  []StageSpec
}

// RegistryOptions tunes the definitions built by NewRegistry.
type RegistryOptions struct {
	// VerifyAcronyms appends the mnemonic verification stage to Acronym.
	VerifyAcronyms bool
	// MaxTextLength caps the source text placed in a prompt, in runes.
	MaxTextLength int
}

// Registry holds the immutable per-feature definitions.
type Registry struct {
	defs map[model.FeatureType]Definition
}

// NewRegistry builds every feature definition from the embedded prompt table.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	prompts, err := loadPrompts()
	if err != nil {
		return nil, err
	}

	b := registryBuilder{prompts: prompts, maxText: opts.MaxTextLength}

	acronym := []StageSpec{
		b.markdownStage(model.FeatureAcronym, "restructure"),
		b.contentStage(model.FeatureAcronym, "groups"),
		b.dataStage(model.FeatureAcronym, "mnemonics", false),
	}
	if opts.VerifyAcronyms {
		acronym = append(acronym, b.dataStage(model.FeatureAcronym, "verify", true))
	}

	r := &Registry{defs: map[model.FeatureType]Definition{
		model.FeatureAcronym: {Feature: model.FeatureAcronym, Stages: acronym},
		model.FeatureTerms: {Feature: model.FeatureTerms, Stages: []StageSpec{
			b.contentStage(model.FeatureTerms, "definitions"),
			b.dataStage(model.FeatureTerms, "options", false),
		}},
		model.FeatureSummarize: {Feature: model.FeatureSummarize, Stages: []StageSpec{
			b.contentStage(model.FeatureSummarize, "summary"),
		}},
		model.FeatureExplain: {Feature: model.FeatureExplain, Stages: []StageSpec{
			b.contentStage(model.FeatureExplain, "explanation"),
		}},
	}}
	if b.err != nil {
		return nil, b.err
	}
	return r, nil
}

// Definition returns the stages for f.
func (r *Registry) Definition(f model.FeatureType) (Definition, bool) {
	d, ok := r.defs[f]
	return d, ok
}

// registryBuilder records the first missing prompt so NewRegistry can report it.
type registryBuilder struct {
	prompts promptTable
	maxText int
	err     error
}

func (b *registryBuilder) system(f model.FeatureType, stage string) string {
	p, err := b.prompts.system(f, stage)
	if err != nil && b.err == nil {
		b.err = err
	}
	return p
}

func (b *registryBuilder) markdownStage(f model.FeatureType, name string) StageSpec {
	s := b.contentStage(f, name)
	s.Contract = ContractMarkdown
	return s
}

func (b *registryBuilder) contentStage(f model.FeatureType, name string) StageSpec {
	maxText := b.maxText
	return StageSpec{
		Name:     name,
		System:   b.system(f, name),
		Contract: ContractJSON,
		Input: func(in StageInput) (string, error) {
			return buildContentPrompt(in.Markdown, maxText), nil
		},
	}
}

func (b *registryBuilder) dataStage(f model.FeatureType, name string, optional bool) StageSpec {
	return StageSpec{
		Name:     name,
		System:   b.system(f, name),
		Contract: ContractJSON,
		Optional: optional,
		Input: func(in StageInput) (string, error) {
			if in.Previous == nil {
				return "", fmt.Errorf("stage %s needs the previous stage output", name)
			}
			return buildDataPrompt(in.Previous)
		},
	}
}
