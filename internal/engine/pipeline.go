package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yangwenmai/reviewer/internal/logger"
	"github.com/yangwenmai/reviewer/internal/model"
)

// Pipeline runs a feature's stages in order. Each stage's prompt is built from
// the previous stage's output, so nothing runs in parallel.
type Pipeline struct {
	registry     *Registry
	exec         *Executor
	normalizer   Normalizer
	log          *logger.Logger
	stageTimeout time.Duration
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithStageTimeout bounds every generation call. Zero disables the deadline.
func WithStageTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.stageTimeout = d }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = l }
}

// NewPipeline creates a pipeline with the given dependencies.
func NewPipeline(reg *Registry, mc ModelClient, norm Normalizer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry:   reg,
		exec:       NewExecutor(mc),
		normalizer: norm,
		log:        logger.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunInput is the source of one run.
type RunInput struct {
	Markdown   string
	SourceType string
	ReviewerID model.ReviewerID
}

// Run executes every stage of feature's definition and returns the final
// artifact. On failure it returns a *StageError naming the stage.
func (p *Pipeline) Run(ctx context.Context, feature model.FeatureType, in RunInput) (model.Artifact, error) {
	def, ok := p.registry.Definition(feature)
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownFeature, feature)
	}
	log := p.log.With("feature", feature.String(), "reviewer_id", in.ReviewerID.String())

	state := StageInput{Markdown: in.Markdown}
	var final model.Artifact
	for _, st := range def.Stages {
		if err := ctx.Err(); err != nil {
			return nil, &StageError{Feature: feature, Stage: st.Name, Kind: model.ErrUpstreamGeneration, Err: err}
		}

		user, err := st.Input(state)
		if err != nil {
			return nil, &StageError{Feature: feature, Stage: st.Name, Kind: model.ErrUpstreamFormat, Err: err}
		}

		start := time.Now()
		log.Info("stage started", "stage", st.Name)
		raw, err := p.runStage(ctx, st, user)
		duration := time.Since(start).Milliseconds()
		if err != nil {
			log.Error("stage failed", "stage", st.Name, "duration_ms", duration, "error", err)
			return nil, &StageError{Feature: feature, Stage: st.Name, Kind: model.ErrUpstreamGeneration, Err: err}
		}
		log.Debug("stage output", "stage", st.Name, "raw", raw)

		switch st.Contract {
		case ContractMarkdown:
			md := StripFences(raw)
			if md == "" {
				log.Warn("empty markdown output, using local normalizer", "stage", st.Name)
				md = p.normalizer.Normalize(state.Markdown, in.SourceType)
			}
			state.Markdown = md

		case ContractJSON:
			art, err := Extract(raw, feature, st.Name)
			if err != nil {
				if st.Optional && final != nil {
					log.Warn("optional stage output unusable, keeping previous output", "stage", st.Name, "error", err)
					continue
				}
				log.Error("stage output rejected", "stage", st.Name, "duration_ms", duration, "error", err)
				return nil, &StageError{Feature: feature, Stage: st.Name, Kind: model.ErrUpstreamFormat, Err: err}
			}
			final = art
			state.Previous = art
		}
		log.Info("stage finished", "stage", st.Name, "duration_ms", duration)
	}

	if final == nil {
		return nil, fmt.Errorf("%w: %s produced no structured output", model.ErrUpstreamFormat, feature)
	}
	return final, nil
}

func (p *Pipeline) runStage(ctx context.Context, st StageSpec, user string) (string, error) {
	if p.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.stageTimeout)
		defer cancel()
	}
	raw, err := p.exec.Run(ctx, st.System, user, st.Temperature)
	if err == nil && ctx.Err() != nil {
		// The client ignored the deadline; its answer arrived too late.
		return "", ctx.Err()
	}
	return raw, err
}

// StageError wraps an error with the stage that failed. It matches both its
// kind (one of the model error sentinels) and the underlying cause.
type StageError struct {
	Feature model.FeatureType
	Stage   string
	Kind    error
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Feature, e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// StepName returns the failed stage name.
func (e *StageError) StepName() string {
	return e.Stage
}

// FailedStage returns the stage name carried by err, or "" if there is none.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.StepName()
	}
	return ""
}
