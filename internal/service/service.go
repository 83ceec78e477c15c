// Package service implements the generate-a-reviewer use case.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yangwenmai/reviewer/internal/convert"
	"github.com/yangwenmai/reviewer/internal/engine"
	"github.com/yangwenmai/reviewer/internal/logger"
	"github.com/yangwenmai/reviewer/internal/model"
)

// Allocator hands out reviewer ids.
type Allocator interface {
	Allocate(ctx context.Context, userID string, f model.FeatureType) (model.ReviewerID, error)
}

// Runner executes a feature pipeline.
type Runner interface {
	Run(ctx context.Context, f model.FeatureType, in engine.RunInput) (model.Artifact, error)
}

// Records persists and reads reviewers.
type Records interface {
	Write(ctx context.Context, userID string, f model.FeatureType, id model.ReviewerID, art model.Artifact) error
	Read(ctx context.Context, userID string, f model.FeatureType, id model.ReviewerID) (model.Artifact, error)
	List(ctx context.Context, userID string, f model.FeatureType) ([]model.ReviewerSummary, error)
}

// Converter extracts text from an uploaded file.
type Converter interface {
	Convert(ctx context.Context, path, mimeType string) (string, error)
}

// Fetcher extracts text from a web page.
type Fetcher interface {
	FetchURL(ctx context.Context, url string) (string, error)
}

// Deps are the collaborators of a Service. Converter and Fetcher may be nil,
// in which case file and URL sources are rejected.
type Deps struct {
	Allocator  Allocator
	Pipeline   Runner
	Records    Records
	Converter  Converter
	Fetcher    Fetcher
	Normalizer engine.Normalizer
	Logger     *logger.Logger

	// MarkdownOnly returns the resolved text instead of generating anything.
	MarkdownOnly bool
}

// Service runs generation requests.
type Service struct {
	deps Deps
	log  *logger.Logger
}

// New creates a Service.
func New(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{deps: deps, log: log}
}

// Request is one generation request. The first non-empty source among
// Markdown, FilePath and URL is used.
type Request struct {
	UserID     string
	Feature    model.FeatureType
	Markdown   string
	FilePath   string
	MimeType   string
	URL        string
	SourceType string
}

// Response is the body returned to the caller.
type Response struct {
	Reviewers         []map[string]any `json:"reviewers,omitempty"`
	ProcessedMarkdown string           `json:"processedMarkdown,omitempty"`
}

// Generate resolves the source text, allocates an id, runs the pipeline and
// stores the result. Content problems are reported before an id is taken; once
// taken, an id is never reused even if a later step fails.
func (s *Service) Generate(ctx context.Context, req Request) (*Response, error) {
	if !req.Feature.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownFeature, req.Feature)
	}
	log := s.log.With("user_id", req.UserID, "feature", req.Feature.String())

	text, sourceType, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	switch req.Feature {
	case model.FeatureSummarize, model.FeatureExplain:
		text = strings.TrimSpace(s.deps.Normalizer.Normalize(text, sourceType))
		if text == "" {
			return nil, model.ErrNoContent
		}
	}

	if s.deps.MarkdownOnly {
		return &Response{ProcessedMarkdown: text}, nil
	}

	id, err := s.deps.Allocator.Allocate(ctx, req.UserID, req.Feature)
	if err != nil {
		log.Error("counter allocation failed", "error", err)
		return nil, err
	}
	log = log.With("reviewer_id", id.String())

	start := time.Now()
	art, err := s.deps.Pipeline.Run(ctx, req.Feature, engine.RunInput{
		Markdown:   text,
		SourceType: sourceType,
		ReviewerID: id,
	})
	if err != nil {
		log.Error("pipeline failed", "stage", engine.FailedStage(err), "error", err)
		return nil, err
	}

	if err := s.deps.Records.Write(ctx, req.UserID, req.Feature, id, art); err != nil {
		log.Error("persist failed", "error", err)
		return nil, err
	}

	log.Info("reviewer generated", "duration_ms", time.Since(start).Milliseconds())
	return &Response{Reviewers: []map[string]any{withID(id.String(), art)}}, nil
}

// resolve returns the source text and its source type.
func (s *Service) resolve(ctx context.Context, req Request) (string, string, error) {
	sourceType := req.SourceType
	if text := strings.TrimSpace(req.Markdown); text != "" {
		if sourceType == "" {
			sourceType = "text"
		}
		return text, sourceType, nil
	}

	if req.FilePath != "" {
		if s.deps.Converter == nil {
			return "", "", fmt.Errorf("%w: file uploads are not supported", model.ErrConversion)
		}
		raw, err := s.deps.Converter.Convert(ctx, req.FilePath, req.MimeType)
		if err != nil {
			return "", "", err
		}
		if sourceType == "" {
			sourceType = convert.SourceType(convert.ResolveType(req.FilePath, req.MimeType))
		}
		if text := strings.TrimSpace(s.deps.Normalizer.Normalize(raw, sourceType)); text != "" {
			return text, sourceType, nil
		}
	}

	if req.URL != "" {
		if s.deps.Fetcher == nil {
			return "", "", fmt.Errorf("%w: url sources are not supported", model.ErrConversion)
		}
		raw, err := s.deps.Fetcher.FetchURL(ctx, req.URL)
		if err != nil {
			return "", "", err
		}
		if text := strings.TrimSpace(raw); text != "" {
			return text, "html", nil
		}
	}

	return "", "", model.ErrNoContent
}

// Get returns a stored reviewer in response form.
func (s *Service) Get(ctx context.Context, userID string, f model.FeatureType, id model.ReviewerID) (*Response, error) {
	art, err := s.deps.Records.Read(ctx, userID, f, id)
	if err != nil {
		return nil, err
	}
	return &Response{Reviewers: []map[string]any{withID(id.String(), art)}}, nil
}

// List returns the user's stored reviewers of feature f.
func (s *Service) List(ctx context.Context, userID string, f model.FeatureType) ([]model.ReviewerSummary, error) {
	return s.deps.Records.List(ctx, userID, f)
}

func withID(id string, art model.Artifact) map[string]any {
	out := make(map[string]any, len(art)+1)
	for k, v := range art {
		out[k] = v
	}
	out["id"] = id
	return out
}
