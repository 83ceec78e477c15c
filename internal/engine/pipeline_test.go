package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yangwenmai/reviewer/internal/model"
)

// scriptedClient returns queued responses in order and records every prompt.
type scriptedClient struct {
	mu        sync.Mutex
	responses []string
	errs      map[int]error
	prompts   []Prompt
}

func (c *scriptedClient) Complete(_ context.Context, p Prompt) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := len(c.prompts)
	c.prompts = append(c.prompts, p)
	if err := c.errs[i]; err != nil {
		return "", err
	}
	if i >= len(c.responses) {
		return "", fmt.Errorf("unexpected call %d", i)
	}
	return c.responses[i], nil
}

// recordingNormalizer tags its output so tests can see it was used.
type recordingNormalizer struct {
	calls []string
}

func (n *recordingNormalizer) Normalize(text, sourceType string) string {
	n.calls = append(n.calls, sourceType)
	return "## Normalized\n\n" + text
}

func newTestPipeline(t *testing.T, mc ModelClient, opts RegistryOptions, popts ...PipelineOption) (*Pipeline, *recordingNormalizer) {
	t.Helper()
	reg, err := NewRegistry(opts)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	norm := &recordingNormalizer{}
	return NewPipeline(reg, mc, norm, popts...), norm
}

const (
	termsStage1 = `{"title":"Networking","questions":[{"id":"q1","term":"TCP","definition":"reliable transport protocol"}]}`
	termsStage2 = "```json\n" + `{"title":"Networking","questions":[{"id":"q1","term":"TCP","definition":[
		{"text":"reliable transport protocol","type":"correct"},
		{"text":"a connectionless protocol that sends datagrams without delivery guarantees, ordering, or congestion control, used mainly for streaming and lookups","type":"wrong"},
		{"text":"a routing protocol that exchanges reachability information between autonomous systems on the internet backbone using path vectors and policies","type":"wrong"},
		{"text":"a naming service that maps host names to addresses","type":"wrong"}]}]}` + "\n```"
)

func TestPipeline_TermsScenario(t *testing.T) {
	mc := &scriptedClient{responses: []string{termsStage1, termsStage2}}
	p, _ := newTestPipeline(t, mc, RegistryOptions{})

	art, err := p.Run(context.Background(), model.FeatureTerms, RunInput{Markdown: "TCP: reliable transport protocol.", ReviewerID: "td1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(mc.prompts) != 2 {
		t.Fatalf("calls = %d, want 2", len(mc.prompts))
	}
	if !strings.Contains(mc.prompts[0].User, "TCP: reliable transport protocol.") {
		t.Errorf("stage 1 prompt missing source: %q", mc.prompts[0].User)
	}
	if !strings.Contains(mc.prompts[1].User, `"term": "TCP"`) {
		t.Errorf("stage 2 prompt missing stage 1 output: %q", mc.prompts[1].User)
	}

	var terms model.TermsArtifact
	if err := art.Decode(&terms); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(terms.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(terms.Questions))
	}
	q := terms.Questions[0]
	if err := q.CheckOptions(); err != nil {
		t.Error(err)
	}
	for _, d := range q.Definition {
		if d.Type == model.OptionCorrect && d.Text != "reliable transport protocol" {
			t.Errorf("correct option = %q", d.Text)
		}
	}
}

func TestPipeline_AcronymScenario(t *testing.T) {
	groups := `{"title":"Economics","groups":[{"id":"q1","title":"Factors of Production","terms":["Land","Labor","Capital"]}]}`
	mc := &scriptedClient{responses: []string{"## Factors of Production\n\n- Land\n- Labor\n- Capital", groups}}
	stub := &StubModelClient{}
	// The first two stages are scripted; the mnemonic stage is answered by the stub.
	client := modelFunc(func(ctx context.Context, p Prompt) (string, error) {
		if len(mc.prompts) < 2 {
			return mc.Complete(ctx, p)
		}
		return stub.Complete(ctx, p)
	})
	p, _ := newTestPipeline(t, client, RegistryOptions{})

	art, err := p.Run(context.Background(), model.FeatureAcronym, RunInput{Markdown: "Land Labor Capital", ReviewerID: "ac1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var acr model.AcronymArtifact
	if err := art.Decode(&acr); err != nil {
		t.Fatal(err)
	}
	if len(acr.Groups) != 1 {
		t.Fatalf("groups = %d", len(acr.Groups))
	}
	g := acr.Groups[0]
	var letters []string
	for _, c := range g.Contents {
		letters = append(letters, c.Letter)
	}
	if strings.Join(letters, ",") != "L,L,C" {
		t.Errorf("letters = %v, want [L L C]", letters)
	}
	words := strings.Fields(g.KeyPhrase)
	if len(words) != 3 {
		t.Fatalf("key phrase %q has %d words, want 3", g.KeyPhrase, len(words))
	}
	if err := g.CheckMnemonic(); err != nil {
		t.Error(err)
	}
}

type modelFunc func(ctx context.Context, p Prompt) (string, error)

func (f modelFunc) Complete(ctx context.Context, p Prompt) (string, error) { return f(ctx, p) }

func TestPipeline_StubEndToEnd(t *testing.T) {
	p, _ := newTestPipeline(t, &StubModelClient{}, RegistryOptions{VerifyAcronyms: true})
	md := "# Economics\n\n## Factors of Production\n\n- Land\n- Labor\n- Capital\n\n## Markets\n\n- Supply: amount offered\n- Demand: amount wanted\n"

	tests := []struct {
		feature model.FeatureType
		check   func(t *testing.T, art model.Artifact)
	}{
		{model.FeatureAcronym, func(t *testing.T, art model.Artifact) {
			var a model.AcronymArtifact
			if err := art.Decode(&a); err != nil {
				t.Fatal(err)
			}
			if len(a.Groups) != 2 {
				t.Fatalf("groups = %d, want 2", len(a.Groups))
			}
			for _, g := range a.Groups {
				if err := g.CheckMnemonic(); err != nil {
					t.Error(err)
				}
			}
		}},
		{model.FeatureTerms, func(t *testing.T, art model.Artifact) {
			var a model.TermsArtifact
			if err := art.Decode(&a); err != nil {
				t.Fatal(err)
			}
			if len(a.Questions) != 2 {
				t.Fatalf("questions = %d, want 2", len(a.Questions))
			}
			for _, q := range a.Questions {
				if err := q.CheckOptions(); err != nil {
					t.Error(err)
				}
			}
		}},
		{model.FeatureSummarize, func(t *testing.T, art model.Artifact) {
			if art.Title() != "Economics" {
				t.Errorf("title = %q", art.Title())
			}
			if _, ok := art["sections"].([]any); !ok {
				t.Errorf("sections = %#v", art["sections"])
			}
		}},
		{model.FeatureExplain, func(t *testing.T, art model.Artifact) {
			secs, _ := art["sections"].([]any)
			if len(secs) == 0 {
				t.Fatal("no sections")
			}
			first, _ := secs[0].(map[string]any)
			if _, ok := first["analogy"]; !ok {
				t.Errorf("section missing analogy: %v", first)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.feature), func(t *testing.T) {
			art, err := p.Run(context.Background(), tt.feature, RunInput{Markdown: md})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			tt.check(t, art)
		})
	}
}

func TestPipeline_FailFastOnInvalidJSON(t *testing.T) {
	mc := &scriptedClient{responses: []string{"I could not find any terms.", termsStage2}}
	p, _ := newTestPipeline(t, mc, RegistryOptions{})

	_, err := p.Run(context.Background(), model.FeatureTerms, RunInput{Markdown: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, model.ErrUpstreamFormat) {
		t.Errorf("error %v is not ErrUpstreamFormat", err)
	}
	if FailedStage(err) != "definitions" {
		t.Errorf("failed stage = %q, want definitions", FailedStage(err))
	}
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Raw != "I could not find any terms." {
		t.Errorf("ParseError = %+v", pe)
	}
	if len(mc.prompts) != 1 {
		t.Errorf("calls = %d, want 1", len(mc.prompts))
	}
}

func TestPipeline_GenerationError(t *testing.T) {
	quota := errors.New("quota exceeded")
	mc := &scriptedClient{responses: []string{termsStage1}, errs: map[int]error{1: quota}}
	p, _ := newTestPipeline(t, mc, RegistryOptions{})

	_, err := p.Run(context.Background(), model.FeatureTerms, RunInput{Markdown: "x"})
	if !errors.Is(err, model.ErrUpstreamGeneration) {
		t.Fatalf("error %v is not ErrUpstreamGeneration", err)
	}
	if !errors.Is(err, quota) {
		t.Errorf("error %v does not wrap the client error", err)
	}
	if FailedStage(err) != "options" {
		t.Errorf("failed stage = %q", FailedStage(err))
	}
}

func TestPipeline_EmptyMarkdownFallsBackToNormalizer(t *testing.T) {
	groups := `{"title":"T","groups":[]}`
	mnemonics := `{"title":"T","acronymGroups":[]}`
	mc := &scriptedClient{responses: []string{"```\n```", groups, mnemonics}}
	p, norm := newTestPipeline(t, mc, RegistryOptions{})

	_, err := p.Run(context.Background(), model.FeatureAcronym, RunInput{Markdown: "raw slide text", SourceType: "pptx"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(norm.calls) != 1 || norm.calls[0] != "pptx" {
		t.Errorf("normalizer calls = %v", norm.calls)
	}
	if !strings.Contains(mc.prompts[1].User, "## Normalized\n\nraw slide text") {
		t.Errorf("groups prompt = %q", mc.prompts[1].User)
	}
}

func TestPipeline_MarkdownStageOutputFeedsNextStage(t *testing.T) {
	mc := &scriptedClient{responses: []string{"## Clean\n\n- A\n- B", `{"groups":[]}`, `{"acronymGroups":[]}`}}
	p, norm := newTestPipeline(t, mc, RegistryOptions{})

	if _, err := p.Run(context.Background(), model.FeatureAcronym, RunInput{Markdown: "messy"}); err != nil {
		t.Fatal(err)
	}
	if len(norm.calls) != 0 {
		t.Errorf("normalizer should not run, calls = %v", norm.calls)
	}
	if !strings.Contains(mc.prompts[1].User, "## Clean\n\n- A\n- B") {
		t.Errorf("groups prompt = %q", mc.prompts[1].User)
	}
}

func TestPipeline_VerifyStage(t *testing.T) {
	stage2 := `{"title":"T","acronymGroups":[{"id":"q1","keyPhrase":"Smart Tech","contents":[{"letter":"S","word":"Server"},{"letter":"T","word":"Thread"},{"letter":"R","word":"Router"}]}]}`
	fixed := `{"title":"T","acronymGroups":[{"id":"q1","keyPhrase":"Smart Tech Rocks","contents":[{"letter":"S","word":"Server"},{"letter":"T","word":"Thread"},{"letter":"R","word":"Router"}]}]}`

	t.Run("corrected output replaces stage two", func(t *testing.T) {
		mc := &scriptedClient{responses: []string{"md", `{"groups":[]}`, stage2, fixed}}
		p, _ := newTestPipeline(t, mc, RegistryOptions{VerifyAcronyms: true})
		art, err := p.Run(context.Background(), model.FeatureAcronym, RunInput{Markdown: "x"})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(mc.prompts[3].User, `"keyPhrase": "Smart Tech"`) {
			t.Errorf("verify prompt = %q", mc.prompts[3].User)
		}
		var a model.AcronymArtifact
		art.Decode(&a)
		if a.Groups[0].KeyPhrase != "Smart Tech Rocks" {
			t.Errorf("keyPhrase = %q", a.Groups[0].KeyPhrase)
		}
	})

	t.Run("unparseable output keeps stage two", func(t *testing.T) {
		mc := &scriptedClient{responses: []string{"md", `{"groups":[]}`, stage2, "looks fine to me"}}
		p, _ := newTestPipeline(t, mc, RegistryOptions{VerifyAcronyms: true})
		art, err := p.Run(context.Background(), model.FeatureAcronym, RunInput{Markdown: "x"})
		if err != nil {
			t.Fatal(err)
		}
		var a model.AcronymArtifact
		art.Decode(&a)
		if a.Groups[0].KeyPhrase != "Smart Tech" {
			t.Errorf("keyPhrase = %q", a.Groups[0].KeyPhrase)
		}
	})
}

func TestPipeline_StageTimeout(t *testing.T) {
	blocking := modelFunc(func(ctx context.Context, _ Prompt) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	p, _ := newTestPipeline(t, blocking, RegistryOptions{}, WithStageTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := p.Run(context.Background(), model.FeatureSummarize, RunInput{Markdown: "x"})
	if !errors.Is(err, model.ErrUpstreamGeneration) {
		t.Fatalf("error %v is not ErrUpstreamGeneration", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error %v is not DeadlineExceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("run took %v", time.Since(start))
	}
}

func TestPipeline_CancelledContext(t *testing.T) {
	mc := &scriptedClient{responses: []string{termsStage1, termsStage2}}
	p, _ := newTestPipeline(t, mc, RegistryOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, model.FeatureTerms, RunInput{Markdown: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(mc.prompts) != 0 {
		t.Errorf("calls = %d, want 0", len(mc.prompts))
	}
}

func TestPipeline_UnknownFeature(t *testing.T) {
	p, _ := newTestPipeline(t, &scriptedClient{}, RegistryOptions{})
	_, err := p.Run(context.Background(), model.FeatureType("quiz"), RunInput{Markdown: "x"})
	if !errors.Is(err, model.ErrUnknownFeature) {
		t.Errorf("error = %v", err)
	}
}
