package engine

import (
	"strings"
	"testing"

	"github.com/yangwenmai/reviewer/internal/model"
)

func stageNames(d Definition) []string {
	names := make([]string, len(d.Stages))
	for i, s := range d.Stages {
		names[i] = s.Name
	}
	return names
}

func TestRegistry_Definitions(t *testing.T) {
	reg, err := NewRegistry(RegistryOptions{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	want := map[model.FeatureType][]string{
		model.FeatureAcronym:   {"restructure", "groups", "mnemonics"},
		model.FeatureTerms:     {"definitions", "options"},
		model.FeatureSummarize: {"summary"},
		model.FeatureExplain:   {"explanation"},
	}
	for f, names := range want {
		d, ok := reg.Definition(f)
		if !ok {
			t.Fatalf("no definition for %s", f)
		}
		if got := stageNames(d); strings.Join(got, ",") != strings.Join(names, ",") {
			t.Errorf("%s stages = %v, want %v", f, got, names)
		}
		for _, s := range d.Stages {
			if s.System == "" {
				t.Errorf("%s/%s has no system prompt", f, s.Name)
			}
			if s.Temperature != 0 {
				t.Errorf("%s/%s temperature = %v, want 0", f, s.Name, s.Temperature)
			}
			if s.Optional {
				t.Errorf("%s/%s should not be optional", f, s.Name)
			}
		}
	}

	acronym, _ := reg.Definition(model.FeatureAcronym)
	if acronym.Stages[0].Contract != ContractMarkdown {
		t.Errorf("acronym restructure contract = %v, want markdown", acronym.Stages[0].Contract)
	}
	if acronym.Stages[1].Contract != ContractJSON {
		t.Errorf("acronym groups contract = %v, want json", acronym.Stages[1].Contract)
	}

	if _, ok := reg.Definition(model.FeatureType("quiz")); ok {
		t.Error("unexpected definition for unknown feature")
	}
}

func TestRegistry_VerifyStage(t *testing.T) {
	reg, err := NewRegistry(RegistryOptions{VerifyAcronyms: true})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	d, _ := reg.Definition(model.FeatureAcronym)
	if len(d.Stages) != 4 {
		t.Fatalf("stages = %v", stageNames(d))
	}
	last := d.Stages[3]
	if last.Name != "verify" || !last.Optional || last.Contract != ContractJSON {
		t.Errorf("verify stage = %+v", last)
	}
}

func TestStageInputPrompts(t *testing.T) {
	reg, err := NewRegistry(RegistryOptions{MaxTextLength: 5})
	if err != nil {
		t.Fatal(err)
	}
	d, _ := reg.Definition(model.FeatureTerms)

	user, err := d.Stages[0].Input(StageInput{Markdown: "abcdefgh"})
	if err != nil {
		t.Fatal(err)
	}
	if user != "Content to process:\n---\nabcde\n... [truncated]\n---" {
		t.Errorf("content prompt = %q", user)
	}

	if _, err := d.Stages[1].Input(StageInput{}); err == nil {
		t.Error("expected error without previous output")
	}
	user, err = d.Stages[1].Input(StageInput{Previous: model.Artifact{"title": "T"}})
	if err != nil {
		t.Fatal(err)
	}
	if user != "Here is the extracted data:\n---\n{\n  \"title\": \"T\"\n}\n---" {
		t.Errorf("data prompt = %q", user)
	}
}
