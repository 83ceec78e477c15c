package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Definition option types for Terms questions.
const (
	OptionCorrect = "correct"
	OptionWrong   = "wrong"
)

// UntitledTitle is stored when an artifact carries no title.
const UntitledTitle = "Untitled"

// Artifact is the parsed output of a pipeline run. It stays as decoded JSON so
// the response carries every field the generator produced.
type Artifact map[string]any

// Title returns the artifact's title, or "" if absent or not a string.
func (a Artifact) Title() string {
	s, _ := a["title"].(string)
	return s
}

// Decode converts the artifact into one of the typed views below.
func (a Artifact) Decode(v any) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// ArtifactFrom converts a typed view back into an Artifact.
func ArtifactFrom(v any) (Artifact, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, err
	}
	return a, nil
}

// TermGroups is the Acronym stage-1 shape: terms grouped under headings.
type TermGroups struct {
	Title  string      `json:"title"`
	Groups []TermGroup `json:"groups"`
}

type TermGroup struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Terms []string `json:"terms"`
}

// AcronymArtifact is the final Acronym shape.
type AcronymArtifact struct {
	Title  string         `json:"title"`
	Groups []AcronymGroup `json:"acronymGroups"`
}

type AcronymGroup struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	KeyPhrase string       `json:"keyPhrase"`
	Contents  []LetterWord `json:"contents"`
}

type LetterWord struct {
	Letter string `json:"letter"`
	Word   string `json:"word"`
}

// CheckMnemonic reports the first way g breaks the mnemonic contract: every
// letter is the first character of its word, and the key phrase has exactly one
// word per entry, each starting with that entry's letter, in order.
func (g AcronymGroup) CheckMnemonic() error {
	words := strings.Fields(g.KeyPhrase)
	if len(words) != len(g.Contents) {
		return fmt.Errorf("group %q: key phrase has %d words, want %d", g.ID, len(words), len(g.Contents))
	}
	for i, c := range g.Contents {
		first := firstLetter(c.Word)
		if !strings.EqualFold(c.Letter, first) {
			return fmt.Errorf("group %q: entry %d letter %q does not start %q", g.ID, i, c.Letter, c.Word)
		}
		if !strings.EqualFold(firstLetter(words[i]), c.Letter) {
			return fmt.Errorf("group %q: key phrase word %q does not start with %q", g.ID, words[i], c.Letter)
		}
	}
	return nil
}

func firstLetter(s string) string {
	for _, tok := range strings.Fields(s) {
		tok = strings.TrimLeftFunc(tok, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if tok == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(tok)
		return string(r)
	}
	return ""
}

// DefinedTerms is the Terms stage-1 shape: one definition per term.
type DefinedTerms struct {
	Title     string        `json:"title"`
	Questions []DefinedTerm `json:"questions"`
}

type DefinedTerm struct {
	ID         string `json:"id"`
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// TermsArtifact is the final Terms shape.
type TermsArtifact struct {
	Title     string         `json:"title"`
	Questions []TermQuestion `json:"questions"`
}

type TermQuestion struct {
	ID         string             `json:"id"`
	Term       string             `json:"term"`
	Definition []DefinitionOption `json:"definition"`
}

type DefinitionOption struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// CheckOptions verifies the quiz contract: one correct option, three wrong
// options, and no wrong option repeating the correct text.
func (q TermQuestion) CheckOptions() error {
	var correct string
	var nCorrect, nWrong int
	for _, d := range q.Definition {
		switch d.Type {
		case OptionCorrect:
			nCorrect++
			correct = d.Text
		case OptionWrong:
			nWrong++
		default:
			return fmt.Errorf("question %q: unknown option type %q", q.ID, d.Type)
		}
	}
	if nCorrect != 1 || nWrong != 3 {
		return fmt.Errorf("question %q: %d correct and %d wrong options, want 1 and 3", q.ID, nCorrect, nWrong)
	}
	for _, d := range q.Definition {
		if d.Type == OptionWrong && strings.TrimSpace(d.Text) == strings.TrimSpace(correct) {
			return fmt.Errorf("question %q: wrong option repeats the correct definition", q.ID)
		}
	}
	return nil
}

// ReviewerSummary is the top-level record of a stored reviewer.
type ReviewerSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}
