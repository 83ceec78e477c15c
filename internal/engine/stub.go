package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yangwenmai/reviewer/internal/model"
)

// StubModelClient returns deterministic responses shaped like real model output
// (for development/testing). It recognises the stage from the system prompt
// and derives its answer from the user prompt, so acronym mnemonics and term
// options always satisfy their contracts.
type StubModelClient struct{}

func (m *StubModelClient) Complete(_ context.Context, p Prompt) (string, error) {
	body := promptBody(p.User)
	switch {
	case strings.Contains(p.System, "Markdown formatting"):
		return body, nil
	case strings.Contains(p.System, "validator"):
		return body, nil
	case strings.Contains(p.System, `"acronymGroups"`):
		return stubJSON(stubMnemonics(body))
	case strings.Contains(p.System, `"groups"`):
		return stubJSON(stubGroups(body))
	case strings.Contains(p.System, `"type": "correct"`):
		return stubJSON(stubOptions(body))
	case strings.Contains(p.System, `"questions"`):
		return stubJSON(stubDefinitions(body))
	case strings.Contains(p.System, "keyTakeaways"):
		return stubJSON(stubSections(body, false))
	case strings.Contains(p.System, "analogy"):
		return stubJSON(stubSections(body, true))
	}
	return "{}", nil
}

func stubJSON(v any, err error) (string, error) {
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return "```json\n" + string(b) + "\n```", nil
}

// promptBody returns the text between the first and last "---" lines.
func promptBody(user string) string {
	start := strings.Index(user, "---\n")
	end := strings.LastIndex(user, "\n---")
	if start < 0 || end <= start {
		return strings.TrimSpace(user)
	}
	return strings.TrimSpace(user[start+4 : end])
}

type stubBlock struct {
	heading string
	paras   []string
	bullets []string
}

func stubOutline(md string) (title string, blocks []stubBlock) {
	cur := stubBlock{}
	flush := func() {
		if cur.heading != "" || len(cur.paras) > 0 || len(cur.bullets) > 0 {
			blocks = append(blocks, cur)
		}
	}
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "#"):
			h := strings.TrimSpace(strings.TrimLeft(line, "#"))
			if strings.HasPrefix(line, "# ") && title == "" {
				title = h
				continue
			}
			flush()
			cur = stubBlock{heading: h}
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			cur.bullets = append(cur.bullets, strings.TrimSpace(line[2:]))
		default:
			cur.paras = append(cur.paras, line)
		}
	}
	flush()
	if title == "" {
		title = "Study Notes"
		if len(blocks) > 0 && blocks[0].heading != "" {
			title = blocks[0].heading
		}
	}
	return title, blocks
}

// splitDefinition splits "Term: definition" or "Term - definition".
func splitDefinition(s string) (term, def string, ok bool) {
	for _, sep := range []string{":", " - ", " – "} {
		if i := strings.Index(s, sep); i > 0 {
			term = strings.TrimSpace(s[:i])
			def = strings.TrimSpace(s[i+len(sep):])
			if term != "" && def != "" && len(strings.Fields(term)) <= 6 {
				return term, strings.TrimRight(def, ". "), true
			}
		}
	}
	return "", "", false
}

func stubGroups(md string) (model.TermGroups, error) {
	title, blocks := stubOutline(md)
	out := model.TermGroups{Title: title, Groups: []model.TermGroup{}}
	for _, b := range blocks {
		var terms []string
		for _, bullet := range b.bullets {
			term, _, ok := splitDefinition(bullet)
			if !ok {
				term = bullet
			}
			if len(strings.Fields(term)) < 20 {
				terms = append(terms, term)
			}
		}
		if len(terms) < 2 {
			continue
		}
		heading := b.heading
		if heading == "" {
			heading = "Key Terms"
		}
		out.Groups = append(out.Groups, model.TermGroup{
			ID:    fmt.Sprintf("q%d", len(out.Groups)+1),
			Title: heading,
			Terms: terms,
		})
	}
	return out, nil
}

var mnemonicWords = map[rune]string{
	'A': "Always", 'B': "Bring", 'C': "Cake", 'D': "During", 'E': "Every", 'F': "Friday",
	'G': "Giving", 'H': "Happy", 'I': "Ideas", 'J': "Joy", 'K': "Keeps", 'L': "Learning",
	'M': "Moving", 'N': "Nicely", 'O': "Often", 'P': "People", 'Q': "Quietly", 'R': "Reading",
	'S': "Say", 'T': "That", 'U': "Usually", 'V': "Very", 'W': "We", 'X': "Xylophones",
	'Y': "Yield", 'Z': "Zest",
}

func stubMnemonics(data string) (model.AcronymArtifact, error) {
	var in model.TermGroups
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return model.AcronymArtifact{}, fmt.Errorf("stub: decode groups: %w", err)
	}
	out := model.AcronymArtifact{Title: in.Title, Groups: []model.AcronymGroup{}}
	for _, g := range in.Groups {
		group := model.AcronymGroup{ID: g.ID, Title: g.Title}
		words := make([]string, 0, len(g.Terms))
		for _, term := range g.Terms {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			first, _ := utf8.DecodeRuneInString(term)
			letter := string(first)
			word, ok := mnemonicWords[unicode.ToUpper(first)]
			if !ok {
				word = strings.Fields(term)[0]
			}
			if unicode.IsLower(first) {
				word = strings.ToLower(word)
			}
			group.Contents = append(group.Contents, model.LetterWord{Letter: letter, Word: term})
			words = append(words, word)
		}
		group.KeyPhrase = strings.Join(words, " ")
		out.Groups = append(out.Groups, group)
	}
	return out, nil
}

func stubDefinitions(md string) (model.DefinedTerms, error) {
	title, blocks := stubOutline(md)
	out := model.DefinedTerms{Title: title, Questions: []model.DefinedTerm{}}
	for _, b := range blocks {
		for _, line := range append(append([]string{}, b.paras...), b.bullets...) {
			term, def, ok := splitDefinition(line)
			if !ok {
				continue
			}
			out.Questions = append(out.Questions, model.DefinedTerm{
				ID:         fmt.Sprintf("q%d", len(out.Questions)+1),
				Term:       term,
				Definition: def,
			})
		}
	}
	return out, nil
}

func stubOptions(data string) (model.TermsArtifact, error) {
	var in model.DefinedTerms
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return model.TermsArtifact{}, fmt.Errorf("stub: decode definitions: %w", err)
	}
	out := model.TermsArtifact{Title: in.Title, Questions: []model.TermQuestion{}}
	for _, q := range in.Questions {
		out.Questions = append(out.Questions, model.TermQuestion{
			ID:   q.ID,
			Term: q.Term,
			Definition: []model.DefinitionOption{
				{Text: q.Definition, Type: model.OptionCorrect},
				{Text: fmt.Sprintf("A loosely related idea that is often confused with %s, describing a general approach that applies to many situations but does not capture the specific meaning studied here.", q.Term), Type: model.OptionWrong},
				{Text: fmt.Sprintf("An older practice that came before %s and was replaced because it could not handle the requirements that modern systems and their users place on it.", q.Term), Type: model.OptionWrong},
				{Text: fmt.Sprintf("A minor detail sometimes mentioned alongside %s in introductory material.", q.Term), Type: model.OptionWrong},
			},
		})
	}
	return out, nil
}

func stubSections(md string, explain bool) (map[string]any, error) {
	title, blocks := stubOutline(md)
	sections := []map[string]any{}
	for _, b := range blocks {
		name := b.heading
		if name == "" {
			name = title
		}
		text := strings.Join(b.paras, " ")
		points := append([]string{}, b.bullets...)
		if explain {
			sections = append(sections, map[string]any{
				"title":       name,
				"explanation": text,
				"analogy":     "Think of " + name + " like a recipe: each part has a job in the whole.",
				"steps":       []string{},
				"keyPoints":   points,
			})
			continue
		}
		concepts := []map[string]any{}
		for _, bullet := range b.bullets {
			if term, def, ok := splitDefinition(bullet); ok {
				concepts = append(concepts, map[string]any{"term": term, "explanation": def})
			}
		}
		sections = append(sections, map[string]any{
			"title":        name,
			"summary":      text,
			"concepts":     concepts,
			"keyTakeaways": points,
		})
	}
	return map[string]any{"title": title, "sections": sections}, nil
}
