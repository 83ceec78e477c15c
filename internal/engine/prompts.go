package engine

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/yangwenmai/reviewer/internal/model"
)

//go:embed prompts.yaml
var promptsYAML []byte

// promptTable maps feature → stage name → system prompt.
type promptTable map[model.FeatureType]map[string]string

func loadPrompts() (promptTable, error) {
	var t promptTable
	if err := yaml.Unmarshal(promptsYAML, &t); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	return t, nil
}

func (t promptTable) system(f model.FeatureType, stage string) (string, error) {
	p := strings.TrimSpace(t[f][stage])
	if p == "" {
		return "", fmt.Errorf("no system prompt for %s/%s", f, stage)
	}
	return p, nil
}

func buildContentPrompt(text string, maxRunes int) string {
	return fmt.Sprintf("Content to process:\n---\n%s\n---", truncateRunes(text, maxRunes))
}

func buildDataPrompt(data any) (string, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode stage input: %w", err)
	}
	return fmt.Sprintf("Here is the extracted data:\n---\n%s\n---", b), nil
}

// truncateRunes truncates s to maxRunes runes (Unicode-safe). A non-positive
// limit disables truncation.
func truncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + "\n... [truncated]"
}
