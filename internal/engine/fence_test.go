package engine

import "testing"

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"upper case fence", "```JSON   {\"a\":1}```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json\n{}\n```\n  ", `{}`},
		{"markdown", "```\n## Title\n\n- Item\n```", "## Title\n\n- Item"},
		{"inner fences removed", "a ``` b", "a  b"},
		{"only whitespace", "   \n\t", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripFences_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"```json\n{\"a\":1}\n```",
		"``````json x",
		"````json\n{}",
		"`````",
		"```\n```json\n[]\n```",
		"text with `inline` code",
		"```json```json```",
		"  ```JsOn\n\n```  ",
	}
	for _, in := range inputs {
		once := StripFences(in)
		if twice := StripFences(once); twice != once {
			t.Errorf("not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}
