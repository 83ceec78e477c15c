// Package convert turns uploaded documents into text for the pipeline.
package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/yangwenmai/reviewer/internal/logger"
	"github.com/yangwenmai/reviewer/internal/model"
)

// Media types the router understands.
const (
	MIMEText     = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMEHTML     = "text/html"
	MIMEPDF      = "application/pdf"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEPPTX     = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// Converter extracts text from one file.
type Converter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// Options configures the external tools used by NewRouter.
type Options struct {
	PythonBin  string
	PandocBin  string
	ScriptsDir string
	HTML       *HTMLConverter
	Logger     *logger.Logger
}

// Router picks a converter by media type.
type Router struct {
	byType map[string]Converter
	log    *logger.Logger
}

// NewRouter wires the converter for every supported media type.
func NewRouter(opts Options) *Router {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	html := opts.HTML
	if html == nil {
		html = NewHTMLConverter(0)
	}
	python := orDefault(opts.PythonBin, "python3")
	text := FileConverter{}
	return &Router{
		log: log,
		byType: map[string]Converter{
			MIMEText:          text,
			MIMEMarkdown:      text,
			"text/x-markdown": text,
			MIMEHTML:          html,
			MIMEDOCX:          &PandocConverter{Bin: orDefault(opts.PandocBin, "pandoc"), run: runCommand},
			MIMEPDF:           &ScriptConverter{Python: python, Script: filepath.Join(opts.ScriptsDir, "extract_pdf.py"), run: runCommand},
			MIMEPPTX:          &ScriptConverter{Python: python, Script: filepath.Join(opts.ScriptsDir, "extract_pptx.py"), run: runCommand},
		},
	}
}

// Register adds or replaces the converter for a media type.
func (r *Router) Register(mimeType string, c Converter) {
	r.byType[mimeType] = c
}

// Convert extracts text from path. When mimeType is empty or generic the file
// extension decides.
func (r *Router) Convert(ctx context.Context, path, mimeType string) (string, error) {
	mt := ResolveType(path, mimeType)
	c, ok := r.byType[mt]
	if !ok {
		return "", fmt.Errorf("%w: unsupported file type %q", model.ErrConversion, mt)
	}
	r.log.Debug("converting upload", "file", filepath.Base(path), "mime", mt)
	text, err := c.Convert(ctx, path)
	if err != nil {
		return "", err
	}
	return text, nil
}

// ResolveType strips parameters from mimeType and falls back to the file
// extension for empty or application/octet-stream types.
func ResolveType(path, mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if mt != "" && mt != "application/octet-stream" {
		return mt
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return MIMEMarkdown
	case ".txt":
		return MIMEText
	case ".htm", ".html":
		return MIMEHTML
	case ".pdf":
		return MIMEPDF
	case ".docx":
		return MIMEDOCX
	case ".pptx":
		return MIMEPPTX
	}
	return mt
}

// SourceType is the short name used to tune normalization ("pdf", "pptx",
// "docx", "html", "text").
func SourceType(mimeType string) string {
	switch mt, _, _ := mime.ParseMediaType(mimeType); mt {
	case MIMEPDF:
		return "pdf"
	case MIMEPPTX:
		return "pptx"
	case MIMEDOCX:
		return "docx"
	case MIMEHTML:
		return "html"
	}
	return "text"
}

// FileConverter reads plain text and markdown files as they are.
type FileConverter struct{}

func (FileConverter) Convert(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrConversion, err)
	}
	return string(b), nil
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w: %s", filepath.Base(name), err, msg)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	return stdout.Bytes(), nil
}

// PandocConverter converts DOCX files to markdown with pandoc.
type PandocConverter struct {
	Bin string
	run runFunc
}

func (p *PandocConverter) Convert(ctx context.Context, path string) (string, error) {
	out, err := p.run(ctx, p.Bin, "-f", "docx", "-t", "markdown", path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrConversion, err)
	}
	return string(out), nil
}

// ScriptConverter runs a python extractor that prints
// {"success": bool, "markdown": string, "error": string} on stdout.
type ScriptConverter struct {
	Python string
	Script string
	run    runFunc
}

type scriptResult struct {
	Success  bool   `json:"success"`
	Markdown string `json:"markdown"`
	Error    string `json:"error"`
}

func (s *ScriptConverter) Convert(ctx context.Context, path string) (string, error) {
	out, runErr := s.run(ctx, s.Python, s.Script, path)

	var res scriptResult
	if err := json.Unmarshal(bytes.TrimSpace(out), &res); err != nil {
		if runErr != nil {
			return "", fmt.Errorf("%w: %w", model.ErrConversion, runErr)
		}
		return "", fmt.Errorf("%w: invalid response from %s: %w", model.ErrConversion, filepath.Base(s.Script), err)
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "extractor reported failure"
		}
		return "", fmt.Errorf("%w: %s", model.ErrConversion, msg)
	}
	return res.Markdown, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
