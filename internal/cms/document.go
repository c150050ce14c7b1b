package cms

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/render"
)

// Document types recognised in front matter.
const (
	TypeReview  = "review"
	TypeArticle = "article"
)

const maxDerivedSummary = 280

var (
	// ErrUnsupportedFile marks files the seeder ignores (wrong extension, hidden files).
	ErrUnsupportedFile = errors.New("cms: unsupported file")
	ErrInvalidDocument = errors.New("cms: invalid document")
)

// Document is one seed file: typed front matter plus the body it introduces.
type Document struct {
	Path       string
	Type       string
	Meta       FrontMatter
	Body       string
	BodyFormat string
}

// FrontMatter is the YAML header of a seed file. Review and article fields share one
// struct; the type key decides which of them apply.
type FrontMatter struct {
	Type            string   `yaml:"type"`
	Slug            string   `yaml:"slug"`
	Locale          string   `yaml:"locale"`
	Status          string   `yaml:"status"`
	Tags            []string `yaml:"tags"`
	ProcessHeadings *bool    `yaml:"process_headings"`

	Kind       string   `yaml:"kind"`
	Name       string   `yaml:"name"`
	Rating     float64  `yaml:"rating"`
	Summary    string   `yaml:"summary"`
	LogoURL    string   `yaml:"logo_url"`
	WebsiteURL string   `yaml:"website_url"`
	Pros       []string `yaml:"pros"`
	Cons       []string `yaml:"cons"`

	Title    string `yaml:"title"`
	Category string `yaml:"category"`
	Excerpt  string `yaml:"excerpt"`
	CoverURL string `yaml:"cover_url"`
	Author   string `yaml:"author"`
}

// Supported reports whether path names a seed file.
func Supported(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") {
		return false
	}
	_, ok := formatForExt(filepath.Ext(base))
	return ok
}

func formatForExt(ext string) (string, bool) {
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return domain.FormatMarkdown, true
	case ".html", ".htm":
		return domain.FormatHTML, true
	default:
		return "", false
	}
}

// LoadDocument reads and parses one seed file.
func LoadDocument(path string) (Document, error) {
	if !Supported(path) {
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("cms: read %s: %w", path, err)
	}
	return ParseDocument(path, data)
}

// ParseDocument parses data as a seed file named path. The format follows the extension;
// missing titles, names, slugs and summaries are derived from the body.
func ParseDocument(path string, data []byte) (Document, error) {
	format, ok := formatForExt(filepath.Ext(path))
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	header, body := splitFrontMatter(string(data))
	if strings.TrimSpace(header) == "" {
		return Document{}, fmt.Errorf("%w: %s has no front matter", ErrInvalidDocument, path)
	}
	var meta FrontMatter
	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return Document{}, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, path, err)
	}

	doc := Document{
		Path:       path,
		Type:       strings.ToLower(strings.TrimSpace(meta.Type)),
		Meta:       meta,
		Body:       body,
		BodyFormat: format,
	}
	if doc.Type == "" {
		doc.Type = typeFromPath(path)
	}
	if doc.Type != TypeReview && doc.Type != TypeArticle {
		return Document{}, fmt.Errorf("%w: %s: type must be review or article", ErrInvalidDocument, path)
	}
	if strings.TrimSpace(doc.Body) == "" {
		return Document{}, fmt.Errorf("%w: %s: body is empty", ErrInvalidDocument, path)
	}

	outline := outlineBody(doc.Body, format)
	switch doc.Type {
	case TypeReview:
		if strings.TrimSpace(doc.Meta.Name) == "" {
			doc.Meta.Name = outline.title
		}
		if strings.TrimSpace(doc.Meta.Summary) == "" {
			doc.Meta.Summary = outline.lead
		}
		if strings.TrimSpace(doc.Meta.Kind) == "" {
			return Document{}, fmt.Errorf("%w: %s: review kind is required", ErrInvalidDocument, path)
		}
	case TypeArticle:
		if strings.TrimSpace(doc.Meta.Title) == "" {
			doc.Meta.Title = outline.title
		}
		if strings.TrimSpace(doc.Meta.Excerpt) == "" {
			doc.Meta.Excerpt = outline.lead
		}
	}
	if strings.TrimSpace(doc.Meta.Slug) == "" {
		doc.Meta.Slug = slugFromPath(path)
	}
	if strings.TrimSpace(doc.Meta.Status) == "" {
		doc.Meta.Status = domain.StatusPublished
	}
	return doc, nil
}

// splitFrontMatter separates a leading "---" delimited YAML block from the body.
func splitFrontMatter(input string) (string, string) {
	input = strings.TrimLeft(input, "\ufeff")
	input = strings.ReplaceAll(input, "\r\n", "\n")
	lines := strings.Split(input, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n")
		}
	}
	return "", input
}

// typeFromPath honours a reviews/ or articles/ parent directory when front matter omits type.
func typeFromPath(path string) string {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(path)), "/") {
		switch strings.ToLower(part) {
		case "reviews", "review":
			return TypeReview
		case "articles", "article", "posts":
			return TypeArticle
		}
	}
	return ""
}

func slugFromPath(path string) string {
	base := filepath.Base(path)
	return render.Slugify(strings.TrimSuffix(base, filepath.Ext(base)))
}

type bodyOutline struct {
	title string
	lead  string
}

var markdownParser = goldmark.New().Parser()

// outlineBody finds the first level one heading and the first paragraph of a markdown body.
// HTML bodies are not outlined.
func outlineBody(body, format string) bodyOutline {
	var outline bodyOutline
	if format != domain.FormatMarkdown {
		return outline
	}
	source := []byte(body)
	root := markdownParser.Parse(text.NewReader(source))
	_ = ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			if n.Level == 1 && outline.title == "" {
				outline.title = inlineText(n, source)
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			if outline.lead == "" {
				outline.lead = clipText(inlineText(n, source), maxDerivedSummary)
			}
			return ast.WalkSkipChildren, nil
		}
		if outline.title != "" && outline.lead != "" {
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return outline
}

func inlineText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(buf.String()), " ")
}

func clipText(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := string(runes[:limit])
	if idx := strings.LastIndex(cut, " "); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
