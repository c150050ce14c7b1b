package services

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/render"
)

const (
	defaultRenderCacheSize = 512
	defaultRenderCacheTTL  = 10 * time.Minute
)

// ContentServiceDeps configures the public body renderer. A zero CacheSize uses the default;
// a negative one disables caching.
type ContentServiceDeps struct {
	CacheSize int
	CacheTTL  time.Duration
}

type contentService struct {
	markdown goldmark.Markdown
	cache    *expirable.LRU[string, RenderedBody]
}

var _ ContentService = (*contentService)(nil)

func NewContentService(deps ContentServiceDeps) (ContentService, error) {
	svc := &contentService{markdown: NewMarkdown()}
	if deps.CacheSize >= 0 {
		size := deps.CacheSize
		if size == 0 {
			size = defaultRenderCacheSize
		}
		ttl := deps.CacheTTL
		if ttl <= 0 {
			ttl = defaultRenderCacheTTL
		}
		svc.cache = expirable.NewLRU[string, RenderedBody](size, nil, ttl)
	}
	return svc, nil
}

// NewMarkdown returns the goldmark instance used for markdown bodies. Raw HTML passes
// through untouched since bodies are trusted editor content.
func NewMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
	)
}

func (s *contentService) RenderReview(ctx context.Context, review Review) (RenderedBody, error) {
	return s.renderBody(ctx, "review", review.ID, review.UpdatedAt, review.Body, review.BodyFormat, review.ProcessHeadings)
}

func (s *contentService) RenderArticle(ctx context.Context, article Article) (RenderedBody, error) {
	return s.renderBody(ctx, "article", article.ID, article.UpdatedAt, article.Body, article.BodyFormat, article.ProcessHeadings)
}

func (s *contentService) renderBody(ctx context.Context, kind, id string, updatedAt time.Time, body, format string, headings bool) (RenderedBody, error) {
	if err := ctx.Err(); err != nil {
		return RenderedBody{}, err
	}
	key := kind + ":" + id + ":" + strconv.FormatInt(updatedAt.UnixNano(), 10) + ":" + strconv.FormatBool(headings)
	if s.cache != nil && id != "" {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
	}

	markup := body
	if format == domain.FormatMarkdown {
		converted, err := s.toHTML(body)
		if err != nil {
			return RenderedBody{}, err
		}
		markup = converted
	}
	prepared := render.Prepare(markup, render.Options{ProcessHeadings: headings})
	result := RenderedBody{HTML: prepared.HTML, Headings: prepared.Headings}

	if s.cache != nil && id != "" {
		s.cache.Add(key, result)
	}
	return result, nil
}

func (s *contentService) toHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("content: convert markdown: %w", err)
	}
	return buf.String(), nil
}
