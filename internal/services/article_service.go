package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/textutil"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

const (
	articleIDPrefix       = "art_"
	maxArticleTitleLength = 200
	maxCategoryLength     = 60
	// excerpts derived from the body are cut at this many characters
	derivedExcerptLength = 240
)

var (
	ErrArticleInvalidInput = errors.New("article: invalid input")
	ErrArticleNotFound     = errors.New("article: not found")
	ErrArticleConflict     = errors.New("article: conflict")
)

type ArticleServiceDeps struct {
	Articles               repositories.ArticleRepository
	Clock                  func() time.Time
	IDGenerator            func() string
	Locales                LocalePolicy
	DefaultProcessHeadings bool
}

type articleService struct {
	articles        repositories.ArticleRepository
	clock           func() time.Time
	newID           func() string
	locales         LocalePolicy
	processHeadings bool
}

var _ ArticleService = (*articleService)(nil)

func NewArticleService(deps ArticleServiceDeps) (ArticleService, error) {
	if deps.Articles == nil {
		return nil, errors.New("article service: article repository is required")
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = newIDGenerator(articleIDPrefix)
	}
	return &articleService{
		articles:        deps.Articles,
		clock:           utcClock(deps.Clock),
		newID:           idGen,
		locales:         deps.Locales,
		processHeadings: deps.DefaultProcessHeadings,
	}, nil
}

func (s *articleService) List(ctx context.Context, filter ArticleListFilter) (domain.CursorPage[Article], error) {
	repoFilter := repositories.ArticleFilter{
		Category:   normalizeCategory(filter.Category),
		Pagination: filter.Pagination,
	}
	if strings.TrimSpace(filter.Locale) != "" {
		locale, ok := s.locales.Normalize(filter.Locale)
		if !ok {
			return domain.CursorPage[Article]{}, fmt.Errorf("%w: unsupported locale %q", ErrArticleInvalidInput, filter.Locale)
		}
		repoFilter.Locale = locale
	}
	switch {
	case filter.PublishedOnly:
		repoFilter.Status = domain.StatusPublished
	case strings.TrimSpace(filter.Status) != "":
		status, ok := normalizeStatus(filter.Status)
		if !ok {
			return domain.CursorPage[Article]{}, fmt.Errorf("%w: unknown status %q", ErrArticleInvalidInput, filter.Status)
		}
		repoFilter.Status = status
	}

	page, err := s.articles.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Article]{}, mapListError(err, ErrArticleInvalidInput, ErrArticleNotFound, ErrArticleConflict)
	}
	return page, nil
}

func (s *articleService) Get(ctx context.Context, articleID string) (Article, error) {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return Article{}, fmt.Errorf("%w: article id is required", ErrArticleInvalidInput)
	}
	article, err := s.articles.FindByID(ctx, articleID)
	if err != nil {
		return Article{}, s.mapError(err)
	}
	return article, nil
}

func (s *articleService) GetBySlug(ctx context.Context, slug, locale string) (Article, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return Article{}, fmt.Errorf("%w: slug is required", ErrArticleInvalidInput)
	}
	normalizedLocale, ok := s.locales.Normalize(locale)
	if !ok {
		return Article{}, fmt.Errorf("%w: unsupported locale %q", ErrArticleInvalidInput, locale)
	}
	article, err := s.articles.FindBySlug(ctx, slug, normalizedLocale)
	if err != nil {
		return Article{}, s.mapError(err)
	}
	return article, nil
}

func (s *articleService) Create(ctx context.Context, cmd UpsertArticleCommand) (Article, error) {
	now := s.clock()
	article := Article{
		ID:              s.newID(),
		ProcessHeadings: s.processHeadings,
		CreatedAt:       now,
	}
	if err := s.apply(&article, cmd, now); err != nil {
		return Article{}, err
	}
	if err := s.articles.Insert(ctx, article); err != nil {
		return Article{}, s.mapError(err)
	}
	return article, nil
}

func (s *articleService) Update(ctx context.Context, articleID string, cmd UpsertArticleCommand) (Article, error) {
	article, err := s.Get(ctx, articleID)
	if err != nil {
		return Article{}, err
	}
	if err := s.apply(&article, cmd, s.clock()); err != nil {
		return Article{}, err
	}
	if err := s.articles.Update(ctx, article); err != nil {
		return Article{}, s.mapError(err)
	}
	return article, nil
}

func (s *articleService) Delete(ctx context.Context, articleID string) error {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return fmt.Errorf("%w: article id is required", ErrArticleInvalidInput)
	}
	return s.mapError(s.articles.Delete(ctx, articleID))
}

func (s *articleService) apply(article *Article, cmd UpsertArticleCommand, now time.Time) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrArticleInvalidInput}, args...)...)
	}

	title := sanitizeText(cmd.Title)
	if title == "" {
		return invalid("title is required")
	}
	if utf8.RuneCountInString(title) > maxArticleTitleLength {
		return invalid("title must be at most %d characters", maxArticleTitleLength)
	}
	slug := article.Slug
	if strings.TrimSpace(cmd.Slug) != "" || slug == "" {
		slug = normalizeSlug(cmd.Slug, title)
	}
	if slug == "" {
		return invalid("slug could not be derived from title")
	}

	category := normalizeCategory(cmd.Category)
	if utf8.RuneCountInString(category) > maxCategoryLength {
		return invalid("category must be at most %d characters", maxCategoryLength)
	}
	format, ok := normalizeBodyFormat(cmd.BodyFormat)
	if !ok {
		return invalid("body format must be html or markdown")
	}

	excerpt := sanitizeText(cmd.Excerpt)
	if excerpt == "" {
		excerpt = textutil.Truncate(sanitizeText(cmd.Body), derivedExcerptLength)
	}
	if utf8.RuneCountInString(excerpt) > maxSummaryLength {
		return invalid("excerpt must be at most %d characters", maxSummaryLength)
	}

	coverURL := strings.TrimSpace(cmd.CoverURL)
	if !validHTTPURL(coverURL) {
		return invalid("cover url must be an absolute http(s) url")
	}
	locale := article.Locale
	if strings.TrimSpace(cmd.Locale) != "" || locale == "" {
		normalized, ok := s.locales.Normalize(cmd.Locale)
		if !ok {
			return invalid("unsupported locale %q", cmd.Locale)
		}
		locale = normalized
	}
	status, ok := normalizeStatus(cmd.Status)
	if !ok {
		return invalid("status must be draft or published")
	}

	article.Slug = slug
	article.Title = title
	article.Category = category
	article.Excerpt = excerpt
	article.Body = cmd.Body
	article.BodyFormat = format
	article.CoverURL = coverURL
	article.Author = sanitizeText(cmd.Author)
	article.Tags = textutil.NormalizeList(cmd.Tags, true)
	article.Locale = locale
	article.PublishedAt = publishedAt(status, article.PublishedAt, now)
	article.Status = status
	if cmd.ProcessHeadings != nil {
		article.ProcessHeadings = *cmd.ProcessHeadings
	}
	article.UpdatedAt = now
	return nil
}

func (s *articleService) mapError(err error) error {
	return mapRepositoryError(err, ErrArticleNotFound, ErrArticleConflict)
}

// normalizeCategory turns "Market Analysis" into "market-analysis".
func normalizeCategory(raw string) string {
	return normalizeSlug(sanitizeText(raw), "")
}
