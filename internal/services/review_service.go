package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/textutil"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

const (
	reviewIDPrefix      = "rev_"
	maxReviewNameLength = 120
	maxSummaryLength    = 1000
	maxReviewRating     = 5.0
	maxListEntryLength  = 280
)

var (
	// ErrReviewInvalidInput indicates validation failures for review operations.
	ErrReviewInvalidInput = errors.New("review: invalid input")
	// ErrReviewNotFound indicates a review could not be located.
	ErrReviewNotFound = errors.New("review: not found")
	// ErrReviewConflict signals a slug already used by another review of the same kind and locale.
	ErrReviewConflict = errors.New("review: conflict")
)

// ReviewServiceDeps bundles collaborators required to construct a ReviewService.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Clock       func() time.Time
	IDGenerator func() string
	Locales     LocalePolicy
	// DefaultProcessHeadings applies to new reviews that do not say otherwise.
	DefaultProcessHeadings bool
}

type reviewService struct {
	reviews         repositories.ReviewRepository
	clock           func() time.Time
	newID           func() string
	locales         LocalePolicy
	processHeadings bool
}

var _ ReviewService = (*reviewService)(nil)

// NewReviewService wires dependencies into a concrete ReviewService implementation.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = newIDGenerator(reviewIDPrefix)
	}
	return &reviewService{
		reviews:         deps.Reviews,
		clock:           utcClock(deps.Clock),
		newID:           idGen,
		locales:         deps.Locales,
		processHeadings: deps.DefaultProcessHeadings,
	}, nil
}

func (s *reviewService) List(ctx context.Context, filter ReviewListFilter) (domain.CursorPage[Review], error) {
	repoFilter := repositories.ReviewFilter{Pagination: filter.Pagination}
	if strings.TrimSpace(filter.Kind) != "" {
		kind, ok := normalizeReviewKind(filter.Kind)
		if !ok {
			return domain.CursorPage[Review]{}, fmt.Errorf("%w: unknown kind %q", ErrReviewInvalidInput, filter.Kind)
		}
		repoFilter.Kind = kind
	}
	if strings.TrimSpace(filter.Locale) != "" {
		locale, ok := s.locales.Normalize(filter.Locale)
		if !ok {
			return domain.CursorPage[Review]{}, fmt.Errorf("%w: unsupported locale %q", ErrReviewInvalidInput, filter.Locale)
		}
		repoFilter.Locale = locale
	}
	switch {
	case filter.PublishedOnly:
		repoFilter.Status = domain.StatusPublished
	case strings.TrimSpace(filter.Status) != "":
		status, ok := normalizeStatus(filter.Status)
		if !ok {
			return domain.CursorPage[Review]{}, fmt.Errorf("%w: unknown status %q", ErrReviewInvalidInput, filter.Status)
		}
		repoFilter.Status = status
	}

	page, err := s.reviews.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Review]{}, mapListError(err, ErrReviewInvalidInput, ErrReviewNotFound, ErrReviewConflict)
	}
	return page, nil
}

func (s *reviewService) Get(ctx context.Context, reviewID string) (Review, error) {
	reviewID = strings.TrimSpace(reviewID)
	if reviewID == "" {
		return Review{}, fmt.Errorf("%w: review id is required", ErrReviewInvalidInput)
	}
	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return Review{}, s.mapError(err)
	}
	return review, nil
}

func (s *reviewService) GetBySlug(ctx context.Context, kind, slug, locale string) (Review, error) {
	normalizedKind, ok := normalizeReviewKind(kind)
	if !ok {
		return Review{}, fmt.Errorf("%w: unknown kind %q", ErrReviewInvalidInput, kind)
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return Review{}, fmt.Errorf("%w: slug is required", ErrReviewInvalidInput)
	}
	normalizedLocale, ok := s.locales.Normalize(locale)
	if !ok {
		return Review{}, fmt.Errorf("%w: unsupported locale %q", ErrReviewInvalidInput, locale)
	}
	review, err := s.reviews.FindBySlug(ctx, normalizedKind, slug, normalizedLocale)
	if err != nil {
		return Review{}, s.mapError(err)
	}
	return review, nil
}

func (s *reviewService) Create(ctx context.Context, cmd UpsertReviewCommand) (Review, error) {
	now := s.clock()
	review := Review{
		ID:              s.newID(),
		ProcessHeadings: s.processHeadings,
		CreatedAt:       now,
	}
	if err := s.apply(&review, cmd, now); err != nil {
		return Review{}, err
	}
	if err := s.reviews.Insert(ctx, review); err != nil {
		return Review{}, s.mapError(err)
	}
	return review, nil
}

func (s *reviewService) Update(ctx context.Context, reviewID string, cmd UpsertReviewCommand) (Review, error) {
	review, err := s.Get(ctx, reviewID)
	if err != nil {
		return Review{}, err
	}
	if err := s.apply(&review, cmd, s.clock()); err != nil {
		return Review{}, err
	}
	if err := s.reviews.Update(ctx, review); err != nil {
		return Review{}, s.mapError(err)
	}
	return review, nil
}

func (s *reviewService) Delete(ctx context.Context, reviewID string) error {
	reviewID = strings.TrimSpace(reviewID)
	if reviewID == "" {
		return fmt.Errorf("%w: review id is required", ErrReviewInvalidInput)
	}
	return s.mapError(s.reviews.Delete(ctx, reviewID))
}

// apply validates cmd and copies it onto review. Kind, slug and locale fall back to the
// stored values when omitted on update.
func (s *reviewService) apply(review *Review, cmd UpsertReviewCommand, now time.Time) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrReviewInvalidInput}, args...)...)
	}

	kind := review.Kind
	if strings.TrimSpace(cmd.Kind) != "" || kind == "" {
		normalized, ok := normalizeReviewKind(cmd.Kind)
		if !ok {
			return invalid("kind must be broker, exchange or prop_firm")
		}
		kind = normalized
	}

	name := sanitizeText(cmd.Name)
	if name == "" {
		return invalid("name is required")
	}
	if utf8.RuneCountInString(name) > maxReviewNameLength {
		return invalid("name must be at most %d characters", maxReviewNameLength)
	}

	slug := review.Slug
	if strings.TrimSpace(cmd.Slug) != "" || slug == "" {
		slug = normalizeSlug(cmd.Slug, name)
	}
	if slug == "" {
		return invalid("slug could not be derived from name")
	}

	if math.IsNaN(cmd.Rating) || cmd.Rating < 0 || cmd.Rating > maxReviewRating {
		return invalid("rating must be between 0 and %.0f", maxReviewRating)
	}

	summary := sanitizeText(cmd.Summary)
	if utf8.RuneCountInString(summary) > maxSummaryLength {
		return invalid("summary must be at most %d characters", maxSummaryLength)
	}

	format, ok := normalizeBodyFormat(cmd.BodyFormat)
	if !ok {
		return invalid("body format must be html or markdown")
	}
	logoURL := strings.TrimSpace(cmd.LogoURL)
	websiteURL := strings.TrimSpace(cmd.WebsiteURL)
	if !validHTTPURL(logoURL) || !validHTTPURL(websiteURL) {
		return invalid("logo and website urls must be absolute http(s) urls")
	}

	locale := review.Locale
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

	pros, err := sanitizeList(cmd.Pros)
	if err != nil {
		return invalid("pros: %v", err)
	}
	cons, err := sanitizeList(cmd.Cons)
	if err != nil {
		return invalid("cons: %v", err)
	}

	review.Kind = kind
	review.Slug = slug
	review.Name = name
	review.Rating = math.Round(cmd.Rating*10) / 10
	review.Summary = summary
	review.Body = cmd.Body
	review.BodyFormat = format
	review.LogoURL = logoURL
	review.WebsiteURL = websiteURL
	review.Pros = pros
	review.Cons = cons
	review.Tags = textutil.NormalizeList(cmd.Tags, true)
	review.Locale = locale
	review.PublishedAt = publishedAt(status, review.PublishedAt, now)
	review.Status = status
	if cmd.ProcessHeadings != nil {
		review.ProcessHeadings = *cmd.ProcessHeadings
	}
	review.UpdatedAt = now
	return nil
}

func (s *reviewService) mapError(err error) error {
	return mapRepositoryError(err, ErrReviewNotFound, ErrReviewConflict)
}

func normalizeReviewKind(raw string) (string, bool) {
	kind := strings.ToLower(strings.TrimSpace(raw))
	kind = strings.NewReplacer("-", "_", " ", "_").Replace(kind)
	switch kind {
	case domain.ReviewKindBroker, domain.ReviewKindExchange, domain.ReviewKindPropFirm:
		return kind, true
	case "brokers", "exchanges", "prop_firms", "propfirm":
		switch kind[0] {
		case 'b':
			return domain.ReviewKindBroker, true
		case 'e':
			return domain.ReviewKindExchange, true
		default:
			return domain.ReviewKindPropFirm, true
		}
	default:
		return "", false
	}
}

// sanitizeList strips markup from bullet entries and drops blanks and duplicates.
func sanitizeList(values []string) ([]string, error) {
	cleaned := make([]string, 0, len(values))
	for _, value := range values {
		value = sanitizeText(value)
		if utf8.RuneCountInString(value) > maxListEntryLength {
			return nil, fmt.Errorf("entries must be at most %d characters", maxListEntryLength)
		}
		cleaned = append(cleaned, value)
	}
	return textutil.NormalizeList(cleaned, false), nil
}
