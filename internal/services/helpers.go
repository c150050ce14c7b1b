package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/language"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/pagination"
	"github.com/Hoangthang194/review-agency-sub000/internal/render"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

// ErrUnavailable signals that a backing store or provider is temporarily unreachable.
var ErrUnavailable = errors.New("service: dependency unavailable")

const defaultLocale = "en"

var strictPolicy = bluemonday.StrictPolicy()

// mapRepositoryError translates repository failures into the caller's sentinels.
func mapRepositoryError(err error, notFound, conflict error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return notFound
		case repoErr.IsConflict():
			return conflict
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}

// mapListError additionally reports bad paging input as invalid input.
func mapListError(err error, invalid, notFound, conflict error) error {
	if errors.Is(err, pagination.ErrInvalidPageToken) || errors.Is(err, pagination.ErrInvalidPageSize) {
		return fmt.Errorf("%w: %v", invalid, err)
	}
	return mapRepositoryError(err, notFound, conflict)
}

// EventLogger receives structured service events; the di container backs it with zap.
type EventLogger func(ctx context.Context, event string, fields map[string]any)

func loggerOrNoop(logger EventLogger) EventLogger {
	if logger == nil {
		return func(context.Context, string, map[string]any) {}
	}
	return logger
}

// parseEmail accepts a bare address and returns it lower-cased.
func parseEmail(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func newIDGenerator(prefix string) func() string {
	return func() string { return prefix + ulid.Make().String() }
}

func utcClock(clock func() time.Time) func() time.Time {
	if clock == nil {
		clock = time.Now
	}
	return func() time.Time { return clock().UTC() }
}

// sanitizeText strips all markup and returns plain text.
func sanitizeText(input string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(input)))
}

// normalizeSlug derives a slug from fallback when raw is empty.
func normalizeSlug(raw, fallback string) string {
	if slug := render.Slugify(raw); slug != "" {
		return slug
	}
	return render.Slugify(fallback)
}

func normalizeStatus(status string) (string, bool) {
	switch s := strings.ToLower(strings.TrimSpace(status)); s {
	case "":
		return domain.StatusDraft, true
	case domain.StatusDraft, domain.StatusPublished:
		return s, true
	default:
		return "", false
	}
}

func normalizeBodyFormat(format string) (string, bool) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", domain.FormatHTML:
		return domain.FormatHTML, true
	case domain.FormatMarkdown, "md":
		return domain.FormatMarkdown, true
	default:
		return "", false
	}
}

// validHTTPURL accepts empty strings and absolute http(s) URLs.
func validHTTPURL(raw string) bool {
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// publishedAt keeps the first publication time across edits.
func publishedAt(status string, previous *time.Time, now time.Time) *time.Time {
	if status != domain.StatusPublished {
		return nil
	}
	if previous != nil && !previous.IsZero() {
		t := previous.UTC()
		return &t
	}
	return &now
}

// LocalePolicy resolves requested locales against the supported set.
type LocalePolicy struct {
	fallback  string
	supported []language.Tag
	matcher   language.Matcher
}

// NewLocalePolicy builds a policy; the default locale is always supported.
func NewLocalePolicy(defaultTag string, supported []string) (LocalePolicy, error) {
	def, err := language.Parse(strings.TrimSpace(defaultOr(defaultTag, defaultLocale)))
	if err != nil {
		return LocalePolicy{}, fmt.Errorf("locale policy: default locale: %w", err)
	}
	tags := []language.Tag{def}
	for _, raw := range supported {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		tag, err := language.Parse(strings.TrimSpace(raw))
		if err != nil {
			return LocalePolicy{}, fmt.Errorf("locale policy: %q: %w", raw, err)
		}
		if tag != def {
			tags = append(tags, tag)
		}
	}
	return LocalePolicy{fallback: def.String(), supported: tags, matcher: language.NewMatcher(tags)}, nil
}

// Default is the locale used when none is requested.
func (p LocalePolicy) Default() string {
	if p.fallback == "" {
		return defaultLocale
	}
	return p.fallback
}

// Normalize returns the canonical supported locale for raw. Empty input yields the
// default locale.
func (p LocalePolicy) Normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return p.Default(), true
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", false
	}
	if p.matcher == nil {
		return tag.String(), true
	}
	_, index, confidence := p.matcher.Match(tag)
	if confidence == language.No {
		return "", false
	}
	return p.supported[index].String(), true
}

// Negotiate picks the best supported locale for an Accept-Language header, or "" when the
// header names nothing supported.
func (p LocalePolicy) Negotiate(acceptLanguage string) string {
	if p.matcher == nil || strings.TrimSpace(acceptLanguage) == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return ""
	}
	_, index, confidence := p.matcher.Match(tags...)
	if confidence == language.No {
		return ""
	}
	return p.supported[index].String()
}

func defaultOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
