package repositories

import (
	"context"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Accounts() AccountRepository
	Reviews() ReviewRepository
	Articles() ArticleRepository
	Contacts() ContactRepository
	Scripts() ScriptRepository
	Media() MediaRepository
	// Ping verifies the backing store is reachable; used by readiness checks.
	Ping(ctx context.Context) error
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// AccountRepository stores back-office accounts. Emails are unique (case-insensitive).
type AccountRepository interface {
	Insert(ctx context.Context, account domain.Account) error
	Update(ctx context.Context, account domain.Account) error
	Delete(ctx context.Context, accountID string) error
	FindByID(ctx context.Context, accountID string) (domain.Account, error)
	FindByEmail(ctx context.Context, email string) (domain.Account, error)
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Account], error)
	Count(ctx context.Context) (int, error)
}

// ReviewFilter narrows review listings. Empty fields match everything.
type ReviewFilter struct {
	Kind       string
	Status     string
	Locale     string
	Pagination domain.Pagination
}

// ReviewRepository stores reviews. (Kind, Slug, Locale) is unique.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) error
	Update(ctx context.Context, review domain.Review) error
	Delete(ctx context.Context, reviewID string) error
	FindByID(ctx context.Context, reviewID string) (domain.Review, error)
	FindBySlug(ctx context.Context, kind, slug, locale string) (domain.Review, error)
	List(ctx context.Context, filter ReviewFilter) (domain.CursorPage[domain.Review], error)
}

type ArticleFilter struct {
	Category   string
	Status     string
	Locale     string
	Pagination domain.Pagination
}

// ArticleRepository stores articles. (Slug, Locale) is unique.
type ArticleRepository interface {
	Insert(ctx context.Context, article domain.Article) error
	Update(ctx context.Context, article domain.Article) error
	Delete(ctx context.Context, articleID string) error
	FindByID(ctx context.Context, articleID string) (domain.Article, error)
	FindBySlug(ctx context.Context, slug, locale string) (domain.Article, error)
	List(ctx context.Context, filter ArticleFilter) (domain.CursorPage[domain.Article], error)
}

type ContactFilter struct {
	Status     string
	Pagination domain.Pagination
}

type ContactRepository interface {
	Insert(ctx context.Context, contact domain.Contact) error
	Update(ctx context.Context, contact domain.Contact) error
	Delete(ctx context.Context, contactID string) error
	FindByID(ctx context.Context, contactID string) (domain.Contact, error)
	List(ctx context.Context, filter ContactFilter) (domain.CursorPage[domain.Contact], error)
}

type ScriptFilter struct {
	Placement   string
	EnabledOnly bool
}

// ScriptRepository stores head/body scripts. List returns every match ordered by Order then Name.
type ScriptRepository interface {
	Insert(ctx context.Context, script domain.HeadScript) error
	Update(ctx context.Context, script domain.HeadScript) error
	Delete(ctx context.Context, scriptID string) error
	FindByID(ctx context.Context, scriptID string) (domain.HeadScript, error)
	List(ctx context.Context, filter ScriptFilter) ([]domain.HeadScript, error)
}

type MediaRepository interface {
	Insert(ctx context.Context, asset domain.MediaAsset) error
	Delete(ctx context.Context, assetID string) error
	FindByID(ctx context.Context, assetID string) (domain.MediaAsset, error)
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.MediaAsset], error)
}

// HealthRepository collects dependency status for readiness endpoints.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
