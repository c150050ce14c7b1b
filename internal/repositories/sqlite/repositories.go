package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

type AccountRepository struct{ table *table[domain.Account] }

func accountTable(db *sql.DB) *table[domain.Account] {
	return &table[domain.Account]{
		db:   db,
		name: "accounts",
		columns: []column[domain.Account]{
			{name: "email", value: func(a domain.Account) any { return normalizeEmail(a.Email) }},
		},
		id:      func(a domain.Account) string { return a.ID },
		created: func(a domain.Account) time.Time { return a.CreatedAt },
	}
}

func (r *AccountRepository) Insert(ctx context.Context, account domain.Account) error {
	account.Email = normalizeEmail(account.Email)
	return r.table.insert(ctx, account)
}

func (r *AccountRepository) Update(ctx context.Context, account domain.Account) error {
	account.Email = normalizeEmail(account.Email)
	return r.table.update(ctx, account)
}

func (r *AccountRepository) Delete(ctx context.Context, accountID string) error {
	return r.table.delete(ctx, accountID)
}

func (r *AccountRepository) FindByID(ctx context.Context, accountID string) (domain.Account, error) {
	return r.table.get(ctx, accountID)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.table.first(ctx, filter{column: "email", value: normalizeEmail(email)})
}

func (r *AccountRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Account], error) {
	return r.table.page(ctx, pager)
}

func (r *AccountRepository) Count(ctx context.Context) (int, error) {
	return r.table.count(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type ReviewRepository struct{ table *table[domain.Review] }

func reviewTable(db *sql.DB) *table[domain.Review] {
	return &table[domain.Review]{
		db:   db,
		name: "reviews",
		columns: []column[domain.Review]{
			{name: "kind", value: func(r domain.Review) any { return r.Kind }},
			{name: "slug", value: func(r domain.Review) any { return r.Slug }},
			{name: "locale", value: func(r domain.Review) any { return r.Locale }},
			{name: "status", value: func(r domain.Review) any { return r.Status }},
		},
		id:      func(r domain.Review) string { return r.ID },
		created: func(r domain.Review) time.Time { return r.CreatedAt },
	}
}

func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	return r.table.insert(ctx, review)
}

func (r *ReviewRepository) Update(ctx context.Context, review domain.Review) error {
	return r.table.update(ctx, review)
}

func (r *ReviewRepository) Delete(ctx context.Context, reviewID string) error {
	return r.table.delete(ctx, reviewID)
}

func (r *ReviewRepository) FindByID(ctx context.Context, reviewID string) (domain.Review, error) {
	return r.table.get(ctx, reviewID)
}

func (r *ReviewRepository) FindBySlug(ctx context.Context, kind, slug, locale string) (domain.Review, error) {
	return r.table.first(ctx,
		filter{column: "kind", value: kind},
		filter{column: "slug", value: slug},
		filter{column: "locale", value: locale},
	)
}

func (r *ReviewRepository) List(ctx context.Context, f repositories.ReviewFilter) (domain.CursorPage[domain.Review], error) {
	return r.table.page(ctx, f.Pagination,
		filter{column: "kind", value: f.Kind},
		filter{column: "status", value: f.Status},
		filter{column: "locale", value: f.Locale},
	)
}

type ArticleRepository struct{ table *table[domain.Article] }

func articleTable(db *sql.DB) *table[domain.Article] {
	return &table[domain.Article]{
		db:   db,
		name: "articles",
		columns: []column[domain.Article]{
			{name: "slug", value: func(a domain.Article) any { return a.Slug }},
			{name: "locale", value: func(a domain.Article) any { return a.Locale }},
			{name: "category", value: func(a domain.Article) any { return a.Category }},
			{name: "status", value: func(a domain.Article) any { return a.Status }},
		},
		id:      func(a domain.Article) string { return a.ID },
		created: func(a domain.Article) time.Time { return a.CreatedAt },
	}
}

func (r *ArticleRepository) Insert(ctx context.Context, article domain.Article) error {
	return r.table.insert(ctx, article)
}

func (r *ArticleRepository) Update(ctx context.Context, article domain.Article) error {
	return r.table.update(ctx, article)
}

func (r *ArticleRepository) Delete(ctx context.Context, articleID string) error {
	return r.table.delete(ctx, articleID)
}

func (r *ArticleRepository) FindByID(ctx context.Context, articleID string) (domain.Article, error) {
	return r.table.get(ctx, articleID)
}

func (r *ArticleRepository) FindBySlug(ctx context.Context, slug, locale string) (domain.Article, error) {
	return r.table.first(ctx, filter{column: "slug", value: slug}, filter{column: "locale", value: locale})
}

func (r *ArticleRepository) List(ctx context.Context, f repositories.ArticleFilter) (domain.CursorPage[domain.Article], error) {
	return r.table.page(ctx, f.Pagination,
		filter{column: "category", value: f.Category},
		filter{column: "status", value: f.Status},
		filter{column: "locale", value: f.Locale},
	)
}

type ContactRepository struct{ table *table[domain.Contact] }

func contactTable(db *sql.DB) *table[domain.Contact] {
	return &table[domain.Contact]{
		db:   db,
		name: "contacts",
		columns: []column[domain.Contact]{
			{name: "status", value: func(c domain.Contact) any { return c.Status }},
		},
		id:      func(c domain.Contact) string { return c.ID },
		created: func(c domain.Contact) time.Time { return c.CreatedAt },
	}
}

func (r *ContactRepository) Insert(ctx context.Context, contact domain.Contact) error {
	return r.table.insert(ctx, contact)
}

func (r *ContactRepository) Update(ctx context.Context, contact domain.Contact) error {
	return r.table.update(ctx, contact)
}

func (r *ContactRepository) Delete(ctx context.Context, contactID string) error {
	return r.table.delete(ctx, contactID)
}

func (r *ContactRepository) FindByID(ctx context.Context, contactID string) (domain.Contact, error) {
	return r.table.get(ctx, contactID)
}

func (r *ContactRepository) List(ctx context.Context, f repositories.ContactFilter) (domain.CursorPage[domain.Contact], error) {
	return r.table.page(ctx, f.Pagination, filter{column: "status", value: f.Status})
}

type ScriptRepository struct{ table *table[domain.HeadScript] }

func scriptTable(db *sql.DB) *table[domain.HeadScript] {
	return &table[domain.HeadScript]{
		db:   db,
		name: "scripts",
		columns: []column[domain.HeadScript]{
			{name: "placement", value: func(s domain.HeadScript) any { return s.Placement }},
			{name: "enabled", value: func(s domain.HeadScript) any { return s.Enabled }},
			{name: "sort_order", value: func(s domain.HeadScript) any { return s.Order }},
			{name: "name", value: func(s domain.HeadScript) any { return s.Name }},
		},
		id:      func(s domain.HeadScript) string { return s.ID },
		created: func(s domain.HeadScript) time.Time { return s.CreatedAt },
	}
}

func (r *ScriptRepository) Insert(ctx context.Context, script domain.HeadScript) error {
	return r.table.insert(ctx, script)
}

func (r *ScriptRepository) Update(ctx context.Context, script domain.HeadScript) error {
	return r.table.update(ctx, script)
}

func (r *ScriptRepository) Delete(ctx context.Context, scriptID string) error {
	return r.table.delete(ctx, scriptID)
}

func (r *ScriptRepository) FindByID(ctx context.Context, scriptID string) (domain.HeadScript, error) {
	return r.table.get(ctx, scriptID)
}

func (r *ScriptRepository) List(ctx context.Context, f repositories.ScriptFilter) ([]domain.HeadScript, error) {
	filters := []filter{{column: "placement", value: f.Placement}}
	if f.EnabledOnly {
		filters = append(filters, filter{column: "enabled", value: true})
	}
	scripts, err := r.table.all(ctx, "sort_order ASC, name ASC, id ASC", filters...)
	if err != nil {
		return nil, err
	}
	if scripts == nil {
		scripts = []domain.HeadScript{}
	}
	return scripts, nil
}

type MediaRepository struct{ table *table[domain.MediaAsset] }

func mediaTable(db *sql.DB) *table[domain.MediaAsset] {
	return &table[domain.MediaAsset]{
		db:      db,
		name:    "media",
		id:      func(m domain.MediaAsset) string { return m.ID },
		created: func(m domain.MediaAsset) time.Time { return m.CreatedAt },
	}
}

func (r *MediaRepository) Insert(ctx context.Context, asset domain.MediaAsset) error {
	return r.table.insert(ctx, asset)
}

func (r *MediaRepository) Delete(ctx context.Context, assetID string) error {
	return r.table.delete(ctx, assetID)
}

func (r *MediaRepository) FindByID(ctx context.Context, assetID string) (domain.MediaAsset, error) {
	return r.table.get(ctx, assetID)
}

func (r *MediaRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.MediaAsset], error) {
	return r.table.page(ctx, pager)
}
