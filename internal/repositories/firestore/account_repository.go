package firestore

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	pfirestore "github.com/Hoangthang194/review-agency-sub000/internal/platform/firestore"
)

type AccountRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[accountDocument]
}

type accountDocument struct {
	Email        string     `firestore:"email"`
	DisplayName  string     `firestore:"displayName"`
	Role         string     `firestore:"role"`
	PasswordHash string     `firestore:"passwordHash,omitempty"`
	Disabled     bool       `firestore:"disabled"`
	LastLoginAt  *time.Time `firestore:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `firestore:"createdAt"`
	UpdatedAt    time.Time  `firestore:"updatedAt"`
}

func (r *AccountRepository) Insert(ctx context.Context, account domain.Account) error {
	doc, query, err := r.uniqueRefs(ctx, account)
	if err != nil {
		return err
	}
	return createUnique(ctx, r.provider, doc, query, toAccountDocument(account), "email")
}

func (r *AccountRepository) Update(ctx context.Context, account domain.Account) error {
	doc, query, err := r.uniqueRefs(ctx, account)
	if err != nil {
		return err
	}
	return replaceUnique(ctx, r.provider, doc, query, toAccountDocument(account), "email")
}

func (r *AccountRepository) uniqueRefs(ctx context.Context, account domain.Account) (*firestore.DocumentRef, firestore.Query, error) {
	doc, err := r.base.DocumentRef(ctx, account.ID)
	if err != nil {
		return nil, firestore.Query{}, err
	}
	coll, err := r.base.Collection(ctx)
	if err != nil {
		return nil, firestore.Query{}, err
	}
	return doc, coll.Where("email", "==", normalizeEmail(account.Email)), nil
}

func (r *AccountRepository) Delete(ctx context.Context, accountID string) error {
	return r.base.Delete(ctx, accountID)
}

func (r *AccountRepository) FindByID(ctx context.Context, accountID string) (domain.Account, error) {
	doc, err := r.base.Get(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	return fromAccountDocument(doc.ID, doc.Data), nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	doc, err := r.base.First(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("email", "==", normalizeEmail(email))
	})
	if err != nil {
		return domain.Account{}, err
	}
	return fromAccountDocument(doc.ID, doc.Data), nil
}

func (r *AccountRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Account], error) {
	docs, next, err := r.base.Page(ctx, nil, pager, createdAtField, func(d accountDocument) time.Time { return d.CreatedAt })
	if err != nil {
		return domain.CursorPage[domain.Account]{}, err
	}
	page := domain.CursorPage[domain.Account]{NextPageToken: next}
	for _, doc := range docs {
		page.Items = append(page.Items, fromAccountDocument(doc.ID, doc.Data))
	}
	return page, nil
}

func (r *AccountRepository) Count(ctx context.Context) (int, error) {
	coll, err := r.base.Collection(ctx)
	if err != nil {
		return 0, err
	}
	results, err := coll.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, pfirestore.WrapError("accounts.count", err)
	}
	total, ok := results["total"]
	if !ok {
		return 0, nil
	}
	switch v := total.(type) {
	case int64:
		return int(v), nil
	case interface{ GetIntegerValue() int64 }:
		return int(v.GetIntegerValue()), nil
	}
	return 0, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toAccountDocument(a domain.Account) accountDocument {
	return accountDocument{
		Email:        normalizeEmail(a.Email),
		DisplayName:  a.DisplayName,
		Role:         a.Role,
		PasswordHash: a.PasswordHash,
		Disabled:     a.Disabled,
		LastLoginAt:  a.LastLoginAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func fromAccountDocument(id string, d accountDocument) domain.Account {
	return domain.Account{
		ID:           id,
		Email:        d.Email,
		DisplayName:  d.DisplayName,
		Role:         d.Role,
		PasswordHash: d.PasswordHash,
		Disabled:     d.Disabled,
		LastLoginAt:  d.LastLoginAt,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}
