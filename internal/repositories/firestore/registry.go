// Package firestore implements the repository contracts on Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/Hoangthang194/review-agency-sub000/internal/platform/firestore"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

const (
	accountCollection = "accounts"
	reviewCollection  = "reviews"
	articleCollection = "articles"
	contactCollection = "contacts"
	scriptCollection  = "scripts"
	mediaCollection   = "media"

	createdAtField = "createdAt"
)

// Registry bundles the Firestore repositories behind repositories.Registry.
type Registry struct {
	provider *pfirestore.Provider
	accounts *AccountRepository
	reviews  *ReviewRepository
	articles *ArticleRepository
	contacts *ContactRepository
	scripts  *ScriptRepository
	media    *MediaRepository
}

var _ repositories.Registry = (*Registry)(nil)

func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}
	return &Registry{
		provider: provider,
		accounts: &AccountRepository{provider: provider, base: pfirestore.NewBaseRepository[accountDocument](provider, accountCollection)},
		reviews:  &ReviewRepository{provider: provider, base: pfirestore.NewBaseRepository[reviewDocument](provider, reviewCollection)},
		articles: &ArticleRepository{provider: provider, base: pfirestore.NewBaseRepository[articleDocument](provider, articleCollection)},
		contacts: &ContactRepository{base: pfirestore.NewBaseRepository[contactDocument](provider, contactCollection)},
		scripts:  &ScriptRepository{base: pfirestore.NewBaseRepository[scriptDocument](provider, scriptCollection)},
		media:    &MediaRepository{base: pfirestore.NewBaseRepository[mediaDocument](provider, mediaCollection)},
	}, nil
}

func (r *Registry) Accounts() repositories.AccountRepository { return r.accounts }
func (r *Registry) Reviews() repositories.ReviewRepository   { return r.reviews }
func (r *Registry) Articles() repositories.ArticleRepository { return r.articles }
func (r *Registry) Contacts() repositories.ContactRepository { return r.contacts }
func (r *Registry) Scripts() repositories.ScriptRepository   { return r.scripts }
func (r *Registry) Media() repositories.MediaRepository      { return r.media }

func (r *Registry) Ping(ctx context.Context) error { return r.provider.Ping(ctx) }

func (r *Registry) Close(context.Context) error { return r.provider.Close() }

// Slug and email checks read a query inside the transaction, so contention retries are
// cheap but should not hang a request.
var uniqueTxOptions = []pfirestore.TxOption{
	pfirestore.WithTxAttempts(3),
	pfirestore.WithTxTimeout(10 * time.Second),
}

// createUnique creates doc inside a transaction after checking that query matches nothing.
func createUnique(ctx context.Context, provider *pfirestore.Provider, doc *firestore.DocumentRef, query firestore.Query, value any, what string) error {
	return provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(query.Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return pfirestore.Conflict(doc.Parent.ID+".create", what+" already in use")
		}
		return tx.Create(doc, value)
	}, uniqueTxOptions...)
}

// replaceUnique overwrites doc after checking that query matches no other document.
func replaceUnique(ctx context.Context, provider *pfirestore.Provider, doc *firestore.DocumentRef, query firestore.Query, value any, what string) error {
	return provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(doc); err != nil {
			return err
		}
		existing, err := tx.Documents(query.Limit(2)).GetAll()
		if err != nil {
			return err
		}
		for _, snap := range existing {
			if snap.Ref.ID != doc.ID {
				return pfirestore.Conflict(doc.Parent.ID+".update", what+" already in use")
			}
		}
		return tx.Set(doc, value)
	}, uniqueTxOptions...)
}

func cloneStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
