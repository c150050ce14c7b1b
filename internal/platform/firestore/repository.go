package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/pagination"
)

// Document is a decoded snapshot with its metadata timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// QueryBuilder adds filters to a collection query.
type QueryBuilder func(query firestore.Query) firestore.Query

// BaseRepository wraps typed access to one collection. T must be a struct with
// firestore tags.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
}

func NewBaseRepository[T any](provider *Provider, collection string) *BaseRepository[T] {
	return &BaseRepository[T]{provider: provider, collection: strings.TrimSpace(collection)}
}

// Create writes a new document and reports a conflict when the id is taken.
func (r *BaseRepository[T]) Create(ctx context.Context, id string, value T) error {
	doc, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Create(ctx, value); err != nil {
		return WrapError(r.op("create"), err)
	}
	return nil
}

// Replace overwrites an existing document; a missing document is a not-found error.
func (r *BaseRepository[T]) Replace(ctx context.Context, id string, value T) error {
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := r.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Get(doc); err != nil {
			return err
		}
		return tx.Set(doc, value)
	})
}

func (r *BaseRepository[T]) Delete(ctx context.Context, id string) error {
	doc, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Delete(ctx, firestore.Exists); err != nil {
		return WrapError(r.op("delete"), err)
	}
	return nil
}

func (r *BaseRepository[T]) Get(ctx context.Context, id string) (Document[T], error) {
	doc, err := r.DocumentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snapshot, err := doc.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(r.op("get"), err)
	}
	return decode[T](snapshot)
}

// Query runs the built query and decodes every match.
func (r *BaseRepository[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}
	return r.run(ctx, query)
}

// First returns the first match of the built query or a not-found error.
func (r *BaseRepository[T]) First(ctx context.Context, build QueryBuilder) (Document[T], error) {
	docs, err := r.Query(ctx, func(q firestore.Query) firestore.Query { return build(q).Limit(1) })
	if err != nil {
		return Document[T]{}, err
	}
	if len(docs) == 0 {
		return Document[T]{}, NotFound(r.op("first"))
	}
	return docs[0], nil
}

// Page lists newest first by timeField, breaking ties on document id, and returns the
// token for the following page.
func (r *BaseRepository[T]) Page(ctx context.Context, build QueryBuilder, pager domain.Pagination, timeField string, timeOf func(T) time.Time) ([]Document[T], string, error) {
	size, cursor, err := pagination.Resolve(pager)
	if err != nil {
		return nil, "", err
	}
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, "", err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}
	query = query.OrderBy(timeField, firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
	if !cursor.IsZero() {
		query = query.StartAfter(cursor.Time(), cursor.ID)
	}
	docs, err := r.run(ctx, query.Limit(size+1))
	if err != nil {
		return nil, "", err
	}
	if len(docs) <= size {
		return docs, "", nil
	}
	docs = docs[:size]
	last := docs[size-1]
	return docs, pagination.EncodeToken(pagination.After(timeOf(last.Data), last.ID)), nil
}

// DocumentRef exposes the reference for transactional callers.
func (r *BaseRepository[T]) DocumentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(r.op("document"), errors.New("firestore: document id is required"))
	}
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

// Collection exposes the collection reference for transactional queries.
func (r *BaseRepository[T]) Collection(ctx context.Context) (*firestore.CollectionRef, error) {
	return r.collectionRef(ctx)
}

func (r *BaseRepository[T]) run(ctx context.Context, query firestore.Query) ([]Document[T], error) {
	iter := query.Documents(ctx)
	defer iter.Stop()
	var docs []Document[T]
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return docs, nil
		}
		if err != nil {
			return nil, WrapError(r.op("query"), err)
		}
		doc, err := decode[T](snapshot)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}

func (r *BaseRepository[T]) collectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	if r.collection == "" {
		return nil, errors.New("firestore: collection name is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection), nil
}

func (r *BaseRepository[T]) op(action string) string {
	return fmt.Sprintf("%s.%s", r.collection, action)
}

func decode[T any](snapshot *firestore.DocumentSnapshot) (Document[T], error) {
	var data T
	if err := snapshot.DataTo(&data); err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode %s: %w", snapshot.Ref.ID, err)
	}
	return Document[T]{
		ID:         snapshot.Ref.ID,
		Data:       data,
		CreateTime: snapshot.CreateTime,
		UpdateTime: snapshot.UpdateTime,
	}, nil
}
