package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	pfirestore "github.com/Hoangthang194/review-agency-sub000/internal/platform/firestore"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

type ContactRepository struct {
	base *pfirestore.BaseRepository[contactDocument]
}

type contactDocument struct {
	Name      string    `firestore:"name"`
	Email     string    `firestore:"email"`
	Phone     string    `firestore:"phone,omitempty"`
	Subject   string    `firestore:"subject"`
	Message   string    `firestore:"message"`
	Source    string    `firestore:"source,omitempty"`
	Status    string    `firestore:"status"`
	RemoteIP  string    `firestore:"remoteIp,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (r *ContactRepository) Insert(ctx context.Context, c domain.Contact) error {
	return r.base.Create(ctx, c.ID, toContactDocument(c))
}

func (r *ContactRepository) Update(ctx context.Context, c domain.Contact) error {
	return r.base.Replace(ctx, c.ID, toContactDocument(c))
}

func (r *ContactRepository) Delete(ctx context.Context, contactID string) error {
	return r.base.Delete(ctx, contactID)
}

func (r *ContactRepository) FindByID(ctx context.Context, contactID string) (domain.Contact, error) {
	doc, err := r.base.Get(ctx, contactID)
	if err != nil {
		return domain.Contact{}, err
	}
	return fromContactDocument(doc.ID, doc.Data), nil
}

func (r *ContactRepository) List(ctx context.Context, filter repositories.ContactFilter) (domain.CursorPage[domain.Contact], error) {
	build := func(q firestore.Query) firestore.Query { return whereIf(q, "status", filter.Status) }
	docs, next, err := r.base.Page(ctx, build, filter.Pagination, createdAtField, func(d contactDocument) time.Time { return d.CreatedAt })
	if err != nil {
		return domain.CursorPage[domain.Contact]{}, err
	}
	page := domain.CursorPage[domain.Contact]{NextPageToken: next}
	for _, doc := range docs {
		page.Items = append(page.Items, fromContactDocument(doc.ID, doc.Data))
	}
	return page, nil
}

func toContactDocument(c domain.Contact) contactDocument {
	return contactDocument{
		Name: c.Name, Email: c.Email, Phone: c.Phone, Subject: c.Subject, Message: c.Message,
		Source: c.Source, Status: c.Status, RemoteIP: c.RemoteIP,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func fromContactDocument(id string, d contactDocument) domain.Contact {
	return domain.Contact{
		ID: id, Name: d.Name, Email: d.Email, Phone: d.Phone, Subject: d.Subject, Message: d.Message,
		Source: d.Source, Status: d.Status, RemoteIP: d.RemoteIP,
		CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC(),
	}
}
