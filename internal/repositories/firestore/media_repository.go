package firestore

import (
	"context"
	"time"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	pfirestore "github.com/Hoangthang194/review-agency-sub000/internal/platform/firestore"
)

type MediaRepository struct {
	base *pfirestore.BaseRepository[mediaDocument]
}

type mediaDocument struct {
	ObjectPath  string          `firestore:"objectPath"`
	URL         string          `firestore:"url"`
	ContentType string          `firestore:"contentType"`
	Width       int             `firestore:"width"`
	Height      int             `firestore:"height"`
	Size        int64           `firestore:"size"`
	Variants    []variantRecord `firestore:"variants"`
	CreatedBy   string          `firestore:"createdBy,omitempty"`
	CreatedAt   time.Time       `firestore:"createdAt"`
}

type variantRecord struct {
	Name        string `firestore:"name" json:"name"`
	ObjectPath  string `firestore:"objectPath" json:"object_path"`
	URL         string `firestore:"url" json:"url"`
	ContentType string `firestore:"contentType" json:"content_type"`
	Width       int    `firestore:"width" json:"width"`
	Height      int    `firestore:"height" json:"height"`
	Size        int64  `firestore:"size" json:"size"`
}

func (r *MediaRepository) Insert(ctx context.Context, asset domain.MediaAsset) error {
	return r.base.Create(ctx, asset.ID, toMediaDocument(asset))
}

func (r *MediaRepository) Delete(ctx context.Context, assetID string) error {
	return r.base.Delete(ctx, assetID)
}

func (r *MediaRepository) FindByID(ctx context.Context, assetID string) (domain.MediaAsset, error) {
	doc, err := r.base.Get(ctx, assetID)
	if err != nil {
		return domain.MediaAsset{}, err
	}
	return fromMediaDocument(doc.ID, doc.Data), nil
}

func (r *MediaRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.MediaAsset], error) {
	docs, next, err := r.base.Page(ctx, nil, pager, createdAtField, func(d mediaDocument) time.Time { return d.CreatedAt })
	if err != nil {
		return domain.CursorPage[domain.MediaAsset]{}, err
	}
	page := domain.CursorPage[domain.MediaAsset]{NextPageToken: next}
	for _, doc := range docs {
		page.Items = append(page.Items, fromMediaDocument(doc.ID, doc.Data))
	}
	return page, nil
}

func toMediaDocument(a domain.MediaAsset) mediaDocument {
	variants := make([]variantRecord, 0, len(a.Variants))
	for _, v := range a.Variants {
		variants = append(variants, variantRecord(v))
	}
	return mediaDocument{
		ObjectPath: a.ObjectPath, URL: a.URL, ContentType: a.ContentType,
		Width: a.Width, Height: a.Height, Size: a.Size, Variants: variants,
		CreatedBy: a.CreatedBy, CreatedAt: a.CreatedAt,
	}
}

func fromMediaDocument(id string, d mediaDocument) domain.MediaAsset {
	variants := make([]domain.MediaVariant, 0, len(d.Variants))
	for _, v := range d.Variants {
		variants = append(variants, domain.MediaVariant(v))
	}
	return domain.MediaAsset{
		ID: id, ObjectPath: d.ObjectPath, URL: d.URL, ContentType: d.ContentType,
		Width: d.Width, Height: d.Height, Size: d.Size, Variants: variants,
		CreatedBy: d.CreatedBy, CreatedAt: d.CreatedAt.UTC(),
	}
}
