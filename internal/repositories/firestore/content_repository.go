package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	pfirestore "github.com/Hoangthang194/review-agency-sub000/internal/platform/firestore"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

type ReviewRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[reviewDocument]
}

type reviewDocument struct {
	Kind            string     `firestore:"kind"`
	Slug            string     `firestore:"slug"`
	Name            string     `firestore:"name"`
	Rating          float64    `firestore:"rating"`
	Summary         string     `firestore:"summary"`
	Body            string     `firestore:"body"`
	BodyFormat      string     `firestore:"bodyFormat"`
	LogoURL         string     `firestore:"logoUrl,omitempty"`
	WebsiteURL      string     `firestore:"websiteUrl,omitempty"`
	Pros            []string   `firestore:"pros"`
	Cons            []string   `firestore:"cons"`
	Tags            []string   `firestore:"tags"`
	Locale          string     `firestore:"locale"`
	Status          string     `firestore:"status"`
	ProcessHeadings bool       `firestore:"processHeadings"`
	PublishedAt     *time.Time `firestore:"publishedAt,omitempty"`
	CreatedAt       time.Time  `firestore:"createdAt"`
	UpdatedAt       time.Time  `firestore:"updatedAt"`
}

func (r *ReviewRepository) slugQuery(ctx context.Context, review domain.Review) (*firestore.DocumentRef, firestore.Query, error) {
	doc, err := r.base.DocumentRef(ctx, review.ID)
	if err != nil {
		return nil, firestore.Query{}, err
	}
	coll, err := r.base.Collection(ctx)
	if err != nil {
		return nil, firestore.Query{}, err
	}
	query := coll.Where("kind", "==", review.Kind).Where("slug", "==", review.Slug).Where("locale", "==", review.Locale)
	return doc, query, nil
}

func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	doc, query, err := r.slugQuery(ctx, review)
	if err != nil {
		return err
	}
	return createUnique(ctx, r.provider, doc, query, toReviewDocument(review), "slug")
}

func (r *ReviewRepository) Update(ctx context.Context, review domain.Review) error {
	doc, query, err := r.slugQuery(ctx, review)
	if err != nil {
		return err
	}
	return replaceUnique(ctx, r.provider, doc, query, toReviewDocument(review), "slug")
}

func (r *ReviewRepository) Delete(ctx context.Context, reviewID string) error {
	return r.base.Delete(ctx, reviewID)
}

func (r *ReviewRepository) FindByID(ctx context.Context, reviewID string) (domain.Review, error) {
	doc, err := r.base.Get(ctx, reviewID)
	if err != nil {
		return domain.Review{}, err
	}
	return fromReviewDocument(doc.ID, doc.Data), nil
}

func (r *ReviewRepository) FindBySlug(ctx context.Context, kind, slug, locale string) (domain.Review, error) {
	doc, err := r.base.First(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("kind", "==", kind).Where("slug", "==", slug).Where("locale", "==", locale)
	})
	if err != nil {
		return domain.Review{}, err
	}
	return fromReviewDocument(doc.ID, doc.Data), nil
}

func (r *ReviewRepository) List(ctx context.Context, filter repositories.ReviewFilter) (domain.CursorPage[domain.Review], error) {
	build := func(q firestore.Query) firestore.Query {
		q = whereIf(q, "kind", filter.Kind)
		q = whereIf(q, "status", filter.Status)
		return whereIf(q, "locale", filter.Locale)
	}
	docs, next, err := r.base.Page(ctx, build, filter.Pagination, createdAtField, func(d reviewDocument) time.Time { return d.CreatedAt })
	if err != nil {
		return domain.CursorPage[domain.Review]{}, err
	}
	page := domain.CursorPage[domain.Review]{NextPageToken: next}
	for _, doc := range docs {
		page.Items = append(page.Items, fromReviewDocument(doc.ID, doc.Data))
	}
	return page, nil
}

func toReviewDocument(r domain.Review) reviewDocument {
	return reviewDocument{
		Kind:            r.Kind,
		Slug:            r.Slug,
		Name:            r.Name,
		Rating:          r.Rating,
		Summary:         r.Summary,
		Body:            r.Body,
		BodyFormat:      r.BodyFormat,
		LogoURL:         r.LogoURL,
		WebsiteURL:      r.WebsiteURL,
		Pros:            cloneStrings(r.Pros),
		Cons:            cloneStrings(r.Cons),
		Tags:            cloneStrings(r.Tags),
		Locale:          r.Locale,
		Status:          r.Status,
		ProcessHeadings: r.ProcessHeadings,
		PublishedAt:     r.PublishedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func fromReviewDocument(id string, d reviewDocument) domain.Review {
	return domain.Review{
		ID:              id,
		Kind:            d.Kind,
		Slug:            d.Slug,
		Name:            d.Name,
		Rating:          d.Rating,
		Summary:         d.Summary,
		Body:            d.Body,
		BodyFormat:      d.BodyFormat,
		LogoURL:         d.LogoURL,
		WebsiteURL:      d.WebsiteURL,
		Pros:            cloneStrings(d.Pros),
		Cons:            cloneStrings(d.Cons),
		Tags:            cloneStrings(d.Tags),
		Locale:          d.Locale,
		Status:          d.Status,
		ProcessHeadings: d.ProcessHeadings,
		PublishedAt:     d.PublishedAt,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

type ArticleRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[articleDocument]
}

type articleDocument struct {
	Slug            string     `firestore:"slug"`
	Title           string     `firestore:"title"`
	Category        string     `firestore:"category"`
	Excerpt         string     `firestore:"excerpt"`
	Body            string     `firestore:"body"`
	BodyFormat      string     `firestore:"bodyFormat"`
	CoverURL        string     `firestore:"coverUrl,omitempty"`
	Author          string     `firestore:"author"`
	Tags            []string   `firestore:"tags"`
	Locale          string     `firestore:"locale"`
	Status          string     `firestore:"status"`
	ProcessHeadings bool       `firestore:"processHeadings"`
	PublishedAt     *time.Time `firestore:"publishedAt,omitempty"`
	CreatedAt       time.Time  `firestore:"createdAt"`
	UpdatedAt       time.Time  `firestore:"updatedAt"`
}

func (r *ArticleRepository) slugQuery(ctx context.Context, article domain.Article) (*firestore.DocumentRef, firestore.Query, error) {
	doc, err := r.base.DocumentRef(ctx, article.ID)
	if err != nil {
		return nil, firestore.Query{}, err
	}
	coll, err := r.base.Collection(ctx)
	if err != nil {
		return nil, firestore.Query{}, err
	}
	return doc, coll.Where("slug", "==", article.Slug).Where("locale", "==", article.Locale), nil
}

func (r *ArticleRepository) Insert(ctx context.Context, article domain.Article) error {
	doc, query, err := r.slugQuery(ctx, article)
	if err != nil {
		return err
	}
	return createUnique(ctx, r.provider, doc, query, toArticleDocument(article), "slug")
}

func (r *ArticleRepository) Update(ctx context.Context, article domain.Article) error {
	doc, query, err := r.slugQuery(ctx, article)
	if err != nil {
		return err
	}
	return replaceUnique(ctx, r.provider, doc, query, toArticleDocument(article), "slug")
}

func (r *ArticleRepository) Delete(ctx context.Context, articleID string) error {
	return r.base.Delete(ctx, articleID)
}

func (r *ArticleRepository) FindByID(ctx context.Context, articleID string) (domain.Article, error) {
	doc, err := r.base.Get(ctx, articleID)
	if err != nil {
		return domain.Article{}, err
	}
	return fromArticleDocument(doc.ID, doc.Data), nil
}

func (r *ArticleRepository) FindBySlug(ctx context.Context, slug, locale string) (domain.Article, error) {
	doc, err := r.base.First(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", slug).Where("locale", "==", locale)
	})
	if err != nil {
		return domain.Article{}, err
	}
	return fromArticleDocument(doc.ID, doc.Data), nil
}

func (r *ArticleRepository) List(ctx context.Context, filter repositories.ArticleFilter) (domain.CursorPage[domain.Article], error) {
	build := func(q firestore.Query) firestore.Query {
		q = whereIf(q, "category", filter.Category)
		q = whereIf(q, "status", filter.Status)
		return whereIf(q, "locale", filter.Locale)
	}
	docs, next, err := r.base.Page(ctx, build, filter.Pagination, createdAtField, func(d articleDocument) time.Time { return d.CreatedAt })
	if err != nil {
		return domain.CursorPage[domain.Article]{}, err
	}
	page := domain.CursorPage[domain.Article]{NextPageToken: next}
	for _, doc := range docs {
		page.Items = append(page.Items, fromArticleDocument(doc.ID, doc.Data))
	}
	return page, nil
}

func toArticleDocument(a domain.Article) articleDocument {
	return articleDocument{
		Slug:            a.Slug,
		Title:           a.Title,
		Category:        a.Category,
		Excerpt:         a.Excerpt,
		Body:            a.Body,
		BodyFormat:      a.BodyFormat,
		CoverURL:        a.CoverURL,
		Author:          a.Author,
		Tags:            cloneStrings(a.Tags),
		Locale:          a.Locale,
		Status:          a.Status,
		ProcessHeadings: a.ProcessHeadings,
		PublishedAt:     a.PublishedAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func fromArticleDocument(id string, d articleDocument) domain.Article {
	return domain.Article{
		ID:              id,
		Slug:            d.Slug,
		Title:           d.Title,
		Category:        d.Category,
		Excerpt:         d.Excerpt,
		Body:            d.Body,
		BodyFormat:      d.BodyFormat,
		CoverURL:        d.CoverURL,
		Author:          d.Author,
		Tags:            cloneStrings(d.Tags),
		Locale:          d.Locale,
		Status:          d.Status,
		ProcessHeadings: d.ProcessHeadings,
		PublishedAt:     d.PublishedAt,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

func whereIf(q firestore.Query, field, value string) firestore.Query {
	if value == "" {
		return q
	}
	return q.Where(field, "==", value)
}
