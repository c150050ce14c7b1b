package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Hoangthang194/review-agency-sub000/internal/platform/requestctx"
	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

// AdminContentHandlers exposes review and article management for editors.
type AdminContentHandlers struct {
	reviews  services.ReviewService
	articles services.ArticleService
}

func NewAdminContentHandlers(reviews services.ReviewService, articles services.ArticleService) *AdminContentHandlers {
	return &AdminContentHandlers{reviews: reviews, articles: articles}
}

// Routes registers /reviews and /articles under the admin group.
func (h *AdminContentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/reviews", func(rt chi.Router) {
		rt.Get("/", h.listReviews)
		rt.Post("/", h.createReview)
		rt.Get("/{reviewID}", h.getReview)
		rt.Put("/{reviewID}", h.updateReview)
		rt.Delete("/{reviewID}", h.deleteReview)
	})
	r.Route("/articles", func(rt chi.Router) {
		rt.Get("/", h.listArticles)
		rt.Post("/", h.createArticle)
		rt.Get("/{articleID}", h.getArticle)
		rt.Put("/{articleID}", h.updateArticle)
		rt.Delete("/{articleID}", h.deleteArticle)
	})
}

type reviewPayload struct {
	ID              string   `json:"id"`
	Kind            string   `json:"kind"`
	Slug            string   `json:"slug"`
	Name            string   `json:"name"`
	Rating          float64  `json:"rating"`
	Summary         string   `json:"summary"`
	LogoURL         string   `json:"logo_url,omitempty"`
	WebsiteURL      string   `json:"website_url,omitempty"`
	Pros            []string `json:"pros"`
	Cons            []string `json:"cons"`
	Tags            []string `json:"tags"`
	Locale          string   `json:"locale"`
	Status          string   `json:"status,omitempty"`
	Body            string   `json:"body,omitempty"`
	BodyFormat      string   `json:"body_format,omitempty"`
	ProcessHeadings *bool    `json:"process_headings,omitempty"`
	PublishedAt     string   `json:"published_at,omitempty"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

// buildReviewPayload includes the stored body and editorial fields when withSource is set.
func buildReviewPayload(review services.Review, withSource bool) reviewPayload {
	payload := reviewPayload{
		ID:          review.ID,
		Kind:        review.Kind,
		Slug:        review.Slug,
		Name:        review.Name,
		Rating:      review.Rating,
		Summary:     review.Summary,
		LogoURL:     review.LogoURL,
		WebsiteURL:  review.WebsiteURL,
		Pros:        nonNilStrings(review.Pros),
		Cons:        nonNilStrings(review.Cons),
		Tags:        nonNilStrings(review.Tags),
		Locale:      review.Locale,
		PublishedAt: formatTimePtr(review.PublishedAt),
		CreatedAt:   formatTime(review.CreatedAt),
		UpdatedAt:   formatTime(review.UpdatedAt),
	}
	if withSource {
		process := review.ProcessHeadings
		payload.Status = review.Status
		payload.Body = review.Body
		payload.BodyFormat = review.BodyFormat
		payload.ProcessHeadings = &process
	}
	return payload
}

type reviewRequest struct {
	Kind            string   `json:"kind"`
	Slug            string   `json:"slug"`
	Name            string   `json:"name"`
	Rating          float64  `json:"rating"`
	Summary         string   `json:"summary"`
	Body            string   `json:"body"`
	BodyFormat      string   `json:"body_format"`
	LogoURL         string   `json:"logo_url"`
	WebsiteURL      string   `json:"website_url"`
	Pros            []string `json:"pros"`
	Cons            []string `json:"cons"`
	Tags            []string `json:"tags"`
	Locale          string   `json:"locale"`
	Status          string   `json:"status"`
	ProcessHeadings *bool    `json:"process_headings"`
}

func (req reviewRequest) command() services.UpsertReviewCommand {
	return services.UpsertReviewCommand{
		Kind:            req.Kind,
		Slug:            req.Slug,
		Name:            req.Name,
		Rating:          req.Rating,
		Summary:         req.Summary,
		Body:            req.Body,
		BodyFormat:      req.BodyFormat,
		LogoURL:         req.LogoURL,
		WebsiteURL:      req.WebsiteURL,
		Pros:            req.Pros,
		Cons:            req.Cons,
		Tags:            req.Tags,
		Locale:          req.Locale,
		Status:          req.Status,
		ProcessHeadings: req.ProcessHeadings,
	}
}

func (h *AdminContentHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		reviewErrors.unavailable(ctx, w)
		return
	}
	pager, ok := pagerFromRequest(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	page, err := h.reviews.List(ctx, services.ReviewListFilter{
		Kind:       query.Get("kind"),
		Status:     query.Get("status"),
		Locale:     query.Get("locale"),
		Pagination: pager,
	})
	if err != nil {
		reviewErrors.write(ctx, w, err)
		return
	}
	resp := reviewListResponse{Items: make([]reviewPayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, review := range page.Items {
		resp.Items = append(resp.Items, buildReviewPayload(review, true))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *AdminContentHandlers) getReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		reviewErrors.unavailable(ctx, w)
		return
	}
	review, err := h.reviews.Get(ctx, strings.TrimSpace(chi.URLParam(r, "reviewID")))
	if err != nil {
		reviewErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildReviewPayload(review, true))
}

func (h *AdminContentHandlers) createReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		reviewErrors.unavailable(ctx, w)
		return
	}
	var req reviewRequest
	if !decodeJSONBody(w, r, contentBodyLimit, &req) {
		return
	}
	review, err := h.reviews.Create(ctx, req.command())
	if err != nil {
		reviewErrors.write(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("review created", zap.String("reviewId", review.ID), zap.String("slug", review.Slug))
	writeJSONResponse(w, http.StatusCreated, buildReviewPayload(review, true))
}

func (h *AdminContentHandlers) updateReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		reviewErrors.unavailable(ctx, w)
		return
	}
	var req reviewRequest
	if !decodeJSONBody(w, r, contentBodyLimit, &req) {
		return
	}
	review, err := h.reviews.Update(ctx, strings.TrimSpace(chi.URLParam(r, "reviewID")), req.command())
	if err != nil {
		reviewErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildReviewPayload(review, true))
}

func (h *AdminContentHandlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		reviewErrors.unavailable(ctx, w)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "reviewID"))
	if err := h.reviews.Delete(ctx, id); err != nil {
		reviewErrors.write(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("review deleted", zap.String("reviewId", id))
	w.WriteHeader(http.StatusNoContent)
}

type articlePayload struct {
	ID              string   `json:"id"`
	Slug            string   `json:"slug"`
	Title           string   `json:"title"`
	Category        string   `json:"category"`
	Excerpt         string   `json:"excerpt"`
	CoverURL        string   `json:"cover_url,omitempty"`
	Author          string   `json:"author,omitempty"`
	Tags            []string `json:"tags"`
	Locale          string   `json:"locale"`
	Status          string   `json:"status,omitempty"`
	Body            string   `json:"body,omitempty"`
	BodyFormat      string   `json:"body_format,omitempty"`
	ProcessHeadings *bool    `json:"process_headings,omitempty"`
	PublishedAt     string   `json:"published_at,omitempty"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

func buildArticlePayload(article services.Article, withSource bool) articlePayload {
	payload := articlePayload{
		ID:          article.ID,
		Slug:        article.Slug,
		Title:       article.Title,
		Category:    article.Category,
		Excerpt:     article.Excerpt,
		CoverURL:    article.CoverURL,
		Author:      article.Author,
		Tags:        nonNilStrings(article.Tags),
		Locale:      article.Locale,
		PublishedAt: formatTimePtr(article.PublishedAt),
		CreatedAt:   formatTime(article.CreatedAt),
		UpdatedAt:   formatTime(article.UpdatedAt),
	}
	if withSource {
		process := article.ProcessHeadings
		payload.Status = article.Status
		payload.Body = article.Body
		payload.BodyFormat = article.BodyFormat
		payload.ProcessHeadings = &process
	}
	return payload
}

type articleRequest struct {
	Slug            string   `json:"slug"`
	Title           string   `json:"title"`
	Category        string   `json:"category"`
	Excerpt         string   `json:"excerpt"`
	Body            string   `json:"body"`
	BodyFormat      string   `json:"body_format"`
	CoverURL        string   `json:"cover_url"`
	Author          string   `json:"author"`
	Tags            []string `json:"tags"`
	Locale          string   `json:"locale"`
	Status          string   `json:"status"`
	ProcessHeadings *bool    `json:"process_headings"`
}

func (req articleRequest) command() services.UpsertArticleCommand {
	return services.UpsertArticleCommand{
		Slug:            req.Slug,
		Title:           req.Title,
		Category:        req.Category,
		Excerpt:         req.Excerpt,
		Body:            req.Body,
		BodyFormat:      req.BodyFormat,
		CoverURL:        req.CoverURL,
		Author:          req.Author,
		Tags:            req.Tags,
		Locale:          req.Locale,
		Status:          req.Status,
		ProcessHeadings: req.ProcessHeadings,
	}
}

func (h *AdminContentHandlers) listArticles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.articles == nil {
		articleErrors.unavailable(ctx, w)
		return
	}
	pager, ok := pagerFromRequest(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	page, err := h.articles.List(ctx, services.ArticleListFilter{
		Category:   query.Get("category"),
		Status:     query.Get("status"),
		Locale:     query.Get("locale"),
		Pagination: pager,
	})
	if err != nil {
		articleErrors.write(ctx, w, err)
		return
	}
	resp := articleListResponse{Items: make([]articlePayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, article := range page.Items {
		resp.Items = append(resp.Items, buildArticlePayload(article, true))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *AdminContentHandlers) getArticle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.articles == nil {
		articleErrors.unavailable(ctx, w)
		return
	}
	article, err := h.articles.Get(ctx, strings.TrimSpace(chi.URLParam(r, "articleID")))
	if err != nil {
		articleErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildArticlePayload(article, true))
}

func (h *AdminContentHandlers) createArticle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.articles == nil {
		articleErrors.unavailable(ctx, w)
		return
	}
	var req articleRequest
	if !decodeJSONBody(w, r, contentBodyLimit, &req) {
		return
	}
	article, err := h.articles.Create(ctx, req.command())
	if err != nil {
		articleErrors.write(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("article created", zap.String("articleId", article.ID), zap.String("slug", article.Slug))
	writeJSONResponse(w, http.StatusCreated, buildArticlePayload(article, true))
}

func (h *AdminContentHandlers) updateArticle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.articles == nil {
		articleErrors.unavailable(ctx, w)
		return
	}
	var req articleRequest
	if !decodeJSONBody(w, r, contentBodyLimit, &req) {
		return
	}
	article, err := h.articles.Update(ctx, strings.TrimSpace(chi.URLParam(r, "articleID")), req.command())
	if err != nil {
		articleErrors.write(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildArticlePayload(article, true))
}

func (h *AdminContentHandlers) deleteArticle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.articles == nil {
		articleErrors.unavailable(ctx, w)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "articleID"))
	if err := h.articles.Delete(ctx, id); err != nil {
		articleErrors.write(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("article deleted", zap.String("articleId", id))
	w.WriteHeader(http.StatusNoContent)
}
