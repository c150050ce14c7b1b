package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Hoangthang194/review-agency-sub000/internal/platform/httpx"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/requestctx"
	"github.com/Hoangthang194/review-agency-sub000/internal/render"
	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

// PublicHandlers serves published reviews, articles and the enabled page scripts.
type PublicHandlers struct {
	reviews  services.ReviewService
	articles services.ArticleService
	scripts  services.ScriptService
	content  services.ContentService
}

// PublicOption customises PublicHandlers.
type PublicOption func(*PublicHandlers)

func WithPublicReviews(svc services.ReviewService) PublicOption {
	return func(h *PublicHandlers) { h.reviews = svc }
}

func WithPublicArticles(svc services.ArticleService) PublicOption {
	return func(h *PublicHandlers) { h.articles = svc }
}

func WithPublicScripts(svc services.ScriptService) PublicOption {
	return func(h *PublicHandlers) { h.scripts = svc }
}

// WithPublicContent sets the renderer used for detail bodies.
func WithPublicContent(svc services.ContentService) PublicOption {
	return func(h *PublicHandlers) { h.content = svc }
}

func NewPublicHandlers(opts ...PublicOption) *PublicHandlers {
	h := &PublicHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the read-only public endpoints.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/reviews", h.listReviews)
	r.Get("/reviews/{kind}/{slug}", h.getReview)
	r.Get("/articles", h.listArticles)
	r.Get("/articles/{slug}", h.getArticle)
	r.Get("/scripts", h.listScripts)
}

type tocEntryPayload struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
	ID   string `json:"id"`
}

func buildTOC(headings []render.HeadingRecord) []tocEntryPayload {
	toc := make([]tocEntryPayload, 0, len(headings))
	for _, heading := range headings {
		toc = append(toc, tocEntryPayload{Tag: heading.Tag, Text: heading.SourceText, ID: heading.AssignedID})
	}
	return toc
}

type reviewListResponse struct {
	Items         []reviewPayload `json:"items"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

type reviewDetailResponse struct {
	Review   reviewPayload     `json:"review"`
	BodyHTML string            `json:"body_html"`
	TOC      []tocEntryPayload `json:"toc"`
}

func (h *PublicHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
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
		Kind:          query.Get("kind"),
		Locale:        requestLocale(r),
		PublishedOnly: true,
		Pagination:    pager,
	})
	if err != nil {
		reviewErrors.write(ctx, w, err)
		return
	}

	resp := reviewListResponse{Items: make([]reviewPayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	tags := make([]string, 0, len(page.Items)+1)
	for _, review := range page.Items {
		resp.Items = append(resp.Items, buildReviewPayload(review, false))
		tags = append(tags, review.ID+"@"+strconv.FormatInt(review.UpdatedAt.UnixNano(), 10))
	}
	tags = append(tags, page.NextPageToken)
	if !writeCacheable(w, r, computeETag(tags...)) {
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *PublicHandlers) getReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil || h.content == nil {
		reviewErrors.unavailable(ctx, w)
		return
	}
	kind := strings.TrimSpace(chi.URLParam(r, "kind"))
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if kind == "" || slug == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_slug", "review kind and slug are required", http.StatusBadRequest))
		return
	}

	review, err := h.reviews.GetBySlug(ctx, kind, slug, requestLocale(r))
	if err != nil {
		reviewErrors.write(ctx, w, err)
		return
	}
	if !review.IsPublished() {
		reviewErrors.write(ctx, w, services.ErrReviewNotFound)
		return
	}

	if !writeCacheable(w, r, computeETag(review.ID, formatTime(review.UpdatedAt))) {
		return
	}
	body, err := h.content.RenderReview(ctx, review)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("render_failed", "failed to render review body", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusOK, reviewDetailResponse{
		Review:   buildReviewPayload(review, false),
		BodyHTML: body.HTML,
		TOC:      buildTOC(body.Headings),
	})
}

type articleListResponse struct {
	Items         []articlePayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type articleDetailResponse struct {
	Article  articlePayload    `json:"article"`
	BodyHTML string            `json:"body_html"`
	TOC      []tocEntryPayload `json:"toc"`
}

func (h *PublicHandlers) listArticles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.articles == nil {
		articleErrors.unavailable(ctx, w)
		return
	}
	pager, ok := pagerFromRequest(w, r)
	if !ok {
		return
	}
	page, err := h.articles.List(ctx, services.ArticleListFilter{
		Category:      r.URL.Query().Get("category"),
		Locale:        requestLocale(r),
		PublishedOnly: true,
		Pagination:    pager,
	})
	if err != nil {
		articleErrors.write(ctx, w, err)
		return
	}

	resp := articleListResponse{Items: make([]articlePayload, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	tags := make([]string, 0, len(page.Items)+1)
	for _, article := range page.Items {
		resp.Items = append(resp.Items, buildArticlePayload(article, false))
		tags = append(tags, article.ID+"@"+strconv.FormatInt(article.UpdatedAt.UnixNano(), 10))
	}
	tags = append(tags, page.NextPageToken)
	if !writeCacheable(w, r, computeETag(tags...)) {
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *PublicHandlers) getArticle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.articles == nil || h.content == nil {
		articleErrors.unavailable(ctx, w)
		return
	}
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_slug", "article slug is required", http.StatusBadRequest))
		return
	}

	article, err := h.articles.GetBySlug(ctx, slug, requestLocale(r))
	if err != nil {
		articleErrors.write(ctx, w, err)
		return
	}
	if !article.IsPublished() {
		articleErrors.write(ctx, w, services.ErrArticleNotFound)
		return
	}

	if !writeCacheable(w, r, computeETag(article.ID, formatTime(article.UpdatedAt))) {
		return
	}
	body, err := h.content.RenderArticle(ctx, article)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("render_failed", "failed to render article body", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusOK, articleDetailResponse{
		Article:  buildArticlePayload(article, false),
		BodyHTML: body.HTML,
		TOC:      buildTOC(body.Headings),
	})
}

type publicScriptPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Placement string `json:"placement"`
	Code      string `json:"code"`
	Order     int    `json:"order"`
}

func (h *PublicHandlers) listScripts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.scripts == nil {
		scriptErrors.unavailable(ctx, w)
		return
	}
	scripts, err := h.scripts.ListEnabled(ctx, r.URL.Query().Get("placement"))
	if err != nil {
		scriptErrors.write(ctx, w, err)
		return
	}
	items := make([]publicScriptPayload, 0, len(scripts))
	tags := make([]string, 0, len(scripts))
	for _, script := range scripts {
		items = append(items, publicScriptPayload{
			ID:        script.ID,
			Name:      script.Name,
			Placement: script.Placement,
			Code:      script.Code,
			Order:     script.Order,
		})
		tags = append(tags, script.ID+"@"+strconv.FormatInt(script.UpdatedAt.UnixNano(), 10))
	}
	if !writeCacheable(w, r, computeETag(tags...)) {
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

// requestLocale prefers ?locale= and falls back to the negotiated request locale.
func requestLocale(r *http.Request) string {
	if locale := strings.TrimSpace(r.URL.Query().Get("locale")); locale != "" {
		return locale
	}
	return requestctx.Locale(r.Context())
}
