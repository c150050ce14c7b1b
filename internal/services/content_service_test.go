package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/render"
)

func TestContentServiceRenderReviewHTML(t *testing.T) {
	svc, err := NewContentService(ContentServiceDeps{})
	if err != nil {
		t.Fatalf("new content service: %v", err)
	}
	review := Review{
		ID:              "rev_1",
		Body:            `<h2>Fees</h2><h2>Fees</h2><button onClick={() => buy("pro")}>Buy</button>`,
		BodyFormat:      domain.FormatHTML,
		ProcessHeadings: true,
		UpdatedAt:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	body, err := svc.RenderReview(context.Background(), review)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := []render.HeadingRecord{
		{Tag: "h2", SourceText: "Fees", AssignedID: "fees"},
		{Tag: "h2", SourceText: "Fees", AssignedID: "fees-2"},
	}
	if diff := cmp.Diff(want, body.Headings); diff != "" {
		t.Fatalf("headings mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(body.HTML, `onclick="buy('pro')"`) {
		t.Fatalf("expected normalised handler, got %s", body.HTML)
	}
}

func TestContentServiceRenderArticleMarkdown(t *testing.T) {
	svc, _ := NewContentService(ContentServiceDeps{})
	article := Article{
		ID:              "art_1",
		Body:            "## Getting started\n\nRead the **guide**.\n\n<div id=\"cta\">Go</div>\n",
		BodyFormat:      domain.FormatMarkdown,
		ProcessHeadings: true,
	}
	body, err := svc.RenderArticle(context.Background(), article)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body.HTML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id, _ := doc.Find("h2").Attr("id"); id != "getting-started" {
		t.Fatalf("expected annotated heading, got %q in %s", id, body.HTML)
	}
	if doc.Find("strong").Text() != "guide" || doc.Find("#cta").Length() != 1 {
		t.Fatalf("expected markdown and raw html to render, got %s", body.HTML)
	}
}

func TestContentServiceHeadingsDisabled(t *testing.T) {
	svc, _ := NewContentService(ContentServiceDeps{CacheSize: -1})
	body, err := svc.RenderReview(context.Background(), Review{ID: "rev_2", Body: "<h3>Plain</h3>"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if body.HTML != "<h3>Plain</h3>" || len(body.Headings) != 0 {
		t.Fatalf("expected untouched markup, got %q %v", body.HTML, body.Headings)
	}
}

func TestContentServiceCacheKeyedByUpdate(t *testing.T) {
	svc, _ := NewContentService(ContentServiceDeps{CacheSize: 8, CacheTTL: time.Minute})
	ctx := context.Background()
	updated := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	review := Review{ID: "rev_3", Body: "<p>v1</p>", UpdatedAt: updated}

	first, _ := svc.RenderReview(ctx, review)
	review.Body = "<p>v2</p>"
	cached, _ := svc.RenderReview(ctx, review)
	if cached.HTML != first.HTML {
		t.Fatalf("expected cached body for unchanged update time, got %q", cached.HTML)
	}
	review.UpdatedAt = updated.Add(time.Second)
	fresh, _ := svc.RenderReview(ctx, review)
	if fresh.HTML != "<p>v2</p>" {
		t.Fatalf("expected fresh render after update, got %q", fresh.HTML)
	}
}
