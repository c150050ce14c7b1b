package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hoangthang194/review-agency-sub000/internal/render"
)

func newTestPreviewService(t *testing.T) PreviewService {
	t.Helper()
	renderer := render.NewRenderer(render.WithSandboxes(render.GojaSandboxes(render.GojaOptions{})))
	svc, err := NewPreviewService(PreviewServiceDeps{Renderer: renderer, DefaultProcessHeadings: true})
	require.NoError(t, err)
	return svc
}

func TestPreviewRendersBindsAndDispatches(t *testing.T) {
	svc := newTestPreviewService(t)
	result, err := svc.Preview(context.Background(), PreviewCommand{
		HTML: `<h2>Compare</h2>` +
			`<button id="buy" onClick={() => { this.setAttribute("data-clicked", "yes"); console.log("bought") }}>Buy</button>` +
			`<button class="broken" onclick="missing()">x</button>`,
		Events: []string{"#buy:click", "button.broken:click", "#nothing:click"},
	})
	require.NoError(t, err)

	require.Len(t, result.Report.Headings, 1)
	assert.Equal(t, "compare", result.Report.Headings[0].AssignedID)
	assert.Len(t, result.Report.Bindings, 2)

	require.Len(t, result.Dispatched, 3)
	assert.Equal(t, DispatchOutcome{Target: "#buy", Event: "click", Invoked: 1}, result.Dispatched[0])
	assert.Equal(t, 1, result.Dispatched[1].Invoked)
	assert.NotEmpty(t, result.Dispatched[1].Errors)
	assert.Zero(t, result.Dispatched[2].Invoked)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(result.Markup))
	require.NoError(t, err)
	assert.Equal(t, "yes", doc.Find("#buy").AttrOr("data-clicked", ""))
	assert.Equal(t, "compare", doc.Find("h2").AttrOr("id", ""))
}

func TestPreviewMarkdownWithoutHeadings(t *testing.T) {
	svc := newTestPreviewService(t)
	result, err := svc.Preview(context.Background(), PreviewCommand{
		HTML:            "## Title\n\nBody",
		BodyFormat:      "markdown",
		ProcessHeadings: ptr(false),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Report.Headings)
	assert.Contains(t, result.Markup, "<h2>Title</h2>")
}

func TestPreviewSessionSkipsUnchangedContent(t *testing.T) {
	svc := newTestPreviewService(t)
	session := svc.OpenSession()
	ctx := context.Background()
	cmd := PreviewCommand{HTML: `<button id="b" onclick="console.log('x')">b</button>`}

	first, err := session.Render(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, first.Report.Skipped)

	second, err := session.Render(ctx, PreviewCommand{HTML: cmd.HTML, Events: []string{"#b:click"}})
	require.NoError(t, err)
	assert.True(t, second.Report.Skipped)
	require.Len(t, second.Dispatched, 1)
	assert.Equal(t, 1, second.Dispatched[0].Invoked)

	session.Close()
	_, err = session.Render(ctx, PreviewCommand{HTML: "<p>after close</p>"})
	assert.ErrorIs(t, err, render.ErrContainerDetached)
}

func TestPreviewRejectsBadInput(t *testing.T) {
	svc := newTestPreviewService(t)
	ctx := context.Background()
	for _, cmd := range []PreviewCommand{
		{HTML: "<p>x</p>", Events: []string{"click"}},
		{HTML: "<p>x</p>", Events: []string{"#a:"}},
		{HTML: "<p>x</p>", BodyFormat: "docx"},
		{HTML: strings.Repeat("a", maxPreviewBytes+1)},
	} {
		_, err := svc.Preview(ctx, cmd)
		assert.True(t, errors.Is(err, ErrPreviewInvalidInput), "expected invalid input for %+v, got %v", cmd.Events, err)
	}
}
