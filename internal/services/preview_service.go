package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/render"
)

const (
	maxPreviewBytes       = 512 << 10
	maxPreviewEvents      = 20
	defaultPreviewTimeout = 5 * time.Second
)

var ErrPreviewInvalidInput = errors.New("preview: invalid input")

type PreviewServiceDeps struct {
	Renderer *render.Renderer
	// DefaultProcessHeadings applies when a command leaves ProcessHeadings unset.
	DefaultProcessHeadings bool
	Timeout                time.Duration
}

type previewService struct {
	renderer        *render.Renderer
	markdown        goldmark.Markdown
	processHeadings bool
	timeout         time.Duration
}

var _ PreviewService = (*previewService)(nil)

func NewPreviewService(deps PreviewServiceDeps) (PreviewService, error) {
	if deps.Renderer == nil {
		return nil, errors.New("preview service: renderer is required")
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultPreviewTimeout
	}
	return &previewService{
		renderer:        deps.Renderer,
		markdown:        NewMarkdown(),
		processHeadings: deps.DefaultProcessHeadings,
		timeout:         timeout,
	}, nil
}

// Preview renders into a throwaway container.
func (s *previewService) Preview(ctx context.Context, cmd PreviewCommand) (PreviewResult, error) {
	session := s.OpenSession()
	defer session.Close()
	return session.Render(ctx, cmd)
}

func (s *previewService) OpenSession() PreviewSession {
	return &previewSession{svc: s, container: render.NewContainer()}
}

type previewSession struct {
	svc       *previewService
	container *render.Container
}

// Render injects cmd into the session container and dispatches the requested events.
// Unchanged content is reported as skipped by the renderer and keeps its listeners.
func (p *previewSession) Render(ctx context.Context, cmd PreviewCommand) (PreviewResult, error) {
	s := p.svc
	if len(cmd.HTML) > maxPreviewBytes {
		return PreviewResult{}, fmt.Errorf("%w: html must be at most %d bytes", ErrPreviewInvalidInput, maxPreviewBytes)
	}
	if len(cmd.Events) > maxPreviewEvents {
		return PreviewResult{}, fmt.Errorf("%w: at most %d events", ErrPreviewInvalidInput, maxPreviewEvents)
	}
	targets, err := parseEventSpecs(cmd.Events)
	if err != nil {
		return PreviewResult{}, err
	}
	format, ok := normalizeBodyFormat(cmd.BodyFormat)
	if !ok {
		return PreviewResult{}, fmt.Errorf("%w: body format must be html or markdown", ErrPreviewInvalidInput)
	}
	markup := cmd.HTML
	if format == domain.FormatMarkdown {
		var buf bytes.Buffer
		if err := s.markdown.Convert([]byte(markup), &buf); err != nil {
			return PreviewResult{}, fmt.Errorf("%w: %v", ErrPreviewInvalidInput, err)
		}
		markup = buf.String()
	}
	opts := render.Options{ProcessHeadings: s.processHeadings}
	if cmd.ProcessHeadings != nil {
		opts.ProcessHeadings = *cmd.ProcessHeadings
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.renderer.Render(ctx, p.container, markup, opts)
	if err != nil {
		return PreviewResult{Report: report}, err
	}

	result := PreviewResult{Report: report}
	for _, target := range targets {
		outcome, err := p.dispatch(ctx, target)
		if err != nil {
			return result, err
		}
		result.Dispatched = append(result.Dispatched, outcome)
	}
	result.Markup, err = p.container.InnerHTML()
	if err != nil {
		return result, fmt.Errorf("preview: serialise container: %w", err)
	}
	return result, nil
}

func (p *previewSession) dispatch(ctx context.Context, target eventSpec) (DispatchOutcome, error) {
	outcome := DispatchOutcome{Target: target.selector, Event: target.event}
	for _, node := range p.container.QueryAll(target.selector) {
		res, err := p.container.Dispatch(ctx, node, target.event)
		if err != nil {
			return outcome, err
		}
		outcome.Invoked += res.Invoked
		for _, listenerErr := range res.Errors {
			outcome.Errors = append(outcome.Errors, listenerErr.Error())
		}
	}
	return outcome, nil
}

func (p *previewSession) Close() {
	p.container.Detach()
}

type eventSpec struct {
	selector string
	event    string
}

// parseEventSpecs splits "selector:event" entries on the last colon so pseudo-class
// selectors survive.
func parseEventSpecs(raw []string) ([]eventSpec, error) {
	specs := make([]eventSpec, 0, len(raw))
	for _, entry := range raw {
		idx := strings.LastIndex(entry, ":")
		if idx <= 0 || idx == len(entry)-1 {
			return nil, fmt.Errorf("%w: event %q must look like selector:event", ErrPreviewInvalidInput, entry)
		}
		selector := strings.TrimSpace(entry[:idx])
		event := strings.ToLower(strings.TrimSpace(entry[idx+1:]))
		if selector == "" || event == "" {
			return nil, fmt.Errorf("%w: event %q must look like selector:event", ErrPreviewInvalidInput, entry)
		}
		specs = append(specs, eventSpec{selector: selector, event: event})
	}
	return specs, nil
}
