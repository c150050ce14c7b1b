// Package render turns saved rich content into interactive markup: it annotates headings
// with anchor ids, normalises inline event handler attributes, injects the result into a
// container, binds handlers as listeners and re-runs script elements.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	instrumentationName  = "github.com/Hoangthang194/review-agency-sub000/internal/render"
	defaultAttachTimeout = 2 * time.Second
)

// ErrAttachTimeout is returned when the container does not signal attachment in time.
var ErrAttachTimeout = errors.New("render: container attach timed out")

// Options control a single render pass.
type Options struct {
	ProcessHeadings bool `json:"process_headings"`
}

// Prepared is the string level output of the annotator and normaliser stages.
type Prepared struct {
	HTML     string          `json:"html"`
	Headings []HeadingRecord `json:"headings"`
}

// Prepare runs the heading annotator (when enabled) followed by the handler normaliser.
func Prepare(raw string, opts Options) Prepared {
	var headings []HeadingRecord
	markup := raw
	if opts.ProcessHeadings {
		markup, headings = AnnotateHeadings(markup)
	}
	return Prepared{HTML: NormalizeHandlers(markup), Headings: headings}
}

// Report describes the outcome of one Render call.
type Report struct {
	Generation  uint64          `json:"generation"`
	Skipped     bool            `json:"skipped"`
	SkipReason  string          `json:"skip_reason,omitempty"`
	Headings    []HeadingRecord `json:"headings"`
	Bindings    []Binding       `json:"bindings"`
	Scripts     []ScriptRecord  `json:"scripts"`
	Diagnostics []Diagnostic    `json:"diagnostics"`
	Console     []ConsoleEntry  `json:"console"`
}

const (
	skipUnchanged = "unchanged"
	skipStale     = "stale"
	skipDetached  = "detached"
)

// Renderer drives full render passes against containers.
type Renderer struct {
	logger        *zap.Logger
	sandboxes     SandboxFactory
	loader        ScriptLoader
	attachTimeout time.Duration
	tracer        trace.Tracer

	boundCounter  metric.Int64Counter
	failedCounter metric.Int64Counter
	scriptCounter metric.Int64Counter
}

// Option customises a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used for per-item diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSandboxes selects how handler code and inline scripts are executed.
func WithSandboxes(factory SandboxFactory) Option {
	return func(r *Renderer) {
		if factory != nil {
			r.sandboxes = factory
		}
	}
}

// WithScriptLoader sets the loader receiving external script sources.
func WithScriptLoader(loader ScriptLoader) Option {
	return func(r *Renderer) {
		r.loader = loader
	}
}

// WithAttachTimeout bounds the wait for the container attached signal.
func WithAttachTimeout(timeout time.Duration) Option {
	return func(r *Renderer) {
		if timeout > 0 {
			r.attachTimeout = timeout
		}
	}
}

// NewRenderer builds a renderer. Without WithSandboxes, all code is rejected.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		logger:        zap.NewNop(),
		sandboxes:     DenySandboxes(),
		attachTimeout: defaultAttachTimeout,
		tracer:        otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.logger = r.logger.Named("render")

	meter := otel.Meter(instrumentationName)
	r.boundCounter, _ = meter.Int64Counter("render.handlers.bound")
	r.failedCounter, _ = meter.Int64Counter("render.handlers.failed")
	r.scriptCounter, _ = meter.Int64Counter("render.scripts.reanimated")
	return r
}

// Render runs a full pass: annotate (optional), normalise, inject into c, wait for the
// attached signal, then bind handlers and reanimate scripts. A pass over content the
// container already shows with the same options is skipped. Post-processing is dropped when
// the container was detached or received newer content in the meantime. Per-item failures
// end up in Report.Diagnostics; the returned error is reserved for container and context
// failures.
func (r *Renderer) Render(ctx context.Context, c *Container, raw string, opts Options) (Report, error) {
	if c == nil {
		return Report{}, ErrNilContainer
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	ctx, span := r.tracer.Start(ctx, "render.Render")
	defer span.End()

	key := contentKey(raw, opts)
	if generation, unchanged := c.alreadyProcessed(key); unchanged {
		span.SetAttributes(attribute.Bool("render.skipped", true))
		return Report{Generation: generation, Skipped: true, SkipReason: skipUnchanged}, nil
	}

	prepared := Prepare(raw, opts)
	generation, err := c.inject(prepared.HTML, key)
	if err != nil {
		return Report{}, err
	}
	report := Report{Generation: generation, Headings: prepared.Headings}
	span.SetAttributes(
		attribute.Int64("render.generation", int64(generation)),
		attribute.Int("render.headings", len(prepared.Headings)),
	)

	timer := time.NewTimer(r.attachTimeout)
	defer timer.Stop()
	select {
	case <-c.Attached(generation):
	case <-ctx.Done():
		return report, ctx.Err()
	case <-timer.C:
		return report, ErrAttachTimeout
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if reason := c.skipReasonLocked(generation, key); reason != "" {
		report.Skipped, report.SkipReason = true, reason
		span.SetAttributes(attribute.String("render.skip_reason", reason))
		r.logger.Debug("post-processing dropped",
			zap.String("reason", reason),
			zap.Uint64("generation", generation),
			zap.Uint64("current", c.generation),
		)
		return report, nil
	}

	sandbox, err := r.sandboxLocked(c)
	if err != nil {
		return report, fmt.Errorf("render: create sandbox: %w", err)
	}

	report.Bindings, report.Diagnostics = bindHandlersLocked(c, sandbox)
	report.Scripts = reanimateScriptsLocked(ctx, c, sandbox, r.loader)
	for _, script := range report.Scripts {
		if script.Error != "" {
			report.Diagnostics = append(report.Diagnostics, Diagnostic{
				Stage:   stageScript,
				Element: fmt.Sprintf("script[%d]", script.Index),
				Message: script.Error,
			})
		}
	}
	report.Console = sandbox.Console()
	c.processed = key
	c.pending = ""

	r.recordOutcome(ctx, report)
	return report, nil
}

func (r *Renderer) sandboxLocked(c *Container) (Sandbox, error) {
	if c.sandbox != nil {
		return c.sandbox, nil
	}
	sandbox, err := r.sandboxes(c)
	if err != nil {
		return nil, err
	}
	c.sandbox = sandbox
	return sandbox, nil
}

func (r *Renderer) recordOutcome(ctx context.Context, report Report) {
	failed := 0
	for _, diag := range report.Diagnostics {
		if diag.Stage == stageBind {
			failed++
		}
		r.logger.Warn("render diagnostic",
			zap.String("stage", diag.Stage),
			zap.String("element", diag.Element),
			zap.String("event", diag.Event),
			zap.String("detail", diag.Message),
		)
	}
	r.boundCounter.Add(ctx, int64(len(report.Bindings)))
	r.failedCounter.Add(ctx, int64(failed))
	r.scriptCounter.Add(ctx, int64(len(report.Scripts)))
}

// alreadyProcessed reports whether key is the content the container last finished processing.
func (c *Container) alreadyProcessed(key string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, !c.detached && c.processed != "" && c.processed == key
}

// skipReasonLocked reports why post-processing for generation must not run, or "" when the
// container still shows exactly that injection. The caller holds c.mu.
func (c *Container) skipReasonLocked(generation uint64, key string) string {
	switch {
	case c.detached:
		return skipDetached
	case c.generation != generation || c.pending != key:
		return skipStale
	}
	return ""
}

func contentKey(raw string, opts Options) string {
	if opts.ProcessHeadings {
		return "h1:" + raw
	}
	return "h0:" + raw
}
