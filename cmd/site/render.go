package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Hoangthang194/review-agency-sub000/internal/cms"
	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/render"
	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

type renderOptions struct {
	events   []string
	headings bool
	scripts  bool
	timeout  time.Duration
}

type renderOutput struct {
	File       string                     `json:"file"`
	Markup     string                     `json:"markup"`
	Report     render.Report              `json:"report"`
	Dispatched []services.DispatchOutcome `json:"dispatched,omitempty"`
}

func newRenderCmd(root *rootOptions) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a saved body the way the site does and print the JSON report",
		Long: "Runs heading annotation, handler normalisation, injection, handler binding and script\n" +
			"reanimation on an HTML or markdown file. Seed files with front matter are accepted.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringSliceVar(&opts.events, "event", nil, "dispatch an event after rendering, as selector:event (repeatable)")
	cmd.Flags().BoolVar(&opts.headings, "headings", true, "annotate h2-h4 headings with ids")
	cmd.Flags().BoolVar(&opts.scripts, "scripts", true, "run handler and script code in the sandbox")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "limit for the whole render")
	return cmd
}

func runRender(cmd *cobra.Command, root *rootOptions, opts *renderOptions, path string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := zap.NewNop()
	if root.logLevel != "" || root.devLogs {
		l, err := root.logger("render")
		if err != nil {
			return err
		}
		logger = l
		defer func() { _ = logger.Sync() }()
	}

	body, format, headings, err := readRenderSource(path, opts.headings)
	if err != nil {
		return err
	}

	rendererOpts := []render.Option{render.WithLogger(logger)}
	if opts.scripts {
		rendererOpts = append(rendererOpts, render.WithSandboxes(render.GojaSandboxes(render.GojaOptions{Logger: logger})))
	}
	preview, err := services.NewPreviewService(services.PreviewServiceDeps{
		Renderer:               render.NewRenderer(rendererOpts...),
		DefaultProcessHeadings: headings,
		Timeout:                opts.timeout,
	})
	if err != nil {
		return err
	}
	result, err := preview.Preview(ctx, services.PreviewCommand{
		HTML:       body,
		BodyFormat: format,
		Events:     opts.events,
	})
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(renderOutput{
		File:       path,
		Markup:     result.Markup,
		Report:     result.Report,
		Dispatched: result.Dispatched,
	})
}

// readRenderSource returns the body to render. Seed files contribute their body and their
// process_headings setting; anything else is rendered as-is.
func readRenderSource(path string, headings bool) (string, string, bool, error) {
	doc, err := cms.LoadDocument(path)
	switch {
	case err == nil:
		if doc.Meta.ProcessHeadings != nil {
			headings = *doc.Meta.ProcessHeadings
		}
		return doc.Body, doc.BodyFormat, headings, nil
	case errors.Is(err, cms.ErrInvalidDocument), errors.Is(err, cms.ErrUnsupportedFile):
	default:
		return "", "", false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", false, fmt.Errorf("read %s: %w", path, err)
	}
	format := domain.FormatHTML
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		format = domain.FormatMarkdown
	}
	return string(data), format, headings, nil
}
