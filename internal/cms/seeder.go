package cms

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

const defaultSeedConcurrency = 4

// Seed outcomes.
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
)

// SeederDeps bundles the services seeded content is written through.
type SeederDeps struct {
	Reviews     services.ReviewService
	Articles    services.ArticleService
	Logger      *zap.Logger
	Concurrency int
	// DefaultLocale applies to documents whose front matter has no locale.
	DefaultLocale string
}

// Seeder upserts seed files into the review and article stores, keyed by slug and locale.
type Seeder struct {
	reviews       services.ReviewService
	articles      services.ArticleService
	logger        *zap.Logger
	concurrency   int
	defaultLocale string
}

// FileError records a seed file that could not be applied.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error { return e.Err }

// Result summarises one SeedDir run.
type Result struct {
	Created int
	Updated int
	Failed  []FileError
}

func NewSeeder(deps SeederDeps) (*Seeder, error) {
	if deps.Reviews == nil || deps.Articles == nil {
		return nil, errors.New("cms seeder: review and article services are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultSeedConcurrency
	}
	return &Seeder{
		reviews:       deps.Reviews,
		articles:      deps.Articles,
		logger:        logger.Named("cms"),
		concurrency:   concurrency,
		defaultLocale: strings.TrimSpace(deps.DefaultLocale),
	}, nil
}

// SeedDir applies every supported file under dir. A broken file is reported in the result
// and does not stop the others; only context cancellation and walk failures return an error.
func (s *Seeder) SeedDir(ctx context.Context, dir string) (Result, error) {
	paths, err := seedFiles(dir)
	if err != nil {
		return Result{}, err
	}

	var (
		mu     sync.Mutex
		result Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, err := s.SeedFile(gctx, path)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				result.Failed = append(result.Failed, FileError{Path: path, Err: err})
			case outcome == OutcomeCreated:
				result.Created++
			default:
				result.Updated++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i].Path < result.Failed[j].Path })
	s.logger.Info("seed finished",
		zap.String("dir", dir),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func seedFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cms: walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// SeedFile loads path and creates or updates the record it describes.
func (s *Seeder) SeedFile(ctx context.Context, path string) (string, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return "", err
	}
	return s.Apply(ctx, doc)
}

// Apply upserts doc.
func (s *Seeder) Apply(ctx context.Context, doc Document) (string, error) {
	if strings.TrimSpace(doc.Meta.Locale) == "" {
		doc.Meta.Locale = s.defaultLocale
	}
	var (
		outcome string
		id      string
		err     error
	)
	switch doc.Type {
	case TypeReview:
		outcome, id, err = s.applyReview(ctx, doc)
	case TypeArticle:
		outcome, id, err = s.applyArticle(ctx, doc)
	default:
		err = fmt.Errorf("%w: unknown type %q", ErrInvalidDocument, doc.Type)
	}
	if err != nil {
		s.logger.Warn("seed file failed", zap.String("path", doc.Path), zap.Error(err))
		return "", err
	}
	s.logger.Debug("seed file applied",
		zap.String("path", doc.Path),
		zap.String("type", doc.Type),
		zap.String("id", id),
		zap.String("outcome", outcome),
	)
	return outcome, nil
}

func (s *Seeder) applyReview(ctx context.Context, doc Document) (string, string, error) {
	meta := doc.Meta
	cmd := services.UpsertReviewCommand{
		Kind:            meta.Kind,
		Slug:            meta.Slug,
		Name:            meta.Name,
		Rating:          meta.Rating,
		Summary:         meta.Summary,
		Body:            doc.Body,
		BodyFormat:      doc.BodyFormat,
		LogoURL:         meta.LogoURL,
		WebsiteURL:      meta.WebsiteURL,
		Pros:            meta.Pros,
		Cons:            meta.Cons,
		Tags:            meta.Tags,
		Locale:          meta.Locale,
		Status:          meta.Status,
		ProcessHeadings: meta.ProcessHeadings,
	}
	existing, err := s.reviews.GetBySlug(ctx, meta.Kind, meta.Slug, meta.Locale)
	switch {
	case err == nil:
		updated, err := s.reviews.Update(ctx, existing.ID, cmd)
		if err != nil {
			return "", "", err
		}
		return OutcomeUpdated, updated.ID, nil
	case errors.Is(err, services.ErrReviewNotFound):
		created, err := s.reviews.Create(ctx, cmd)
		if err != nil {
			return "", "", err
		}
		return OutcomeCreated, created.ID, nil
	default:
		return "", "", err
	}
}

func (s *Seeder) applyArticle(ctx context.Context, doc Document) (string, string, error) {
	meta := doc.Meta
	cmd := services.UpsertArticleCommand{
		Slug:            meta.Slug,
		Title:           meta.Title,
		Category:        meta.Category,
		Excerpt:         meta.Excerpt,
		Body:            doc.Body,
		BodyFormat:      doc.BodyFormat,
		CoverURL:        meta.CoverURL,
		Author:          meta.Author,
		Tags:            meta.Tags,
		Locale:          meta.Locale,
		Status:          meta.Status,
		ProcessHeadings: meta.ProcessHeadings,
	}
	existing, err := s.articles.GetBySlug(ctx, meta.Slug, meta.Locale)
	switch {
	case err == nil:
		updated, err := s.articles.Update(ctx, existing.ID, cmd)
		if err != nil {
			return "", "", err
		}
		return OutcomeUpdated, updated.ID, nil
	case errors.Is(err, services.ErrArticleNotFound):
		created, err := s.articles.Create(ctx, cmd)
		if err != nil {
			return "", "", err
		}
		return OutcomeCreated, created.ID, nil
	default:
		return "", "", err
	}
}
