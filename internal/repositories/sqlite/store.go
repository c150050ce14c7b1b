// Package sqlite implements the repository contracts on an embedded SQLite database. Each
// entity lives in its own table: indexed columns for lookups plus the JSON encoded record.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

// Registry bundles the SQLite repositories behind repositories.Registry.
type Registry struct {
	db     *sql.DB
	logger *zap.Logger

	accounts *AccountRepository
	reviews  *ReviewRepository
	articles *ArticleRepository
	contacts *ContactRepository
	scripts  *ScriptRepository
	media    *MediaRepository
}

var _ repositories.Registry = (*Registry)(nil)

// Option customises Open.
type Option func(*Registry)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Open creates the database file when needed and applies pending migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite: database path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	r := &Registry{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if err := migrate(ctx, db, r.logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	r.accounts = &AccountRepository{table: accountTable(db)}
	r.reviews = &ReviewRepository{table: reviewTable(db)}
	r.articles = &ArticleRepository{table: articleTable(db)}
	r.contacts = &ContactRepository{table: contactTable(db)}
	r.scripts = &ScriptRepository{table: scriptTable(db)}
	r.media = &MediaRepository{table: mediaTable(db)}
	return r, nil
}

func dsn(path string) string {
	pragmas := "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path == ":memory:" {
		return "file::memory:?" + pragmas
	}
	return "file:" + path + "?" + pragmas + "&_pragma=journal_mode(WAL)"
}

func (r *Registry) Accounts() repositories.AccountRepository { return r.accounts }
func (r *Registry) Reviews() repositories.ReviewRepository   { return r.reviews }
func (r *Registry) Articles() repositories.ArticleRepository { return r.articles }
func (r *Registry) Contacts() repositories.ContactRepository { return r.contacts }
func (r *Registry) Scripts() repositories.ScriptRepository   { return r.scripts }
func (r *Registry) Media() repositories.MediaRepository      { return r.media }

func (r *Registry) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return wrapError("ping", err)
	}
	return nil
}

func (r *Registry) Close(context.Context) error {
	return r.db.Close()
}

func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}
