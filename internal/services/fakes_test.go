package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

type repoErr struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e repoErr) Error() string {
	switch {
	case e.notFound:
		return "not found"
	case e.conflict:
		return "conflict"
	default:
		return "unavailable"
	}
}

func (e repoErr) IsNotFound() bool    { return e.notFound }
func (e repoErr) IsConflict() bool    { return e.conflict }
func (e repoErr) IsUnavailable() bool { return e.unavailable }

var (
	errNotFound    = repoErr{notFound: true}
	errConflict    = repoErr{conflict: true}
	errUnavailable = repoErr{unavailable: true}
)

// memTable is an in-memory keyed store. key returns the unique secondary key of an item,
// or "" when the entity has none.
type memTable[T any] struct {
	mu      sync.Mutex
	items   map[string]T
	id      func(T) string
	key     func(T) string
	created func(T) time.Time
	fail    error
}

func newMemTable[T any](id, key func(T) string, created func(T) time.Time) *memTable[T] {
	return &memTable[T]{items: make(map[string]T), id: id, key: key, created: created}
}

func (m *memTable[T]) insert(item T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if _, ok := m.items[m.id(item)]; ok {
		return errConflict
	}
	if m.taken(item) {
		return errConflict
	}
	m.items[m.id(item)] = item
	return nil
}

func (m *memTable[T]) update(item T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if _, ok := m.items[m.id(item)]; !ok {
		return errNotFound
	}
	if m.taken(item) {
		return errConflict
	}
	m.items[m.id(item)] = item
	return nil
}

func (m *memTable[T]) taken(item T) bool {
	if m.key == nil || m.key(item) == "" {
		return false
	}
	for id, existing := range m.items {
		if id != m.id(item) && m.key(existing) == m.key(item) {
			return true
		}
	}
	return false
}

func (m *memTable[T]) delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if _, ok := m.items[id]; !ok {
		return errNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memTable[T]) get(id string) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if m.fail != nil {
		return zero, m.fail
	}
	item, ok := m.items[id]
	if !ok {
		return zero, errNotFound
	}
	return item, nil
}

func (m *memTable[T]) find(match func(T) bool) (T, error) {
	for _, item := range m.list(match) {
		return item, nil
	}
	var zero T
	return zero, errNotFound
}

// list returns matches newest first.
func (m *memTable[T]) list(match func(T) bool) []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []T
	for _, item := range m.items {
		if match == nil || match(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !m.created(out[i]).Equal(m.created(out[j])) {
			return m.created(out[i]).After(m.created(out[j]))
		}
		return m.id(out[i]) > m.id(out[j])
	})
	return out
}

func (m *memTable[T]) page(match func(T) bool) (domain.CursorPage[T], error) {
	if m.fail != nil {
		return domain.CursorPage[T]{}, m.fail
	}
	return domain.CursorPage[T]{Items: m.list(match)}, nil
}

func matchField(want, got string) bool {
	return want == "" || want == got
}

type memAccounts struct{ *memTable[domain.Account] }

func newMemAccounts() *memAccounts {
	return &memAccounts{newMemTable(
		func(a domain.Account) string { return a.ID },
		func(a domain.Account) string { return strings.ToLower(a.Email) },
		func(a domain.Account) time.Time { return a.CreatedAt },
	)}
}

func (r *memAccounts) Insert(_ context.Context, a domain.Account) error { return r.insert(a) }
func (r *memAccounts) Update(_ context.Context, a domain.Account) error { return r.update(a) }
func (r *memAccounts) Delete(_ context.Context, id string) error        { return r.delete(id) }
func (r *memAccounts) FindByID(_ context.Context, id string) (domain.Account, error) {
	return r.get(id)
}
func (r *memAccounts) FindByEmail(_ context.Context, email string) (domain.Account, error) {
	return r.find(func(a domain.Account) bool { return strings.EqualFold(a.Email, email) })
}
func (r *memAccounts) List(_ context.Context, _ domain.Pagination) (domain.CursorPage[domain.Account], error) {
	return r.page(nil)
}
func (r *memAccounts) Count(_ context.Context) (int, error) {
	if r.fail != nil {
		return 0, r.fail
	}
	return len(r.list(nil)), nil
}

type memReviews struct{ *memTable[domain.Review] }

func newMemReviews() *memReviews {
	return &memReviews{newMemTable(
		func(r domain.Review) string { return r.ID },
		func(r domain.Review) string { return r.Kind + "/" + r.Slug + "/" + r.Locale },
		func(r domain.Review) time.Time { return r.CreatedAt },
	)}
}

func (r *memReviews) Insert(_ context.Context, v domain.Review) error { return r.insert(v) }
func (r *memReviews) Update(_ context.Context, v domain.Review) error { return r.update(v) }
func (r *memReviews) Delete(_ context.Context, id string) error       { return r.delete(id) }
func (r *memReviews) FindByID(_ context.Context, id string) (domain.Review, error) {
	return r.get(id)
}
func (r *memReviews) FindBySlug(_ context.Context, kind, slug, locale string) (domain.Review, error) {
	return r.find(func(v domain.Review) bool { return v.Kind == kind && v.Slug == slug && v.Locale == locale })
}
func (r *memReviews) List(_ context.Context, f repositories.ReviewFilter) (domain.CursorPage[domain.Review], error) {
	return r.page(func(v domain.Review) bool {
		return matchField(f.Kind, v.Kind) && matchField(f.Status, v.Status) && matchField(f.Locale, v.Locale)
	})
}

type memArticles struct{ *memTable[domain.Article] }

func newMemArticles() *memArticles {
	return &memArticles{newMemTable(
		func(a domain.Article) string { return a.ID },
		func(a domain.Article) string { return a.Slug + "/" + a.Locale },
		func(a domain.Article) time.Time { return a.CreatedAt },
	)}
}

func (r *memArticles) Insert(_ context.Context, v domain.Article) error { return r.insert(v) }
func (r *memArticles) Update(_ context.Context, v domain.Article) error { return r.update(v) }
func (r *memArticles) Delete(_ context.Context, id string) error        { return r.delete(id) }
func (r *memArticles) FindByID(_ context.Context, id string) (domain.Article, error) {
	return r.get(id)
}
func (r *memArticles) FindBySlug(_ context.Context, slug, locale string) (domain.Article, error) {
	return r.find(func(v domain.Article) bool { return v.Slug == slug && v.Locale == locale })
}
func (r *memArticles) List(_ context.Context, f repositories.ArticleFilter) (domain.CursorPage[domain.Article], error) {
	return r.page(func(v domain.Article) bool {
		return matchField(f.Category, v.Category) && matchField(f.Status, v.Status) && matchField(f.Locale, v.Locale)
	})
}

type memContacts struct{ *memTable[domain.Contact] }

func newMemContacts() *memContacts {
	return &memContacts{newMemTable(
		func(c domain.Contact) string { return c.ID },
		nil,
		func(c domain.Contact) time.Time { return c.CreatedAt },
	)}
}

func (r *memContacts) Insert(_ context.Context, v domain.Contact) error { return r.insert(v) }
func (r *memContacts) Update(_ context.Context, v domain.Contact) error { return r.update(v) }
func (r *memContacts) Delete(_ context.Context, id string) error        { return r.delete(id) }
func (r *memContacts) FindByID(_ context.Context, id string) (domain.Contact, error) {
	return r.get(id)
}
func (r *memContacts) List(_ context.Context, f repositories.ContactFilter) (domain.CursorPage[domain.Contact], error) {
	return r.page(func(v domain.Contact) bool { return matchField(f.Status, v.Status) })
}

type memScripts struct{ *memTable[domain.HeadScript] }

func newMemScripts() *memScripts {
	return &memScripts{newMemTable(
		func(s domain.HeadScript) string { return s.ID },
		nil,
		func(s domain.HeadScript) time.Time { return s.CreatedAt },
	)}
}

func (r *memScripts) Insert(_ context.Context, v domain.HeadScript) error { return r.insert(v) }
func (r *memScripts) Update(_ context.Context, v domain.HeadScript) error { return r.update(v) }
func (r *memScripts) Delete(_ context.Context, id string) error           { return r.delete(id) }
func (r *memScripts) FindByID(_ context.Context, id string) (domain.HeadScript, error) {
	return r.get(id)
}
func (r *memScripts) List(_ context.Context, f repositories.ScriptFilter) ([]domain.HeadScript, error) {
	if r.fail != nil {
		return nil, r.fail
	}
	out := r.list(func(v domain.HeadScript) bool {
		return matchField(f.Placement, v.Placement) && (!f.EnabledOnly || v.Enabled)
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

type memMedia struct{ *memTable[domain.MediaAsset] }

func newMemMedia() *memMedia {
	return &memMedia{newMemTable(
		func(m domain.MediaAsset) string { return m.ID },
		nil,
		func(m domain.MediaAsset) time.Time { return m.CreatedAt },
	)}
}

func (r *memMedia) Insert(_ context.Context, v domain.MediaAsset) error { return r.insert(v) }
func (r *memMedia) Delete(_ context.Context, id string) error           { return r.delete(id) }
func (r *memMedia) FindByID(_ context.Context, id string) (domain.MediaAsset, error) {
	return r.get(id)
}
func (r *memMedia) List(_ context.Context, _ domain.Pagination) (domain.CursorPage[domain.MediaAsset], error) {
	return r.page(nil)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequenceIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + string(rune('a'+n-1))
	}
}

func ptr[T any](v T) *T { return &v }
