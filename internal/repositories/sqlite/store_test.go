package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Open(context.Background(), filepath.Join(t.TempDir(), "site.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return reg
}

func repoErr(t *testing.T, err error) repositories.RepositoryError {
	t.Helper()
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr), "expected repository error, got %v", err)
	return repoErr
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "site.db")
	reg, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, reg.Close(context.Background()))

	reg, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer reg.Close(context.Background())
	require.NoError(t, reg.Ping(context.Background()))
}

func TestAccountRepositoryUniqueEmail(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	account := domain.Account{ID: "acc_1", Email: " Owner@Example.com ", Role: domain.RoleAdmin, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, reg.Accounts().Insert(ctx, account))

	dup := domain.Account{ID: "acc_2", Email: "owner@example.com", Role: domain.RoleEditor, CreatedAt: now, UpdatedAt: now}
	err := reg.Accounts().Insert(ctx, dup)
	assert.True(t, repoErr(t, err).IsConflict())

	found, err := reg.Accounts().FindByEmail(ctx, "OWNER@example.com")
	require.NoError(t, err)
	assert.Equal(t, "acc_1", found.ID)
	assert.Equal(t, "owner@example.com", found.Email)
	assert.True(t, found.CreatedAt.Equal(now))

	count, err := reg.Accounts().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = reg.Accounts().FindByID(ctx, "missing")
	assert.True(t, repoErr(t, err).IsNotFound())
}

func TestReviewRepositoryUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	review := domain.Review{
		ID: "rev_1", Kind: domain.ReviewKindBroker, Slug: "acme", Name: "Acme", Locale: "en",
		Status: domain.StatusDraft, Pros: []string{"fast"}, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, reg.Reviews().Insert(ctx, review))

	other := review
	other.ID, other.Kind = "rev_2", domain.ReviewKindExchange
	require.NoError(t, reg.Reviews().Insert(ctx, other), "same slug under another kind is allowed")

	clash := review
	clash.ID = "rev_3"
	assert.True(t, repoErr(t, reg.Reviews().Insert(ctx, clash)).IsConflict())

	review.Status = domain.StatusPublished
	review.Rating = 4.5
	require.NoError(t, reg.Reviews().Update(ctx, review))

	got, err := reg.Reviews().FindBySlug(ctx, domain.ReviewKindBroker, "acme", "en")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, got.Status)
	assert.Equal(t, 4.5, got.Rating)
	assert.Equal(t, []string{"fast"}, got.Pros)

	missing := review
	missing.ID = "rev_404"
	assert.True(t, repoErr(t, reg.Reviews().Update(ctx, missing)).IsNotFound())

	require.NoError(t, reg.Reviews().Delete(ctx, "rev_1"))
	assert.True(t, repoErr(t, reg.Reviews().Delete(ctx, "rev_1")).IsNotFound())
}

func TestReviewRepositoryListPages(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	ids := []string{"rev_a", "rev_b", "rev_c", "rev_d", "rev_e"}
	for i, id := range ids {
		status := domain.StatusPublished
		if id == "rev_c" {
			status = domain.StatusDraft
		}
		created := base.Add(time.Duration(i) * time.Minute)
		if id == "rev_e" {
			created = base.Add(3 * time.Minute) // ties with rev_d
		}
		require.NoError(t, reg.Reviews().Insert(ctx, domain.Review{
			ID: id, Kind: domain.ReviewKindBroker, Slug: id, Locale: "en", Status: status,
			CreatedAt: created, UpdatedAt: created,
		}))
	}

	filter := repositories.ReviewFilter{Status: domain.StatusPublished, Pagination: domain.Pagination{PageSize: 2}}
	first, err := reg.Reviews().List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, []string{"rev_e", "rev_d"}, reviewIDs(first.Items))
	require.NotEmpty(t, first.NextPageToken)

	filter.Pagination.PageToken = first.NextPageToken
	second, err := reg.Reviews().List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, []string{"rev_b", "rev_a"}, reviewIDs(second.Items))
	assert.Empty(t, second.NextPageToken)
}

func TestScriptRepositoryOrdering(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	scripts := []domain.HeadScript{
		{ID: "scr_1", Name: "b-analytics", Placement: domain.PlacementHead, Enabled: true, Order: 2},
		{ID: "scr_2", Name: "a-tag", Placement: domain.PlacementHead, Enabled: true, Order: 2},
		{ID: "scr_3", Name: "consent", Placement: domain.PlacementHead, Enabled: true, Order: 1},
		{ID: "scr_4", Name: "disabled", Placement: domain.PlacementHead, Enabled: false, Order: 0},
		{ID: "scr_5", Name: "chat", Placement: domain.PlacementBody, Enabled: true, Order: 0},
	}
	for _, s := range scripts {
		s.CreatedAt, s.UpdatedAt = now, now
		require.NoError(t, reg.Scripts().Insert(ctx, s))
	}

	got, err := reg.Scripts().List(ctx, repositories.ScriptFilter{Placement: domain.PlacementHead, EnabledOnly: true})
	require.NoError(t, err)
	var names []string
	for _, s := range got {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"consent", "a-tag", "b-analytics"}, names)

	all, err := reg.Scripts().List(ctx, repositories.ScriptFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestMediaRepositoryKeepsVariants(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t)
	asset := domain.MediaAsset{
		ID: "med_1", ObjectPath: "media/med_1/original.png", ContentType: "image/png", Width: 800, Height: 600,
		Variants:  []domain.MediaVariant{{Name: "thumb", ObjectPath: "media/med_1/thumb.webp", Width: 480, Height: 360}},
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, reg.Media().Insert(ctx, asset))

	got, err := reg.Media().FindByID(ctx, "med_1")
	require.NoError(t, err)
	assert.Equal(t, asset.Variants, got.Variants)

	page, err := reg.Media().List(ctx, domain.Pagination{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestContextErrorsPassThrough(t *testing.T) {
	reg := openTestRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := reg.Contacts().FindByID(ctx, "con_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func reviewIDs(items []domain.Review) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}
