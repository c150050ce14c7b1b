//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	pconfig "github.com/Hoangthang194/review-agency-sub000/internal/platform/config"
	pfirestore "github.com/Hoangthang194/review-agency-sub000/internal/platform/firestore"
)

type sampleEntity struct {
	Name      string    `firestore:"name"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type repoError interface {
	IsNotFound() bool
	IsConflict() bool
}

// Run against the emulator: gcloud emulators firestore start --host-port=127.0.0.1:8681
func TestProviderAndRepositoryIntegration(t *testing.T) {
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "site-test", EmulatorHost: host})
	t.Cleanup(func() { _ = provider.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := provider.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	collection := "samples_" + time.Now().Format("150405.000000")
	repo := pfirestore.NewBaseRepository[sampleEntity](provider, collection)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"alpha", "beta", "gamma"} {
		if err := repo.Create(ctx, name, sampleEntity{Name: name, CreatedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	err := repo.Create(ctx, "alpha", sampleEntity{Name: "dup"})
	var classified repoError
	if !errors.As(err, &classified) || !classified.IsConflict() {
		t.Fatalf("expected conflict, got %v", err)
	}

	timeOf := func(e sampleEntity) time.Time { return e.CreatedAt }
	page, next, err := repo.Page(ctx, nil, domain.Pagination{PageSize: 2}, "createdAt", timeOf)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page) != 2 || page[0].ID != "gamma" || next == "" {
		t.Fatalf("unexpected first page: %+v next=%q", page, next)
	}
	page, next, err = repo.Page(ctx, nil, domain.Pagination{PageSize: 2, PageToken: next}, "createdAt", timeOf)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page) != 1 || page[0].ID != "alpha" || next != "" {
		t.Fatalf("unexpected second page: %+v next=%q", page, next)
	}

	if _, err := repo.First(ctx, func(q firestore.Query) firestore.Query { return q.Where("name", "==", "missing") }); !errors.As(err, &classified) || !classified.IsNotFound() {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.Replace(ctx, "missing", sampleEntity{}); !errors.As(err, &classified) || !classified.IsNotFound() {
		t.Fatalf("expected not found on replace, got %v", err)
	}
	if err := repo.Delete(ctx, "beta"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, "beta"); !errors.As(err, &classified) || !classified.IsNotFound() {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
