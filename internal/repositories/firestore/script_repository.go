package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	pfirestore "github.com/Hoangthang194/review-agency-sub000/internal/platform/firestore"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

type ScriptRepository struct {
	base *pfirestore.BaseRepository[scriptDocument]
}

type scriptDocument struct {
	Name      string    `firestore:"name"`
	Placement string    `firestore:"placement"`
	Code      string    `firestore:"code"`
	Enabled   bool      `firestore:"enabled"`
	Order     int       `firestore:"order"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (r *ScriptRepository) Insert(ctx context.Context, s domain.HeadScript) error {
	return r.base.Create(ctx, s.ID, toScriptDocument(s))
}

func (r *ScriptRepository) Update(ctx context.Context, s domain.HeadScript) error {
	return r.base.Replace(ctx, s.ID, toScriptDocument(s))
}

func (r *ScriptRepository) Delete(ctx context.Context, scriptID string) error {
	return r.base.Delete(ctx, scriptID)
}

func (r *ScriptRepository) FindByID(ctx context.Context, scriptID string) (domain.HeadScript, error) {
	doc, err := r.base.Get(ctx, scriptID)
	if err != nil {
		return domain.HeadScript{}, err
	}
	return fromScriptDocument(doc.ID, doc.Data), nil
}

// List sorts in memory; the script set is small and this avoids a composite index.
func (r *ScriptRepository) List(ctx context.Context, filter repositories.ScriptFilter) ([]domain.HeadScript, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = whereIf(q, "placement", filter.Placement)
		if filter.EnabledOnly {
			q = q.Where("enabled", "==", true)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	scripts := make([]domain.HeadScript, 0, len(docs))
	for _, doc := range docs {
		scripts = append(scripts, fromScriptDocument(doc.ID, doc.Data))
	}
	sort.SliceStable(scripts, func(i, j int) bool {
		if scripts[i].Order != scripts[j].Order {
			return scripts[i].Order < scripts[j].Order
		}
		return scripts[i].Name < scripts[j].Name
	})
	return scripts, nil
}

func toScriptDocument(s domain.HeadScript) scriptDocument {
	return scriptDocument{
		Name: s.Name, Placement: s.Placement, Code: s.Code, Enabled: s.Enabled, Order: s.Order,
		CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}
}

func fromScriptDocument(id string, d scriptDocument) domain.HeadScript {
	return domain.HeadScript{
		ID: id, Name: d.Name, Placement: d.Placement, Code: d.Code, Enabled: d.Enabled, Order: d.Order,
		CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC(),
	}
}
