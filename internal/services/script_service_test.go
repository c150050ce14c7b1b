package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestScriptServiceOrdering(t *testing.T) {
	svc, err := NewScriptService(ScriptServiceDeps{Scripts: newMemScripts(), Clock: time.Now})
	if err != nil {
		t.Fatalf("new script service: %v", err)
	}
	ctx := context.Background()
	for _, cmd := range []UpsertScriptCommand{
		{Name: "Widget", Placement: "body", Code: "<script>w()</script>", Enabled: true, Order: 1},
		{Name: "Tag manager", Code: "<script>gtm()</script>", Enabled: true, Order: 2},
		{Name: "Analytics", Code: "<script>ga()</script>", Enabled: true, Order: 2},
		{Name: "Disabled", Code: "<script>x()</script>", Order: 0},
	} {
		if _, err := svc.Create(ctx, cmd); err != nil {
			t.Fatalf("create %s: %v", cmd.Name, err)
		}
	}

	head, err := svc.ListEnabled(ctx, "HEAD")
	if err != nil {
		t.Fatalf("list enabled: %v", err)
	}
	if len(head) != 2 || head[0].Name != "Analytics" || head[1].Name != "Tag manager" {
		t.Fatalf("unexpected head scripts: %+v", head)
	}

	all, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 || all[0].Name != "Disabled" {
		t.Fatalf("expected every script ordered by order, got %+v", all)
	}

	if _, err := svc.ListEnabled(ctx, "footer"); !errors.Is(err, ErrScriptInvalidInput) {
		t.Fatalf("expected invalid placement, got %v", err)
	}
}

func TestScriptServiceUpdateAndValidation(t *testing.T) {
	svc, _ := NewScriptService(ScriptServiceDeps{Scripts: newMemScripts()})
	ctx := context.Background()

	if _, err := svc.Create(ctx, UpsertScriptCommand{Name: "Empty"}); !errors.Is(err, ErrScriptInvalidInput) {
		t.Fatalf("expected missing code to be rejected, got %v", err)
	}
	if _, err := svc.Create(ctx, UpsertScriptCommand{Name: "Neg", Code: "x", Order: -1}); !errors.Is(err, ErrScriptInvalidInput) {
		t.Fatalf("expected negative order to be rejected, got %v", err)
	}

	script, err := svc.Create(ctx, UpsertScriptCommand{Name: "Pixel", Code: "<img src=x>"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := svc.Update(ctx, script.ID, UpsertScriptCommand{Name: "Pixel", Placement: "body", Code: "<img src=y>", Enabled: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Placement != "body" || !updated.Enabled || updated.Code != "<img src=y>" {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if err := svc.Delete(ctx, script.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, script.ID); !errors.Is(err, ErrScriptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
