package noteservice

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/mural/internal/apperr"
	"github.com/starford/mural/internal/models"
	"github.com/starford/mural/internal/testutil"
)

func testService(t *testing.T) *Service {
	t.Helper()
	v := testutil.TestVault(t)
	return NewService(v.FS, testutil.TestDB(t), testutil.Logger())
}

func TestCreateReadAndSearch(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateFile(ctx, "target", models.KindMarkdown, nil); err != nil {
		t.Fatal(err)
	}
	d, err := svc.CreateFile(ctx, "plan.md", models.KindMarkdown, []byte("plan\nsee [[target]] #todo"))
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if d.Path != "plan.md" || d.Title != "plan" || d.Kind != models.KindMarkdown {
		t.Errorf("detail = %+v", d)
	}
	if len(d.Tags) != 1 || d.Tags[0] != "todo" {
		t.Errorf("tags = %v", d.Tags)
	}

	target, err := svc.ReadFile(ctx, "target.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(target.Backlinks) != 1 || target.Backlinks[0] != "plan.md" {
		t.Errorf("backlinks = %v", target.Backlinks)
	}

	res, err := svc.Search(ctx, "see", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Path != "plan.md" {
		t.Errorf("search = %+v", res)
	}
}

func TestCreateDrawingValidatesContent(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	if _, err := svc.CreateFile(ctx, "bad", models.KindDrawing, []byte(`{"elements":"x"}`)); !errors.Is(err, apperr.ErrMalformedData) {
		t.Errorf("err = %v", err)
	}
	d, err := svc.CreateFile(ctx, "ok", models.KindDrawing, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Path != "ok.excalidraw" || len(d.Scene) == 0 {
		t.Errorf("detail = %+v", d)
	}
}

func TestReadFileErrors(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	if _, err := svc.ReadFile(ctx, "missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: %v", err)
	}
	if _, err := svc.ReadFile(ctx, "notes.txt"); !errors.Is(err, apperr.ErrInvalidName) {
		t.Errorf("unsupported: %v", err)
	}
}
