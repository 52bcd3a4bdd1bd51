package migrate

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/smartyoni/checkdoc/internal/models"
	"github.com/smartyoni/checkdoc/internal/remotestore"
	"github.com/smartyoni/checkdoc/internal/storage"
	"github.com/smartyoni/checkdoc/internal/testutil"
)

// remoteOf opens a second connection to the test Redis so assertions can
// look at the backend directly, bypassing the facade.
func remoteOf(t *testing.T, addr string) *remotestore.Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return remotestore.New(client)
}

func testEngine(t *testing.T) (*Engine, *storage.Facade) {
	t.Helper()
	store, local, mr := testutil.TestStore(t)
	remote := remoteOf(t, mr.Addr())
	return NewEngine(local, local, remote, store, testutil.Logger()), store
}

func TestLegacyImport_CopiesAndSetsFlag(t *testing.T) {
	store, local, mr := testutil.TestStore(t)
	remote := remoteOf(t, mr.Addr())
	engine := NewEngine(local, local, remote, store, testutil.Logger())
	ctx := context.Background()

	if err := local.SaveDocuments([]models.Document{{ID: "d1", Title: "legacy doc"}}); err != nil {
		t.Fatal(err)
	}
	if err := local.SaveTemplates([]models.Document{{ID: "t1", IsTemplate: true, TemplateCategory: models.CategoryTask}}); err != nil {
		t.Fatal(err)
	}

	engine.Run(ctx)

	docs, err := remote.Documents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != "d1" {
		t.Errorf("remote docs = %+v", docs)
	}

	set, err := local.Flag(FlagLegacyImport)
	if err != nil {
		t.Fatal(err)
	}
	if !set {
		t.Error("legacy import flag not set")
	}
}

func TestLegacyImport_SkippedWhenFlagSet(t *testing.T) {
	store, local, mr := testutil.TestStore(t)
	remote := remoteOf(t, mr.Addr())
	engine := NewEngine(local, local, remote, store, testutil.Logger())
	ctx := context.Background()

	if err := local.SetFlag(FlagLegacyImport); err != nil {
		t.Fatal(err)
	}
	if err := local.SaveDocuments([]models.Document{{ID: "d1"}}); err != nil {
		t.Fatal(err)
	}

	engine.Run(ctx)

	docs, err := remote.Documents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("remote docs = %+v, want none (import skipped)", docs)
	}
}

func TestCategoryBackfill_DefaultsMissingCategory(t *testing.T) {
	engine, store := testEngine(t)
	ctx := context.Background()

	if err := store.SaveTemplates(ctx, []models.Document{
		{ID: "t1", Title: "No category", IsTemplate: true},
	}); err != nil {
		t.Fatal(err)
	}

	engine.Run(ctx)

	templates, err := store.Templates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(templates) != 1 {
		t.Fatalf("templates = %+v", templates)
	}
	if templates[0].TemplateCategory != models.CategoryTask {
		t.Errorf("category = %q, want %q", templates[0].TemplateCategory, models.CategoryTask)
	}
}

func TestCategoryBackfill_KeepsNewestPerCategory(t *testing.T) {
	store, local, mr := testutil.TestStore(t)
	remote := remoteOf(t, mr.Addr())
	engine := NewEngine(local, local, remote, store, testutil.Logger())
	ctx := context.Background()

	// Write straight to local and import through the engine: facade saves
	// restamp updatedAt, which would erase the figures under test.
	if err := local.SaveTemplates([]models.Document{
		{ID: "old", IsTemplate: true, TemplateCategory: models.CategoryContract, UpdatedAt: 100},
		{ID: "new", IsTemplate: true, TemplateCategory: models.CategoryContract, UpdatedAt: 200},
		{ID: "solo", IsTemplate: true, TemplateCategory: models.CategoryTask, UpdatedAt: 50},
	}); err != nil {
		t.Fatal(err)
	}

	engine.Run(ctx)

	templates, err := store.Templates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	byCategory := make(map[models.Category]string)
	for _, tpl := range templates {
		if prev, dup := byCategory[tpl.TemplateCategory]; dup {
			t.Fatalf("category %q has both %q and %q", tpl.TemplateCategory, prev, tpl.ID)
		}
		byCategory[tpl.TemplateCategory] = tpl.ID
	}
	if byCategory[models.CategoryContract] != "new" {
		t.Errorf("contract winner = %q, want new", byCategory[models.CategoryContract])
	}
	if byCategory[models.CategoryTask] != "solo" {
		t.Errorf("task template = %q, want solo", byCategory[models.CategoryTask])
	}

	set, err := local.Flag(FlagTemplateCategory)
	if err != nil {
		t.Fatal(err)
	}
	if !set {
		t.Error("backfill flag not set")
	}
}

func TestCategoryBackfill_RemoteOutageKeepsFlagUnset(t *testing.T) {
	store, local, mr := testutil.TestStore(t)
	remote := remoteOf(t, mr.Addr())
	engine := NewEngine(local, local, remote, store, testutil.Logger())
	ctx := context.Background()

	if err := local.SaveTemplates([]models.Document{
		{ID: "old", IsTemplate: true, TemplateCategory: models.CategoryTask, UpdatedAt: 100},
		{ID: "new", IsTemplate: true, TemplateCategory: models.CategoryTask, UpdatedAt: 200},
	}); err != nil {
		t.Fatal(err)
	}

	// Backend down for the whole first launch: nothing may be marked done.
	mr.SetError("server is down")
	engine.Run(ctx)

	for _, flag := range []string{FlagLegacyImport, FlagTemplateCategory} {
		set, err := local.Flag(flag)
		if err != nil {
			t.Fatal(err)
		}
		if set {
			t.Errorf("flag %s set during outage", flag)
		}
	}

	// Backend back on the next launch: the retry completes the dedup.
	mr.SetError("")
	engine.Run(ctx)

	templates, err := remote.Templates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, tpl := range templates {
		if tpl.TemplateCategory == models.CategoryTask {
			count++
		}
	}
	if count != 1 {
		t.Errorf("task templates on backend = %d, want 1", count)
	}

	set, err := local.Flag(FlagTemplateCategory)
	if err != nil {
		t.Fatal(err)
	}
	if !set {
		t.Error("backfill flag not set after successful retry")
	}
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	store, local, mr := testutil.TestStore(t)
	remote := remoteOf(t, mr.Addr())
	engine := NewEngine(local, local, remote, store, testutil.Logger())
	ctx := context.Background()

	if err := local.SaveDocuments([]models.Document{{ID: "d1"}}); err != nil {
		t.Fatal(err)
	}
	engine.Run(ctx)

	// Remove the remote copy, then run again: the flag must prevent a
	// re-import.
	if err := remote.DeleteDocument(ctx, "d1"); err != nil {
		t.Fatal(err)
	}
	engine.Run(ctx)

	docs, err := remote.Documents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("remote docs = %+v, want none", docs)
	}
}
