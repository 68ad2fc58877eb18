package catalog

import (
	"context"
	"errors"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// fakeStore returns scripted rows and counts fetches.
type fakeStore struct {
	rows    map[string][]map[string]any // catalogName -> rows
	err     error
	fetches int
}

func (f *fakeStore) Items(ctx context.Context, catalogName string, itemIDs []string) ([]map[string]any, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[catalogName], nil
}

type memCache struct {
	data map[string]map[string]any
}

func newMemCache() *memCache { return &memCache{data: map[string]map[string]any{}} }

func (c *memCache) Get(ctx context.Context, catalogName, itemID string) (map[string]any, bool) {
	v, ok := c.data[catalogName+"/"+itemID]
	return v, ok
}

func (c *memCache) Set(ctx context.Context, catalogName, itemID string, data map[string]any) {
	c.data[catalogName+"/"+itemID] = data
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Item{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestSave_DuplicateReturnsErrAlreadySaved(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db), nil, nil)

	item := &Item{UserID: 1, CatalogItemID: "P1", CatalogName: "property"}
	if err := svc.Save(context.Background(), item); err != nil {
		t.Fatalf("first save: %v", err)
	}

	dup := &Item{UserID: 1, CatalogItemID: "P1", CatalogName: "property"}
	if err := svc.Save(context.Background(), dup); !errors.Is(err, ErrAlreadySaved) {
		t.Fatalf("expected ErrAlreadySaved, got %v", err)
	}

	// same item for a different user is fine
	other := &Item{UserID: 2, CatalogItemID: "P1", CatalogName: "property"}
	if err := svc.Save(context.Background(), other); err != nil {
		t.Fatalf("other user save: %v", err)
	}
}

func TestList_FiltersByCatalogName(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db), nil, nil)

	seed := []*Item{
		{UserID: 1, CatalogItemID: "P1", CatalogName: "property"},
		{UserID: 1, CatalogItemID: "J1", CatalogName: "job"},
		{UserID: 2, CatalogItemID: "P2", CatalogName: "property"},
	}
	for _, it := range seed {
		if err := svc.Save(context.Background(), it); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	items, err := svc.List(context.Background(), 1, "property", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].CatalogItemID != "P1" {
		t.Fatalf("unexpected items: %+v", items)
	}

	all, err := svc.List(context.Background(), 1, "", false)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 items, got %d", len(all))
	}
}

func TestList_IncludeDataJoinsStoreRows(t *testing.T) {
	db := openTestDB(t)
	store := &fakeStore{rows: map[string][]map[string]any{
		"property": {
			{"property_id": "P1", "price": float64(1200)},
		},
	}}
	cache := newMemCache()
	svc := NewService(NewRepo(db), store, cache)

	if err := svc.Save(context.Background(), &Item{UserID: 1, CatalogItemID: "P1", CatalogName: "property"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	items, err := svc.List(context.Background(), 1, "", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ItemData == nil {
		t.Fatalf("expected item data, got %+v", items)
	}
	if items[0].ItemData["price"] != float64(1200) {
		t.Fatalf("unexpected data: %+v", items[0].ItemData)
	}

	// second listing is served from cache
	if _, err := svc.List(context.Background(), 1, "", true); err != nil {
		t.Fatalf("second list: %v", err)
	}
	if store.fetches != 1 {
		t.Fatalf("expected 1 store fetch, got %d", store.fetches)
	}
}

func TestList_StoreFailureDegradesToReferences(t *testing.T) {
	db := openTestDB(t)
	store := &fakeStore{err: errors.New("store down")}
	svc := NewService(NewRepo(db), store, nil)

	if err := svc.Save(context.Background(), &Item{UserID: 1, CatalogItemID: "P1", CatalogName: "property"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	items, err := svc.List(context.Background(), 1, "", true)
	if err != nil {
		t.Fatalf("list must not fail on store error: %v", err)
	}
	if len(items) != 1 || items[0].ItemData != nil {
		t.Fatalf("expected bare reference, got %+v", items)
	}
}

func TestDeleteBulk_ReportsNotFound(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db), nil, nil)

	mine := &Item{UserID: 1, CatalogItemID: "P1", CatalogName: "property"}
	theirs := &Item{UserID: 2, CatalogItemID: "P2", CatalogName: "property"}
	for _, it := range []*Item{mine, theirs} {
		if err := svc.Save(context.Background(), it); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	deleted, notFound, err := svc.DeleteBulk(context.Background(), 1, []uint64{mine.ID, theirs.ID, 9999})
	if err != nil {
		t.Fatalf("delete bulk: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != mine.ID {
		t.Fatalf("unexpected deleted: %v", deleted)
	}
	// another user's row and a bogus id both read as not found
	if len(notFound) != 2 {
		t.Fatalf("unexpected notFound: %v", notFound)
	}
}

func TestIDColumnFor(t *testing.T) {
	cases := map[string]string{
		"property":          "property_id",
		"property_listings": "property_id",
		"job":               "job_id",
		"jobs":              "job_id",
		"events":            "id",
	}
	for in, want := range cases {
		if got := idColumnFor(in); got != want {
			t.Fatalf("idColumnFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIDValue(t *testing.T) {
	if got := idValue("abc"); got != "abc" {
		t.Fatalf("string: %q", got)
	}
	if got := idValue(int64(42)); got != "42" {
		t.Fatalf("int64: %q", got)
	}
	if got := idValue(float64(42)); got != "42" {
		t.Fatalf("float64: %q", got)
	}
	if got := idValue(nil); got != "" {
		t.Fatalf("nil: %q", got)
	}
}
