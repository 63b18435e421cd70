package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"storeops/internal/config"
	"storeops/internal/db"
	"storeops/internal/domain"
	"storeops/internal/migrate"
)

func newTestRepo(t *testing.T) (Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return Repo{DB: conn}, context.Background()
}

func TestConfigRoundTrip(t *testing.T) {
	r, ctx := newTestRepo(t)
	if _, err := r.GetConfig(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	cfg := config.Default()
	cfg.Ordering.RequireSchedules = true
	if err := r.UpsertConfig(ctx, cfg); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := r.GetConfig(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Ordering.RequireSchedules || len(got.Stores) != len(cfg.Stores) {
		t.Fatalf("config = %+v", got)
	}
	if err := r.UpsertConfig(ctx, &config.Config{}); err == nil {
		t.Fatal("expected invalid config to be rejected")
	}
}

func withTx(t *testing.T, r Repo, fn func(tx *sql.Tx) error) error {
	t.Helper()
	tx, err := r.DB.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func TestIngredientsKeepInsertionOrder(t *testing.T) {
	r, ctx := newTestRepo(t)
	names := []string{"Whole Milk", "Butter", "Avocado"}
	for _, n := range names {
		ing := domain.Ingredient{Name: n, CurrentStock: 1, MinStockLevel: 2, SupplierName: "Dairy Direct", Unit: "kg"}
		if err := r.UpsertIngredientTx(ctx, nil, ing); err != nil {
			t.Fatalf("upsert %s: %v", n, err)
		}
	}
	// Replacing an existing record must not move it to the end.
	if err := r.UpsertIngredientTx(ctx, nil, domain.Ingredient{Name: "Whole Milk", CurrentStock: 9, MinStockLevel: 2, SupplierName: "Dairy Direct", Unit: "l"}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	list, err := r.ListIngredients(ctx, IngredientFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i, ing := range list {
		if ing.Name != names[i] {
			t.Fatalf("list[%d] = %s, want %s", i, ing.Name, names[i])
		}
	}
	if list[0].Unit != "l" || list[0].CurrentStock != 9 {
		t.Fatalf("replaced record = %+v", list[0])
	}
	below, err := r.ListIngredients(ctx, IngredientFilters{BelowMin: true})
	if err != nil || len(below) != 2 {
		t.Fatalf("below min = %v, %v", below, err)
	}
}

func TestIngredientStockAndDelete(t *testing.T) {
	r, ctx := newTestRepo(t)
	if err := r.UpsertIngredientTx(ctx, nil, domain.Ingredient{Name: "Romaine", CurrentStock: 3, MinStockLevel: 5, SupplierName: "Fresh Foods", Unit: "heads"}); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateStockTx(ctx, nil, "Romaine", 6, "2024-01-03T00:00:00Z"); err != nil {
		t.Fatalf("update stock: %v", err)
	}
	got, err := r.GetIngredient(ctx, "Romaine")
	if err != nil || got.CurrentStock != 6 {
		t.Fatalf("get = %+v, %v", got, err)
	}
	if err := r.UpdateStockTx(ctx, nil, "Kale", 1, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing = %v", err)
	}
	if err := r.DeleteIngredientTx(ctx, nil, "Romaine"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.GetIngredient(ctx, "Romaine"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted = %v", err)
	}
	if err := r.DeleteIngredientTx(ctx, nil, "Romaine"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete twice = %v", err)
	}
}

func TestReplaceIngredients(t *testing.T) {
	r, ctx := newTestRepo(t)
	if err := r.UpsertIngredientTx(ctx, nil, domain.Ingredient{Name: "Old", SupplierName: "S", Unit: "u"}); err != nil {
		t.Fatal(err)
	}
	items := []domain.Ingredient{
		{Name: "B", SupplierName: "S", Unit: "u"},
		{Name: "A", SupplierName: "S", Unit: "u"},
	}
	if err := withTx(t, r, func(tx *sql.Tx) error { return r.ReplaceIngredientsTx(ctx, tx, items) }); err != nil {
		t.Fatalf("replace: %v", err)
	}
	list, err := r.ListIngredients(ctx, IngredientFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "B" || list[1].Name != "A" {
		t.Fatalf("list = %+v", list)
	}
}

func TestSchedules(t *testing.T) {
	r, ctx := newTestRepo(t)
	s := domain.DeliverySchedule{SupplierName: "Dairy Direct", StoreName: "London Bridge", DeliveryDays: []string{"Monday", "Thursday"}}
	if err := r.UpsertScheduleTx(ctx, nil, s); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	s.DeliveryDays = []string{"Friday"}
	if err := r.UpsertScheduleTx(ctx, nil, s); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if err := r.UpsertScheduleTx(ctx, nil, domain.DeliverySchedule{SupplierName: "Dairy Direct", StoreName: "Canary Wharf", DeliveryDays: []string{"Tuesday"}}); err != nil {
		t.Fatal(err)
	}
	got, err := r.GetSchedule(ctx, "Dairy Direct", "London Bridge")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.DeliveryDays) != 1 || got.DeliveryDays[0] != "Friday" {
		t.Fatalf("days = %v", got.DeliveryDays)
	}
	all, err := r.ListSchedules(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("list all = %v, %v", all, err)
	}
	lb, err := r.ListSchedules(ctx, "London Bridge")
	if err != nil || len(lb) != 1 {
		t.Fatalf("list store = %v, %v", lb, err)
	}
	if err := r.DeleteScheduleTx(ctx, nil, "Dairy Direct", "London Bridge"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.GetSchedule(ctx, "Dairy Direct", "London Bridge"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted = %v", err)
	}
}

func TestEventQueries(t *testing.T) {
	r, ctx := newTestRepo(t)
	if id, err := r.LatestEventID(ctx); err != nil || id != 0 {
		t.Fatalf("latest on empty = %d, %v", id, err)
	}
	for _, typ := range []string{"ingredient.upserted", "ingredient.stock", "orders.suggested"} {
		if _, err := r.DB.Exec(`INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES ('2024-01-01T00:00:00Z',?,'ingredient',NULL,'tester','{}')`, typ); err != nil {
			t.Fatal(err)
		}
	}
	latest, err := r.LatestEventID(ctx)
	if err != nil || latest != 3 {
		t.Fatalf("latest = %d, %v", latest, err)
	}
	page, err := r.LatestEventsFrom(ctx, 2, 0, EventFilters{})
	if err != nil || len(page) != 2 || page[0].ID != 3 {
		t.Fatalf("page = %+v, %v", page, err)
	}
	older, err := r.LatestEventsFrom(ctx, 10, page[1].ID, EventFilters{})
	if err != nil || len(older) != 1 || older[0].ID != 1 {
		t.Fatalf("older = %+v, %v", older, err)
	}
	typed, err := r.LatestEvents(ctx, 10, EventFilters{Type: "orders.suggested"})
	if err != nil || len(typed) != 1 {
		t.Fatalf("typed = %+v, %v", typed, err)
	}
	after, err := r.EventsAfter(ctx, 10, 1)
	if err != nil || len(after) != 2 || after[0].ID != 2 {
		t.Fatalf("after = %+v, %v", after, err)
	}
}
