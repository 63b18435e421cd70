package storeopssdk_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storeops/internal/config"
	"storeops/internal/db"
	"storeops/internal/engine"
	"storeops/internal/migrate"
	"storeops/internal/server"
	storeopssdk "storeops/sdk/go"
)

func newClient(t *testing.T) *storeopssdk.Client {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	handler, err := server.New(server.Config{Engine: engine.New(conn, config.Default())})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := storeopssdk.New(srv.URL)
	c.ActorID = "sdk-test"
	return c
}

func TestClientRoundTrip(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	if _, err := c.UpsertIngredient(ctx, storeopssdk.Ingredient{
		Name: "Sourdough", CurrentStock: 1, MinStockLevel: 6, SupplierName: "Bakehouse", LeadTimeDays: 1, Unit: "loaves",
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := c.PutSchedule(ctx, "Bakehouse", "King's Cross", []string{"tue"}); err != nil {
		t.Fatalf("put schedule: %v", err)
	}
	ing, err := c.SetStock(ctx, "Sourdough", 2)
	if err != nil || ing.CurrentStock != 2 {
		t.Fatalf("set stock = %+v, %v", ing, err)
	}
	items, err := c.Ingredients(ctx, true)
	if err != nil || len(items) != 1 {
		t.Fatalf("ingredients = %+v, %v", items, err)
	}
	schedules, err := c.Schedules(ctx, "King's Cross")
	if err != nil || len(schedules) != 1 || schedules[0].DeliveryDays[0] != "Tuesday" {
		t.Fatalf("schedules = %+v, %v", schedules, err)
	}

	// Wednesday; Tuesday delivery is six days out.
	s, err := c.SuggestedOrders(ctx, "King's Cross", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(s.Orders) != 1 || s.Orders[0].ExpectedDeliveryDate != "2024-01-09" || s.Orders[0].OrderDate != "2024-01-08" {
		t.Fatalf("orders = %+v", s.Orders)
	}
	if s.Orders[0].Items[0].OrderQuantity != 5 || s.Orders[0].Urgency != "medium" {
		t.Fatalf("line = %+v urgency=%s", s.Orders[0].Items[0], s.Orders[0].Urgency)
	}

	evs, err := c.Events(ctx, "orders.suggested", 10, "")
	if err != nil || len(evs.Items) != 1 || evs.Items[0].ActorID != "sdk-test" {
		t.Fatalf("events = %+v, %v", evs, err)
	}
	if err := c.DeleteIngredient(ctx, "Sourdough"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestClientAPIError(t *testing.T) {
	c := newClient(t)
	err := c.DeleteIngredient(context.Background(), "Nothing")
	var apiErr *storeopssdk.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "not_found" {
		t.Fatalf("api error = %+v", apiErr)
	}
}
