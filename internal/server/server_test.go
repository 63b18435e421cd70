package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"storeops/internal/config"
	"storeops/internal/db"
	"storeops/internal/domain"
	"storeops/internal/engine"
	"storeops/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, mutate func(*config.Config)) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if err := e.Repo.UpsertConfig(context.Background(), cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type errorEnvelope struct {
	Error apiErrorBody `json:"error"`
}

func decodeError(t *testing.T, data []byte) apiErrorBody {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, data)
	}
	return env.Error
}

func seedStock(t *testing.T, srv *testServer) {
	t.Helper()
	items := map[string]IngredientRequest{
		"Whole Milk":      {CurrentStock: 2, MinStockLevel: 10, Category: "dairy", SupplierName: "Dairy Direct", LeadTimeDays: 1, Unit: "l"},
		"Caesar Dressing": {CurrentStock: 0, MinStockLevel: 4, Category: "sauces", SupplierName: "Fresh Foods", LeadTimeDays: 2, Unit: "bottles"},
	}
	for _, name := range []string{"Whole Milk", "Caesar Dressing"} {
		res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/ingredients/"+url.PathEscape(name), items[name], map[string]string{"X-Actor-Id": "tester"})
		if res.StatusCode != http.StatusOK {
			t.Fatalf("put %s status %d: %s", name, res.StatusCode, data)
		}
	}
	for _, s := range []struct{ supplier, day string }{{"Dairy Direct", "fri"}, {"Fresh Foods", "thursday"}} {
		res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/schedules/"+url.PathEscape(s.supplier)+"/"+url.PathEscape("London Bridge"),
			ScheduleRequest{DeliveryDays: []string{s.day}}, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("put schedule status %d: %s", res.StatusCode, data)
		}
	}
}

func TestSuggestedOrdersEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	seedStock(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/suggested-orders?store="+url.QueryEscape("London Bridge")+"&today=2024-01-03", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("suggested-orders status %d: %s", res.StatusCode, data)
	}
	var s engine.Suggestion
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(s.Orders) != 2 || s.Orders[0].SupplierName != "Fresh Foods" || s.Orders[0].Urgency != domain.UrgencyHigh {
		t.Fatalf("orders = %+v", s.Orders)
	}
	if s.Orders[0].OrderDate != "2024-01-02" || s.Orders[1].ExpectedDeliveryDate != "2024-01-05" {
		t.Fatalf("dates = %+v", s.Orders)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/suggested-orders?store=all&today=2024-01-03", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("all stores status %d: %s", res.StatusCode, data)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatal(err)
	}
	if len(s.Orders) != 10 || s.Scope != "all" || len(s.Fallbacks) != 8 {
		t.Fatalf("all stores: %d orders, scope %q, %d fallbacks", len(s.Orders), s.Scope, len(s.Fallbacks))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?type=orders.suggested", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, data)
	}
	var evs paginatedEvents
	if err := json.Unmarshal(data, &evs); err != nil {
		t.Fatal(err)
	}
	if len(evs.Items) != 2 || evs.Items[0].EntityID != s.RunID {
		t.Fatalf("events = %+v", evs.Items)
	}
}

func TestSuggestedOrdersErrors(t *testing.T) {
	srv, cleanup := newTestServer(t, func(c *config.Config) { c.Ordering.RequireSchedules = true })
	defer cleanup()
	seedStock(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/suggested-orders?today=03/01/2024", nil, nil)
	if res.StatusCode != http.StatusBadRequest || decodeError(t, data).Code != "bad_request" {
		t.Fatalf("bad date: %d %s", res.StatusCode, data)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/suggested-orders?store=Leeds", nil, nil)
	if res.StatusCode != http.StatusUnprocessableEntity || decodeError(t, data).Code != "validation_failed" {
		t.Fatalf("unknown store: %d %s", res.StatusCode, data)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/suggested-orders?store="+url.QueryEscape("Canary Wharf"), nil, nil)
	body := decodeError(t, data)
	if res.StatusCode != http.StatusUnprocessableEntity || body.Code != "missing_schedule" || body.Details["store_name"] != "Canary Wharf" {
		t.Fatalf("missing schedule: %d %s", res.StatusCode, data)
	}
}

func TestIngredientEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	seedStock(t, srv)
	base := srv.URL + "/v0/ingredients/" + url.PathEscape("Whole Milk")

	res, data := doJSON(t, srv.Client(), http.MethodPatch, base+"/stock", StockRequest{CurrentStock: 11}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch stock %d: %s", res.StatusCode, data)
	}
	var ing domain.Ingredient
	if err := json.Unmarshal(data, &ing); err != nil {
		t.Fatal(err)
	}
	if ing.CurrentStock != 11 || ing.Name != "Whole Milk" {
		t.Fatalf("ingredient = %+v", ing)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/ingredients?below_min=true", nil, nil)
	var list IngredientList
	if err := json.Unmarshal(data, &list); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("list %d: %s", res.StatusCode, data)
	}
	if len(list.Items) != 1 || list.Items[0].Name != "Caesar Dressing" {
		t.Fatalf("below min = %+v", list.Items)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPut, base, map[string]any{"current_stock": 1, "min_stock_level": 2}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("incomplete body: %d %s", res.StatusCode, data)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodDelete, base, nil, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", res.StatusCode)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, base, nil, nil)
	if res.StatusCode != http.StatusNotFound || decodeError(t, data).Code != "not_found" {
		t.Fatalf("get deleted: %d %s", res.StatusCode, data)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodPatch, base+"/stock", StockRequest{CurrentStock: 1}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("patch deleted status %d", res.StatusCode)
	}
}

func TestScheduleEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	base := srv.URL + "/v0/schedules/" + url.PathEscape("Dairy Direct") + "/"

	res, data := doJSON(t, srv.Client(), http.MethodPut, base+"Shoreditch", ScheduleRequest{DeliveryDays: []string{"Funday"}}, nil)
	if res.StatusCode != http.StatusUnprocessableEntity || decodeError(t, data).Details["field"] != "delivery_days" {
		t.Fatalf("bad weekday: %d %s", res.StatusCode, data)
	}
	res, data = doJSON(t, srv.Client(), http.MethodPut, base+"Shoreditch", ScheduleRequest{DeliveryDays: []string{"tue", "sat"}}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put: %d %s", res.StatusCode, data)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/schedules?store=Shoreditch", nil, nil)
	var list ScheduleList
	if err := json.Unmarshal(data, &list); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", res.StatusCode, data)
	}
	if len(list.Items) != 1 || strings.Join(list.Items[0].DeliveryDays, ",") != "Tuesday,Saturday" {
		t.Fatalf("schedules = %+v", list.Items)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodDelete, base+"Shoreditch", nil, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodDelete, base+"Shoreditch", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("delete twice status %d", res.StatusCode)
	}
}

func TestConfigStoresAndDocs(t *testing.T) {
	srv, cleanup := newTestServer(t, func(c *config.Config) {
		c.Relay.Webhooks = []config.WebhookConfig{{URL: "https://example.com/hook", Secret: "s3cret"}}
	})
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/config", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("config: %d %s", res.StatusCode, data)
	}
	if strings.Contains(string(data), "s3cret") {
		t.Fatalf("config leaks webhook secret: %s", data)
	}
	var cfg ConfigResponse
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Relay.Webhooks) != 1 || !cfg.Relay.Webhooks[0].HasSecret || cfg.Ordering.DefaultDeliveryDay != "Monday" {
		t.Fatalf("config = %+v", cfg)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/stores", nil, nil)
	var stores StoreList
	if err := json.Unmarshal(data, &stores); err != nil || len(stores.Items) != 5 {
		t.Fatalf("stores: %d %s", res.StatusCode, data)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "/v0/suggested-orders") {
		t.Fatalf("openapi: %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/docs", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("docs status %d", res.StatusCode)
	}
}

func TestHealthReportsSchema(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d %s", res.StatusCode, data)
	}
	var health HealthResponse
	if err := json.Unmarshal(data, &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Schema.Latest == 0 || health.Schema.Current != health.Schema.Latest {
		t.Fatalf("health = %+v", health)
	}
}

func TestEventsPagination(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	seedStock(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?limit=3", nil, nil)
	var page paginatedEvents
	if err := json.Unmarshal(data, &page); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, data)
	}
	if len(page.Items) != 3 || page.NextCursor == "" {
		t.Fatalf("page = %+v", page)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?limit=3&cursor="+page.NextCursor, nil, nil)
	var next paginatedEvents
	if err := json.Unmarshal(data, &next); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("next page: %d %s", res.StatusCode, data)
	}
	if len(next.Items) != 1 || next.NextCursor != "" || next.Items[0].ID >= page.Items[2].ID {
		t.Fatalf("next = %+v", next)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?cursor=abc", nil, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad cursor status %d", res.StatusCode)
	}
}
