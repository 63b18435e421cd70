package storeopssdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal storeops HTTP API client.
type Client struct {
	BaseURL    string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Ingredient is one inventory record.
type Ingredient struct {
	Name          string  `json:"name"`
	CurrentStock  float64 `json:"current_stock"`
	MinStockLevel float64 `json:"min_stock_level"`
	Category      string  `json:"category,omitempty"`
	SupplierName  string  `json:"supplier_name"`
	LeadTimeDays  int     `json:"lead_time_days"`
	Unit          string  `json:"unit"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

type Schedule struct {
	SupplierName string   `json:"supplier_name"`
	StoreName    string   `json:"store_name"`
	DeliveryDays []string `json:"delivery_days"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
}

type OrderLine struct {
	IngredientName string  `json:"ingredient_name"`
	Category       string  `json:"category"`
	Unit           string  `json:"unit"`
	CurrentStock   float64 `json:"current_stock"`
	MinStockLevel  float64 `json:"min_stock_level"`
	Shortfall      float64 `json:"shortfall"`
	OrderQuantity  float64 `json:"order_quantity"`
}

type SupplierOrder struct {
	SupplierName         string      `json:"supplier_name"`
	StoreName            string      `json:"store_name"`
	OrderDate            string      `json:"order_date"`
	ExpectedDeliveryDate string      `json:"expected_delivery_date"`
	LeadTimeDays         int         `json:"lead_time_days"`
	Items                []OrderLine `json:"items"`
	TotalItems           int         `json:"total_items"`
	Urgency              string      `json:"urgency"`
}

// Suggestion is one computed ordering run.
type Suggestion struct {
	RunID     string          `json:"run_id"`
	Scope     string          `json:"scope"`
	Today     string          `json:"today"`
	Orders    []SupplierOrder `json:"orders"`
	Fallbacks []struct {
		SupplierName string `json:"supplier_name"`
		StoreName    string `json:"store_name"`
	} `json:"fallbacks"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// SuggestedOrders computes orders for store, or every store when store is
// empty or "all". A zero today lets the server pick its date.
func (c *Client) SuggestedOrders(ctx context.Context, store string, today time.Time) (Suggestion, error) {
	q := url.Values{}
	if store != "" {
		q.Set("store", store)
	}
	if !today.IsZero() {
		q.Set("today", today.Format("2006-01-02"))
	}
	var resp Suggestion
	err := c.do(ctx, http.MethodGet, withQuery("v0/suggested-orders", q), nil, &resp)
	return resp, err
}

// Ingredients lists the inventory snapshot in stored order.
func (c *Client) Ingredients(ctx context.Context, belowMin bool) ([]Ingredient, error) {
	q := url.Values{}
	if belowMin {
		q.Set("below_min", "true")
	}
	var resp struct {
		Items []Ingredient `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, withQuery("v0/ingredients", q), nil, &resp)
	return resp.Items, err
}

func (c *Client) UpsertIngredient(ctx context.Context, ing Ingredient) (Ingredient, error) {
	body := map[string]any{
		"current_stock":   ing.CurrentStock,
		"min_stock_level": ing.MinStockLevel,
		"category":        ing.Category,
		"supplier_name":   ing.SupplierName,
		"lead_time_days":  ing.LeadTimeDays,
		"unit":            ing.Unit,
	}
	var resp Ingredient
	err := c.do(ctx, http.MethodPut, "v0/ingredients/"+url.PathEscape(ing.Name), body, &resp)
	return resp, err
}

// SetStock records a new stock count.
func (c *Client) SetStock(ctx context.Context, name string, current float64) (Ingredient, error) {
	var resp Ingredient
	endpoint := fmt.Sprintf("v0/ingredients/%s/stock", url.PathEscape(name))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"current_stock": current}, &resp)
	return resp, err
}

func (c *Client) DeleteIngredient(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "v0/ingredients/"+url.PathEscape(name), nil, nil)
}

// Schedules lists delivery schedules, optionally for one store.
func (c *Client) Schedules(ctx context.Context, store string) ([]Schedule, error) {
	q := url.Values{}
	if store != "" {
		q.Set("store", store)
	}
	var resp struct {
		Items []Schedule `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, withQuery("v0/schedules", q), nil, &resp)
	return resp.Items, err
}

func (c *Client) PutSchedule(ctx context.Context, supplier, store string, days []string) (Schedule, error) {
	var resp Schedule
	endpoint := fmt.Sprintf("v0/schedules/%s/%s", url.PathEscape(supplier), url.PathEscape(store))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"delivery_days": days}, &resp)
	return resp, err
}

// Events lists recent events newest first; pass the previous NextCursor to
// continue.
func (c *Client) Events(ctx context.Context, eventType string, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if eventType != "" {
		q.Set("type", eventType)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withQuery("v0/events", q), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
