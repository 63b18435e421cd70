package server

import (
	"encoding/json"

	"storeops/internal/config"
	"storeops/internal/domain"
)

// Request payloads

type IngredientRequest struct {
	CurrentStock  float64 `json:"current_stock" minimum:"0"`
	MinStockLevel float64 `json:"min_stock_level" minimum:"0"`
	Category      string  `json:"category,omitempty"`
	SupplierName  string  `json:"supplier_name" minLength:"1"`
	LeadTimeDays  int     `json:"lead_time_days" minimum:"0"`
	Unit          string  `json:"unit" minLength:"1"`
}

type StockRequest struct {
	CurrentStock float64 `json:"current_stock" minimum:"0"`
}

type ScheduleRequest struct {
	DeliveryDays []string `json:"delivery_days" example:"[\"Monday\",\"Thursday\"]"`
}

// Response payloads

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type IngredientList struct {
	Items []domain.Ingredient `json:"items"`
}

type ScheduleList struct {
	Items []domain.DeliverySchedule `json:"items"`
}

type StoreList struct {
	Items []string `json:"items"`
}

type WebhookResponse struct {
	URL            string   `json:"url"`
	Events         []string `json:"events,omitempty"`
	Enabled        bool     `json:"enabled"`
	HasSecret      bool     `json:"has_secret"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
}

type ConfigResponse struct {
	Stores   []string              `json:"stores"`
	Ordering config.OrderingConfig `json:"ordering"`
	Relay    struct {
		Webhooks []WebhookResponse `json:"webhooks"`
		NATS     config.NATSConfig `json:"nats"`
	} `json:"relay"`
}

// Conversion helpers

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

// configResponse mirrors the stored config with webhook secrets withheld.
func configResponse(cfg *config.Config) ConfigResponse {
	res := ConfigResponse{
		Stores:   nonNilSlice(cfg.Stores),
		Ordering: cfg.Ordering,
	}
	if res.Ordering.DefaultDeliveryDay == "" {
		res.Ordering.DefaultDeliveryDay = "Monday"
	}
	res.Relay.NATS = cfg.Relay.NATS
	res.Relay.Webhooks = []WebhookResponse{}
	for _, hook := range cfg.Relay.Webhooks {
		res.Relay.Webhooks = append(res.Relay.Webhooks, WebhookResponse{
			URL:            hook.URL,
			Events:         hook.Events,
			Enabled:        hook.Enabled == nil || *hook.Enabled,
			HasSecret:      hook.Secret != "",
			TimeoutSeconds: hook.TimeoutSeconds,
		})
	}
	return res
}

func (r IngredientRequest) toDomain(name string) domain.Ingredient {
	return domain.Ingredient{
		Name:          name,
		CurrentStock:  r.CurrentStock,
		MinStockLevel: r.MinStockLevel,
		Category:      r.Category,
		SupplierName:  r.SupplierName,
		LeadTimeDays:  r.LeadTimeDays,
		Unit:          r.Unit,
	}
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
