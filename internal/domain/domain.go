package domain

import "strings"

// Ingredient is one stock record of the inventory snapshot.
type Ingredient struct {
	Name          string  `json:"name" yaml:"name"`
	CurrentStock  float64 `json:"current_stock" yaml:"current_stock"`
	MinStockLevel float64 `json:"min_stock_level" yaml:"min_stock_level"`
	Category      string  `json:"category" yaml:"category"`
	SupplierName  string  `json:"supplier_name" yaml:"supplier_name"`
	LeadTimeDays  int     `json:"lead_time_days" yaml:"lead_time_days"`
	Unit          string  `json:"unit" yaml:"unit"`
	UpdatedAt     string  `json:"updated_at,omitempty" yaml:"-" format:"date-time"`
}

// DeliverySchedule lists the weekdays a supplier delivers to a store.
type DeliverySchedule struct {
	SupplierName string   `json:"supplier_name" yaml:"supplier_name"`
	StoreName    string   `json:"store_name" yaml:"store_name"`
	DeliveryDays []string `json:"delivery_days" yaml:"delivery_days"`
	UpdatedAt    string   `json:"updated_at,omitempty" yaml:"-" format:"date-time"`
}

type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Priority orders urgencies for ranking; lower sorts first.
func (u Urgency) Priority() int {
	switch u {
	case UrgencyHigh:
		return 0
	case UrgencyMedium:
		return 1
	default:
		return 2
	}
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

// SupplierOrder is one consolidated order for a (supplier, store) pair.
type SupplierOrder struct {
	SupplierName         string      `json:"supplier_name"`
	StoreName            string      `json:"store_name"`
	OrderDate            string      `json:"order_date" format:"date"`
	ExpectedDeliveryDate string      `json:"expected_delivery_date" format:"date"`
	LeadTimeDays         int         `json:"lead_time_days"`
	Items                []OrderLine `json:"items"`
	TotalItems           int         `json:"total_items"`
	Urgency              Urgency     `json:"urgency" enum:"high,medium,low"`
}

// AllStores is the scope sentinel selecting the aggregate view.
const AllStores = "all"

// Scope selects a single store or every known store. Stores is the fixed
// enumeration walked by the aggregate view, in order.
type Scope struct {
	All    bool
	Store  string
	Stores []string
}

// ParseScope maps a store name or the "all" sentinel to a Scope.
// An empty value selects all stores.
func ParseScope(v string, stores []string) Scope {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, AllStores) {
		return Scope{All: true, Stores: stores}
	}
	return Scope{Store: v, Stores: stores}
}

func (s Scope) String() string {
	if s.All {
		return AllStores
	}
	return s.Store
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
