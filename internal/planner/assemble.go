package planner

import (
	"sort"

	"github.com/shopspring/decimal"

	"storeops/internal/domain"
)

var (
	// bufferFactor is the safety margin applied on top of every shortfall.
	bufferFactor = decimal.RequireFromString("1.2")
	// mediumThreshold is the share of the minimum level below which a
	// non-empty item makes its order medium urgency.
	mediumThreshold = decimal.RequireFromString("0.5")
)

// DetectShortfalls returns the ingredients below their minimum level, in
// snapshot order. The input slice is not modified.
func DetectShortfalls(items []domain.Ingredient) []domain.Ingredient {
	var out []domain.Ingredient
	for _, ing := range items {
		if ing.CurrentStock < ing.MinStockLevel {
			out = append(out, ing)
		}
	}
	return out
}

// SupplierGroup is the run of shortfalls sharing a supplier.
type SupplierGroup struct {
	Supplier string
	Items    []domain.Ingredient
}

// LeadTimeDays is the lead time of the group's first item; the whole order
// ships on it.
func (g SupplierGroup) LeadTimeDays() int {
	if len(g.Items) == 0 {
		return 0
	}
	return g.Items[0].LeadTimeDays
}

// GroupBySupplier partitions shortfalls by supplier. Groups follow the
// first-seen supplier order; items keep their relative order.
func GroupBySupplier(shortfalls []domain.Ingredient) []SupplierGroup {
	index := make(map[string]int)
	var groups []SupplierGroup
	for _, ing := range shortfalls {
		i, ok := index[ing.SupplierName]
		if !ok {
			i = len(groups)
			index[ing.SupplierName] = i
			groups = append(groups, SupplierGroup{Supplier: ing.SupplierName})
		}
		groups[i].Items = append(groups[i].Items, ing)
	}
	return groups
}

// Shortfall is the exact quantity by which stock falls below the minimum.
func Shortfall(ing domain.Ingredient) decimal.Decimal {
	return decimal.NewFromFloat(ing.MinStockLevel).Sub(decimal.NewFromFloat(ing.CurrentStock))
}

// OrderQuantity rounds the buffered shortfall up to a whole unit.
func OrderQuantity(shortfall decimal.Decimal) decimal.Decimal {
	return shortfall.Mul(bufferFactor).Ceil()
}

// NewOrderLine copies an ingredient into an order line.
func NewOrderLine(ing domain.Ingredient) domain.OrderLine {
	short := Shortfall(ing)
	return domain.OrderLine{
		IngredientName: ing.Name,
		Category:       ing.Category,
		Unit:           ing.Unit,
		CurrentStock:   ing.CurrentStock,
		MinStockLevel:  ing.MinStockLevel,
		Shortfall:      short.InexactFloat64(),
		OrderQuantity:  OrderQuantity(short).InexactFloat64(),
	}
}

// Classify derives an order's urgency: any empty item makes it high, else any
// item under half its minimum makes it medium, else low.
func Classify(lines []domain.OrderLine) domain.Urgency {
	medium := false
	for _, l := range lines {
		if l.CurrentStock == 0 {
			return domain.UrgencyHigh
		}
		limit := decimal.NewFromFloat(l.MinStockLevel).Mul(mediumThreshold)
		if l.CurrentStock > 0 && decimal.NewFromFloat(l.CurrentStock).LessThan(limit) {
			medium = true
		}
	}
	if medium {
		return domain.UrgencyMedium
	}
	return domain.UrgencyLow
}

// AssembleOrder builds the consolidated order for one group and store.
func AssembleOrder(g SupplierGroup, store string, orderDate, delivery string) domain.SupplierOrder {
	lines := make([]domain.OrderLine, 0, len(g.Items))
	for _, ing := range g.Items {
		lines = append(lines, NewOrderLine(ing))
	}
	return domain.SupplierOrder{
		SupplierName:         g.Supplier,
		StoreName:            store,
		OrderDate:            orderDate,
		ExpectedDeliveryDate: delivery,
		LeadTimeDays:         g.LeadTimeDays(),
		Items:                lines,
		TotalItems:           len(lines),
		Urgency:              Classify(lines),
	}
}

// Rank sorts orders in place by urgency priority, then by order date.
// Equal keys keep their construction order.
func Rank(orders []domain.SupplierOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		pi, pj := orders[i].Urgency.Priority(), orders[j].Urgency.Priority()
		if pi != pj {
			return pi < pj
		}
		return orders[i].OrderDate < orders[j].OrderDate
	})
}
