// Package planner computes suggested supplier orders from a stock snapshot
// and a weekly delivery calendar.
//
// The computation is a pure function of its inputs and the injected date:
// shortfalls are detected, grouped by supplier, given a delivery and order
// date per store, assembled into orders and ranked by urgency.
package planner

import (
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"storeops/internal/domain"
)

// DefaultDeliveryDay is used for (supplier, store) pairs without a schedule.
const DefaultDeliveryDay = "Monday"

// Policy holds the tunable parts of the computation.
type Policy struct {
	// DefaultDeliveryDay replaces a missing schedule; empty means Monday.
	DefaultDeliveryDay string
	// RequireSchedules turns a missing schedule into MissingScheduleError.
	RequireSchedules bool
}

type Planner struct {
	Policy Policy
	Logger *log.Logger
}

// Plan is the outcome of one computation pass.
type Plan struct {
	Orders []domain.SupplierOrder `json:"orders"`
	// Fallbacks lists the pairs that were planned on the default day.
	Fallbacks []ScheduleKey `json:"fallbacks"`
}

// ComputeSuggestedOrders runs the pipeline with the default policy.
func ComputeSuggestedOrders(ingredients []domain.Ingredient, schedules []domain.DeliverySchedule, scope domain.Scope, today time.Time) ([]domain.SupplierOrder, error) {
	plan, err := Planner{}.Plan(ingredients, schedules, scope, today)
	if err != nil {
		return nil, err
	}
	return plan.Orders, nil
}

func (p Planner) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

// Plan validates the inputs and computes the ranked orders for scope.
func (p Planner) Plan(ingredients []domain.Ingredient, schedules []domain.DeliverySchedule, scope domain.Scope, today time.Time) (Plan, error) {
	plan := Plan{Orders: []domain.SupplierOrder{}, Fallbacks: []ScheduleKey{}}
	if err := ValidateIngredients(ingredients); err != nil {
		return Plan{}, err
	}
	table, err := NewScheduleTable(schedules)
	if err != nil {
		return Plan{}, err
	}
	fallback, err := p.fallbackDay()
	if err != nil {
		return Plan{}, err
	}
	stores, err := storesFor(scope)
	if err != nil {
		return Plan{}, err
	}

	shortfalls := DetectShortfalls(ingredients)
	if len(shortfalls) == 0 {
		return plan, nil
	}
	groups := GroupBySupplier(shortfalls)
	for _, g := range groups {
		p.checkLeadTimes(g)
	}

	today = civilDate(today)
	for _, store := range stores {
		for _, g := range groups {
			res := ResolveSchedule(table, g.Supplier, store, g.LeadTimeDays(), today, fallback)
			if res.Fallback {
				key := ScheduleKey{Supplier: g.Supplier, Store: store}
				if p.Policy.RequireSchedules {
					return Plan{}, MissingScheduleError{Key: key}
				}
				p.logger().Printf("planner: schedule fallback supplier=%q store=%q day=%s", g.Supplier, store, fallback)
				plan.Fallbacks = append(plan.Fallbacks, key)
			}
			plan.Orders = append(plan.Orders, AssembleOrder(g, store, res.OrderDate.Format(DateLayout), res.Delivery.Format(DateLayout)))
		}
	}
	Rank(plan.Orders)
	return plan, nil
}

func (p Planner) fallbackDay() (time.Weekday, error) {
	name := p.Policy.DefaultDeliveryDay
	if strings.TrimSpace(name) == "" {
		name = DefaultDeliveryDay
	}
	d, err := ParseWeekday(name)
	if err != nil {
		return 0, ValidationError{Record: "policy", Field: "default_delivery_day", Reason: err.Error()}
	}
	return d, nil
}

// checkLeadTimes reports groups whose items disagree on lead time. The first
// item's lead time still applies to the whole order.
func (p Planner) checkLeadTimes(g SupplierGroup) {
	lead := g.LeadTimeDays()
	for _, ing := range g.Items[1:] {
		if ing.LeadTimeDays != lead {
			p.logger().Printf("planner: lead time mismatch supplier=%q ingredient=%q lead_time_days=%d applied=%d",
				g.Supplier, ing.Name, ing.LeadTimeDays, lead)
		}
	}
}

func storesFor(scope domain.Scope) ([]string, error) {
	if scope.All {
		if len(scope.Stores) == 0 {
			return nil, ValidationError{Record: "scope", Field: "stores", Reason: "is empty; no stores to plan for"}
		}
		return scope.Stores, nil
	}
	store := strings.TrimSpace(scope.Store)
	if store == "" {
		return nil, ValidationError{Record: "scope", Field: "store", Reason: "is required"}
	}
	if len(scope.Stores) > 0 && !slices.Contains(scope.Stores, store) {
		return nil, ValidationError{Record: "scope", Field: "store", Reason: fmt.Sprintf("%q is not a known store", store)}
	}
	return []string{store}, nil
}
