package planner

import (
	"fmt"
	"math"
	"strings"

	"storeops/internal/domain"
)

// ValidateIngredients checks every record of a snapshot and fails on the
// first malformed one. Names must be unique within the snapshot.
func ValidateIngredients(items []domain.Ingredient) error {
	seen := make(map[string]int, len(items))
	for i, ing := range items {
		if err := ValidateIngredient(i, ing); err != nil {
			return err
		}
		if first, ok := seen[ing.Name]; ok {
			return ValidationError{
				Record: recordLabel(i, ing.Name),
				Field:  "name",
				Reason: fmt.Sprintf("duplicates record %d", first),
			}
		}
		seen[ing.Name] = i
	}
	return nil
}

// ValidateIngredient checks a single record; idx is its position in the
// snapshot, or -1 for a record outside one.
func ValidateIngredient(idx int, ing domain.Ingredient) error {
	label := recordLabel(idx, ing.Name)
	fail := func(field, reason string) error {
		return ValidationError{Record: label, Field: field, Reason: reason}
	}
	if strings.TrimSpace(ing.Name) == "" {
		return fail("name", "is required")
	}
	if strings.TrimSpace(ing.SupplierName) == "" {
		return fail("supplier_name", "is required")
	}
	if strings.TrimSpace(ing.Unit) == "" {
		return fail("unit", "is required")
	}
	if !validQuantity(ing.CurrentStock) {
		return fail("current_stock", "must be a finite non-negative number")
	}
	if !validQuantity(ing.MinStockLevel) {
		return fail("min_stock_level", "must be a finite non-negative number")
	}
	if ing.LeadTimeDays < 0 {
		return fail("lead_time_days", "must not be negative")
	}
	return nil
}

func validQuantity(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func recordLabel(idx int, name string) string {
	if idx < 0 {
		return fmt.Sprintf("ingredient %q", name)
	}
	return fmt.Sprintf("ingredient[%d] %q", idx, name)
}
