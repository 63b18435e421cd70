package engine

import (
	"context"
	"fmt"
	"math"
	"strings"

	"storeops/internal/domain"
	"storeops/internal/events"
	"storeops/internal/planner"
)

// UpsertIngredient validates and stores one inventory record.
func (e Engine) UpsertIngredient(ctx context.Context, ing domain.Ingredient, actorID string) (domain.Ingredient, error) {
	ing.Name = strings.TrimSpace(ing.Name)
	if err := planner.ValidateIngredient(-1, ing); err != nil {
		return domain.Ingredient{}, err
	}
	ing.UpdatedAt = e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Ingredient{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertIngredientTx(ctx, tx, ing); err != nil {
		return domain.Ingredient{}, fmt.Errorf("upsert ingredient: %w", err)
	}
	if err := e.writer().Append(ctx, tx, events.IngredientUpserted, "ingredient", ing.Name, actorID, events.EventPayload{
		"current_stock":   ing.CurrentStock,
		"min_stock_level": ing.MinStockLevel,
		"supplier_name":   ing.SupplierName,
		"lead_time_days":  ing.LeadTimeDays,
	}); err != nil {
		return domain.Ingredient{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Ingredient{}, err
	}
	return ing, nil
}

// SetStock records a new stock count for an existing ingredient.
func (e Engine) SetStock(ctx context.Context, name string, current float64, actorID string) (domain.Ingredient, error) {
	if math.IsNaN(current) || math.IsInf(current, 0) || current < 0 {
		return domain.Ingredient{}, planner.ValidationError{Record: fmt.Sprintf("ingredient %q", name), Field: "current_stock", Reason: "must be a finite non-negative number"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Ingredient{}, err
	}
	defer tx.Rollback()
	ing, err := e.Repo.GetIngredientTx(ctx, tx, name)
	if err != nil {
		return domain.Ingredient{}, err
	}
	previous := ing.CurrentStock
	ing.CurrentStock = current
	ing.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateStockTx(ctx, tx, name, current, ing.UpdatedAt); err != nil {
		return domain.Ingredient{}, err
	}
	if err := e.writer().Append(ctx, tx, events.IngredientStock, "ingredient", name, actorID, events.EventPayload{
		"previous":      previous,
		"current_stock": current,
		"below_min":     current < ing.MinStockLevel,
	}); err != nil {
		return domain.Ingredient{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Ingredient{}, err
	}
	return ing, nil
}

func (e Engine) DeleteIngredient(ctx context.Context, name, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteIngredientTx(ctx, tx, name); err != nil {
		return err
	}
	if err := e.writer().Append(ctx, tx, events.IngredientDeleted, "ingredient", name, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}
