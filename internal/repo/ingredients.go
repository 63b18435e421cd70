package repo

import (
	"context"
	"database/sql"
	"errors"

	"storeops/internal/domain"
)

const ingredientColumns = `name,current_stock,min_stock_level,category,supplier_name,lead_time_days,unit,updated_at`

func scanIngredient(scan func(dest ...any) error) (domain.Ingredient, error) {
	var ing domain.Ingredient
	err := scan(&ing.Name, &ing.CurrentStock, &ing.MinStockLevel, &ing.Category, &ing.SupplierName, &ing.LeadTimeDays, &ing.Unit, &ing.UpdatedAt)
	return ing, err
}

// UpsertIngredientTx inserts or replaces a record by name. A replaced record
// keeps its position in the snapshot.
func (r Repo) UpsertIngredientTx(ctx context.Context, tx *sql.Tx, ing domain.Ingredient) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO ingredients(`+ingredientColumns+`) VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(name) DO UPDATE SET
  current_stock=excluded.current_stock,
  min_stock_level=excluded.min_stock_level,
  category=excluded.category,
  supplier_name=excluded.supplier_name,
  lead_time_days=excluded.lead_time_days,
  unit=excluded.unit,
  updated_at=excluded.updated_at`,
		ing.Name, ing.CurrentStock, ing.MinStockLevel, ing.Category, ing.SupplierName, ing.LeadTimeDays, ing.Unit, ing.UpdatedAt)
	return err
}

func (r Repo) GetIngredient(ctx context.Context, name string) (domain.Ingredient, error) {
	return r.GetIngredientTx(ctx, nil, name)
}

func (r Repo) GetIngredientTx(ctx context.Context, tx *sql.Tx, name string) (domain.Ingredient, error) {
	row := r.on(tx).QueryRowContext(ctx, `SELECT `+ingredientColumns+` FROM ingredients WHERE name=?`, name)
	ing, err := scanIngredient(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Ingredient{}, ErrNotFound
	}
	return ing, err
}

// IngredientFilters narrow ListIngredients; zero values match everything.
type IngredientFilters struct {
	Supplier string
	Category string
	BelowMin bool
}

// ListIngredients returns the snapshot in insertion order.
func (r Repo) ListIngredients(ctx context.Context, f IngredientFilters) ([]domain.Ingredient, error) {
	query := `SELECT ` + ingredientColumns + ` FROM ingredients WHERE 1=1`
	var args []any
	if f.Supplier != "" {
		query += ` AND supplier_name=?`
		args = append(args, f.Supplier)
	}
	if f.Category != "" {
		query += ` AND category=?`
		args = append(args, f.Category)
	}
	if f.BelowMin {
		query += ` AND current_stock < min_stock_level`
	}
	query += ` ORDER BY seq`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Ingredient{}
	for rows.Next() {
		ing, err := scanIngredient(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, ing)
	}
	return res, rows.Err()
}

func (r Repo) UpdateStockTx(ctx context.Context, tx *sql.Tx, name string, current float64, updatedAt string) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE ingredients SET current_stock=?, updated_at=? WHERE name=?`, current, updatedAt, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteIngredientTx(ctx context.Context, tx *sql.Tx, name string) error {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM ingredients WHERE name=?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceIngredientsTx swaps the whole snapshot, keeping the given order.
func (r Repo) ReplaceIngredientsTx(ctx context.Context, tx *sql.Tx, items []domain.Ingredient) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM ingredients`); err != nil {
		return err
	}
	for _, ing := range items {
		if err := r.UpsertIngredientTx(ctx, tx, ing); err != nil {
			return err
		}
	}
	return nil
}
